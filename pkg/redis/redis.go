package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrCacheMiss is returned when no cached state exists for the request.
var ErrCacheMiss = redis.Nil

const stateTTL = 10 * time.Second

type IRedis interface {
	SetState(ctx context.Context, reqID string, payload []byte) error
	GetState(ctx context.Context, reqID string) ([]byte, error)
	InvalidateState(ctx context.Context, reqID string) error
}

type redisClient struct {
	client *redis.Client
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client}
}

func stateKey(reqID string) string {
	return "verification:state:" + reqID
}

// SetState caches the serialized session state with a short TTL; the
// browser polls this on every heartbeat.
func (r *redisClient) SetState(ctx context.Context, reqID string, payload []byte) error {
	err := r.client.Set(ctx, stateKey(reqID), payload, stateTTL).Err()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error caching state for request %s: %v", reqID, err))
		return err
	}
	return nil
}

func (r *redisClient) GetState(ctx context.Context, reqID string) ([]byte, error) {
	val, err := r.client.Get(ctx, stateKey(reqID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, err
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error getting cached state for request %s: %v", reqID, err))
		return nil, err
	}
	return val, nil
}

// InvalidateState drops the cached state; called after every milestone
// mutation so readers never see a stale verdict.
func (r *redisClient) InvalidateState(ctx context.Context, reqID string) error {
	if _, err := r.client.Del(ctx, stateKey(reqID)).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Error invalidating cached state for request %s: %v", reqID, err))
		return err
	}
	return nil
}
