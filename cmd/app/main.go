package main

import (
	"os"
	"os/signal"
	"syscall"

	"VerifyGolang/internal/config"
	"VerifyGolang/pkg/detector"
	"VerifyGolang/pkg/ffmpeg"
	"VerifyGolang/pkg/log"
	"VerifyGolang/pkg/redis"

	"github.com/joho/godotenv"
)

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil {
		logger.Fatalf("Error loading .env file: %v", err)
	}

	fiberApp := config.NewFiber(logger)
	validator := config.NewValidator()
	redisServer := redis.New()
	modelClient := detector.NewModelClient()
	normalizer := ffmpeg.New()

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithDatabase(),
		config.WithRedisServer(redisServer),
		config.WithDetector(modelClient),
		config.WithNormalizer(normalizer),
		config.WithMiddleware(),
		config.WithS3Client(),
		config.WithGeminiClient(),
		config.WithUtils(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")
	modelClient.CloseConnections()
}
