package verificationRepository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"VerifyGolang/internal/api/verification"
	"VerifyGolang/internal/entity"
	contextPkg "VerifyGolang/pkg/context"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type RequestDB struct {
	ID              sql.NullString `db:"id"`
	IDFrontVerified sql.NullBool   `db:"id_front_verified"`
	IDBackVerified  sql.NullBool   `db:"id_back_verified"`
	VideoVerified   sql.NullBool   `db:"video_verified"`
	DeepfakeState   sql.NullString `db:"deepfake_state"`
	DeepfakeReal    sql.NullBool   `db:"deepfake_real"`
	DeepfakeError   sql.NullString `db:"deepfake_error"`
	DeepfakeStarted sql.NullTime   `db:"deepfake_started_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r *requestsRepository) CreateRequest(ctx context.Context, req entity.VerificationRequest) error {
	requestID := contextPkg.GetRequestID(ctx)
	argsKV := map[string]interface{}{
		"id":                req.ID,
		"id_front_verified": req.IDFrontVerified,
		"id_back_verified":  req.IDBackVerified,
		"video_verified":    req.VideoVerified,
		"deepfake_state":    req.DeepfakeState,
		"created_at":        req.CreatedAt,
		"updated_at":        req.UpdatedAt,
	}

	query, args, err := sqlx.Named(queryCreateRequest, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("CreateRequest named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	_, err = r.q.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating verification request")
		return err
	}

	return nil
}

func (r *requestsRepository) GetRequestByID(ctx context.Context, id string) (entity.VerificationRequest, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var req RequestDB

	argsKV := map[string]interface{}{
		"id": id,
	}

	query, args, err := sqlx.Named(queryGetRequestByID, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetRequestByID named query preparation err")
		return entity.VerificationRequest{}, err
	}

	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(ctx, query, args...).StructScan(&req); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"req_id":     id,
			}).Warn("GetRequestByID no rows found")
			return entity.VerificationRequest{}, verification.ErrSessionNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetRequestByID execution err")
		return entity.VerificationRequest{}, err
	}

	return r.makeRequest(req), nil
}

func (r *requestsRepository) SetIDFrontVerified(ctx context.Context, id string, verified bool) error {
	return r.setVerified(ctx, querySetIDFrontVerified, id, verified, "SetIDFrontVerified")
}

func (r *requestsRepository) SetIDBackVerified(ctx context.Context, id string, verified bool) error {
	return r.setVerified(ctx, querySetIDBackVerified, id, verified, "SetIDBackVerified")
}

func (r *requestsRepository) SetVideoVerified(ctx context.Context, id string, verified bool) error {
	return r.setVerified(ctx, querySetVideoVerified, id, verified, "SetVideoVerified")
}

func (r *requestsRepository) setVerified(ctx context.Context, namedQuery, id string, verified bool, op string) error {
	requestID := contextPkg.GetRequestID(ctx)
	argsKV := map[string]interface{}{
		"id":         id,
		"verified":   verified,
		"updated_at": time.Now(),
	}

	query, args, err := sqlx.Named(namedQuery, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error(op + " named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error(op + " execution err")
		return err
	}

	return nil
}

// SetDeepfakeRunning resets the job columns synchronously so readers never
// observe a stale terminal verdict after a re-submit.
func (r *requestsRepository) SetDeepfakeRunning(ctx context.Context, id string) error {
	return r.execNamed(ctx, querySetDeepfakeRunning, map[string]interface{}{
		"id":         id,
		"started_at": time.Now(),
		"updated_at": time.Now(),
	}, "SetDeepfakeRunning")
}

func (r *requestsRepository) SetDeepfakeCompleted(ctx context.Context, id string, real bool) error {
	return r.execNamed(ctx, querySetDeepfakeCompleted, map[string]interface{}{
		"id":         id,
		"real":       real,
		"updated_at": time.Now(),
	}, "SetDeepfakeCompleted")
}

func (r *requestsRepository) SetDeepfakeError(ctx context.Context, id string, errMsg string) error {
	return r.execNamed(ctx, querySetDeepfakeError, map[string]interface{}{
		"id":         id,
		"error":      errMsg,
		"updated_at": time.Now(),
	}, "SetDeepfakeError")
}

func (r *requestsRepository) ResetRequest(ctx context.Context, id string) error {
	return r.execNamed(ctx, queryResetRequest, map[string]interface{}{
		"id":         id,
		"updated_at": time.Now(),
	}, "ResetRequest")
}

func (r *requestsRepository) execNamed(ctx context.Context, namedQuery string, argsKV map[string]interface{}, op string) error {
	requestID := contextPkg.GetRequestID(ctx)

	query, args, err := sqlx.Named(namedQuery, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error(op + " named query preparation err")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error(op + " execution err")
		return err
	}

	return nil
}

func (r *requestsRepository) makeRequest(row RequestDB) entity.VerificationRequest {
	req := entity.VerificationRequest{
		ID:              row.ID.String,
		IDFrontVerified: row.IDFrontVerified.Bool,
		IDBackVerified:  row.IDBackVerified.Bool,
		VideoVerified:   row.VideoVerified.Bool,
		DeepfakeState:   row.DeepfakeState.String,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if row.DeepfakeReal.Valid {
		real := row.DeepfakeReal.Bool
		req.DeepfakeReal = &real
	}
	if row.DeepfakeError.Valid {
		msg := row.DeepfakeError.String
		req.DeepfakeError = &msg
	}
	if row.DeepfakeStarted.Valid {
		started := row.DeepfakeStarted.Time
		req.DeepfakeStarted = &started
	}
	return req
}
