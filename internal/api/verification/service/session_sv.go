package verificationService

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"VerifyGolang/internal/api/verification"
	"VerifyGolang/internal/entity"
	contextPkg "VerifyGolang/pkg/context"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	dirIDFront       = "id"
	dirIDBack        = "id_back"
	dirRecordings    = "recordings"
	dirSelectedFaces = "selected_faces"
	fileVideo        = "video.mp4"
	fileResult       = "result.json"
	fileCroppedFace  = "face.jpg"
)

func (s *verificationService) sessionDir(reqID string) string {
	return filepath.Join(s.storageRoot, reqID)
}

func (s *verificationService) ensureSessionDirs(reqID string) error {
	for _, sub := range []string{dirIDFront, dirIDBack, dirRecordings, dirSelectedFaces} {
		if err := os.MkdirAll(filepath.Join(s.sessionDir(reqID), sub), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// latestFile returns the newest regular file in dir, or "" when empty.
func latestFile(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1])
}

func (s *verificationService) CreateSession(ctx context.Context) (string, error) {
	requestID := contextPkg.GetRequestID(ctx)
	reqID := strings.ReplaceAll(uuid.New().String(), "-", "")

	if err := s.ensureSessionDirs(reqID); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create session directories")
		return "", err
	}

	repo, err := s.repo.NewClient(false)
	if err != nil {
		return "", err
	}

	now := time.Now()
	err = repo.Requests.CreateRequest(ctx, entity.VerificationRequest{
		ID:            reqID,
		DeepfakeState: string(entity.DeepfakeMissing),
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return "", err
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"req_id":     reqID,
	}).Info("Verification session created")

	return reqID, nil
}

func (s *verificationService) GetSessionState(ctx context.Context, reqID string) (verification.SessionStateResponse, error) {
	if cached, err := s.redis.GetState(ctx, reqID); err == nil {
		var state verification.SessionStateResponse
		if err := json.Unmarshal(cached, &state); err == nil {
			return state, nil
		}
	}

	repo, err := s.repo.NewClient(false)
	if err != nil {
		return verification.SessionStateResponse{}, err
	}

	req, err := repo.Requests.GetRequestByID(ctx, reqID)
	if err != nil {
		return verification.SessionStateResponse{}, err
	}

	state := verification.SessionStateResponse{
		ReqID:           req.ID,
		IDFrontVerified: req.IDFrontVerified,
		IDBackVerified:  req.IDBackVerified,
		VideoVerified:   req.VideoVerified,
		Deepfake:        req.Deepfake(),
		Assets:          s.localAssets(reqID),
	}

	if payload, err := json.Marshal(state); err == nil {
		_ = s.redis.SetState(ctx, reqID, payload)
	}

	return state, nil
}

// localAssets derives asset presence from the session directory; these are
// server-relative paths, not presigned URLs.
func (s *verificationService) localAssets(reqID string) entity.AssetSet {
	dir := s.sessionDir(reqID)
	assets := entity.AssetSet{}

	if p := latestFile(filepath.Join(dir, dirIDFront)); p != "" {
		assets.IDImageURL = s.relPath(p)
	}
	if p := latestFile(filepath.Join(dir, dirIDBack)); p != "" {
		assets.IDBackImageURL = s.relPath(p)
	}
	if p := filepath.Join(dir, fileCroppedFace); fileExists(p) {
		assets.CroppedFaceURL = s.relPath(p)
	}
	if p := filepath.Join(dir, fileVideo); fileExists(p) {
		assets.VideoURL = s.relPath(p)
	}
	for _, frame := range sortedFiles(filepath.Join(dir, dirSelectedFaces)) {
		assets.SelectedFrames = append(assets.SelectedFrames, s.relPath(frame))
	}

	return assets
}

func (s *verificationService) relPath(p string) string {
	rel, err := filepath.Rel(s.storageRoot, p)
	if err != nil {
		return p
	}
	return "/" + filepath.ToSlash(rel)
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func sortedFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths
}

// ManualDecision records the reviewer's call and purges every artifact the
// session accumulated, locally and in the archive. The DB row survives,
// reset to its initial state, so the id remains auditable.
func (s *verificationService) ManualDecision(ctx context.Context, reqID string, decision string) (verification.ManualDecisionResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.repo.NewClient(false)
	if err != nil {
		return verification.ManualDecisionResponse{}, err
	}

	if _, err := repo.Requests.GetRequestByID(ctx, reqID); err != nil {
		return verification.ManualDecisionResponse{}, err
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"req_id":     reqID,
		"decision":   decision,
	}).Info("Manual review decision received, purging session artifacts")

	purged := true
	if err := os.RemoveAll(s.sessionDir(reqID)); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"req_id":     reqID,
			"error":      err.Error(),
		}).Error("Failed to remove session directory")
		purged = false
	}

	if err := s.s3Client.DeletePrefix(archivePrefix(reqID)); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"req_id":     reqID,
			"error":      err.Error(),
		}).Warn("Failed to purge archived session artifacts")
	}

	if err := repo.Requests.ResetRequest(ctx, reqID); err != nil {
		return verification.ManualDecisionResponse{}, err
	}

	_ = s.redis.InvalidateState(ctx, reqID)

	return verification.ManualDecisionResponse{
		ReqID:    reqID,
		Decision: decision,
		Purged:   purged,
	}, nil
}

func archivePrefix(reqID string) string {
	return "verification/" + reqID + "/"
}
