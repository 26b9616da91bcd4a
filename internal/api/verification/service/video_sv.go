package verificationService

import (
	"os"
	"path/filepath"

	"VerifyGolang/internal/api/verification"
	"VerifyGolang/internal/entity"
	contextPkg "VerifyGolang/pkg/context"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const matchFrameCount = 15

// VerifySession compares the cropped document portrait against frames
// sampled from the canonical recording and persists the outcome. The
// deepfake status rides along without blocking the result.
func (s *verificationService) VerifySession(ctx context.Context, reqID string) (entity.MatchResult, error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.repo.NewClient(false)
	if err != nil {
		return entity.MatchResult{}, err
	}
	req, err := repo.Requests.GetRequestByID(ctx, reqID)
	if err != nil {
		return entity.MatchResult{}, err
	}

	facePath := filepath.Join(s.sessionDir(reqID), fileCroppedFace)
	reference, err := os.ReadFile(facePath)
	if err != nil {
		return entity.MatchResult{}, verification.ErrMissingIDFace
	}

	videoPath, err := s.canonicalVideo(ctx, reqID)
	if err != nil {
		return entity.MatchResult{}, err
	}

	framesDir := filepath.Join(s.sessionDir(reqID), dirSelectedFaces)
	framePaths, err := s.normalizer.SampleFrames(ctx, videoPath, framesDir, matchFrameCount)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"req_id":     reqID,
			"error":      err.Error(),
		}).Error("Frame sampling failed")
		return entity.MatchResult{}, verification.ErrNoFramesSampled
	}

	frames := make([][]byte, 0, len(framePaths))
	for _, p := range framePaths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		frames = append(frames, data)
	}
	if len(frames) == 0 {
		return entity.MatchResult{}, verification.ErrNoFramesSampled
	}

	verdict, err := s.detector.MatchFace(reference, frames)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"req_id":     reqID,
			"error":      err.Error(),
		}).Error("Face matching service call failed")
		return entity.MatchResult{}, verification.ErrMatcherUnavailable
	}

	deepfake := req.Deepfake()
	result := entity.MatchResult{
		Matched:       verdict.Matched,
		Similarity:    verdict.Similarity,
		FramesChecked: len(frames),
		DeepfakeState: string(deepfake.Status),
		DeepfakeHit:   deepfake.DeepfakeDetected,
		AssetURLs:     s.localAssets(reqID),
	}
	if verdict.BestIndex >= 0 && verdict.BestIndex < len(framePaths) {
		result.BestFrame = s.relPath(framePaths[verdict.BestIndex])
	}

	if payload, err := json.MarshalIndent(result, "", "  "); err == nil {
		resultPath := filepath.Join(s.sessionDir(reqID), fileResult)
		if err := os.WriteFile(resultPath, payload, 0o644); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"req_id":     reqID,
				"error":      err.Error(),
			}).Warn("Failed to persist result.json")
		}
	}

	s.archiveSession(reqID)
	_ = s.redis.InvalidateState(ctx, reqID)

	return result, nil
}

// canonicalVideo returns the session's normalized mp4, normalizing the most
// recent raw recording as a fallback when the upload path never ran.
func (s *verificationService) canonicalVideo(ctx context.Context, reqID string) (string, error) {
	canonical := filepath.Join(s.sessionDir(reqID), fileVideo)
	if fileExists(canonical) {
		return canonical, nil
	}

	latest := latestFile(filepath.Join(s.sessionDir(reqID), dirRecordings))
	if latest == "" {
		return "", verification.ErrMissingVideo
	}
	if err := s.normalizeClip(ctx, reqID, latest); err != nil {
		return "", verification.ErrNormalizationFailed
	}
	return canonical, nil
}

// archiveSession copies the session artifacts into the S3 archive. Failures
// are logged, never surfaced; the local copy remains authoritative until
// manual review.
func (s *verificationService) archiveSession(reqID string) {
	dir := s.sessionDir(reqID)
	prefix := archivePrefix(reqID)

	upload := func(key, localPath string) {
		if !fileExists(localPath) {
			return
		}
		if _, err := s.s3Client.UploadPath(prefix+key, localPath); err != nil {
			s.log.WithFields(logrus.Fields{
				"req_id": reqID,
				"key":    key,
				"error":  err.Error(),
			}).Warn("Failed to archive session artifact")
		}
	}

	upload("id.jpg", latestFile(filepath.Join(dir, dirIDFront)))
	upload("id_back.jpg", latestFile(filepath.Join(dir, dirIDBack)))
	upload("face.jpg", filepath.Join(dir, fileCroppedFace))
	upload("video.mp4", filepath.Join(dir, fileVideo))
	upload("result.json", filepath.Join(dir, fileResult))
}

// ReviewBundle assembles presigned archive URLs plus the deepfake state for
// the back-office review screen, falling back to local paths for artifacts
// not yet archived.
func (s *verificationService) ReviewBundle(ctx context.Context, reqID string) (verification.ReviewResponse, error) {
	repo, err := s.repo.NewClient(false)
	if err != nil {
		return verification.ReviewResponse{}, err
	}
	req, err := repo.Requests.GetRequestByID(ctx, reqID)
	if err != nil {
		return verification.ReviewResponse{}, err
	}

	assets := s.localAssets(reqID)
	prefix := archivePrefix(reqID)

	presign := func(key string, fallback string) string {
		if url, err := s.s3Client.PresignUrl(prefix + key); err == nil {
			return url
		}
		return fallback
	}

	assets.IDImageURL = presign("id.jpg", assets.IDImageURL)
	assets.IDBackImageURL = presign("id_back.jpg", assets.IDBackImageURL)
	assets.CroppedFaceURL = presign("face.jpg", assets.CroppedFaceURL)
	assets.VideoURL = presign("video.mp4", assets.VideoURL)

	return verification.ReviewResponse{
		ReqID:    reqID,
		Assets:   assets,
		Deepfake: req.Deepfake(),
	}, nil
}

// BestMatchImagePath resolves the best-match frame recorded at finalize
// time to a local file for passthrough serving.
func (s *verificationService) BestMatchImagePath(ctx context.Context, reqID string) (string, error) {
	resultPath := filepath.Join(s.sessionDir(reqID), fileResult)
	raw, err := os.ReadFile(resultPath)
	if err != nil {
		return "", verification.ErrSessionNotFound
	}

	var result entity.MatchResult
	if err := json.Unmarshal(raw, &result); err != nil || result.BestFrame == "" {
		return "", verification.ErrSessionNotFound
	}

	local := filepath.Join(s.storageRoot, filepath.FromSlash(result.BestFrame))
	if !fileExists(local) {
		return "", verification.ErrSessionNotFound
	}
	return local, nil
}
