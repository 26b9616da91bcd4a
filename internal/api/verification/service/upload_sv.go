package verificationService

import (
	"os"
	"path/filepath"
	"strings"

	"VerifyGolang/internal/api/verification"
	contextPkg "VerifyGolang/pkg/context"
	"VerifyGolang/pkg/detector"
	"VerifyGolang/pkg/geometry"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

// SaveIDStill persists the captured front still, crops the document
// portrait for later matching, and best-effort extracts the printed fields.
// A still without a croppable face is saved but leaves the front milestone
// unset; the client re-captures.
func (s *verificationService) SaveIDStill(ctx context.Context, reqID string, data []byte) (verification.UploadStillResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.repo.NewClient(false)
	if err != nil {
		return verification.UploadStillResponse{}, err
	}
	if _, err := repo.Requests.GetRequestByID(ctx, reqID); err != nil {
		return verification.UploadStillResponse{}, err
	}
	if err := s.ensureSessionDirs(reqID); err != nil {
		return verification.UploadStillResponse{}, err
	}

	enhanced, wasEnhanced := s.enhancer.Enhance(ctx, data)

	stillPath := filepath.Join(s.sessionDir(reqID), dirIDFront, newArtifactName(".jpg"))
	if err := os.WriteFile(stillPath, enhanced, 0o644); err != nil {
		return verification.UploadStillResponse{}, err
	}

	resp := verification.UploadStillResponse{
		ReqID:    reqID,
		Saved:    true,
		Enhanced: wasEnhanced,
	}

	face, ok := s.cropDocumentFace(enhanced)
	if !ok {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"req_id":     reqID,
		}).Warn("No croppable face on uploaded front still")
		return resp, nil
	}

	facePath := filepath.Join(s.sessionDir(reqID), fileCroppedFace)
	if err := os.WriteFile(facePath, face, 0o644); err != nil {
		return verification.UploadStillResponse{}, err
	}
	resp.FaceCropped = true

	if fields, err := s.gemini.ExtractDocumentFields(ctx, enhanced); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"req_id":     reqID,
			"error":      err.Error(),
		}).Warn("Document field extraction failed")
	} else {
		resp.DocumentFields = &fields
	}

	if err := repo.Requests.SetIDFrontVerified(ctx, reqID, true); err != nil {
		return verification.UploadStillResponse{}, err
	}
	_ = s.redis.InvalidateState(ctx, reqID)

	return resp, nil
}

// cropDocumentFace finds the largest face on the still and crops it with
// padding around the box, clamped to the image.
func (s *verificationService) cropDocumentFace(still []byte) ([]byte, bool) {
	w, h, err := s.utils.ImageDims(still)
	if err != nil {
		return nil, false
	}

	faces, err := s.detector.DetectFaces(still)
	if err != nil || len(faces) == 0 {
		return nil, false
	}

	lb := geometry.LetterboxInto(w, h, detector.InputSize(detector.FaceDetection))
	largest := lb.MapBack(faces[0].Rect)
	for _, f := range faces[1:] {
		mapped := lb.MapBack(f.Rect)
		if mapped.Area() > largest.Area() {
			largest = mapped
		}
	}

	padX := largest.W() * s.th.FaceCropPad
	padY := largest.H() * s.th.FaceCropPad
	padded := geometry.Rect{
		X1: maxf(0, largest.X1-padX),
		Y1: maxf(0, largest.Y1-padY),
		X2: minf(float64(w-1), largest.X2+padX),
		Y2: minf(float64(h-1), largest.Y2+padY),
	}

	crop, err := s.utils.CropJPEG(still, padded)
	if err != nil {
		return nil, false
	}
	return crop, true
}

func (s *verificationService) SaveIDBackStill(ctx context.Context, reqID string, data []byte) (verification.UploadStillResponse, error) {
	repo, err := s.repo.NewClient(false)
	if err != nil {
		return verification.UploadStillResponse{}, err
	}
	if _, err := repo.Requests.GetRequestByID(ctx, reqID); err != nil {
		return verification.UploadStillResponse{}, err
	}
	if err := s.ensureSessionDirs(reqID); err != nil {
		return verification.UploadStillResponse{}, err
	}

	enhanced, wasEnhanced := s.enhancer.Enhance(ctx, data)

	stillPath := filepath.Join(s.sessionDir(reqID), dirIDBack, newArtifactName(".jpg"))
	if err := os.WriteFile(stillPath, enhanced, 0o644); err != nil {
		return verification.UploadStillResponse{}, err
	}

	if err := repo.Requests.SetIDBackVerified(ctx, reqID, true); err != nil {
		return verification.UploadStillResponse{}, err
	}
	_ = s.redis.InvalidateState(ctx, reqID)

	return verification.UploadStillResponse{
		ReqID:    reqID,
		Saved:    true,
		Enhanced: wasEnhanced,
	}, nil
}

// SaveLiveClip persists the raw recording, normalizes it into the canonical
// upright mp4, and only then marks the video milestone. The deepfake job is
// kicked off against the normalized file.
func (s *verificationService) SaveLiveClip(ctx context.Context, reqID string, filename string, data []byte) (verification.UploadClipResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	repo, err := s.repo.NewClient(false)
	if err != nil {
		return verification.UploadClipResponse{}, err
	}
	if _, err := repo.Requests.GetRequestByID(ctx, reqID); err != nil {
		return verification.UploadClipResponse{}, err
	}
	if err := s.ensureSessionDirs(reqID); err != nil {
		return verification.UploadClipResponse{}, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".webm"
	}
	rawPath := filepath.Join(s.sessionDir(reqID), dirRecordings, newArtifactName(ext))
	if err := os.WriteFile(rawPath, data, 0o644); err != nil {
		return verification.UploadClipResponse{}, err
	}

	if err := s.normalizeClip(ctx, reqID, rawPath); err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"req_id":     reqID,
			"error":      err.Error(),
		}).Error("Recording normalization failed")
		return verification.UploadClipResponse{}, verification.ErrNormalizationFailed
	}

	if err := repo.Requests.SetVideoVerified(ctx, reqID, true); err != nil {
		return verification.UploadClipResponse{}, err
	}
	_ = s.redis.InvalidateState(ctx, reqID)

	s.submitDeepfakeJob(reqID, filepath.Join(s.sessionDir(reqID), fileVideo))

	return verification.UploadClipResponse{
		ReqID:         reqID,
		VideoVerified: true,
	}, nil
}

// normalizeClip produces the session's canonical video.mp4 from a raw
// recording.
func (s *verificationService) normalizeClip(ctx context.Context, reqID string, rawPath string) error {
	outPath, err := s.normalizer.Normalize(ctx, rawPath, s.sessionDir(reqID))
	if err != nil {
		return err
	}

	canonical := filepath.Join(s.sessionDir(reqID), fileVideo)
	if outPath == canonical {
		return nil
	}
	return os.Rename(outPath, canonical)
}

func newArtifactName(ext string) string {
	return strings.ReplaceAll(uuid.New().String(), "-", "") + ext
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
