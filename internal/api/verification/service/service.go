package verificationService

import (
	"os"
	"strconv"
	"sync"

	"VerifyGolang/internal/api/verification"
	verificationRepository "VerifyGolang/internal/api/verification/repository"
	"VerifyGolang/internal/entity"
	"VerifyGolang/pkg/detector"
	"VerifyGolang/pkg/ffmpeg"
	"VerifyGolang/pkg/gemini"
	"VerifyGolang/pkg/geometry"
	"VerifyGolang/pkg/redis"
	"VerifyGolang/pkg/s3"
	"VerifyGolang/pkg/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type IVerificationService interface {
	CreateSession(ctx context.Context) (string, error)
	GetSessionState(ctx context.Context, reqID string) (verification.SessionStateResponse, error)
	ManualDecision(ctx context.Context, reqID string, decision string) (verification.ManualDecisionResponse, error)

	AnalyzeIDFrame(ctx context.Context, reqID string, frame []byte, seq int64) (*entity.IDFrameReport, error)
	AnalyzeIDBackFrame(ctx context.Context, reqID string, frame []byte) (*entity.IDBackFrameReport, error)
	AnalyzeLivenessFrame(ctx context.Context, reqID string, frame []byte, ellipse *geometry.Ellipse) (*entity.LivenessFrameReport, error)

	SaveIDStill(ctx context.Context, reqID string, data []byte) (verification.UploadStillResponse, error)
	SaveIDBackStill(ctx context.Context, reqID string, data []byte) (verification.UploadStillResponse, error)
	SaveLiveClip(ctx context.Context, reqID string, filename string, data []byte) (verification.UploadClipResponse, error)

	VerifySession(ctx context.Context, reqID string) (entity.MatchResult, error)
	ReviewBundle(ctx context.Context, reqID string) (verification.ReviewResponse, error)
	BestMatchImagePath(ctx context.Context, reqID string) (string, error)

	Checks() entity.LivenessChecks
	StreakLengths() (int, int)
}

// Enhancer is the optional pre-save image enhancement hook. The default
// implementation passes the image through untouched.
type Enhancer interface {
	Enhance(ctx context.Context, img []byte) ([]byte, bool)
}

type passthroughEnhancer struct{}

func (passthroughEnhancer) Enhance(_ context.Context, img []byte) ([]byte, bool) {
	return img, false
}

// Thresholds are the gate tuning knobs, read from the environment with the
// production defaults.
type Thresholds struct {
	GuideWRatio float64
	GuideHRatio float64

	OverlapMin    float64
	GuideCoverMin float64
	AreaFracMin   float64
	AspectRatio   float64
	AspectTol     float64
	FaceOnIDMin   float64

	OCRInsideMin   float64
	FuzzyThreshold int
	OCRMinHits     int
	OCRConfMin     float64

	BrightnessMin float64
	BrightnessMax float64
	GlassesMin    float64

	FrontalHorizTol  float64
	FrontalVertTol   float64
	FrontalEyeMidAdj float64
	EllipseInset     float64

	FaceCropPad float64

	StreakN int

	Checks entity.LivenessChecks
}

func ThresholdsFromEnv() Thresholds {
	return Thresholds{
		GuideWRatio: envFloat("ID_GUIDE_W_RATIO", 0.95),
		GuideHRatio: envFloat("ID_GUIDE_H_RATIO", 0.45),

		OverlapMin:    envFloat("ID_OVERLAP_MIN", 0.60),
		GuideCoverMin: envFloat("ID_GUIDE_COVER_MIN", 0.30),
		AreaFracMin:   envFloat("ID_AREA_FRAC_MIN", 0.02),
		AspectRatio:   envFloat("ID_ASPECT_RATIO", 1.586),
		AspectTol:     envFloat("ID_ASPECT_TOL", 0.18),
		FaceOnIDMin:   envFloat("ID_FACE_AREA_MIN", 0.02),

		OCRInsideMin:   envFloat("OCR_INSIDE_MIN", 0.90),
		FuzzyThreshold: envInt("OCR_FUZZY_THRESHOLD", 75),
		OCRMinHits:     envInt("OCR_MIN_HITS", 2),
		OCRConfMin:     envFloat("OCR_CONF_MIN", 0.55),

		BrightnessMin: envFloat("BRIGHTNESS_MIN", 50),
		BrightnessMax: envFloat("BRIGHTNESS_MAX", 200),
		GlassesMin:    envFloat("GLASSES_CONF_MIN", 0.60),

		FrontalHorizTol:  envFloat("FRONTAL_HORIZ_TOL", 0.15),
		FrontalVertTol:   envFloat("FRONTAL_VERT_TOL", 0.2),
		FrontalEyeMidAdj: envFloat("FRONTAL_EYE_MID_ADJ", 0.3),
		EllipseInset:     envFloat("ELLIPSE_CORNER_INSET", 0.12),

		FaceCropPad: envFloat("FACE_CROP_PAD", 0.20),

		StreakN: envInt("ID_STREAK_N", 3),

		Checks: entity.LivenessChecks{
			Face:       envBool("CHECK_FACE", true),
			Ellipse:    envBool("CHECK_ELLIPSE", true),
			Brightness: envBool("CHECK_BRIGHTNESS", true),
			Frontal:    envBool("CHECK_FRONTAL", true),
			Spoof:      envBool("CHECK_SPOOF", true),
			Glasses:    envBool("CHECK_GLASSES", true),
		},
	}
}

func envFloat(key string, def float64) float64 {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return def
}

func envInt(key string, def int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	}
	return def
}

type verificationService struct {
	log        *logrus.Logger
	repo       verificationRepository.Repository
	detector   detector.IDetector
	gemini     gemini.IGemini
	s3Client   s3.ItfS3
	redis      redis.IRedis
	normalizer ffmpeg.INormalizer
	utils      utils.IUtils
	enhancer   Enhancer

	th          Thresholds
	storageRoot string

	// per-session deepfake job generation, bumped on every submit
	jobsMu sync.Mutex
	jobGen map[string]int
}

func New(
	log *logrus.Logger,
	repo verificationRepository.Repository,
	det detector.IDetector,
	geminiClient gemini.IGemini,
	s3Client s3.ItfS3,
	redisServer redis.IRedis,
	normalizer ffmpeg.INormalizer,
	utilsPkg utils.IUtils,
) IVerificationService {
	storageRoot := os.Getenv("STORAGE_ROOT")
	if storageRoot == "" {
		storageRoot = "./storage/sessions"
	}

	return &verificationService{
		log:         log,
		repo:        repo,
		detector:    det,
		gemini:      geminiClient,
		s3Client:    s3Client,
		redis:       redisServer,
		normalizer:  normalizer,
		utils:       utilsPkg,
		enhancer:    passthroughEnhancer{},
		th:          ThresholdsFromEnv(),
		storageRoot: storageRoot,
		jobGen:      make(map[string]int),
	}
}

func (s *verificationService) Checks() entity.LivenessChecks {
	return s.th.Checks
}

// StreakLengths returns the debounce lengths for the ID gates and the OCR
// gate. OCR flips faster since text recognition is the noisiest signal.
func (s *verificationService) StreakLengths() (int, int) {
	n := s.th.StreakN
	if n < 1 {
		n = 1
	}
	ocr := n / 2
	if ocr < 1 {
		ocr = 1
	}
	return n, ocr
}
