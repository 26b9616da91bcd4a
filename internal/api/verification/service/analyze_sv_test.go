package verificationService

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"testing"

	"VerifyGolang/internal/entity"
	"VerifyGolang/pkg/detector"
	"VerifyGolang/pkg/geometry"
	"VerifyGolang/pkg/utils"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

type fakeDetector struct {
	cards   []detector.Box
	faces   []detector.Face
	lines   []detector.TextBox
	spoof   *detector.SpoofVerdict
	glasses *detector.GlassesVerdict
	match   *detector.MatchVerdict

	cardCalls    int
	faceCalls    int
	textCalls    int
	spoofCalls   int
	glassesCalls int
}

func (f *fakeDetector) DetectIDCards(img []byte) ([]detector.Box, error) {
	f.cardCalls++
	return f.cards, nil
}

func (f *fakeDetector) DetectFaces(img []byte) ([]detector.Face, error) {
	f.faceCalls++
	return f.faces, nil
}

func (f *fakeDetector) ReadText(img []byte) ([]detector.TextBox, error) {
	f.textCalls++
	return f.lines, nil
}

func (f *fakeDetector) ClassifySpoof(img []byte) (*detector.SpoofVerdict, error) {
	f.spoofCalls++
	return f.spoof, nil
}

func (f *fakeDetector) ClassifyGlasses(img []byte) (*detector.GlassesVerdict, error) {
	f.glassesCalls++
	return f.glasses, nil
}

func (f *fakeDetector) MatchFace(reference []byte, frames [][]byte) (*detector.MatchVerdict, error) {
	return f.match, nil
}

func (f *fakeDetector) IsConnected(detector.Capability) bool { return true }
func (f *fakeDetector) Reconnect(detector.Capability) error  { return nil }
func (f *fakeDetector) CloseConnections()                    {}

func testJPEG(t *testing.T, w, h int, gray uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	c := color.RGBA{R: gray, G: gray, B: gray, A: 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func newTestService(det detector.IDetector) *verificationService {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return &verificationService{
		log:      logger,
		detector: det,
		utils:    utils.New(),
		enhancer: passthroughEnhancer{},
		th:       ThresholdsFromEnv(),
		jobGen:   make(map[string]int),
	}
}

// guideFor mirrors the analyzer's guide placement for a frame size.
func guideFor(w, h int, th Thresholds) geometry.Rect {
	return geometry.CenterRect(w, h, th.GuideWRatio, th.GuideHRatio)
}

func TestAnalyzeIDFrameNoCard(t *testing.T) {
	det := &fakeDetector{}
	svc := newTestService(det)
	frame := testJPEG(t, 640, 480, 128)

	report, err := svc.AnalyzeIDFrame(context.Background(), "req-1", frame, 7)
	require.NoError(t, err)

	assert.Equal(t, int64(7), report.AnalyzedSeq)
	assert.False(t, report.IDCardDetected)
	assert.False(t, report.Verified)
	assert.Equal(t, 1, det.cardCalls)
	assert.Equal(t, 0, det.faceCalls, "later gates must not run when no card is detected")
	assert.Equal(t, 0, det.textCalls)
}

func TestAnalyzeIDFrameCardTooSmall(t *testing.T) {
	det := &fakeDetector{}
	svc := newTestService(det)
	frame := testJPEG(t, 640, 480, 128)

	guide := guideFor(640, 480, svc.th)
	roiLB := geometry.LetterboxInto(int(guide.W()), int(guide.H()), detector.InputSize(detector.IDCardDetection))
	det.cards = []detector.Box{{
		Rect: roiLB.MapForward(geometry.Rect{X1: 0, Y1: 0, X2: 100, Y2: 60}),
		Conf: 0.9,
	}}

	report, err := svc.AnalyzeIDFrame(context.Background(), "req-1", frame, 1)
	require.NoError(t, err)

	assert.True(t, report.IDCardDetected)
	assert.False(t, report.IDSizeOK)
	assert.False(t, report.Verified)
	assert.Equal(t, 0, det.faceCalls, "face gate must not run when the card is too small")
}

func TestAnalyzeIDFrameSizeRatioIsGuideCoverage(t *testing.T) {
	det := &fakeDetector{}
	svc := newTestService(det)
	frame := testJPEG(t, 640, 480, 128)

	guide := guideFor(640, 480, svc.th)
	roiLB := geometry.LetterboxInto(int(guide.W()), int(guide.H()), detector.InputSize(detector.IDCardDetection))
	// 240x151: wide enough that a width ratio would clear the cover gate
	// (240/608 = 0.39), but the covered guide area is only 0.28
	cardROI := geometry.Rect{X1: 100, Y1: 30, X2: 340, Y2: 181}
	det.cards = []detector.Box{{Rect: roiLB.MapForward(cardROI), Conf: 0.9}}

	report, err := svc.AnalyzeIDFrame(context.Background(), "req-1", frame, 1)
	require.NoError(t, err)

	assert.True(t, report.IDCardDetected)
	assert.True(t, report.IDOverlapOK)
	require.NotNil(t, report.IDSizeRatio)
	wantRatio := cardROI.Area() / guide.Area()
	assert.InDelta(t, wantRatio, *report.IDSizeRatio, 0.01)
	assert.False(t, report.IDSizeOK)
	assert.False(t, report.Verified)
	assert.Equal(t, 0, det.faceCalls, "face gate must not run when the card covers too little of the guide")
}

func TestAnalyzeIDFrameBadAspect(t *testing.T) {
	det := &fakeDetector{}
	svc := newTestService(det)
	frame := testJPEG(t, 640, 480, 128)

	guide := guideFor(640, 480, svc.th)
	roiLB := geometry.LetterboxInto(int(guide.W()), int(guide.H()), detector.InputSize(detector.IDCardDetection))
	// wide enough to clear the cover gate, but square
	det.cards = []detector.Box{{
		Rect: roiLB.MapForward(geometry.Rect{X1: 0, Y1: 0, X2: 214, Y2: 214}),
		Conf: 0.9,
	}}

	report, err := svc.AnalyzeIDFrame(context.Background(), "req-1", frame, 1)
	require.NoError(t, err)

	assert.True(t, report.IDCardDetected)
	assert.False(t, report.IDSizeOK)
	assert.Equal(t, 0, det.faceCalls)
}

func TestAnalyzeIDFrameFullPass(t *testing.T) {
	det := &fakeDetector{}
	svc := newTestService(det)
	frame := testJPEG(t, 640, 480, 128)

	guide := guideFor(640, 480, svc.th)
	roiLB := geometry.LetterboxInto(int(guide.W()), int(guide.H()), detector.InputSize(detector.IDCardDetection))
	// card shape, occupying a good share of a 608x216 guide
	cardROI := geometry.Rect{X1: 100, Y1: 0, X2: 441, Y2: 215}
	det.cards = []detector.Box{{Rect: roiLB.MapForward(cardROI), Conf: 0.95}}

	cardW := int(cardROI.W())
	cardH := int(cardROI.H())
	faceLB := geometry.LetterboxInto(cardW, cardH, detector.InputSize(detector.FaceDetection))
	det.faces = []detector.Face{{
		Box: detector.Box{
			Rect: faceLB.MapForward(geometry.Rect{X1: 100, Y1: 50, X2: 180, Y2: 150}),
			Conf: 0.9,
		},
	}}

	det.lines = []detector.TextBox{
		{Text: "NIK 3171234567890123", Conf: 0.9, Center: geometry.Point{X: 20, Y: 20}},
		{Text: "NAMA JOHN DOE", Conf: 0.85, Center: geometry.Point{X: 30, Y: 60}},
		{Text: "JENIS KELAMIN LAKI-LAKI", Conf: 0.8, Center: geometry.Point{X: 30, Y: 90}},
	}

	report, err := svc.AnalyzeIDFrame(context.Background(), "req-1", frame, 42)
	require.NoError(t, err)

	assert.True(t, report.IDCardDetected)
	assert.True(t, report.IDOverlapOK)
	assert.True(t, report.IDSizeOK)
	assert.True(t, report.FaceOnID)
	assert.True(t, report.OCROK)
	assert.True(t, report.Verified)
	assert.Equal(t, int64(42), report.AnalyzedSeq)

	// the portrait box is reported in frame coordinates, offset by the
	// card-guide intersection origin
	require.Len(t, report.LargestBBox, 4)
	assert.InDelta(t, guide.X1+cardROI.X1+100, report.LargestBBox[0], 1.0)
	assert.InDelta(t, guide.Y1+cardROI.Y1+50, report.LargestBBox[1], 1.0)

	require.NotNil(t, report.OCRHits)
	assert.GreaterOrEqual(t, *report.OCRHits, 2)
	require.NotNil(t, report.OCRInsideRatio)
	assert.InDelta(t, 1.0, *report.OCRInsideRatio, 1e-9)
}

func TestAnalyzeIDFrameFaceTooSmall(t *testing.T) {
	det := &fakeDetector{}
	svc := newTestService(det)
	frame := testJPEG(t, 640, 480, 128)

	guide := guideFor(640, 480, svc.th)
	roiLB := geometry.LetterboxInto(int(guide.W()), int(guide.H()), detector.InputSize(detector.IDCardDetection))
	cardROI := geometry.Rect{X1: 100, Y1: 0, X2: 441, Y2: 215}
	det.cards = []detector.Box{{Rect: roiLB.MapForward(cardROI), Conf: 0.95}}

	faceLB := geometry.LetterboxInto(int(cardROI.W()), int(cardROI.H()), detector.InputSize(detector.FaceDetection))
	// a sliver, well under the portrait area floor
	det.faces = []detector.Face{{
		Box: detector.Box{
			Rect: faceLB.MapForward(geometry.Rect{X1: 10, Y1: 10, X2: 18, Y2: 20}),
			Conf: 0.9,
		},
	}}

	report, err := svc.AnalyzeIDFrame(context.Background(), "req-1", frame, 1)
	require.NoError(t, err)

	assert.False(t, report.FaceOnID)
	assert.False(t, report.Verified)
	assert.Equal(t, 0, det.textCalls, "OCR must not run without a portrait on the card")
}

func TestAnalyzeIDBackFrameTooDark(t *testing.T) {
	det := &fakeDetector{}
	svc := newTestService(det)
	frame := testJPEG(t, 640, 480, 10)

	guide := guideFor(640, 480, svc.th)
	roiLB := geometry.LetterboxInto(int(guide.W()), int(guide.H()), detector.InputSize(detector.IDCardDetection))
	det.cards = []detector.Box{{
		Rect: roiLB.MapForward(geometry.Rect{X1: 100, Y1: 0, X2: 441, Y2: 215}),
		Conf: 0.9,
	}}

	report, err := svc.AnalyzeIDBackFrame(context.Background(), "req-1", frame)
	require.NoError(t, err)

	assert.Equal(t, entity.BrightnessTooDark, report.BrightnessStatus)
	assert.True(t, report.IDCardDetected)
	require.NotNil(t, report.BrightnessMean)
	assert.Less(t, *report.BrightnessMean, svc.th.BrightnessMin)
}

func TestScoreText(t *testing.T) {
	svc := newTestService(&fakeDetector{})
	crop := geometry.Rect{X1: 100, Y1: 100, X2: 400, Y2: 300}
	guide := geometry.Rect{X1: 50, Y1: 50, X2: 450, Y2: 350}

	lines := []detector.TextBox{
		{Text: "PROVINSI DKI JAKARTA", Conf: 0.9, Center: geometry.Point{X: 50, Y: 20}},
		{Text: "NIK 3171234567890123", Conf: 0.8, Center: geometry.Point{X: 50, Y: 60}},
		// centroid lands outside the guide
		{Text: "noise", Conf: 0.4, Center: geometry.Point{X: 360, Y: 190}},
	}

	inside, hits, meanConf := svc.scoreText(lines, crop, guide)

	assert.InDelta(t, 2.0/3.0, inside, 1e-9)
	assert.GreaterOrEqual(t, hits, 2)
	assert.InDelta(t, (0.9+0.8+0.4)/3, meanConf, 1e-9)
}

func TestBrightnessStatus(t *testing.T) {
	svc := newTestService(&fakeDetector{})

	assert.Equal(t, entity.BrightnessTooDark, svc.brightnessStatus(svc.th.BrightnessMin-1))
	assert.Equal(t, entity.BrightnessOK, svc.brightnessStatus((svc.th.BrightnessMin+svc.th.BrightnessMax)/2))
	assert.Equal(t, entity.BrightnessTooBright, svc.brightnessStatus(svc.th.BrightnessMax+1))
}
