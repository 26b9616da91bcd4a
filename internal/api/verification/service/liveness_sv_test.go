package verificationService

import (
	"testing"

	"VerifyGolang/internal/entity"
	"VerifyGolang/pkg/detector"
	"VerifyGolang/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

// livenessFace builds one frontal face at the center of a 640x480 frame,
// with landmarks in the detector's letterboxed space.
func livenessFace(noseShiftX float64) detector.Face {
	lb := geometry.LetterboxInto(640, 480, detector.InputSize(detector.FaceDetection))
	box := lb.MapForward(geometry.Rect{X1: 270, Y1: 190, X2: 370, Y2: 290})

	fwd := func(x, y float64) geometry.Point {
		return geometry.Point{X: x*lb.Scale + float64(lb.PadX), Y: y*lb.Scale + float64(lb.PadY)}
	}

	// eyes 50px apart; the frontal nose sits on the adjusted eye midline
	return detector.Face{
		Box: detector.Box{Rect: box, Conf: 0.97},
		Landmarks: &detector.Landmarks{
			LeftEye:  fwd(295, 220),
			RightEye: fwd(345, 220),
			Nose:     fwd(320+noseShiftX, 235),
		},
	}
}

func centerEllipse() *geometry.Ellipse {
	return &geometry.Ellipse{Cx: 320, Cy: 240, Rx: 120, Ry: 150}
}

func TestAnalyzeLivenessFramePass(t *testing.T) {
	det := &fakeDetector{
		faces:   []detector.Face{livenessFace(0)},
		spoof:   &detector.SpoofVerdict{IsReal: true, Score: 0.95},
		glasses: &detector.GlassesVerdict{Top1: "no_glasses", Conf: 0.9},
	}
	svc := newTestService(det)
	frame := testJPEG(t, 640, 480, 128)

	report, err := svc.AnalyzeLivenessFrame(context.Background(), "req-1", frame, centerEllipse())
	require.NoError(t, err)

	assert.True(t, report.FaceDetected)
	assert.True(t, report.OneFace)
	assert.True(t, report.InsideEllipse)
	require.NotNil(t, report.FrontFacing)
	assert.True(t, *report.FrontFacing)
	require.NotNil(t, report.SpoofIsReal)
	assert.True(t, *report.SpoofIsReal)
	require.NotNil(t, report.GlassesDetected)
	assert.False(t, *report.GlassesDetected)
	assert.True(t, report.AllGatesPass())
}

func TestAnalyzeLivenessFrameNoEllipseControl(t *testing.T) {
	det := &fakeDetector{
		faces: []detector.Face{livenessFace(0)},
	}
	svc := newTestService(det)
	frame := testJPEG(t, 640, 480, 128)

	report, err := svc.AnalyzeLivenessFrame(context.Background(), "req-1", frame, nil)
	require.NoError(t, err)

	assert.True(t, report.FaceDetected)
	assert.False(t, report.InsideEllipse)
	assert.False(t, report.AllGatesPass())
	assert.Equal(t, 0, det.spoofCalls, "spoof must not run before the ellipse gate holds")
}

func TestAnalyzeLivenessFrameSpoofBlocks(t *testing.T) {
	det := &fakeDetector{
		faces: []detector.Face{livenessFace(0)},
		spoof: &detector.SpoofVerdict{IsReal: false, Score: 0.2},
	}
	svc := newTestService(det)
	frame := testJPEG(t, 640, 480, 128)

	report, err := svc.AnalyzeLivenessFrame(context.Background(), "req-1", frame, centerEllipse())
	require.NoError(t, err)

	require.NotNil(t, report.SpoofIsReal)
	assert.False(t, *report.SpoofIsReal)
	assert.Equal(t, "spoof", report.SpoofStatus)
	assert.False(t, report.AllGatesPass())
	assert.Equal(t, 0, det.glassesCalls, "glasses must not run after a spoof verdict")
}

func TestAnalyzeLivenessFrameGuidance(t *testing.T) {
	det := &fakeDetector{
		faces: []detector.Face{livenessFace(12)}, // nose right of midline, past tolerance
	}
	svc := newTestService(det)
	frame := testJPEG(t, 640, 480, 128)

	report, err := svc.AnalyzeLivenessFrame(context.Background(), "req-1", frame, centerEllipse())
	require.NoError(t, err)

	require.NotNil(t, report.FrontFacing)
	assert.False(t, *report.FrontFacing)
	assert.Equal(t, "Move LEFT", report.FrontGuidance)
	assert.Equal(t, 0, det.spoofCalls)
}

func TestAnalyzeLivenessFrameMultipleFaces(t *testing.T) {
	lb := geometry.LetterboxInto(640, 480, detector.InputSize(detector.FaceDetection))
	small := detector.Face{Box: detector.Box{
		Rect: lb.MapForward(geometry.Rect{X1: 10, Y1: 10, X2: 40, Y2: 50}),
		Conf: 0.8,
	}}

	det := &fakeDetector{
		faces:   []detector.Face{small, livenessFace(0)},
		spoof:   &detector.SpoofVerdict{IsReal: true, Score: 0.9},
		glasses: &detector.GlassesVerdict{Top1: "no_glasses", Conf: 0.8},
	}
	svc := newTestService(det)
	frame := testJPEG(t, 640, 480, 128)

	report, err := svc.AnalyzeLivenessFrame(context.Background(), "req-1", frame, centerEllipse())
	require.NoError(t, err)

	assert.Equal(t, 2, report.NumFaces)
	assert.False(t, report.OneFace)
	// the larger, centered face drives the remaining gates
	assert.True(t, report.InsideEllipse)
}

func TestAnalyzeLivenessFrameGlassesWorn(t *testing.T) {
	det := &fakeDetector{
		faces:   []detector.Face{livenessFace(0)},
		spoof:   &detector.SpoofVerdict{IsReal: true, Score: 0.9},
		glasses: &detector.GlassesVerdict{Top1: "sun_glasses", Conf: 0.85},
	}
	svc := newTestService(det)
	frame := testJPEG(t, 640, 480, 128)

	report, err := svc.AnalyzeLivenessFrame(context.Background(), "req-1", frame, centerEllipse())
	require.NoError(t, err)

	require.NotNil(t, report.GlassesDetected)
	assert.True(t, *report.GlassesDetected)
	assert.False(t, report.AllGatesPass())
}

func TestAnalyzeLivenessFrameFaceCheckDisabled(t *testing.T) {
	t.Setenv("CHECK_FACE", "0")
	t.Setenv("CHECK_ELLIPSE", "0")

	det := &fakeDetector{}
	svc := newTestService(det)
	frame := testJPEG(t, 640, 480, 128)

	report, err := svc.AnalyzeLivenessFrame(context.Background(), "req-1", frame, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, det.faceCalls, "detector must not be called when the face check is off")
	assert.True(t, report.FaceDetected)
	assert.Equal(t, 1, report.NumFaces)
	assert.True(t, report.OneFace)
	assert.Equal(t, entity.BrightnessOK, report.BrightnessStatus)
	assert.True(t, report.AllGatesPass())
}

func TestAnalyzeLivenessFrameFaceCheckDisabledEllipseCannotPass(t *testing.T) {
	t.Setenv("CHECK_FACE", "0")

	det := &fakeDetector{}
	svc := newTestService(det)
	frame := testJPEG(t, 640, 480, 128)

	report, err := svc.AnalyzeLivenessFrame(context.Background(), "req-1", frame, centerEllipse())
	require.NoError(t, err)

	// the ellipse gate needs a face box; without the detector it stays shut
	assert.Equal(t, 0, det.faceCalls)
	assert.True(t, report.FaceDetected)
	assert.False(t, report.InsideEllipse)
	assert.False(t, report.AllGatesPass())
}
