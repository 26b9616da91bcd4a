package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCenterRect(t *testing.T) {
	r := CenterRect(1000, 500, 0.95, 0.45)
	assert.InDelta(t, 25.0, r.X1, 1e-9)
	assert.InDelta(t, 137.5, r.Y1, 1e-9)
	assert.InDelta(t, 950.0, r.W(), 1e-9)
	assert.InDelta(t, 225.0, r.H(), 1e-9)
}

func TestIntersectDisjointIsZero(t *testing.T) {
	guide := Rect{X1: 100, Y1: 100, X2: 500, Y2: 300}
	card := Rect{X1: 600, Y1: 400, X2: 900, Y2: 600}

	inter, frac, area := Intersect(card, guide)
	assert.Nil(t, inter)
	assert.Zero(t, frac)
	assert.Zero(t, area)
}

func TestIntersectPartialOverlap(t *testing.T) {
	guide := Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	card := Rect{X1: 50, Y1: 0, X2: 150, Y2: 100}

	inter, frac, area := Intersect(card, guide)
	require.NotNil(t, inter)
	assert.InDelta(t, 5000.0, area, 1e-6)
	assert.InDelta(t, 0.5, frac, 1e-4)
}

func TestIntersectFullyInside(t *testing.T) {
	guide := Rect{X1: 0, Y1: 0, X2: 200, Y2: 200}
	card := Rect{X1: 20, Y1: 20, X2: 120, Y2: 80}

	_, frac, _ := Intersect(card, guide)
	assert.InDelta(t, 1.0, frac, 1e-4)
}

func TestAspectOK(t *testing.T) {
	ok, ar := AspectOK(158.6, 100, 1.586, 0.18)
	assert.True(t, ok)
	assert.InDelta(t, 1.586, ar, 1e-9)

	ok, _ = AspectOK(100, 100, 1.586, 0.18)
	assert.False(t, ok, "square card must fail the ratio gate")

	ok, _ = AspectOK(0, 100, 1.586, 0.18)
	assert.False(t, ok)
}

func TestLetterboxRoundTripCenter(t *testing.T) {
	// A 1080x1920 portrait frame letterboxed into 640x640: the letterboxed
	// center must map back to the source center exactly.
	lb := LetterboxInto(1080, 1920, 640)

	center := Rect{X1: 320, Y1: 320, X2: 320, Y2: 320}
	back := lb.MapBack(center)

	assert.InDelta(t, 540.0, back.X1, 0.5)
	assert.InDelta(t, 960.0, back.Y1, 0.5)
}

func TestLetterboxForwardBackIdentity(t *testing.T) {
	lb := LetterboxInto(1920, 1080, 640)
	src := Rect{X1: 100, Y1: 200, X2: 800, Y2: 700}

	got := lb.MapBack(lb.MapForward(src))
	assert.InDelta(t, src.X1, got.X1, 1e-6)
	assert.InDelta(t, src.Y1, got.Y1, 1e-6)
	assert.InDelta(t, src.X2, got.X2, 1e-6)
	assert.InDelta(t, src.Y2, got.Y2, 1e-6)
}

func TestLetterboxMapBackClamps(t *testing.T) {
	lb := LetterboxInto(1080, 1920, 640)

	// A box in the horizontal padding band maps outside the source and must
	// clamp to the frame bounds.
	out := lb.MapBack(Rect{X1: -50, Y1: 0, X2: 1000, Y2: 640})
	assert.GreaterOrEqual(t, out.X1, 0.0)
	assert.LessOrEqual(t, out.X2, float64(1079))
	assert.GreaterOrEqual(t, out.Y1, 0.0)
	assert.LessOrEqual(t, out.Y2, float64(1919))
}

func TestEllipseContains(t *testing.T) {
	e := Ellipse{Cx: 100, Cy: 100, Rx: 50, Ry: 80}
	assert.True(t, e.Contains(100, 100))
	assert.True(t, e.Contains(149, 100))
	assert.False(t, e.Contains(151, 100))
	assert.False(t, e.Contains(100, 181))
}

func TestEllipseFaceInsideInsetCorners(t *testing.T) {
	e := Ellipse{Cx: 500, Cy: 500, Rx: 300, Ry: 400}

	// Box whose raw corners poke out horizontally but whose 12%-inset
	// corners are inside: must pass.
	face := Rect{X1: 220, Y1: 300, X2: 780, Y2: 700}
	assert.False(t, e.Contains(face.X1, face.Y1), "raw corner is outside")
	assert.True(t, e.FaceInside(face, 0.12))

	// Fully outside box fails.
	outside := Rect{X1: 900, Y1: 900, X2: 1100, Y2: 1100}
	assert.False(t, e.FaceInside(outside, 0.12))
}

func TestDist(t *testing.T) {
	assert.InDelta(t, 5.0, Dist(Point{X: 0, Y: 0}, Point{X: 3, Y: 4}), 1e-9)
}
