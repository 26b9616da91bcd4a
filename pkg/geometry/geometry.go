package geometry

import "math"

// Rect is an axis-aligned box in source-frame pixel space, x1y1 top-left.
type Rect struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (r Rect) W() float64 { return r.X2 - r.X1 }
func (r Rect) H() float64 { return r.Y2 - r.Y1 }

func (r Rect) Area() float64 {
	return math.Max(0, r.W()) * math.Max(0, r.H())
}

func (r Rect) XYXY() []float64 {
	return []float64{r.X1, r.Y1, r.X2, r.Y2}
}

// CenterRect returns a rectangle centered in a w*h frame at the given
// width/height fractions. This is the guide region the user aligns to and
// the only region detection runs in.
func CenterRect(w, h int, wRatio, hRatio float64) Rect {
	rw := float64(w) * wRatio
	rh := float64(h) * hRatio
	x := (float64(w) - rw) / 2.0
	y := (float64(h) - rh) / 2.0
	return Rect{X1: x, Y1: y, X2: x + rw, Y2: y + rh}
}

// Intersect returns the intersection box, the fraction of a's area inside b,
// and the intersection area. A nil box means no overlap.
func Intersect(a, b Rect) (*Rect, float64, float64) {
	ix1 := math.Max(a.X1, b.X1)
	iy1 := math.Max(a.Y1, b.Y1)
	ix2 := math.Min(a.X2, b.X2)
	iy2 := math.Min(a.Y2, b.Y2)
	if ix2 <= ix1 || iy2 <= iy1 {
		return nil, 0, 0
	}
	inter := Rect{X1: ix1, Y1: iy1, X2: ix2, Y2: iy2}
	area := inter.Area()
	return &inter, area / (a.Area() + 1e-6), area
}

// AspectOK reports whether w/h falls inside expected*(1±tol) and returns the
// computed aspect ratio.
func AspectOK(w, h, expected, tol float64) (bool, float64) {
	if w <= 0 || h <= 0 {
		return false, 0
	}
	ar := w / h
	return expected*(1-tol) <= ar && ar <= expected*(1+tol), ar
}

// AreaFracOK reports whether the box covers at least minFrac of a W*H frame.
func AreaFracOK(box Rect, w, h int, minFrac float64) bool {
	return box.Area()/(float64(w)*float64(h)+1e-6) >= minFrac
}

// Letterbox describes the aspect-preserving resize of a w*h image into a
// size*size square: scale factor and the left/top padding that centers it.
type Letterbox struct {
	Scale float64
	PadX  int
	PadY  int
	SrcW  int
	SrcH  int
}

// LetterboxInto computes the transform a detector applies when squaring its
// input. The scale is min(size/w, size/h); remaining space is split so the
// image sits centered.
func LetterboxInto(w, h, size int) Letterbox {
	r := math.Min(float64(size)/float64(w), float64(size)/float64(h))
	newW := int(math.Round(float64(w) * r))
	newH := int(math.Round(float64(h) * r))
	return Letterbox{
		Scale: r,
		PadX:  (size - newW) / 2,
		PadY:  (size - newH) / 2,
		SrcW:  w,
		SrcH:  h,
	}
}

// MapBack maps a box from letterboxed coordinates back to source pixels,
// clamping to the source bounds.
func (lb Letterbox) MapBack(box Rect) Rect {
	unpad := func(v float64, pad int) float64 {
		return (v - float64(pad)) / lb.Scale
	}
	clampX := func(v float64) float64 {
		return math.Max(0, math.Min(float64(lb.SrcW-1), v))
	}
	clampY := func(v float64) float64 {
		return math.Max(0, math.Min(float64(lb.SrcH-1), v))
	}
	return Rect{
		X1: clampX(unpad(box.X1, lb.PadX)),
		Y1: clampY(unpad(box.Y1, lb.PadY)),
		X2: clampX(unpad(box.X2, lb.PadX)),
		Y2: clampY(unpad(box.Y2, lb.PadY)),
	}
}

// MapBackPoint maps a single letterboxed point back to source pixels.
func (lb Letterbox) MapBackPoint(p Point) Point {
	return Point{
		X: math.Max(0, math.Min(float64(lb.SrcW-1), (p.X-float64(lb.PadX))/lb.Scale)),
		Y: math.Max(0, math.Min(float64(lb.SrcH-1), (p.Y-float64(lb.PadY))/lb.Scale)),
	}
}

// MapForward maps a source-pixel box into letterboxed coordinates.
func (lb Letterbox) MapForward(box Rect) Rect {
	return Rect{
		X1: box.X1*lb.Scale + float64(lb.PadX),
		Y1: box.Y1*lb.Scale + float64(lb.PadY),
		X2: box.X2*lb.Scale + float64(lb.PadX),
		Y2: box.Y2*lb.Scale + float64(lb.PadY),
	}
}

// Ellipse is the oval guide region for the liveness stream, in the client's
// display pixel space.
type Ellipse struct {
	Cx float64 `json:"ellipseCx" validate:"required"`
	Cy float64 `json:"ellipseCy" validate:"required"`
	Rx float64 `json:"ellipseRx" validate:"required,gt=0"`
	Ry float64 `json:"ellipseRy" validate:"required,gt=0"`
}

// Contains evaluates the normalized ellipse equation for a point.
func (e Ellipse) Contains(px, py float64) bool {
	nx := (px - e.Cx) / math.Max(1e-6, e.Rx)
	ny := (py - e.Cy) / math.Max(1e-6, e.Ry)
	return nx*nx+ny*ny <= 1.0
}

// FaceInside tests a face box against the ellipse using corners inset
// horizontally by insetFrac of the box width. The inset tolerates ears and
// hair crossing the oval edge.
func (e Ellipse) FaceInside(face Rect, insetFrac float64) bool {
	w := face.W()
	x1 := face.X1 + w*insetFrac
	x2 := face.X2 - w*insetFrac
	corners := [4][2]float64{
		{x1, face.Y1}, {x2, face.Y1},
		{x1, face.Y2}, {x2, face.Y2},
	}
	for _, c := range corners {
		if !e.Contains(c[0], c[1]) {
			return false
		}
	}
	return true
}

// Point is a named landmark in source-frame pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func Dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
