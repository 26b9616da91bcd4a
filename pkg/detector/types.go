package detector

import (
	"VerifyGolang/pkg/geometry"
)

// Capability is one external model service reachable over a websocket.
type Capability string

const (
	FaceDetection    Capability = "face"
	IDCardDetection  Capability = "idcard"
	TextRecognition  Capability = "ocr"
	SpoofClassifier  Capability = "spoof"
	GlassesClass     Capability = "glasses"
	FaceMatch        Capability = "facematch"
)

// Box is a detection with confidence. Coordinates are in the detector's
// square letterboxed input space; callers map them back to source pixels
// with the letterbox transform for the image they sent.
type Box struct {
	Rect geometry.Rect
	Conf float64
}

// Landmarks are the facial keypoints the face service reports alongside each
// box, in the same letterboxed space.
type Landmarks struct {
	LeftEye  geometry.Point `json:"left_eye"`
	RightEye geometry.Point `json:"right_eye"`
	Nose     geometry.Point `json:"nose"`
}

// Face is one detected face, optionally with landmarks.
type Face struct {
	Box
	Landmarks *Landmarks
}

// TextBox is one recognized text region, centroid in letterboxed space.
type TextBox struct {
	Text   string
	Conf   float64
	Center geometry.Point
}

// SpoofVerdict is the ensemble anti-spoof output.
type SpoofVerdict struct {
	IsReal bool
	Score  float64
}

// GlassesVerdict is the glasses classifier's top-1 output.
type GlassesVerdict struct {
	Top1 string
	Conf float64
}

// MatchVerdict compares one reference face against candidate frames.
type MatchVerdict struct {
	Matched    bool
	Similarity float64
	BestIndex  int
}

// InputSize reports the square input each detection capability letterboxes
// into. Classifier capabilities consume the crop directly.
func InputSize(c Capability) int {
	switch c {
	case FaceDetection:
		return 640
	case IDCardDetection:
		return 640
	default:
		return 0
	}
}

func pt(x, y float64) geometry.Point {
	return geometry.Point{X: x, Y: y}
}

// wire formats -----------------------------------------------------------

type boxWire struct {
	BBox []float64 `json:"bbox"`
	Conf float64   `json:"conf"`
}

func (w boxWire) toBox() (Box, bool) {
	if len(w.BBox) != 4 {
		return Box{}, false
	}
	return Box{
		Rect: geometry.Rect{X1: w.BBox[0], Y1: w.BBox[1], X2: w.BBox[2], Y2: w.BBox[3]},
		Conf: w.Conf,
	}, true
}

type faceWire struct {
	boxWire
	Landmarks *Landmarks `json:"landmarks,omitempty"`
}

type detectResponse struct {
	Boxes []boxWire `json:"boxes"`
	Error string    `json:"error,omitempty"`
}

type faceResponse struct {
	Faces []faceWire `json:"faces"`
	Error string     `json:"error,omitempty"`
}

type textWire struct {
	Text   string    `json:"text"`
	Conf   float64   `json:"conf"`
	Center []float64 `json:"center"`
}

type ocrResponse struct {
	Lines []textWire `json:"lines"`
	Error string     `json:"error,omitempty"`
}

type spoofResponse struct {
	IsReal *bool   `json:"is_real"`
	Score  float64 `json:"score"`
	Error  string  `json:"error,omitempty"`
}

type glassesResponse struct {
	Top1  string  `json:"top1"`
	Conf  float64 `json:"conf"`
	Error string  `json:"error,omitempty"`
}

type matchRequest struct {
	Reference string   `json:"reference"`
	Frames    []string `json:"frames"`
}

type matchResponse struct {
	Matched    bool    `json:"matched"`
	Similarity float64 `json:"similarity"`
	BestIndex  int     `json:"best_index"`
	Error      string  `json:"error,omitempty"`
}
