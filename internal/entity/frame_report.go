package entity

import (
	"VerifyGolang/pkg/geometry"
)

// IDFrameReport is the per-frame result of the ID-card gate chain. It lives
// for one streaming round-trip; the handler may replay the last one as a
// heartbeat on throttled frames.
type IDFrameReport struct {
	ReqID       string `json:"req_id"`
	AnalyzedSeq int64  `json:"analyzed_seq"`

	FrameW int `json:"frame_w"`
	FrameH int `json:"frame_h"`

	// Guide geometry in source-frame pixels, for the client overlay.
	Rect    []float64 `json:"rect"`
	RoiXYXY []int     `json:"roi_xyxy"`

	IDCardDetected bool      `json:"id_card_detected"`
	IDCardBBox     []float64 `json:"id_card_bbox,omitempty"`
	IDCardConf     *float64  `json:"id_card_conf,omitempty"`

	IDOverlapOK bool     `json:"id_overlap_ok"`
	IDFracIn    *float64 `json:"id_frac_in,omitempty"`
	IDSizeOK    bool     `json:"id_size_ok"`
	IDSizeRatio *float64 `json:"id_size_ratio,omitempty"`
	IDAspect    *float64 `json:"id_ar,omitempty"`

	FaceOnID    bool      `json:"face_on_id"`
	LargestBBox []float64 `json:"largest_bbox,omitempty"`

	OCROK          bool     `json:"ocr_ok"`
	OCRInsideRatio *float64 `json:"ocr_inside_ratio,omitempty"`
	OCRHits        *int     `json:"ocr_hits,omitempty"`
	OCRMeanConf    *float64 `json:"ocr_mean_conf,omitempty"`

	Verified bool `json:"verified"`

	Skipped bool `json:"skipped"`
	Saved   bool `json:"saved"`
}

// IDBackFrameReport is the reduced report for the back-side stream, which
// gates only on brightness and card presence.
type IDBackFrameReport struct {
	ReqID string `json:"req_id"`

	BrightnessStatus string   `json:"brightness_status"`
	BrightnessMean   *float64 `json:"brightness_mean,omitempty"`

	IDCardDetected bool      `json:"id_card_detected"`
	IDCardBBox     []float64 `json:"id_card_bbox,omitempty"`
	IDCardConf     *float64  `json:"id_card_conf,omitempty"`

	Skipped bool `json:"skipped"`
}

// LivenessChecks mirrors the per-gate enable flags so the client can skip
// disabled gates when deciding stability.
type LivenessChecks struct {
	Face       bool `json:"face"`
	Ellipse    bool `json:"ellipse"`
	Brightness bool `json:"brightness"`
	Frontal    bool `json:"frontal"`
	Spoof      bool `json:"spoof"`
	Glasses    bool `json:"glasses"`
}

// LivenessFrameReport is the per-frame result of the selfie-stream gate
// chain.
type LivenessFrameReport struct {
	Checks LivenessChecks `json:"checks"`

	BrightnessStatus string `json:"brightness_status,omitempty"`

	FaceDetected bool      `json:"face_detected"`
	NumFaces     int       `json:"num_faces"`
	OneFace      bool      `json:"one_face"`
	LargestBBox  []float64 `json:"largest_bbox,omitempty"`

	InsideEllipse bool `json:"inside_ellipse"`

	FrontFacing   *bool  `json:"front_facing"`
	FrontGuidance string `json:"front_guidance,omitempty"`

	GlassesDetected *bool    `json:"glasses_detected"`
	GlassesTop1     string   `json:"glasses_top1,omitempty"`
	GlassesConf     *float64 `json:"glasses_conf,omitempty"`

	SpoofIsReal *bool  `json:"spoof_is_real"`
	SpoofStatus string `json:"spoof_status,omitempty"`

	Skipped bool `json:"skipped"`
}

// AllGatesPass applies the enabled-gate rule the capture controller uses:
// a disabled check passes automatically.
func (r *LivenessFrameReport) AllGatesPass() bool {
	pass := func(enabled, cond bool) bool {
		if !enabled {
			return true
		}
		return cond
	}
	return pass(r.Checks.Face, r.FaceDetected) &&
		pass(r.Checks.Ellipse, r.InsideEllipse) &&
		pass(r.Checks.Brightness, r.BrightnessStatus == BrightnessOK) &&
		pass(r.Checks.Frontal, r.FrontFacing == nil || *r.FrontFacing) &&
		pass(r.Checks.Glasses, r.GlassesDetected == nil || !*r.GlassesDetected) &&
		pass(r.Checks.Spoof, r.SpoofIsReal == nil || *r.SpoofIsReal)
}

const (
	BrightnessOK        = "ok"
	BrightnessTooDark   = "too_dark"
	BrightnessTooBright = "too_bright"
)

// GuideBox converts a guide rect into the []float64 xywh form the client
// overlay renders.
func GuideBox(r geometry.Rect) []float64 {
	return []float64{r.X1, r.Y1, r.W(), r.H()}
}
