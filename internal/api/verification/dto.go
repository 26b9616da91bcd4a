package verification

import (
	"VerifyGolang/internal/entity"
	"VerifyGolang/pkg/geometry"
)

// FrameEnvelope is the JSON form of a streamed frame. Clients may also send
// the bare base64 payload as a text message, in which case the sequence is
// assigned server-side.
type FrameEnvelope struct {
	Seq int    `json:"seq"`
	Img string `json:"img"`
}

// EllipseControl is the first message on a liveness stream: the oval the
// browser draws, in capture coordinates, so both sides agree on geometry.
type EllipseControl struct {
	EllipseCx float64 `json:"ellipseCx" validate:"required,gt=0"`
	EllipseCy float64 `json:"ellipseCy" validate:"required,gt=0"`
	EllipseRx float64 `json:"ellipseRx" validate:"required,gt=0"`
	EllipseRy float64 `json:"ellipseRy" validate:"required,gt=0"`
}

func (e EllipseControl) Ellipse() geometry.Ellipse {
	return geometry.Ellipse{Cx: e.EllipseCx, Cy: e.EllipseCy, Rx: e.EllipseRx, Ry: e.EllipseRy}
}

type NewSessionResponse struct {
	ReqID string `json:"req_id"`
}

type SessionStateResponse struct {
	ReqID           string                `json:"req_id"`
	IDFrontVerified bool                  `json:"id_front_verified"`
	IDBackVerified  bool                  `json:"id_back_verified"`
	VideoVerified   bool                  `json:"video_verified"`
	Deepfake        entity.DeepfakeStatus `json:"deepfake"`
	Assets          entity.AssetSet       `json:"assets"`
}

type UploadStillResponse struct {
	ReqID          string                 `json:"req_id"`
	Saved          bool                   `json:"saved"`
	Enhanced       bool                   `json:"enhanced"`
	FaceCropped    bool                   `json:"face_cropped,omitempty"`
	DocumentFields *entity.DocumentFields `json:"document_fields,omitempty"`
}

type UploadClipResponse struct {
	ReqID         string `json:"req_id"`
	VideoVerified bool   `json:"video_verified"`
}

type VerifySessionResponse struct {
	Data entity.MatchResult `json:"data"`
}

type ReviewResponse struct {
	ReqID    string                `json:"req_id"`
	Assets   entity.AssetSet       `json:"assets"`
	Deepfake entity.DeepfakeStatus `json:"deepfake"`
}

type ManualDecisionRequest struct {
	Decision string `json:"decision" validate:"required,oneof=verified unverified"`
}

type ManualDecisionResponse struct {
	ReqID    string `json:"req_id"`
	Decision string `json:"decision"`
	Purged   bool   `json:"purged"`
}
