package verification

import (
	"VerifyGolang/pkg/response"
	"net/http"
)

var (
	ErrSessionNotFound     = response.NewError(http.StatusNotFound, "verification session not found")
	ErrMissingIDFace       = response.NewError(http.StatusBadRequest, "no cropped document face for this session")
	ErrMissingVideo        = response.NewError(http.StatusBadRequest, "no recording for this session")
	ErrNoFaceOnDocument    = response.NewError(http.StatusBadRequest, "no face found on the uploaded document")
	ErrNormalizationFailed = response.NewError(http.StatusInternalServerError, "video normalization failed")
	ErrNoFramesSampled     = response.NewError(http.StatusInternalServerError, "no frames could be sampled from the recording")
	ErrMatcherUnavailable  = response.NewError(http.StatusServiceUnavailable, "face matching service unavailable")
	ErrInternalServerError = response.NewError(http.StatusInternalServerError, "internal server error")
)
