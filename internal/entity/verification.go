package entity

import "time"

// DeepfakeState is the lifecycle of the per-session background analysis job.
type DeepfakeState string

const (
	DeepfakeMissing   DeepfakeState = "missing"
	DeepfakeRunning   DeepfakeState = "running"
	DeepfakeCompleted DeepfakeState = "completed"
	DeepfakeError     DeepfakeState = "error"
)

// DeepfakeStatus is what clients poll: the job state plus the verdict once
// terminal.
type DeepfakeStatus struct {
	Status           DeepfakeState `json:"status"`
	DeepfakeDetected *bool         `json:"deepfake_detected"`
	Error            string        `json:"error,omitempty"`
}

// VerificationRequest is one verification session, keyed by an opaque id.
// The boolean milestones are derived from artifact presence at write time
// and only reset by manual-review cleanup.
type VerificationRequest struct {
	ID              string     `db:"id"`
	IDFrontVerified bool       `db:"id_front_verified"`
	IDBackVerified  bool       `db:"id_back_verified"`
	VideoVerified   bool       `db:"video_verified"`
	DeepfakeState   string     `db:"deepfake_state"`
	DeepfakeReal    *bool      `db:"deepfake_real"`
	DeepfakeError   *string    `db:"deepfake_error"`
	DeepfakeStarted *time.Time `db:"deepfake_started_at"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// Deepfake projects the job columns into the polled status form.
func (v *VerificationRequest) Deepfake() DeepfakeStatus {
	st := DeepfakeStatus{Status: DeepfakeState(v.DeepfakeState)}
	if st.Status == "" {
		st.Status = DeepfakeMissing
	}
	if st.Status == DeepfakeCompleted && v.DeepfakeReal != nil {
		detected := !*v.DeepfakeReal
		st.DeepfakeDetected = &detected
	}
	if st.Status == DeepfakeError && v.DeepfakeError != nil {
		st.Error = *v.DeepfakeError
	}
	return st
}

// DocumentFields are the ID attributes extracted from the front still.
// Extraction is best effort and never gates verification.
type DocumentFields struct {
	FullName       string `json:"full_name"`
	DocumentNumber string `json:"document_number"`
	BirthDate      string `json:"birth_date"`
	ExpiryDate     string `json:"expiry_date"`
	Nationality    string `json:"nationality"`
	Sex            string `json:"sex"`
}

// MatchResult is the outcome of comparing the ID face against sampled video
// frames at finalize time.
type MatchResult struct {
	Matched       bool     `json:"matched"`
	Similarity    float64  `json:"similarity"`
	BestFrame     string   `json:"best_frame,omitempty"`
	FramesChecked int      `json:"frames_checked"`
	DeepfakeState string   `json:"deepfake_status"`
	DeepfakeHit   *bool    `json:"deepfake_detected"`
	AssetURLs     AssetSet `json:"assets"`
}

// AssetSet holds the per-session artifact URLs for the review surface.
type AssetSet struct {
	IDImageURL      string   `json:"id_image_url,omitempty"`
	IDBackImageURL  string   `json:"id_back_image_url,omitempty"`
	CroppedFaceURL  string   `json:"cropped_face_url,omitempty"`
	VideoURL        string   `json:"video_url,omitempty"`
	BestMatchURL    string   `json:"best_match_url,omitempty"`
	SelectedFrames  []string `json:"selected_frames,omitempty"`
}
