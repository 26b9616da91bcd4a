package capture

import "time"

type LivenessState int

const (
	LivenessIdle LivenessState = iota
	LivenessArmed
	LivenessRecording
	LivenessUploading
	LivenessDone
)

func (s LivenessState) String() string {
	switch s {
	case LivenessArmed:
		return "armed"
	case LivenessRecording:
		return "recording"
	case LivenessUploading:
		return "uploading"
	case LivenessDone:
		return "done"
	}
	return "idle"
}

// LivenessEvent is the side effect the caller must perform after feeding a
// verdict into the flow.
type LivenessEvent int

const (
	LivenessNone LivenessEvent = iota
	// LivenessStartRecording: begin the media recorder now.
	LivenessStartRecording
	// LivenessAbortRecording: stop the recorder and discard everything it
	// produced; the flow is re-armed.
	LivenessAbortRecording
	// LivenessFinishRecording: stop the recorder and upload the clip.
	LivenessFinishRecording
	// LivenessTimedOut: the session ran out of time without completing.
	LivenessTimedOut
)

type LivenessConfig struct {
	// ReadyMinElapsed and ReadyMinFrames both must be met before verified
	// frames start counting toward the stability window. This absorbs the
	// first seconds of camera auto-exposure.
	ReadyMinElapsed time.Duration
	ReadyMinFrames  int
	// StableFor is how long the gates must stay verified before recording
	// starts.
	StableFor time.Duration
	// RecordFor is the target clip length.
	RecordFor time.Duration
	// SessionTimeout bounds the whole attempt.
	SessionTimeout time.Duration
}

func DefaultLivenessConfig() LivenessConfig {
	return LivenessConfig{
		ReadyMinElapsed: 1500 * time.Millisecond,
		ReadyMinFrames:  5,
		StableFor:       1000 * time.Millisecond,
		RecordFor:       8000 * time.Millisecond,
		SessionTimeout:  30 * time.Second,
	}
}

// LivenessFlow drives the selfie-video attempt: hold all gates verified for
// the stability window to start recording, keep them verified for the full
// clip length, and any single failing frame mid-recording discards the clip
// and re-arms.
type LivenessFlow struct {
	cfg LivenessConfig
	now func() time.Time

	state       LivenessState
	armedAt     time.Time
	frames      int
	stableSince time.Time
	stable      bool
	recordStart time.Time
	uploadTaken bool
}

func NewLivenessFlow(cfg LivenessConfig) *LivenessFlow {
	return &LivenessFlow{cfg: cfg, now: time.Now}
}

// NewLivenessFlowAt is NewLivenessFlow with an injectable clock.
func NewLivenessFlowAt(cfg LivenessConfig, now func() time.Time) *LivenessFlow {
	return &LivenessFlow{cfg: cfg, now: now}
}

func (f *LivenessFlow) State() LivenessState {
	return f.state
}

// Arm starts the attempt clock. No-op unless idle.
func (f *LivenessFlow) Arm() {
	if f.state != LivenessIdle {
		return
	}
	f.state = LivenessArmed
	f.armedAt = f.now()
}

// OnVerdict feeds one debounced all-gates verdict into the flow and returns
// the event the caller must act on.
func (f *LivenessFlow) OnVerdict(verified bool) LivenessEvent {
	if f.state != LivenessArmed && f.state != LivenessRecording {
		return LivenessNone
	}
	now := f.now()
	f.frames++

	if now.Sub(f.armedAt) >= f.cfg.SessionTimeout {
		f.state = LivenessDone
		return LivenessTimedOut
	}

	switch f.state {
	case LivenessArmed:
		if !verified || !f.ready(now) {
			f.stable = false
			return LivenessNone
		}
		if !f.stable {
			f.stable = true
			f.stableSince = now
			return LivenessNone
		}
		if now.Sub(f.stableSince) >= f.cfg.StableFor {
			f.state = LivenessRecording
			f.recordStart = now
			return LivenessStartRecording
		}
		return LivenessNone

	case LivenessRecording:
		if !verified {
			f.state = LivenessArmed
			f.stable = false
			return LivenessAbortRecording
		}
		if now.Sub(f.recordStart) >= f.cfg.RecordFor {
			f.state = LivenessUploading
			return LivenessFinishRecording
		}
		return LivenessNone
	}
	return LivenessNone
}

func (f *LivenessFlow) ready(now time.Time) bool {
	return now.Sub(f.armedAt) >= f.cfg.ReadyMinElapsed && f.frames >= f.cfg.ReadyMinFrames
}

// BeginUpload claims the single upload slot. Only the first caller after
// LivenessFinishRecording gets true; a duplicate finish event uploads
// nothing.
func (f *LivenessFlow) BeginUpload() bool {
	if f.state != LivenessUploading || f.uploadTaken {
		return false
	}
	f.uploadTaken = true
	return true
}

// FinishUpload marks the attempt complete.
func (f *LivenessFlow) FinishUpload() {
	if f.state == LivenessUploading {
		f.state = LivenessDone
	}
}
