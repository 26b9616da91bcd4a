package capture

import "errors"

// ErrFrameEvicted is returned when the frame that produced a verdict has
// already been pushed out of the ring. The caller keeps streaming and
// captures on the next verified verdict instead.
var ErrFrameEvicted = errors.New("capture: frame evicted from ring")

const DefaultRingSize = 24

// FrameRing keeps the most recent encoded frames keyed by their sequence
// number so the exact frame behind an asynchronous verdict can be frozen.
type FrameRing struct {
	size   int
	frames map[int][]byte
	order  []int
}

func NewFrameRing(size int) *FrameRing {
	if size < 1 {
		size = DefaultRingSize
	}
	return &FrameRing{
		size:   size,
		frames: make(map[int][]byte, size),
		order:  make([]int, 0, size),
	}
}

func (r *FrameRing) Put(seq int, data []byte) {
	if _, ok := r.frames[seq]; ok {
		r.frames[seq] = data
		return
	}
	if len(r.order) == r.size {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.frames, oldest)
	}
	r.frames[seq] = data
	r.order = append(r.order, seq)
}

func (r *FrameRing) Get(seq int) ([]byte, error) {
	data, ok := r.frames[seq]
	if !ok {
		return nil, ErrFrameEvicted
	}
	return data, nil
}

func (r *FrameRing) Len() int {
	return len(r.order)
}

type StillState int

const (
	StillIdle StillState = iota
	StillStabilizing
	StillCaptured
)

func (s StillState) String() string {
	switch s {
	case StillStabilizing:
		return "stabilizing"
	case StillCaptured:
		return "captured"
	}
	return "idle"
}

// StillFlow drives a single still-capture attempt: frames stream in, and
// the first all-gates-true verdict freezes the frame that produced it.
type StillFlow struct {
	state    StillState
	ring     *FrameRing
	captured []byte
	seq      int
}

func NewStillFlow() *StillFlow {
	return &StillFlow{ring: NewFrameRing(DefaultRingSize)}
}

func (f *StillFlow) State() StillState {
	return f.state
}

// OnFrame records an outgoing frame. The first frame moves the flow out of
// idle. Frames arriving after capture are ignored.
func (f *StillFlow) OnFrame(seq int, data []byte) {
	if f.state == StillCaptured {
		return
	}
	if f.state == StillIdle {
		f.state = StillStabilizing
	}
	f.ring.Put(seq, data)
}

// OnVerdict applies a debounced verdict for the frame identified by
// analyzedSeq. A verified verdict freezes that exact frame; if it has
// already been evicted the flow stays in stabilizing and reports
// ErrFrameEvicted. An unverified verdict discards nothing.
func (f *StillFlow) OnVerdict(analyzedSeq int, verified bool) ([]byte, error) {
	if f.state != StillStabilizing || !verified {
		return nil, nil
	}
	data, err := f.ring.Get(analyzedSeq)
	if err != nil {
		return nil, err
	}
	f.state = StillCaptured
	f.captured = data
	f.seq = analyzedSeq
	return data, nil
}

// Captured returns the frozen frame and its sequence, valid once the flow
// reaches StillCaptured.
func (f *StillFlow) Captured() ([]byte, int) {
	return f.captured, f.seq
}
