package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRingEvictsOldest(t *testing.T) {
	ring := NewFrameRing(3)
	ring.Put(1, []byte("a"))
	ring.Put(2, []byte("b"))
	ring.Put(3, []byte("c"))
	ring.Put(4, []byte("d"))

	_, err := ring.Get(1)
	assert.ErrorIs(t, err, ErrFrameEvicted)

	data, err := ring.Get(4)
	require.NoError(t, err)
	assert.Equal(t, []byte("d"), data)
	assert.Equal(t, 3, ring.Len())
}

func TestStillFlowFreezesExactFrame(t *testing.T) {
	flow := NewStillFlow()
	assert.Equal(t, StillIdle, flow.State())

	flow.OnFrame(1, []byte("one"))
	assert.Equal(t, StillStabilizing, flow.State())
	flow.OnFrame(2, []byte("two"))
	flow.OnFrame(3, []byte("three"))

	// verdict for frame 2 arrives after frame 3 was already streamed
	data, err := flow.OnVerdict(2, true)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), data)
	assert.Equal(t, StillCaptured, flow.State())

	captured, seq := flow.Captured()
	assert.Equal(t, []byte("two"), captured)
	assert.Equal(t, 2, seq)
}

func TestStillFlowUnverifiedVerdictIsNoop(t *testing.T) {
	flow := NewStillFlow()
	flow.OnFrame(1, []byte("one"))

	data, err := flow.OnVerdict(1, false)
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.Equal(t, StillStabilizing, flow.State())
}

func TestStillFlowEvictedFrameIsRecoverable(t *testing.T) {
	flow := NewStillFlow()
	for seq := 1; seq <= DefaultRingSize+1; seq++ {
		flow.OnFrame(seq, []byte{byte(seq)})
	}

	// seq 1 has been pushed out of the ring
	_, err := flow.OnVerdict(1, true)
	assert.ErrorIs(t, err, ErrFrameEvicted)
	assert.Equal(t, StillStabilizing, flow.State())

	// the next verified verdict still captures
	data, err := flow.OnVerdict(DefaultRingSize+1, true)
	require.NoError(t, err)
	assert.Equal(t, []byte{byte(DefaultRingSize + 1)}, data)
	assert.Equal(t, StillCaptured, flow.State())
}

func TestStillFlowIgnoresFramesAfterCapture(t *testing.T) {
	flow := NewStillFlow()
	flow.OnFrame(1, []byte("one"))
	_, err := flow.OnVerdict(1, true)
	require.NoError(t, err)

	flow.OnFrame(2, []byte("two"))
	data, err := flow.OnVerdict(2, true)
	require.NoError(t, err)
	assert.Nil(t, data)

	captured, seq := flow.Captured()
	assert.Equal(t, []byte("one"), captured)
	assert.Equal(t, 1, seq)
}
