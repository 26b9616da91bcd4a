package streak

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstObservationWinsImmediately(t *testing.T) {
	s := NewBoolStreak(3)

	assert.Nil(t, s.Stable())

	got := s.Update(Set(true))
	require.NotNil(t, got)
	assert.True(t, *got)

	s2 := NewBoolStreak(3)
	got = s2.Update(Set(false))
	require.NotNil(t, got)
	assert.False(t, *got)
}

func TestNilObservationsAreIgnored(t *testing.T) {
	s := NewBoolStreak(2)

	assert.Nil(t, s.Update(nil))

	s.Update(Set(true))
	s.Update(Set(false)) // 1 of 2 mismatches
	got := s.Update(nil) // must not count
	require.NotNil(t, got)
	assert.True(t, *got)

	got = s.Update(Set(false)) // 2nd mismatch flips
	require.NotNil(t, got)
	assert.False(t, *got)
}

func TestFlipRequiresFullStreak(t *testing.T) {
	s := NewBoolStreak(3)
	s.Update(Set(true))

	for i := 0; i < 2; i++ {
		got := s.Update(Set(false))
		require.NotNil(t, got)
		assert.True(t, *got, "flip before streak length reached")
	}

	got := s.Update(Set(false))
	require.NotNil(t, got)
	assert.False(t, *got)
}

func TestAgreementResetsCounter(t *testing.T) {
	s := NewBoolStreak(3)
	s.Update(Set(true))

	s.Update(Set(false))
	s.Update(Set(false))
	s.Update(Set(true)) // agreement resets the mismatch count

	s.Update(Set(false))
	got := s.Update(Set(false))
	require.NotNil(t, got)
	assert.True(t, *got, "interrupted streak must not flip")

	got = s.Update(Set(false))
	require.NotNil(t, got)
	assert.False(t, *got)
}

func TestCounterResetsAfterFlip(t *testing.T) {
	s := NewBoolStreak(2)
	s.Update(Set(true))
	s.Update(Set(false))
	s.Update(Set(false)) // flipped to false

	// A fresh streak is needed to flip back.
	got := s.Update(Set(true))
	require.NotNil(t, got)
	assert.False(t, *got)
	got = s.Update(Set(true))
	require.NotNil(t, got)
	assert.True(t, *got)
}

func TestStreakLengthOne(t *testing.T) {
	s := NewBoolStreak(1)
	s.Update(Set(true))
	got := s.Update(Set(false))
	require.NotNil(t, got)
	assert.False(t, *got)
}

func TestGroupIndependentSignals(t *testing.T) {
	g := NewGroup()
	g.Add("id_card_detected", 3)
	g.Add("ocr_ok", 1)

	g.Update("id_card_detected", Set(true))
	g.Update("ocr_ok", Set(true))

	got := g.Update("id_card_detected", Set(false))
	require.NotNil(t, got)
	assert.True(t, *got, "streak of 3 must not flip on one frame")

	got = g.Update("ocr_ok", Set(false))
	require.NotNil(t, got)
	assert.False(t, *got, "streak of 1 flips immediately")
}

func TestGroupUnknownSignalPassesThrough(t *testing.T) {
	g := NewGroup()
	got := g.Update("unregistered", Set(true))
	require.NotNil(t, got)
	assert.True(t, *got)
}
