package verificationService

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreakLengths(t *testing.T) {
	svc := newTestService(&fakeDetector{})

	svc.th.StreakN = 3
	idN, ocrN := svc.StreakLengths()
	assert.Equal(t, 3, idN)
	assert.Equal(t, 1, ocrN)

	svc.th.StreakN = 8
	idN, ocrN = svc.StreakLengths()
	assert.Equal(t, 8, idN)
	assert.Equal(t, 4, ocrN)

	svc.th.StreakN = 0
	idN, ocrN = svc.StreakLengths()
	assert.Equal(t, 1, idN)
	assert.Equal(t, 1, ocrN)
}

func TestThresholdsFromEnvOverride(t *testing.T) {
	t.Setenv("ID_OVERLAP_MIN", "0.75")
	t.Setenv("ID_STREAK_N", "5")
	t.Setenv("CHECK_GLASSES", "false")

	th := ThresholdsFromEnv()
	assert.InDelta(t, 0.75, th.OverlapMin, 1e-9)
	assert.Equal(t, 5, th.StreakN)
	assert.False(t, th.Checks.Glasses)
	assert.True(t, th.Checks.Spoof)
}
