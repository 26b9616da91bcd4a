package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRotationFromProbe_RotateTag(t *testing.T) {
	raw := []byte(`{"streams":[{"tags":{"rotate":"90"}}]}`)
	assert.Equal(t, 90, rotationFromProbe(raw))
}

func TestRotationFromProbe_NegativeTagNormalized(t *testing.T) {
	raw := []byte(`{"streams":[{"tags":{"rotate":"-90"}}]}`)
	assert.Equal(t, 270, rotationFromProbe(raw))
}

func TestRotationFromProbe_DisplayMatrixFallback(t *testing.T) {
	raw := []byte(`{"streams":[{"tags":{},"side_data_list":[{"rotation":180}]}]}`)
	assert.Equal(t, 180, rotationFromProbe(raw))
}

func TestRotationFromProbe_TagWinsOverSideData(t *testing.T) {
	raw := []byte(`{"streams":[{"tags":{"rotate":"90"},"side_data_list":[{"rotation":270}]}]}`)
	assert.Equal(t, 90, rotationFromProbe(raw))
}

func TestRotationFromProbe_Garbage(t *testing.T) {
	assert.Equal(t, 0, rotationFromProbe([]byte(`not json`)))
	assert.Equal(t, 0, rotationFromProbe([]byte(`{"streams":[]}`)))
	assert.Equal(t, 0, rotationFromProbe([]byte(`{"streams":[{"tags":{"rotate":"45"}}]}`)))
}

func TestTransposeFilter(t *testing.T) {
	assert.Equal(t, "", transposeFilter(0))
	assert.Equal(t, "transpose=1", transposeFilter(90))
	assert.Equal(t, "transpose=2,transpose=2", transposeFilter(180))
	assert.Equal(t, "transpose=2", transposeFilter(270))
}
