package verificationHandler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrameBinary(t *testing.T) {
	var autoSeq int64

	seq, data, ok := parseFrame(websocket.BinaryMessage, []byte{0xff, 0xd8, 0xff}, &autoSeq)
	require.True(t, ok)
	assert.Equal(t, int64(1), seq)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, data)

	seq, _, ok = parseFrame(websocket.BinaryMessage, []byte{0x01}, &autoSeq)
	require.True(t, ok)
	assert.Equal(t, int64(2), seq, "server-assigned sequences must increase")
}

func TestParseFrameEnvelope(t *testing.T) {
	var autoSeq int64
	payload := base64.StdEncoding.EncodeToString([]byte("jpeg-bytes"))

	seq, data, ok := parseFrame(websocket.TextMessage,
		[]byte(`{"seq":17,"img":"`+payload+`"}`), &autoSeq)
	require.True(t, ok)
	assert.Equal(t, int64(17), seq, "client sequence wins over the server counter")
	assert.Equal(t, []byte("jpeg-bytes"), data)
}

func TestParseFrameBareBase64(t *testing.T) {
	var autoSeq int64
	payload := base64.StdEncoding.EncodeToString([]byte("raw"))

	seq, data, ok := parseFrame(websocket.TextMessage, []byte(payload), &autoSeq)
	require.True(t, ok)
	assert.Equal(t, int64(1), seq)
	assert.Equal(t, []byte("raw"), data)
}

func TestParseFrameGarbage(t *testing.T) {
	var autoSeq int64

	_, _, ok := parseFrame(websocket.TextMessage, []byte("not base64 !!!"), &autoSeq)
	assert.False(t, ok)
}

func TestReportThrottleUnverifiedAlwaysSends(t *testing.T) {
	th := reportThrottle{min: 150 * time.Millisecond}
	now := time.Now()

	for i := 0; i < 5; i++ {
		assert.True(t, th.shouldSend(now.Add(time.Duration(i)*10*time.Millisecond), false),
			"unverified reports must never be thinned")
	}
}

func TestReportThrottleThinsVerifiedBursts(t *testing.T) {
	th := reportThrottle{min: 150 * time.Millisecond}
	now := time.Now()

	require.True(t, th.shouldSend(now, true), "the first verified edge must go out")
	assert.False(t, th.shouldSend(now.Add(30*time.Millisecond), true))
	assert.False(t, th.shouldSend(now.Add(60*time.Millisecond), true))
	assert.True(t, th.shouldSend(now.Add(200*time.Millisecond), true))
}

func TestReportThrottleVerdictEdgeBreaksThrottle(t *testing.T) {
	th := reportThrottle{min: 150 * time.Millisecond}
	now := time.Now()

	require.True(t, th.shouldSend(now, true))
	// the card leaves within the interval; the flip must still go out
	assert.True(t, th.shouldSend(now.Add(20*time.Millisecond), false),
		"a verdict flip inside the interval must not be suppressed")
	assert.True(t, th.shouldSend(now.Add(40*time.Millisecond), false))
	assert.True(t, th.shouldSend(now.Add(60*time.Millisecond), true))
}
