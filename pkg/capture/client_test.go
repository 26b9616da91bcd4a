package capture

import (
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoStreamServer accepts one connection and echoes every text message
// back, which is enough to exercise the client's full round trip.
func echoStreamServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStreamClientControlThenFrame(t *testing.T) {
	srv := echoStreamServer(t)
	defer srv.Close()

	client, err := DialStream(wsURL(srv), quietLogger())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.SendControl(map[string]float64{
		"ellipseCx": 320, "ellipseCy": 240, "ellipseRx": 120, "ellipseRy": 150,
	}))

	sent := client.OfferFrame([]byte("frame-bytes"))
	assert.True(t, sent, "first frame must pass the throttle")

	// control echo first, then the frame envelope
	var got [][]byte
	for i := 0; i < 2; i++ {
		select {
		case raw, ok := <-client.Results():
			require.True(t, ok)
			got = append(got, raw)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for echo")
		}
	}

	assert.Contains(t, string(got[0]), "ellipseCx")

	var env frameEnvelope
	require.NoError(t, json.Unmarshal(got[1], &env))
	assert.Equal(t, 1, env.Seq)
	decoded, err := base64.StdEncoding.DecodeString(env.Img)
	require.NoError(t, err)
	assert.Equal(t, []byte("frame-bytes"), decoded)
}

func TestStreamClientThrottlesBursts(t *testing.T) {
	srv := echoStreamServer(t)
	defer srv.Close()

	client, err := DialStream(wsURL(srv), quietLogger())
	require.NoError(t, err)
	defer client.Close()

	sent := 0
	for i := 0; i < 10; i++ {
		if client.OfferFrame([]byte("burst")) {
			sent++
		}
	}

	// inside one interval: the first frame plus every forced Nth
	assert.Less(t, sent, 10)
	assert.GreaterOrEqual(t, sent, 1)
}

func TestStreamClientOfferAfterClose(t *testing.T) {
	srv := echoStreamServer(t)
	defer srv.Close()

	client, err := DialStream(wsURL(srv), quietLogger())
	require.NoError(t, err)
	require.NoError(t, client.Close())

	assert.False(t, client.OfferFrame([]byte("late")))
}
