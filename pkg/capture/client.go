package capture

import (
	"encoding/base64"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultMinSendInterval throttles frame uploads; a frame inside the
	// interval is still sent when it is the Nth since the last send.
	DefaultMinSendInterval = 200 * time.Millisecond
	DefaultForceEveryNth   = 5
	// DefaultPendingWatermark caps buffered outbound bytes; frames above
	// it are dropped regardless of the interval rules.
	DefaultPendingWatermark = 256 * 1024
)

// Throttle decides which frames are worth sending over a constrained link.
type Throttle struct {
	MinInterval      time.Duration
	ForceEveryNth    int
	PendingWatermark int

	lastSent  time.Time
	sinceLast int
}

func NewThrottle() *Throttle {
	return &Throttle{
		MinInterval:      DefaultMinSendInterval,
		ForceEveryNth:    DefaultForceEveryNth,
		PendingWatermark: DefaultPendingWatermark,
	}
}

// Offer reports whether a frame observed at now, with pending bytes still
// queued, should be sent. A true return counts as a send.
func (t *Throttle) Offer(now time.Time, pending int) bool {
	if pending > t.PendingWatermark {
		t.sinceLast++
		return false
	}
	t.sinceLast++
	if !t.lastSent.IsZero() && now.Sub(t.lastSent) < t.MinInterval && t.sinceLast < t.ForceEveryNth {
		return false
	}
	t.lastSent = now
	t.sinceLast = 0
	return true
}

type frameEnvelope struct {
	Seq int    `json:"seq"`
	Img string `json:"img"`
}

// IStreamClient is the outbound side of a live capture session: control
// messages first, then throttled frames, with analysis results read back on
// a channel.
type IStreamClient interface {
	SendControl(v interface{}) error
	OfferFrame(data []byte) bool
	Results() <-chan []byte
	Close() error
}

type streamClient struct {
	conn     *websocket.Conn
	log      *logrus.Logger
	throttle *Throttle
	now      func() time.Time

	mu      sync.Mutex
	seq     int
	pending int
	closed  bool

	control []byte
	frames  chan frameEnvelope
	results chan []byte
	done    chan struct{}
}

// DialStream opens a capture stream to url. The client is
// single-connection; reconnecting and replaying the retained control
// message is the caller's job.
func DialStream(url string, log *logrus.Logger) (IStreamClient, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	c := &streamClient{
		conn:     conn,
		log:      log,
		throttle: NewThrottle(),
		now:      time.Now,
		frames:   make(chan frameEnvelope, 8),
		results:  make(chan []byte, 8),
		done:     make(chan struct{}),
	}
	go c.writeLoop()
	go c.readLoop()
	return c, nil
}

// SendControl marshals and sends a control message ahead of any frames.
// The payload is retained so a caller reopening the stream can resend it.
func (c *streamClient) SendControl(v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.control = raw
	c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, raw)
}

// OfferFrame submits an encoded frame; the throttle decides whether it goes
// out. Returns whether the frame was queued.
func (c *streamClient) OfferFrame(data []byte) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.seq++
	seq := c.seq
	send := c.throttle.Offer(c.now(), c.pending)
	if send {
		c.pending += len(data)
	}
	c.mu.Unlock()
	if !send {
		return false
	}

	select {
	case c.frames <- frameEnvelope{Seq: seq, Img: base64.StdEncoding.EncodeToString(data)}:
		return true
	case <-c.done:
		return false
	}
}

func (c *streamClient) Results() <-chan []byte {
	return c.results
}

func (c *streamClient) writeLoop() {
	for {
		select {
		case env := <-c.frames:
			raw, err := json.Marshal(env)
			if err != nil {
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			writeErr := c.conn.WriteMessage(websocket.TextMessage, raw)

			c.mu.Lock()
			c.pending -= base64.StdEncoding.DecodedLen(len(env.Img))
			if c.pending < 0 {
				c.pending = 0
			}
			c.mu.Unlock()

			if writeErr != nil {
				c.log.WithField("error", writeErr).Warn("capture stream write failed")
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *streamClient) readLoop() {
	defer close(c.results)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.Close()
			return
		}
		select {
		case c.results <- raw:
		case <-c.done:
			return
		}
	}
}

func (c *streamClient) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	close(c.done)
	return c.conn.Close()
}
