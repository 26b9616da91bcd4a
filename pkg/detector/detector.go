package detector

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// IDetector is the black-box model surface the analyzer calls. Boxes and
// centroids come back in the capability's letterboxed input space.
type IDetector interface {
	DetectIDCards(img []byte) ([]Box, error)
	DetectFaces(img []byte) ([]Face, error)
	ReadText(img []byte) ([]TextBox, error)
	ClassifySpoof(img []byte) (*SpoofVerdict, error)
	ClassifyGlasses(img []byte) (*GlassesVerdict, error)
	MatchFace(reference []byte, frames [][]byte) (*MatchVerdict, error)
	IsConnected(capability Capability) bool
	Reconnect(capability Capability) error
	CloseConnections()
}

type wsDetector struct {
	conns        map[Capability]*websocket.Conn
	mu           sync.Mutex
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewModelClient dials every capability endpoint in the background and
// relays frames to them on demand, reconnecting lazily when a send fails.
func NewModelClient() IDetector {
	c := &wsDetector{
		conns:        make(map[Capability]*websocket.Conn),
		pingInterval: 30 * time.Second,
		readTimeout:  10 * time.Second,
		writeTimeout: 5 * time.Second,
	}

	for _, capability := range []Capability{
		FaceDetection, IDCardDetection, TextRecognition,
		SpoofClassifier, GlassesClass, FaceMatch,
	} {
		go c.connectInBackground(capability)
	}

	return c
}

func (c *wsDetector) connectInBackground(capability Capability) {
	if err := c.Reconnect(capability); err != nil {
		log.Printf("Initial connection to %s service failed: %v. Will retry on demand.", capability, err)
		return
	}
	log.Printf("Connected to %s service", capability)
}

func (c *wsDetector) IsConnected(capability Capability) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conns[capability] != nil
}

func (c *wsDetector) Reconnect(capability Capability) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conn := c.conns[capability]; conn != nil {
		conn.Close()
		delete(c.conns, capability)
	}

	url := serviceURL(capability)
	if url == "" {
		return fmt.Errorf("URL for %s service not configured", capability)
	}

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout))
		if err != nil {
			log.Printf("Error sending pong to %s: %v", capability, err)
		}
		return nil
	})

	c.conns[capability] = conn
	go c.keepAlive(capability)

	return nil
}

func (c *wsDetector) CloseConnections() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for capability, conn := range c.conns {
		conn.Close()
		delete(c.conns, capability)
	}
}

func (c *wsDetector) keepAlive(capability Capability) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		conn := c.conns[capability]
		if conn == nil {
			c.mu.Unlock()
			return
		}

		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.writeTimeout))
		if err != nil {
			log.Printf("Ping failed for %s, marking connection as dead: %v", capability, err)
			delete(c.conns, capability)
			conn.Close()
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

func (c *wsDetector) getConnection(capability Capability) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn := c.conns[capability]
	if conn == nil {
		return nil, fmt.Errorf("not connected to %s service", capability)
	}
	return conn, nil
}

// roundTrip sends one payload and reads one JSON reply, reconnecting once
// when no live connection exists.
func (c *wsDetector) roundTrip(capability Capability, payload []byte, out interface{}) error {
	conn, err := c.getConnection(capability)
	if err != nil {
		if err := c.Reconnect(capability); err != nil {
			return fmt.Errorf("cannot connect to %s service: %w", capability, err)
		}
		conn, err = c.getConnection(capability)
		if err != nil {
			return err
		}
	}

	c.mu.Lock()
	conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		delete(c.conns, capability)
		conn.Close()
		c.mu.Unlock()
		return fmt.Errorf("error sending %s request: %w", capability, err)
	}
	conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	c.mu.Unlock()

	_, message, err := conn.ReadMessage()
	if err != nil {
		c.mu.Lock()
		delete(c.conns, capability)
		conn.Close()
		c.mu.Unlock()
		return fmt.Errorf("error reading %s response: %w", capability, err)
	}

	c.mu.Lock()
	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})
	c.mu.Unlock()

	if err := json.Unmarshal(message, out); err != nil {
		return fmt.Errorf("error unmarshaling %s response: %w", capability, err)
	}
	return nil
}

func (c *wsDetector) sendImage(capability Capability, img []byte, out interface{}) error {
	b64 := base64.StdEncoding.EncodeToString(img)
	return c.roundTrip(capability, []byte(b64), out)
}

func (c *wsDetector) DetectIDCards(img []byte) ([]Box, error) {
	var resp detectResponse
	if err := c.sendImage(IDCardDetection, img, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	boxes := make([]Box, 0, len(resp.Boxes))
	for _, w := range resp.Boxes {
		if b, ok := w.toBox(); ok {
			boxes = append(boxes, b)
		}
	}
	return boxes, nil
}

func (c *wsDetector) DetectFaces(img []byte) ([]Face, error) {
	var resp faceResponse
	if err := c.sendImage(FaceDetection, img, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	faces := make([]Face, 0, len(resp.Faces))
	for _, w := range resp.Faces {
		b, ok := w.toBox()
		if !ok {
			continue
		}
		faces = append(faces, Face{Box: b, Landmarks: w.Landmarks})
	}
	return faces, nil
}

func (c *wsDetector) ReadText(img []byte) ([]TextBox, error) {
	var resp ocrResponse
	if err := c.sendImage(TextRecognition, img, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	lines := make([]TextBox, 0, len(resp.Lines))
	for _, w := range resp.Lines {
		if len(w.Center) != 2 || w.Text == "" {
			continue
		}
		lines = append(lines, TextBox{
			Text:   w.Text,
			Conf:   w.Conf,
			Center: pt(w.Center[0], w.Center[1]),
		})
	}
	return lines, nil
}

func (c *wsDetector) ClassifySpoof(img []byte) (*SpoofVerdict, error) {
	var resp spoofResponse
	if err := c.sendImage(SpoofClassifier, img, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	if resp.IsReal == nil {
		return nil, errors.New("spoof service returned no verdict")
	}
	return &SpoofVerdict{IsReal: *resp.IsReal, Score: resp.Score}, nil
}

func (c *wsDetector) ClassifyGlasses(img []byte) (*GlassesVerdict, error) {
	var resp glassesResponse
	if err := c.sendImage(GlassesClass, img, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	return &GlassesVerdict{Top1: resp.Top1, Conf: resp.Conf}, nil
}

func (c *wsDetector) MatchFace(reference []byte, frames [][]byte) (*MatchVerdict, error) {
	req := matchRequest{
		Reference: base64.StdEncoding.EncodeToString(reference),
		Frames:    make([]string, 0, len(frames)),
	}
	for _, f := range frames {
		req.Frames = append(req.Frames, base64.StdEncoding.EncodeToString(f))
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	var resp matchResponse
	if err := c.roundTrip(FaceMatch, payload, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	return &MatchVerdict{
		Matched:    resp.Matched,
		Similarity: resp.Similarity,
		BestIndex:  resp.BestIndex,
	}, nil
}

func serviceURL(capability Capability) string {
	envKeys := map[Capability]string{
		FaceDetection:   "AI_FACE_DETECTION_URL",
		IDCardDetection: "AI_ID_DETECTION_URL",
		TextRecognition: "AI_OCR_URL",
		SpoofClassifier: "AI_SPOOF_URL",
		GlassesClass:    "AI_GLASSES_URL",
		FaceMatch:       "AI_FACE_MATCH_URL",
	}
	defaults := map[Capability]string{
		FaceDetection:   "ws://localhost:8000/api/v1/face/ws",
		IDCardDetection: "ws://localhost:8000/api/v1/idcard/ws",
		TextRecognition: "ws://localhost:8000/api/v1/ocr/ws",
		SpoofClassifier: "ws://localhost:8000/api/v1/spoof/ws",
		GlassesClass:    "ws://localhost:8000/api/v1/glasses/ws",
		FaceMatch:       "ws://localhost:8000/api/v1/match/ws",
	}

	key, ok := envKeys[capability]
	if !ok {
		return ""
	}
	if url := os.Getenv(key); url != "" {
		return url
	}
	return defaults[capability]
}
