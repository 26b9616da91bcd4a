package verificationHandler

import (
	"encoding/base64"
	"os"
	"strconv"
	"time"

	"VerifyGolang/internal/api/verification"
	"VerifyGolang/internal/entity"
	"VerifyGolang/pkg/geometry"
	"VerifyGolang/pkg/streak"

	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"golang.org/x/net/context"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	sigIDDetected = "id_card_detected"
	sigIDOverlap  = "id_overlap_ok"
	sigIDSize     = "id_size_ok"
	sigFaceOnID   = "face_on_id"
	sigOCR        = "ocr_ok"
)

// reportMinInterval is the floor between two outbound reports on the front
// ID stream once the session has verified. Every frame is still analyzed so
// the debounce state keeps moving; only the writes are thinned.
func reportMinInterval() time.Duration {
	if raw := os.Getenv("ANALYZE_MIN_INTERVAL_MS"); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return 150 * time.Millisecond
}

// reportThrottle thins outbound frame reports. Verdict edges always go out
// immediately, so the client freezes on the exact frame that verified and
// unfreezes as soon as the card leaves; between edges a verified session
// sends at most one report per interval.
type reportThrottle struct {
	min          time.Duration
	lastSent     time.Time
	lastVerified bool
	sentAny      bool
}

func (t *reportThrottle) shouldSend(now time.Time, verified bool) bool {
	if !t.sentAny || verified != t.lastVerified {
		t.mark(now, verified)
		return true
	}
	if !verified || now.Sub(t.lastSent) >= t.min {
		t.mark(now, verified)
		return true
	}
	return false
}

func (t *reportThrottle) mark(now time.Time, verified bool) {
	t.lastSent = now
	t.lastVerified, t.sentAny = verified, true
}

// parseFrame accepts the three wire forms a client may send: a binary blob,
// a JSON {seq,img} envelope with a base64 image, or a bare base64 text
// payload. Frames without a client sequence get one assigned server-side.
func parseFrame(messageType int, message []byte, autoSeq *int64) (int64, []byte, bool) {
	*autoSeq++
	if messageType == websocket.BinaryMessage {
		return *autoSeq, message, true
	}

	var env verification.FrameEnvelope
	if err := json.Unmarshal(message, &env); err == nil && env.Img != "" {
		data, err := base64.StdEncoding.DecodeString(env.Img)
		if err != nil {
			return 0, nil, false
		}
		if env.Seq > 0 {
			return int64(env.Seq), data, true
		}
		return *autoSeq, data, true
	}

	data, err := base64.StdEncoding.DecodeString(string(message))
	if err != nil {
		return 0, nil, false
	}
	return *autoSeq, data, true
}

func stable(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func (h *VerificationHandler) handleIDLiveStream(conn *websocket.Conn) {
	reqID := conn.Query("req_id")
	if reqID == "" {
		_ = conn.WriteJSON(map[string]string{"error": "req_id query parameter is required"})
		return
	}

	h.log.WithField("req_id", reqID).Info("ID live stream connected")
	defer h.log.WithField("req_id", reqID).Info("ID live stream disconnected")

	conn.SetPingHandler(func(data string) error {
		if err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	idN, ocrN := h.verificationService.StreakLengths()
	gates := streak.NewGroup()
	gates.Add(sigIDDetected, idN)
	gates.Add(sigIDOverlap, idN)
	gates.Add(sigIDSize, idN)
	gates.Add(sigFaceOnID, idN)
	gates.Add(sigOCR, ocrN)

	ctx := context.Background()
	throttle := reportThrottle{min: reportMinInterval()}
	maxReadTimeout := 60 * time.Second

	var autoSeq int64

	for {
		if err := conn.SetReadDeadline(time.Now().Add(maxReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Errorf("ID live stream error: %v", err)
			}
			break
		}

		seq, frame, ok := parseFrame(messageType, message, &autoSeq)
		if !ok {
			continue
		}

		report, err := h.verificationService.AnalyzeIDFrame(ctx, reqID, frame, seq)
		if err != nil {
			h.log.WithField("req_id", reqID).Errorf("Error analyzing ID frame: %v", err)
			if writeErr := conn.WriteJSON(map[string]string{"error": err.Error()}); writeErr != nil {
				break
			}
			continue
		}

		// Per-gate booleans are debounced so the overlay doesn't flicker,
		// the verdict itself is not: the client freezes on the exact frame
		// whose raw gates all held.
		report.IDCardDetected = stable(gates.Update(sigIDDetected, streak.Set(report.IDCardDetected)), report.IDCardDetected)
		report.IDOverlapOK = stable(gates.Update(sigIDOverlap, streak.Set(report.IDOverlapOK)), report.IDOverlapOK)
		report.IDSizeOK = stable(gates.Update(sigIDSize, streak.Set(report.IDSizeOK)), report.IDSizeOK)
		report.FaceOnID = stable(gates.Update(sigFaceOnID, streak.Set(report.FaceOnID)), report.FaceOnID)
		report.OCROK = stable(gates.Update(sigOCR, streak.Set(report.OCROK)), report.OCROK)

		if !throttle.shouldSend(time.Now(), report.Verified) {
			continue
		}
		if err := conn.WriteJSON(report); err != nil {
			break
		}
	}
}

func (h *VerificationHandler) handleIDBackLiveStream(conn *websocket.Conn) {
	reqID := conn.Query("req_id")
	if reqID == "" {
		_ = conn.WriteJSON(map[string]string{"error": "req_id query parameter is required"})
		return
	}

	h.log.WithField("req_id", reqID).Info("ID back stream connected")
	defer h.log.WithField("req_id", reqID).Info("ID back stream disconnected")

	conn.SetPingHandler(func(data string) error {
		if err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	ctx := context.Background()
	maxReadTimeout := 60 * time.Second

	var (
		autoSeq    int64
		frameCount int
		lastReport *entity.IDBackFrameReport
	)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(maxReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Errorf("ID back stream error: %v", err)
			}
			break
		}

		_, frame, ok := parseFrame(messageType, message, &autoSeq)
		if !ok {
			continue
		}

		// The back side gates only on brightness and card presence, so
		// every other frame is enough.
		frameCount++
		if frameCount%2 == 0 && lastReport != nil {
			heartbeat := *lastReport
			heartbeat.Skipped = true
			if err := conn.WriteJSON(&heartbeat); err != nil {
				break
			}
			continue
		}

		report, err := h.verificationService.AnalyzeIDBackFrame(ctx, reqID, frame)
		if err != nil {
			h.log.WithField("req_id", reqID).Errorf("Error analyzing ID back frame: %v", err)
			if writeErr := conn.WriteJSON(map[string]string{"error": err.Error()}); writeErr != nil {
				break
			}
			continue
		}

		lastReport = report
		if err := conn.WriteJSON(report); err != nil {
			break
		}
	}
}

func (h *VerificationHandler) handleLivenessStream(conn *websocket.Conn) {
	reqID := conn.Query("req_id")
	if reqID == "" {
		_ = conn.WriteJSON(map[string]string{"error": "req_id query parameter is required"})
		return
	}

	h.log.WithField("req_id", reqID).Info("Liveness stream connected")
	defer h.log.WithField("req_id", reqID).Info("Liveness stream disconnected")

	conn.SetPingHandler(func(data string) error {
		if err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	ctx := context.Background()
	maxReadTimeout := 60 * time.Second

	var (
		autoSeq int64
		ellipse *geometry.Ellipse
	)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(maxReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Errorf("Liveness stream error: %v", err)
			}
			break
		}

		// The overlay geometry arrives as a control message, normally first
		// on the stream; the client may resend it after a layout change.
		if messageType == websocket.TextMessage {
			var control verification.EllipseControl
			if err := json.Unmarshal(message, &control); err == nil && control.EllipseRx > 0 {
				if err := h.validator.Struct(control); err != nil {
					if writeErr := conn.WriteJSON(map[string]string{"error": "invalid ellipse control"}); writeErr != nil {
						return
					}
					continue
				}
				e := control.Ellipse()
				ellipse = &e
				if err := conn.WriteJSON(map[string]string{"status": "ellipse_set"}); err != nil {
					break
				}
				continue
			}
		}

		_, frame, ok := parseFrame(messageType, message, &autoSeq)
		if !ok {
			continue
		}

		report, err := h.verificationService.AnalyzeLivenessFrame(ctx, reqID, frame, ellipse)
		if err != nil {
			h.log.WithField("req_id", reqID).Errorf("Error analyzing liveness frame: %v", err)
			if writeErr := conn.WriteJSON(map[string]string{"error": err.Error()}); writeErr != nil {
				break
			}
			continue
		}

		if err := conn.WriteJSON(report); err != nil {
			break
		}
	}
}
