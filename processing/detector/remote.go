package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/url"
	"sync"
	"time"

	"detectcam/internal/models"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// RemoteDetector sends JPEG frames to a detection server over a websocket
// and reads back one JSON result array per frame. The connection is dialed
// lazily and dropped on any error; the next Detect redials.
type RemoteDetector struct {
	serverURL string
	timeout   time.Duration
	quality   int

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewRemoteDetector(host string, timeout time.Duration) *RemoteDetector {
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &RemoteDetector{
		serverURL: u.String(),
		timeout:   timeout,
		quality:   80,
	}
}

func (d *RemoteDetector) Name() string {
	return d.serverURL
}

func (d *RemoteDetector) Detect(ctx context.Context, frame image.Image, threshold float32) ([]models.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	conn, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}

	results, err := d.roundTrip(ctx, conn, frame)
	if err != nil {
		log.Warnf("connection lost: %v", err)
		d.dropLocked()
		return nil, err
	}

	b := frame.Bounds()
	dets := make([]models.Detection, 0, len(results))
	for _, r := range results {
		if r.Confidence < threshold {
			continue
		}
		det, err := r.ToDetection(b.Dx(), b.Dy())
		if err != nil {
			log.Debugf("skipping malformed result %q: %v", r.Label, err)
			continue
		}
		dets = append(dets, det)
	}

	return dets, nil
}

func (d *RemoteDetector) connect(ctx context.Context) (*websocket.Conn, error) {
	if d.conn != nil {
		return d.conn, nil
	}

	log.Infof("connecting to detector server %s", d.serverURL)

	dialCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, d.serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", d.serverURL, err)
	}

	log.Info("connected to detection server")
	d.conn = conn
	return conn, nil
}

func (d *RemoteDetector) roundTrip(ctx context.Context, conn *websocket.Conn, frame image.Image) ([]models.DetectionResult, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: d.quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}

	deadline := time.Now().Add(d.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("send frame: %w", err)
	}

	conn.SetReadDeadline(deadline)
	_, message, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}

	var results []models.DetectionResult
	if err := json.Unmarshal(message, &results); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedOutput, err)
	}

	return results, nil
}

func (d *RemoteDetector) dropLocked() {
	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}
}

func (d *RemoteDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return nil
	}

	d.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	d.dropLocked()
	return nil
}
