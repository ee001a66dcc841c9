package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"detectcam/internal/config"
	"detectcam/internal/metrics"
	"detectcam/internal/models"
	"detectcam/processing/capture"
	"detectcam/processing/detector"

	log "github.com/sirupsen/logrus"
)

var (
	ErrAlreadyRunning    = errors.New("detection already running")
	ErrCameraUnavailable = errors.New("camera not accessible")
	ErrInterrupted       = errors.New("stopped while opening camera")
)

const stopTimeout = 3 * time.Second

// View receives session state. Implementations are called from both the
// caller's goroutine and the worker goroutine.
type View interface {
	SetRunning(running bool)
	SetStatus(msg string)
	SetFPS(fps float64)
	ShowFrame(img image.Image)
}

// Session owns one capture device and the worker goroutine that reads,
// detects, annotates and displays its frames.
type Session struct {
	open    capture.Opener
	det     detector.Detector
	view    View
	metrics *metrics.Metrics
	now     func() time.Time

	threshold atomic.Uint64

	mu      sync.Mutex
	running bool
	gen     uint64
	cancel  context.CancelFunc
	done    chan struct{}
}

type Option func(*Session)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithClock replaces time.Now for frame timing.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func New(open capture.Opener, det detector.Detector, view View, threshold float64, opts ...Option) *Session {
	s := &Session{
		open: open,
		det:  det,
		view: view,
		now:  time.Now,
	}
	s.SetThreshold(threshold)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Threshold() float64 {
	return math.Float64frombits(s.threshold.Load())
}

// SetThreshold stores v clamped to the slider range and returns the stored value.
func (s *Session) SetThreshold(v float64) float64 {
	v = config.ClampThreshold(v)
	s.threshold.Store(math.Float64bits(v))
	return v
}

func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start opens device id and launches the detection worker. While a session
// is active it returns ErrAlreadyRunning and leaves the view alone. When the
// device can't be opened it returns ErrCameraUnavailable with the view back
// in the stopped state. A Stop that lands while the device is opening turns
// either outcome into ErrInterrupted and the view is not touched again.
func (s *Session) Start(id string) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.view.SetRunning(true)

	src, err := s.open(id)
	if err != nil {
		s.mu.Lock()
		current := s.gen == gen
		if current {
			s.running = false
		}
		s.mu.Unlock()

		if !current {
			log.WithField("device", id).WithError(err).Warn("camera open failed after stop")
			return fmt.Errorf("%w: camera %s: %v", ErrInterrupted, id, err)
		}

		s.view.SetRunning(false)
		s.metrics.ObserveError("open")
		log.WithField("device", id).WithError(err).Error("camera open failed")
		s.view.SetStatus(fmt.Sprintf("Camera %s not accessible. %v", id, err))
		return fmt.Errorf("%w: camera %s: %v", ErrCameraUnavailable, id, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		cancel()
		src.Close()
		return ErrInterrupted
	}
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.metrics.ObserveStart()
	s.report(log.InfoLevel, fmt.Sprintf("Camera %s started", id))

	go s.run(ctx, src, done)
	return nil
}

// Stop cancels the worker and waits for it to release the device. It is
// idempotent and safe to call before Start.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.running = false
	s.gen++
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-time.After(stopTimeout):
			log.Warnf("detection worker still busy after %v, leaving it to exit on its own", stopTimeout)
		}
	}

	s.view.SetRunning(false)
}

func (s *Session) run(ctx context.Context, src capture.Source, done chan struct{}) {
	defer close(done)

	s.loop(ctx, src)

	if err := src.Close(); err != nil {
		log.WithError(err).Warn("camera release failed")
	}
	s.detach(done)
	s.report(log.InfoLevel, "Stopped detection thread")
}

func (s *Session) loop(ctx context.Context, src capture.Source) {
	meter := newFPSMeter(s.now())

	for ctx.Err() == nil {
		frame, err := src.Read()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.metrics.ObserveError("read")
			log.WithError(err).Warn("frame read failed")
			s.report(log.WarnLevel, "Failed to read from Webcam")
			return
		}

		started := s.now()
		dets, err := s.det.Detect(ctx, frame, float32(s.Threshold()))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.metrics.ObserveError("detect")
			s.report(log.ErrorLevel, fmt.Sprintf("Detection error: %v", err))
			return
		}
		inference := s.now().Sub(started)

		annotated := detector.Annotate(frame, dets)

		if ctx.Err() != nil {
			return
		}

		fps := meter.Tick(s.now())
		s.view.SetFPS(fps)
		s.view.ShowFrame(annotated)
		s.metrics.ObserveFrame(fps, inference, models.Labels(dets))
	}
}

// detach marks the session stopped if the worker owning done is still the
// current one, i.e. it ended on its own rather than through Stop.
func (s *Session) detach(done chan struct{}) {
	s.mu.Lock()
	if s.done != done {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.cancel, s.done = nil, nil
	s.running = false
	s.gen++
	s.mu.Unlock()

	s.view.SetRunning(false)
}

func (s *Session) report(level log.Level, msg string) {
	log.StandardLogger().Log(level, msg)
	s.view.SetStatus(msg)
}
