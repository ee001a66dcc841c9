package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Metrics holds the detection pipeline collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	FramesRendered  prometheus.Counter
	Detections      *prometheus.CounterVec
	Errors          *prometheus.CounterVec
	InferenceTime   prometheus.Histogram
	FPS             prometheus.Gauge
	SessionsStarted prometheus.Counter

	registry *prometheus.Registry
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		FramesRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "detectcam_frames_rendered_total",
			Help: "Annotated frames pushed to the video canvas",
		}),
		Detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detectcam_detections_total",
			Help: "Objects reported above the confidence threshold",
		}, []string{"label"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "detectcam_errors_total",
			Help: "Failures that ended a detection session",
		}, []string{"stage"}),
		InferenceTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "detectcam_inference_seconds",
			Help:    "Time spent in a single Detect call",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		FPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "detectcam_fps",
			Help: "Most recent rendered frames per second",
		}),
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "detectcam_sessions_started_total",
			Help: "Successful Start calls",
		}),
	}

	m.registry.MustRegister(
		m.FramesRendered,
		m.Detections,
		m.Errors,
		m.InferenceTime,
		m.FPS,
		m.SessionsStarted,
	)

	return m
}

func (m *Metrics) ObserveFrame(fps float64, inference time.Duration, labels []string) {
	if m == nil {
		return
	}
	m.FramesRendered.Inc()
	m.FPS.Set(fps)
	m.InferenceTime.Observe(inference.Seconds())
	for _, l := range labels {
		m.Detections.WithLabelValues(l).Inc()
	}
}

func (m *Metrics) ObserveError(stage string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveStart() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
	m.FPS.Set(0)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Infof("Metrics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
