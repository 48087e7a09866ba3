// Package metrics exposes Prometheus metrics for recording sessions,
// analysis requests and history writes.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for podium. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Session metrics
	SessionsStarted    prometheus.Counter
	SessionsFinished   *prometheus.CounterVec
	RecognizerRestarts prometheus.Counter
	TranscriptOnly     prometheus.Counter
	SessionDuration    prometheus.Histogram

	// Analysis metrics
	AnalysisRequests *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram

	// Persistence metrics
	HistoryWrites  *prometheus.CounterVec
	ArchiveUploads *prometheus.CounterVec
	Snapshots      *prometheus.CounterVec
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "podium_sessions_started_total",
			Help: "Total number of recording sessions started",
		}),
		SessionsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "podium_sessions_finished_total",
			Help: "Recording sessions by outcome",
		}, []string{"outcome"}),
		RecognizerRestarts: f.NewCounter(prometheus.CounterOpts{
			Name: "podium_recognizer_restarts_total",
			Help: "Times recognition was silently restarted after an unexpected end",
		}),
		TranscriptOnly: f.NewCounter(prometheus.CounterOpts{
			Name: "podium_sessions_transcript_only_total",
			Help: "Sessions that continued without audio capture",
		}),
		SessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "podium_session_duration_seconds",
			Help:    "Length of recorded speeches",
			Buckets: prometheus.ExponentialBuckets(5, 2, 8), // 5s to ~10 minutes
		}),

		AnalysisRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "podium_analysis_requests_total",
			Help: "Analysis requests by result",
		}, []string{"result"}),
		AnalysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "podium_analysis_duration_seconds",
			Help:    "Latency of analysis requests",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2 minutes
		}),

		HistoryWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "podium_history_writes_total",
			Help: "History store writes by operation and result",
		}, []string{"op", "result"}),
		ArchiveUploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "podium_archive_uploads_total",
			Help: "Audio archive uploads by result",
		}, []string{"result"}),
		Snapshots: f.NewCounterVec(prometheus.CounterOpts{
			Name: "podium_progress_snapshots_total",
			Help: "Scheduled progress snapshots by result",
		}, []string{"result"}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// SessionStarted counts a new session.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

// SessionFinished counts a session ending with outcome (submitted,
// no_speech, error, canceled).
func (m *Metrics) SessionFinished(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.SessionsFinished.WithLabelValues(outcome).Inc()
	if d > 0 {
		m.SessionDuration.Observe(d.Seconds())
	}
}

// RecognizerRestarted counts a silent recognition restart.
func (m *Metrics) RecognizerRestarted() {
	if m == nil {
		return
	}
	m.RecognizerRestarts.Inc()
}

// AudioDegraded counts a session running without audio.
func (m *Metrics) AudioDegraded() {
	if m == nil {
		return
	}
	m.TranscriptOnly.Inc()
}

// Analysis records one analysis request.
func (m *Metrics) Analysis(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.AnalysisRequests.WithLabelValues(result(err)).Inc()
	m.AnalysisDuration.Observe(d.Seconds())
}

// HistoryWrite records a history store write.
func (m *Metrics) HistoryWrite(op string, err error) {
	if m == nil {
		return
	}
	m.HistoryWrites.WithLabelValues(op, result(err)).Inc()
}

// ArchiveUpload records an audio upload.
func (m *Metrics) ArchiveUpload(err error) {
	if m == nil {
		return
	}
	m.ArchiveUploads.WithLabelValues(result(err)).Inc()
}

// Snapshot records a scheduled snapshot run.
func (m *Metrics) Snapshot(err error) {
	if m == nil {
		return
	}
	m.Snapshots.WithLabelValues(result(err)).Inc()
}

// Serve exposes /metrics from g on addr until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
