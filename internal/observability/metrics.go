package observability

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/wayfarer-backend/internal/domain"
	"github.com/yungbote/wayfarer-backend/internal/domain/jobs"
	"github.com/yungbote/wayfarer-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests       *CounterVec
	apiLatency        *HistogramVec
	apiInflight       *Gauge
	apiReqTotal       *Counter
	apiReqError       *Counter
	feedbackSubmitted *CounterVec
	trainingRuns      *CounterVec
	trainingDuration  *HistogramVec
	trainingExamples  *Counter
	runStatus         *GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func scrapeInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS"))
	if v == "" {
		return 10 * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n) * time.Second
}

// Init returns the process metrics, or nil when METRICS_ENABLED is off. Every
// method is safe on a nil *Metrics.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("wf_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"wf_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight:       NewGauge("wf_api_inflight_requests", "In-flight API requests."),
		apiReqTotal:       NewCounter("wf_api_requests_total_all", "Total API requests (all)."),
		apiReqError:       NewCounter("wf_api_requests_error_total", "API requests answered with 5xx."),
		feedbackSubmitted: NewCounterVec("wf_feedback_submitted_total", "Feedback records stored, by helpfulness.", []string{"helpful"}),
		trainingRuns:      NewCounterVec("wf_training_runs_total", "Finished training runs by outcome.", []string{"status"}),
		trainingDuration: NewHistogramVec(
			"wf_training_run_duration_seconds",
			"Training run wall time by outcome.",
			[]string{"status"},
			[]float64{1, 5, 30, 60, 300, 900, 1800, 3600, 7200},
		),
		trainingExamples: NewCounter("wf_training_examples_consumed_total", "Feedback records consumed by successful runs."),
		runStatus:        NewGaugeVec("wf_training_run_rows", "Training run ledger rows by status.", []string{"status"}),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests,
		m.apiLatency,
		m.apiInflight,
		m.apiReqTotal,
		m.apiReqError,
		m.feedbackSubmitted,
		m.trainingRuns,
		m.trainingDuration,
		m.trainingExamples,
		m.runStatus,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
	m.apiReqTotal.Inc()
	if isServerErrorStatus(status) {
		m.apiReqError.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) IncFeedback(helpful bool) {
	if m == nil {
		return
	}
	m.feedbackSubmitted.Inc(strconv.FormatBool(helpful))
}

func (m *Metrics) ObserveTrainingRun(status string, dur time.Duration, consumed int) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.trainingRuns.Inc(status)
	m.trainingDuration.Observe(dur.Seconds(), status)
	if consumed > 0 {
		m.trainingExamples.Add(float64(consumed))
	}
}

// StartRunLedgerCollector samples training_run row counts per status until ctx is done.
func (m *Metrics) StartRunLedgerCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	statuses := []string{
		jobs.RunStatusQueued, jobs.RunStatusRunning, jobs.RunStatusSucceeded, jobs.RunStatusNoData,
		jobs.RunStatusFailed, jobs.RunStatusPartialFailure, jobs.RunStatusCanceled,
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.sampleRunLedger(ctx, db, statuses); err != nil && log != nil {
					log.Warn("metrics: training run ledger query failed", "error", err)
				}
			}
		}
	}()
}

func (m *Metrics) sampleRunLedger(ctx context.Context, db *gorm.DB, statuses []string) error {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.WithContext(ctx).
		Model(&types.TrainingRun{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}
	for _, s := range statuses {
		m.runStatus.Set(0, s)
	}
	for _, row := range rows {
		status := strings.TrimSpace(row.Status)
		if status == "" {
			status = "unknown"
		}
		m.runStatus.Set(float64(row.Count), status)
	}
	return nil
}
