package metrics

import (
	"net/http"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "many_assets"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg          *prom.Registry
	stepDuration *prom.HistogramVec
	stepResults  *prom.CounterVec
	watchEvents  *prom.CounterVec
	cacheResults *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers the metrics on reg, or on a
// fresh registry when reg is nil.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		stepDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of individual pipeline steps",
			Buckets:   prom.DefBuckets,
		}, []string{"task", "step"}),
		stepResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "step_results_total",
			Help:      "Step result counts by outcome",
		}, []string{"task", "step", "result"}),
		watchEvents: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "watch_events_total",
			Help:      "File change events dispatched per watch pattern",
		}, []string{"pattern"}),
		cacheResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "optimize_cache_total",
			Help:      "Optimization cache lookups by hit/miss",
		}, []string{"hit"}),
	}
	reg.MustRegister(pr.stepDuration, pr.stepResults, pr.watchEvents, pr.cacheResults)
	return pr
}

func (p *PrometheusRecorder) ObserveStepDuration(task, step string, d time.Duration) {
	p.stepDuration.WithLabelValues(task, step).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStepResult(task, step string, result Result) {
	p.stepResults.WithLabelValues(task, step, string(result)).Inc()
}

func (p *PrometheusRecorder) IncWatchEvent(pattern string) {
	p.watchEvents.WithLabelValues(pattern).Inc()
}

func (p *PrometheusRecorder) IncCacheResult(hit bool) {
	p.cacheResults.WithLabelValues(strconv.FormatBool(hit)).Inc()
}

// Handler exposes the recorder's registry over HTTP.
func (p *PrometheusRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{})
}
