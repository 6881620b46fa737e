package metrics

import (
	"strconv"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	notices          *prom.CounterVec
	intents          *prom.CounterVec
	anomalies        *prom.CounterVec
	saveDuration     *prom.HistogramVec
	saveResults      *prom.CounterVec
	transportResults *prom.CounterVec
	jobRuns          *prom.CounterVec
	objects          *prom.GaugeVec
	speed            prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.notices = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "xgrab",
			Name:      "notices_total",
			Help:      "Classified bot notices by category, with unmatched lines counted as \"unmatched\"",
		}, []string{"category"})
		pr.intents = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "xgrab",
			Name:      "intents_total",
			Help:      "Intents emitted by the classifier",
		}, []string{"kind"})
		pr.anomalies = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "xgrab",
			Name:      "anomalies_total",
			Help:      "Protocol and consistency anomalies",
		}, []string{"category"})
		pr.saveDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "xgrab",
			Name:      "save_duration_seconds",
			Help:      "Duration of aggregate snapshot writes",
			Buckets:   prom.DefBuckets,
		}, []string{"kind"})
		pr.saveResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "xgrab",
			Name:      "save_results_total",
			Help:      "Aggregate saves by outcome",
		}, []string{"kind", "result"})
		pr.transportResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "xgrab",
			Name:      "transport_messages_total",
			Help:      "Transport messages by direction and outcome",
		}, []string{"direction", "result"})
		pr.jobRuns = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "xgrab",
			Name:      "job_runs_total",
			Help:      "Scheduled job executions by outcome",
		}, []string{"job", "result"})
		pr.objects = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "xgrab",
			Name:      "objects",
			Help:      "Objects in the server hierarchy by kind and connection state",
		}, []string{"kind", "connected"})
		pr.speed = prom.NewGauge(prom.GaugeOpts{
			Namespace: "xgrab",
			Name:      "transfer_speed_bytes",
			Help:      "Summed speed of all open file parts",
		})
		reg.MustRegister(pr.notices, pr.intents, pr.anomalies, pr.saveDuration, pr.saveResults,
			pr.transportResults, pr.jobRuns, pr.objects, pr.speed)
	})
	return pr
}

func (p *PrometheusRecorder) IncNotice(category string) {
	if p == nil || p.notices == nil {
		return
	}
	p.notices.WithLabelValues(category).Inc()
}

func (p *PrometheusRecorder) IncIntent(kind string) {
	if p == nil || p.intents == nil {
		return
	}
	p.intents.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) IncAnomaly(category string) {
	if p == nil || p.anomalies == nil {
		return
	}
	p.anomalies.WithLabelValues(category).Inc()
}

func (p *PrometheusRecorder) ObserveSaveDuration(kind string, d time.Duration) {
	if p == nil || p.saveDuration == nil {
		return
	}
	p.saveDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncSaveResult(kind string, result ResultLabel) {
	if p == nil || p.saveResults == nil {
		return
	}
	p.saveResults.WithLabelValues(kind, string(result)).Inc()
}

func (p *PrometheusRecorder) IncTransportMessage(direction string, result ResultLabel) {
	if p == nil || p.transportResults == nil {
		return
	}
	p.transportResults.WithLabelValues(direction, string(result)).Inc()
}

func (p *PrometheusRecorder) IncJobRun(job string, result ResultLabel) {
	if p == nil || p.jobRuns == nil {
		return
	}
	p.jobRuns.WithLabelValues(job, string(result)).Inc()
}

func (p *PrometheusRecorder) SetObjectCount(kind string, connected bool, n int) {
	if p == nil || p.objects == nil {
		return
	}
	p.objects.WithLabelValues(kind, strconv.FormatBool(connected)).Set(float64(n))
}

func (p *PrometheusRecorder) SetTransferSpeed(bytesPerSec int64) {
	if p == nil || p.speed == nil {
		return
	}
	p.speed.Set(float64(bytesPerSec))
}
