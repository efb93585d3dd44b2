// Package metrics is the ambient observability layer: Prometheus collectors
// for queue depth, matcher/OCR latency, and recognition-task throughput,
// following the registry-per-exporter shape the pack's PromptKit runtime
// uses for its own pipeline metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "splatrecorder"

var (
	// FrameQueueDepth is a gauge of frames queued for analysis. The analyzer
	// has no frame queue and nothing in the module sets this gauge.
	FrameQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "frame_queue_depth",
		Help:      "Number of frames queued for analysis",
	})

	// MatcherDuration is a histogram of screen-key matcher evaluation time.
	MatcherDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "matcher_duration_seconds",
		Help:      "Duration of a single screen-key matcher evaluation",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"key"})

	// RecognitionTasksTotal counts OCR/template recognition tasks by kind and
	// outcome.
	RecognitionTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recognition_tasks_total",
		Help:      "Total number of OCR/template recognition tasks run",
	}, []string{"kind", "status"}) // kind: rule, stage, kd, weapon; status: ok, empty, error

	// RecognitionDuration is a histogram of recognition-task latency by kind.
	RecognitionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "recognition_duration_seconds",
		Help:      "Duration of an OCR/template recognition task",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"kind"})

	// RecordingsTotal counts completed recordings by game mode and judgement.
	RecordingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recordings_total",
		Help:      "Total number of recordings saved",
	}, []string{"game_mode", "judgement"})

	// RecorderStateTransitionsTotal counts C4 state-machine transitions.
	RecorderStateTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "recorder_state_transitions_total",
		Help:      "Total number of recording state machine transitions",
	}, []string{"from", "to"})

	// CommandQueueDepth is a gauge of commands waiting on the command bus.
	CommandQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "command_queue_depth",
		Help:      "Number of commands queued on the command bus",
	})

	// EventSubscribersActive is a gauge of live event-bus subscriptions
	// (roughly, open SSE connections).
	EventSubscribersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "event_subscribers_active",
		Help:      "Number of currently active event bus subscriptions",
	})

	// allCollectors is registered wholesale by NewRegistry.
	allCollectors = []prometheus.Collector{
		FrameQueueDepth,
		MatcherDuration,
		RecognitionTasksTotal,
		RecognitionDuration,
		RecordingsTotal,
		RecorderStateTransitionsTotal,
		CommandQueueDepth,
		EventSubscribersActive,
	}
)

// NewRegistry returns a Prometheus registry with every splatrecorder
// collector registered. The Go/process collectors are added by NewExporter,
// not here.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	for _, c := range allCollectors {
		reg.MustRegister(c)
	}
	return reg
}

// ObserveMatcher records one matcher evaluation's duration.
func ObserveMatcher(key string, seconds float64) {
	MatcherDuration.WithLabelValues(key).Observe(seconds)
}

// ObserveRecognition records one recognition task's outcome and duration.
func ObserveRecognition(kind, status string, seconds float64) {
	RecognitionTasksTotal.WithLabelValues(kind, status).Inc()
	RecognitionDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordTransition records one recorder state machine transition.
func RecordTransition(from, to string) {
	RecorderStateTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordSaved records one completed recording.
func RecordSaved(gameMode, judgement string) {
	RecordingsTotal.WithLabelValues(gameMode, judgement).Inc()
}
