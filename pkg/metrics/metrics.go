package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "integrations"

type Metrics struct {
	Queue   QueueMetrics
	Kafka   KafkaMetrics
	API     APIMetrics
	Breaker BreakerMetrics
	Go      GoMetrics
}

type QueueMetrics struct {
	EnqueuedTotal          *prometheus.CounterVec
	ClaimedTotal           prometheus.Counter
	ClaimErrorsTotal       prometheus.Counter
	OutcomesTotal          *prometheus.CounterVec
	HandlerDurationSeconds *prometheus.HistogramVec
	BatchSize              prometheus.Histogram
	BestEffortFailures     *prometheus.CounterVec
}

type KafkaMetrics struct {
	// Producer
	ProducerAttemptLatencySeconds *prometheus.HistogramVec
	ProducerOperationsTotal       *prometheus.CounterVec
	ProducerSuccessAttempts       *prometheus.HistogramVec

	// Consumer
	ConsumerMessagesTotal   *prometheus.CounterVec
	ConsumerProcessDuration *prometheus.HistogramVec
	ConsumerRebalancesTotal *prometheus.CounterVec
	ConsumerInFlight        *prometheus.GaugeVec
}

type APIMetrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

type BreakerMetrics struct {
	StateChangesTotal *prometheus.CounterVec
	State             *prometheus.GaugeVec
}

type GoMetrics struct {
	InternalGoroutines *prometheus.GaugeVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Queue: QueueMetrics{
			EnqueuedTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "enqueued_total",
				Help:      "Enqueue calls by event type and result.",
			}, []string{"event_type", "result"}), // inserted|duplicate|error

			ClaimedTotal: f.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "claimed_total",
				Help:      "Events locked by the claim allocator.",
			}),

			ClaimErrorsTotal: f.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "claim_errors_total",
				Help:      "Claim statements that failed on storage.",
			}),

			OutcomesTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "outcomes_total",
				Help:      "Dispatch outcomes by event type.",
			}, []string{"event_type", "outcome"}),

			HandlerDurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "handler_duration_seconds",
				Help:      "Handler execution time.",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			}, []string{"event_type", "result"}), // ok|error

			BatchSize: f.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "batch_size",
				Help:      "Number of events per claimed batch.",
				Buckets:   []float64{0, 1, 5, 10, 20, 30, 50},
			}),

			BestEffortFailures: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "best_effort_failures_total",
				Help:      "Failed best-effort side calls by name.",
			}, []string{"call"}),
		},

		Kafka: KafkaMetrics{
			ProducerAttemptLatencySeconds: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "kafka",
				Name:      "producer_attempt_latency_seconds",
				Help:      "Latency per single produce attempt.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"topic", "result"}), // ok|error

			ProducerOperationsTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "kafka",
				Name:      "producer_operations_total",
				Help:      "Total produce operations (one call) by result.",
			}, []string{"topic", "result"}), // success|failed|permanent|canceled

			ProducerSuccessAttempts: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "kafka",
				Name:      "producer_success_attempts",
				Help:      "Attempt number on which produce operation succeeded.",
				Buckets:   []float64{1, 2, 3, 4, 5},
			}, []string{"topic"}),

			ConsumerMessagesTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "kafka",
				Name:      "consumer_messages_total",
				Help:      "Total consumed Kafka messages by topic and result.",
			}, []string{"topic", "result"}),

			ConsumerProcessDuration: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "kafka",
				Name:      "consumer_process_duration_seconds",
				Help:      "Kafka message processing duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"topic"}),

			ConsumerRebalancesTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "kafka",
				Name:      "consumer_rebalances_total",
				Help:      "Consumer rebalance lifecycle events.",
			}, []string{"event"}),

			ConsumerInFlight: f.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "kafka",
				Name:      "consumer_inflight_messages",
				Help:      "Messages currently being processed.",
			}, []string{"topic"}),
		},

		API: APIMetrics{
			HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests by method, path and status.",
			}, []string{"method", "path", "status"}),

			HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "api",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency.",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			}, []string{"method", "path", "status"}),
		},

		Breaker: BreakerMetrics{
			StateChangesTotal: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "breaker",
				Name:      "state_changes_total",
				Help:      "Circuit breaker transitions by provider.",
			}, []string{"provider", "from", "to"}),

			State: f.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "breaker",
				Name:      "state",
				Help:      "Current breaker state: 0 closed, 1 half-open, 2 open.",
			}, []string{"provider"}),
		},

		Go: GoMetrics{
			InternalGoroutines: f.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "go",
				Name:      "internal_goroutines",
				Help:      "Number of running internal goroutines by name.",
			}, []string{"name"}),
		},
	}
}
