package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LockWaitSeconds tracks how long AcquireLock blocks before a bid
	// becomes lowest, by notifyable kind.
	LockWaitSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clusterlib_lock_wait_seconds",
			Help:    "Time spent blocked in AcquireLock before the bid became lowest",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// EventQueueDepth is the current depth of the internal/external
	// dispatch queues.
	EventQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clusterlib_event_queue_depth",
			Help: "Current number of queued events awaiting dispatch",
		},
		[]string{"queue"},
	)

	// DispatchEventsTotal counts semantic events fanned out to clients,
	// by event type.
	DispatchEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterlib_dispatch_events_total",
			Help: "Total number of semantic events dispatched to clients",
		},
		[]string{"event"},
	)

	// SyncLatencySeconds tracks how long FactoryOps.synchronize blocks
	// waiting for the read-your-writes barrier to complete.
	SyncLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clusterlib_sync_latency_seconds",
			Help:    "Time taken for a synchronize() call to complete",
			Buckets: prometheus.DefBuckets,
		},
	)

	// CacheObjects is the number of live Notifyables held in the typed
	// caches, by kind.
	CacheObjects = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clusterlib_cache_objects",
			Help: "Number of cached Notifyable objects by kind",
		},
		[]string{"kind"},
	)

	// LeaderElectionsTotal counts completed leader-election bids, by
	// outcome (elected/deposed).
	LeaderElectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clusterlib_leader_elections_total",
			Help: "Total number of leader election outcomes",
		},
		[]string{"outcome"},
	)

	// RaftLeader reports whether this process's raftrepo node is the
	// Raft leader (1 = leader, 0 = follower).
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clusterlib_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	// RaftApplyDuration tracks how long a Raft FSM Apply takes for
	// raftrepo commands.
	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clusterlib_raft_apply_duration_seconds",
			Help:    "Time taken to apply a Raft log entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(LockWaitSeconds)
	prometheus.MustRegister(EventQueueDepth)
	prometheus.MustRegister(DispatchEventsTotal)
	prometheus.MustRegister(SyncLatencySeconds)
	prometheus.MustRegister(CacheObjects)
	prometheus.MustRegister(LeaderElectionsTotal)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftApplyDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
