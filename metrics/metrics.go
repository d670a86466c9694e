package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot represents the current state of the delivery engine.
type Snapshot struct {
	// DeliveriesStarted counts deliveries handed to the worker pool
	DeliveriesStarted int64 `json:"deliveries_started"`

	// DeliveriesCompleted counts deliveries that reached a terminal state
	DeliveriesCompleted int64 `json:"deliveries_completed"`

	// DeliveriesSucceeded counts deliveries that ended delivered
	DeliveriesSucceeded int64 `json:"deliveries_succeeded"`

	// DeliveriesFailed counts deliveries that ended abandoned
	DeliveriesFailed int64 `json:"deliveries_failed"`

	// AttemptsTotal counts individual HTTP attempts
	AttemptsTotal int64 `json:"attempts_total"`

	// AttemptsSucceeded counts attempts answered with 2xx
	AttemptsSucceeded int64 `json:"attempts_succeeded"`

	// AttemptsFailed counts attempts that failed for any reason
	AttemptsFailed int64 `json:"attempts_failed"`

	// FailuresByClass maps failure class name to attempt count
	FailuresByClass map[string]int64 `json:"failures_by_class"`

	// QueueDepth is the number of deliveries waiting for a worker
	QueueDepth int64 `json:"queue_depth"`

	// ActiveDeliveries is the number of deliveries currently in flight
	ActiveDeliveries int64 `json:"active_deliveries"`

	// AverageAttemptLatency is the mean per-attempt HTTP latency
	AverageAttemptLatency time.Duration `json:"average_attempt_latency"`

	// AverageDeliveryDuration is the mean end-to-end delivery duration
	AverageDeliveryDuration time.Duration `json:"average_delivery_duration"`

	// Timestamp when the snapshot was taken
	Timestamp time.Time `json:"timestamp"`
}

// Collector defines the interface for reading engine metrics.
type Collector interface {
	// Collect gathers the current snapshot of the engine
	Collect(ctx context.Context) (Snapshot, error)
}

/* LatencyRecorder receives every raw latency sample so an exporter can
 * feed distribution instruments (histograms); the Monitor itself only
 * keeps running aggregates
 */
type LatencyRecorder interface {
	RecordAttemptLatency(d time.Duration)
	RecordDeliveryDuration(d time.Duration)
}

/* Monitor is the in-process performance monitor
 * Counters use atomics; latency aggregates take a small mutex.
 * A nil queue-depth gauge reads as zero
 */
type Monitor struct {
	deliveriesStarted   atomic.Int64
	deliveriesCompleted atomic.Int64
	deliveriesSucceeded atomic.Int64
	deliveriesFailed    atomic.Int64
	attemptsTotal       atomic.Int64
	attemptsSucceeded   atomic.Int64
	attemptsFailed      atomic.Int64
	active              atomic.Int64

	mu                sync.Mutex
	failuresByClass   map[string]int64
	attemptLatencySum time.Duration
	attemptCount      int64
	deliveryDurSum    time.Duration
	deliveryDurCount  int64
	queueDepth        func() int64
	recorder          LatencyRecorder
}

// NewMonitor creates an empty monitor
func NewMonitor() *Monitor {
	return &Monitor{
		failuresByClass: make(map[string]int64),
	}
}

// SetQueueDepthGauge wires the queue-depth gauge to the dispatcher's queue
func (m *Monitor) SetQueueDepthGauge(gauge func() int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueDepth = gauge
}

// SetLatencyRecorder wires raw latency samples to an exporter's histograms
func (m *Monitor) SetLatencyRecorder(r LatencyRecorder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorder = r
}

// DeliveryStarted records a delivery entering the worker pool
func (m *Monitor) DeliveryStarted() {
	m.deliveriesStarted.Add(1)
	m.active.Add(1)
}

// AttemptRecorded records one HTTP attempt outcome
func (m *Monitor) AttemptRecorded(success bool, class string, latency time.Duration) {
	m.attemptsTotal.Add(1)
	if success {
		m.attemptsSucceeded.Add(1)
	} else {
		m.attemptsFailed.Add(1)
	}

	m.mu.Lock()
	if !success {
		m.failuresByClass[class]++
	}
	m.attemptLatencySum += latency
	m.attemptCount++
	recorder := m.recorder
	m.mu.Unlock()

	if recorder != nil {
		recorder.RecordAttemptLatency(latency)
	}
}

/* Timer measures one end-to-end delivery
 * End is idempotent, so callers defer End(false) for the panic path
 * and still call End(true) on success without double-counting
 */
type Timer struct {
	monitor *Monitor
	start   time.Time
	once    sync.Once
}

// StartTimer begins timing one delivery's end-to-end duration
func (m *Monitor) StartTimer() *Timer {
	return &Timer{
		monitor: m,
		start:   time.Now(),
	}
}

// End closes the timer and records the delivery's terminal outcome
func (t *Timer) End(success bool) {
	t.once.Do(func() {
		m := t.monitor
		duration := time.Since(t.start)

		m.active.Add(-1)
		m.deliveriesCompleted.Add(1)
		if success {
			m.deliveriesSucceeded.Add(1)
		} else {
			m.deliveriesFailed.Add(1)
		}

		m.mu.Lock()
		m.deliveryDurSum += duration
		m.deliveryDurCount++
		recorder := m.recorder
		m.mu.Unlock()

		if recorder != nil {
			recorder.RecordDeliveryDuration(duration)
		}
	})
}

// Collect gathers the current snapshot of the engine
func (m *Monitor) Collect(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		DeliveriesStarted:   m.deliveriesStarted.Load(),
		DeliveriesCompleted: m.deliveriesCompleted.Load(),
		DeliveriesSucceeded: m.deliveriesSucceeded.Load(),
		DeliveriesFailed:    m.deliveriesFailed.Load(),
		AttemptsTotal:       m.attemptsTotal.Load(),
		AttemptsSucceeded:   m.attemptsSucceeded.Load(),
		AttemptsFailed:      m.attemptsFailed.Load(),
		ActiveDeliveries:    m.active.Load(),
		FailuresByClass:     make(map[string]int64, len(m.failuresByClass)),
		Timestamp:           time.Now(),
	}
	for class, count := range m.failuresByClass {
		snap.FailuresByClass[class] = count
	}
	if m.queueDepth != nil {
		snap.QueueDepth = m.queueDepth()
	}
	if m.attemptCount > 0 {
		snap.AverageAttemptLatency = m.attemptLatencySum / time.Duration(m.attemptCount)
	}
	if m.deliveryDurCount > 0 {
		snap.AverageDeliveryDuration = m.deliveryDurSum / time.Duration(m.deliveryDurCount)
	}

	return snap, nil
}
