package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingRecorder keeps every latency sample handed to it
type capturingRecorder struct {
	mu        sync.Mutex
	attempts  []time.Duration
	durations []time.Duration
}

func (r *capturingRecorder) RecordAttemptLatency(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, d)
}

func (r *capturingRecorder) RecordDeliveryDuration(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.durations = append(r.durations, d)
}

func TestMonitorCounters(t *testing.T) {
	ctx := context.Background()

	t.Run("attempts roll up by outcome and class", func(t *testing.T) {
		m := NewMonitor()

		m.AttemptRecorded(false, "server_error", 10*time.Millisecond)
		m.AttemptRecorded(false, "server_error", 20*time.Millisecond)
		m.AttemptRecorded(false, "timeout", 30*time.Millisecond)
		m.AttemptRecorded(true, "none", 40*time.Millisecond)

		snap, err := m.Collect(ctx)
		require.NoError(t, err)

		assert.Equal(t, int64(4), snap.AttemptsTotal)
		assert.Equal(t, int64(1), snap.AttemptsSucceeded)
		assert.Equal(t, int64(3), snap.AttemptsFailed)
		assert.Equal(t, int64(2), snap.FailuresByClass["server_error"])
		assert.Equal(t, int64(1), snap.FailuresByClass["timeout"])
		// sucesso não entra no mapa de falhas
		assert.NotContains(t, snap.FailuresByClass, "none")
		assert.Equal(t, 25*time.Millisecond, snap.AverageAttemptLatency)
	})

	t.Run("delivery lifecycle counters", func(t *testing.T) {
		m := NewMonitor()

		m.DeliveryStarted()
		timer := m.StartTimer()
		timer.End(true)

		m.DeliveryStarted()
		timer = m.StartTimer()
		timer.End(false)

		m.DeliveryStarted() // still in flight

		snap, err := m.Collect(ctx)
		require.NoError(t, err)

		assert.Equal(t, int64(3), snap.DeliveriesStarted)
		assert.Equal(t, int64(2), snap.DeliveriesCompleted)
		assert.Equal(t, int64(1), snap.DeliveriesSucceeded)
		assert.Equal(t, int64(1), snap.DeliveriesFailed)
		assert.Equal(t, int64(1), snap.ActiveDeliveries)
	})

	t.Run("queue depth reads from the gauge", func(t *testing.T) {
		m := NewMonitor()

		snap, err := m.Collect(ctx)
		require.NoError(t, err)
		assert.Zero(t, snap.QueueDepth, "nil gauge reads as zero")

		m.SetQueueDepthGauge(func() int64 { return 7 })
		snap, err = m.Collect(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(7), snap.QueueDepth)
	})
}

func TestTimerEndIsIdempotent(t *testing.T) {
	t.Run("double End counts one completion", func(t *testing.T) {
		m := NewMonitor()
		m.DeliveryStarted()

		timer := m.StartTimer()
		timer.End(true)
		timer.End(false)
		timer.End(true)

		snap, err := m.Collect(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), snap.DeliveriesCompleted)
		assert.Equal(t, int64(1), snap.DeliveriesSucceeded)
		assert.Zero(t, snap.DeliveriesFailed, "only the first End wins")
		assert.Zero(t, snap.ActiveDeliveries)
	})

	t.Run("deferred End still records a panicking delivery once", func(t *testing.T) {
		m := NewMonitor()
		m.DeliveryStarted()

		func() {
			timer := m.StartTimer()
			defer timer.End(false)
			defer func() { recover() }()
			panic("attempt blew up")
		}()

		snap, err := m.Collect(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), snap.DeliveriesCompleted)
		assert.Equal(t, int64(1), snap.DeliveriesFailed)
		assert.Zero(t, snap.ActiveDeliveries)
	})
}

func TestMonitorLatencyRecorder(t *testing.T) {
	t.Run("every attempt latency reaches the recorder", func(t *testing.T) {
		m := NewMonitor()
		rec := &capturingRecorder{}
		m.SetLatencyRecorder(rec)

		m.AttemptRecorded(true, "none", 15*time.Millisecond)
		m.AttemptRecorded(false, "timeout", 45*time.Millisecond)

		require.Len(t, rec.attempts, 2)
		assert.Equal(t, 15*time.Millisecond, rec.attempts[0])
		assert.Equal(t, 45*time.Millisecond, rec.attempts[1])
		assert.Empty(t, rec.durations)
	})

	t.Run("idempotent End records the duration once", func(t *testing.T) {
		m := NewMonitor()
		rec := &capturingRecorder{}
		m.SetLatencyRecorder(rec)
		m.DeliveryStarted()

		timer := m.StartTimer()
		timer.End(true)
		timer.End(false)

		require.Len(t, rec.durations, 1)
	})

	t.Run("no recorder wired is a no-op", func(t *testing.T) {
		m := NewMonitor()
		m.AttemptRecorded(true, "none", time.Millisecond)
		m.StartTimer().End(true)

		snap, err := m.Collect(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(1), snap.AttemptsTotal)
	})
}

func TestCollectSnapshotIsolation(t *testing.T) {
	m := NewMonitor()
	m.AttemptRecorded(false, "network_error", time.Millisecond)

	first, err := m.Collect(context.Background())
	require.NoError(t, err)

	// mutar o snapshot não afeta o monitor
	first.FailuresByClass["network_error"] = 99

	second, err := m.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.FailuresByClass["network_error"])
	assert.False(t, second.Timestamp.IsZero())
}
