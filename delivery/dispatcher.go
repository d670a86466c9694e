package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marcelsud/chainhook/event"
	"github.com/marcelsud/chainhook/metrics"
	"github.com/marcelsud/chainhook/subscription"
)

// ErrShuttingDown is returned by OnEvent once shutdown has begun
var ErrShuttingDown = errors.New("dispatcher is shutting down")

// ConfigSource resolves webhook configs and matches events to subscriptions
type ConfigSource interface {
	ConfigGetter
	MatchSubscriptions(ev event.Event) []subscription.Subscription
}

// DispatcherConfig holds the tunables of the worker pool
type DispatcherConfig struct {
	// Workers is the global concurrency bound (default 4)
	Workers int
	// QueueSize is the pending-delivery buffer; producers block when full (default 64)
	QueueSize int
	// DedupeWindow is how many recent (event, subscription) keys are remembered (default 8192)
	DedupeWindow int
	// DrainTimeout bounds how long Shutdown waits for in-flight attempts (default 10s)
	DrainTimeout time.Duration
	// TerminalTTL is the retention of terminal deliveries in the job store (default 24h)
	TerminalTTL time.Duration
	// Clock is injectable for tests; defaults to the system clock
	Clock Clock
}

func (cfg *DispatcherConfig) applyDefaults() {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.DedupeWindow <= 0 {
		cfg.DedupeWindow = 8192
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 10 * time.Second
	}
	if cfg.TerminalTTL <= 0 {
		cfg.TerminalTTL = 24 * time.Hour
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
}

/* Dispatcher matches incoming events to subscriptions and fans out
 * deliveries under a bounded worker pool
 * One worker owns a delivery's whole attempt sequence, so attempts for
 * one delivery are strictly sequential and never concurrent
 */
type Dispatcher struct {
	cfg     DispatcherConfig
	source  ConfigSource
	sender  *Sender
	policy  *Policy
	tracker Tracker
	store   Store
	monitor *metrics.Monitor
	logger  *slog.Logger
	clock   Clock

	queue chan *Delivery
	quit  chan struct{}
	wg    sync.WaitGroup

	// held for reading across OnEvent; Shutdown's write lock is the
	// barrier guaranteeing no producer enqueues after the final drain
	producerMu sync.RWMutex

	closing atomic.Bool
	started atomic.Bool

	mu        sync.Mutex
	inFlight  map[string]struct{}
	seen      map[string]struct{}
	seenOrder []string
}

// NewDispatcher creates a dispatcher with dependency injection
func NewDispatcher(cfg DispatcherConfig, source ConfigSource, sender *Sender, policy *Policy, tracker Tracker, store Store, monitor *metrics.Monitor, logger *slog.Logger) *Dispatcher {
	cfg.applyDefaults()
	return &Dispatcher{
		cfg:      cfg,
		source:   source,
		sender:   sender,
		policy:   policy,
		tracker:  tracker,
		store:    store,
		monitor:  monitor,
		logger:   logger,
		clock:    cfg.Clock,
		queue:    make(chan *Delivery, cfg.QueueSize),
		quit:     make(chan struct{}),
		inFlight: make(map[string]struct{}),
		seen:     make(map[string]struct{}),
	}
}

// Start launches the worker pool; safe to call once
func (dp *Dispatcher) Start() {
	if !dp.started.CompareAndSwap(false, true) {
		return
	}
	dp.monitor.SetQueueDepthGauge(func() int64 {
		return int64(len(dp.queue))
	})
	for i := 0; i < dp.cfg.Workers; i++ {
		dp.wg.Add(1)
		go dp.worker(i)
	}
	dp.logger.Info("dispatcher started", "workers", dp.cfg.Workers, "queue_size", dp.cfg.QueueSize)
}

/* OnEvent is the engine's sole ingress
 * Creates exactly one delivery per (event, matching subscription) pair,
 * deduplicating replays of the same on-chain occurrence, and enqueues
 * them under backpressure
 */
func (dp *Dispatcher) OnEvent(ctx context.Context, ev event.Event) ([]string, error) {
	dp.producerMu.RLock()
	defer dp.producerMu.RUnlock()

	if dp.closing.Load() {
		return nil, ErrShuttingDown
	}
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("validating event: %w", err)
	}

	matched := dp.source.MatchSubscriptions(ev)
	if len(matched) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(matched))
	for _, sub := range matched {
		if dp.alreadySeen(ev.Key() + ":" + sub.ID) {
			dp.logger.Debug("duplicate event occurrence skipped",
				"event_key", ev.Key(),
				"subscription_id", sub.ID,
			)
			continue
		}

		// a missing config still produces a delivery; the sender reports
		// it as ConfigInvalid and the policy abandons it
		cfg, _ := dp.source.GetWebhookConfig(sub.WebhookID)
		d := New(sub, cfg, ev)
		dp.persist(ctx, &d)

		// a persisted delivery that never reaches the queue gets a
		// terminal state instead of sitting pending forever
		select {
		case dp.queue <- &d:
			ids = append(ids, d.ID)
		case <-dp.quit:
			d.LastError = "abandoned during shutdown"
			dp.finish(context.Background(), &d, Abandoned)
			return ids, ErrShuttingDown
		case <-ctx.Done():
			d.LastError = "abandoned before enqueue: " + ctx.Err().Error()
			dp.finish(context.Background(), &d, Abandoned)
			return ids, ctx.Err()
		}
	}

	return ids, nil
}

// worker drains the queue until shutdown
func (dp *Dispatcher) worker(id int) {
	defer dp.wg.Done()
	for {
		select {
		case <-dp.quit:
			return
		case d, ok := <-dp.queue:
			if !ok {
				return
			}
			dp.process(d)
		}
	}
}

/* process runs a delivery's full attempt sequence on one worker
 * Attempt N+1 never starts before attempt N's result is recorded and
 * a retry decision made
 */
func (dp *Dispatcher) process(d *Delivery) {
	if !dp.markInFlight(d.ID) {
		// a duplicate submission of the same id is never run concurrently
		dp.logger.Warn("delivery already in flight, skipping", "delivery_id", d.ID)
		return
	}
	defer dp.clearInFlight(d.ID)

	ctx := context.Background()
	dp.monitor.DeliveryStarted()
	timer := dp.monitor.StartTimer()
	// panic safety: End is idempotent, the deferred call only fires if
	// the loop below did not reach a terminal state
	defer timer.End(false)

	for {
		d.Attempts++
		d.Status = InFlight
		d.UpdatedAt = dp.clock.Now()
		dp.persist(ctx, d)

		result := dp.attempt(ctx, d)

		if err := dp.tracker.TrackDelivery(ctx, *d, result); err != nil {
			dp.logger.Error("tracking delivery attempt failed",
				"delivery_id", d.ID,
				"attempt", d.Attempts,
				"error", err,
			)
		}
		dp.monitor.AttemptRecorded(result.Success, result.Class.String(), result.Latency)

		if result.Success {
			dp.finish(ctx, d, Delivered)
			timer.End(true)
			return
		}

		d.LastError = lastError(result)
		decision := dp.policy.Decide(d.Attempts, d.MaxAttempts, result.Class)
		if !decision.Retry {
			dp.logger.Info("delivery abandoned",
				"delivery_id", d.ID,
				"webhook_id", d.WebhookID,
				"attempts", d.Attempts,
				"class", result.Class.String(),
			)
			dp.finish(ctx, d, Abandoned)
			timer.End(false)
			return
		}

		d.Status = Pending
		d.NextRetryAt = dp.clock.Now().Add(decision.Delay)
		dp.persist(ctx, d)

		select {
		case <-dp.clock.After(decision.Delay):
		case <-dp.quit:
			// shutdown during backoff: record a terminal state rather
			// than leaving the delivery lost
			dp.finish(ctx, d, Abandoned)
			timer.End(false)
			return
		}
	}
}

/* attempt performs one send, converting a worker-level panic into a
 * failed Result instead of crashing the pool
 */
func (dp *Dispatcher) attempt(ctx context.Context, d *Delivery) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			dp.logger.Error("panic during delivery attempt",
				"delivery_id", d.ID,
				"attempt", d.Attempts,
				"panic", r,
			)
			result = ErrorResult(InternalError, fmt.Errorf("attempt panicked: %v", r), 0)
		}
	}()
	return dp.sender.Send(ctx, d)
}

/* Shutdown stops accepting new deliveries, waits for in-flight attempts
 * up to the drain timeout, then abandons anything still queued with a
 * recorded terminal state
 */
func (dp *Dispatcher) Shutdown(ctx context.Context) error {
	if !dp.closing.CompareAndSwap(false, true) {
		return nil
	}
	dp.logger.Info("dispatcher shutting down", "queued", len(dp.queue))
	close(dp.quit)

	done := make(chan struct{})
	go func() {
		dp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(dp.cfg.DrainTimeout):
		dp.logger.Warn("drain timeout reached before all workers finished")
	case <-ctx.Done():
	}

	// producers that passed the closing check finish before the drain;
	// the quit close above releases any still blocked on a full queue,
	// and later callers bail out at the closing check without enqueuing
	dp.producerMu.Lock()
	dp.producerMu.Unlock()

	dp.abandonQueued(context.Background())
	return nil
}

// abandonQueued marks everything still in the queue as abandoned
func (dp *Dispatcher) abandonQueued(ctx context.Context) {
	for {
		select {
		case d, ok := <-dp.queue:
			if !ok {
				return
			}
			d.LastError = "abandoned during shutdown"
			dp.finish(ctx, d, Abandoned)
		default:
			return
		}
	}
}

// finish records a terminal status and schedules job-store cleanup
func (dp *Dispatcher) finish(ctx context.Context, d *Delivery, status Status) {
	d.Status = status
	d.UpdatedAt = dp.clock.Now()
	dp.persist(ctx, d)
	if err := dp.store.SetTTL(ctx, d.ID, dp.cfg.TerminalTTL); err != nil {
		dp.logger.Error("setting delivery TTL failed", "delivery_id", d.ID, "error", err)
	}
}

/* persist saves job-store state, logging failures without stopping the
 * delivery: the tracker, not the job store, is the durable attempt log
 */
func (dp *Dispatcher) persist(ctx context.Context, d *Delivery) {
	if err := dp.store.Save(ctx, *d); err != nil {
		dp.logger.Error("saving delivery state failed",
			"delivery_id", d.ID,
			"status", d.Status.String(),
			"error", err,
		)
	}
}

// markInFlight claims exclusive processing of a delivery id
func (dp *Dispatcher) markInFlight(id string) bool {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if _, exists := dp.inFlight[id]; exists {
		return false
	}
	dp.inFlight[id] = struct{}{}
	return true
}

func (dp *Dispatcher) clearInFlight(id string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	delete(dp.inFlight, id)
}

/* alreadySeen records and checks the (event occurrence, subscription)
 * dedupe key, evicting oldest keys beyond the window
 */
func (dp *Dispatcher) alreadySeen(key string) bool {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if _, ok := dp.seen[key]; ok {
		return true
	}
	dp.seen[key] = struct{}{}
	dp.seenOrder = append(dp.seenOrder, key)
	if len(dp.seenOrder) > dp.cfg.DedupeWindow {
		oldest := dp.seenOrder[0]
		dp.seenOrder = dp.seenOrder[1:]
		delete(dp.seen, oldest)
	}
	return false
}

// lastError renders the operator-visible error of a failed attempt
func lastError(r Result) string {
	if r.Error != "" {
		return r.Error
	}
	return fmt.Sprintf("http status %d", r.StatusCode)
}
