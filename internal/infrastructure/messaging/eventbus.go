// Package messaging implements the event bus the mastery engine publishes
// and consumes domain events on. An in-memory bus serves single-instance
// deployments and tests; a Redis Pub/Sub layer on top fans events out across
// instances.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/learnpulse/mastery-engine/internal/domain/shared"
)

var (
	// ErrEventBusClosed is returned when operations are attempted on a closed bus.
	ErrEventBusClosed = errors.New("event bus is closed")
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBus dispatches events to subscribed handlers through a bounded
// worker pool. Handler errors are logged, never propagated to publishers:
// aggregate writes must not roll back because a notification consumer failed.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler
	asyncMode   bool
	workerPool  chan struct{}
	logger      *slog.Logger
	metrics     *BusMetrics
	closed      bool
	closeCh     chan struct{}
	wg          sync.WaitGroup
}

// InMemoryEventBusConfig contains configuration for InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode dispatches handlers on the worker pool instead of inline.
	AsyncMode bool

	// WorkerPoolSize bounds concurrent handler executions in async mode.
	WorkerPoolSize int

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultInMemoryEventBusConfig returns sensible defaults.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 8,
	}
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 8
	}
	return &InMemoryEventBus{
		handlers:   make(map[shared.EventType][]shared.EventHandler),
		asyncMode:  config.AsyncMode,
		workerPool: make(chan struct{}, config.WorkerPoolSize),
		logger:     config.Logger,
		metrics:    &BusMetrics{},
		closeCh:    make(chan struct{}),
	}
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("subscribed handler", "event_type", eventType)
	return nil
}

// SubscribeAll registers a handler for all events.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}

	b.allHandlers = append(b.allHandlers, handler)
	return nil
}

// Publish sends an event to all subscribed handlers.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	handlers := make([]shared.EventHandler, 0, len(b.handlers[event.EventType()])+len(b.allHandlers))
	handlers = append(handlers, b.handlers[event.EventType()]...)
	handlers = append(handlers, b.allHandlers...)
	if b.asyncMode {
		// Add while the lock still excludes Close, so wg.Wait never starts
		// between the closed check and the Add.
		b.wg.Add(len(handlers))
	}
	b.mu.RUnlock()

	b.metrics.Published.Add(1)

	if len(handlers) == 0 {
		b.logger.Debug("no handlers for event", "event_type", event.EventType())
		return nil
	}

	for _, handler := range handlers {
		if b.asyncMode {
			b.executeAsync(event, handler)
		} else if err := b.execute(event, handler); err != nil {
			b.logger.Error("handler error", "event_type", event.EventType(), "error", err)
		}
	}
	return nil
}

// executeAsync runs a handler on the worker pool. The caller has already
// reserved its WaitGroup slot.
func (b *InMemoryEventBus) executeAsync(event shared.Event, handler shared.EventHandler) {
	go func() {
		defer b.wg.Done()

		select {
		case b.workerPool <- struct{}{}:
			defer func() { <-b.workerPool }()
		case <-b.closeCh:
			return
		}

		if err := b.execute(event, handler); err != nil {
			b.logger.Error("async handler error",
				"event_type", event.EventType(),
				"error", err,
			)
		}
	}()
}

func (b *InMemoryEventBus) execute(event shared.Event, handler shared.EventHandler) error {
	start := time.Now()
	err := handler(event)
	b.metrics.record(time.Since(start), err == nil)
	return err
}

// Close gracefully shuts down the event bus, waiting for in-flight handlers.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.closeCh)
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info("event bus closed")
	return nil
}

// Metrics returns the bus counters.
func (b *InMemoryEventBus) Metrics() *BusMetrics {
	return b.metrics
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// DefaultChannelName is the Redis Pub/Sub channel events travel on.
const DefaultChannelName = "mastery-engine:events"

// RedisClient defines the Redis operations the bus needs. Satisfied by the
// go-redis adapter in this package and by fakes in tests.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error)
	Close() error
}

// RedisMessage represents a message received from Redis Pub/Sub.
type RedisMessage struct {
	Channel string
	Payload string
	Err     error
}

// RedisEventBus fans events out to every engine instance through Redis
// Pub/Sub while dispatching locally through an embedded in-memory bus.
// Self-published messages are filtered by instance id on receipt.
type RedisEventBus struct {
	client      RedisClient
	localBus    *InMemoryEventBus
	channelName string
	instanceID  string
	logger      *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closed      bool
}

// RedisEventBusConfig contains configuration for RedisEventBus.
type RedisEventBusConfig struct {
	Client         RedisClient
	ChannelName    string
	InstanceID     string
	LocalBusConfig InMemoryEventBusConfig
	Logger         *slog.Logger
}

// NewRedisEventBus creates a new Redis-based event bus.
func NewRedisEventBus(config RedisEventBusConfig) (*RedisEventBus, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.ChannelName == "" {
		config.ChannelName = DefaultChannelName
	}
	if config.InstanceID == "" {
		config.InstanceID = fmt.Sprintf("engine-%d", time.Now().UnixNano())
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := &RedisEventBus{
		client:      config.Client,
		localBus:    NewInMemoryEventBus(config.LocalBusConfig),
		channelName: config.ChannelName,
		instanceID:  config.InstanceID,
		logger:      config.Logger,
		ctx:         ctx,
		cancel:      cancel,
	}

	messages, err := bus.client.Subscribe(ctx, bus.channelName)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start subscriber: %w", err)
	}

	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		bus.subscriptionLoop(messages)
	}()

	return bus, nil
}

// Subscribe registers a handler for a specific event type.
func (b *RedisEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.localBus.Subscribe(eventType, handler)
}

// SubscribeAll registers a handler for all events.
func (b *RedisEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.localBus.SubscribeAll(handler)
}

// Publish sends an event to Redis Pub/Sub and local handlers. A failed Redis
// publish degrades to local-only delivery rather than failing the caller.
func (b *RedisEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	b.mu.RUnlock()

	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	envelope := wireEnvelope{
		InstanceID: b.instanceID,
		EventEnvelope: shared.EventEnvelope{
			ID:          uuid.NewString(),
			Type:        event.EventType(),
			AggregateID: event.AggregateID(),
			Timestamp:   event.OccurredAt(),
			Version:     1,
			Payload:     payload,
		},
	}
	if c, ok := event.(interface{ Correlation() string }); ok {
		envelope.CorrelationID = c.Correlation()
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := b.client.Publish(b.ctx, b.channelName, string(data)); err != nil {
		b.logger.Error("failed to publish to redis", "error", err)
	}

	return b.localBus.Publish(event)
}

// subscriptionLoop processes messages from Redis.
func (b *RedisEventBus) subscriptionLoop(messages <-chan RedisMessage) {
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if msg.Err != nil {
				b.logger.Error("redis subscription error", "error", msg.Err)
				continue
			}
			b.handleRedisMessage(msg)
		}
	}
}

// handleRedisMessage delivers one remote event to local handlers.
func (b *RedisEventBus) handleRedisMessage(msg RedisMessage) {
	var envelope wireEnvelope
	if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
		b.logger.Error("failed to unmarshal event", "error", err)
		return
	}

	// Skip events from self (already dispatched locally on publish).
	if envelope.InstanceID == b.instanceID {
		return
	}

	var payload map[string]interface{}
	if len(envelope.Payload) > 0 {
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			b.logger.Error("failed to unmarshal event payload", "error", err)
			return
		}
	}

	event := &remoteEvent{
		eventType:     envelope.Type,
		aggregateID:   envelope.AggregateID,
		occurredAt:    envelope.Timestamp,
		correlationID: envelope.CorrelationID,
		payload:       payload,
	}
	if err := b.localBus.Publish(event); err != nil {
		b.logger.Error("failed to process remote event", "error", err)
	}
}

// Close gracefully shuts down the Redis event bus.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()

	if err := b.localBus.Close(); err != nil {
		b.logger.Error("failed to close local bus", "error", err)
	}
	return nil
}

// Metrics returns the counters of the embedded local bus.
func (b *RedisEventBus) Metrics() *BusMetrics {
	return b.localBus.Metrics()
}

// wireEnvelope is the JSON shape events travel over Redis in: the shared
// transport envelope plus the publishing instance id for self-filtering.
type wireEnvelope struct {
	InstanceID string `json:"instance_id"`
	shared.EventEnvelope
}

// remoteEvent reconstructs an event received from another instance. The
// typed payload is only available as a map; handlers that need structure
// decode it themselves.
type remoteEvent struct {
	eventType     shared.EventType
	aggregateID   string
	occurredAt    time.Time
	correlationID string
	payload       map[string]interface{}
}

func (e *remoteEvent) EventType() shared.EventType     { return e.eventType }
func (e *remoteEvent) AggregateID() string             { return e.aggregateID }
func (e *remoteEvent) OccurredAt() time.Time           { return e.occurredAt }
func (e *remoteEvent) Correlation() string             { return e.correlationID }
func (e *remoteEvent) Payload() map[string]interface{} { return e.payload }

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// BusMetrics tracks bus throughput and handler outcomes.
type BusMetrics struct {
	Published        atomic.Int64
	HandlerSuccesses atomic.Int64
	HandlerFailures  atomic.Int64
	totalDurationNs  atomic.Int64
}

func (m *BusMetrics) record(d time.Duration, success bool) {
	m.totalDurationNs.Add(int64(d))
	if success {
		m.HandlerSuccesses.Add(1)
	} else {
		m.HandlerFailures.Add(1)
	}
}

// AverageHandlerDuration returns the mean handler execution time.
func (m *BusMetrics) AverageHandlerDuration() time.Duration {
	execs := m.HandlerSuccesses.Load() + m.HandlerFailures.Load()
	if execs == 0 {
		return 0
	}
	return time.Duration(m.totalDurationNs.Load() / execs)
}
