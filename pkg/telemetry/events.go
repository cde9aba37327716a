package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event in the StarForge loader.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// EvalID is the associated evaluation ID, if applicable.
	EvalID string `json:"eval_id,omitempty"`

	// Package is the build package being evaluated, if applicable.
	Package string `json:"package,omitempty"`

	// RuleLabel is the associated rule label, if applicable.
	RuleLabel string `json:"rule_label,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeEvalStarted     = "eval.started"
	EventTypeEvalCompleted   = "eval.completed"
	EventTypeEvalFailed      = "eval.failed"
	EventTypeRuleLoaded      = "rule.loaded"
	EventTypeConversionError = "conversion.error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	bufSize := cfg.BufferSize
	if bufSize <= 0 {
		bufSize = 256
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config: cfg,
		buffer: make(chan Event, bufSize),
		ctx:    ctx,
		cancel: cancel,
	}

	ep.wg.Add(1)
	go ep.processEvents()

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case ep.buffer <- event:
		return nil
	case <-ep.ctx.Done():
		return fmt.Errorf("event publisher stopped")
	default:
		return fmt.Errorf("event buffer full, event dropped")
	}
}

// PublishEvalStarted publishes an evaluation started event.
func (ep *EventPublisher) PublishEvalStarted(evalID, pkg string) error {
	return ep.Publish(Event{
		Type:    EventTypeEvalStarted,
		Source:  "loader",
		EvalID:  evalID,
		Package: pkg,
		Message: fmt.Sprintf("Evaluation %s started for package %s", evalID, pkg),
		Level:   EventLevelInfo,
	})
}

// PublishEvalCompleted publishes an evaluation completed event.
func (ep *EventPublisher) PublishEvalCompleted(evalID, pkg string, ruleCount int, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeEvalCompleted,
		Source:  "loader",
		EvalID:  evalID,
		Package: pkg,
		Message: fmt.Sprintf("Evaluation %s completed with %d rules", evalID, ruleCount),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"rule_count": ruleCount,
			"duration":   duration.Seconds(),
		},
	})
}

// PublishEvalFailed publishes an evaluation failed event.
func (ep *EventPublisher) PublishEvalFailed(evalID, pkg, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeEvalFailed,
		Source:  "loader",
		EvalID:  evalID,
		Package: pkg,
		Message: fmt.Sprintf("Evaluation %s failed: %s", evalID, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishRuleLoaded publishes a rule loaded event.
func (ep *EventPublisher) PublishRuleLoaded(evalID, ruleLabel, kind string) error {
	return ep.Publish(Event{
		Type:      EventTypeRuleLoaded,
		Source:    "loader",
		EvalID:    evalID,
		RuleLabel: ruleLabel,
		Message:   fmt.Sprintf("Rule %s loaded (%s)", ruleLabel, kind),
		Level:     EventLevelInfo,
		Data: map[string]interface{}{
			"kind": kind,
		},
	})
}

// PublishConversionError publishes an attribute conversion error event.
func (ep *EventPublisher) PublishConversionError(evalID, ruleLabel, attr, reason string) error {
	return ep.Publish(Event{
		Type:      EventTypeConversionError,
		Source:    "loader",
		EvalID:    evalID,
		RuleLabel: ruleLabel,
		Message:   fmt.Sprintf("Attribute %s failed to convert on %s: %s", attr, ruleLabel, reason),
		Level:     EventLevelError,
		Data: map[string]interface{}{
			"attribute": attr,
			"reason":    reason,
		},
	})
}

// Subscribe adds a new event subscriber. A nil filter receives all events.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// processEvents delivers events from the buffer.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	for {
		select {
		case event := <-ep.buffer:
			ep.deliverEvent(event)
		case <-ep.ctx.Done():
			// Drain remaining events before shutting down
			for {
				select {
				case event := <-ep.buffer:
					ep.deliverEvent(event)
				default:
					return
				}
			}
		}
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByEvalID creates a filter that only allows events for a specific evaluation.
func FilterByEvalID(evalID string) EventFilter {
	return func(event Event) bool {
		return event.EvalID == evalID
	}
}
