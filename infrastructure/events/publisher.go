// Package events publishes evaluation lifecycle events over watermill so
// that editors, loggers and other processes can react to finished passes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/ahrav/go-nodeflow/internal/domain"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

// Topic is the default topic evaluation events are published on.
const Topic = "nodeflow.evaluations"

// Message metadata keys.
const (
	EventTypeMetadataKey    = "event_type"
	EvaluationIDMetadataKey = "evaluation_id"
	GraphMetadataKey        = "graph"
)

// EvaluationCompletedEvent is the event type of EvaluationCompleted.
const EvaluationCompletedEvent = "evaluation.completed"

// EvaluationCompleted is the payload published after every pass.
type EvaluationCompleted struct {
	Type   string        `json:"type"`
	Graph  string        `json:"graph,omitempty"`
	Report domain.Report `json:"report"`
}

var _ ports.CompletionListener = (*Publisher)(nil)

// Publisher turns completion notifications into watermill messages.
type Publisher struct {
	publisher message.Publisher
	topic     string
	graph     string
	logger    *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithTopic overrides the topic messages are published on.
func WithTopic(topic string) Option {
	return func(p *Publisher) {
		if topic != "" {
			p.topic = topic
		}
	}
}

// WithGraphName tags every event with the name of the evaluated graph.
func WithGraphName(name string) Option {
	return func(p *Publisher) { p.graph = name }
}

// WithLogger sets the logger used to report publish failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPublisher creates a Publisher writing to pub.
func NewPublisher(pub message.Publisher, opts ...Option) *Publisher {
	if pub == nil {
		panic("events: publisher is required")
	}
	p := &Publisher{
		publisher: pub,
		topic:     Topic,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Topic returns the topic events are published on.
func (p *Publisher) Topic() string { return p.topic }

// Publish sends an EvaluationCompleted event for report.
func (p *Publisher) Publish(ctx context.Context, report domain.Report) error {
	payload, err := json.Marshal(EvaluationCompleted{
		Type:   EvaluationCompletedEvent,
		Graph:  p.graph,
		Report: report,
	})
	if err != nil {
		return fmt.Errorf("failed to encode evaluation event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(EventTypeMetadataKey, EvaluationCompletedEvent)
	msg.Metadata.Set(EvaluationIDMetadataKey, report.ID)
	if p.graph != "" {
		msg.Metadata.Set(GraphMetadataKey, p.graph)
	}
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish evaluation event: %w", err)
	}
	return nil
}

// EvaluationCompleted implements ports.CompletionListener. Publish failures
// are logged; they never affect the evaluation.
func (p *Publisher) EvaluationCompleted(ctx context.Context, report domain.Report) {
	if err := p.Publish(ctx, report); err != nil {
		p.logger.Warn("evaluation event dropped", "evaluation_id", report.ID, "error", err)
	}
}

// Decode parses an EvaluationCompleted message.
func Decode(msg *message.Message) (EvaluationCompleted, error) {
	var event EvaluationCompleted
	if t := msg.Metadata.Get(EventTypeMetadataKey); t != EvaluationCompletedEvent {
		return event, fmt.Errorf("unexpected event type %q", t)
	}
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return event, fmt.Errorf("failed to decode evaluation event: %w", err)
	}
	return event, nil
}

// NewInMemoryPubSub creates an in-process pub/sub suitable for a single
// editor session. Publishing does not wait for subscribers.
func NewInMemoryPubSub(logger *slog.Logger) *gochannel.GoChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            64,
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		watermill.NewSlogLogger(logger),
	)
}
