package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	publishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "screener_transition_events_published_total",
		Help: "Transition events published, labelled by target status.",
	}, []string{"to"})
	publishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "screener_transition_publish_failures_total",
		Help: "Transition events that could not be published.",
	})
)

// Publisher emits transition events. Publishing failures never block or roll
// back the status change that triggered them.
type Publisher interface {
	PublishTransition(ctx context.Context, event TransitionEvent) (string, error)
}

// StreamPublisher appends events to a Redis Stream with an approximate
// retention cap.
type StreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamPublisher(client *redis.Client, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *StreamPublisher) PublishTransition(ctx context.Context, event TransitionEvent) (string, error) {
	if p.stream == "" {
		return "", fmt.Errorf("stream name is required")
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := event.ValidateBasic(); err != nil {
		publishFailures.Inc()
		return "", err
	}
	raw, err := event.Marshal()
	if err != nil {
		publishFailures.Inc()
		return "", err
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{"event": raw},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		publishFailures.Inc()
		return "", fmt.Errorf("xadd: %w", err)
	}
	publishedTotal.WithLabelValues(event.To).Inc()
	return id, nil
}

// MemoryPublisher keeps events in memory. It backs deployments without Redis
// and the tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []TransitionEvent
	logger *log.Logger
}

func NewMemoryPublisher(logger *log.Logger) *MemoryPublisher {
	if logger == nil {
		logger = log.New(log.Writer(), "[NOTIFY] ", log.LstdFlags)
	}
	return &MemoryPublisher{logger: logger}
}

func (p *MemoryPublisher) PublishTransition(_ context.Context, event TransitionEvent) (string, error) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := event.ValidateBasic(); err != nil {
		publishFailures.Inc()
		return "", err
	}
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
	p.logger.Printf("application %s: %s -> %s", event.ApplicationID, event.From, event.To)
	publishedTotal.WithLabelValues(event.To).Inc()
	return event.EventID, nil
}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []TransitionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TransitionEvent, len(p.events))
	copy(out, p.events)
	return out
}
