package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sender delivers one transition event over a concrete channel.
type Sender interface {
	Send(ctx context.Context, event TransitionEvent) error
}

// LogSender writes notifications to the process log. It is the default channel
// until a real one is configured.
type LogSender struct {
	Logger *log.Logger
}

func (s LogSender) Send(_ context.Context, event TransitionEvent) error {
	logger := s.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[NOTIFY] ", log.LstdFlags)
	}
	if event.Reason != "" {
		logger.Printf("application %s moved %s -> %s (%s)", event.ApplicationID, event.From, event.To, event.Reason)
	} else {
		logger.Printf("application %s moved %s -> %s", event.ApplicationID, event.From, event.To)
	}
	return nil
}

// Consumer reads transition events from the stream with a consumer group and
// hands them to a Sender. Undeliverable events are acked and logged rather
// than retried forever.
type Consumer struct {
	client *redis.Client
	stream string
	group  string
	name   string
	sender Sender
	logger *log.Logger
}

func NewConsumer(client *redis.Client, stream, group, name string, sender Sender, logger *log.Logger) *Consumer {
	if sender == nil {
		sender = LogSender{}
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[NOTIFY] ", log.LstdFlags)
	}
	return &Consumer{client: client, stream: stream, group: group, name: name, sender: sender, logger: logger}
}

// EnsureGroup creates the consumer group if it does not exist yet.
func EnsureGroup(ctx context.Context, client *redis.Client, stream, group string) error {
	if stream == "" || group == "" {
		return fmt.Errorf("stream and group must be provided")
	}
	if err := client.XGroupCreateMkStream(ctx, stream, group, "$").Err(); err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return fmt.Errorf("xgroup create: %w", err)
	}
	return nil
}

// Run blocks reading the stream until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	if err := EnsureGroup(ctx, c.client, c.stream, c.group); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := c.readOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Printf("stream read failed, backing off: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}
}

func (c *Consumer) readOnce(ctx context.Context) error {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  []string{c.stream, ">"},
		Count:    16,
		Block:    5 * time.Second,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil
		}
		return fmt.Errorf("xreadgroup: %w", err)
	}

	for _, st := range streams {
		for _, msg := range st.Messages {
			c.handle(ctx, msg)
		}
	}
	return nil
}

func (c *Consumer) handle(ctx context.Context, msg redis.XMessage) {
	defer func() {
		if err := c.client.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
			c.logger.Printf("xack %s failed: %v", msg.ID, err)
		}
	}()

	raw, ok := msg.Values["event"]
	if !ok {
		c.logger.Printf("dropping malformed stream entry %s", msg.ID)
		return
	}
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		c.logger.Printf("dropping stream entry %s with value type %T", msg.ID, raw)
		return
	}
	event, err := UnmarshalEvent(data)
	if err != nil {
		c.logger.Printf("dropping undecodable stream entry %s: %v", msg.ID, err)
		return
	}
	if err := c.sender.Send(ctx, event); err != nil {
		c.logger.Printf("deliver event %s for application %s failed: %v", event.EventID, event.ApplicationID, err)
	}
}
