// Package events mirrors security-relevant audit entries onto a message
// bus for downstream alerting. Publishing is fire-and-forget: a broker
// outage never affects request handling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/stafflane/access/internal/audit"
	"github.com/stafflane/access/internal/obs"
)

const (
	exchangeName   = "security-events"
	publishTimeout = 2 * time.Second
)

// Publisher sends audit entries to a RabbitMQ topic exchange. A Publisher
// created with an empty URI is disabled and drops everything silently.
type Publisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	enabled bool
}

// NewPublisher connects to the broker and declares the exchange. An empty
// URI disables publishing without error so deployments can opt out.
func NewPublisher(uri string) (*Publisher, error) {
	if uri == "" {
		obs.LogEvent(map[string]any{
			"ts":    time.Now().UTC().Format(time.RFC3339Nano),
			"level": "info",
			"msg":   "security event publishing disabled, no broker configured",
		})
		return &Publisher{}, nil
	}

	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("connect message broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open broker channel: %w", err)
	}
	if err := channel.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, channel: channel, enabled: true}, nil
}

// Notify publishes the entry with its action as routing key. Errors are
// logged and swallowed.
func (p *Publisher) Notify(ctx context.Context, entry audit.Entry) {
	if !p.enabled {
		return
	}
	body, err := json.Marshal(entry)
	if err != nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	err = p.channel.PublishWithContext(pubCtx, exchangeName, entry.Action, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   entry.CreatedAt,
		Body:        body,
	})
	p.mu.Unlock()
	if err != nil {
		obs.LogEvent(map[string]any{
			"ts":     time.Now().UTC().Format(time.RFC3339Nano),
			"level":  "warn",
			"msg":    "security event publish failed",
			"action": entry.Action,
			"error":  err.Error(),
		})
	}
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	if !p.enabled {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
