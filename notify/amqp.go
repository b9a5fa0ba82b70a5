/*
amqp.go - RabbitMQ-backed shift-close notifications

PURPOSE:
  Publishes one JSON message per closed shift to a fanout exchange.
  Downstream consumers (email, WhatsApp relays) subscribe to the
  exchange; this process never knows or cares who listens.

DELIVERY SEMANTICS:
  At-least-once from the caller's perspective: a retried close that
  loses the conditional transition produces no second message, but a
  timeout after a committed close may. Consumers must tolerate
  duplicates keyed by shift id.
*/
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/warp/shift-engine/shift"
)

const closedExchange = "shift.closed"

// AMQPNotifier publishes close summaries to a fanout exchange.
type AMQPNotifier struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// DialAMQP connects to the broker and declares the exchange.
func DialAMQP(url string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(closedExchange, "fanout", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPNotifier{conn: conn, ch: ch}, nil
}

func (n *AMQPNotifier) Close() {
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		_ = n.conn.Close()
	}
}

func (n *AMQPNotifier) ShiftClosed(ctx context.Context, s shift.ClosedSummary) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	return n.ch.PublishWithContext(ctx, closedExchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		MessageId:    string(s.ShiftID),
		Body:         body,
	})
}
