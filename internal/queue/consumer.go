package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const paymentResultQueue = "payment.result"

// ResultHandler processes a single payment result.  A non-nil error
// causes the message to be rejected without requeue; the provider is
// expected to retry through its own schedule, not the broker's.
type ResultHandler func(ctx context.Context, msg PaymentResultMessage) error

// StartPaymentConsumer connects to RabbitMQ, declares the payment.result
// queue (durable), and consumes payment provider results, handing each
// one to fn. It runs a reconnect loop with exponential backoff and only
// returns once ctx is cancelled, so launch it in its own goroutine.
func StartPaymentConsumer(ctx context.Context, fn ResultHandler) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			log.Printf("payment-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(ctx, conn, fn); err != nil {
			log.Printf("payment-consumer: consume loop ended: %v; reconnecting", err)
			_ = conn.Close()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Second):
			}
			continue
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, fn ResultHandler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("payment-consumer: set QoS failed: %v", err)
	}

	_, err = ch.QueueDeclare(paymentResultQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(paymentResultQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleDelivery(ctx, d.Body, fn); err != nil {
				log.Printf("payment-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleDelivery(ctx context.Context, body []byte, fn ResultHandler) error {
	var msg PaymentResultMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if msg.PaymentRef == "" {
		return errors.New("payment result missing payment_ref")
	}
	return fn(ctx, msg)
}
