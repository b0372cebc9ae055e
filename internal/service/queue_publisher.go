// Package queue_publisher publishes committed lending events to RabbitMQ.
// Errors are logged and returned; the lending engine never lets them fail
// the request that produced the event.
package queue_publisher

import (
	"context"
	"log/slog"
	"net"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/library-lending/internal/lending"
	q "github.com/iliyamo/library-lending/internal/queue"
	"github.com/iliyamo/library-lending/internal/utils"
)

// AMQPPublisher implements lending.Publisher over the default exchange,
// routing every event to the durable loan.events queue.
type AMQPPublisher struct {
	URL string
	Log *slog.Logger
}

// New returns a publisher for url, or a no-op publisher when url is empty.
func New(url string, log *slog.Logger) lending.Publisher {
	if url == "" {
		return lending.NopPublisher{}
	}
	return &AMQPPublisher{URL: url, Log: log}
}

// dialTimeout caps the connect and handshake when ctx carries no earlier
// deadline.
const dialTimeout = 2 * time.Second

// dial opens a broker connection whose TCP connect and AMQP handshake are
// both bounded by ctx.
func (p *AMQPPublisher) dial(ctx context.Context) (*amqp.Connection, error) {
	return amqp.DialConfig(p.URL, amqp.Config{
		Locale: "en_US",
		Dial: func(network, addr string) (net.Conn, error) {
			deadline := time.Now().Add(dialTimeout)
			if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
				deadline = d
			}
			dialer := net.Dialer{Deadline: deadline}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			// Cleared by the library once the handshake completes.
			if err := conn.SetDeadline(deadline); err != nil {
				_ = conn.Close()
				return nil, err
			}
			return conn, nil
		},
	})
}

// Publish dials the broker, declares the queue and sends ev as a
// persistent JSON message.
func (p *AMQPPublisher) Publish(ctx context.Context, ev lending.Event) error {
	msg, err := Encode(ev)
	if err != nil {
		p.Log.Error("rabbitmq: marshal event failed", "error", err)
		return err
	}

	conn, err := p.dial(ctx)
	if err != nil {
		p.Log.Warn("rabbitmq: dial failed", "error", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Log.Warn("rabbitmq: channel open failed", "error", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent. Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		q.LoanEventsQueue, // name
		true,              // durable
		false,             // autoDelete
		false,             // exclusive
		false,             // noWait
		nil,               // args
	); err != nil {
		p.Log.Warn("rabbitmq: queue declare failed", "error", err)
		return err
	}

	if err := ch.PublishWithContext(ctx,
		"",                // default exchange
		q.LoanEventsQueue, // routing key = queue name
		false,             // mandatory
		false,             // immediate
		msg,
	); err != nil {
		p.Log.Warn("rabbitmq: publish failed", "error", err)
		return err
	}
	return nil
}

// Encode builds the AMQP message for ev.
func Encode(ev lending.Event) (amqp.Publishing, error) {
	wire := q.NewLoanEvent(ev)
	body, err := utils.JSON.Marshal(wire)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    wire.EventID,
		Type:         wire.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}, nil
}
