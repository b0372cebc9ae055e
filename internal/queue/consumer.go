package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/library-lending/internal/utils"
)

// LoanLogFile is the file, inside the log directory, that receives one
// line per consumed LoanEvent.
const LoanLogFile = "loans.log"

// Consumer drains the loan.events queue into a human-readable log file.
type Consumer struct {
	URL    string
	LogDir string
	Log    *slog.Logger
}

// Run connects to RabbitMQ, declares the durable loan.events queue and
// consumes until ctx is cancelled.  Lost connections are re-dialled with
// a capped exponential backoff.  A message that cannot be handled is
// rejected without requeue so one bad payload cannot stall the queue.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn("loan-consumer: dial failed", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn("loan-consumer: consume loop ended; reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn("loan-consumer: set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(LoanEventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(LoanEventsQueue, "", false, false, false, false, nil)
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
			if err := c.Handle(d.Body); err != nil {
				c.Log.Error("loan-consumer: handle message failed", "error", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one LoanEvent and appends its log line.
func (c *Consumer) Handle(body []byte) error {
	var ev LoanEvent
	if err := utils.JSON.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" || ev.LoanID == 0 {
		return errors.New("incomplete loan event")
	}
	if err := os.MkdirAll(c.LogDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.LogDir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.LogDir, LoanLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders ev as one newline-terminated log line.
func FormatLine(ev LoanEvent) string {
	action := "Book borrowed"
	if ev.Type == "loan.returned" {
		action = "Book returned"
	}
	returned := "-"
	if ev.ReturnDate != nil {
		returned = *ev.ReturnDate
	}
	return fmt.Sprintf("[%s] %s | loan_id=%d | book_id=%d | user_id=%d | title=%q | due=%s | returned=%s | stock=%d | available=%t | event_id=%s\n",
		ev.OccurredAt, action, ev.LoanID, ev.BookID, ev.UserID, ev.BookTitle, ev.DueDate, returned, ev.Stock, ev.Available, ev.EventID)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
