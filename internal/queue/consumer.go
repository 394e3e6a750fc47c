// AMQP intake: each message is one application request. Prefetch is pinned
// to 1 because the pipeline owns a single browser session.

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"go-helpapply-automation/internal/config"
	"go-helpapply-automation/internal/database"
	"go-helpapply-automation/internal/models"
	"go-helpapply-automation/internal/runner"
)

const reconnectDelay = 5 * time.Second

// Disposition is what the consumer does with a message after handling it.
type Disposition int

const (
	DispositionAck Disposition = iota
	DispositionRequeue
	DispositionDeadLetter
)

// Submitter persists incoming requests before they are processed.
type Submitter interface {
	CreateApplication(ctx context.Context, app *models.Application) (*models.Application, error)
	GetByJobAndEmail(ctx context.Context, jobURL, email string) (*models.Application, error)
}

// Processor runs a single application through the pipeline.
type Processor interface {
	ProcessOne(ctx context.Context, id int64) (*models.Application, error)
	Retry(ctx context.Context, id int64) (*models.Application, error)
}

type Consumer struct {
	cfg       *config.Config
	store     Submitter
	processor Processor
}

func NewConsumer(cfg *config.Config, store Submitter, processor Processor) *Consumer {
	return &Consumer{cfg: cfg, store: store, processor: processor}
}

// Run consumes until ctx is cancelled, reconnecting on connection loss.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		err := c.consumeOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("⚠️ Queue connection lost, reconnecting in %s: %v", reconnectDelay, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Consumer) consumeOnce(ctx context.Context) error {
	conn, err := amqp.Dial(c.cfg.AMQPURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	// one message in flight at a time
	if err := ch.Qos(1, 0, false); err != nil {
		return err
	}

	queue, err := ch.QueueDeclare(c.cfg.AMQPQueue, true, false, false, false, nil)
	if err != nil {
		return err
	}

	deliveries, err := ch.Consume(queue.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	log.Printf("📨 Listening on queue %q", queue.Name)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.settle(d, c.handle(ctx, d.Body))
		}
	}
}

func (c *Consumer) settle(d amqp.Delivery, disp Disposition) {
	var err error
	switch disp {
	case DispositionAck:
		err = d.Ack(false)
	case DispositionRequeue:
		err = d.Nack(false, true)
	case DispositionDeadLetter:
		err = d.Nack(false, false)
	}
	if err != nil {
		log.Printf("⚠️ Could not settle message: %v", err)
	}
}

// handle turns one message body into a processed application and decides
// what to do with the delivery.
func (c *Consumer) handle(ctx context.Context, body []byte) Disposition {
	var app models.Application
	if err := json.Unmarshal(body, &app); err != nil {
		log.Printf("🗑️ Malformed message, dead-lettering: %v", err)
		return DispositionDeadLetter
	}
	if app.JobURL == "" || app.Email == "" {
		log.Println("🗑️ Message missing job_url or email, dead-lettering")
		return DispositionDeadLetter
	}

	created, err := c.store.CreateApplication(ctx, &app)
	if err != nil {
		if errors.Is(err, database.ErrConflict) {
			return c.handleDuplicate(ctx, app.JobURL, app.Email)
		}
		log.Printf("⚠️ Could not persist application, requeueing: %v", err)
		return DispositionRequeue
	}

	result, err := c.processor.ProcessOne(ctx, created.ID)
	if err != nil {
		return ClassifyProcessError(err)
	}
	return classifyResult(result)
}

// handleDuplicate resolves a redelivered or resubmitted message against the
// record that already exists for (job_url, email). Unfinished records are
// pushed through the pipeline again instead of being dropped.
func (c *Consumer) handleDuplicate(ctx context.Context, jobURL, email string) Disposition {
	existing, err := c.store.GetByJobAndEmail(ctx, jobURL, email)
	if err != nil {
		log.Printf("⚠️ Could not look up duplicate for %s, requeueing: %v", jobURL, err)
		return DispositionRequeue
	}

	switch {
	case existing.Status == models.StatusSuccess:
		log.Printf("♻️ Duplicate application for %s, already succeeded", jobURL)
		return DispositionAck
	case existing.Status == models.StatusPending:
		result, err := c.processor.ProcessOne(ctx, existing.ID)
		if err != nil {
			return ClassifyProcessError(err)
		}
		return classifyResult(result)
	case existing.CanRetry():
		log.Printf("🔁 Duplicate application for %s is %s, retrying", jobURL, existing.Status)
		result, err := c.processor.Retry(ctx, existing.ID)
		if err != nil {
			return ClassifyProcessError(err)
		}
		return classifyResult(result)
	default:
		// exhausted, or stuck in processing (stale rows are not recovered)
		log.Printf("♻️ Duplicate application for %s in state %s, nothing to do", jobURL, existing.Status)
		return DispositionAck
	}
}

// classifyResult decides the delivery fate of a completed attempt. A failed
// submission with retry budget left goes back on the queue for bounded
// redelivery; everything else is settled.
func classifyResult(result *models.Application) Disposition {
	if result.Status == models.StatusFailed && result.CanRetry() {
		log.Printf("🔁 Application %d failed (attempt %d/%d), requeueing", result.ID, result.Attempts, result.MaxAttempts)
		return DispositionRequeue
	}
	log.Printf("✅ Processed application %d: %s", result.ID, result.Status)
	return DispositionAck
}

// ClassifyProcessError maps a processing failure to a delivery disposition.
// Busy and transient failures go back on the queue; the stored row keeps the
// outcome either way, so terminal states never requeue.
func ClassifyProcessError(err error) Disposition {
	switch {
	case errors.Is(err, runner.ErrBusy):
		return DispositionRequeue
	case errors.Is(err, runner.ErrInvalidState):
		// attempts exhausted or already terminal; outcome is in the DB
		return DispositionAck
	case errors.Is(err, database.ErrNotFound):
		return DispositionDeadLetter
	default:
		return DispositionRequeue
	}
}
