package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/service"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueSRI   = "jobs:sri"
	QueueEmail = "jobs:email"
)

// Job types.
const (
	JobEnvioSRI     = "envio_sri"
	JobEmailFactura = "email_factura"
	JobEmailMulta   = "email_multa"
)

// MaxJobAttempts is how many times a failing job runs before the DLQ.
const MaxJobAttempts = 3

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// IDPayload carries the entity a job refers to.
type IDPayload struct {
	ID string `json:"id"`
}

// Handler processes one job. A returned error requeues the job until
// MaxJobAttempts; permanent failures should be logged and return nil.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

var _ service.Encolador = (*Dispatcher)(nil)

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

func (d *Dispatcher) EnqueueSubmission(ctx context.Context, facturaID uuid.UUID) error {
	return d.enqueue(ctx, QueueSRI, JobEnvioSRI, facturaID)
}

func (d *Dispatcher) EnqueueInvoiceEmail(ctx context.Context, facturaID uuid.UUID) error {
	return d.enqueue(ctx, QueueEmail, JobEmailFactura, facturaID)
}

func (d *Dispatcher) EnqueueFineEmail(ctx context.Context, cuentaID uuid.UUID) error {
	return d.enqueue(ctx, QueueEmail, JobEmailMulta, cuentaID)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, id uuid.UUID) error {
	data, err := json.Marshal(IDPayload{ID: id.String()})
	if err != nil {
		return err
	}
	return push(ctx, d.rdb, queue, Job{Type: jobType, Payload: data})
}

func push(ctx context.Context, rdb *redis.Client, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, queue, encoded).Err()
}

// Pool consumes both queues and routes jobs to their handler by type.
type Pool struct {
	rdb      *redis.Client
	dlq      *DLQ
	handlers map[string]Handler
}

func NewPool(rdb *redis.Client, dlq *DLQ) *Pool {
	return &Pool{rdb: rdb, dlq: dlq, handlers: make(map[string]Handler)}
}

// Handle registers h for jobType. Call before Start.
func (p *Pool) Handle(jobType string, h Handler) {
	p.handlers[jobType] = h
}

// Start launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP, zero CPU when idle.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go p.run(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) run(ctx context.Context, id int) {
	queues := []string{QueueSRI, QueueEmail}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop, waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue
			}
			if len(result) < 2 {
				continue
			}
			p.process(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) process(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		p.dlq.Push(ctx, queue, "desconocido", json.RawMessage(raw), "payload ilegible", 0)
		return
	}
	h, ok := p.handlers[job.Type]
	if !ok {
		log.Error().Str("type", job.Type).Str("queue", queue).Msg("no handler for job type")
		p.dlq.Push(ctx, queue, job.Type, job.Payload, "sin handler", job.Attempts)
		return
	}

	err := runSafe(ctx, h, job.Payload)
	if err == nil {
		return
	}
	job.Attempts++
	if job.Attempts >= MaxJobAttempts {
		p.dlq.Push(ctx, queue, job.Type, job.Payload, err.Error(), job.Attempts)
		return
	}
	log.Warn().Err(err).Str("type", job.Type).Int("attempts", job.Attempts).Msg("job failed, requeued")
	if perr := push(ctx, p.rdb, queue, job); perr != nil {
		log.Error().Err(perr).Str("type", job.Type).Msg("requeue failed")
	}
}

// runSafe turns a handler panic into an error so one bad job cannot kill a worker.
func runSafe(ctx context.Context, h Handler, payload json.RawMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(ctx, payload)
}

func parseID(payload json.RawMessage) (uuid.UUID, error) {
	var p IDPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(p.ID)
}
