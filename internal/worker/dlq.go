package worker

// Jobs that exhaust their attempts, and invoices the reconciler gave up on,
// land here for manual inspection. One Redis list per source queue: dlq:{queue}

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

// DLQEntry wraps a failed job with metadata for debugging.
type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      time.Time       `json:"failed_at"`
	Attempts      int             `json:"attempts"`
}

type DLQ struct {
	rdb *redis.Client
	now func() time.Time
}

func NewDLQ(rdb *redis.Client) *DLQ {
	return &DLQ{rdb: rdb, now: time.Now}
}

// Push never fails the caller; a lost DLQ entry is logged instead.
func (q *DLQ) Push(ctx context.Context, queue, jobType string, payload json.RawMessage, reason string, attempts int) {
	entry := DLQEntry{
		OriginalQueue: queue,
		JobType:       jobType,
		Payload:       payload,
		Reason:        reason,
		FailedAt:      q.now().UTC(),
		Attempts:      attempts,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: failed to marshal entry")
		return
	}
	key := DLQPrefix + queue
	if err := q.rdb.LPush(ctx, key, data).Err(); err != nil {
		log.Error().Err(err).Str("dlq_key", key).Msg("dlq: failed to push")
		return
	}
	log.Warn().
		Str("queue", queue).
		Str("job_type", jobType).
		Str("reason", reason).
		Int("attempts", attempts).
		Msg("dlq: job moved to dead letter queue")
}

// Len returns the number of entries in a DLQ for monitoring.
func (q *DLQ) Len(ctx context.Context, queue string) (int64, error) {
	return q.rdb.LLen(ctx, DLQPrefix+queue).Result()
}

// Peek returns up to n of the newest entries without removing them.
func (q *DLQ) Peek(ctx context.Context, queue string, n int64) ([]DLQEntry, error) {
	raw, err := q.rdb.LRange(ctx, DLQPrefix+queue, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]DLQEntry, 0, len(raw))
	for _, r := range raw {
		var e DLQEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
