package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/omni-orders/internal/domain/order"
	"github.com/xenking/omni-orders/internal/events"
)

const (
	insertOutboxSQL = `INSERT INTO outbox_events (event_id, event_type, aggregate_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	// Rows stuck in processing longer than the lease are claimed again.
	claimOutboxSQL = `UPDATE outbox_events
		SET status = 'processing', claimed_at = now(), attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status = 'pending'
				OR (status = 'processing' AND claimed_at < now() - $2::interval)
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_id, event_type, aggregate_id, payload, attempts`

	markOutboxProcessedSQL = `UPDATE outbox_events
		SET status = 'processed', processed_at = now()
		WHERE id = ANY($1) AND status = 'processing'`

	releaseOutboxSQL = `UPDATE outbox_events
		SET status = 'pending', claimed_at = NULL
		WHERE id = ANY($1) AND status = 'processing'`
)

var (
	_ order.EventRecorder = (*Outbox)(nil)
	_ events.Store        = (*Outbox)(nil)
)

// Outbox stores domain events in the outbox_events table in the caller's
// transaction and hands them to the relay.
type Outbox struct {
	pool  *pgxpool.Pool
	lease time.Duration
	now   func() time.Time
}

// NewOutbox returns an Outbox. Claimed events not acknowledged within lease
// become claimable again.
func NewOutbox(pool *pgxpool.Pool, lease time.Duration) *Outbox {
	return &Outbox{pool: pool, lease: lease, now: time.Now}
}

// RecordImported queues an order.imported event.
func (o *Outbox) RecordImported(ctx context.Context, ord *order.Order) error {
	msg, err := events.NewOrderImported(uuid.New(), o.now().UTC(), ord)
	if err != nil {
		return errors.Wrap(err, "build event")
	}
	return o.Add(ctx, msg)
}

// Add queues msg.
func (o *Outbox) Add(ctx context.Context, msg events.Message) error {
	if _, err := conn(ctx, o.pool).Exec(ctx, insertOutboxSQL,
		msg.EventID, msg.Type, msg.Key, msg.Payload, msg.CreatedAt,
	); err != nil {
		return errors.Wrapf(err, "insert outbox event %s", msg.EventID)
	}
	return nil
}

// Claim marks up to limit pending events as processing and returns them.
func (o *Outbox) Claim(ctx context.Context, limit int) ([]events.Message, error) {
	rows, err := o.pool.Query(ctx, claimOutboxSQL, limit, o.lease)
	if err != nil {
		return nil, errors.Wrap(err, "claim outbox events")
	}
	msgs, err := pgx.CollectRows(rows, scanOutboxMessage)
	if err != nil {
		return nil, errors.Wrap(err, "claim outbox events")
	}
	return msgs, nil
}

// MarkProcessed acknowledges published events.
func (o *Outbox) MarkProcessed(ctx context.Context, ids []int64) error {
	if _, err := o.pool.Exec(ctx, markOutboxProcessedSQL, ids); err != nil {
		return errors.Wrap(err, "mark outbox events processed")
	}
	return nil
}

// Release returns claimed events to the pending state.
func (o *Outbox) Release(ctx context.Context, ids []int64) error {
	if _, err := o.pool.Exec(ctx, releaseOutboxSQL, ids); err != nil {
		return errors.Wrap(err, "release outbox events")
	}
	return nil
}

func scanOutboxMessage(row pgx.CollectableRow) (events.Message, error) {
	var (
		m        events.Message
		attempts int32
	)
	err := row.Scan(&m.ID, &m.EventID, &m.Type, &m.Key, &m.Payload, &attempts)
	m.Attempts = int(attempts)
	return m, err
}
