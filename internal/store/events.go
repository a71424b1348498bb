package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// DomainEvent is one recorded business fact, kept as an append-only log.
type DomainEvent struct {
	ID          pgtype.UUID
	Topic       string
	AggregateID pgtype.UUID
	Payload     []byte
	OccurredAt  pgtype.Timestamptz
}

// InsertDomainEventParams groups insert values for a domain event.
type InsertDomainEventParams struct {
	Topic       string
	AggregateID pgtype.UUID
	Payload     []byte
}

const domainEventColumns = `id, topic, aggregate_id, payload, occurred_at`

func scanDomainEvent(row pgx.CollectableRow) (DomainEvent, error) {
	var e DomainEvent
	err := row.Scan(&e.ID, &e.Topic, &e.AggregateID, &e.Payload, &e.OccurredAt)
	return e, err
}

// InsertDomainEvent appends an event and returns the stored row.
func (q *Queries) InsertDomainEvent(ctx context.Context, arg InsertDomainEventParams) (DomainEvent, error) {
	rows, err := q.db.Query(ctx, `
		INSERT INTO domain_events (topic, aggregate_id, payload)
		VALUES ($1, $2, $3)
		RETURNING `+domainEventColumns,
		arg.Topic, arg.AggregateID, arg.Payload)
	if err != nil {
		return DomainEvent{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanDomainEvent)
}

// ListDomainEvents returns the newest events for a topic. An empty topic
// returns events across all topics.
func (q *Queries) ListDomainEvents(ctx context.Context, topic string, limit int32) ([]DomainEvent, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+domainEventColumns+`
		FROM domain_events
		WHERE ($1 = '' OR topic = $1)
		ORDER BY occurred_at DESC
		LIMIT $2`, topic, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanDomainEvent)
}
