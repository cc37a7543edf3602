package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rl1809/allocation/internal/core/domain"
)

type MySQLOutbox struct {
	q querier
}

// NewMySQLOutbox returns an outbox outside any unit of work, as used by the relay.
func NewMySQLOutbox(db *sql.DB) *MySQLOutbox {
	return &MySQLOutbox{q: db}
}

func (o *MySQLOutbox) Put(ctx context.Context, env domain.Envelope) error {
	_, err := o.q.ExecContext(ctx, `
		INSERT INTO outbox_events (id, aggregate_type, aggregate_id, type, payload, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		env.ID.String(), env.AggregateType, env.AggregateID, env.Type, []byte(env.Payload), env.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert envelope: %w", err)
	}
	return nil
}

func (o *MySQLOutbox) All(ctx context.Context) ([]domain.Envelope, error) {
	rows, err := o.q.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, type, payload, timestamp
		FROM outbox_events ORDER BY timestamp, id`)
	if err != nil {
		return nil, fmt.Errorf("query envelopes: %w", err)
	}
	defer rows.Close()

	var envs []domain.Envelope
	for rows.Next() {
		var (
			env     domain.Envelope
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &env.AggregateType, &env.AggregateID, &env.Type, &payload, &env.Timestamp); err != nil {
			return nil, fmt.Errorf("scan envelope: %w", err)
		}
		if env.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse envelope id %q: %w", id, err)
		}
		env.Payload = payload
		envs = append(envs, env)
	}
	return envs, rows.Err()
}

func (o *MySQLOutbox) Delete(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")

	_, err := o.q.ExecContext(ctx, `DELETE FROM outbox_events WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("delete envelopes: %w", err)
	}
	return nil
}
