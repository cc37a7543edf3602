package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/allocation/internal/core/domain"
	"github.com/rl1809/allocation/internal/port"
)

var ErrUnitOfWorkClosed = errors.New("unit of work already closed")

type UnitOfWorkOption func(*MySQLUnitOfWorkFactory)

func WithLogger(logger *zap.Logger) UnitOfWorkOption {
	return func(f *MySQLUnitOfWorkFactory) { f.logger = logger }
}

// KeepEnvelopes leaves committed envelopes in the outbox for the relay to
// delete instead of removing them after commit.
func KeepEnvelopes(keep bool) UnitOfWorkOption {
	return func(f *MySQLUnitOfWorkFactory) { f.keepEnvelopes = keep }
}

func WithUnitOfWorkTracer(t trace.Tracer) UnitOfWorkOption {
	return func(f *MySQLUnitOfWorkFactory) { f.tracer = t }
}

type MySQLUnitOfWorkFactory struct {
	db            *sql.DB
	logger        *zap.Logger
	tracer        trace.Tracer
	keepEnvelopes bool
}

func NewMySQLUnitOfWorkFactory(db *sql.DB, opts ...UnitOfWorkOption) *MySQLUnitOfWorkFactory {
	f := &MySQLUnitOfWorkFactory{
		db:     db,
		logger: zap.NewNop(),
		tracer: otel.Tracer("github.com/rl1809/allocation/internal/adapter/storage"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *MySQLUnitOfWorkFactory) Begin(ctx context.Context) (port.UnitOfWork, error) {
	tx, err := f.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}

	return &MySQLUnitOfWork{
		factory:  f,
		tx:       tx,
		products: newMySQLProductRepository(tx),
		outbox:   &MySQLOutbox{q: tx},
		events:   domain.CatcherFrom(ctx),
	}, nil
}

type MySQLUnitOfWork struct {
	factory  *MySQLUnitOfWorkFactory
	tx       *sql.Tx
	products *MySQLProductRepository
	outbox   *MySQLOutbox
	events   *domain.Catcher
	closed   bool
}

func (u *MySQLUnitOfWork) Products() port.ProductRepository {
	return u.products
}

func (u *MySQLUnitOfWork) Events() *domain.Catcher {
	return u.events
}

func (u *MySQLUnitOfWork) Commit(ctx context.Context) (err error) {
	if u.closed {
		return ErrUnitOfWorkClosed
	}

	ctx, span := u.factory.tracer.Start(ctx, "uow.commit")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	events := u.events.Drain()
	span.SetAttributes(attribute.Int("outbox.envelopes", len(events)))

	if err := u.products.flush(ctx); err != nil {
		return err
	}

	ids := make([]uuid.UUID, 0, len(events))
	for _, evt := range events {
		env, err := domain.NewEnvelope(evt)
		if err != nil {
			return err
		}
		if err := u.outbox.Put(ctx, env); err != nil {
			return classify(err)
		}
		ids = append(ids, env.ID)
	}

	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", classify(err))
	}
	u.closed = true
	u.events.Commit(events)

	if !u.factory.keepEnvelopes {
		u.deleteEnvelopes(ctx, ids)
	}
	return nil
}

// deleteEnvelopes removes delivered envelopes in a separate transaction.
// Failures leave the rows for the relay.
func (u *MySQLUnitOfWork) deleteEnvelopes(ctx context.Context, ids []uuid.UUID) {
	if len(ids) == 0 {
		return
	}

	err := func() error {
		tx, err := u.factory.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		if err := (&MySQLOutbox{q: tx}).Delete(ctx, ids...); err != nil {
			return err
		}
		return tx.Commit()
	}()
	if err != nil {
		u.factory.logger.Warn("outbox cleanup failed", zap.Int("envelope_count", len(ids)), zap.Error(err))
	}
}

func (u *MySQLUnitOfWork) Rollback(ctx context.Context) error {
	if u.closed {
		return nil
	}
	u.closed = true
	u.events.Drain()

	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
