package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/allocation/internal/core/domain"
	"github.com/rl1809/allocation/internal/port"
)

// tracked remembers what a product looked like when it was loaded, so that
// flush can write only the difference and compare versions.
type tracked struct {
	product  *domain.Product
	version  int
	isNew    bool
	deleted  bool
	batchIDs map[string]int64
	lines    map[string]map[domain.OrderLine]struct{}
}

// MySQLProductRepository is bound to one transaction. Changes made to the
// products it returns are written by flush.
type MySQLProductRepository struct {
	q    querier
	seen map[string]*tracked
}

func newMySQLProductRepository(q querier) *MySQLProductRepository {
	return &MySQLProductRepository{q: q, seen: make(map[string]*tracked)}
}

func (r *MySQLProductRepository) Add(ctx context.Context, product *domain.Product) error {
	if _, ok := r.seen[product.Sku]; ok {
		return fmt.Errorf("product %s already tracked", product.Sku)
	}
	r.seen[product.Sku] = &tracked{
		product:  product,
		version:  product.VersionNumber,
		isNew:    true,
		batchIDs: make(map[string]int64),
		lines:    make(map[string]map[domain.OrderLine]struct{}),
	}
	return nil
}

func (r *MySQLProductRepository) Get(ctx context.Context, sku string) (*domain.Product, error) {
	if t, ok := r.seen[sku]; ok {
		if t.deleted {
			return nil, nil
		}
		return t.product, nil
	}

	var version int
	err := r.q.QueryRowContext(ctx, `
		SELECT version_number FROM products WHERE sku = ?`, sku,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}

	t, err := r.load(ctx, sku, version)
	if err != nil {
		return nil, err
	}
	r.seen[sku] = t
	return t.product, nil
}

func (r *MySQLProductRepository) GetByBatchRef(ctx context.Context, ref string) (*domain.Product, error) {
	for _, t := range r.seen {
		if !t.deleted && t.product.Batch(ref) != nil {
			return t.product, nil
		}
	}

	var sku string
	err := r.q.QueryRowContext(ctx, `
		SELECT sku FROM batches WHERE reference = ?`, ref,
	).Scan(&sku)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query batch: %w", err)
	}

	return r.Get(ctx, sku)
}

func (r *MySQLProductRepository) Delete(ctx context.Context, product *domain.Product) error {
	t, ok := r.seen[product.Sku]
	if !ok {
		return fmt.Errorf("product %s not loaded", product.Sku)
	}
	t.deleted = true
	return nil
}

func (r *MySQLProductRepository) load(ctx context.Context, sku string, version int) (*tracked, error) {
	t := &tracked{
		version:  version,
		batchIDs: make(map[string]int64),
		lines:    make(map[string]map[domain.OrderLine]struct{}),
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT b.id, b.reference, b.purchased_quantity, b.eta, a.order_id, a.sku, a.qty
		FROM batches b
		LEFT JOIN allocations a ON a.batch_id = b.id
		WHERE b.sku = ?
		ORDER BY b.id`, sku)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	type batchRow struct {
		ref string
		qty int
		eta *time.Time
	}
	var order []string
	batches := make(map[string]batchRow)

	for rows.Next() {
		var (
			id      int64
			b       batchRow
			eta     sql.NullTime
			orderID sql.NullString
			lineSku sql.NullString
			lineQty sql.NullInt64
		)
		if err := rows.Scan(&id, &b.ref, &b.qty, &eta, &orderID, &lineSku, &lineQty); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		if _, ok := t.batchIDs[b.ref]; !ok {
			if eta.Valid {
				b.eta = &eta.Time
			}
			t.batchIDs[b.ref] = id
			t.lines[b.ref] = make(map[domain.OrderLine]struct{})
			batches[b.ref] = b
			order = append(order, b.ref)
		}
		if orderID.Valid {
			line := domain.OrderLine{OrderID: orderID.String, Sku: lineSku.String, Qty: int(lineQty.Int64)}
			t.lines[b.ref][line] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}

	product := domain.NewProduct(sku)
	product.VersionNumber = version
	for _, ref := range order {
		b := batches[ref]
		lines := make([]domain.OrderLine, 0, len(t.lines[ref]))
		for line := range t.lines[ref] {
			lines = append(lines, line)
		}
		product.AddBatch(domain.RestoreBatch(ref, sku, b.qty, b.eta, lines))
	}
	t.product = product
	return t, nil
}

// flush writes every tracked product, failing with port.ErrConcurrencyConflict
// when the stored version moved since it was loaded.
func (r *MySQLProductRepository) flush(ctx context.Context) error {
	for _, t := range r.seen {
		if err := r.flushProduct(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (r *MySQLProductRepository) flushProduct(ctx context.Context, t *tracked) error {
	p := t.product

	switch {
	case t.isNew && t.deleted:
		return nil
	case t.deleted:
		return r.checkedExec(ctx, p.Sku, `
			DELETE FROM products WHERE sku = ? AND version_number = ?`, p.Sku, t.version)
	case t.isNew:
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO products (sku, version_number) VALUES (?, ?)`, p.Sku, p.VersionNumber,
		); err != nil {
			return fmt.Errorf("insert product: %w", classify(err))
		}
	case p.VersionNumber != t.version:
		if err := r.checkedExec(ctx, p.Sku, `
			UPDATE products SET version_number = ?
			WHERE sku = ? AND version_number = ?`, p.VersionNumber, p.Sku, t.version,
		); err != nil {
			return err
		}
	default:
		// Unversioned changes still have to be made against the version read.
		var current int
		err := r.q.QueryRowContext(ctx, `
			SELECT version_number FROM products WHERE sku = ? FOR UPDATE`, p.Sku,
		).Scan(&current)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lock product: %w", classify(err))
		}
		if err != nil || current != t.version {
			return fmt.Errorf("%w: product %s", port.ErrConcurrencyConflict, p.Sku)
		}
	}

	for _, b := range p.Batches {
		if err := r.flushBatch(ctx, t, b); err != nil {
			return err
		}
	}
	return nil
}

func (r *MySQLProductRepository) flushBatch(ctx context.Context, t *tracked, b *domain.Batch) error {
	id, ok := t.batchIDs[b.Reference]
	if !ok {
		res, err := r.q.ExecContext(ctx, `
			INSERT INTO batches (reference, sku, purchased_quantity, eta)
			VALUES (?, ?, ?, ?)`,
			b.Reference, b.Sku, b.PurchasedQuantity, b.ETA,
		)
		if err != nil {
			return fmt.Errorf("insert batch %s: %w", b.Reference, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("insert batch %s: %w", b.Reference, err)
		}
		t.batchIDs[b.Reference] = id
	} else if _, err := r.q.ExecContext(ctx, `
		UPDATE batches SET purchased_quantity = ?, eta = ? WHERE id = ?`,
		b.PurchasedQuantity, b.ETA, id,
	); err != nil {
		return fmt.Errorf("update batch %s: %w", b.Reference, classify(err))
	}

	loaded := t.lines[b.Reference]
	current := make(map[domain.OrderLine]struct{})
	for _, line := range b.Allocations() {
		current[line] = struct{}{}
	}

	for line := range loaded {
		if _, ok := current[line]; ok {
			continue
		}
		if _, err := r.q.ExecContext(ctx, `
			DELETE FROM allocations
			WHERE batch_id = ? AND order_id = ? AND sku = ? AND qty = ?`,
			id, line.OrderID, line.Sku, line.Qty,
		); err != nil {
			return fmt.Errorf("delete allocation: %w", classify(err))
		}
	}
	for line := range current {
		if _, ok := loaded[line]; ok {
			continue
		}
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO allocations (batch_id, order_id, sku, qty) VALUES (?, ?, ?, ?)`,
			id, line.OrderID, line.Sku, line.Qty,
		); err != nil {
			return fmt.Errorf("insert allocation: %w", classify(err))
		}
	}
	return nil
}

func (r *MySQLProductRepository) checkedExec(ctx context.Context, sku, query string, args ...any) error {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("write product %s: %w", sku, classify(err))
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("%w: product %s", port.ErrConcurrencyConflict, sku)
	}
	return nil
}
