package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func getMySQLDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/allocation?parseTime=true"
	}

	db, err := OpenMySQL(dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	require.NoError(t, Migrate(db))

	t.Cleanup(func() { db.Close() })
	return db
}

func randomSuffix() string {
	return uuid.NewString()[:8]
}

func randomSku(name string) string      { return "sku-" + name + "-" + randomSuffix() }
func randomBatchRef(name string) string { return "batch-" + name + "-" + randomSuffix() }
func randomOrderID(name string) string  { return "order-" + name + "-" + randomSuffix() }

func insertBatch(t *testing.T, db *sql.DB, ref, sku string, qty int, eta *time.Time, version int) {
	t.Helper()
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `
		INSERT INTO products (sku, version_number) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE version_number = version_number`, sku, version)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `
		INSERT INTO batches (reference, sku, purchased_quantity, eta) VALUES (?, ?, ?, ?)`,
		ref, sku, qty, eta)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.ExecContext(context.Background(), `DELETE FROM products WHERE sku = ?`, sku)
	})
}

func allocatedBatchRef(t *testing.T, db *sql.DB, orderID, sku string) string {
	t.Helper()

	var ref string
	err := db.QueryRowContext(context.Background(), `
		SELECT b.reference FROM allocations a
		JOIN batches b ON b.id = a.batch_id
		WHERE a.order_id = ? AND a.sku = ?`, orderID, sku,
	).Scan(&ref)
	require.NoError(t, err)
	return ref
}
