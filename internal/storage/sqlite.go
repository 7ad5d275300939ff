package storage

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/RecoveryAshes/poharvest/internal/models"
)

//go:embed schema.sql
var schema string

// SQLiteSink mirrors the result set into two tables. Each Save replaces the
// table contents inside one transaction.
type SQLiteSink struct {
	path string
	db   *sql.DB
}

// NewSQLiteSink opens (or creates) the database at path and applies the schema.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteSink{path: path, db: db}, nil
}

// Save implements Sink.
func (s *SQLiteSink) Save(records []models.Record, _ int) (string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin sqlite transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM line_items`); err != nil {
		return "", fmt.Errorf("clear line_items: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM purchase_orders`); err != nil {
		return "", fmt.Errorf("clear purchase_orders: %w", err)
	}

	orderStmt, err := tx.Prepare(`INSERT INTO purchase_orders
		(po_number, url, vendor, order_date, expected_arrival, status, currency, total_amount, origin_page, position, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer orderStmt.Close()

	lineStmt, err := tx.Prepare(`INSERT INTO line_items
		(po_number, line_no, product, quantity, unit_price, taxes, subtotal)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer lineStmt.Close()

	for pos, r := range records {
		_, err := orderStmt.Exec(
			r.ItemID,
			nullable(r.SourceURL),
			nullableField(r, models.FieldVendor),
			nullableField(r, models.FieldOrderDate),
			nullableField(r, models.FieldExpectedArrival),
			nullableField(r, models.FieldStatus),
			nullableField(r, models.FieldCurrency),
			nullableField(r, models.FieldTotalAmount),
			r.OriginPage,
			pos,
			nullable(r.Error),
		)
		if err != nil {
			return "", fmt.Errorf("insert %s: %w", r.ItemID, err)
		}
		for i, li := range r.LineItems {
			if _, err := lineStmt.Exec(r.ItemID, i+1, nullable(li.Product), li.Quantity, li.UnitPrice, nullable(li.Taxes), li.Subtotal); err != nil {
				return "", fmt.Errorf("insert line %d of %s: %w", i+1, r.ItemID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit sqlite transaction: %w", err)
	}
	return s.path, nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableField(r models.Record, key string) sql.NullString {
	v, ok := r.Field(key)
	return sql.NullString{String: v, Valid: ok}
}
