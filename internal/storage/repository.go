// Package storage is the durable receipt store backed by a single local
// SQLite database file.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"receipts/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// brings the schema up to date.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const receiptColumns = `id, created_at, vendor, receipt_date, total_cents, currency, category, items_json, image_path, image_sha256`

// itemRecord is the persisted shape of one line item inside items_json.
// Prices are stored as cents so the column round-trips exactly.
type itemRecord struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

func encodeItems(items []core.Item) (string, error) {
	records := make([]itemRecord, len(items))
	for i, it := range items {
		records[i] = itemRecord{Name: it.Name, PriceCents: it.Price.Cents}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encode items: %w", err)
	}
	return string(data), nil
}

func decodeItems(data string) ([]core.Item, error) {
	var records []itemRecord
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	items := make([]core.Item, len(records))
	for i, rec := range records {
		items[i] = core.Item{Name: rec.Name, Price: core.Money{Cents: rec.PriceCents}}
	}
	return items, nil
}

// Create validates rec, persists it in one transaction and returns the
// stored receipt with its assigned id and creation timestamp. Nothing is
// written when validation fails. A receipt whose image digest is already
// archived fails with *core.DuplicateImageError.
func (r *SQLiteRepository) Create(ctx context.Context, rec core.Receipt) (core.Receipt, error) {
	if err := rec.Validate(); err != nil {
		return core.Receipt{}, err
	}
	if rec.Category == "" {
		rec.Category = core.CategoryOther
	}

	itemsJSON, err := encodeItems(rec.Items)
	if err != nil {
		return core.Receipt{}, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if rec.ImageSHA != "" {
		var existing int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM receipts WHERE image_sha256 = ?`, rec.ImageSHA).Scan(&existing)
		if err == nil {
			return core.Receipt{}, &core.DuplicateImageError{ReceiptID: existing}
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return core.Receipt{}, fmt.Errorf("check image digest: %w", err)
		}
	}

	rec.CreatedAt = time.Now().UTC().Truncate(time.Second)
	res, err := tx.ExecContext(ctx, `
		INSERT INTO receipts(created_at, vendor, receipt_date, total_cents, currency, category, items_json, image_path, image_sha256)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CreatedAt.Format(time.RFC3339),
		rec.Vendor,
		rec.Date.String(),
		rec.Total.Cents,
		rec.Currency,
		rec.Category,
		itemsJSON,
		nullable(rec.ImagePath),
		nullable(rec.ImageSHA),
	)
	if err != nil {
		return core.Receipt{}, fmt.Errorf("insert receipt: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Receipt{}, fmt.Errorf("read inserted id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Receipt{}, fmt.Errorf("commit receipt: %w", err)
	}

	rec.ID = id
	slog.InfoContext(ctx, "Receipt saved",
		"id", rec.ID,
		"vendor", rec.Vendor,
		"date", rec.Date.String(),
		"total_cents", rec.Total.Cents,
		"currency", rec.Currency,
		"category", rec.Category)
	return rec, nil
}

// Get returns the receipt with the given id, or *core.NotFoundError.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (core.Receipt, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+receiptColumns+` FROM receipts WHERE id = ?`, id)
	rec, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Receipt{}, &core.NotFoundError{ID: id}
	}
	if err != nil {
		return core.Receipt{}, fmt.Errorf("get receipt %d: %w", id, err)
	}
	return rec, nil
}

// Find returns receipts matching every set filter field, newest date first,
// higher id first on date ties. An empty result is a valid outcome, not an
// error.
func (r *SQLiteRepository) Find(ctx context.Context, f core.ReceiptFilter) ([]core.Receipt, error) {
	var clauses []string
	var args []any

	if v := strings.TrimSpace(f.Vendor); v != "" {
		clauses = append(clauses, `LOWER(vendor) LIKE ?`)
		args = append(args, "%"+strings.ToLower(v)+"%")
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		clauses = append(clauses, `LOWER(category) = LOWER(?)`)
		args = append(args, c)
	}
	if !f.Month.IsZero() {
		clauses = append(clauses, `receipt_date LIKE ?`)
		args = append(args, f.Month.String()+"-%")
	}

	query := `SELECT ` + receiptColumns + ` FROM receipts`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}
	query += ` ORDER BY receipt_date DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find receipts: %w", err)
	}
	defer rows.Close()

	var out []core.Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	return out, nil
}

// All returns every receipt, ordered like Find.
func (r *SQLiteRepository) All(ctx context.Context) ([]core.Receipt, error) {
	return r.Find(ctx, core.ReceiptFilter{})
}

// Delete removes the receipt with the given id. Deleting an absent id fails
// with *core.NotFoundError; a second delete of the same id therefore fails.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM receipts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete receipt %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete receipt %d: %w", id, err)
	}
	if n == 0 {
		return &core.NotFoundError{ID: id}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	slog.InfoContext(ctx, "Receipt deleted", "id", id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (core.Receipt, error) {
	var (
		rec        core.Receipt
		createdAt  string
		dateStr    string
		totalCents int64
		itemsJSON  string
		imagePath  sql.NullString
		imageSHA   sql.NullString
	)
	err := row.Scan(&rec.ID, &createdAt, &rec.Vendor, &dateStr, &totalCents,
		&rec.Currency, &rec.Category, &itemsJSON, &imagePath, &imageSHA)
	if err != nil {
		return core.Receipt{}, err
	}

	rec.Total = core.Money{Cents: totalCents}
	rec.ImagePath = imagePath.String
	rec.ImageSHA = imageSHA.String

	if rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return core.Receipt{}, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	if rec.Date, err = core.ParseDate(dateStr); err != nil {
		return core.Receipt{}, err
	}
	if rec.Items, err = decodeItems(itemsJSON); err != nil {
		return core.Receipt{}, err
	}
	return rec, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
