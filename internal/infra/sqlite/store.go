// Package sqlite is the file-backed storage backend built on the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/boddenberg/fintrack-go/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const timeLayout = time.RFC3339Nano

// Store implements port.Store on a single *sql.DB.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates the database file if needed, applies migrations and returns
// a ready store.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if err := RunMigrations(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serialises writers anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("sqlite store ready", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ============================================================
// Categories
// ============================================================

const categoryColumns = `id, name, type, color, created_at, updated_at`

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories ORDER BY name COLLATE BINARY`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *Store) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "category", ID: id}
	}
	return c, err
}

func (s *Store) FindCategoryByName(ctx context.Context, name string) (*domain.Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE name = ?`, name)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "category", ID: name}
	}
	return c, err
}

func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, string(c.Type), c.Color, formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return categoryWriteError("create category", err)
	}
	return nil
}

func (s *Store) UpdateCategory(ctx context.Context, c *domain.Category) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, type = ?, color = ?, updated_at = ? WHERE id = ?`,
		c.Name, string(c.Type), c.Color, formatTime(c.UpdatedAt), c.ID)
	if err != nil {
		return categoryWriteError("update category", err)
	}
	return requireRow(res, "category", c.ID)
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY) {
			n, cerr := s.CountTransactionsByCategory(ctx, id)
			if cerr != nil {
				return cerr
			}
			return domain.CategoryInUse(n)
		}
		return fmt.Errorf("delete category: %w", err)
	}
	return requireRow(res, "category", id)
}

func (s *Store) CountTransactionsByCategory(ctx context.Context, id string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE category_id = ?`, id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// ============================================================
// Transactions
// ============================================================

const transactionSelect = `
SELECT t.id, t.type, t.amount, t.category_id, t.description, t.date, t.created_at, t.updated_at,
       c.id, c.name, c.type, c.color, c.created_at, c.updated_at
FROM transactions t
LEFT JOIN categories c ON c.id = t.category_id`

func (s *Store) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	query := transactionSelect
	var args []any
	if !filter.Since.IsZero() {
		query += ` WHERE t.date >= ?`
		args = append(args, filter.Since.String())
	}
	query += ` ORDER BY t.date DESC, t.rowid DESC`
	if filter.Limit > 0 || filter.Skip > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, filter.Skip)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx, transactionSelect+` WHERE t.id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	return t, err
}

func (s *Store) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, type, amount, category_id, description, date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, string(t.Type), t.Amount.String(), t.CategoryID, t.Description, t.Date.String(),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return transactionWriteError("create transaction", t, err)
	}
	return s.attachCategory(ctx, t)
}

func (s *Store) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET type = ?, amount = ?, category_id = ?, description = ?, date = ?, updated_at = ?
		WHERE id = ?`,
		string(t.Type), t.Amount.String(), t.CategoryID, t.Description, t.Date.String(),
		formatTime(t.UpdatedAt), t.ID)
	if err != nil {
		return transactionWriteError("update transaction", t, err)
	}
	if err := requireRow(res, "transaction", t.ID); err != nil {
		return err
	}
	return s.attachCategory(ctx, t)
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return requireRow(res, "transaction", id)
}

func (s *Store) attachCategory(ctx context.Context, t *domain.Transaction) error {
	c, err := s.GetCategory(ctx, t.CategoryID)
	if err != nil {
		return err
	}
	t.Category = c
	return nil
}

// ============================================================
// Helpers
// ============================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanCategory(row scanner) (*domain.Category, error) {
	var (
		c                  domain.Category
		typ                string
		created, updatedAt string
	)
	if err := row.Scan(&c.ID, &c.Name, &typ, &c.Color, &created, &updatedAt); err != nil {
		return nil, err
	}
	c.Type = domain.TransactionType(typ)
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

func scanTransaction(row scanner) (*domain.Transaction, error) {
	var (
		t                                 domain.Transaction
		typ, amount, date                 string
		created, updatedAt                string
		catID, catName, catType, catColor sql.NullString
		catCreated, catUpdated            sql.NullString
	)
	err := row.Scan(&t.ID, &typ, &amount, &t.CategoryID, &t.Description, &date, &created, &updatedAt,
		&catID, &catName, &catType, &catColor, &catCreated, &catUpdated)
	if err != nil {
		return nil, err
	}

	t.Type = domain.TransactionType(typ)
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("transaction %s: amount %q: %w", t.ID, amount, err)
	}
	// A malformed stored date stays zero; the aggregation engine skips it.
	t.Date, _ = domain.ParseDate(date)
	t.CreatedAt = parseTime(created)
	t.UpdatedAt = parseTime(updatedAt)

	if catID.Valid {
		t.Category = &domain.Category{
			ID:        catID.String,
			Name:      catName.String,
			Type:      domain.TransactionType(catType.String),
			Color:     catColor.String,
			CreatedAt: parseTime(catCreated.String),
			UpdatedAt: parseTime(catUpdated.String),
		}
	}
	return &t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func requireRow(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return &domain.ErrNotFound{Resource: resource, ID: id}
	}
	return nil
}

// isConstraint matches the extended result code, falling back to the
// message text for drivers built without extended codes.
func isConstraint(err error, code int) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) && serr.Code() == code {
		return true
	}
	msg := err.Error()
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return strings.Contains(msg, "UNIQUE constraint failed: categories.name")
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return strings.Contains(msg, "FOREIGN KEY constraint failed")
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return strings.Contains(msg, "UNIQUE constraint failed: transactions.id")
	}
	return false
}

func categoryWriteError(op string, err error) error {
	if isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE) {
		return domain.DuplicateCategoryName()
	}
	return fmt.Errorf("%s: %w", op, err)
}

func transactionWriteError(op string, t *domain.Transaction, err error) error {
	switch {
	case isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY):
		return &domain.ErrValidation{Field: "category_id", Message: "category " + t.CategoryID + " does not exist"}
	case isConstraint(err, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY):
		return &domain.ErrDuplicate{Resource: "transaction", Field: "id"}
	}
	return fmt.Errorf("%s: %w", op, err)
}
