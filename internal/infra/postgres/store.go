// Package postgres is the PostgreSQL storage backend on a pgx connection
// pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/fintrack-go/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Config holds the pool settings. Zero values fall back to defaults.
type Config struct {
	URL         string
	MaxPoolSize int
}

// Store implements port.Store on a pgxpool.Pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New connects, pings and migrates the database at cfg.URL.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxPoolSize == 0 {
		cfg.MaxPoolSize = 10
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxPoolSize)
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := RunMigrations(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database),
	)
	return &Store{pool: pool, logger: logger}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ============================================================
// Categories
// ============================================================

const categoryColumns = `id, name, type, color, created_at, updated_at`

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name COLLATE "C"`)
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
	c, err := scanCategory(s.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "category", ID: id}
	}
	return c, err
}

func (s *Store) FindCategoryByName(ctx context.Context, name string) (*domain.Category, error) {
	c, err := scanCategory(s.pool.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE LOWER(name) = LOWER($1)`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "category", ID: name}
	}
	return c, err
}

func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.Name, string(c.Type), c.Color, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return categoryWriteError("create category", err)
	}
	return nil
}

func (s *Store) UpdateCategory(ctx context.Context, c *domain.Category) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE categories SET name = $1, type = $2, color = $3, updated_at = $4 WHERE id = $5`,
		c.Name, string(c.Type), c.Color, c.UpdatedAt, c.ID)
	if err != nil {
		return categoryWriteError("update category", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "category", ID: c.ID}
	}
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			n, cerr := s.CountTransactionsByCategory(ctx, id)
			if cerr != nil {
				return cerr
			}
			return domain.CategoryInUse(n)
		}
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "category", ID: id}
	}
	return nil
}

func (s *Store) CountTransactionsByCategory(ctx context.Context, id string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE category_id = $1`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// ============================================================
// Transactions
// ============================================================

const transactionSelect = `
SELECT t.id, t.type, t.amount::text, t.category_id, t.description, t.date, t.created_at, t.updated_at,
       c.id, c.name, c.type, c.color, c.created_at, c.updated_at
FROM transactions t
LEFT JOIN categories c ON c.id = t.category_id`

func (s *Store) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	query := transactionSelect
	args := []any{}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since.Time)
		query += fmt.Sprintf(` WHERE t.date >= $%d`, len(args))
	}
	query += ` ORDER BY t.date DESC, t.seq DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Skip > 0 {
		args = append(args, filter.Skip)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
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
	t, err := scanTransaction(s.pool.QueryRow(ctx, transactionSelect+` WHERE t.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	return t, err
}

func (s *Store) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO transactions (id, type, amount, category_id, description, date, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8)`,
		t.ID, string(t.Type), t.Amount.String(), t.CategoryID, t.Description, t.Date.Time,
		t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return transactionWriteError("create transaction", t, err)
	}
	return s.attachCategory(ctx, t)
}

func (s *Store) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE transactions
		SET type = $1, amount = $2::numeric, category_id = $3, description = $4, date = $5, updated_at = $6
		WHERE id = $7`,
		string(t.Type), t.Amount.String(), t.CategoryID, t.Description, t.Date.Time, t.UpdatedAt, t.ID)
	if err != nil {
		return transactionWriteError("update transaction", t, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "transaction", ID: t.ID}
	}
	return s.attachCategory(ctx, t)
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	return nil
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

func scanCategory(row pgx.Row) (*domain.Category, error) {
	var (
		c   domain.Category
		typ string
	)
	if err := row.Scan(&c.ID, &c.Name, &typ, &c.Color, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Type = domain.TransactionType(typ)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		t                                 domain.Transaction
		typ, amount                       string
		date                              time.Time
		catID, catName, catType, catColor *string
		catCreated, catUpdated            *time.Time
	)
	err := row.Scan(&t.ID, &typ, &amount, &t.CategoryID, &t.Description, &date, &t.CreatedAt, &t.UpdatedAt,
		&catID, &catName, &catType, &catColor, &catCreated, &catUpdated)
	if err != nil {
		return nil, err
	}

	t.Type = domain.TransactionType(typ)
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("transaction %s: amount %q: %w", t.ID, amount, err)
	}
	t.Date = domain.DateOf(date)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()

	if catID != nil {
		t.Category = &domain.Category{
			ID:        *catID,
			Name:      *catName,
			Type:      domain.TransactionType(*catType),
			Color:     *catColor,
			CreatedAt: catCreated.UTC(),
			UpdatedAt: catUpdated.UTC(),
		}
	}
	return &t, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func categoryWriteError(op string, err error) error {
	if pgCode(err) == codeUniqueViolation {
		return domain.DuplicateCategoryName()
	}
	return fmt.Errorf("%s: %w", op, err)
}

func transactionWriteError(op string, t *domain.Transaction, err error) error {
	switch pgCode(err) {
	case codeForeignKeyViolation:
		return &domain.ErrValidation{Field: "category_id", Message: "category " + t.CategoryID + " does not exist"}
	case codeUniqueViolation:
		return &domain.ErrDuplicate{Resource: "transaction", Field: "id"}
	}
	return fmt.Errorf("%s: %w", op, err)
}
