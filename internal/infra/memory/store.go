// Package memory is an in-process storage backend, used by default and in
// tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/boddenberg/fintrack-go/internal/domain"
)

// Store keeps categories and transactions in maps guarded by a RWMutex.
// Transactions also carry an insertion sequence so equal dates list newest
// first.
type Store struct {
	mu         sync.RWMutex
	categories map[string]domain.Category
	txs        map[string]storedTx
	seq        int64
}

type storedTx struct {
	tx  domain.Transaction
	seq int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		categories: make(map[string]domain.Category),
		txs:        make(map[string]storedTx),
	}
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

// ============================================================
// Categories
// ============================================================

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.categories[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "category", ID: id}
	}
	return &c, nil
}

func (s *Store) FindCategoryByName(ctx context.Context, name string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.byName(name); ok {
		return &c, nil
	}
	return nil, &domain.ErrNotFound{Resource: "category", ID: name}
}

func (s *Store) byName(name string) (domain.Category, bool) {
	for _, c := range s.categories {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return domain.Category{}, false
}

func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName(c.Name); ok {
		return domain.DuplicateCategoryName()
	}
	s.categories[c.ID] = *c
	return nil
}

func (s *Store) UpdateCategory(ctx context.Context, c *domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[c.ID]; !ok {
		return &domain.ErrNotFound{Resource: "category", ID: c.ID}
	}
	if other, ok := s.byName(c.Name); ok && other.ID != c.ID {
		return domain.DuplicateCategoryName()
	}
	s.categories[c.ID] = *c
	return nil
}

func (s *Store) DeleteCategory(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.categories[id]; !ok {
		return &domain.ErrNotFound{Resource: "category", ID: id}
	}
	if n := s.countByCategory(id); n > 0 {
		return inUse(n)
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) CountTransactionsByCategory(ctx context.Context, id string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countByCategory(id), nil
}

func (s *Store) countByCategory(id string) int {
	n := 0
	for _, st := range s.txs {
		if st.tx.CategoryID == id {
			n++
		}
	}
	return n
}

func inUse(n int) error {
	return domain.CategoryInUse(n)
}

func unknownCategory(id string) error {
	return &domain.ErrValidation{Field: "category_id", Message: "category " + id + " does not exist"}
}

// ============================================================
// Transactions
// ============================================================

func (s *Store) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]storedTx, 0, len(s.txs))
	for _, st := range s.txs {
		if !filter.Since.IsZero() && st.tx.Date.Before(filter.Since.Time) {
			continue
		}
		rows = append(rows, st)
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].tx.Date.Equal(rows[j].tx.Date.Time) {
			return rows[i].tx.Date.After(rows[j].tx.Date.Time)
		}
		return rows[i].seq > rows[j].seq
	})

	rows = page(rows, filter.Skip, filter.Limit)
	out := make([]domain.Transaction, len(rows))
	for i, st := range rows {
		out[i] = s.withCategory(st.tx)
	}
	return out, nil
}

func page[T any](rows []T, skip, limit int) []T {
	if skip > 0 {
		if skip >= len(rows) {
			return nil
		}
		rows = rows[skip:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func (s *Store) withCategory(t domain.Transaction) domain.Transaction {
	if c, ok := s.categories[t.CategoryID]; ok {
		t.Category = &c
	} else {
		t.Category = nil
	}
	return t
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.txs[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	t := s.withCategory(st.tx)
	return &t, nil
}

func (s *Store) CreateTransaction(ctx context.Context, t *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.txs[t.ID]; ok {
		return &domain.ErrDuplicate{Resource: "transaction", Field: "id"}
	}
	if _, ok := s.categories[t.CategoryID]; !ok {
		return unknownCategory(t.CategoryID)
	}
	s.seq++
	stored := *t
	stored.Category = nil
	s.txs[t.ID] = storedTx{tx: stored, seq: s.seq}
	*t = s.withCategory(stored)
	return nil
}

func (s *Store) UpdateTransaction(ctx context.Context, t *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.txs[t.ID]
	if !ok {
		return &domain.ErrNotFound{Resource: "transaction", ID: t.ID}
	}
	if _, ok := s.categories[t.CategoryID]; !ok {
		return unknownCategory(t.CategoryID)
	}
	stored := *t
	stored.Category = nil
	s.txs[t.ID] = storedTx{tx: stored, seq: st.seq}
	*t = s.withCategory(stored)
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.txs[id]; !ok {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	delete(s.txs, id)
	return nil
}
