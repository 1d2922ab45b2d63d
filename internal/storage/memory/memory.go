package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"finance/internal/core"
)

// Store keeps everything in maps guarded by one mutex. It enforces the same
// uniqueness and foreign-key rules as the SQL schemas.
type Store struct {
	mu           sync.Mutex
	users        map[string]core.User
	categories   map[int64]core.Category
	transactions map[int64]storedTx
	events       []core.TransactionEvent
	nextCategory int64
	nextTx       int64
}

// storedTx holds foreign keys only, so reads always see the current user
// and category rows.
type storedTx struct {
	id          int64
	amount      core.Money
	description string
	createAt    time.Time
	categoryID  int64
	userID      string
}

func New(categories []string) *Store {
	s := &Store{
		users:        make(map[string]core.User),
		categories:   make(map[int64]core.Category),
		transactions: make(map[int64]storedTx),
	}
	for _, name := range dedupe(categories) {
		s.nextCategory++
		s.categories[s.nextCategory] = core.Category{ID: s.nextCategory, Name: name}
	}
	return s
}

// NewFromFiles seeds categories from base/seed_categories.txt, falling back
// to the same defaults the SQL migrations insert.
func NewFromFiles(base string) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = DefaultCategories
	}
	return New(cats)
}

var DefaultCategories = []string{"Food", "Transport", "Housing", "Health", "Entertainment", "Salary", "Other"}

func (s *Store) FindCategoryByName(_ context.Context, name string) (*core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.Name == name {
			found := c
			return &found, nil
		}
	}
	return nil, nil
}

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CreateCategory(_ context.Context, name string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.Name == name {
			return core.Category{}, core.ErrConstraintViolation
		}
	}
	s.nextCategory++
	c := core.Category{ID: s.nextCategory, Name: name}
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) CreateUser(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.ID]; exists {
		return core.ErrConstraintViolation
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return core.ErrConstraintViolation
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) FindUser(_ context.Context, id string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// DeleteUser removes the user and, like ON DELETE CASCADE, its transactions.
func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return core.ErrUserNotFound
	}
	delete(s.users, id)
	for txID, tx := range s.transactions {
		if tx.userID == id {
			delete(s.transactions, txID)
		}
	}
	return nil
}

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRefs(t); err != nil {
		return core.Transaction{}, err
	}
	s.nextTx++
	t.ID = s.nextTx
	s.transactions[t.ID] = toStored(t)
	return s.load(s.transactions[t.ID]), nil
}

func (s *Store) ListTransactionsByUser(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0)
	for _, tx := range s.transactions {
		if tx.userID == userID {
			out = append(out, s.load(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) FindTransaction(_ context.Context, id int64, userID string) (*core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok || tx.userID != userID {
		return nil, nil
	}
	t := s.load(tx)
	return &t, nil
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.transactions[t.ID]
	if !ok || existing.userID != t.User.ID {
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	if err := s.checkRefs(t); err != nil {
		return core.Transaction{}, err
	}
	s.transactions[t.ID] = toStored(t)
	return s.load(s.transactions[t.ID]), nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok || tx.userID != userID {
		return core.ErrTransactionNotFound
	}
	delete(s.transactions, id)
	return nil
}

func (s *Store) RecordTransactionEvent(_ context.Context, e core.TransactionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

// Events returns a copy of the recorded audit trail.
func (s *Store) Events() []core.TransactionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.TransactionEvent(nil), s.events...)
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) checkRefs(t core.Transaction) error {
	if _, ok := s.categories[t.Category.ID]; !ok {
		return core.ErrConstraintViolation
	}
	if _, ok := s.users[t.User.ID]; !ok {
		return core.ErrConstraintViolation
	}
	return nil
}

func toStored(t core.Transaction) storedTx {
	return storedTx{
		id:          t.ID,
		amount:      t.Amount,
		description: t.Description,
		createAt:    t.CreateAt,
		categoryID:  t.Category.ID,
		userID:      t.User.ID,
	}
}

func (s *Store) load(tx storedTx) core.Transaction {
	return core.Transaction{
		ID:          tx.id,
		Amount:      tx.amount,
		Description: tx.description,
		CreateAt:    tx.createAt,
		Category:    s.categories[tx.categoryID],
		User:        s.users[tx.userID],
	}
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
