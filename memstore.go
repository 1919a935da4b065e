package centavo

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemStore is an in-memory Store. It backs tests and embedded use, and is
// the reference for the atomic-section semantics: writes are staged per
// section and committed under one lock, so readers never observe a
// half-applied operation.
type MemStore struct {
	locks *lockTable

	mu        sync.RWMutex
	accounts  map[string]Account
	positions map[string]Position
	txs       []Transaction
	txIDs     map[int64]struct{}
	invs      []InvestmentTransaction
	invIDs    map[int64]struct{}
}

// NewMemStore creates an empty in-memory store with the default lock wait.
func NewMemStore() *MemStore {
	return newMemStore(DefaultLockWait)
}

func newMemStore(wait time.Duration) *MemStore {
	return &MemStore{
		locks:     newLockTable(wait),
		accounts:  make(map[string]Account),
		positions: make(map[string]Position),
		txIDs:     make(map[int64]struct{}),
		invIDs:    make(map[int64]struct{}),
	}
}

// RunAtomic implements Store.
func (s *MemStore) RunAtomic(ctx context.Context, keys []string, fn func(View) error) error {
	release, err := s.locks.acquire(ctx, canonicalKeys(keys))
	if err != nil {
		return err
	}
	defer release()

	v := &memView{
		s:         s,
		accounts:  make(map[string]Account),
		positions: make(map[string]Position),
	}
	if err := fn(v); err != nil {
		return err // staged writes are discarded with the view
	}
	s.commit(v)
	return nil
}

func (s *MemStore) commit(v *memView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range v.accounts {
		s.accounts[id] = a
	}
	for key, p := range v.positions {
		s.positions[key] = p
	}
	for _, t := range v.txs {
		s.txs = append(s.txs, t)
		s.txIDs[t.ID] = struct{}{}
	}
	for _, t := range v.invs {
		s.invs = append(s.invs, t)
		s.invIDs[t.ID] = struct{}{}
	}
}

// CreateAccount implements Store.
func (s *MemStore) CreateAccount(_ context.Context, a Account) error {
	if a.ID == "" || a.Balance.IsNegative() || a.Invested.IsNegative() {
		return fmt.Errorf("account %q: %w", a.ID, ErrInvalidState)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; ok {
		return fmt.Errorf("account %q already exists: %w", a.ID, ErrInvalidState)
	}
	s.accounts[a.ID] = a
	return nil
}

// GetAccount implements Store.
func (s *MemStore) GetAccount(_ context.Context, id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return Account{}, fmt.Errorf("account %q: %w", id, ErrNotFound)
	}
	return a, nil
}

// GetPosition implements Store.
func (s *MemStore) GetPosition(_ context.Context, accountID, instrument string) (Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.positions[PositionKey(accountID, instrument)]; ok {
		return p, nil
	}
	return Position{AccountID: accountID, Instrument: instrument}, nil
}

// ListPositions implements Store.
func (s *MemStore) ListPositions(_ context.Context, accountID string) ([]Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Position
	for _, p := range s.positions {
		if p.AccountID == accountID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b Position) int {
		switch {
		case a.Instrument < b.Instrument:
			return -1
		case a.Instrument > b.Instrument:
			return 1
		default:
			return 0
		}
	})
	return out, nil
}

// ListTransactions implements Store.
func (s *MemStore) ListTransactions(_ context.Context, accountID string, page Page) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []Transaction
	for _, t := range s.txs {
		if t.AccountID == accountID {
			all = append(all, t)
		}
	}
	slices.SortFunc(all, func(a, b Transaction) int { return int(a.ID - b.ID) })
	return paginate(all, page), nil
}

// ListInvestments implements Store.
func (s *MemStore) ListInvestments(_ context.Context, accountID string, page Page) ([]InvestmentTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []InvestmentTransaction
	for _, t := range s.invs {
		if t.AccountID == accountID {
			all = append(all, t)
		}
	}
	slices.SortFunc(all, func(a, b InvestmentTransaction) int { return int(a.ID - b.ID) })
	return paginate(all, page), nil
}

// MaxIDs implements Store.
func (s *MemStore) MaxIDs(_ context.Context) (cash, investment int64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id := range s.txIDs {
		cash = max(cash, id)
	}
	for id := range s.invIDs {
		investment = max(investment, id)
	}
	return cash, investment, nil
}

// paginate cuts one page out of an id-ordered slice.
func paginate[T any](all []T, page Page) []T {
	page = page.normalize()
	if page.Desc {
		slices.Reverse(all)
	}
	lo := page.offset()
	if lo >= len(all) {
		return nil
	}
	hi := min(lo+page.Size, len(all))
	return all[lo:hi:hi]
}

// memView stages one atomic section's writes.
type memView struct {
	s         *MemStore
	accounts  map[string]Account
	positions map[string]Position
	txs       []Transaction
	invs      []InvestmentTransaction
}

// Account implements View. Reads observe the section's own writes.
func (v *memView) Account(id string) (Account, error) {
	if a, ok := v.accounts[id]; ok {
		return a, nil
	}
	return v.s.GetAccount(context.Background(), id)
}

// SetBalance implements View.
func (v *memView) SetBalance(id string, balance Money) error {
	a, err := v.Account(id)
	if err != nil {
		return err
	}
	if balance.IsNegative() {
		return fmt.Errorf("account %q balance %s: %w", id, balance, ErrInvalidState)
	}
	a.Balance = balance
	v.accounts[id] = a
	return nil
}

// SetInvested implements View.
func (v *memView) SetInvested(id string, invested Money) error {
	a, err := v.Account(id)
	if err != nil {
		return err
	}
	if invested.IsNegative() {
		return fmt.Errorf("account %q invested %s: %w", id, invested, ErrInvalidState)
	}
	a.Invested = invested
	v.accounts[id] = a
	return nil
}

// Position implements View.
func (v *memView) Position(accountID, instrument string) (Position, error) {
	if p, ok := v.positions[PositionKey(accountID, instrument)]; ok {
		return p, nil
	}
	return v.s.GetPosition(context.Background(), accountID, instrument)
}

// SetPosition implements View.
func (v *memView) SetPosition(p Position) error {
	if p.AccountID == "" || p.Instrument == "" {
		return fmt.Errorf("position key: %w", ErrInvalidState)
	}
	if p.Quantity.IsNegative() {
		return fmt.Errorf("position %s/%s quantity %s: %w", p.AccountID, p.Instrument, p.Quantity, ErrInvalidState)
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	v.positions[PositionKey(p.AccountID, p.Instrument)] = p
	return nil
}

// AppendTransaction implements View.
func (v *memView) AppendTransaction(t Transaction) error {
	if t.ID <= 0 {
		return fmt.Errorf("transaction id %d: %w", t.ID, ErrInvalidState)
	}
	if v.hasTxID(t.ID) {
		return fmt.Errorf("transaction id %d: %w", t.ID, ErrDuplicateID)
	}
	v.txs = append(v.txs, t)
	return nil
}

func (v *memView) hasTxID(id int64) bool {
	for _, t := range v.txs {
		if t.ID == id {
			return true
		}
	}
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	_, ok := v.s.txIDs[id]
	return ok
}

// AppendInvestment implements View.
func (v *memView) AppendInvestment(t InvestmentTransaction) error {
	if t.ID <= 0 {
		return fmt.Errorf("investment transaction id %d: %w", t.ID, ErrInvalidState)
	}
	if v.hasInvID(t.ID) {
		return fmt.Errorf("investment transaction id %d: %w", t.ID, ErrDuplicateID)
	}
	v.invs = append(v.invs, t)
	return nil
}

func (v *memView) hasInvID(id int64) bool {
	for _, t := range v.invs {
		if t.ID == id {
			return true
		}
	}
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	_, ok := v.s.invIDs[id]
	return ok
}
