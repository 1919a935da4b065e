package centavo

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// Recorder appends immutable transaction records, assigning monotonically
// increasing ids and timestamps when absent. Ids never repeat and records
// are never reordered relative to insertion for a given account.
//
// One Recorder is shared by all engines over the same store; its sequences
// are seeded from the store's highest assigned ids.
type Recorder struct {
	cash atomic.Int64
	inv  atomic.Int64
}

// NewRecorder seeds a recorder from the store.
func NewRecorder(ctx context.Context, store Store) (*Recorder, error) {
	cash, inv, err := store.MaxIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("seeding recorder: %w", err)
	}
	r := &Recorder{}
	r.cash.Store(cash)
	r.inv.Store(inv)
	return r, nil
}

// RecordCash appends a cash record inside the caller's atomic section,
// filling in id and timestamp when absent. An id collision with a
// concurrently seeded recorder is retried with a fresh id; a collision on
// a caller-assigned id is returned as ErrDuplicateID.
func (r *Recorder) RecordCash(v View, t Transaction) (Transaction, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	assigned := t.ID == 0
	for {
		if t.ID == 0 {
			t.ID = r.cash.Add(1)
		}
		err := v.AppendTransaction(t)
		if err == nil {
			return t, nil
		}
		if assigned && errors.Is(err, ErrDuplicateID) {
			t.ID = 0
			continue
		}
		return Transaction{}, err
	}
}

// RecordInvestment is RecordCash for investment records.
func (r *Recorder) RecordInvestment(v View, t InvestmentTransaction) (InvestmentTransaction, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	assigned := t.ID == 0
	for {
		if t.ID == 0 {
			t.ID = r.inv.Add(1)
		}
		err := v.AppendInvestment(t)
		if err == nil {
			return t, nil
		}
		if assigned && errors.Is(err, ErrDuplicateID) {
			t.ID = 0
			continue
		}
		return InvestmentTransaction{}, err
	}
}
