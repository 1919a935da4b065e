package centavo

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
)

// mapResolver resolves identifiers from a fixed table.
type mapResolver map[string]string

func (r mapResolver) ResolveIdentifier(_ context.Context, identifier string) (string, error) {
	id, ok := r[identifier]
	if !ok {
		return "", fmt.Errorf("no account for %q", identifier)
	}
	return id, nil
}

// mapFeed serves prices from a mutable table.
type mapFeed map[string]Money

func (f mapFeed) CurrentPrice(_ context.Context, instrument string) (Money, error) {
	price, ok := f[instrument]
	if !ok {
		return Money{}, fmt.Errorf("no price for %q", instrument)
	}
	return price, nil
}

func newTestRecorder(t *testing.T, store Store) *Recorder {
	t.Helper()
	rec, err := NewRecorder(context.Background(), store)
	if err != nil {
		t.Fatalf("NewRecorder() = %v", err)
	}
	return rec
}

// newFundedAccount opens an account and deposits the opening balance.
func newFundedAccount(t *testing.T, svc *AccountService, id string, opening Money) {
	t.Helper()
	if _, err := svc.OpenAccount(context.Background(), id, opening.Currency()); err != nil {
		t.Fatalf("OpenAccount(%q) = %v", id, err)
	}
	if opening.IsZero() {
		return
	}
	if _, _, err := svc.Deposit(context.Background(), id, opening, "opening balance"); err != nil {
		t.Fatalf("Deposit(%q, %s) = %v", id, opening, err)
	}
}

func testLogger() zerolog.Logger { return zerolog.Nop() }
