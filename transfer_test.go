package centavo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func newTransferFixture(t *testing.T) (*MemStore, *AccountService, *TransferEngine) {
	t.Helper()
	store := NewMemStore()
	rec := newTestRecorder(t, store)
	svc := NewAccountService(store, rec, testLogger())
	resolver := mapResolver{
		"maria@example.com":      "acc-y",
		"0000003100010000000001": "acc-y",
		"maria.cuenta.ok":        "acc-y",
		"self@example.com":       "acc-x",
	}
	engine := NewTransferEngine(store, rec, resolver, testLogger())
	return store, svc, engine
}

func TestTransferEngine_Transfer(t *testing.T) {
	ctx := context.Background()
	store, svc, engine := newTransferFixture(t)
	newFundedAccount(t, svc, "acc-x", M(500.00, "ARS"))
	newFundedAccount(t, svc, "acc-y", M(100.00, "ARS"))

	out, err := engine.Transfer(ctx, TransferRequest{
		Sender:      "acc-x",
		Recipient:   "maria@example.com",
		Amount:      M(200.00, "ARS"),
		Description: "rent",
	})
	if err != nil {
		t.Fatalf("Transfer() = %v", err)
	}

	x, _ := store.GetAccount(ctx, "acc-x")
	y, _ := store.GetAccount(ctx, "acc-y")
	if !x.Balance.Equal(M(300, "ARS")) || !y.Balance.Equal(M(300, "ARS")) {
		t.Errorf("balances = %s / %s, want 300 / 300", x.Balance.StorableAmount(), y.Balance.StorableAmount())
	}

	if out.Kind != TxTransferOut || out.AccountID != "acc-x" || out.Counterparty != "acc-y" {
		t.Errorf("sender record = %+v", out)
	}

	// The recipient's record shares the correlation id.
	yTxs, err := store.ListTransactions(ctx, "acc-y", Page{})
	if err != nil {
		t.Fatalf("ListTransactions() = %v", err)
	}
	var in *Transaction
	for i := range yTxs {
		if yTxs[i].Kind == TxTransferIn {
			in = &yTxs[i]
		}
	}
	if in == nil {
		t.Fatal("no transfer-in record for recipient")
	}
	if in.CorrelationID == "" || in.CorrelationID != out.CorrelationID {
		t.Errorf("correlation ids = %q / %q, want equal and non-empty", in.CorrelationID, out.CorrelationID)
	}
	if !in.Amount.Equal(out.Amount) {
		t.Errorf("amounts = %s / %s, want equal", in.Amount.StorableAmount(), out.Amount.StorableAmount())
	}
}

func TestTransferEngine_Failures(t *testing.T) {
	ctx := context.Background()
	_, svc, engine := newTransferFixture(t)
	newFundedAccount(t, svc, "acc-x", M(50.00, "ARS"))
	newFundedAccount(t, svc, "acc-y", M(0, "ARS"))

	testCases := []struct {
		name   string
		req    TransferRequest
		wantIs error
	}{
		{
			name:   "insufficient funds",
			req:    TransferRequest{Sender: "acc-x", Recipient: "maria@example.com", Amount: M(50.01, "ARS")},
			wantIs: ErrInsufficientFunds,
		},
		{
			name:   "unknown identifier",
			req:    TransferRequest{Sender: "acc-x", Recipient: "nadie@example.com", Amount: M(10, "ARS")},
			wantIs: ErrRecipientNotFound,
		},
		{
			name:   "self transfer",
			req:    TransferRequest{Sender: "acc-x", Recipient: "self@example.com", Amount: M(10, "ARS")},
			wantIs: ErrInvalidArgument,
		},
		{
			name:   "non-positive amount",
			req:    TransferRequest{Sender: "acc-x", Recipient: "maria@example.com", Amount: M(0, "ARS")},
			wantIs: ErrInvalidArgument,
		},
		{
			// 0.004 ARS rounds to 0.00; it must not produce two zero-amount records.
			name:   "amount below currency resolution",
			req:    TransferRequest{Sender: "acc-x", Recipient: "maria@example.com", Amount: M(0.004, "ARS")},
			wantIs: ErrInvalidArgument,
		},
		{
			name:   "amount in foreign currency",
			req:    TransferRequest{Sender: "acc-x", Recipient: "maria@example.com", Amount: M(10, "USD")},
			wantIs: ErrInvalidArgument,
		},
		{
			name:   "empty identifier",
			req:    TransferRequest{Sender: "acc-x", Amount: M(10, "ARS")},
			wantIs: ErrInvalidArgument,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := engine.Transfer(ctx, tc.req); !errors.Is(err, tc.wantIs) {
				t.Errorf("Transfer() = %v, want %v", err, tc.wantIs)
			}
		})
	}

	// Failures must not move money.
	x, _ := svc.GetAccount(ctx, "acc-x")
	if !x.Balance.Equal(M(50, "ARS")) {
		t.Errorf("sender balance = %s, want 50", x.Balance.StorableAmount())
	}
}

func TestTransferEngine_IdempotentReplay(t *testing.T) {
	ctx := context.Background()
	store, svc, engine := newTransferFixture(t)
	newFundedAccount(t, svc, "acc-x", M(500.00, "ARS"))
	newFundedAccount(t, svc, "acc-y", M(0, "ARS"))

	req := TransferRequest{
		Sender:         "acc-x",
		Recipient:      "maria.cuenta.ok",
		Amount:         M(100.00, "ARS"),
		IdempotencyKey: "req-42",
	}
	first, err := engine.Transfer(ctx, req)
	if err != nil {
		t.Fatalf("Transfer() = %v", err)
	}
	replay, err := engine.Transfer(ctx, req)
	if err != nil {
		t.Fatalf("replayed Transfer() = %v", err)
	}
	if replay.ID != first.ID || replay.CorrelationID != first.CorrelationID {
		t.Errorf("replay = tx %d (%s), want original tx %d (%s)", replay.ID, replay.CorrelationID, first.ID, first.CorrelationID)
	}

	// No extra movement.
	x, _ := store.GetAccount(ctx, "acc-x")
	y, _ := store.GetAccount(ctx, "acc-y")
	if !x.Balance.Equal(M(400, "ARS")) || !y.Balance.Equal(M(100, "ARS")) {
		t.Errorf("balances after replay = %s / %s, want 400 / 100", x.Balance.StorableAmount(), y.Balance.StorableAmount())
	}

	// A failed attempt must release its key for a clean retry.
	bad := TransferRequest{Sender: "acc-x", Recipient: "maria.cuenta.ok", Amount: M(10000, "ARS"), IdempotencyKey: "req-43"}
	if _, err := engine.Transfer(ctx, bad); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("Transfer() = %v, want ErrInsufficientFunds", err)
	}
	bad.Amount = M(10, "ARS")
	if _, err := engine.Transfer(ctx, bad); err != nil {
		t.Errorf("retry after failure = %v, want success", err)
	}
}

func TestTransferEngine_ReciprocalConcurrentTransfers(t *testing.T) {
	ctx := context.Background()
	store, svc, engine := newTransferFixture(t)
	newFundedAccount(t, svc, "acc-x", M(500.00, "ARS"))
	newFundedAccount(t, svc, "acc-y", M(500.00, "ARS"))

	resolver := mapResolver{"x": "acc-x", "y": "acc-y"}
	engine.resolver = resolver

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := engine.Transfer(ctx, TransferRequest{Sender: "acc-x", Recipient: "y", Amount: M(50, "ARS")})
		errs <- err
	}()
	go func() {
		defer wg.Done()
		_, err := engine.Transfer(ctx, TransferRequest{Sender: "acc-y", Recipient: "x", Amount: M(50, "ARS")})
		errs <- err
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Transfer() = %v", err)
		}
	}

	// Equal opposite transfers conserve both balances.
	x, _ := store.GetAccount(ctx, "acc-x")
	y, _ := store.GetAccount(ctx, "acc-y")
	if !x.Balance.Equal(M(500, "ARS")) || !y.Balance.Equal(M(500, "ARS")) {
		t.Errorf("balances = %s / %s, want 500 / 500", x.Balance.StorableAmount(), y.Balance.StorableAmount())
	}
}

// faultStore fails reads of one account with a storage error.
type faultStore struct {
	*MemStore
	fail string
}

func (s faultStore) RunAtomic(ctx context.Context, keys []string, fn func(View) error) error {
	return s.MemStore.RunAtomic(ctx, keys, func(v View) error {
		return fn(faultView{View: v, fail: s.fail})
	})
}

type faultView struct {
	View
	fail string
}

func (v faultView) Account(id string) (Account, error) {
	if id == v.fail {
		return Account{}, fmt.Errorf("reading account %q: %w", id, ErrStorage)
	}
	return v.View.Account(id)
}

func TestTransferEngine_StorageFailureIsNotRecipientNotFound(t *testing.T) {
	ctx := context.Background()
	mem := NewMemStore()
	rec := newTestRecorder(t, mem)
	svc := NewAccountService(mem, rec, testLogger())
	newFundedAccount(t, svc, "acc-x", M(100, "ARS"))
	newFundedAccount(t, svc, "acc-y", M(0, "ARS"))

	store := faultStore{MemStore: mem, fail: "acc-y"}
	engine := NewTransferEngine(store, rec, mapResolver{"y@example.com": "acc-y"}, testLogger())

	_, err := engine.Transfer(ctx, TransferRequest{Sender: "acc-x", Recipient: "y@example.com", Amount: M(10, "ARS")})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("Transfer() = %v, want ErrStorage", err)
	}
	if errors.Is(err, ErrRecipientNotFound) {
		t.Errorf("Transfer() = %v, a storage failure must stay retryable", err)
	}

	// A genuinely missing recipient account still resolves to the terminal error.
	missing := NewTransferEngine(mem, rec, mapResolver{"ghost@example.com": "acc-ghost"}, testLogger())
	if _, err := missing.Transfer(ctx, TransferRequest{Sender: "acc-x", Recipient: "ghost@example.com", Amount: M(10, "ARS")}); !errors.Is(err, ErrRecipientNotFound) {
		t.Errorf("Transfer() = %v, want ErrRecipientNotFound", err)
	}
}

func TestClassifyIdentifier(t *testing.T) {
	testCases := []struct {
		identifier string
		want       IdentifierKind
	}{
		{"maria@example.com", IdentEmail},
		{"0000003100010000000001", IdentCVU},
		{"maria.cuenta.ok", IdentAlias},
		{"maria.ok", IdentAlias},
		{"123", IdentUnknown},
		{"not an identifier", IdentUnknown},
		{"", IdentUnknown},
	}
	for _, tc := range testCases {
		t.Run(tc.identifier, func(t *testing.T) {
			if got := ClassifyIdentifier(tc.identifier); got != tc.want {
				t.Errorf("ClassifyIdentifier(%q) = %s, want %s", tc.identifier, got, tc.want)
			}
		})
	}
}
