package centavo

import (
	"context"
	"slices"
	"strings"
)

// View is the state visible inside one atomic section. Reads observe the
// section's own writes; writes become visible to other callers only when
// the section commits. Setters enforce the storage invariants: a negative
// balance, invested amount or quantity is rejected with ErrInvalidState
// before it ever reaches durable state.
type View interface {
	// Account returns the account, or ErrNotFound.
	Account(id string) (Account, error)

	// SetBalance replaces the account's balance. ErrInvalidState if the
	// new balance is negative.
	SetBalance(id string, balance Money) error

	// SetInvested replaces the account's invested amount. ErrInvalidState
	// if negative.
	SetInvested(id string, invested Money) error

	// Position returns the position for (account, instrument). A missing
	// position is not an error: it returns the zero-quantity default.
	Position(accountID, instrument string) (Position, error)

	// SetPosition writes a position. ErrInvalidState if the quantity is
	// negative.
	SetPosition(p Position) error

	// AppendTransaction appends an immutable cash record.
	// ErrDuplicateID if the id is already taken.
	AppendTransaction(t Transaction) error

	// AppendInvestment appends an immutable investment record.
	// ErrDuplicateID if the id is already taken.
	AppendInvestment(t InvestmentTransaction) error
}

// Store is the durable keyed storage behind the core. All mutating
// sequences run inside RunAtomic; the read accessors outside of it serve
// queries and never see a half-applied section.
type Store interface {
	// RunAtomic acquires the exclusive sections for the given keys (in
	// canonical order, to stay deadlock free), runs fn against a View, and
	// commits its writes as one unit. Any error from fn rolls the section
	// back entirely. A contended key set that cannot be acquired within
	// the store's lock wait surfaces ErrBusy. The context is honored only
	// up to section entry: once fn runs, it runs to commit or rollback.
	RunAtomic(ctx context.Context, keys []string, fn func(View) error) error

	// CreateAccount inserts a new account. ErrInvalidState if the id is
	// already taken or the balances are negative.
	CreateAccount(ctx context.Context, a Account) error

	// GetAccount returns the committed account state, or ErrNotFound.
	GetAccount(ctx context.Context, id string) (Account, error)

	// GetPosition returns the committed position, defaulting to zero
	// quantity when absent.
	GetPosition(ctx context.Context, accountID, instrument string) (Position, error)

	// ListPositions returns all positions of the account, including rows
	// whose quantity has fallen to zero.
	ListPositions(ctx context.Context, accountID string) ([]Position, error)

	// ListTransactions returns one page of the account's cash records,
	// ordered by id.
	ListTransactions(ctx context.Context, accountID string, page Page) ([]Transaction, error)

	// ListInvestments returns one page of the account's investment
	// records, ordered by id.
	ListInvestments(ctx context.Context, accountID string, page Page) ([]InvestmentTransaction, error)

	// MaxIDs returns the highest assigned cash and investment transaction
	// ids, used to seed a Recorder.
	MaxIDs(ctx context.Context) (cash, investment int64, err error)
}

// AccountKey is the lock key protecting one account's balance and records.
func AccountKey(accountID string) string { return "account/" + accountID }

// PositionKey is the lock key protecting one (account, instrument) position.
func PositionKey(accountID, instrument string) string {
	return "position/" + accountID + "/" + instrument
}

// canonicalKeys sorts and dedupes a key set. Every store acquires locks in
// this order, so two sections sharing keys always agree on acquisition
// order regardless of how callers listed them.
func canonicalKeys(keys []string) []string {
	ks := slices.Clone(keys)
	slices.SortFunc(ks, strings.Compare)
	return slices.Compact(ks)
}
