package centavo

import "errors"

// Domain errors returned by the core. Callers classify failures with
// errors.Is and translate them into user-visible behavior; the core never
// produces display strings.
var (
	// ErrInvalidArgument reports a malformed request, e.g. a non-positive
	// amount or quantity, or a self-transfer.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound reports a missing account.
	ErrNotFound = errors.New("account not found")

	// ErrInsufficientFunds reports a debit that would drive a balance
	// negative. The balance is never silently clamped.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientHoldings reports a sell larger than the held quantity.
	ErrInsufficientHoldings = errors.New("insufficient holdings")

	// ErrRecipientNotFound reports a transfer identifier that resolves to
	// no account.
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrInvalidState reports an attempted storage-level invariant
	// violation (negative balance or quantity reaching the store).
	ErrInvalidState = errors.New("invalid state")

	// ErrBusy reports a lock wait that timed out. Retryable.
	ErrBusy = errors.New("ledger busy")

	// ErrStorage reports an underlying persistence failure. Retryable at
	// the caller's discretion.
	ErrStorage = errors.New("storage failure")

	// ErrDuplicateRequest reports an idempotency key replay while the
	// original operation is still in flight.
	ErrDuplicateRequest = errors.New("duplicate request")

	// ErrDuplicateID reports a transaction id collision on append. The
	// recorder retries these with a fresh id.
	ErrDuplicateID = errors.New("duplicate transaction id")
)
