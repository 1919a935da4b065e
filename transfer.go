package centavo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Resolver maps a recipient identifier (email, CVU, alias) to an account
// id. Supplied by the caller; a failed resolution is reported as
// ErrRecipientNotFound.
type Resolver interface {
	ResolveIdentifier(ctx context.Context, identifier string) (accountID string, err error)
}

// IdentifierKind classifies the recipient identifiers accepted for
// transfers.
type IdentifierKind int

const (
	IdentUnknown IdentifierKind = iota
	IdentEmail
	IdentCVU
	IdentAlias
)

func (k IdentifierKind) String() string {
	switch k {
	case IdentEmail:
		return "email"
	case IdentCVU:
		return "cvu"
	case IdentAlias:
		return "alias"
	default:
		return "unknown"
	}
}

var (
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	cvuRe   = regexp.MustCompile(`^\d{22}$`)
	aliasRe = regexp.MustCompile(`^[a-z0-9]+(\.[a-z0-9]+){1,2}$`)
)

// ClassifyIdentifier reports how a recipient identifier will be resolved:
// an email address, a 22-digit CVU, or a dotted alias.
func ClassifyIdentifier(identifier string) IdentifierKind {
	switch {
	case emailRe.MatchString(identifier):
		return IdentEmail
	case cvuRe.MatchString(identifier):
		return IdentCVU
	case aliasRe.MatchString(identifier):
		return IdentAlias
	default:
		return IdentUnknown
	}
}

// DefaultMemoTTL bounds how long a transfer idempotency key is remembered.
const DefaultMemoTTL = 15 * time.Minute

// TransferRequest describes one transfer. IdempotencyKey is optional; when
// present, a retry with the same key returns the original record instead
// of moving money twice.
type TransferRequest struct {
	Sender         string // sender account id, resolved upstream
	Recipient      string // recipient identifier: email, CVU or alias
	Amount         Money
	Description    string
	IdempotencyKey string
	Metadata       map[string]string
}

type memoEntry struct {
	done    bool
	result  Transaction
	expires time.Time
}

// TransferEngine moves money between two accounts as one atomic unit:
// funds check, debit, credit and both records commit together or not at
// all. Reciprocal concurrent transfers cannot deadlock because the store
// acquires account sections in canonical key order.
type TransferEngine struct {
	store    Store
	rec      *Recorder
	resolver Resolver
	log      zerolog.Logger

	memoTTL time.Duration
	mu      sync.Mutex
	memo    map[string]memoEntry
}

// NewTransferEngine wires a transfer engine over a store, recorder and
// identity resolver.
func NewTransferEngine(store Store, rec *Recorder, resolver Resolver, log zerolog.Logger) *TransferEngine {
	return &TransferEngine{
		store:    store,
		rec:      rec,
		resolver: resolver,
		log:      log,
		memoTTL:  DefaultMemoTTL,
		memo:     make(map[string]memoEntry),
	}
}

// Transfer resolves the recipient and applies the two-sided mutation. It
// returns the sender-side transfer-out record; the recipient's
// transfer-in record shares its correlation id.
func (e *TransferEngine) Transfer(ctx context.Context, req TransferRequest) (Transaction, error) {
	req.Amount = req.Amount.Round()
	if !req.Amount.IsPositive() {
		return Transaction{}, fmt.Errorf("transfer amount %s: %w", req.Amount, ErrInvalidArgument)
	}
	if req.Recipient == "" {
		return Transaction{}, fmt.Errorf("empty recipient identifier: %w", ErrInvalidArgument)
	}

	if req.IdempotencyKey != "" {
		if prior, pending, ok := e.beginKey(req.IdempotencyKey); ok {
			if pending {
				return Transaction{}, fmt.Errorf("idempotency key %q in flight: %w", req.IdempotencyKey, ErrDuplicateRequest)
			}
			e.log.Info().Str("key", req.IdempotencyKey).Int64("tx", prior.ID).Msg("transfer replayed from idempotency memo")
			return prior, nil
		}
	}

	out, err := e.execute(ctx, req)
	if req.IdempotencyKey != "" {
		e.endKey(req.IdempotencyKey, out, err)
	}
	return out, err
}

func (e *TransferEngine) execute(ctx context.Context, req TransferRequest) (Transaction, error) {
	recipientID, err := e.resolver.ResolveIdentifier(ctx, req.Recipient)
	if err != nil {
		return Transaction{}, fmt.Errorf("resolving %s %q: %w", ClassifyIdentifier(req.Recipient), req.Recipient, ErrRecipientNotFound)
	}
	if recipientID == req.Sender {
		return Transaction{}, fmt.Errorf("transfer to self: %w", ErrInvalidArgument)
	}

	correlation := uuid.NewString()
	amount := req.Amount.Round()
	var out Transaction

	keys := []string{AccountKey(req.Sender), AccountKey(recipientID)}
	err = e.store.RunAtomic(ctx, keys, func(v View) error {
		sender, err := v.Account(req.Sender)
		if err != nil {
			return err
		}
		recipient, err := v.Account(recipientID)
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("recipient %q: %w", recipientID, ErrRecipientNotFound)
		}
		if err != nil {
			return err
		}
		if amount.Currency() != sender.Balance.Currency() {
			return fmt.Errorf("amount currency %s, sender currency %s: %w", amount.Currency(), sender.Balance.Currency(), ErrInvalidArgument)
		}
		if amount.Currency() != recipient.Balance.Currency() {
			return fmt.Errorf("amount currency %s, recipient currency %s: %w", amount.Currency(), recipient.Balance.Currency(), ErrInvalidArgument)
		}
		if sender.Balance.LessThan(amount) {
			return fmt.Errorf("balance %s, requested %s: %w", sender.Balance, amount, ErrInsufficientFunds)
		}
		if err := v.SetBalance(sender.ID, sender.Balance.Sub(amount).Round()); err != nil {
			return err
		}
		if err := v.SetBalance(recipient.ID, recipient.Balance.Add(amount).Round()); err != nil {
			return err
		}
		out, err = e.rec.RecordCash(v, Transaction{
			AccountID:     sender.ID,
			Counterparty:  recipient.ID,
			Kind:          TxTransferOut,
			Amount:        amount,
			CorrelationID: correlation,
			Description:   req.Description,
			Metadata:      req.Metadata,
		})
		if err != nil {
			return err
		}
		_, err = e.rec.RecordCash(v, Transaction{
			AccountID:     recipient.ID,
			Counterparty:  sender.ID,
			Kind:          TxTransferIn,
			Amount:        amount,
			CorrelationID: correlation,
			Description:   req.Description,
			Metadata:      req.Metadata,
		})
		return err
	})
	if err != nil {
		return Transaction{}, err
	}

	e.log.Info().
		Str("sender", req.Sender).
		Str("recipient", recipientID).
		Stringer("amount", amount).
		Str("correlation", correlation).
		Msg("transfer applied")
	return out, nil
}

// beginKey claims an idempotency key. It returns the prior result when the
// key already completed, or pending=true when the original call is still
// running.
func (e *TransferEngine) beginKey(key string) (prior Transaction, pending, ok bool) {
	now := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, entry := range e.memo {
		if now.After(entry.expires) {
			delete(e.memo, k)
		}
	}
	if entry, exists := e.memo[key]; exists {
		return entry.result, !entry.done, true
	}
	e.memo[key] = memoEntry{expires: now.Add(e.memoTTL)}
	return Transaction{}, false, false
}

// endKey completes a claimed key: failures free it for a clean retry,
// successes memoize the record until the TTL expires.
func (e *TransferEngine) endKey(key string, result Transaction, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		delete(e.memo, key)
		return
	}
	e.memo[key] = memoEntry{done: true, result: result, expires: time.Now().Add(e.memoTTL)}
}
