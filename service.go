package centavo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// AccountService owns single-account cash movements: deposits and
// withdrawals. Every mutation runs inside one atomic store section, so the
// funds check, the balance write and the record append succeed or fail
// together.
type AccountService struct {
	store Store
	rec   *Recorder
	log   zerolog.Logger
}

// NewAccountService wires an account service over a store and recorder.
func NewAccountService(store Store, rec *Recorder, log zerolog.Logger) *AccountService {
	return &AccountService{store: store, rec: rec, log: log}
}

// OpenAccount creates a zero-balance account in the given currency.
func (s *AccountService) OpenAccount(ctx context.Context, accountID, currency string) (Account, error) {
	if accountID == "" {
		return Account{}, fmt.Errorf("account id is empty: %w", ErrInvalidArgument)
	}
	if err := ValidateCurrency(currency); err != nil {
		return Account{}, err
	}
	a := Account{
		ID:        accountID,
		Balance:   M(0, currency),
		Invested:  M(0, currency),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return Account{}, err
	}
	s.log.Info().Str("account", accountID).Str("currency", currency).Msg("account opened")
	return a, nil
}

// Deposit credits the account and records a deposit transaction.
func (s *AccountService) Deposit(ctx context.Context, accountID string, amount Money, description string) (Account, Transaction, error) {
	// Quantize first: an amount below the currency's resolution must not
	// slip through as a zero-amount record.
	amount = amount.Round()
	if !amount.IsPositive() {
		return Account{}, Transaction{}, fmt.Errorf("deposit amount %s: %w", amount, ErrInvalidArgument)
	}

	var (
		updated Account
		record  Transaction
	)
	err := s.store.RunAtomic(ctx, []string{AccountKey(accountID)}, func(v View) error {
		a, err := v.Account(accountID)
		if err != nil {
			return err
		}
		if amount.Currency() != a.Balance.Currency() {
			return fmt.Errorf("amount currency %s, account currency %s: %w", amount.Currency(), a.Balance.Currency(), ErrInvalidArgument)
		}
		if err := v.SetBalance(accountID, a.Balance.Add(amount).Round()); err != nil {
			return err
		}
		record, err = s.rec.RecordCash(v, Transaction{
			AccountID:   accountID,
			Kind:        TxDeposit,
			Amount:      amount,
			Description: description,
		})
		if err != nil {
			return err
		}
		updated, err = v.Account(accountID)
		return err
	})
	if err != nil {
		return Account{}, Transaction{}, err
	}
	s.log.Debug().Str("account", accountID).Stringer("amount", amount).Msg("deposit applied")
	return updated, record, nil
}

// Withdraw debits the account and records a withdraw transaction. The
// funds check happens inside the same atomic section as the debit, so a
// concurrent operation can never interleave between check and write.
func (s *AccountService) Withdraw(ctx context.Context, accountID string, amount Money, description string) (Account, Transaction, error) {
	amount = amount.Round()
	if !amount.IsPositive() {
		return Account{}, Transaction{}, fmt.Errorf("withdraw amount %s: %w", amount, ErrInvalidArgument)
	}

	var (
		updated Account
		record  Transaction
	)
	err := s.store.RunAtomic(ctx, []string{AccountKey(accountID)}, func(v View) error {
		a, err := v.Account(accountID)
		if err != nil {
			return err
		}
		if amount.Currency() != a.Balance.Currency() {
			return fmt.Errorf("amount currency %s, account currency %s: %w", amount.Currency(), a.Balance.Currency(), ErrInvalidArgument)
		}
		if a.Balance.LessThan(amount) {
			return fmt.Errorf("balance %s, requested %s: %w", a.Balance, amount, ErrInsufficientFunds)
		}
		if err := v.SetBalance(accountID, a.Balance.Sub(amount).Round()); err != nil {
			return err
		}
		record, err = s.rec.RecordCash(v, Transaction{
			AccountID:   accountID,
			Kind:        TxWithdraw,
			Amount:      amount,
			Description: description,
		})
		if err != nil {
			return err
		}
		updated, err = v.Account(accountID)
		return err
	})
	if err != nil {
		return Account{}, Transaction{}, err
	}
	s.log.Debug().Str("account", accountID).Stringer("amount", amount).Msg("withdraw applied")
	return updated, record, nil
}

// GetAccount returns the committed account state.
func (s *AccountService) GetAccount(ctx context.Context, accountID string) (Account, error) {
	return s.store.GetAccount(ctx, accountID)
}

// ListTransactions returns one page of the account's cash history.
func (s *AccountService) ListTransactions(ctx context.Context, accountID string, page Page) ([]Transaction, error) {
	return s.store.ListTransactions(ctx, accountID, page)
}
