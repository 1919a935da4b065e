package centavo

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PriceFeed supplies the current per-unit price of an instrument. The
// engine queries it fresh on every operation and never caches; staleness
// policy belongs to the feed.
type PriceFeed interface {
	CurrentPrice(ctx context.Context, instrument string) (Money, error)
}

// Holding is one enriched portfolio row: a position valued at the current
// price, with its variation against the average cost.
type Holding struct {
	Instrument   string
	Quantity     Quantity
	AvgCost      Money
	Price        Money
	MarketValue  Money
	Variation    Money           // price - average cost, per unit
	VariationPct decimal.Decimal // variation as a percentage of average cost
}

// PortfolioEngine executes buys and sells against priced instruments and
// maintains the weighted-average cost basis of each position. A buy blends
// the new price into the average; a sell reduces quantity and never
// touches the average.
type PortfolioEngine struct {
	store Store
	rec   *Recorder
	feed  PriceFeed
	log   zerolog.Logger
}

// NewPortfolioEngine wires a portfolio engine over a store, recorder and
// price feed.
func NewPortfolioEngine(store Store, rec *Recorder, feed PriceFeed, log zerolog.Logger) *PortfolioEngine {
	return &PortfolioEngine{store: store, rec: rec, feed: feed, log: log}
}

// Buy purchases quantity units at the current price. Inside one atomic
// section it checks funds, debits the account by quantity x price, blends
// the price into the weighted-average cost and appends the buy record.
func (e *PortfolioEngine) Buy(ctx context.Context, accountID, instrument string, quantity Quantity) (Position, InvestmentTransaction, error) {
	if !quantity.IsPositive() {
		return Position{}, InvestmentTransaction{}, fmt.Errorf("buy quantity %s: %w", quantity, ErrInvalidArgument)
	}
	if instrument == "" {
		return Position{}, InvestmentTransaction{}, fmt.Errorf("empty instrument: %w", ErrInvalidArgument)
	}
	price, err := e.feed.CurrentPrice(ctx, instrument)
	if err != nil {
		return Position{}, InvestmentTransaction{}, fmt.Errorf("pricing %q: %w", instrument, err)
	}
	if !price.IsPositive() {
		return Position{}, InvestmentTransaction{}, fmt.Errorf("price %s for %q: %w", price, instrument, ErrInvalidState)
	}
	total := price.Mul(quantity).Round()
	if !total.IsPositive() {
		return Position{}, InvestmentTransaction{}, fmt.Errorf("cost %s for %s x %s: %w", total, quantity, instrument, ErrInvalidArgument)
	}

	var (
		updated Position
		record  InvestmentTransaction
	)
	keys := []string{AccountKey(accountID), PositionKey(accountID, instrument)}
	err = e.store.RunAtomic(ctx, keys, func(v View) error {
		a, err := v.Account(accountID)
		if err != nil {
			return err
		}
		if price.Currency() != a.Balance.Currency() {
			return fmt.Errorf("price currency %s, account currency %s: %w", price.Currency(), a.Balance.Currency(), ErrInvalidState)
		}
		if a.Balance.LessThan(total) {
			return fmt.Errorf("balance %s, cost %s: %w", a.Balance, total, ErrInsufficientFunds)
		}
		if err := v.SetBalance(accountID, a.Balance.Sub(total).Round()); err != nil {
			return err
		}
		if err := v.SetInvested(accountID, a.Invested.Add(total).Round()); err != nil {
			return err
		}

		pos, err := v.Position(accountID, instrument)
		if err != nil {
			return err
		}
		newQuantity := pos.Quantity.Add(quantity)
		// First buy takes the price exactly; later buys blend by quantity.
		newAvg := price
		if !pos.Quantity.IsZero() {
			held := pos.AvgCost.Mul(pos.Quantity)
			newAvg = held.Add(price.Mul(quantity)).Div(newQuantity)
		}
		pos.Quantity = newQuantity
		pos.AvgCost = newAvg.RoundCost()
		if err := v.SetPosition(pos); err != nil {
			return err
		}
		updated = pos

		record, err = e.rec.RecordInvestment(v, InvestmentTransaction{
			AccountID:  accountID,
			Instrument: instrument,
			Kind:       InvestBuy,
			Quantity:   quantity,
			Price:      price,
			Total:      total,
		})
		return err
	})
	if err != nil {
		return Position{}, InvestmentTransaction{}, err
	}
	e.log.Info().
		Str("account", accountID).
		Str("instrument", instrument).
		Stringer("quantity", quantity).
		Stringer("price", price).
		Msg("buy applied")
	return updated, record, nil
}

// Sell disposes quantity units at the current price. The account is
// credited quantity x price; the average cost is left untouched, even when
// the position falls to zero.
func (e *PortfolioEngine) Sell(ctx context.Context, accountID, instrument string, quantity Quantity) (Position, InvestmentTransaction, error) {
	if !quantity.IsPositive() {
		return Position{}, InvestmentTransaction{}, fmt.Errorf("sell quantity %s: %w", quantity, ErrInvalidArgument)
	}
	if instrument == "" {
		return Position{}, InvestmentTransaction{}, fmt.Errorf("empty instrument: %w", ErrInvalidArgument)
	}
	price, err := e.feed.CurrentPrice(ctx, instrument)
	if err != nil {
		return Position{}, InvestmentTransaction{}, fmt.Errorf("pricing %q: %w", instrument, err)
	}
	if !price.IsPositive() {
		return Position{}, InvestmentTransaction{}, fmt.Errorf("price %s for %q: %w", price, instrument, ErrInvalidState)
	}
	proceeds := price.Mul(quantity).Round()
	if !proceeds.IsPositive() {
		return Position{}, InvestmentTransaction{}, fmt.Errorf("proceeds %s for %s x %s: %w", proceeds, quantity, instrument, ErrInvalidArgument)
	}

	var (
		updated Position
		record  InvestmentTransaction
	)
	keys := []string{AccountKey(accountID), PositionKey(accountID, instrument)}
	err = e.store.RunAtomic(ctx, keys, func(v View) error {
		pos, err := v.Position(accountID, instrument)
		if err != nil {
			return err
		}
		if pos.Quantity.LessThan(quantity) {
			return fmt.Errorf("held %s, requested %s: %w", pos.Quantity, quantity, ErrInsufficientHoldings)
		}

		a, err := v.Account(accountID)
		if err != nil {
			return err
		}
		if price.Currency() != a.Balance.Currency() {
			return fmt.Errorf("price currency %s, account currency %s: %w", price.Currency(), a.Balance.Currency(), ErrInvalidState)
		}
		if err := v.SetBalance(accountID, a.Balance.Add(proceeds).Round()); err != nil {
			return err
		}
		// Release the disposed cost basis from the invested amount.
		released := pos.AvgCost.Mul(quantity)
		invested := a.Invested.Sub(released).Round()
		if invested.IsNegative() {
			invested = M(0, invested.Currency())
		}
		if err := v.SetInvested(accountID, invested); err != nil {
			return err
		}

		pos.Quantity = pos.Quantity.Sub(quantity)
		if err := v.SetPosition(pos); err != nil {
			return err
		}
		updated = pos

		record, err = e.rec.RecordInvestment(v, InvestmentTransaction{
			AccountID:  accountID,
			Instrument: instrument,
			Kind:       InvestSell,
			Quantity:   quantity,
			Price:      price,
			Total:      proceeds,
		})
		return err
	})
	if err != nil {
		return Position{}, InvestmentTransaction{}, err
	}
	e.log.Info().
		Str("account", accountID).
		Str("instrument", instrument).
		Stringer("quantity", quantity).
		Stringer("price", price).
		Msg("sell applied")
	return updated, record, nil
}

// GetPosition returns the committed position, with zero quantity when the
// account never bought the instrument.
func (e *PortfolioEngine) GetPosition(ctx context.Context, accountID, instrument string) (Position, error) {
	return e.store.GetPosition(ctx, accountID, instrument)
}

// ListInvestmentTransactions returns one page of the account's investment
// history.
func (e *PortfolioEngine) ListInvestmentTransactions(ctx context.Context, accountID string, page Page) ([]InvestmentTransaction, error) {
	return e.store.ListInvestments(ctx, accountID, page)
}

// Holdings values every open position of the account at current prices.
// Rows whose quantity fell to zero are skipped.
func (e *PortfolioEngine) Holdings(ctx context.Context, accountID string) ([]Holding, error) {
	positions, err := e.store.ListPositions(ctx, accountID)
	if err != nil {
		return nil, err
	}
	var out []Holding
	for _, pos := range positions {
		if pos.Quantity.IsZero() {
			continue
		}
		price, err := e.feed.CurrentPrice(ctx, pos.Instrument)
		if err != nil {
			return nil, fmt.Errorf("pricing %q: %w", pos.Instrument, err)
		}
		variation := price.Sub(pos.AvgCost)
		var pct decimal.Decimal
		if !pos.AvgCost.IsZero() {
			pct = variation.Amount().Div(pos.AvgCost.Amount()).Mul(newDecimal(100))
		}
		out = append(out, Holding{
			Instrument:   pos.Instrument,
			Quantity:     pos.Quantity,
			AvgCost:      pos.AvgCost,
			Price:        price,
			MarketValue:  pos.MarketValue(price).Round(),
			Variation:    variation,
			VariationPct: pct,
		})
	}
	return out, nil
}
