package centavo

import "time"

// Account is a customer's cash account. Created at onboarding, never
// deleted. Balance and Invested are mutated only through AccountService,
// TransferEngine and PortfolioEngine, inside an atomic store section.
type Account struct {
	ID        string // opaque owner identity
	Balance   Money  // available cash, always >= 0
	Invested  Money  // cost basis currently tied up in positions, always >= 0
	CreatedAt time.Time
}

// Position is the holding of a single instrument by a single account.
// Created on the first buy; the row persists with Quantity zero after a
// full sell, keeping the last average cost on record.
type Position struct {
	AccountID  string
	Instrument string
	Quantity   Quantity // always >= 0
	AvgCost    Money    // per unit; meaningful while Quantity > 0
	UpdatedAt  time.Time
}

// MarketValue values the position at the given per-unit price.
func (p Position) MarketValue(price Money) Money {
	return price.Mul(p.Quantity)
}

// CostValue is the position's total cost basis (quantity x average cost).
func (p Position) CostValue() Money {
	return p.AvgCost.Mul(p.Quantity)
}
