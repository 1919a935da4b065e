package centavo

import (
	"context"
	"errors"
	"testing"
)

func newPortfolioFixture(t *testing.T) (*MemStore, *AccountService, *PortfolioEngine, mapFeed) {
	t.Helper()
	store := NewMemStore()
	rec := newTestRecorder(t, store)
	svc := NewAccountService(store, rec, testLogger())
	feed := mapFeed{}
	engine := NewPortfolioEngine(store, rec, feed, testLogger())
	return store, svc, engine, feed
}

func TestPortfolioEngine_BuyBlendsAverageCost(t *testing.T) {
	ctx := context.Background()
	store, svc, engine, feed := newPortfolioFixture(t)
	newFundedAccount(t, svc, "acc-1", M(1000.00, "ARS"))
	feed["F"] = M(5.00, "ARS")

	pos, record, err := engine.Buy(ctx, "acc-1", "F", Q(10))
	if err != nil {
		t.Fatalf("Buy(10 @ 5) = %v", err)
	}
	if !pos.Quantity.Equal(Q(10)) || !pos.AvgCost.Equal(M(5, "ARS")) {
		t.Errorf("position = {%s, %s}, want {10, 5}", pos.Quantity, pos.AvgCost.StorableAmount())
	}
	if record.Kind != InvestBuy || !record.Total.Equal(M(50, "ARS")) {
		t.Errorf("record = %s total %s, want buy total 50", record.Kind, record.Total.StorableAmount())
	}
	a, _ := store.GetAccount(ctx, "acc-1")
	if !a.Balance.Equal(M(950, "ARS")) {
		t.Errorf("balance = %s, want 950", a.Balance.StorableAmount())
	}
	if !a.Invested.Equal(M(50, "ARS")) {
		t.Errorf("invested = %s, want 50", a.Invested.StorableAmount())
	}

	// Second buy at a higher price blends the average by quantity.
	feed["F"] = M(7.00, "ARS")
	pos, _, err = engine.Buy(ctx, "acc-1", "F", Q(10))
	if err != nil {
		t.Fatalf("Buy(10 @ 7) = %v", err)
	}
	if !pos.Quantity.Equal(Q(20)) || !pos.AvgCost.Equal(M(6, "ARS")) {
		t.Errorf("position = {%s, %s}, want {20, 6}", pos.Quantity, pos.AvgCost.StorableAmount())
	}
	a, _ = store.GetAccount(ctx, "acc-1")
	if !a.Balance.Equal(M(880, "ARS")) {
		t.Errorf("balance = %s, want 880", a.Balance.StorableAmount())
	}
}

func TestPortfolioEngine_SellKeepsAverageCost(t *testing.T) {
	ctx := context.Background()
	store, svc, engine, feed := newPortfolioFixture(t)
	newFundedAccount(t, svc, "acc-1", M(1000.00, "ARS"))

	feed["F"] = M(6.00, "ARS")
	if _, _, err := engine.Buy(ctx, "acc-1", "F", Q(5)); err != nil {
		t.Fatalf("Buy(5 @ 6) = %v", err)
	}
	before, _ := store.GetAccount(ctx, "acc-1")

	feed["F"] = M(8.00, "ARS")
	pos, record, err := engine.Sell(ctx, "acc-1", "F", Q(5))
	if err != nil {
		t.Fatalf("Sell(5 @ 8) = %v", err)
	}
	if !pos.Quantity.IsZero() {
		t.Errorf("quantity = %s, want 0", pos.Quantity)
	}
	// Selling everything keeps the last average cost on record.
	if !pos.AvgCost.Equal(M(6, "ARS")) {
		t.Errorf("avg cost = %s, want 6", pos.AvgCost.StorableAmount())
	}
	if record.Kind != InvestSell || !record.Total.Equal(M(40, "ARS")) {
		t.Errorf("record = %s total %s, want sell total 40", record.Kind, record.Total.StorableAmount())
	}

	after, _ := store.GetAccount(ctx, "acc-1")
	credited := after.Balance.Sub(before.Balance)
	if !credited.Equal(M(40, "ARS")) {
		t.Errorf("credited = %s, want 40", credited.StorableAmount())
	}
	if !after.Invested.IsZero() {
		t.Errorf("invested = %s, want 0", after.Invested.StorableAmount())
	}
}

func TestPortfolioEngine_Failures(t *testing.T) {
	ctx := context.Background()
	_, svc, engine, feed := newPortfolioFixture(t)
	newFundedAccount(t, svc, "acc-1", M(100.00, "ARS"))
	feed["F"] = M(30.00, "ARS")
	feed["P"] = M(0.01, "ARS")
	feed["U"] = M(1.00, "USD")

	testCases := []struct {
		name   string
		call   func() error
		wantIs error
	}{
		{
			name:   "buy beyond balance",
			call:   func() error { _, _, err := engine.Buy(ctx, "acc-1", "F", Q(4)); return err },
			wantIs: ErrInsufficientFunds,
		},
		{
			name:   "sell without holdings",
			call:   func() error { _, _, err := engine.Sell(ctx, "acc-1", "F", Q(1)); return err },
			wantIs: ErrInsufficientHoldings,
		},
		{
			name:   "zero quantity buy",
			call:   func() error { _, _, err := engine.Buy(ctx, "acc-1", "F", Q(0)); return err },
			wantIs: ErrInvalidArgument,
		},
		{
			name:   "negative quantity sell",
			call:   func() error { _, _, err := engine.Sell(ctx, "acc-1", "F", Q(-1)); return err },
			wantIs: ErrInvalidArgument,
		},
		{
			name:   "empty instrument",
			call:   func() error { _, _, err := engine.Buy(ctx, "acc-1", "", Q(1)); return err },
			wantIs: ErrInvalidArgument,
		},
		{
			// 0.1 x 0.01 = 0.001 ARS rounds to 0.00; no zero-cost record.
			name:   "buy cost below currency resolution",
			call:   func() error { _, _, err := engine.Buy(ctx, "acc-1", "P", Q(0.1)); return err },
			wantIs: ErrInvalidArgument,
		},
		{
			name:   "price in foreign currency",
			call:   func() error { _, _, err := engine.Buy(ctx, "acc-1", "U", Q(1)); return err },
			wantIs: ErrInvalidState,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); !errors.Is(err, tc.wantIs) {
				t.Errorf("err = %v, want %v", err, tc.wantIs)
			}
		})
	}

	// Nothing moved.
	a, _ := svc.GetAccount(ctx, "acc-1")
	if !a.Balance.Equal(M(100, "ARS")) {
		t.Errorf("balance = %s, want 100", a.Balance.StorableAmount())
	}
}

func TestPortfolioEngine_SellMoreThanHeldAfterPartialSell(t *testing.T) {
	ctx := context.Background()
	_, svc, engine, feed := newPortfolioFixture(t)
	newFundedAccount(t, svc, "acc-1", M(1000.00, "ARS"))
	feed["F"] = M(10.00, "ARS")

	if _, _, err := engine.Buy(ctx, "acc-1", "F", Q(10)); err != nil {
		t.Fatalf("Buy() = %v", err)
	}
	if _, _, err := engine.Sell(ctx, "acc-1", "F", Q(8)); err != nil {
		t.Fatalf("Sell(8) = %v", err)
	}
	if _, _, err := engine.Sell(ctx, "acc-1", "F", Q(3)); !errors.Is(err, ErrInsufficientHoldings) {
		t.Errorf("Sell(3 of 2) = %v, want ErrInsufficientHoldings", err)
	}
}

func TestPortfolioEngine_AverageIndependentAcrossInstruments(t *testing.T) {
	ctx := context.Background()
	_, svc, engine, feed := newPortfolioFixture(t)
	newFundedAccount(t, svc, "acc-1", M(10000.00, "ARS"))

	// Interleave buys of two instruments; each average only sees its own.
	feed["F"] = M(5.00, "ARS")
	feed["G"] = M(100.00, "ARS")
	if _, _, err := engine.Buy(ctx, "acc-1", "F", Q(10)); err != nil {
		t.Fatalf("Buy(F) = %v", err)
	}
	if _, _, err := engine.Buy(ctx, "acc-1", "G", Q(3)); err != nil {
		t.Fatalf("Buy(G) = %v", err)
	}
	feed["F"] = M(7.00, "ARS")
	feed["G"] = M(50.00, "ARS")
	if _, _, err := engine.Buy(ctx, "acc-1", "F", Q(10)); err != nil {
		t.Fatalf("Buy(F) = %v", err)
	}
	if _, _, err := engine.Buy(ctx, "acc-1", "G", Q(3)); err != nil {
		t.Fatalf("Buy(G) = %v", err)
	}

	f, err := engine.GetPosition(ctx, "acc-1", "F")
	if err != nil {
		t.Fatalf("GetPosition(F) = %v", err)
	}
	if !f.AvgCost.Equal(M(6, "ARS")) {
		t.Errorf("F avg cost = %s, want 6", f.AvgCost.StorableAmount())
	}
	g, err := engine.GetPosition(ctx, "acc-1", "G")
	if err != nil {
		t.Fatalf("GetPosition(G) = %v", err)
	}
	if !g.AvgCost.Equal(M(75, "ARS")) {
		t.Errorf("G avg cost = %s, want 75", g.AvgCost.StorableAmount())
	}
}

func TestPortfolioEngine_Holdings(t *testing.T) {
	ctx := context.Background()
	_, svc, engine, feed := newPortfolioFixture(t)
	newFundedAccount(t, svc, "acc-1", M(1000.00, "ARS"))

	feed["F"] = M(5.00, "ARS")
	feed["G"] = M(10.00, "ARS")
	if _, _, err := engine.Buy(ctx, "acc-1", "F", Q(10)); err != nil {
		t.Fatalf("Buy(F) = %v", err)
	}
	if _, _, err := engine.Buy(ctx, "acc-1", "G", Q(2)); err != nil {
		t.Fatalf("Buy(G) = %v", err)
	}
	// Close out G entirely; it must drop from the holdings view.
	if _, _, err := engine.Sell(ctx, "acc-1", "G", Q(2)); err != nil {
		t.Fatalf("Sell(G) = %v", err)
	}

	feed["F"] = M(6.00, "ARS")
	holdings, err := engine.Holdings(ctx, "acc-1")
	if err != nil {
		t.Fatalf("Holdings() = %v", err)
	}
	if len(holdings) != 1 {
		t.Fatalf("holdings = %d rows, want 1", len(holdings))
	}
	h := holdings[0]
	if h.Instrument != "F" || !h.MarketValue.Equal(M(60, "ARS")) {
		t.Errorf("holding = %s value %s, want F value 60", h.Instrument, h.MarketValue.StorableAmount())
	}
	if !h.Variation.Equal(M(1, "ARS")) {
		t.Errorf("variation = %s, want 1", h.Variation.StorableAmount())
	}
	if h.VariationPct.IntPart() != 20 {
		t.Errorf("variation pct = %s, want 20", h.VariationPct)
	}
}

func TestPortfolioEngine_ListInvestmentTransactions(t *testing.T) {
	ctx := context.Background()
	_, svc, engine, feed := newPortfolioFixture(t)
	newFundedAccount(t, svc, "acc-1", M(1000.00, "ARS"))
	feed["F"] = M(5.00, "ARS")

	if _, _, err := engine.Buy(ctx, "acc-1", "F", Q(4)); err != nil {
		t.Fatalf("Buy() = %v", err)
	}
	if _, _, err := engine.Sell(ctx, "acc-1", "F", Q(1)); err != nil {
		t.Fatalf("Sell() = %v", err)
	}

	records, err := engine.ListInvestmentTransactions(ctx, "acc-1", Page{Desc: true})
	if err != nil {
		t.Fatalf("ListInvestmentTransactions() = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Kind != InvestSell || records[1].Kind != InvestBuy {
		t.Errorf("order = %s, %s, want sell then buy", records[0].Kind, records[1].Kind)
	}
}
