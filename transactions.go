package centavo

import "time"

// TxKind identifies the direction and nature of a cash transaction.
type TxKind string

const (
	TxDeposit     TxKind = "deposit"
	TxWithdraw    TxKind = "withdraw"
	TxTransferIn  TxKind = "transfer-in"
	TxTransferOut TxKind = "transfer-out"
)

// Transaction is one immutable cash movement record. Amount is always
// positive; the direction is implied by Kind. Records are append-only and
// never reordered: readers sorting by ID (or CreatedAt) for one account
// recover insertion order.
type Transaction struct {
	ID            int64  // unique, monotonically increasing, assigned by the recorder
	AccountID     string // owning account
	Counterparty  string // other account of a transfer, empty for deposit/withdraw
	Kind          TxKind
	Amount        Money
	CorrelationID string // shared by the two legs of a transfer
	Description   string
	Metadata      map[string]string
	CreatedAt     time.Time
}

// InvestmentKind identifies the side of an investment transaction.
type InvestmentKind string

const (
	InvestBuy  InvestmentKind = "buy"
	InvestSell InvestmentKind = "sell"
)

// InvestmentTransaction is one immutable buy or sell record. Total is the
// traded value, quantity x price at transaction time.
type InvestmentTransaction struct {
	ID         int64
	AccountID  string
	Instrument string
	Kind       InvestmentKind
	Quantity   Quantity // always > 0
	Price      Money    // per unit at transaction time
	Total      Money
	CreatedAt  time.Time
}

// Page selects a slice of an account's transaction history.
// Number is 1-based; Desc lists newest first.
type Page struct {
	Number int
	Size   int
	Desc   bool
}

// normalize applies the defaults for a zero or partial page.
func (p Page) normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = 50
	}
	return p
}

// offset is the number of records to skip.
func (p Page) offset() int { return (p.Number - 1) * p.Size }
