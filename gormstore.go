package centavo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormStore is the durable Store, backed by sqlite through gorm. Atomic
// sections pair the shared key-lock table with a database transaction:
// locks serialize conflicting sections in-process, the transaction makes
// the section's writes land together or not at all.
type GormStore struct {
	db    *gorm.DB
	locks *lockTable
}

// OpenGormStore opens (and migrates) the database at path.
func OpenGormStore(path string) (*GormStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}
	if err := db.AutoMigrate(&accountRow{}, &positionRow{}, &transactionRow{}, &investmentRow{}); err != nil {
		return nil, fmt.Errorf("migrating ledger schema: %w", err)
	}
	return &GormStore{db: db, locks: newLockTable(DefaultLockWait)}, nil
}

type accountRow struct {
	ID        string `gorm:"primaryKey"`
	Balance   string
	Invested  string
	Currency  string
	CreatedAt time.Time
}

func (accountRow) TableName() string { return "accounts" }

type positionRow struct {
	AccountID  string `gorm:"primaryKey"`
	Instrument string `gorm:"primaryKey"`
	Quantity   string
	AvgCost    string
	Currency   string
	UpdatedAt  time.Time
}

func (positionRow) TableName() string { return "positions" }

type transactionRow struct {
	ID            int64  `gorm:"primaryKey;autoIncrement:false"`
	AccountID     string `gorm:"index"`
	Counterparty  string
	Kind          string
	Amount        string
	Currency      string
	CorrelationID string `gorm:"index"`
	Description   string
	Metadata      string
	CreatedAt     time.Time
}

func (transactionRow) TableName() string { return "transactions" }

type investmentRow struct {
	ID         int64  `gorm:"primaryKey;autoIncrement:false"`
	AccountID  string `gorm:"index"`
	Instrument string
	Kind       string
	Quantity   string
	Price      string
	Total      string
	Currency   string
	CreatedAt  time.Time
}

func (investmentRow) TableName() string { return "investment_transactions" }

func (r accountRow) account() (Account, error) {
	balance, err := ParseMoney(r.Balance, r.Currency)
	if err != nil {
		return Account{}, fmt.Errorf("%w: account %q balance: %v", ErrStorage, r.ID, err)
	}
	invested, err := ParseMoney(r.Invested, r.Currency)
	if err != nil {
		return Account{}, fmt.Errorf("%w: account %q invested: %v", ErrStorage, r.ID, err)
	}
	return Account{ID: r.ID, Balance: balance, Invested: invested, CreatedAt: r.CreatedAt}, nil
}

func (r positionRow) position() (Position, error) {
	quantity, err := ParseQuantity(r.Quantity)
	if err != nil {
		return Position{}, fmt.Errorf("%w: position %s/%s quantity: %v", ErrStorage, r.AccountID, r.Instrument, err)
	}
	avgCost, err := ParseMoney(r.AvgCost, r.Currency)
	if err != nil {
		return Position{}, fmt.Errorf("%w: position %s/%s avg cost: %v", ErrStorage, r.AccountID, r.Instrument, err)
	}
	return Position{
		AccountID:  r.AccountID,
		Instrument: r.Instrument,
		Quantity:   quantity,
		AvgCost:    avgCost,
		UpdatedAt:  r.UpdatedAt,
	}, nil
}

func (r transactionRow) transaction() (Transaction, error) {
	amount, err := ParseMoney(r.Amount, r.Currency)
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: transaction %d amount: %v", ErrStorage, r.ID, err)
	}
	var metadata map[string]string
	if r.Metadata != "" {
		if err := json.Unmarshal([]byte(r.Metadata), &metadata); err != nil {
			return Transaction{}, fmt.Errorf("%w: transaction %d metadata: %v", ErrStorage, r.ID, err)
		}
	}
	return Transaction{
		ID:            r.ID,
		AccountID:     r.AccountID,
		Counterparty:  r.Counterparty,
		Kind:          TxKind(r.Kind),
		Amount:        amount,
		CorrelationID: r.CorrelationID,
		Description:   r.Description,
		Metadata:      metadata,
		CreatedAt:     r.CreatedAt,
	}, nil
}

func (r investmentRow) investment() (InvestmentTransaction, error) {
	quantity, err := ParseQuantity(r.Quantity)
	if err != nil {
		return InvestmentTransaction{}, fmt.Errorf("%w: investment %d quantity: %v", ErrStorage, r.ID, err)
	}
	price, err := ParseMoney(r.Price, r.Currency)
	if err != nil {
		return InvestmentTransaction{}, fmt.Errorf("%w: investment %d price: %v", ErrStorage, r.ID, err)
	}
	total, err := ParseMoney(r.Total, r.Currency)
	if err != nil {
		return InvestmentTransaction{}, fmt.Errorf("%w: investment %d total: %v", ErrStorage, r.ID, err)
	}
	return InvestmentTransaction{
		ID:         r.ID,
		AccountID:  r.AccountID,
		Instrument: r.Instrument,
		Kind:       InvestmentKind(r.Kind),
		Quantity:   quantity,
		Price:      price,
		Total:      total,
		CreatedAt:  r.CreatedAt,
	}, nil
}

// RunAtomic implements Store.
func (s *GormStore) RunAtomic(ctx context.Context, keys []string, fn func(View) error) error {
	release, err := s.locks.acquire(ctx, canonicalKeys(keys))
	if err != nil {
		return err
	}
	defer release()

	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormView{tx: tx})
	})
}

// CreateAccount implements Store.
func (s *GormStore) CreateAccount(_ context.Context, a Account) error {
	if a.ID == "" || a.Balance.IsNegative() || a.Invested.IsNegative() {
		return fmt.Errorf("account %q: %w", a.ID, ErrInvalidState)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	row := accountRow{
		ID:        a.ID,
		Balance:   a.Balance.StorableAmount(),
		Invested:  a.Invested.StorableAmount(),
		Currency:  a.Balance.Currency(),
		CreatedAt: a.CreatedAt,
	}
	if err := s.db.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("account %q already exists: %w", a.ID, ErrInvalidState)
		}
		return fmt.Errorf("%w: creating account: %v", ErrStorage, err)
	}
	return nil
}

// GetAccount implements Store.
func (s *GormStore) GetAccount(_ context.Context, id string) (Account, error) {
	return getAccount(s.db, id)
}

// GetPosition implements Store.
func (s *GormStore) GetPosition(_ context.Context, accountID, instrument string) (Position, error) {
	return getPosition(s.db, accountID, instrument)
}

// ListPositions implements Store.
func (s *GormStore) ListPositions(_ context.Context, accountID string) ([]Position, error) {
	var rows []positionRow
	if err := s.db.Where("account_id = ?", accountID).Order("instrument").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: listing positions: %v", ErrStorage, err)
	}
	out := make([]Position, 0, len(rows))
	for _, r := range rows {
		p, err := r.position()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ListTransactions implements Store.
func (s *GormStore) ListTransactions(_ context.Context, accountID string, page Page) ([]Transaction, error) {
	page = page.normalize()
	order := "id"
	if page.Desc {
		order = "id DESC"
	}
	var rows []transactionRow
	err := s.db.Where("account_id = ?", accountID).
		Order(order).Offset(page.offset()).Limit(page.Size).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: listing transactions: %v", ErrStorage, err)
	}
	out := make([]Transaction, 0, len(rows))
	for _, r := range rows {
		t, err := r.transaction()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// ListInvestments implements Store.
func (s *GormStore) ListInvestments(_ context.Context, accountID string, page Page) ([]InvestmentTransaction, error) {
	page = page.normalize()
	order := "id"
	if page.Desc {
		order = "id DESC"
	}
	var rows []investmentRow
	err := s.db.Where("account_id = ?", accountID).
		Order(order).Offset(page.offset()).Limit(page.Size).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: listing investments: %v", ErrStorage, err)
	}
	out := make([]InvestmentTransaction, 0, len(rows))
	for _, r := range rows {
		t, err := r.investment()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// MaxIDs implements Store.
func (s *GormStore) MaxIDs(_ context.Context) (cash, investment int64, err error) {
	row := s.db.Model(&transactionRow{}).Select("COALESCE(MAX(id), 0)").Row()
	if err := row.Scan(&cash); err != nil {
		return 0, 0, fmt.Errorf("%w: max transaction id: %v", ErrStorage, err)
	}
	row = s.db.Model(&investmentRow{}).Select("COALESCE(MAX(id), 0)").Row()
	if err := row.Scan(&investment); err != nil {
		return 0, 0, fmt.Errorf("%w: max investment id: %v", ErrStorage, err)
	}
	return cash, investment, nil
}

func getAccount(db *gorm.DB, id string) (Account, error) {
	var row accountRow
	if err := db.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Account{}, fmt.Errorf("account %q: %w", id, ErrNotFound)
		}
		return Account{}, fmt.Errorf("%w: reading account: %v", ErrStorage, err)
	}
	return row.account()
}

func getPosition(db *gorm.DB, accountID, instrument string) (Position, error) {
	var row positionRow
	err := db.First(&row, "account_id = ? AND instrument = ?", accountID, instrument).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Position{AccountID: accountID, Instrument: instrument}, nil
	}
	if err != nil {
		return Position{}, fmt.Errorf("%w: reading position: %v", ErrStorage, err)
	}
	return row.position()
}

// gormView runs one atomic section inside a database transaction.
type gormView struct {
	tx *gorm.DB
}

// Account implements View.
func (v *gormView) Account(id string) (Account, error) {
	return getAccount(v.tx, id)
}

// SetBalance implements View.
func (v *gormView) SetBalance(id string, balance Money) error {
	if balance.IsNegative() {
		return fmt.Errorf("account %q balance %s: %w", id, balance, ErrInvalidState)
	}
	res := v.tx.Model(&accountRow{}).Where("id = ?", id).
		Update("balance", balance.StorableAmount())
	if res.Error != nil {
		return fmt.Errorf("%w: writing balance: %v", ErrStorage, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("account %q: %w", id, ErrNotFound)
	}
	return nil
}

// SetInvested implements View.
func (v *gormView) SetInvested(id string, invested Money) error {
	if invested.IsNegative() {
		return fmt.Errorf("account %q invested %s: %w", id, invested, ErrInvalidState)
	}
	res := v.tx.Model(&accountRow{}).Where("id = ?", id).
		Update("invested", invested.StorableAmount())
	if res.Error != nil {
		return fmt.Errorf("%w: writing invested: %v", ErrStorage, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("account %q: %w", id, ErrNotFound)
	}
	return nil
}

// Position implements View.
func (v *gormView) Position(accountID, instrument string) (Position, error) {
	return getPosition(v.tx, accountID, instrument)
}

// SetPosition implements View.
func (v *gormView) SetPosition(p Position) error {
	if p.AccountID == "" || p.Instrument == "" {
		return fmt.Errorf("position key: %w", ErrInvalidState)
	}
	if p.Quantity.IsNegative() {
		return fmt.Errorf("position %s/%s quantity %s: %w", p.AccountID, p.Instrument, p.Quantity, ErrInvalidState)
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	row := positionRow{
		AccountID:  p.AccountID,
		Instrument: p.Instrument,
		Quantity:   p.Quantity.String(),
		AvgCost:    p.AvgCost.StorableAmount(),
		Currency:   p.AvgCost.Currency(),
		UpdatedAt:  p.UpdatedAt,
	}
	if err := v.tx.Save(&row).Error; err != nil {
		return fmt.Errorf("%w: writing position: %v", ErrStorage, err)
	}
	return nil
}

// AppendTransaction implements View.
func (v *gormView) AppendTransaction(t Transaction) error {
	if t.ID <= 0 {
		return fmt.Errorf("transaction id %d: %w", t.ID, ErrInvalidState)
	}
	metadata := ""
	if len(t.Metadata) > 0 {
		raw, err := json.Marshal(t.Metadata)
		if err != nil {
			return fmt.Errorf("transaction metadata: %w", ErrInvalidState)
		}
		metadata = string(raw)
	}
	row := transactionRow{
		ID:            t.ID,
		AccountID:     t.AccountID,
		Counterparty:  t.Counterparty,
		Kind:          string(t.Kind),
		Amount:        t.Amount.StorableAmount(),
		Currency:      t.Amount.Currency(),
		CorrelationID: t.CorrelationID,
		Description:   t.Description,
		Metadata:      metadata,
		CreatedAt:     t.CreatedAt,
	}
	if err := v.tx.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("transaction id %d: %w", t.ID, ErrDuplicateID)
		}
		return fmt.Errorf("%w: appending transaction: %v", ErrStorage, err)
	}
	return nil
}

// AppendInvestment implements View.
func (v *gormView) AppendInvestment(t InvestmentTransaction) error {
	if t.ID <= 0 {
		return fmt.Errorf("investment transaction id %d: %w", t.ID, ErrInvalidState)
	}
	row := investmentRow{
		ID:         t.ID,
		AccountID:  t.AccountID,
		Instrument: t.Instrument,
		Kind:       string(t.Kind),
		Quantity:   t.Quantity.String(),
		Price:      t.Price.StorableAmount(),
		Total:      t.Total.StorableAmount(),
		Currency:   t.Price.Currency(),
		CreatedAt:  t.CreatedAt,
	}
	if err := v.tx.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("investment transaction id %d: %w", t.ID, ErrDuplicateID)
		}
		return fmt.Errorf("%w: appending investment: %v", ErrStorage, err)
	}
	return nil
}
