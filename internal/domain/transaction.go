package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a money movement.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypePurchase   TransactionType = "investment_purchase"
	TransactionTypeSale       TransactionType = "investment_sale"
	TransactionTypeDividend   TransactionType = "dividend"
	TransactionTypeTransfer   TransactionType = "token_transfer"
)

// TransactionStatus is the one-way journal entry lifecycle.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

// Currency is the denomination of a journal entry.
type Currency string

const (
	CurrencyUSD  Currency = "USD"
	CurrencyBTC  Currency = "BTC"
	CurrencyETH  Currency = "ETH"
	CurrencyUSDC Currency = "USDC"
)

// PaymentMethod records how external money entered or left the platform.
type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCrypto       PaymentMethod = "crypto"
	PaymentMethodPaypal       PaymentMethod = "paypal"
)

// EntityType names the kind of record a journal entry references.
type EntityType string

const (
	EntityTypeProperty   EntityType = "property"
	EntityTypeInvestment EntityType = "investment"
	EntityTypeWallet     EntityType = "wallet"
)

// EntityRef is an explicit typed reference to a related record. The journal
// never embeds the referenced aggregate, only its identifier.
type EntityRef struct {
	Type EntityType `json:"type"`
	ID   string     `json:"id"`
}

// Transaction is one journal entry: an append-oriented record of a single
// money movement. Amount, Type and UserID are immutable once created; only
// Status, CompletedAt and AnchorHash may change, and Status only along
// TransactionTransitions.
type Transaction struct {
	ID            string
	UserID        string
	Type          TransactionType
	Amount        decimal.Decimal
	Currency      Currency
	Status        TransactionStatus
	Related       *EntityRef
	PaymentMethod *PaymentMethod

	// AnchorHash is the optional external blockchain hash annotation. It is
	// attached best-effort after commit and is globally unique when present.
	AnchorHash *string

	Metadata    map[string]string
	Fee         decimal.Decimal
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Complete moves the entry to Completed and stamps CompletedAt. Only Pending
// entries may complete.
func (t *Transaction) Complete(at time.Time) error {
	if err := TransactionTransitions.Step(t.Status, TransactionStatusCompleted); err != nil {
		return err
	}
	t.Status = TransactionStatusCompleted
	t.CompletedAt = &at
	return nil
}

// Fail moves a Pending entry to the terminal Failed state.
func (t *Transaction) Fail() error {
	if err := TransactionTransitions.Step(t.Status, TransactionStatusFailed); err != nil {
		return err
	}
	t.Status = TransactionStatusFailed
	return nil
}

// Refund moves a Completed entry to the terminal Refunded state.
func (t *Transaction) Refund() error {
	if err := TransactionTransitions.Step(t.Status, TransactionStatusRefunded); err != nil {
		return err
	}
	t.Status = TransactionStatusRefunded
	return nil
}

// Refundable reports whether a refund may be processed against this entry:
// it must be Completed and of a type that moved money in.
func (t Transaction) Refundable() bool {
	if t.Status != TransactionStatusCompleted {
		return false
	}
	return t.Type == TransactionTypeDeposit || t.Type == TransactionTypePurchase
}

// InverseType returns the compensating entry type for a refund of this entry.
func (t Transaction) InverseType() TransactionType {
	switch t.Type {
	case TransactionTypeDeposit:
		return TransactionTypeWithdrawal
	case TransactionTypePurchase:
		return TransactionTypeSale
	default:
		return t.Type
	}
}
