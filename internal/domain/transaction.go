package domain

import (
	"errors"
	"fmt"
	"time"
)

type TransactionKind string

const (
	TransactionSale    TransactionKind = "sale"
	TransactionExpense TransactionKind = "expense"
)

var ErrInvalidTransaction = errors.New("invalid transaction")

// Transaction is a bookkeeping record. Guest-mode records carry a
// client-generated ID and live only on the device until reconciled.
type Transaction struct {
	ID          string
	UserID      string
	Kind        TransactionKind
	AmountCents int64
	Currency    string
	Note        string
	OccurredAt  time.Time
	CreatedAt   time.Time
}

func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidTransaction)
	}
	if t.Kind != TransactionSale && t.Kind != TransactionExpense {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTransaction, t.Kind)
	}
	if t.AmountCents <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidTransaction)
	}
	return nil
}
