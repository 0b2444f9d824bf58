package repository

import (
	"context"

	"github.com/ledgerbook/identity/internal/domain"
)

type TransactionRepository interface {
	// InsertBatch persists one bounded batch of imported records for a
	// user. It either inserts the whole batch or returns an error with
	// nothing from this batch committed.
	InsertBatch(ctx context.Context, userID string, txs []domain.Transaction) error
}
