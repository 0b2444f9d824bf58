package usecase

import (
	"context"
	"fmt"

	"github.com/ledgerbook/identity/internal/domain"
	"github.com/ledgerbook/identity/internal/metrics"
	"github.com/ledgerbook/identity/internal/repository"
)

// MaxImportBatch bounds a single import request. Clients split larger
// guest histories into multiple calls.
const MaxImportBatch = 50

type ImportUsecase struct {
	transactions repository.TransactionRepository
}

func NewImportUsecase(transactions repository.TransactionRepository) *ImportUsecase {
	return &ImportUsecase{transactions: transactions}
}

// ImportBatch validates and persists one batch of guest transactions for
// an authenticated user. The batch lands whole or not at all; partial
// import is never reported as success.
func (u *ImportUsecase) ImportBatch(ctx context.Context, userID string, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	if len(txs) > MaxImportBatch {
		return fmt.Errorf("%w: batch of %d exceeds limit %d", domain.ErrInvalidTransaction, len(txs), MaxImportBatch)
	}
	for i := range txs {
		if err := txs[i].Validate(); err != nil {
			return err
		}
	}

	if err := u.transactions.InsertBatch(ctx, userID, txs); err != nil {
		metrics.GuestImportBatches.WithLabelValues("failed").Inc()
		return fmt.Errorf("import batch: %w", err)
	}

	metrics.GuestImportBatches.WithLabelValues("ok").Inc()
	metrics.GuestImportTransactions.Add(float64(len(txs)))
	return nil
}
