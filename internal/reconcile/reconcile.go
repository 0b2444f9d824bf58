// Package reconcile runs the one-shot migration of guest-mode
// transactions into a freshly authenticated account. It never imports
// silently: the shell asks the user first, then calls Accept or Discard.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ledgerbook/identity/internal/domain"
)

const defaultBatchSize = 50

// Importer pushes one bounded batch to the authenticated store.
type Importer interface {
	ImportBatch(ctx context.Context, txs []domain.Transaction) error
}

// LocalStore is the slice of the device store the reconciler owns.
type LocalStore interface {
	GuestTransactions() []domain.Transaction
	ClearGuestTransactions() error
	SetGuestMode(on bool) error
}

type Reconciler struct {
	local     LocalStore
	importer  Importer
	batchSize int
	logger    *slog.Logger
}

func New(local LocalStore, importer Importer, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		local:     local,
		importer:  importer,
		batchSize: defaultBatchSize,
		logger:    logger.With("component", "reconcile"),
	}
}

// Pending reports how many guest transactions await a decision.
func (r *Reconciler) Pending() int {
	return len(r.local.GuestTransactions())
}

// ShouldOffer is the trigger condition: a business profile just became
// available and guest data exists. Once Accept or Discard clears the
// local records the condition cannot recur for the same data.
func (r *Reconciler) ShouldOffer(hasBusiness bool) bool {
	return hasBusiness && r.Pending() > 0
}

// Accept imports all guest transactions in sequential bounded batches.
// Local data is only cleared after every batch lands; any failure leaves
// the device state untouched so nothing is lost and the user can retry.
// A retry may re-import an already-landed prefix; preserving data beats
// de-duplicating it.
func (r *Reconciler) Accept(ctx context.Context) error {
	txs := r.local.GuestTransactions()
	if len(txs) == 0 {
		return nil
	}

	for start := 0; start < len(txs); start += r.batchSize {
		end := start + r.batchSize
		if end > len(txs) {
			end = len(txs)
		}
		if err := r.importer.ImportBatch(ctx, txs[start:end]); err != nil {
			r.logger.ErrorContext(ctx, "guest import failed, local data preserved",
				"imported", start, "total", len(txs), "error", err)
			return fmt.Errorf("import guest transactions: %w", err)
		}
	}

	if err := r.local.ClearGuestTransactions(); err != nil {
		return fmt.Errorf("clear guest transactions: %w", err)
	}
	if err := r.local.SetGuestMode(false); err != nil {
		return fmt.Errorf("disable guest mode: %w", err)
	}

	r.logger.InfoContext(ctx, "guest transactions imported", "count", len(txs))
	return nil
}

// Discard drops the guest data without importing anything.
func (r *Reconciler) Discard() error {
	if err := r.local.ClearGuestTransactions(); err != nil {
		return fmt.Errorf("clear guest transactions: %w", err)
	}
	if err := r.local.SetGuestMode(false); err != nil {
		return fmt.Errorf("disable guest mode: %w", err)
	}
	return nil
}
