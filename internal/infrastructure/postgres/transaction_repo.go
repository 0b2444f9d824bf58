package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ledgerbook/identity/internal/domain"
)

type TransactionRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// InsertBatch writes one import batch inside a transaction so a batch
// either lands whole or not at all.
func (r *TransactionRepository) InsertBatch(ctx context.Context, userID string, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, t := range txs {
		batch.Queue(
			`INSERT INTO transactions (id, user_id, kind, amount_cents, currency, note, occurred_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			t.ID, userID, t.Kind, t.AmountCents, t.Currency, t.Note, t.OccurredAt,
		)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin import batch: %w", err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	for range txs {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert imported transaction: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close import batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit import batch: %w", err)
	}
	return nil
}
