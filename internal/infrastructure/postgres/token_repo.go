package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ledgerbook/identity/internal/domain"
)

type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) Create(ctx context.Context, email, tokenHash string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO magic_link_tokens (email, token_hash, expires_at)
		 VALUES ($1, $2, $3)`,
		email, tokenHash, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("create magic link token: %w", err)
	}
	return nil
}

func (r *TokenRepository) FindByHash(ctx context.Context, tokenHash string) (*domain.MagicLinkToken, error) {
	query := `
		SELECT id, email, token_hash, expires_at, used_at, created_at
		FROM magic_link_tokens
		WHERE token_hash = $1`

	row := r.pool.QueryRow(ctx, query, tokenHash)

	var t domain.MagicLinkToken
	err := row.Scan(&t.ID, &t.Email, &t.TokenHash, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTokenInvalid
		}
		return nil, fmt.Errorf("find token by hash: %w", err)
	}
	return &t, nil
}

// MarkUsed is the linearization point for single use: the conditional
// update claims the row, and a zero row count means some other redemption
// already won.
func (r *TokenRepository) MarkUsed(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE magic_link_tokens SET used_at = NOW()
		 WHERE id = $1 AND used_at IS NULL`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("mark token used: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TokenRepository) CountRecent(ctx context.Context, email string, since time.Time) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM magic_link_tokens
		 WHERE email = $1 AND created_at >= $2`,
		email, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent tokens: %w", err)
	}
	return count, nil
}

func (r *TokenRepository) CountOutstanding(ctx context.Context) (active, expiredUnused int64, err error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE used_at IS NULL AND expires_at >= NOW()),
			COUNT(*) FILTER (WHERE used_at IS NULL AND expires_at < NOW())
		FROM magic_link_tokens`

	if err := r.pool.QueryRow(ctx, query).Scan(&active, &expiredUnused); err != nil {
		return 0, 0, fmt.Errorf("count outstanding tokens: %w", err)
	}
	return active, expiredUnused, nil
}
