package repository

import (
	"context"
	"time"

	"github.com/ledgerbook/identity/internal/domain"
)

type TokenRepository interface {
	Create(ctx context.Context, email, tokenHash string, expiresAt time.Time) error
	FindByHash(ctx context.Context, tokenHash string) (*domain.MagicLinkToken, error)
	// MarkUsed sets used_at on an unconsumed row. The returned bool is
	// the authoritative single-use outcome: false means another redemption
	// already claimed the token.
	MarkUsed(ctx context.Context, id string) (bool, error)
	CountRecent(ctx context.Context, email string, since time.Time) (int, error)
	// CountOutstanding reports unexpired-unused and expired-unused token
	// counts for the audit sampler.
	CountOutstanding(ctx context.Context) (active, expiredUnused int64, err error)
}
