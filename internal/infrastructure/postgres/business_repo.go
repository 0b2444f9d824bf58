package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ledgerbook/identity/internal/domain"
)

type BusinessRepository struct {
	pool *pgxpool.Pool
}

func NewBusinessRepository(pool *pgxpool.Pool) *BusinessRepository {
	return &BusinessRepository{pool: pool}
}

func (r *BusinessRepository) Create(ctx context.Context, b *domain.Business) (*domain.Business, error) {
	query := `
		INSERT INTO businesses (user_id, name, country, currency)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, name, country, currency, created_at`

	row := r.pool.QueryRow(ctx, query, b.UserID, b.Name, b.Country, b.Currency)

	var created domain.Business
	err := row.Scan(&created.ID, &created.UserID, &created.Name, &created.Country, &created.Currency, &created.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrBusinessExists
		}
		return nil, fmt.Errorf("create business: %w", err)
	}
	return &created, nil
}

func (r *BusinessRepository) HasForUser(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM businesses WHERE user_id = $1)`,
		userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check business for user: %w", err)
	}
	return exists, nil
}
