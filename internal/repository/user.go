package repository

import (
	"context"

	"github.com/ledgerbook/identity/internal/domain"
)

type UserRepository interface {
	FindOrCreate(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

type BusinessRepository interface {
	Create(ctx context.Context, b *domain.Business) (*domain.Business, error)
	HasForUser(ctx context.Context, userID string) (bool, error)
}
