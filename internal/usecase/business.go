package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledgerbook/identity/internal/domain"
	"github.com/ledgerbook/identity/internal/repository"
)

type BusinessUsecase struct {
	businesses repository.BusinessRepository
}

func NewBusinessUsecase(businesses repository.BusinessRepository) *BusinessUsecase {
	return &BusinessUsecase{businesses: businesses}
}

type CreateBusinessInput struct {
	UserID   string
	Name     string
	Country  string
	Currency string
}

func (u *BusinessUsecase) CreateBusiness(ctx context.Context, input CreateBusinessInput) (*domain.Business, error) {
	b := &domain.Business{
		UserID:   input.UserID,
		Name:     strings.TrimSpace(input.Name),
		Country:  strings.ToUpper(input.Country),
		Currency: strings.ToUpper(input.Currency),
	}

	created, err := u.businesses.Create(ctx, b)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (u *BusinessUsecase) HasBusiness(ctx context.Context, userID string) (bool, error) {
	has, err := u.businesses.HasForUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("has business: %w", err)
	}
	return has, nil
}
