package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledgerbook/identity/internal/domain"
	"github.com/ledgerbook/identity/internal/usecase"
)

type businessUsecaser interface {
	CreateBusiness(ctx context.Context, input usecase.CreateBusinessInput) (*domain.Business, error)
	HasBusiness(ctx context.Context, userID string) (bool, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

type BusinessHandler struct {
	businessUsecase businessUsecaser
	users           userFinder
	logger          *slog.Logger
}

func NewBusinessHandler(businessUsecase businessUsecaser, users userFinder, logger *slog.Logger) *BusinessHandler {
	return &BusinessHandler{
		businessUsecase: businessUsecase,
		users:           users,
		logger:          logger.With("component", "business_handler"),
	}
}

type meResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	HasBusiness bool   `json:"has_business"`
}

// GET /me
// The business-profile lookup behind the session resolver's hasBusiness
// signal.
func (h *BusinessHandler) Me(c *gin.Context) {
	userID := c.GetString("userID")

	user, err := h.users.FindByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown user"})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "find user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	hasBusiness, err := h.businessUsecase.HasBusiness(c.Request.Context(), userID)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "has business", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusOK, meResponse{
		UserID:      user.ID,
		Email:       user.Email,
		HasBusiness: hasBusiness,
	})
}

type createBusinessRequest struct {
	Name     string `json:"name"     binding:"required,min=1,max=120"`
	Country  string `json:"country"  binding:"required,len=2"`
	Currency string `json:"currency" binding:"required,len=3"`
}

type createBusinessResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Country   string    `json:"country"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

// POST /businesses
func (h *BusinessHandler) Create(c *gin.Context) {
	var req createBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	b, err := h.businessUsecase.CreateBusiness(c.Request.Context(), usecase.CreateBusinessInput{
		UserID:   c.GetString("userID"),
		Name:     req.Name,
		Country:  req.Country,
		Currency: req.Currency,
	})
	if err != nil {
		if errors.Is(err, domain.ErrBusinessExists) {
			c.JSON(http.StatusConflict, gin.H{"error": errBusinessExists})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "create business", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusCreated, createBusinessResponse{
		ID:        b.ID,
		Name:      b.Name,
		Country:   b.Country,
		Currency:  b.Currency,
		CreatedAt: b.CreatedAt,
	})
}
