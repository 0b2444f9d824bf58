package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledgerbook/identity/internal/domain"
)

type importUsecaser interface {
	ImportBatch(ctx context.Context, userID string, txs []domain.Transaction) error
}

type ImportHandler struct {
	importUsecase importUsecaser
	logger        *slog.Logger
}

func NewImportHandler(importUsecase importUsecaser, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		importUsecase: importUsecase,
		logger:        logger.With("component", "import_handler"),
	}
}

type importTransaction struct {
	ID          string    `json:"id"           binding:"required,uuid"`
	Kind        string    `json:"kind"         binding:"required,oneof=sale expense"`
	AmountCents int64     `json:"amount_cents" binding:"required,gt=0"`
	Currency    string    `json:"currency"     binding:"required,len=3"`
	Note        string    `json:"note"         binding:"max=500"`
	OccurredAt  time.Time `json:"occurred_at"  binding:"required"`
}

type importRequest struct {
	Transactions []importTransaction `json:"transactions" binding:"required,min=1,dive"`
}

// POST /transactions/import
// Accepts one bounded batch of guest transactions. The whole batch lands
// or the whole request fails; the client keeps its local copy until every
// batch has succeeded.
func (h *ImportHandler) Import(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	txs := make([]domain.Transaction, 0, len(req.Transactions))
	for _, t := range req.Transactions {
		txs = append(txs, domain.Transaction{
			ID:          t.ID,
			Kind:        domain.TransactionKind(t.Kind),
			AmountCents: t.AmountCents,
			Currency:    t.Currency,
			Note:        t.Note,
			OccurredAt:  t.OccurredAt,
		})
	}

	if err := h.importUsecase.ImportBatch(c.Request.Context(), c.GetString("userID"), txs); err != nil {
		if errors.Is(err, domain.ErrInvalidTransaction) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "import transactions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusOK, gin.H{"imported": len(txs)})
}
