package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ledgerbook/identity/internal/domain"
	"github.com/ledgerbook/identity/internal/usecase"
)

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	RequestMagicLink(ctx context.Context, email string) error
	RedeemMagicLink(ctx context.Context, rawToken string) (*usecase.Session, error)
}

type AuthHandler struct {
	authUsecase authUsecaser
	appBaseURL  string
	production  bool
	logger      *slog.Logger
}

func NewAuthHandler(authUsecase authUsecaser, appBaseURL string, production bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		appBaseURL:  appBaseURL,
		production:  production,
		logger:      logger.With("component", "auth_handler"),
	}
}

type sendMagicLinkRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// POST /auth/send-magic-link
// The success shape is identical whether or not the email is known
// anywhere, so the endpoint cannot be used to enumerate accounts.
func (h *AuthHandler) SendMagicLink(c *gin.Context) {
	var req sendMagicLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A valid email address is required"})
		return
	}

	if err := h.authUsecase.RequestMagicLink(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": errRateLimited})
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "request magic link", "error", err)
		resp := gin.H{"error": errInternalServer}
		if !h.production {
			resp["code"] = "magic_link_request_failed"
		}
		c.JSON(http.StatusInternalServerError, resp)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// GET /auth/verify?token=<raw>
// Success hands the session token to the app entry URL in the fragment,
// which browsers never send back over the wire. Failures land on the
// error page with a reason the client can act on.
func (h *AuthHandler) Verify(c *gin.Context) {
	rawToken := c.Query("token")

	session, err := h.authUsecase.RedeemMagicLink(c.Request.Context(), rawToken)
	if err != nil {
		c.Redirect(http.StatusSeeOther, h.appBaseURL+"/auth/error?reason="+h.redeemReason(c, err))
		return
	}

	c.Redirect(http.StatusSeeOther, h.appBaseURL+"/auth/callback#token="+session.Token)
}

func (h *AuthHandler) redeemReason(c *gin.Context, err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return reasonExpired
	case errors.Is(err, domain.ErrTokenUsed):
		return reasonUsed
	case errors.Is(err, domain.ErrTokenInvalid):
		return reasonInvalid
	default:
		// Persistence failures must never surface as success; the
		// detail stays in the server log.
		h.logger.ErrorContext(c.Request.Context(), "redeem magic link", "error", err)
		return reasonInvalid
	}
}
