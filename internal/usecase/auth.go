package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ledgerbook/identity/internal/domain"
	"github.com/ledgerbook/identity/internal/email"
	"github.com/ledgerbook/identity/internal/metrics"
	"github.com/ledgerbook/identity/internal/repository"
)

const (
	defaultTokenTTL        = 10 * time.Minute
	defaultRateLimitWindow = 15 * time.Minute
	defaultRateLimitMax    = 3
	sessionTTL             = 24 * time.Hour
)

// AuthConfig carries issuance and session policy. Zero values fall back
// to the defaults above; Now exists so tests can drive the clock.
type AuthConfig struct {
	TokenTTL        time.Duration
	RateLimitWindow time.Duration
	RateLimitMax    int
	JWTSecret       []byte
	AppBaseURL      string
	Now             func() time.Time
}

type AuthUsecase struct {
	tokens repository.TokenRepository
	users  repository.UserRepository
	email  email.Sender
	logger *slog.Logger

	tokenTTL        time.Duration
	rateLimitWindow time.Duration
	rateLimitMax    int
	jwtSecret       []byte
	appBaseURL      string
	now             func() time.Time
}

func NewAuthUsecase(
	tokens repository.TokenRepository,
	users repository.UserRepository,
	sender email.Sender,
	cfg AuthConfig,
	logger *slog.Logger,
) *AuthUsecase {
	u := &AuthUsecase{
		tokens:          tokens,
		users:           users,
		email:           sender,
		logger:          logger.With("component", "auth_usecase"),
		tokenTTL:        cfg.TokenTTL,
		rateLimitWindow: cfg.RateLimitWindow,
		rateLimitMax:    cfg.RateLimitMax,
		jwtSecret:       cfg.JWTSecret,
		appBaseURL:      cfg.AppBaseURL,
		now:             cfg.Now,
	}
	if u.tokenTTL == 0 {
		u.tokenTTL = defaultTokenTTL
	}
	if u.rateLimitWindow == 0 {
		u.rateLimitWindow = defaultRateLimitWindow
	}
	if u.rateLimitMax == 0 {
		u.rateLimitMax = defaultRateLimitMax
	}
	if u.now == nil {
		u.now = time.Now
	}
	return u
}

// RequestMagicLink issues a single-use sign-in token and emails it.
// The raw token exists only on this call's stack; the store sees its
// SHA-256 only. A failed email send is logged and swallowed: the
// orphaned token is unreachable and expires on its own, while deleting
// it could race a retried send the user actually received.
func (u *AuthUsecase) RequestMagicLink(ctx context.Context, emailAddr string) error {
	emailAddr = domain.NormalizeEmail(emailAddr)

	since := u.now().Add(-u.rateLimitWindow)
	count, err := u.tokens.CountRecent(ctx, emailAddr, since)
	if err != nil {
		return fmt.Errorf("count recent tokens: %w", err)
	}
	if count >= u.rateLimitMax {
		metrics.MagicLinkRequests.WithLabelValues("rate_limited").Inc()
		return domain.ErrRateLimited
	}

	raw := make([]byte, 32)
	if _, err = io.ReadFull(rand.Reader, raw); err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	rawToken := hex.EncodeToString(raw)
	tokenHash := fmt.Sprintf("%x", sha256.Sum256([]byte(rawToken)))

	expiresAt := u.now().Add(u.tokenTTL)
	if err = u.tokens.Create(ctx, emailAddr, tokenHash, expiresAt); err != nil {
		return fmt.Errorf("store magic token: %w", err)
	}
	metrics.MagicLinkRequests.WithLabelValues("issued").Inc()

	link := u.appBaseURL + "/auth/verify?token=" + rawToken
	subject := "Sign in to LedgerBook"
	body := fmt.Sprintf(
		`<p>Click the link below to sign in (expires in %d minutes):</p><p><a href="%s">%s</a></p>`,
		int(u.tokenTTL.Minutes()), link, link,
	)
	if err = u.email.Send(ctx, emailAddr, subject, body); err != nil {
		u.logger.ErrorContext(ctx, "send magic link email", "error", err)
		metrics.MagicLinkRequests.WithLabelValues("send_failed").Inc()
	}
	return nil
}

// Session is the result of a successful redemption.
type Session struct {
	Token string
	Email string
}

// RedeemMagicLink validates and consumes a raw token, then mints the
// session JWT. The conditional mark-used write is the step that grants
// success: losing it, for any reason, means no session.
func (u *AuthUsecase) RedeemMagicLink(ctx context.Context, rawToken string) (*Session, error) {
	if len(rawToken) < domain.RawTokenLength {
		metrics.MagicLinkRedemptions.WithLabelValues("invalid").Inc()
		return nil, domain.ErrTokenInvalid
	}

	tokenHash := fmt.Sprintf("%x", sha256.Sum256([]byte(rawToken)))
	t, err := u.tokens.FindByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, domain.ErrTokenInvalid) {
			metrics.MagicLinkRedemptions.WithLabelValues("invalid").Inc()
			return nil, domain.ErrTokenInvalid
		}
		return nil, fmt.Errorf("find token: %w", err)
	}

	if t.UsedAt != nil {
		metrics.MagicLinkRedemptions.WithLabelValues("used").Inc()
		return nil, domain.ErrTokenUsed
	}
	if u.now().After(t.ExpiresAt) {
		metrics.MagicLinkRedemptions.WithLabelValues("expired").Inc()
		return nil, domain.ErrTokenExpired
	}

	claimed, err := u.tokens.MarkUsed(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("mark token used: %w", err)
	}
	if !claimed {
		// Lost the race against a concurrent redemption of the same token.
		metrics.MagicLinkRedemptions.WithLabelValues("invalid").Inc()
		return nil, domain.ErrTokenInvalid
	}

	user, err := u.users.FindOrCreate(ctx, t.Email)
	if err != nil {
		return nil, fmt.Errorf("find or create user: %w", err)
	}

	now := u.now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(sessionTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(u.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign jwt: %w", err)
	}

	metrics.MagicLinkRedemptions.WithLabelValues("ok").Inc()
	return &Session{Token: signed, Email: user.Email}, nil
}
