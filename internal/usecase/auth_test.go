package usecase_test

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ledgerbook/identity/internal/domain"
	"github.com/ledgerbook/identity/internal/usecase"
)

// ---- fakes ----

type fakeTokenRepo struct {
	create           func(ctx context.Context, email, tokenHash string, expiresAt time.Time) error
	findByHash       func(ctx context.Context, tokenHash string) (*domain.MagicLinkToken, error)
	markUsed         func(ctx context.Context, id string) (bool, error)
	countRecent      func(ctx context.Context, email string, since time.Time) (int, error)
	countOutstanding func(ctx context.Context) (int64, int64, error)
}

func (r *fakeTokenRepo) Create(ctx context.Context, email, tokenHash string, expiresAt time.Time) error {
	return r.create(ctx, email, tokenHash, expiresAt)
}

func (r *fakeTokenRepo) FindByHash(ctx context.Context, tokenHash string) (*domain.MagicLinkToken, error) {
	return r.findByHash(ctx, tokenHash)
}

func (r *fakeTokenRepo) MarkUsed(ctx context.Context, id string) (bool, error) {
	return r.markUsed(ctx, id)
}

func (r *fakeTokenRepo) CountRecent(ctx context.Context, email string, since time.Time) (int, error) {
	if r.countRecent != nil {
		return r.countRecent(ctx, email, since)
	}
	return 0, nil
}

func (r *fakeTokenRepo) CountOutstanding(ctx context.Context) (int64, int64, error) {
	return r.countOutstanding(ctx)
}

type fakeUserRepo struct {
	findOrCreate func(ctx context.Context, email string) (*domain.User, error)
	findByID     func(ctx context.Context, id string) (*domain.User, error)
}

func (r *fakeUserRepo) FindOrCreate(ctx context.Context, email string) (*domain.User, error) {
	return r.findOrCreate(ctx, email)
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findByID(ctx, id)
}

type fakeEmailSender struct {
	send func(ctx context.Context, to, subject, body string) error
}

func (s *fakeEmailSender) Send(ctx context.Context, to, subject, body string) error {
	if s.send != nil {
		return s.send(ctx, to, subject, body)
	}
	return nil
}

// ---- helpers ----

const (
	testJWTKey     = "test-jwt-secret-at-least-32-chars!!"
	testAppBaseURL = "http://localhost:8080"
)

var testUser = &domain.User{ID: "user-1", Email: "u@test.com"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newUsecase(tokens *fakeTokenRepo, users *fakeUserRepo, sender *fakeEmailSender) *usecase.AuthUsecase {
	return usecase.NewAuthUsecase(tokens, users, sender, usecase.AuthConfig{
		JWTSecret:  []byte(testJWTKey),
		AppBaseURL: testAppBaseURL,
	}, discardLogger())
}

func hashOf(raw string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(raw)))
}

// extractRawToken pulls the raw token out of the link in the email body.
func extractRawToken(t *testing.T, body string) string {
	t.Helper()
	idx := strings.Index(body, "?token=")
	if idx == -1 {
		t.Fatal("email body does not contain ?token=")
	}
	return strings.SplitN(body[idx+len("?token="):], `"`, 2)[0]
}

// ---- RequestMagicLink ----

func TestRequestMagicLink_StoresHashOfEmailedToken(t *testing.T) {
	var capturedHash string
	var capturedBody string

	tokens := &fakeTokenRepo{
		create: func(_ context.Context, _, tokenHash string, _ time.Time) error {
			capturedHash = tokenHash
			return nil
		},
	}
	sender := &fakeEmailSender{
		send: func(_ context.Context, _, _, body string) error {
			capturedBody = body
			return nil
		},
	}

	if err := newUsecase(tokens, &fakeUserRepo{}, sender).RequestMagicLink(context.Background(), testUser.Email); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rawToken := extractRawToken(t, capturedBody)
	if len(rawToken) != domain.RawTokenLength {
		t.Errorf("raw token length = %d, want %d", len(rawToken), domain.RawTokenLength)
	}
	if capturedHash != hashOf(rawToken) {
		t.Errorf("stored hash %q != SHA-256 of emailed token", capturedHash)
	}
}

func TestRequestMagicLink_NormalizesEmail(t *testing.T) {
	var countedEmail, createdEmail string

	tokens := &fakeTokenRepo{
		countRecent: func(_ context.Context, email string, _ time.Time) (int, error) {
			countedEmail = email
			return 0, nil
		},
		create: func(_ context.Context, email, _ string, _ time.Time) error {
			createdEmail = email
			return nil
		},
	}

	err := newUsecase(tokens, &fakeUserRepo{}, &fakeEmailSender{}).
		RequestMagicLink(context.Background(), "  Owner@Example.COM ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if countedEmail != "owner@example.com" {
		t.Errorf("rate limit counted %q, want normalized email", countedEmail)
	}
	if createdEmail != "owner@example.com" {
		t.Errorf("token created for %q, want normalized email", createdEmail)
	}
}

func TestRequestMagicLink_RateLimited(t *testing.T) {
	created := false
	tokens := &fakeTokenRepo{
		countRecent: func(_ context.Context, _ string, _ time.Time) (int, error) {
			return 3, nil
		},
		create: func(_ context.Context, _, _ string, _ time.Time) error {
			created = true
			return nil
		},
	}

	err := newUsecase(tokens, &fakeUserRepo{}, &fakeEmailSender{}).
		RequestMagicLink(context.Background(), testUser.Email)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited, got %v", err)
	}
	if created {
		t.Error("token was created despite rate limit")
	}
}

func TestRequestMagicLink_SendFailure_StillSucceeds(t *testing.T) {
	created := false
	tokens := &fakeTokenRepo{
		create: func(_ context.Context, _, _ string, _ time.Time) error {
			created = true
			return nil
		},
	}
	sender := &fakeEmailSender{
		send: func(_ context.Context, _, _, _ string) error {
			return errors.New("gateway unavailable")
		},
	}

	// The persisted-but-unsent token is accepted: it is unreachable and
	// expires on its own.
	err := newUsecase(tokens, &fakeUserRepo{}, sender).
		RequestMagicLink(context.Background(), testUser.Email)
	if err != nil {
		t.Fatalf("send failure should not fail the request, got %v", err)
	}
	if !created {
		t.Error("token was not persisted")
	}
}

func TestRequestMagicLink_PersistenceError_Propagates(t *testing.T) {
	repoErr := errors.New("db down")
	tokens := &fakeTokenRepo{
		create: func(_ context.Context, _, _ string, _ time.Time) error {
			return repoErr
		},
	}

	err := newUsecase(tokens, &fakeUserRepo{}, &fakeEmailSender{}).
		RequestMagicLink(context.Background(), testUser.Email)
	if !errors.Is(err, repoErr) {
		t.Errorf("want wrapped repoErr, got %v", err)
	}
}

// ---- RedeemMagicLink ----

const rawToken = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func validToken() *domain.MagicLinkToken {
	return &domain.MagicLinkToken{
		ID:        "mt-1",
		Email:     testUser.Email,
		TokenHash: hashOf(rawToken),
		ExpiresAt: time.Now().Add(5 * time.Minute),
		CreatedAt: time.Now().Add(-5 * time.Minute),
	}
}

func TestRedeemMagicLink_ShortToken_NoStoreLookup(t *testing.T) {
	lookedUp := false
	tokens := &fakeTokenRepo{
		findByHash: func(_ context.Context, _ string) (*domain.MagicLinkToken, error) {
			lookedUp = true
			return nil, domain.ErrTokenInvalid
		},
	}

	_, err := newUsecase(tokens, &fakeUserRepo{}, &fakeEmailSender{}).
		RedeemMagicLink(context.Background(), "too-short")
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("want ErrTokenInvalid, got %v", err)
	}
	if lookedUp {
		t.Error("store was queried for a malformed token")
	}
}

func TestRedeemMagicLink_UnknownToken_Invalid(t *testing.T) {
	tokens := &fakeTokenRepo{
		findByHash: func(_ context.Context, _ string) (*domain.MagicLinkToken, error) {
			return nil, domain.ErrTokenInvalid
		},
	}

	_, err := newUsecase(tokens, &fakeUserRepo{}, &fakeEmailSender{}).
		RedeemMagicLink(context.Background(), rawToken)
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("want ErrTokenInvalid, got %v", err)
	}
}

func TestRedeemMagicLink_UsedWinsOverExpired(t *testing.T) {
	usedAt := time.Now().Add(-20 * time.Minute)
	tok := validToken()
	tok.UsedAt = &usedAt
	tok.ExpiresAt = time.Now().Add(-10 * time.Minute)

	tokens := &fakeTokenRepo{
		findByHash: func(_ context.Context, _ string) (*domain.MagicLinkToken, error) {
			return tok, nil
		},
	}

	// A token that is both consumed and expired reports "used" so the
	// client message matches what actually happened first.
	_, err := newUsecase(tokens, &fakeUserRepo{}, &fakeEmailSender{}).
		RedeemMagicLink(context.Background(), rawToken)
	if !errors.Is(err, domain.ErrTokenUsed) {
		t.Errorf("want ErrTokenUsed, got %v", err)
	}
}

func TestRedeemMagicLink_Expired(t *testing.T) {
	tok := validToken()
	tok.ExpiresAt = time.Now().Add(-time.Minute)

	marked := false
	tokens := &fakeTokenRepo{
		findByHash: func(_ context.Context, _ string) (*domain.MagicLinkToken, error) {
			return tok, nil
		},
		markUsed: func(_ context.Context, _ string) (bool, error) {
			marked = true
			return true, nil
		},
	}

	_, err := newUsecase(tokens, &fakeUserRepo{}, &fakeEmailSender{}).
		RedeemMagicLink(context.Background(), rawToken)
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("want ErrTokenExpired, got %v", err)
	}
	if marked {
		t.Error("expired token was marked used")
	}
}

func TestRedeemMagicLink_LostClaimRace_Fails(t *testing.T) {
	tokens := &fakeTokenRepo{
		findByHash: func(_ context.Context, _ string) (*domain.MagicLinkToken, error) {
			return validToken(), nil
		},
		markUsed: func(_ context.Context, _ string) (bool, error) {
			// Another redemption claimed the row between our read and
			// this write.
			return false, nil
		},
	}
	users := &fakeUserRepo{
		findOrCreate: func(_ context.Context, _ string) (*domain.User, error) {
			t.Fatal("session must not be minted without winning the claim")
			return nil, nil
		},
	}

	_, err := newUsecase(tokens, users, &fakeEmailSender{}).
		RedeemMagicLink(context.Background(), rawToken)
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("want ErrTokenInvalid, got %v", err)
	}
}

func TestRedeemMagicLink_MarkUsedError_NoSession(t *testing.T) {
	writeErr := errors.New("connection reset")
	tokens := &fakeTokenRepo{
		findByHash: func(_ context.Context, _ string) (*domain.MagicLinkToken, error) {
			return validToken(), nil
		},
		markUsed: func(_ context.Context, _ string) (bool, error) {
			return false, writeErr
		},
	}

	session, err := newUsecase(tokens, &fakeUserRepo{}, &fakeEmailSender{}).
		RedeemMagicLink(context.Background(), rawToken)
	if session != nil {
		t.Fatal("got a session despite a failed mark-used write")
	}
	if !errors.Is(err, writeErr) {
		t.Errorf("want wrapped write error, got %v", err)
	}
}

func TestRedeemMagicLink_Success_MintsSessionJWT(t *testing.T) {
	tokens := &fakeTokenRepo{
		findByHash: func(_ context.Context, tokenHash string) (*domain.MagicLinkToken, error) {
			if tokenHash != hashOf(rawToken) {
				return nil, domain.ErrTokenInvalid
			}
			return validToken(), nil
		},
		markUsed: func(_ context.Context, id string) (bool, error) {
			if id != "mt-1" {
				t.Errorf("marked wrong token id %q", id)
			}
			return true, nil
		},
	}
	users := &fakeUserRepo{
		findOrCreate: func(_ context.Context, email string) (*domain.User, error) {
			if email != testUser.Email {
				t.Errorf("find or create for %q, want %q", email, testUser.Email)
			}
			return testUser, nil
		},
	}

	session, err := newUsecase(tokens, users, &fakeEmailSender{}).
		RedeemMagicLink(context.Background(), rawToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Email != testUser.Email {
		t.Errorf("session email = %q, want %q", session.Email, testUser.Email)
	}

	token, parseErr := jwt.Parse(session.Token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected method")
		}
		return []byte(testJWTKey), nil
	})
	if parseErr != nil || !token.Valid {
		t.Fatalf("returned JWT is invalid: %v", parseErr)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatal("could not cast claims")
	}
	if claims["sub"] != testUser.ID {
		t.Errorf("sub = %v, want %q", claims["sub"], testUser.ID)
	}
	if claims["email"] != testUser.Email {
		t.Errorf("email = %v, want %q", claims["email"], testUser.Email)
	}
}

// ---- full lifecycle against an in-memory store ----

// memTokenRepo implements repository.TokenRepository with a map and a
// mutex so the lifecycle test exercises the real decision order,
// including the atomic claim.
type memTokenRepo struct {
	mu   sync.Mutex
	rows map[string]*domain.MagicLinkToken
	seq  int
	now  func() time.Time
}

func newMemTokenRepo(now func() time.Time) *memTokenRepo {
	return &memTokenRepo{rows: make(map[string]*domain.MagicLinkToken), now: now}
}

func (r *memTokenRepo) Create(_ context.Context, email, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	id := fmt.Sprintf("mt-%d", r.seq)
	r.rows[id] = &domain.MagicLinkToken{
		ID: id, Email: email, TokenHash: tokenHash,
		ExpiresAt: expiresAt, CreatedAt: r.now(),
	}
	return nil
}

func (r *memTokenRepo) FindByHash(_ context.Context, tokenHash string) (*domain.MagicLinkToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.rows {
		if t.TokenHash == tokenHash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrTokenInvalid
}

func (r *memTokenRepo) MarkUsed(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok || t.UsedAt != nil {
		return false, nil
	}
	usedAt := r.now()
	t.UsedAt = &usedAt
	return true, nil
}

func (r *memTokenRepo) CountRecent(_ context.Context, email string, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, t := range r.rows {
		if t.Email == email && !t.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *memTokenRepo) CountOutstanding(_ context.Context) (int64, int64, error) {
	return 0, 0, nil
}

func TestMagicLink_Lifecycle(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	repo := newMemTokenRepo(clock)
	var lastBody string
	sender := &fakeEmailSender{
		send: func(_ context.Context, _, _, body string) error {
			lastBody = body
			return nil
		},
	}
	users := &fakeUserRepo{
		findOrCreate: func(_ context.Context, email string) (*domain.User, error) {
			return &domain.User{ID: "user-1", Email: email}, nil
		},
	}
	uc := usecase.NewAuthUsecase(repo, users, sender, usecase.AuthConfig{
		JWTSecret:  []byte(testJWTKey),
		AppBaseURL: testAppBaseURL,
		Now:        clock,
	}, discardLogger())

	ctx := context.Background()

	// Issue and redeem once.
	if err := uc.RequestMagicLink(ctx, "u@test.com"); err != nil {
		t.Fatalf("request: %v", err)
	}
	raw := extractRawToken(t, lastBody)

	session, err := uc.RedeemMagicLink(ctx, raw)
	if err != nil {
		t.Fatalf("first redemption: %v", err)
	}
	if session.Email != "u@test.com" {
		t.Errorf("session email = %q", session.Email)
	}

	// Second redemption of the same raw token must fail as used.
	if _, err := uc.RedeemMagicLink(ctx, raw); !errors.Is(err, domain.ErrTokenUsed) {
		t.Errorf("second redemption: want ErrTokenUsed, got %v", err)
	}

	// A fresh token redeemed 11 minutes later is expired.
	if err := uc.RequestMagicLink(ctx, "u@test.com"); err != nil {
		t.Fatalf("second request: %v", err)
	}
	raw = extractRawToken(t, lastBody)

	now = now.Add(11 * time.Minute)
	if _, err := uc.RedeemMagicLink(ctx, raw); !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("late redemption: want ErrTokenExpired, got %v", err)
	}
}

func TestMagicLink_RateLimitPerEmail(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }

	repo := newMemTokenRepo(clock)
	users := &fakeUserRepo{}
	uc := usecase.NewAuthUsecase(repo, users, &fakeEmailSender{}, usecase.AuthConfig{
		JWTSecret:  []byte(testJWTKey),
		AppBaseURL: testAppBaseURL,
		Now:        clock,
	}, discardLogger())

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := uc.RequestMagicLink(ctx, "a@x.com"); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}

	if err := uc.RequestMagicLink(ctx, "a@x.com"); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("4th request: want ErrRateLimited, got %v", err)
	}

	// A different email is unaffected.
	if err := uc.RequestMagicLink(ctx, "b@x.com"); err != nil {
		t.Errorf("other email: unexpected error %v", err)
	}

	// The window slides: after 16 minutes the cap resets.
	now = now.Add(16 * time.Minute)
	if err := uc.RequestMagicLink(ctx, "a@x.com"); err != nil {
		t.Errorf("after window: unexpected error %v", err)
	}
}
