// Package apiclient is the thin HTTP client the app shell uses against
// the identity service: request a sign-in link, look up the signed-in
// user, and push guest-import batches. It satisfies reconcile.Importer.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ledgerbook/identity/internal/domain"
)

type Client struct {
	baseURL      string
	sessionToken string
	http         *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// SetSessionToken installs the bearer token minted at redemption.
func (c *Client) SetSessionToken(token string) {
	c.sessionToken = token
}

// RequestMagicLink asks the server to email a sign-in link. The server
// answers the same way whether or not the address is known.
func (c *Client) RequestMagicLink(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.do(ctx, http.MethodPost, "/auth/send-magic-link", body, nil)
}

// Me is the business-profile lookup backing the resolver's hasBusiness
// signal.
type Me struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	HasBusiness bool   `json:"has_business"`
}

func (c *Client) Me(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.do(ctx, http.MethodGet, "/me", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// ImportBatch pushes one bounded batch of guest transactions.
func (c *Client) ImportBatch(ctx context.Context, txs []domain.Transaction) error {
	body := importRequest{Transactions: make([]importTransaction, 0, len(txs))}
	for _, t := range txs {
		body.Transactions = append(body.Transactions, importTransaction{
			ID:          t.ID,
			Kind:        string(t.Kind),
			AmountCents: t.AmountCents,
			Currency:    t.Currency,
			Note:        t.Note,
			OccurredAt:  t.OccurredAt,
		})
	}
	return c.do(ctx, http.MethodPost, "/transactions/import", body, nil)
}

type importRequest struct {
	Transactions []importTransaction `json:"transactions"`
}

type importTransaction struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Note        string    `json:"note,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.sessionToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	_, _ = io.Copy(io.Discard, resp.Body) // drain so the connection can be reused by the pool
	return nil
}
