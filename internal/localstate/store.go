// Package localstate is the device-side persistence for the app shell:
// guest mode, locale choices, the welcome flag, and any guest-mode
// transactions awaiting reconciliation. It is the Go equivalent of the
// handful of local-storage keys the UI reads, kept in one JSON file with
// atomic rewrites.
package localstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ledgerbook/identity/internal/domain"
)

type state struct {
	GuestMode         bool                 `json:"guest_mode"`
	Country           string               `json:"country,omitempty"`
	Language          string               `json:"language,omitempty"`
	WelcomeSeen       bool                 `json:"welcome_seen"`
	GuestTransactions []domain.Transaction `json:"guest_transactions,omitempty"`
}

// Store is a file-backed key store. Safe for concurrent use; every
// mutation is flushed with a temp-file rename so a crash never leaves a
// half-written state file.
type Store struct {
	mu   sync.Mutex
	path string
	st   state
}

// Open loads the state file at path, creating an empty store if the file
// does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read local state: %w", err)
	}
	if err := json.Unmarshal(raw, &s.st); err != nil {
		return nil, fmt.Errorf("parse local state: %w", err)
	}
	return s, nil
}

func (s *Store) GuestMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GuestMode
}

func (s *Store) SetGuestMode(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.GuestMode = on
	return s.flush()
}

func (s *Store) Country() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Country
}

func (s *Store) SetCountry(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Country = code
	return s.flush()
}

func (s *Store) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Language
}

func (s *Store) SetLanguage(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.Language = code
	return s.flush()
}

func (s *Store) WelcomeSeen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.WelcomeSeen
}

func (s *Store) SetWelcomeSeen(seen bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.WelcomeSeen = seen
	return s.flush()
}

// GuestTransactions returns a copy; callers cannot mutate stored state.
func (s *Store) GuestTransactions() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Transaction, len(s.st.GuestTransactions))
	copy(out, s.st.GuestTransactions)
	return out
}

func (s *Store) AppendGuestTransaction(t domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.GuestTransactions = append(s.st.GuestTransactions, t)
	return s.flush()
}

func (s *Store) ClearGuestTransactions() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.GuestTransactions = nil
	return s.flush()
}

// flush writes the whole state atomically. Callers hold s.mu.
func (s *Store) flush() error {
	raw, err := json.MarshalIndent(&s.st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode local state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write local state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace local state: %w", err)
	}
	return nil
}
