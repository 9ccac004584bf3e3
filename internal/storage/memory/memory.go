// Package memory is an in-process storage.Store for tests and the memory backend.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"tuition/internal/core"
	"tuition/internal/ledger"
	"tuition/internal/storage"
)

type Store struct {
	mu          sync.Mutex
	collections map[storage.Collection][]byte
	payments    []core.PaymentRecord
	newID       func() string
}

func New() *Store {
	return &Store{
		collections: make(map[storage.Collection][]byte),
		newID:       ledger.NewID,
	}
}

// NewFromDir seeds a store from <collection>.json files under base, plus
// payments.json. Missing or unreadable files are skipped.
func NewFromDir(base string) *Store {
	s := New()
	for _, name := range storage.Collections() {
		body, err := os.ReadFile(filepath.Join(base, string(name)+".json"))
		if err != nil || !json.Valid(body) {
			continue
		}
		s.collections[name] = body
	}
	if body, err := os.ReadFile(filepath.Join(base, "payments.json")); err == nil {
		var payments []core.PaymentRecord
		if json.Unmarshal(body, &payments) == nil {
			s.payments = payments
		}
	}
	return s
}

// WithIDs overrides record id generation.
func (s *Store) WithIDs(newID func() string) *Store {
	s.newID = newID
	return s
}

func (s *Store) LoadCollection(_ context.Context, name storage.Collection, dst any) (bool, error) {
	s.mu.Lock()
	body, ok := s.collections[name]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return false, fmt.Errorf("decode collection %s: %w", name, err)
	}
	return true, nil
}

func (s *Store) SaveCollection(_ context.Context, name storage.Collection, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode collection %s: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[name] = body
	return nil
}

func (s *Store) ListPayments(_ context.Context) ([]core.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.PaymentRecord{}, s.payments...), nil
}

// TogglePayment applies the toggle under the store lock.
func (s *Store) TogglePayment(_ context.Context, req ledger.ToggleRequest) (core.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rec core.PaymentRecord
	s.payments, rec = ledger.TogglePayment(s.payments, req, s.newID)
	return rec, nil
}

func (s *Store) Close() error { return nil }

var _ storage.Store = (*Store)(nil)
