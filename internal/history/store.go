package history

import (
	"context"
	"sync"

	"github.com/fitforge/fitforge/pkg/models"
)

// Store keeps per-user chat history keyed by user id. Implementations
// must be safe for concurrent use; writes are last-writer-wins.
type Store interface {
	// Get returns the stored history for a user, empty when none.
	Get(ctx context.Context, userID string) ([]models.ChatMessage, error)

	// Set replaces the stored history for a user.
	Set(ctx context.Context, userID string, msgs []models.ChatMessage) error

	// Clear removes the stored history for a user.
	Clear(ctx context.Context, userID string) error
}

// MemoryStore is the in-process Store backend.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string][]models.ChatMessage
	maxTurns int
}

// NewMemoryStore creates an in-memory store capping each user's
// history at maxTurns messages.
func NewMemoryStore(maxTurns int) *MemoryStore {
	if maxTurns <= 0 {
		maxTurns = 15
	}
	return &MemoryStore{
		users:    make(map[string][]models.ChatMessage),
		maxTurns: maxTurns,
	}
}

// Get returns a copy of the user's history.
func (s *MemoryStore) Get(ctx context.Context, userID string) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.users[userID]
	out := make([]models.ChatMessage, len(stored))
	copy(out, stored)
	return out, nil
}

// Set replaces the user's history, keeping only the newest maxTurns
// messages.
func (s *MemoryStore) Set(ctx context.Context, userID string, msgs []models.ChatMessage) error {
	if len(msgs) > s.maxTurns {
		msgs = msgs[len(msgs)-s.maxTurns:]
	}

	stored := make([]models.ChatMessage, len(msgs))
	copy(stored, msgs)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = stored
	return nil
}

// Clear removes the user's history.
func (s *MemoryStore) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	return nil
}
