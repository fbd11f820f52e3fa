// Package history serves past conversations from the message store.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/mentorchat/internal/store"
)

// ErrEmptyIdentity is returned when a query names no one.
var ErrEmptyIdentity = errors.New("identity is required")

// DefaultMaxLimit caps a page when no maximum is configured.
const DefaultMaxLimit = 1000

// Service answers history queries on behalf of an authenticated identity.
type Service struct {
	store    store.HistoryStore
	maxLimit int
}

// NewService creates a history service returning at most maxLimit messages per page.
func NewService(st store.HistoryStore, maxLimit int) *Service {
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	return &Service{store: st, maxLimit: maxLimit}
}

// Conversation returns up to limit messages exchanged between me and other, oldest first.
// A non-positive limit asks for the whole conversation; every page is capped at the maximum.
// With before set, only messages created strictly earlier are returned.
func (s *Service) Conversation(ctx context.Context, me, other string, limit int, before *time.Time) ([]*store.Message, error) {
	if me == "" || other == "" {
		return nil, ErrEmptyIdentity
	}

	messages, err := s.store.ListConversation(ctx, me, other, s.clamp(limit), before)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	return messages, nil
}

// Conversations returns the latest message of every conversation me takes part in.
func (s *Service) Conversations(ctx context.Context, me string) ([]*store.ConversationSummary, error) {
	if me == "" {
		return nil, ErrEmptyIdentity
	}

	summaries, err := s.store.ListConversations(ctx, me)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return summaries, nil
}

func (s *Service) clamp(limit int) int {
	if limit <= 0 || limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}
