package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InMemoryStore keeps messages in process memory. Useful for development
// and tests; contents are lost on restart.
type InMemoryStore struct {
	mu            sync.RWMutex
	clock         *Clock
	conversations map[string][]Message
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		clock:         NewClock(),
		conversations: make(map[string][]Message),
	}
}

func (s *InMemoryStore) Append(ctx context.Context, conversationID, senderAddress, receiverAddress, content string) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapPersistence(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// clock is read under the write lock so slice order matches CreatedAt order
	now := s.clock.Now()
	msg := Message{
		ID:              uuid.NewString(),
		ConversationID:  conversationID,
		SenderAddress:   senderAddress,
		ReceiverAddress: receiverAddress,
		Content:         content,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.conversations[conversationID] = append(s.conversations[conversationID], msg)
	out := msg
	return &out, nil
}

func (s *InMemoryStore) ListByConversation(ctx context.Context, conversationID string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapPersistence(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.conversations[conversationID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
