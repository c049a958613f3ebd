// Package store persists chat messages in append-only, conversation ordered form.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrPersistence wraps every storage-layer failure. Callers must not assume
// a failed Append left anything behind.
var ErrPersistence = errors.New("message persistence failed")

// Message is an immutable chat record. CreatedAt is assigned by the store
// and is the only ordering key within a conversation.
type Message struct {
	ID              string    `json:"id"`
	ConversationID  string    `json:"conversationId"`
	SenderAddress   string    `json:"senderAddress"`
	ReceiverAddress string    `json:"receiverAddress"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Store is the message persistence contract. There is no update or delete.
type Store interface {
	Append(ctx context.Context, conversationID, senderAddress, receiverAddress, content string) (*Message, error)
	// ListByConversation returns messages ascending by CreatedAt, ties broken
	// by ID. An unknown conversation yields an empty slice.
	ListByConversation(ctx context.Context, conversationID string) ([]Message, error)
}
