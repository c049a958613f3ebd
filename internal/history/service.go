// Package history serves the authorized, ordered message history of a conversation.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pelusa-v/finder-chat/internal/auth"
	"github.com/pelusa-v/finder-chat/internal/item"
	"github.com/pelusa-v/finder-chat/internal/store"
)

var (
	ErrAuthMissing        = errors.New("missing authentication signature")
	ErrBadSignatureFormat = errors.New("invalid signature format")
	ErrAuthMismatch       = errors.New("signature verification failed")
	ErrNotFound           = errors.New("item not found")
	ErrForbidden          = errors.New("not allowed to view this conversation")
	ErrInternal           = errors.New("internal server error")
)

// Credentials identify a caller acting on a conversation.
type Credentials struct {
	ItemID           string
	UserAddress      string
	Signature        string
	SignatureMessage string
}

func (c Credentials) complete() bool {
	return strings.TrimSpace(c.UserAddress) != "" &&
		strings.TrimSpace(c.Signature) != "" &&
		c.SignatureMessage != ""
}

// SignatureVerifier checks a hex signature against a claimed address.
type SignatureVerifier interface {
	VerifyHex(payload, signatureHex, claimedAddress string) error
}

// Service authorizes callers against an item's participants and reads history.
type Service struct {
	verifier SignatureVerifier
	items    item.Lookup
	messages store.Store
	log      zerolog.Logger
}

func NewService(verifier SignatureVerifier, items item.Lookup, messages store.Store, log zerolog.Logger) *Service {
	return &Service{
		verifier: verifier,
		items:    items,
		messages: messages,
		log:      log.With().Str("component", "history-service").Logger(),
	}
}

// Authorize verifies the signature and that the signer participates in the
// item's conversation. No message data is touched.
func (s *Service) Authorize(ctx context.Context, creds Credentials) error {
	if !creds.complete() {
		return ErrAuthMissing
	}

	if err := s.verifier.VerifyHex(creds.SignatureMessage, creds.Signature, creds.UserAddress); err != nil {
		switch {
		case errors.Is(err, auth.ErrMalformedSignature):
			return ErrBadSignatureFormat
		case errors.Is(err, auth.ErrSignatureMismatch):
			return ErrAuthMismatch
		default:
			return fmt.Errorf("%w: %w", ErrInternal, err)
		}
	}

	it, err := s.items.FindByID(ctx, creds.ItemID)
	if err != nil {
		if errors.Is(err, item.ErrNotFound) {
			return ErrNotFound
		}
		s.log.Error().Err(err).Str("item_id", creds.ItemID).Msg("lookup item")
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	if !item.IsParticipant(it, creds.UserAddress) {
		return ErrForbidden
	}
	return nil
}

// List returns the conversation ascending by creation time once the caller
// is authorized.
func (s *Service) List(ctx context.Context, creds Credentials) ([]store.Message, error) {
	if err := s.Authorize(ctx, creds); err != nil {
		return nil, err
	}

	msgs, err := s.messages.ListByConversation(ctx, creds.ItemID)
	if err != nil {
		s.log.Error().Err(err).Str("item_id", creds.ItemID).Msg("list messages")
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	return msgs, nil
}
