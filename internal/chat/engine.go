package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/pelusa-v/finder-chat/internal/history"
	"github.com/pelusa-v/finder-chat/internal/metrics"
	"github.com/pelusa-v/finder-chat/internal/store"
)

// Broadcaster fans a frame out to the members of a conversation room.
type Broadcaster interface {
	Broadcast(ctx context.Context, conversationID string, frame []byte) error
}

// JoinAuthorizer checks signed credentials against a conversation.
type JoinAuthorizer interface {
	Authorize(ctx context.Context, creds history.Credentials) error
}

var (
	errInvalidPayload   = errors.New("invalid payload")
	errUnknownEvent     = errors.New("unknown event")
	errJoinAuthRequired = errors.New("joining this conversation requires a signature")
	errSenderMismatch   = errors.New("sender address does not match the authenticated address")
	errNotJoined        = errors.New("join the conversation before sending messages")
)

type Options struct {
	MaxContentLength int
	RequireJoinAuth  bool
}

// Engine turns inbound websocket events into room membership changes,
// persisted messages and outbound events.
type Engine struct {
	registry    *Registry
	broadcaster Broadcaster
	messages    store.Store
	authorizer  JoinAuthorizer
	validate    *validator.Validate
	opts        Options
	log         zerolog.Logger
}

func NewEngine(registry *Registry, broadcaster Broadcaster, messages store.Store, authorizer JoinAuthorizer, opts Options, log zerolog.Logger) *Engine {
	if broadcaster == nil {
		broadcaster = registry
	}
	return &Engine{
		registry:    registry,
		broadcaster: broadcaster,
		messages:    messages,
		authorizer:  authorizer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		opts:        opts,
		log:         log.With().Str("component", "chat-engine").Logger(),
	}
}

// Serve runs a client's session until its connection fails: one goroutine
// writes, the caller's goroutine reads and dispatches in order.
func (e *Engine) Serve(ctx context.Context, c *Client) {
	e.Connect(c)
	defer e.Disconnect(c)

	go c.WritePump()
	c.ReadPump(func(frame []byte) {
		e.Dispatch(ctx, c, frame)
	})
}

func (e *Engine) Connect(c *Client) {
	e.registry.Register(c)
	metrics.RecordConnectionOpened()
	e.log.Debug().Str("client_id", c.ID).Msg("client connected")
}

// Disconnect removes c from all rooms and stops its writer.
func (e *Engine) Disconnect(c *Client) {
	rooms := e.registry.Leave(c)
	c.close()
	metrics.RecordConnectionClosed()
	e.log.Debug().Str("client_id", c.ID).Strs("rooms", rooms).Msg("client disconnected")
}

// Dispatch decodes one inbound frame and runs the matching handler. Failures
// are reported to c only.
func (e *Engine) Dispatch(ctx context.Context, c *Client, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		e.reject(c, "decode", fmt.Errorf("%w: %v", errInvalidPayload, err))
		return
	}

	switch env.Event {
	case EventJoinRoom:
		var p JoinRoomPayload
		if err := e.decode(env.Data, &p); err != nil {
			e.reject(c, "invalid_join", err)
			return
		}
		if err := e.Join(ctx, c, p); err != nil {
			e.reject(c, "join_denied", err)
		}
	case EventSendMessage:
		var p SendMessagePayload
		if err := e.decode(env.Data, &p); err != nil {
			e.reject(c, "invalid_message", err)
			return
		}
		if _, err := e.Send(ctx, c, p); err != nil {
			reason := "send_rejected"
			if errors.Is(err, store.ErrPersistence) {
				reason = "persistence"
			}
			e.reject(c, reason, err)
		}
	default:
		e.reject(c, "unknown_event", fmt.Errorf("%w %q", errUnknownEvent, env.Event))
	}
}

// Join adds c to the conversation room. With RequireJoinAuth, or whenever
// credentials are supplied, the caller must be a verified participant and
// the connection is bound to that address.
func (e *Engine) Join(ctx context.Context, c *Client, p JoinRoomPayload) error {
	if e.opts.RequireJoinAuth || p.HasCredentials() {
		if e.authorizer == nil {
			return errJoinAuthRequired
		}
		err := e.authorizer.Authorize(ctx, history.Credentials{
			ItemID:           p.ConversationID,
			UserAddress:      p.UserAddress,
			Signature:        p.Signature,
			SignatureMessage: p.SignatureMessage,
		})
		if err != nil {
			metrics.RecordJoin("denied")
			if errors.Is(err, history.ErrAuthMissing) {
				return errJoinAuthRequired
			}
			return err
		}
		c.bindAddress(strings.TrimSpace(p.UserAddress))
	}

	if e.registry.Join(p.ConversationID, c) {
		e.log.Debug().Str("client_id", c.ID).Str("conversation_id", p.ConversationID).Msg("joined room")
	}
	metrics.RecordJoin("ok")
	return nil
}

// Send persists the message and then broadcasts the stored record to the
// room. Persistence is not cancelled when ctx is, so a sender hanging up
// mid-send still reaches the remaining members.
func (e *Engine) Send(ctx context.Context, c *Client, p SendMessagePayload) (*store.Message, error) {
	if bound := c.Address(); bound != "" && !strings.EqualFold(bound, strings.TrimSpace(p.SenderAddress)) {
		return nil, errSenderMismatch
	}
	if e.opts.RequireJoinAuth && !e.registry.IsMember(p.ConversationID, c) {
		return nil, errNotJoined
	}

	persistCtx := context.WithoutCancel(ctx)
	msg, err := e.messages.Append(persistCtx, p.ConversationID, p.SenderAddress, p.ReceiverAddress, p.Content)
	if err != nil {
		e.log.Error().Err(err).Str("client_id", c.ID).Str("conversation_id", p.ConversationID).Msg("persist message")
		if !errors.Is(err, store.ErrPersistence) {
			err = fmt.Errorf("%w: %v", store.ErrPersistence, err)
		}
		return nil, err
	}

	frame, err := newMessageFrame(msg)
	if err != nil {
		return nil, err
	}
	if err := e.broadcaster.Broadcast(persistCtx, p.ConversationID, frame); err != nil {
		e.log.Error().Err(err).Str("conversation_id", p.ConversationID).Str("message_id", msg.ID).Msg("broadcast message")
	}
	return msg, nil
}

func (e *Engine) decode(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", errInvalidPayload)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	if err := e.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidPayload, err)
	}
	if p, ok := dst.(*SendMessagePayload); ok && e.opts.MaxContentLength > 0 {
		if err := e.validate.Var(p.Content, fmt.Sprintf("max=%d", e.opts.MaxContentLength)); err != nil {
			return fmt.Errorf("%w: content exceeds %d characters", errInvalidPayload, e.opts.MaxContentLength)
		}
	}
	return nil
}

func (e *Engine) reject(c *Client, reason string, err error) {
	metrics.RecordMessageError(reason)
	e.log.Debug().Str("client_id", c.ID).Str("reason", reason).Err(err).Msg("event rejected")
	c.Enqueue(messageErrorFrame(describe(err)))
}

// describe turns err into the text shown to the client without leaking
// storage details.
func describe(err error) string {
	switch {
	case errors.Is(err, store.ErrPersistence):
		return "failed to save message"
	case errors.Is(err, history.ErrInternal):
		return history.ErrInternal.Error()
	default:
		return err.Error()
	}
}
