package chat

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pelusa-v/finder-chat/internal/store"
)

// Inbound and outbound event names carried in Envelope.Event.
const (
	EventJoinRoom     = "joinRoom"
	EventSendMessage  = "sendMessage"
	EventNewMessage   = "newMessage"
	EventMessageError = "messageError"
)

// Envelope is the websocket frame: {"event": "...", "data": ...}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRoomPayload accepts either a bare conversation id string or an object
// that may carry signed credentials.
type JoinRoomPayload struct {
	ConversationID   string `json:"conversationId" validate:"required,max=128"`
	UserAddress      string `json:"userAddress,omitempty" validate:"omitempty,max=64"`
	Signature        string `json:"signature,omitempty" validate:"omitempty,max=200"`
	SignatureMessage string `json:"signatureMessage,omitempty" validate:"omitempty,max=1024"`
}

func (p *JoinRoomPayload) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var id string
		if err := json.Unmarshal(trimmed, &id); err != nil {
			return err
		}
		*p = JoinRoomPayload{ConversationID: id}
		return nil
	}
	type plain JoinRoomPayload
	var out plain
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return err
	}
	*p = JoinRoomPayload(out)
	return nil
}

// HasCredentials reports whether any signed credential field was supplied.
func (p JoinRoomPayload) HasCredentials() bool {
	return p.UserAddress != "" || p.Signature != "" || p.SignatureMessage != ""
}

type SendMessagePayload struct {
	ConversationID  string `json:"conversationId" validate:"required,max=128"`
	SenderAddress   string `json:"senderAddress" validate:"required,max=64"`
	ReceiverAddress string `json:"receiverAddress" validate:"required,max=64"`
	Content         string `json:"content" validate:"required"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func encodeEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

func newMessageFrame(msg *store.Message) ([]byte, error) {
	return encodeEvent(EventNewMessage, msg)
}

func messageErrorFrame(reason string) []byte {
	frame, err := encodeEvent(EventMessageError, ErrorPayload{Message: reason})
	if err != nil {
		// a struct with one string field always marshals
		panic(err)
	}
	return frame
}
