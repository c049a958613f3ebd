package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/pelusa-v/finder-chat/internal/history"
	"github.com/pelusa-v/finder-chat/internal/metrics"
	"github.com/pelusa-v/finder-chat/internal/store"
)

// HistoryService lists a conversation for an authorized caller.
type HistoryService interface {
	List(ctx context.Context, creds history.Credentials) ([]store.Message, error)
}

type HistoryHandler struct {
	service HistoryService
	log     zerolog.Logger
}

func NewHistoryHandler(service HistoryService, log zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{service: service, log: log.With().Str("component", "history-handler").Logger()}
}

// MessagesHandler GET /api/items/:id/messages?userAddress=&signature=&signatureMessage=
func (h *HistoryHandler) MessagesHandler(c *fiber.Ctx) error {
	creds := history.Credentials{
		ItemID:           c.Params("id"),
		UserAddress:      c.Query("userAddress"),
		Signature:        c.Query("signature"),
		SignatureMessage: c.Query("signatureMessage"),
	}

	msgs, err := h.service.List(c.UserContext(), creds)
	if err != nil {
		code, message := historyStatus(err)
		if code == fiber.StatusInternalServerError {
			h.log.Error().Err(err).Str("item_id", creds.ItemID).Msg("history request failed")
		}
		metrics.HistoryRequests.WithLabelValues(strconv.Itoa(code)).Inc()
		return c.Status(code).JSON(fiber.Map{"message": message})
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	metrics.HistoryRequests.WithLabelValues(strconv.Itoa(fiber.StatusOK)).Inc()
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "history retrieved",
		"data":    msgs,
	})
}

func historyStatus(err error) (int, string) {
	switch {
	case errors.Is(err, history.ErrAuthMissing):
		return fiber.StatusForbidden, history.ErrAuthMissing.Error()
	case errors.Is(err, history.ErrBadSignatureFormat):
		return fiber.StatusBadRequest, history.ErrBadSignatureFormat.Error()
	case errors.Is(err, history.ErrAuthMismatch):
		return fiber.StatusForbidden, history.ErrAuthMismatch.Error()
	case errors.Is(err, history.ErrForbidden):
		return fiber.StatusForbidden, history.ErrForbidden.Error()
	case errors.Is(err, history.ErrNotFound):
		return fiber.StatusNotFound, history.ErrNotFound.Error()
	default:
		return fiber.StatusInternalServerError, history.ErrInternal.Error()
	}
}
