package handlers

import (
	"context"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/pelusa-v/finder-chat/internal/chat"
)

type ChatHandler struct {
	engine     *chat.Engine
	registry   *chat.Registry
	sendBuffer int
}

func NewChatHandler(engine *chat.Engine, registry *chat.Registry, sendBuffer int) *ChatHandler {
	return &ChatHandler{engine: engine, registry: registry, sendBuffer: sendBuffer}
}

// UpgradeRequired rejects plain HTTP requests on the websocket route.
func (h *ChatHandler) UpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// ConnectHandler GET /api/ws
func (h *ChatHandler) ConnectHandler(c *websocket.Conn) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client := chat.NewClient(uuid.NewString(), c, h.sendBuffer)
	h.engine.Serve(ctx, client)
}

// RoomsHandler GET /api/rooms
func (h *ChatHandler) RoomsHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "active rooms",
		"data":    h.registry.Rooms(),
	})
}
