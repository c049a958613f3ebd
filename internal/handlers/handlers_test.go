package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/finder-chat/internal/auth"
	"github.com/pelusa-v/finder-chat/internal/auth/authtest"
	"github.com/pelusa-v/finder-chat/internal/chat"
	"github.com/pelusa-v/finder-chat/internal/config"
	"github.com/pelusa-v/finder-chat/internal/history"
	"github.com/pelusa-v/finder-chat/internal/item"
	"github.com/pelusa-v/finder-chat/internal/store"
)

type historyResponse struct {
	Message string          `json:"message"`
	Data    []store.Message `json:"data"`
}

type testServer struct {
	app      *fiber.App
	finder   authtest.Wallet
	applier  authtest.Wallet
	stranger authtest.Wallet
	messages *store.InMemoryStore
	registry *chat.Registry
}

func newTestServer(t *testing.T, ready func(context.Context) error) *testServer {
	s := &testServer{
		finder:   authtest.NewWallet(t),
		applier:  authtest.NewWallet(t),
		stranger: authtest.NewWallet(t),
		messages: store.NewInMemoryStore(),
	}
	items := item.NewInMemoryRepository(item.Item{
		ID:            "X",
		FinderAddress: s.finder.Address,
		Status:        item.StatusAvailable,
		Claims:        []item.Claim{{ApplierAddress: s.applier.Address, Status: item.ClaimPending}},
	})

	log := zerolog.Nop()
	cfg := &config.Config{ServiceName: "finder-chat", CORSAllowOrigins: "*", SendBufferSize: 8, MaxContentLength: 100}
	svc := history.NewService(auth.NewVerifier(), items, s.messages, log)
	s.registry = chat.NewRegistry(log)
	engine := chat.NewEngine(s.registry, s.registry, s.messages, svc, chat.Options{MaxContentLength: cfg.MaxContentLength}, log)

	s.app = NewApp(Deps{
		Config:  cfg,
		Log:     log,
		Chat:    NewChatHandler(engine, s.registry, cfg.SendBufferSize),
		History: NewHistoryHandler(svc, log),
		Ready:   ready,
	})
	return s
}

func historyURL(t *testing.T, itemID string, w authtest.Wallet, signer authtest.Wallet) string {
	q := url.Values{}
	q.Set("userAddress", w.Address)
	q.Set("signatureMessage", "show me the chat")
	q.Set("signature", signer.Sign(t, "show me the chat"))
	return "/api/items/" + itemID + "/messages?" + q.Encode()
}

func do(t *testing.T, app *fiber.App, target string) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestMessagesHandler_ParticipantScenario(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()
	for _, content := range []string{"I found it", "it's mine", "meet at noon"} {
		_, err := s.messages.Append(ctx, "X", s.finder.Address, s.applier.Address, content)
		require.NoError(t, err)
	}

	resp, _ := do(t, s.app, historyURL(t, "X", s.stranger, s.stranger))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := do(t, s.app, historyURL(t, "X", s.applier, s.applier))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out historyResponse
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Data, 3)
	assert.Equal(t, "I found it", out.Data[0].Content)
	assert.Equal(t, "meet at noon", out.Data[2].Content)
	for i := 1; i < len(out.Data); i++ {
		assert.True(t, out.Data[i].CreatedAt.After(out.Data[i-1].CreatedAt))
	}
}

func TestMessagesHandler_EmptyHistoryIsArray(t *testing.T) {
	s := newTestServer(t, nil)
	resp, body := do(t, s.app, historyURL(t, "X", s.finder, s.finder))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"history retrieved","data":[]}`, string(body))
}

func TestMessagesHandler_ErrorStatuses(t *testing.T) {
	s := newTestServer(t, nil)

	malformed := url.Values{}
	malformed.Set("userAddress", s.finder.Address)
	malformed.Set("signatureMessage", "m")
	malformed.Set("signature", "0x1234")

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"missing params", "/api/items/X/messages", http.StatusForbidden},
		{"malformed signature", "/api/items/X/messages?" + malformed.Encode(), http.StatusBadRequest},
		{"signature by other key", historyURL(t, "X", s.finder, s.stranger), http.StatusForbidden},
		{"unknown item", historyURL(t, "missing", s.finder, s.finder), http.StatusNotFound},
		{"not a participant", historyURL(t, "X", s.stranger, s.stranger), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, s.app, tt.target)
			assert.Equal(t, tt.want, resp.StatusCode)

			var out map[string]any
			require.NoError(t, json.Unmarshal(body, &out))
			assert.NotEmpty(t, out["message"])
			assert.NotContains(t, out, "data")
		})
	}
}

type stubHistory struct{ err error }

func (s stubHistory) List(context.Context, history.Credentials) ([]store.Message, error) {
	return nil, s.err
}

func TestMessagesHandler_InternalErrorHidesDetail(t *testing.T) {
	app := fiber.New()
	h := NewHistoryHandler(stubHistory{err: errors.Join(history.ErrInternal, errors.New("pq: password authentication failed"))}, zerolog.Nop())
	app.Get("/api/items/:id/messages", h.MessagesHandler)

	resp, body := do(t, app, "/api/items/X/messages")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"message":"internal server error"}`, string(body))
}

func TestHistoryStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{history.ErrAuthMissing, http.StatusForbidden},
		{history.ErrBadSignatureFormat, http.StatusBadRequest},
		{history.ErrAuthMismatch, http.StatusForbidden},
		{history.ErrForbidden, http.StatusForbidden},
		{history.ErrNotFound, http.StatusNotFound},
		{history.ErrInternal, http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		code, msg := historyStatus(tt.err)
		assert.Equal(t, tt.want, code, tt.err.Error())
		assert.NotEmpty(t, msg)
	}
}

func TestRoomsHandler(t *testing.T) {
	s := newTestServer(t, nil)
	s.registry.Join("X", chat.NewClient("c1", nil, 1))

	resp, body := do(t, s.app, "/api/rooms")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"message":"active rooms","data":[{"conversationId":"X","members":1}]}`, string(body))
}

func TestWebsocketRouteRequiresUpgrade(t *testing.T) {
	s := newTestServer(t, nil)
	resp, _ := do(t, s.app, "/api/ws")
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	resp, body := do(t, s.app, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "running")

	resp, _ = do(t, s.app, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, s.app, "/readyz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, s.app, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "chat_active_connections")
}

func TestReadyzReportsUnavailable(t *testing.T) {
	s := newTestServer(t, func(context.Context) error { return errors.New("db down") })
	resp, _ := do(t, s.app, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
