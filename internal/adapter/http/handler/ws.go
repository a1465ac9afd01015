package handler

import (
	"context"
	"net/http"

	"github.com/gridcab/dispatch/internal/domain/models"
	"github.com/gridcab/dispatch/pkg/logger"
	wrap "github.com/gridcab/dispatch/pkg/logger/wrapper"
	"github.com/gridcab/dispatch/pkg/metrics"
	ws "github.com/gridcab/dispatch/pkg/wsHub"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Гейтвей живёт за своим фронтом, Origin не проверяем.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WS struct {
	hub     *ws.ConnectionHub
	tokens  TokenValidator
	l       logger.Logger
	service string
}

type TokenValidator interface {
	Validate(ctx context.Context, token string) (models.Identity, error)
}

func NewWS(hub *ws.ConnectionHub, tokens TokenValidator, service string, l logger.Logger) *WS {
	return &WS{
		hub:     hub,
		tokens:  tokens,
		l:       l,
		service: service,
	}
}

// Notifications upgrades the connection and streams envelopes to the caller.
// Identity comes from the token query parameter: browsers cannot set an
// Authorization header on a WebSocket handshake.
func (h *WS) Notifications(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "ws_connect")

	token := r.URL.Query().Get("token")
	if token == "" {
		errorResponse(w, http.StatusUnauthorized, "token query parameter is required")
		return
	}

	identity, err := h.tokens.Validate(ctx, token)
	if err != nil {
		h.l.Warn(ctx, "websocket auth failed")
		errorResponse(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту при ошибке рукопожатия.
		h.l.Error(wrap.ErrorCtx(ctx, err), "websocket upgrade failed", err)
		return
	}

	conn := h.hub.Add(identity.UserID, sock)
	metrics.WebSocketConnectionsGauge.WithLabelValues(h.service).Inc()
	h.l.Info(ctx, "websocket connected", "user_id", identity.UserID, "role", identity.Role)

	defer func() {
		h.hub.Delete(identity.UserID, conn)
		metrics.WebSocketConnectionsGauge.WithLabelValues(h.service).Dec()
		h.l.Info(ctx, "websocket disconnected", "user_id", identity.UserID)
	}()

	_ = conn.Listen()
}
