package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/veerababu08/sahtalk-backend/internal/app/server/ws"
	"github.com/veerababu08/sahtalk-backend/internal/core/services"
	"github.com/veerababu08/sahtalk-backend/pkg/logging"
	"github.com/veerababu08/sahtalk-backend/pkg/middleware"
)

type WSHandler struct {
	manager *services.SessionManager
}

func NewWSHandler(manager *services.SessionManager) *WSHandler {
	return &WSHandler{manager: manager}
}

func (h *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	span := trace.SpanFromContext(r.Context())
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		log.ErrorContext(r.Context(), "ws handler - unauthorised, missing user id")
		http.Error(w, "Unauthorized: User ID missing", http.StatusUnauthorized)
		return
	}
	span.SetAttributes(attribute.String("user.id", userID))

	// The session outlives the HTTP request; detach from its cancellation.
	sessionCtx := context.WithoutCancel(r.Context())
	ctx, cancel := context.WithCancel(sessionCtx)
	defer cancel()

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // tighten later
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade failed", logging.Err(err))
		return
	}
	conn.SetCloseHandler(func(code int, text string) error {
		cancel()
		return nil
	})

	sessionID := uuid.NewString()
	socket := ws.NewWebSocket(ctx, log, conn)
	client := ws.NewClient(ctx, socket, sessionID)
	defer client.Close()

	session := h.manager.StartSession(client, userID)
	defer h.manager.CloseSession(sessionCtx, session)

	span.SetAttributes(attribute.String("chat.session_id", sessionID))
	log.InfoContext(ctx, "ws handler - connection established", logging.Session(sessionID), logging.User(userID))

	// Frames for one session are handled in arrival order; per-room ordering
	// across sessions is the room worker's job.
	socket.ReadLoop(func(data []byte) {
		h.manager.Dispatch(ctx, session, data)
	})
}
