package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/veerababu08/sahtalk-backend/internal/core/domain"
	"github.com/veerababu08/sahtalk-backend/internal/core/services"
	"github.com/veerababu08/sahtalk-backend/pkg/logging"
	"github.com/veerababu08/sahtalk-backend/pkg/middleware"
)

// APIHandler serves the REST side: connection requests, chat list, room
// history and push-token registration.
type APIHandler struct {
	connSvc *services.ConnectionService
	userSvc *services.UserService
	relay   *services.MessageRelay
}

func NewAPIHandler(connSvc *services.ConnectionService, userSvc *services.UserService, relay *services.MessageRelay) *APIHandler {
	return &APIHandler{
		connSvc: connSvc,
		userSvc: userSvc,
		relay:   relay,
	}
}

func (h *APIHandler) SendConnectionRequest(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	userID, _ := middleware.UserID(r.Context())
	var req struct {
		ToUserID string `json:"toUserId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	conn, err := h.connSvc.SendRequest(r.Context(), userID, req.ToUserID)
	if err != nil {
		log.ErrorContext(r.Context(), "api handler - send request failed", logging.User(userID), logging.Err(err))
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrConnectionExists):
			status = http.StatusBadRequest
		case errors.Is(err, domain.ErrInvalidPayload):
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, conn)
}

func (h *APIHandler) PendingRequests(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	conns, err := h.connSvc.Pending(r.Context(), userID)
	if err != nil {
		http.Error(w, "failed to fetch requests", http.StatusInternalServerError)
		return
	}
	writeJSON(w, conns)
}

func (h *APIHandler) RespondToRequest(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	connectionID := r.PathValue("id")
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	conn, err := h.connSvc.Respond(r.Context(), connectionID, req.Status)
	if err != nil {
		log.ErrorContext(r.Context(), "api handler - respond failed", "connection_id", connectionID, logging.Err(err))
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrInvalidPayload):
			status = http.StatusBadRequest
		case errors.Is(err, domain.ErrConnectionNotFound):
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, conn)
}

func (h *APIHandler) ChatList(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	peers, err := h.connSvc.ChatList(r.Context(), userID)
	if err != nil {
		http.Error(w, "failed to fetch chat list", http.StatusInternalServerError)
		return
	}
	writeJSON(w, peers)
}

func (h *APIHandler) RoomHistory(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")
	msgs, err := h.relay.History(r.Context(), roomID)
	if err != nil {
		http.Error(w, "failed to fetch messages", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	writeJSON(w, msgs)
}

func (h *APIHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	profiles, err := h.userSvc.Search(r.Context(), userID, r.URL.Query().Get("query"))
	if err != nil {
		http.Error(w, "failed to search users", http.StatusInternalServerError)
		return
	}
	writeJSON(w, profiles)
}

func (h *APIHandler) SavePushToken(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := h.userSvc.SavePushToken(r.Context(), userID, req.Token); err != nil {
		http.Error(w, "failed to save push token", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
