package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/veerababu08/sahtalk-backend/internal/app/server/handlers"
	"github.com/veerababu08/sahtalk-backend/internal/core/services"
	"github.com/veerababu08/sahtalk-backend/pkg/middleware"
)

type Server struct {
	log         *slog.Logger
	mux         *http.ServeMux
	name        string
	addr        string
	authHandler *handlers.AuthHandler
	apiHandler  *handlers.APIHandler
	wsHandler   *handlers.WSHandler
	tokenSvc    *services.TokenService
}

func NewServer(
	log *slog.Logger,
	name string,
	addr string,
	userSvc *services.UserService,
	tokenSvc *services.TokenService,
	connSvc *services.ConnectionService,
	relay *services.MessageRelay,
	manager *services.SessionManager,
) *Server {
	s := &Server{
		log:         log,
		mux:         http.NewServeMux(),
		name:        name,
		addr:        addr,
		authHandler: handlers.NewAuthHandler(userSvc, tokenSvc),
		apiHandler:  handlers.NewAPIHandler(connSvc, userSvc, relay),
		wsHandler:   handlers.NewWSHandler(manager),
		tokenSvc:    tokenSvc,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	auth := middleware.AuthMiddleware(s.tokenSvc)

	// Public
	s.mux.HandleFunc("POST /api/auth/register", s.authHandler.Register)
	s.mux.HandleFunc("POST /api/auth/login", s.authHandler.Login)

	// Protected
	s.mux.Handle("POST /api/connections/send", auth(http.HandlerFunc(s.apiHandler.SendConnectionRequest)))
	s.mux.Handle("GET /api/connections/pending", auth(http.HandlerFunc(s.apiHandler.PendingRequests)))
	s.mux.Handle("PUT /api/connections/{id}", auth(http.HandlerFunc(s.apiHandler.RespondToRequest)))
	s.mux.Handle("GET /api/connections/chatlist", auth(http.HandlerFunc(s.apiHandler.ChatList)))
	s.mux.Handle("GET /api/messages/{roomId}", auth(http.HandlerFunc(s.apiHandler.RoomHistory)))
	s.mux.Handle("GET /api/search-users", auth(http.HandlerFunc(s.apiHandler.SearchUsers)))
	s.mux.Handle("PUT /api/users/push-token", auth(http.HandlerFunc(s.apiHandler.SavePushToken)))
	s.mux.Handle("/ws", auth(http.HandlerFunc(s.wsHandler.Handler)))
}

func (s *Server) Start() error {
	handler := middleware.TracerMiddleware(s.name)(middleware.RequestLogger(s.log)(s.mux))
	server := &http.Server{
		Addr:        s.addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: it would kill long-lived WebSocket sessions.
	}
	s.log.Info("server - starting", "addr", s.addr)
	return server.ListenAndServe()
}
