package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/locshare/server/internal/config"
	"github.com/locshare/server/internal/database"
	"github.com/locshare/server/internal/rtserver"
	"github.com/teris-io/shortid"
)

type App struct {
	log             *log.Logger
	db              database.Repository
	mux             *http.Server
	rt              *rtserver.LocationServer
	signingKey      []byte
	allowedOrigins  []string
	generateShortId func() (string, error)
}

func NewApp(mux *http.ServeMux, logger *log.Logger, rt *rtserver.LocationServer, db database.Repository, cfg *config.Config) *App {
	s := &App{
		log:             logger,
		db:              db,
		rt:              rt,
		signingKey:      cfg.SigningKey,
		allowedOrigins:  cfg.AllowedOrigins,
		generateShortId: shortid.Generate,
	}

	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("POST /api/rooms", s.authMiddleware(s.createRoom))
	mux.Handle("GET /api/rooms", s.authMiddleware(s.listRooms))
	mux.Handle("GET /api/rooms/details", s.authMiddleware(s.getRoom))
	mux.Handle("PUT /api/rooms", s.authMiddleware(s.updateRoom))
	mux.Handle("DELETE /api/rooms", s.authMiddleware(s.deleteRoom))
	mux.Handle("POST /api/invites", s.authMiddleware(s.sendInvitation))
	mux.Handle("GET /api/invites", s.authMiddleware(s.listInvitations))
	mux.Handle("GET /api/invites/sent", s.authMiddleware(s.listSentInvitations))
	mux.Handle("POST /api/invites/accept", s.authMiddleware(s.acceptInvitation))
	mux.Handle("POST /api/invites/reject", s.authMiddleware(s.rejectInvitation))
	mux.Handle("POST /api/location", s.authMiddleware(s.updateLocation))
	mux.Handle("GET /api/location", s.authMiddleware(s.getMyLocation))
	mux.Handle("GET /api/location/room", s.authMiddleware(s.getRoomLocations))
	mux.Handle("POST /api/messages", s.authMiddleware(s.sendMessage))
	mux.Handle("GET /api/messages", s.authMiddleware(s.getMessages))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *App) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *App) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
