package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/worachat-d/go-sos-center/internal/config"
	"github.com/worachat-d/go-sos-center/internal/server"
	"github.com/worachat-d/go-sos-center/internal/session"
	"github.com/worachat-d/go-sos-center/internal/sos"
)

type SosCenterApp struct {
	log            *log.Logger
	coordinator    *sos.Coordinator
	broker         *session.Broker
	ns             *server.NotificationServer
	mux            *http.Server
	allowedOrigins []string
}

func NewSosCenterApp(mux *http.ServeMux, logger *log.Logger, coordinator *sos.Coordinator, broker *session.Broker, ns *server.NotificationServer, cfg *config.Config) *SosCenterApp {
	s := &SosCenterApp{
		log:            logger,
		coordinator:    coordinator,
		broker:         broker,
		ns:             ns,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("POST /api/sos", s.createSos)
	mux.HandleFunc("POST /api/sos/accept", s.acceptSos)
	mux.HandleFunc("POST /api/sos/end", s.endSos)
	mux.HandleFunc("GET /api/sos/list", s.listSos)
	mux.HandleFunc("GET /api/session/token", s.sessionToken)
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
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

func (s *SosCenterApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *SosCenterApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
