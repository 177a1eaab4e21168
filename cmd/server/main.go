package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/worachat-d/go-sos-center/internal/api"
	"github.com/worachat-d/go-sos-center/internal/config"
	"github.com/worachat-d/go-sos-center/internal/database"
	"github.com/worachat-d/go-sos-center/internal/server"
	"github.com/worachat-d/go-sos-center/internal/session"
	"github.com/worachat-d/go-sos-center/internal/sos"
	"github.com/worachat-d/go-sos-center/internal/stats"
)

const defaultSessionSecret = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

var (
	addr           string
	dsn            string
	sessionAPIKey  string
	sessionSecret  string
	allowedOrigins stringSliceFlag
)

func main() {
	// .env is optional; flags and real environment win.
	godotenv.Load()

	flag.StringVar(&addr, "addr", "localhost:8000", "server address")
	flag.StringVar(&dsn, "dsn", envOr("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.StringVar(&sessionAPIKey, "session-api-key", envOr("SESSION_API_KEY", "devkey"), "media session API key")
	flag.StringVar(&sessionSecret, "session-secret", envOr("SESSION_API_SECRET", defaultSessionSecret), "base64 encoded media session signing secret")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[sos-center] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, sessionAPIKey, sessionSecret, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgSosRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("db migrate:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	notificationServer, err := server.NewNotificationServer(logger, statsUpdater)
	if err != nil {
		logger.Fatal("new notification server:", err)
	}

	coordinator := sos.NewCoordinator(logger, dbConn, notificationServer, statsUpdater)
	broker := session.NewBroker(cfg.SessionAPIKey, cfg.SessionKey)

	srv := api.NewSosCenterApp(mux, logger, coordinator, broker, notificationServer, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go notificationServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down notification server...")
	if err := notificationServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("notification server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
