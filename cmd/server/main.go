// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/chronochess/progress/config"
	"github.com/chronochess/progress/internal/api"
	"github.com/chronochess/progress/internal/auth"
	"github.com/chronochess/progress/internal/combinations"
	"github.com/chronochess/progress/internal/database"
	"github.com/chronochess/progress/internal/logger"
	"github.com/chronochess/progress/internal/progress"
	"github.com/chronochess/progress/internal/services"
	"github.com/chronochess/progress/internal/storage/durable"
	"github.com/chronochess/progress/internal/storage/fallback"
	"github.com/chronochess/progress/internal/storage/remote"
	"github.com/chronochess/progress/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.GlobalLogLevel = logger.LogLevel(cfg.Log.Level)
	appLog := logger.New()

	// Durable tier (sqlite).
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	store := durable.NewStore(db)
	if err := store.Initialize(); err != nil {
		log.Fatalf("Failed to initialize durable store: %v", err)
	}

	// Fallback tier. A file path keeps tentative records across restarts;
	// without one the ledger still covers in-process durable outages.
	var kv fallback.KV
	if cfg.Fallback.Path != "" {
		fileKV, err := fallback.NewFileKV(cfg.Fallback.Path)
		if err != nil {
			log.Fatalf("Failed to open fallback store: %v", err)
		}
		kv = fileKV
	} else {
		kv = fallback.NewMemoryKV()
	}
	ledger := fallback.NewLedger(kv)

	// Optional cloud mirror.
	mirror := remote.NewClient(cfg.Remote)

	combos := combinations.NewTracker(store, appLog)
	if err := combos.LoadAll(); err != nil {
		appLog.WithError(err).Warn("failed to load stored combinations")
	}

	tracker := progress.NewTracker(store, ledger, mirror, combos, appLog)
	tracker.SetRetry(cfg.Retry.Attempts, progress.BackoffDelay(cfg.Retry.BackoffMs))
	tracker.EnsureInitialized(context.Background())

	userService := services.NewUserService(db)
	auth.Init(cfg.Auth.SessionSecret, userService)

	r := mux.NewRouter()

	// Public routes (no authentication required)
	publicRouter := r.PathPrefix("/").Subrouter()
	publicRouter.HandleFunc("/register", auth.RegisterHandler).Methods("POST")
	publicRouter.HandleFunc("/login", auth.LoginHandler).Methods("POST")
	publicRouter.HandleFunc("/logout", auth.LogoutHandler).Methods("POST")
	publicRouter.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	// Authenticated routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(auth.AuthMiddleware)

	apiRouter := authRouter.PathPrefix("/api/v1").Subrouter()
	api.RegisterRoutes(apiRouter, tracker, combos, userService, appLog)

	// WebSocket push for unlock/claim toasts
	websocket.RegisterRoutes(authRouter, tracker)

	// CORS setup for development
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := c.Handler(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	appLog.Info("ChronoChess progress server starting on port " + port)
	appLog.Info("Database: " + cfg.Database.Path)

	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
