package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"couple-games-backend/internal/config"
	"couple-games-backend/internal/handlers"
	"couple-games-backend/internal/middleware"
	"couple-games-backend/internal/repository"
	"couple-games-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Pick the store: Postgres when configured, in-memory otherwise
	storage, cleanup := newStorage(cfg)
	defer cleanup()

	// Real-time plumbing
	registry := services.NewRegistry()
	notifier := services.NewNotifier(registry)
	locks := services.NewRoomLocker()
	deadlines := services.NewDeadlineScheduler()
	defer deadlines.Stop()

	// Game engines
	truthOrDare := services.NewTruthOrDareEngine(storage, registry, locks, deadlines, cfg.Game.TurnDeadline)
	syncEngine := services.NewSyncEngine(storage, registry, locks, deadlines, cfg.Game.RoundDeadline)
	synthetic := services.NewSyntheticOpponent(storage, truthOrDare, syncEngine, cfg.Game.SyntheticDelay)

	// Services
	userService := services.NewUserService(storage, cfg.JWT.Secret)
	invitationService := services.NewInvitationService(storage, notifier, registry, synthetic, services.NewPairLocker())

	// Handlers
	userHandler := handlers.NewUserHandler(userService, invitationService)
	invitationHandler := handlers.NewInvitationHandler(invitationService)
	gameHandler := handlers.NewGameHandler(storage, invitationService)
	wsHandler := handlers.NewWebSocketHandler(registry, userService, storage, truthOrDare, syncEngine, synthetic)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/demo", userHandler.DemoAuth)
		r.Post("/auth/telegram", userHandler.TelegramAuth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))

			r.Route("/users", func(r chi.Router) {
				r.Get("/search", userHandler.SearchUsers)
				r.Get("/{id}", userHandler.GetUser)
				r.Post("/{id}/partner", userHandler.SetPartner)
			})

			r.Route("/partner-invitations", func(r chi.Router) {
				r.Post("/", invitationHandler.CreatePartnerInvitation)
				r.Get("/{userId}", invitationHandler.ListPartnerInvitations)
				r.Get("/sent/{userId}", invitationHandler.ListSentPartnerInvitations)
				r.Post("/{id}/respond", invitationHandler.RespondToPartnerInvitation)
			})

			r.Route("/game-invitations", func(r chi.Router) {
				r.Post("/", invitationHandler.CreateGameInvitation)
				r.Get("/{userId}", invitationHandler.ListGameInvitations)
				r.Post("/{id}/respond", invitationHandler.RespondToGameInvitation)
			})

			r.Route("/games", func(r chi.Router) {
				r.Post("/create", gameHandler.CreateRoom)
				r.Get("/user/{userId}/active", gameHandler.GetActiveRoom)
				r.Get("/history/{userId}", gameHandler.GetHistory)
				r.Get("/{id}", gameHandler.GetRoom)
			})

			r.Post("/game-answers", gameHandler.CreateAnswer)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// newStorage connects to Postgres when the config names a host, otherwise
// serves everything from the in-memory store.
func newStorage(cfg *config.Config) (repository.Storage, func()) {
	if cfg.Database.Host == "" {
		log.Info().Msg("No database configured, using in-memory store")
		return repository.NewMemory(), func() {}
	}

	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")
	return repository.NewPostgres(db), db.Close
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
