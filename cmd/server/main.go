package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edulive/collab/internal/archive"
	"github.com/edulive/collab/internal/auth"
	"github.com/edulive/collab/internal/collab"
	"github.com/edulive/collab/internal/config"
	"github.com/edulive/collab/internal/handlers"
	"github.com/edulive/collab/internal/middleware"
	"github.com/edulive/collab/internal/presence"
	"github.com/edulive/collab/internal/redisc"
	"github.com/edulive/collab/internal/room"
	"github.com/edulive/collab/internal/sweeper"
	"github.com/edulive/collab/internal/ws"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("starting collaboration engine")

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Shared store: mirror + cross-process bus. Optional for a single
	// local instance.
	var shared collab.SharedStore
	var mirror *redisc.Mirror
	if cfg.RedisURL != "" {
		redisClient, err := redisc.InitRedis(cfg.RedisURL)
		if err != nil {
			slog.Error("failed to init Redis", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		mirror = redisc.NewMirror(redisClient)
		shared = mirror
		slog.Info("connected to Redis")
	}

	// Relational archive for closed sessions. Optional.
	var archiver collab.Archiver
	if cfg.DatabaseURL != "" {
		db, err := archive.InitDB(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to init database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := archive.RunMigrations(db); err != nil {
			slog.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		archiver = archive.NewStore(db)
		slog.Info("connected to PostgreSQL")
	}

	engine := collab.NewEngine(
		room.NewStore(cfg.HistoryCapacity),
		ws.NewRegistry(),
		presence.NewTracker(),
		shared,
		archiver,
	)

	// Cross-process fan-out, only meaningful with a shared store.
	if mirror != nil {
		go mirror.SubscribeRooms(ctx, func(ev redisc.BusEvent) {
			engine.DeliverRemote(ev.Origin, ev.RoomID, ev.Payload)
		})
	}

	sw := sweeper.New(sweeper.Config{
		RoomInterval:     cfg.RoomSweepInterval,
		PresenceInterval: cfg.PresenceSweepInterval,
		StatsInterval:    cfg.StatsInterval,
		MaxRoomAge:       cfg.MaxRoomAge,
		AwayAfter:        cfg.PresenceAwayAfter,
		OfflineAfter:     cfg.PresenceOfflineAfter,
	}, engine)
	go sw.Run(ctx)

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.CORS(cfg.CORSOrigin))

	router.HandleFunc("/health", handlers.Health).Methods("GET", "OPTIONS")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/ws", collab.ServeWS(engine, cfg.JWTSecret)).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.Middleware(cfg.JWTSecret))
	api.HandleFunc("/rooms", handlers.CreateRoom(engine)).Methods("POST", "OPTIONS")
	api.HandleFunc("/rooms/{id}/join", handlers.JoinRoom(engine)).Methods("POST", "OPTIONS")
	api.HandleFunc("/rooms/{id}/leave", handlers.LeaveRoom(engine)).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/rooms/{id}/stats", handlers.RoomStats(engine)).Methods("GET", "OPTIONS")
	api.HandleFunc("/rooms/{id}/breakout", handlers.CreateBreakout(engine)).Methods("POST", "OPTIONS")
	api.HandleFunc("/rooms/{id}/participants/{uid}", handlers.RemoveParticipant(engine)).Methods("DELETE", "OPTIONS")
	api.HandleFunc("/rooms/{id}/messages/{mid}", handlers.EditMessage(engine)).Methods("PATCH", "OPTIONS")
	api.HandleFunc("/users/{id}/rooms", handlers.UserRooms(engine)).Methods("GET", "OPTIONS")

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutting down", "signal", sig.String())

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
