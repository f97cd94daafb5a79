package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"liveroom/internal/auth"
	"liveroom/internal/config"
	"liveroom/internal/hub"
	"liveroom/internal/room"
	"liveroom/internal/sessionlog"
	"liveroom/internal/websocket"
)

// Application wires the server components in dependency order:
// session log → room manager → registry → hub → handler → HTTP.
type Application struct {
	config     *config.Config
	sessionLog *sessionlog.Store
	rooms      *room.Manager
	registry   *websocket.Registry
	roomHub    *hub.Hub
	httpServer *http.Server
}

func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := sessionlog.Open(cfg.Log.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open session log: %w", err)
	}

	rooms := room.NewManager(store)
	registry := websocket.NewRegistry()
	roomHub := hub.NewHub(registry, rooms)

	verifier := auth.NewVerifier(cfg.Auth.Secret)
	wsHandler := websocket.NewHandler(verifier, roomHub)

	app := &Application{
		config:     cfg,
		sessionLog: store,
		rooms:      rooms,
		registry:   registry,
		roomHub:    roomHub,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)
	mux.HandleFunc("/health", app.handleHealth)

	app.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	return app, nil
}

// Start brings the hub up before the HTTP server accepts connections.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting liveroom server on %s", app.httpServer.Addr)

	if err := app.roomHub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hub: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		_ = app.roomHub.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("Liveroom server started")
		return nil
	case <-ctx.Done():
		_ = app.roomHub.Stop()
		return ctx.Err()
	}
}

// Stop shuts down in reverse dependency order: HTTP → hub → log store.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down liveroom server")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := app.roomHub.Stop(); err != nil {
		log.Printf("Hub shutdown error: %v", err)
	}
	if err := app.sessionLog.Close(); err != nil {
		log.Printf("Session log shutdown error: %v", err)
	}

	log.Printf("Liveroom server shutdown complete")
	return nil
}

// Addr returns the server address for external connections.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}

func (app *Application) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":      "ok",
		"rooms":       app.rooms.Stats(),
		"connections": app.registry.Stats(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Printf("Failed to write health response: %v", err)
	}
}
