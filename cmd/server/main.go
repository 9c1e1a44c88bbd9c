package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"chat-server/internal/auth"
	"chat-server/internal/config"
	"chat-server/internal/database"
	"chat-server/internal/handlers"
	"chat-server/internal/models"
	"chat-server/internal/registry"
	"chat-server/internal/ws"
	"chat-server/pkg/ident"
	"chat-server/pkg/logger"

	"github.com/gorilla/sessions"
)

const mainRoomName = "main"

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresDB(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	mainRoom, err := bootstrap(db)
	if err != nil {
		logger.Fatal("Failed to bootstrap database: %v", err)
	}

	// Initialize the websocket fabric
	reg := registry.New()
	broadcaster := ws.NewBroadcaster(db, reg)
	presence := ws.NewPresenceWriter(db)

	// Initialize services
	authService := auth.NewService(db, cfg)
	sessionStore := sessions.NewCookieStore(cfg.Session.Secret)

	// Initialize handlers
	authHandlers := handlers.NewAuthHandlers(authService, db, broadcaster, sessionStore, mainRoom.RoomID, cfg.Server.StaticDir)
	wsHandlers := handlers.NewWebSocketHandlers(authService, db, reg, broadcaster, presence, sessionStore, mainRoom.RoomID)

	// Setup routes
	mux := http.NewServeMux()
	setupRoutes(mux, authHandlers, wsHandlers, cfg.Server.StaticDir)

	// Create server
	// Timeouts apply to the plain HTTP surface only; upgraded websocket
	// connections are hijacked out from under them.
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	logger.Info("🚀 Server started on http://localhost%s", cfg.Server.Port)
	logger.Info("📡 WebSocket endpoint: ws://localhost%s/ws/", cfg.Server.Port)
	logger.Info("🏠 Main room: %s", mainRoom.RoomID)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("Shutdown error: %v", err)
	}
}

// bootstrap makes sure the main room exists and seeds the well-known test
// account so a fresh database is immediately usable.
func bootstrap(db database.Store) (*models.Room, error) {
	ctx := context.Background()

	room, err := db.GetOrCreateRoomByName(ctx, mainRoomName)
	if err != nil {
		return nil, err
	}

	_, err = db.FindUserByLogin(ctx, "test@gmail.com")
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	hash, err := auth.HashPassword("password")
	if err != nil {
		return nil, err
	}
	user := &models.User{
		UserID:          ident.New(),
		LoginUsername:   "test@gmail.com",
		DisplayUsername: "test",
		PasswordHash:    hash,
		Status:          models.StatusOffline,
		Rooms:           []string{},
	}
	if err := db.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	if err := db.AddMember(ctx, room.RoomID, user.UserID); err != nil {
		return nil, err
	}
	logger.Info("Seeded test user %s", user.UserID)
	return room, nil
}

func setupRoutes(mux *http.ServeMux, authHandlers *handlers.AuthHandlers, wsHandlers *handlers.WebSocketHandlers, staticDir string) {
	// Pages
	mux.HandleFunc("/", authHandlers.HomePage)
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			authHandlers.LoginPage(w, r)
		case http.MethodPost:
			authHandlers.Login(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/signup", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			authHandlers.SignupPage(w, r)
		case http.MethodPost:
			authHandlers.Signup(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/logout", authHandlers.Logout)

	// WebSocket route
	mux.HandleFunc("/ws/", wsHandlers.HandleWebSocket)

	// Static assets
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
}
