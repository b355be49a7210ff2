package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reverbfm/cache"
	"reverbfm/config"
	"reverbfm/core/ingest"
	"reverbfm/core/likes"
	"reverbfm/core/player"
	"reverbfm/db"
	"reverbfm/logger"
	"reverbfm/repository"
	"reverbfm/storage"

	"github.com/gorilla/mux"
)

// CoverResolver turns stored image keys into fetchable URLs for listings.
type CoverResolver interface {
	ImageURL(ctx context.Context, key string) (string, error)
}

// APIHandler serves the HTTP API.
type APIHandler struct {
	coordinator *ingest.Coordinator
	trackRepo   repository.TrackRepository
	player      *player.Manager
	tracker     *likes.Tracker
	blobs       CoverResolver
}

// NewAPIHandler wires the core subsystems behind the HTTP surface.
func NewAPIHandler(
	coordinator *ingest.Coordinator,
	trackRepo repository.TrackRepository,
	playerManager *player.Manager,
	tracker *likes.Tracker,
	blobs CoverResolver,
) *APIHandler {
	return &APIHandler{
		coordinator: coordinator,
		trackRepo:   trackRepo,
		player:      playerManager,
		tracker:     tracker,
		blobs:       blobs,
	}
}

// RegisterRoutes attaches the API endpoints to the router.
func (h *APIHandler) RegisterRoutes(router *mux.Router) {
	// Library
	router.HandleFunc("/api/songs", h.UploadTrackHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/songs", h.GetTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/songs/liked", h.GetLikedTracksHandler).Methods(http.MethodGet)

	// Likes
	router.HandleFunc("/api/songs/{id}/like", h.ToggleLikeHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/songs/{id}/like", h.IsLikedHandler).Methods(http.MethodGet)
	router.HandleFunc("/ws/likes", h.LikesFeedHandler)

	// Player
	router.HandleFunc("/api/player/queue", h.StartQueueHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/player/next", h.NextTrackHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/player/previous", h.PreviousTrackHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/player/stop", h.StopPlaybackHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/player/url", h.ResolveURLHandler).Methods(http.MethodGet)
}

// Start initializes the backing stores and runs the HTTP server until a
// termination signal arrives.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogOutput,
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	})

	blobs, err := storage.NewClient(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize MinIO", logger.ErrorField(err))
	}

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database with GORM", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Fatal("Failed to connect to Redis", logger.ErrorField(err))
	}
	defer cache.CloseRedis()

	trackRepo := repository.NewMySQLTrackRepository(db.DB)
	likeRepo := repository.NewGormLikeRepository(db.GormDB)

	coordinator := ingest.NewCoordinator(ingest.UUIDGenerator{}, blobs, trackRepo)
	playerManager := player.NewManager(trackRepo, blobs)
	tracker := likes.NewTracker(likeRepo)

	apiHandler := NewAPIHandler(coordinator, trackRepo, playerManager, tracker, blobs)

	router := mux.NewRouter()
	router.Use(corsMiddleware)
	apiHandler.RegisterRoutes(router)

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Server listening", logger.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", logger.ErrorField(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Forced shutdown", logger.ErrorField(err))
	}
	logger.Info("Server stopped")
}
