package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"visionchat/internal/auth"
	"visionchat/internal/config"
	"visionchat/internal/logger"
	"visionchat/internal/repository"
	"visionchat/internal/repository/postgres"
	"visionchat/internal/repository/sqlite"
	"visionchat/internal/route"
	"visionchat/internal/service"
	"visionchat/internal/service/ai"
	"visionchat/internal/service/gemini"
	"visionchat/internal/service/inference"
	"visionchat/internal/service/websocket"
	"visionchat/internal/storage"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger *logger.Logger
	store  repository.Store
	pool   *service.DetectorPool
	hub    *websocket.HubService
	server *http.Server
}

// NewApp builds every component from cfg. On error, whatever was already
// opened is closed again.
func NewApp(ctx context.Context, cfg *config.Config) (a *App, err error) {
	log, err := logger.NewLogger(cfg.LogDirectory)
	if err != nil {
		return nil, err
	}
	a = &App{config: cfg, logger: log}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.store, err = OpenStore(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	files, err := newFileStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a.pool, err = service.NewDetectorPool(newDetectors(cfg, log), log)
	if err != nil {
		return nil, err
	}

	a.hub = websocket.NewHubService(log)
	assistant := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.ChatTimeout)
	tokens := auth.NewTokenIssuer(cfg.SecretKey, cfg.AccessTokenTTL())

	router := route.SetupRoutes(route.Services{
		Auth:        service.NewAuthService(a.store.Users(), tokens, log),
		Detection:   service.NewDetectionService(a.pool, files, a.store.Images(), a.hub, log),
		Chat:        service.NewChatService(a.store.Images(), files, assistant, log),
		Images:      service.NewImageService(a.store.Images()),
		Hub:         a.hub,
		MaxUpload:   cfg.MaxUploadBytes(),
		CORSOrigins: cfg.CORSOrigins,
	}, log)

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// OpenStore picks the repository backend from the DB_URL scheme.
func OpenStore(dsn string) (repository.Store, error) {
	if postgres.IsURL(dsn) {
		return postgres.NewStore(dsn)
	}
	return sqlite.NewStore(dsn)
}

func newFileStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (storage.FileStore, error) {
	if strings.EqualFold(cfg.StorageBackend, "minio") {
		return storage.NewMinioStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL, log)
	}
	return storage.NewLocalStore(cfg.UploadDirectory)
}

// newDetectors loads one detector per worker; each OpenCV instance owns its
// own network.
func newDetectors(cfg *config.Config, log *logger.Logger) []service.Detector {
	detectors := make([]service.Detector, 0, cfg.DetectorWorkers)
	for i := 0; i < cfg.DetectorWorkers; i++ {
		if strings.EqualFold(cfg.DetectorBackend, "remote") {
			detectors = append(detectors, inference.NewClient(cfg.InferenceURL, cfg.DetectionThreshold))
			continue
		}
		detectors = append(detectors, ai.NewDetectorService(cfg.ModelPath, cfg.ConfigPath, cfg.DetectionThreshold, log))
	}
	return detectors
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		a.hub.Run(hubCtx)
		close(hubDone)
	}()

	a.logger.Info("Vision chat server listening on %s", a.server.Addr)
	a.logger.Info("Database: %s, storage: %s, detector: %s x%d",
		storeKind(a.config.DatabaseURL), a.config.StorageBackend, a.config.DetectorBackend, a.pool.Size())
	if a.config.GeminiAPIKey == "" {
		a.logger.Warning("GEMINI_API_KEY is empty, chat answers will report the missing key")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP shutdown: %v", err)
	}

	// Hijacked websocket connections outlive Shutdown; the hub closes them.
	stopHub()
	<-hubDone

	a.close()
	return serveErr
}

func (a *App) close() {
	if a.pool != nil {
		if err := a.pool.Close(); err != nil {
			a.logger.Error("Closing detectors: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error("Closing database: %v", err)
		}
	}
	a.logger.Close()
}

func storeKind(dsn string) string {
	if postgres.IsURL(dsn) {
		return "postgres"
	}
	return "sqlite " + sqlite.Path(dsn)
}
