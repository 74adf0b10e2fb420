package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/abduss/practiceroom/internal/auth"
	"github.com/abduss/practiceroom/internal/config"
	"github.com/abduss/practiceroom/internal/logger"
	"github.com/abduss/practiceroom/internal/metrics"
	"github.com/abduss/practiceroom/internal/recording"
	"github.com/abduss/practiceroom/internal/server"
	"github.com/abduss/practiceroom/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	zapLog, err := logger.Init()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zapLog.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.InitMetrics()

	uploadDir, err := storage.EnsureDir(cfg.Recordings.UploadDir)
	if err != nil {
		zapLog.Fatal("prepare upload dir", zap.Error(err))
	}
	cfg.Recordings.UploadDir = uploadDir
	exts := recording.NewExtensions(cfg.Recordings.AllowedExtensions)

	var (
		store       recording.BlobStore
		minioClient *minio.Client
	)
	if cfg.UsesMinIO() {
		minioClient, err = storage.NewMinIOClient(cfg.MinIO)
		if err != nil {
			zapLog.Fatal("connect minio", zap.Error(err))
		}
		if err := storage.EnsureBucket(ctx, minioClient, cfg.MinIO.Bucket, cfg.MinIO.Region); err != nil {
			zapLog.Fatal("ensure bucket", zap.Error(err))
		}
		store = recording.NewMinIOStore(minioClient, cfg.MinIO.Bucket, exts, cfg.MinIO.PresignTTL)
	} else {
		fileStore, err := recording.NewFileStore(uploadDir, exts)
		if err != nil {
			zapLog.Fatal("open recording store", zap.Error(err))
		}
		store = fileStore
	}

	var (
		overlay recording.Overlay
		dbPool  *pgxpool.Pool
	)
	if cfg.UsesPostgres() {
		dbPool, err = storage.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			zapLog.Fatal("connect postgres", zap.Error(err))
		}
		defer dbPool.Close()

		pgOverlay := recording.NewPostgresOverlay(dbPool)
		if err := pgOverlay.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("prepare metadata table", zap.Error(err))
		}
		overlay = pgOverlay
	} else {
		overlay = recording.NewJSONOverlay(uploadDir, zapLog.Named("overlay"))
	}

	var verifier auth.IdentityVerifier
	if cfg.Identity.Enabled() {
		jwksVerifier, err := auth.NewJWKSVerifier(cfg.Identity, zapLog.Named("identity"))
		if err != nil {
			zapLog.Fatal("init identity verifier", zap.Error(err))
		}
		verifier = jwksVerifier
	} else {
		zapLog.Warn("IDP_JWKS_URL not set, login payloads are trusted as sent")
	}

	authService := auth.NewService(cfg.Session, verifier, zapLog.Named("auth"))
	recordingService := recording.NewService(store, overlay, exts, cfg.Recordings.MaxUploadBytes, zapLog.Named("recording"))

	router, err := server.NewRouter(server.Dependencies{
		Config:           cfg,
		Logger:           zapLog,
		DB:               dbPool,
		ObjectStore:      minioClient,
		AuthService:      authService,
		RecordingService: recordingService,
	})
	if err != nil {
		zapLog.Fatal("build router", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zapLog.Info("Practice Room listening",
			zap.String("addr", cfg.Server.Address()),
			zap.String("storage", cfg.Recordings.StorageBackend),
			zap.String("overlay", cfg.Recordings.OverlayBackend),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	zapLog.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("shutdown error", zap.Error(err))
	}
}
