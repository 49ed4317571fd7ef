package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"scan-segmenter/config"
	"scan-segmenter/internal/api/rest"
	"scan-segmenter/internal/api/telegram"
	app "scan-segmenter/internal/application"
	"scan-segmenter/internal/container"
	"scan-segmenter/internal/domain/port"
	"scan-segmenter/internal/infrastructure/dcm"
	"scan-segmenter/internal/infrastructure/logger"
	"scan-segmenter/internal/infrastructure/ml"
	"scan-segmenter/internal/infrastructure/publish"
	"scan-segmenter/internal/infrastructure/storage"
	"scan-segmenter/internal/infrastructure/telemetry"
	"scan-segmenter/internal/infrastructure/vision"
	"scan-segmenter/internal/infrastructure/workspace"
)

const serviceName = "scan-segmenter"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("Service failed", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			zl.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	// Корень рабочих директорий создаётся при старте
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return err
	}

	// Модель загружается один раз
	segmenter, health, closeModel, err := newSegmenter(cfg, zl)
	if err != nil {
		return err
	}
	defer closeModel()

	runs, closeRuns, err := newRunRepository(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer closeRuns()

	publisher, err := newPublisher(ctx, cfg, zl)
	if err != nil {
		return err
	}

	resampler := vision.NewResampler()
	appContainer := container.New(app.SegmentationDeps{
		Workspaces: workspace.NewManager(cfg.WorkDir, zl),
		Decoder:    dcm.NewDecoder(),
		Resampler:  resampler,
		Segmenter:  segmenter,
		Tracer:     vision.NewTracer(),
		Renderer:   vision.NewRenderer(resampler),
		Publisher:  publisher,
		Runs:       runs,
	}, zl)

	handler := rest.NewHandler(appContainer.SegmentationService, appContainer.RunService, health, cfg.MaxUploadBytes, zl)
	srv := rest.NewServer(cfg.HTTPAddr, rest.NewRouter(handler, cfg.OutputDir), zl)

	go func() {
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	if cfg.TelegramToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramToken, appContainer.SegmentationService, appContainer.RunService,
			cfg.MaxUploadBytes, zl)
		if err != nil {
			return err
		}
		go func() {
			if err := bot.Run(ctx); err != nil {
				zl.Error("Bot error", zap.Error(err))
			}
		}()
		zl.Info("Bot is running...")
	}

	// Ожидание сигнала
	<-ctx.Done()
	zl.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("Server forced to shutdown", zap.Error(err))
	}

	zl.Info("Server exited")
	return nil
}

// newSegmenter выбирает внешний сервис модели, если задан INFERENCE_URL, иначе локальную ONNX-модель.
func newSegmenter(cfg *config.Config, zl *zap.Logger) (port.Segmenter, rest.HealthChecker, func(), error) {
	if cfg.InferenceURL != "" {
		remote := ml.NewRemoteSegmenter(cfg.InferenceURL, nil)
		zl.Info("Using remote model", zap.String("url", cfg.InferenceURL))
		return remote, remote, func() {}, nil
	}

	local, err := ml.NewONNXSegmenter(cfg.ModelPath)
	if err != nil {
		return nil, nil, nil, err
	}
	zl.Info("Loaded model", zap.String("path", cfg.ModelPath))
	return local, nil, func() { local.Close() }, nil
}

func newRunRepository(ctx context.Context, cfg *config.Config, zl *zap.Logger) (port.RunRepository, func(), error) {
	if cfg.DatabasePath == "" {
		return storage.NewMemoryRunRepository(), func() {}, nil
	}

	repo, err := storage.OpenSQLiteRunRepository(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	zl.Info("Run history in sqlite", zap.String("path", cfg.DatabasePath))
	return repo, func() {
		if err := repo.Close(); err != nil {
			zl.Warn("Failed to close run history", zap.Error(err))
		}
	}, nil
}

// newPublisher публикует в общий каталог и, если задан бакет, зеркалирует в S3; ошибка S3 только логируется.
func newPublisher(ctx context.Context, cfg *config.Config, zl *zap.Logger) (port.Publisher, error) {
	local := publish.NewLocalPublisher(cfg.OutputDir, zl)
	if !cfg.S3.Enabled() {
		return local, nil
	}

	client, err := publish.NewS3Client(ctx, publish.S3Config{
		Bucket:          cfg.S3.Bucket,
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		Prefix:          cfg.S3.Prefix,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	zl.Info("Mirroring results to S3", zap.String("bucket", cfg.S3.Bucket), zap.String("prefix", cfg.S3.Prefix))
	return publish.Chain{local, publish.NewMirror(publish.NewS3Publisher(client, cfg.S3.Bucket, cfg.S3.Prefix, zl), zl)}, nil
}
