package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"

	"library-encoder/config"
	"library-encoder/constant"
	jobHandler "library-encoder/handler"
	"library-encoder/pkg/embedding"
	"library-encoder/pkg/preview"
	"library-encoder/pkg/rabbitmq"
	"library-encoder/pkg/spotify"
	"library-encoder/pkg/vectorindex"
	"library-encoder/registry"
	"library-encoder/repository"
	"library-encoder/service"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn")
	}

	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Qdrant.Host,
		Port: cfg.Qdrant.Port,
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to create qdrant client")
	}
	index := vectorindex.New(qdrantClient, cfg.Qdrant.Collection, uint64(cfg.Embedder.Dimension))
	if err := index.EnsureCollection(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("qdrant collection not ready")
	}

	previewCache := preview.NewCache(cfg.Storage, cfg.MinIOBucket)
	if err := previewCache.EnsureBucket(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("preview cache bucket not ready")
	}

	repo := repository.NewRepo(cfg.DB)
	jobs := registry.New()
	catalog := spotify.NewClient(cfg.Spotify.BaseURL, cfg.Spotify.Timeout)
	embedder := embedding.NewModelClient(cfg.Embedder.URL, cfg.Embedder.Dimension, cfg.Pipeline.TrackTimeout, previewCache)
	publisher := rabbitmq.NewPublisher(conn, cfg.Queue)

	encodeService := service.NewService(repo, catalog, embedder, index, jobs, publisher, cfg.Pipeline.EmbedWorkers)

	serviceDeps := jobHandler.ServiceDependencies{
		EncodeService: encodeService,
	}

	// Start encoding consumer
	encodeConsumer := rabbitmq.NewConsumer(conn, cfg.Queue, cfg.Server.Workers, jobHandler.EncodeJobHandler)
	go func() {
		err := encodeConsumer.Consume(ctx, serviceDeps)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Encoding consumer error")
		}
	}()

	r := gin.Default()
	addHealth(r)
	addRoutes(r, encodeService)

	handler := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := handler.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	if err := handler.Shutdown(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

func addRoutes(r *gin.Engine, svc service.Service) {
	r.POST("/encode-library", jobHandler.EncodeLibrary(svc))
	r.POST("/api/encode-library", jobHandler.EncodeLibrary(svc))
	r.GET("/api/task/status/:id", jobHandler.TaskStatus(svc))
	r.GET("/api/task-status/:id", jobHandler.TaskStatus(svc))
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
