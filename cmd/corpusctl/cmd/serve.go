package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/corpusctl/internal/authn"
	"github.com/jmylchreest/corpusctl/internal/blobstore"
	"github.com/jmylchreest/corpusctl/internal/config"
	"github.com/jmylchreest/corpusctl/internal/database"
	"github.com/jmylchreest/corpusctl/internal/database/migrations"
	"github.com/jmylchreest/corpusctl/internal/embedding"
	"github.com/jmylchreest/corpusctl/internal/eventbus"
	internalhttp "github.com/jmylchreest/corpusctl/internal/http"
	"github.com/jmylchreest/corpusctl/internal/http/handlers"
	internalmiddleware "github.com/jmylchreest/corpusctl/internal/http/middleware"
	"github.com/jmylchreest/corpusctl/internal/httpclient"
	"github.com/jmylchreest/corpusctl/internal/ingest"
	"github.com/jmylchreest/corpusctl/internal/pipeline"
	"github.com/jmylchreest/corpusctl/internal/quota"
	"github.com/jmylchreest/corpusctl/internal/repository"
	"github.com/jmylchreest/corpusctl/internal/scheduler"
	"github.com/jmylchreest/corpusctl/internal/service/logs"
	"github.com/jmylchreest/corpusctl/internal/service/progress"
	"github.com/jmylchreest/corpusctl/internal/startup"
	"github.com/jmylchreest/corpusctl/internal/vectorstore"
	"github.com/jmylchreest/corpusctl/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the corpusctl server",
	Long: `Start the corpusctl HTTP server and Control API.

The server provides:
- REST API for managing products, data sources, and pipeline runs
- Quality rule configuration and violation inspection
- Chunk metadata drill-down and insight reporting
- Health check endpoint and OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("catalog-dsn", "corpusctl.db", "Catalog store DSN")
	serveCmd.Flags().String("blob-base-dir", "data/blob", "Blob store gateway base directory")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("catalog.dsn", serveCmd.Flags().Lookup("catalog-dsn"))
	mustBindPFlag("blob.base_dir", serveCmd.Flags().Lookup("blob-base-dir"))
}

func runServe(_ *cobra.Command, _ []string) error {
	logsService := logs.New()
	slog.SetDefault(slog.New(logsService.WrapHandler(slog.Default().Handler())))
	logger := slog.Default()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	if removed, err := startup.CleanupSystemTempDirs(logger); err != nil {
		logger.Warn("failed to clean orphaned temp directories", "error", err)
	} else if removed > 0 {
		logger.Info("cleaned orphaned temp directories on startup", "removed_count", removed)
	}

	db, err := database.New(cfg.Catalog, logger, nil)
	if err != nil {
		return fmt.Errorf("initializing catalog store: %w", err)
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db.DB, logger)
	migrator.RegisterAll(migrations.AllMigrations())
	if err := migrator.Up(context.Background()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	if recovered, err := startup.RecoverStaleRuns(context.Background(), logger, db.DB); err != nil {
		logger.Warn("failed to recover stale pipeline runs", "error", err)
	} else if recovered > 0 {
		logger.Info("recovered stale pipeline runs on startup", "count", recovered)
	}

	workspaceRepo := repository.NewWorkspaceRepository(db.DB)
	productRepo := repository.NewProductRepository(db.DB)
	dataSourceRepo := repository.NewDataSourceRepository(db.DB)
	rawFileRepo := repository.NewRawFileRepository(db.DB)
	runRepo := repository.NewPipelineRunRepository(db.DB)
	stageRepo := repository.NewStageExecutionRepository(db.DB)
	artifactRepo := repository.NewArtifactRepository(db.DB)
	chunkRepo := repository.NewChunkMetadataRepository(db.DB)
	ruleSetRepo := repository.NewQualityRuleSetRepository(db.DB)
	violationRepo := repository.NewQualityViolationRepository(db.DB)

	blob, err := blobstore.New(cfg.Blob.BaseDir, cfg.Blob.PresignSecret)
	if err != nil {
		return fmt.Errorf("initializing blob store gateway: %w", err)
	}

	vector, err := vectorstore.New(cfg.Vector.Endpoint, "corpusctl")
	if err != nil {
		return fmt.Errorf("initializing vector store: %w", err)
	}
	defer vector.Close()

	embedHTTPConfig := httpclient.DefaultConfig()
	embedHTTPConfig.Logger = logger
	embedder := embedding.NewHTTPProvider(embedding.Config{
		Endpoint:  cfg.Embedding.Endpoint,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		BatchSize: cfg.Embedding.BatchSize,
		Client:    httpclient.New(embedHTTPConfig),
	})

	pipelineFactory := pipeline.NewDefaultFactory(
		runRepo, stageRepo, artifactRepo, chunkRepo, ruleSetRepo, violationRepo,
		rawFileRepo, productRepo, blob, vector, embedder, logger,
	)

	progressService := progress.NewService(logger)
	progressService.Start()
	defer progressService.Stop()

	ingestHTTPConfig := httpclient.DefaultConfig()
	ingestHTTPConfig.Logger = logger
	coordinator := ingest.NewCoordinator(dataSourceRepo, rawFileRepo, productRepo, blob, httpclient.New(ingestHTTPConfig)).
		WithLogger(logger).
		WithProgressService(progressService)

	reingestScheduler := scheduler.New(dataSourceRepo, coordinator, logger)
	reingestScheduler.Start()
	defer reingestScheduler.Stop()

	bus, err := eventbus.Connect(cfg.Pipeline.EventBusURL)
	if err != nil {
		logger.Warn("eventbus unavailable, run notifications disabled", "error", err)
		bus = nil
	}
	defer bus.Close()

	serverConfig := internalhttp.ServerConfig{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}
	server := internalhttp.NewServer(serverConfig, logger, version.Version)

	if cfg.Auth.Enabled {
		verifier, err := authn.NewVerifier(cfg.Auth.PublicKeyPEM, cfg.Auth.WorkspaceClaim)
		if err != nil {
			return fmt.Errorf("initializing auth verifier: %w", err)
		}
		quotaLimiter := quota.New(cfg.Quota.BurstSize, cfg.Quota.RefillPerSecond)
		server.Use(internalmiddleware.Auth(verifier), internalmiddleware.Quota(quotaLimiter))
	}

	docsHandler := handlers.NewDocsHandler("corpusctl API", "/openapi.yaml")
	server.Router().Get("/docs", docsHandler.ServeHTTP)

	handlers.NewHealthHandler(version.Version).WithDB(db.DB).Register(server.API())
	handlers.NewWorkspaceHandler(workspaceRepo).Register(server.API())
	handlers.NewProductHandler(productRepo, runRepo).Register(server.API())
	handlers.NewDataSourceHandler(dataSourceRepo).WithIngestor(coordinator).Register(server.API())
	handlers.NewPipelineHandler(productRepo, runRepo, stageRepo, artifactRepo, blob, pipelineFactory, logger).WithEventBus(bus).Register(server.API())
	handlers.NewQualityHandler(ruleSetRepo, violationRepo).Register(server.API())
	handlers.NewInsightsHandler(runRepo, artifactRepo, violationRepo, blob).Register(server.API())
	handlers.NewChunksHandler(chunkRepo).Register(server.API())

	logsHandler := handlers.NewLogsHandler(logsService)
	logsHandler.Register(server.API())
	logsHandler.RegisterSSE(server.Router())

	progressHandler := handlers.NewProgressHandler(progressService)
	progressHandler.Register(server.API())
	progressHandler.RegisterSSE(server.Router())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	logger.Info("starting corpusctl server",
		"host", serverConfig.Host,
		"port", serverConfig.Port,
		"version", version.Version,
	)

	return server.ListenAndServe(ctx)
}
