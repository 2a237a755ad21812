package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"gaze_service/internal/api"
	"gaze_service/internal/core"
	"gaze_service/internal/domain/model"
	"gaze_service/internal/domain/repository"
	"gaze_service/internal/infrastructure/mlclient"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var (
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the prediction API",
		RunE:  runServe,
	}

	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Generate the labelled synthetic training dataset",
		RunE:  runGenerate,
	}
	generateOutput string
	generateSeed   uint64

	migrateCmd = &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Manage the relational store schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE:      runMigrate,
	}
)

func init() {
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "CSV output path (overrides training.output_path)")
	generateCmd.Flags().Uint64Var(&generateSeed, "seed", 0, "random seed (overrides training.seed)")
}

func openStore(ctx context.Context) (*repository.Store, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	return repository.Open(ctx, repository.Dialect(cfg.Database.Driver), cfg.Database.DSN, repository.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
}

func newClassifier() (model.Classifier, error) {
	switch cfg.Classifier.Kind {
	case "remote":
		return mlclient.NewRemoteClassifier(cfg.Classifier.Endpoint, cfg.Classifier.Timeout), nil
	default:
		return mlclient.LoadForest(cfg.Classifier.ModelDir)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	traits, err := repository.TraitsFromConfig(cfg.Traits)
	if err != nil {
		return err
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.Database.AutoMigrate {
		if err := store.Migrate(); err != nil {
			return err
		}
	}

	classifier, err := newClassifier()
	if err != nil {
		return err
	}
	slog.Info("classifier loaded", "kind", cfg.Classifier.Kind)

	var notifier model.ResultNotifier
	if cfg.Reporting.URL != "" {
		notifier = mlclient.NewHTTPResultNotifier(cfg.Reporting.URL, cfg.Reporting.Timeout)
	} else {
		slog.Warn("reporting.url not set, classifications will not be forwarded")
	}

	repo := repository.NewGazeRepository(store, traits)
	service := core.NewInferenceService(repo, classifier, notifier, core.InferenceOptions{
		QueryTimeout:       cfg.Database.QueryTimeout,
		ReportTimeout:      cfg.Reporting.Timeout,
		IncludeIdentifiers: cfg.Classifier.IncludeIdentifiers,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	router := gin.New()
	router.Use(gin.Recovery())
	api.NewHandler(service, repo, store.DB, api.NewMetrics(registry)).RegisterRoutes(router, registry)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	output := cfg.Training.OutputPath
	if generateOutput != "" {
		output = generateOutput
	}
	seed := cfg.Training.Seed
	if cmd.Flags().Changed("seed") {
		seed = generateSeed
	}

	recorders := []repository.TrainingDataRecorder{repository.NewCSVTrainingRecorder(output)}

	var store *repository.Store
	if cfg.Training.RecordToStore || cfg.Training.SeedStore {
		var err error
		store, err = openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(); err != nil {
			return err
		}
	}
	if cfg.Training.RecordToStore {
		recorders = append(recorders, repository.NewSQLTrainingRecorder(store))
	}

	gen := core.NewTrainingGenerator(core.NewSynthesizer(core.NewSeededRand(seed)), recorders...)
	if cfg.Training.SeedStore {
		traits, err := repository.TraitsFromConfig(cfg.Traits)
		if err != nil {
			return err
		}
		gen.WithSeeder(repository.NewGazeRepository(store, traits), traits, cfg.Training.Questions)
	}

	rows, err := gen.Generate(ctx)
	if err != nil {
		return err
	}
	slog.Info("wrote training data", "path", output, "rows", len(rows), "seed", seed)
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	action := "up"
	if len(args) == 1 {
		action = args[0]
	}

	store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	switch action {
	case "down":
		err = store.MigrateDown()
	case "version":
	default:
		err = store.Migrate()
	}
	if err != nil {
		return err
	}

	version, dirty, err := store.MigrationVersion()
	if err != nil {
		return err
	}
	slog.Info("schema version", "version", version, "dirty", dirty)
	return nil
}
