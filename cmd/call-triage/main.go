package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yberthe/call-triage/internal/api"
	"github.com/yberthe/call-triage/internal/config"
	"github.com/yberthe/call-triage/internal/geo"
	"github.com/yberthe/call-triage/internal/guidance"
	"github.com/yberthe/call-triage/internal/llm"
	"github.com/yberthe/call-triage/internal/session"
	"github.com/yberthe/call-triage/internal/storage/sqlite"
	"github.com/yberthe/call-triage/internal/triage"
	"github.com/yberthe/call-triage/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting call-triage",
		logger.String("config", *configPath),
		logger.Int("port", cfg.Server.Port))

	// Storage
	db, err := sqlite.Open(cfg.Storage.SQLitePath)
	if err != nil {
		log.Error("Failed to open database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	reportStorage := sqlite.NewReportStorage(db, log)

	// Collaborators
	replyGenerator := llm.NewClient(llm.Config{
		APIKey:         cfg.OpenAI.APIKey,
		Model:          cfg.OpenAI.Model,
		SummaryModel:   cfg.OpenAI.SummaryModel,
		TimeoutSeconds: cfg.OpenAI.TimeoutSeconds,
		MaxTokens:      cfg.OpenAI.MaxTokens,
		Temperature:    cfg.OpenAI.Temperature,
	}, log)

	geocoder := geo.NewClient(geo.Config{
		BaseURL:        cfg.Geocoding.BaseURL,
		TimeoutSeconds: cfg.Geocoding.TimeoutSeconds,
		MaxRetries:     cfg.Geocoding.MaxRetries,
		Facilities:     cfg.Geocoding.Facilities,
	}, log)

	// Core
	store := session.NewStore(log)
	orchestrator := session.NewOrchestrator(
		store,
		triage.NewExtractor(log),
		triage.NewEngine(log),
		guidance.NewEngine(log),
		replyGenerator,
		geocoder,
		reportStorage,
		session.Config{
			MinMessagesForClassification: cfg.Triage.MinMessagesForClassification,
			FullSummaryThreshold:         cfg.Triage.FullSummaryThreshold,
			FacilityRadiusKm:             cfg.Geocoding.SearchRadiusKm,
			FacilityKind:                 cfg.Geocoding.FacilityKind,
		},
		log,
	)

	// HTTP server
	router := api.NewRouter(orchestrator, reportStorage, cfg, log)
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Error("HTTP server failed", logger.Error(err))
	case sig := <-stop:
		log.Info("Shutting down", logger.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", logger.Error(err))
	}
}
