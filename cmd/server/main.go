package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/caseops/caseaudit/internal/analyze"
	"github.com/caseops/caseaudit/internal/config"
	"github.com/caseops/caseaudit/internal/httpapi"
	"github.com/caseops/caseaudit/internal/jobs"
	"github.com/caseops/caseaudit/internal/llm"
	"github.com/caseops/caseaudit/internal/service"
	"github.com/caseops/caseaudit/pkg/file"
	"github.com/caseops/caseaudit/pkg/icron"
	"github.com/caseops/caseaudit/pkg/log"
)

func main() {
	// Optional .env for local development.
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log.InitLogger(log.ParseLevel(cfg.Server.LogLevel))

	if err := cfg.EnsureDirs(); err != nil {
		log.Fatal("Failed to prepare storage directories: %v", err)
	}

	store := jobs.NewStore(cfg.Storage.JobsFile, file.NewResolver(cfg.Storage.DataRoot))
	store.Load()
	reconciler := jobs.NewReconciler(store, cfg.Storage.ReportDir)

	llmClient, err := llm.NewClient(&llm.Config{
		APIKey:      cfg.LLM.APIKey,
		APIURL:      cfg.LLM.APIURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		SiteURL:     cfg.LLM.SiteURL,
		AppName:     cfg.LLM.AppName,
	})
	if err != nil {
		log.Fatal("Failed to create LLM client: %v", err)
	}

	analyzer := analyze.NewAnalyzer(llmClient, cfg.Audit.ReportLanguage)
	svc := service.New(store, reconciler, analyzer, cfg.Storage.UploadDir, cfg.Storage.ReportDir)

	// Bring the store in line with whatever reports are already on disk.
	if result, err := svc.Reconcile(); err != nil {
		log.Warn("Startup reconciliation failed: %v", err)
	} else if result.Synthesized > 0 || result.Removed > 0 {
		log.Info("Startup reconciliation: synthesized %d, removed %d", result.Synthesized, result.Removed)
	}

	next, err := icron.NextRun(cfg.Audit.ReconcileCron, time.Now())
	if err != nil {
		log.Fatal("Invalid RECONCILE_CRON: %v", err)
	}
	log.Info("Periodic reconciliation scheduled, next run at %s", next.Format(time.RFC3339))

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Audit.ReconcileCron, func() {
		if result, err := svc.Reconcile(); err != nil {
			log.Warn("Scheduled reconciliation failed: %v", err)
		} else if result.Synthesized > 0 || result.Removed > 0 {
			log.Info("Scheduled reconciliation: synthesized %d, removed %d", result.Synthesized, result.Removed)
		}
	}); err != nil {
		log.Fatal("Failed to schedule reconciliation: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := httpapi.NewServer(svc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe(cfg.Server.HTTPAddr)
	}()
	log.Info("Listening on %s", cfg.Server.HTTPAddr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error: %v", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Shutdown error: %v", err)
		}
		// Let in-flight jobs finish so no upload is half processed.
		svc.Wait()
	}
}
