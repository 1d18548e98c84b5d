package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgallion1/docannot/internal/analysis"
	"github.com/dgallion1/docannot/internal/analyzer/rulebased"
	"github.com/dgallion1/docannot/internal/annotate"
	"github.com/dgallion1/docannot/internal/api"
	"github.com/dgallion1/docannot/internal/config"
	"github.com/dgallion1/docannot/internal/logging"
	"github.com/dgallion1/docannot/internal/pipeline"
	"github.com/dgallion1/docannot/internal/resource"
	"github.com/dgallion1/docannot/internal/store/driver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(config.LogConfig{Format: "json"}).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log)
	if err := cfg.RequireAPIKey(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := driver.Open(ctx, cfg.Store)
	if err != nil {
		log.Error("open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	reg := resource.NewRegistry(rulebased.NewLoader(cfg.Analysis.DataDir), log, cfg.Analysis.StatsWindow)
	defer reg.Close()
	if err := reg.Preload(ctx, cfg.Analysis.Preload); err != nil {
		log.Error("preload languages", "error", err)
		os.Exit(1)
	}

	ann := annotate.New(analysis.New(reg, log), st, log, annotate.Defaults{
		Language:       cfg.Analysis.DefaultLanguage,
		OutputSet:      cfg.Analysis.OutputSet,
		AppendLanguage: cfg.Analysis.AppendLanguage,
		Workers:        cfg.Analysis.SentenceWorkers,
	})
	orch := pipeline.NewOrchestrator(cfg.Pipeline, ann, log)
	orch.Start(ctx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewServer(orch, reg, log, *cfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		log.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("http shutdown", "error", err)
		}
		orch.Stop()
	}()

	log.Info("starting docannot", "port", cfg.Server.Port, "store", cfg.Store.Driver, "preloaded", reg.Languages())
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}
