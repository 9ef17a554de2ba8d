package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cadenzalab/cadenza/internal/adapters/ollama"
	"github.com/cadenzalab/cadenza/internal/adapters/rest"
	"github.com/cadenzalab/cadenza/internal/adapters/sqlite"
	"github.com/cadenzalab/cadenza/internal/config"
	"github.com/cadenzalab/cadenza/internal/core/services"
	"github.com/cadenzalab/cadenza/internal/m3u"
)

func main() {
	configPath := os.Getenv("CADENZA_CONFIG")
	if configPath == "" {
		configPath = "cadenza.toml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}

	log := newLogger(cfg.Logging)

	// Driven adapters.
	db, err := sqlite.NewAdapter(cfg.Database.Path)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	llm := ollama.NewClient(cfg.LLM.BaseURL, cfg.LLM.Model, time.Duration(cfg.LLM.TimeoutSeconds)*time.Second)

	// Core services, adapters injected.
	analyzer := services.NewIntentAnalyzer(llm, log)
	aggregator := services.NewContextAggregator(db, time.Duration(cfg.Engine.ContextTTLSeconds)*time.Second, log)
	search := services.NewTieredSearch(db, log)
	diversity := services.NewDiversityEnforcer(db, log)
	assembler := services.NewAssembler(db, m3u.NewWriter(cfg.Media.PlaylistDir),
		cfg.Media.StreamBaseURL, cfg.Media.CoverBaseURL, log)

	engine := services.NewEngine(db, llm, db, db.Feedback(),
		analyzer, aggregator, search, diversity, assembler, log)

	handler := rest.NewHandler(engine, log)

	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
	}

	log.WithField("addr", cfg.Address()).Info("cadenza api listening")

	serverErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatal(err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("shutdown error")
		}
	}
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	log := logrus.New()
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		log.SetLevel(level)
	}
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
