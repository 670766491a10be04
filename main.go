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

	"github.com/nijaru/yt-summary/config"
	"github.com/nijaru/yt-summary/db"
	"github.com/nijaru/yt-summary/handlers"
	"github.com/nijaru/yt-summary/llm"
	"github.com/nijaru/yt-summary/logger"
	"github.com/nijaru/yt-summary/summary"
	"github.com/nijaru/yt-summary/transcription"
	"github.com/nijaru/yt-summary/utils"
	"github.com/sirupsen/logrus"
)

const startupPingTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	videoURL := flag.String("url", "", "summarize a single YouTube URL and exit")
	flag.Parse()

	cfg := config.LoadConfig()
	if err := config.ValidateConfig(cfg); err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	logOpts := logger.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Format: cfg.LogFormat}
	if *videoURL != "" {
		logOpts.Output = os.Stderr
	}
	log, err := logger.Setup(logOpts)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to set up logging")
	}

	client := llm.NewClient(cfg.LLM)
	if err := checkBackend(client); err != nil {
		printSetupInstructions(cfg.LLM.Model, err)
		return 1
	}

	var store *db.Store
	if cfg.RunLogEnabled {
		store, err = db.InitializeDB(cfg.DBPath)
		if err != nil {
			log.WithError(err).Error("Failed to initialize run ledger")
			return 1
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.WithError(err).Error("Failed to close run ledger")
			}
		}()
	}

	summarizer, err := newSummarizer(cfg, client, store, log)
	if err != nil {
		log.WithError(err).Error("Failed to build summarizer")
		return 1
	}

	if *videoURL != "" {
		return runOnce(summarizer, *videoURL)
	}

	var runs handlers.RunStore
	if store != nil {
		runs = store
	}
	if err := serve(cfg, handlers.New(cfg, summarizer, runs, client, log), log); err != nil {
		log.WithError(err).Error("Could not start server")
		return 1
	}
	return 0
}

func checkBackend(client *llm.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), startupPingTimeout)
	defer cancel()
	return client.Ping(ctx)
}

func printSetupInstructions(model string, err error) {
	fmt.Fprintf(os.Stderr, "Cannot use model %q: %v\n\n", model, err)
	fmt.Fprintln(os.Stderr, "Make sure Ollama is installed and running:")
	fmt.Fprintln(os.Stderr, "  1. Install Ollama from https://ollama.com")
	fmt.Fprintln(os.Stderr, "  2. Start the server: ollama serve")
	fmt.Fprintf(os.Stderr, "  3. Pull the model: ollama pull %s\n", model)
}

func newSummarizer(cfg *config.Config, gen llm.Generator, store *db.Store, log *logrus.Logger) (*summary.Summarizer, error) {
	mode, err := summary.ParseExtractorMode(cfg.ExtractMode)
	if err != nil {
		return nil, err
	}

	source := transcription.NewYouTubeSource(&http.Client{Timeout: cfg.TranscriptTimeout}, cfg.TranscriptLanguages)

	opts := summary.Options{
		ChunkSize:      cfg.ChunkSize,
		ChunkOverlap:   cfg.ChunkOverlap,
		MapConcurrency: cfg.MapConcurrency,
		Mode:           mode,
		Timeout:        cfg.SummarizeTimeout,
		Logger:         log,
	}
	if store != nil {
		opts.Recorder = store
	}
	return summary.NewSummarizer(source, gen, opts)
}

func runOnce(s *summary.Summarizer, videoURL string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := s.Run(ctx, videoURL)
	fmt.Println(utils.FormatSummary(env))
	if !env.IsSuccess() {
		return 1
	}
	return 0
}

func serve(cfg *config.Config, h *handlers.Handler, log *logrus.Logger) error {
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      h.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.ServerPort).Info("Listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	log.Info("Shutting down the server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
	return nil
}
