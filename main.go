package main

import (
	"context"
	"time"

	"photo-tagger/internal/annotate"
	"photo-tagger/internal/batch"
	"photo-tagger/internal/discovery"
	"photo-tagger/internal/imagemeta"
	"photo-tagger/internal/logging"
	"photo-tagger/internal/metrics"
	"photo-tagger/internal/pacer"
	"photo-tagger/internal/runner"
	"photo-tagger/internal/startup"
	"photo-tagger/internal/state"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Open the file log sinks
	if err := logging.SetErrorLog(config.ApplicationLog); err != nil {
		startup.LogFatal("Logging error: %v", err)
	}
	if err := logging.SetStatusLog(config.StatusLog); err != nil {
		startup.LogFatal("Logging error: %v", err)
	}
	defer logging.CloseLogs()

	metrics.InitializeMetrics()
	if config.MetricsEnabled {
		go metrics.Serve(config.MetricsPort)
	}

	ctx := context.Background()

	// Open state store
	store, err := state.Open(ctx, config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to open state store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error("Failed to close state store: %v", err)
		}
	}()

	annotator := newAnnotator(config)
	scanner := discovery.NewScanner(config.PhotosDir, config.AnchorSegment)
	scheduler := batch.NewScheduler(
		annotator,
		imagemeta.Writer{},
		store,
		pacer.New(config.RequestsPerMinute, pacer.RealClock()),
		config.DailyBatchLimit,
	)

	run := runner.New(config.Mode, store, scanner, scheduler)

	report, err := run.Run(ctx)
	if err != nil {
		logging.Fatal("Run failed after %v: %v", time.Since(startTime), err)
	}

	logging.Info("photo-tagger finished in %v: %d discovered, %d tagged, %d remaining",
		time.Since(startTime), report.Discovered, report.Batch.Succeeded, report.Batch.Remaining)
}

func newAnnotator(config *startup.Config) batch.Annotator {
	switch config.Provider {
	case startup.ProviderMistral:
		logging.Info("Using Mistral (%s)", config.Model)
		return annotate.NewMistral(config.APIKey, config.Model, config.HTTPTimeout, config.MaxImageDimension)
	default:
		logging.Info("Using Google Gemini (%s)", config.Model)
		return annotate.NewGemini(config.APIKey, config.Model, config.HTTPTimeout, config.MaxImageDimension)
	}
}
