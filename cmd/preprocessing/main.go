package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lintang/saferoute/pkg/config"
	"lintang/saferoute/pkg/graphstore"
	"lintang/saferoute/pkg/kv"
	"lintang/saferoute/pkg/osmparser"
	"lintang/saferoute/pkg/risk"

	"github.com/cockroachdb/pebble"
)

// builds (or refreshes) the annotated street graph cache without starting the server
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	flag.StringVar(&cfg.MapFile, "f", cfg.MapFile, "openstreetmap pbf file for the street network")
	flag.StringVar(&cfg.IncidentsFile, "incidents", cfg.IncidentsFile, "crash statistics csv file")
	flag.StringVar(&cfg.CacheDir, "cache", cfg.CacheDir, "pebble directory of the graph cache")
	flag.BoolVar(&cfg.ForceReload, "reload", cfg.ForceReload, "refetch the openstreetmap file even if a raw graph is cached")
	flag.Parse()

	logger := cfg.NewLogger(os.Stdout)

	kvDB, err := kv.Open(cfg.CacheDir, &pebble.Options{}, cfg.Workers)
	if err != nil {
		logger.Error("failed to open graph cache", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer kvDB.Close()
	kvDB.ShowProgress(cfg.ShowProgress)

	if !cfg.ForceReload {
		// keep the raw stage, only redo the risk annotation
		if err := kvDB.DeleteGraph(kv.StageAnnotated); err != nil {
			logger.Error("failed to clear annotated stage", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	annotator := risk.NewAnnotator(risk.NewH3BufferPolicy(cfg.BufferMeters), cfg.Workers, logger)
	annotator.ShowProgress(cfg.ShowProgress)

	store := graphstore.New(
		kvDB,
		osmparser.NewOSMParser(cfg.MapFile, logger, cfg.ShowProgress),
		risk.NewCSVIncidentSource(cfg.IncidentsFile, logger),
		annotator,
		graphstore.Options{SourceRetries: cfg.SourceRetries, SourceBackoff: cfg.SourceBackoff},
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	snap, err := store.Load(ctx, cfg.ForceReload)
	if err != nil {
		logger.Error("preprocessing failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("annotated street graph cached", slog.String("cache_dir", cfg.CacheDir),
		slog.Int("nodes", snap.Graph.NumNodes()), slog.Int("edges", snap.Graph.NumEdges()),
		slog.Duration("took", time.Since(start)))
}
