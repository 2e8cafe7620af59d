package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lintang/saferoute/pkg/config"
	"lintang/saferoute/pkg/engine/aggregator"
	"lintang/saferoute/pkg/engine/routingalgorithm"
	"lintang/saferoute/pkg/geocoding"
	"lintang/saferoute/pkg/graphstore"
	"lintang/saferoute/pkg/kv"
	"lintang/saferoute/pkg/osmparser"
	"lintang/saferoute/pkg/risk"
	"lintang/saferoute/pkg/server/rest"
	"lintang/saferoute/pkg/server/rest/service"

	"github.com/cockroachdb/pebble"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	flag.StringVar(&cfg.ListenAddr, "listenaddr", cfg.ListenAddr, "server listen address")
	flag.StringVar(&cfg.MapFile, "f", cfg.MapFile, "openstreetmap pbf file for the street network")
	flag.StringVar(&cfg.IncidentsFile, "incidents", cfg.IncidentsFile, "crash statistics csv file")
	flag.BoolVar(&cfg.ForceReload, "reload", cfg.ForceReload, "ignore the graph cache and rebuild from the openstreetmap file")
	flag.Parse()

	logger := cfg.NewLogger(os.Stdout)

	kvDB, err := kv.Open(cfg.CacheDir, &pebble.Options{}, cfg.Workers)
	if err != nil {
		logger.Error("failed to open graph cache", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer kvDB.Close()
	kvDB.ShowProgress(cfg.ShowProgress)

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
		logger.Error("failed to load street graph", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("street graph ready", slog.Int("nodes", snap.Graph.NumNodes()),
		slog.Int("edges", snap.Graph.NumEdges()), slog.Duration("took", time.Since(start)))

	engine := routingalgorithm.NewRouteEngine(routingalgorithm.SearchOptions{MaxSettledNodes: cfg.MaxSettledNodes})
	geocoder := geocoding.NewNominatimClient(geocoding.Config{
		BaseURL:     cfg.GeocoderURL,
		ServiceArea: cfg.ServiceArea,
		Timeout:     cfg.GeocoderTimeout,
		Retries:     cfg.GeocoderRetries,
	})
	navigatorSvc := service.NewNavigationService(store, aggregator.NewAggregator(engine, logger), geocoder, logger)

	reg := prometheus.NewRegistry()
	m := rest.NewMetrics(reg)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(rest.PromeHttpMiddleware(m)) // prometheus http middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Mount("/debug", middleware.Profiler())
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	rest.NavigatorRouter(r, navigatorSvc, m)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", slog.String("error", err.Error()))
		}
	}()

	logger.Info("server started", slog.String("addr", cfg.ListenAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
