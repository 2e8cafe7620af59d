package graphstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"lintang/saferoute/pkg/datastructure"
	"lintang/saferoute/pkg/engine/resolver"
	"lintang/saferoute/pkg/kv"
	"lintang/saferoute/pkg/risk"

	"golang.org/x/sync/singleflight"
)

// RawSource produces the street network before risk annotation, e.g. from an openstreetmap extract.
type RawSource interface {
	Fetch(ctx context.Context) (*datastructure.StreetGraph, error)
}

type IncidentSource interface {
	LoadIncidents(ctx context.Context) ([]risk.Incident, error)
}

type Annotator interface {
	Annotate(ctx context.Context, g *datastructure.StreetGraph, incidents []risk.Incident) (*datastructure.StreetGraph, error)
}

// GraphCache persists graph stages. LoadGraph returns kv.ErrCacheMiss for a stage never saved.
type GraphCache interface {
	LoadGraph(stage kv.Stage) (*datastructure.StreetGraph, error)
	SaveGraph(stage kv.Stage, g *datastructure.StreetGraph) error
}

// Snapshot is one loaded, annotated graph with its node index. A snapshot is never modified;
// a reload installs a new one.
type Snapshot struct {
	Graph    *datastructure.StreetGraph
	Index    *resolver.NodeIndex
	LoadedAt time.Time
}

type Options struct {
	// SourceRetries is the number of extra raw source attempts after the first failure.
	SourceRetries int
	SourceBackoff time.Duration
}

type GraphStore struct {
	cache     GraphCache
	source    RawSource
	incidents IncidentSource
	annotator Annotator
	opts      Options
	logger    *slog.Logger

	current atomic.Pointer[Snapshot]
	reloads singleflight.Group
	now     func() time.Time
}

func New(cache GraphCache, source RawSource, incidents IncidentSource, annotator Annotator,
	opts Options, logger *slog.Logger) *GraphStore {
	return &GraphStore{
		cache:     cache,
		source:    source,
		incidents: incidents,
		annotator: annotator,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// Current returns the installed snapshot, nil before the first successful Load.
func (s *GraphStore) Current() *Snapshot {
	return s.current.Load()
}

// Load returns the annotated street graph and installs it as the current snapshot.
//
// Without forceReload the annotated cache stage is used when present, then the raw stage (which
// is annotated again). Otherwise the raw source is fetched, with retries, and both stages are
// written back. Fails with datastructure.ErrLoad when no graph can be obtained.
func (s *GraphStore) Load(ctx context.Context, forceReload bool) (*Snapshot, error) {
	if !forceReload {
		g, err := s.loadStage(kv.StageAnnotated)
		if err != nil {
			return nil, err
		}
		if g != nil {
			s.logger.Info("annotated street graph loaded from cache",
				slog.Int("nodes", g.NumNodes()), slog.Int("edges", g.NumEdges()))
			return s.install(g), nil
		}
	}

	var raw *datastructure.StreetGraph
	if !forceReload {
		g, err := s.loadStage(kv.StageRaw)
		if err != nil {
			return nil, err
		}
		if g != nil {
			s.logger.Info("raw street graph loaded from cache",
				slog.Int("nodes", g.NumNodes()), slog.Int("edges", g.NumEdges()))
		}
		raw = g
	}

	if raw == nil {
		g, err := s.fetch(ctx)
		if err != nil {
			return nil, err
		}
		if g.NumNodes() == 0 {
			return nil, datastructure.ErrEmptyGraph
		}
		s.save(kv.StageRaw, g)
		raw = g
	}

	incidents, err := s.incidents.LoadIncidents(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", datastructure.ErrLoad, err)
	}
	annotated, err := s.annotator.Annotate(ctx, raw, incidents)
	if err != nil {
		return nil, fmt.Errorf("%w: annotate street graph: %w", datastructure.ErrLoad, err)
	}
	s.save(kv.StageAnnotated, annotated)

	return s.install(annotated), nil
}

// Reload forces a rebuild from the raw source. Concurrent calls share one rebuild. Routes that
// already hold the previous snapshot keep using it.
func (s *GraphStore) Reload(ctx context.Context) (*Snapshot, error) {
	v, err, shared := s.reloads.Do("reload", func() (interface{}, error) {
		return s.Load(ctx, true)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("reload shared with a concurrent caller")
	}
	return v.(*Snapshot), nil
}

// loadStage returns nil without error on a cache miss. An unreadable stage is logged and treated
// as a miss so the graph is rebuilt.
func (s *GraphStore) loadStage(stage kv.Stage) (*datastructure.StreetGraph, error) {
	g, err := s.cache.LoadGraph(stage)
	if errors.Is(err, kv.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		s.logger.Warn("graph cache stage unreadable, rebuilding", slog.String("stage", string(stage)),
			slog.String("error", err.Error()))
		return nil, nil
	}
	if g.NumNodes() == 0 {
		return nil, datastructure.ErrEmptyGraph
	}
	return g, nil
}

func (s *GraphStore) save(stage kv.Stage, g *datastructure.StreetGraph) {
	if err := s.cache.SaveGraph(stage, g); err != nil {
		s.logger.Warn("failed to persist street graph", slog.String("stage", string(stage)),
			slog.String("error", err.Error()))
	}
}

func (s *GraphStore) fetch(ctx context.Context) (*datastructure.StreetGraph, error) {
	attempts := s.opts.SourceRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		g, err := s.source.Fetch(ctx)
		if err == nil {
			return g, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		s.logger.Warn("raw street network fetch failed", slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts), slog.String("error", err.Error()))
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(s.opts.SourceBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %w", datastructure.ErrLoad, ctx.Err())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("%w: raw street network unavailable: %w", datastructure.ErrLoad, lastErr)
}

func (s *GraphStore) install(g *datastructure.StreetGraph) *Snapshot {
	snap := &Snapshot{
		Graph:    g,
		Index:    resolver.NewNodeIndex(g),
		LoadedAt: s.now(),
	}
	s.current.Store(snap)
	return snap
}
