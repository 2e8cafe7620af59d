package aggregator

import (
	"context"
	"errors"
	"log/slog"

	"lintang/saferoute/pkg/datastructure"
	"lintang/saferoute/pkg/engine/routingalgorithm"
	"lintang/saferoute/pkg/guidance"

	"golang.org/x/sync/errgroup"
)

// Result is the outcome of one Routes call. Details and Directions hold the per type search
// result and driving instructions of every route present in Routes.
type Result struct {
	Routes     datastructure.RouteSet
	Details    map[string]routingalgorithm.RouteResult
	Directions map[string][]guidance.DrivingInstruction
}

type Aggregator struct {
	engine *routingalgorithm.RouteEngine
	logger *slog.Logger
}

func NewAggregator(engine *routingalgorithm.RouteEngine, logger *slog.Logger) *Aggregator {
	return &Aggregator{engine: engine, logger: logger}
}

type typeOutcome struct {
	res routingalgorithm.RouteResult
	err error
}

// Routes computes one route per requested type between from and to. Each type runs its own
// search concurrently.
//
// Unknown labels are skipped. A type that finds no path or hits the search limit is left out of
// the set. If every known type failed the error of the last failing type, in request order, is
// returned. A request with no known type gets an empty set and no error. Context cancellation
// fails the whole call.
func (a *Aggregator) Routes(ctx context.Context, g *datastructure.StreetGraph, resolver routingalgorithm.NodeResolver,
	from, to datastructure.Coordinate, labels []string) (Result, error) {
	result := Result{
		Routes:     datastructure.RouteSet{},
		Details:    map[string]routingalgorithm.RouteResult{},
		Directions: map[string][]guidance.DrivingInstruction{},
	}

	types := make([]routingalgorithm.RouteType, 0, len(labels))
	seen := make(map[routingalgorithm.RouteType]struct{})
	for _, label := range labels {
		t, err := routingalgorithm.ParseRouteType(label)
		if err != nil {
			a.logger.Debug("skipping unsupported route type", slog.String("type", label))
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		types = append(types, t)
	}
	if len(types) == 0 {
		return result, nil
	}

	ends, err := routingalgorithm.Resolve(resolver, from, to)
	if err != nil {
		return Result{}, err
	}

	outcomes := make([]typeOutcome, len(types))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, t := range types {
		i, t := i, t
		eg.Go(func() error {
			res, err := a.engine.RouteBetween(egCtx, g, ends, t)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			outcomes[i] = typeOutcome{res: res, err: err}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Result{}, err
	}

	var lastErr error
	for i, t := range types {
		out := outcomes[i]
		if out.err != nil {
			lastErr = out.err
			if errors.Is(out.err, datastructure.ErrNoPath) || errors.Is(out.err, datastructure.ErrSearchLimitExceeded) {
				a.logger.Debug("route type omitted", slog.String("type", t.String()), slog.String("reason", out.err.Error()))
			} else {
				a.logger.Warn("route type failed", slog.String("type", t.String()), slog.String("error", out.err.Error()))
			}
			continue
		}
		result.Routes[t.String()] = out.res.Route
		result.Details[t.String()] = out.res
		result.Directions[t.String()] = guidance.DrivingInstructions(g, out.res.Route)
	}

	if len(result.Routes) == 0 {
		return Result{}, lastErr
	}
	return result, nil
}
