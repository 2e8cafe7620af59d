package risk

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"lintang/saferoute/pkg/concurrent"
	"lintang/saferoute/pkg/datastructure"

	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
)

const scoreBatchSize = 1024

type scoreJobItem struct {
	Start int
	End   int
}

type scoreResult struct {
	Start  int
	Scores []float64
	Err    error
}

// Annotator writes risk and global risk onto every edge of a street graph.
type Annotator struct {
	policy       Policy
	workers      int
	logger       *slog.Logger
	showProgress bool
}

func NewAnnotator(policy Policy, workers int, logger *slog.Logger) *Annotator {
	if workers < 1 {
		workers = 1
	}
	return &Annotator{policy: policy, workers: workers, logger: logger}
}

func (a *Annotator) ShowProgress(show bool) {
	a.showProgress = show
}

func (a *Annotator) newBar(total int) *progressbar.ProgressBar {
	if !a.showProgress {
		return progressbar.DefaultSilent(int64(total))
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(15),
		progressbar.OptionSetDescription("[cyan][2/3][reset] annotating street graph edges with crash risk..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

// Annotate scores every edge with the policy and returns a new graph where GlobalRisk is the
// policy score and Risk is GlobalRisk divided by the graph maximum (0 when every edge scores 0).
// g is not modified.
func (a *Annotator) Annotate(ctx context.Context, g *datastructure.StreetGraph, incidents []Incident) (*datastructure.StreetGraph, error) {
	if err := a.policy.Prepare(incidents); err != nil {
		return nil, fmt.Errorf("prepare risk policy: %w", err)
	}

	numEdges := g.NumEdges()
	globalRisk := make([]float64, numEdges)
	risk := make([]float64, numEdges)
	if numEdges == 0 {
		return g.WithRisk(risk, globalRisk)
	}

	jobCount := (numEdges + scoreBatchSize - 1) / scoreBatchSize
	bar := a.newBar(numEdges)

	workers := concurrent.NewWorkerPool[scoreJobItem, scoreResult](a.workers, jobCount)
	for start := 0; start < numEdges; start += scoreBatchSize {
		workers.AddJob(scoreJobItem{Start: start, End: min(start+scoreBatchSize, numEdges)})
	}
	workers.Close()

	workers.Start(func(job scoreJobItem) scoreResult {
		res := scoreResult{Start: job.Start, Scores: make([]float64, 0, job.End-job.Start)}
		if ctx.Err() != nil {
			res.Err = ctx.Err()
			return res
		}
		for i := job.Start; i < job.End; i++ {
			e := a.scoringEdge(g, int32(i))
			score := a.policy.Score(&e)
			if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 {
				res.Err = fmt.Errorf("risk policy scored edge %d->%d (key %d) with %v", e.From, e.To, e.Key, score)
				return res
			}
			res.Scores = append(res.Scores, score)
		}
		return res
	})
	workers.Wait()

	var firstErr error
	for res := range workers.CollectResults() {
		if res.Err != nil {
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		copy(globalRisk[res.Start:], res.Scores)
		bar.Add(len(res.Scores))
	}
	if firstErr != nil {
		return nil, firstErr
	}

	maxRisk := 0.0
	covered := 0
	for _, r := range globalRisk {
		maxRisk = math.Max(maxRisk, r)
		if r > 0 {
			covered++
		}
	}
	if maxRisk > 0 {
		for i, r := range globalRisk {
			risk[i] = r / maxRisk
		}
	}

	a.logger.Info("street graph annotated with risk",
		slog.Int("edges", numEdges),
		slog.Int("edges_with_incidents", covered),
		slog.Int("incidents", len(incidents)),
		slog.Float64("max_global_risk", maxRisk))

	return g.WithRisk(risk, globalRisk)
}

// scoringEdge returns a copy of the edge whose geometry falls back to the straight line between
// its endpoints.
func (a *Annotator) scoringEdge(g *datastructure.StreetGraph, edgeIDx int32) datastructure.Edge {
	e := *g.GetEdge(edgeIDx)
	if len(e.Geometry) == 0 {
		from, _ := g.NodeByID(e.From)
		to, _ := g.NodeByID(e.To)
		e.Geometry = []datastructure.Coordinate{
			datastructure.NewCoordinate(from.Lat, from.Lon),
			datastructure.NewCoordinate(to.Lat, to.Lon),
		}
	}
	return e
}
