package kv

import (
	"errors"
	"fmt"

	"lintang/saferoute/pkg/concurrent"
	"lintang/saferoute/pkg/datastructure"

	"github.com/cockroachdb/pebble"
	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
)

// Stage names one persisted version of the street graph.
type Stage string

const (
	// StageRaw is the street network as fetched from the raw source, before risk annotation.
	StageRaw Stage = "raw"
	// StageAnnotated is the street network with risk and global risk on every edge.
	StageAnnotated Stage = "annotated"
)

const (
	formatVersion = 1
	chunkSize     = 50000
)

// ErrCacheMiss is returned when a stage has never been saved.
var ErrCacheMiss = errors.New("graph stage not cached")

type graphMeta struct {
	Version    int
	NodeCount  int
	EdgeCount  int
	NodeChunks int
	EdgeChunks int
}

// KVDB persists street graphs in pebble. Every stage is stored as gob encoded, zstd compressed
// chunks of nodes and edges plus a meta record; a stage is replaced in a single batch.
type KVDB struct {
	db           *pebble.DB
	workers      int
	showProgress bool
}

func NewKVDB(db *pebble.DB, workers int) *KVDB {
	if workers < 1 {
		workers = 1
	}
	return &KVDB{db: db, workers: workers}
}

// Open opens (or creates) the pebble database at dir.
func Open(dir string, opts *pebble.Options, workers int) (*KVDB, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open graph cache %s: %w", dir, err)
	}
	return NewKVDB(db, workers), nil
}

// ShowProgress enables terminal progress bars for long saves.
func (k *KVDB) ShowProgress(show bool) {
	k.showProgress = show
}

func stagePrefix(stage Stage) []byte {
	return []byte("graph/" + string(stage) + "/")
}

func metaKey(stage Stage) []byte {
	return append(stagePrefix(stage), "meta"...)
}

func nodeChunkKey(stage Stage, i int) []byte {
	return append(stagePrefix(stage), fmt.Sprintf("nodes/%08d", i)...)
}

func edgeChunkKey(stage Stage, i int) []byte {
	return append(stagePrefix(stage), fmt.Sprintf("edges/%08d", i)...)
}

// prefixEnd returns the smallest key greater than every key starting with prefix.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (k *KVDB) newBar(total int, description string) *progressbar.ProgressBar {
	if !k.showProgress {
		return progressbar.DefaultSilent(int64(total))
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(15),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

// SaveGraph replaces the stored stage with g.
func (k *KVDB) SaveGraph(stage Stage, g *datastructure.StreetGraph) error {
	nodeChunks := (len(g.Nodes) + chunkSize - 1) / chunkSize
	edgeChunks := (len(g.Edges) + chunkSize - 1) / chunkSize
	jobCount := nodeChunks + edgeChunks

	bar := k.newBar(jobCount, fmt.Sprintf("[cyan]saving %s street graph to pebble db...[reset]", stage))

	workers := concurrent.NewWorkerPool[saveChunkJobItem, saveChunkResult](k.workers, jobCount)
	for i := 0; i < nodeChunks; i++ {
		end := min((i+1)*chunkSize, len(g.Nodes))
		workers.AddJob(saveChunkJobItem{Key: nodeChunkKey(stage, i), Nodes: g.Nodes[i*chunkSize : end]})
	}
	for i := 0; i < edgeChunks; i++ {
		end := min((i+1)*chunkSize, len(g.Edges))
		workers.AddJob(saveChunkJobItem{Key: edgeChunkKey(stage, i), Edges: g.Edges[i*chunkSize : end]})
	}
	workers.Close()

	workers.Start(encodeChunk)
	workers.Wait()

	batch := k.db.NewBatch()
	defer batch.Close()

	prefix := stagePrefix(stage)
	if err := batch.DeleteRange(prefix, prefixEnd(prefix), nil); err != nil {
		return fmt.Errorf("clear %s stage: %w", stage, err)
	}

	var firstErr error
	for res := range workers.CollectResults() {
		bar.Add(1)
		if res.Err != nil {
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		if err := batch.Set(res.Key, res.Val, nil); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return fmt.Errorf("encode %s stage: %w", stage, firstErr)
	}

	meta, err := compressValue(graphMeta{
		Version:    formatVersion,
		NodeCount:  len(g.Nodes),
		EdgeCount:  len(g.Edges),
		NodeChunks: nodeChunks,
		EdgeChunks: edgeChunks,
	})
	if err != nil {
		return fmt.Errorf("encode %s stage meta: %w", stage, err)
	}
	if err := batch.Set(metaKey(stage), meta, nil); err != nil {
		return err
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit %s stage: %w", stage, err)
	}
	return nil
}

func encodeChunk(job saveChunkJobItem) saveChunkResult {
	var (
		val []byte
		err error
	)
	if job.Nodes != nil {
		val, err = compressValue(job.Nodes)
	} else {
		val, err = compressValue(job.Edges)
	}
	return saveChunkResult{Key: job.Key, Val: val, Err: err}
}

func (k *KVDB) get(key []byte) ([]byte, error) {
	val, closer, err := k.db.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// val is only valid until closer.Close
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (k *KVDB) loadMeta(stage Stage) (graphMeta, error) {
	val, err := k.get(metaKey(stage))
	if errors.Is(err, pebble.ErrNotFound) {
		return graphMeta{}, fmt.Errorf("%w: %s", ErrCacheMiss, stage)
	}
	if err != nil {
		return graphMeta{}, err
	}
	meta, err := decompressValue[graphMeta](val)
	if err != nil {
		return graphMeta{}, fmt.Errorf("decode %s stage meta: %w", stage, err)
	}
	if meta.Version != formatVersion {
		return graphMeta{}, fmt.Errorf("%w: %s stage has format version %d, want %d", ErrCacheMiss, stage, meta.Version, formatVersion)
	}
	return meta, nil
}

// HasGraph reports whether stage has been saved.
func (k *KVDB) HasGraph(stage Stage) (bool, error) {
	_, err := k.loadMeta(stage)
	if errors.Is(err, ErrCacheMiss) {
		return false, nil
	}
	return err == nil, err
}

// LoadGraph reads stage back and rebuilds the graph index. Returns ErrCacheMiss when the stage is absent.
func (k *KVDB) LoadGraph(stage Stage) (*datastructure.StreetGraph, error) {
	meta, err := k.loadMeta(stage)
	if err != nil {
		return nil, err
	}

	jobCount := meta.NodeChunks + meta.EdgeChunks
	workers := concurrent.NewWorkerPool[loadChunkJobItem, loadChunkResult](k.workers, jobCount)
	for i := 0; i < meta.NodeChunks; i++ {
		workers.AddJob(loadChunkJobItem{Pos: i, Key: nodeChunkKey(stage, i), IsNode: true})
	}
	for i := 0; i < meta.EdgeChunks; i++ {
		workers.AddJob(loadChunkJobItem{Pos: i, Key: edgeChunkKey(stage, i)})
	}
	workers.Close()

	workers.Start(k.decodeChunk)
	workers.Wait()

	nodeChunks := make([][]datastructure.Node, meta.NodeChunks)
	edgeChunks := make([][]datastructure.Edge, meta.EdgeChunks)
	for res := range workers.CollectResults() {
		if res.Err != nil {
			err = errors.Join(err, res.Err)
			continue
		}
		if res.IsNode {
			nodeChunks[res.Pos] = res.Nodes
		} else {
			edgeChunks[res.Pos] = res.Edges
		}
	}
	if err != nil {
		return nil, fmt.Errorf("load %s stage: %w", stage, err)
	}

	nodes := make([]datastructure.Node, 0, meta.NodeCount)
	for _, c := range nodeChunks {
		nodes = append(nodes, c...)
	}
	edges := make([]datastructure.Edge, 0, meta.EdgeCount)
	for _, c := range edgeChunks {
		edges = append(edges, c...)
	}
	if len(nodes) != meta.NodeCount || len(edges) != meta.EdgeCount {
		return nil, fmt.Errorf("load %s stage: got %d nodes and %d edges, meta says %d and %d",
			stage, len(nodes), len(edges), meta.NodeCount, meta.EdgeCount)
	}

	return datastructure.NewStreetGraph(nodes, edges)
}

func (k *KVDB) decodeChunk(job loadChunkJobItem) loadChunkResult {
	res := loadChunkResult{Pos: job.Pos, IsNode: job.IsNode}
	val, err := k.get(job.Key)
	if err != nil {
		res.Err = fmt.Errorf("chunk %s: %w", job.Key, err)
		return res
	}
	if job.IsNode {
		res.Nodes, res.Err = decompressValue[[]datastructure.Node](val)
	} else {
		res.Edges, res.Err = decompressValue[[]datastructure.Edge](val)
	}
	if res.Err != nil {
		res.Err = fmt.Errorf("chunk %s: %w", job.Key, res.Err)
	}
	return res
}

// DeleteGraph removes every key of stage.
func (k *KVDB) DeleteGraph(stage Stage) error {
	prefix := stagePrefix(stage)
	return k.db.DeleteRange(prefix, prefixEnd(prefix), pebble.Sync)
}

func (k *KVDB) Close() error {
	return k.db.Close()
}
