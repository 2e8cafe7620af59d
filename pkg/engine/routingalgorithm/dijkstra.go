package routingalgorithm

import (
	"context"
	"fmt"
	"math"

	"lintang/saferoute/pkg/datastructure"
	"lintang/saferoute/pkg/util"
)

const ctxCheckInterval = 1024

// SearchOptions bounds a single search.
type SearchOptions struct {
	// MaxSettledNodes stops the search with ErrSearchLimitExceeded once this many nodes are
	// settled without reaching the target. 0 means unbounded.
	MaxSettledNodes int
}

// Path is a search result: the visited dense node indices, the representative edge indices
// between them and the total cost.
type Path struct {
	NodeIDxs []int32
	EdgeIDxs []int32
	Cost     float64
}

// ShortestPath runs dijkstra from fromIDx until toIDx is settled. Only representative edges
// (StreetGraph.Neighbors) are relaxed, so the reconstructed edges are the ones the search used.
func ShortestPath(ctx context.Context, g *datastructure.StreetGraph, fromIDx, toIDx int32,
	cost CostFunction, opts SearchOptions) (Path, error) {
	n := g.NumNodes()
	if fromIDx < 0 || int(fromIDx) >= n || toIDx < 0 || int(toIDx) >= n {
		return Path{}, fmt.Errorf("%w: node index out of range", datastructure.ErrNodeNotFound)
	}

	dist := make([]float64, n)
	parentEdge := make([]int32, n)
	settled := make([]bool, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		parentEdge[i] = -1
	}
	dist[fromIDx] = 0

	pq := NewMinHeap[int32]()
	pq.Insert(PriorityQueueNode[int32]{Rank: 0, Item: fromIDx})

	numSettled := 0
	for pq.Size() > 0 {
		if numSettled%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Path{}, err
			}
		}
		if opts.MaxSettledNodes > 0 && numSettled >= opts.MaxSettledNodes {
			return Path{}, fmt.Errorf("%w: settled %d nodes", datastructure.ErrSearchLimitExceeded, numSettled)
		}

		node, _ := pq.ExtractMin()
		u := node.Item
		settled[u] = true
		numSettled++
		if u == toIDx {
			return reconstructPath(g, fromIDx, toIDx, parentEdge, dist[toIDx]), nil
		}

		for _, arc := range g.Neighbors(u) {
			v := arc.ToNodeIDx
			if settled[v] {
				continue
			}
			c := cost.Cost(g.GetEdge(arc.EdgeIDx))
			if math.IsNaN(c) || c < 0 {
				e := g.GetEdge(arc.EdgeIDx)
				return Path{}, fmt.Errorf("invalid cost %v on edge %d->%d (key %d)", c, e.From, e.To, e.Key)
			}
			newDist := dist[u] + c
			if newDist >= dist[v] {
				continue
			}
			dist[v] = newDist
			parentEdge[v] = arc.EdgeIDx
			if pq.Contains(v) {
				pq.DecreaseKey(PriorityQueueNode[int32]{Rank: newDist, Item: v})
			} else {
				pq.Insert(PriorityQueueNode[int32]{Rank: newDist, Item: v})
			}
		}
	}

	from, to := g.GetNode(fromIDx), g.GetNode(toIDx)
	return Path{}, fmt.Errorf("%w: from node %d to node %d", datastructure.ErrNoPath, from.ID, to.ID)
}

func reconstructPath(g *datastructure.StreetGraph, fromIDx, toIDx int32, parentEdge []int32, cost float64) Path {
	edges := make([]int32, 0)
	nodes := []int32{toIDx}
	for cur := toIDx; cur != fromIDx; {
		eIDx := parentEdge[cur]
		edges = append(edges, eIDx)
		cur, _ = g.NodeIDx(g.GetEdge(eIDx).From)
		nodes = append(nodes, cur)
	}
	util.ReverseG(edges)
	util.ReverseG(nodes)
	return Path{NodeIDxs: nodes, EdgeIDxs: edges, Cost: cost}
}
