package kv

import "lintang/saferoute/pkg/datastructure"

type saveChunkJobItem struct {
	Key   []byte
	Nodes []datastructure.Node
	Edges []datastructure.Edge
}

type saveChunkResult struct {
	Key []byte
	Val []byte
	Err error
}

type loadChunkJobItem struct {
	Pos    int
	Key    []byte
	IsNode bool
}

type loadChunkResult struct {
	Pos    int
	IsNode bool
	Nodes  []datastructure.Node
	Edges  []datastructure.Edge
	Err    error
}
