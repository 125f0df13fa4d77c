// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package graphutil

import (
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
)

// Digraph is a directed graph over integer node ids, built to work with existing graph libraries. It implements
// the methods to satisfy yourbasic's graph.Iterator and Gonum's graph.Directed. Adjacency lists are kept sorted,
// so iteration orders are deterministic.
type Digraph struct {
	// The order of the graph: every id is in [0, order)
	order int

	// Keys are all the node ids, sorted
	Keys []int64

	out map[int64][]int64
	in  map[int64][]int64
}

// NewDigraph returns an empty graph whose node ids will be smaller than order
func NewDigraph(order int) *Digraph {
	return &Digraph{
		order: order,
		out:   map[int64][]int64{},
		in:    map[int64][]int64{},
	}
}

// NewDigraphFrom builds the graph whose nodes are nodes, with an edge from each node to each of its successors.
// Successors that are not in nodes are ignored.
func NewDigraphFrom[T any](nodes []T, id func(T) int64, successors func(T) []T) *Digraph {
	order := 0
	for _, n := range nodes {
		if i := int(id(n)) + 1; i > order {
			order = i
		}
	}
	g := NewDigraph(order)
	for _, n := range nodes {
		g.AddNode(id(n))
	}
	for _, n := range nodes {
		for _, s := range successors(n) {
			if g.HasNode(id(s)) {
				g.AddEdge(id(n), id(s))
			}
		}
	}
	return g
}

// AddNode adds a node with the given id, if it is not already present
func (g *Digraph) AddNode(id int64) {
	if g.HasNode(id) {
		return
	}
	if int(id) >= g.order {
		g.order = int(id) + 1
	}
	g.out[id] = nil
	g.in[id] = nil
	i, _ := slices.BinarySearch(g.Keys, id)
	g.Keys = slices.Insert(g.Keys, i, id)
}

// HasNode returns true if id is a node of g
func (g *Digraph) HasNode(id int64) bool {
	_, ok := g.out[id]
	return ok
}

// AddEdge adds an edge between two nodes of the graph. Adding an existing edge is a no-op.
func (g *Digraph) AddEdge(from, to int64) {
	i, found := slices.BinarySearch(g.out[from], to)
	if found {
		return
	}
	g.out[from] = slices.Insert(g.out[from], i, to)
	j, _ := slices.BinarySearch(g.in[to], from)
	g.in[to] = slices.Insert(g.in[to], j, from)
}

// Successors returns the sorted successor ids of id
func (g *Digraph) Successors(id int64) []int64 {
	return g.out[id]
}

// Predecessors returns the sorted predecessor ids of id
func (g *Digraph) Predecessors(id int64) []int64 {
	return g.in[id]
}

// Subgraph returns a new graph that is the original graph with only the nodes in include. Only the edges that have
// both the origin and destination nodes in the include nodes are kept in the resulting graph.
// The subgraph's order is the same as in the original, meaning that node ids stay consistent across subgraphs.
func (g *Digraph) Subgraph(include []int64) *Digraph {
	sub := NewDigraph(g.order)
	for _, id := range include {
		if g.HasNode(id) {
			sub.AddNode(id)
		}
	}
	for _, id := range sub.Keys {
		for _, s := range g.out[id] {
			if sub.HasNode(s) {
				sub.AddEdge(id, s)
			}
		}
	}
	return sub
}

// Order implements the order of the graph.Iterator interface for the Digraph
func (g *Digraph) Order() int {
	return g.order
}

// Visit implements the graph.Iterator interface for the Digraph
func (g *Digraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	for _, w := range g.out[int64(v)] {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

// *************** Graph interface implementation **********************

// Node implements the Graph interface
func (g *Digraph) Node(id int64) graph.Node {
	if !g.HasNode(id) {
		return nil
	}
	return DNode(id)
}

// Nodes returns the set of nodes in the graph
func (g *Digraph) Nodes() graph.Nodes {
	return nodesOf(g.Keys)
}

// From returns the set of nodes reachable from the id by one edge
func (g *Digraph) From(id int64) graph.Nodes {
	return nodesOf(g.out[id])
}

// To returns the set of nodes from which id is reachable by one edge
func (g *Digraph) To(id int64) graph.Nodes {
	return nodesOf(g.in[id])
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers
func (g *Digraph) HasEdgeBetween(xid, yid int64) bool {
	return g.HasEdgeFromTo(xid, yid) || g.HasEdgeFromTo(yid, xid)
}

// HasEdgeFromTo returns true if there is an edge from uid to vid
func (g *Digraph) HasEdgeFromTo(uid, vid int64) bool {
	_, found := slices.BinarySearch(g.out[uid], vid)
	return found
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (g *Digraph) Edge(uid, vid int64) graph.Edge {
	if g.HasEdgeFromTo(uid, vid) {
		return DEdge{from: DNode(uid), to: DNode(vid)}
	}
	return nil
}

func nodesOf(ids []int64) graph.Nodes {
	nodes := make([]graph.Node, len(ids))
	for i, id := range ids {
		nodes[i] = DNode(id)
	}
	return iterator.NewOrderedNodes(nodes)
}

// *************** Nodes implementation **********************

// DNode implements the graph.Node interface
type DNode int64

// ID returns the id of the node
func (n DNode) ID() int64 {
	return int64(n)
}

// *************** Edge implementation **********************

// DEdge implements the graph.Edge interface
type DEdge struct {
	from DNode
	to   DNode
}

// From returns the origin of the edge
func (e DEdge) From() graph.Node {
	return e.from
}

// To returns the destination of the edge
func (e DEdge) To() graph.Node {
	return e.to
}

// ReversedEdge returns a new value representing the reversed edge
func (e DEdge) ReversedEdge() graph.Edge {
	return DEdge{from: e.to, to: e.from}
}
