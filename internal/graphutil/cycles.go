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
	"github.com/yourbasic/graph"
	"golang.org/x/exp/slices"
)

// FindAllElementaryCycles returns every elementary cycle of g, with Johnson's algorithm ("Finding All the
// Elementary Circuits of a Directed Graph", 1975).
//
// Each cycle starts and ends with its smallest node id. The result is deterministic since the adjacency lists of
// g are sorted.
func FindAllElementaryCycles(g *Digraph) [][]int64 {
	var cycles [][]int64
	remaining := g.Keys
	for len(remaining) > 0 {
		root, component := leastCyclicComponent(g.Subgraph(remaining))
		if component == nil {
			break
		}
		c := &circuits{
			graph:   component,
			root:    root,
			blocked: map[int64]bool{},
			waiting: map[int64][]int64{},
		}
		c.search(root)
		cycles = append(cycles, c.found...)
		for len(remaining) > 0 && remaining[0] <= root {
			remaining = remaining[1:]
		}
	}
	return cycles
}

// leastCyclicComponent returns the smallest node of g that is on a cycle, and the strongly connected component of
// g holding it. The component is nil when g is acyclic.
func leastCyclicComponent(g *Digraph) (int64, *Digraph) {
	var least []int
	for _, scc := range graph.StrongComponents(g) {
		if len(scc) == 1 && !g.HasEdgeFromTo(int64(scc[0]), int64(scc[0])) {
			continue
		}
		if least == nil || minOf(scc) < minOf(least) {
			least = scc
		}
	}
	if least == nil {
		return -1, nil
	}
	ids := make([]int64, len(least))
	for i, x := range least {
		ids[i] = int64(x)
	}
	return int64(minOf(least)), g.Subgraph(ids)
}

func minOf(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		if x < m {
			m = x
		}
	}
	return m
}

// circuits is the state of the search of the cycles through root
type circuits struct {
	graph   *Digraph
	root    int64
	path    []int64
	blocked map[int64]bool
	// waiting[w] are the nodes to unblock when w is unblocked
	waiting map[int64][]int64
	found   [][]int64
}

// search extends the current path with v, and returns true if a cycle was closed from there
func (c *circuits) search(v int64) bool {
	closed := false
	c.path = append(c.path, v)
	c.blocked[v] = true
	for _, w := range c.graph.Successors(v) {
		switch {
		case w == c.root:
			cycle := append(append([]int64(nil), c.path...), w)
			c.found = append(c.found, cycle)
			closed = true
		case !c.blocked[w]:
			closed = c.search(w) || closed
		}
	}
	if closed {
		c.unblock(v)
	} else {
		for _, w := range c.graph.Successors(v) {
			if !slices.Contains(c.waiting[w], v) {
				c.waiting[w] = append(c.waiting[w], v)
			}
		}
	}
	c.path = c.path[:len(c.path)-1]
	return closed
}

func (c *circuits) unblock(v int64) {
	c.blocked[v] = false
	waiting := c.waiting[v]
	delete(c.waiting, v)
	for _, w := range waiting {
		if c.blocked[w] {
			c.unblock(w)
		}
	}
}
