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

package coloring

import (
	"github.com/awslabs/ar-go-graphopt/analysis/ir"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// A MergeRule decides the color of a merge from the colors of its ends: colors[i] is the color of the i-th end of
// merge when known[i] is set. The rule is first asked when every end is colored, with final false. When flooding
// stalls, the rule is asked again for the deferred merges with final set, and the unknown ends will not be
// colored before it answers. Returning false leaves the merge uncolored, and flooding stops there.
//
// The rule must not depend on the order in which it is asked, so that the coloring does not depend on the order
// of the work queue.
type MergeRule[C comparable] func(merge *ir.Node, colors []C, known []bool, final bool) (C, bool)

// A Picker returns the index of the next item to process in a work queue of the given length. A nil Picker
// processes the most recently queued node first.
type Picker func(pending int) int

// Coloring maps control nodes to colors
type Coloring[C comparable] struct {
	colors map[*ir.Node]C
}

// Of returns the color of n, and false if n is not colored
func (c *Coloring[C]) Of(n *ir.Node) (C, bool) {
	col, ok := c.colors[n]
	return col, ok
}

// Len returns the number of colored nodes
func (c *Coloring[C]) Len() int {
	return len(c.colors)
}

// Nodes returns the colored nodes, in ID order
func (c *Coloring[C]) Nodes() []*ir.Node {
	nodes := maps.Keys(c.colors)
	slices.SortFunc(nodes, func(a, b *ir.Node) bool { return a.ID() < b.ID() })
	return nodes
}

// Equal returns true if both colorings color the same nodes with the same colors
func (c *Coloring[C]) Equal(other *Coloring[C]) bool {
	return maps.Equal(c.colors, other.colors)
}

// ColorDown floods colors forward along control edges, starting from seeds. Every node reached gets the color of
// its closest colored predecessor; seeds keep their color. Merges are colored by rule. The work queue is
// processed in the order given by pick.
func ColorDown[C comparable](seeds map[*ir.Node]C, rule MergeRule[C], pick Picker) *Coloring[C] {
	c := &Coloring[C]{colors: make(map[*ir.Node]C, len(seeds))}
	work := maps.Keys(seeds)
	slices.SortFunc(work, func(a, b *ir.Node) bool { return a.ID() < b.ID() })
	for _, n := range work {
		c.colors[n] = seeds[n]
	}
	deferred := map[*ir.Node]bool{}

	for {
		for len(work) > 0 {
			i := len(work) - 1
			if pick != nil {
				i = pick(len(work))
			}
			cur := work[i]
			work = append(work[:i], work[i+1:]...)
			col := c.colors[cur]

			if cur.Op().IsEnd() {
				m := cur.Merge()
				if m == nil {
					continue
				}
				if _, done := c.colors[m]; done {
					continue
				}
				colors, known, all := c.endColors(m)
				if !all {
					deferred[m] = true
					continue
				}
				if mc, ok := rule(m, colors, known, false); ok {
					delete(deferred, m)
					c.colors[m] = mc
					work = append(work, m)
				} else {
					deferred[m] = true
				}
				continue
			}
			for _, s := range cur.ControlSuccessors() {
				if _, done := c.colors[s]; done {
					continue
				}
				c.colors[s] = col
				work = append(work, s)
			}
		}

		// stalled: force the pending merges, lowest ID first, until one is decided
		pending := maps.Keys(deferred)
		if len(pending) == 0 {
			return c
		}
		slices.SortFunc(pending, func(a, b *ir.Node) bool { return a.ID() < b.ID() })
		for _, m := range pending {
			delete(deferred, m)
			if _, done := c.colors[m]; done {
				continue
			}
			colors, known, _ := c.endColors(m)
			if mc, ok := rule(m, colors, known, true); ok {
				c.colors[m] = mc
				work = append(work, m)
				break
			}
		}
	}
}

func (c *Coloring[C]) endColors(m *ir.Node) ([]C, []bool, bool) {
	ends := m.Ends()
	colors := make([]C, len(ends))
	known := make([]bool, len(ends))
	all := true
	for i, e := range ends {
		colors[i], known[i] = c.colors[e]
		all = all && known[i]
	}
	return colors, known, all
}
