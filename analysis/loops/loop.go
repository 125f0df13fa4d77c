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

package loops

import (
	"fmt"

	"github.com/awslabs/ar-go-graphopt/analysis/ir"
	"github.com/awslabs/ar-go-graphopt/internal/graphutil"
	"github.com/yourbasic/graph"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/container/intsets"
	"gonum.org/v1/gonum/graph/flow"
)

// A Loop is a natural loop of a graph, identified by its header. Its member and exit sets are computed when first
// needed, and computed again after a transformation invalidates them.
type Loop struct {
	set    *LoopSet
	header *ir.Node
	parent *Loop

	dirty   bool
	members *intsets.Sparse
	exits   []*ir.Node

	// computed on demand, and reset with the members
	variant *intsets.Sparse
	inside  *intsets.Sparse
}

// Header returns the loop header
func (l *Loop) Header() *ir.Node {
	return l.header
}

// Parent returns the innermost loop containing l, or nil for an outermost loop
func (l *Loop) Parent() *Loop {
	return l.parent
}

// Children returns the loops whose parent is l, in header ID order
func (l *Loop) Children() []*Loop {
	var res []*Loop
	for _, c := range l.set.loops {
		if c.parent == l {
			res = append(res, c)
		}
	}
	return res
}

// Depth returns the number of loops containing l
func (l *Loop) Depth() int {
	d := 0
	for p := l.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// Members returns the set of the IDs of the control nodes of the loop, nested loops included
func (l *Loop) Members() *intsets.Sparse {
	l.ensure()
	return l.members
}

// Contains returns true if control node n is a member of l
func (l *Loop) Contains(n *ir.Node) bool {
	return n != nil && l.Members().Has(int(n.ID()))
}

// MemberNodes returns the control nodes of the loop in ID order
func (l *Loop) MemberNodes() []*ir.Node {
	return nodesOf(l.set.graph, l.Members())
}

// Exits returns the block starts outside the loop that control leaves the loop to, in ID order
func (l *Loop) Exits() []*ir.Node {
	l.ensure()
	return l.exits
}

func (l *Loop) String() string {
	return fmt.Sprintf("loop %s", l.header)
}

func (l *Loop) ensure() {
	if l.dirty || l.members == nil {
		l.compute()
	}
}

// compute floods backward from the loop ends to the header. Nested loops are entered through their own loop ends,
// since those are control predecessors of their headers.
func (l *Loop) compute() {
	members := &intsets.Sparse{}
	members.Insert(int(l.header.ID()))
	stack := append([]*ir.Node(nil), l.header.LoopEnds()...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !members.Insert(int(cur.ID())) {
			continue
		}
		stack = append(stack, cur.ControlPredecessors()...)
	}

	var exits []*ir.Node
	for _, n := range nodesOf(l.set.graph, members) {
		if !n.Op().IsSplit() {
			continue
		}
		for _, s := range n.ControlSuccessors() {
			if members.Has(int(s.ID())) {
				continue
			}
			ir.Assertf(s.Op() == ir.OpBegin, s, "exit of %s is not a block start", l)
			exits = append(exits, s)
		}
	}
	slices.SortFunc(exits, func(a, b *ir.Node) bool { return a.ID() < b.ID() })

	l.members = members
	l.exits = exits
	l.variant = nil
	l.inside = nil
	l.dirty = false
}

// A LoopSet holds the loops of a graph
type LoopSet struct {
	graph *ir.Graph
	// sorted by header ID
	loops []*Loop
}

// Discover finds the loops of g and their nesting. It panics if the control flow of g is not reducible: every
// cycle must go through a loop header that dominates its loop ends.
func Discover(g *ir.Graph) *LoopSet {
	s := &LoopSet{graph: g}
	headers := g.NodesOf(ir.OpLoopBegin)
	if len(headers) == 0 {
		return s
	}
	checkReducible(g, headers)
	for _, h := range headers {
		s.loops = append(s.loops, &Loop{set: s, header: h})
	}
	s.computeParents()
	return s
}

// Graph returns the graph of the loops
func (s *LoopSet) Graph() *ir.Graph {
	return s.graph
}

// Loops returns the loops in header ID order
func (s *LoopSet) Loops() []*Loop {
	return s.loops
}

// Len returns the number of loops
func (s *LoopSet) Len() int {
	return len(s.loops)
}

// LoopOf returns the loop of header, or nil
func (s *LoopSet) LoopOf(header *ir.Node) *Loop {
	for _, l := range s.loops {
		if l.header == header {
			return l
		}
	}
	return nil
}

// Innermost returns the innermost loop containing control node n, or nil
func (s *LoopSet) Innermost(n *ir.Node) *Loop {
	var best *Loop
	for _, l := range s.loops {
		if l.Contains(n) && (best == nil || l.Depth() > best.Depth()) {
			best = l
		}
	}
	return best
}

// Tree returns the nesting of the loops. The root is labelled nil and stands for the whole graph.
func (s *LoopSet) Tree() *graphutil.Tree[*Loop] {
	root := graphutil.NewTree[*Loop](nil)
	trees := map[*Loop]*graphutil.Tree[*Loop]{}
	var add func(l *Loop) *graphutil.Tree[*Loop]
	add = func(l *Loop) *graphutil.Tree[*Loop] {
		if t, ok := trees[l]; ok {
			return t
		}
		parent := root
		if l.parent != nil {
			parent = add(l.parent)
		}
		t := parent.AddChild(l)
		trees[l] = t
		return t
	}
	for _, l := range s.loops {
		add(l)
	}
	return root
}

// Invalidate marks l and every loop containing it as needing their member and exit sets computed again
func (s *LoopSet) Invalidate(l *Loop) {
	for cur := l; cur != nil; cur = cur.parent {
		cur.dirty = true
	}
}

// add registers the loop of header, whose parent is parent
func (s *LoopSet) add(header *ir.Node, parent *Loop) *Loop {
	l := &Loop{set: s, header: header, parent: parent}
	s.loops = append(s.loops, l)
	slices.SortFunc(s.loops, func(a, b *Loop) bool { return a.header.ID() < b.header.ID() })
	return l
}

// computeParents sets the parent of every loop to the smallest other loop containing its header
func (s *LoopSet) computeParents() {
	for _, l := range s.loops {
		l.parent = nil
		for _, o := range s.loops {
			if o == l || !o.Contains(l.header) {
				continue
			}
			if l.parent == nil || o.Members().Len() < l.parent.Members().Len() {
				l.parent = o
			}
		}
	}
}

// descendants returns the loops nested in l at any depth, in header ID order
func (s *LoopSet) descendants(l *Loop) []*Loop {
	var res []*Loop
	for _, o := range s.loops {
		for p := o.parent; p != nil; p = p.parent {
			if p == l {
				res = append(res, o)
				break
			}
		}
	}
	return res
}

// checkReducible asserts that every cycle of the control flow goes through a loop header, and that every header
// dominates its loop ends
func checkReducible(g *ir.Graph, headers []*ir.Node) {
	var control []*ir.Node
	for _, n := range g.Nodes() {
		if n.Op().IsControl() {
			control = append(control, n)
		}
	}
	cfg := graphutil.NewDigraphFrom(control, nodeID, (*ir.Node).ControlSuccessors)

	for _, scc := range graph.StrongComponents(cfg) {
		if len(scc) < 2 {
			continue
		}
		found := false
		for _, id := range scc {
			if n := g.Node(ir.NodeID(id)); n != nil && n.Op() == ir.OpLoopBegin {
				found = true
				break
			}
		}
		ir.Assertf(found, g.Node(ir.NodeID(scc[0])), "control cycle without a loop header")
	}

	dom := flow.Dominators(cfg.Node(nodeID(g.Start())), cfg)
	for _, h := range headers {
		for _, e := range h.LoopEnds() {
			if dom.DominatorOf(nodeID(e)) == nil {
				// unreachable
				continue
			}
			ir.Assertf(dominates(dom, nodeID(h), nodeID(e)), e, "%s does not dominate its loop end", h)
		}
	}
}

func dominates(dom flow.DominatorTree, a, b int64) bool {
	for cur := dom.DominatorOf(b); cur != nil; cur = dom.DominatorOf(cur.ID()) {
		if cur.ID() == a {
			return true
		}
	}
	return false
}

func nodeID(n *ir.Node) int64 { return int64(n.ID()) }

func nodesOf(g *ir.Graph, set *intsets.Sparse) []*ir.Node {
	var res []*ir.Node
	for _, id := range set.AppendTo(nil) {
		if n := g.Node(ir.NodeID(id)); n != nil {
			res = append(res, n)
		}
	}
	return res
}
