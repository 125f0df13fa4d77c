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
	"golang.org/x/exp/slices"
)

// A Splitter tells SplitByColor which values depend on the color, and how to build them
type Splitter[C comparable] interface {
	// Candidate returns true if floating node n has a distinct value under each color
	Candidate(n *ir.Node) bool
	// Materialize returns the value of candidate n under color c. It is called at most once per candidate and
	// color; values of other nodes under other colors are available through s.Value.
	Materialize(n *ir.Node, c C, s *Split[C]) *ir.Node
	// Fix is called for a node that depends on a candidate and is used under the single color c. Its inputs have
	// been redirected to their values under c.
	Fix(n *ir.Node, c C)
	// FixSplit is called for every clone of n made for color c, once its inputs have been redirected
	FixSplit(n *ir.Node, clone *ir.Node, c C)
}

// Split holds the values of the nodes reconciled by SplitByColor
type Split[C comparable] struct {
	coloring *Coloring[C]
	splitter Splitter[C]

	affected map[*ir.Node]bool
	// colors of each affected node, in discovery order
	colors map[*ir.Node][]C
	// values of each affected node under each of its colors
	values map[*ir.Node]map[C]*ir.Node
}

// phiEdge is the input of a phi at one end of its merge. A phi edge is used under the color of its end.
type phiEdge struct {
	phi   *ir.Node
	index int
	value *ir.Node
}

// Coloring returns the coloring the split was computed from
func (s *Split[C]) Coloring() *Coloring[C] {
	return s.coloring
}

// Colors returns the colors under which n is used, and nil if n does not depend on a candidate
func (s *Split[C]) Colors(n *ir.Node) []C {
	return s.colors[n]
}

// Value returns the node that stands for n under color c: n itself when n does not depend on any candidate, the
// materialized value of a candidate, or the clone of n made for c.
func (s *Split[C]) Value(n *ir.Node, c C) *ir.Node {
	if n == nil || !s.affected[n] {
		return n
	}
	if v, ok := s.values[n][c]; ok {
		return v
	}
	ir.Assertf(s.splitter.Candidate(n), n, "no value for color %v", c)
	if s.values[n] == nil {
		s.values[n] = map[C]*ir.Node{}
	}
	v := s.splitter.Materialize(n, c, s)
	ir.Assertf(v != nil, n, "no materialized value for color %v", c)
	s.values[n][c] = v
	return v
}

// SplitByColor makes every colored control node observe the values of its color.
//
// The floating nodes reachable backward from colored control nodes, and from the phi inputs at colored ends,
// are visited. Those that depend on a candidate of splitter are reconciled: candidates are replaced by their
// materialized value, and the other nodes are cloned once per color they are used under. A node is used under
// the colors of its control usages, the colors of the ends of its phi usages, and the colors of its reconciled
// floating usages. Phis are never cloned: their inputs are redirected end by end.
func SplitByColor[C comparable](coloring *Coloring[C], splitter Splitter[C]) *Split[C] {
	s := &Split[C]{
		coloring: coloring,
		splitter: splitter,
		affected: map[*ir.Node]bool{},
		colors:   map[*ir.Node][]C{},
		values:   map[*ir.Node]map[C]*ir.Node{},
	}
	users := coloring.Nodes()
	var edges []phiEdge
	for _, e := range users {
		if !e.Op().IsEnd() || e.Merge() == nil {
			continue
		}
		i := e.Merge().EndIndex(e)
		for _, phi := range e.Merge().Phis() {
			if !splitter.Candidate(phi) {
				edges = append(edges, phiEdge{phi: phi, index: i, value: phi.Input(i)})
			}
		}
	}
	reached := s.reachBackward(users, edges)
	s.markAffected(reached)

	var nodes []*ir.Node
	inputs := map[*ir.Node][]*ir.Node{}
	for _, n := range reached {
		if s.affected[n] {
			nodes = append(nodes, n)
			inputs[n] = referencesOf(n)
		}
	}
	userInputs := map[*ir.Node][]*ir.Node{}
	for _, u := range users {
		userInputs[u] = referencesOf(u)
	}

	s.computeColors(nodes)
	type version struct {
		n, v *ir.Node
		c    C
	}
	var versions []version
	for _, n := range nodes {
		if splitter.Candidate(n) {
			continue
		}
		cols := s.colors[n]
		if len(cols) == 0 {
			continue
		}
		s.values[n] = map[C]*ir.Node{}
		keep := !s.hasUncoloredUsage(n)
		for i, c := range cols {
			v := n
			if i > 0 || !keep {
				v = n.Graph().Duplicate(n)
			}
			s.values[n][c] = v
			versions = append(versions, version{n: n, v: v, c: c})
		}
	}

	for _, ver := range versions {
		s.redirect(ver.v, inputs[ver.n], ver.c)
		if ver.v != ver.n {
			splitter.FixSplit(ver.n, ver.v, ver.c)
		} else if len(s.colors[ver.n]) == 1 {
			splitter.Fix(ver.n, ver.c)
		}
	}
	for _, u := range users {
		c, _ := coloring.Of(u)
		s.redirect(u, userInputs[u], c)
	}
	for _, pe := range edges {
		if s.affected[pe.value] {
			c, _ := coloring.Of(pe.phi.Merge().Ends()[pe.index])
			pe.phi.SetInput(pe.index, s.Value(pe.value, c))
		}
	}
	return s
}

// reachBackward returns the floating nodes reachable backward from the references of users and from edges, in ID
// order. The search does not go past candidates and phis.
func (s *Split[C]) reachBackward(users []*ir.Node, edges []phiEdge) []*ir.Node {
	seen := map[*ir.Node]bool{}
	var stack []*ir.Node
	push := func(x *ir.Node) {
		if x != nil && x.Op().IsFloating() && !seen[x] {
			seen[x] = true
			stack = append(stack, x)
		}
	}
	for _, u := range users {
		for _, x := range referencesOf(u) {
			push(x)
		}
	}
	for _, pe := range edges {
		push(pe.value)
	}
	var res []*ir.Node
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		res = append(res, cur)
		if cur.Op() == ir.OpPhi || s.splitter.Candidate(cur) {
			continue
		}
		for _, x := range referencesOf(cur) {
			push(x)
		}
	}
	slices.SortFunc(res, func(a, b *ir.Node) bool { return a.ID() < b.ID() })
	return res
}

// markAffected marks the candidates of reached and, transitively, their usages in reached other than phis
func (s *Split[C]) markAffected(reached []*ir.Node) {
	in := make(map[*ir.Node]bool, len(reached))
	var work []*ir.Node
	for _, n := range reached {
		in[n] = true
		if s.splitter.Candidate(n) {
			s.affected[n] = true
			work = append(work, n)
		}
	}
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		for _, u := range cur.Usages() {
			if in[u] && !s.affected[u] && u.Op() != ir.OpPhi {
				s.affected[u] = true
				work = append(work, u)
			}
		}
	}
}

// computeColors computes the colors each affected node is used under. A node is processed once all its
// reconciled usages are; the others are put back at the end of the queue.
func (s *Split[C]) computeColors(nodes []*ir.Node) {
	queue := append([]*ir.Node(nil), nodes...)
	done := map[*ir.Node]bool{}
	stalled := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if !s.ready(cur, done) {
			queue = append(queue, cur)
			stalled++
			ir.Assertf(stalled <= len(queue), cur, "data cycle without a phi among the split nodes")
			continue
		}
		stalled = 0
		var cols []C
		add := func(c C) {
			if !slices.Contains(cols, c) {
				cols = append(cols, c)
			}
		}
		for _, u := range uniqueUsages(cur) {
			switch {
			case u.Op().IsControl():
				if c, ok := s.coloring.Of(u); ok {
					add(c)
				}
			case s.splitter.Candidate(u):
			case u.Op() == ir.OpPhi:
				ends := u.Merge().Ends()
				for i, x := range u.Inputs() {
					if x != cur {
						continue
					}
					if c, ok := s.coloring.Of(ends[i]); ok {
						add(c)
					}
				}
			case s.affected[u]:
				for _, c := range s.colors[u] {
					add(c)
				}
			}
		}
		s.colors[cur] = cols
		done[cur] = true
	}
}

func (s *Split[C]) ready(n *ir.Node, done map[*ir.Node]bool) bool {
	for _, u := range n.Usages() {
		if s.reconciled(u) && !done[u] {
			return false
		}
	}
	return true
}

// reconciled returns true for the floating nodes that get one value per color and are not candidates
func (s *Split[C]) reconciled(n *ir.Node) bool {
	return s.affected[n] && !s.splitter.Candidate(n)
}

// hasUncoloredUsage returns true if some usage of n keeps referencing n itself after the split
func (s *Split[C]) hasUncoloredUsage(n *ir.Node) bool {
	for _, u := range n.Usages() {
		switch {
		case u.Op().IsControl():
			if _, ok := s.coloring.Of(u); !ok {
				return true
			}
		case s.splitter.Candidate(u):
			return true
		case u.Op() == ir.OpPhi:
			ends := u.Merge().Ends()
			for i, x := range u.Inputs() {
				if x != n {
					continue
				}
				if _, ok := s.coloring.Of(ends[i]); !ok {
					return true
				}
			}
		case !s.affected[u] || len(s.colors[u]) == 0:
			return true
		}
	}
	return false
}

// redirect makes u reference the values under c of the nodes in refs: the inputs of u followed by its state, as
// they were before the split
func (s *Split[C]) redirect(u *ir.Node, refs []*ir.Node, c C) {
	inputs := len(u.Inputs())
	for i, x := range refs {
		if x == nil || !s.affected[x] {
			continue
		}
		if i >= inputs {
			u.SetState(s.Value(x, c))
			continue
		}
		u.SetInput(i, s.Value(x, c))
	}
}

func referencesOf(n *ir.Node) []*ir.Node {
	refs := append([]*ir.Node(nil), n.Inputs()...)
	if st := n.State(); st != nil {
		refs = append(refs, st)
	}
	return refs
}

func uniqueUsages(n *ir.Node) []*ir.Node {
	var res []*ir.Node
	for _, u := range n.Usages() {
		if !slices.Contains(res, u) {
			res = append(res, u)
		}
	}
	return res
}
