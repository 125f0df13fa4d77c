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

package ir

// KillCFG removes the control region starting at fixed node start: every control node reachable from start that
// is not also reachable from the rest of the graph. Merges that keep some of their ends lose the dead ends and
// the matching phi inputs; merges left with a single end are collapsed into a plain block start. Floating nodes
// depending on the dead region are removed, as well as floating inputs left without usages.
func KillCFG(start *Node) {
	if !start.IsAlive() {
		return
	}
	start.ReplaceAtPredecessor(nil)

	dead := map[*Node]bool{}
	var order []*Node
	deadEnds := map[*Node][]*Node{}
	var partial []*Node

	stack := []*Node{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if dead[cur] || !cur.alive {
			continue
		}
		dead[cur] = true
		order = append(order, cur)
		if cur.op.IsEnd() {
			m := cur.merge
			if m == nil || dead[m] {
				continue
			}
			if len(deadEnds[m]) == 0 {
				partial = append(partial, m)
			}
			deadEnds[m] = append(deadEnds[m], cur)
			if len(deadEnds[m]) == len(m.ends) || (m.op == OpLoopBegin && m.ends[0] == cur) {
				stack = append(stack, m)
			}
			continue
		}
		for i := len(cur.succs) - 1; i >= 0; i-- {
			if s := cur.succs[i]; s != nil {
				stack = append(stack, s)
			}
		}
	}

	// shrink the merges that survive
	var collapse []*Node
	var inputs []*Node
	for _, m := range partial {
		if dead[m] {
			continue
		}
		for _, e := range deadEnds[m] {
			i := m.EndIndex(e)
			for _, phi := range m.phis {
				if v := phi.inputs[i]; v != nil {
					inputs = append(inputs, v)
				}
			}
			m.RemoveEnd(e)
		}
		if (m.op == OpMerge && len(m.ends) == 1) || (m.op == OpLoopBegin && len(m.ends) == 1) {
			collapse = append(collapse, m)
		}
	}

	// floating nodes that depend on the region die with it
	var deadFloating []*Node
	work := append([]*Node(nil), order...)
	for _, n := range order {
		if n.op.IsMerge() {
			work = append(work, n.phis...)
		}
	}
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]
		if cur.op == OpPhi && !dead[cur] {
			dead[cur] = true
			deadFloating = append(deadFloating, cur)
		}
		for _, u := range cur.usages {
			if dead[u] {
				continue
			}
			Assertf(u.op.IsFloating(), u, "live control node uses %s from a dead region", cur)
			dead[u] = true
			deadFloating = append(deadFloating, u)
			work = append(work, u)
		}
	}

	for _, n := range append(order, deadFloating...) {
		for _, in := range n.inputs {
			if in != nil && !dead[in] {
				inputs = append(inputs, in)
			}
		}
		if n.state != nil && !dead[n.state] {
			inputs = append(inputs, n.state)
		}
		n.ClearInputs()
		n.setState(nil)
	}
	for _, n := range deadFloating {
		n.Kill()
	}
	for _, n := range order {
		for i := range n.succs {
			n.succs[i] = nil
		}
		n.pred = nil
		n.phis = nil
		n.Kill()
	}
	for _, m := range collapse {
		collapseMerge(m)
	}
	for _, in := range inputs {
		if in.alive && in.op.IsFloating() && in.op != OpParam && !in.HasUsages() {
			in.KillWithUnusedFloatingInputs()
		}
	}
}

// collapseMerge replaces a merge with a single end by a block start
func collapseMerge(m *Node) {
	e := m.ends[0]
	for _, phi := range append([]*Node(nil), m.phis...) {
		v := phi.inputs[0]
		phi.ReplaceAtUsages(v)
		phi.Kill()
	}
	g := m.graph
	b := g.Begin()
	next := m.Next()
	m.SetNext(nil)
	e.ReplaceAtPredecessor(b)
	b.SetNext(next)
	m.ReplaceAtUsages(b)
	if s := m.state; s != nil {
		m.setState(nil)
		if !s.HasUsages() {
			s.KillWithUnusedFloatingInputs()
		}
	}
	m.RemoveEnd(e)
	e.Kill()
	m.Kill()
}
