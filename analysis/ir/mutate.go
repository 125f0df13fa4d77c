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

func (n *Node) addUsage(u *Node) {
	n.usages = append(n.usages, u)
}

func (n *Node) removeUsage(u *Node) {
	for i, x := range n.usages {
		if x == u {
			n.usages = append(n.usages[:i], n.usages[i+1:]...)
			return
		}
	}
	Assertf(false, n, "%s is not a usage", u)
}

func (n *Node) appendInput(in *Node) {
	n.inputs = append(n.inputs, in)
	if in != nil {
		in.addUsage(n)
	}
}

func (n *Node) setState(s *Node) {
	if n.state == s {
		return
	}
	if n.state != nil {
		n.state.removeUsage(n)
	}
	n.state = s
	if s != nil {
		s.addUsage(n)
	}
}

// AppendInput adds a data input at the end of the inputs of n
func (n *Node) AppendInput(in *Node) {
	n.appendInput(in)
}

// AddPhiInput adds the value flowing into phi from the last end of its merge
func (n *Node) AddPhiInput(v *Node) {
	Assertf(n.op == OpPhi, n, "not a phi")
	n.appendInput(v)
}

// SetInput sets the i-th data input of n
func (n *Node) SetInput(i int, in *Node) {
	old := n.inputs[i]
	if old == in {
		return
	}
	if old != nil {
		old.removeUsage(n)
	}
	n.inputs[i] = in
	if in != nil {
		in.addUsage(n)
	}
}

// RemoveInput removes the i-th data input of n, shifting the following inputs
func (n *Node) RemoveInput(i int) {
	if old := n.inputs[i]; old != nil {
		old.removeUsage(n)
	}
	n.inputs = append(n.inputs[:i], n.inputs[i+1:]...)
}

// ReplaceInput replaces every reference of n to old, as a data input or as state, by repl
func (n *Node) ReplaceInput(old, repl *Node) {
	for i, in := range n.inputs {
		if in == old {
			n.SetInput(i, repl)
		}
	}
	if n.state == old {
		n.setState(repl)
	}
}

// ReplaceFirstInput replaces the first data input of n equal to old by repl
func (n *Node) ReplaceFirstInput(old, repl *Node) {
	for i, in := range n.inputs {
		if in == old {
			n.SetInput(i, repl)
			return
		}
	}
}

// ClearInputs removes all the data inputs of n
func (n *Node) ClearInputs() {
	for _, in := range n.inputs {
		if in != nil {
			in.removeUsage(n)
		}
	}
	n.inputs = nil
}

// SetState attaches frame state s to n. For frame states, s is the outer state.
func (n *Node) SetState(s *Node) {
	Assertf(s == nil || s.op == OpFrameState, n, "%s is not a frame state", s)
	n.setState(s)
}

// ReplaceAtUsages makes every usage of n reference repl instead. repl may be nil to clear the references.
func (n *Node) ReplaceAtUsages(repl *Node) {
	Assertf(repl != n, n, "replacing a node by itself")
	usages := append([]*Node(nil), n.usages...)
	for _, u := range usages {
		u.ReplaceInput(n, repl)
	}
}

// ReplaceAtUsagesIf is like ReplaceAtUsages, restricted to the usages for which pred holds
func (n *Node) ReplaceAtUsagesIf(repl *Node, pred func(*Node) bool) {
	usages := append([]*Node(nil), n.usages...)
	seen := map[*Node]bool{}
	for _, u := range usages {
		if seen[u] || !pred(u) {
			continue
		}
		seen[u] = true
		u.ReplaceInput(n, repl)
	}
}

// SetNext sets the next control node of n
func (n *Node) SetNext(s *Node) {
	n.SetSucc(0, s)
}

// SetSucc sets the i-th successor slot of n. A non-nil s must not have a predecessor already.
func (n *Node) SetSucc(i int, s *Node) {
	old := n.succs[i]
	if old == s {
		return
	}
	if old != nil && old.pred == n {
		old.pred = nil
	}
	if s != nil {
		Assertf(s.op.IsControl() && !s.op.IsMerge() && s.op != OpStart, s, "%s cannot be a successor", s)
		Assertf(s.pred == nil, s, "already has predecessor %s", s.pred)
		s.pred = n
	}
	n.succs[i] = s
}

// SetTrueSucc sets the successor taken when the condition of an If holds
func (n *Node) SetTrueSucc(s *Node) { n.SetSucc(0, s) }

// SetFalseSucc sets the successor taken when the condition of an If does not hold
func (n *Node) SetFalseSucc(s *Node) { n.SetSucc(1, s) }

// SetExceptionEdge sets the exception successor of an invoke
func (n *Node) SetExceptionEdge(s *Node) {
	Assertf(n.op == OpInvoke, n, "only invokes have an exception edge")
	n.SetSucc(1, s)
}

// ReplaceAtPredecessor makes the predecessor of n point to repl instead of n
func (n *Node) ReplaceAtPredecessor(repl *Node) {
	p := n.pred
	if p == nil {
		return
	}
	for i, s := range p.succs {
		if s == n {
			p.SetSucc(i, repl)
			return
		}
	}
	Assertf(false, n, "predecessor %s does not reference the node", p)
}

// AddEnd appends end e to merge m. The phis of m must receive their new input separately.
func (m *Node) AddEnd(e *Node) {
	Assertf(m.op.IsMerge(), m, "not a merge")
	Assertf(e.op == OpEnd, e, "only forward ends can be added to a merge")
	Assertf(e.merge == nil, e, "end already flows into %s", e.merge)
	m.ends = append(m.ends, e)
	e.merge = m
}

// SetEnd replaces the end at position i of merge m by e, keeping the phi inputs of that position
func (m *Node) SetEnd(i int, e *Node) {
	old := m.ends[i]
	if old == e {
		return
	}
	Assertf(e.op == old.op, e, "cannot replace %s by %s", old, e)
	Assertf(e.merge == nil, e, "end already flows into %s", e.merge)
	old.merge = nil
	m.ends[i] = e
	e.merge = m
}

// RemoveEnd detaches e from merge m and drops the matching input of every phi of m
func (m *Node) RemoveEnd(e *Node) {
	i := m.EndIndex(e)
	Assertf(i >= 0, e, "not an end of %s", m)
	m.ends = append(m.ends[:i], m.ends[i+1:]...)
	for _, phi := range m.phis {
		phi.RemoveInput(i)
	}
	e.merge = nil
}

// PhiInput returns the value flowing into phi from end e of its merge
func (n *Node) PhiInput(e *Node) *Node {
	i := n.merge.EndIndex(e)
	Assertf(i >= 0, e, "not an end of %s", n.merge)
	return n.inputs[i]
}

// AddBeforeFixed inserts fixed node n between fixed and its predecessor
func (g *Graph) AddBeforeFixed(fixed, n *Node) {
	Assertf(fixed.pred != nil, fixed, "no predecessor")
	Assertf(n.op.HasNext() && n.Next() == nil, n, "cannot be inserted")
	fixed.ReplaceAtPredecessor(n)
	n.SetNext(fixed)
}

// AddAfterFixed inserts fixed node n between fixed and its next node
func (g *Graph) AddAfterFixed(fixed, n *Node) {
	Assertf(n.op.HasNext() && n.Next() == nil, n, "cannot be inserted")
	next := fixed.Next()
	fixed.SetNext(nil)
	fixed.SetNext(n)
	n.SetNext(next)
}

// RemoveFixed unlinks fixed node n from the control flow and kills it. n must not have usages.
func (g *Graph) RemoveFixed(n *Node) {
	Assertf(n.op.HasNext() && !n.op.IsMerge(), n, "cannot remove")
	next := n.Next()
	n.SetNext(nil)
	n.ReplaceAtPredecessor(next)
	n.Kill()
}

// ReplaceFixed replaces control node n by repl at its predecessor and at its usages, and kills n. The
// successors of n are dropped; the caller must have moved them beforehand.
func (g *Graph) ReplaceFixed(n, repl *Node) {
	n.ReplaceAtUsages(repl)
	n.ReplaceAtPredecessor(repl)
	for i := range n.succs {
		n.SetSucc(i, nil)
	}
	n.Kill()
}

// Kill removes n from the graph. n must not have usages; its inputs and control links are detached.
func (n *Node) Kill() {
	if !n.alive {
		return
	}
	Assertf(len(n.usages) == 0, n, "killing a node that still has usages %v", n.usages)
	n.ClearInputs()
	n.setState(nil)
	n.ReplaceAtPredecessor(nil)
	for i, s := range n.succs {
		if s != nil {
			n.SetSucc(i, nil)
		}
	}
	if n.op == OpPhi && n.merge != nil {
		phis := n.merge.phis
		for i, p := range phis {
			if p == n {
				n.merge.phis = append(phis[:i], phis[i+1:]...)
				break
			}
		}
	}
	if n.op.IsEnd() && n.merge != nil && n.merge.alive {
		if i := n.merge.EndIndex(n); i >= 0 {
			n.merge.ends = append(n.merge.ends[:i], n.merge.ends[i+1:]...)
		}
	}
	n.merge = nil
	for _, e := range n.ends {
		if e.merge == n {
			e.merge = nil
		}
	}
	n.ends = nil
	n.phis = nil
	n.alive = false
	n.graph.live--
}

// KillWithUnusedFloatingInputs kills n, then every floating input left without usages, transitively. Parameters
// are kept.
func (n *Node) KillWithUnusedFloatingInputs() {
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !cur.alive || cur.HasUsages() {
			continue
		}
		candidates := append([]*Node(nil), cur.inputs...)
		if cur.state != nil {
			candidates = append(candidates, cur.state)
		}
		cur.Kill()
		for _, in := range candidates {
			if in != nil && in.alive && in.op.IsFloating() && in.op != OpParam && !in.HasUsages() {
				stack = append(stack, in)
			}
		}
	}
}
