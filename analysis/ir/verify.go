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

import (
	"fmt"

	"github.com/awslabs/ar-go-graphopt/internal/funcutil"
	"github.com/awslabs/ar-go-graphopt/internal/graphutil"
	"github.com/yourbasic/graph"
	"golang.org/x/exp/slices"
)

// Verify checks the structural invariants of g and returns an error describing the first violation found:
//   - inputs and usages mirror each other, and only reference live nodes of g
//   - control links are symmetric, every fixed node with a next has one, and If successors are block starts
//   - every phi has one input per end of its merge
//   - forward control edges are acyclic, so every control cycle goes through a loop end
//   - every data cycle goes through a phi
func Verify(g *Graph) error {
	nodes := g.Nodes()
	for _, n := range nodes {
		if err := verifyEdges(g, n); err != nil {
			return err
		}
		if err := verifyControl(n); err != nil {
			return err
		}
	}

	forward := graphutil.NewDigraphFrom(controlNodes(nodes), nodeID, forwardSuccessors)
	if !graph.Acyclic(forward) {
		return fmt.Errorf("forward control edges of %s contain a cycle", g.Method)
	}

	data := funcutil.Filter(nodes, func(n *Node) bool { return n.op.IsFloating() })
	for _, scc := range graphutil.StronglyConnectedComponents(data, dataInputs) {
		if len(scc) == 1 && !selfLoop(scc[0]) {
			continue
		}
		hasPhi := false
		for _, n := range scc {
			if n.op == OpPhi {
				hasPhi = true
			}
		}
		if !hasPhi {
			return fmt.Errorf("data cycle through %s does not contain a phi", scc[0])
		}
	}
	return nil
}

func verifyEdges(g *Graph, n *Node) error {
	refs := map[*Node]int{}
	for _, in := range n.inputs {
		if in == nil {
			if n.op == OpPhi {
				return fmt.Errorf("%s has an empty input", n)
			}
			continue
		}
		if !in.alive || in.graph != g {
			return fmt.Errorf("%s has dead or foreign input %s", n, in)
		}
		refs[in]++
	}
	if s := n.state; s != nil {
		if !s.alive || s.graph != g {
			return fmt.Errorf("%s has dead or foreign state %s", n, s)
		}
		if s.op != OpFrameState {
			return fmt.Errorf("%s has state %s which is not a frame state", n, s)
		}
		refs[s]++
	}
	for in, c := range refs {
		count := 0
		for _, u := range in.usages {
			if u == n {
				count++
			}
		}
		if count != c {
			return fmt.Errorf("%s references %s %d times but is recorded as usage %d times", n, in, c, count)
		}
	}
	for _, u := range n.usages {
		if !u.alive {
			return fmt.Errorf("%s has dead usage %s", n, u)
		}
	}
	return nil
}

func verifyControl(n *Node) error {
	for i, s := range n.succs {
		if s == nil {
			if i == 0 && n.op.HasNext() || n.op == OpIf {
				return fmt.Errorf("%s is missing successor %d", n, i)
			}
			continue
		}
		if !s.alive || s.pred != n {
			return fmt.Errorf("successor %s of %s does not point back", s, n)
		}
		if n.op == OpIf && s.op != OpBegin {
			return fmt.Errorf("successor %s of %s is not a block start", s, n)
		}
		if n.op == OpInvoke && i == 1 && s.op != OpBegin {
			return fmt.Errorf("exception edge %s of %s is not a block start", s, n)
		}
	}
	if p := n.pred; p != nil && !slices.Contains(p.succs, n) {
		return fmt.Errorf("predecessor %s of %s does not point to it", p, n)
	}
	if n.op.IsControl() && !n.op.IsMerge() && n.op != OpStart && n.pred == nil {
		return fmt.Errorf("%s has no predecessor", n)
	}
	switch n.op {
	case OpEnd, OpLoopEnd:
		if n.merge == nil || !n.merge.alive || !slices.Contains(n.merge.ends, n) {
			return fmt.Errorf("%s does not flow into a live merge", n)
		}
	case OpMerge, OpLoopBegin:
		if len(n.ends) == 0 {
			return fmt.Errorf("%s has no ends", n)
		}
		for i, e := range n.ends {
			if !e.alive || e.merge != n {
				return fmt.Errorf("end %s of %s does not point back", e, n)
			}
			if n.op == OpLoopBegin && (i == 0) != (e.op == OpEnd) {
				return fmt.Errorf("end %d of loop header %s is %s", i, n, e.op)
			}
			if n.op == OpMerge && e.op != OpEnd {
				return fmt.Errorf("merge %s has loop end %s", n, e)
			}
		}
		for _, phi := range n.phis {
			if !phi.alive || phi.merge != n {
				return fmt.Errorf("phi %s of %s does not point back", phi, n)
			}
			if len(phi.inputs) != len(n.ends) {
				return fmt.Errorf("phi %s has %d inputs but its merge %s has %d ends", phi, len(phi.inputs), n,
					len(n.ends))
			}
		}
	case OpPhi:
		if n.merge == nil || !n.merge.alive || !slices.Contains(n.merge.phis, n) {
			return fmt.Errorf("phi %s is not owned by a live merge", n)
		}
	case OpIf, OpGuard:
		if len(n.inputs) != 1 || n.inputs[0] == nil {
			return fmt.Errorf("%s has no condition", n)
		}
	case OpPi:
		if len(n.inputs) != 2 || n.inputs[1] == nil || !n.inputs[1].op.IsControl() {
			return fmt.Errorf("%s is not anchored to a control node", n)
		}
	}
	return nil
}

func controlNodes(nodes []*Node) []*Node {
	return funcutil.Filter(nodes, func(n *Node) bool { return n.op.IsControl() })
}

func nodeID(n *Node) int64 { return int64(n.id) }

func forwardSuccessors(n *Node) []*Node {
	if n.op == OpLoopEnd {
		return nil
	}
	return n.ControlSuccessors()
}

func dataInputs(n *Node) []*Node {
	var res []*Node
	for _, in := range n.inputs {
		if in != nil && in.op.IsFloating() {
			res = append(res, in)
		}
	}
	if n.state != nil {
		res = append(res, n.state)
	}
	return res
}

func selfLoop(n *Node) bool {
	return slices.Contains(n.inputs, n) || n.state == n
}