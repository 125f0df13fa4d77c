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
	"github.com/awslabs/ar-go-graphopt/analysis/meta"
)

// Graph is the mutable program graph of one compilation unit. A graph is owned by a single goroutine for the
// duration of any transformation.
type Graph struct {
	// Method is the method the graph was built from
	Method *meta.Method

	nodes []*Node
	start *Node
	live  int
}

// NewGraph returns a graph containing only a start node
func NewGraph(method *meta.Method) *Graph {
	g := &Graph{Method: method}
	g.start = g.add(OpStart)
	return g
}

// Start returns the entry node of the graph
func (g *Graph) Start() *Node { return g.start }

// Nodes returns the live nodes of the graph in ID order
func (g *Graph) Nodes() []*Node {
	res := make([]*Node, 0, g.live)
	for _, n := range g.nodes {
		if n.alive {
			res = append(res, n)
		}
	}
	return res
}

// NodeCount returns the number of live nodes
func (g *Graph) NodeCount() int { return g.live }

// MaxID returns an upper bound of the node IDs of the graph
func (g *Graph) MaxID() int { return len(g.nodes) }

// Node returns the node with the given ID, or nil if it is dead or does not exist
func (g *Graph) Node(id NodeID) *Node {
	if int(id) < 0 || int(id) >= len(g.nodes) || !g.nodes[id].alive {
		return nil
	}
	return g.nodes[id]
}

// Params returns the parameters of the graph, ordered by index
func (g *Graph) Params() []*Node {
	var params []*Node
	for _, n := range g.nodes {
		if n.alive && n.op == OpParam {
			params = append(params, n)
		}
	}
	for i := 1; i < len(params); i++ {
		for j := i; j > 0 && params[j].Index < params[j-1].Index; j-- {
			params[j], params[j-1] = params[j-1], params[j]
		}
	}
	return params
}

// NodesOf returns the live nodes with operation op, in ID order
func (g *Graph) NodesOf(op Op) []*Node {
	var res []*Node
	for _, n := range g.nodes {
		if n.alive && n.op == op {
			res = append(res, n)
		}
	}
	return res
}

func (g *Graph) add(op Op, inputs ...*Node) *Node {
	n := &Node{
		id:    NodeID(len(g.nodes)),
		op:    op,
		graph: g,
		alive: true,
		succs: make([]*Node, op.numSuccs()),
	}
	g.nodes = append(g.nodes, n)
	g.live++
	for _, in := range inputs {
		n.appendInput(in)
	}
	return n
}

// Const returns a new integer constant
func (g *Graph) Const(v int64) *Node {
	n := g.add(OpConst)
	n.Value = v
	return n
}

// Bool returns a new constant holding 1 for true and 0 for false
func (g *Graph) Bool(b bool) *Node {
	if b {
		return g.Const(1)
	}
	return g.Const(0)
}

// Null returns a new null constant
func (g *Graph) Null() *Node { return g.add(OpNull) }

// Param returns a new parameter with the given index and stamp
func (g *Graph) Param(index int, stamp Stamp) *Node {
	n := g.add(OpParam)
	n.Index = index
	n.Stamp = stamp
	return n
}

// Binary returns a new arithmetic or comparison node. op must be one of Add, Sub, Mul, Less, Equal.
func (g *Graph) Binary(op Op, x, y *Node) *Node {
	switch op {
	case OpAdd, OpSub, OpMul, OpLess, OpEqual:
	default:
		Assertf(false, nil, "%s is not a binary operation", op)
	}
	return g.add(op, x, y)
}

// Add returns x + y
func (g *Graph) Add(x, y *Node) *Node { return g.Binary(OpAdd, x, y) }

// Less returns x < y
func (g *Graph) Less(x, y *Node) *Node { return g.Binary(OpLess, x, y) }

// IsNull returns a condition that holds when x is null
func (g *Graph) IsNull(x *Node) *Node { return g.add(OpIsNull, x) }

// InstanceOf returns a condition that holds when the exact type of x is one of types
func (g *Graph) InstanceOf(x *Node, types ...*meta.Type) *Node {
	n := g.add(OpInstanceOf, x)
	n.Types = append([]*meta.Type(nil), types...)
	return n
}

// Pi returns x narrowed to stamp, valid from the control node anchor on
func (g *Graph) Pi(x *Node, anchor *Node, stamp Stamp) *Node {
	n := g.add(OpPi, x, anchor)
	n.Stamp = stamp
	return n
}

// Length returns the length of array x
func (g *Graph) Length(x *Node) *Node { return g.add(OpLength, x) }

// LoadIndex returns the element at index i of array a
func (g *Graph) LoadIndex(a, i *Node) *Node { return g.add(OpLoadIndex, a, i) }

// Phi returns a new phi of merge with the given inputs, one per end of the merge. Inputs may be added later with
// AddPhiInput.
func (g *Graph) Phi(merge *Node, values ...*Node) *Node {
	Assertf(merge.op.IsMerge(), merge, "phi owner must be a merge")
	n := g.add(OpPhi, values...)
	n.merge = merge
	merge.phis = append(merge.phis, n)
	return n
}

// FrameState returns a new frame state of method at bci, nested in outer
func (g *Graph) FrameState(method *meta.Method, bci int, outer *Node, values ...*Node) *Node {
	n := g.add(OpFrameState, values...)
	n.Method = method
	n.BCI = bci
	n.setState(outer)
	return n
}

// Placeholder returns a value node standing for a value that is not known yet
func (g *Graph) Placeholder() *Node { return g.add(OpPlaceholder) }

// Begin returns a new block start
func (g *Graph) Begin() *Node { return g.add(OpBegin) }

// End returns a new forward end, not yet attached to a merge
func (g *Graph) End() *Node { return g.add(OpEnd) }

// Merge returns a merge of the given ends
func (g *Graph) Merge(ends ...*Node) *Node {
	m := g.add(OpMerge)
	for _, e := range ends {
		m.AddEnd(e)
	}
	return m
}

// LoopBegin returns a loop header entered through forward. Loop ends are attached with LoopEnd.
func (g *Graph) LoopBegin(forward *Node) *Node {
	lb := g.add(OpLoopBegin)
	lb.AddEnd(forward)
	return lb
}

// LoopEnd returns a backward end of loop header lb
func (g *Graph) LoopEnd(lb *Node) *Node {
	Assertf(lb.op == OpLoopBegin, lb, "loop end target must be a loop header")
	e := g.add(OpLoopEnd)
	e.merge = lb
	lb.ends = append(lb.ends, e)
	return e
}

// If returns a split on cond, taking the true successor with probability p
func (g *Graph) If(cond *Node, p float64) *Node {
	n := g.add(OpIf, cond)
	n.Probability = p
	return n
}

// Guard returns a fixed node that deoptimizes with reason unless cond evaluates to !negated
func (g *Graph) Guard(cond *Node, negated bool, reason DeoptReason) *Node {
	n := g.add(OpGuard, cond)
	n.Negated = negated
	n.Reason = reason
	return n
}

// Invoke returns a call site of target at bci. The exception successor is left empty.
func (g *Graph) Invoke(kind InvokeKind, target *meta.Method, bci int, args ...*Node) *Node {
	n := g.add(OpInvoke, args...)
	n.Kind = kind
	n.Target = target
	n.BCI = bci
	n.Inlinable = true
	n.Probability = 1
	return n
}

// ExceptionObject returns the node producing the exception caught at an exception edge
func (g *Graph) ExceptionObject() *Node { return g.add(OpExceptionObject) }

// Return returns a node leaving the graph with value, or with no value if value is nil
func (g *Graph) Return(value *Node) *Node {
	if value == nil {
		return g.add(OpReturn)
	}
	return g.add(OpReturn, value)
}

// Unwind returns a node throwing exception out of the graph
func (g *Graph) Unwind(exception *Node) *Node { return g.add(OpUnwind, exception) }

// Deoptimize returns a node transferring execution to the interpreter
func (g *Graph) Deoptimize(reason DeoptReason) *Node {
	n := g.add(OpDeoptimize)
	n.Reason = reason
	return n
}

// PrevBegin returns the closest block start dominating fixed node n, following control predecessors
func PrevBegin(n *Node) *Node {
	for cur := n; cur != nil; cur = cur.pred {
		if cur.op.IsBegin() {
			return cur
		}
	}
	return nil
}
