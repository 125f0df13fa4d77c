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

	"github.com/awslabs/ar-go-graphopt/analysis/meta"
)

// NodeID identifies a node inside its graph. IDs are never reused.
type NodeID int

// Stamp holds the static facts known about a value
type Stamp struct {
	// Type is the declared (or exact, if Exact is set) type of the value, nil if unknown
	Type *meta.Type
	// Exact is true when the runtime type of the value is exactly Type
	Exact bool
	// NonNull is true when the value is known not to be null
	NonNull bool
}

// ExactNonNull returns the stamp of a non-null value of exact type t
func ExactNonNull(t *meta.Type) Stamp {
	return Stamp{Type: t, Exact: true, NonNull: true}
}

// DeclaredNonNull returns the stamp of a non-null value of type t or one of its subtypes
func DeclaredNonNull(t *meta.Type) Stamp {
	return Stamp{Type: t, NonNull: true}
}

func (s Stamp) String() string {
	if s.Type == nil {
		if s.NonNull {
			return "!null"
		}
		return ""
	}
	str := s.Type.Name
	if s.Exact {
		str = "=" + str
	}
	if s.NonNull {
		str += "!"
	}
	return str
}

// A Node is an operation or a control point of a Graph.
//
// Data inputs are ordered and mirrored by usage lists. Control nodes form the skeleton: every control node except
// the start and merges has exactly one predecessor, merges have ordered ends instead, and every fixed node with a
// next has a successor slot for it. The state reference is the frame state attached to a control node; for frame
// states it is the outer frame state.
type Node struct {
	id    NodeID
	op    Op
	graph *Graph
	alive bool

	inputs []*Node
	usages []*Node

	pred  *Node
	succs []*Node

	ends  []*Node
	phis  []*Node
	merge *Node
	state *Node

	// Value is the value of a constant
	Value int64
	// Index is the parameter index of a parameter
	Index int
	// Stamp is the static type information of the value produced by the node
	Stamp Stamp
	// Probability is the probability of the true successor for an If, and the relative execution frequency for
	// other fixed nodes
	Probability float64

	// Target is the declared target of an invoke
	Target *meta.Method
	// Kind is the dispatch kind of an invoke
	Kind InvokeKind
	// Inlinable tells whether an invoke may be considered for inlining
	Inlinable bool
	// BCI is the bytecode index of an invoke or frame state
	BCI int

	// Method is the method of a frame state
	Method *meta.Method
	// DuringCall marks outer frame states of inlined methods
	DuringCall bool
	// Rethrow marks frame states that rethrow the exception on top of the stack when deoptimizing
	Rethrow bool

	// Negated inverts the condition of a guard
	Negated bool
	// Reason is the deoptimization reason of a guard or deoptimize node
	Reason DeoptReason
	// Types are the exact types accepted by an instanceof
	Types []*meta.Type
}

// ID returns the identifier of the node
func (n *Node) ID() NodeID { return n.id }

// Op returns the operation of the node
func (n *Node) Op() Op { return n.op }

// Graph returns the graph owning n
func (n *Node) Graph() *Graph { return n.graph }

// IsAlive returns false once the node has been killed
func (n *Node) IsAlive() bool { return n != nil && n.alive }

// Inputs returns the data inputs of n. The slice must not be modified.
func (n *Node) Inputs() []*Node { return n.inputs }

// Input returns the i-th data input of n
func (n *Node) Input(i int) *Node { return n.inputs[i] }

// Usages returns the nodes using n as a data input or state, one entry per reference. The slice must not be
// modified.
func (n *Node) Usages() []*Node { return n.usages }

// HasUsages returns true if any node references n
func (n *Node) HasUsages() bool { return len(n.usages) > 0 }

// Pred returns the control predecessor of a non-merge control node
func (n *Node) Pred() *Node { return n.pred }

// Succs returns the successor slots of a control node. Empty slots are nil.
func (n *Node) Succs() []*Node { return n.succs }

// Succ returns the i-th successor slot of a control node
func (n *Node) Succ(i int) *Node { return n.succs[i] }

// Next returns the next control node of a fixed node
func (n *Node) Next() *Node {
	if len(n.succs) == 0 {
		return nil
	}
	return n.succs[0]
}

// TrueSucc returns the successor taken when the condition of an If holds
func (n *Node) TrueSucc() *Node { return n.succs[0] }

// FalseSucc returns the successor taken when the condition of an If does not hold
func (n *Node) FalseSucc() *Node { return n.succs[1] }

// ExceptionEdge returns the exception successor of an invoke, or nil
func (n *Node) ExceptionEdge() *Node {
	if n.op != OpInvoke {
		return nil
	}
	return n.succs[1]
}

// Ends returns the ordered predecessor ends of a merge. For loop headers the forward end comes first.
func (n *Node) Ends() []*Node { return n.ends }

// Phis returns the phis of a merge
func (n *Node) Phis() []*Node { return n.phis }

// Merge returns the merge of a phi, or the merge an end flows into
func (n *Node) Merge() *Node { return n.merge }

// State returns the frame state attached to n. For frame states, this is the outer frame state.
func (n *Node) State() *Node { return n.state }

// Outer returns the outer frame state of a frame state
func (n *Node) Outer() *Node { return n.state }

// Arguments returns the arguments of an invoke
func (n *Node) Arguments() []*Node { return n.inputs }

// Receiver returns the receiver of a non-static invoke
func (n *Node) Receiver() *Node {
	if n.op != OpInvoke || !n.Kind.HasReceiver() || len(n.inputs) == 0 {
		return nil
	}
	return n.inputs[0]
}

// Anchor returns the control node a Pi is anchored to
func (n *Node) Anchor() *Node { return n.inputs[1] }

// ForwardEnd returns the entry end of a loop header
func (n *Node) ForwardEnd() *Node { return n.ends[0] }

// LoopEnds returns the backward ends of a loop header
func (n *Node) LoopEnds() []*Node { return n.ends[1:] }

// EndIndex returns the position of end in the ends of merge n, or -1
func (n *Node) EndIndex(end *Node) int {
	for i, e := range n.ends {
		if e == end {
			return i
		}
	}
	return -1
}

// ControlSuccessors returns the control successors of n, including the merge an end flows into
func (n *Node) ControlSuccessors() []*Node {
	if n.op.IsEnd() {
		if n.merge == nil {
			return nil
		}
		return []*Node{n.merge}
	}
	var res []*Node
	for _, s := range n.succs {
		if s != nil {
			res = append(res, s)
		}
	}
	return res
}

// ControlPredecessors returns the ends of a merge, or the single predecessor of other control nodes
func (n *Node) ControlPredecessors() []*Node {
	if n.op.IsMerge() {
		return n.ends
	}
	if n.pred == nil {
		return nil
	}
	return []*Node{n.pred}
}

// StateValues returns the values of a frame state
func (n *Node) StateValues() []*Node { return n.inputs }

// Depth returns the number of outer states of a frame state
func (n *Node) Depth() int {
	d := 0
	for cur := n.state; cur != nil; cur = cur.state {
		d++
	}
	return d
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	switch n.op {
	case OpConst:
		return fmt.Sprintf("%d|Const(%d)", n.id, n.Value)
	case OpParam:
		return fmt.Sprintf("%d|Param(%d)", n.id, n.Index)
	case OpInvoke:
		return fmt.Sprintf("%d|Invoke(%s %s)", n.id, n.Kind, n.Target)
	case OpFrameState:
		return fmt.Sprintf("%d|FrameState(%s@%d)", n.id, n.Method, n.BCI)
	}
	return fmt.Sprintf("%d|%s", n.id, n.op)
}

// InvariantError reports a structural invariant violation. Transformations panic with this error: a graph that
// breaks an invariant must not be compiled.
type InvariantError struct {
	Node    *Node
	Message string
}

func (e *InvariantError) Error() string {
	if e.Node != nil {
		return fmt.Sprintf("graph invariant violated at %s: %s", e.Node, e.Message)
	}
	return "graph invariant violated: " + e.Message
}

// Assertf panics with an InvariantError when cond is false
func Assertf(cond bool, n *Node, format string, args ...any) {
	if !cond {
		panic(&InvariantError{Node: n, Message: fmt.Sprintf(format, args...)})
	}
}
