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

package inlining

import (
	"github.com/awslabs/ar-go-graphopt/analysis/ir"
)

// Inline replaces call site invoke by a copy of the body of callee, and returns the map from the nodes of callee
// to their copies. The parameters of callee are replaced by the arguments of the call, and the nodes anchored to
// the start of callee are anchored to the block of the call. When nullCheck is set, the receiver of a non-static
// call is checked for null before the inlined body, unless its stamp excludes null.
//
// The returns of callee continue after the call, through a merge when there are several. Its unwinds continue at
// the exception edge of the call; a call without an exception edge deoptimizes instead. Frame states of callee
// are re-scoped to the caller: the after-method states become the after-call state of the call, the
// before-method states become a state before the call with the arguments pushed, and the outermost states of
// callee get the after-call state, minus the call result, as outer state.
//
// The call site must have passed the checks of Decide; Inline panics with an *ir.InvariantError otherwise.
func (in *Inliner) Inline(invoke *ir.Node, callee *ir.Graph, nullCheck bool) map[*ir.Node]*ir.Node {
	ir.Assertf(invoke.Op() == ir.OpInvoke && invoke.IsAlive(), invoke, "not a live call site")
	ir.Assertf(invoke.Pred() != nil && invoke.Next() != nil, invoke, "call site is not linked")
	stateAfter := invoke.State()
	ir.Assertf(stateAfter != nil, invoke, "call site has no after-call state")
	g := invoke.Graph()
	args := append([]*ir.Node(nil), invoke.Arguments()...)

	entry := callee.Start()
	ir.Assertf(entry.Next() != nil, entry, "%s has no body", callee.Method)
	repl := map[*ir.Node]*ir.Node{entry: ir.PrevBegin(invoke)}
	var nodes, returns, unwinds []*ir.Node
	for _, n := range callee.Nodes() {
		switch {
		case n == entry || n == entry.State():
		case n.Op() == ir.OpParam:
			ir.Assertf(n.Index < len(args), invoke, "no argument for parameter %d of %s", n.Index, callee.Method)
			repl[n] = args[n.Index]
		default:
			nodes = append(nodes, n)
			switch n.Op() {
			case ir.OpReturn:
				returns = append(returns, n)
			case ir.OpUnwind:
				unwinds = append(unwinds, n)
			}
		}
	}

	dup := g.AddDuplicates(nodes, repl)
	if nullCheck {
		receiverNullCheck(invoke)
	}
	invoke.ReplaceAtPredecessor(dup[entry.Next()])
	pop := popsResult(stateAfter, invoke)

	var stateAtException *ir.Node
	if x := invoke.ExceptionEdge(); x != nil {
		if len(unwinds) > 0 {
			obj := x.Next()
			ir.Assertf(obj.Op() == ir.OpExceptionObject, x, "exception edge does not start with an exception object")
			stateAtException = obj.State()
			handler := obj.Next()
			obj.SetNext(nil)
			m, exception := joinExits(mapped(dup, unwinds), handler)
			obj.ReplaceAtUsages(exception)
			if m != nil && stateAtException != nil {
				m.SetState(stateAtException)
			}
		}
		// otherwise the exception edge dies with the call
	} else {
		for _, u := range mapped(dup, unwinds) {
			deopt := g.Deoptimize(ir.ReasonNotCompiledExceptionHandler)
			deopt.SetState(stateAfter.DuplicateModified(invoke.BCI, true, pop, u.Input(0)))
			u.ReplaceAtPredecessor(deopt)
			u.Kill()
		}
	}

	var outer *ir.Node
	for _, n := range nodes {
		d := dup[n]
		if !d.IsAlive() {
			continue
		}
		if in.config.ProbabilityAnalysis && d.Op().IsControl() && d.Op() != ir.OpIf {
			p := d.Probability * invoke.Probability
			if in.config.LimitInlinedProbability && p > invoke.Probability {
				p = invoke.Probability
			}
			d.Probability = p
		}
		if d.Op() != ir.OpFrameState {
			continue
		}
		switch d.BCI {
		case ir.AfterBCI:
			replaceState(d, stateAfter)
		case ir.BeforeBCI:
			replaceState(d, stateAfter.DuplicateModified(invoke.BCI, false, pop, args...))
		case ir.AfterExceptionBCI:
			if stateAtException != nil {
				replaceState(d, stateAtException)
			} else {
				replaceState(d, stateAfter.DuplicateModified(invoke.BCI, true, pop))
			}
		default:
			// only the outermost states of callee get an outer state
			if d.Outer() == nil {
				if outer == nil {
					outer = stateAfter.DuplicateModified(invoke.BCI, stateAfter.Rethrow, pop)
					outer.DuringCall = true
				}
				d.SetState(outer)
			}
		}
	}

	if len(returns) == 0 {
		// the code after the call is unreachable and dies with it
		if invoke.HasUsages() {
			invoke.ReplaceAtUsages(nil)
		}
	} else {
		next := invoke.Next()
		invoke.SetNext(nil)
		m, result := joinExits(mapped(dup, returns), next)
		if invoke.HasUsages() {
			invoke.ReplaceAtUsages(result)
		}
		if m != nil {
			m.SetState(stateAfter)
		}
	}
	ir.KillCFG(invoke)
	return dup
}

// receiverNullCheck inserts a guard deoptimizing when the receiver of invoke is null, unless its stamp excludes
// null
func receiverNullCheck(invoke *ir.Node) {
	recv := invoke.Receiver()
	if recv == nil || recv.Stamp.NonNull {
		return
	}
	g := invoke.Graph()
	g.AddBeforeFixed(invoke, g.Guard(g.IsNull(recv), true, ir.ReasonNullCheckException))
}

// joinExits replaces the returns or unwinds exits by a jump to next, and returns the value they leave with. Several
// exits are joined by a merge, which is returned with a phi of their values.
func joinExits(exits []*ir.Node, next *ir.Node) (*ir.Node, *ir.Node) {
	if len(exits) == 1 {
		x := exits[0]
		v := exitValue(x)
		x.ReplaceAtPredecessor(next)
		x.Kill()
		return nil, v
	}
	g := next.Graph()
	ends := make([]*ir.Node, len(exits))
	values := make([]*ir.Node, len(exits))
	withValues := true
	for i, x := range exits {
		ends[i] = g.End()
		values[i] = exitValue(x)
		withValues = withValues && values[i] != nil
		x.ReplaceAtPredecessor(ends[i])
	}
	m := g.Merge(ends...)
	var phi *ir.Node
	if withValues {
		phi = g.Phi(m, values...)
	}
	for _, x := range exits {
		x.Kill()
	}
	m.SetNext(next)
	return m, phi
}

func exitValue(x *ir.Node) *ir.Node {
	if len(x.Inputs()) == 0 {
		return nil
	}
	return x.Input(0)
}

// replaceState moves the usages of frame state fs to with, and removes fs
func replaceState(fs, with *ir.Node) {
	fs.ReplaceAtUsages(with)
	fs.KillWithUnusedFloatingInputs()
}

// popsResult returns true if the last value of the after-call state is the result of the call
func popsResult(state, invoke *ir.Node) bool {
	values := state.StateValues()
	return len(values) > 0 && values[len(values)-1] == invoke
}

func mapped(dup map[*ir.Node]*ir.Node, nodes []*ir.Node) []*ir.Node {
	res := make([]*ir.Node, len(nodes))
	for i, n := range nodes {
		res[i] = dup[n]
	}
	return res
}
