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
	"errors"
	"fmt"

	"github.com/awslabs/ar-go-graphopt/analysis/ir"
	"github.com/awslabs/ar-go-graphopt/analysis/meta"
)

// ErrNoGraph is returned by Apply when the provider has no graph for a method to inline
var ErrNoGraph = errors.New("no graph to inline")

// Apply performs the rewrite of decision d, taking the graphs of the inlined methods from provider. The contents
// of every inlined method, and the assumption taken by an *Assumption decision, are recorded in assumptions,
// which may be nil only when d is not an *Assumption.
//
// The graph is not modified when an error is returned.
func (in *Inliner) Apply(d Decision, provider GraphProvider, assumptions *meta.Assumptions) error {
	site := d.Site()
	ir.Assertf(checkInvoke(site) == "", site, "applying %s to a call site that cannot be inlined", d)
	g := site.Graph()

	switch d := d.(type) {
	case *Exact:
		callee, err := graphOf(provider, d.Method)
		if err != nil {
			return err
		}
		recordContents(assumptions, d.Method)
		in.Inline(site, callee, true)

	case *Assumption:
		callee, err := graphOf(provider, d.Method)
		if err != nil {
			return err
		}
		ir.Assertf(assumptions != nil, site, "no assumption set to record %s", d.Taken)
		assumptions.Record(d.Taken)
		in.logger.Debugf("recording assumption: %s", d.Taken)
		recordContents(assumptions, d.Method)
		in.Inline(site, callee, true)

	case *SingleGuard:
		callee, err := graphOf(provider, d.Method)
		if err != nil {
			return err
		}
		recordContents(assumptions, d.Method)
		in.inlineSingleGuard(d, callee)

	case *PolymorphicCascade:
		callees := make([]*ir.Graph, len(d.Targets))
		for i, t := range d.Targets {
			callee, err := graphOf(provider, t.Method)
			if err != nil {
				return err
			}
			callees[i] = callee
		}
		for _, t := range d.Targets {
			recordContents(assumptions, t.Method)
		}
		if len(d.Targets) == 1 && !d.Megamorphic() {
			in.inlineSingleMethod(site, d.Targets[0], callees[0])
		} else {
			in.inlineCascade(d, callees)
		}

	default:
		ir.Assertf(false, site, "unknown inlining decision %T", d)
	}
	in.verify(g, site, "inlining "+d.String())
	return nil
}

func graphOf(provider GraphProvider, m *meta.Method) (*ir.Graph, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoGraph, m)
	}
	callee := provider.Graph(m)
	if callee == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoGraph, m)
	}
	return callee, nil
}

func recordContents(assumptions *meta.Assumptions, m *meta.Method) {
	if assumptions != nil {
		assumptions.Record(meta.MethodContents{Method: m})
	}
}

// inlineSingleGuard guards the call with a check of the exact type of the receiver, and inlines the method
// selected by that type
func (in *Inliner) inlineSingleGuard(d *SingleGuard, callee *ir.Graph) {
	site := d.Site()
	g := site.Graph()
	recv := site.Receiver()
	receiverNullCheck(site)
	guard := g.Guard(g.InstanceOf(recv, d.Type), false, ir.ReasonTypeCheckedInliningViolated)
	g.AddBeforeFixed(site, guard)
	site.ReplaceFirstInput(recv, g.Pi(recv, guard, ir.ExactNonNull(d.Type)))
	in.Inline(site, callee, false)
}

// inlineSingleMethod inlines the only target of a cascade without residual call: a single test over all the
// receiver types of the target guards the inlined body, and the other receivers deoptimize
func (in *Inliner) inlineSingleMethod(site *ir.Node, t Target, callee *ir.Graph) {
	g := site.Graph()
	recv := site.Receiver()
	receiverNullCheck(site)

	body := g.Begin()
	body.Probability = site.Probability
	otherwise := g.Begin()
	otherwise.SetNext(g.Deoptimize(ir.ReasonTypeCheckedInliningViolated))
	test := g.If(g.InstanceOf(recv, t.Types...), t.BranchProbability)
	site.ReplaceAtPredecessor(test)
	test.SetTrueSucc(body)
	test.SetFalseSucc(otherwise)
	body.SetNext(site)

	site.ReplaceFirstInput(recv, anchoredReceiver(recv, body, t.Types))
	in.Inline(site, callee, false)
}

// inlineCascade replaces the call by a chain of type tests, one per target, each leading to a copy of the call
// that is then inlined. The receivers of other types reach a residual copy of the call when the cascade is
// megamorphic, and deoptimize otherwise. The results of the copies meet at a merge after the chain, and their
// exceptions at a merge before the exception handler of the call.
func (in *Inliner) inlineCascade(d *PolymorphicCascade, callees []*ir.Graph) {
	site := d.Site()
	g := site.Graph()
	recv := site.Receiver()
	stateAfter := site.State()
	receiverNullCheck(site)

	returnMerge := g.Merge()
	var returnPhi *ir.Node
	if site.HasUsages() {
		returnPhi = g.Phi(returnMerge)
	}
	var obj, exceptionMerge, exceptionPhi *ir.Node
	if x := site.ExceptionEdge(); x != nil {
		obj = x.Next()
		ir.Assertf(obj.Op() == ir.OpExceptionObject, x, "exception edge does not start with an exception object")
		exceptionMerge = g.Merge()
		exceptionPhi = g.Phi(exceptionMerge)
	}

	// invocationBlock returns a block holding a copy of the call, flowing into the merges
	invocationBlock := func(p float64, inlinable bool) (*ir.Node, *ir.Node) {
		b := g.Begin()
		b.Probability = site.Probability * p
		call := g.Invoke(site.Kind, site.Target, site.BCI, site.Arguments()...)
		call.Inlinable = inlinable
		call.Probability = b.Probability
		st := stateAfter.DuplicateModified(stateAfter.BCI, stateAfter.Rethrow, false)
		st.ReplaceInput(site, call)
		call.SetState(st)
		b.SetNext(call)

		end := g.End()
		call.SetNext(end)
		returnMerge.AddEnd(end)
		if returnPhi != nil {
			returnPhi.AddPhiInput(call)
		}

		if obj != nil {
			handler := g.Begin()
			eo := g.ExceptionObject()
			if s := obj.State(); s != nil {
				es := s.DuplicateModified(s.BCI, s.Rethrow, false)
				es.ReplaceInput(obj, eo)
				eo.SetState(es)
			}
			handler.SetNext(eo)
			ee := g.End()
			eo.SetNext(ee)
			exceptionMerge.AddEnd(ee)
			exceptionPhi.AddPhiInput(eo)
			call.SetExceptionEdge(handler)
		}
		return b, call
	}

	blocks := make([]*ir.Node, len(d.Targets))
	calls := make([]*ir.Node, len(d.Targets))
	for i, t := range d.Targets {
		blocks[i], calls[i] = invocationBlock(t.Probability, true)
	}
	var otherwise *ir.Node
	if d.Megamorphic() {
		otherwise, _ = invocationBlock(d.NotRecorded, false)
	} else {
		otherwise = g.Begin()
		otherwise.SetNext(g.Deoptimize(ir.ReasonTypeCheckedInliningViolated))
	}

	// the chain is built from the last test up
	var dispatch *ir.Node
	for i := len(d.Targets) - 1; i >= 0; i-- {
		t := d.Targets[i]
		test := g.If(g.InstanceOf(recv, t.Types...), t.BranchProbability)
		test.SetTrueSucc(blocks[i])
		test.SetFalseSucc(otherwise)
		dispatch = test
		if i > 0 {
			otherwise = g.Begin()
			otherwise.SetNext(test)
		}
	}

	next := site.Next()
	site.SetNext(nil)
	returnMerge.SetNext(next)
	if returnPhi != nil {
		site.ReplaceAtUsages(returnPhi)
	}
	site.SetState(nil)
	returnMerge.SetState(stateAfter)

	if obj != nil {
		handler := obj.Next()
		obj.SetNext(nil)
		exceptionMerge.SetNext(handler)
		obj.ReplaceAtUsages(exceptionPhi)
		if s := obj.State(); s != nil {
			obj.SetState(nil)
			exceptionMerge.SetState(s)
		}
		ir.KillCFG(site.ExceptionEdge())
	}
	site.ReplaceAtPredecessor(dispatch)
	site.Kill()

	for i, t := range d.Targets {
		calls[i].ReplaceFirstInput(recv, anchoredReceiver(recv, blocks[i], t.Types))
		in.Inline(calls[i], callees[i], false)
	}
}

// anchoredReceiver returns recv narrowed to types from anchor on: exact for a single type, the least common
// ancestor of the types otherwise
func anchoredReceiver(recv, anchor *ir.Node, types []*meta.Type) *ir.Node {
	g := recv.Graph()
	if len(types) == 1 {
		return g.Pi(recv, anchor, ir.ExactNonNull(types[0]))
	}
	common := types[0]
	for _, t := range types[1:] {
		common = common.FindLeastCommonAncestor(t)
	}
	return g.Pi(recv, anchor, ir.DeclaredNonNull(common))
}
