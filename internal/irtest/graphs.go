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

package irtest

import (
	"github.com/awslabs/ar-go-graphopt/analysis/ir"
	"github.com/awslabs/ar-go-graphopt/analysis/meta"
)

// SumLoop is the graph of
//
//	sum(a, n):
//	  s := 0
//	  for i := 0; i < n; i++ { s += a[i] }
//	  return s
type SumLoop struct {
	Graph  *ir.Graph
	Header *ir.Node
	// Test is the loop exit test, the first node after the header
	Test *ir.Node
	Exit *ir.Node
	End  *ir.Node
	I    *ir.Node
	Sum  *ir.Node
}

// NewSumLoop builds a SumLoop. The loop header carries a frame state with i and s.
func NewSumLoop() *SumLoop {
	m := &meta.Method{Name: "sum", Static: true}
	g := ir.NewGraph(m)
	a := g.Param(0, ir.Stamp{NonNull: true})
	n := g.Param(1, ir.Stamp{})
	zero, one := g.Const(0), g.Const(1)

	entry := g.End()
	g.Start().SetNext(entry)
	header := g.LoopBegin(entry)
	i := g.Phi(header, zero)
	s := g.Phi(header, zero)
	header.SetState(g.FrameState(m, 2, nil, a, n, i, s))

	test := g.If(g.Less(i, n), 0.9)
	header.SetNext(test)
	body, exit := g.Begin(), g.Begin()
	test.SetTrueSucc(body)
	test.SetFalseSucc(exit)
	end := g.LoopEnd(header)
	body.SetNext(end)
	i.AddPhiInput(g.Add(i, one))
	s.AddPhiInput(g.Add(s, g.LoadIndex(a, i)))
	exit.SetNext(g.Return(s))
	return &SumLoop{Graph: g, Header: header, Test: test, Exit: exit, End: end, I: i, Sum: s}
}

// GuardedLoop is the graph of
//
//	count(a, n):
//	  c := 0
//	  for i := 0; ; i++ {
//	    guard a != null
//	    if !(i < n) { break }
//	    c += len(a)
//	  }
//	  return c * 2 + i
//
// Both c and i are used after the loop, through an expression that is not a phi.
type GuardedLoop struct {
	Graph  *ir.Graph
	Header *ir.Node
	Guard  *ir.Node
	Test   *ir.Node
	Exit   *ir.Node
	C      *ir.Node
	I      *ir.Node
}

// NewGuardedLoop builds a GuardedLoop
func NewGuardedLoop() *GuardedLoop {
	m := &meta.Method{Name: "count", Static: true}
	g := ir.NewGraph(m)
	a := g.Param(0, ir.Stamp{})
	n := g.Param(1, ir.Stamp{})
	zero, one, two := g.Const(0), g.Const(1), g.Const(2)

	entry := g.End()
	g.Start().SetNext(entry)
	header := g.LoopBegin(entry)
	i := g.Phi(header, zero)
	c := g.Phi(header, zero)

	guard := g.Guard(g.IsNull(a), true, ir.ReasonNullCheckException)
	guard.SetState(g.FrameState(m, 3, nil, a, n, i, c))
	header.SetNext(guard)
	test := g.If(g.Less(i, n), 0.9)
	guard.SetNext(test)
	body, exit := g.Begin(), g.Begin()
	test.SetTrueSucc(body)
	test.SetFalseSucc(exit)
	body.SetNext(g.LoopEnd(header))
	i.AddPhiInput(g.Add(i, one))
	c.AddPhiInput(g.Add(c, g.Length(a)))
	exit.SetNext(g.Return(g.Add(g.Binary(ir.OpMul, c, two), i)))
	return &GuardedLoop{Graph: g, Header: header, Guard: guard, Test: test, Exit: exit, C: c, I: i}
}

// NestedLoop is the graph of
//
//	grid(n, m):
//	  t := 0
//	  for i := 0; i < n; i++ {
//	    for j := 0; j < m; j++ { t += i }
//	    t += 1
//	  }
//	  return t
type NestedLoop struct {
	Graph *ir.Graph
	Outer *ir.Node
	Inner *ir.Node
}

// NewNestedLoop builds a NestedLoop
func NewNestedLoop() *NestedLoop {
	meth := &meta.Method{Name: "grid", Static: true}
	g := ir.NewGraph(meth)
	n := g.Param(0, ir.Stamp{})
	m := g.Param(1, ir.Stamp{})
	zero, one := g.Const(0), g.Const(1)

	outerEntry := g.End()
	g.Start().SetNext(outerEntry)
	outer := g.LoopBegin(outerEntry)
	i := g.Phi(outer, zero)
	t := g.Phi(outer, zero)
	outerTest := g.If(g.Less(i, n), 0.9)
	outer.SetNext(outerTest)
	outerBody, outerExit := g.Begin(), g.Begin()
	outerTest.SetTrueSucc(outerBody)
	outerTest.SetFalseSucc(outerExit)
	outerExit.SetNext(g.Return(t))

	innerEntry := g.End()
	outerBody.SetNext(innerEntry)
	inner := g.LoopBegin(innerEntry)
	j := g.Phi(inner, zero)
	u := g.Phi(inner, t)
	innerTest := g.If(g.Less(j, m), 0.9)
	inner.SetNext(innerTest)
	innerBody, innerExit := g.Begin(), g.Begin()
	innerTest.SetTrueSucc(innerBody)
	innerTest.SetFalseSucc(innerExit)
	innerBody.SetNext(g.LoopEnd(inner))
	j.AddPhiInput(g.Add(j, one))
	u.AddPhiInput(g.Add(u, i))

	innerExit.SetNext(g.LoopEnd(outer))
	i.AddPhiInput(g.Add(i, one))
	t.AddPhiInput(g.Add(u, one))
	return &NestedLoop{Graph: g, Outer: outer, Inner: inner}
}

// InfiniteLoop is the graph of a loop without exits, `for { guard x < 10; x++ }`, which only leaves by
// deoptimizing
type InfiniteLoop struct {
	Graph  *ir.Graph
	Header *ir.Node
	X      *ir.Node
}

// NewInfiniteLoop builds an InfiniteLoop
func NewInfiniteLoop() *InfiniteLoop {
	m := &meta.Method{Name: "spin", Static: true}
	g := ir.NewGraph(m)
	entry := g.End()
	g.Start().SetNext(entry)
	header := g.LoopBegin(entry)
	x := g.Phi(header, g.Const(0))
	guard := g.Guard(g.Less(x, g.Const(10)), false, ir.ReasonUnreachedCode)
	header.SetNext(guard)
	guard.SetNext(g.LoopEnd(header))
	x.AddPhiInput(g.Add(x, g.Const(1)))
	return &InfiniteLoop{Graph: g, Header: header, X: x}
}

// CallSite is a caller graph around a single invoke
type CallSite struct {
	Graph  *ir.Graph
	Invoke *ir.Node
	// Receiver is the receiver argument, nil for static calls
	Receiver *ir.Node
}

// NewVirtualCall returns the graph of
//
//	caller(x):
//	  return x.target() + 1
//
// where x has stamp recv. The invoke has an after-call state holding x and the result.
func NewVirtualCall(kind ir.InvokeKind, target *meta.Method, recv ir.Stamp) *CallSite {
	m := &meta.Method{Name: "caller", Static: true}
	g := ir.NewGraph(m)
	x := g.Param(0, recv)
	invoke := g.Invoke(kind, target, 7, x)
	invoke.SetState(g.FrameState(m, 8, nil, x, invoke))
	g.Start().SetNext(invoke)
	invoke.SetNext(g.Return(g.Add(invoke, g.Const(1))))
	return &CallSite{Graph: g, Invoke: invoke, Receiver: x}
}

// NewStaticCall returns the graph of
//
//	caller(v):
//	  return target(v)
//
// When withHandler is set, the call has an exception edge and the handler returns 100.
func NewStaticCall(target *meta.Method, withHandler bool) *CallSite {
	m := &meta.Method{Name: "caller", Static: true}
	g := ir.NewGraph(m)
	v := g.Param(0, ir.Stamp{})
	invoke := g.Invoke(ir.InvokeStatic, target, 3, v)
	invoke.SetState(g.FrameState(m, 4, nil, v, invoke))
	g.Start().SetNext(invoke)
	invoke.SetNext(g.Return(invoke))
	if withHandler {
		handler := g.Begin()
		invoke.SetExceptionEdge(handler)
		obj := g.ExceptionObject()
		obj.SetState(g.FrameState(m, 5, nil, v, obj))
		handler.SetNext(obj)
		obj.SetNext(g.Return(g.Const(100)))
	}
	return &CallSite{Graph: g, Invoke: invoke}
}

// WithoutState removes the after-call state of the invoke
func (c *CallSite) WithoutState() *CallSite {
	s := c.Invoke.State()
	c.Invoke.SetState(nil)
	s.KillWithUnusedFloatingInputs()
	return c
}
