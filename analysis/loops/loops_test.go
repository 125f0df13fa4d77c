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

package loops_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/awslabs/ar-go-graphopt/analysis/config"
	"github.com/awslabs/ar-go-graphopt/analysis/ir"
	"github.com/awslabs/ar-go-graphopt/analysis/loops"
	"github.com/awslabs/ar-go-graphopt/analysis/meta"
	"github.com/awslabs/ar-go-graphopt/internal/graphutil"
	"github.com/awslabs/ar-go-graphopt/internal/interp"
	"github.com/awslabs/ar-go-graphopt/internal/irtest"
)

func newTransformer() *loops.Transformer {
	c := config.NewDefault()
	c.VerifyGraphs = true
	return loops.NewTransformer(c, nil)
}

type outcome struct {
	kind   interp.Outcome
	value  interp.Value
	reason ir.DeoptReason
}

func run(t *testing.T, g *ir.Graph, args ...interp.Value) outcome {
	t.Helper()
	res, err := interp.New(nil).Run(g, args...)
	if err != nil {
		t.Fatalf("running %s on %v: %v\n%s", g.Method, args, err, ir.Dump(g))
	}
	return outcome{kind: res.Outcome, value: res.Value, reason: res.Reason}
}

// sameResults runs both graphs on every argument list and reports the first difference
func sameResults(t *testing.T, want, got *ir.Graph, argLists [][]interp.Value) {
	t.Helper()
	if err := ir.Verify(got); err != nil {
		t.Fatalf("transformed graph is broken: %v\n%s", err, ir.Dump(got))
	}
	for _, args := range argLists {
		w, g := run(t, want, args...), run(t, got, args...)
		if w != g {
			t.Errorf("on %v: expected %v, got %v", args, w, g)
		}
	}
}

func sumArgs() [][]interp.Value {
	a := []int64{3, 1, 4, 1, 5}
	var res [][]interp.Value
	for n := int64(0); n <= 5; n++ {
		res = append(res, []interp.Value{a, n})
	}
	return res
}

func countArgs() [][]interp.Value {
	res := [][]interp.Value{{nil, int64(0)}, {nil, int64(3)}}
	for n := int64(0); n <= 4; n++ {
		res = append(res, []interp.Value{[]int64{7, 8, 9}, n})
	}
	return res
}

func gridArgs() [][]interp.Value {
	var res [][]interp.Value
	for n := int64(0); n <= 3; n++ {
		for m := int64(0); m <= 3; m++ {
			res = append(res, []interp.Value{n, m})
		}
	}
	return res
}

func TestDiscoverSumLoop(t *testing.T) {
	s := irtest.NewSumLoop()
	set := loops.Discover(s.Graph)
	if set.Len() != 1 {
		t.Fatalf("expected 1 loop, got %d", set.Len())
	}
	l := set.LoopOf(s.Header)
	if l == nil || l.Parent() != nil {
		t.Fatalf("expected an outermost loop for %s", s.Header)
	}
	if l.Members().Len() != 4 {
		t.Errorf("expected 4 members (header, test, body, loop end), got %v", l.MemberNodes())
	}
	if !l.Contains(s.Test) || !l.Contains(s.End) || l.Contains(s.Exit) {
		t.Errorf("wrong members %v", l.MemberNodes())
	}
	if exits := l.Exits(); len(exits) != 1 || exits[0] != s.Exit {
		t.Errorf("expected exit %s, got %v", s.Exit, exits)
	}
}

func TestDiscoverNestedLoop(t *testing.T) {
	n := irtest.NewNestedLoop()
	set := loops.Discover(n.Graph)
	outer, inner := set.LoopOf(n.Outer), set.LoopOf(n.Inner)
	if outer == nil || inner == nil {
		t.Fatalf("both headers should have a loop")
	}
	if inner.Parent() != outer || outer.Parent() != nil {
		t.Errorf("inner should be nested in outer")
	}
	if c := outer.Children(); len(c) != 1 || c[0] != inner {
		t.Errorf("expected children [%s], got %v", inner, c)
	}
	if inner.Depth() != 1 || set.Innermost(n.Inner.Next()) != inner {
		t.Errorf("wrong nesting depth")
	}
	if !outer.Contains(n.Inner) || inner.Contains(n.Outer) {
		t.Errorf("membership does not follow nesting")
	}
	if len(outer.Exits()) != 1 || len(inner.Exits()) != 1 {
		t.Errorf("expected one exit per loop, got %v and %v", outer.Exits(), inner.Exits())
	}
	if outer.Contains(outer.Exits()[0]) || !outer.Contains(inner.Exits()[0]) {
		t.Errorf("the exit of the inner loop stays in the outer loop")
	}
	labels := set.Tree().Labels()
	if len(labels) != 3 || labels[0] != nil || labels[1] != outer || labels[2] != inner {
		t.Errorf("unexpected tree %v", labels)
	}
}

// Every elementary cycle of the control flow must be covered by the loop of one of its headers
func TestDiscoverCoversCycles(t *testing.T) {
	graphs := map[string]*ir.Graph{
		"sum":      irtest.NewSumLoop().Graph,
		"count":    irtest.NewGuardedLoop().Graph,
		"grid":     irtest.NewNestedLoop().Graph,
		"spin":     irtest.NewInfiniteLoop().Graph,
		"branches": newBranchLoop().graph,
	}
	for name, g := range graphs {
		t.Run(name, func(t *testing.T) {
			set := loops.Discover(g)
			var control []*ir.Node
			for _, n := range g.Nodes() {
				if n.Op().IsControl() {
					control = append(control, n)
				}
			}
			cfg := graphutil.NewDigraphFrom(control, func(n *ir.Node) int64 { return int64(n.ID()) },
				(*ir.Node).ControlSuccessors)
			cycles := graphutil.FindAllElementaryCycles(cfg)
			if len(cycles) == 0 {
				t.Fatalf("expected cycles")
			}
			for _, cycle := range cycles {
				covered := false
				for _, l := range set.Loops() {
					if !containsID(cycle, l.Header()) {
						continue
					}
					all := true
					for _, id := range cycle {
						all = all && l.Members().Has(int(id))
					}
					covered = covered || all
				}
				if !covered {
					t.Errorf("cycle %v is not covered by a loop", cycle)
				}
			}
		})
	}
}

func containsID(ids []int64, n *ir.Node) bool {
	for _, id := range ids {
		if id == int64(n.ID()) {
			return true
		}
	}
	return false
}

func TestDiscoverWithoutLoops(t *testing.T) {
	lib := irtest.Shapes()
	if set := loops.Discover(lib.Graph(lib.Method("Util.abs"))); set.Len() != 0 {
		t.Errorf("expected no loops")
	}
}

func TestPeelSumLoop(t *testing.T) {
	want := irtest.NewSumLoop().Graph
	s := irtest.NewSumLoop()
	set := loops.Discover(s.Graph)
	newTransformer().Peel(set.LoopOf(s.Header))
	sameResults(t, want, s.Graph, sumArgs())

	// the peeled test is reached first, the loop is entered after it
	first := s.Graph.Start().Next().Next()
	if first.Op() != ir.OpIf || first == s.Test {
		t.Errorf("expected the copy of the test after the start, got %s", first)
	}
	if ifs := s.Graph.NodesOf(ir.OpIf); len(ifs) != 2 {
		t.Errorf("expected two tests, got %v", ifs)
	}
	if len(s.Graph.NodesOf(ir.OpPlaceholder)) != 0 {
		t.Errorf("placeholders should be gone")
	}
	for _, phi := range s.Header.Phis() {
		if phi.Input(0).Op() == ir.OpConst {
			t.Errorf("%s should enter the loop with the value of the peeled iteration", phi)
		}
	}
}

func TestPeelTwice(t *testing.T) {
	want := irtest.NewSumLoop().Graph
	s := irtest.NewSumLoop()
	set := loops.Discover(s.Graph)
	tr := newTransformer()
	tr.Peel(set.LoopOf(s.Header))
	tr.Peel(set.LoopOf(s.Header))
	sameResults(t, want, s.Graph, sumArgs())
	if ifs := s.Graph.NodesOf(ir.OpIf); len(ifs) != 3 {
		t.Errorf("expected three tests, got %v", ifs)
	}
}

func TestPeelGuardedLoop(t *testing.T) {
	want := irtest.NewGuardedLoop().Graph
	l := irtest.NewGuardedLoop()
	set := loops.Discover(l.Graph)
	newTransformer().Peel(set.LoopOf(l.Header))
	sameResults(t, want, l.Graph, countArgs())
	if guards := l.Graph.NodesOf(ir.OpGuard); len(guards) != 2 || guards[0].State() == guards[1].State() {
		t.Errorf("expected two guards with their own state, got %v", guards)
	}
}

func TestPeelInnerLoop(t *testing.T) {
	want := irtest.NewNestedLoop().Graph
	n := irtest.NewNestedLoop()
	set := loops.Discover(n.Graph)
	outer := set.LoopOf(n.Outer)
	before := outer.Members().Len()
	newTransformer().Peel(set.LoopOf(n.Inner))
	sameResults(t, want, n.Graph, gridArgs())

	if set.Len() != 2 {
		t.Errorf("peeling the inner loop adds no loop, got %d", set.Len())
	}
	if after := outer.Members().Len(); after <= before {
		t.Errorf("the outer loop should contain the peeled iteration: %d members before, %d after", before, after)
	}
}

// The exit of the inner loop feeds the back edge of the outer loop: with m = 0 only the peeled test runs, and the
// outer loop must read the value the copy leaves with
func TestPeelInnerLoopWithoutIterations(t *testing.T) {
	n := irtest.NewNestedLoop()
	set := loops.Discover(n.Graph)
	phis := len(n.Outer.Phis())
	newTransformer().Peel(set.LoopOf(n.Inner))

	if got := len(n.Outer.Phis()); got != phis {
		t.Errorf("peeling the inner loop should not change the phis of the outer header: %d before, %d after",
			phis, got)
	}
	for i := int64(0); i <= 3; i++ {
		res := run(t, n.Graph, i, int64(0))
		if res.kind != interp.Returned || res.value != i {
			t.Errorf("grid(%d, 0): expected %d, got %v", i, i, res)
		}
	}
}

func TestPeelOuterLoop(t *testing.T) {
	want := irtest.NewNestedLoop().Graph
	n := irtest.NewNestedLoop()
	set := loops.Discover(n.Graph)
	newTransformer().Peel(set.LoopOf(n.Outer))
	sameResults(t, want, n.Graph, gridArgs())

	if set.Len() != 3 {
		t.Fatalf("the copy of the inner loop should be registered, got %d loops", set.Len())
	}
	for _, l := range set.Loops() {
		if l.Header() == n.Outer || l.Header() == n.Inner {
			continue
		}
		if l.Parent() != nil {
			t.Errorf("the copy of the inner loop runs before the outer loop, got parent %s", l.Parent())
		}
		if len(l.Exits()) != 1 {
			t.Errorf("expected one exit for %s, got %v", l, l.Exits())
		}
	}
	if set.LoopOf(n.Inner).Parent() != set.LoopOf(n.Outer) {
		t.Errorf("the inner loop should stay in the outer loop")
	}
}

func TestPeelLoopWithoutExits(t *testing.T) {
	want := irtest.NewInfiniteLoop().Graph
	l := irtest.NewInfiniteLoop()
	set := loops.Discover(l.Graph)
	c := config.NewDefault()
	c.LogLevel = int(config.TraceLevel)
	logs := &strings.Builder{}
	logger := config.NewLogGroup(c)
	logger.SetAllOutput(logs)
	loops.NewTransformer(c, logger).Peel(set.LoopOf(l.Header))

	sameResults(t, want, l.Graph, [][]interp.Value{{}})
	if res := run(t, l.Graph); res.kind != interp.Deoptimized {
		t.Errorf("the loop only leaves by deoptimizing, got %v", res)
	}
	if len(l.Graph.NodesOf(ir.OpGuard)) != 2 {
		t.Errorf("the guard should be peeled")
	}
	if !strings.Contains(logs.String(), "no exits") || !strings.Contains(logs.String(), "nodes before") {
		t.Errorf("unexpected log %q", logs.String())
	}
}

// branchLoop is the graph of
//
//	steps(n):
//	  i := 0
//	  for i < n { if i < 2 { i += 1 } else { i += 2 } }
//	  return i
//
// where each branch of the body has its own loop end
type branchLoop struct {
	graph  *ir.Graph
	header *ir.Node
	test   *ir.Node
}

func newBranchLoop() *branchLoop {
	g := ir.NewGraph(&meta.Method{Name: "steps", Static: true})
	n := g.Param(0, ir.Stamp{})
	entry := g.End()
	g.Start().SetNext(entry)
	header := g.LoopBegin(entry)
	i := g.Phi(header, g.Const(0))
	test := g.If(g.Less(i, n), 0.9)
	header.SetNext(test)
	body, exit := g.Begin(), g.Begin()
	test.SetTrueSucc(body)
	test.SetFalseSucc(exit)
	exit.SetNext(g.Return(i))

	small := g.If(g.Less(i, g.Const(2)), 0.5)
	body.SetNext(small)
	b1, b2 := g.Begin(), g.Begin()
	small.SetTrueSucc(b1)
	small.SetFalseSucc(b2)
	b1.SetNext(g.LoopEnd(header))
	b2.SetNext(g.LoopEnd(header))
	i.AddPhiInput(g.Add(i, g.Const(1)))
	i.AddPhiInput(g.Add(i, g.Const(2)))
	return &branchLoop{graph: g, header: header, test: test}
}

func TestPeelLoopWithSeveralLoopEnds(t *testing.T) {
	want := newBranchLoop().graph
	b := newBranchLoop()
	set := loops.Discover(b.graph)
	newTransformer().Peel(set.LoopOf(b.header))

	var args [][]interp.Value
	for n := int64(0); n <= 6; n++ {
		args = append(args, []interp.Value{n})
	}
	sameResults(t, want, b.graph, args)
	if len(b.header.Ends()) != 3 {
		t.Errorf("the header should keep its loop ends, got %v", b.header.Ends())
	}
	if b.header.ForwardEnd().Pred() == nil || b.header.ForwardEnd().Pred().Op() != ir.OpMerge {
		t.Errorf("the loop ends of the peeled iteration should be merged before the header")
	}
}

func TestInvertSumLoop(t *testing.T) {
	want := irtest.NewSumLoop().Graph
	s := irtest.NewSumLoop()
	set := loops.Discover(s.Graph)
	l := set.LoopOf(s.Header)
	if err := newTransformer().Invert(l, s.Test); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sameResults(t, want, s.Graph, sumArgs())

	if s.Test.IsAlive() {
		t.Errorf("the test at the top of the loop should be removed")
	}
	if s.Header.Next().Op() != ir.OpBegin {
		t.Errorf("the body should follow the header, got %s", s.Header.Next())
	}
	if pred := s.End.Pred(); pred.Op() != ir.OpBegin || pred.Pred().Op() != ir.OpIf {
		t.Errorf("the loop should test its condition before the loop end")
	}
	if len(l.Exits()) != 1 {
		t.Errorf("expected the exit of the bottom test, got %v", l.Exits())
	}
}

func TestInvertGuardedLoop(t *testing.T) {
	want := irtest.NewGuardedLoop().Graph
	l := irtest.NewGuardedLoop()
	set := loops.Discover(l.Graph)
	if err := newTransformer().Invert(set.LoopOf(l.Header), l.Test); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sameResults(t, want, l.Graph, countArgs())
	if l.Guard.IsAlive() {
		t.Errorf("the guard at the top of the loop should be removed")
	}
	if len(l.Graph.NodesOf(ir.OpGuard)) != 2 {
		t.Errorf("expected a guard before the loop and one before the loop end")
	}
}

func TestInvertOuterLoop(t *testing.T) {
	want := irtest.NewNestedLoop().Graph
	n := irtest.NewNestedLoop()
	set := loops.Discover(n.Graph)
	if err := newTransformer().Invert(set.LoopOf(n.Outer), n.Outer.Next()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sameResults(t, want, n.Graph, gridArgs())
	if set.LoopOf(n.Inner).Parent() != set.LoopOf(n.Outer) {
		t.Errorf("the inner loop should stay in the outer loop")
	}
}

func TestInvertWithoutVerification(t *testing.T) {
	c := config.NewDefault()
	c.VerifyGraphs = false
	tr := loops.NewTransformer(c, nil)

	s := irtest.NewSumLoop()
	if err := tr.Invert(loops.Discover(s.Graph).LoopOf(s.Header), s.Test); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ir.Verify(s.Graph); err != nil {
		t.Fatalf("inverted graph is broken: %v\n%s", err, ir.Dump(s.Graph))
	}
	sums := []int64{0, 3, 4, 8, 9, 14}
	for i, args := range sumArgs() {
		res := run(t, s.Graph, args...)
		if res.kind != interp.Returned || res.value != sums[i] {
			t.Errorf("sum on %v: expected %d, got %v", args, sums[i], res)
		}
	}
	if test := s.End.Pred().Pred(); test.Op() != ir.OpIf || test.Succ(0) != s.End.Pred() {
		t.Errorf("the bottom test should continue to the loop end, got %s", test)
	}

	n := irtest.NewNestedLoop()
	if err := tr.Invert(loops.Discover(n.Graph).LoopOf(n.Outer), n.Outer.Next()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ir.Verify(n.Graph); err != nil {
		t.Fatalf("inverted graph is broken: %v\n%s", err, ir.Dump(n.Graph))
	}
	for _, args := range gridArgs() {
		i, m := args[0].(int64), args[1].(int64)
		res := run(t, n.Graph, args...)
		if want := i*(i-1)/2*m + i; res.kind != interp.Returned || res.value != want {
			t.Errorf("grid on %v: expected %d, got %v", args, want, res)
		}
	}
}

func TestInvertRejectsOtherShapes(t *testing.T) {
	n := irtest.NewNestedLoop()
	spin := irtest.NewInfiniteLoop()
	b := newBranchLoop()
	tests := []struct {
		name  string
		graph *ir.Graph
		loop  *ir.Node
		split *ir.Node
	}{
		{"not an if", spin.Graph, spin.Header, spin.Header.Next()},
		{"test after the body", n.Graph, n.Outer, n.Inner.Next()},
		{"several loop ends", b.graph, b.header, b.test},
		{"no split", n.Graph, n.Inner, nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			set := loops.Discover(test.graph)
			count := test.graph.NodeCount()
			err := newTransformer().Invert(set.LoopOf(test.loop), test.split)
			if !errors.Is(err, loops.ErrNotInvertible) {
				t.Fatalf("expected ErrNotInvertible, got %v", err)
			}
			if test.graph.NodeCount() != count {
				t.Errorf("the graph should be left unchanged")
			}
		})
	}
}

func TestDiscoverRejectsIrreducibleLoop(t *testing.T) {
	g := ir.NewGraph(nil)
	x := g.Param(0, ir.Stamp{})
	split := g.If(g.Less(x, g.Const(0)), 0.5)
	g.Start().SetNext(split)
	left, right := g.Begin(), g.Begin()
	split.SetTrueSucc(left)
	split.SetFalseSucc(right)
	entry := g.End()
	left.SetNext(entry)
	header := g.LoopBegin(entry)
	header.SetNext(g.Return(nil))
	// the loop end is reached without going through the header
	right.SetNext(g.LoopEnd(header))

	defer func() {
		r := recover()
		if _, ok := r.(*ir.InvariantError); !ok {
			t.Errorf("expected an invariant error, got %v", r)
		}
	}()
	loops.Discover(g)
	t.Errorf("discovery should fail")
}

func ExampleTransformer_Peel() {
	s := irtest.NewSumLoop()
	set := loops.Discover(s.Graph)
	loops.NewTransformer(nil, nil).Peel(set.LoopOf(s.Header))
	res, _ := interp.New(nil).Run(s.Graph, []int64{1, 2, 3}, int64(3))
	fmt.Println(res)
	// Output: returned(6)
}
