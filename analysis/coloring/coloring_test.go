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

package coloring_test

import (
	"math/rand"
	"testing"

	"github.com/awslabs/ar-go-graphopt/analysis/coloring"
	"github.com/awslabs/ar-go-graphopt/analysis/ir"
	"github.com/awslabs/ar-go-graphopt/internal/interp"
)

// unionRule colors merges with the union of the bits of their ends. At a stall, loop headers take the union of
// their known ends when their entry is known; other merges are left uncolored.
func unionRule(m *ir.Node, colors []int, known []bool, final bool) (int, bool) {
	if final && (m.Op() != ir.OpLoopBegin || !known[0]) {
		return 0, false
	}
	res := 0
	for i, c := range colors {
		if known[i] {
			res |= c
		}
	}
	return res, true
}

type diamond struct {
	g                *ir.Graph
	x                *ir.Node
	ifNode, b1, b2   *ir.Node
	e1, e2, m, ret   *ir.Node
	guard1, guard2   *ir.Node
	test, candidate  *ir.Node
	q, use, mul, sum *ir.Node
}

// newDiamond builds
//
//	v := x + 1
//	if x < 0 { guard !(v+1 < x) } else { guard !(v+1 < x) }
//	q := phi(v, x)
//	return q + v*x
func newDiamond() *diamond {
	d := &diamond{g: ir.NewGraph(nil)}
	g := d.g
	d.x = g.Param(0, ir.Stamp{})
	d.candidate = g.Add(d.x, g.Const(1))
	d.ifNode = g.If(g.Less(d.x, g.Const(0)), 0.5)
	g.Start().SetNext(d.ifNode)
	d.b1, d.b2 = g.Begin(), g.Begin()
	d.ifNode.SetTrueSucc(d.b1)
	d.ifNode.SetFalseSucc(d.b2)

	d.use = g.Add(d.candidate, g.Const(1))
	d.test = g.Less(d.use, d.x)
	d.guard1 = g.Guard(d.test, true, ir.ReasonUnreachedCode)
	d.guard2 = g.Guard(d.test, true, ir.ReasonUnreachedCode)
	d.b1.SetNext(d.guard1)
	d.b2.SetNext(d.guard2)
	d.e1, d.e2 = g.End(), g.End()
	d.guard1.SetNext(d.e1)
	d.guard2.SetNext(d.e2)
	d.m = g.Merge(d.e1, d.e2)
	d.q = g.Phi(d.m, d.candidate, d.x)
	d.mul = g.Binary(ir.OpMul, d.candidate, d.x)
	d.sum = g.Add(d.q, d.mul)
	d.ret = g.Return(d.sum)
	d.m.SetNext(d.ret)
	return d
}

const (
	left   = 1
	right  = 2
	joined = left | right
)

func TestColorDownDiamond(t *testing.T) {
	d := newDiamond()
	c := coloring.ColorDown(map[*ir.Node]int{d.b1: left, d.b2: right}, unionRule, nil)
	expected := map[*ir.Node]int{
		d.b1: left, d.guard1: left, d.e1: left,
		d.b2: right, d.guard2: right, d.e2: right,
		d.m: joined, d.ret: joined,
	}
	if c.Len() != len(expected) {
		t.Errorf("expected %d colored nodes, got %d", len(expected), c.Len())
	}
	for n, col := range expected {
		if got, ok := c.Of(n); !ok || got != col {
			t.Errorf("%s: expected color %d, got %d (colored: %v)", n, col, got, ok)
		}
	}
	if _, ok := c.Of(d.ifNode); ok {
		t.Errorf("nodes before the seeds must not be colored")
	}
}

func TestColorDownKeepsSeeds(t *testing.T) {
	d := newDiamond()
	c := coloring.ColorDown(map[*ir.Node]int{d.b1: left, d.guard1: right, d.b2: right}, unionRule, nil)
	if col, _ := c.Of(d.e1); col != right {
		t.Errorf("e1 should inherit the color of its closest colored predecessor, got %d", col)
	}
	if col, _ := c.Of(d.b1); col != left {
		t.Errorf("seeds keep their color")
	}
	if col, _ := c.Of(d.m); col != right {
		t.Errorf("merge of two right ends should be right, got %d", col)
	}
}

func TestColorDownDecliningRuleStopsFlooding(t *testing.T) {
	d := newDiamond()
	decline := func(*ir.Node, []int, []bool, bool) (int, bool) { return 0, false }
	c := coloring.ColorDown(map[*ir.Node]int{d.b1: left, d.b2: right}, decline, nil)
	if _, ok := c.Of(d.m); ok {
		t.Errorf("merge should stay uncolored")
	}
	if _, ok := c.Of(d.ret); ok {
		t.Errorf("flooding should stop at the undecided merge")
	}
}

func TestColorDownLoop(t *testing.T) {
	g := ir.NewGraph(nil)
	x := g.Param(0, ir.Stamp{})
	entry := g.End()
	g.Start().SetNext(entry)
	lb := g.LoopBegin(entry)
	ifNode := g.If(g.Less(x, g.Const(3)), 0.9)
	lb.SetNext(ifNode)
	body, exit := g.Begin(), g.Begin()
	ifNode.SetTrueSucc(body)
	ifNode.SetFalseSucc(exit)
	le := g.LoopEnd(lb)
	body.SetNext(le)
	ret := g.Return(x)
	exit.SetNext(ret)

	c := coloring.ColorDown(map[*ir.Node]int{g.Start(): left}, unionRule, nil)
	for _, n := range []*ir.Node{entry, lb, ifNode, body, le, exit, ret} {
		if col, ok := c.Of(n); !ok || col != left {
			t.Errorf("%s should be colored through the loop header, got %d (%v)", n, col, ok)
		}
	}

	// a header entered from an uncolored end is left alone
	c = coloring.ColorDown(map[*ir.Node]int{body: right}, unionRule, nil)
	if _, ok := c.Of(lb); ok {
		t.Errorf("loop header entered from uncolored code should not be colored")
	}
	if c.Len() != 2 {
		t.Errorf("only the body and its loop end are colored, got %v", c.Nodes())
	}
}

type builder struct {
	g      *ir.Graph
	r      *rand.Rand
	x      *ir.Node
	budget int
}

func (b *builder) cond() *ir.Node {
	return b.g.Less(b.x, b.g.Const(b.r.Int63n(10)))
}

// seq appends random structures after cur, a fixed node with an empty next, and returns the last fixed node
func (b *builder) seq(cur *ir.Node, depth int) *ir.Node {
	g := b.g
	for b.budget > 0 && b.r.Intn(4) != 0 {
		b.budget--
		k := b.r.Intn(3)
		switch {
		case k == 0 || depth > 3:
			guard := g.Guard(b.cond(), false, ir.ReasonUnreachedCode)
			cur.SetNext(guard)
			cur = guard
		case k == 1:
			ifNode := g.If(b.cond(), 0.5)
			cur.SetNext(ifNode)
			t, f := g.Begin(), g.Begin()
			ifNode.SetTrueSucc(t)
			ifNode.SetFalseSucc(f)
			e1, e2 := g.End(), g.End()
			b.seq(t, depth+1).SetNext(e1)
			b.seq(f, depth+1).SetNext(e2)
			cur = g.Merge(e1, e2)
		default:
			e := g.End()
			cur.SetNext(e)
			lb := g.LoopBegin(e)
			ifNode := g.If(b.cond(), 0.9)
			lb.SetNext(ifNode)
			body, exit := g.Begin(), g.Begin()
			ifNode.SetTrueSucc(body)
			ifNode.SetFalseSucc(exit)
			b.seq(body, depth+1).SetNext(g.LoopEnd(lb))
			cur = exit
		}
	}
	return cur
}

func randomCFG(size int, seed int64) *ir.Graph {
	b := &builder{g: ir.NewGraph(nil), r: rand.New(rand.NewSource(seed)), budget: size}
	b.x = b.g.Param(0, ir.Stamp{})
	begin := b.g.Begin()
	b.g.Start().SetNext(begin)
	last := begin
	for b.budget > 0 {
		last = b.seq(last, 0)
	}
	last.SetNext(b.g.Return(b.x))
	return b.g
}

func TestColorDownOrderIndependent(t *testing.T) {
	for seed := int64(0); seed < 40; seed++ {
		g := randomCFG(30, seed)
		if err := ir.Verify(g); err != nil {
			t.Fatalf("random graph %d is invalid: %v", seed, err)
		}
		r := rand.New(rand.NewSource(seed))
		var begins []*ir.Node
		for _, n := range g.Nodes() {
			if n.Op() == ir.OpBegin {
				begins = append(begins, n)
			}
		}
		seeds := map[*ir.Node]int{}
		for i := 0; i < 3; i++ {
			seeds[begins[r.Intn(len(begins))]] = 1 << i
		}

		reference := coloring.ColorDown(seeds, unionRule, nil)
		for k := 0; k < 10; k++ {
			order := rand.New(rand.NewSource(seed*100 + int64(k)))
			pick := func(pending int) int { return order.Intn(pending) }
			c := coloring.ColorDown(seeds, unionRule, pick)
			if !c.Equal(reference) {
				t.Fatalf("graph %d: coloring depends on the processing order (%d vs %d nodes)", seed,
					c.Len(), reference.Len())
			}
		}
		again := coloring.ColorDown(seeds, unionRule, nil)
		if !again.Equal(reference) {
			t.Fatalf("graph %d: coloring is not reproducible", seed)
		}
	}
}

// constSplitter gives the candidate the value 10 on the left and 20 on the right, and a phi at the merge
type constSplitter struct {
	d        *diamond
	fixed    map[*ir.Node]int
	splits   map[*ir.Node]int
	material int
}

func (cs *constSplitter) Candidate(n *ir.Node) bool { return n == cs.d.candidate }

func (cs *constSplitter) Materialize(n *ir.Node, c int, s *coloring.Split[int]) *ir.Node {
	cs.material++
	g := n.Graph()
	switch c {
	case left:
		return g.Const(10)
	case right:
		return g.Const(20)
	}
	return g.Phi(cs.d.m, s.Value(n, left), s.Value(n, right))
}

func (cs *constSplitter) Fix(n *ir.Node, c int) { cs.fixed[n] = c }

func (cs *constSplitter) FixSplit(n *ir.Node, clone *ir.Node, c int) { cs.splits[n]++ }

func TestSplitByColor(t *testing.T) {
	d := newDiamond()
	c := coloring.ColorDown(map[*ir.Node]int{d.b1: left, d.b2: right}, unionRule, nil)
	cs := &constSplitter{d: d, fixed: map[*ir.Node]int{}, splits: map[*ir.Node]int{}}
	s := coloring.SplitByColor[int](c, cs)
	if err := ir.Verify(d.g); err != nil {
		t.Fatalf("invalid graph after split: %v\n%s", err, ir.Dump(d.g))
	}

	if cs.material != 3 {
		t.Errorf("the candidate should be materialized once per color, got %d", cs.material)
	}
	if d.guard1.Input(0) == d.guard2.Input(0) {
		t.Errorf("the guards are colored differently and must not share their condition")
	}
	if cs.splits[d.test] != 1 || cs.splits[d.use] != 1 {
		t.Errorf("the shared condition and its input should be cloned once, got %v", cs.splits)
	}
	if cs.fixed[d.mul] != joined || cs.fixed[d.sum] != joined {
		t.Errorf("nodes used after the merge are fixed with the joined color, got %v", cs.fixed)
	}
	if d.q.Input(0).Op() != ir.OpConst || d.q.Input(1) != d.x {
		t.Errorf("the phi reads the left value at its left end, got %v", d.q.Inputs())
	}
	if phi := d.mul.Input(0); phi.Op() != ir.OpPhi || phi.Merge() != d.m {
		t.Errorf("the product reads the joined value, got %s", phi)
	}
	if cols := s.Colors(d.test); len(cols) != 2 {
		t.Errorf("the condition is used under two colors, got %v", cols)
	}
	if s.Value(d.x, left) != d.x {
		t.Errorf("nodes that do not depend on the candidate keep their value")
	}

	in := interp.New(nil)
	for _, tc := range []struct {
		arg, expected int64
	}{{-1, 0}, {2, 42}} {
		res, err := in.Run(d.g, tc.arg)
		if err != nil || res.Outcome != interp.Returned || res.Value != tc.expected {
			t.Errorf("f(%d): expected %d, got %v %v", tc.arg, tc.expected, res, err)
		}
	}
}

func TestSplitByColorWithoutCandidate(t *testing.T) {
	d := newDiamond()
	before := d.g.NodeCount()
	c := coloring.ColorDown(map[*ir.Node]int{d.b1: left, d.b2: right}, unionRule, nil)
	none := &constSplitter{d: &diamond{}, fixed: map[*ir.Node]int{}, splits: map[*ir.Node]int{}}
	coloring.SplitByColor[int](c, none)
	if d.g.NodeCount() != before || len(none.fixed) != 0 || len(none.splits) != 0 {
		t.Errorf("nothing should change without candidates")
	}
}
