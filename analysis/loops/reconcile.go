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

package loops

import (
	"github.com/awslabs/ar-go-graphopt/analysis/coloring"
	"github.com/awslabs/ar-go-graphopt/analysis/ir"
)

type side int

const (
	// first is the copy placed before the loop: the peeled iteration, or the entry test of an inverted loop
	first side = iota + 1
	// second is the loop itself
	second
	// joined is the color of a merge reached from both sides
	joined
)

// exitColor tells which copy of the iteration the values observed by a control node come from. Joined colors
// carry the merge where the values meet.
type exitColor struct {
	side  side
	merge *ir.Node
}

// exitRule colors the merges after the exits. A merge of ends of the same color takes that color, a merge of
// different colors is joined. At a stall, a loop header whose entry is colored keeps the color of its entry;
// other merges stay uncolored.
func exitRule(m *ir.Node, colors []exitColor, known []bool, final bool) (exitColor, bool) {
	if final {
		if m.Op() == ir.OpLoopBegin && known[0] {
			return colors[0], true
		}
		return exitColor{}, false
	}
	for _, c := range colors[1:] {
		if c != colors[0] {
			return exitColor{side: joined, merge: m}, true
		}
	}
	return colors[0], true
}

// exitSplitter gives their value on each side to the floating nodes of the duplicated iteration
type exitSplitter struct {
	candidates  map[*ir.Node]bool
	firstValue  func(n *ir.Node) *ir.Node
	secondValue func(n *ir.Node) *ir.Node
}

func (e *exitSplitter) Candidate(n *ir.Node) bool {
	return e.candidates[n]
}

func (e *exitSplitter) Materialize(n *ir.Node, c exitColor, s *coloring.Split[exitColor]) *ir.Node {
	switch c.side {
	case first:
		return e.firstValue(n)
	case second:
		return e.secondValue(n)
	}
	ir.Assertf(n.Op() != ir.OpFrameState, n, "frame state observed after %s", c.merge)
	phi := n.Graph().Phi(c.merge)
	for _, end := range c.merge.Ends() {
		ec, ok := s.Coloring().Of(end)
		ir.Assertf(ok, end, "end of joined merge %s is not colored", c.merge)
		phi.AddPhiInput(s.Value(n, ec))
	}
	return phi
}

// Fix has nothing to do: the inputs of n already are the values of its color
func (e *exitSplitter) Fix(*ir.Node, exitColor) {}

func (e *exitSplitter) FixSplit(*ir.Node, *ir.Node, exitColor) {}

// exitJoin holds the ends of the merge joining an exit of the loop to the matching exit of the copy
type exitJoin struct {
	fromFirst, fromSecond *ir.Node
}

// joinExit moves what follows exit after a new merge, entered from block starts fromFirst and fromSecond. The
// usages of exit are moved to the merge. fromSecond may be exit itself.
func joinExit(exit, fromFirst, fromSecond *ir.Node) exitJoin {
	g := exit.Graph()
	next := exit.Next()
	exit.SetNext(nil)
	a, b := g.End(), g.End()
	fromFirst.SetNext(a)
	fromSecond.SetNext(b)
	m := g.Merge(a, b)
	m.SetNext(next)
	if exit.HasUsages() {
		exit.ReplaceAtUsages(m)
	}
	return exitJoin{fromFirst: a, fromSecond: b}
}

// reconcile makes every node after the joins observe the values of the side it is reached from
func reconcile(joins []exitJoin, splitter *exitSplitter) *coloring.Split[exitColor] {
	seeds := map[*ir.Node]exitColor{}
	for _, j := range joins {
		seeds[j.fromFirst] = exitColor{side: first}
		seeds[j.fromSecond] = exitColor{side: second}
	}
	c := coloring.ColorDown(seeds, exitRule, nil)
	return coloring.SplitByColor[exitColor](c, splitter)
}
