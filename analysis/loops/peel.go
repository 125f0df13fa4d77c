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
	"github.com/awslabs/ar-go-graphopt/analysis/ir"
)

// Peel moves the first iteration of l before the loop. The copy of the iteration is entered where the loop was,
// and continues into the loop header. Each exit of the loop is joined with its copy, and the nodes after the
// exits observe the values of the copy they are reached from.
//
// The members and exits of l and of the loops containing it are computed again when next asked for. Copies of
// the loops nested in l are added to the loop set.
func (t *Transformer) Peel(l *Loop) {
	g := l.set.graph
	before := g.NodeCount()
	header := l.header
	forward := header.ForwardEnd()
	loopEnds := append([]*ir.Node(nil), header.LoopEnds()...)
	phis := append([]*ir.Node(nil), header.Phis()...)
	exits := append([]*ir.Node(nil), l.Exits()...)
	members := l.MemberNodes()
	floating := l.iteration()
	nested := l.set.descendants(l)

	entryValues := map[*ir.Node]*ir.Node{}
	for _, phi := range phis {
		entryValues[phi] = phi.Input(0)
	}

	// the header becomes a block start, the loop ends become forward ends, and the phis stand for their entry
	// value until the copy is linked
	start := g.Begin()
	repl := map[*ir.Node]*ir.Node{header: start}
	placeholders := make([]*ir.Node, len(phis))
	for i, phi := range phis {
		placeholders[i] = g.Placeholder()
		repl[phi] = placeholders[i]
	}
	ends := make([]*ir.Node, len(loopEnds))
	for i, e := range loopEnds {
		ends[i] = g.End()
		repl[e] = ends[i]
	}
	exitCopies := make([]*ir.Node, len(exits))
	for i, x := range exits {
		exitCopies[i] = g.Begin()
		repl[x] = exitCopies[i]
	}

	var nodes []*ir.Node
	for _, n := range members {
		if _, ok := repl[n]; !ok {
			nodes = append(nodes, n)
		}
	}
	for _, n := range floating {
		if _, ok := repl[n]; !ok {
			nodes = append(nodes, n)
		}
	}
	dup := g.AddDuplicates(nodes, repl)
	start.SetNext(dup[header.Next()])

	peeled := func(n *ir.Node) *ir.Node {
		if v, ok := entryValues[n]; ok {
			return v
		}
		if d, ok := dup[n]; ok {
			return d
		}
		return n
	}

	// the values entering the loop after the copy
	entry := ends[0]
	next := map[*ir.Node]*ir.Node{}
	if len(ends) == 1 {
		for _, phi := range phis {
			next[phi] = peeled(phi.Input(1))
		}
	} else {
		m := g.Merge(ends...)
		for _, phi := range phis {
			p := g.Phi(m)
			for i := range ends {
				p.AddPhiInput(peeled(phi.Input(i + 1)))
			}
			next[phi] = p
		}
		entry = g.End()
		m.SetNext(entry)
	}

	forward.ReplaceAtPredecessor(start)
	header.SetEnd(0, entry)
	forward.Kill()
	for _, phi := range phis {
		phi.SetInput(0, next[phi])
	}
	for i, phi := range phis {
		placeholders[i].ReplaceAtUsages(entryValues[phi])
		placeholders[i].Kill()
	}

	copies := make(map[*Loop]*Loop, len(nested))
	for _, n := range nested {
		copies[n] = l.set.add(dup[n.header], nil)
	}
	for _, n := range nested {
		if n.parent == l {
			copies[n].parent = l.parent
		} else {
			copies[n].parent = copies[n.parent]
		}
	}

	if len(exits) == 0 {
		t.logger.Debugf("%s has no exits: the values of the peeled iteration are not reconciled", l)
	} else {
		candidates := map[*ir.Node]bool{}
		for _, phi := range phis {
			candidates[phi] = true
		}
		for _, n := range floating {
			candidates[n] = true
		}
		joins := make([]exitJoin, len(exits))
		for i, x := range exits {
			joins[i] = joinExit(x, exitCopies[i], x)
		}
		reconcile(joins, &exitSplitter{
			candidates:  candidates,
			firstValue:  peeled,
			secondValue: func(n *ir.Node) *ir.Node { return n },
		})
	}

	l.set.Invalidate(l)
	t.done("peeled", l, before)
}
