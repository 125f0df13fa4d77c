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
	"errors"
	"fmt"

	"github.com/awslabs/ar-go-graphopt/analysis/ir"
)

// ErrNotInvertible is returned by Invert for loops that do not have the shape of a loop testing its condition
// before its body
var ErrNotInvertible = errors.New("loop cannot be inverted")

// Invert turns l, which tests its exit condition with split at the top of each iteration, into a loop that tests
// it at the bottom. The guards between the header and split, and split itself, are copied before the loop to
// decide whether the loop is entered, and at the end of the body to decide whether it iterates again; the copy at
// the top is dropped. Both exits of the copies are joined with the original exit.
//
// The header must be followed by a chain of guards ending with split, one successor of split must stay in the
// loop and the other must leave it, and the loop must have a single loop end. Other loops are left unchanged and
// ErrNotInvertible is returned.
func (t *Transformer) Invert(l *Loop, split *ir.Node) error {
	g := l.set.graph
	before := g.NodeCount()
	header := l.header
	if split == nil || split.Op() != ir.OpIf {
		return fmt.Errorf("%w: %s is not an if", ErrNotInvertible, split)
	}
	if n := len(header.LoopEnds()); n != 1 {
		return fmt.Errorf("%w: %s has %d loop ends", ErrNotInvertible, l, n)
	}
	var segment []*ir.Node
	for cur := header.Next(); cur != split; cur = cur.Next() {
		if cur == nil || cur.Op() != ir.OpGuard {
			return fmt.Errorf("%w: %s is not a guard before %s", ErrNotInvertible, cur, split)
		}
		segment = append(segment, cur)
	}
	segment = append(segment, split)

	bodyIndex := 0
	switch {
	case l.Contains(split.TrueSucc()) && !l.Contains(split.FalseSucc()):
	case l.Contains(split.FalseSucc()) && !l.Contains(split.TrueSucc()):
		bodyIndex = 1
	default:
		return fmt.Errorf("%w: %s does not exit %s", ErrNotInvertible, split, l)
	}
	body, exit := split.Succ(bodyIndex), split.Succ(1-bodyIndex)
	loopEnd := header.LoopEnds()[0]

	phis := append([]*ir.Node(nil), header.Phis()...)
	floating := l.segmentSlice(segment)
	entryValues := map[*ir.Node]*ir.Node{}
	backValues := map[*ir.Node]*ir.Node{}
	for _, phi := range phis {
		entryValues[phi] = phi.Input(0)
		backValues[phi] = phi.Input(1)
	}

	// copyTest duplicates the segment with the phis of the header bound to values. It returns the map of the
	// copies, and the copies of the successors of split.
	copyTest := func(values map[*ir.Node]*ir.Node) (map[*ir.Node]*ir.Node, *ir.Node, *ir.Node) {
		repl := make(map[*ir.Node]*ir.Node, len(values)+2)
		for k, v := range values {
			repl[k] = v
		}
		in, out := g.Begin(), g.Begin()
		repl[body] = in
		repl[exit] = out
		nodes := append(append([]*ir.Node(nil), segment...), floating...)
		return g.AddDuplicates(nodes, repl), in, out
	}

	// both copies are made while split still leads to body
	dupEntry, enter, skip := copyTest(entryValues)
	dupBack, again, leave := copyTest(backValues)

	// entry test, before the loop
	forward := header.ForwardEnd()
	forward.ReplaceAtPredecessor(dupEntry[segment[0]])
	enter.SetNext(forward)

	// the body directly follows the header
	header.SetNext(nil)
	split.SetSucc(bodyIndex, nil)
	header.SetNext(body)

	// back test, before the loop end
	loopEnd.ReplaceAtPredecessor(dupBack[segment[0]])
	again.SetNext(loopEnd)

	candidates := map[*ir.Node]bool{}
	for _, phi := range phis {
		candidates[phi] = true
	}
	for _, n := range floating {
		candidates[n] = true
	}
	valueIn := func(dup map[*ir.Node]*ir.Node, values map[*ir.Node]*ir.Node) func(*ir.Node) *ir.Node {
		return func(n *ir.Node) *ir.Node {
			if v, ok := values[n]; ok {
				return v
			}
			return dup[n]
		}
	}
	reconcile([]exitJoin{joinExit(exit, skip, leave)}, &exitSplitter{
		candidates:  candidates,
		firstValue:  valueIn(dupEntry, entryValues),
		secondValue: valueIn(dupBack, backValues),
	})
	ir.KillCFG(segment[0])

	l.set.Invalidate(l)
	t.done("inverted", l, before)
	return nil
}
