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
	"golang.org/x/tools/container/intsets"
)

// variantSet returns the floating nodes whose value may change from one iteration to the next: the phis of the
// merges of the loop, the floating usages of its control nodes, and transitively their floating usages. The phis
// of merges outside the loop are left out, and the walk does not go past them.
func (l *Loop) variantSet() *intsets.Sparse {
	l.ensure()
	if l.variant != nil {
		return l.variant
	}
	set := &intsets.Sparse{}
	var stack []*ir.Node
	push := func(x *ir.Node) {
		if x.Op().IsFloating() && !l.outsidePhi(x) && set.Insert(int(x.ID())) {
			stack = append(stack, x)
		}
	}
	for _, n := range l.MemberNodes() {
		for _, phi := range n.Phis() {
			push(phi)
		}
		for _, u := range n.Usages() {
			push(u)
		}
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, u := range cur.Usages() {
			push(u)
		}
	}
	l.variant = set
	return set
}

// insideSet returns the floating nodes used by the loop: the phis of its merges, and the floating nodes reachable
// backward from the references of its control nodes, without going past the phis of merges outside the loop.
// The state of the header is left out, since peeling and inversion replace the header's role rather than copying
// it.
func (l *Loop) insideSet() *intsets.Sparse {
	l.ensure()
	if l.inside != nil {
		return l.inside
	}
	set := &intsets.Sparse{}
	var stack []*ir.Node
	push := func(x *ir.Node) {
		if x != nil && x.Op().IsFloating() && !l.outsidePhi(x) && set.Insert(int(x.ID())) {
			stack = append(stack, x)
		}
	}
	for _, n := range l.MemberNodes() {
		for _, phi := range n.Phis() {
			push(phi)
		}
		for _, x := range n.Inputs() {
			push(x)
		}
		if n != l.header {
			push(n.State())
		}
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, x := range cur.Inputs() {
			push(x)
		}
		push(cur.State())
	}
	l.inside = set
	return set
}

// outsidePhi returns true for the phis of merges that are not members of l, such as the headers of the loops
// containing l. Their value is fixed during an iteration of l.
func (l *Loop) outsidePhi(x *ir.Node) bool {
	return x.Op() == ir.OpPhi && !l.Contains(x.Merge())
}

// iteration returns the floating nodes computed by one iteration of the loop, in ID order: the nodes that both
// vary with the iteration and are used inside the loop, and the states of the control nodes other than the header
func (l *Loop) iteration() []*ir.Node {
	set := &intsets.Sparse{}
	set.Intersection(l.variantSet(), l.insideSet())
	for _, n := range l.MemberNodes() {
		if n != l.header && n.State() != nil {
			set.Insert(int(n.State().ID()))
		}
	}
	return nodesOf(l.set.graph, set)
}

// segmentSlice returns the states of the control nodes of segment, and the floating nodes that vary with the
// iteration and are used by segment, in ID order. The walk stops at the phis of the header, which are not part of
// the result.
func (l *Loop) segmentSlice(segment []*ir.Node) []*ir.Node {
	variant := l.variantSet()
	set := &intsets.Sparse{}
	var stack []*ir.Node
	push := func(x *ir.Node) {
		if x == nil || !variant.Has(int(x.ID())) {
			return
		}
		if x.Op() == ir.OpPhi && x.Merge() == l.header {
			return
		}
		if set.Insert(int(x.ID())) {
			stack = append(stack, x)
		}
	}
	for _, n := range segment {
		for _, x := range n.Inputs() {
			push(x)
		}
		if st := n.State(); st != nil && set.Insert(int(st.ID())) {
			stack = append(stack, st)
		}
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, x := range cur.Inputs() {
			push(x)
		}
		push(cur.State())
	}
	return nodesOf(l.set.graph, set)
}
