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

import "github.com/awslabs/ar-go-graphopt/analysis/meta"

// AddDuplicates copies nodes into g and returns the map from every original node to its copy. The nodes may come
// from another graph.
//
// References from the copied nodes are rewritten in a second pass: a reference to a copied node becomes a
// reference to its copy, a reference to a key of replacements becomes a reference to the value, and any other
// reference is kept as is, which requires the referenced node to belong to g. Control successors that are
// neither copied nor replaced are left empty, for the caller to link. Phis follow their merge: a copied merge
// gets the copies of its ends, which must all be copied or replaced.
func (g *Graph) AddDuplicates(nodes []*Node, replacements map[*Node]*Node) map[*Node]*Node {
	dup := make(map[*Node]*Node, len(nodes))
	order := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if _, ok := dup[n]; ok {
			continue
		}
		Assertf(n.alive, n, "duplicating a dead node")
		d := g.add(n.op)
		d.copyPayload(n)
		dup[n] = d
		order = append(order, n)
	}

	mapRef := func(from, x *Node) *Node {
		if x == nil {
			return nil
		}
		if d, ok := dup[x]; ok {
			return d
		}
		if r, ok := replacements[x]; ok {
			return r
		}
		Assertf(x.graph == g, from, "reference to %s crosses graphs", x)
		return x
	}
	mapCtrl := func(x *Node) *Node {
		if x == nil {
			return nil
		}
		if d, ok := dup[x]; ok {
			return d
		}
		return replacements[x]
	}

	for _, n := range order {
		d := dup[n]
		for _, in := range n.inputs {
			d.appendInput(mapRef(n, in))
		}
		d.setState(mapRef(n, n.state))
		if n.op == OpPhi {
			m := mapRef(n, n.merge)
			d.merge = m
			m.phis = append(m.phis, d)
		}
		for i, s := range n.succs {
			if t := mapCtrl(s); t != nil {
				d.SetSucc(i, t)
			}
		}
		if n.op.IsMerge() {
			for _, e := range n.ends {
				de := mapCtrl(e)
				Assertf(de != nil, e, "end of duplicated merge %s is not duplicated", n)
				de.merge = d
				d.ends = append(d.ends, de)
			}
		}
	}
	return dup
}

// Duplicate copies a single floating node, keeping its inputs
func (g *Graph) Duplicate(n *Node) *Node {
	Assertf(n.op.IsFloating() && n.op != OpPhi, n, "only floating non-phi nodes can be duplicated alone")
	return g.AddDuplicates([]*Node{n}, nil)[n]
}

func (n *Node) copyPayload(from *Node) {
	n.Value = from.Value
	n.Index = from.Index
	n.Stamp = from.Stamp
	n.Probability = from.Probability
	n.Target = from.Target
	n.Kind = from.Kind
	n.Inlinable = from.Inlinable
	n.BCI = from.BCI
	n.Method = from.Method
	n.DuringCall = from.DuringCall
	n.Rethrow = from.Rethrow
	n.Negated = from.Negated
	n.Reason = from.Reason
	if from.Types != nil {
		n.Types = append([]*meta.Type(nil), from.Types...)
	}
}

// DuplicateModified returns a copy of frame state s at bci. When pop is set, the last value is dropped; pushed
// values are appended after it.
func (s *Node) DuplicateModified(bci int, rethrow bool, pop bool, pushed ...*Node) *Node {
	Assertf(s.op == OpFrameState, s, "not a frame state")
	values := s.inputs
	if pop {
		Assertf(len(values) > 0, s, "nothing to pop")
		values = values[:len(values)-1]
	}
	all := append(append([]*Node(nil), values...), pushed...)
	fs := s.graph.FrameState(s.Method, bci, s.state, all...)
	fs.Rethrow = rethrow
	return fs
}
