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
	"fmt"
	"strings"

	"github.com/awslabs/ar-go-graphopt/analysis/ir"
	"github.com/awslabs/ar-go-graphopt/analysis/meta"
)

// A Decision is an inlining opportunity at a call site: it tells which methods replace the call, and under which
// condition. A decision is consumed by a single call to Apply.
//
// The implementations are *Exact, *Assumption, *SingleGuard and *PolymorphicCascade.
type Decision interface {
	// Site returns the call site the decision applies to
	Site() *ir.Node

	// Weight returns the estimated cost of the decision, as computed by the weight function given to Decide
	Weight() float64

	String() string

	decision()
}

type opportunity struct {
	invoke *ir.Node
	weight float64
}

func (o opportunity) Site() *ir.Node { return o.invoke }

func (o opportunity) Weight() float64 { return o.weight }

func (o opportunity) decision() {}

// Exact is a call that always selects Method
type Exact struct {
	opportunity
	Method *meta.Method
}

func (d *Exact) String() string {
	return "exact " + d.Method.String()
}

// Assumption is a call that selects Method as long as the Taken assumption on the class hierarchy holds
type Assumption struct {
	opportunity
	Method *meta.Method
	Taken  meta.Assumption
}

func (d *Assumption) String() string {
	return fmt.Sprintf("assumption %s (%s)", d.Method, d.Taken)
}

// SingleGuard is a call whose only profiled receiver type is Type, selecting Method. The inlined body is guarded
// by a type check that deoptimizes for any other receiver.
type SingleGuard struct {
	opportunity
	Method *meta.Method
	Type   *meta.Type
}

func (d *SingleGuard) String() string {
	return fmt.Sprintf("type-checked %s for %s", d.Method, d.Type)
}

// Target is one of the methods of a polymorphic cascade, with the profiled receiver types that select it
type Target struct {
	Method *meta.Method
	Types  []*meta.Type

	// Probability is the fraction of the calls whose receiver has one of Types
	Probability float64

	// BranchProbability is the probability that the test of Types succeeds, once the tests of the previous targets
	// failed
	BranchProbability float64
}

// PolymorphicCascade is a call dispatched over its profiled receiver types. Targets are tested in order, the most
// probable first. When NotRecorded is positive the receivers of other types go through a residual call;
// otherwise they deoptimize.
//
// The branch probabilities are accumulated from the least probable target up, starting from the residual
// branch, so each test's probability is its share of the calls that reach it. Executing the tests most probable
// first is what makes these probabilities compose back to the profile.
type PolymorphicCascade struct {
	opportunity
	Targets     []Target
	NotRecorded float64
}

// Megamorphic returns true if the cascade ends with a residual call
func (d *PolymorphicCascade) Megamorphic() bool {
	return d.NotRecorded > 0
}

func (d *PolymorphicCascade) String() string {
	var b strings.Builder
	if d.Megamorphic() {
		b.WriteString("megamorphic")
	} else {
		b.WriteString("polymorphic")
	}
	fmt.Fprintf(&b, ", %d methods [", len(d.Targets))
	for _, t := range d.Targets {
		names := make([]string, len(t.Types))
		for i, typ := range t.Types {
			names[i] = typ.Name
		}
		fmt.Fprintf(&b, " %s for %s:%.3f", t.Method, strings.Join(names, "|"), t.Probability)
	}
	fmt.Fprintf(&b, " ], not recorded:%.3f", d.NotRecorded)
	return b.String()
}
