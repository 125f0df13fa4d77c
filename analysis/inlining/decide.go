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

	"github.com/awslabs/ar-go-graphopt/analysis/ir"
	"github.com/awslabs/ar-go-graphopt/analysis/meta"
	"github.com/awslabs/ar-go-graphopt/internal/funcutil"
	"golang.org/x/exp/slices"
)

// Decide returns the inlining decision for call site invoke, or none if the call cannot be inlined. level is
// the nesting level of the call site in the compilation unit; the depth of the outer frame states of the call is
// used when it is larger. speculate allows decisions that depend on the current class hierarchy. weight may be
// nil, in which case CodeSizeWeight is used.
//
// Decide never modifies the graph. Every call site that cannot be inlined is logged at debug level with the
// reason.
func (in *Inliner) Decide(invoke *ir.Node, level int, speculate bool,
	weight WeightFunc) funcutil.Optional[Decision] {
	if weight == nil {
		weight = CodeSizeWeight
	}
	if reason := checkInvoke(invoke); reason != "" {
		return in.reject(invoke, reason)
	}
	if d := invoke.State().Depth(); d > level {
		level = d
	}
	caller := invoke.State().Method
	target := invoke.Target

	if invoke.Kind == ir.InvokeSpecial || target.CanBeStaticallyBound() {
		return in.exact(invoke, target, level, caller, weight)
	}

	holder := target.Holder
	if recv := invoke.Receiver(); recv != nil && recv.Stamp.Type != nil && holder.IsAssignableFrom(recv.Stamp.Type) {
		// the receiver may be more precise than the holder of the target
		holder = recv.Stamp.Type
		if recv.Stamp.Exact {
			return in.exact(invoke, holder.ResolveMethod(target), level, caller, weight)
		}
	}
	if holder != nil && holder.Array {
		return in.exact(invoke, holder.ResolveMethod(target), level, caller, weight)
	}

	if speculate && holder != nil {
		if sub := holder.FindUniqueConcreteSubtype(); sub != nil {
			return in.assume(invoke, sub.ResolveMethod(target), meta.ConcreteSubtype{Context: holder, Subtype: sub},
				level, caller, weight)
		}
		if impl := holder.FindUniqueConcreteMethod(target); impl != nil {
			return in.assume(invoke, impl, meta.ConcreteMethod{Method: target, Context: holder, Impl: impl},
				level, caller, weight)
		}
	}
	return in.typeChecked(invoke, holder, level, caller, weight)
}

func (in *Inliner) exact(invoke *ir.Node, m *meta.Method, level int, caller *meta.Method,
	weight WeightFunc) funcutil.Optional[Decision] {
	if reason := in.checkTarget(invoke, m, level); reason != "" {
		return in.reject(invoke, reason)
	}
	return in.accept(&Exact{
		opportunity: opportunity{invoke: invoke, weight: weight(caller, m, invoke)},
		Method:      m,
	})
}

func (in *Inliner) assume(invoke *ir.Node, m *meta.Method, taken meta.Assumption, level int, caller *meta.Method,
	weight WeightFunc) funcutil.Optional[Decision] {
	if reason := in.checkTarget(invoke, m, level); reason != "" {
		return in.reject(invoke, reason)
	}
	return in.accept(&Assumption{
		opportunity: opportunity{invoke: invoke, weight: weight(caller, m, invoke)},
		Method:      m,
		Taken:       taken,
	})
}

func (in *Inliner) typeChecked(invoke *ir.Node, holder *meta.Type, level int, caller *meta.Method,
	weight WeightFunc) funcutil.Optional[Decision] {
	var profile *meta.TypeProfile
	if in.profiles != nil {
		profile = in.profiles.TypeProfile(caller, invoke.BCI)
	}
	if profile == nil {
		return in.reject(invoke, "no type profile exists")
	}

	types := profile.Types
	if in.config.FilterProfiledTypes {
		types = funcutil.Filter(types, func(p meta.ProfiledType) bool { return holder.IsAssignableFrom(p.Type) })
	}
	if len(types) == 0 {
		return in.reject(invoke, fmt.Sprintf("no types remained after filtering (%d types were recorded)",
			len(profile.Types)))
	}

	notRecorded := profile.NotRecorded
	if len(types) == 1 && notRecorded == 0 {
		if !in.config.InlineMonomorphic {
			return in.reject(invoke, "inlining monomorphic calls is disabled")
		}
		t := types[0].Type
		m := t.ResolveMethod(invoke.Target)
		if reason := in.checkTarget(invoke, m, level); reason != "" {
			return in.reject(invoke, reason)
		}
		return in.accept(&SingleGuard{
			opportunity: opportunity{invoke: invoke, weight: weight(caller, m, invoke)},
			Method:      m,
			Type:        t,
		})
	}

	if !in.config.InlinePolymorphic && notRecorded == 0 {
		return in.reject(invoke, fmt.Sprintf("inlining polymorphic calls is disabled (%d types)", len(types)))
	}
	if !in.config.InlineMegamorphic && notRecorded > 0 {
		return in.reject(invoke, fmt.Sprintf("inlining megamorphic calls is disabled (%d types, %.1f%% not recorded)",
			len(types), notRecorded*100))
	}

	// receiver types selecting the same method share a target
	var targets []Target
	index := map[*meta.Method]int{}
	for _, p := range types {
		m := p.Type.ResolveMethod(invoke.Target)
		i, ok := index[m]
		if !ok {
			i = len(targets)
			index[m] = i
			targets = append(targets, Target{Method: m})
		}
		targets[i].Types = append(targets[i].Types, p.Type)
		targets[i].Probability += p.Probability
	}

	for _, t := range targets {
		if reason := in.checkTarget(invoke, t.Method, level); reason != "" {
			return in.reject(invoke, "it is a polymorphic call and at least one invoked method cannot be inlined: "+
				reason)
		}
	}
	total := funcutil.Sum(targets, func(t Target) float64 { return weight(caller, t.Method, invoke) })

	slices.SortStableFunc(targets, func(a, b Target) bool { return a.Probability > b.Probability })
	branches, err := BranchProbabilities(funcutil.Map(targets, func(t Target) float64 { return t.Probability }),
		notRecorded, in.config.MinBranchProbability, in.config.ProbabilityTolerance)
	if err != nil {
		return in.reject(invoke, err.Error())
	}
	for i := range targets {
		targets[i].BranchProbability = branches[i]
	}
	return in.accept(&PolymorphicCascade{
		opportunity: opportunity{invoke: invoke, weight: total},
		Targets:     targets,
		NotRecorded: notRecorded,
	})
}

// checkInvoke returns why the call site cannot be inlined at all, or the empty string
func checkInvoke(invoke *ir.Node) string {
	switch {
	case invoke.Op() != ir.OpInvoke:
		return "it is not a call site"
	case !invoke.IsAlive() || invoke.Pred() == nil:
		return "the invoke is dead code"
	case invoke.Target == nil:
		return "target method is null"
	case invoke.State() == nil:
		return "the invoke has no after state"
	case !invoke.Inlinable:
		return "the invoke is marked to be not used for inlining"
	}
	if recv := invoke.Receiver(); recv != nil && recv.Op() == ir.OpNull {
		return "receiver is null"
	}
	return ""
}

// checkTarget returns why m cannot be inlined at the call site, or the empty string
func (in *Inliner) checkTarget(invoke *ir.Node, m *meta.Method, level int) string {
	switch {
	case m == nil:
		return "the method is not resolved"
	case m.Native:
		return fmt.Sprintf("%s is a native method", m)
	case m.Abstract:
		return fmt.Sprintf("%s is an abstract method", m)
	case m.Holder != nil && !m.Holder.Initialized:
		return fmt.Sprintf("the class of %s is not initialized", m)
	case !m.CanBeInlined() || in.config.IsNeverInlined(m.String()):
		return fmt.Sprintf("%s is marked non-inlinable", m)
	case level > in.config.MaxInlineLevel:
		return fmt.Sprintf("%s exceeds the maximum inlining depth", m)
	case recursiveLevel(invoke.State(), m) > in.config.MaxRecursiveInlining:
		return fmt.Sprintf("%s exceeds the maximum recursive inlining depth", m)
	}
	return ""
}

// recursiveLevel counts the frames of m in state and its outer states
func recursiveLevel(state *ir.Node, m *meta.Method) int {
	count := 0
	for cur := state; cur != nil; cur = cur.Outer() {
		if cur.Method == m {
			count++
		}
	}
	return count
}

func (in *Inliner) reject(invoke *ir.Node, reason string) funcutil.Optional[Decision] {
	in.logger.Debugf("not inlining %s: %s", describe(invoke), reason)
	return funcutil.None[Decision]()
}

func (in *Inliner) accept(d Decision) funcutil.Optional[Decision] {
	in.logger.Debugf("inlining %s: %s", describe(d.Site()), d)
	return funcutil.Some(d)
}
