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

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/awslabs/ar-go-graphopt/analysis/config"
	"github.com/awslabs/ar-go-graphopt/analysis/inlining"
	"github.com/awslabs/ar-go-graphopt/analysis/ir"
	"github.com/awslabs/ar-go-graphopt/analysis/loops"
	"github.com/awslabs/ar-go-graphopt/analysis/meta"
	"github.com/awslabs/ar-go-graphopt/internal/formatutil"
	"github.com/awslabs/ar-go-graphopt/internal/graphutil"
	"github.com/awslabs/ar-go-graphopt/internal/interp"
	"github.com/awslabs/ar-go-graphopt/internal/irtest"
)

// errNoDecision is returned by the inlining samples when the call site is not inlined with the current config
var errNoDecision = errors.New("call site is not inlined")

type env struct {
	config *config.Config
	logger *config.LogGroup
	dump   bool
	out    io.Writer
}

// samples maps the sample names to their runner, which returns false when the results changed
var samples = map[string]func(e *env) (bool, error){
	"peel":      peelSample,
	"invert":    invertSample,
	"nested":    nestedSample,
	"inline":    inlineSample,
	"speculate": speculateSample,
}

func sumArgs() [][]interp.Value {
	a := []int64{3, 1, 4, 1, 5}
	var res [][]interp.Value
	for n := int64(0); n <= int64(len(a)); n++ {
		res = append(res, []interp.Value{a, n})
	}
	return res
}

func peelSample(e *env) (bool, error) {
	s := irtest.NewSumLoop()
	return e.check(s.Graph, nil, sumArgs(), func() error {
		set := loops.Discover(s.Graph)
		loops.NewTransformer(e.config, e.logger).Peel(set.LoopOf(s.Header))
		return nil
	})
}

func invertSample(e *env) (bool, error) {
	s := irtest.NewSumLoop()
	return e.check(s.Graph, nil, sumArgs(), func() error {
		set := loops.Discover(s.Graph)
		return loops.NewTransformer(e.config, e.logger).Invert(set.LoopOf(s.Header), s.Test)
	})
}

func nestedSample(e *env) (bool, error) {
	n := irtest.NewNestedLoop()
	var args [][]interp.Value
	for i := int64(0); i <= 3; i++ {
		for j := int64(0); j <= 3; j++ {
			args = append(args, []interp.Value{i, j})
		}
	}
	return e.check(n.Graph, nil, args, func() error {
		set := loops.Discover(n.Graph)
		loops.NewTransformer(e.config, e.logger).Peel(set.LoopOf(n.Inner))
		after := loops.Discover(n.Graph)
		fmt.Fprintf(e.out, "loops after peeling: %d\n", after.Len())
		after.Tree().Walk(func(t *graphutil.Tree[*loops.Loop]) bool {
			if t.Label != nil {
				fmt.Fprintf(e.out, "%s%s\n", strings.Repeat("  ", t.Depth()), t.Label)
			}
			return true
		})
		return nil
	})
}

func shapes(lib *irtest.Library, names ...string) [][]interp.Value {
	res := make([][]interp.Value, len(names))
	for i, name := range names {
		res[i] = []interp.Value{&interp.Object{Type: lib.Type(name)}}
	}
	return res
}

func inlineSample(e *env) (bool, error) {
	lib := irtest.Shapes()
	c := irtest.NewVirtualCall(ir.InvokeVirtual, lib.Method("Shape.area"), ir.DeclaredNonNull(lib.Type("Shape")))
	profiles := meta.ProfileTable{}
	profiles.Set(c.Graph.Method, c.Invoke.BCI, &meta.TypeProfile{
		Types: []meta.ProfiledType{
			{Type: lib.Type("Square"), Probability: 0.6},
			{Type: lib.Type("Triangle"), Probability: 0.3},
		},
		NotRecorded: 0.1,
	})
	return e.check(c.Graph, lib.Graph, shapes(lib, "Square", "Triangle", "Circle"), func() error {
		return e.inline(lib, c, profiles, nil)
	})
}

func speculateSample(e *env) (bool, error) {
	lib := irtest.Shapes()
	c := irtest.NewVirtualCall(ir.InvokeVirtual, lib.Method("Shape.area"), ir.DeclaredNonNull(lib.Type("Circle")))
	assumptions := meta.NewAssumptions(lib.Universe, e.config.UseOptimisticAssumptions)
	assumptions.OnInvalidate(func(a meta.Assumption) {
		fmt.Fprintf(e.out, "%s %s\n", formatutil.Yellow("invalidated"), a)
	})
	same, err := e.check(c.Graph, lib.Graph, shapes(lib, "Circle", "Disc"), func() error {
		return e.inline(lib, c, nil, assumptions)
	})
	if err != nil {
		return same, err
	}
	for _, a := range assumptions.All() {
		fmt.Fprintf(e.out, "%s %s\n", formatutil.Purple("assumed"), a)
	}
	// a new subtype overriding area breaks the compiled code
	sub := lib.Universe.MustLoad(meta.TypeSpec{Name: "Ring", Super: lib.Type("Circle")})
	lib.Universe.AddMethod(sub, meta.MethodSpec{Name: "area", CodeSize: 2})
	if assumptions.IsValid() {
		fmt.Fprintln(e.out, "assumptions still hold")
	}
	return same, nil
}

// inline decides and applies the inlining of the call site of c
func (e *env) inline(lib *irtest.Library, c *irtest.CallSite, profiles meta.Profiles,
	assumptions *meta.Assumptions) error {
	in := inlining.NewInliner(e.config, e.logger, profiles)
	d := in.Decide(c.Invoke, 0, assumptions != nil && assumptions.UseOptimistic, nil)
	if d.IsNone() {
		return errNoDecision
	}
	fmt.Fprintf(e.out, "%s %s\n", formatutil.Cyan("decision"), d.Value())
	return in.Apply(d.Value(), lib, assumptions)
}

// check runs g on every argument list before and after transform, and prints the results. It returns false if
// some result changed.
func (e *env) check(g *ir.Graph, graphs func(*meta.Method) *ir.Graph, argLists [][]interp.Value,
	transform func() error) (bool, error) {
	in := interp.New(graphs)
	before := make([]interp.Result, len(argLists))
	for i, args := range argLists {
		res, err := in.Run(g, args...)
		if err != nil {
			return false, fmt.Errorf("running %s on %v: %w", g.Method, args, err)
		}
		before[i] = res
	}
	if e.dump {
		fmt.Fprintf(e.out, "%s\n%s\n", formatutil.Bold("before"), ir.Dump(g))
	}
	nodes := g.NodeCount()
	if err := transform(); err != nil {
		return false, err
	}
	if err := ir.Verify(g); err != nil {
		return false, fmt.Errorf("transformed graph is broken: %w", err)
	}
	if e.dump {
		fmt.Fprintf(e.out, "%s\n%s\n", formatutil.Bold("after"), ir.Dump(g))
	}

	same := true
	for i, args := range argLists {
		res, err := in.Run(g, args...)
		if err != nil {
			return false, fmt.Errorf("running the transformed %s on %v: %w", g.Method, args, err)
		}
		status := formatutil.Green("same")
		if res.String() != before[i].String() {
			status = formatutil.Red("changed from " + before[i].String())
			same = false
		}
		fmt.Fprintf(e.out, "  %-24s %-28s %s\n", fmt.Sprint(args), res, status)
	}
	fmt.Fprintf(e.out, "%s: %d nodes before, %d after\n", g.Method, nodes, g.NodeCount())
	return same, nil
}
