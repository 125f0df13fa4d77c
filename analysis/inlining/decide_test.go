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

package inlining_test

import (
	"strings"
	"testing"

	"github.com/awslabs/ar-go-graphopt/analysis/config"
	"github.com/awslabs/ar-go-graphopt/analysis/inlining"
	"github.com/awslabs/ar-go-graphopt/analysis/ir"
	"github.com/awslabs/ar-go-graphopt/analysis/meta"
	"github.com/awslabs/ar-go-graphopt/internal/irtest"
)

// newInliner returns an inliner logging at debug level into the returned builder, and verifying the graphs
func newInliner(profiles meta.Profiles, configure ...func(c *config.Config)) (*inlining.Inliner, *strings.Builder) {
	c := config.NewDefault()
	c.LogLevel = int(config.DebugLevel)
	c.VerifyGraphs = true
	for _, f := range configure {
		f(c)
	}
	logger := config.NewLogGroup(c)
	out := &strings.Builder{}
	logger.SetAllOutput(out)
	logger.SetAllFlags(0)
	return inlining.NewInliner(c, logger, profiles), out
}

// profile returns the profile of the call in c, the types being given by name with their probability
func profile(lib *irtest.Library, c *irtest.CallSite, notRecorded float64, types ...any) meta.ProfileTable {
	p := &meta.TypeProfile{NotRecorded: notRecorded}
	for i := 0; i < len(types); i += 2 {
		p.Types = append(p.Types, meta.ProfiledType{
			Type:        lib.Type(types[i].(string)),
			Probability: types[i+1].(float64),
		})
	}
	table := meta.ProfileTable{}
	table.Set(c.Graph.Method, c.Invoke.BCI, p)
	return table
}

func TestDecideStaticallyBound(t *testing.T) {
	lib := irtest.Shapes()
	in, _ := newInliner(nil)
	for _, c := range []*irtest.CallSite{
		irtest.NewStaticCall(lib.Method("Util.abs"), false),
		irtest.NewVirtualCall(ir.InvokeVirtual, lib.Method("Shape.sides"), ir.DeclaredNonNull(lib.Type("Shape"))),
		irtest.NewVirtualCall(ir.InvokeSpecial, lib.Method("Square.area"), ir.DeclaredNonNull(lib.Type("Shape"))),
	} {
		d := in.Decide(c.Invoke, 0, true, nil)
		if d.IsNone() {
			t.Errorf("%s: no decision", c.Invoke)
			continue
		}
		exact, ok := d.Value().(*inlining.Exact)
		if !ok {
			t.Errorf("%s: expected an exact decision, got %s", c.Invoke, d.Value())
			continue
		}
		if exact.Method != c.Invoke.Target {
			t.Errorf("%s: expected %s, got %s", c.Invoke, c.Invoke.Target, exact.Method)
		}
		if exact.Site() != c.Invoke {
			t.Errorf("decision is for %s instead of %s", exact.Site(), c.Invoke)
		}
	}
}

func TestDecideExactReceiver(t *testing.T) {
	lib := irtest.Shapes()
	c := irtest.NewVirtualCall(ir.InvokeVirtual, lib.Method("Shape.area"), ir.ExactNonNull(lib.Type("Square")))
	// the profile is ignored when the receiver type is known
	in, _ := newInliner(profile(lib, c, 0, "Triangle", 0.7, "Circle", 0.3))
	d := in.Decide(c.Invoke, 0, true, nil)
	if d.IsNone() {
		t.Fatalf("no decision")
	}
	exact, ok := d.Value().(*inlining.Exact)
	if !ok {
		t.Fatalf("expected an exact decision, got %s", d.Value())
	}
	if exact.Method != lib.Method("Square.area") {
		t.Errorf("expected Square.area, got %s", exact.Method)
	}
	if exact.Weight() != 2 {
		t.Errorf("expected the code size of Square.area as weight, got %g", exact.Weight())
	}
}

func TestDecideAssumption(t *testing.T) {
	lib := irtest.Shapes()
	in, _ := newInliner(nil)

	// Triangle has no loaded subtype
	c := irtest.NewVirtualCall(ir.InvokeVirtual, lib.Method("Shape.area"), ir.DeclaredNonNull(lib.Type("Triangle")))
	d := in.Decide(c.Invoke, 0, true, nil)
	if d.IsNone() {
		t.Fatalf("no decision for a receiver with a unique concrete subtype")
	}
	a, ok := d.Value().(*inlining.Assumption)
	if !ok {
		t.Fatalf("expected an assumption, got %s", d.Value())
	}
	want := meta.ConcreteSubtype{Context: lib.Type("Triangle"), Subtype: lib.Type("Triangle")}
	if a.Method != lib.Method("Triangle.area") || a.Taken != want {
		t.Errorf("unexpected decision %s", a)
	}

	// Disc inherits the area of Circle
	c = irtest.NewVirtualCall(ir.InvokeVirtual, lib.Method("Shape.area"), ir.DeclaredNonNull(lib.Type("Circle")))
	d = in.Decide(c.Invoke, 0, true, nil)
	if d.IsNone() {
		t.Fatalf("no decision for a receiver with a unique concrete method")
	}
	a, ok = d.Value().(*inlining.Assumption)
	if !ok {
		t.Fatalf("expected an assumption, got %s", d.Value())
	}
	wantMethod := meta.ConcreteMethod{
		Method:  lib.Method("Shape.area"),
		Context: lib.Type("Circle"),
		Impl:    lib.Method("Circle.area"),
	}
	if a.Method != lib.Method("Circle.area") || a.Taken != wantMethod {
		t.Errorf("unexpected decision %s", a)
	}

	// without speculation nor profile, nothing can be done
	if d := in.Decide(c.Invoke, 0, false, nil); d.IsSome() {
		t.Errorf("expected no decision without speculation, got %s", d.Value())
	}
}

func TestDecideSingleGuard(t *testing.T) {
	lib := irtest.Shapes()
	c := irtest.NewVirtualCall(ir.InvokeVirtual, lib.Method("Shape.area"), ir.DeclaredNonNull(lib.Type("Shape")))
	in, _ := newInliner(profile(lib, c, 0, "Square", 1.0))
	d := in.Decide(c.Invoke, 0, true, nil)
	if d.IsNone() {
		t.Fatalf("no decision")
	}
	g, ok := d.Value().(*inlining.SingleGuard)
	if !ok {
		t.Fatalf("expected a single type guard, got %s", d.Value())
	}
	if g.Type != lib.Type("Square") || g.Method != lib.Method("Square.area") {
		t.Errorf("unexpected decision %s", g)
	}
}

func TestDecideCascadeMergesTypes(t *testing.T) {
	lib := irtest.Shapes()
	c := irtest.NewVirtualCall(ir.InvokeVirtual, lib.Method("Shape.area"), ir.DeclaredNonNull(lib.Type("Shape")))
	in, _ := newInliner(profile(lib, c, 0, "Square", 0.3, "Circle", 0.5, "Disc", 0.2))
	d := in.Decide(c.Invoke, 0, true, nil)
	if d.IsNone() {
		t.Fatalf("no decision")
	}
	cascade, ok := d.Value().(*inlining.PolymorphicCascade)
	if !ok {
		t.Fatalf("expected a cascade, got %s", d.Value())
	}
	if cascade.Megamorphic() {
		t.Errorf("cascade without unseen types is megamorphic")
	}
	if len(cascade.Targets) != 2 {
		t.Fatalf("expected 2 targets, got %s", cascade)
	}
	circle, square := cascade.Targets[0], cascade.Targets[1]
	if circle.Method != lib.Method("Circle.area") || len(circle.Types) != 2 {
		t.Errorf("expected Circle.area for Circle and Disc first, got %s", cascade)
	}
	if !near(circle.Probability, 0.7) || !near(square.Probability, 0.3) {
		t.Errorf("expected probabilities 0.7 and 0.3, got %g and %g", circle.Probability, square.Probability)
	}
	if cascade.Weight() != 6 {
		t.Errorf("expected the sum of the code sizes as weight, got %g", cascade.Weight())
	}
}

func TestDecideMegamorphic(t *testing.T) {
	lib := irtest.Shapes()
	c := irtest.NewVirtualCall(ir.InvokeVirtual, lib.Method("Shape.area"), ir.DeclaredNonNull(lib.Type("Shape")))
	table := profile(lib, c, 0.1, "Triangle", 0.3, "Square", 0.6)
	in, _ := newInliner(table)
	d := in.Decide(c.Invoke, 0, false, nil)
	if d.IsNone() {
		t.Fatalf("no decision")
	}
	cascade, ok := d.Value().(*inlining.PolymorphicCascade)
	if !ok || !cascade.Megamorphic() {
		t.Fatalf("expected a megamorphic cascade, got %s", d.Value())
	}
	if cascade.Targets[0].Method != lib.Method("Square.area") {
		t.Errorf("expected the most probable target first, got %s", cascade)
	}

	off, log := newInliner(table, func(c *config.Config) { c.InlineMegamorphic = false })
	if d := off.Decide(c.Invoke, 0, false, nil); d.IsSome() {
		t.Errorf("expected no decision, got %s", d.Value())
	}
	if !strings.Contains(log.String(), "megamorphic calls is disabled") {
		t.Errorf("missing reason in log:\n%s", log)
	}
}

func TestDecideRejects(t *testing.T) {
	tests := []struct {
		name      string
		site      func(lib *irtest.Library) (*irtest.CallSite, meta.Profiles)
		level     int
		configure func(c *config.Config)
		reason    string
	}{
		{
			name: "no state",
			site: func(lib *irtest.Library) (*irtest.CallSite, meta.Profiles) {
				return irtest.NewStaticCall(lib.Method("Util.abs"), false).WithoutState(), nil
			},
			reason: "no after state",
		},
		{
			name: "dead",
			site: func(lib *irtest.Library) (*irtest.CallSite, meta.Profiles) {
				m := &meta.Method{Name: "caller", Static: true}
				g := ir.NewGraph(m)
				invoke := g.Invoke(ir.InvokeStatic, lib.Method("Util.abs"), 0, g.Const(1))
				invoke.SetState(g.FrameState(m, 1, nil, invoke))
				return &irtest.CallSite{Graph: g, Invoke: invoke}, nil
			},
			reason: "dead code",
		},
		{
			name: "not inlinable site",
			site: func(lib *irtest.Library) (*irtest.CallSite, meta.Profiles) {
				c := irtest.NewStaticCall(lib.Method("Util.abs"), false)
				c.Invoke.Inlinable = false
				return c, nil
			},
			reason: "not used for inlining",
		},
		{
			name: "null receiver",
			site: func(lib *irtest.Library) (*irtest.CallSite, meta.Profiles) {
				m := &meta.Method{Name: "caller", Static: true}
				g := ir.NewGraph(m)
				invoke := g.Invoke(ir.InvokeVirtual, lib.Method("Shape.sides"), 0, g.Null())
				invoke.SetState(g.FrameState(m, 1, nil, invoke))
				g.Start().SetNext(invoke)
				invoke.SetNext(g.Return(invoke))
				return &irtest.CallSite{Graph: g, Invoke: invoke}, nil
			},
			reason: "receiver is null",
		},
		{
			name: "native",
			site: func(lib *irtest.Library) (*irtest.CallSite, meta.Profiles) {
				return irtest.NewStaticCall(lib.Method("Math.sqrt"), false), nil
			},
			reason: "native method",
		},
		{
			name: "abstract",
			site: func(lib *irtest.Library) (*irtest.CallSite, meta.Profiles) {
				return irtest.NewVirtualCall(ir.InvokeSpecial, lib.Method("Shape.area"),
					ir.DeclaredNonNull(lib.Type("Shape"))), nil
			},
			reason: "abstract method",
		},
		{
			name: "uninitialized",
			site: func(lib *irtest.Library) (*irtest.CallSite, meta.Profiles) {
				return irtest.NewVirtualCall(ir.InvokeVirtual, lib.Method("Blob.area"),
					ir.ExactNonNull(lib.Type("Blob"))), nil
			},
			reason: "not initialized",
		},
		{
			name: "non-inlinable",
			site: func(lib *irtest.Library) (*irtest.CallSite, meta.Profiles) {
				return irtest.NewStaticCall(lib.Method("Util.log"), false), nil
			},
			reason: "marked non-inlinable",
		},
		{
			name: "never inline",
			site: func(lib *irtest.Library) (*irtest.CallSite, meta.Profiles) {
				return irtest.NewStaticCall(lib.Method("Util.abs"), false), nil
			},
			configure: func(c *config.Config) {
				parsed, err := config.Parse([]byte("never-inline: [\"Util\\\\.a.*\"]"))
				if err != nil {
					panic(err)
				}
				*c = *parsed
				c.LogLevel = int(config.DebugLevel)
			},
			reason: "marked non-inlinable",
		},
		{
			name: "too deep",
			site: func(lib *irtest.Library) (*irtest.CallSite, meta.Profiles) {
				return irtest.NewStaticCall(lib.Method("Util.abs"), false), nil
			},
			level:     3,
			configure: func(c *config.Config) { c.MaxInlineLevel = 2 },
			reason:    "maximum inlining depth",
		},
		{
			name: "too deep in outer states",
			site: func(lib *irtest.Library) (*irtest.CallSite, meta.Profiles) {
				c := irtest.NewStaticCall(lib.Method("Util.abs"), false)
				m := &meta.Method{Name: "outer", Static: true}
				outer := c.Graph.FrameState(m, 2, c.Graph.FrameState(m, 9, nil), c.Graph.Const(0))
				c.Invoke.State().SetState(outer)
				return c, nil
			},
			configure: func(c *config.Config) { c.MaxInlineLevel = 1 },
			reason:    "maximum inlining depth",
		},
		{
			name: "recursive",
			site: func(lib *irtest.Library) (*irtest.CallSite, meta.Profiles) {
				abs := lib.Method("Util.abs")
				c := irtest.NewStaticCall(abs, false)
				g := c.Graph
				c.Invoke.State().SetState(g.FrameState(abs, 2, g.FrameState(abs, 2, nil)))
				return c, nil
			},
			reason: "maximum recursive inlining depth",
		},
		{
			name: "no profile",
			site: func(lib *irtest.Library) (*irtest.CallSite, meta.Profiles) {
				return irtest.NewVirtualCall(ir.InvokeVirtual, lib.Method("Shape.area"),
					ir.DeclaredNonNull(lib.Type("Shape"))), meta.ProfileTable{}
			},
			reason: "no type profile",
		},
		{
			name: "filtered profile",
			site: func(lib *irtest.Library) (*irtest.CallSite, meta.Profiles) {
				c := irtest.NewVirtualCall(ir.InvokeVirtual, lib.Method("Shape.area"),
					ir.DeclaredNonNull(lib.Type("Shape")))
				return c, profile(lib, c, 0, "Blob", 1.0)
			},
			reason: "no types remained after filtering (1 types were recorded)",
		},
		{
			name: "monomorphic disabled",
			site: func(lib *irtest.Library) (*irtest.CallSite, meta.Profiles) {
				c := irtest.NewVirtualCall(ir.InvokeVirtual, lib.Method("Shape.area"),
					ir.DeclaredNonNull(lib.Type("Shape")))
				return c, profile(lib, c, 0, "Square", 1.0)
			},
			configure: func(c *config.Config) { c.InlineMonomorphic = false },
			reason:    "monomorphic calls is disabled",
		},
		{
			name: "polymorphic disabled",
			site: func(lib *irtest.Library) (*irtest.CallSite, meta.Profiles) {
				c := irtest.NewVirtualCall(ir.InvokeVirtual, lib.Method("Shape.area"),
					ir.DeclaredNonNull(lib.Type("Shape")))
				return c, profile(lib, c, 0, "Square", 0.5, "Triangle", 0.5)
			},
			configure: func(c *config.Config) { c.InlinePolymorphic = false },
			reason:    "polymorphic calls is disabled (2 types)",
		},
		{
			name: "polymorphic with a method that cannot be inlined",
			site: func(lib *irtest.Library) (*irtest.CallSite, meta.Profiles) {
				c := irtest.NewVirtualCall(ir.InvokeVirtual, lib.Method("Shape.area"),
					ir.DeclaredNonNull(lib.Type("Shape")))
				return c, profile(lib, c, 0, "Square", 0.5, "Blob", 0.5)
			},
			configure: func(c *config.Config) { c.FilterProfiledTypes = false },
			reason:    "at least one invoked method cannot be inlined",
		},
		{
			name: "inconsistent profile",
			site: func(lib *irtest.Library) (*irtest.CallSite, meta.Profiles) {
				c := irtest.NewVirtualCall(ir.InvokeVirtual, lib.Method("Shape.area"),
					ir.DeclaredNonNull(lib.Type("Shape")))
				return c, profile(lib, c, 0, "Square", 0.4, "Triangle", 0.2)
			},
			reason: "inconsistent type profile",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			lib := irtest.Shapes()
			c, profiles := test.site(lib)
			var configure []func(*config.Config)
			if test.configure != nil {
				configure = append(configure, test.configure)
			}
			in, log := newInliner(profiles, configure...)
			before := c.Graph.NodeCount()
			if d := in.Decide(c.Invoke, test.level, true, nil); d.IsSome() {
				t.Fatalf("expected no decision, got %s", d.Value())
			}
			if c.Graph.NodeCount() != before {
				t.Errorf("deciding modified the graph")
			}
			if !strings.Contains(log.String(), "not inlining") || !strings.Contains(log.String(), test.reason) {
				t.Errorf("expected a rejection because %q, log is:\n%s", test.reason, log)
			}
		})
	}
}

func TestDecideLogsDecision(t *testing.T) {
	lib := irtest.Shapes()
	c := irtest.NewStaticCall(lib.Method("Util.abs"), false)
	in, log := newInliner(nil)
	in.Decide(c.Invoke, 0, true, nil)
	if !strings.Contains(log.String(), "inlining Util.abs at ") || !strings.Contains(log.String(), "exact Util.abs") {
		t.Errorf("decision is not logged:\n%s", log)
	}

	quiet, log := newInliner(nil, func(c *config.Config) { c.LogLevel = int(config.InfoLevel) })
	quiet.Decide(c.Invoke, 0, true, nil)
	if log.Len() != 0 {
		t.Errorf("decisions are logged at info level:\n%s", log)
	}
}

func TestDecideWeight(t *testing.T) {
	lib := irtest.Shapes()
	c := irtest.NewStaticCall(lib.Method("Util.abs"), false)
	in, _ := newInliner(nil)
	var gotCaller, gotCallee *meta.Method
	d := in.Decide(c.Invoke, 0, true, func(caller, callee *meta.Method, site *ir.Node) float64 {
		gotCaller, gotCallee = caller, callee
		return 42
	})
	if d.IsNone() || d.Value().Weight() != 42 {
		t.Fatalf("weight function is not used")
	}
	if gotCaller != c.Graph.Method || gotCallee != lib.Method("Util.abs") {
		t.Errorf("weight function called with %s and %s", gotCaller, gotCallee)
	}
}
