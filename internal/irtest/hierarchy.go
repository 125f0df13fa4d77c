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

// Package irtest builds the graphs and class hierarchies used by the tests of the optimizations.
package irtest

import (
	"github.com/awslabs/ar-go-graphopt/analysis/ir"
	"github.com/awslabs/ar-go-graphopt/analysis/meta"
)

// Library is a class hierarchy with the graphs of its methods
type Library struct {
	Universe *meta.Universe
	Types    map[string]*meta.Type
	Methods  map[string]*meta.Method
	Graphs   map[*meta.Method]*ir.Graph
}

// Graph returns the graph of m, or nil
func (l *Library) Graph(m *meta.Method) *ir.Graph {
	return l.Graphs[m]
}

// Type returns the type named name, and panics if there is none
func (l *Library) Type(name string) *meta.Type {
	t, ok := l.Types[name]
	if !ok {
		panic("no type " + name)
	}
	return t
}

// Method returns the method named "Holder.name", and panics if there is none
func (l *Library) Method(name string) *meta.Method {
	m, ok := l.Methods[name]
	if !ok {
		panic("no method " + name)
	}
	return m
}

func (l *Library) load(spec meta.TypeSpec) *meta.Type {
	t := l.Universe.MustLoad(spec)
	l.Types[t.Name] = t
	return t
}

func (l *Library) declare(t *meta.Type, spec meta.MethodSpec) *meta.Method {
	m := l.Universe.AddMethod(t, spec)
	l.Methods[m.String()] = m
	return m
}

// Shapes returns the hierarchy
//
//	Object
//	  Math          pi() = 3 (static)
//	  Util          abs(v), validate(v) (static)
//	  Shape         area() (abstract), sides() = 0 (final)
//	    Square      area() = 4
//	    Circle      area() = Math.pi()
//	      Disc      (final, inherits Circle.area)
//	    Triangle    area() = 6
//	  Blob          area() = 9, not initialized
//
// with the graph of every concrete method.
func Shapes() *Library {
	l := &Library{
		Universe: meta.NewUniverse(),
		Types:    map[string]*meta.Type{},
		Methods:  map[string]*meta.Method{},
		Graphs:   map[*meta.Method]*ir.Graph{},
	}
	object := l.load(meta.TypeSpec{Name: "Object"})
	math := l.load(meta.TypeSpec{Name: "Math", Super: object})
	util := l.load(meta.TypeSpec{Name: "Util", Super: object})
	shape := l.load(meta.TypeSpec{Name: "Shape", Super: object, Abstract: true})
	square := l.load(meta.TypeSpec{Name: "Square", Super: shape})
	circle := l.load(meta.TypeSpec{Name: "Circle", Super: shape})
	l.load(meta.TypeSpec{Name: "Disc", Super: circle, Final: true})
	triangle := l.load(meta.TypeSpec{Name: "Triangle", Super: shape})
	blob := l.load(meta.TypeSpec{Name: "Blob", Super: object, Uninitialized: true})

	pi := l.declare(math, meta.MethodSpec{Name: "pi", Static: true, CodeSize: 2})
	l.Graphs[pi] = ConstMethod(pi, 3)
	l.declare(math, meta.MethodSpec{Name: "sqrt", Static: true, Native: true})

	abs := l.declare(util, meta.MethodSpec{Name: "abs", Static: true, CodeSize: 8})
	l.Graphs[abs] = AbsMethod(abs)
	validate := l.declare(util, meta.MethodSpec{Name: "validate", Static: true, CodeSize: 8})
	l.Graphs[validate] = ValidateMethod(validate)
	l.declare(util, meta.MethodSpec{Name: "log", Static: true, NonInlinable: true})

	l.declare(shape, meta.MethodSpec{Name: "area", Abstract: true})
	sides := l.declare(shape, meta.MethodSpec{Name: "sides", Final: true, CodeSize: 2})
	l.Graphs[sides] = ConstMethod(sides, 0)

	squareArea := l.declare(square, meta.MethodSpec{Name: "area", CodeSize: 2})
	l.Graphs[squareArea] = ConstMethod(squareArea, 4)
	circleArea := l.declare(circle, meta.MethodSpec{Name: "area", CodeSize: 4})
	l.Graphs[circleArea] = CallingMethod(circleArea, pi, 1)
	triangleArea := l.declare(triangle, meta.MethodSpec{Name: "area", CodeSize: 2})
	l.Graphs[triangleArea] = ConstMethod(triangleArea, 6)

	blobArea := l.declare(blob, meta.MethodSpec{Name: "area", CodeSize: 2})
	l.Graphs[blobArea] = ConstMethod(blobArea, 9)
	return l
}

// ConstMethod returns the graph of a method returning v. Non-static methods take their receiver as parameter 0.
func ConstMethod(m *meta.Method, v int64) *ir.Graph {
	g := ir.NewGraph(m)
	if !m.Static {
		g.Param(0, ir.DeclaredNonNull(m.Holder))
	}
	ret := g.Return(g.Const(v))
	g.Start().SetNext(ret)
	return g
}

// CallingMethod returns the graph of a method returning the result of static method callee, called at bci
func CallingMethod(m, callee *meta.Method, bci int) *ir.Graph {
	g := ir.NewGraph(m)
	var this *ir.Node
	if !m.Static {
		this = g.Param(0, ir.DeclaredNonNull(m.Holder))
	}
	invoke := g.Invoke(ir.InvokeStatic, callee, bci)
	var values []*ir.Node
	if this != nil {
		values = append(values, this)
	}
	invoke.SetState(g.FrameState(m, bci, nil, append(values, invoke)...))
	ret := g.Return(g.Add(invoke, g.Const(0)))
	g.Start().SetNext(invoke)
	invoke.SetNext(ret)
	return g
}

// AbsMethod returns the graph of static abs(v): the absolute value flows through a merge whose state is the
// after-method state
func AbsMethod(m *meta.Method) *ir.Graph {
	g := ir.NewGraph(m)
	v := g.Param(0, ir.Stamp{})
	zero := g.Const(0)
	cond := g.Less(v, zero)
	ifNode := g.If(cond, 0.5)
	neg, pos := g.Begin(), g.Begin()
	ifNode.SetTrueSucc(neg)
	ifNode.SetFalseSucc(pos)
	e1, e2 := g.End(), g.End()
	neg.SetNext(e1)
	pos.SetNext(e2)
	merge := g.Merge(e1, e2)
	phi := g.Phi(merge, g.Binary(ir.OpSub, zero, v), v)
	merge.SetState(g.FrameState(m, ir.AfterBCI, nil, phi))
	merge.SetNext(g.Return(phi))
	g.Start().SetNext(ifNode)
	return g
}

// ValidateMethod returns the graph of static validate(v): it throws -1 when v is negative and returns v
// otherwise
func ValidateMethod(m *meta.Method) *ir.Graph {
	g := ir.NewGraph(m)
	v := g.Param(0, ir.Stamp{})
	cond := g.Less(v, g.Const(0))
	ifNode := g.If(cond, 0.1)
	bad, good := g.Begin(), g.Begin()
	ifNode.SetTrueSucc(bad)
	ifNode.SetFalseSucc(good)
	bad.SetNext(g.Unwind(g.Const(-1)))
	good.SetNext(g.Return(v))
	g.Start().SetNext(ifNode)
	return g
}
