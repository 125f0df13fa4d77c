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

// Package interp executes program graphs. It is the oracle the transformation tests use to check that a graph
// computes the same results before and after a transformation.
package interp

import (
	"errors"
	"fmt"

	"github.com/awslabs/ar-go-graphopt/analysis/ir"
	"github.com/awslabs/ar-go-graphopt/analysis/meta"
)

// A Value is an int64, a bool, an *Object, an []int64 array, or nil for null
type Value = any

// Object is an instance of a class. Objects have no fields: only their type matters for dispatch.
type Object struct {
	Type *meta.Type
}

func (o *Object) String() string {
	return "Object(" + o.Type.Name + ")"
}

// Outcome tells how the execution of a graph ended
type Outcome int

const (
	// Returned means the graph returned normally
	Returned Outcome = iota
	// Threw means the graph exited with an exception
	Threw
	// Deoptimized means execution reached a deoptimization
	Deoptimized
)

func (o Outcome) String() string {
	switch o {
	case Returned:
		return "returned"
	case Threw:
		return "threw"
	case Deoptimized:
		return "deoptimized"
	}
	return "?"
}

// Result is the result of running a graph
type Result struct {
	Outcome Outcome
	// Value is the returned value, or the exception
	Value Value
	// Reason and State describe a deoptimization
	Reason ir.DeoptReason
	State  *ir.Node
}

func (r Result) String() string {
	switch r.Outcome {
	case Deoptimized:
		return fmt.Sprintf("deoptimized(%s)", r.Reason)
	default:
		return fmt.Sprintf("%s(%v)", r.Outcome, r.Value)
	}
}

// ErrStepLimit is returned when an execution does not finish within the step budget
var ErrStepLimit = errors.New("step limit exceeded")

// Interpreter runs graphs. Calls are resolved with Graphs; an Interpreter must not be used concurrently.
type Interpreter struct {
	// Graphs returns the graph of a method, or nil if it is unknown
	Graphs func(m *meta.Method) *ir.Graph
	// MaxSteps bounds the number of control nodes executed by a Run, including the nodes of callees
	MaxSteps int
	// MaxDepth bounds the call depth
	MaxDepth int

	// Calls records the methods actually called by the executed invokes, in execution order
	Calls []*meta.Method

	steps int
}

// New returns an interpreter resolving calls with graphs
func New(graphs func(m *meta.Method) *ir.Graph) *Interpreter {
	return &Interpreter{Graphs: graphs, MaxSteps: 100000, MaxDepth: 64}
}

// Run executes g with the given arguments
func (in *Interpreter) Run(g *ir.Graph, args ...Value) (Result, error) {
	in.steps = 0
	in.Calls = nil
	return in.run(g, args, 0)
}

type frame struct {
	args      []Value
	env       map[*ir.Node]Value
	exception Value
}

func (in *Interpreter) run(g *ir.Graph, args []Value, depth int) (Result, error) {
	if depth > in.MaxDepth {
		return Result{}, fmt.Errorf("call depth exceeds %d", in.MaxDepth)
	}
	f := &frame{args: args, env: map[*ir.Node]Value{}}
	cur := g.Start().Next()
	for {
		if cur == nil {
			return Result{}, fmt.Errorf("control flow of %s falls off", g.Method)
		}
		in.steps++
		if in.MaxSteps > 0 && in.steps > in.MaxSteps {
			return Result{}, ErrStepLimit
		}
		switch cur.Op() {
		case ir.OpBegin, ir.OpStart, ir.OpMerge, ir.OpLoopBegin:
			cur = cur.Next()
		case ir.OpEnd, ir.OpLoopEnd:
			m := cur.Merge()
			i := m.EndIndex(cur)
			values := make([]Value, len(m.Phis()))
			for j, phi := range m.Phis() {
				v, err := f.eval(phi.Input(i))
				if err != nil {
					return Result{}, err
				}
				values[j] = v
			}
			for j, phi := range m.Phis() {
				f.env[phi] = values[j]
			}
			cur = m.Next()
		case ir.OpIf:
			c, err := f.cond(cur.Input(0))
			if err != nil {
				return Result{}, err
			}
			if c {
				cur = cur.TrueSucc()
			} else {
				cur = cur.FalseSucc()
			}
		case ir.OpGuard:
			c, err := f.cond(cur.Input(0))
			if err != nil {
				return Result{}, err
			}
			if c == cur.Negated {
				return Result{Outcome: Deoptimized, Reason: cur.Reason, State: cur.State()}, nil
			}
			cur = cur.Next()
		case ir.OpInvoke:
			res, err := in.call(f, cur, depth)
			if err != nil {
				return Result{}, err
			}
			switch res.Outcome {
			case Returned:
				f.env[cur] = res.Value
				cur = cur.Next()
			case Threw:
				if cur.ExceptionEdge() == nil {
					return res, nil
				}
				f.exception = res.Value
				cur = cur.ExceptionEdge()
			default:
				return res, nil
			}
		case ir.OpExceptionObject:
			f.env[cur] = f.exception
			cur = cur.Next()
		case ir.OpReturn:
			if len(cur.Inputs()) == 0 || cur.Input(0) == nil {
				return Result{Outcome: Returned}, nil
			}
			v, err := f.eval(cur.Input(0))
			if err != nil {
				return Result{}, err
			}
			return Result{Outcome: Returned, Value: v}, nil
		case ir.OpUnwind:
			v, err := f.eval(cur.Input(0))
			if err != nil {
				return Result{}, err
			}
			return Result{Outcome: Threw, Value: v}, nil
		case ir.OpDeoptimize:
			return Result{Outcome: Deoptimized, Reason: cur.Reason, State: cur.State()}, nil
		default:
			return Result{}, fmt.Errorf("cannot execute %s", cur)
		}
	}
}

func (in *Interpreter) call(f *frame, invoke *ir.Node, depth int) (Result, error) {
	args := make([]Value, len(invoke.Arguments()))
	for i, a := range invoke.Arguments() {
		v, err := f.eval(a)
		if err != nil {
			return Result{}, err
		}
		args[i] = v
	}
	target := invoke.Target
	if invoke.Kind == ir.InvokeVirtual || invoke.Kind == ir.InvokeInterface {
		recv, ok := args[0].(*Object)
		if !ok || recv == nil {
			return Result{}, fmt.Errorf("%s: receiver %v is not an object", invoke, args[0])
		}
		target = recv.Type.ResolveMethod(invoke.Target)
		if target == nil {
			return Result{}, fmt.Errorf("%s: %s does not implement %s", invoke, recv.Type, invoke.Target)
		}
	}
	in.Calls = append(in.Calls, target)
	if in.Graphs == nil {
		return Result{}, fmt.Errorf("no graph for %s", target)
	}
	g := in.Graphs(target)
	if g == nil {
		return Result{}, fmt.Errorf("no graph for %s", target)
	}
	return in.run(g, args, depth+1)
}

func (f *frame) cond(n *ir.Node) (bool, error) {
	v, err := f.eval(n)
	if err != nil {
		return false, err
	}
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	}
	return false, fmt.Errorf("%s is not a condition: %v", n, v)
}

// eval computes the value of a data node from the current state of the frame, following its inputs
func (f *frame) eval(n *ir.Node) (Value, error) {
	if n == nil {
		return nil, errors.New("evaluating an empty input")
	}
	switch n.Op() {
	case ir.OpConst:
		return n.Value, nil
	case ir.OpNull:
		return nil, nil
	case ir.OpParam:
		if n.Index >= len(f.args) {
			return nil, fmt.Errorf("missing argument %d", n.Index)
		}
		return f.args[n.Index], nil
	case ir.OpPhi, ir.OpInvoke, ir.OpExceptionObject:
		v, ok := f.env[n]
		if !ok {
			return nil, fmt.Errorf("%s is evaluated before it is computed", n)
		}
		return v, nil
	case ir.OpPi:
		return f.eval(n.Input(0))
	}

	vals := make([]Value, len(n.Inputs()))
	for i, x := range n.Inputs() {
		v, err := f.eval(x)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	switch n.Op() {
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpLess:
		x, okx := vals[0].(int64)
		y, oky := vals[1].(int64)
		if !okx || !oky {
			return nil, fmt.Errorf("%s: operands %v %v are not integers", n, vals[0], vals[1])
		}
		switch n.Op() {
		case ir.OpAdd:
			return x + y, nil
		case ir.OpSub:
			return x - y, nil
		case ir.OpMul:
			return x * y, nil
		default:
			return x < y, nil
		}
	case ir.OpEqual:
		_, arrx := vals[0].([]int64)
		_, arry := vals[1].([]int64)
		if arrx || arry {
			return nil, fmt.Errorf("%s: arrays cannot be compared", n)
		}
		return vals[0] == vals[1], nil
	case ir.OpIsNull:
		return isNull(vals[0]), nil
	case ir.OpInstanceOf:
		obj, ok := vals[0].(*Object)
		if !ok || obj == nil {
			return false, nil
		}
		for _, t := range n.Types {
			if obj.Type == t {
				return true, nil
			}
		}
		return false, nil
	case ir.OpLength:
		a, ok := vals[0].([]int64)
		if !ok {
			return nil, fmt.Errorf("%s: %v is not an array", n, vals[0])
		}
		return int64(len(a)), nil
	case ir.OpLoadIndex:
		a, ok := vals[0].([]int64)
		i, oki := vals[1].(int64)
		if !ok || !oki {
			return nil, fmt.Errorf("%s: cannot index %v with %v", n, vals[0], vals[1])
		}
		if i < 0 || int(i) >= len(a) {
			return nil, fmt.Errorf("%s: index %d out of bounds", n, i)
		}
		return a[i], nil
	}
	return nil, fmt.Errorf("cannot evaluate %s", n)
}

func isNull(v Value) bool {
	if v == nil {
		return true
	}
	if o, ok := v.(*Object); ok && o == nil {
		return true
	}
	return false
}
