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

package meta

import "fmt"

// Assumption is a speculative fact about the class hierarchy. Code compiled under an assumption must be
// invalidated as soon as the assumption stops holding.
type Assumption interface {
	// Holds returns true if the assumption is still valid in the current hierarchy
	Holds() bool

	String() string
}

// ConcreteSubtype assumes that Subtype is the only concrete type assignable to Context
type ConcreteSubtype struct {
	Context *Type
	Subtype *Type
}

// Holds returns true if Subtype is still the unique concrete subtype of Context
func (a ConcreteSubtype) Holds() bool {
	return a.Context.FindUniqueConcreteSubtype() == a.Subtype
}

func (a ConcreteSubtype) String() string {
	return fmt.Sprintf("concrete subtype of %s is %s", a.Context, a.Subtype)
}

// ConcreteMethod assumes that Impl is the only implementation of Method selected by the concrete subtypes of
// Context
type ConcreteMethod struct {
	Method  *Method
	Context *Type
	Impl    *Method
}

// Holds returns true if no loaded subtype of Context overrides Impl
func (a ConcreteMethod) Holds() bool {
	return a.Context.FindUniqueConcreteMethod(a.Method) == a.Impl
}

func (a ConcreteMethod) String() string {
	return fmt.Sprintf("unique implementation of %s in %s is %s", a.Method, a.Context, a.Impl)
}

// MethodContents records that compiled code contains an inlined copy of Method
type MethodContents struct {
	Method *Method
}

// Holds returns true while the method is still declared by its holder
func (a MethodContents) Holds() bool {
	if a.Method.Holder == nil {
		return true
	}
	for _, m := range a.Method.Holder.methods {
		if m == a.Method {
			return true
		}
	}
	return false
}

func (a MethodContents) String() string {
	return fmt.Sprintf("contents of %s", a.Method)
}

// Assumptions is the set of assumptions a compilation depends on. It is registered with a Universe and
// re-checked after every hierarchy change.
type Assumptions struct {
	// UseOptimistic is true when the compilation is allowed to speculate on the class hierarchy
	UseOptimistic bool

	recorded    []Assumption
	invalidated []Assumption
	callbacks   []func(Assumption)
}

// NewAssumptions returns an empty assumption set depending on universe u. u may be nil, in which case the
// assumptions are never re-checked.
func NewAssumptions(u *Universe, optimistic bool) *Assumptions {
	a := &Assumptions{UseOptimistic: optimistic}
	if u != nil {
		u.Depend(a)
	}
	return a
}

// Record adds an assumption. Recording an assumption that already appears in the set is a no-op.
func (a *Assumptions) Record(x Assumption) {
	for _, y := range a.recorded {
		if y == x {
			return
		}
	}
	a.recorded = append(a.recorded, x)
}

// All returns the recorded assumptions, in recording order
func (a *Assumptions) All() []Assumption {
	return a.recorded
}

// Invalidated returns the assumptions that have been violated so far
func (a *Assumptions) Invalidated() []Assumption {
	return a.invalidated
}

// IsValid returns true if none of the recorded assumptions has been violated
func (a *Assumptions) IsValid() bool {
	return len(a.invalidated) == 0
}

// OnInvalidate registers f to be called once for every assumption that gets violated
func (a *Assumptions) OnInvalidate(f func(Assumption)) {
	a.callbacks = append(a.callbacks, f)
}

func (a *Assumptions) check() {
	for _, x := range a.recorded {
		if x.Holds() || a.isInvalidated(x) {
			continue
		}
		a.invalidated = append(a.invalidated, x)
		for _, f := range a.callbacks {
			f(x)
		}
	}
}

func (a *Assumptions) isInvalidated(x Assumption) bool {
	for _, y := range a.invalidated {
		if y == x {
			return true
		}
	}
	return false
}
