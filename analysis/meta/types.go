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

import (
	"fmt"
	"strings"
)

// Type is a resolved class or array type. Types are created through a Universe, which owns the subtype relation.
type Type struct {
	// Name is the fully qualified name of the type
	Name string

	// Super is the direct super type, nil for the root of the hierarchy
	Super *Type

	// Interfaces lists the interfaces directly implemented by this type
	Interfaces []*Type

	Abstract    bool
	Final       bool
	Interface   bool
	Array       bool
	Initialized bool

	methods  []*Method
	subtypes []*Type
	universe *Universe
}

// String returns the name of the type
func (t *Type) String() string {
	if t == nil {
		return "<nil type>"
	}
	return t.Name
}

// Methods returns the methods declared by t, in declaration order
func (t *Type) Methods() []*Method {
	return t.methods
}

// Subtypes returns the direct subtypes of t that have been loaded so far
func (t *Type) Subtypes() []*Type {
	return t.subtypes
}

// IsConcrete returns true if instances of t can exist
func (t *Type) IsConcrete() bool {
	return t.Array || (!t.Abstract && !t.Interface)
}

// DeclaredMethod returns the method named name declared by t itself, or nil
func (t *Type) DeclaredMethod(name string) *Method {
	for _, m := range t.methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// IsAssignableFrom returns true if a value of type other can be stored in a location of type t.
func (t *Type) IsAssignableFrom(other *Type) bool {
	if t == nil || other == nil {
		return false
	}
	seen := map[*Type]bool{}
	queue := []*Type{other}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == t {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if cur.Super != nil {
			queue = append(queue, cur.Super)
		}
		queue = append(queue, cur.Interfaces...)
	}
	return false
}

// ResolveMethod returns the implementation of m that is selected when m is invoked on a receiver whose exact type
// is t, or nil if t does not inherit or declare such a method.
func (t *Type) ResolveMethod(m *Method) *Method {
	if m == nil {
		return nil
	}
	if m.Static || m.Private {
		return m
	}
	for cur := t; cur != nil; cur = cur.Super {
		if dm := cur.DeclaredMethod(m.Name); dm != nil && !dm.Static {
			return dm
		}
	}
	// default methods of interfaces
	for cur := t; cur != nil; cur = cur.Super {
		for _, itf := range cur.Interfaces {
			if dm := itf.DeclaredMethod(m.Name); dm != nil && !dm.Abstract {
				return dm
			}
		}
	}
	return nil
}

// ConcreteSubtypes returns t (if concrete) and every concrete type below t, with t first and the subtypes in load
// order.
func (t *Type) ConcreteSubtypes() []*Type {
	var res []*Type
	seen := map[*Type]bool{}
	stack := []*Type{t}
	for len(stack) > 0 {
		cur := stack[0]
		stack = stack[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if cur.IsConcrete() {
			res = append(res, cur)
		}
		stack = append(stack, cur.subtypes...)
	}
	return res
}

// FindUniqueConcreteSubtype returns the only concrete type assignable to t, or nil if there are none or several.
func (t *Type) FindUniqueConcreteSubtype() *Type {
	if t.Array {
		return t
	}
	concrete := t.ConcreteSubtypes()
	if len(concrete) == 1 {
		return concrete[0]
	}
	return nil
}

// FindUniqueConcreteMethod returns the implementation of m shared by all the concrete subtypes of t, or nil if
// the subtypes select different implementations.
func (t *Type) FindUniqueConcreteMethod(m *Method) *Method {
	var unique *Method
	for _, sub := range t.ConcreteSubtypes() {
		impl := sub.ResolveMethod(m)
		if impl == nil {
			continue
		}
		if unique == nil {
			unique = impl
		} else if unique != impl {
			return nil
		}
	}
	if unique != nil && unique.Abstract {
		return nil
	}
	return unique
}

// FindLeastCommonAncestor returns the most specific class that is a super type of both t and other.
// Interfaces are not considered.
func (t *Type) FindLeastCommonAncestor(other *Type) *Type {
	ancestors := map[*Type]bool{}
	for cur := t; cur != nil; cur = cur.Super {
		ancestors[cur] = true
	}
	for cur := other; cur != nil; cur = cur.Super {
		if ancestors[cur] {
			return cur
		}
	}
	return nil
}

// Universe holds the loaded types. Loading a type after compilation started may invalidate recorded
// assumptions, which is reported through the dependencies registered with the universe.
type Universe struct {
	types []*Type
	byKey map[string]*Type
	deps  []*Assumptions
}

// NewUniverse returns an empty universe
func NewUniverse() *Universe {
	return &Universe{byKey: map[string]*Type{}}
}

// Types returns all the loaded types, in load order
func (u *Universe) Types() []*Type {
	return u.types
}

// Lookup returns the type with the given name, or nil
func (u *Universe) Lookup(name string) *Type {
	return u.byKey[name]
}

// TypeSpec describes a type to be loaded in the universe
type TypeSpec struct {
	Name          string
	Super         *Type
	Interfaces    []*Type
	Abstract      bool
	Final         bool
	Interface     bool
	Array         bool
	Uninitialized bool
}

// Load adds a new type to the universe. Every assumption recorded in a registered Assumptions set that no longer
// holds after the load is invalidated.
func (u *Universe) Load(spec TypeSpec) (*Type, error) {
	if _, ok := u.byKey[spec.Name]; ok {
		return nil, fmt.Errorf("type %s is already loaded", spec.Name)
	}
	if spec.Super != nil && spec.Super.Final {
		return nil, fmt.Errorf("type %s cannot extend final type %s", spec.Name, spec.Super.Name)
	}
	t := &Type{
		Name:        spec.Name,
		Super:       spec.Super,
		Interfaces:  spec.Interfaces,
		Abstract:    spec.Abstract,
		Final:       spec.Final,
		Interface:   spec.Interface,
		Array:       spec.Array,
		Initialized: !spec.Uninitialized,
		universe:    u,
	}
	if spec.Super != nil {
		spec.Super.subtypes = append(spec.Super.subtypes, t)
	}
	for _, itf := range spec.Interfaces {
		itf.subtypes = append(itf.subtypes, t)
	}
	u.types = append(u.types, t)
	u.byKey[t.Name] = t
	u.checkDependencies()
	return t, nil
}

// MustLoad is like Load but panics on error. It is meant for building fixed hierarchies.
func (u *Universe) MustLoad(spec TypeSpec) *Type {
	t, err := u.Load(spec)
	if err != nil {
		panic(err)
	}
	return t
}

// AddMethod declares a method on t. Adding a method to a loaded type behaves like a class redefinition and may
// invalidate assumptions.
func (u *Universe) AddMethod(t *Type, spec MethodSpec) *Method {
	m := &Method{
		Name:         spec.Name,
		Holder:       t,
		Static:       spec.Static,
		Private:      spec.Private,
		Final:        spec.Final,
		Native:       spec.Native,
		Abstract:     spec.Abstract,
		NonInlinable: spec.NonInlinable,
		CodeSize:     spec.CodeSize,
	}
	t.methods = append(t.methods, m)
	u.checkDependencies()
	return m
}

// Depend registers an assumption set that must be checked whenever the universe changes
func (u *Universe) Depend(a *Assumptions) {
	for _, x := range u.deps {
		if x == a {
			return
		}
	}
	u.deps = append(u.deps, a)
}

func (u *Universe) checkDependencies() {
	for _, a := range u.deps {
		a.check()
	}
}

func (u *Universe) String() string {
	names := make([]string, len(u.types))
	for i, t := range u.types {
		names[i] = t.Name
	}
	return "{" + strings.Join(names, ", ") + "}"
}
