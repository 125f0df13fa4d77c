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

package funcutil

import "fmt"

// An Optional holds a value or none
type Optional[T any] interface {
	// Value returns the value, and panics on none
	Value() T
	// ValueOr returns the value, or def on none
	ValueOr(def T) T
	IsSome() bool
	IsNone() bool
}

type some[T any] struct{ value T }

func (s some[T]) Value() T       { return s.value }
func (s some[T]) ValueOr(T) T    { return s.value }
func (s some[T]) IsSome() bool   { return true }
func (s some[T]) IsNone() bool   { return false }
func (s some[T]) String() string { return fmt.Sprintf("some(%v)", s.value) }

type none[T any] struct{}

func (none[T]) Value() T        { panic("value of an empty optional") }
func (none[T]) ValueOr(def T) T { return def }
func (none[T]) IsSome() bool    { return false }
func (none[T]) IsNone() bool    { return true }
func (none[T]) String() string  { return "none" }

// Some returns an optional holding x
func Some[T any](x T) Optional[T] { return some[T]{x} }

// None returns an empty optional
func None[T any]() Optional[T] { return none[T]{} }
