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

import (
	"reflect"
	"testing"
)

func TestSlices(t *testing.T) {
	a := []int{3, 1, 4, 1, 5}
	if got := Map(a, func(x int) int { return x * 2 }); !reflect.DeepEqual(got, []int{6, 2, 8, 2, 10}) {
		t.Errorf("Map: got %v", got)
	}
	if got := Filter(a, func(x int) bool { return x > 1 }); !reflect.DeepEqual(got, []int{3, 4, 5}) {
		t.Errorf("Filter: got %v", got)
	}
	if got := Sum(a, func(x int) float64 { return float64(x) / 2 }); got != 7 {
		t.Errorf("Sum: got %g", got)
	}
	if !Exists(a, func(x int) bool { return x == 4 }) || Exists(a, func(x int) bool { return x == 2 }) {
		t.Errorf("Exists is wrong on %v", a)
	}
	Reverse(a)
	if !reflect.DeepEqual(a, []int{5, 1, 4, 1, 3}) {
		t.Errorf("Reverse: got %v", a)
	}
}

func TestOptional(t *testing.T) {
	s, n := Some(2), None[int]()
	if !s.IsSome() || s.IsNone() || s.Value() != 2 || s.ValueOr(7) != 2 {
		t.Errorf("unexpected some %v", s)
	}
	if n.IsSome() || !n.IsNone() || n.ValueOr(7) != 7 {
		t.Errorf("unexpected none %v", n)
	}
	defer func() {
		if recover() == nil {
			t.Errorf("value of none does not panic")
		}
	}()
	n.Value()
}
