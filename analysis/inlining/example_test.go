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
	"fmt"

	"github.com/awslabs/ar-go-graphopt/analysis/inlining"
	"github.com/awslabs/ar-go-graphopt/analysis/ir"
	"github.com/awslabs/ar-go-graphopt/internal/interp"
	"github.com/awslabs/ar-go-graphopt/internal/irtest"
)

func ExampleInliner_Apply() {
	lib := irtest.Shapes()
	c := irtest.NewVirtualCall(ir.InvokeVirtual, lib.Method("Shape.area"), ir.ExactNonNull(lib.Type("Square")))
	in := inlining.NewInliner(nil, nil, nil)
	d := in.Decide(c.Invoke, 0, false, nil)
	if d.IsNone() {
		return
	}
	if err := in.Apply(d.Value(), lib, nil); err != nil {
		fmt.Println(err)
		return
	}
	res, err := interp.New(lib.Graph).Run(c.Graph, &interp.Object{Type: lib.Type("Square")})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(d.Value())
	fmt.Println(res)
	// Output:
	// exact Square.area
	// returned(5)
}
