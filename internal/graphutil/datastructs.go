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

package graphutil

import "github.com/awslabs/ar-go-graphopt/internal/funcutil"

// Tree is a simple generic implementation of a tree. The loop engine uses it for loop nesting, with a root whose
// label is the zero value standing for the whole graph.
type Tree[T any] struct {
	Parent   *Tree[T]
	Children []*Tree[T]
	Label    T
}

// NewTree returns a new tree with the labels of the type provided
func NewTree[T any](rootLabel T) *Tree[T] {
	return &Tree[T]{
		Parent:   nil,
		Children: nil,
		Label:    rootLabel,
	}
}

// AddChild adds a new leaf labelled label under t and returns it
func (t *Tree[T]) AddChild(label T) *Tree[T] {
	newChild := &Tree[T]{
		Parent: t,
		Label:  label,
	}
	t.Children = append(t.Children, newChild)
	return newChild
}

// Ancestors returns the chain of the n closest ancestors of t, root first, t included. If n < 0, then it returns
// the chain up to the root of the tree
func (t *Tree[T]) Ancestors(n int) []*Tree[T] {
	var ans []*Tree[T]
	cur := t
	i := 0
	for cur != nil && (i < n || n < 0) {
		ans = append(ans, cur)
		cur = cur.Parent
		i++
	}
	funcutil.Reverse(ans)
	return ans
}

// Depth returns the number of ancestors of t, 0 for the root
func (t *Tree[T]) Depth() int {
	d := 0
	for cur := t.Parent; cur != nil; cur = cur.Parent {
		d++
	}
	return d
}

// Walk calls f on every node of the tree in pre-order, children in insertion order. Returning false from f
// skips the subtree of a node.
func (t *Tree[T]) Walk(f func(*Tree[T]) bool) {
	stack := []*Tree[T]{t}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !f(cur) {
			continue
		}
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, cur.Children[i])
		}
	}
}

// Labels returns the labels of the tree in pre-order
func (t *Tree[T]) Labels() []T {
	var res []T
	t.Walk(func(n *Tree[T]) bool {
		res = append(res, n.Label)
		return true
	})
	return res
}
