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

// Package coloring implements the coloring of control nodes and the splitting of values by color.
//
// ColorDown tags the control nodes reachable from a set of seeds with the color of their closest colored
// predecessor, and decides the color of merges with a caller-provided rule. SplitByColor then reconciles the
// floating values observed by the colored nodes: a value that depends on a color-specific candidate is cloned
// once per color it is used under, so that every colored node reads the values of its own color.
//
// The loop transformations use both operations to decide, after duplicating an iteration, which of the
// duplicated or original values each node after the loop exits must observe.
package coloring
