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

// Package ir implements the program graph the optimizations transform: a sea-of-nodes representation where
// control nodes form a control-flow skeleton and floating data nodes are threaded through it.
//
// Control nodes have a single predecessor, except merges, which have an ordered list of ends. A loop header is
// a merge whose first end is the forward entry and whose other ends are loop ends. Phis are owned by a merge and
// have one input per end, in the same order. Frame states are deoptimization snapshots attached to control
// nodes, and nest through their outer state when methods are inlined.
//
// Low-level mutations keep inputs and usages consistent, but a transformation may leave the control-flow
// skeleton temporarily inconsistent. Verify checks the invariants once a transformation is done. Invariant
// violations detected during a transformation panic with an *InvariantError.
package ir
