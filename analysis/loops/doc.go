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

// Package loops discovers the loops of a program graph and implements loop peeling and loop inversion.
//
// Discover builds a LoopSet: one Loop per loop header, with its member control nodes, its exits and its parent.
// These are computed on demand and computed again after a transformation invalidates them.
//
// Both transformations duplicate a part of an iteration before the loop (the whole first iteration for Peel, the
// exit test for Invert), and join every exit of the loop with the matching exit of the copy. The nodes after the
// joins may observe values computed either by the copy or by the loop; the coloring package decides, for each of
// them, which values they observe and creates phis where both meet.
package loops
