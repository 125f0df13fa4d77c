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

// Package meta models the resolved types and methods the optimizations query: the class hierarchy and its
// dispatch rules, receiver type profiles collected at call sites, and the speculative assumptions a compilation
// records about the hierarchy.
//
// A Universe owns the loaded types. Loading a type or declaring a method after assumptions have been recorded
// re-checks every registered Assumptions set, and reports the violated assumptions through its callbacks.
package meta
