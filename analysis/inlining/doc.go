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

// Package inlining decides whether the call sites of a program graph can be replaced by the body of their target,
// and performs the replacement.
//
// Decide inspects a call site and returns a Decision: the call is bound statically (Exact), bound by the current
// class hierarchy under a recorded assumption (Assumption), bound by the type profile to a single receiver type
// (SingleGuard), or dispatched over the profiled receiver types (PolymorphicCascade). Apply performs the rewrite a
// decision stands for; Inline is the splice they all share, replacing one call site by a copy of a callee graph.
//
// The inliner works on one graph at a time. Different graphs can be processed concurrently by different
// inliners, as long as the profiles and the class hierarchy are not modified meanwhile.
package inlining
