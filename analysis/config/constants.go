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

package config

const (
	// DefaultMaxInlineLevel is the default maximum nesting level of inlined call sites
	DefaultMaxInlineLevel = 30
	// DefaultMaxRecursiveInlining is the default number of times a method may be inlined into itself
	DefaultMaxRecursiveInlining = 1
	// DefaultMinBranchProbability is the default lower bound of type-check branch probabilities, used in place of
	// zero or negative probabilities
	DefaultMinBranchProbability = 1e-4
	// DefaultProbabilityTolerance is the default accepted deviation from one of a profile's total probability
	DefaultProbabilityTolerance = 0.01
)
