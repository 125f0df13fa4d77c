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

package inlining

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/slices"
)

// ErrInconsistentProfile is returned when the probabilities of a type profile do not sum to one
var ErrInconsistentProfile = errors.New("inconsistent type profile")

// BranchProbabilities converts the probabilities of the receiver types of a cascade of type tests into the
// probability of each test to succeed once it is reached. The most probable type is tested first, and the
// residual branch taken by the unseen types is last. The result is aligned with probabilities.
//
// Probabilities below minProbability are raised to it, so that no branch is ever certain or impossible. When
// probabilities and notRecorded are all zero, the types are considered equally probable. The probabilities must
// sum to one within tolerance, otherwise an error wrapping ErrInconsistentProfile is returned.
func BranchProbabilities(probabilities []float64, notRecorded, minProbability, tolerance float64) ([]float64, error) {
	n := len(probabilities)
	p := make([]float64, n)
	recorded := 0.0
	for _, x := range probabilities {
		if x > 0 {
			recorded += x
		}
	}
	for i, x := range probabilities {
		switch {
		case recorded <= 0 && notRecorded <= 0:
			p[i] = 1 / float64(n)
		case x < minProbability:
			p[i] = minProbability
		default:
			p[i] = x
		}
	}

	// tests in execution order; the running total is accumulated from the last one
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) bool { return p[a] > p[b] })

	total := math.Max(notRecorded, minProbability)
	res := make([]float64, n)
	for k := n - 1; k >= 0; k-- {
		i := order[k]
		total += p[i]
		res[i] = p[i] / total
	}
	if math.Abs(total-1) > tolerance {
		return nil, fmt.Errorf("%w: probabilities sum to %g", ErrInconsistentProfile, total)
	}
	return res, nil
}
