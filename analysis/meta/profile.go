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

package meta

import (
	"fmt"
	"strings"
)

// ProfiledType is a receiver type observed at a call site, with the fraction of executions it was observed in
type ProfiledType struct {
	Type        *Type
	Probability float64
}

// TypeProfile is the receiver type distribution observed at a call site.
// The probabilities of Types plus NotRecorded sum to (about) one.
type TypeProfile struct {
	Types []ProfiledType

	// NotRecorded is the probability of receiver types that were not recorded in Types
	NotRecorded float64
}

func (p *TypeProfile) String() string {
	if p == nil {
		return "<no profile>"
	}
	parts := make([]string, 0, len(p.Types)+1)
	for _, t := range p.Types {
		parts = append(parts, fmt.Sprintf("%s:%.3f", t.Type, t.Probability))
	}
	parts = append(parts, fmt.Sprintf("?:%.3f", p.NotRecorded))
	return "[" + strings.Join(parts, " ") + "]"
}

// Profiles gives access to profiling feedback. Implementations must be safe to read from the compilation thread
// while the profile is frozen.
type Profiles interface {
	// TypeProfile returns the receiver type profile of the call at bci in method, or nil if none was collected
	TypeProfile(method *Method, bci int) *TypeProfile
}

// ProfileKey identifies a call site
type ProfileKey struct {
	Method *Method
	BCI    int
}

// ProfileTable is a Profiles backed by a map
type ProfileTable map[ProfileKey]*TypeProfile

// TypeProfile implements Profiles
func (t ProfileTable) TypeProfile(method *Method, bci int) *TypeProfile {
	return t[ProfileKey{Method: method, BCI: bci}]
}

// Set records the profile of the call at bci in method
func (t ProfileTable) Set(method *Method, bci int, p *TypeProfile) {
	t[ProfileKey{Method: method, BCI: bci}] = p
}
