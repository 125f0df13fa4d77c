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

import "fmt"

// Method is a resolved method.
type Method struct {
	Name   string
	Holder *Type

	Static       bool
	Private      bool
	Final        bool
	Native       bool
	Abstract     bool
	NonInlinable bool

	// CodeSize is the size of the method body, in bytecodes
	CodeSize int
}

// MethodSpec describes a method to be declared with Universe.AddMethod
type MethodSpec struct {
	Name         string
	Static       bool
	Private      bool
	Final        bool
	Native       bool
	Abstract     bool
	NonInlinable bool
	CodeSize     int
}

// String returns Holder.Name, or the name alone for a method without holder
func (m *Method) String() string {
	if m == nil {
		return "<nil method>"
	}
	if m.Holder == nil {
		return m.Name
	}
	return fmt.Sprintf("%s.%s", m.Holder, m.Name)
}

// CanBeStaticallyBound returns true if every invocation of m selects m itself, independently of the receiver.
func (m *Method) CanBeStaticallyBound() bool {
	return m.Static || m.Private || m.Final || (m.Holder != nil && m.Holder.Final)
}

// CanBeInlined returns false for methods that are explicitly marked as not inlinable
func (m *Method) CanBeInlined() bool {
	return !m.NonInlinable
}
