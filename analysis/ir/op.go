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

package ir

// Op is the operation of a node
type Op int

const (
	OpInvalid Op = iota

	// Control nodes

	// OpStart is the entry of a graph
	OpStart
	// OpBegin starts a block, typically a successor of a control split
	OpBegin
	// OpEnd is a forward predecessor edge of a merge
	OpEnd
	// OpMerge joins two or more forward ends
	OpMerge
	// OpLoopBegin is a loop header: one forward end followed by loop ends
	OpLoopBegin
	// OpLoopEnd is the backward edge of a loop
	OpLoopEnd
	// OpIf splits control on a boolean condition. Successors are (true, false).
	OpIf
	// OpGuard deoptimizes unless its condition evaluates to !Negated
	OpGuard
	// OpInvoke is a call site. Successors are (next, exception edge).
	OpInvoke
	// OpExceptionObject produces the exception caught at an exception edge
	OpExceptionObject
	// OpReturn leaves the graph with an optional value
	OpReturn
	// OpUnwind leaves the graph by throwing its input
	OpUnwind
	// OpDeoptimize transfers execution back to the interpreter
	OpDeoptimize

	// Data nodes

	OpConst
	OpNull
	OpParam
	OpPhi
	OpAdd
	OpSub
	OpMul
	OpLess
	OpEqual
	OpIsNull
	// OpInstanceOf tests whether the exact type of its input is one of the node's Types
	OpInstanceOf
	// OpPi narrows the stamp of its first input; the second input is the anchoring control node
	OpPi
	OpLength
	OpLoadIndex
	// OpFrameState is a deoptimization snapshot; its state reference is the outer (caller) frame state
	OpFrameState
	// OpPlaceholder stands for a value that is patched in after a transformation
	OpPlaceholder

	numOps
)

var opNames = [numOps]string{
	OpInvalid:         "Invalid",
	OpStart:           "Start",
	OpBegin:           "Begin",
	OpEnd:             "End",
	OpMerge:           "Merge",
	OpLoopBegin:       "LoopBegin",
	OpLoopEnd:         "LoopEnd",
	OpIf:              "If",
	OpGuard:           "Guard",
	OpInvoke:          "Invoke",
	OpExceptionObject: "ExceptionObject",
	OpReturn:          "Return",
	OpUnwind:          "Unwind",
	OpDeoptimize:      "Deoptimize",
	OpConst:           "Const",
	OpNull:            "Null",
	OpParam:           "Param",
	OpPhi:             "Phi",
	OpAdd:             "Add",
	OpSub:             "Sub",
	OpMul:             "Mul",
	OpLess:            "Less",
	OpEqual:           "Equal",
	OpIsNull:          "IsNull",
	OpInstanceOf:      "InstanceOf",
	OpPi:              "Pi",
	OpLength:          "Length",
	OpLoadIndex:       "LoadIndex",
	OpFrameState:      "FrameState",
	OpPlaceholder:     "Placeholder",
}

func (op Op) String() string {
	if op < 0 || op >= numOps {
		return "Op?"
	}
	return opNames[op]
}

// IsControl returns true for nodes that are part of the control-flow skeleton
func (op Op) IsControl() bool {
	return op >= OpStart && op <= OpDeoptimize
}

// IsMerge returns true for merges and loop headers
func (op Op) IsMerge() bool {
	return op == OpMerge || op == OpLoopBegin
}

// IsEnd returns true for the predecessor edges of merges
func (op Op) IsEnd() bool {
	return op == OpEnd || op == OpLoopEnd
}

// IsBegin returns true for the nodes that start a block
func (op Op) IsBegin() bool {
	return op == OpStart || op == OpBegin || op == OpMerge || op == OpLoopBegin
}

// HasNext returns true for control nodes with a single next successor (possibly plus an exception edge)
func (op Op) HasNext() bool {
	switch op {
	case OpStart, OpBegin, OpMerge, OpLoopBegin, OpGuard, OpInvoke, OpExceptionObject:
		return true
	}
	return false
}

// IsTerminal returns true for control nodes that leave the graph
func (op Op) IsTerminal() bool {
	return op == OpReturn || op == OpUnwind || op == OpDeoptimize
}

// IsSplit returns true for control nodes that may have more than one successor
func (op Op) IsSplit() bool {
	return op == OpIf || op == OpInvoke
}

// ProducesValue returns true if nodes of that op can be used as data inputs
func (op Op) ProducesValue() bool {
	return !op.IsControl() || op == OpInvoke || op == OpExceptionObject
}

// IsFloating returns true for data nodes, which are not part of the control-flow skeleton
func (op Op) IsFloating() bool {
	return !op.IsControl()
}

func (op Op) numSuccs() int {
	switch op {
	case OpIf, OpInvoke:
		return 2
	case OpStart, OpBegin, OpMerge, OpLoopBegin, OpGuard, OpExceptionObject:
		return 1
	}
	return 0
}

// InvokeKind is the dispatch kind of a call site
type InvokeKind int

const (
	InvokeStatic InvokeKind = iota
	InvokeSpecial
	InvokeVirtual
	InvokeInterface
)

func (k InvokeKind) String() string {
	switch k {
	case InvokeStatic:
		return "static"
	case InvokeSpecial:
		return "special"
	case InvokeVirtual:
		return "virtual"
	case InvokeInterface:
		return "interface"
	}
	return "?"
}

// HasReceiver returns true if the first argument of the call is the receiver
func (k InvokeKind) HasReceiver() bool {
	return k != InvokeStatic
}

// DeoptReason tells why a deoptimization happens
type DeoptReason string

const (
	ReasonNone                        DeoptReason = ""
	ReasonNullCheckException          DeoptReason = "NullCheckException"
	ReasonTypeCheckedInliningViolated DeoptReason = "TypeCheckedInliningViolated"
	ReasonNotCompiledExceptionHandler DeoptReason = "NotCompiledExceptionHandler"
	ReasonUnreachedCode               DeoptReason = "UnreachedCode"
)

// Special BCI values of frame states
const (
	// BeforeBCI marks the state before the execution of a method, used by intrinsics
	BeforeBCI = -1
	// AfterBCI marks the state after the execution of a method
	AfterBCI = -2
	// AfterExceptionBCI marks the state after a method exits by an exception
	AfterExceptionBCI = -4
	// InvalidBCI marks a state that must not be used for deoptimization
	InvalidBCI = -5
)
