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

import (
	"fmt"
	"strings"

	"github.com/awslabs/ar-go-graphopt/internal/formatutil"
)

// Dump renders the live nodes of g, one per line in ID order, with their inputs, state and control links.
// Control nodes are printed in bold and frame states faint when the output is a terminal.
func Dump(g *Graph) string {
	var b strings.Builder
	fmt.Fprintf(&b, "graph %s (%d nodes)\n", g.Method, g.live)
	for _, n := range g.Nodes() {
		name := n.String()
		switch {
		case n.op.IsControl():
			name = formatutil.Bold(name)
		case n.op == OpFrameState:
			name = formatutil.Faint(name)
		case n.op == OpPhi:
			name = formatutil.Cyan(name)
		}
		b.WriteString(formatutil.PadRight(name, 32))
		var parts []string
		if len(n.inputs) > 0 {
			parts = append(parts, "in="+ids(n.inputs))
		}
		if n.state != nil {
			parts = append(parts, fmt.Sprintf("state=%d", n.state.id))
		}
		if n.op == OpPhi {
			parts = append(parts, fmt.Sprintf("merge=%d", n.merge.id))
		}
		if n.op.IsEnd() && n.merge != nil {
			parts = append(parts, fmt.Sprintf("to=%d", n.merge.id))
		}
		if len(n.ends) > 0 {
			parts = append(parts, "ends="+ids(n.ends))
		}
		if len(n.succs) > 0 {
			parts = append(parts, "succ="+ids(n.succs))
		}
		if s := n.Stamp.String(); s != "" {
			parts = append(parts, "stamp="+s)
		}
		if n.op == OpIf {
			parts = append(parts, fmt.Sprintf("p=%.3f", n.Probability))
		}
		if n.Reason != ReasonNone {
			parts = append(parts, formatutil.Red(string(n.Reason)))
		}
		b.WriteString(strings.Join(parts, " "))
		b.WriteByte('\n')
	}
	return b.String()
}

func ids(nodes []*Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		if n == nil {
			parts[i] = "_"
		} else {
			parts[i] = fmt.Sprint(n.id)
		}
	}
	return "[" + strings.Join(parts, ",") + "]"
}
