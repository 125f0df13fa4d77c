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

package loops

import (
	"fmt"

	"github.com/awslabs/ar-go-graphopt/analysis/config"
	"github.com/awslabs/ar-go-graphopt/analysis/ir"
)

// A Transformer peels and inverts the loops of a LoopSet
type Transformer struct {
	config *config.Config
	logger *config.LogGroup
}

// NewTransformer returns a Transformer. A nil config is the default config, and a nil logger logs with the level
// of the config.
func NewTransformer(c *config.Config, logger *config.LogGroup) *Transformer {
	if c == nil {
		c = config.NewDefault()
	}
	if logger == nil {
		logger = config.NewLogGroup(c)
	}
	return &Transformer{config: c, logger: logger}
}

// done logs the outcome of a transformation of l, and verifies the graph when the config asks for it
func (t *Transformer) done(what string, l *Loop, before int) {
	g := l.set.graph
	t.logger.Debugf("%s %s", what, l)
	if t.logger.LogsTrace() {
		t.logger.Tracef("%s %s: %d nodes before, %d after\n%s", what, l, before, g.NodeCount(), ir.Dump(g))
	}
	if !t.config.VerifyGraphs {
		return
	}
	if err := ir.Verify(g); err != nil {
		panic(&ir.InvariantError{Node: l.header, Message: fmt.Sprintf("graph broken after %s: %v", what, err)})
	}
}
