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
	"fmt"

	"github.com/awslabs/ar-go-graphopt/analysis/config"
	"github.com/awslabs/ar-go-graphopt/analysis/ir"
	"github.com/awslabs/ar-go-graphopt/analysis/meta"
)

// WeightFunc estimates the cost of inlining callee at a call site of caller
type WeightFunc func(caller, callee *meta.Method, site *ir.Node) float64

// CodeSizeWeight is the default weight: the code size of the callee
func CodeSizeWeight(_, callee *meta.Method, _ *ir.Node) float64 {
	return float64(callee.CodeSize)
}

// A GraphProvider returns the graph of the methods that can be inlined, or nil if it has none
type GraphProvider interface {
	Graph(m *meta.Method) *ir.Graph
}

// GraphFunc adapts a function to a GraphProvider
type GraphFunc func(m *meta.Method) *ir.Graph

// Graph implements GraphProvider
func (f GraphFunc) Graph(m *meta.Method) *ir.Graph { return f(m) }

// An Inliner decides and performs the inlining of call sites
type Inliner struct {
	config   *config.Config
	logger   *config.LogGroup
	profiles meta.Profiles
}

// NewInliner returns an Inliner reading the receiver type profiles from profiles, which may be nil. A nil config
// is the default config, and a nil logger logs with the level of the config.
func NewInliner(c *config.Config, logger *config.LogGroup, profiles meta.Profiles) *Inliner {
	if c == nil {
		c = config.NewDefault()
	}
	if logger == nil {
		logger = config.NewLogGroup(c)
	}
	return &Inliner{config: c, logger: logger, profiles: profiles}
}

func (in *Inliner) verify(g *ir.Graph, site *ir.Node, what string) {
	if in.logger.LogsTrace() {
		in.logger.Tracef("after %s:\n%s", what, ir.Dump(g))
	}
	if !in.config.VerifyGraphs {
		return
	}
	if err := ir.Verify(g); err != nil {
		panic(&ir.InvariantError{Node: site, Message: fmt.Sprintf("graph broken after %s: %v", what, err)})
	}
}

// describe returns the target and position of a call site, for logging
func describe(site *ir.Node) string {
	var caller *meta.Method
	if s := site.State(); s != nil {
		caller = s.Method
	} else if g := site.Graph(); g != nil {
		caller = g.Method
	}
	return fmt.Sprintf("%s at %s@%d", site.Target, caller, site.BCI)
}
