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

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config contains the options of the graph optimizations.
// To add elements to a config file, add fields to this struct.
// If some field is not defined in the config file, it will be set to its default value after loading.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options `yaml:"options"`

	sourceFile string

	// NeverInline lists the methods that must never be inlined, as "Holder.name" strings that are seen as regexes
	// if they compile to regexes, otherwise as prefixes
	NeverInline []string `yaml:"never-inline"`

	neverInlineRegexes []*regexp.Regexp
}

// Options holds the tuning switches and thresholds
type Options struct {
	// Loglevel controls the verbosity of the optimizations
	LogLevel int `yaml:"log-level"`

	// InlineMonomorphic enables type-guarded inlining of call sites whose profile shows a single receiver type
	InlineMonomorphic bool `yaml:"inline-monomorphic"`

	// InlinePolymorphic enables cascades of type-guarded inlined bodies for call sites whose profile shows
	// several receiver types
	InlinePolymorphic bool `yaml:"inline-polymorphic"`

	// InlineMegamorphic enables cascades for call sites whose profile shows receiver types that were not
	// recorded, keeping a residual call for them
	InlineMegamorphic bool `yaml:"inline-megamorphic"`

	// UseOptimisticAssumptions allows speculation on the class hierarchy by default
	UseOptimisticAssumptions bool `yaml:"use-optimistic-assumptions"`

	// FilterProfiledTypes drops the profiled receiver types that are not assignable to the holder of the target
	FilterProfiledTypes bool `yaml:"filter-profiled-types"`

	// MaxInlineLevel is the maximum nesting level of inlined call sites. If <= 0, the default is used.
	MaxInlineLevel int `yaml:"max-inline-level"`

	// MaxRecursiveInlining is the number of times a method can be inlined in its own body. If < 0, the default
	// is used.
	MaxRecursiveInlining int `yaml:"max-recursive-inlining"`

	// ProbabilityAnalysis scales the probability of inlined fixed nodes by the probability of the call site
	ProbabilityAnalysis bool `yaml:"probability-analysis"`

	// LimitInlinedProbability caps the probability of inlined fixed nodes at the probability of the call site
	LimitInlinedProbability bool `yaml:"limit-inlined-probability"`

	// MinBranchProbability is the smallest probability of the branches of type-checked inlining. Degenerate
	// probabilities are clamped to it. Must be in (0,1).
	MinBranchProbability float64 `yaml:"min-branch-probability"`

	// ProbabilityTolerance is the largest accepted deviation from one of the sum of the profiled probabilities.
	// Must be in (0,1).
	ProbabilityTolerance float64 `yaml:"probability-tolerance"`

	// VerifyGraphs checks the graph invariants after every transformation, and aborts when one is broken
	VerifyGraphs bool `yaml:"verify-graphs"`
}

// NewDefault returns a default config.
func NewDefault() *Config {
	return &Config{
		sourceFile:  "",
		NeverInline: nil,
		Options: Options{
			LogLevel:                 int(InfoLevel),
			InlineMonomorphic:        true,
			InlinePolymorphic:        true,
			InlineMegamorphic:        true,
			UseOptimisticAssumptions: true,
			FilterProfiledTypes:      true,
			MaxInlineLevel:           DefaultMaxInlineLevel,
			MaxRecursiveInlining:     DefaultMaxRecursiveInlining,
			ProbabilityAnalysis:      true,
			LimitInlinedProbability:  false,
			MinBranchProbability:     DefaultMinBranchProbability,
			ProbabilityTolerance:     DefaultProbabilityTolerance,
			VerifyGraphs:             false,
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("could not load config file %s: %w", filename, err)
	}
	cfg.sourceFile = filename
	return cfg, nil
}

// Parse reads a configuration from the yaml contents of a config file
func Parse(b []byte) (*Config, error) {
	cfg := NewDefault()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}
	if cfg.MaxInlineLevel <= 0 {
		cfg.MaxInlineLevel = DefaultMaxInlineLevel
	}
	if cfg.MaxRecursiveInlining < 0 {
		cfg.MaxRecursiveInlining = DefaultMaxRecursiveInlining
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.compileFilters()
	return cfg, nil
}

func (c *Config) validate() error {
	if c.LogLevel < int(ErrLevel) || c.LogLevel > int(TraceLevel) {
		return fmt.Errorf("log-level %d is not in [%d,%d]", c.LogLevel, ErrLevel, TraceLevel)
	}
	if c.MinBranchProbability <= 0 || c.MinBranchProbability >= 1 {
		return fmt.Errorf("min-branch-probability %g is not in (0,1)", c.MinBranchProbability)
	}
	if c.ProbabilityTolerance <= 0 || c.ProbabilityTolerance >= 1 {
		return fmt.Errorf("probability-tolerance %g is not in (0,1)", c.ProbabilityTolerance)
	}
	return nil
}

func (c *Config) compileFilters() {
	c.neverInlineRegexes = make([]*regexp.Regexp, len(c.NeverInline))
	for i, s := range c.NeverInline {
		if r, err := regexp.Compile(s); err == nil {
			c.neverInlineRegexes[i] = r
		}
	}
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// IsNeverInlined returns true if the method name matches one of the never-inline filters. This function safely
// considers the case where a filter has been specified by the user, but it could not be compiled to a regex. The
// safe case is to check whether the filter string is a prefix of the method name.
func (c Config) IsNeverInlined(method string) bool {
	for i, s := range c.NeverInline {
		if i < len(c.neverInlineRegexes) && c.neverInlineRegexes[i] != nil {
			if c.neverInlineRegexes[i].MatchString(method) {
				return true
			}
		} else if strings.HasPrefix(method, s) {
			return true
		}
	}
	return false
}
