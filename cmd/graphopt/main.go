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

// graphopt applies the graph optimizations to built-in sample programs, and checks with the reference
// interpreter that every sample computes the same results after the transformation.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/awslabs/ar-go-graphopt/analysis/config"
	"github.com/awslabs/ar-go-graphopt/internal/formatutil"
)

// flags
var (
	configPath = ""
	dump       = false
	verbose    = false
)

func init() {
	flag.StringVar(&configPath, "config", "", "config file (yaml)")
	flag.BoolVar(&dump, "dump", false, "print the graphs before and after each transformation")
	flag.BoolVar(&verbose, "verbose", false, "enable verbose output")
}

const usage = `Apply the graph optimizations to sample programs.

Usage:
  graphopt [options] sample...

Samples:
  peel      peel the loop of sum(a, n)
  invert    invert the loop of sum(a, n)
  nested    peel the inner loop of grid(n, m)
  inline    inline a profiled call of Shape.area with a type-test cascade
  speculate inline a call of Shape.area under a class hierarchy assumption

Use the -help flag to display the options.

Examples:
% graphopt -dump peel inline
% graphopt -config graphopt.yaml -verbose inline
`

func main() {
	if err := doMain(); err != nil {
		fmt.Fprintf(os.Stderr, "graphopt: %s\n", err)
		os.Exit(1)
	}
}

func doMain() error {
	flag.Parse()

	if len(flag.Args()) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cfg := config.NewDefault()
	if configPath != "" {
		config.SetGlobalConfig(configPath)
		loaded, err := config.LoadGlobal()
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if verbose && cfg.LogLevel < int(config.DebugLevel) {
		cfg.LogLevel = int(config.DebugLevel)
	}
	return runSamples(cfg, flag.Args(), os.Stdout)
}

// runSamples runs the named samples in order, printing their results to out. It fails on the first sample that
// cannot run, and after all of them if some changed their results.
func runSamples(cfg *config.Config, names []string, out io.Writer) error {
	e := &env{config: cfg, logger: config.NewLogGroup(cfg), dump: dump, out: out}

	failed := 0
	for _, name := range names {
		run, ok := samples[name]
		if !ok {
			return fmt.Errorf("unknown sample %q", name)
		}
		fmt.Fprintln(os.Stderr, formatutil.Faint("Running "+name))
		same, err := run(e)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if !same {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d samples changed their results", failed)
	}
	return nil
}
