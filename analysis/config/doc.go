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

/*
Package config provides a simple way to manage the configuration of the graph optimizations.

Use [Load](filename) to load a configuration from a specific filename, or [Parse] to read it from the contents of
a file.

Use [SetGlobalConfig](filename) to set filename as the global config, and then [LoadGlobal]() to load the global config.

A config file should be in yaml format. The top-level fields can be any of the fields defined in the Config
struct type. Options that are not specified keep their default value from [NewDefault].
For example, a valid config file is as follows:

	options:
	  log-level: 4
	  inline-megamorphic: false
	  min-branch-probability: 0.001
	never-inline:
	  - "Object\\..*"

# Filters

The never-inline filters are seen as regexes if they can be compiled to regexes, otherwise they are prefixes of
the method names ("Holder.name") they exclude.

# Probabilities

The min-branch-probability and probability-tolerance options must be in (0,1): the first one is the lower bound
used in place of degenerate branch probabilities, the second one is how far from one the total probability of a
type profile may be.
*/
package config
