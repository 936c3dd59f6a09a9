// Copyright 2011 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command drake is the command-line front end, grounded on the teacher's
// cmd/nin main()/ninjaMain split: a small flag-parsing main that builds an
// Engine and hands off to BuildDriver, rather than the teacher's own
// monolithic ninjaMain juggling state_/disk_interface_/build_log_ directly
// (those concerns are already owned by Engine here).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"

	"github.com/infinitio/drake"
	"github.com/infinitio/drake/internal/enginelog"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("drake", flag.ContinueOnError)
	jobs := fs.Int("jobs", 1, "number of builders to run concurrently")
	debug := fs.Bool("debug", false, "enable debug logging (rebuild explanations, timing)")
	showVersion := fs.Bool("version", false, "print the version and exit")
	var overrides stringListFlag
	fs.Var(&overrides, "set", "override a configuration key: --set=name=value (repeatable)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *showVersion {
		fmt.Println(drake.Version)
		return 0
	}

	// Overrides are parsed and checked for the name=value shape here, but
	// not applied: this binary doesn't load a drakefile of its own
	// (spec.md's drakefiles are graphs built in Go, not data this CLI
	// parses), so the parsed set is not passed to any graph-construction
	// code and ov.Apply is never called.
	ov := drake.NewOverrides()
	for _, kv := range overrides {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			fmt.Fprintf(os.Stderr, "drake: invalid --set value %q, want name=value\n", kv)
			return 2
		}
		ov.Set(name, value)
	}
	_ = ov

	eng := drake.NewEngine(*jobs)
	if *debug {
		eng.SetLog(enginelog.New(true))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	driver := drake.NewBuildDriver(eng)
	if err := driver.Build(ctx, fs.Args()); err != nil {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s %s\n", red("drake: build failed:"), err)
		return 1
	}
	return 0
}

// stringListFlag accumulates repeated --set=... flags into a slice.
type stringListFlag []string

func (f *stringListFlag) String() string { return strings.Join(*f, ",") }
func (f *stringListFlag) Set(v string) error {
	*f = append(*f, v)
	return nil
}
