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

package drake

import (
	"context"
	"sort"
)

// BuildDriver is the top-level entry point a command-line front end calls
// (spec.md §4.6), grounded on the teacher's ninjaMain (ninja.go): a small
// struct holding the loaded state and exposing one "go build the requested
// things" method, rather than a package-level main() doing everything.
//
// Unlike ninjaMain, BuildDriver carries no disk/build-log/deps-log fields of
// its own: those concerns are already owned by Engine, DepFile, and the
// individual Nodes (spec.md §9's "thread state explicitly" resolution).
type BuildDriver struct {
	eng      *Engine
	defaults []Node
}

// NewBuildDriver returns a driver bound to eng. defaults are built, together
// with the engine's consumer-less roots, whenever the caller requests an
// empty target list (spec.md §4.6 "roots... plus an explicit defaults list").
func NewBuildDriver(eng *Engine, defaults ...Node) *BuildDriver {
	return &BuildDriver{eng: eng, defaults: defaults}
}

// Build resolves names to nodes (or, if names is empty, to the roots of the
// DAG plus the driver's defaults), checks for a dependency cycle up front,
// then spawns one coroutine per requested node calling BuildNode, exactly as
// spec.md §4.6 describes. The first error from any of them is returned.
func (d *BuildDriver) Build(ctx context.Context, names []string) error {
	targets, err := d.resolve(names)
	if err != nil {
		return err
	}
	if err := d.eng.DetectCycle(); err != nil {
		return err
	}

	log := d.eng.Log()
	scope, sctx := NewScope(ctx)
	for _, n := range targets {
		node := n
		scope.Run(node.Name().String(), func(c context.Context) error { return BuildNode(c, node) })
	}
	err = scope.Wait()
	if err != nil {
		log.WithField("error", err.Error()).Error("build failed")
	}
	_ = sctx
	return err
}

func (d *BuildDriver) resolve(names []string) ([]Node, error) {
	if len(names) == 0 {
		roots := d.eng.Roots()
		seen := make(map[string]bool, len(roots)+len(d.defaults))
		out := make([]Node, 0, len(roots)+len(d.defaults))
		for _, n := range append(roots, d.defaults...) {
			key := n.Name().String()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, n)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name().String() < out[j].Name().String() })
		return out, nil
	}

	out := make([]Node, 0, len(names))
	known := d.eng.allNames()
	for _, name := range names {
		n, ok := d.eng.Lookup(NewPath(name))
		if !ok {
			if guess := closestMatch(name, known); guess != "" {
				return nil, newDrakeError(ErrUnknownTarget, "unknown target %q, did you mean %q?", name, guess)
			}
			return nil, newDrakeError(ErrUnknownTarget, "unknown target %q", name)
		}
		out = append(out, n)
	}
	return out, nil
}
