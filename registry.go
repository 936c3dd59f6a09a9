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
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/infinitio/drake/internal/enginelog"
)

// TypeConstructor rehydrates a Node given its absolute name, used to
// deserialize a dynamic dependency read back from a DepFile by name+type
// (spec.md §3).
type TypeConstructor func(name Path) Node

// DepsHandler materializes a dynamic dependency's Node given the builder
// that discovered it, the dependency's path, its type tag resolved via the
// type registry, and the raw data column stored alongside it (spec.md §4.5
// step 3, §9 "Deps handlers"). Handlers should be pure and deterministic
// given (path, type tag).
type DepsHandler func(b *Builder, path Path, typ TypeConstructor, data string) (Node, error)

// Engine is the process-wide(-per-run) state the source implementation
// keeps as module globals: the node registry, the type/extension/deps
// handler tables, and the job scheduler. Spec.md §9 explicitly calls for
// encapsulating that global state into a value that threads through the
// API rather than package-level globals, so that tests can construct a
// fresh Engine per scenario instead of resetting globals — mirrored here
// from the teacher's own State struct (ninja's nobuild state.go), which
// bundles exactly this kind of per-run data (paths, edges, bindings) but
// as a true global; we thread it explicitly instead.
type Engine struct {
	mu sync.Mutex

	byName  map[string]Node
	types   map[string]TypeConstructor
	byExt   map[string]func(p Path) Node
	depsHdl map[string]DepsHandler

	jobs int
	sem  *Semaphore

	log *logrus.Entry
}

// NewEngine returns an Engine configured to run up to jobs builders'
// executions concurrently (spec.md §5). jobs <= 0 is treated as 1.
func NewEngine(jobs int) *Engine {
	if jobs <= 0 {
		jobs = 1
	}
	return &Engine{
		byName:  make(map[string]Node),
		types:   make(map[string]TypeConstructor),
		byExt:   make(map[string]func(p Path) Node),
		depsHdl: make(map[string]DepsHandler),
		jobs:    jobs,
		sem:     NewSemaphore(int64(jobs)),
		log:     enginelog.New(false),
	}
}

// acquireSlot blocks until one of the engine's jobs slots is free, bounding
// the number of builders executing concurrently to the jobs passed to
// NewEngine (spec.md §5 "N-threaded cooperative... the job semaphore").
func (e *Engine) acquireSlot(ctx context.Context) error {
	return e.sem.Lock(ctx)
}

// releaseSlot frees a jobs slot acquired by acquireSlot.
func (e *Engine) releaseSlot() {
	e.sem.Unlock()
}

// Log returns the engine's structured logger.
func (e *Engine) Log() *logrus.Entry { return e.log }

// SetLog overrides the engine's logger, used by tests and by cmd/drake to
// wire debug-mode verbosity.
func (e *Engine) SetLog(l *logrus.Entry) { e.log = l }

// RegisterType associates a type tag with a constructor used to rehydrate
// a dynamic dependency node from a DepFile record (spec.md §3, §6). Per
// spec.md §9's open question, a type tag containing a space is rejected: a
// DepFile record is parsed by splitting on single spaces and the type tag
// is always the last field, so a tag containing a space could be
// misattributed to the node name.
func (e *Engine) RegisterType(tag string, ctor TypeConstructor) error {
	if strings.Contains(tag, " ") {
		return newDrakeError(ErrUnknownType, "type tag %q must not contain a space", tag)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types[tag] = ctor
	return nil
}

// typeConstructor looks up a previously registered type constructor.
func (e *Engine) typeConstructor(tag string) (TypeConstructor, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ctor, ok := e.types[tag]
	return ctor, ok
}

// RegisterExtension maps a file extension (without the leading dot) to a
// node constructor, so that a collaborator's node(path) helper can
// automatically produce the right FileNode subclass. This table is
// configured by collaborators (e.g. a C++ toolchain description) and is
// not itself part of the engine's invariant set (spec.md §4.3).
func (e *Engine) RegisterExtension(ext string, ctor func(p Path) Node) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.byExt[ext] = ctor
}

// RegisterDepsHandler associates a dynamic-dependency category name (e.g.
// "cxx-headers") with the handler that rehydrates nodes in that category
// after a restart (spec.md §4.5 step 3, §9).
func (e *Engine) RegisterDepsHandler(category string, h DepsHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.depsHdl[category] = h
}

func (e *Engine) depsHandler(category string) (DepsHandler, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.depsHdl[category]
	return h, ok
}

// Register inserts n into the registry keyed by its absolute name. If a
// node with that name already exists, Register returns the existing node
// instead when its concrete type tag matches n's; a type mismatch is a
// fatal ErrNodeRedefinition (spec.md §3, §4.3).
func (e *Engine) Register(n Node) (Node, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := n.Name().String()
	if existing, ok := e.byName[key]; ok {
		if existing.TypeTag() != n.TypeTag() {
			return nil, newDrakeError(ErrNodeRedefinition,
				"node %q already registered as %s, cannot redefine as %s",
				key, existing.TypeTag(), n.TypeTag())
		}
		return existing, nil
	}
	e.byName[key] = n
	return n, nil
}

// Lookup returns the node registered under name, if any.
func (e *Engine) Lookup(name Path) (Node, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n, ok := e.byName[name.String()]
	return n, ok
}

// AttachBuilder assigns b as n's producing builder. It is an error to
// attach a builder to a node that already has one (spec.md §3 "A node has
// at most one builder").
func (e *Engine) AttachBuilder(n Node, b *Builder) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n.Builder() != nil {
		return newDrakeError(ErrNodeRedefinition,
			"node %q already has a builder", n.Name())
	}
	n.setBuilder(b)
	return nil
}

// allNames returns every registered node's absolute name, used by
// BuildDriver to produce a "did you mean" suggestion for a mistyped target.
func (e *Engine) allNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.byName))
	for k := range e.byName {
		out = append(out, k)
	}
	return out
}

// Roots returns every registered node that no builder consumes: the
// natural default build set when the driver is asked to build an empty
// request list (spec.md §4.6).
func (e *Engine) Roots() []Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Node
	for _, n := range e.byName {
		if len(n.Consumers()) == 0 {
			out = append(out, n)
		}
	}
	return out
}

// DetectCycle walks the dependency DAG starting from every registered
// builder's sources, three-color marking nodes, and returns
// ErrDependencyCycle with the offending chain the first time it revisits a
// node still "in progress" on the current path. Spec.md §9 calls this out
// explicitly ("implementations should detect cycles by coloring nodes...
// instead of deadlocking"): without it, two builders waiting on each
// other's completion Signal block forever rather than failing cleanly.
func (e *Engine) DetectCycle() error {
	e.mu.Lock()
	nodes := make([]Node, 0, len(e.byName))
	for _, n := range e.byName {
		nodes = append(nodes, n)
	}
	e.mu.Unlock()

	const (
		white = 0 // unvisited
		gray  = 1 // on the current path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(nodes))
	var path []string

	var visit func(n Node) error
	visit = func(n Node) error {
		key := n.Name().String()
		switch color[key] {
		case black:
			return nil
		case gray:
			cycle := append(append([]string(nil), path...), key)
			return newDrakeError(ErrDependencyCycle, "dependency cycle: %s", strings.Join(cycle, " -> "))
		}
		color[key] = gray
		path = append(path, key)
		if b := n.Builder(); b != nil {
			// Walk both static and virtual sources: a cycle can just as well
			// close through a vsource-only chain as through static ones.
			for _, src := range append(b.sortedSources(), b.sortedVirtualSources()...) {
				if err := visit(src); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		color[key] = black
		return nil
	}

	for _, n := range nodes {
		if color[n.Name().String()] == white {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}
