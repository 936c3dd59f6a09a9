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
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/renameio"
	"github.com/sirupsen/logrus"

	"github.com/infinitio/drake/internal/enginelog"
)

const (
	depFileNameStatic  = "drake"
	depFileNameBuilder = "drake.Builder"
	reservedStdout     = "stdout"
)

var reservedCacheNames = map[string]bool{
	depFileNameStatic:  true,
	depFileNameBuilder: true,
	reservedStdout:     true,
}

// Executor is the hook through which a builder executes its side effect
// and reports success (spec.md §1's "hook through which a builder executes
// its side effect"). Every concrete builder must implement it.
type Executor interface {
	Execute(ctx context.Context) (bool, error)
}

// DependencyDiscoverer is the optional "dependencies()" hook (spec.md §4.5
// step 7b): called only when a builder is about to execute, it may add
// further dynamic sources via Builder.AddDynamicSource.
type DependencyDiscoverer interface {
	Dependencies(ctx context.Context, b *Builder) error
}

// BuilderHasher is the optional stable-hash hook (spec.md §3, §4.4 item 5):
// when present, a change in the returned hash forces re-execution even
// when no source changed.
type BuilderHasher interface {
	BuilderHash() (string, bool)
}

// BuildResult pairs a static source with the error (if any) its own build
// produced, reported to a DependencyReporter (spec.md §4.7's TestSuite
// tallies "done-ok" vs "done-failed" per dependency).
type BuildResult struct {
	Node Node
	Err  error
}

// DependencyReporter is the optional hook invoked with a builder's static
// sources' outcomes right after they finish building (spec.md §4.5 step 4),
// used by TestSuite to tally pass/fail counts.
type DependencyReporter interface {
	ReportDependencies(results []BuildResult)
}

// Builder produces one or more target Nodes from a set of source Nodes
// (spec.md §3). It owns the staleness decision and the run protocol state
// machine of spec.md §4.4/§4.5.
type Builder struct {
	eng  *Engine
	name string

	mu       sync.Mutex
	sources  map[string]Node
	vsources map[string]Node
	targets  []Node

	cacheDir string
	primary  *DepFile

	dynMu           sync.Mutex
	dynamicDepFiles map[string]*DepFile
	dynamicSources  map[string]Node

	runMu      sync.Mutex
	executed   bool
	executeErr error
	signal     *Signal

	impl interface{}
}

// NewBuilder constructs a Builder producing targets from sources and
// vsources (built but not fingerprinted, spec.md §3), delegating to impl
// for the Execute hook and any of the optional hooks above. impl must
// implement Executor.
//
// Every target must not already have a producing builder (spec.md §3 "A
// target has exactly one builder... cannot be registered for a target that
// already has one").
func NewBuilder(eng *Engine, name string, sources, vsources, targets []Node, impl Executor) (*Builder, error) {
	if len(targets) == 0 {
		return nil, newDrakeError(ErrNodeRedefinition, "builder %q declares no targets", name)
	}
	b := &Builder{
		eng:             eng,
		name:            name,
		sources:         make(map[string]Node, len(sources)),
		vsources:        make(map[string]Node, len(vsources)),
		targets:         append([]Node(nil), targets...),
		dynamicDepFiles: make(map[string]*DepFile),
		dynamicSources:  make(map[string]Node),
		impl:            impl,
	}

	for _, t := range targets {
		if err := eng.AttachBuilder(t, b); err != nil {
			return nil, err
		}
	}
	dir, err := b.computeCacheDir()
	if err != nil {
		return nil, err
	}
	// The engine owns this directory for the builder's lifetime (spec.md §6
	// "Cache layout"); create it eagerly so DepFile/builder-hash writes
	// never race a missing parent directory.
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	b.cacheDir = dir
	b.primary = NewDepFile(filepath.Join(dir, depFileNameStatic))

	for _, s := range sources {
		b.sources[s.Name().String()] = s
		s.addConsumer(b)
	}
	for _, v := range vsources {
		b.vsources[v.Name().String()] = v
		v.addConsumer(b)
	}
	return b, nil
}

// Name returns a diagnostic label: an explicit name if one was given at
// construction, otherwise one derived from the builder's first target
// (grounded on original_source/__init__.py's builder `name` used purely
// for diagnostics, distinct from any target path).
func (b *Builder) Name() string {
	if b.name != "" {
		return b.name
	}
	if len(b.targets) > 0 {
		return b.targets[0].Name().String()
	}
	return "<builder>"
}

// Targets returns the builder's target nodes.
func (b *Builder) Targets() []Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Node(nil), b.targets...)
}

// CacheDir returns the builder's cachedir, per spec.md §6's layout:
// <prefix>/<target-dirname>/.drake/<target-basename>/.
func (b *Builder) CacheDir() string { return b.cacheDir }

// CapturedOutput returns the path a concrete builder's Execute hook should
// tee a subprocess's stdout/stderr to (spec.md §6 reserves the "stdout"
// name in the cachedir layout; internal/runner writes to this path).
func (b *Builder) CapturedOutput() string {
	return filepath.Join(b.cacheDir, reservedStdout)
}

func (b *Builder) computeCacheDir() (string, error) {
	target := b.firstTargetName()
	base, err := target.Basename()
	if err != nil {
		return "", err
	}
	dir, err := target.Dirname()
	if err != nil {
		dir = Path{}
	}
	var dirStr string
	if target.virtual {
		dirStr = filepath.Join(dir.components...)
	} else {
		dirStr = dir.osPath()
	}
	return filepath.Join(dirStr, ".drake", base), nil
}

func (b *Builder) firstTargetName() Path {
	return b.targets[0].Name()
}

// sortedSources returns the static sources ordered by absolute name
// (spec.md §3 "sources... ordered by absolute name").
func (b *Builder) sortedSources() []Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Node, 0, len(b.sources))
	for _, n := range b.sources {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name().String() < out[j].Name().String() })
	return out
}

func (b *Builder) sortedVirtualSources() []Node {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Node, 0, len(b.vsources))
	for _, n := range b.vsources {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name().String() < out[j].Name().String() })
	return out
}

// AddSource adds n as a further static source of this builder. Meant to be
// called before the builder's first Run — a Rule's whole purpose is
// accumulating sources this way after construction (spec.md §4.7 "Appending
// nodes to a Rule after construction adds static sources to its builder").
func (b *Builder) AddSource(n Node) {
	b.mu.Lock()
	b.sources[n.Name().String()] = n
	b.mu.Unlock()
	n.addConsumer(b)
}

// AddDynamicSource registers n as a dynamic source of this builder in the
// named category (spec.md §4.5 step 7b "dependencies() hook... may add
// further dynamic sources", and step 3's discovery-by-category loop).
func (b *Builder) AddDynamicSource(category string, n Node) {
	b.dynMu.Lock()
	defer b.dynMu.Unlock()
	b.dynamicSources[n.Name().String()] = n
	df := b.dynamicDepFiles[category]
	if df == nil {
		df = NewDepFile(filepath.Join(b.cacheDir, category))
		b.dynamicDepFiles[category] = df
	}
	df.Register(n)
	n.addConsumer(b)
}

func (b *Builder) dynamicSourcesSnapshot() []Node {
	b.dynMu.Lock()
	defer b.dynMu.Unlock()
	out := make([]Node, 0, len(b.dynamicSources))
	for _, n := range b.dynamicSources {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name().String() < out[j].Name().String() })
	return out
}

func (b *Builder) hasDynamicOrStaticSource(name string) bool {
	b.mu.Lock()
	_, inStatic := b.sources[name]
	b.mu.Unlock()
	if inStatic {
		return true
	}
	b.dynMu.Lock()
	_, inDyn := b.dynamicSources[name]
	b.dynMu.Unlock()
	return inDyn
}

func (b *Builder) resetDynamic() (old map[string]*DepFile) {
	b.dynMu.Lock()
	defer b.dynMu.Unlock()
	old = b.dynamicDepFiles
	b.dynamicDepFiles = make(map[string]*DepFile)
	b.dynamicSources = make(map[string]Node)
	return old
}

func (b *Builder) dynamicDepFilesSnapshot() map[string]*DepFile {
	b.dynMu.Lock()
	defer b.dynMu.Unlock()
	out := make(map[string]*DepFile, len(b.dynamicDepFiles))
	for k, v := range b.dynamicDepFiles {
		out[k] = v
	}
	return out
}

// Run executes the builder's state machine (spec.md §4.5). At most one
// caller actually runs the builder; concurrent callers wait on its
// completion Signal and receive the same result, including a re-raised
// failure — this is the "mutual exclusion by signal" that makes concurrent
// requests to the same builder coalesce (spec.md §5 "Shared resources").
func (b *Builder) Run(ctx context.Context) error {
	b.runMu.Lock()
	if b.executed {
		err := b.executeErr
		b.runMu.Unlock()
		return err
	}
	if b.signal != nil {
		sig := b.signal
		b.runMu.Unlock()
		if err := sig.Wait(ctx); err != nil {
			return err
		}
		b.runMu.Lock()
		err := b.executeErr
		b.runMu.Unlock()
		return err
	}
	b.signal = NewSignal()
	b.runMu.Unlock()

	err := b.run(ctx)

	b.runMu.Lock()
	b.executed = true
	b.executeErr = err
	sig := b.signal
	b.runMu.Unlock()
	sig.Fire()
	return err
}

func (b *Builder) run(ctx context.Context) error {
	log := b.eng.Log().WithField("builder", b.Name())
	defer enginelog.Record(log, "builder.run")()

	// Step 2: register static sources in the primary DepFile.
	for _, s := range b.sortedSources() {
		b.primary.Register(s)
	}

	// Step 3: load dynamic DepFiles and rehydrate/build their nodes.
	if err := b.loadDynamicDepFiles(ctx, log); err != nil {
		return err
	}

	execute := false

	// Step 4: build static (and virtual) sources concurrently.
	staticSources := b.sortedSources()
	all := append(append([]Node(nil), staticSources...), b.sortedVirtualSources()...)
	scope, sctx := NewScope(ctx)
	coros := make([]*Coroutine, len(all))
	for i, s := range all {
		n := s
		coros[i] = scope.Run(n.Name().String(), func(c context.Context) error { return BuildNode(c, n) })
	}
	waitErr := scope.Wait()
	if rep, ok := b.impl.(DependencyReporter); ok {
		results := make([]BuildResult, len(staticSources))
		for i, n := range staticSources {
			results[i] = BuildResult{Node: n, Err: coros[i].Wait(ctx)}
		}
		rep.ReportDependencies(results)
	}
	if waitErr != nil {
		return waitErr
	}

	// Step 5: build dynamic sources concurrently; failure here forces a
	// rebuild instead of aborting (spec.md §4.4 item 6).
	dscope, dctx := NewScope(sctx)
	for _, s := range b.dynamicSourcesSnapshot() {
		n := s
		dscope.Run(n.Name().String(), func(c context.Context) error { return BuildNode(c, n) })
	}
	if err := dscope.Wait(); err != nil {
		enginelog.Explain(log, b.Name(), "a dynamic dependency could not be built: "+err.Error())
		execute = true
	}
	_ = dctx

	// Step 6: staleness disjunction.
	if !execute {
		stale, reason, err := b.isStale(log)
		if err != nil {
			return err
		}
		if stale {
			enginelog.Explain(log, b.Name(), reason)
			execute = true
		}
	}

	if !execute {
		return nil
	}
	return b.execute(ctx, log)
}

func (b *Builder) loadDynamicDepFiles(ctx context.Context, log *logrus.Entry) error {
	entries, err := os.ReadDir(b.cacheDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || reservedCacheNames[e.Name()] {
			continue
		}
		category := e.Name()
		df := NewDepFile(filepath.Join(b.cacheDir, category))
		// Read without the registry filter: paths not registered yet are
		// kept so the category's deps handler below can materialize them.
		if err := df.Read(nil); err != nil {
			return err
		}
		b.dynMu.Lock()
		b.dynamicDepFiles[category] = df
		b.dynMu.Unlock()

		handler, ok := b.eng.depsHandler(category)
		for _, name := range df.Names() {
			if b.hasDynamicOrStaticSource(name) {
				continue
			}
			if n, known := b.eng.Lookup(NewPath(name)); known {
				b.AddDynamicSource(category, n)
				continue
			}
			if !ok {
				return newDrakeError(ErrUnknownType, "no deps handler registered for category %q (path %q)", category, name)
			}
			typTag, _ := df.StoredType(name)
			ctor, known := b.eng.typeConstructor(typTag)
			if !known {
				return newDrakeError(ErrUnknownType, "unknown type tag %q for dynamic dependency %q", typTag, name)
			}
			n, err := handler(b, NewPath(name), ctor, "")
			if err != nil {
				return err
			}
			b.AddDynamicSource(category, n)
		}
	}
	return nil
}

// isStale evaluates the staleness disjunction of spec.md §4.4, items 1-5
// (item 6, unbuildable dynamic source, is evaluated by the caller before
// this is called).
func (b *Builder) isStale(log *logrus.Entry) (bool, string, error) {
	for _, t := range b.targets {
		if t.Missing() {
			return true, "target is missing: " + t.Name().String(), nil
		}
	}

	if err := b.primary.Read(b.eng); err != nil {
		return false, "", err
	}
	for _, s := range b.sortedSources() {
		if !b.primary.Has(s.Name().String()) {
			return true, "new static source: " + s.Name().String(), nil
		}
	}
	if stale, reason, err := depFileStale(b.primary, b.eng); err != nil {
		return false, "", err
	} else if stale {
		return true, reason, nil
	}

	for _, df := range b.dynamicDepFilesSnapshot() {
		if stale, reason, err := depFileStale(df, b.eng); err != nil {
			return false, "", err
		} else if stale {
			return true, reason, nil
		}
	}

	if hasher, ok := b.impl.(BuilderHasher); ok {
		h, has := hasher.BuilderHash()
		stored, err := os.ReadFile(b.builderHashPath())
		switch {
		case has && err == nil && string(stored) != h:
			return true, "builder hash changed", nil
		case has && os.IsNotExist(err):
			return true, "builder hash unknown", nil
		case !has && err == nil:
			os.Remove(b.builderHashPath())
			return true, "builder no longer declares a hash", nil
		}
	}
	return false, "", nil
}

func depFileStale(d *DepFile, eng *Engine) (bool, string, error) {
	for _, name := range d.Names() {
		n, ok := eng.Lookup(NewPath(name))
		if !ok {
			continue
		}
		h, err := n.Hash()
		if err != nil {
			return false, "", err
		}
		stored, _ := d.StoredHash(name)
		if h != stored {
			return true, "source changed: " + name, nil
		}
	}
	return false, "", nil
}

func (b *Builder) builderHashPath() string {
	return filepath.Join(b.cacheDir, depFileNameBuilder)
}

// execute performs spec.md §4.5 step 7: recompute dynamic dependencies,
// call Execute, verify outputs, and persist.
func (b *Builder) execute(ctx context.Context, log *logrus.Entry) error {
	oldCategories := b.resetDynamic()

	if disc, ok := b.impl.(DependencyDiscoverer); ok {
		if err := disc.Dependencies(ctx, b); err != nil {
			return err
		}
	}
	for _, n := range b.dynamicSourcesSnapshot() {
		if err := BuildNode(ctx, n); err != nil {
			return err
		}
	}

	if err := b.eng.acquireSlot(ctx); err != nil {
		return err
	}
	executor := b.impl.(Executor)
	ok, err := executor.Execute(ctx)
	b.eng.releaseSlot()
	if err != nil {
		return err
	}
	if !ok {
		failed := newDrakeError(ErrBuilderFailed, "builder %s failed", b.Name())
		return failed
	}

	for _, t := range b.targets {
		if t.Missing() {
			return newDrakeError(ErrMissingOutput, "%s wasn't created by %s", t.Name(), b.Name())
		}
		if fn, ok := t.(*FileNode); ok {
			fn.InvalidateHash()
		}
	}

	if err := b.primary.Write(); err != nil {
		return err
	}
	for _, df := range b.dynamicDepFilesSnapshot() {
		if err := df.Write(); err != nil {
			return err
		}
	}
	if hasher, ok := b.impl.(BuilderHasher); ok {
		if h, has := hasher.BuilderHash(); has {
			if err := renameio.WriteFile(b.builderHashPath(), []byte(h), 0o644); err != nil {
				return err
			}
		} else {
			os.Remove(b.builderHashPath())
		}
	} else {
		os.Remove(b.builderHashPath())
	}

	// Prune dynamic DepFile categories no longer active (spec.md §9's
	// "stale dynamic DepFile categories" open question, resolved here by
	// explicit removal rather than leaving it, per DESIGN.md).
	active := b.dynamicDepFilesSnapshot()
	for cat := range oldCategories {
		if _, stillActive := active[cat]; !stillActive {
			os.Remove(filepath.Join(b.cacheDir, cat))
		}
	}
	return nil
}

func (b *Builder) clean() error {
	for _, s := range append(b.sortedSources(), b.sortedVirtualSources()...) {
		if err := s.Clean(); err != nil {
			return err
		}
	}
	return nil
}
