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
	"sync"
)

// Node is a named artifact in the dependency DAG: either a file on disk or
// a virtual marker (spec.md §3). Implementations embed baseNode for the
// registry bookkeeping (name, builder, consumers) and supply Hash, Missing,
// and TypeTag.
type Node interface {
	// Name is the node's absolute name, unique process-wide (spec.md §3).
	Name() Path
	// TypeTag is the module-qualified class name used to deserialize this
	// node by name+type when reloading a DepFile (spec.md §3, §6).
	TypeTag() string
	// Builder is the at-most-one builder that produces this node, or nil.
	Builder() *Builder
	setBuilder(b *Builder)
	// Consumers lists the builders that take this node as an input. Used
	// only for root-set computation and graph visualization, never for
	// traversal during a build (spec.md §3 "Ownership").
	Consumers() []*Builder
	addConsumer(b *Builder)
	// Hash is deterministic for a given content state. For a FileNode it
	// is memoized until the owning builder re-executes.
	Hash() (string, error)
	// Missing indicates the node must be built even if nothing else is
	// stale. Always false for virtual nodes.
	Missing() bool
	// Polish is called once after a successful build, a hook point for
	// node subclasses (e.g. normalizing a just-written file's line
	// endings); the base implementation is a no-op.
	Polish()
	// Clean recursively cleans this node's producing builder's sources.
	Clean() error
}

// baseNode implements the registry bookkeeping shared by every Node
// subclass: absolute name, at-most-one builder, and the consumer list.
type baseNode struct {
	mu        sync.Mutex
	name      Path
	builder   *Builder
	consumers []*Builder
}

func (n *baseNode) Name() Path { return n.name }

func (n *baseNode) Builder() *Builder {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.builder
}

func (n *baseNode) setBuilder(b *Builder) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.builder = b
}

func (n *baseNode) Consumers() []*Builder {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Builder, len(n.consumers))
	copy(out, n.consumers)
	return out
}

func (n *baseNode) addConsumer(b *Builder) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.consumers = append(n.consumers, b)
}

func (n *baseNode) Polish() {}

// FileNode is a physical file (spec.md §3). Its hash is the SHA-1 of the
// file's bytes, memoized until the owning builder re-executes.
type FileNode struct {
	baseNode

	hashMu    sync.Mutex
	hashVal   string
	hashValid bool
}

// NewFileNode constructs a FileNode named by path. Callers should route
// construction through Engine.Register to get NodeRedefinition semantics.
func NewFileNode(path Path) *FileNode {
	return &FileNode{baseNode: baseNode{name: path}}
}

// TypeTag implements Node.
func (*FileNode) TypeTag() string { return "drake.FileNode" }

// Hash returns the SHA-1 of the file's current bytes, memoized until
// InvalidateHash is called (by the owning builder, on successful execute).
func (f *FileNode) Hash() (string, error) {
	f.hashMu.Lock()
	defer f.hashMu.Unlock()
	if f.hashValid {
		return f.hashVal, nil
	}
	h, err := hashFile(f.osPath())
	if err != nil {
		return "", err
	}
	f.hashVal = h
	f.hashValid = true
	return h, nil
}

// InvalidateHash clears the memoized hash so the next Hash() call re-reads
// the file. Called by Builder after a successful execute (spec.md §4.5
// step 7f).
func (f *FileNode) InvalidateHash() {
	f.hashMu.Lock()
	defer f.hashMu.Unlock()
	f.hashValid = false
}

// Missing reports whether the file is absent on disk.
func (f *FileNode) Missing() bool {
	_, err := os.Stat(f.osPath())
	return os.IsNotExist(err)
}

// Clean removes the file and recursively cleans the builder that produces
// it, if any.
func (f *FileNode) Clean() error {
	if b := f.Builder(); b != nil {
		if err := b.clean(); err != nil {
			return err
		}
	}
	return f.name.Remove(false)
}

func (f *FileNode) osPath() string {
	// Path's exported API intentionally doesn't expose the raw OS string
	// (callers should prefer Path operations); FileNode is the one place
	// that needs to touch the filesystem directly.
	p := f.name
	return p.osPath()
}

// OSPath returns the real filesystem path backing this node, for builders
// outside this package (e.g. drakelicense) that must read or write the
// file directly rather than through a Path method.
func (f *FileNode) OSPath() string { return f.osPath() }

// VirtualNode is a Node with no filesystem presence: Missing is always
// false (spec.md §3).
type VirtualNode struct {
	baseNode
}

// NewVirtualNode constructs a bare virtual node named by path. Most callers
// want Dictionary or Rule instead.
func NewVirtualNode(path Path) *VirtualNode {
	p := path
	p.virtual = true
	p.absolute = true
	return &VirtualNode{baseNode: baseNode{name: p}}
}

// TypeTag implements Node.
func (*VirtualNode) TypeTag() string { return "drake.VirtualNode" }

// Hash for a bare virtual node is the empty string: it carries no content
// of its own, only through whatever builder produces it.
func (*VirtualNode) Hash() (string, error) { return "", nil }

// Missing is always false for virtual nodes.
func (*VirtualNode) Missing() bool { return false }

// Clean recursively cleans the producing builder's sources, if any.
func (v *VirtualNode) Clean() error {
	if b := v.Builder(); b != nil {
		return b.clean()
	}
	return nil
}

// Dictionary is a VirtualNode whose hash is the SHA-1 over its sorted
// key/value pairs (spec.md §3), so that changing any entry makes every
// builder depending on it stale. Grounded on original_source/__init__.py's
// Dictionary node (the Python original this spec distills), which is used
// by template-expansion builders keyed on an in-memory substitution map.
type Dictionary struct {
	VirtualNode

	mu      sync.Mutex
	entries map[string]string
}

// NewDictionary constructs a Dictionary node named by path with the given
// initial entries (copied).
func NewDictionary(path Path, entries map[string]string) *Dictionary {
	cp := make(map[string]string, len(entries))
	for k, v := range entries {
		cp[k] = v
	}
	return &Dictionary{
		VirtualNode: *NewVirtualNode(path),
		entries:     cp,
	}
}

// TypeTag implements Node.
func (*Dictionary) TypeTag() string { return "drake.Dictionary" }

// Hash overrides VirtualNode.Hash with the SHA-1 over sorted key/value
// pairs.
func (d *Dictionary) Hash() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return hashPairs(d.entries), nil
}

// Get returns the value for key and whether it was present.
func (d *Dictionary) Get(key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.entries[key]
	return v, ok
}

// Set updates key to value, changing the Dictionary's hash.
func (d *Dictionary) Set(key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[key] = value
}

// Snapshot returns a copy of the current entries.
func (d *Dictionary) Snapshot() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make(map[string]string, len(d.entries))
	for k, v := range d.entries {
		cp[k] = v
	}
	return cp
}

// BuildNode is the unit user callers reach (spec.md §4.6 "node.build()"): a
// file node with no builder that is missing raises NoBuilder; a node with
// a builder invokes the builder's run protocol (serialized by the
// builder's own signal); then Polish is called.
func BuildNode(ctx context.Context, n Node) error {
	b := n.Builder()
	if b == nil {
		if n.Missing() {
			return newDrakeError(ErrNoBuilder, "%s has no builder and is missing", n.Name())
		}
		return nil
	}
	if err := b.Run(ctx); err != nil {
		return err
	}
	n.Polish()
	return nil
}
