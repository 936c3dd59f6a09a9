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
	"bufio"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/renameio"
)

// depRecord is one parsed DepFile line: the hash and type tag last stored
// for a given node's absolute name.
type depRecord struct {
	hash string
	typ  string
}

// DepFile is a flat, append-overwritten text file persisting the hashes a
// builder last saw for one category of its sources (spec.md §3, §6).
//
// Each line is `<sha1-hex-40> <absolute-node-name> <type-tag>\n`. Node
// names may themselves contain spaces, so the reader treats the first
// space-separated field as the hash, the last as the type tag, and
// rejoins everything between as the name — brittle if a type tag ever
// contained a space, which is why Engine.RegisterType rejects that at
// registration time (spec.md §9).
//
// This mirrors ninja's own DepfileParser (depfile_parser.go) only in
// spirit: that parser tokenizes gcc -M output with backslash escaping,
// which is a different format entirely, so only the "tolerant, line
// oriented, document the escaping rules" idiom was carried over, not the
// scanner itself (see DESIGN.md).
type DepFile struct {
	path string

	mu         sync.Mutex
	loaded     map[string]depRecord // absolute name -> record, from the last Read
	registered map[string]Node      // absolute name -> node, to be hashed on Write
}

// NewDepFile returns a DepFile backed by the file at path. The file need
// not exist yet.
func NewDepFile(path string) *DepFile {
	return &DepFile{
		path:       path,
		loaded:     make(map[string]depRecord),
		registered: make(map[string]Node),
	}
}

// Path returns the file's on-disk path.
func (d *DepFile) Path() string { return d.path }

// Register records that node should be hashed and persisted the next time
// Write is called (spec.md §4.5 step 2: "Register static sources in
// primary DepFile").
func (d *DepFile) Register(n Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registered[n.Name().String()] = n
}

// Has reports whether name was present in the last Read.
func (d *DepFile) Has(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.loaded[name]
	return ok
}

// StoredHash returns the hash last recorded for name, and whether it was
// present.
func (d *DepFile) StoredHash(name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.loaded[name]
	return r.hash, ok
}

// StoredType returns the type tag last recorded for name, and whether it
// was present.
func (d *DepFile) StoredType(name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.loaded[name]
	return r.typ, ok
}

// Names returns every absolute name currently loaded.
func (d *DepFile) Names() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.loaded))
	for k := range d.loaded {
		out = append(out, k)
	}
	return out
}

// Read loads the persisted records, dropping any whose path is no longer
// present in eng's registry (spec.md §6) and any line that fails to parse
// (treated as "no record", which forces a rebuild of that path per spec.md
// §7 "ParseError on DepFile"). A missing file is not an error: it is
// treated as an empty DepFile.
func (d *DepFile) Read(eng *Engine) error {
	f, err := os.Open(d.path)
	if os.IsNotExist(err) {
		d.mu.Lock()
		d.loaded = make(map[string]depRecord)
		d.mu.Unlock()
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	loaded := make(map[string]depRecord)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		rec, name, ok := parseDepFileLine(line)
		if !ok {
			continue // ParseError: treat as no record for this line.
		}
		if eng != nil {
			if _, known := eng.Lookup(NewPath(name)); !known {
				continue // unknown paths are silently dropped on read.
			}
		}
		loaded[name] = rec
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	d.loaded = loaded
	d.mu.Unlock()
	return nil
}

// parseDepFileLine parses one record: the hash is the first 40 characters,
// the type tag the last space-separated field, and the name is everything
// in between, rejoined with spaces.
func parseDepFileLine(line string) (depRecord, string, bool) {
	fields := strings.Split(line, " ")
	if len(fields) < 3 {
		return depRecord{}, "", false
	}
	hash := fields[0]
	if len(hash) != 40 {
		return depRecord{}, "", false
	}
	typ := fields[len(fields)-1]
	name := strings.Join(fields[1:len(fields)-1], " ")
	if name == "" {
		return depRecord{}, "", false
	}
	return depRecord{hash: hash, typ: typ}, name, true
}

// Write rewrites the file wholesale with the current hash of every
// registered node, replacing whatever was loaded (spec.md §6 "rewritten
// atomically on success"). Atomicity is via github.com/google/renameio
// (grounded on distr1-distri's use of the same package for atomic artifact
// writes): the file is written to a temp path in the same directory and
// renamed over the target, so a crash mid-write never leaves a truncated
// DepFile.
func (d *DepFile) Write() error {
	d.mu.Lock()
	nodes := make([]Node, 0, len(d.registered))
	for _, n := range d.registered {
		nodes = append(nodes, n)
	}
	d.mu.Unlock()

	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Name().String() < nodes[j].Name().String()
	})

	var sb strings.Builder
	for _, n := range nodes {
		h, err := n.Hash()
		if err != nil {
			return err
		}
		sb.WriteString(h)
		sb.WriteString(" ")
		sb.WriteString(n.Name().String())
		sb.WriteString(" ")
		sb.WriteString(n.TypeTag())
		sb.WriteString("\n")
	}
	return renameio.WriteFile(d.path, []byte(sb.String()), 0o644)
}

// Remove deletes the DepFile from disk, if present.
func (d *DepFile) Remove() error {
	err := os.Remove(d.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
