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

// Package drakelicense aggregates every file under a directory into one
// sorted, delimited license file, adapted from
// original_source/src/drake/license_file.py's Packager builder: walk a
// license folder once at construction time (so the file list itself
// becomes a static source set, tracked like any other dependency), then
// concatenate them in a stable order on execute.
package drakelicense

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio"

	"github.com/infinitio/drake"
)

const separatorWidth = 78

// Packager is the Execute hook for the aggregation builder NewPackager
// returns.
type Packager struct {
	target  *drake.FileNode
	entries []entry
}

type entry struct {
	// relative is the path used for the "# Begin: ..." / "# End: ..."
	// banner, relative to licenseDir.
	relative string
	// abs is the real filesystem path read at execute time.
	abs string
}

// NewPackager walks licenseDir (a real directory, not a virtual path) and
// registers every non-dotfile under it as a FileNode source, producing out
// as the single aggregated target.
func NewPackager(eng *drake.Engine, licenseDir string, out drake.Path) (*drake.Builder, error) {
	licenseDir, err := filepath.Abs(licenseDir)
	if err != nil {
		return nil, err
	}
	var entries []entry
	err = filepath.Walk(licenseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(licenseDir, path)
		if err != nil {
			return err
		}
		entries = append(entries, entry{relative: rel, abs: path})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].relative) < strings.ToLower(entries[j].relative)
	})

	sources := make([]drake.Node, 0, len(entries))
	for _, e := range entries {
		n, err := eng.Register(drake.NewFileNode(drake.NewPath(e.abs)))
		if err != nil {
			return nil, err
		}
		sources = append(sources, n)
	}

	targetNode, err := eng.Register(drake.NewFileNode(out))
	if err != nil {
		return nil, err
	}
	target, ok := targetNode.(*drake.FileNode)
	if !ok {
		return nil, fmt.Errorf("drakelicense: %s already registered as %s", out, targetNode.TypeTag())
	}

	p := &Packager{target: target, entries: entries}
	return drake.NewBuilder(eng, "license-packager", sources, nil, []drake.Node{target}, p)
}

// Execute writes the aggregated license file: every entry's contents,
// banner-delimited by its path relative to the license folder, in sorted
// order (spec.md §12's supplemented feature, grounded on license_file.py's
// execute()).
func (p *Packager) Execute(ctx context.Context) (bool, error) {
	var sb strings.Builder
	bar := strings.Repeat("-", separatorWidth)
	for _, e := range p.entries {
		contents, err := os.ReadFile(e.abs)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(&sb, "# Begin: %s\n(*%s\n", e.relative, bar)
		sb.Write(contents)
		fmt.Fprintf(&sb, "\n%s*)\n# End: %s\n\n", bar, e.relative)
	}
	if err := renameio.WriteFile(p.target.OSPath(), []byte(sb.String()), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
