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
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDepFileWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	eng := NewEngine(1)

	srcPath := filepath.Join(dir, "src.txt")
	if err := os.WriteFile(srcPath, []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}
	n, err := eng.Register(NewFileNode(NewPath(srcPath)))
	if err != nil {
		t.Fatal(err)
	}

	df := NewDepFile(filepath.Join(dir, "drake"))
	df.Register(n)
	if err := df.Write(); err != nil {
		t.Fatal(err)
	}

	df2 := NewDepFile(filepath.Join(dir, "drake"))
	if err := df2.Read(eng); err != nil {
		t.Fatal(err)
	}
	if !df2.Has(n.Name().String()) {
		t.Fatal("Read() did not load the written record")
	}
	wantHash, _ := n.Hash()
	gotHash, ok := df2.StoredHash(n.Name().String())
	if !ok || gotHash != wantHash {
		t.Errorf("StoredHash() = %q, %v, want %q, true", gotHash, ok, wantHash)
	}
	gotType, ok := df2.StoredType(n.Name().String())
	if !ok || gotType != n.TypeTag() {
		t.Errorf("StoredType() = %q, %v, want %q, true", gotType, ok, n.TypeTag())
	}
}

func TestDepFileReadMissingFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	df := NewDepFile(filepath.Join(dir, "nonexistent"))
	if err := df.Read(NewEngine(1)); err != nil {
		t.Fatalf("Read() of a missing file = %v, want nil", err)
	}
	if len(df.Names()) != 0 {
		t.Error("Names() of a freshly-read missing DepFile is not empty")
	}
}

func TestDepFileReadDropsUnknownPaths(t *testing.T) {
	dir := t.TempDir()
	eng := NewEngine(1)
	path := filepath.Join(dir, "drake")
	line := "0123456789012345678901234567890123456789 /some/unregistered/path drake.FileNode\n"
	if err := os.WriteFile(path, []byte(line), 0o644); err != nil {
		t.Fatal(err)
	}
	df := NewDepFile(path)
	if err := df.Read(eng); err != nil {
		t.Fatal(err)
	}
	if len(df.Names()) != 0 {
		t.Error("Read() kept a record for a path unknown to the Engine")
	}
}

func TestDepFileReadDropsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	eng := NewEngine(1)
	target, err := eng.Register(NewFileNode(NewPath(filepath.Join(dir, "known"))))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "drake")
	contents := "not-a-valid-line\n\nshort line\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	df := NewDepFile(path)
	if err := df.Read(eng); err != nil {
		t.Fatal(err)
	}
	if len(df.Names()) != 0 {
		t.Error("Read() accepted a malformed line as a record")
	}
	_ = target
}

func TestDepFileNamesMatchesRegisteredSet(t *testing.T) {
	dir := t.TempDir()
	eng := NewEngine(1)

	var want []string
	df := NewDepFile(filepath.Join(dir, "drake"))
	for _, base := range []string{"a.txt", "b.txt", "c.txt"} {
		p := filepath.Join(dir, base)
		if err := os.WriteFile(p, []byte(base), 0o644); err != nil {
			t.Fatal(err)
		}
		n, err := eng.Register(NewFileNode(NewPath(p)))
		if err != nil {
			t.Fatal(err)
		}
		df.Register(n)
		want = append(want, n.Name().String())
	}
	if err := df.Write(); err != nil {
		t.Fatal(err)
	}

	df2 := NewDepFile(filepath.Join(dir, "drake"))
	if err := df2.Read(eng); err != nil {
		t.Fatal(err)
	}
	got := df2.Names()
	sort.Strings(got)
	sort.Strings(want)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestDepFileRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "drake")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	df := NewDepFile(path)
	if err := df.Remove(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Remove() left the file in place")
	}
	if err := df.Remove(); err != nil {
		t.Errorf("Remove() of an already-absent file = %v, want nil", err)
	}
}
