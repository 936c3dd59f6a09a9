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
	"testing"
)

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	h1, err := hashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(h1) != 40 {
		t.Fatalf("hashFile length = %d, want 40", len(h1))
	}
	h2, err := hashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("hashFile not stable across calls: %q != %q", h1, h2)
	}
	if err := os.WriteFile(path, []byte("world"), 0o644); err != nil {
		t.Fatal(err)
	}
	h3, err := hashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if h3 == h1 {
		t.Error("hashFile unchanged after content changed")
	}
}

func TestHashPairsStableAcrossOrder(t *testing.T) {
	a := map[string]string{"x": "1", "y": "2", "z": "3"}
	b := map[string]string{"z": "3", "x": "1", "y": "2"}
	if hashPairs(a) != hashPairs(b) {
		t.Error("hashPairs depends on map iteration order")
	}
	c := map[string]string{"x": "1", "y": "2", "z": "4"}
	if hashPairs(a) == hashPairs(c) {
		t.Error("hashPairs unchanged after a value changed")
	}
}
