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
	"path/filepath"
	"testing"
)

func TestNewPathRoundTrip(t *testing.T) {
	cases := []string{"/a/b/c", "//rules/all", "a/b", ".", "/"}
	for _, s := range cases {
		if got := NewPath(s).String(); got != s {
			t.Errorf("NewPath(%q).String() = %q, want %q", s, got, s)
		}
	}
}

func TestPathEmpty(t *testing.T) {
	if !NewPath(".").Empty() {
		t.Error(`NewPath(".").Empty() = false, want true`)
	}
	if !NewPath("/").Empty() {
		t.Error(`NewPath("/").Empty() = false, want true`)
	}
	if NewPath("/a").Empty() {
		t.Error(`NewPath("/a").Empty() = true, want false`)
	}
}

func TestPathVirtual(t *testing.T) {
	p := NewPath("//rules/all")
	if !p.IsVirtual() || !p.IsAbsolute() {
		t.Fatalf("NewPath(%q) virtual=%v absolute=%v, want true/true", p, p.IsVirtual(), p.IsAbsolute())
	}
}

func TestPathBasenameDirname(t *testing.T) {
	p := NewPath("/a/b/c.txt")
	base, err := p.Basename()
	if err != nil || base != "c.txt" {
		t.Fatalf("Basename() = %q, %v, want c.txt, nil", base, err)
	}
	dir, err := p.Dirname()
	if err != nil || dir.String() != "/a/b" {
		t.Fatalf("Dirname() = %q, %v, want /a/b, nil", dir, err)
	}
	if _, err := NewPath("/").Basename(); err == nil {
		t.Error("Basename() of empty path: want error, got nil")
	}
	if _, err := NewPath("/").Dirname(); err == nil {
		t.Error("Dirname() of empty path: want error, got nil")
	}
}

func TestPathJoin(t *testing.T) {
	p := NewPath("/a/b")
	joined, err := p.JoinString("c/d")
	if err != nil || joined.String() != "/a/b/c/d" {
		t.Fatalf("Join = %q, %v, want /a/b/c/d, nil", joined, err)
	}
	if _, err := p.Join(NewPath("/c")); err == nil {
		t.Error("Join of an absolute rhs: want error, got nil")
	}
}

func TestPathStripPrefix(t *testing.T) {
	p := NewPath("/a/b/c")
	got := p.StripPrefix(NewPath("/a/b"))
	if got.String() != "c" {
		t.Errorf("StripPrefix matching = %q, want c", got)
	}
	got = p.StripPrefix(NewPath("/x/y"))
	if got.String() != "../../a/b/c" {
		t.Errorf("StripPrefix non-matching = %q, want ../../a/b/c", got)
	}
}

func TestPathStripSuffix(t *testing.T) {
	p := NewPath("/a/b/c.txt")
	got, err := p.StripSuffix(NewPath("b/c.txt"))
	if err != nil || got.String() != "/a" {
		t.Fatalf("StripSuffix = %q, %v, want /a, nil", got, err)
	}
	if _, err := p.StripSuffix(NewPath("x/y/z/w")); err == nil {
		t.Error("StripSuffix of a non-suffix: want error, got nil")
	}
}

func TestPathExtensionAndWithExtension(t *testing.T) {
	p := NewPath("/a/b.cc")
	if ext := p.Extension(); ext != "cc" {
		t.Errorf("Extension() = %q, want cc", ext)
	}
	if got := p.WithExtension("o").String(); got != "/a/b.o" {
		t.Errorf("WithExtension(o) = %q, want /a/b.o", got)
	}
	if got := p.WithExtension("").String(); got != "/a/b" {
		t.Errorf("WithExtension(\"\") = %q, want /a/b", got)
	}
}

func TestPathTouchMkpathRemove(t *testing.T) {
	dir := t.TempDir()
	p := NewPath(filepath.Join(dir, "sub", "file.txt"))
	if err := p.Touch(); err != nil {
		t.Fatalf("Touch() = %v", err)
	}
	if err := p.Touch(); err != nil {
		t.Fatalf("second Touch() = %v", err)
	}
	if err := p.Remove(false); err != nil {
		t.Fatalf("Remove() = %v", err)
	}
	if err := p.Remove(false); err != nil {
		t.Fatalf("Remove() of already-absent path = %v, want nil", err)
	}
	if err := p.Remove(true); err == nil {
		t.Error("Remove(errIfAbsent=true) of absent path: want error, got nil")
	}
}

func TestPathTouchVirtualRejected(t *testing.T) {
	p := NewPath("//rules/all")
	if err := p.Touch(); err == nil {
		t.Error("Touch() of a virtual path: want error, got nil")
	}
	if err := p.Mkpath(); err == nil {
		t.Error("Mkpath() of a virtual path: want error, got nil")
	}
}
