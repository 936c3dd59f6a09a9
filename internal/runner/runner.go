// Copyright 2012 Google Inc. All Rights Reserved.
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

// Package runner executes a builder's shell command and tees its combined
// stdout/stderr to the builder's cachedir "stdout" file (spec.md §6, §12),
// adapted from the teacher's subprocess_posix.go: same `/bin/sh -c`
// invocation and combined-output capture, minus ninja's console/job-pool
// bookkeeping, which belongs to the engine's own Semaphore instead.
package runner

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"

	"github.com/google/renameio"
)

// Result is the outcome of a Run: whether the command exited zero, and its
// combined stdout+stderr.
type Result struct {
	Success bool
	Output  string
}

// Run executes command through /bin/sh -c, the same shell invocation the
// teacher's createCmd uses so that shell redirection and globbing in a
// drakefile-authored command string behave the way an author typing it at a
// terminal would expect. The combined output is both returned and, if
// capturePath is non-empty, persisted atomically so a later inspection
// (or a failed build's diagnostic) can read it back without rerunning.
func Run(ctx context.Context, command string, capturePath string) (Result, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	output := buf.String()

	if capturePath != "" {
		if werr := renameio.WriteFile(capturePath, []byte(output), 0o644); werr != nil {
			return Result{}, werr
		}
	}

	if err == nil {
		return Result{Success: true, Output: output}, nil
	}
	if _, ok := err.(*exec.ExitError); ok {
		return Result{Success: false, Output: output}, nil
	}
	return Result{}, err
}

// Tee copies r to both w and, if capturePath is non-empty, to a file at
// that path, used by builders that stream a long-running command's output
// live rather than buffering it in memory (e.g. a test runner builder
// wanting to show progress). Exposed separately from Run because Run always
// buffers (most drake commands are fast compiles, not multi-minute jobs).
func Tee(r io.Reader, w io.Writer, capturePath string) error {
	if capturePath == "" {
		_, err := io.Copy(w, r)
		return err
	}
	f, err := os.Create(capturePath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(io.MultiWriter(w, f), r)
	return err
}
