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

	"golang.org/x/sync/errgroup"
)

// Coroutine is a handle on a unit of work spawned by a Scope (spec.md
// §4.2). Its states (ready/running/frozen/done) map directly onto a Go
// goroutine plus a completion Signal: "frozen" is simply blocked on a
// channel receive, which is exactly what the Go runtime already schedules
// around without any cooperative machinery of our own.
type Coroutine struct {
	name string
	done *Signal
	err  error
}

// Name returns the diagnostic name the coroutine was spawned with.
func (c *Coroutine) Name() string { return c.name }

// Wait blocks until the coroutine finishes and returns its error, if any.
// A coroutine that waits on a failed Coroutine re-raises its error, per
// spec.md §8 "Coroutine waits".
func (c *Coroutine) Wait(ctx context.Context) error {
	if err := c.done.Wait(ctx); err != nil {
		return err
	}
	return c.err
}

// Scope is the structured-concurrency handle of spec.md §4.2: Run spawns a
// child Coroutine; on Wait, the scope blocks for all its children, and if
// any child raised, the rest are cancelled (via the derived context) and
// the first error is returned.
//
// It wraps golang.org/x/sync/errgroup.Group, grounded on distr1-distri's
// pervasive errgroup-based fan-out/fan-in in internal/build/build.go and
// cmd/distri/build.go: errgroup.WithContext already implements exactly
// this "first error cancels the group's context" contract.
type Scope struct {
	g   *errgroup.Group
	ctx context.Context
}

// NewScope returns a Scope whose children observe ctx cancellation, either
// from the parent or from a sibling's failure.
func NewScope(ctx context.Context) (*Scope, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	return &Scope{g: g, ctx: gctx}, gctx
}

// Run spawns f as a child Coroutine named name. f must observe the Scope's
// context to be cancellable when a sibling fails.
func (s *Scope) Run(name string, f func(ctx context.Context) error) *Coroutine {
	c := &Coroutine{name: name, done: NewSignal()}
	s.g.Go(func() error {
		err := f(s.ctx)
		c.err = err
		c.done.Fire()
		return err
	})
	return c
}

// Wait blocks until every spawned child has finished, returning the first
// error raised by any of them (if any).
func (s *Scope) Wait() error {
	return s.g.Wait()
}
