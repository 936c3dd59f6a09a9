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
	"sync"
)

// Signal is a one-shot, edge-triggered event (spec.md §4.2): Fire wakes all
// current and future waiters, and once fired, Wait returns immediately.
//
// A closed channel is the idiomatic Go broadcast primitive, which is why
// this is a thin wrapper rather than a hand-rolled condition variable; the
// same pattern appears in the teacher's own concurrent manifest parser,
// which fans a single "subninja done" signal out over a channel read by
// every waiter.
type Signal struct {
	once sync.Once
	ch   chan struct{}
}

// NewSignal returns an unfired Signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Fire wakes all current and future waiters. Firing an already-fired Signal
// is a no-op.
func (s *Signal) Fire() {
	s.once.Do(func() { close(s.ch) })
}

// Fired reports whether Fire has already been called.
func (s *Signal) Fired() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Wait blocks until the signal fires or ctx is done.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
