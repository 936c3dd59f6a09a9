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

	"golang.org/x/sync/semaphore"
)

// Semaphore is the counted semaphore of spec.md §4.2: Lock decrements
// (suspending on zero), Unlock increments (releasing at most one waiter).
//
// It wraps golang.org/x/sync/semaphore.Weighted with a weight of 1 per
// holder, the same module distr1-distri depends on (alongside its sibling
// errgroup, used throughout its build fan-out) for bounding concurrent
// work — the job semaphore of spec.md §5 caps the number of blocking
// external commands in flight the same way.
type Semaphore struct {
	w *semaphore.Weighted
}

// NewSemaphore returns a Semaphore with the given non-negative capacity.
func NewSemaphore(capacity int64) *Semaphore {
	return &Semaphore{w: semaphore.NewWeighted(capacity)}
}

// Lock acquires one unit of the semaphore, blocking until available or
// until ctx is done.
func (s *Semaphore) Lock(ctx context.Context) error {
	return s.w.Acquire(ctx, 1)
}

// Unlock releases one unit, waking at most one waiter.
func (s *Semaphore) Unlock() {
	s.w.Release(1)
}

// TryLock attempts to acquire one unit without blocking.
func (s *Semaphore) TryLock() bool {
	return s.w.TryAcquire(1)
}
