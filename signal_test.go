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
	"testing"
	"time"
)

func TestSignalFireWakesExistingWaiter(t *testing.T) {
	s := NewSignal()
	done := make(chan error, 1)
	go func() {
		done <- s.Wait(context.Background())
	}()
	time.Sleep(10 * time.Millisecond)
	s.Fire()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait() did not return after Fire()")
	}
}

func TestSignalWaitAfterFireReturnsImmediately(t *testing.T) {
	s := NewSignal()
	s.Fire()
	if err := s.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() after Fire() = %v, want nil", err)
	}
	if !s.Fired() {
		t.Error("Fired() = false after Fire()")
	}
}

func TestSignalFireIdempotent(t *testing.T) {
	s := NewSignal()
	s.Fire()
	s.Fire() // must not panic on double-close.
	if !s.Fired() {
		t.Error("Fired() = false after double Fire()")
	}
}

func TestSignalWaitRespectsContext(t *testing.T) {
	s := NewSignal()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := s.Wait(ctx); err == nil {
		t.Error("Wait() on an unfired signal with an expiring context: want error, got nil")
	}
}

func TestSignalBroadcastsToManyWaiters(t *testing.T) {
	s := NewSignal()
	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Wait(context.Background())
		}(i)
	}
	time.Sleep(10 * time.Millisecond)
	s.Fire()
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Errorf("waiter %d: Wait() = %v, want nil", i, err)
		}
	}
}
