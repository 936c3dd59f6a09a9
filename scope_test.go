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
	"errors"
	"sync/atomic"
	"testing"
)

func TestScopeWaitAggregatesSuccesses(t *testing.T) {
	scope, ctx := NewScope(context.Background())
	var ran int32
	for i := 0; i < 5; i++ {
		scope.Run("ok", func(context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		})
	}
	if err := scope.Wait(); err != nil {
		t.Fatalf("Wait() = %v, want nil", err)
	}
	if ran != 5 {
		t.Errorf("ran = %d, want 5", ran)
	}
	_ = ctx
}

func TestScopeWaitReturnsFirstError(t *testing.T) {
	scope, _ := NewScope(context.Background())
	wantErr := errors.New("boom")
	scope.Run("fails", func(context.Context) error { return wantErr })
	if err := scope.Wait(); !errors.Is(err, wantErr) {
		t.Fatalf("Wait() = %v, want %v", err, wantErr)
	}
}

func TestScopeCancelsSiblingsOnFailure(t *testing.T) {
	scope, ctx := NewScope(context.Background())
	var sawCancel int32
	scope.Run("fails", func(context.Context) error { return errors.New("boom") })
	scope.Run("observes", func(c context.Context) error {
		<-c.Done()
		atomic.StoreInt32(&sawCancel, 1)
		return c.Err()
	})
	scope.Wait()
	if atomic.LoadInt32(&sawCancel) != 1 {
		t.Error("sibling coroutine never observed context cancellation")
	}
	_ = ctx
}

func TestCoroutineWaitReraisesError(t *testing.T) {
	scope, _ := NewScope(context.Background())
	wantErr := errors.New("boom")
	c := scope.Run("fails", func(context.Context) error { return wantErr })
	scope.Wait()
	if err := c.Wait(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("Coroutine.Wait() = %v, want %v", err, wantErr)
	}
	if c.Name() != "fails" {
		t.Errorf("Name() = %q, want fails", c.Name())
	}
}
