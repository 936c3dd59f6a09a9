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
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Kind identifies one of the error kinds spec.md §7 names.
type Kind int

const (
	// ErrPath covers malformed Path operations (empty basename/dirname,
	// non-matching suffix, joining an absolute path onto another).
	ErrPath Kind = iota
	// ErrNodeRedefinition: a node's absolute name collides with an
	// existing node of a different type.
	ErrNodeRedefinition
	// ErrNoBuilder: a file node with no builder is missing on disk.
	ErrNoBuilder
	// ErrBuilderFailed: a builder's Execute returned false.
	ErrBuilderFailed
	// ErrMissingOutput: Execute returned true but a declared non-virtual
	// target is still absent.
	ErrMissingOutput
	// ErrDependencyCycle: the DAG contains a cycle.
	ErrDependencyCycle
	// ErrDepFileParse: a DepFile record failed to parse; treated as "no
	// record" by the caller, which forces a rebuild.
	ErrDepFileParse
	// ErrUnknownType: a type tag read from a DepFile has no registered
	// constructor.
	ErrUnknownType
	// ErrConfig: a configuration override referenced an unknown key or
	// could not be merged.
	ErrConfig
	// ErrUnknownTarget: a requested build target name isn't registered.
	ErrUnknownTarget
)

func (k Kind) String() string {
	switch k {
	case ErrPath:
		return "path"
	case ErrNodeRedefinition:
		return "node redefinition"
	case ErrNoBuilder:
		return "no builder"
	case ErrBuilderFailed:
		return "builder failed"
	case ErrMissingOutput:
		return "missing output"
	case ErrDependencyCycle:
		return "dependency cycle"
	case ErrDepFileParse:
		return "depfile parse error"
	case ErrUnknownType:
		return "unknown type tag"
	case ErrConfig:
		return "config"
	case ErrUnknownTarget:
		return "unknown target"
	default:
		return "unknown"
	}
}

// Error is the engine's error taxonomy: every engine-raised error carries a
// Kind (spec.md §7) so callers (the driver, tests) can discriminate without
// string matching, plus a go-errors stack trace captured at the raise site
// so a BuilderFailed re-raised verbatim to a dozen waiters (spec.md §4.5
// step 1) never loses where it actually came from.
type Error struct {
	Kind  Kind
	inner *goerrors.Error
}

func newDrakeError(k Kind, format string, args ...interface{}) *Error {
	return &Error{
		Kind:  k,
		inner: goerrors.Wrap(fmt.Errorf(format, args...), 1),
	}
}

func wrapDrakeError(k Kind, err error) *Error {
	if err == nil {
		return nil
	}
	if de, ok := err.(*Error); ok {
		return de
	}
	return &Error{Kind: k, inner: goerrors.Wrap(err, 1)}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.inner.Error())
}

// Unwrap exposes the underlying error for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.inner.Err }

// Stack returns the captured stack trace, useful for diagnostics.
func (e *Error) Stack() []byte { return e.inner.Stack() }

// Is reports whether err is a *Error of the given kind.
func Is(err error, k Kind) bool {
	de, ok := err.(*Error)
	return ok && de.Kind == k
}
