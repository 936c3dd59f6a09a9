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
	"fmt"
	"sync"
)

// Rule is a virtual node whose sole builder takes an aggregate list of
// nodes as static sources and trivially succeeds (spec.md §4.7), grounded
// on original_source/__init__.py's Rule: `drake //install` builds every
// node appended to the "install" rule. Appending further nodes after
// construction (Add) adds static sources to the underlying builder, the
// Go equivalent of the original's `rule << node` operator.
type Rule struct {
	VirtualNode
	builder *Builder
}

// NewRule constructs and registers a Rule named name, bouncing to nodes.
func NewRule(eng *Engine, name string, nodes []Node) (*Rule, error) {
	r := &Rule{VirtualNode: *NewVirtualNode(NewPath(name))}
	if err := initRule(eng, r, r, nodes, trivialExecutor{}); err != nil {
		return nil, err
	}
	return r, nil
}

// initRule performs the construction shared by Rule and TestSuite:
// register self (so Engine.Register sees self's real TypeTag), attach a
// builder over nodes producing self, and wire ruleStruct.builder. self must
// embed *ruleStruct.
func initRule(eng *Engine, ruleStruct *Rule, self Node, nodes []Node, impl Executor) error {
	registered, err := eng.Register(self)
	if err != nil {
		return err
	}
	builderImpl := pickBuilderImpl(registered, impl)
	b, err := NewBuilder(eng, "", nodes, nil, []Node{registered}, builderImpl)
	if err != nil {
		return err
	}
	ruleStruct.builder = b
	return nil
}

// pickBuilderImpl lets a registered node that implements Executor itself
// (e.g. TestSuite) act as its own builder delegate; otherwise falls back to
// the default impl (e.g. trivialExecutor for a bare Rule).
func pickBuilderImpl(registered Node, fallback Executor) Executor {
	if exec, ok := registered.(Executor); ok {
		return exec
	}
	return fallback
}

// TypeTag implements Node.
func (*Rule) TypeTag() string { return "drake.Rule" }

// Hash is always empty for a Rule: it carries no content of its own
// (spec.md §4.7, mirrors the original's Rule.hash() returning '').
func (*Rule) Hash() (string, error) { return "", nil }

// Execute trivially succeeds (spec.md §4.7 "has a trivial execute that
// returns success").
func (*Rule) Execute(context.Context) (bool, error) { return true, nil }

// Add appends nodes as further static sources of the rule's builder
// (the Go equivalent of the original's `rule << node`).
func (r *Rule) Add(nodes ...Node) {
	for _, n := range nodes {
		r.builder.AddSource(n)
	}
}

// RuleBuilder returns the rule's underlying builder.
func (r *Rule) RuleBuilder() *Builder { return r.builder }

type trivialExecutor struct{}

func (trivialExecutor) Execute(context.Context) (bool, error) { return true, nil }

// TestSuite is a Rule that tallies its static sources' build outcomes
// (spec.md §4.7), grounded on original_source/__init__.py's TestSuite:
// report_dependencies counts a source as a pass when its own build raised no
// error and a failure otherwise, then logs a one-line summary.
type TestSuite struct {
	Rule

	mu       sync.Mutex
	success  int
	failures int
}

// NewTestSuite constructs and registers a TestSuite named name, whose
// sources are the individual tests to run.
func NewTestSuite(eng *Engine, name string, tests []Node) (*TestSuite, error) {
	ts := &TestSuite{}
	ts.VirtualNode = *NewVirtualNode(NewPath(name))
	if err := initRule(eng, &ts.Rule, ts, tests, trivialExecutor{}); err != nil {
		return nil, err
	}
	return ts, nil
}

// TypeTag implements Node.
func (*TestSuite) TypeTag() string { return "drake.TestSuite" }

// Execute trivially succeeds: a TestSuite's value is entirely in the
// dependency report below, not in any side effect of its own.
func (*TestSuite) Execute(context.Context) (bool, error) { return true, nil }

// ReportDependencies implements DependencyReporter: tallies a pass for
// every source whose own build raised no error, a failure otherwise, then
// logs a one-line summary (spec.md §4.7).
func (ts *TestSuite) ReportDependencies(results []BuildResult) {
	ts.mu.Lock()
	for _, r := range results {
		if r.Err == nil {
			ts.success++
		} else {
			ts.failures++
		}
	}
	success, total := ts.success, ts.success+ts.failures
	ts.mu.Unlock()

	if ts.builder != nil {
		ts.builder.eng.Log().Info(fmt.Sprintf("%s: %d / %d tests passed.", ts.Name(), success, total))
	}
}

// Success returns the number of sources whose build has been reported ok.
func (ts *TestSuite) Success() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.success
}

// Failures returns the number of sources whose build has been reported
// failed.
func (ts *TestSuite) Failures() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.failures
}

// Total returns Success()+Failures().
func (ts *TestSuite) Total() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.success + ts.failures
}
