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

// Package enginelog wires the engine's structured logging, grounded on
// jesseduffield-lazydocker's pkg/log (a logrus.Entry seeded with run
// metadata) rather than the teacher's own fmt.Fprintf-to-stderr Info/
// Warning/Error helpers.
package enginelog

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// New returns a logrus entry seeded with a per-run id, the same shape as
// lazydocker's NewLogger (which seeds debug/version/commit/buildDate
// fields): every build-run log line can be grepped by run_id across a busy
// terminal with many concurrent builders logging at once.
func New(debug bool) *logrus.Entry {
	log := logrus.New()
	log.Out = os.Stderr
	if debug {
		log.SetLevel(logrus.DebugLevel)
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	return log.WithField("run_id", uuid.NewString())
}

// Explain logs a staleness explanation at debug level, the structured
// equivalent of the teacher's debug_flags.go EXPLAIN() helper (gated by a
// g_explaining global); here the gate is simply the entry's configured
// level; callers always call Explain and logrus drops it when not in debug
// mode.
func Explain(log *logrus.Entry, target, reason string) {
	log.WithField("target", target).Debug("rebuild needed: " + reason)
}

// Record returns a function that, when deferred, logs the elapsed time of
// the calling scope under the given metric name — the structured
// replacement for the teacher's METRIC_RECORD/ScopedMetric pattern
// (metrics.go), rewired to emit a logrus field instead of accumulating into
// a process-global Metrics singleton dumped at exit.
func Record(log *logrus.Entry, metric string) func() {
	start := time.Now()
	return func() {
		log.WithField("metric", metric).WithField("elapsed_ms", time.Since(start).Milliseconds()).Debug("timing")
	}
}
