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

package enginelog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewSeedsRunID(t *testing.T) {
	log := New(false)
	if _, ok := log.Data["run_id"]; !ok {
		t.Error("New() entry is missing a run_id field")
	}
}

func TestExplainOnlyLogsAtDebugLevel(t *testing.T) {
	log := New(false)
	var buf bytes.Buffer
	log.Logger.Out = &buf
	log.Logger.SetLevel(logrus.InfoLevel)

	Explain(log, "//target", "source changed")
	if buf.Len() != 0 {
		t.Errorf("Explain() wrote output at info level: %q", buf.String())
	}

	log.Logger.SetLevel(logrus.DebugLevel)
	Explain(log, "//target", "source changed")
	if !strings.Contains(buf.String(), "source changed") {
		t.Errorf("Explain() at debug level = %q, want it to contain the reason", buf.String())
	}
}

func TestRecordLogsElapsedTime(t *testing.T) {
	log := New(false)
	var buf bytes.Buffer
	log.Logger.Out = &buf
	log.Logger.SetLevel(logrus.DebugLevel)

	done := Record(log, "test.metric")
	done()

	if !strings.Contains(buf.String(), "test.metric") {
		t.Errorf("Record() output = %q, want it to contain the metric name", buf.String())
	}
	if !strings.Contains(buf.String(), "elapsed_ms") {
		t.Errorf("Record() output = %q, want an elapsed_ms field", buf.String())
	}
}
