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

import "dario.cat/mergo"

// Overrides merges CLI-style `--name=value` overrides (spec.md §6) onto a
// root drakefile's configure(*args, **kwargs) defaults. Unknown override
// keys are rejected with a "did you mean" suggestion (edit_distance.go),
// adapted from the teacher's own closest-match diagnostics for unknown
// build targets.
type Overrides struct {
	values map[string]string
}

// NewOverrides returns an empty Overrides set.
func NewOverrides() *Overrides {
	return &Overrides{values: make(map[string]string)}
}

// Set records name=value, as produced by parsing a `--name=value` CLI
// argument.
func (o *Overrides) Set(name, value string) {
	o.values[name] = value
}

// Apply merges the recorded overrides onto defaults (a configure()'s
// keyword-argument map), using dario.cat/mergo's WithOverride so an
// override always wins over the default rather than being skipped as a
// duplicate key. Every override name must already be a key of defaults;
// an unknown name is rejected with a suggestion when one is close by edit
// distance.
func (o *Overrides) Apply(defaults map[string]string) (map[string]string, error) {
	known := make([]string, 0, len(defaults))
	for k := range defaults {
		known = append(known, k)
	}
	overrideMap := make(map[string]string, len(o.values))
	for k, v := range o.values {
		if _, ok := defaults[k]; !ok {
			msg := "unknown configuration key %q"
			if guess := closestMatch(k, known); guess != "" {
				return nil, newDrakeError(ErrConfig, msg+", did you mean %q?", k, guess)
			}
			return nil, newDrakeError(ErrConfig, msg, k)
		}
		overrideMap[k] = v
	}

	merged := make(map[string]string, len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	if err := mergo.Merge(&merged, overrideMap, mergo.WithOverride); err != nil {
		return nil, wrapDrakeError(ErrConfig, err)
	}
	return merged, nil
}
