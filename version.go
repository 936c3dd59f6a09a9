// Copyright 2013 Google Inc. All Rights Reserved.
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

// Version identifies this build of the engine, reported by `drake
// --version`. Unlike the teacher's NinjaVersion, nothing here checks
// build-file compatibility: spec.md's drakefiles carry no
// ninja_required_version-style declaration, so checkNinjaVersion's
// major/minor comparison has no equivalent to guard (see DESIGN.md).
const Version = "0.1.0"
