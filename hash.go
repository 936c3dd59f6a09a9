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
	"crypto/sha1"
	"encoding/hex"
	"io"
	"os"
	"sort"
)

// hashFile returns the hex-encoded SHA-1 of the file at path. SHA-1 is
// mandated (not merely chosen) by the on-disk DepFile format, which stores
// a 40-character hex digest per record (spec.md §6, §9).
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// hashBytes returns the hex-encoded SHA-1 of b, used by VirtualNode
// subclasses (e.g. Dictionary) whose hash is computed from in-memory state
// rather than a file on disk.
func hashBytes(b []byte) string {
	h := sha1.Sum(b)
	return hex.EncodeToString(h[:])
}

// hashPairs computes a stable hash over a set of key/value string pairs by
// sorting keys and hashing the concatenation, so that the hash of a
// Dictionary node does not depend on Go's randomized map iteration order.
func hashPairs(pairs map[string]string) string {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf []byte
	for _, k := range keys {
		buf = append(buf, k...)
		buf = append(buf, 0)
		buf = append(buf, pairs[k]...)
		buf = append(buf, 0)
	}
	return hashBytes(buf)
}
