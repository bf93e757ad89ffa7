// Copyright 2024 The Cockroach Authors
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

package dict

import "hash/maphash"

// seed is process-global, matching the source's dictSetHashFunctionSeed:
// every Dict of a given key type shares one seed so equal keys collide the
// same way across dictionaries, which callers of Scan rely on when moving
// entries between two Dicts of the same key type.
var seed = maphash.MakeSeed()

// HashBytes is the default hash function for []byte keys.
func HashBytes(b []byte) uint64 {
	return maphash.Bytes(seed, b)
}

// HashString is the default hash function for string keys.
func HashString(s string) uint64 {
	return maphash.String(seed, s)
}
