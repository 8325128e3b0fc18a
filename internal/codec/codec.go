// Copyright 2025 exprdb Authors
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

// Package codec converts float32 score sequences to and from the fixed-width
// little-endian byte blobs stored in score_blocks. The encoding is positional
// and uncompressed: element i occupies bytes [4i, 4i+4). Round trips are
// bit-exact, including NaN payloads and infinities.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"exprdb/internal/common"
)

// Encode packs values into 4*len(values) bytes, little-endian IEEE-754
// single precision, element order preserved.
func Encode(values []float32) []byte {
	buf := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// Decode unpacks a blob produced by Encode. The blob length must be a
// multiple of 4; anything else is a corrupt row and fails with
// common.ErrMalformedBlob.
func Decode(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", common.ErrMalformedBlob, len(blob))
	}
	values := make([]float32, len(blob)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return values, nil
}
