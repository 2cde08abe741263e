// Copyright 2025 Poiesic Systems
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

package embedcache

import (
	"math"

	"github.com/viterin/vek/vek32"
)

// NormalizeVector returns v scaled to unit length.
// A zero vector is returned as a zero vector of the same length.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return []float32{}
	}
	magnitude := float32(math.Sqrt(float64(vek32.Dot(v, v))))
	if magnitude == 0 {
		return make([]float32, len(v))
	}
	return vek32.DivNumber(v, magnitude)
}
