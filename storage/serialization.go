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

package storage

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/refmatch/core"
)

// snapshotVersion prefixes every encoded snapshot.
const snapshotVersion = 1

// float32Size is the fixed encoded width of a raw float32.
const float32Size = 4

// encoder appends mus-encoded values to a growing buffer.
type encoder struct {
	buf []byte
}

func (e *encoder) grow(n int) []byte {
	l := len(e.buf)
	e.buf = slices.Grow(e.buf, n)[:l+n]
	return e.buf[l:]
}

func (e *encoder) int(v int)         { varint.Int.Marshal(v, e.grow(varint.Int.Size(v))) }
func (e *encoder) int64(v int64)     { varint.Int64.Marshal(v, e.grow(varint.Int64.Size(v))) }
func (e *encoder) uint64(v uint64)   { varint.Uint64.Marshal(v, e.grow(varint.Uint64.Size(v))) }
func (e *encoder) str(v string)      { ord.String.Marshal(v, e.grow(ord.String.Size(v))) }
func (e *encoder) bool(v bool)       { ord.Bool.Marshal(v, e.grow(ord.Bool.Size(v))) }
func (e *encoder) float64(v float64) { raw.Float64.Marshal(v, e.grow(raw.Float64.Size(v))) }

func (e *encoder) time(t time.Time) {
	if t.IsZero() {
		e.int64(0)
		return
	}
	e.int64(t.UnixMicro())
}

func (e *encoder) vector(vec []float32) {
	e.int(len(vec))
	bs := e.grow(len(vec) * float32Size)
	n := 0
	for _, f := range vec {
		n += raw.Float32.Marshal(f, bs[n:])
	}
}

func (e *encoder) stringMap(m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	e.int(len(keys))
	for _, k := range keys {
		e.str(k)
		e.str(m[k])
	}
}

// decoder reads mus-encoded values, remembering the first error.
type decoder struct {
	bs  []byte
	n   int
	err error
}

func (d *decoder) rest() []byte { return d.bs[d.n:] }

func (d *decoder) int() int {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(d.rest())
	d.n += n
	d.err = err
	return v
}

func (d *decoder) int64() int64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(d.rest())
	d.n += n
	d.err = err
	return v
}

func (d *decoder) uint64() uint64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(d.rest())
	d.n += n
	d.err = err
	return v
}

func (d *decoder) str() string {
	if d.err != nil {
		return ""
	}
	// ord.String computes prefix+length before bounds checking, which wraps
	// for corrupt lengths near MaxInt
	l, n, err := varint.PositiveInt.Unmarshal(d.rest())
	if err == nil && (l < 0 || l > len(d.rest())-n) {
		d.err = ErrTruncatedData
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.rest())
	d.n += n
	d.err = err
	return v
}

func (d *decoder) bool() bool {
	if d.err != nil {
		return false
	}
	v, n, err := ord.Bool.Unmarshal(d.rest())
	d.n += n
	d.err = err
	return v
}

func (d *decoder) float64() float64 {
	if d.err != nil {
		return 0
	}
	v, n, err := raw.Float64.Unmarshal(d.rest())
	d.n += n
	d.err = err
	return v
}

func (d *decoder) time() time.Time {
	us := d.int64()
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

// length reads a collection length and checks that at least minSize bytes
// per element remain.
func (d *decoder) length(minSize int) int {
	l := d.int()
	if d.err != nil {
		return 0
	}
	if l < 0 || l > len(d.rest())/minSize {
		d.err = ErrTruncatedData
		return 0
	}
	return l
}

func (d *decoder) vector() []float32 {
	l := d.length(float32Size)
	if d.err != nil {
		return nil
	}
	vec := make([]float32, l)
	for i := range vec {
		f, n, err := raw.Float32.Unmarshal(d.rest())
		d.n += n
		if err != nil {
			d.err = err
			return nil
		}
		vec[i] = f
	}
	return vec
}

func (d *decoder) stringMap() map[string]string {
	l := d.length(2)
	if d.err != nil || l == 0 {
		return nil
	}
	m := make(map[string]string, l)
	for range l {
		k := d.str()
		v := d.str()
		if d.err != nil {
			return nil
		}
		m[k] = v
	}
	return m
}

func (d *decoder) finish() error {
	if d.err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, d.err)
	}
	return nil
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	var e encoder
	e.uint64(uint64(id))
	return e.buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	d := decoder{bs: data}
	id := core.ID(d.uint64())
	return id, d.finish()
}

func (e *encoder) manifest(m core.Manifest) {
	e.str(m.Name)
	e.str(m.Model)
	e.int(m.Dimension)
	e.int(m.Count)
	e.uint64(m.Digest)
	e.time(m.UpdatedAt)
}

func (d *decoder) manifest() core.Manifest {
	return core.Manifest{
		Name:      d.str(),
		Model:     d.str(),
		Dimension: d.int(),
		Count:     d.int(),
		Digest:    d.uint64(),
		UpdatedAt: d.time(),
	}
}

// MarshalManifest serializes a cache manifest to bytes.
func MarshalManifest(m core.Manifest) []byte {
	var e encoder
	e.manifest(m)
	return e.buf
}

// UnmarshalManifest deserializes a cache manifest from bytes.
func UnmarshalManifest(data []byte) (core.Manifest, error) {
	d := decoder{bs: data}
	m := d.manifest()
	return m, d.finish()
}

// MarshalVector serializes an embedding vector to bytes.
func MarshalVector(vec []float32) []byte {
	e := encoder{buf: make([]byte, 0, varint.Int.Size(len(vec))+len(vec)*float32Size)}
	e.vector(vec)
	return e.buf
}

// UnmarshalVector deserializes an embedding vector from bytes.
func UnmarshalVector(data []byte) ([]float32, error) {
	d := decoder{bs: data}
	vec := d.vector()
	return vec, d.finish()
}

// MarshalSnapshot serializes a whole cache: a version, the manifest and
// every entry in sorted key order.
func MarshalSnapshot(cache *core.EmbeddingCache) []byte {
	var e encoder
	e.int(snapshotVersion)
	e.manifest(cache.Manifest())
	for _, k := range cache.Keys() {
		vec, _ := cache.Vector(k)
		e.str(k)
		e.vector(vec)
	}
	return e.buf
}

// UnmarshalSnapshot deserializes a cache written by MarshalSnapshot and
// verifies it against its manifest.
func UnmarshalSnapshot(data []byte) (*core.EmbeddingCache, error) {
	d := decoder{bs: data}
	if v := d.int(); d.err == nil && v != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", ErrCorrupt, v)
	}
	m := d.manifest()
	if err := d.finish(); err != nil {
		return nil, err
	}

	cache := core.NewEmbeddingCache(m.Name, m.Model, m.Dimension)
	cache.SetUpdatedAt(m.UpdatedAt)
	for i := 0; i < m.Count; i++ {
		key := d.str()
		vec := d.vector()
		if err := d.finish(); err != nil {
			return nil, err
		}
		if !cache.Put(key, vec) {
			return nil, fmt.Errorf("%w: entry %q has dimension %d, manifest says %d", ErrCorrupt, key, len(vec), m.Dimension)
		}
	}
	if err := VerifyManifest(cache, m); err != nil {
		return nil, err
	}
	return cache, nil
}

// VerifyManifest checks that cache holds exactly the entries m describes.
func VerifyManifest(cache *core.EmbeddingCache, m core.Manifest) error {
	got := cache.Manifest()
	if got.Count != m.Count {
		return fmt.Errorf("%w: %s: manifest lists %d entries, found %d", ErrCorrupt, m.Name, m.Count, got.Count)
	}
	if got.Digest != m.Digest {
		return fmt.Errorf("%w: %s: key set digest mismatch", ErrCorrupt, m.Name)
	}
	return nil
}

// MarshalQueryEntry serializes a QueryEntry to bytes.
func MarshalQueryEntry(entry *core.QueryEntry) []byte {
	var e encoder
	e.uint64(uint64(entry.Id))
	e.str(entry.RequestID)
	e.str(entry.Dataset)
	e.str(entry.Query)
	e.stringMap(entry.Filters)
	e.bool(entry.Subject)
	e.str(entry.Strategy)
	e.int(entry.Results)
	e.float64(entry.TopScore)
	e.int64(int64(entry.Duration))
	e.time(entry.Timestamp)
	return e.buf
}

// UnmarshalQueryEntry deserializes a QueryEntry from bytes.
func UnmarshalQueryEntry(data []byte) (*core.QueryEntry, error) {
	d := decoder{bs: data}
	entry := &core.QueryEntry{
		Id:        core.ID(d.uint64()),
		RequestID: d.str(),
		Dataset:   d.str(),
		Query:     d.str(),
		Filters:   d.stringMap(),
		Subject:   d.bool(),
		Strategy:  d.str(),
		Results:   d.int(),
		TopScore:  d.float64(),
		Duration:  time.Duration(d.int64()),
		Timestamp: d.time(),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return entry, nil
}
