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

package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/refmatch/core"
)

const (
	embeddingCachePrefix = "embcache"
	queryLogPrefix       = "qlog"
	queryLogDatePrefix   = "qlogd"
	queryLogIDSeq        = "qlogseq"
)

// makeCachePrefix returns the prefix shared by every key of one cache.
// Format: embcache:name:
func makeCachePrefix(name string) []byte {
	return []byte(embeddingCachePrefix + ":" + name + ":")
}

// makeManifestKey generates the key holding a cache's manifest.
// Format: embcache:name:m
func makeManifestKey(name string) []byte {
	return []byte(embeddingCachePrefix + ":" + name + ":m")
}

// makeEntryPrefix returns the prefix of a cache's entries.
// Format: embcache:name:e:
func makeEntryPrefix(name string) []byte {
	return []byte(embeddingCachePrefix + ":" + name + ":e:")
}

// makeEntryKey generates the key for one cached vector.
// Format: embcache:name:e:normalizedKey
func makeEntryKey(name, key string) []byte {
	prefix := makeEntryPrefix(name)
	buf := make([]byte, len(prefix)+len(key))
	offset := copy(buf, prefix)
	copy(buf[offset:], key)
	return buf
}

// makeQueryEntryKey generates a key for a query log entry by ID.
func makeQueryEntryKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", queryLogPrefix, id))
}

// makeQueryDateKey generates a composite key for the date index.
// Format: prefix:timestamp:id
func makeQueryDateKey(timestamp time.Time, id core.ID) []byte {
	prefix := []byte(queryLogDatePrefix + ":")
	buf := make([]byte, len(prefix)+16) // 8 bytes for timestamp + 8 bytes for ID
	offset := copy(buf, prefix)
	// BigEndian so lexicographic order is chronological
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialQueryDateKey generates a partial key for date range scans.
// Format: prefix:timestamp
func makePartialQueryDateKey(timestamp time.Time) []byte {
	prefix := []byte(queryLogDatePrefix + ":")
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	return buf
}
