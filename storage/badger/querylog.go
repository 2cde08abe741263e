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
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/refmatch/core"
	"github.com/poiesic/refmatch/storage"
)

// QueryLogRepository stores served searches keyed by sequence ID with a
// timestamp index for recency scans.
type QueryLogRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.QueryLog = (*QueryLogRepository)(nil)

// NewQueryLogRepository creates a new QueryLogRepository.
func NewQueryLogRepository(backend *Backend) (*QueryLogRepository, error) {
	idSeq, err := backend.GetSequence(queryLogIDSeq)
	if err != nil {
		return nil, err
	}

	return &QueryLogRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *QueryLogRepository) Close() error {
	return r.idSeq.Release()
}

// Append stores one or more entries in a single transaction.
func (r *QueryLogRepository) Append(ctx context.Context, entries ...*core.QueryEntry) ([]*core.QueryEntry, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, entry := range entries {
			if entry != nil && entry.Timestamp.IsZero() {
				entry.Timestamp = time.Now().UTC()
			}
			if err := core.ValidateQueryEntry(entry); err != nil {
				return err
			}

			if entry.Id == 0 {
				nextID, err := r.idSeq.Next()
				if err != nil {
					return err
				}
				// BadgerDB sequences can return 0 on first call, so we skip it
				if nextID == 0 {
					nextID, err = r.idSeq.Next()
					if err != nil {
						return err
					}
				}
				entry.Id = core.ID(nextID)
			}

			if err := tx.Set(makeQueryEntryKey(entry.Id), storage.MarshalQueryEntry(entry)); err != nil {
				return err
			}
			if err := tx.Set(makeQueryDateKey(entry.Timestamp, entry.Id), storage.MarshalID(entry.Id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return entries, err
}

// Recent retrieves up to limit entries ordered by timestamp descending.
func (r *QueryLogRepository) Recent(ctx context.Context, limit int) ([]*core.QueryEntry, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	if limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.QueryEntry
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(queryLogDatePrefix + ":")

		iter := tx.NewIterator(opts)
		defer iter.Close()

		// seek past the newest possible key so reverse iteration starts at the end
		startKey := makePartialQueryDateKey(time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC))
		startKey = append(startKey, 0xff)

		for iter.Seek(startKey); iter.Valid() && len(results) < limit; iter.Next() {
			var id core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			entry, err := readQueryEntry(tx, id)
			if err != nil {
				return err
			}
			if entry != nil {
				results = append(results, entry)
			}
		}
		return nil
	}, false)

	return results, err
}

// readQueryEntry returns nil without error when the entry is missing.
func readQueryEntry(tx *badger.Txn, id core.ID) (*core.QueryEntry, error) {
	item, err := tx.Get(makeQueryEntryKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entry *core.QueryEntry
	err = item.Value(func(val []byte) error {
		var err error
		entry, err = storage.UnmarshalQueryEntry(val)
		return err
	})
	return entry, err
}
