package boltdb

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.etcd.io/bbolt"
)

// BoltDB bucket names. Each engine collection gets a record bucket keyed by
// id plus, where queries need it, an index bucket whose keys sort so that
// "pending oldest-first" and "unsynced" queries are cursor prefix scans.
var (
	bucketQueue        = []byte("queue")
	bucketQueueIdx     = []byte("queue_idx") // status \x00 created_at \x00 id
	bucketEvidence     = []byte("evidence")
	bucketEvidenceIdx  = []byte("evidence_idx")   // synced \x00 captured_at \x00 id
	bucketEvidenceTask = []byte("evidence_owner") // task_id \x00 id
	bucketAudit        = []byte("audit")
	bucketAuditIdx     = []byte("audit_idx") // synced \x00 occurred_at \x00 id
	bucketConflicts    = []byte("conflicts")
	bucketConflictsIdx = []byte("conflicts_idx") // resolved \x00 detected_at \x00 id
	bucketSyncState    = []byte("sync_state")
	bucketAuth         = []byte("auth")
)

var allBuckets = [][]byte{
	bucketQueue, bucketQueueIdx,
	bucketEvidence, bucketEvidenceIdx, bucketEvidenceTask,
	bucketAudit, bucketAuditIdx,
	bucketConflicts, bucketConflictsIdx,
	bucketSyncState, bucketAuth,
}

// Storage is the BoltDB-backed persistent store for the offline engine.
// Construct once with New, then Open before use. Open is idempotent and
// concurrent callers coalesce onto a single initialization.
type Storage struct {
	db       atomic.Pointer[bbolt.DB]
	path     string
	openOnce sync.Once
	openErr  error
}

// New creates a storage handle for the given database file path. No disk
// access happens until Open.
func New(dbPath string) *Storage {
	return &Storage{path: dbPath}
}

// Open lazily opens the database file and initializes the collection
// buckets. The first caller performs the setup; concurrent and subsequent
// callers get the same result.
func (s *Storage) Open(ctx context.Context) error {
	s.openOnce.Do(func() {
		db, err := bbolt.Open(s.path, 0600, nil)
		if err != nil {
			s.openErr = fmt.Errorf("failed to open boltdb: %w", err)
			return
		}

		if err := initBuckets(db); err != nil {
			_ = db.Close()
			s.openErr = fmt.Errorf("failed to initialize buckets: %w", err)
			return
		}

		s.db.Store(db)
	})
	return s.openErr
}

// Close closes the database connection. Safe to call before Open.
func (s *Storage) Close() error {
	db := s.db.Swap(nil)
	if db == nil {
		return nil
	}
	return db.Close()
}

// initBuckets creates the collection and index buckets if missing.
func initBuckets(db *bbolt.DB) error {
	return db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// handle returns the open database or nil if the storage is closed or was
// never opened.
func (s *Storage) handle() *bbolt.DB {
	return s.db.Load()
}

const idxSep = "\x00"

// idxKey builds an index bucket key from ordered parts. Timestamps are
// zero-padded decimals so lexicographic order matches chronological order.
func idxKey(parts ...string) []byte {
	key := ""
	for i, p := range parts {
		if i > 0 {
			key += idxSep
		}
		key += p
	}
	return []byte(key)
}

// idxTime encodes a unix-nano timestamp for index keys.
func idxTime(unixNano int64) string {
	return fmt.Sprintf("%020d", unixNano)
}

// boolFlag encodes a boolean index dimension.
func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// purgePrefix deletes every record referenced by index entries under prefix
// from both the index and the record bucket, returning how many records were
// removed. Keys are collected before deleting: mutating a bucket invalidates
// cursors walking it.
func purgePrefix(idx, records *bbolt.Bucket, prefix []byte) (int, error) {
	var ids [][]byte
	var idxKeys [][]byte

	c := idx.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		idxKeys = append(idxKeys, append([]byte(nil), k...))
		ids = append(ids, append([]byte(nil), v...))
	}

	for i := range ids {
		if err := records.Delete(ids[i]); err != nil {
			return 0, fmt.Errorf("failed to delete record: %w", err)
		}
		if err := idx.Delete(idxKeys[i]); err != nil {
			return 0, fmt.Errorf("failed to delete index entry: %w", err)
		}
	}
	return len(ids), nil
}

// scanPrefix walks all index entries under prefix, calling fn with the id
// stored as the index value.
func scanPrefix(bucket *bbolt.Bucket, prefix []byte, fn func(id []byte) error) error {
	c := bucket.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}
