// Package journal keeps an on-disk audit trail of mutating lifecycle
// operations. Entries are append-only in bbolt; an in-memory btree holds
// the latest entry per resource key.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

// Bucket names in bbolt
var (
	bucketEntries = []byte("entries")
	bucketMeta    = []byte("meta")

	keyRevision = []byte("current_revision")
)

// ErrClosed is returned by operations on a closed Journal.
var ErrClosed = errors.New("journal closed")

// Status is how a recorded operation ended.
type Status string

const (
	// StatusConfirmed means describe observed the desired state.
	StatusConfirmed Status = "confirmed"
	// StatusUnconfirmed means the wait timed out or was cancelled.
	StatusUnconfirmed Status = "unconfirmed"
	// StatusError means the operation returned an error.
	StatusError Status = "error"
	// StatusDenied means a deletion guard refused the operation.
	StatusDenied Status = "denied"
)

// Entry is one recorded operation.
type Entry struct {
	ID       string        `json:"id"`
	Rev      int64         `json:"rev"`
	Op       string        `json:"op"`
	Key      string        `json:"key"`
	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	Source   string        `json:"source,omitempty"`
	At       time.Time     `json:"at"`
}

// keyState is the index item for one resource key.
type keyState struct {
	key    string
	latest Entry
	count  int
}

// Journal is a bbolt-backed operation log.
type Journal struct {
	mu sync.RWMutex

	// latest entry per key, ordered by key
	index *btree.BTreeG[*keyState]

	db         *bbolt.DB
	currentRev int64
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketEntries, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init journal buckets: %w", err)
	}

	j := &Journal{
		index: btree.NewG[*keyState](32, func(a, b *keyState) bool {
			return a.key < b.key
		}),
		db: db,
	}

	if err := j.rebuildIndex(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return j, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

// Record appends e and returns it with ID, Rev and At filled in.
func (j *Journal) Record(e Entry) (Entry, error) {
	if e.Key == "" {
		return Entry{}, errors.New("journal entry needs a key")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.db == nil {
		return Entry{}, ErrClosed
	}

	rev := j.currentRev + 1
	e.Rev = rev
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	value, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("encode entry: %w", err)
	}

	err = j.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketEntries).Put(revKey(rev), value); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyRevision, revKey(rev))
	})
	if err != nil {
		return Entry{}, fmt.Errorf("write entry: %w", err)
	}

	j.currentRev = rev
	j.updateIndex(e)
	return e, nil
}

// Latest returns the most recent entry for key.
func (j *Journal) Latest(key string) (Entry, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	state, found := j.index.Get(&keyState{key: key})
	if !found {
		return Entry{}, false
	}
	return state.latest, true
}

// Count returns how many entries were recorded for key.
func (j *Journal) Count(key string) int {
	j.mu.RLock()
	defer j.mu.RUnlock()

	state, found := j.index.Get(&keyState{key: key})
	if !found {
		return 0
	}
	return state.count
}

// LatestByPrefix returns the latest entry of every key starting with
// prefix, in key order.
func (j *Journal) LatestByPrefix(prefix string) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []Entry
	j.index.AscendGreaterOrEqual(&keyState{key: prefix}, func(state *keyState) bool {
		if !strings.HasPrefix(state.key, prefix) {
			return false
		}
		out = append(out, state.latest)
		return true
	})
	return out
}

// History returns up to limit entries, newest first. A limit of zero or
// less returns everything.
func (j *Journal) History(limit int) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.db == nil {
		return nil, ErrClosed
	}

	var out []Entry
	err := j.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketEntries).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode entry %d: %w", binary.BigEndian.Uint64(k), err)
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CurrentRevision returns the revision of the last recorded entry.
func (j *Journal) CurrentRevision() int64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.currentRev
}

// Compact removes all but the newest keep entries. The index is left
// untouched so Latest keeps answering for compacted keys.
func (j *Journal) Compact(keep int64) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.db == nil {
		return 0, ErrClosed
	}

	cutoff := j.currentRev - keep
	if cutoff <= 0 {
		return 0, nil
	}

	removed := 0
	err := j.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketEntries)
		c := bucket.Cursor()

		var toDelete [][]byte
		for k, _ := c.First(); k != nil && int64(binary.BigEndian.Uint64(k)) <= cutoff; k, _ = c.Next() {
			toDelete = append(toDelete, append([]byte{}, k...))
		}

		for _, key := range toDelete {
			if err := bucket.Delete(key); err != nil {
				return err
			}
		}
		removed = len(toDelete)
		return nil
	})
	return removed, err
}

func (j *Journal) updateIndex(e Entry) {
	state, found := j.index.Get(&keyState{key: e.Key})
	if !found {
		state = &keyState{key: e.Key}
	}
	state.latest = e
	state.count++
	j.index.ReplaceOrInsert(state)
}

func (j *Journal) rebuildIndex() error {
	return j.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket(bucketMeta).Get(keyRevision); data != nil {
			j.currentRev = int64(binary.BigEndian.Uint64(data))
		}

		return tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("rebuild index: decode entry %d: %w", binary.BigEndian.Uint64(k), err)
			}
			j.updateIndex(e)
			return nil
		})
	})
}

// revKey encodes a revision so that bbolt's byte ordering is revision order.
func revKey(rev int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(rev))
	return b
}
