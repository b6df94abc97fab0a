// Package history records filed captures in a local LevelDB store so past
// runs can be listed without hitting the task service.
package history

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB key scheme — "|" as separator; the timestamp component is the
// zero-padded inverse of UnixNano so a forward prefix scan yields newest-first.
//
//	h|<inverse_nano>|<id> → Record JSON
const prefixRecord = "h|"

// Record is one filed capture.
type Record struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	Title       string    `json:"title"`
	Destination string    `json:"destination"`
	Labels      []string  `json:"labels,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the LevelDB-backed run history.
type Store struct {
	db *leveldb.DB
}

// Open opens (or creates) the history database at dbPath. dbPath is a
// directory; LevelDB is single-writer, so concurrent captures against the
// same data directory will fail here.
func Open(dbPath string) (*Store, error) {
	db, err := leveldb.OpenFile(dbPath, nil)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores r, assigning ID and CreatedAt when missing, and returns the
// stored record.
func (s *Store) Append(r Record) (Record, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(r)
	if err != nil {
		return Record{}, fmt.Errorf("history: marshal record: %w", err)
	}
	if err := s.db.Put([]byte(recordKey(r)), data, nil); err != nil {
		return Record{}, fmt.Errorf("history: persist record: %w", err)
	}
	return r, nil
}

// Recent returns up to n records, newest first. n <= 0 means all.
func (s *Store) Recent(n int) ([]Record, error) {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefixRecord)), nil)
	defer iter.Release()

	var out []Record
	for iter.Next() {
		var r Record
		if err := json.Unmarshal(iter.Value(), &r); err != nil {
			continue
		}
		out = append(out, r)
		if n > 0 && len(out) == n {
			break
		}
	}
	return out, iter.Error()
}

func recordKey(r Record) string {
	inverse := uint64(math.MaxInt64) - uint64(r.CreatedAt.UnixNano())
	return fmt.Sprintf("%s%020d|%s", prefixRecord, inverse, r.ID)
}
