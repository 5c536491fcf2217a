package staging

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/segmentio/encoding/json"
	bolt "go.etcd.io/bbolt"
)

const (
	DefaultBoltFile = "staging.db"

	boltOpenTimeout = 5 * time.Second
)

func bucketEntries(kind Kind) []byte {
	return []byte(kind)
}

func bucketSeen(kind Kind) []byte {
	return []byte(string(kind) + ":seen")
}

// BoltLog stages JSON encoded entries in a bbolt file, one bucket per kind in append order plus a
// bucket of seen payloads for deduplication. The file is opened per operation so several processes
// can share one staging directory.
type BoltLog struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

func NewBoltLog(dir string, logger *slog.Logger) (*BoltLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BoltLog{path: filepath.Join(dir, DefaultBoltFile), logger: logger}, nil
}

func (l *BoltLog) open(readOnly bool) (*bolt.DB, error) {
	if readOnly {
		if _, err := os.Stat(l.path); errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
	}
	db, err := bolt.Open(l.path, 0o644, &bolt.Options{Timeout: boltOpenTimeout, ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("open staging file: %w", err)
	}
	return db, nil
}

func (l *BoltLog) update(fn func(tx *bolt.Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	db, err := l.open(false)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Update(fn)
}

func (l *BoltLog) view(fn func(tx *bolt.Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	db, err := l.open(true)
	if err != nil || db == nil {
		return err
	}
	defer db.Close()
	return db.View(fn)
}

func (l *BoltLog) Append(ctx context.Context, entry Entry) (bool, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return false, fmt.Errorf("encode %s entry: %w", entry.Kind(), err)
	}

	added := false
	err = l.update(func(tx *bolt.Tx) error {
		seen, err := tx.CreateBucketIfNotExists(bucketSeen(entry.Kind()))
		if err != nil {
			return err
		}
		if seen.Get(payload) != nil {
			return nil
		}
		entries, err := tx.CreateBucketIfNotExists(bucketEntries(entry.Kind()))
		if err != nil {
			return err
		}

		seq, err := entries.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		if err := entries.Put(key, payload); err != nil {
			return err
		}
		added = true
		return seen.Put(payload, key)
	})
	if err != nil {
		return false, fmt.Errorf("stage %s entry: %w", entry.Kind(), err)
	}
	return added, nil
}

// Replay applies entries kind by kind in append order and stops at the first apply error.
func (l *BoltLog) Replay(ctx context.Context, applier Applier) (int, error) {
	pending := map[Kind][][]byte{}
	err := l.view(func(tx *bolt.Tx) error {
		for _, kind := range Kinds {
			b := tx.Bucket(bucketEntries(kind))
			if b == nil {
				continue
			}
			err := b.ForEach(func(_, v []byte) error {
				pending[kind] = append(pending[kind], append([]byte(nil), v...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("read staging file: %w", err)
	}

	applied := 0
	for _, kind := range Kinds {
		for _, payload := range pending[kind] {
			entry, err := newEntry(kind)
			if err != nil {
				return applied, err
			}
			if err := json.Unmarshal(payload, entry); err != nil {
				l.logger.Warn("skip unreadable staging entry", "kind", kind, "err", err)
				continue
			}
			if err := entry.Apply(ctx, applier); err != nil {
				return applied, fmt.Errorf("apply %s entry: %w", kind, err)
			}
			applied++
		}
	}
	return applied, nil
}

func (l *BoltLog) Clear(ctx context.Context) error {
	return l.update(func(tx *bolt.Tx) error {
		for _, kind := range Kinds {
			for _, name := range [][]byte{bucketEntries(kind), bucketSeen(kind)} {
				if err := tx.DeleteBucket(name); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
					return err
				}
			}
		}
		return nil
	})
}

func (l *BoltLog) Empty(ctx context.Context) (bool, error) {
	empty := true
	err := l.view(func(tx *bolt.Tx) error {
		for _, kind := range Kinds {
			b := tx.Bucket(bucketEntries(kind))
			if b == nil {
				continue
			}
			if k, _ := b.Cursor().First(); k != nil {
				empty = false
				return nil
			}
		}
		return nil
	})
	return empty, err
}
