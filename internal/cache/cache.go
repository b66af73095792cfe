// Package cache implements the persistent task cache store named in
// spec §4.5: get(task_id)/put(task_id, fingerprint, outputs) over a
// bbolt-backed key-value store, with msgpack encoding and zstd
// compression above a size threshold, mirroring the teacher's
// BoltDB-backed cache manager.
package cache

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"stbl2/internal/ids"
)

const (
	bucketMeta  = "meta"
	bucketTasks = "tasks"

	keySchemaVersion = "schema_version"

	schemaVersion = 1

	// rawThreshold is the size below which a record is stored
	// uncompressed — zstd framing overhead isn't worth it for tiny
	// values, mirroring the teacher's RawThreshold.
	rawThreshold = 512
)

// Record is what get/put exchange: the fingerprint a task's output was
// produced under, and the output paths it wrote.
type Record struct {
	InputsFingerprint ids.InputFingerprint
	Outputs           []string
}

type encodedRecord struct {
	Fingerprint [ids.Size]byte `msgpack:"fp"`
	Outputs     []string       `msgpack:"outputs"`
}

// Store is the cache's bbolt-backed implementation. It is safe for
// concurrent use by multiple executor workers.
type Store struct {
	db   *bolt.DB
	path string
	mu   sync.Mutex

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Open opens (or creates) a cache store at path. A schema-version
// mismatch recreates the store from scratch rather than migrating it,
// logging a warning, per spec §4.5.
func Open(path string) (*Store, error) {
	db, err := openOrRecreate(path)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: init zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: init zstd decoder: %w", err)
	}
	return &Store{db: db, path: path, encoder: enc, decoder: dec}, nil
}

func openOrRecreate(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}

	mismatch := false
	err = db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte(bucketMeta))
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketTasks)); err != nil {
			return err
		}
		stored := meta.Get([]byte(keySchemaVersion))
		if stored == nil {
			v := make([]byte, 4)
			binary.BigEndian.PutUint32(v, schemaVersion)
			return meta.Put([]byte(keySchemaVersion), v)
		}
		if binary.BigEndian.Uint32(stored) != schemaVersion {
			mismatch = true
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: init schema: %w", err)
	}

	if !mismatch {
		return db, nil
	}

	slog.Warn("cache schema version mismatch, recreating store", "path", path)
	if err := db.Close(); err != nil {
		return nil, fmt.Errorf("cache: close stale store: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("cache: remove stale store: %w", err)
	}
	db, err = bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("cache: reopen %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte(bucketMeta))
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketTasks)); err != nil {
			return err
		}
		v := make([]byte, 4)
		binary.BigEndian.PutUint32(v, schemaVersion)
		return meta.Put([]byte(keySchemaVersion), v)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache: reinit schema: %w", err)
	}
	return db, nil
}

// Close closes the underlying store.
func (s *Store) Close() error {
	s.encoder.Close()
	s.decoder.Close()
	return s.db.Close()
}

// compressed-flag byte prefixed to every stored value.
const (
	flagRaw  byte = 0
	flagZstd byte = 1
)

func (s *Store) encode(rec encodedRecord) ([]byte, error) {
	raw, err := msgpack.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("cache: encode record: %w", err)
	}
	if len(raw) < rawThreshold {
		return append([]byte{flagRaw}, raw...), nil
	}
	compressed := s.encoder.EncodeAll(raw, make([]byte, 0, len(raw)))
	return append([]byte{flagZstd}, compressed...), nil
}

func (s *Store) decode(data []byte) (encodedRecord, error) {
	var rec encodedRecord
	if len(data) == 0 {
		return rec, fmt.Errorf("cache: empty record")
	}
	flag, body := data[0], data[1:]
	switch flag {
	case flagZstd:
		raw, err := s.decoder.DecodeAll(body, nil)
		if err != nil {
			return rec, fmt.Errorf("cache: decompress record: %w", err)
		}
		body = raw
	case flagRaw:
	default:
		return rec, fmt.Errorf("cache: unknown compression flag %d", flag)
	}
	if err := msgpack.Unmarshal(body, &rec); err != nil {
		return rec, fmt.Errorf("cache: decode record: %w", err)
	}
	return rec, nil
}

// Get implements the cache contract's get(task_id). A missing record
// returns ok=false with a nil error; storage errors are returned for
// the caller to treat as non-fatal, per spec §4.5.
func (s *Store) Get(taskId ids.TaskId) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketTasks))
		v := b.Get(taskId[:])
		if v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("cache: get %s: %w", taskId, err)
	}
	if data == nil {
		return Record{}, false, nil
	}
	rec, err := s.decode(data)
	if err != nil {
		return Record{}, false, err
	}
	return Record{InputsFingerprint: ids.InputFingerprint(rec.Fingerprint), Outputs: rec.Outputs}, true, nil
}

// Put implements the cache contract's put(task_id, fingerprint,
// outputs): the prior record for task_id, if any, is wholly replaced
// in a single bbolt transaction. Outputs is stored as given; an empty
// list is valid but the executor never calls Put for a task with no
// outputs (spec §4.5).
func (s *Store) Put(taskId ids.TaskId, fingerprint ids.InputFingerprint, outputs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.encode(encodedRecord{Fingerprint: [ids.Size]byte(fingerprint), Outputs: outputs})
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketTasks))
		return b.Put(taskId[:], data)
	})
	if err != nil {
		return fmt.Errorf("cache: put %s: %w", taskId, err)
	}
	return nil
}
