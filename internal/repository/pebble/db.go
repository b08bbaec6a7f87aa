// Package pebblestore persists entities in an embedded Pebble key/value
// store. Each entity type owns a key prefix holding JSON records keyed by
// big-endian id, plus a sequence key for id assignment.
package pebblestore

import (
	"encoding/binary"
	"errors"
	"io"
	"slices"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Options configures the Pebble store wrapper.
type Options struct {
	// DataDir is the path to the Pebble database directory.
	DataDir string
	// Sync requests a WAL fsync on each committed batch.
	Sync bool
	// FS overrides the filesystem, e.g. vfs.NewMem() in tests.
	FS vfs.FS
}

// DB wraps a Pebble database instance. Writes go through indexed batches so
// read-modify-write sequences observe their own changes.
type DB struct {
	inner     *pebble.DB
	writeOpts *pebble.WriteOptions
	// mu serializes write batches; id assignment reads then bumps a sequence key.
	mu sync.Mutex
}

// Open creates or opens a Pebble database with the provided options.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebble: Options.DataDir is required")
	}

	po := &pebble.Options{}
	if opts.FS != nil {
		po.FS = opts.FS
	}

	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}

	writeOpts := pebble.NoSync
	if opts.Sync {
		writeOpts = pebble.Sync
	}
	return &DB{inner: inner, writeOpts: writeOpts}, nil
}

// Close closes the Pebble database.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

// kv is the access path shared by plain and transactional stores. Outside a
// transaction batch is nil and every update commits its own batch.
type kv struct {
	db    *DB
	batch *pebble.Batch
}

func (k kv) reader() pebble.Reader {
	if k.batch != nil {
		return k.batch
	}
	return k.db.inner
}

func (k kv) update(fn func(b *pebble.Batch) error) error {
	if k.batch != nil {
		return fn(k.batch)
	}

	k.db.mu.Lock()
	defer k.db.mu.Unlock()

	b := k.db.inner.NewIndexedBatch()
	defer b.Close()
	if err := fn(b); err != nil {
		return err
	}
	return b.Commit(k.db.writeOpts)
}

func get(r pebble.Reader, key []byte) ([]byte, bool, error) {
	val, closer, err := r.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer closer.Close()
	return slices.Clone(val), true, nil
}

func readSeq(r pebble.Reader, key []byte) (int64, error) {
	val, ok, err := get(r, key)
	if err != nil || !ok {
		return 0, err
	}
	if len(val) != 8 {
		return 0, io.ErrUnexpectedEOF
	}
	return int64(binary.BigEndian.Uint64(val)), nil
}

func writeSeq(b *pebble.Batch, key []byte, seq int64) error {
	return b.Set(key, binary.BigEndian.AppendUint64(nil, uint64(seq)), nil)
}

func recordKey(prefix []byte, id int64) []byte {
	return binary.BigEndian.AppendUint64(slices.Clone(prefix), uint64(id))
}

func seqKey(name string) []byte {
	return []byte("seq/" + name)
}

func recordPrefix(name string) []byte {
	return []byte(name + "/")
}

// prefixBounds returns iterator bounds covering every key with the prefix.
func prefixBounds(prefix []byte) *pebble.IterOptions {
	upper := slices.Clone(prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return &pebble.IterOptions{LowerBound: prefix, UpperBound: upper[:i+1]}
		}
	}
	return &pebble.IterOptions{LowerBound: prefix}
}
