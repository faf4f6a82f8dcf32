// Package db provides the top-level read surface over a set of SST files
// and an in-memory memtable: Get and a snapshot-consistent iterator.
//
// Reference: wenboc/redis-cpp17 example/redisdb/db/db.h (public surface)
package db

import (
	"errors"
	"sync"

	ssttable "github.com/aalhour/ssttable"
	"github.com/aalhour/ssttable/internal/dbformat"
	"github.com/aalhour/ssttable/internal/dbiter"
	"github.com/aalhour/ssttable/internal/iterator"
	"github.com/aalhour/ssttable/internal/memtable"
	"github.com/aalhour/ssttable/internal/table"
	"github.com/aalhour/ssttable/internal/vfs"
)

// Common errors returned by DB operations.
var (
	ErrNotFound = errors.New("db: key not found")
	ErrDBClosed = errors.New("db: database is closed")
)

// DB is a read-only view over a fixed set of immutable SST files plus a
// mutable in-memory memtable, reconciled through a snapshot iterator.
// There is no write-ahead log, flush, or compaction: opening more SST
// files or replacing the memtable is the caller's responsibility.
//
// A DB is safe for concurrent use by multiple goroutines; the iterators
// it hands out are not (see internal/dbiter).
type DB struct {
	mu      sync.RWMutex
	cmp     dbformat.UserKeyComparer
	cache   *table.TableCache
	readers []*table.Reader // probed newest-first by Get and merged by NewIterator
	mem     *memtable.MemTable
	seq     dbformat.SequenceNumber // next sequence number Put/Delete will use
	closed  bool
}

// Open opens the SST files named by paths, newest first, through a
// table.TableCache bounded by opts.MaxOpenFiles, and wires a fresh empty
// memtable alongside them. Each reader keeps the reference TableCache.Get
// returns for the lifetime of the DB, so MaxOpenFiles bounds additional
// files beyond the fixed set passed to Open, not the set itself: a DB is
// a view over a fixed set of immutable SST files, all of which stay open.
// The cache (and every reader it holds) is torn down if any later file
// fails to open.
func Open(fs vfs.FS, paths []string, opts *ssttable.Options) (*DB, error) {
	if opts == nil {
		opts = ssttable.DefaultOptions()
	}
	if fs == nil {
		fs = opts.FS
	}
	if fs == nil {
		fs = vfs.Default()
	}

	cmp := dbformat.UserKeyComparer(dbformat.BytewiseCompare)
	if opts.Comparator != nil {
		cmp = opts.Comparator.Compare
	}

	maxOpenFiles := opts.MaxOpenFiles
	if maxOpenFiles <= 0 {
		maxOpenFiles = len(paths)
	}

	cache := table.NewTableCache(fs, table.TableCacheOptions{
		MaxOpenFiles:    maxOpenFiles,
		VerifyChecksums: true,
		CacheBlocks:     opts.BlockCache != nil,
		Cache:           opts.BlockCache,
		Comparator:      cmp,
	})

	readers := make([]*table.Reader, 0, len(paths))
	for i, p := range paths {
		r, err := cache.Get(uint64(i), p)
		if err != nil {
			_ = cache.Close()
			return nil, err
		}
		readers = append(readers, r)
	}

	return &DB{
		cmp:     cmp,
		cache:   cache,
		readers: readers,
		mem:     memtable.New(cmp),
	}, nil
}

// Close closes the TableCache, which closes every SST reader this DB
// owns. The memtable, being purely in-memory, needs no release step.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	return db.cache.Close()
}

// Put records value for key in the in-memory memtable at the next
// sequence number. This is test/fixture plumbing, not a durable write
// path: there is no WAL and nothing is ever flushed to an SST file.
func (db *DB) Put(key, value []byte) dbformat.SequenceNumber {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.seq++
	db.mem.Put(db.seq, key, value)
	return db.seq
}

// Delete records a deletion tombstone for key in the memtable at the
// next sequence number, the in-memory counterpart to Put.
func (db *DB) Delete(key []byte) dbformat.SequenceNumber {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.seq++
	db.mem.Delete(db.seq, key)
	return db.seq
}

// Get looks up key as of snapshot (or the latest sequence number if
// snapshot is nil), probing the memtable, then each SST reader
// newest-first, stopping at the first hit. Each probe builds the lookup
// key (key, sequence, ValueForSeek) and relies on table.Reader.Get's
// internalGet-based match filtering — the concrete resolution of the
// open question that Table::internalGet's callback does not itself check
// the user key.
func (db *DB) Get(key []byte, snapshot *ssttable.Snapshot) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return nil, ErrDBClosed
	}

	sequence := snapshot.Sequence()

	if value, ok := db.getFromMemtable(key, sequence); ok {
		if value == nil {
			return nil, ErrNotFound
		}
		return value, nil
	}

	for _, r := range db.readers {
		value, err := r.Get(key, sequence)
		switch {
		case err == nil:
			return value, nil
		case errors.Is(err, table.ErrNotFound):
			continue
		default:
			return nil, err
		}
	}

	return nil, ErrNotFound
}

// getFromMemtable reports whether the memtable holds the answer for key
// at the given snapshot: ok is true if a visible entry (value or
// deletion) was found, in which case a nil value means the key was
// deleted. ok is false if the memtable has nothing to say and the
// lookup should fall through to the SST readers.
func (db *DB) getFromMemtable(key []byte, sequence dbformat.SequenceNumber) (value []byte, ok bool) {
	it := db.mem.NewIterator()
	lookup := dbformat.AppendInternalKey(nil, &dbformat.ParsedInternalKey{
		UserKey:  key,
		Sequence: sequence,
		Type:     dbformat.ValueTypeForSeek,
	})
	it.Seek(lookup)
	if !it.Valid() {
		return nil, false
	}
	ikey, err := dbformat.ParseInternalKey(it.Key())
	if err != nil || db.cmp(ikey.UserKey, key) != 0 {
		return nil, false
	}
	if ikey.Type == dbformat.TypeDeletion {
		return nil, true
	}
	return append([]byte(nil), it.Value()...), true
}

// NewIterator returns a snapshot-consistent iterator merging the
// memtable with every SST reader this DB owns, the way
// original_source's DB::NewIterator always merges a memtable iterator
// with the SSTable iterators.
func (db *DB) NewIterator(snapshot *ssttable.Snapshot) *dbiter.DBIter {
	db.mu.RLock()
	defer db.mu.RUnlock()

	children := make([]iterator.Iterator, 0, len(db.readers)+1)
	children = append(children, db.mem.NewIterator())
	for _, r := range db.readers {
		children = append(children, r.NewIterator())
	}

	merged := iterator.NewMergingIterator(children, dbformat.NewInternalKeyComparator(db.cmp).Compare)
	return dbiter.NewDBIterator(db, db.cmp, merged, snapshot.Sequence(), 0)
}
