// Package memtable implements a minimal in-memory sorted table that gives
// MergingIterator a second child stream alongside SSTable readers, the
// way a real LSM engine merges its active memtable with on-disk levels.
//
// It is not a write path in its own right: there is no WAL, no flush to
// an SSTable, and no concurrent-write discipline. It exists so the
// reader core has something in-memory to merge against, matching
// db.NewIterator in the original sources always merging a memtable
// iterator with the SSTable iterators.
//
// Reference: wenboc/redis-cpp17 example/redisdb/db/db.cc (DB::NewIterator)
package memtable

import (
	"sort"
	"sync"

	"github.com/aalhour/ssttable/internal/dbformat"
)

// MemTable holds internal-key/value pairs in ascending internal-key order.
// Insertion uses binary search since this module never mutates the table
// concurrently with a reader walking it; callers own their own
// synchronization if that changes.
type MemTable struct {
	mu      sync.RWMutex
	cmp     *dbformat.InternalKeyComparator
	entries []entry
}

type entry struct {
	key   []byte // encoded internal key
	value []byte
}

// New creates an empty MemTable ordering user keys with userCmp (nil for
// bytewise comparison).
func New(userCmp dbformat.UserKeyComparer) *MemTable {
	return &MemTable{cmp: dbformat.NewInternalKeyComparator(userCmp)}
}

// Add inserts userKey/value at the given sequence number and type,
// maintaining ascending internal-key order. A later call with the same
// (userKey, sequence) is not expected and is not deduplicated; callers
// should use strictly increasing sequence numbers per write, as a real
// write path would.
func (m *MemTable) Add(seq dbformat.SequenceNumber, t dbformat.ValueType, userKey, value []byte) {
	ikey := dbformat.AppendInternalKey(nil, &dbformat.ParsedInternalKey{
		UserKey:  userKey,
		Sequence: seq,
		Type:     t,
	})
	var val []byte
	if t != dbformat.TypeDeletion {
		val = append([]byte(nil), value...)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	i := sort.Search(len(m.entries), func(i int) bool {
		return m.cmp.Compare(m.entries[i].key, ikey) >= 0
	})
	// Build a new slice instead of shifting in place, so a slice that an
	// Iterator has already read is never written to.
	entries := make([]entry, 0, len(m.entries)+1)
	entries = append(entries, m.entries[:i]...)
	entries = append(entries, entry{key: ikey, value: val})
	m.entries = append(entries, m.entries[i:]...)
}

// Put is a convenience wrapper over Add for TypeValue records.
func (m *MemTable) Put(seq dbformat.SequenceNumber, userKey, value []byte) {
	m.Add(seq, dbformat.TypeValue, userKey, value)
}

// Delete is a convenience wrapper over Add for TypeDeletion tombstones.
func (m *MemTable) Delete(seq dbformat.SequenceNumber, userKey []byte) {
	m.Add(seq, dbformat.TypeDeletion, userKey, nil)
}

// Len returns the number of entries currently stored.
func (m *MemTable) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// NewIterator returns an iterator over the memtable's internal-key
// stream, satisfying the same contract as Table's two-level iterator so
// it can be merged alongside SSTable children.
func (m *MemTable) NewIterator() *Iterator {
	return &Iterator{mt: m, pos: -1}
}

// Iterator walks a MemTable's sorted entries by position. Each call reads
// the table's current entry slice under the table's read lock, and Add
// never writes to a slice already handed out, so concurrent Add calls do
// not race with reads. The iterator takes no snapshot: an entry added
// during iteration shifts the entries its position refers to. The
// iterator itself is not safe for concurrent use by multiple goroutines
// (matching every other iterator in this module).
type Iterator struct {
	mt  *MemTable
	pos int
}

func (it *Iterator) snapshot() []entry {
	it.mt.mu.RLock()
	defer it.mt.mu.RUnlock()
	return it.mt.entries
}

func (it *Iterator) Valid() bool {
	entries := it.snapshot()
	return it.pos >= 0 && it.pos < len(entries)
}

func (it *Iterator) Key() []byte {
	entries := it.snapshot()
	return entries[it.pos].key
}

func (it *Iterator) Value() []byte {
	entries := it.snapshot()
	return entries[it.pos].value
}

func (it *Iterator) SeekToFirst() {
	it.pos = 0
}

func (it *Iterator) SeekToLast() {
	entries := it.snapshot()
	it.pos = len(entries) - 1
}

func (it *Iterator) Seek(target []byte) {
	entries := it.snapshot()
	it.pos = sort.Search(len(entries), func(i int) bool {
		return it.mt.cmp.Compare(entries[i].key, target) >= 0
	})
}

func (it *Iterator) Next() {
	entries := it.snapshot()
	if it.pos < len(entries) {
		it.pos++
	}
}

func (it *Iterator) Prev() {
	if it.pos >= 0 {
		it.pos--
	}
}

func (it *Iterator) Error() error { return nil }
