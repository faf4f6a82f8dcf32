package dbiter

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aalhour/ssttable/internal/dbformat"
)

// entry is a single internal-key record used to build fakeIterator fixtures.
type entry struct {
	userKey []byte
	seq     dbformat.SequenceNumber
	typ     dbformat.ValueType
	value   []byte
}

// fakeIterator is a ChildIterator over a fixed, sorted slice of internal
// keys, standing in for a MergingIterator over memtables/SSTables.
type fakeIterator struct {
	entries []entry
	pos     int // -1 before first, len(entries) after last
}

func newFakeIterator(entries []entry) *fakeIterator {
	sorted := append([]entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		return cmpInternal(sorted[i], sorted[j]) < 0
	})
	return &fakeIterator{entries: sorted, pos: -1}
}

// cmpInternal orders entries the way internal keys sort: user key
// ascending, then sequence number descending.
func cmpInternal(a, b entry) int {
	if c := dbformat.BytewiseCompare(a.userKey, b.userKey); c != 0 {
		return c
	}
	if a.seq != b.seq {
		if a.seq > b.seq {
			return -1
		}
		return 1
	}
	return 0
}

func (f *fakeIterator) Valid() bool { return f.pos >= 0 && f.pos < len(f.entries) }

func (f *fakeIterator) Key() []byte {
	e := f.entries[f.pos]
	return dbformat.AppendInternalKey(nil, &dbformat.ParsedInternalKey{
		UserKey:  e.userKey,
		Sequence: e.seq,
		Type:     e.typ,
	})
}

func (f *fakeIterator) Value() []byte { return f.entries[f.pos].value }

func (f *fakeIterator) SeekToFirst() { f.pos = 0 }

func (f *fakeIterator) SeekToLast() { f.pos = len(f.entries) - 1 }

func (f *fakeIterator) Seek(target []byte) {
	targetKey, err := dbformat.ParseInternalKey(target)
	if err != nil {
		f.pos = len(f.entries)
		return
	}
	cmp := dbformat.NewInternalKeyComparator(nil)
	for i, e := range f.entries {
		ik := dbformat.AppendInternalKey(nil, &dbformat.ParsedInternalKey{
			UserKey: e.userKey, Sequence: e.seq, Type: e.typ,
		})
		want := dbformat.AppendInternalKey(nil, targetKey)
		if cmp.Compare(ik, want) >= 0 {
			f.pos = i
			return
		}
	}
	f.pos = len(f.entries)
}

func (f *fakeIterator) Next() {
	if f.pos < len(f.entries) {
		f.pos++
	}
}

func (f *fakeIterator) Prev() {
	if f.pos >= 0 {
		f.pos--
	}
}

func (f *fakeIterator) Error() error { return nil }

func put(key string, value string, seq uint64) entry {
	return entry{userKey: []byte(key), seq: dbformat.SequenceNumber(seq), typ: dbformat.TypeValue, value: []byte(value)}
}

func del(key string, seq uint64) entry {
	return entry{userKey: []byte(key), seq: dbformat.SequenceNumber(seq), typ: dbformat.TypeDeletion}
}

func newIter(seq uint64, entries ...entry) *DBIter {
	child := newFakeIterator(entries)
	return NewDBIterator(nil, dbformat.BytewiseCompare, child, dbformat.SequenceNumber(seq), 0)
}

// S1: basic overwrite.
func TestDBIter_S1_BasicOverwrite(t *testing.T) {
	it := newIter(2, put("a", "1", 1), put("a", "2", 2))
	it.SeekToFirst()
	require.True(t, it.Valid())
	require.Equal(t, "a", string(it.Key()))
	require.Equal(t, "2", string(it.Value()))
	it.Next()
	require.False(t, it.Valid())

	it1 := newIter(1, put("a", "1", 1), put("a", "2", 2))
	it1.SeekToFirst()
	require.True(t, it1.Valid())
	require.Equal(t, "1", string(it1.Value()))
}

// S2: deletion hides older value.
func TestDBIter_S2_DeletionHidesOlder(t *testing.T) {
	it := newIter(2, put("b", "x", 1), del("b", 2))
	it.Seek([]byte("b"))
	require.False(t, it.Valid())

	it1 := newIter(1, put("b", "x", 1), del("b", 2))
	it1.Seek([]byte("b"))
	require.True(t, it1.Valid())
	require.Equal(t, "x", string(it1.Value()))
}

// S3: reverse scan across versions and keys.
func TestDBIter_S3_ReverseAcrossVersions(t *testing.T) {
	it := newIter(3, put("a", "1", 1), put("a", "2", 3), put("b", "9", 2))
	it.SeekToLast()
	require.True(t, it.Valid())
	require.Equal(t, "b", string(it.Key()))
	require.Equal(t, "9", string(it.Value()))

	it.Prev()
	require.True(t, it.Valid())
	require.Equal(t, "a", string(it.Key()))
	require.Equal(t, "2", string(it.Value()))

	it.Prev()
	require.False(t, it.Valid())
}

// S4: direction switch — prev then next then prev returns to the same spot.
func TestDBIter_S4_DirectionSwitch(t *testing.T) {
	it := newIter(3, put("a", "1", 1), put("a", "2", 3), put("b", "9", 2))
	it.SeekToLast()
	it.Prev() // (a,2)
	require.True(t, it.Valid())
	require.Equal(t, "a", string(it.Key()))

	it.Next() // (b,9)
	require.True(t, it.Valid())
	require.Equal(t, "b", string(it.Key()))
	require.Equal(t, "9", string(it.Value()))

	it.Prev() // (a,2)
	require.True(t, it.Valid())
	require.Equal(t, "a", string(it.Key()))
	require.Equal(t, "2", string(it.Value()))
}

// Property: snapshot monotonicity — a full forward scan yields each user
// key at most once, at its highest-sequence visible value, omitting keys
// whose latest visible entry is a deletion.
func TestDBIter_SnapshotMonotonicity(t *testing.T) {
	entries := []entry{
		put("a", "1", 1),
		put("a", "2", 2),
		del("b", 3),
		put("b", "old", 1),
		put("c", "only", 4),
	}
	it := newIter(4, entries...)
	seen := map[string]string{}
	order := []string{}
	for it.SeekToFirst(); it.Valid(); it.Next() {
		k := string(it.Key())
		_, already := seen[k]
		require.Falsef(t, already, "key %q yielded more than once", k)
		seen[k] = string(it.Value())
		order = append(order, k)
	}
	_, deletedSeen := seen["b"]
	require.False(t, deletedSeen, "deleted key should not be visible")
	require.Equal(t, "2", seen["a"])
	require.Equal(t, "only", seen["c"])
	require.Len(t, order, 2)
}

// Property: tombstone hiding holds across both scan directions.
func TestDBIter_TombstoneHidingBothDirections(t *testing.T) {
	it := newIter(5, put("k", "v", 1), del("k", 4))

	it.SeekToFirst()
	require.False(t, it.Valid(), "forward scan should not surface deleted key")

	it.SeekToLast()
	require.False(t, it.Valid(), "reverse scan should not surface deleted key")
}

func TestDBIter_CorruptKeySetsStickyStatus(t *testing.T) {
	child := &corruptOnceIterator{fakeIterator: newFakeIterator([]entry{put("a", "1", 1)})}
	it := NewDBIterator(nil, dbformat.BytewiseCompare, child, dbformat.SequenceNumber(10), 0)
	it.SeekToFirst()
	require.Error(t, it.Error())
}

// corruptOnceIterator returns a too-short internal key on the first Key()
// call to exercise DBIter's parse-failure handling.
type corruptOnceIterator struct {
	*fakeIterator
	called bool
}

func (c *corruptOnceIterator) Key() []byte {
	if !c.called {
		c.called = true
		return []byte("short")
	}
	return c.fakeIterator.Key()
}
