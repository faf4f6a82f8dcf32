// Package dbiter implements the snapshot-consistent, user-facing iterator
// that sits on top of a merged stream of internal keys.
//
// Memtables and SSTables both store (userKey, sequence, type) => value
// entries. DBIter collapses the version chain for each user key into a
// single visible entry at a fixed sequence-number snapshot, honoring
// deletion tombstones and shadowed overwrites.
//
// Reference: wenboc/redis-cpp17 example/redisdb/db/dbiter.cc
package dbiter

import (
	"errors"
	"fmt"

	"github.com/aalhour/ssttable/internal/dbformat"
)

// ErrCorruptInternalKey is the sticky status set when the child iterator
// yields a key that fails to parse as an internal key.
var ErrCorruptInternalKey = errors.New("dbiter: corrupted internal key")

// Direction records which way the child iterator was last moved relative
// to the entry DBIter currently exposes.
//
//   - Forward: the child iterator sits exactly on the entry yielded by
//     Key/Value.
//   - Reverse: the child iterator sits just before every entry whose user
//     key equals the one DBIter exposes; Key/Value come from savedKey/
//     savedValue instead.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

// maxSavedValueCapacity bounds how large savedValue's backing array is
// allowed to stay once it shrinks back down; matches the 1 MiB heuristic
// in the source reverse-scan algorithm.
const maxSavedValueCapacity = 1 << 20

// ChildIterator is the internal-key stream DBIter reconciles. A
// MergingIterator over memtable and SSTable iterators satisfies it, as
// does a bare table iterator for single-table scans.
type ChildIterator interface {
	Valid() bool
	Key() []byte
	Value() []byte
	SeekToFirst()
	SeekToLast()
	Seek(target []byte)
	Next()
	Prev()
	Error() error
}

// DB is the minimal handle DBIter carries back to its owner. Nothing in
// this package calls methods on it; it exists so callers that need to
// correlate an iterator with its originating database (for diagnostics,
// sampling, etc.) have somewhere to stash that reference.
type DB any

// DBIter is a bidirectional iterator over the user-visible view of an
// internal-key stream pinned to a single sequence-number snapshot.
//
// DBIter is not safe for concurrent use; each goroutine scanning a
// database should own its own DBIter.
type DBIter struct {
	db         DB
	comparator dbformat.UserKeyComparer
	iter       ChildIterator
	sequence   dbformat.SequenceNumber
	seed       uint32

	err        error
	savedKey   []byte
	savedValue []byte
	direction  Direction
	valid      bool
}

// NewDBIterator constructs a DBIter reconciling internalIter's entries at
// the given sequence-number snapshot. userCmp orders user keys; if nil,
// bytewise comparison is used. seed is carried through but otherwise
// unused by this core (reserved for future read-sampling instrumentation).
func NewDBIterator(db DB, userCmp dbformat.UserKeyComparer, internalIter ChildIterator, sequence dbformat.SequenceNumber, seed uint32) *DBIter {
	if userCmp == nil {
		userCmp = dbformat.BytewiseCompare
	}
	return &DBIter{
		db:         db,
		comparator: userCmp,
		iter:       internalIter,
		sequence:   sequence,
		seed:       seed,
		direction:  Forward,
	}
}

// Valid reports whether the iterator is positioned at a user-visible entry.
func (d *DBIter) Valid() bool { return d.valid }

// Key returns the current user key. Valid only when Valid() is true.
func (d *DBIter) Key() []byte {
	if d.direction == Forward {
		return dbformat.ExtractUserKey(d.iter.Key())
	}
	return d.savedKey
}

// Value returns the current value. Valid only when Valid() is true.
func (d *DBIter) Value() []byte {
	if d.direction == Forward {
		return d.iter.Value()
	}
	return d.savedValue
}

// Error returns the iterator's sticky status if one has been latched,
// else the child iterator's status.
func (d *DBIter) Error() error {
	if d.err != nil {
		return d.err
	}
	return d.iter.Error()
}

func (d *DBIter) parseKey() (*dbformat.ParsedInternalKey, bool) {
	ikey, err := dbformat.ParseInternalKey(d.iter.Key())
	if err != nil {
		d.err = fmt.Errorf("%w: %v", ErrCorruptInternalKey, err)
		return nil, false
	}
	return ikey, true
}

func saveKey(dst []byte, src []byte) []byte {
	return append(dst[:0], src...)
}

func (d *DBIter) clearSavedValue() {
	if cap(d.savedValue) > maxSavedValueCapacity {
		d.savedValue = nil
		return
	}
	d.savedValue = d.savedValue[:0]
}

// Seek positions the iterator at the first visible entry with user key
// >= target.
func (d *DBIter) Seek(target []byte) {
	d.direction = Forward
	d.clearSavedValue()
	d.savedKey = d.savedKey[:0]
	d.savedKey = dbformat.AppendInternalKey(d.savedKey, &dbformat.ParsedInternalKey{
		UserKey:  target,
		Sequence: d.sequence,
		Type:     dbformat.ValueTypeForSeek,
	})
	d.iter.Seek(d.savedKey)
	if d.iter.Valid() {
		d.findNextUserEntry(false, &d.savedKey)
		return
	}
	d.valid = false
}

// SeekToFirst positions the iterator at the first visible entry.
func (d *DBIter) SeekToFirst() {
	d.direction = Forward
	d.clearSavedValue()
	d.iter.SeekToFirst()
	if d.iter.Valid() {
		d.findNextUserEntry(false, &d.savedKey)
		return
	}
	d.valid = false
}

// SeekToLast positions the iterator at the last visible entry.
func (d *DBIter) SeekToLast() {
	d.direction = Reverse
	d.clearSavedValue()
	d.iter.SeekToLast()
	d.findPrevUserEntry()
}

// Next advances to the next visible user key.
func (d *DBIter) Next() {
	if !d.valid {
		return
	}

	if d.direction == Reverse {
		d.direction = Forward
		// iter sits just before the entries for Key(); advance into them.
		if !d.iter.Valid() {
			d.iter.SeekToFirst()
		} else {
			d.iter.Next()
		}
		if !d.iter.Valid() {
			d.valid = false
			d.savedKey = d.savedKey[:0]
			return
		}
		// savedKey already holds the user key to skip past.
	} else {
		d.savedKey = saveKey(d.savedKey, dbformat.ExtractUserKey(d.iter.Key()))
	}

	d.findNextUserEntry(true, &d.savedKey)
}

// findNextUserEntry scans the child forward until it finds an entry that
// should be visible: not shadowed by a deletion, not superseded by the
// current skip key, and at or below the snapshot sequence number.
func (d *DBIter) findNextUserEntry(skipping bool, skip *[]byte) {
	for d.iter.Valid() {
		ikey, ok := d.parseKey()
		if ok && ikey.Sequence <= d.sequence {
			switch ikey.Type {
			case dbformat.TypeDeletion:
				*skip = saveKey(*skip, ikey.UserKey)
				skipping = true
			case dbformat.TypeValue:
				if skipping && d.comparator(ikey.UserKey, *skip) <= 0 {
					// Hidden behind a later deletion or skip target.
				} else {
					d.valid = true
					d.savedKey = d.savedKey[:0]
					return
				}
			}
		}
		d.iter.Next()
	}
	d.savedKey = d.savedKey[:0]
	d.valid = false
}

// Prev moves to the previous visible user key.
func (d *DBIter) Prev() {
	if !d.valid {
		return
	}

	if d.direction == Forward {
		// iter sits on the current entry; scan backward until the user
		// key changes so the reverse-scan code below can take over.
		d.savedKey = saveKey(d.savedKey, dbformat.ExtractUserKey(d.iter.Key()))
		for {
			d.iter.Prev()
			if !d.iter.Valid() {
				d.valid = false
				d.savedKey = d.savedKey[:0]
				d.clearSavedValue()
				return
			}
			if d.comparator(dbformat.ExtractUserKey(d.iter.Key()), d.savedKey) < 0 {
				break
			}
		}
		d.direction = Reverse
	}

	d.findPrevUserEntry()
}

// findPrevUserEntry scans the child backward, latching the newest visible
// version of each user key it passes, until it either exhausts the child
// or crosses into the range of the previous user key.
func (d *DBIter) findPrevUserEntry() {
	valueType := dbformat.TypeDeletion

	if d.iter.Valid() {
		for d.iter.Valid() {
			ikey, ok := d.parseKey()
			if ok && ikey.Sequence <= d.sequence {
				if valueType != dbformat.TypeDeletion && d.comparator(ikey.UserKey, d.savedKey) < 0 {
					// Crossed into the previous user key's range; the
					// latched (savedKey, savedValue) is the answer.
					break
				}

				valueType = ikey.Type
				if valueType == dbformat.TypeDeletion {
					d.savedKey = d.savedKey[:0]
					d.clearSavedValue()
				} else {
					rawValue := d.iter.Value()
					if cap(d.savedValue) > len(rawValue)+maxSavedValueCapacity {
						d.savedValue = nil
					}
					d.savedKey = saveKey(d.savedKey, ikey.UserKey)
					d.savedValue = append(d.savedValue[:0], rawValue...)
				}
			}
			d.iter.Prev()
		}
	}

	if valueType == dbformat.TypeDeletion {
		d.valid = false
		d.savedKey = d.savedKey[:0]
		d.clearSavedValue()
		d.direction = Forward
		return
	}
	d.valid = true
}
