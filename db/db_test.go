package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	ssttable "github.com/aalhour/ssttable"
	"github.com/aalhour/ssttable/internal/dbformat"
	"github.com/aalhour/ssttable/internal/table"
	"github.com/aalhour/ssttable/internal/vfs"
)

// buildSST writes an SST file containing the given internal-key/value
// pairs, assumed already in ascending internal-key order.
func buildSST(t *testing.T, path string, pairs [][2][]byte) {
	t.Helper()
	fs := vfs.Default()
	f, err := fs.Create(path)
	require.NoError(t, err)
	defer f.Close()

	b := table.NewTableBuilder(f, table.DefaultBuilderOptions())
	for _, kv := range pairs {
		require.NoError(t, b.Add(kv[0], kv[1]))
	}
	require.NoError(t, b.Finish())
	require.NoError(t, f.Sync())
}

func internalKey(userKey string, seq uint64, typ dbformat.ValueType) []byte {
	return dbformat.AppendInternalKey(nil, &dbformat.ParsedInternalKey{
		UserKey:  []byte(userKey),
		Sequence: dbformat.SequenceNumber(seq),
		Type:     typ,
	})
}

func TestDB_GetFromSSTAndMemtable(t *testing.T) {
	dir := t.TempDir()
	sstPath := filepath.Join(dir, "000001.sst")

	buildSST(t, sstPath, [][2][]byte{
		{internalKey("a", 1, dbformat.TypeValue), []byte("sst-a")},
		{internalKey("b", 2, dbformat.TypeValue), []byte("sst-b")},
	})

	d, err := Open(vfs.Default(), []string{sstPath}, ssttable.DefaultOptions())
	require.NoError(t, err)
	defer d.Close()

	v, err := d.Get([]byte("a"), nil)
	require.NoError(t, err)
	require.Equal(t, "sst-a", string(v))

	_, err = d.Get([]byte("missing"), nil)
	require.ErrorIs(t, err, ErrNotFound)

	// A newer memtable write shadows the SST value without touching disk.
	d.Put([]byte("a"), []byte("mem-a"))
	v, err = d.Get([]byte("a"), nil)
	require.NoError(t, err)
	require.Equal(t, "mem-a", string(v))

	d.Delete([]byte("b"))
	_, err = d.Get([]byte("b"), nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDB_NewIteratorMergesMemtableAndSST(t *testing.T) {
	dir := t.TempDir()
	sstPath := filepath.Join(dir, "000001.sst")

	buildSST(t, sstPath, [][2][]byte{
		{internalKey("a", 1, dbformat.TypeValue), []byte("1")},
		{internalKey("c", 1, dbformat.TypeValue), []byte("3")},
	})

	d, err := Open(vfs.Default(), []string{sstPath}, ssttable.DefaultOptions())
	require.NoError(t, err)
	defer d.Close()

	d.Put([]byte("b"), []byte("2"))

	it := d.NewIterator(nil)
	var got []string
	for it.SeekToFirst(); it.Valid(); it.Next() {
		got = append(got, string(it.Key())+"="+string(it.Value()))
	}
	require.NoError(t, it.Error())
	require.Equal(t, []string{"a=1", "b=2", "c=3"}, got)
}

func TestDB_SnapshotIsolation(t *testing.T) {
	d, err := Open(vfs.Default(), nil, ssttable.DefaultOptions())
	require.NoError(t, err)
	defer d.Close()

	d.Put([]byte("k"), []byte("v1"))
	snap := ssttable.NewSnapshot(d.seq)
	d.Put([]byte("k"), []byte("v2"))

	v, err := d.Get([]byte("k"), snap)
	require.NoError(t, err)
	require.Equal(t, "v1", string(v))

	v, err = d.Get([]byte("k"), nil)
	require.NoError(t, err)
	require.Equal(t, "v2", string(v))
}

func TestDB_CloseThenGet(t *testing.T) {
	d, err := Open(vfs.Default(), nil, ssttable.DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, d.Close())

	_, err = d.Get([]byte("a"), nil)
	require.ErrorIs(t, err, ErrDBClosed)
}
