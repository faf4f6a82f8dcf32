/*
Package ssttable provides a pure-Go reader for RocksDB-compatible SST
files and the snapshot iteration semantics layered on top of them.

SSTable targets on-disk format compatibility with RocksDB v10.7.5 block-
based SST files: footers, block trailers, the metaindex/index/filter/
properties blocks, and the internal-key encoding they store. internal/table
opens and reads those files; internal/dbiter and internal/iterator provide
the merged, snapshot-consistent view over one or more of them that db.DB
exposes as Get and NewIterator. Building SST files is a test-fixture
concern (internal/table's TableBuilder), not a public write path.

# Usage

The public API is in package db: open a DB over SST files with db.Open, then
read through DB.Get and DB.NewIterator.

# Concurrency

A DB instance is safe for concurrent use by multiple goroutines. Individual
Iterator instances are not safe for concurrent use; each goroutine should
use its own iterator.

# Compatibility

SST files read by SSTable are produced by, and readable by, C++ RocksDB
v10.7.5.

Reference: RocksDB v10.7.5 include/rocksdb/table.h, include/rocksdb/iterator.h
*/
package ssttable
