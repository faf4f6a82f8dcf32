package ssttable

// options.go implements configuration for opening and reading SST files.

import (
	"github.com/aalhour/ssttable/internal/cache"
	"github.com/aalhour/ssttable/internal/checksum"
	"github.com/aalhour/ssttable/internal/compression"
	"github.com/aalhour/ssttable/internal/dbformat"
	"github.com/aalhour/ssttable/internal/logging"
	"github.com/aalhour/ssttable/internal/vfs"
)

// Logger is an alias for the logging.Logger interface.
// This allows users to pass their own logger implementation.
type Logger = logging.Logger

// CompressionType is an alias for the compression type.
type CompressionType = compression.Type

// Compression type constants.
const (
	CompressionNone   = compression.NoCompression
	CompressionSnappy = compression.SnappyCompression
	CompressionZstd   = compression.ZstdCompression
	CompressionLZ4    = compression.LZ4Compression
)

// Compression type constants
const (
	NoCompression     = compression.NoCompression
	SnappyCompression = compression.SnappyCompression
	ZlibCompression   = compression.ZlibCompression
	LZ4Compression    = compression.LZ4Compression
	LZ4HCCompression  = compression.LZ4HCCompression
	ZstdCompression   = compression.ZstdCompression
)

// ChecksumType is an alias for the checksum type.
type ChecksumType = checksum.Type

// Checksum type constants
const (
	ChecksumTypeNoChecksum = checksum.TypeNoChecksum
	ChecksumTypeCRC32C     = checksum.TypeCRC32C
	ChecksumTypeXXHash     = checksum.TypeXXHash
	ChecksumTypeXXHash64   = checksum.TypeXXHash64
	ChecksumTypeXXH3       = checksum.TypeXXH3
)

// Snapshot pins a sequence number so that reads through it observe a
// consistent, unchanging view: any record version committed after the
// snapshot was taken is invisible to it. DBIter holds one for the lifetime
// of an iteration (section 3, section 4.5).
type Snapshot struct {
	sequence dbformat.SequenceNumber
}

// Sequence returns the sequence number this snapshot pins reads to.
func (s *Snapshot) Sequence() dbformat.SequenceNumber {
	if s == nil {
		return dbformat.SequenceNumber(1<<63 - 1)
	}
	return s.sequence
}

// NewSnapshot pins reads to seq. A nil Snapshot means "no pinning" and
// behaves as if pinned to the maximum sequence number.
func NewSnapshot(seq dbformat.SequenceNumber) *Snapshot {
	return &Snapshot{sequence: seq}
}

// Options contains configuration for opening an SST file and its supporting
// read infrastructure (cache, comparator, filesystem).
type Options struct {
	// FS is the filesystem implementation used to open SST files.
	// If nil, the OS filesystem (internal/vfs.Default) is used.
	FS vfs.FS

	// Comparator defines the order of user keys. If nil, a default
	// bytewise comparator is used.
	Comparator Comparator

	// MaxOpenFiles is the maximum number of SST files TableCache keeps open.
	// Default: 1000
	MaxOpenFiles int

	// BlockSize is the approximate size of data blocks within SST files.
	// Default: 4KB
	BlockSize int

	// BlockRestartInterval is how often restart points occur in blocks.
	// Default: 16
	BlockRestartInterval int

	// ChecksumType specifies the checksum algorithm recorded in SST footers.
	// Default: CRC32C
	ChecksumType ChecksumType

	// FormatVersion is the SST file format version.
	// Default: 3
	FormatVersion uint32

	// BloomFilterBitsPerKey is the number of bits per key for bloom filters.
	// 0 disables bloom filters. Default: 10
	BloomFilterBitsPerKey int

	// Compression specifies the compression algorithm for SST blocks.
	// Default: NoCompression
	Compression CompressionType

	// BlockCache holds decompressed data and index blocks shared across
	// table readers, keyed by (cache id, block offset). If nil, block
	// caching is disabled regardless of ReadOptions.FillCache.
	BlockCache cache.Cache

	// Logger is carried for the caller's use. No component in this module
	// (db.Open, the table readers, the block cache) logs through it, and a
	// nil Logger is left nil.
	Logger Logger
}

// DefaultOptions returns a new Options with default values.
func DefaultOptions() *Options {
	return &Options{
		FS:                    nil, // Will use vfs.Default()
		Comparator:            nil, // Will use BytewiseComparator
		MaxOpenFiles:          1000,
		BlockSize:             4096,
		BlockRestartInterval:  16,
		ChecksumType:          ChecksumTypeCRC32C,
		FormatVersion:         3,
		BloomFilterBitsPerKey: 10,
		BlockCache:            cache.NewShardedLRUCache(8<<20, 16), // 8MB default
		Logger:                nil,                                 // Not read by any component
	}
}

// ReadOptions contains options for read operations.
type ReadOptions struct {
	// VerifyChecksums enables checksum verification when reading.
	VerifyChecksums bool

	// FillCache indicates whether to insert blocks touched by this read
	// into Options.BlockCache.
	FillCache bool

	// Snapshot provides a consistent view of the database.
	// If nil, the most recent state is used.
	Snapshot *Snapshot

	// IterateUpperBound sets an upper bound for iteration.
	// The iterator will stop before any key >= this bound.
	IterateUpperBound []byte

	// IterateLowerBound sets a lower bound for iteration.
	// The iterator will skip any key < this bound.
	IterateLowerBound []byte
}

// DefaultReadOptions returns ReadOptions with default values.
func DefaultReadOptions() *ReadOptions {
	return &ReadOptions{
		VerifyChecksums: true,
		FillCache:       true,
		Snapshot:        nil,
	}
}
