package ssttable

// options_file.go implements OPTIONS file persistence for the reader-only
// configuration surface in options.go.
//
// RocksDB stores database configuration in OPTIONS files for recovery. The
// file format is a simple text file with sections and key=value pairs. We
// only round-trip the subset of keys a table reader cares about, under
// [TableOptions/BlockBasedTable]:
//
//	[Version]
//	rocksdb_version=10.7.5
//	options_file_version=1
//
//	[TableOptions/BlockBasedTable "default"]
//	block_size=4096
//	checksum=kXXH3
//	format_version=3
//	filter_policy=rocksdb.BuiltinBloomFilter
//
// Reference: RocksDB v10.7.5
//   - options/options_helper.cc
//   - table/block_based/block_based_table_factory.cc

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/aalhour/ssttable/internal/options"
	"github.com/aalhour/ssttable/internal/vfs"
)

const (
	// OptionsFileVersion is the current options file format version.
	OptionsFileVersion = 1

	// OptionsFilePrefix is the prefix for options file names.
	OptionsFilePrefix = "OPTIONS-"
)

// WriteOptionsFile writes the current options to an OPTIONS file.
func WriteOptionsFile(fs vfs.FS, dbPath string, opts *Options, fileNum uint64) error {
	path := fmt.Sprintf("%s/%s%06d", dbPath, OptionsFilePrefix, fileNum)

	file, err := fs.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	w := bufio.NewWriter(file)

	fmt.Fprintln(w, "[Version]")
	fmt.Fprintln(w, "  rocksdb_version=10.7.5")
	fmt.Fprintf(w, "  options_file_version=%d\n", OptionsFileVersion)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[TableOptions/BlockBasedTable \"default\"]")
	fmt.Fprintf(w, "  block_size=%d\n", opts.BlockSize)
	fmt.Fprintf(w, "  block_restart_interval=%d\n", opts.BlockRestartInterval)
	fmt.Fprintf(w, "  checksum=%s\n", checksumTypeToString(opts.ChecksumType))
	fmt.Fprintf(w, "  format_version=%d\n", opts.FormatVersion)
	if opts.BloomFilterBitsPerKey > 0 {
		fmt.Fprintln(w, "  filter_policy=rocksdb.BuiltinBloomFilter")
	}
	fmt.Fprintf(w, "  compression=%s\n", compressionTypeToString(opts.Compression))
	fmt.Fprintln(w)

	if err := w.Flush(); err != nil {
		return err
	}

	return file.Sync()
}

// ReadOptionsFile reads and parses an OPTIONS file, returning the subset of
// its [TableOptions/BlockBasedTable] keys relevant to opening a reader.
func ReadOptionsFile(fs vfs.FS, path string) (*options.ParsedOptions, error) {
	return options.ReadOptionsFile(fs, path)
}

// ParseOptionsFile parses table-reader-relevant options from an OPTIONS file
// reader. See internal/options for the parser.
var ParseOptionsFile = options.ParseOptionsFile

func compressionTypeToString(t CompressionType) string {
	return options.CompressionTypeToString(t)
}

func checksumTypeToString(t ChecksumType) string {
	switch t {
	case ChecksumTypeNoChecksum:
		return "kNoChecksum"
	case ChecksumTypeCRC32C:
		return "kCRC32c"
	case ChecksumTypeXXHash:
		return "kxxHash"
	case ChecksumTypeXXHash64:
		return "kxxHash64"
	case ChecksumTypeXXH3:
		return "kXXH3"
	default:
		return "kCRC32c"
	}
}

// GetLatestOptionsFile finds the latest OPTIONS file in the database directory.
func GetLatestOptionsFile(fs vfs.FS, dbPath string) (string, error) {
	entries, err := fs.ListDir(dbPath)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestNum uint64

	for _, entry := range entries {
		if !strings.HasPrefix(entry, OptionsFilePrefix) {
			continue
		}

		numStr := entry[len(OptionsFilePrefix):]
		num, err := strconv.ParseUint(numStr, 10, 64)
		if err != nil {
			continue
		}

		if num > latestNum {
			latestNum = num
			latestFile = entry
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no OPTIONS file found")
	}

	return dbPath + "/" + latestFile, nil
}
