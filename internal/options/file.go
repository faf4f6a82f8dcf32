// Package options implements OPTIONS file parsing for the reader-relevant
// subset of database configuration.
//
// This package is internal and not part of the public API.
//
// Reference: RocksDB v10.7.5
//   - options/options_helper.cc
//   - table/block_based/block_based_table_factory.cc
package options

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/aalhour/ssttable/internal/compression"
	"github.com/aalhour/ssttable/internal/vfs"
)

// ParsedOptions represents the [TableOptions/BlockBasedTable] keys parsed
// from an OPTIONS file that a table reader needs to open an SST correctly.
type ParsedOptions struct {
	RocksDBVersion       string
	OptionsFileVersion   int
	BlockSize            int
	BlockRestartInterval int
	Checksum             string
	FormatVersion        int
	FilterPolicy         string
	Compression          compression.Type
}

// ReadOptionsFile reads and parses an OPTIONS file.
func ReadOptionsFile(fs vfs.FS, path string) (*ParsedOptions, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	return ParseOptionsFile(file)
}

// ParseOptionsFile parses options from a reader.
func ParseOptionsFile(r io.Reader) (*ParsedOptions, error) {
	opts := &ParsedOptions{
		BlockSize:            4096,
		BlockRestartInterval: 16,
		Checksum:             "kCRC32c",
		FormatVersion:        3,
		Compression:          compression.NoCompression,
	}

	scanner := bufio.NewScanner(r)
	currentSection := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Check for section header
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = line[1 : len(line)-1]
			continue
		}

		// Parse key=value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		switch {
		case currentSection == "Version":
			switch key {
			case "rocksdb_version":
				opts.RocksDBVersion = value
			case "options_file_version":
				opts.OptionsFileVersion, _ = strconv.Atoi(value)
			}

		case strings.HasPrefix(currentSection, "TableOptions/BlockBasedTable"):
			switch key {
			case "block_size":
				opts.BlockSize, _ = strconv.Atoi(value)
			case "block_restart_interval":
				opts.BlockRestartInterval, _ = strconv.Atoi(value)
			case "checksum":
				opts.Checksum = value
			case "format_version":
				opts.FormatVersion, _ = strconv.Atoi(value)
			case "filter_policy":
				opts.FilterPolicy = value
			case "compression":
				opts.Compression = StringToCompressionType(value)
			}
		}
	}

	return opts, scanner.Err()
}

// CompressionTypeToString converts a compression.Type to its OPTIONS-file
// string representation.
func CompressionTypeToString(t compression.Type) string {
	switch t {
	case compression.NoCompression:
		return "kNoCompression"
	case compression.SnappyCompression:
		return "kSnappyCompression"
	case compression.ZlibCompression:
		return "kZlibCompression"
	case compression.LZ4Compression:
		return "kLZ4Compression"
	case compression.LZ4HCCompression:
		return "kLZ4HCCompression"
	case compression.ZstdCompression:
		return "kZSTD"
	default:
		return "kNoCompression"
	}
}

// StringToCompressionType converts a string to compression.Type.
func StringToCompressionType(s string) compression.Type {
	switch s {
	case "kNoCompression":
		return compression.NoCompression
	case "kSnappyCompression":
		return compression.SnappyCompression
	case "kZlibCompression":
		return compression.ZlibCompression
	case "kLZ4Compression":
		return compression.LZ4Compression
	case "kLZ4HCCompression":
		return compression.LZ4HCCompression
	case "kZSTD":
		return compression.ZstdCompression
	default:
		return compression.NoCompression
	}
}
