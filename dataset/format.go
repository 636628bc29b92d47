package dataset

import (
	"path/filepath"
	"strings"
)

// Format is the container type of an input file, derived from its name.
type Format int

const (
	FormatUnknown Format = iota
	FormatCSV
	FormatCSVGzip
	FormatCSVXz
	FormatCSVZstd
	FormatZip
	FormatTar
	FormatTarGzip
)

// suffixes are matched longest first so ".csv.gz" wins over ".gz".
var suffixes = []struct {
	suffix string
	format Format
}{
	{".csv.gz", FormatCSVGzip},
	{".csv.xz", FormatCSVXz},
	{".csv.zst", FormatCSVZstd},
	{".tar.gz", FormatTarGzip},
	{".tgz", FormatTarGzip},
	{".csv", FormatCSV},
	{".zip", FormatZip},
	{".tar", FormatTar},
}

// SupportedExtensions lists the file suffixes Ingest accepts.
func SupportedExtensions() []string {
	out := make([]string, len(suffixes))
	for i, s := range suffixes {
		out[i] = s.suffix
	}
	return out
}

// DetectFormat maps a path to its Format. Matching is case-insensitive.
func DetectFormat(path string) Format {
	name := strings.ToLower(filepath.Base(path))
	for _, s := range suffixes {
		if strings.HasSuffix(name, s.suffix) {
			return s.format
		}
	}
	return FormatUnknown
}

// IsArchive reports whether f bundles several files.
func (f Format) IsArchive() bool {
	return f == FormatZip || f == FormatTar || f == FormatTarGzip
}

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatCSVGzip:
		return "csv+gzip"
	case FormatCSVXz:
		return "csv+xz"
	case FormatCSVZstd:
		return "csv+zstd"
	case FormatZip:
		return "zip"
	case FormatTar:
		return "tar"
	case FormatTarGzip:
		return "tar+gzip"
	default:
		return "unknown"
	}
}
