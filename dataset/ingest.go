package dataset

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	tferrors "github.com/YuminosukeSato/tabflow/pkg/errors"
	"github.com/YuminosukeSato/tabflow/pkg/log"
)

// Ingestor reads datasets from disk.
type Ingestor struct {
	workDir string
	logger  log.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithWorkDir sets the parent directory for temporary archive extraction.
// The default is os.TempDir().
func WithWorkDir(dir string) Option {
	return func(i *Ingestor) {
		i.workDir = dir
	}
}

// WithLogger sets the logger used for warnings about dropped rows and
// ignored archive members.
func WithLogger(l log.Logger) Option {
	return func(i *Ingestor) {
		i.logger = l
	}
}

// NewIngestor returns an Ingestor with the given options applied.
func NewIngestor(opts ...Option) *Ingestor {
	i := &Ingestor{}
	for _, o := range opts {
		o(i)
	}
	if i.logger == nil {
		i.logger = log.GetLoggerWithName("dataset")
	}
	return i
}

// Ingest reads path with a default Ingestor.
func Ingest(path string) (*Dataset, error) {
	return NewIngestor().Ingest(context.Background(), path)
}

// Ingest loads the dataset at path. The container is chosen from the file
// name; see SupportedExtensions.
func (i *Ingestor) Ingest(ctx context.Context, path string) (*Dataset, error) {
	logger := i.logger.With(log.PathKey, path, log.OperationKey, log.OperationIngest)

	format := DetectFormat(path)
	if format == FormatUnknown {
		return nil, tferrors.NewUnsupportedFormatError(path, filepath.Ext(path), SupportedExtensions())
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, tferrors.NewNoDataFoundError(path, "file does not exist")
		}
		return nil, tferrors.Wrapf(err, "stat %s", path)
	}

	var (
		ds  *Dataset
		err error
	)
	if format.IsArchive() {
		ds, err = i.ingestArchive(ctx, logger, path, format)
	} else {
		ds, err = ingestFlat(ctx, path, format)
	}
	if err != nil {
		return nil, err
	}

	if ds.Dropped() > 0 {
		logger.Warn("Dropped rows with missing values",
			log.DroppedRowsKey, ds.Dropped(),
			log.SamplesKey, ds.Len(),
		)
	}
	logger.Info("Dataset ingested",
		"format", format.String(),
		log.SamplesKey, ds.Len(),
		log.FeaturesKey, len(ds.Columns()),
	)
	return ds, nil
}

func ingestFlat(ctx context.Context, path string, format Format) (*Dataset, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, tferrors.Wrapf(err, "open %s", path)
	}
	defer fp.Close()

	var r io.Reader = fp
	switch format {
	case FormatCSVGzip:
		gz, err := gzip.NewReader(fp)
		if err != nil {
			return nil, tferrors.Wrapf(err, "open gzip %s", path)
		}
		defer gz.Close()
		r = gz
	case FormatCSVXz:
		xr, err := xz.NewReader(fp)
		if err != nil {
			return nil, tferrors.Wrapf(err, "open xz %s", path)
		}
		r = xr
	case FormatCSVZstd:
		zr, err := zstd.NewReader(fp)
		if err != nil {
			return nil, tferrors.Wrapf(err, "open zstd %s", path)
		}
		defer zr.Close()
		r = zr
	}
	return ReadCSV(ctx, r, path)
}

func (i *Ingestor) ingestArchive(ctx context.Context, logger log.Logger, path string, format Format) (*Dataset, error) {
	workDir := i.workDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	dest, err := os.MkdirTemp(workDir, "tabflow-ingest-")
	if err != nil {
		return nil, tferrors.Wrap(err, "create extraction directory")
	}
	defer func() {
		if err := os.RemoveAll(dest); err != nil {
			logger.Warn("Failed to remove extraction directory", err, "dir", dest)
		}
	}()

	switch format {
	case FormatZip:
		err = extractZip(ctx, path, dest)
	case FormatTar:
		err = extractTarFile(ctx, path, dest, false)
	case FormatTarGzip:
		err = extractTarFile(ctx, path, dest, true)
	}
	if err != nil {
		return nil, err
	}

	found, err := findCSVFiles(dest)
	if err != nil {
		return nil, tferrors.Wrapf(err, "search %s", path)
	}
	if len(found) == 0 {
		return nil, tferrors.NewNoDataFoundError(path, "archive contains no .csv file")
	}
	chosen := found[0]
	if len(found) > 1 {
		logger.Warn("Archive holds several CSV files; using the first",
			"chosen", chosen,
			"ignored", strings.Join(found[1:], ", "),
		)
	}

	fp, err := os.Open(filepath.Join(dest, filepath.FromSlash(chosen)))
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return ReadCSV(ctx, fp, path+"!"+chosen)
}
