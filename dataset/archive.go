package dataset

import (
	"archive/tar"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	tferrors "github.com/YuminosukeSato/tabflow/pkg/errors"
)

// safeJoin joins name under dest and rejects entries that would land outside it.
func safeJoin(dest, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", tferrors.Newf("archive entry %q has an absolute path", name)
	}
	full := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", tferrors.Newf("archive entry %q escapes the extraction directory", name)
	}
	return full, nil
}

func writeFile(ctx context.Context, fullpath string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(fullpath), 0o755); err != nil {
		return err
	}
	fp, err := os.OpenFile(fullpath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer fp.Close()

	if _, err := io.Copy(fp, &ctxReader{ctx: ctx, r: src}); err != nil {
		return err
	}
	return fp.Close()
}

// extractZip unpacks every regular file of the zip at path into dest.
func extractZip(ctx context.Context, path, dest string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return tferrors.Wrapf(err, "open zip %s", path)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.FileInfo().IsDir() || !f.Mode().IsRegular() {
			continue
		}
		fullpath, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if err := func() error {
			rc, err := f.Open()
			if err != nil {
				return err
			}
			defer rc.Close()
			return writeFile(ctx, fullpath, rc)
		}(); err != nil {
			return tferrors.Wrapf(err, "extract %s from %s", f.Name, path)
		}
	}
	return nil
}

// extractTar unpacks regular files of a tar stream into dest. Links and
// special files are skipped.
func extractTar(ctx context.Context, src io.Reader, dest string) error {
	tarr := tar.NewReader(src)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tarr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return tferrors.Wrap(err, "read tar entry")
		}
		if hdr.Name == "" || hdr.Typeflag != tar.TypeReg {
			continue
		}
		fullpath, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}
		if err := writeFile(ctx, fullpath, tarr); err != nil {
			return tferrors.Wrapf(err, "extract %s", hdr.Name)
		}
	}
}

func extractTarFile(ctx context.Context, path, dest string, gzipped bool) error {
	fp, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fp.Close()

	var src io.Reader = fp
	if gzipped {
		gz, err := gzip.NewReader(fp)
		if err != nil {
			return tferrors.Wrapf(err, "open gzip %s", path)
		}
		defer gz.Close()
		src = gz
	}
	return extractTar(ctx, src, dest)
}

// findCSVFiles returns the .csv files below root as slash separated relative
// paths in sorted order. macOS resource forks are ignored.
func findCSVFiles(root string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "__MACOSX" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), "._") || !strings.EqualFold(filepath.Ext(d.Name()), ".csv") {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		found = append(found, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(found)
	return found, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
