package artifact

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
)

const (
	manifestFile = "manifest.json"
	modelFile    = "model.gob"
	tmpPrefix    = ".tmp-"
)

// FileStore keeps one directory per run under its root:
//
//	<root>/<id>/manifest.json
//	<root>/<id>/model.gob
//
// Put writes into a hidden temp directory and renames it into place, so a
// directory named after a run is always complete.
type FileStore struct {
	root string
}

// NewFileStore creates root if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create artifact root %s", root)
	}
	return &FileStore{root: root}, nil
}

// Root returns the directory holding the runs.
func (s *FileStore) Root() string { return s.root }

// Put stores a. It fails with ArtifactExistsError when the id is taken.
func (s *FileStore) Put(ctx context.Context, a *RunArtifact) (err error) {
	if err := a.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	final := filepath.Join(s.root, a.ID)
	if _, err := os.Stat(final); err == nil {
		return errors.NewArtifactExistsError(a.ID)
	}

	manifest, err := encodeManifest(a)
	if err != nil {
		return err
	}
	var blob bytes.Buffer
	if err := model.SavePredictor(a.Model, &blob); err != nil {
		return errors.Wrapf(err, "encode model of run %s", a.ID)
	}

	tmp, err := os.MkdirTemp(s.root, tmpPrefix+a.ID+"-")
	if err != nil {
		return errors.Wrap(err, "create staging directory")
	}
	defer func() {
		if err != nil {
			os.RemoveAll(tmp)
		}
	}()

	if err := writeFile(filepath.Join(tmp, manifestFile), manifest); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(tmp, modelFile), blob.Bytes()); err != nil {
		return err
	}
	if err := os.Rename(tmp, final); err != nil {
		if _, statErr := os.Stat(final); statErr == nil {
			return errors.NewArtifactExistsError(a.ID)
		}
		return errors.Wrapf(err, "commit run %s", a.ID)
	}
	return nil
}

func writeFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.Wrapf(err, "sync %s", path)
	}
	return f.Close()
}

// Get loads the run with the given id, or the newest run for Latest.
func (s *FileStore) Get(ctx context.Context, id string) (*RunArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == Latest {
		ids, err := s.List(ctx)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return nil, errors.NewArtifactNotFoundError(Latest)
		}
		id = ids[0]
	}
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	dir := filepath.Join(s.root, id)
	a, err := readManifest(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.NewArtifactNotFoundError(id)
		}
		return nil, err
	}

	f, err := os.Open(filepath.Join(dir, modelFile))
	if err != nil {
		return nil, errors.Wrapf(err, "open model of run %s", id)
	}
	defer f.Close()
	a.Model, err = model.LoadPredictor(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load model of run %s", id)
	}
	return a, nil
}

func readManifest(dir string) (*RunArtifact, error) {
	b, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return decodeManifest(b)
}

// List returns the ids of complete runs, newest first. Directories without a
// manifest and staging directories are skipped.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "read artifact root %s", s.root)
	}

	runs := make([]*RunArtifact, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		a, err := readManifest(filepath.Join(s.root, e.Name()))
		if err != nil {
			continue
		}
		a.ID = e.Name()
		runs = append(runs, a)
	}
	sortNewestFirst(runs)

	ids := make([]string, len(runs))
	for i, a := range runs {
		ids[i] = a.ID
	}
	return ids, nil
}

func sortNewestFirst(runs []*RunArtifact) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID > runs[j].ID
	})
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }
