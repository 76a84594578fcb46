package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/certstudio/core"
	"github.com/trezcool/certstudio/core/certificate"
)

var ErrInvalidKey = errors.New("invalid blob key")

// LocalStore keeps artifacts as files of a directory, served under a public URL prefix.
type LocalStore struct {
	dir       string
	urlPrefix string
}

var _ certificate.BlobStore = (*LocalStore)(nil)

func NewLocalStore(dir, urlPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating artifact directory")
	}
	return &LocalStore{dir: dir, urlPrefix: strings.TrimSuffix(urlPrefix, "/")}, nil
}

func NewLocalStoreFromConfig(conf *core.Config) (*LocalStore, error) {
	return NewLocalStore(conf.Storage.ArtifactDir, conf.Storage.PublicURLPrefix)
}

func (s *LocalStore) Dir() string { return s.dir }

// path maps a key to a file of the store. Keys are flat file names.
func (s *LocalStore) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") || strings.ContainsAny(key, `/\`) {
		return "", errors.Wrap(ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key), nil
}

// Put writes the blob atomically: readers never see a partial file.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ string) (string, error) {
	name, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", errors.Wrap(err, "creating temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", errors.Wrap(err, "writing blob")
	}
	if err := tmp.Close(); err != nil {
		return "", errors.Wrap(err, "closing blob")
	}
	if err := os.Rename(tmp.Name(), name); err != nil {
		return "", errors.Wrap(err, "storing blob")
	}
	return s.urlPrefix + "/" + key, nil
}

func (s *LocalStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	name, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "opening blob")
	}
	return f, nil
}

// Delete removes the blob. Deleting a missing blob is not an error.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	name, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting blob")
	}
	return nil
}
