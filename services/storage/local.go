package storagesvc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
)

var errInvalidKey = errors.New("invalid storage key")

// LocalStorage keeps the files under a root directory of the local disk.
type LocalStorage struct {
	root string
	signer
}

var _ core.FileStorage = (*LocalStorage)(nil)

func NewLocalStorage(conf *core.Config) (*LocalStorage, error) {
	root := conf.Storage.Root
	if !filepath.IsAbs(root) {
		root = filepath.Join(conf.WorkDir, root)
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, errors.Wrap(err, "creating storage root")
	}
	return &LocalStorage{root: root, signer: newSigner(conf)}, nil
}

// path resolves key under the root, rejecting keys escaping it.
func (s *LocalStorage) path(key string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if clean == string(filepath.Separator) || strings.Contains(key, "..") {
		return "", errInvalidKey
	}
	return filepath.Join(s.root, clean), nil
}

func (s *LocalStorage) Save(ctx context.Context, key string, r io.Reader) (int64, string, error) {
	p, err := s.path(key)
	if err != nil {
		return 0, "", err
	}
	if err = os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return 0, "", errors.Wrap(err, "creating file directory")
	}

	// write to a temp file first so that readers never see partial content
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return 0, "", errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), readerWithContext(ctx, r))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, "", errors.Wrap(err, "writing file")
	}
	if err = os.Rename(tmp.Name(), p); err != nil {
		return 0, "", errors.Wrap(err, "moving file")
	}
	return size, hex.EncodeToString(h.Sum(nil)), nil
}

func (s *LocalStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, core.ErrFileNotFound
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrFileNotFound
		}
		return nil, errors.Wrap(err, "opening file")
	}
	return f, nil
}

// Delete ignores missing files.
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err = os.Remove(p); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting file")
	}
	return nil
}

func (s *LocalStorage) SignedURL(_ context.Context, key, name string) (string, error) {
	return s.url(key, name)
}

func (s *LocalStorage) Verify(token string) (string, string, error) {
	return s.verify(token)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

func (cr *ctxReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
