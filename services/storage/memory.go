package storagesvc

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/investiga/core"
)

// MemoryStorage keeps the files in memory, for tests and demo mode.
type MemoryStorage struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	signer
}

var _ core.FileStorage = (*MemoryStorage)(nil)

func NewMemoryStorage(conf *core.Config) *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string][]byte), signer: newSigner(conf)}
}

func (s *MemoryStorage) Save(ctx context.Context, key string, r io.Reader) (int64, string, error) {
	if key == "" {
		return 0, "", errInvalidKey
	}
	data, err := io.ReadAll(readerWithContext(ctx, r))
	if err != nil {
		return 0, "", errors.Wrap(err, "reading file")
	}
	sum := sha256.Sum256(data)

	s.mu.Lock()
	s.blobs[key] = data
	s.mu.Unlock()
	return int64(len(data)), hex.EncodeToString(sum[:]), nil
}

func (s *MemoryStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	data, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, core.ErrFileNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.blobs, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) SignedURL(_ context.Context, key, name string) (string, error) {
	return s.url(key, name)
}

func (s *MemoryStorage) Verify(token string) (string, string, error) {
	return s.verify(token)
}

// Keys returns the stored keys.
func (s *MemoryStorage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.blobs))
	for k := range s.blobs {
		keys = append(keys, k)
	}
	return keys
}
