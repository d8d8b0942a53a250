package storagesvc

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/investiga/core"
)

// sha256 of "hello"
const helloSum = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func testConf(t *testing.T) *core.Config {
	return &core.Config{
		SecretKey: "secret",
		WorkDir:   t.TempDir(),
		Storage: core.StorageConfig{
			Root:    "uploads",
			BaseURL: "http://api.test/v1/files/",
			URLTTL:  time.Minute,
		},
	}
}

func TestStorages(t *testing.T) {
	conf := testConf(t)
	local, err := NewLocalStorage(conf)
	require.NoError(t, err)

	for name, s := range map[string]core.FileStorage{"local": local, "memory": NewMemoryStorage(conf)} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "scholarships/1/abc"

			size, sum, err := s.Save(ctx, key, strings.NewReader("hello"))
			require.NoError(t, err)
			assert.Equal(t, int64(5), size)
			assert.Equal(t, helloSum, sum)

			rc, err := s.Open(ctx, key)
			require.NoError(t, err)
			data, _ := io.ReadAll(rc)
			_ = rc.Close()
			assert.Equal(t, "hello", string(data))

			url, err := s.SignedURL(ctx, key, "cv.pdf")
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(url, "http://api.test/v1/files/"))
			gotKey, gotName, err := s.Verify(strings.TrimPrefix(url, "http://api.test/v1/files/"))
			require.NoError(t, err)
			assert.Equal(t, key, gotKey)
			assert.Equal(t, "cv.pdf", gotName)

			require.NoError(t, s.Delete(ctx, key))
			require.NoError(t, s.Delete(ctx, key)) // missing files are ignored
			_, err = s.Open(ctx, key)
			assert.Equal(t, core.ErrFileNotFound, err)
		})
	}
}

func TestSigner_Verify(t *testing.T) {
	conf := testConf(t)
	s := newSigner(conf)

	expired := s
	expired.ttl = -time.Minute
	url, err := expired.url("k", "n")
	require.NoError(t, err)
	_, _, err = s.verify(strings.TrimPrefix(url, s.baseURL+"/"))
	assert.Equal(t, ErrInvalidToken, err)

	other := s
	other.secret = []byte("other")
	url, err = other.url("k", "n")
	require.NoError(t, err)
	_, _, err = s.verify(strings.TrimPrefix(url, s.baseURL+"/"))
	assert.Equal(t, ErrInvalidToken, err)

	_, _, err = s.verify("garbage")
	assert.Equal(t, ErrInvalidToken, err)
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(testConf(t))
	require.NoError(t, err)
	_, _, err = s.Save(context.Background(), "../outside", strings.NewReader("x"))
	assert.Error(t, err)
}
