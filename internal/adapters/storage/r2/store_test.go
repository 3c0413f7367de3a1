package r2

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeBucket(t *testing.T) *Store {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/originals/deserts/dune.jpg":
			w.Header().Set("ETag", `"abc"`)
			w.Header().Set("Content-Length", "1024")
			w.Header().Set("Content-Type", "image/jpeg")
			w.Header().Set("Last-Modified", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Format(http.TimeFormat))
			w.WriteHeader(http.StatusOK)
		case "/originals/broken.jpg":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	s, err := New(Config{
		Endpoint:        srv.URL,
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Bucket:          "originals",
		MaxRetries:      1,
	})
	require.NoError(t, err)
	return s
}

func TestExists(t *testing.T) {
	s := fakeBucket(t)
	ctx := context.Background()

	ok, err := s.Exists(ctx, "deserts/dune.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "deserts/missing.jpg")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Exists(ctx, "broken.jpg")
	assert.Error(t, err)
}

func TestPresignedURL(t *testing.T) {
	s := fakeBucket(t)
	u, err := s.PresignedURL(context.Background(), "deserts/dune.jpg", time.Hour)
	require.NoError(t, err)
	assert.Contains(t, u, "/originals/deserts/dune.jpg")
	assert.Contains(t, u, "X-Amz-Expires=3600")
	assert.True(t, strings.HasPrefix(u, "http://"))
}

func TestNew(t *testing.T) {
	_, err := New(Config{Endpoint: "https://acct.r2.cloudflarestorage.com"})
	assert.Error(t, err)

	host, secure, err := splitEndpoint("https://acct.r2.cloudflarestorage.com/")
	require.NoError(t, err)
	assert.Equal(t, "acct.r2.cloudflarestorage.com", host)
	assert.True(t, secure)
}
