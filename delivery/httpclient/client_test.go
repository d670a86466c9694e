package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientPost(t *testing.T) {
	ctx := context.Background()

	t.Run("success - status, body and headers", func(t *testing.T) {
		var gotBody string
		var gotContentType string
		var gotAuth string

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, _ := io.ReadAll(r.Body)
			gotBody = string(raw)
			gotContentType = r.Header.Get("Content-Type")
			gotAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte("accepted"))
		}))
		defer srv.Close()

		client := New()
		resp, err := client.Post(ctx, srv.URL, []byte(`{"a":1}`), map[string]string{"Authorization": "Bearer tok"}, time.Second)
		require.NoError(t, err)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, "accepted", resp.Body)
		assert.Positive(t, resp.Latency)
		assert.Equal(t, `{"a":1}`, gotBody)
		assert.Equal(t, "application/json", gotContentType)
		assert.Equal(t, "Bearer tok", gotAuth)
	})

	t.Run("non-2xx responses are not errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		}))
		defer srv.Close()

		resp, err := New().Post(ctx, srv.URL, []byte(`{}`), nil, time.Second)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})

	t.Run("response body is capped", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(strings.Repeat("x", maxResponseBody*4)))
		}))
		defer srv.Close()

		resp, err := New().Post(ctx, srv.URL, []byte(`{}`), nil, time.Second)
		require.NoError(t, err)
		assert.Len(t, resp.Body, maxResponseBody)
	})

	t.Run("timeout - returns before the destination responds", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer srv.Close()
		defer close(release)

		start := time.Now()
		_, err := New().Post(ctx, srv.URL, []byte(`{}`), nil, 50*time.Millisecond)
		elapsed := time.Since(start)

		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, elapsed, time.Second)
	})

	t.Run("error - unreachable destination", func(t *testing.T) {
		// porta reservada sem listener
		_, err := New().Post(ctx, "http://127.0.0.1:1", []byte(`{}`), nil, time.Second)
		require.Error(t, err)
	})

	t.Run("error - invalid url", func(t *testing.T) {
		_, err := New().Post(ctx, "http://[::1]:bad", []byte(`{}`), nil, time.Second)
		require.Error(t, err)
	})
}
