package mailbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arda-labs/reorder-cli/internal/resilience"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-token", WithBaseURL(srv.URL), WithRateLimit(1000, 1000))
}

func TestSearch(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "from:(uline.com)", r.URL.Query().Get("q"))
		assert.Equal(t, "2", r.URL.Query().Get("max_results"))
		w.Write([]byte(`{"messages":[{"id":"m1"},{"id":"m2"},{"id":"m3"}]}`))
	})

	refs, err := c.Search(context.Background(), "from:(uline.com)", 2)
	require.NoError(t, err)
	// Client-side cap holds even when the relay over-returns.
	require.Len(t, refs, 2)
	assert.Equal(t, "m1", refs[0].ID)
}

func TestFetch(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages/m1", r.URL.Path)
		w.Write([]byte(`{
			"id": "m1",
			"from": "orders@uline.com",
			"subject": "Order confirmation",
			"date": "2024-03-01T10:30:00Z",
			"body": "Thank you for your order."
		}`))
	})

	email, err := c.Fetch(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "orders@uline.com", email.From)
	assert.Equal(t, 2024, email.Date.Year())
	assert.Equal(t, "Thank you for your order.", email.Body)
}

func TestFetchCharsetDecoding(t *testing.T) {
	t.Parallel()

	// "こんにちは" in ISO-2022-JP. The encoding is escape-sequence based and
	// pure ASCII on the wire, so it passes through JSON intact.
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"m1","from":"a@b.com","subject":"s","date":"2024-03-01T10:30:00Z","body":"\u001b$B$3$s$K$A$O\u001b(B","charset":"iso-2022-jp"}`))
	})

	email, err := c.Fetch(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "こんにちは", email.Body)
}

func TestFetchDateFallback(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"m1","from":"a@b.com","subject":"s","date":"Fri, 01 Mar 2024 10:30:00 +0000","body":"x"}`))
	})

	email, err := c.Fetch(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 2024, email.Date.Year())
}

func TestStatusMapping(t *testing.T) {
	t.Parallel()

	t.Run("401 is an auth error", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		_, err := c.Search(context.Background(), "q", 1)
		assert.True(t, resilience.IsAuth(err))
		assert.False(t, resilience.IsTransient(err))
	})

	t.Run("429 is a rate limit with retry-after", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "10")
			w.WriteHeader(http.StatusTooManyRequests)
		})
		_, err := c.Search(context.Background(), "q", 1)
		assert.True(t, resilience.IsRateLimit(err))
	})

	t.Run("503 is transient", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		_, err := c.Search(context.Background(), "q", 1)
		assert.True(t, resilience.IsTransient(err))
		assert.False(t, resilience.IsRateLimit(err))
	})

	t.Run("404 is a plain error", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
		_, err := c.Fetch(context.Background(), "gone")
		require.Error(t, err)
		assert.False(t, resilience.IsTransient(err))
		assert.False(t, resilience.IsAuth(err))
	})
}
