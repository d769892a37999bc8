package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchHTML(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Catalogue</title><style>p{}</style></head>
<body><script>var x = "404 Not Found";</script><p>Record   found</p></body></html>`))
	}))
	defer ts.Close()

	c := New(Options{UserAgent: "test-agent"})
	defer c.Close()

	text, err := c.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "Catalogue Record found", text)
	assert.NotContains(t, text, "404 Not Found")
}

func TestFetchPlainText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("plain <b>body</b>"))
	}))
	defer ts.Close()

	c := New(Options{})
	defer c.Close()

	text, err := c.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "plain <b>body</b>", text)
}

func TestFetchErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	c := New(Options{})
	defer c.Close()

	_, err := c.Fetch(context.Background(), ts.URL)
	assert.ErrorIs(t, err, ErrStatus)

	_, err = c.Fetch(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyURL)

	_, err = c.Fetch(context.Background(), "://bad url")
	assert.Error(t, err)
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	c := New(Options{Timeout: 50 * time.Millisecond})
	defer c.Close()

	_, err := c.Fetch(context.Background(), ts.URL)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchBodyLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer ts.Close()

	c := New(Options{MaxBodyBytes: 4})
	defer c.Close()

	text, err := c.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "0123", text)
}

func TestPageText(t *testing.T) {
	text, err := PageText("<div>one<noscript>hidden</noscript><span> two </span></div>")
	require.NoError(t, err)
	assert.Equal(t, "one two", text)
}
