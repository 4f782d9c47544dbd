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

func TestFetch_ReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	f := NewHTTP(srv.Client(), time.Second)

	body, err := f.Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"items":[]}`), body)
}

func TestFetch_MergesQueryParams(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewHTTP(srv.Client(), time.Second)

	_, err := f.Fetch(context.Background(), srv.URL+"?existing=1", map[string]string{"q": "widgets"})
	require.NoError(t, err)
	assert.Equal(t, "existing=1&q=widgets", gotQuery)
}

func TestFetch_NonSuccessStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewHTTP(srv.Client(), time.Second)

	_, err := f.Fetch(context.Background(), srv.URL, nil)
	assert.ErrorContains(t, err, "unexpected status 503")
}

func TestFetch_TimeoutAborts(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	f := NewHTTP(srv.Client(), 20*time.Millisecond)

	_, err := f.Fetch(context.Background(), srv.URL, nil)
	assert.Error(t, err)
}

func TestFetch_InvalidURL(t *testing.T) {
	f := NewHTTP(nil, time.Second)

	_, err := f.Fetch(context.Background(), "http://\x00invalid", nil)
	assert.Error(t, err)
}
