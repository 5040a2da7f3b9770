package gdrive

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"car-price-estimator/utils"
)

const csvBody = "make,model,price,year\nSEAT,Ibiza,9000,2018\n"

func testFetcher(resolve ConfirmResolver) *Fetcher {
	return &Fetcher{
		client:  http.DefaultClient,
		logger:  utils.NewNopLogger(),
		retry:   &utils.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond},
		timeout: 5 * time.Second,
		resolve: resolve,
	}
}

func noBrowser(context.Context, string) (string, error) {
	return "", errors.New("browser not expected")
}

func TestFetchDirectDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(csvBody))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "data", "data.csv")
	n, err := testFetcher(noBrowser).Fetch(context.Background(), srv.URL+"/uc?id=abc", dest)
	require.NoError(t, err)
	assert.Equal(t, int64(len(csvBody)), n)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, csvBody, string(got))
}

func TestFetchResolvesInterstitial(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/uc", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<form id="download-form" action="/confirmed"></form>`))
	})
	mux.HandleFunc("/confirmed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte(csvBody))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var resolved string
	resolve := func(_ context.Context, pageURL string) (string, error) {
		resolved = pageURL
		return srv.URL + "/confirmed", nil
	}

	dest := filepath.Join(t.TempDir(), "data.csv")
	_, err := testFetcher(resolve).Fetch(context.Background(), srv.URL+"/uc", dest)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/uc", resolved)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, csvBody, string(got))
}

func TestFetchRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "data.csv")
	_, err := testFetcher(noBrowser).Fetch(context.Background(), srv.URL, dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, int32(3), calls.Load())

	_, statErr := os.Stat(dest)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestFetchRecoversAfterTransientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(csvBody))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "data.csv")
	_, err := testFetcher(noBrowser).Fetch(context.Background(), srv.URL, dest)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchKeepsExistingFileOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0644))

	resolve := func(context.Context, string) (string, error) { return "", ErrNoConfirmForm }
	_, err := testFetcher(resolve).Fetch(context.Background(), srv.URL, dest)
	assert.ErrorIs(t, err, ErrNoConfirmForm)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))
}

func TestIsHTML(t *testing.T) {
	assert.True(t, isHTML("text/html; charset=utf-8"))
	assert.False(t, isHTML("text/csv"))
	assert.False(t, isHTML(""))
}
