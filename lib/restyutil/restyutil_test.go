package restyutil

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fastRetry() *RetryPolicy {
	return &RetryPolicy{
		Count:       5,
		WaitTime:    time.Millisecond,
		MaxWaitTime: time.Millisecond * 5,
	}
}

func TestRetriesTransientFailures(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client, err := NewBrowserClient(ClientOptions{BaseUrl: server.URL, Retry: fastRetry()})
	require.NoError(t, err)

	res, err := client.R().Get("/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode())
	require.Equal(t, 3, calls)
}

func TestRetriesTooManyRequests(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewBrowserClient(ClientOptions{BaseUrl: server.URL, Retry: fastRetry()})
	require.NoError(t, err)

	res, err := client.R().Get("/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode())
	require.Equal(t, 2, calls)
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewBrowserClient(ClientOptions{BaseUrl: server.URL, Retry: fastRetry()})
	require.NoError(t, err)

	res, err := client.R().Get("/")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, res.StatusCode())
	require.Equal(t, 1, calls)
}

func TestInstrumentClientDumpsTranscripts(t *testing.T) {
	// transcripts are only captured when debug logging is on
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))
	t.Cleanup(func() { slog.SetDefault(previous) })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("member roster"))
	}))
	defer server.Close()

	client, err := NewBrowserClient(ClientOptions{BaseUrl: server.URL, Retry: &RetryPolicy{}})
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "transcripts")
	InstrumentClient(client, nil, NewFilesystemOutput(dir))

	_, err = client.R().Get("/members/directory")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	contents, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.Contains(t, string(contents), "/members/directory")
	require.Contains(t, string(contents), "---- RESPONSE ----")
	require.Contains(t, string(contents), "member roster")
}

func TestCookieJarPersistsAcrossRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/set":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		case "/check":
			cookie, err := r.Cookie("session")
			if err != nil || cookie.Value != "abc" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}
	}))
	defer server.Close()

	client, err := NewBrowserClient(ClientOptions{BaseUrl: server.URL})
	require.NoError(t, err)

	_, err = client.R().Get("/set")
	require.NoError(t, err)
	res, err := client.R().Get("/check")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode())
}
