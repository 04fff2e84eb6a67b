package download

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"localllm/pkg/types"
)

func testBody(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

// flakyServer serves body, cutting the first response short at cut bytes.
// Later requests honor Range and serve the remainder.
type flakyServer struct {
	mu       sync.Mutex
	body     []byte
	cut      int
	requests []string // recorded Range headers, "" for none
}

func (fs *flakyServer) handler(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	fs.requests = append(fs.requests, r.Header.Get("Range"))
	n := len(fs.requests)
	fs.mu.Unlock()

	rng := r.Header.Get("Range")
	if rng == "" {
		w.Header().Set("Content-Length", fmt.Sprint(len(fs.body)))
		w.WriteHeader(http.StatusOK)
		if n == 1 && fs.cut < len(fs.body) {
			// Short write against the declared length: the server
			// closes the connection mid-body.
			w.(http.Flusher).Flush()
			_, _ = w.Write(fs.body[:fs.cut])
			return
		}
		_, _ = w.Write(fs.body)
		return
	}

	var offset int
	fmt.Sscanf(rng, "bytes=%d-", &offset)
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, len(fs.body)-1, len(fs.body)))
	w.Header().Set("Content-Length", fmt.Sprint(len(fs.body)-offset))
	w.WriteHeader(http.StatusPartialContent)
	_, _ = w.Write(fs.body[offset:])
}

func newDownloader(t *testing.T) *Downloader {
	t.Helper()
	return New(nil, zerolog.Nop(), nil)
}

func TestFetchUninterrupted(t *testing.T) {
	body := testBody(3 * chunkSize / 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "model.gguf")
	if err := newDownloader(t).Fetch(context.Background(), srv.URL, dest); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("downloaded file differs: got %d bytes want %d", len(got), len(body))
	}
}

func TestFetchResumesFromOffset(t *testing.T) {
	body := testBody(2 * chunkSize)
	fs := &flakyServer{body: body, cut: chunkSize / 2}
	srv := httptest.NewServer(http.HandlerFunc(fs.handler))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "model.gguf")
	if err := newDownloader(t).Fetch(context.Background(), srv.URL, dest); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("resumed file not byte-identical (got %d bytes, want %d)", len(got), len(body))
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d (%q)", len(fs.requests), fs.requests)
	}
	want := fmt.Sprintf("bytes=%d-", fs.cut)
	if fs.requests[1] != want {
		t.Fatalf("resume did not start at the interrupted offset: got %q want %q", fs.requests[1], want)
	}
}

func TestFetchStalledDownload(t *testing.T) {
	total := chunkSize
	var requests int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		if rng := r.Header.Get("Range"); rng != "" {
			var offset int
			fmt.Sscanf(rng, "bytes=%d-", &offset)
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", offset, total-1, total))
			w.Header().Set("Content-Length", "0")
			w.WriteHeader(http.StatusPartialContent)
			return
		}
		// First response carries some bytes, then every resume round
		// yields nothing.
		w.Header().Set("Content-Length", fmt.Sprint(total))
		_, _ = w.Write(testBody(total / 4))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "model.gguf")
	err := newDownloader(t).Fetch(context.Background(), srv.URL, dest)
	if err == nil || !types.IsStalledDownload(err) {
		t.Fatalf("expected StalledDownloadError, got %v", err)
	}
	mu.Lock()
	if requests > 3 {
		t.Fatalf("stall guard did not bound retries: %d requests", requests)
	}
	mu.Unlock()
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("partial file not cleaned up")
	}
}

func TestFetchRangeUnsupported(t *testing.T) {
	total := chunkSize
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Ignore Range entirely and restart from zero with a 200.
		w.Header().Set("Content-Length", fmt.Sprint(total))
		if r.Header.Get("Range") == "" {
			_, _ = w.Write(testBody(total / 2))
			return
		}
		_, _ = w.Write(testBody(total))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "model.gguf")
	err := newDownloader(t).Fetch(context.Background(), srv.URL, dest)
	if err == nil || !types.IsRangeUnsupported(err) {
		t.Fatalf("expected RangeUnsupportedError, got %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("partial file not cleaned up")
	}
}

func TestFetchRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "model.gguf")
	err := newDownloader(t).Fetch(context.Background(), srv.URL, dest)
	if err == nil || !types.IsRemote(err) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("no file should remain after a failed request")
	}
}

func TestFetchUnknownLength(t *testing.T) {
	body := []byte(strings.Repeat("x", 4096))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No Content-Length: chunked transfer, total unknown.
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "model.gguf")
	if err := newDownloader(t).Fetch(context.Background(), srv.URL, dest); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	got, _ := os.ReadFile(dest)
	if !bytes.Equal(got, body) {
		t.Fatalf("unexpected content for unknown-length download")
	}
}

func TestEnsureLocalExistingFileSkipsNetwork(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "model.gguf")
	if err := os.WriteFile(dest, []byte("already here"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	got, err := newDownloader(t).EnsureLocal(context.Background(), "model.gguf", dir, srv.URL)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if got != dest {
		t.Fatalf("path: got %q want %q", got, dest)
	}
	if hits != 0 {
		t.Fatalf("existing file must not be re-fetched")
	}
}

func TestFetchReportsProgress(t *testing.T) {
	body := testBody(chunkSize + 100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	var sum int64
	d := New(nil, zerolog.Nop(), func(delta, written, total int64) {
		sum += delta
		if written != sum {
			t.Errorf("written %d does not track deltas %d", written, sum)
		}
		if total != int64(len(body)) {
			t.Errorf("total: got %d want %d", total, len(body))
		}
	})
	dest := filepath.Join(t.TempDir(), "model.gguf")
	if err := d.Fetch(context.Background(), srv.URL, dest); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if sum != int64(len(body)) {
		t.Fatalf("progress deltas sum to %d, want %d", sum, len(body))
	}
}
