// Package download resolves a model filename to a local file, fetching it
// from the remote host when absent. Interrupted transfers are resumed with
// byte-range requests from the last confirmed offset; a failed download
// never leaves a partial file behind.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"localllm/internal/common/fsutil"
	"localllm/pkg/types"
)

// DefaultBaseURL is the conventional per-filename download location, used
// when the catalog record carries no explicit URL.
const DefaultBaseURL = "https://gpt4all.io/models/gguf/"

// chunkSize is the fixed read granularity (1 MiB).
const chunkSize = 1 << 20

// ProgressFunc observes download progress: delta is the bytes gained since
// the previous call, written the running offset, total the declared size
// (0 when unknown).
type ProgressFunc func(delta, written, total int64)

// Downloader performs resumable model downloads. The zero value is not
// usable; construct with New.
type Downloader struct {
	client   *http.Client
	log      zerolog.Logger
	progress ProgressFunc
}

// New creates a Downloader. client may be nil for http.DefaultClient and
// progress may be nil when no observer is wanted.
func New(client *http.Client, log zerolog.Logger, progress ProgressFunc) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{client: client, log: log, progress: progress}
}

// EnsureLocal returns the path of filename under dir, downloading it first
// when absent. An already-present file is returned as-is with no content
// re-validation. An empty url derives the conventional per-filename URL.
func (d *Downloader) EnsureLocal(ctx context.Context, filename, dir, url string) (string, error) {
	dest := filepath.Join(dir, filename)
	if fsutil.PathExists(dest) {
		d.log.Debug().Str("path", dest).Msg("model file already present")
		return dest, nil
	}
	if url == "" {
		url = DefaultBaseURL + filename
	}
	if err := d.Fetch(ctx, url, dest); err != nil {
		return "", err
	}
	d.log.Info().Str("path", dest).Msg("model downloaded")
	return dest, nil
}

// Fetch streams url into dest. On any failure the partial file is removed
// before the error is returned, so a subsequent call starts clean.
func (d *Downloader) Fetch(ctx context.Context, url, dest string) (err error) {
	defer func() {
		if err != nil {
			failuresTotal.WithLabelValues(failureReason(err)).Inc()
			d.cleanup(dest)
		}
	}()

	resp, err := d.request(ctx, url, 0)
	if err != nil {
		return err
	}
	defer func() {
		if resp != nil {
			resp.Body.Close()
		}
	}()

	// Declared size; 0 means unknown and disables the completeness check.
	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", dest, cerr)
		}
	}()

	buf := make([]byte, chunkSize)
	var written int64
	for {
		roundStart := written
		rerr := d.drain(resp.Body, f, buf, &written, total)
		if rerr != nil {
			var pe *permanentError
			if errors.As(rerr, &pe) {
				return pe.err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// The socket was closed during a read. Retry from the
			// current offset.
			resp.Body.Close()
			if resp, err = d.request(ctx, url, written); err != nil {
				return err
			}
			continue
		}
		if total != 0 && written < total {
			if written == roundStart {
				return types.ErrStalledDownload(written, total)
			}
			// Server closed the connection prematurely. Retry.
			resp.Body.Close()
			if resp, err = d.request(ctx, url, written); err != nil {
				return err
			}
			continue
		}
		return nil
	}
}

// drain copies the whole response body to f in fixed-size chunks, advancing
// *written and reporting deltas. A clean end-of-stream returns nil. Read
// errors are retryable; write errors come back wrapped as permanent.
func (d *Downloader) drain(body io.Reader, f *os.File, buf []byte, written *int64, total int64) error {
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return &permanentError{fmt.Errorf("write model file: %w", werr)}
			}
			*written += int64(n)
			bytesTotal.Add(float64(n))
			if d.progress != nil {
				d.progress(int64(n), *written, total)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

// permanentError marks a failure that must not be retried.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// request issues the GET, with a byte-range header when resuming. A resume
// requires a 206 response whose Content-Range starts at the requested
// offset; anything else means the server cannot resume.
func (d *Downloader) request(ctx context.Context, url string, offset int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if offset > 0 {
		d.log.Warn().Int64("offset", offset).Msg("download interrupted, resuming")
		resumesTotal.Inc()
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, types.ErrRemote(err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return nil, types.ErrRemoteStatus(resp.Status)
	}
	if offset > 0 {
		cr := resp.Header.Get("Content-Range")
		if resp.StatusCode != http.StatusPartialContent || !strings.HasPrefix(cr, fmt.Sprintf("bytes %d-", offset)) {
			resp.Body.Close()
			return nil, types.ErrRangeUnsupported(url)
		}
	}
	return resp, nil
}

// cleanup removes the partial file. Removal failures are logged and
// swallowed; the download error already dominates.
func (d *Downloader) cleanup(dest string) {
	d.log.Debug().Str("path", dest).Msg("cleaning up interrupted download")
	if rmErr := os.Remove(dest); rmErr != nil && !os.IsNotExist(rmErr) {
		d.log.Warn().Err(rmErr).Str("path", dest).Msg("failed to remove partial download")
	}
}
