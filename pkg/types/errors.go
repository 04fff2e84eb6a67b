package types

import "fmt"

// remoteError signals that the catalog or download server was unreachable
// or answered with a non-success status.
type remoteError struct {
	status string
	err    error
}

func (e remoteError) Error() string {
	if e.err != nil {
		return "remote request failed: " + e.err.Error()
	}
	return "remote request failed: HTTP " + e.status
}

func (e remoteError) Unwrap() error { return e.err }

// ErrRemoteStatus constructs a remoteError from an HTTP status line.
func ErrRemoteStatus(status string) error { return remoteError{status: status} }

// ErrRemote wraps a transport-level failure as a remoteError.
func ErrRemote(err error) error { return remoteError{err: err} }

// IsRemote reports whether err indicates a failed catalog/server request.
func IsRemote(err error) bool {
	_, ok := err.(remoteError)
	return ok
}

// rangeUnsupportedError signals that a download was interrupted and the
// server refused (or mangled) the byte-range resume request.
type rangeUnsupportedError struct{ url string }

func (e rangeUnsupportedError) Error() string {
	return "download interrupted and server does not support range requests: " + e.url
}

func ErrRangeUnsupported(url string) error { return rangeUnsupportedError{url: url} }

// IsRangeUnsupported reports whether err indicates a server that cannot resume.
func IsRangeUnsupported(err error) bool {
	_, ok := err.(rangeUnsupportedError)
	return ok
}

// stalledDownloadError signals a resume round that gained zero bytes while
// still short of the declared total.
type stalledDownloadError struct {
	written int64
	total   int64
}

func (e stalledDownloadError) Error() string {
	return fmt.Sprintf("download not making progress (%d/%d bytes), aborting", e.written, e.total)
}

func ErrStalledDownload(written, total int64) error {
	return stalledDownloadError{written: written, total: total}
}

// IsStalledDownload reports whether err indicates the no-progress guard fired.
func IsStalledDownload(err error) bool {
	_, ok := err.(stalledDownloadError)
	return ok
}

// notFoundError signals a model file that is absent locally while
// downloading is disallowed, or a missing model directory.
type notFoundError struct{ what string }

func (e notFoundError) Error() string { return e.what + " does not exist" }

func ErrNotFound(what string) error { return notFoundError{what: what} }

// IsNotFound reports whether err indicates a missing local model file or directory.
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}

// templateError signals a prompt template rejected at session entry.
type templateError struct{ msg string }

func (e templateError) Error() string { return e.msg }

func ErrTemplate(msg string) error { return templateError{msg: msg} }

// IsTemplate reports whether err indicates a malformed or ambiguous template.
func IsTemplate(err error) bool {
	_, ok := err.(templateError)
	return ok
}

// configError signals an invalid caller-supplied parameter, rejected before
// any engine call is made.
type configError struct{ msg string }

func (e configError) Error() string { return e.msg }

func ErrConfig(msg string) error { return configError{msg: msg} }

// IsConfig reports whether err indicates an invalid parameter value.
func IsConfig(err error) bool {
	_, ok := err.(configError)
	return ok
}
