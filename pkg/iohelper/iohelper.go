// Package iohelper provides helpers for safely reading HTTP response
// bodies with limits.
package iohelper

import "io"

// DefaultMaxBodySize is the general response capture limit (1MB).
// Capping the read prevents memory exhaustion from maliciously large
// responses.
const DefaultMaxBodySize int64 = 1024 * 1024

// ReadBody reads from an io.Reader with a size limit.
// If r is nil, returns an empty slice and no error.
func ReadBody(r io.Reader, maxSize int64) ([]byte, error) {
	if r == nil {
		return []byte{}, nil
	}
	return io.ReadAll(io.LimitReader(r, maxSize))
}

// DrainAndClose reads any remaining data from r and closes it if it's a
// ReadCloser, so the connection can be reused for HTTP keep-alive.
// Always returns nil error to allow use in defer.
func DrainAndClose(r io.Reader) error {
	if r == nil {
		return nil
	}

	// Drain is capped at 64KB; past that, drop the connection instead.
	_, _ = io.Copy(io.Discard, io.LimitReader(r, 64*1024))

	if rc, ok := r.(io.ReadCloser); ok {
		rc.Close()
	}
	return nil
}
