// Package file implements a local filesystem-backed data source with
// character-set fallback for legacy sales exports.
package file

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// Local is a filesystem data source that opens files from the local disk.
type Local struct{ path string }

// NewLocal returns a new Local data source bound to the provided filesystem
// path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Open reads the configured path and returns a reader over its UTF-8 content.
//
// Encoding policy (mirrors the historical importer):
//   - The file is tried as UTF-8 first.
//   - If the content is not valid UTF-8, it is re-decoded as ISO-8859-1.
//     Latin-1 decoding cannot fail, so the fallback always yields usable text.
//
// The whole file is read up front; the import model assumes the export fits in
// memory, and validating UTF-8 requires seeing every byte anyway.
//
// Behavior:
//   - If the context is already canceled at the time of the call, Open returns
//     the context error immediately without touching the filesystem.
//   - Filesystem errors are wrapped with the path for context while permitting
//     errors.Is checks by callers (e.g., errors.Is(err, os.ErrNotExist)).
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}

	if utf8.Valid(data) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}

	dec := transform.NewReader(bytes.NewReader(data), charmap.ISO8859_1.NewDecoder())
	return io.NopCloser(dec), nil
}
