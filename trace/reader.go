package trace

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Reader streams Records from a single per-core trace file. It mirrors the
// extractor's own file layout: one flat binary stream of fixed records, read
// sequentially and never rewound.
type Reader struct {
	path string
	file *os.File
}

// Open opens the trace file at path, returning os.Open's error unchanged
// (a missing file satisfies errors.Is(err, fs.ErrNotExist)). Whether that
// error is fatal is the caller's decision; the nmpsim command exits on it.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{path: path, file: f}, nil
}

// PerCorePath builds the conventional "<base>.<coreID>" trace file name.
func PerCorePath(base string, coreID int) string {
	return fmt.Sprintf("%s.%d", base, coreID)
}

// Next reads the next Record. It returns (rec, true, nil) on success,
// (Record{}, false, nil) at a clean end of file, and a non-nil error for any
// other failure, including a truncated final record.
func (r *Reader) Next() (Record, bool, error) {
	var rec Record
	_, err := rec.ReadFrom(r.file)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, false, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Record{}, false, fmt.Errorf("trace: truncated record in %s: %w", r.path, err)
		}
		return Record{}, false, fmt.Errorf("trace: read %s: %w", r.path, err)
	}
	return rec, true, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.file.Close()
}
