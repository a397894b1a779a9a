package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// OpenMode selects how a record store is opened for writing.
type OpenMode int

const (
	// ModeTruncate creates the store or empties an existing one.
	ModeTruncate OpenMode = iota
	// ModeAppend keeps existing records and writes after them.
	ModeAppend
)

func (m OpenMode) String() string {
	switch m {
	case ModeTruncate:
		return "truncate"
	case ModeAppend:
		return "append"
	default:
		return fmt.Sprintf("OpenMode(%d)", int(m))
	}
}

const tailBlockSize = 64 * 1024

// Log is an append-only JSON-lines record store. Each record occupies one
// line. A Log has exactly one writer.
type Log[T any] struct {
	path string
	file *os.File
}

// OpenLog opens the store at path for writing, creating parent directories
// as needed. ModeAppend first trims a torn trailing line left by a crash.
func OpenLog[T any](path string, mode OpenMode) (*Log[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	switch mode {
	case ModeTruncate:
		flags |= os.O_TRUNC
	case ModeAppend:
		if _, err := RepairTail(path); err != nil {
			return nil, err
		}
		flags |= os.O_APPEND
	default:
		return nil, fmt.Errorf("open %s: unknown mode %v", path, mode)
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Log[T]{path: path, file: f}, nil
}

// Path returns the file backing the store.
func (l *Log[T]) Path() string {
	return l.path
}

// Append writes one record.
func (l *Log[T]) Append(record T) error {
	return l.AppendAll([]T{record})
}

// AppendAll encodes every record and writes them with a single write call,
// so a reader never observes a partial group unless the process dies
// mid-write.
func (l *Log[T]) AppendAll(records []T) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return fmt.Errorf("%w: encode record: %w", ErrSerializationFailed, err)
		}
	}

	if _, err := l.file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", l.path, err)
	}
	return nil
}

// Sync commits written records to stable storage.
func (l *Log[T]) Sync() error {
	return l.file.Sync()
}

// Close syncs and closes the store.
func (l *Log[T]) Close() error {
	syncErr := l.file.Sync()
	closeErr := l.file.Close()
	return errors.Join(syncErr, closeErr)
}

// RepairTail truncates bytes after the last newline of the file at path.
// Returns true if anything was removed. A missing file is not an error.
func RepairTail(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	size := info.Size()
	if size == 0 {
		return false, nil
	}

	keep, err := lastNewlineEnd(f, size)
	if err != nil {
		return false, err
	}
	if keep == size {
		return false, nil
	}
	if err := f.Truncate(keep); err != nil {
		return false, fmt.Errorf("truncate %s: %w", path, err)
	}
	return true, f.Sync()
}

// lastNewlineEnd returns the offset just past the final newline, or 0.
func lastNewlineEnd(f *os.File, size int64) (int64, error) {
	buf := make([]byte, tailBlockSize)
	for end := size; end > 0; {
		start := max(end-tailBlockSize, 0)
		chunk := buf[:end-start]
		if _, err := f.ReadAt(chunk, start); err != nil && !errors.Is(err, io.EOF) {
			return 0, err
		}
		if i := bytes.LastIndexByte(chunk, '\n'); i >= 0 {
			return start + int64(i) + 1, nil
		}
		end = start
	}
	return 0, nil
}

// CountRecords returns the number of complete, non-blank lines in the
// store. A missing store counts as empty.
func CountRecords(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, tailBlockSize)
	count := 0
	content := false
	for {
		n, err := f.Read(buf)
		for _, b := range buf[:n] {
			switch b {
			case '\n':
				if content {
					count++
				}
				content = false
			case ' ', '\t', '\r':
			default:
				content = true
			}
		}
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return 0, fmt.Errorf("read %s: %w", path, err)
		}
	}
}

// ForEach decodes every complete record in order. Blank lines and a torn
// trailing line are skipped. Returns ErrStoreNotFound if path does not exist.
func ForEach[T any](path string, fn func(index int, record T) error) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrStoreNotFound, path)
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, tailBlockSize)
	index := 0
	for lineNo := 1; ; lineNo++ {
		line, err := r.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			// unterminated tail: a write that never completed
			return nil
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var record T
		if err := json.Unmarshal(line, &record); err != nil {
			return fmt.Errorf("%w: %s line %d: %w", ErrMalformedRecord, path, lineNo, err)
		}
		if err := fn(index, record); err != nil {
			return err
		}
		index++
	}
}

// Filter rewrites the store keeping only the records for which keep
// returns true. The new contents are written to a temporary file and
// renamed into place, so a crash leaves either the old or the new store.
// Returns the number of records removed. A missing store is not an error.
func Filter[T any](path string, keep func(record T) bool) (int, error) {
	records, err := ReadAll[T](path)
	if err != nil {
		if errors.Is(err, ErrStoreNotFound) {
			return 0, nil
		}
		return 0, err
	}

	kept := make([]T, 0, len(records))
	for _, r := range records {
		if keep(r) {
			kept = append(kept, r)
		}
	}
	removed := len(records) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, fmt.Errorf("rewrite %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	log := &Log[T]{path: tmpName, file: tmp}
	if err := log.AppendAll(kept); err != nil {
		log.Close()
		return 0, err
	}
	if err := log.Close(); err != nil {
		return 0, fmt.Errorf("rewrite %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return 0, fmt.Errorf("rewrite %s: %w", path, err)
	}
	return removed, nil
}

// ReadAll returns every complete record in the store.
func ReadAll[T any](path string) ([]T, error) {
	var records []T
	err := ForEach(path, func(_ int, record T) error {
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// LastRecord returns the final complete record of the store without
// reading the whole file. ok is false when the store is missing or empty.
func LastRecord[T any](path string) (record T, ok bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return record, false, nil
		}
		return record, false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return record, false, err
	}

	line, err := lastLine(f, info.Size())
	if err != nil || line == nil {
		return record, false, err
	}
	if err := json.Unmarshal(line, &record); err != nil {
		return record, false, fmt.Errorf("%w: %s last line: %w", ErrMalformedRecord, path, err)
	}
	return record, true, nil
}

// lastLine reads backwards from the end of f until it holds the last
// complete non-blank line.
func lastLine(f *os.File, size int64) ([]byte, error) {
	var tail []byte
	pos := size
	for {
		if line, done := lastCompleteLine(tail, pos == 0); done {
			return line, nil
		}
		n := min(int64(tailBlockSize), pos)
		pos -= n
		chunk := make([]byte, n, int(n)+len(tail))
		if _, err := f.ReadAt(chunk, pos); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		tail = append(chunk, tail...)
	}
}

// lastCompleteLine finds the last non-blank newline-terminated line in data.
// Unless atStart is set, a candidate only counts once the newline before it
// is also inside data.
func lastCompleteLine(data []byte, atStart bool) (line []byte, done bool) {
	end := bytes.LastIndexByte(data, '\n')
	for end >= 0 {
		start := bytes.LastIndexByte(data[:end], '\n')
		if start < 0 && !atStart {
			return nil, false
		}
		if candidate := data[start+1 : end]; len(bytes.TrimSpace(candidate)) > 0 {
			return candidate, true
		}
		end = start
	}
	return nil, atStart
}
