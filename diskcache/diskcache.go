// Package diskcache implements an append-only keyed record log used to
// persist compiled shader binaries across process runs.
//
// A store file is a fixed header followed by a sequence of records. Each
// record carries an opaque key and an opaque payload; later records for the
// same key supersede earlier ones. Opening a store replays every record in
// file order into a caller-supplied sink, then positions the file for
// appending. There is no compaction and no in-place rewriting: the store
// trades file size for crash-safe, sequential writes.
package diskcache

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Store file format constants.
const (
	// magic identifies a store file ("GGSC" little-endian).
	magic uint32 = 0x43534747

	// headerSize is the byte size of the file header:
	// magic, format version, key-schema version.
	headerSize = 12

	// recordHeaderSize is the byte size of a record prefix:
	// key length, payload length.
	recordHeaderSize = 8

	// maxRecordSize bounds a single key or payload. Anything larger is
	// treated as corruption rather than attempted as an allocation.
	maxRecordSize = 64 << 20
)

// FormatVersion is the on-disk format generation. Bump it when the record
// layout changes; stores written by other generations are discarded on open.
const FormatVersion uint32 = 1

// Store errors.
var (
	// ErrClosed is returned when appending to or syncing a closed store.
	ErrClosed = errors.New("diskcache: store is closed")

	// ErrRecordTooLarge is returned when appending a key or payload larger
	// than the store supports.
	ErrRecordTooLarge = errors.New("diskcache: record too large")
)

// Sink consumes one replayed record. It returns true when the record was
// turned into a live entry and false when it was skipped; a skipped record
// does not abort the replay. The key and payload slices are only valid for
// the duration of the call.
type Sink func(key, payload []byte) bool

// ReplayResult reports what happened while replaying a store on open.
type ReplayResult struct {
	// Records is the number of records handed to the sink.
	Records int

	// Inserted is the number of records the sink accepted.
	Inserted int

	// Truncated is true when a malformed record was found and the file was
	// cut back to the last good record.
	Truncated bool

	// Reset is true when the header did not match this format or key-schema
	// version and the store was restarted empty.
	Reset bool
}

// Store is an append-only key/payload log backed by a single file.
//
// Store is not safe for concurrent use; the owning cache serializes access.
type Store struct {
	f      *os.File
	w      *bufio.Writer
	path   string
	closed bool
}

// OpenAndReplay opens (or creates) the store at path and replays every
// record into sink in file order.
//
// keyVersion identifies the key schema of the owning cache. A file written
// with a different format or key version is restarted empty rather than
// replayed. A malformed record stops the replay; records read up to that
// point are kept and the file is truncated to the last good record.
//
// The returned store is positioned for Append. Callers must Close it,
// including on their own error paths.
func OpenAndReplay(path string, keyVersion uint32, sink Sink) (*Store, ReplayResult, error) {
	var res ReplayResult

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, res, fmt.Errorf("diskcache: open %s: %w", path, err)
	}

	s := &Store{f: f, path: path}

	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, res, fmt.Errorf("diskcache: seek %s: %w", path, err)
	}

	fresh := end == 0
	if !fresh && !s.checkHeader(keyVersion) {
		// Wrong generation or key schema: restart empty.
		res.Reset = true
		fresh = true
	}

	if fresh {
		if err := s.reset(keyVersion); err != nil {
			f.Close()
			return nil, res, err
		}
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, res, fmt.Errorf("diskcache: seek %s: %w", path, err)
		}
		s.w = bufio.NewWriter(f)
		return s, res, nil
	}

	offset, rerr := s.replay(sink, &res)
	if rerr != nil {
		// Malformed tail: keep everything before it.
		res.Truncated = true
		if err := f.Truncate(offset); err != nil {
			f.Close()
			return nil, res, fmt.Errorf("diskcache: truncate %s: %w", path, err)
		}
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, res, fmt.Errorf("diskcache: seek %s: %w", path, err)
	}

	s.w = bufio.NewWriter(f)
	return s, res, nil
}

// Read replays the store at path into sink without opening it for
// appending. Unlike OpenAndReplay it never mutates the file: a header
// mismatch is reported through ReplayResult.Reset, a malformed tail through
// ReplayResult.Truncated, and the file is left exactly as found. Intended
// for offline inspection tooling.
func Read(path string, keyVersion uint32, sink Sink) (ReplayResult, error) {
	var res ReplayResult

	f, err := os.Open(path)
	if err != nil {
		return res, fmt.Errorf("diskcache: open %s: %w", path, err)
	}
	defer f.Close()

	s := &Store{f: f, path: path}

	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return res, fmt.Errorf("diskcache: seek %s: %w", path, err)
	}
	if end == 0 || !s.checkHeader(keyVersion) {
		res.Reset = end != 0
		return res, nil
	}

	if _, rerr := s.replay(sink, &res); rerr != nil {
		res.Truncated = true
	}
	return res, nil
}

// checkHeader reads and verifies the file header. The file offset is left
// just past the header on success.
func (s *Store) checkHeader(keyVersion uint32) bool {
	var hdr [headerSize]byte
	if _, err := s.f.ReadAt(hdr[:], 0); err != nil {
		return false
	}
	if binary.LittleEndian.Uint32(hdr[0:4]) != magic {
		return false
	}
	if binary.LittleEndian.Uint32(hdr[4:8]) != FormatVersion {
		return false
	}
	return binary.LittleEndian.Uint32(hdr[8:12]) == keyVersion
}

// reset truncates the file and writes a fresh header.
func (s *Store) reset(keyVersion uint32) error {
	if err := s.f.Truncate(0); err != nil {
		return fmt.Errorf("diskcache: truncate %s: %w", s.path, err)
	}
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], magic)
	binary.LittleEndian.PutUint32(hdr[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(hdr[8:12], keyVersion)
	if _, err := s.f.WriteAt(hdr[:], 0); err != nil {
		return fmt.Errorf("diskcache: write header %s: %w", s.path, err)
	}
	return nil
}

// replay iterates records from just past the header, invoking sink for each.
// It returns the offset of the first malformed record together with a
// non-nil error, or the end offset and nil when the whole file is intact.
func (s *Store) replay(sink Sink, res *ReplayResult) (int64, error) {
	if _, err := s.f.Seek(headerSize, io.SeekStart); err != nil {
		return headerSize, err
	}

	r := bufio.NewReader(s.f)
	offset := int64(headerSize)
	var prefix [recordHeaderSize]byte

	for {
		if _, err := io.ReadFull(r, prefix[:]); err != nil {
			if err == io.EOF {
				return offset, nil
			}
			return offset, err
		}
		keyLen := binary.LittleEndian.Uint32(prefix[0:4])
		payloadLen := binary.LittleEndian.Uint32(prefix[4:8])
		if keyLen == 0 || keyLen > maxRecordSize || payloadLen > maxRecordSize {
			return offset, fmt.Errorf("diskcache: malformed record at offset %d", offset)
		}

		buf := make([]byte, int(keyLen)+int(payloadLen))
		if _, err := io.ReadFull(r, buf); err != nil {
			return offset, err
		}

		res.Records++
		if sink != nil && sink(buf[:keyLen], buf[keyLen:]) {
			res.Inserted++
		}
		offset += recordHeaderSize + int64(keyLen) + int64(payloadLen)
	}
}

// Append writes one record to the end of the store. Writes are buffered;
// call Sync to push them to disk.
func (s *Store) Append(key, payload []byte) error {
	if s.closed {
		return ErrClosed
	}
	if len(key) == 0 || len(key) > maxRecordSize || len(payload) > maxRecordSize {
		return ErrRecordTooLarge
	}

	var prefix [recordHeaderSize]byte
	binary.LittleEndian.PutUint32(prefix[0:4], uint32(len(key)))
	binary.LittleEndian.PutUint32(prefix[4:8], uint32(len(payload)))
	if _, err := s.w.Write(prefix[:]); err != nil {
		return fmt.Errorf("diskcache: append %s: %w", s.path, err)
	}
	if _, err := s.w.Write(key); err != nil {
		return fmt.Errorf("diskcache: append %s: %w", s.path, err)
	}
	if _, err := s.w.Write(payload); err != nil {
		return fmt.Errorf("diskcache: append %s: %w", s.path, err)
	}
	return nil
}

// Sync flushes buffered records and forces them to stable storage.
func (s *Store) Sync() error {
	if s.closed {
		return ErrClosed
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("diskcache: flush %s: %w", s.path, err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("diskcache: sync %s: %w", s.path, err)
	}
	return nil
}

// Close flushes buffered records and closes the backing file. Close is
// idempotent.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	ferr := s.w.Flush()
	cerr := s.f.Close()
	if ferr != nil {
		return fmt.Errorf("diskcache: flush %s: %w", s.path, ferr)
	}
	if cerr != nil {
		return fmt.Errorf("diskcache: close %s: %w", s.path, cerr)
	}
	return nil
}

// Path returns the file path backing this store.
func (s *Store) Path() string {
	return s.path
}
