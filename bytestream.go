// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package imagemeta

import (
	"io"
	"net/http"
	"os"

	"github.com/pkg/errors"
)

// ByteStream is the module's I/O boundary (spec §4.1), generalizing the
// teacher's `io.ReadSeeker`-only streamReader (io.go) to read-write
// backends and the atomic `transfer` swap the teacher never implements
// because it only ever reads. Implementations: fileByteStream (os.File),
// memoryByteStream (the seekable bytesBuffer below), and urlByteStream
// (read-only, one HTTP(S) GET of the whole resource).
type ByteStream interface {
	io.ReadWriteSeeker
	io.Closer

	// ReadOrThrow reads exactly len(p) bytes or returns a KindCorruptedMetadata error.
	ReadOrThrow(p []byte) error

	// Transfer replaces this stream's contents with other's, which must
	// be a memoryByteStream, then closes other. The contents are not
	// swapped: other's old contents do not move into this stream. This
	// stream is not closed: it stays usable afterwards (a file-backed
	// stream is reopened on the replaced file). The new content is
	// written to a temp stream and only put in place once fully
	// serialized without error.
	Transfer(other ByteStream) error

	// Size reports the current stream length.
	Size() (int64, error)
}

// fileByteStream backs a ByteStream with an *os.File, open read-only or
// read-write as openFileByteStream was asked.
type fileByteStream struct {
	f    *os.File
	path string
}

// openFileByteStream opens an existing file at path, read-write if write
// is set and read-only otherwise; a missing file is an error, it is not
// created.
func openFileByteStream(path string, write bool) (*fileByteStream, error) {
	flag := os.O_RDONLY
	if write {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, errors.Wrap(newErrorWrap(KindSourceOpenFailed, err), "open file byte stream")
	}
	return &fileByteStream{f: f, path: path}, nil
}

func (s *fileByteStream) Read(p []byte) (int, error)          { return s.f.Read(p) }
func (s *fileByteStream) Write(p []byte) (int, error)         { return s.f.Write(p) }
func (s *fileByteStream) Seek(off int64, whence int) (int64, error) { return s.f.Seek(off, whence) }
func (s *fileByteStream) Close() error                         { return s.f.Close() }

func (s *fileByteStream) ReadOrThrow(p []byte) error {
	if _, err := io.ReadFull(s.f, p); err != nil {
		return newErrorWrap(KindCorruptedMetadata, err)
	}
	return nil
}

func (s *fileByteStream) Size() (int64, error) {
	fi, err := s.f.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "stat file byte stream")
	}
	return fi.Size(), nil
}

// Transfer atomically replaces this file's contents with other's via a
// rename, matching exiv2's FileIo::transfer (write to a temp sibling
// file, fsync, rename over the original) so a crash mid-write never
// leaves a half-written image on disk.
func (s *fileByteStream) Transfer(other ByteStream) error {
	mb, ok := other.(*memoryByteStream)
	if !ok {
		return newError(KindTransferFailed, "transfer source must be memory-backed")
	}
	tmpPath := s.path + ".imagemeta-tmp"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(newErrorWrap(KindTransferFailed, err), "create temp file")
	}
	if _, err := tmp.Write(mb.rw.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(newErrorWrap(KindTransferFailed, err), "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(newErrorWrap(KindTransferFailed, err), "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(newErrorWrap(KindTransferFailed, err), "close temp file")
	}
	if err := s.f.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(newErrorWrap(KindTransferFailed, err), "close original file")
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return errors.Wrap(newErrorWrap(KindRenameFailed, err), "rename temp over original")
	}
	f, err := os.OpenFile(s.path, os.O_RDWR, 0o644)
	if err != nil {
		return errors.Wrap(newErrorWrap(KindFileOpenFailed, err), "reopen after transfer")
	}
	s.f = f
	return other.Close()
}

// memoryByteStream backs a ByteStream with an in-memory buffer, used for
// the rebuilt-output side of a write (the teacher never writes, so this
// has no analogue there; modeled after io.go's bytesAndReader pooling
// idiom but growable since output size isn't known up front).
type memoryByteStream struct {
	rw *bytesBuffer
}

// bytesBuffer is a minimal read-write-seek buffer; bytes.Buffer itself
// has no Seek, so we keep a backing slice and a cursor directly.
type bytesBuffer struct {
	data []byte
	pos  int64
}

func newMemoryByteStream(initial []byte) *memoryByteStream {
	return &memoryByteStream{rw: &bytesBuffer{data: append([]byte(nil), initial...)}}
}

func (b *bytesBuffer) Bytes() []byte { return b.data }

func (b *bytesBuffer) Read(p []byte) (int, error) {
	if b.pos >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += int64(n)
	return n, nil
}

func (b *bytesBuffer) Write(p []byte) (int, error) {
	end := b.pos + int64(len(p))
	if end > int64(len(b.data)) {
		grown := make([]byte, end)
		copy(grown, b.data)
		b.data = grown
	}
	n := copy(b.data[b.pos:end], p)
	b.pos += int64(n)
	return n, nil
}

func (b *bytesBuffer) Seek(off int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = off
	case io.SeekCurrent:
		newPos = b.pos + off
	case io.SeekEnd:
		newPos = int64(len(b.data)) + off
	}
	if newPos < 0 {
		return 0, newError(KindOffsetOutOfRange, newPos)
	}
	b.pos = newPos
	return newPos, nil
}

func (s *memoryByteStream) Read(p []byte) (int, error)          { return s.rw.Read(p) }
func (s *memoryByteStream) Write(p []byte) (int, error)         { return s.rw.Write(p) }
func (s *memoryByteStream) Seek(off int64, whence int) (int64, error) { return s.rw.Seek(off, whence) }
func (s *memoryByteStream) Close() error                         { return nil }
func (s *memoryByteStream) Size() (int64, error)                 { return int64(len(s.rw.data)), nil }

func (s *memoryByteStream) buf() *bytesBuffer { return s.rw }

func (s *memoryByteStream) ReadOrThrow(p []byte) error {
	if _, err := io.ReadFull(s.rw, p); err != nil {
		return newErrorWrap(KindCorruptedMetadata, err)
	}
	return nil
}

func (s *memoryByteStream) Transfer(other ByteStream) error {
	mb, ok := other.(*memoryByteStream)
	if !ok {
		return newError(KindTransferFailed, "transfer source must be memory-backed")
	}
	s.rw.data = mb.rw.data
	s.rw.pos = 0
	return other.Close()
}

// urlByteStream is a read-only ByteStream over an HTTP(S) resource. It
// issues no range requests: openURLByteStream fetches the whole resource
// with one GET and buffers it in memory, which gives byte-exact reads
// but holds the whole resource in memory however large it is.
type urlByteStream struct {
	url string
	mem *memoryByteStream
}

func openURLByteStream(url string) (*urlByteStream, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, errors.Wrap(newErrorWrap(KindSourceOpenFailed, err), "http get")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, newError(KindSourceOpenFailed, resp.StatusCode, url)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(newErrorWrap(KindReadFailed, err), "read http body")
	}
	return &urlByteStream{url: url, mem: newMemoryByteStream(data)}, nil
}

func (s *urlByteStream) Read(p []byte) (int, error)          { return s.mem.Read(p) }
func (s *urlByteStream) Write(p []byte) (int, error)         { return 0, newError(KindWriteFailed, "url stream is read-only") }
func (s *urlByteStream) Seek(off int64, whence int) (int64, error) { return s.mem.Seek(off, whence) }
func (s *urlByteStream) Close() error                         { return s.mem.Close() }
func (s *urlByteStream) Size() (int64, error)                 { return s.mem.Size() }
func (s *urlByteStream) ReadOrThrow(p []byte) error           { return s.mem.ReadOrThrow(p) }
func (s *urlByteStream) Transfer(other ByteStream) error {
	return newError(KindFunctionNotSupported, "url byte stream does not support transfer")
}
