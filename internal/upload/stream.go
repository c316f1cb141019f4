package upload

import (
	"bytes"
	"compress/bzip2"
	"compress/zlib"
	"fmt"
	"io"
	"os"

	"github.com/airdcpp-go/client/internal/xerrors"
)

// SourceKind selects what bytes a Stream serves: a real file segment, a
// generated file list, or a TTH tree leaf dump, per spec.md §4.6.3's GET
// target types (file/filelist/tthl).
type SourceKind int

const (
	SourceFile SourceKind = iota
	SourceFileList
	SourceTTHTree
)

// Stream serves one GET/SND exchange: seek to an offset, optionally
// zlib-compress (ADC's ZL1 flag) the wire bytes, and report the actual byte
// count sent so the caller can update transfer accounting.
type Stream struct {
	Kind   SourceKind
	Path   string
	Start  int64
	Length int64
	ZL1    bool

	f *os.File
}

// Open seeks into the backing file (or, for a generated file list, into an
// in-memory buffer prepared by the caller) ready for WriteTo.
func (s *Stream) Open() error {
	if s.Kind != SourceFile && s.Kind != SourceTTHTree {
		return nil
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return err
	}
	if _, err := f.Seek(s.Start, io.SeekStart); err != nil {
		f.Close()
		return err
	}
	s.f = f
	return nil
}

func (s *Stream) Close() error {
	if s.f != nil {
		return s.f.Close()
	}
	return nil
}

// WriteTo copies Length bytes from the stream to w, compressing through
// zlib if ZL1 was negotiated. It returns the number of wire bytes written
// (post-compression), which is what the transfer's getActual() accounts,
// distinct from the logical bytes transferred.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	if s.f == nil && s.Kind != SourceFileList {
		return 0, fmt.Errorf("upload: stream not open")
	}
	var r io.Reader = io.LimitReader(s.f, s.Length)

	if !s.ZL1 {
		return io.Copy(w, r)
	}
	zw := zlib.NewWriter(w)
	n, err := io.Copy(zw, r)
	if err != nil {
		zw.Close()
		return n, err
	}
	return n, zw.Close()
}

// DecompressFileList reverses the bz2 compression applied to a generated
// file list before it's written to disk as files.xml.bz2 (spec.md §4.6.4).
// No code in this repository calls it.
func DecompressFileList(compressed []byte) ([]byte, error) {
	r := bzip2.NewReader(bytes.NewReader(compressed))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("upload: decompress filelist: %w", err)
	}
	return out, nil
}

// ValidateRequest checks a GET/GFI request's start/length against the
// backing file's real size before Open is attempted, rejecting an
// out-of-range request with ErrFileNotAvailable instead of letting a short
// read surface as a generic I/O error.
func ValidateRequest(fileSize, start, length int64) error {
	if start < 0 || length < 0 {
		return xerrors.ErrFileNotAvailable
	}
	if start+length > fileSize {
		return xerrors.ErrFileNotAvailable
	}
	return nil
}
