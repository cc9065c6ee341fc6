package graphtest

import (
	"errors"
	"io"
)

// MemFile is an in-memory io.WriteSeeker, standing in for the real output
// file an orchestrator test would otherwise have to create on disk. It only
// implements the subset of file behavior the orchestrator actually uses:
// sequential writes from the current offset, and a seek back to the start
// to patch the line-1 metadata object.
type MemFile struct {
	buf []byte
	pos int
}

// NewMemFile creates an empty MemFile.
func NewMemFile() *MemFile {
	return &MemFile{}
}

func (f *MemFile) Write(p []byte) (int, error) {
	end := f.pos + len(p)
	if end > len(f.buf) {
		grown := make([]byte, end)
		copy(grown, f.buf)
		f.buf = grown
	}
	copy(f.buf[f.pos:end], p)
	f.pos = end
	return len(p), nil
}

func (f *MemFile) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = int64(f.pos)
	case io.SeekEnd:
		base = int64(len(f.buf))
	default:
		return 0, errors.New("graphtest: invalid whence")
	}
	newPos := base + offset
	if newPos < 0 {
		return 0, errors.New("graphtest: negative seek position")
	}
	f.pos = int(newPos)
	return newPos, nil
}

// Bytes returns the full written content, regardless of the current seek
// position.
func (f *MemFile) Bytes() []byte { return f.buf }
