//go:build unix

package memory

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// FileSwap appends pages to a host file with positional writes.
type FileSwap struct {
	f    *os.File
	next int64
}

func NewFileSwap(path string) (*FileSwap, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.Wrapf(err, "opening swap file %s", path)
	}

	return &FileSwap{f: f}, nil
}

func (s *FileSwap) Append(page []byte) (int64, error) {
	off := s.next

	n, err := unix.Pwrite(int(s.f.Fd()), page, off)
	if err != nil {
		return -1, errors.Wrapf(err, "writing swap at offset %d", off)
	}

	if n != len(page) {
		return -1, errors.Errorf("short swap write at offset %d: %d of %d", off, n, len(page))
	}

	s.next += int64(n)

	return off, nil
}

func (s *FileSwap) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > s.next {
		return 0, errors.Wrapf(ErrSwapRange, "offset=%d, size=%d", off, len(p))
	}

	n, err := unix.Pread(int(s.f.Fd()), p, off)
	if err != nil {
		return n, errors.Wrapf(err, "reading swap at offset %d", off)
	}

	if n != len(p) {
		return n, errors.Errorf("short swap read at offset %d: %d of %d", off, n, len(p))
	}

	return n, nil
}

func (s *FileSwap) Size() int64 {
	return s.next
}

func (s *FileSwap) Close() error {
	return s.f.Close()
}
