package memory

import (
	"io"

	"github.com/pkg/errors"
)

// SwapStore is an append-only area for evicted pages. Offsets handed out by
// Append are never reused.
type SwapStore interface {
	io.ReaderAt

	Append(page []byte) (int64, error)
	Size() int64
	Close() error
}

var ErrSwapRange = errors.New("swap read out of range")

// MemSwap keeps the swap area in a growing byte slice.
type MemSwap struct {
	buf []byte
}

func NewMemSwap() *MemSwap {
	return &MemSwap{}
}

func (s *MemSwap) Append(page []byte) (int64, error) {
	off := int64(len(s.buf))
	s.buf = append(s.buf, page...)
	return off, nil
}

func (s *MemSwap) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(s.buf)) {
		return 0, errors.Wrapf(ErrSwapRange, "offset=%d, size=%d", off, len(p))
	}

	return copy(p, s.buf[off:]), nil
}

func (s *MemSwap) Size() int64 {
	return int64(len(s.buf))
}

func (s *MemSwap) Close() error {
	s.buf = nil
	return nil
}
