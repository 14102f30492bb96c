//go:build !unix

package memory

import "github.com/pkg/errors"

type FileSwap struct {
	MemSwap
}

func NewFileSwap(path string) (*FileSwap, error) {
	return nil, errors.Errorf("file backed swap is not supported on this platform (%s)", path)
}
