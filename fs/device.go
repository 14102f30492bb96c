package fs

import "github.com/pkg/errors"

var (
	ErrUnknownDevice = errors.New("no device for path")
	ErrNoSlots       = errors.New("no free slots")
	ErrBadHandle     = errors.New("bad handle")
	ErrBadName       = errors.New("invalid name")
	ErrUnknownPath   = errors.New("unknown path")
	ErrReadOnly      = errors.New("device is read only")
)

// Device is anything that can be opened and then read, written and seeked by
// integer handle. The VFS is itself a Device routing to registered ones.
type Device interface {
	Open(arg string) (int, error)
	Close(id int) error
	Read(id, size int) ([]byte, error)
	Seek(id int, to int64) error
	Write(id int, data []byte) (int, error)
}
