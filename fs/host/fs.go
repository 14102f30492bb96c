package host

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanphx/tinyos/fs"
	"github.com/evanphx/tinyos/log"
	"github.com/pkg/errors"
)

const MaxFiles = 10

// FileDevice opens host files under Root for reading and writing.
type FileDevice struct {
	Root  string
	files [MaxFiles]*os.File
}

func NewFileDevice(root string) *FileDevice {
	return &FileDevice{Root: root}
}

func (h *FileDevice) resolve(name string) (string, error) {
	if name == "" {
		return "", errors.Wrap(fs.ErrBadName, "empty file name")
	}

	clean := filepath.Clean("/" + name)

	if h.Root == "" {
		return strings.TrimPrefix(clean, "/"), nil
	}

	return filepath.Join(h.Root, clean), nil
}

func (h *FileDevice) Open(name string) (int, error) {
	path, err := h.resolve(name)
	if err != nil {
		return -1, err
	}

	for i, f := range h.files {
		if f != nil {
			continue
		}

		file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
		if err != nil {
			return -1, err
		}

		log.L.Trace("hostfs-open", "path", path, "id", i)

		h.files[i] = file
		return i, nil
	}

	return -1, errors.Wrapf(fs.ErrNoSlots, "opening %s", path)
}

func (h *FileDevice) get(id int) (*os.File, error) {
	if id < 0 || id >= len(h.files) || h.files[id] == nil {
		return nil, errors.Wrapf(fs.ErrBadHandle, "file id: %d", id)
	}

	return h.files[id], nil
}

func (h *FileDevice) Close(id int) error {
	f, err := h.get(id)
	if err != nil {
		return err
	}

	h.files[id] = nil

	return f.Close()
}

func (h *FileDevice) Read(id, size int) ([]byte, error) {
	f, err := h.get(id)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, size)

	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}

	return buf[:n], nil
}

func (h *FileDevice) Seek(id int, to int64) error {
	f, err := h.get(id)
	if err != nil {
		return err
	}

	_, err = f.Seek(to, io.SeekStart)
	return err
}

func (h *FileDevice) Write(id int, data []byte) (int, error) {
	f, err := h.get(id)
	if err != nil {
		return -1, err
	}

	return f.Write(data)
}
