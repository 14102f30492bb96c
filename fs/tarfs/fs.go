// Package tarfs serves the regular files of a tar archive as a read-only
// device. Members are opened by their path inside the archive.
package tarfs

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path"
	"sort"

	"github.com/davecgh/go-spew/spew"
	"github.com/evanphx/tinyos/fs"
	"github.com/pkg/errors"
)

const MaxOpen = 10

type entry struct {
	hdr  *tar.Header
	body []byte
}

func (e *entry) String() string {
	return spew.Sdump(e.hdr)
}

type TarFS struct {
	files map[string]*entry
	open  [MaxOpen]*bytes.Reader
}

func cleanName(name string) string {
	name = path.Clean("/" + name)
	return name[1:]
}

func NewTarFS(r io.Reader) (*TarFS, error) {
	tr := tar.NewReader(r)

	t := &TarFS{
		files: make(map[string]*entry),
	}

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, errors.Wrapf(err, "reading tar header")
		}

		// Directories, links and devices have no body to serve.
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", hdr.Name)
		}

		t.files[cleanName(hdr.Name)] = &entry{hdr: hdr, body: data}
	}

	return t, nil
}

// Load reads the archive at path.
func Load(path string) (*TarFS, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	return NewTarFS(f)
}

// Names lists the archive's files in sorted order.
func (t *TarFS) Names() []string {
	var names []string
	for name := range t.files {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (t *TarFS) Open(name string) (int, error) {
	e, ok := t.files[cleanName(name)]
	if !ok {
		return -1, errors.Wrapf(fs.ErrUnknownPath, "tar member %q", name)
	}

	for i, r := range t.open {
		if r == nil {
			t.open[i] = bytes.NewReader(e.body)
			return i, nil
		}
	}

	return -1, errors.Wrapf(fs.ErrNoSlots, "opening %s", name)
}

func (t *TarFS) get(id int) (*bytes.Reader, error) {
	if id < 0 || id >= len(t.open) || t.open[id] == nil {
		return nil, errors.Wrapf(fs.ErrBadHandle, "tar id: %d", id)
	}

	return t.open[id], nil
}

func (t *TarFS) Close(id int) error {
	if _, err := t.get(id); err != nil {
		return err
	}

	t.open[id] = nil
	return nil
}

func (t *TarFS) Read(id, size int) ([]byte, error) {
	r, err := t.get(id)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, size)

	n, err := r.Read(buf)
	if err != nil && err != io.EOF {
		return nil, err
	}

	return buf[:n], nil
}

func (t *TarFS) Seek(id int, to int64) error {
	r, err := t.get(id)
	if err != nil {
		return err
	}

	_, err = r.Seek(to, io.SeekStart)
	return err
}

func (t *TarFS) Write(id int, data []byte) (int, error) {
	if _, err := t.get(id); err != nil {
		return -1, err
	}

	return -1, fs.ErrReadOnly
}
