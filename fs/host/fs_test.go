package host

import (
	"testing"

	"github.com/evanphx/tinyos/fs"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestFileDevice(t *testing.T) {
	d := NewFileDevice(t.TempDir())

	id, err := d.Open("classes.csv")
	require.NoError(t, err)

	n, err := d.Write(id, []byte("course,name\n"))
	require.NoError(t, err)
	require.Equal(t, 12, n)

	require.NoError(t, d.Seek(id, 0))

	data, err := d.Read(id, 1024)
	require.NoError(t, err)
	require.Equal(t, "course,name\n", string(data))

	require.NoError(t, d.Close(id))
	require.Equal(t, fs.ErrBadHandle, errors.Cause(d.Close(id)))

	_, err = d.Open("")
	require.Equal(t, fs.ErrBadName, errors.Cause(err))
}

func TestFileDeviceStaysUnderRoot(t *testing.T) {
	root := t.TempDir()
	d := NewFileDevice(root)

	path, err := d.resolve("../../etc/passwd")
	require.NoError(t, err)
	require.Equal(t, root+"/etc/passwd", path)
}
