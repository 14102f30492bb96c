package tarfs

import (
	"archive/tar"
	"bytes"
	"testing"

	"github.com/evanphx/tinyos/fs"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

func archive(t *testing.T, files map[string]string) *bytes.Buffer {
	var buf bytes.Buffer

	tw := tar.NewWriter(&buf)

	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "./docs/", Typeflag: tar.TypeDir, Mode: 0755}))

	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0644,
			Size:     int64(len(body)),
		}))

		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}

	require.NoError(t, tw.Close())

	return &buf
}

func TestTarFS(t *testing.T) {
	n := neko.Modern(t)

	n.It("serves regular files by path", func(t *testing.T) {
		tfs, err := NewTarFS(archive(t, map[string]string{
			"./docs/hello.txt": "hello world",
			"motd":             "be nice",
		}))
		require.NoError(t, err)

		require.Equal(t, []string{"docs/hello.txt", "motd"}, tfs.Names())

		id, err := tfs.Open("/docs/hello.txt")
		require.NoError(t, err)

		data, err := tfs.Read(id, 5)
		require.NoError(t, err)
		require.Equal(t, "hello", string(data))

		data, err = tfs.Read(id, 100)
		require.NoError(t, err)
		require.Equal(t, " world", string(data))

		require.NoError(t, tfs.Seek(id, 6))

		data, err = tfs.Read(id, 100)
		require.NoError(t, err)
		require.Equal(t, "world", string(data))

		require.NoError(t, tfs.Close(id))
		require.Error(t, tfs.Close(id))
	})

	n.It("is read only", func(t *testing.T) {
		tfs, err := NewTarFS(archive(t, map[string]string{"motd": "be nice"}))
		require.NoError(t, err)

		id, err := tfs.Open("motd")
		require.NoError(t, err)

		_, err = tfs.Write(id, []byte("x"))
		require.Equal(t, fs.ErrReadOnly, errors.Cause(err))
	})

	n.It("rejects unknown members and directories", func(t *testing.T) {
		tfs, err := NewTarFS(archive(t, map[string]string{"motd": "be nice"}))
		require.NoError(t, err)

		_, err = tfs.Open("nope")
		require.Equal(t, fs.ErrUnknownPath, errors.Cause(err))

		_, err = tfs.Open("docs")
		require.Equal(t, fs.ErrUnknownPath, errors.Cause(err))
	})

	n.Meow()
}
