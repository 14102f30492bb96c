//go:build unix

package memory

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestFileSwap(t *testing.T) {
	s, err := NewFileSwap(filepath.Join(t.TempDir(), "swap"))
	require.NoError(t, err)
	defer s.Close()

	a, err := s.Append([]byte("first"))
	require.NoError(t, err)

	b, err := s.Append([]byte("second"))
	require.NoError(t, err)

	require.Equal(t, int64(0), a)
	require.Equal(t, int64(5), b)
	require.Equal(t, int64(11), s.Size())

	buf := make([]byte, 6)
	_, err = s.ReadAt(buf, b)
	require.NoError(t, err)
	require.Equal(t, "second", string(buf))

	_, err = s.ReadAt(buf, 8)
	require.Equal(t, ErrSwapRange, errors.Cause(err))
}
