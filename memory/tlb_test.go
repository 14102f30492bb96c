package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTLB(t *testing.T) {
	tlb := NewTLB(2, &seqRand{vals: []int{0, 1, 0}})

	_, ok := tlb.Lookup(0)
	require.False(t, ok)

	tlb.Update(3, 7)
	tlb.Update(4, 8)

	f, ok := tlb.Lookup(3)
	require.True(t, ok)
	require.Equal(t, 7, f)

	tlb.Update(4, 9)
	f, _ = tlb.Lookup(4)
	require.Equal(t, 9, f)

	tlb.Update(5, 1)
	_, ok = tlb.Lookup(3)
	require.False(t, ok, "slot 0 was overwritten")

	tlb.InvalidateFrame(9)
	_, ok = tlb.Lookup(4)
	require.False(t, ok)

	tlb.Clear()
	for _, e := range tlb.Entries() {
		require.Equal(t, -1, e.Page)
	}
}

func TestFindRun(t *testing.T) {
	pt := NewPageTable(1, 6)
	pt.set(1, InMemory(0))
	pt.set(4, OnDisk(0))

	start, ok := pt.FindRun(2)
	require.True(t, ok)
	require.Equal(t, 2, start)

	_, ok = pt.FindRun(3)
	require.False(t, ok)

	start, ok = pt.FindRun(1)
	require.True(t, ok)
	require.Equal(t, 0, start)
}
