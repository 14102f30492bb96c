package memory

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

// seqRand replays vals, modulo the requested bound.
type seqRand struct {
	vals []int
	i    int
}

func (s *seqRand) Intn(n int) int {
	if len(s.vals) == 0 {
		return 0
	}

	v := s.vals[s.i%len(s.vals)]
	s.i++

	return v % n
}

const testPage = 16

func newTestManager(t *testing.T, frames int, swap SwapStore) *Manager {
	m, err := NewManager(Geometry{
		MemSize:       frames * testPage,
		PageSize:      testPage,
		TLBSize:       2,
		PageTableSize: 10,
	}, swap, &seqRand{}, nil)
	require.NoError(t, err)

	return m
}

func store(t *testing.T, m *Manager, pt *PageTable, addr int, v byte) {
	frame, err := m.Resolve(pt, addr/testPage)
	require.NoError(t, err)

	m.Memory().Store(frame*testPage+addr%testPage, v)
}

func load(t *testing.T, m *Manager, pt *PageTable, addr int) byte {
	frame, err := m.Resolve(pt, addr/testPage)
	require.NoError(t, err)

	return m.Memory().Load(frame*testPage + addr%testPage)
}

// requireDisjoint checks that no frame is mapped twice and that the frame
// table agrees with the page tables.
func requireDisjoint(t *testing.T, m *Manager) {
	seen := make(map[int]int)

	for pid, pt := range m.tables {
		for _, f := range pt.Frames() {
			owner, dup := seen[f]
			require.False(t, dup, "frame %d mapped by %d and %d", f, owner, pid)
			require.True(t, m.frames.InUse(f))
			seen[f] = pid
		}
	}

	require.Equal(t, m.frames.Used(), len(seen))
}

func TestGeometryValidation(t *testing.T) {
	_, err := NewManager(Geometry{MemSize: 100, PageSize: 16, TLBSize: 2, PageTableSize: 4}, nil, &seqRand{}, nil)
	require.Error(t, err)

	_, err = NewManager(Geometry{MemSize: 64, PageSize: 16, TLBSize: 0, PageTableSize: 4}, nil, &seqRand{}, nil)
	require.Error(t, err)
}

func TestAllocate(t *testing.T) {
	n := neko.Modern(t)

	n.It("round trips every byte and reuses freed pages", func(t *testing.T) {
		m := newTestManager(t, 4, nil)
		pt := m.NewPageTable(1)

		addr, err := m.Allocate(pt, 2*testPage)
		require.NoError(t, err)
		require.Equal(t, 0, addr)

		for i := 0; i < 2*testPage; i++ {
			store(t, m, pt, addr+i, byte(i+1))
		}

		for i := 0; i < 2*testPage; i++ {
			require.Equal(t, byte(i+1), load(t, m, pt, addr+i))
		}

		require.NoError(t, m.Free(pt, addr, 2*testPage))
		require.Equal(t, 0, m.FrameTable().Used())

		again, err := m.Allocate(pt, testPage)
		require.NoError(t, err)
		require.Equal(t, addr, again)
		require.Equal(t, byte(0), load(t, m, pt, again), "fresh pages are zeroed")
	})

	n.It("rejects sizes that are not page multiples", func(t *testing.T) {
		m := newTestManager(t, 4, nil)
		pt := m.NewPageTable(1)

		for _, size := range []int{0, -testPage, 10, testPage + 1} {
			_, err := m.Allocate(pt, size)
			require.Equal(t, ErrBadSize, errors.Cause(err), "size %d", size)
		}

		require.Equal(t, 0, m.FrameTable().Used())
		require.Empty(t, pt.Frames())
	})

	n.It("fails without a contiguous virtual run and changes nothing", func(t *testing.T) {
		m := newTestManager(t, 20, nil)
		pt := m.NewPageTable(1)

		_, err := m.Allocate(pt, 9*testPage)
		require.NoError(t, err)

		_, err = m.Allocate(pt, 2*testPage)
		require.Equal(t, ErrNoVirtualSpace, errors.Cause(err))
		require.Equal(t, 9, m.FrameTable().Used())
	})

	n.It("fails when asking for more than physical memory", func(t *testing.T) {
		m := newTestManager(t, 4, nil)
		pt := m.NewPageTable(1)

		_, err := m.Allocate(pt, 5*testPage)
		require.Equal(t, ErrOutOfMemory, errors.Cause(err))
		require.Equal(t, 0, m.FrameTable().Used())
	})

	n.It("keeps frames disjoint across processes", func(t *testing.T) {
		m := newTestManager(t, 4, nil)
		a := m.NewPageTable(1)
		b := m.NewPageTable(2)

		_, err := m.Allocate(a, 3*testPage)
		require.NoError(t, err)
		requireDisjoint(t, m)

		_, err = m.Allocate(b, 3*testPage)
		require.NoError(t, err)
		requireDisjoint(t, m)

		_, err = m.Resolve(a, 0)
		require.NoError(t, err)
		requireDisjoint(t, m)
	})

	n.Meow()
}

func TestFree(t *testing.T) {
	m := newTestManager(t, 4, nil)
	pt := m.NewPageTable(1)

	addr, err := m.Allocate(pt, testPage)
	require.NoError(t, err)

	require.Equal(t, ErrBadSize, errors.Cause(m.Free(pt, addr+1, testPage)))
	require.Equal(t, ErrBadSize, errors.Cause(m.Free(pt, addr, 3)))
	require.Equal(t, ErrBadRange, errors.Cause(m.Free(pt, 9*testPage, 2*testPage)))
	require.Equal(t, 1, m.FrameTable().Used())

	_, err = m.Resolve(pt, 0)
	require.NoError(t, err)

	require.NoError(t, m.Free(pt, addr, testPage))

	_, ok := m.TLB().Lookup(0)
	require.False(t, ok, "freed page must leave the tlb")

	_, err = m.Resolve(pt, 0)
	require.Equal(t, ErrSegfault, errors.Cause(err))
}

func TestResolveSegfault(t *testing.T) {
	m := newTestManager(t, 4, nil)
	pt := m.NewPageTable(1)

	_, err := m.Resolve(pt, 3)
	require.Equal(t, ErrSegfault, errors.Cause(err))

	_, err = m.Resolve(pt, 10)
	require.Equal(t, ErrSegfault, errors.Cause(err))

	_, err = m.Resolve(pt, -1)
	require.Equal(t, ErrSegfault, errors.Cause(err))
}

func TestSwap(t *testing.T) {
	n := neko.Modern(t)

	n.It("evicts a victim and restores its bytes on the next access", func(t *testing.T) {
		m := newTestManager(t, 4, nil)
		a := m.NewPageTable(1)
		b := m.NewPageTable(2)

		addr, err := m.Allocate(a, 4*testPage)
		require.NoError(t, err)

		for i := 0; i < 4*testPage; i++ {
			store(t, m, a, addr+i, byte(0xA0^i))
		}

		_, err = m.Allocate(b, testPage)
		require.NoError(t, err)

		require.Equal(t, 1, a.Swapped())
		require.Equal(t, int64(testPage), m.Swap().Size())
		requireDisjoint(t, m)

		for i := 0; i < 4*testPage; i++ {
			require.Equal(t, byte(0xA0^i), load(t, m, a, addr+i))
			requireDisjoint(t, m)
		}
	})

	n.It("drops stale translations of an evicted frame", func(t *testing.T) {
		m := newTestManager(t, 1, nil)
		a := m.NewPageTable(1)
		b := m.NewPageTable(2)

		_, err := m.Allocate(a, testPage)
		require.NoError(t, err)

		frame, err := m.Resolve(a, 0)
		require.NoError(t, err)

		_, err = m.Allocate(b, testPage)
		require.NoError(t, err)

		for _, e := range m.TLB().Entries() {
			require.NotEqual(t, frame, e.Frame)
		}
	})

	n.It("releases swapped pages on free all", func(t *testing.T) {
		m := newTestManager(t, 2, nil)
		a := m.NewPageTable(1)
		b := m.NewPageTable(2)

		_, err := m.Allocate(a, 2*testPage)
		require.NoError(t, err)

		_, err = m.Allocate(b, 2*testPage)
		require.NoError(t, err)
		require.Equal(t, 2, a.Swapped())

		m.Release(a)
		require.Equal(t, 0, a.Swapped())
		require.Empty(t, m.sums)
		requireDisjoint(t, m)
	})

	n.It("detects a corrupted swap page", func(t *testing.T) {
		swap := &flipSwap{MemSwap: NewMemSwap()}
		m := newTestManager(t, 1, swap)
		a := m.NewPageTable(1)
		b := m.NewPageTable(2)

		_, err := m.Allocate(a, testPage)
		require.NoError(t, err)
		store(t, m, a, 0, 9)

		_, err = m.Allocate(b, testPage)
		require.NoError(t, err)

		swap.flip = true

		_, err = m.Resolve(a, 0)
		require.Equal(t, ErrSwapCorrupt, errors.Cause(err))
		requireDisjoint(t, m)
	})

	n.Meow()
}

type flipSwap struct {
	*MemSwap
	flip bool
}

func (f *flipSwap) ReadAt(p []byte, off int64) (int, error) {
	n, err := f.MemSwap.ReadAt(p, off)
	if f.flip && n > 0 {
		p[0] ^= 0xFF
	}
	return n, err
}
