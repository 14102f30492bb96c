package memory

import (
	"sort"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

var (
	ErrBadSize        = errors.New("size or address not page aligned")
	ErrBadRange       = errors.New("range outside the address space")
	ErrNoVirtualSpace = errors.New("no contiguous virtual range")
	ErrOutOfMemory    = errors.New("out of physical memory")
	ErrSegfault       = errors.New("segmentation fault")
	ErrSwapCorrupt    = errors.New("swapped page failed verification")
)

// Geometry describes the simulated machine.
type Geometry struct {
	MemSize       int
	PageSize      int
	TLBSize       int
	PageTableSize int
}

func (g Geometry) validate() error {
	switch {
	case g.PageSize <= 0:
		return errors.Errorf("page size must be positive, got %d", g.PageSize)
	case g.MemSize <= 0 || g.MemSize%g.PageSize != 0:
		return errors.Errorf("memory size %d is not a positive multiple of page size %d", g.MemSize, g.PageSize)
	case g.TLBSize <= 0:
		return errors.Errorf("tlb size must be positive, got %d", g.TLBSize)
	case g.PageTableSize <= 0:
		return errors.Errorf("page table size must be positive, got %d", g.PageTableSize)
	}

	return nil
}

// Manager owns physical memory, the frame table, the TLB, the swap store and
// every process's page table. It is not safe for concurrent use; the kernel
// only touches it from its dispatcher.
type Manager struct {
	L hclog.Logger

	geo    Geometry
	phys   *PhysicalMemory
	frames *FrameTable
	tlb    *TLB
	swap   SwapStore
	rand   Rand

	sums   map[int64][blake2b.Size256]byte
	tables map[int]*PageTable
}

func NewManager(geo Geometry, swap SwapStore, rand Rand, l hclog.Logger) (*Manager, error) {
	if err := geo.validate(); err != nil {
		return nil, err
	}

	if swap == nil {
		swap = NewMemSwap()
	}

	if l == nil {
		l = hclog.NewNullLogger()
	}

	phys := NewPhysicalMemory(geo.MemSize, geo.PageSize)

	return &Manager{
		L:      l,
		geo:    geo,
		phys:   phys,
		frames: NewFrameTable(phys.Frames()),
		tlb:    NewTLB(geo.TLBSize, rand),
		swap:   swap,
		rand:   rand,
		sums:   make(map[int64][blake2b.Size256]byte),
		tables: make(map[int]*PageTable),
	}, nil
}

func (m *Manager) PageSize() int {
	return m.geo.PageSize
}

func (m *Manager) Memory() *PhysicalMemory {
	return m.phys
}

func (m *Manager) FrameTable() *FrameTable {
	return m.frames
}

func (m *Manager) TLB() *TLB {
	return m.tlb
}

func (m *Manager) Swap() SwapStore {
	return m.swap
}

// PhysAddr translates addr through the TLB only.
func (m *Manager) PhysAddr(addr int) (int, bool) {
	if addr < 0 {
		return -1, false
	}

	frame, ok := m.tlb.Lookup(addr / m.geo.PageSize)
	if !ok {
		return -1, false
	}

	return frame*m.geo.PageSize + addr%m.geo.PageSize, true
}

// NewPageTable creates and registers the address space of pid.
func (m *Manager) NewPageTable(pid int) *PageTable {
	pt := NewPageTable(pid, m.geo.PageTableSize)
	m.tables[pid] = pt
	return pt
}

// Release frees everything pt holds and forgets it.
func (m *Manager) Release(pt *PageTable) {
	m.FreeAll(pt)
	delete(m.tables, pt.Owner)
}

// Allocate maps size bytes of fresh zeroed memory into pt and returns the
// virtual base address. No mapping is added unless it succeeds, though pages
// evicted along the way stay swapped out.
func (m *Manager) Allocate(pt *PageTable, size int) (int, error) {
	ps := m.geo.PageSize

	if size <= 0 || size%ps != 0 {
		return -1, errors.Wrapf(ErrBadSize, "allocate size=%d", size)
	}

	n := size / ps

	if n > m.frames.Len() {
		return -1, errors.Wrapf(ErrOutOfMemory, "allocate pages=%d, frames=%d", n, m.frames.Len())
	}

	start, ok := pt.FindRun(n)
	if !ok {
		return -1, errors.Wrapf(ErrNoVirtualSpace, "allocate pages=%d, pid=%d", n, pt.Owner)
	}

	frames, err := m.freeFrames(n)
	if err != nil {
		return -1, err
	}

	for i, f := range frames {
		clear(m.phys.Frame(f))
		pt.set(start+i, InMemory(f))
	}

	m.L.Trace("allocate", "pid", pt.Owner, "page", start, "pages", n, "frames", frames)

	return start * ps, nil
}

// Free unmaps [addr, addr+size) from pt.
func (m *Manager) Free(pt *PageTable, addr, size int) error {
	ps := m.geo.PageSize

	if addr < 0 || size <= 0 || addr%ps != 0 || size%ps != 0 {
		return errors.Wrapf(ErrBadSize, "free addr=%d, size=%d", addr, size)
	}

	first := addr / ps
	n := size / ps

	if first+n > pt.Len() {
		return errors.Wrapf(ErrBadRange, "free addr=%d, size=%d", addr, size)
	}

	for page := first; page < first+n; page++ {
		m.unmap(pt, page)
	}

	m.L.Trace("free", "pid", pt.Owner, "page", first, "pages", n)

	return nil
}

func (m *Manager) FreeAll(pt *PageTable) {
	for page := 0; page < pt.Len(); page++ {
		m.unmap(pt, page)
	}
}

func (m *Manager) unmap(pt *PageTable, page int) {
	mp := pt.pages[page]

	switch {
	case mp.InMemory():
		m.frames.Release(mp.Frame)
		m.tlb.InvalidateFrame(mp.Frame)
	case mp.OnDisk():
		// The slot itself is abandoned; the store only grows.
		delete(m.sums, mp.Slot)
	}

	pt.set(page, Unmapped)
}

// Resolve returns the frame backing page in pt, swapping it in if needed,
// and records the translation in the TLB.
func (m *Manager) Resolve(pt *PageTable, page int) (int, error) {
	mp, ok := pt.Lookup(page)
	if !ok || !mp.Mapped() {
		return -1, errors.Wrapf(ErrSegfault, "pid=%d, page=%d", pt.Owner, page)
	}

	frame := mp.Frame

	if mp.OnDisk() {
		var err error

		frame, err = m.swapIn(pt, page)
		if err != nil {
			return -1, err
		}
	}

	m.tlb.Update(page, frame)

	return frame, nil
}

// freeFrames claims n frames, evicting victims when free frames run out. On
// failure every frame claimed here is released again.
func (m *Manager) freeFrames(n int) ([]int, error) {
	frames := m.frames.Claim(n)

	batch := make(map[int]struct{}, n)
	for _, f := range frames {
		batch[f] = struct{}{}
	}

	for len(frames) < n {
		f, err := m.evict(batch)
		if err != nil {
			for _, f := range frames {
				m.frames.Release(f)
			}

			return nil, err
		}

		m.frames.Mark(f)
		batch[f] = struct{}{}
		frames = append(frames, f)
	}

	return frames, nil
}

type victim struct {
	pt   *PageTable
	page int
}

// evict swaps out one page chosen by picking a random process with a
// resident page, then a random resident page of it. Pages whose frame is
// already part of batch are never chosen.
func (m *Manager) evict(batch map[int]struct{}) (int, error) {
	var (
		owners []int
		byPid  = make(map[int][]victim)
	)

	for pid, pt := range m.tables {
		for _, page := range pt.Resident() {
			if _, taken := batch[pt.pages[page].Frame]; taken {
				continue
			}

			byPid[pid] = append(byPid[pid], victim{pt: pt, page: page})
		}

		if len(byPid[pid]) > 0 {
			owners = append(owners, pid)
		}
	}

	if len(owners) == 0 {
		return -1, errors.Wrapf(ErrOutOfMemory, "no evictable pages, batch=%d", len(batch))
	}

	sort.Ints(owners)

	cands := byPid[owners[m.rand.Intn(len(owners))]]
	v := cands[m.rand.Intn(len(cands))]

	return m.swapOut(v.pt, v.page)
}

func (m *Manager) swapOut(pt *PageTable, page int) (int, error) {
	frame := pt.pages[page].Frame
	data := m.phys.Frame(frame)

	off, err := m.swap.Append(data)
	if err != nil {
		return -1, errors.Wrapf(err, "swapping out pid=%d, page=%d", pt.Owner, page)
	}

	m.sums[off] = blake2b.Sum256(data)

	pt.set(page, OnDisk(off))
	m.frames.Release(frame)
	m.tlb.InvalidateFrame(frame)

	m.L.Trace("swap-out", "pid", pt.Owner, "page", page, "frame", frame, "offset", off)

	return frame, nil
}

func (m *Manager) swapIn(pt *PageTable, page int) (int, error) {
	slot := pt.pages[page].Slot

	frames, err := m.freeFrames(1)
	if err != nil {
		return -1, err
	}

	frame := frames[0]
	buf := m.phys.Frame(frame)

	if _, err := m.swap.ReadAt(buf, slot); err != nil {
		m.frames.Release(frame)
		return -1, errors.Wrapf(err, "swapping in pid=%d, page=%d", pt.Owner, page)
	}

	if sum, ok := m.sums[slot]; ok && sum != blake2b.Sum256(buf) {
		m.frames.Release(frame)
		return -1, errors.Wrapf(ErrSwapCorrupt, "pid=%d, page=%d, offset=%d", pt.Owner, page, slot)
	}

	delete(m.sums, slot)
	pt.set(page, InMemory(frame))

	m.L.Trace("swap-in", "pid", pt.Owner, "page", page, "frame", frame, "offset", slot)

	return frame, nil
}
