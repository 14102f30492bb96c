package memory

// PhysicalMemory is the machine's single byte array, split into frames of
// pageSize bytes.
type PhysicalMemory struct {
	pageSize int
	mem      []byte
}

func NewPhysicalMemory(size, pageSize int) *PhysicalMemory {
	return &PhysicalMemory{
		pageSize: pageSize,
		mem:      make([]byte, size),
	}
}

func (p *PhysicalMemory) Size() int {
	return len(p.mem)
}

func (p *PhysicalMemory) Frames() int {
	return len(p.mem) / p.pageSize
}

// Frame returns the backing slice of frame f. Writes through it hit memory.
func (p *PhysicalMemory) Frame(f int) []byte {
	start := f * p.pageSize
	return p.mem[start : start+p.pageSize]
}

func (p *PhysicalMemory) Load(addr int) byte {
	return p.mem[addr]
}

func (p *PhysicalMemory) Store(addr int, v byte) {
	p.mem[addr] = v
}

// FrameTable tracks which physical frames are in use.
type FrameTable struct {
	used []bool
	free int
}

func NewFrameTable(frames int) *FrameTable {
	return &FrameTable{
		used: make([]bool, frames),
		free: frames,
	}
}

func (ft *FrameTable) Len() int {
	return len(ft.used)
}

func (ft *FrameTable) Free() int {
	return ft.free
}

func (ft *FrameTable) Used() int {
	return len(ft.used) - ft.free
}

func (ft *FrameTable) InUse(f int) bool {
	return ft.used[f]
}

// Claim marks up to n free frames as used and returns them, lowest first.
func (ft *FrameTable) Claim(n int) []int {
	var out []int

	for f := 0; f < len(ft.used) && len(out) < n; f++ {
		if !ft.used[f] {
			ft.used[f] = true
			out = append(out, f)
		}
	}

	ft.free -= len(out)

	return out
}

func (ft *FrameTable) Mark(f int) {
	if ft.used[f] {
		return
	}

	ft.used[f] = true
	ft.free--
}

func (ft *FrameTable) Release(f int) {
	if !ft.used[f] {
		return
	}

	ft.used[f] = false
	ft.free++
}
