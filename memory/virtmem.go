package memory

// Mapping is one page table slot. Frame and Slot are -1 when unset and at
// most one of them is set.
type Mapping struct {
	Frame int
	Slot  int64
}

var Unmapped = Mapping{Frame: -1, Slot: -1}

func InMemory(frame int) Mapping {
	return Mapping{Frame: frame, Slot: -1}
}

func OnDisk(slot int64) Mapping {
	return Mapping{Frame: -1, Slot: slot}
}

func (m Mapping) InMemory() bool {
	return m.Frame >= 0
}

func (m Mapping) OnDisk() bool {
	return m.Slot >= 0
}

func (m Mapping) Mapped() bool {
	return m.InMemory() || m.OnDisk()
}

// PageTable maps a process's virtual pages. Index is the virtual page number.
type PageTable struct {
	Owner int

	pages []Mapping
}

func NewPageTable(owner, size int) *PageTable {
	pt := &PageTable{
		Owner: owner,
		pages: make([]Mapping, size),
	}

	for i := range pt.pages {
		pt.pages[i] = Unmapped
	}

	return pt
}

func (pt *PageTable) Len() int {
	return len(pt.pages)
}

func (pt *PageTable) Lookup(page int) (Mapping, bool) {
	if page < 0 || page >= len(pt.pages) {
		return Unmapped, false
	}

	return pt.pages[page], true
}

func (pt *PageTable) set(page int, m Mapping) {
	pt.pages[page] = m
}

// FindRun returns the first page of the lowest run of n unmapped pages.
func (pt *PageTable) FindRun(n int) (int, bool) {
	run := 0

	for i, m := range pt.pages {
		if m.Mapped() {
			run = 0
			continue
		}

		run++
		if run == n {
			return i - n + 1, true
		}
	}

	return -1, false
}

// Resident returns the pages currently backed by a frame, in page order.
func (pt *PageTable) Resident() []int {
	var out []int

	for i, m := range pt.pages {
		if m.InMemory() {
			out = append(out, i)
		}
	}

	return out
}

// Frames returns the frames this table holds, in page order.
func (pt *PageTable) Frames() []int {
	var out []int

	for _, m := range pt.pages {
		if m.InMemory() {
			out = append(out, m.Frame)
		}
	}

	return out
}

func (pt *PageTable) Swapped() int {
	n := 0

	for _, m := range pt.pages {
		if m.OnDisk() {
			n++
		}
	}

	return n
}
