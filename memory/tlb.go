package memory

// Rand is the source of every random choice in the memory subsystem. It is
// satisfied by *math/rand.Rand; tests inject fixed sequences.
type Rand interface {
	Intn(n int) int
}

type TLBEntry struct {
	Page  int
	Frame int
}

var emptyEntry = TLBEntry{Page: -1, Frame: -1}

// TLB caches recent page translations for the running process. Replacement
// is uniformly random.
type TLB struct {
	entries []TLBEntry
	rand    Rand
}

func NewTLB(size int, rand Rand) *TLB {
	t := &TLB{
		entries: make([]TLBEntry, size),
		rand:    rand,
	}

	t.Clear()

	return t
}

func (t *TLB) Lookup(page int) (int, bool) {
	if page < 0 {
		return -1, false
	}

	for _, e := range t.entries {
		if e.Page == page {
			return e.Frame, true
		}
	}

	return -1, false
}

// Update overwrites a random slot with page -> frame. An existing entry for
// the same page is replaced in place so a page never appears twice.
func (t *TLB) Update(page, frame int) {
	for i, e := range t.entries {
		if e.Page == page {
			t.entries[i].Frame = frame
			return
		}
	}

	t.entries[t.rand.Intn(len(t.entries))] = TLBEntry{Page: page, Frame: frame}
}

func (t *TLB) Clear() {
	for i := range t.entries {
		t.entries[i] = emptyEntry
	}
}

func (t *TLB) InvalidatePage(page int) {
	for i, e := range t.entries {
		if e.Page == page {
			t.entries[i] = emptyEntry
		}
	}
}

func (t *TLB) InvalidateFrame(frame int) {
	for i, e := range t.entries {
		if e.Frame == frame {
			t.entries[i] = emptyEntry
		}
	}
}

// Entries returns a copy of the cache contents.
func (t *TLB) Entries() []TLBEntry {
	out := make([]TLBEntry, len(t.entries))
	copy(out, t.entries)
	return out
}
