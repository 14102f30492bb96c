package programs

import (
	"math/rand"

	"github.com/evanphx/tinyos/kernel"
	"github.com/pkg/errors"
)

var ErrMemoryMismatch = errors.New("memory doesn't match the written data")

func fill(t *kernel.Task, addr int, data []byte) {
	for i, b := range data {
		t.Store(addr+i, b)
		t.Cooperate()
	}
}

func verify(t *kernel.Task, addr int, data []byte) {
	for i, b := range data {
		if got := t.Load(addr + i); got != b {
			panic(errors.Wrapf(ErrMemoryMismatch, "addr=%d, want=%d, got=%d", addr+i, b, got))
		}

		t.Cooperate()
	}
}

// Piggy allocates size bytes, fills them with random data, naps for nap
// milliseconds so its siblings can push it out to swap, then checks every
// byte.
func Piggy(size int, seed int64, nap int) kernel.Body {
	return func(t *kernel.Task) {
		rng := rand.New(rand.NewSource(seed))

		addr := t.AllocateMemory(size)
		if addr < 0 {
			panic(errors.Errorf("allocating %d bytes failed", size))
		}

		data := make([]byte, size)
		rng.Read(data)

		fill(t, addr, data)

		t.Sleep(nap)

		verify(t, addr, data)

		t.FreeMemory(addr, size)

		t.L.Info("memory allocated, checked, and freed", "size", size)
	}
}

// AllocateAndFree checks allocations of one, two and four pages.
func AllocateAndFree(seed int64) kernel.Body {
	return func(t *kernel.Task) {
		rng := rand.New(rand.NewSource(seed))

		sizes := []int{1024, 2048, 4096}
		addrs := make([]int, len(sizes))
		data := make([][]byte, len(sizes))

		for i, size := range sizes {
			addrs[i] = t.AllocateMemory(size)
			if addrs[i] < 0 {
				panic(errors.Errorf("allocating %d bytes failed", size))
			}

			data[i] = make([]byte, size)
			rng.Read(data[i])
		}

		for i := range sizes {
			fill(t, addrs[i], data[i])
		}

		for i := range sizes {
			verify(t, addrs[i], data[i])
		}

		for i, size := range sizes {
			if !t.FreeMemory(addrs[i], size) {
				panic(errors.Errorf("freeing %d bytes at %d failed", size, addrs[i]))
			}
		}

		t.L.Info("memory allocated, checked, and freed")
	}
}

// OutOfMemory asks for more than the machine has and expects a refusal.
func OutOfMemory(size int) kernel.Body {
	return func(t *kernel.Task) {
		if addr := t.AllocateMemory(size); addr >= 0 {
			panic(errors.Errorf("allocating %d bytes unexpectedly succeeded at %d", size, addr))
		}

		t.L.Info("oversized allocation refused", "size", size)
	}
}
