package programs

import (
	"fmt"
	"strings"

	"github.com/evanphx/tinyos/kernel"
	"github.com/pkg/errors"
)

// RNG reads one byte from an unseeded stream and one from each seeded one.
func RNG(seeds ...int64) kernel.Body {
	return func(t *kernel.Task) {
		paths := []string{"random"}
		for _, s := range seeds {
			paths = append(paths, fmt.Sprintf("random %d", s))
		}

		var nums []int

		for _, path := range paths {
			fd := t.Open(path)
			if fd < 0 {
				panic(errors.Errorf("opening %q failed", path))
			}

			b := t.Read(fd, 1)
			if len(b) != 1 {
				panic(errors.Errorf("reading %q failed", path))
			}

			nums = append(nums, int(b[0]))

			t.Close(fd)
		}

		t.L.Info("today's random numbers", "numbers", nums)
	}
}

var classes = []string{
	"course,class name,start time,end time",
	"icsi412,operating systems,09:00,10:00",
	"amat220,linear algebra,11:30,12:30",
	"ahis101,us history,13:00,14:00",
	"achm101,chemistry,15:00,16:00",
}

// FileTest writes a small CSV file, reads it back and checks it.
func FileTest(name string) kernel.Body {
	return func(t *kernel.Task) {
		fd := t.Open("file " + name)
		if fd < 0 {
			panic(errors.Errorf("opening file %s failed", name))
		}

		want := strings.Join(classes, "\n") + "\n"

		for _, line := range classes {
			if t.Write(fd, []byte(line+"\n")) < 0 {
				panic(errors.Errorf("writing %s failed", name))
			}
		}

		t.Seek(fd, 0)

		got := t.Read(fd, 1024)
		if string(got) != want {
			panic(errors.Errorf("read back %q, want %q", got, want))
		}

		t.Close(fd)

		t.L.Info("file written and read back", "file", name, "bytes", len(got))
	}
}

// Cat reads path in chunks until the device returns nothing.
func Cat(path string) kernel.Body {
	return func(t *kernel.Task) {
		fd := t.Open(path)
		if fd < 0 {
			panic(errors.Errorf("opening %q failed", path))
		}

		var out []byte

		for {
			chunk := t.Read(fd, 64)
			if len(chunk) == 0 {
				break
			}

			out = append(out, chunk...)
		}

		t.Close(fd)

		t.L.Info("cat", "path", path, "bytes", len(out), "data", string(out))
	}
}

// Sleeper sleeps once and exits.
func Sleeper(ms int) kernel.Body {
	return func(t *kernel.Task) {
		t.L.Info("sleeping", "ms", ms)
		t.Sleep(ms)
		t.L.Info("sleeping finished")
	}
}
