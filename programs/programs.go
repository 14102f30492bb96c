// Package programs holds sample userland programs for the kernel.
package programs

import (
	"sort"

	"github.com/evanphx/tinyos/kernel"
)

// Program is a body with the name and priority it is started under.
type Program struct {
	Name     string
	Priority kernel.Priority
	Body     kernel.Body
}

var registry = map[string]func() []Program{
	"pingpong": func() []Program {
		return []Program{
			{Name: "ping", Priority: kernel.Interactive, Body: Ping(10)},
			{Name: "pong", Priority: kernel.Interactive, Body: Pong(10)},
		}
	},
	"piggy": func() []Program {
		var out []Program
		for i := 0; i < 4; i++ {
			out = append(out, Program{Name: "piggy", Priority: kernel.Background, Body: Piggy(100*1024, int64(i), 2500)})
		}
		return out
	},
	"memory": func() []Program {
		return []Program{{Name: "memory", Priority: kernel.Interactive, Body: AllocateAndFree(1)}}
	},
	"oom": func() []Program {
		return []Program{{Name: "oom", Priority: kernel.Interactive, Body: OutOfMemory(101 * 1024)}}
	},
	"rng": func() []Program {
		return []Program{{Name: "rng", Priority: kernel.Interactive, Body: RNG(123456789, 314159265)}}
	},
	"files": func() []Program {
		return []Program{{Name: "files", Priority: kernel.Interactive, Body: FileTest("myclasses.csv")}}
	},
	"cat": func() []Program {
		return []Program{{Name: "cat", Priority: kernel.Interactive, Body: Cat("tar motd")}}
	},
	"sleeper": func() []Program {
		return []Program{{Name: "sleeper", Priority: kernel.Interactive, Body: Sleeper(5000)}}
	},
}

// Lookup returns the processes a named program set starts.
func Lookup(name string) ([]Program, bool) {
	f, ok := registry[name]
	if !ok {
		return nil, false
	}

	return f(), true
}

func Names() []string {
	var names []string
	for name := range registry {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Init starts every child and exits.
func Init(children []Program) kernel.Body {
	return func(t *kernel.Task) {
		for _, c := range children {
			pid := t.CreateProcess(c.Name, c.Priority, c.Body)
			t.L.Info("started", "child", c.Name, "child-pid", pid, "priority", c.Priority)
		}
	}
}
