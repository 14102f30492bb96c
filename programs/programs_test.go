package programs

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/evanphx/tinyos/fs"
	"github.com/evanphx/tinyos/fs/host"
	"github.com/evanphx/tinyos/fs/random"
	"github.com/evanphx/tinyos/fs/tarfs"
	"github.com/evanphx/tinyos/kernel"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

func motd(t *testing.T) *tarfs.TarFS {
	var buf bytes.Buffer

	tw := tar.NewWriter(&buf)

	body := strings.Repeat("be nice to the scheduler. ", 10)

	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "motd", Typeflag: tar.TypeReg, Mode: 0644, Size: int64(len(body))}))

	_, err := tw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	tfs, err := tarfs.NewTarFS(&buf)
	require.NoError(t, err)

	return tfs
}

// run starts progs on a small machine and returns how each one exited.
func run(t *testing.T, root string, progs ...Program) (*kernel.Kernel, []kernel.ExitReason) {
	cfg := kernel.DefaultConfig()
	cfg.MemSize = 16 * cfg.PageSize
	cfg.QuantumMillis = 5

	vfs := fs.NewVFS(0, nil)
	vfs.Register("random", func() fs.Device { return random.NewDevice() })
	vfs.Register("file", func() fs.Device { return host.NewFileDevice(root) })
	archive := motd(t)
	vfs.Register("tar", func() fs.Device { return archive })

	k, err := kernel.NewKernel(cfg, kernel.WithLogger(hclog.NewNullLogger()), kernel.WithVFS(vfs))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var pids []int

	for _, p := range progs {
		pid, err := k.Spawn(ctx, p.Name, p.Priority, p.Body)
		require.NoError(t, err)

		pids = append(pids, pid)
	}

	require.NoError(t, k.Run(ctx))

	var reasons []kernel.ExitReason

	for _, pid := range pids {
		r, err := k.Wait(ctx, pid)
		require.NoError(t, err)

		reasons = append(reasons, r)
	}

	return k, reasons
}

func requireExited(t *testing.T, reasons []kernel.ExitReason) {
	for i, r := range reasons {
		require.Equal(t, kernel.Exited, r, "process %d", i)
	}
}

func TestPrograms(t *testing.T) {
	n := neko.Modern(t)

	n.It("plays ping pong", func(t *testing.T) {
		_, reasons := run(t, "",
			Program{Name: "ping", Priority: kernel.Interactive, Body: Ping(20)},
			Program{Name: "pong", Priority: kernel.Interactive, Body: Pong(20)},
		)

		requireExited(t, reasons)
	})

	n.It("keeps piggy data intact across swapping", func(t *testing.T) {
		var progs []Program

		for i := 0; i < 6; i++ {
			progs = append(progs, Program{
				Name:     "piggy",
				Priority: kernel.Background,
				Body:     Piggy(4*1024, int64(i), 10),
			})
		}

		k, reasons := run(t, "", progs...)

		requireExited(t, reasons)
		require.Greater(t, k.Memory().Swap().Size(), int64(0))
	})

	n.It("allocates, checks and frees memory", func(t *testing.T) {
		_, reasons := run(t, "", Program{Name: "memory", Priority: kernel.Interactive, Body: AllocateAndFree(7)})
		requireExited(t, reasons)
	})

	n.It("has oversized allocations refused", func(t *testing.T) {
		_, reasons := run(t, "", Program{Name: "oom", Priority: kernel.Interactive, Body: OutOfMemory(17 * 1024)})
		requireExited(t, reasons)
	})

	n.It("crashes when a check fails", func(t *testing.T) {
		_, reasons := run(t, "", Program{Name: "oom", Priority: kernel.Interactive, Body: OutOfMemory(1024)})
		require.Equal(t, []kernel.ExitReason{kernel.Crashed}, reasons)
	})

	n.It("reads random devices", func(t *testing.T) {
		_, reasons := run(t, "", Program{Name: "rng", Priority: kernel.Interactive, Body: RNG(1, 2)})
		requireExited(t, reasons)
	})

	n.It("writes and reads back a file", func(t *testing.T) {
		dir := t.TempDir()

		_, reasons := run(t, dir, Program{Name: "files", Priority: kernel.Interactive, Body: FileTest("classes.csv")})
		requireExited(t, reasons)

		data, err := os.ReadFile(filepath.Join(dir, "classes.csv"))
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(string(data), "course,class name"))
	})

	n.It("reads an archive member to the end", func(t *testing.T) {
		_, reasons := run(t, "", Program{Name: "cat", Priority: kernel.Interactive, Body: Cat("tar motd")})
		requireExited(t, reasons)
	})

	n.It("crashes on a missing archive member", func(t *testing.T) {
		_, reasons := run(t, "", Program{Name: "cat", Priority: kernel.Interactive, Body: Cat("tar nope")})
		require.Equal(t, []kernel.ExitReason{kernel.Crashed}, reasons)
	})

	n.It("sleeps and exits", func(t *testing.T) {
		start := time.Now()

		_, reasons := run(t, "", Program{Name: "sleeper", Priority: kernel.Interactive, Body: Sleeper(30)})
		requireExited(t, reasons)

		require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	n.It("starts children from init", func(t *testing.T) {
		var children []Program

		for _, name := range []string{"a", "b"} {
			children = append(children, Program{Name: name, Priority: kernel.Interactive, Body: Sleeper(1)})
		}

		_, reasons := run(t, "", Program{Name: "init", Priority: kernel.Interactive, Body: Init(children)})
		requireExited(t, reasons)
	})

	n.Meow()
}

func TestRegistry(t *testing.T) {
	names := Names()
	require.Contains(t, names, "pingpong")
	require.Contains(t, names, "piggy")

	for _, name := range names {
		progs, ok := Lookup(name)
		require.True(t, ok, name)
		require.NotEmpty(t, progs, name)
	}

	_, ok := Lookup("nope")
	require.False(t, ok)
}
