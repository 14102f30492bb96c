package kernel

import (
	"context"

	hclog "github.com/hashicorp/go-hclog"
)

// fileHandle maps a per-process handle to the kernel-wide device handle.
func (p *PCB) fileHandle(fd int) (int, bool) {
	if fd < 0 || fd >= len(p.handles) || p.handles[fd] < 0 {
		return -1, false
	}

	return p.handles[fd], true
}

func (p *PCB) freeSlot() int {
	for i, h := range p.handles {
		if h < 0 {
			return i
		}
	}

	return -1
}

func sysOpen(ctx context.Context, l hclog.Logger, k *Kernel, c *Call) {
	var (
		path = c.Args.Str
	)

	cur := k.current(c)
	c.Ret = -1

	fd := cur.freeSlot()
	if fd < 0 {
		l.Warn("open-no-slot", "path", path)
		return
	}

	h, err := k.vfs.Open(path)
	if err != nil {
		l.Debug("open-failed", "path", path, "error", err)
		return
	}

	cur.handles[fd] = h
	c.Ret = fd
}

func sysClose(ctx context.Context, l hclog.Logger, k *Kernel, c *Call) {
	var (
		fd = c.Args.R0
	)

	cur := k.current(c)

	h, ok := cur.fileHandle(fd)
	if !ok {
		return
	}

	cur.handles[fd] = -1

	if err := k.vfs.Close(h); err != nil {
		l.Error("error closing fd", "error", err, "fd", fd)
		return
	}

	c.OK = true
}

func sysRead(ctx context.Context, l hclog.Logger, k *Kernel, c *Call) {
	var (
		fd   = c.Args.R0
		size = c.Args.R1
	)

	h, ok := k.current(c).fileHandle(fd)
	if !ok || size < 0 {
		return
	}

	data, err := k.vfs.Read(h, size)
	if err != nil {
		l.Debug("read-failed", "fd", fd, "error", err)
		return
	}

	c.Data = data
	c.OK = true
}

func sysSeek(ctx context.Context, l hclog.Logger, k *Kernel, c *Call) {
	var (
		fd = c.Args.R0
		to = c.Args.R1
	)

	h, ok := k.current(c).fileHandle(fd)
	if !ok {
		return
	}

	if err := k.vfs.Seek(h, int64(to)); err != nil {
		l.Debug("seek-failed", "fd", fd, "to", to, "error", err)
		return
	}

	c.OK = true
}

func sysWrite(ctx context.Context, l hclog.Logger, k *Kernel, c *Call) {
	var (
		fd   = c.Args.R0
		data = c.Args.Data
	)

	c.Ret = -1

	h, ok := k.current(c).fileHandle(fd)
	if !ok {
		return
	}

	n, err := k.vfs.Write(h, data)
	if err != nil {
		l.Debug("write-failed", "fd", fd, "error", err)
		return
	}

	c.Ret = n
}

func init() {
	Syscalls[CallOpen] = sysOpen
	Syscalls[CallClose] = sysClose
	Syscalls[CallRead] = sysRead
	Syscalls[CallSeek] = sysSeek
	Syscalls[CallWrite] = sysWrite
}
