package kernel

import (
	"context"

	"github.com/evanphx/tinyos/memory"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

func sysGetMapping(ctx context.Context, l hclog.Logger, k *Kernel, c *Call) {
	var (
		page = c.Args.R0
	)

	cur := k.current(c)

	_, err := k.mem.Resolve(cur.pages, page)
	if err != nil {
		if errors.Cause(err) != memory.ErrSegfault {
			l.Error("error resolving page", "error", err, "page", page)
		}

		return
	}

	c.OK = true
}

func sysAllocate(ctx context.Context, l hclog.Logger, k *Kernel, c *Call) {
	var (
		size = c.Args.R0
	)

	cur := k.current(c)

	addr, err := k.mem.Allocate(cur.pages, size)
	if err != nil {
		l.Debug("allocate-failed", "size", size, "error", err)
		c.Ret = -1
		return
	}

	c.Ret = addr
}

func sysFree(ctx context.Context, l hclog.Logger, k *Kernel, c *Call) {
	var (
		addr = c.Args.R0
		size = c.Args.R1
	)

	cur := k.current(c)

	if err := k.mem.Free(cur.pages, addr, size); err != nil {
		l.Debug("free-failed", "addr", addr, "size", size, "error", err)
		return
	}

	c.OK = true
}

func init() {
	Syscalls[CallGetMapping] = sysGetMapping
	Syscalls[CallAllocate] = sysAllocate
	Syscalls[CallFree] = sysFree
}
