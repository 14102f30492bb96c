package kernel

import (
	"context"

	hclog "github.com/hashicorp/go-hclog"
)

func sysCreateProcess(ctx context.Context, l hclog.Logger, k *Kernel, c *Call) {
	var (
		name = c.Args.Str
		prio = c.Args.Priority
		body = c.Args.Body
	)

	k.current(c)

	if body == nil || !prio.Valid() {
		l.Warn("create-process-rejected", "name", name, "priority", int(prio))
		c.Ret = -1
		return
	}

	c.Ret = k.admit(name, prio, body)
}

func sysSwitch(ctx context.Context, l hclog.Logger, k *Kernel, c *Call) {
	k.current(c)
	k.sched.Switch(false, c.Args.Preempted)
}

func sysSleep(ctx context.Context, l hclog.Logger, k *Kernel, c *Call) {
	var (
		ms = c.Args.R0
	)

	k.current(c)
	k.sched.Sleep(ms)
}

func sysGetPID(ctx context.Context, l hclog.Logger, k *Kernel, c *Call) {
	c.Ret = k.current(c).Pid
}

func sysGetPIDByName(ctx context.Context, l hclog.Logger, k *Kernel, c *Call) {
	var (
		name = c.Args.Str
	)

	k.current(c)

	p, ok := k.sched.Procs.LookupName(name)
	if !ok {
		c.Ret = -1
		return
	}

	c.Ret = p.Pid
}

func sysExit(ctx context.Context, l hclog.Logger, k *Kernel, c *Call) {
	var (
		reason = ExitReason(c.Args.R0)
	)

	cur := k.current(c)
	cur.reason = reason

	k.sched.Switch(true, false)
}

func init() {
	Syscalls[CallCreateProcess] = sysCreateProcess
	Syscalls[CallSwitch] = sysSwitch
	Syscalls[CallSleep] = sysSleep
	Syscalls[CallGetPID] = sysGetPID
	Syscalls[CallGetPIDByName] = sysGetPIDByName
	Syscalls[CallExit] = sysExit
}
