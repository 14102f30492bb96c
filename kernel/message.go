package kernel

import (
	"context"

	hclog "github.com/hashicorp/go-hclog"
)

// Message is passed between processes by value. Sender is always set by
// the kernel.
type Message struct {
	Sender int
	Target int
	Type   int
	Data   []byte
}

func (m Message) clone() Message {
	if m.Data != nil {
		m.Data = append([]byte(nil), m.Data...)
	}

	return m
}

func sysSend(ctx context.Context, l hclog.Logger, k *Kernel, c *Call) {
	cur := k.current(c)

	msg := c.Args.Msg.clone()
	msg.Sender = cur.Pid

	target, ok := k.sched.Procs.Lookup(msg.Target)
	if !ok {
		l.Trace("message-dropped", "target", msg.Target, "type", msg.Type)
		return
	}

	target.messages = append(target.messages, msg)
	c.OK = true
}

func sysWait(ctx context.Context, l hclog.Logger, k *Kernel, c *Call) {
	k.current(c)

	if !k.sched.Await(c) {
		l.Trace("await-message")
	}
}

func init() {
	Syscalls[CallSend] = sysSend
	Syscalls[CallWait] = sysWait
}
