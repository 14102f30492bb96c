package kernel

import (
	"context"

	hclog "github.com/hashicorp/go-hclog"
)

type CallType int

const (
	CallCreateProcess CallType = iota
	CallSwitch
	CallSleep
	CallGetPID
	CallGetPIDByName
	CallExit
	CallOpen
	CallClose
	CallRead
	CallSeek
	CallWrite
	CallSend
	CallWait
	CallGetMapping
	CallAllocate
	CallFree

	// Host calls, issued from outside any process.
	CallSpawn
	CallSnapshot

	numCalls
)

var CallNames = [numCalls]string{
	CallCreateProcess: "create-process",
	CallSwitch:        "switch-process",
	CallSleep:         "sleep",
	CallGetPID:        "get-pid",
	CallGetPIDByName:  "get-pid-by-name",
	CallExit:          "exit",
	CallOpen:          "open",
	CallClose:         "close",
	CallRead:          "read",
	CallSeek:          "seek",
	CallWrite:         "write",
	CallSend:          "send-message",
	CallWait:          "wait-for-message",
	CallGetMapping:    "get-mapping",
	CallAllocate:      "allocate-memory",
	CallFree:          "free-memory",
	CallSpawn:         "spawn",
	CallSnapshot:      "snapshot",
}

func (c CallType) String() string {
	if c < 0 || c >= numCalls {
		return "unknown"
	}

	return CallNames[c]
}

type SysArgs struct {
	R0, R1 int

	Str       string
	Data      []byte
	Priority  Priority
	Body      Body
	Msg       Message
	Preempted bool
}

// Call is one request to the kernel. The handler fills in the results
// before the caller is resumed.
type Call struct {
	Type CallType
	Args SysArgs

	Ret  int
	OK   bool
	Data []byte
	Msg  Message
	Snap *Snapshot
	Err  error

	task  *Task
	reply chan *Call
}

type Handler func(ctx context.Context, l hclog.Logger, k *Kernel, c *Call)

var Syscalls [numCalls]Handler

func (k *Kernel) handle(ctx context.Context, c *Call) {
	l := k.L

	if c.task != nil {
		l = l.With("pid", c.task.pid)
	}

	if c.Type < 0 || c.Type >= numCalls || Syscalls[c.Type] == nil {
		l.Error("unknown-call", "type", int(c.Type))
		c.Ret = -1
		return
	}

	l.Trace("call", "type", c.Type)

	Syscalls[c.Type](ctx, l, k, c)
}
