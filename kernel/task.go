package kernel

import (
	"runtime"
	"runtime/debug"
	"sync/atomic"

	hclog "github.com/hashicorp/go-hclog"
)

// Body is the code of a userland program. It talks to the kernel only
// through the methods of t.
type Body func(t *Task)

// CrashHandler runs on the crashed process's goroutine with the recovered
// panic value. The process exits once it returns.
type CrashHandler func(t *Task, v interface{})

// Task runs one process body on its own goroutine. The goroutine only makes
// progress between a Start and the next kernel call, so at most one body
// executes at a time.
type Task struct {
	L hclog.Logger

	k    *Kernel
	pid  int
	name string
	body Body

	resume chan struct{}
	parked chan struct{}
	kill   chan struct{}

	expired atomic.Bool

	OnCrash CrashHandler
}

func newTask(k *Kernel, pid int, name string, body Body) *Task {
	return &Task{
		L:       k.L.Named("task").With("pid", pid, "name", name),
		k:       k,
		pid:     pid,
		name:    name,
		body:    body,
		resume:  make(chan struct{}, 1),
		parked:  make(chan struct{}, 1),
		kill:    make(chan struct{}),
		OnCrash: k.onCrash,
	}
}

func (t *Task) Pid() int {
	return t.pid
}

func (t *Task) Name() string {
	return t.name
}

// Start lets the body run until its next kernel call.
func (t *Task) Start() {
	select {
	case t.resume <- struct{}{}:
	default:
	}
}

// Stop blocks until the body has parked after issuing a kernel call.
func (t *Task) Stop() {
	<-t.parked
}

// RequestStop marks the quantum as used up. The body gives up the CPU at
// its next Cooperate.
func (t *Task) RequestStop() {
	t.expired.Store(true)
}

// Cooperate yields to the scheduler if the quantum has expired.
func (t *Task) Cooperate() {
	if t.expired.CompareAndSwap(true, false) {
		t.syscall(&Call{Type: CallSwitch, Args: SysArgs{Preempted: true}})
	}
}

func (t *Task) terminated() bool {
	select {
	case <-t.kill:
		return true
	case <-t.k.stopped:
		return true
	default:
		return false
	}
}

func (t *Task) park() {
	t.parked <- struct{}{}

	select {
	case <-t.resume:
	case <-t.kill:
		runtime.Goexit()
	case <-t.k.stopped:
		runtime.Goexit()
	}
}

func (t *Task) syscall(c *Call) *Call {
	c.task = t

	select {
	case t.k.calls <- c:
	case <-t.kill:
		runtime.Goexit()
	case <-t.k.stopped:
		runtime.Goexit()
	}

	t.park()

	return c
}

func (t *Task) exit(reason ExitReason) {
	t.syscall(&Call{Type: CallExit, Args: SysArgs{R0: int(reason)}})

	// The kernel destroys the process instead of resuming it.
	runtime.Goexit()
}

func (t *Task) run() {
	select {
	case <-t.resume:
	case <-t.kill:
		return
	case <-t.k.stopped:
		return
	}

	defer func() {
		// A Goexit from exit or from a destroyed process also lands here.
		r := recover()
		if r == nil || t.terminated() {
			return
		}

		t.L.Error("process-crash", "panic", r, "stack", string(debug.Stack()))

		if t.OnCrash != nil {
			t.OnCrash(t, r)
		}

		t.exit(Crashed)
	}()

	t.body(t)

	t.exit(Exited)
}
