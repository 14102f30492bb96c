package kernel

import (
	"context"
	"math/rand"
	"runtime/debug"
	"sync"
	"time"

	"github.com/evanphx/tinyos/fs"
	"github.com/evanphx/tinyos/log"
	"github.com/evanphx/tinyos/memory"
	"github.com/evanphx/tinyos/pkg/waiter"
	hclog "github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

var (
	ErrKernelPanic = errors.New("kernel panic")
	ErrStopped     = errors.New("kernel stopped")
	ErrRunning     = errors.New("kernel already running")
	ErrNoBody      = errors.New("process has no body")
)

// EventProcessExit is notified with a ProcessExit payload whenever a
// process is destroyed.
const EventProcessExit waiter.EventType = 1

type ProcessExit struct {
	Pid    int
	Name   string
	Reason ExitReason
}

// Kernel owns the machine and serializes every mutation of it onto the
// goroutine running Run.
type Kernel struct {
	L hclog.Logger

	cfg   Config
	mem   *memory.Manager
	vfs   fs.Device
	sched *Scheduler
	rand  memory.Rand
	now   func() time.Time
	swap  memory.SwapStore

	onCrash CrashHandler

	calls   chan *Call
	stopped chan struct{}

	// last is the PCB that most recently ran, so the TLB is only flushed
	// when a different process takes over.
	last     *PCB
	admitted bool

	events waiter.Waiter

	mu       sync.Mutex
	running  bool
	finished bool
	exits    map[int]ExitReason
}

type Option func(k *Kernel)

func WithLogger(l hclog.Logger) Option {
	return func(k *Kernel) {
		k.L = l
	}
}

// WithRand replaces the source used for scheduling and eviction choices.
func WithRand(r memory.Rand) Option {
	return func(k *Kernel) {
		k.rand = r
	}
}

func WithClock(now func() time.Time) Option {
	return func(k *Kernel) {
		k.now = now
	}
}

func WithSwap(s memory.SwapStore) Option {
	return func(k *Kernel) {
		k.swap = s
	}
}

func WithVFS(d fs.Device) Option {
	return func(k *Kernel) {
		k.vfs = d
	}
}

func WithCrashHandler(h CrashHandler) Option {
	return func(k *Kernel) {
		k.onCrash = h
	}
}

func NewKernel(cfg Config, opts ...Option) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	k := &Kernel{
		L:       log.Named("kernel"),
		cfg:     cfg,
		now:     time.Now,
		calls:   make(chan *Call),
		stopped: make(chan struct{}),
		exits:   make(map[int]ExitReason),
	}

	for _, opt := range opts {
		opt(k)
	}

	if k.rand == nil {
		k.rand = rand.New(rand.NewSource(k.now().UnixNano()))
	}

	if k.vfs == nil {
		k.vfs = fs.NewVFS(cfg.VFSSlots, k.L.Named("vfs"))
	}

	mem, err := memory.NewManager(cfg.Geometry(), k.swap, k.rand, k.L.Named("memory"))
	if err != nil {
		return nil, errors.Wrapf(err, "configuring memory")
	}

	k.mem = mem

	k.sched = NewScheduler(cfg.DemoteAfter, k.rand, k.now, k.L.Named("sched"))
	k.sched.Reap = k.reap

	return k, nil
}

func (k *Kernel) Config() Config {
	return k.cfg
}

func (k *Kernel) Memory() *memory.Manager {
	return k.mem
}

func (k *Kernel) Scheduler() *Scheduler {
	return k.sched
}

// Run drives the machine until every admitted process has exited, ctx is
// cancelled, or a kernel handler panics.
func (k *Kernel) Run(ctx context.Context) (err error) {
	k.mu.Lock()
	switch {
	case k.finished:
		k.mu.Unlock()
		return ErrStopped
	case k.running:
		k.mu.Unlock()
		return ErrRunning
	}
	k.running = true
	k.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			k.L.Error("kernel-panic", "panic", r, "stack", string(debug.Stack()))
			err = errors.Wrapf(ErrKernelPanic, "%v", r)
		}

		k.mu.Lock()
		k.running = false
		k.finished = true
		k.mu.Unlock()

		close(k.stopped)
	}()

	ticker := time.NewTicker(k.cfg.Quantum())
	defer ticker.Stop()

	for {
		if k.sched.Current() == nil {
			k.sched.Switch(false, false)

			if k.sched.Current() != nil {
				k.resume()
				continue
			}

			if k.admitted && k.sched.Live() == 0 {
				k.L.Debug("all-processes-exited")
				return nil
			}

			if err := k.idle(ctx); err != nil {
				return err
			}

			continue
		}

		select {
		case c := <-k.calls:
			k.dispatch(ctx, c)
		case <-ticker.C:
			k.sched.Current().task.RequestStop()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// idle waits for the next sleeper to come due or for a host call.
func (k *Kernel) idle(ctx context.Context) error {
	var wake <-chan time.Time

	if at, ok := k.sched.NextWake(); ok {
		timer := time.NewTimer(at.Sub(k.now()))
		defer timer.Stop()

		wake = timer.C
	}

	select {
	case c := <-k.calls:
		k.dispatch(ctx, c)
	case <-wake:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

func (k *Kernel) dispatch(ctx context.Context, c *Call) {
	if c.task == nil {
		k.handle(ctx, c)
		c.reply <- c
		return
	}

	c.task.Stop()
	k.handle(ctx, c)
	k.resume()
}

// resume lets the current process run again, flushing per-process state
// when it differs from the one that ran last.
func (k *Kernel) resume() {
	cur := k.sched.Current()
	if cur == nil {
		return
	}

	if cur != k.last {
		k.mem.TLB().Clear()
		cur.task.expired.Store(false)
		k.last = cur

		k.L.Trace("context-switch", "pid", cur.Pid, "name", cur.Name)
	}

	cur.task.Start()
}

func (k *Kernel) admit(name string, prio Priority, body Body) int {
	p := newPCB(name, prio, k.cfg.HandleSlots)

	pid := k.sched.Admit(p)

	p.pages = k.mem.NewPageTable(pid)
	p.task = newTask(k, pid, name, body)

	k.admitted = true

	go p.task.run()

	return pid
}

func (k *Kernel) reap(p *PCB) {
	for i, h := range p.handles {
		if h < 0 {
			continue
		}

		if err := k.vfs.Close(h); err != nil {
			k.L.Warn("close-on-exit", "pid", p.Pid, "handle", h, "error", err)
		}

		p.handles[i] = -1
	}

	k.mem.Release(p.pages)

	if p == k.last {
		k.last = nil
	}

	close(p.task.kill)

	k.mu.Lock()
	k.exits[p.Pid] = p.reason
	k.mu.Unlock()

	k.L.Debug("process-exit", "pid", p.Pid, "name", p.Name, "reason", p.reason)

	k.events.Notify(EventProcessExit, ProcessExit{Pid: p.Pid, Name: p.Name, Reason: p.reason})
}

// host runs c on the dispatcher, or directly when the dispatcher is not
// running.
func (k *Kernel) host(ctx context.Context, c *Call) error {
	k.mu.Lock()
	if !k.running {
		defer k.mu.Unlock()
		k.handle(ctx, c)
		return nil
	}
	k.mu.Unlock()

	c.reply = make(chan *Call, 1)

	select {
	case k.calls <- c:
	case <-k.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-c.reply:
		return nil
	case <-k.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Spawn admits a new process from outside the machine. It is the way to
// boot the first process, before or after Run starts.
func (k *Kernel) Spawn(ctx context.Context, name string, prio Priority, body Body) (int, error) {
	k.mu.Lock()
	finished := k.finished
	k.mu.Unlock()

	if finished {
		return -1, ErrStopped
	}

	c := &Call{
		Type: CallSpawn,
		Args: SysArgs{Str: name, Priority: prio, Body: body},
	}

	if err := k.host(ctx, c); err != nil {
		return -1, err
	}

	return c.Ret, c.Err
}

// Snapshot returns a consistent view of the scheduler and memory.
func (k *Kernel) Snapshot(ctx context.Context) (*Snapshot, error) {
	c := &Call{Type: CallSnapshot}

	if err := k.host(ctx, c); err != nil {
		return nil, err
	}

	return c.Snap, nil
}

func (k *Kernel) exitReason(pid int) (ExitReason, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	r, ok := k.exits[pid]
	return r, ok
}

// Wait blocks until pid has exited and returns why.
func (k *Kernel) Wait(ctx context.Context, pid int) (ExitReason, error) {
	done := make(chan ExitReason, 1)

	e := &waiter.Event{
		Mask: EventProcessExit,
		Callback: func(e *waiter.Event, payload interface{}) {
			if pe, ok := payload.(ProcessExit); ok && pe.Pid == pid {
				select {
				case done <- pe.Reason:
				default:
				}
			}
		},
	}

	k.events.Register(e)
	defer k.events.Unregister(e)

	if r, ok := k.exitReason(pid); ok {
		return r, nil
	}

	select {
	case r := <-done:
		return r, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (k *Kernel) current(c *Call) *PCB {
	cur := k.sched.Current()
	if cur == nil || c.task == nil || cur.task != c.task {
		panic(errors.Errorf("call %s from a process that is not current", c.Type))
	}

	return cur
}

func sysSpawn(ctx context.Context, l hclog.Logger, k *Kernel, c *Call) {
	if c.Args.Body == nil {
		c.Ret = -1
		c.Err = ErrNoBody
		return
	}

	if !c.Args.Priority.Valid() {
		c.Ret = -1
		c.Err = errors.Errorf("invalid priority %d", int(c.Args.Priority))
		return
	}

	c.Ret = k.admit(c.Args.Str, c.Args.Priority, c.Args.Body)
}

func init() {
	Syscalls[CallSpawn] = sysSpawn
}
