package kernel

import (
	"context"

	"github.com/davecgh/go-spew/spew"
	"github.com/evanphx/tinyos/memory"
	hclog "github.com/hashicorp/go-hclog"
)

type ProcessInfo struct {
	Pid      int
	Name     string
	Priority Priority
	State    ProcessState
	Timeouts int
	Messages int
	Handles  int
	Frames   []int
	Swapped  int
}

// Snapshot is a copy of the machine state taken on the dispatcher.
type Snapshot struct {
	Current   int
	Processes []ProcessInfo
	Ready     [numPriorities][]int

	FramesUsed  int
	FramesTotal int
	SwapBytes   int64
	TLB         []memory.TLBEntry
}

func (s *Snapshot) Process(pid int) (ProcessInfo, bool) {
	for _, p := range s.Processes {
		if p.Pid == pid {
			return p, true
		}
	}

	return ProcessInfo{}, false
}

func (s *Snapshot) Dump() string {
	return spew.Sdump(s)
}

func (k *Kernel) snapshot() *Snapshot {
	s := &Snapshot{
		Current:     -1,
		Ready:       k.sched.Queued(),
		FramesUsed:  k.mem.FrameTable().Used(),
		FramesTotal: k.mem.FrameTable().Len(),
		SwapBytes:   k.mem.Swap().Size(),
		TLB:         k.mem.TLB().Entries(),
	}

	if cur := k.sched.Current(); cur != nil {
		s.Current = cur.Pid
	}

	k.sched.Procs.Each(func(p *PCB) {
		info := ProcessInfo{
			Pid:      p.Pid,
			Name:     p.Name,
			Priority: p.priority,
			State:    p.state,
			Timeouts: p.timeouts,
			Messages: len(p.messages),
			Frames:   p.pages.Frames(),
			Swapped:  p.pages.Swapped(),
		}

		for _, h := range p.handles {
			if h >= 0 {
				info.Handles++
			}
		}

		s.Processes = append(s.Processes, info)
	})

	return s
}

func sysSnapshot(ctx context.Context, l hclog.Logger, k *Kernel, c *Call) {
	c.Snap = k.snapshot()

	if l.IsTrace() {
		l.Trace("snapshot", "dump", c.Snap.Dump())
	}
}

func init() {
	Syscalls[CallSnapshot] = sysSnapshot
}
