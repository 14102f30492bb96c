package kernel

import (
	"strings"
	"sync"
	"time"

	"github.com/evanphx/tinyos/memory"
	"github.com/evanphx/tinyos/pkg/ilist"
	"github.com/pkg/errors"
)

type Priority int

const (
	Realtime Priority = iota
	Interactive
	Background

	numPriorities = 3
)

func (p Priority) String() string {
	switch p {
	case Realtime:
		return "realtime"
	case Interactive:
		return "interactive"
	case Background:
		return "background"
	default:
		return "unknown"
	}
}

func (p Priority) Valid() bool {
	return p >= Realtime && p < numPriorities
}

func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(s) {
	case "realtime", "rt":
		return Realtime, nil
	case "interactive":
		return Interactive, nil
	case "background", "bg":
		return Background, nil
	default:
		return 0, errors.Errorf("unknown priority: %s", s)
	}
}

type ExitReason int

const (
	Exited ExitReason = iota
	Crashed
	Segfault
)

func (r ExitReason) String() string {
	switch r {
	case Exited:
		return "exited"
	case Crashed:
		return "crashed"
	case Segfault:
		return "segfault"
	default:
		return "unknown"
	}
}

type ProcessState int

const (
	Ready ProcessState = iota
	Running
	Sleeping
	Awaiting
	Dead
)

func (s ProcessState) String() string {
	switch s {
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Sleeping:
		return "sleeping"
	case Awaiting:
		return "awaiting"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// PCB is the kernel's record of one process. Only the dispatcher touches it.
type PCB struct {
	// Links the PCB into a ready queue or the message waiter list; it is
	// never in more than one.
	ilist.Entry

	Pid  int
	Name string

	priority Priority
	state    ProcessState
	reason   ExitReason

	wake      time.Time
	heapIndex int
	timeouts  int

	handles  []int
	messages []Message
	pending  *Call

	pages *memory.PageTable
	task  *Task
}

func newPCB(name string, prio Priority, slots int) *PCB {
	p := &PCB{
		Name:      name,
		priority:  prio,
		heapIndex: -1,
		handles:   make([]int, slots),
	}

	for i := range p.handles {
		p.handles[i] = -1
	}

	return p
}

func (p *PCB) Priority() Priority {
	return p.priority
}

func (p *PCB) State() ProcessState {
	return p.state
}

// deliver hands the head of the message queue to the pending WaitForMessage.
func (p *PCB) deliver() {
	msg := p.messages[0]
	p.messages = p.messages[1:]

	if p.pending != nil {
		p.pending.Msg = msg
		p.pending = nil
	}
}

// ProcessManager indexes live PCBs by pid and by name. Pids are never
// reused within one kernel.
type ProcessManager struct {
	mu        sync.RWMutex
	highWater int
	processes map[int]*PCB
	names     map[string][]int
}

func NewProcessManager() *ProcessManager {
	return &ProcessManager{
		processes: make(map[int]*PCB),
		names:     make(map[string][]int),
	}
}

func (pm *ProcessManager) AssignPid(p *PCB) int {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.highWater++
	pid := pm.highWater

	p.Pid = pid
	pm.processes[pid] = p
	pm.names[p.Name] = append(pm.names[p.Name], pid)

	return pid
}

func (pm *ProcessManager) Lookup(pid int) (*PCB, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	p, ok := pm.processes[pid]
	return p, ok
}

// LookupName returns the most recently registered live process called name.
func (pm *ProcessManager) LookupName(name string) (*PCB, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	pids := pm.names[name]
	if len(pids) == 0 {
		return nil, false
	}

	return pm.processes[pids[len(pids)-1]], true
}

func (pm *ProcessManager) RemoveProc(p *PCB) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	delete(pm.processes, p.Pid)

	pids := pm.names[p.Name]
	for i, pid := range pids {
		if pid == p.Pid {
			pids = append(pids[:i], pids[i+1:]...)
			break
		}
	}

	if len(pids) == 0 {
		delete(pm.names, p.Name)
	} else {
		pm.names[p.Name] = pids
	}
}

func (pm *ProcessManager) Len() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	return len(pm.processes)
}

// Each calls f for every live process in pid order.
func (pm *ProcessManager) Each(f func(p *PCB)) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	for pid := 1; pid <= pm.highWater; pid++ {
		if p, ok := pm.processes[pid]; ok {
			f(p)
		}
	}
}
