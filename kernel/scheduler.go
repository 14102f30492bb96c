package kernel

import (
	"container/heap"
	"time"

	"github.com/evanphx/tinyos/memory"
	"github.com/evanphx/tinyos/pkg/ilist"
	hclog "github.com/hashicorp/go-hclog"
)

// Percent chance of picking each ready queue, by the highest non-empty one.
var queueWeights = [numPriorities][numPriorities]int{
	Realtime:    {60, 30, 10},
	Interactive: {0, 75, 25},
	Background:  {0, 0, 100},
}

// Scheduler decides which PCB is current. It is driven only from the
// dispatcher and does no locking of its own.
type Scheduler struct {
	L hclog.Logger

	Procs *ProcessManager

	// Reap releases everything a destroyed process held. It runs after the
	// PCB has left every queue and the process index.
	Reap func(p *PCB)

	demoteAfter int
	rand        memory.Rand
	now         func() time.Time

	current  *PCB
	ready    [numPriorities]ilist.List
	waiting  ilist.List
	sleepers sleepHeap
}

func NewScheduler(demoteAfter int, rand memory.Rand, now func() time.Time, l hclog.Logger) *Scheduler {
	if l == nil {
		l = hclog.NewNullLogger()
	}

	if now == nil {
		now = time.Now
	}

	return &Scheduler{
		L:           l,
		Procs:       NewProcessManager(),
		demoteAfter: demoteAfter,
		rand:        rand,
		now:         now,
	}
}

func (s *Scheduler) Current() *PCB {
	return s.current
}

// Live is the number of processes that have been admitted and not yet
// destroyed.
func (s *Scheduler) Live() int {
	return s.Procs.Len()
}

// Admit assigns p a pid and queues it behind its peers.
func (s *Scheduler) Admit(p *PCB) int {
	pid := s.Procs.AssignPid(p)
	s.enqueue(p)

	s.L.Trace("admit", "pid", pid, "name", p.Name, "priority", p.priority)

	return pid
}

func (s *Scheduler) enqueue(p *PCB) {
	p.state = Ready
	s.ready[p.priority].PushBack(p)
}

func (s *Scheduler) setCurrent(p *PCB) {
	s.current = p
	if p != nil {
		p.state = Running
	}
}

// Next removes and returns the process that should run next, or nil when
// nothing is runnable. Elapsed sleepers go first, then message waiters with
// mail, then a weighted pick among the ready queues.
func (s *Scheduler) Next() *PCB {
	if len(s.sleepers) > 0 && !s.sleepers[0].wake.After(s.now()) {
		return heap.Pop(&s.sleepers).(*PCB)
	}

	for e := s.waiting.Front(); e != nil; e = e.Next() {
		p := e.(*PCB)
		if len(p.messages) > 0 {
			s.waiting.Remove(p)
			p.deliver()
			return p
		}
	}

	return s.pickReady()
}

func (s *Scheduler) pickReady() *PCB {
	top := -1

	for i := range s.ready {
		if !s.ready[i].Empty() {
			top = i
			break
		}
	}

	if top < 0 {
		return nil
	}

	weights := queueWeights[top]

	r := s.rand.Intn(100)
	level := numPriorities - 1

	for i, w := range weights {
		if r < w {
			level = i
			break
		}
		r -= w
	}

	// An empty pick falls to the lower queues, then wraps around.
	for i := 0; i < numPriorities; i++ {
		q := &s.ready[(level+i)%numPriorities]
		if !q.Empty() {
			return q.PopFront().(*PCB)
		}
	}

	return nil
}

// Switch ends the current process's turn. A descheduled process is
// destroyed. Otherwise the turn is accounted and the process goes back to
// its ready queue, unless nothing else is runnable, in which case it keeps
// running.
func (s *Scheduler) Switch(deschedule, preempted bool) {
	cur := s.current

	if cur == nil {
		s.setCurrent(s.Next())
		return
	}

	if deschedule {
		s.current = nil
		s.Destroy(cur)
		s.setCurrent(s.Next())
		return
	}

	s.account(cur, preempted)

	next := s.Next()
	if next == nil {
		return
	}

	s.enqueue(cur)
	s.setCurrent(next)
}

func (s *Scheduler) account(p *PCB, preempted bool) {
	if !preempted {
		p.timeouts = 0
		return
	}

	p.timeouts++

	if p.timeouts < s.demoteAfter {
		return
	}

	p.timeouts = 0

	if p.priority < Background {
		p.priority++
		s.L.Debug("demote", "pid", p.Pid, "priority", p.priority)
	}
}

// Sleep parks the current process until ms milliseconds from now.
func (s *Scheduler) Sleep(ms int) {
	cur := s.current
	if cur == nil {
		return
	}

	if ms < 0 {
		ms = 0
	}

	s.account(cur, false)

	cur.state = Sleeping
	cur.wake = s.now().Add(time.Duration(ms) * time.Millisecond)
	heap.Push(&s.sleepers, cur)

	s.current = nil
	s.setCurrent(s.Next())
}

// Await hands c the current process's oldest message and returns true. With
// an empty queue the process waits for mail and another process is
// selected.
func (s *Scheduler) Await(c *Call) bool {
	cur := s.current
	if cur == nil {
		return false
	}

	if len(cur.messages) > 0 {
		cur.pending = c
		cur.deliver()
		return true
	}

	s.account(cur, false)

	cur.state = Awaiting
	cur.pending = c
	s.waiting.PushBack(cur)

	s.current = nil
	s.setCurrent(s.Next())

	return false
}

// Destroy removes p from wherever it is queued, drops it from the process
// index and reaps it.
func (s *Scheduler) Destroy(p *PCB) {
	switch p.state {
	case Ready:
		s.ready[p.priority].Remove(p)
	case Awaiting:
		s.waiting.Remove(p)
	case Sleeping:
		heap.Remove(&s.sleepers, p.heapIndex)
	case Dead:
		return
	}

	if s.current == p {
		s.current = nil
	}

	p.state = Dead
	p.pending = nil
	s.Procs.RemoveProc(p)

	s.L.Trace("destroy", "pid", p.Pid, "name", p.Name, "reason", p.reason)

	if s.Reap != nil {
		s.Reap(p)
	}
}

// NextWake reports when the earliest sleeper is due.
func (s *Scheduler) NextWake() (time.Time, bool) {
	if len(s.sleepers) == 0 {
		return time.Time{}, false
	}

	return s.sleepers[0].wake, true
}

// Queued returns the pids in each ready queue, front first.
func (s *Scheduler) Queued() [numPriorities][]int {
	var out [numPriorities][]int

	for i := range s.ready {
		for e := s.ready[i].Front(); e != nil; e = e.Next() {
			out[i] = append(out[i], e.(*PCB).Pid)
		}
	}

	return out
}

type sleepHeap []*PCB

func (h sleepHeap) Len() int { return len(h) }

func (h sleepHeap) Less(i, j int) bool {
	if h[i].wake.Equal(h[j].wake) {
		return h[i].Pid < h[j].Pid
	}

	return h[i].wake.Before(h[j].wake)
}

func (h sleepHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *sleepHeap) Push(x interface{}) {
	p := x.(*PCB)
	p.heapIndex = len(*h)
	*h = append(*h, p)
}

func (h *sleepHeap) Pop() interface{} {
	old := *h
	n := len(old)
	p := old[n-1]
	old[n-1] = nil
	p.heapIndex = -1
	*h = old[:n-1]
	return p
}
