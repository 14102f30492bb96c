package kernel

// CreateProcess starts a new process running body and returns its pid, or
// -1 if it could not be created.
func (t *Task) CreateProcess(name string, prio Priority, body Body) int {
	c := t.syscall(&Call{
		Type: CallCreateProcess,
		Args: SysArgs{Str: name, Priority: prio, Body: body},
	})

	return c.Ret
}

// SwitchProcess gives up the rest of the turn voluntarily.
func (t *Task) SwitchProcess() {
	t.syscall(&Call{Type: CallSwitch})
}

func (t *Task) Sleep(ms int) {
	t.syscall(&Call{Type: CallSleep, Args: SysArgs{R0: ms}})
}

func (t *Task) GetPID() int {
	return t.syscall(&Call{Type: CallGetPID}).Ret
}

// GetPIDByName returns -1 when no live process has that name.
func (t *Task) GetPIDByName(name string) int {
	return t.syscall(&Call{Type: CallGetPIDByName, Args: SysArgs{Str: name}}).Ret
}

// Exit ends the process. It does not return.
func (t *Task) Exit() {
	t.exit(Exited)
}

// Open returns a handle for path, or -1.
func (t *Task) Open(path string) int {
	return t.syscall(&Call{Type: CallOpen, Args: SysArgs{Str: path}}).Ret
}

func (t *Task) Close(fd int) bool {
	return t.syscall(&Call{Type: CallClose, Args: SysArgs{R0: fd}}).OK
}

// Read returns up to n bytes, or nil on a bad handle or device error.
func (t *Task) Read(fd, n int) []byte {
	return t.syscall(&Call{Type: CallRead, Args: SysArgs{R0: fd, R1: n}}).Data
}

func (t *Task) Seek(fd, to int) bool {
	return t.syscall(&Call{Type: CallSeek, Args: SysArgs{R0: fd, R1: to}}).OK
}

// Write returns the number of bytes written, or -1.
func (t *Task) Write(fd int, data []byte) int {
	return t.syscall(&Call{Type: CallWrite, Args: SysArgs{R0: fd, Data: data}}).Ret
}

// SendMessage queues a copy of msg for msg.Target. Unknown targets are
// dropped silently.
func (t *Task) SendMessage(msg Message) {
	t.syscall(&Call{Type: CallSend, Args: SysArgs{Msg: msg}})
}

// WaitForMessage returns the oldest queued message, blocking until one
// arrives.
func (t *Task) WaitForMessage() Message {
	return t.syscall(&Call{Type: CallWait}).Msg
}

// GetMapping loads the translation for page into the TLB, swapping the page
// in if needed. It reports false for pages that are not mapped.
func (t *Task) GetMapping(page int) bool {
	return t.syscall(&Call{Type: CallGetMapping, Args: SysArgs{R0: page}}).OK
}

// AllocateMemory maps size bytes of zeroed memory and returns the virtual
// base address, or -1.
func (t *Task) AllocateMemory(size int) int {
	return t.syscall(&Call{Type: CallAllocate, Args: SysArgs{R0: size}}).Ret
}

func (t *Task) FreeMemory(addr, size int) bool {
	return t.syscall(&Call{Type: CallFree, Args: SysArgs{R0: addr, R1: size}}).OK
}

// translate turns a virtual address into a physical one. An address that
// cannot be mapped kills the process with a segmentation fault.
func (t *Task) translate(addr int) int {
	mem := t.k.mem

	if pa, ok := mem.PhysAddr(addr); ok {
		return pa
	}

	if addr >= 0 && t.GetMapping(addr/mem.PageSize()) {
		if pa, ok := mem.PhysAddr(addr); ok {
			return pa
		}
	}

	t.L.Warn("segfault", "addr", addr)
	t.exit(Segfault)

	return -1
}

func (t *Task) Load(addr int) byte {
	return t.k.mem.Memory().Load(t.translate(addr))
}

func (t *Task) Store(addr int, v byte) {
	t.k.mem.Memory().Store(t.translate(addr), v)
}
