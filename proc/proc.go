// proc is the user-process lifecycle: exec, wait, and exit, with the
// per-process descriptor table and the shared wait-records tying a
// parent to each child.
//
// The program loader is a collaborator, not part of this layer: a
// Body plays the role of the loaded program text, running against its
// Process the way user code runs against the kernel.
package proc

import (
	"sync"

	"github.com/osdev-edu/gofs/console"
	"github.com/osdev-edu/gofs/dir"
	"github.com/osdev-edu/gofs/fd"
	"github.com/osdev-edu/gofs/file"
	"github.com/osdev-edu/gofs/fs"
	pathpkg "github.com/osdev-edu/gofs/path"
	"github.com/osdev-edu/gofs/util"
)

type Pid int32

// KilledExit is the code of a process terminated by a kernel fault.
const KilledExit = -1

// Body is the entry point of a loaded program. Its return value is the
// process's exit code unless the body calls Exit itself.
type Body func(p *Process) int

// waitRecord is shared between one parent and one child. It starts
// with two references and is abandoned when both sides have exited.
type waitRecord struct {
	pid Pid

	mu       *sync.Mutex
	exitCode int
	dead     bool
	refs     int

	// wait is upped once at child exit; once admits a single
	// successful Wait.
	wait *sema
	once *sema
}

func mkWaitRecord(pid Pid) *waitRecord {
	return &waitRecord{
		pid:  pid,
		mu:   new(sync.Mutex),
		refs: 2,
		wait: mkSema(0),
		once: mkSema(1),
	}
}

func (w *waitRecord) deref() {
	w.mu.Lock()
	w.refs--
	if w.refs < 0 {
		panic("proc: wait-record refcount underflow")
	}
	w.mu.Unlock()
}

// Kernel holds the machine-wide pieces: the filesystem, the console,
// and pid allocation.
type Kernel struct {
	fsys *fs.FileSys
	cons console.Console

	mu      *sync.Mutex
	nextPid Pid
	live    map[Pid]*Process
}

func MkKernel(fsys *fs.FileSys, cons console.Console) *Kernel {
	return &Kernel{
		fsys: fsys,
		cons: cons,
		mu:   new(sync.Mutex),
		live: make(map[Pid]*Process),
	}
}

type Process struct {
	pid  Pid
	name string
	k    *Kernel

	// FDs is the process's descriptor table; syscalls go through it.
	FDs *fd.Table

	exe    *file.File
	shared *waitRecord

	mu       *sync.Mutex
	children map[Pid]*waitRecord
	exited   bool
}

func (p *Process) Pid() Pid {
	return p.pid
}

func (p *Process) Name() string {
	return p.name
}

func (p *Process) Kernel() *Kernel {
	return p.k
}

// Exec resolves path to an executable, protects it from writes for the
// program's lifetime, and starts body in a new process. Returns the
// child pid, or -1 without creating a child if the program does not
// exist or is not a file.
//
// parent may be nil for the initial process.
func (k *Kernel) Exec(parent *Process, path string, body Body) Pid {
	store := k.fsys.Store()

	exe := file.Open(pathpkg.InodeOf(store, parentCwd(parent), path))
	if exe == nil {
		return -1
	}
	exe.DenyWrite()

	k.mu.Lock()
	k.nextPid++
	pid := k.nextPid
	k.mu.Unlock()

	base, _ := pathpkg.Basename(path)
	p := &Process{
		pid:      pid,
		name:     base,
		k:        k,
		FDs:      fd.MkTable(k.fsys, k.cons),
		exe:      exe,
		shared:   mkWaitRecord(pid),
		mu:       new(sync.Mutex),
		children: make(map[Pid]*waitRecord),
	}

	if parent != nil {
		parent.mu.Lock()
		parent.children[pid] = p.shared
		parent.mu.Unlock()
	}
	k.mu.Lock()
	k.live[pid] = p
	k.mu.Unlock()

	util.DPrintf(2, "proc: exec %q pid %d\n", path, pid)
	go p.run(body)
	return pid
}

func parentCwd(parent *Process) *dir.Dir {
	if parent == nil {
		return nil
	}
	return parent.FDs.Cwd()
}

// run executes the program body. A panic in the body is a kernel
// fault: the process exits with -1 instead of taking the kernel down.
func (p *Process) run(body Body) {
	code := KilledExit
	func() {
		defer func() {
			if r := recover(); r != nil {
				util.DPrintf(1, "proc: pid %d fault: %v\n", p.pid, r)
			}
		}()
		code = body(p)
	}()
	p.Exit(code)
}

// Wait blocks until the child exits and returns its exit code. A
// second wait on the same child, or a wait for a pid that is not a
// child, returns -1 immediately.
func (p *Process) Wait(child Pid) int {
	p.mu.Lock()
	w, ok := p.children[child]
	p.mu.Unlock()
	if !ok {
		return -1
	}
	if !w.once.tryDown() {
		return -1
	}
	w.wait.down()
	w.mu.Lock()
	code := w.exitCode
	w.mu.Unlock()
	return code
}

// Exit terminates the process: the descriptor table is drained
// synchronously, the executable is released, dirty state is flushed,
// and the parent (if waiting) is woken. Safe to call once per process;
// a body whose Exit ran returns into a no-op.
func (p *Process) Exit(code int) {
	p.mu.Lock()
	if p.exited {
		p.mu.Unlock()
		return
	}
	p.exited = true
	children := p.children
	p.children = nil
	p.mu.Unlock()

	util.DPrintf(2, "proc: pid %d exit %d\n", p.pid, code)

	p.FDs.Shutdown()
	if p.exe != nil {
		p.exe.Close()
		p.exe = nil
	}
	p.k.fsys.Flush()

	for _, w := range children {
		w.deref()
	}

	p.k.mu.Lock()
	delete(p.k.live, p.pid)
	p.k.mu.Unlock()

	w := p.shared
	w.mu.Lock()
	w.exitCode = code
	w.dead = true
	w.refs--
	w.mu.Unlock()
	w.wait.up()
}
