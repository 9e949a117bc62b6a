// Copyright 2026 The tinyOS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package process implements the process table: PCB allocation from a
// free list, the parent/child tree, Exec/Exit/WaitChild, file-descriptor
// inheritance and orphan reparenting to the init process. Grounded on
// original_source/kernel_proc.c and kernel_threads.c's process-finalization
// half of sys_ThreadExit.
package process

import (
	"errors"
	"time"

	"github.com/tinyos-go/tinyos/internal/kcore"
	"github.com/tinyos-go/tinyos/internal/stream"
	"github.com/tinyos-go/tinyos/internal/thread"
)

// Pid identifies a process by its slot in the process table. NOPROC is
// the sentinel for "no such process" / "any process" depending on call
// site, exactly as in spec.md §6.
type Pid int

// NOPROC is the sentinel returned in place of a Pid on failure, and
// passed to WaitChild to mean "any child".
const NOPROC Pid = -1

// IdlePid and InitPid are the two parentless, never-reaped processes
// spec.md §6 calls out: "Pid 0 is idle; pid 1 is init."
const (
	IdlePid Pid = 0
	InitPid Pid = 1
)

type state int

const (
	free state = iota
	alive
	zombie
)

var errNoFreeProc = errors.New("process: process table is full")

// ErrNoFreeProc re-exports errNoFreeProc so the facade can recognize
// table exhaustion with errors.Is instead of comparing against an
// unexported sentinel it has no access to.
var ErrNoFreeProc = errNoFreeProc

// PCB is a process control block.
type PCB struct {
	pid     Pid
	pstate  state
	parent  *PCB
	parentPid Pid

	children []*PCB
	exited   []*PCB

	FDT *stream.Table

	threads    *thread.List
	mainThread thread.Tid

	mainTask Task
	argl     int
	args     []byte

	exitval int

	childExit *kcore.Cond

	createdAt int64 // unix nanos, stamped from kcore.Clock
}

// Task is the entry point of a process's main thread, mirroring the
// source's Task typedef: it receives the argument buffer and returns the
// value sys_Exit is eventually called with.
type Task func(argl int, args []byte) int

// Pid/PPid/ThreadCount/Alive/Argl expose read-only PCB state for the
// process-info stream and for tests.
func (p *PCB) Pid() Pid  { return p.pid }
func (p *PCB) Alive() bool { return p.pstate == alive }
func (p *PCB) Argl() int { return p.argl }
func (p *PCB) ThreadCount() int { return p.threads.Count() }

func (p *PCB) PPid() Pid {
	if p.parent == nil {
		return NOPROC
	}
	return p.parent.pid
}

// CreatedAt is the wall-clock time the PCB was allocated, stamped from
// the Table's injected kcore.Clock at acquire time. Surfaced by the
// process-info stream.
func (p *PCB) CreatedAt() time.Time { return time.Unix(0, p.createdAt) }

// Table is the fixed MAX_PROC process table with an index-chained free
// list, exactly as original_source/kernel_proc.c builds pcb_freelist
// through the parent field (spec.md §9 "Process table and free-list": "in
// a language without raw pointer aliasing, use a separate free-list of
// indices").
type Table struct {
	lock      *kcore.BigLock
	clock     kcore.Clock
	procs     []*PCB
	freelist  []int
	maxFileID int
}

// NewTable allocates a process table of size maxProc, each process's FD
// table sized maxFileID.
func NewTable(lock *kcore.BigLock, clock kcore.Clock, maxProc, maxFileID int) *Table {
	t := &Table{lock: lock, clock: clock, procs: make([]*PCB, maxProc), maxFileID: maxFileID}
	for i := maxProc - 1; i >= 0; i-- {
		t.freelist = append(t.freelist, i)
	}
	return t
}

func (t *Table) acquire() *PCB {
	if len(t.freelist) == 0 {
		return nil
	}
	idx := t.freelist[len(t.freelist)-1]
	t.freelist = t.freelist[:len(t.freelist)-1]

	p := &PCB{
		pid:       Pid(idx),
		pstate:    alive,
		FDT:       stream.NewTable(t.maxFileID),
		threads:   thread.NewList(t.lock),
		childExit: kcore.NewCond(t.lock),
		createdAt: t.clock.Now().UnixNano(),
	}
	t.procs[idx] = p
	return p
}

func (t *Table) release(p *PCB) {
	t.procs[p.pid] = nil
	t.freelist = append(t.freelist, int(p.pid))
}

// Get returns the PCB at pid, or nil if that slot is FREE.
func (t *Table) Get(pid Pid) *PCB {
	if pid < 0 || int(pid) >= len(t.procs) {
		return nil
	}
	return t.procs[pid]
}

// All returns every non-FREE PCB in table order, for the process-info
// stream (supplemented from sys_OpenInfo).
func (t *Table) All() []*PCB {
	var out []*PCB
	for _, p := range t.procs {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Exec creates a new process. If caller is nil, the new process is
// parentless (used for pid 0 and pid 1); otherwise it is pushed onto
// caller's children list and inherits caller's FD table by incref'd copy.
// Mirrors sys_Exec.
func (t *Table) Exec(caller *PCB, task Task, argl int, args []byte) (*PCB, Pid, error) {
	p := t.acquire()
	if p == nil {
		return nil, NOPROC, errNoFreeProc
	}

	if p.pid > InitPid && caller != nil {
		p.parent = caller
		p.parentPid = caller.pid
		caller.children = append(caller.children, p)
		p.FDT = caller.FDT.Clone()
	}

	p.mainTask = task
	p.argl = argl
	if args != nil {
		p.args = append([]byte(nil), args...)
	}

	if task != nil {
		ptcb, tid, _ := p.threads.Create()
		p.mainThread = tid
		_ = ptcb
	}

	return p, p.pid, nil
}

// MainThread returns the Tid of the process's main thread (NOTHREAD if
// it has none, i.e. task was nil at Exec time).
func (p *PCB) MainThread() thread.Tid { return p.mainThread }

// Threads exposes the process's PTCB list to the thread-layer syscalls,
// which are process-scoped.
func (p *PCB) Threads() *thread.List { return p.threads }

// SetExitVal records the process-wide exit status later read by a
// parent's WaitChild. Only sys_Exit sets this field in the source —
// a thread that exits the process by calling ThreadExit directly
// (rather than through Exit) leaves it at its prior value, an
// asymmetry kernel_proc.c/kernel_threads.c both preserve and this
// port keeps faithfully.
func (p *PCB) SetExitVal(v int) { p.exitval = v }

// Finalize runs process teardown: reparenting live children to init,
// migrating the exited-children list to init, queueing p on its own
// parent's exited list (unless p is init), draining the thread list and
// releasing every open FD. The caller
// (package tinyos) invokes this once thread.List.Exit reports the
// terminating thread was the process's last one — the orchestration
// of "which thread, when" is a facade concern; this package only
// knows how to tear a PCB down. Mirrors the process-finalization half
// of sys_ThreadExit.
//
// closeFD replaces a bare stream.Decref for each FD still open at
// exit, so the caller can account for resources (e.g. the socket-kind
// metric) torn down this way, not just through an explicit Close.
func (t *Table) Finalize(p *PCB, closeFD func(*stream.FCB) error) {
	initPCB := t.Get(InitPid)

	for _, child := range p.children {
		child.parent = initPCB
		child.parentPid = InitPid
		if initPCB != nil {
			initPCB.children = append(initPCB.children, child)
		}
	}
	p.children = nil

	if len(p.exited) > 0 && initPCB != nil {
		initPCB.exited = append(initPCB.exited, p.exited...)
		initPCB.childExit.Broadcast()
	}
	p.exited = nil

	if p.pid != InitPid && p.parent != nil {
		p.parent.exited = append(p.parent.exited, p)
		p.parent.childExit.Broadcast()
	}

	p.threads.DrainAll()
	p.args = nil

	for i := 0; i < p.FDT.Len(); i++ {
		if fcb, ok := p.FDT.Get(stream.Fid(i)); ok {
			_ = closeFD(fcb)
			p.FDT.Clear(stream.Fid(i))
		}
	}

	p.mainThread = thread.NOTHREAD
	p.pstate = zombie
}

// WaitChild implements both the "wait for a specific child" and "wait
// for any child" forms, selected by cpid == NOPROC. Mirrors sys_WaitChild.
func (t *Table) WaitChild(parent *PCB, cpid Pid, status *int) Pid {
	if cpid != NOPROC {
		return t.waitSpecific(parent, cpid, status)
	}
	return t.waitAny(parent, status)
}

func (t *Table) waitSpecific(parent *PCB, cpid Pid, status *int) Pid {
	if cpid < 0 || int(cpid) >= len(t.procs) {
		return NOPROC
	}
	child := t.Get(cpid)
	if child == nil || child.parentPid != parent.pid || child.parent != parent {
		return NOPROC
	}

	for child.pstate == alive {
		parent.childExit.Wait()
	}

	t.cleanupZombie(parent, child, status)
	return cpid
}

func (t *Table) waitAny(parent *PCB, status *int) Pid {
	for {
		noChildren := len(parent.children) == 0
		if noChildren {
			return NOPROC
		}
		if len(parent.exited) > 0 {
			break
		}
		parent.childExit.Wait()
	}

	child := parent.exited[0]
	cpid := child.pid
	t.cleanupZombie(parent, child, status)
	return cpid
}

func (t *Table) cleanupZombie(parent *PCB, child *PCB, status *int) {
	if status != nil {
		*status = child.exitval
	}
	removeChild(&parent.children, child)
	removeChild(&parent.exited, child)
	t.release(child)
}

func removeChild(list *[]*PCB, target *PCB) {
	for i, p := range *list {
		if p == target {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}
