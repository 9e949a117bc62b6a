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

package tinyos

import (
	"errors"
	"fmt"
	"time"

	"github.com/tinyos-go/tinyos/internal/kcore"
	"github.com/tinyos-go/tinyos/internal/logger"
	"github.com/tinyos-go/tinyos/internal/pipe"
	"github.com/tinyos-go/tinyos/internal/process"
	"github.com/tinyos-go/tinyos/internal/socket"
	"github.com/tinyos-go/tinyos/internal/stream"
	"github.com/tinyos-go/tinyos/internal/thread"
)

// Current is a handle to one running thread: which process it belongs
// to and which of that process's PTCBs is its own. Every syscall in
// spec.md §6 is a method on *Current, since the source's syscalls are
// all implicitly scoped to "the calling thread in the calling
// process" via CURPROC/the running TCB.
type Current struct {
	k   *Kernel
	pcb *process.PCB
	tid Tid
}

func (c *Current) record(name string, ok bool) {
	c.k.metrics.RecordSyscall(name, ok)
}

// wrapThreadErr maps an internal/thread sentinel onto the facade's own
// exported Err* value via errors.Is/errors.Unwrap chaining, so callers
// can use errors.Is(err, tinyos.ErrSelfJoin) instead of reaching past
// the facade boundary.
func wrapThreadErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, thread.ErrSelfJoin):
		return fmt.Errorf("%w: %w", ErrSelfJoin, err)
	case errors.Is(err, thread.ErrDetached), errors.Is(err, thread.ErrBecameDetached):
		return fmt.Errorf("%w: %w", ErrDetached, err)
	case errors.Is(err, thread.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return err
	}
}

// wrapStreamErr maps a pipe.ErrClosed surfaced through a Read/Write
// dispatch onto the facade's own ErrClosed.
func wrapStreamErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pipe.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}

// socketKindLabel names a socket's current variant for the
// SocketsByKind gauge.
func socketKindLabel(s *socket.Socket) string {
	switch {
	case s.IsPeer():
		return "peer"
	case s.IsListener():
		return "listener"
	default:
		return "unbound"
	}
}

// closeFD runs stream.Decref on fcb, decrementing the socket-kind gauge
// when fcb names a socket and this was its last reference. Shared by
// Close and process finalization's FD-table drain (see process.Finalize),
// so a socket left open when its owning process exits is still accounted
// for.
func (c *Current) closeFD(fcb *stream.FCB) error {
	wasLastRef := stream.Refcount(fcb) == 1
	var kind string
	if s, ok := fcb.Obj.(*socket.Socket); ok && wasLastRef {
		kind = socketKindLabel(s)
	}
	err := stream.Decref(fcb)
	if kind != "" {
		c.k.metrics.SocketsByKind.WithLabelValues(kind).Dec()
	}
	return err
}

// Pipe reserves two FCBs and wires a bounded byte pipe between them.
// Mirrors sys_Pipe.
func (c *Current) Pipe() (read, write Fid, err error) {
	c.k.lock.Lock()
	defer c.k.lock.Unlock()

	r, w, ok := pipe.New(c.k.lock, c.pcb.FDT, c.k.cfg.PipeBufferSize)
	c.record("pipe", ok)
	if !ok {
		return NOFILE, NOFILE, ErrNoResources
	}
	return r, w, nil
}

// Socket allocates an UNBOUND socket bound to port (NOPORT is legal).
// Mirrors sys_Socket.
func (c *Current) Socket(port Port) (Fid, error) {
	c.k.lock.Lock()
	defer c.k.lock.Unlock()

	fid, ok := socket.Create(c.k.lock, c.k.ports, c.pcb.FDT, port)
	c.record("socket", ok)
	if !ok {
		return NOFILE, ErrNoResources
	}
	c.k.metrics.SocketsByKind.WithLabelValues("unbound").Inc()
	return fid, nil
}

// Listen transitions an UNBOUND socket into a LISTENER. Mirrors
// sys_Listen.
func (c *Current) Listen(fid Fid) error {
	c.k.lock.Lock()
	defer c.k.lock.Unlock()

	err := socket.Listen(c.k.ports, c.pcb.FDT, fid)
	c.record("listen", err == nil)
	if err == nil {
		c.k.metrics.SocketsByKind.WithLabelValues("unbound").Dec()
		c.k.metrics.SocketsByKind.WithLabelValues("listener").Inc()
	}
	return err
}

// Accept waits for a queued connection request on the listener fid and
// returns a fresh peer fid bound into the calling process. Mirrors
// sys_Accept.
func (c *Current) Accept(fid Fid) (Fid, error) {
	c.k.lock.Lock()
	defer c.k.lock.Unlock()

	peerFid, err := socket.Accept(c.k.ports, c.pcb.FDT, fid, c.pcb.FDT)
	c.record("accept", err == nil)
	if err == nil {
		c.k.metrics.SocketsByKind.WithLabelValues("peer").Inc()
	}
	return peerFid, err
}

// Connect pushes a connection request to port and waits up to
// timeoutMs milliseconds for it to be admitted. Mirrors sys_Connect.
func (c *Current) Connect(fid Fid, port Port, timeoutMs int) error {
	c.k.lock.Lock()
	defer c.k.lock.Unlock()

	err := socket.Connect(c.k.ports, c.pcb.FDT, fid, port, time.Duration(timeoutMs)*time.Millisecond)
	c.record("connect", err == nil)
	if err != nil {
		if errors.Is(err, socket.ErrNotAdmitted) {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return err
	}
	c.k.metrics.SocketsByKind.WithLabelValues("unbound").Dec()
	c.k.metrics.SocketsByKind.WithLabelValues("peer").Inc()
	return nil
}

// ShutDown closes one or both halves of a peer connection. Mirrors
// sys_ShutDown.
func (c *Current) ShutDown(fid Fid, how ShutdownMode) error {
	c.k.lock.Lock()
	defer c.k.lock.Unlock()

	err := socket.ShutDown(c.pcb.FDT, fid, how)
	c.record("shutdown", err == nil)
	return err
}

// Read dispatches through fid's vtable. Mirrors get_fcb + Read.
func (c *Current) Read(fid Fid, buf []byte) (int, error) {
	c.k.lock.Lock()
	defer c.k.lock.Unlock()

	fcb, ok := c.pcb.FDT.Get(fid)
	if !ok {
		c.record("read", false)
		return -1, ErrBadHandle
	}
	if fcb.Ops.Read == nil {
		c.record("read", false)
		return -1, ErrWrongType
	}
	n, err := fcb.Ops.Read(fcb.Obj, buf)
	c.record("read", err == nil)
	if err == nil && n > 0 {
		c.k.metrics.PipeBytes.WithLabelValues("read").Add(float64(n))
	}
	return n, wrapStreamErr(err)
}

// Write dispatches through fid's vtable. Mirrors get_fcb + Write.
func (c *Current) Write(fid Fid, buf []byte) (int, error) {
	c.k.lock.Lock()
	defer c.k.lock.Unlock()

	fcb, ok := c.pcb.FDT.Get(fid)
	if !ok {
		c.record("write", false)
		return -1, ErrBadHandle
	}
	if fcb.Ops.Write == nil {
		c.record("write", false)
		return -1, ErrWrongType
	}
	n, err := fcb.Ops.Write(fcb.Obj, buf)
	c.record("write", err == nil)
	if err == nil && n > 0 {
		c.k.metrics.PipeBytes.WithLabelValues("write").Add(float64(n))
	}
	return n, wrapStreamErr(err)
}

// Close drops one reference to fid, running the vtable's Close exactly
// once the refcount reaches zero. Mirrors FCB_decref dispatched
// through sys_Close.
func (c *Current) Close(fid Fid) error {
	c.k.lock.Lock()
	defer c.k.lock.Unlock()

	fcb, ok := c.pcb.FDT.Get(fid)
	if !ok {
		c.record("close", false)
		return ErrBadHandle
	}
	c.pcb.FDT.Clear(fid)
	err := c.closeFD(fcb)
	c.record("close", err == nil)
	return err
}

// Exec starts task as a new process, a child of the calling process.
// Mirrors sys_Exec.
func (c *Current) Exec(task Task, argl int, args []byte) (Pid, error) {
	c.k.lock.Lock()

	pcb, pid, err := c.k.procs.Exec(c.pcb, wrapTask(task), argl, args)
	if err != nil {
		c.k.lock.Unlock()
		c.record("exec", false)
		if errors.Is(err, process.ErrNoFreeProc) {
			return NOPROC, fmt.Errorf("%w: %w", ErrNoResources, err)
		}
		return NOPROC, err
	}
	c.k.metrics.ProcessesAlive.Inc()

	if task != nil {
		child := &Current{k: c.k, pcb: pcb, tid: pcb.MainThread()}
		c.k.metrics.ThreadsAlive.Inc()
		c.k.spawnMain(child, task, argl, args)
	}
	c.k.lock.Unlock()

	c.record("exec", true)
	return pid, nil
}

// Exit terminates the calling process: it records status as the
// process-wide exit value, and — only for pid 1 — blocks reaping every
// child before tearing itself down, the init "drain" contract spec.md
// §4.5 describes. Mirrors sys_Exit. Like the source, it does not
// return to meaningful caller code: the goroutine running it should
// stop immediately afterward.
func (c *Current) Exit(status int) {
	c.k.lock.Lock()
	defer c.k.lock.Unlock()

	c.pcb.SetExitVal(status)

	if c.pcb.Pid() == process.InitPid {
		for c.k.procs.WaitChild(c.pcb, process.NOPROC, nil) != process.NOPROC {
		}
	}

	c.threadExitLocked(status)
}

// WaitChild reaps a zombie child: a specific pid, or any child when
// pid is NOPROC. Mirrors sys_WaitChild.
func (c *Current) WaitChild(pid Pid) (Pid, int, error) {
	var status int
	c.k.lock.Lock()
	reaped := c.k.procs.WaitChild(c.pcb, pid, &status)
	c.k.lock.Unlock()

	c.record("waitchild", reaped != NOPROC)
	if reaped == NOPROC {
		return NOPROC, 0, ErrNotFound
	}
	return reaped, status, nil
}

// GetPid returns the calling process's pid.
func (c *Current) GetPid() Pid {
	c.k.lock.Lock()
	defer c.k.lock.Unlock()
	return c.pcb.Pid()
}

// GetPPid returns the calling process's parent pid (NOPROC for init
// and idle, which are parentless).
func (c *Current) GetPPid() Pid {
	c.k.lock.Lock()
	defer c.k.lock.Unlock()
	return c.pcb.PPid()
}

// CreateThread spawns task as a new thread inside the calling process.
// Mirrors sys_CreateThread.
func (c *Current) CreateThread(task Task, argl int, args []byte) (Tid, error) {
	if task == nil {
		c.record("createthread", false)
		return NOTHREAD, ErrNoTask
	}

	c.k.lock.Lock()
	_, tid, _ := c.pcb.Threads().Create()
	c.k.metrics.ThreadsAlive.Inc()
	child := &Current{k: c.k, pcb: c.pcb, tid: tid}
	kcore.Spawn(func() {
		retval := task(child, argl, args)
		child.ThreadExit(retval)
	})
	c.k.lock.Unlock()

	c.record("createthread", true)
	return tid, nil
}

// ThreadSelf returns the calling thread's own Tid.
func (c *Current) ThreadSelf() Tid { return c.tid }

// ThreadJoin waits for target to exit or become detached, returning
// its exit value. Mirrors sys_ThreadJoin.
func (c *Current) ThreadJoin(target Tid) (int, error) {
	var exitval int
	c.k.lock.Lock()
	err := c.pcb.Threads().Join(c.tid, target, &exitval)
	c.k.lock.Unlock()

	c.record("threadjoin", err == nil)
	if err != nil {
		return 0, wrapThreadErr(err)
	}
	return exitval, nil
}

// ThreadDetach marks target so every pending and future Join on it
// fails. Mirrors sys_ThreadDetach.
func (c *Current) ThreadDetach(target Tid) error {
	c.k.lock.Lock()
	defer c.k.lock.Unlock()

	err := c.pcb.Threads().Detach(target)
	c.record("threaddetach", err == nil)
	return wrapThreadErr(err)
}

// ThreadExit terminates the calling thread; if it was the process's
// last thread, process finalization runs. Mirrors sys_ThreadExit. Like
// the source, it does not return to meaningful caller code.
func (c *Current) ThreadExit(status int) {
	c.k.lock.Lock()
	defer c.k.lock.Unlock()
	c.threadExitLocked(status)
}

// threadExitLocked is the shared tail of Exit and ThreadExit: both
// record a thread-level exit value and, if this was the process's
// last thread, run process finalization. spec.md §4.4/§4.5 describe
// this as one continuous flow ("ThreadExit... being the last thread,
// executes process finalization"); this port splits the process-wide
// exitval bookkeeping (Exit only) from the always-shared thread/
// finalize tail, which both call into.
func (c *Current) threadExitLocked(status int) {
	last := c.pcb.Threads().Exit(c.tid, status)
	c.k.metrics.ThreadsAlive.Dec()
	if !last {
		return
	}

	c.k.procs.Finalize(c.pcb, c.closeFD)
	c.k.metrics.ProcessesAlive.Dec()
	if c.pcb.Pid() == process.InitPid {
		logger.Warnf("init (pid 1) has exited; signaling kernel shutdown")
		c.k.closeShutdown()
	}
}
