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

// Package thread implements the per-process thread control block (PTCB)
// layer: create, join, detach and exit with reference-counted reaping.
// Grounded on original_source/kernel_threads.c.
package thread

import (
	"errors"

	"github.com/tinyos-go/tinyos/internal/kcore"
)

// Tid is a process-local thread handle. Per spec.md §9 ("Pid/Tid as
// integers vs pointers"), the source's Tid is a pointer to a PTCB; this
// port uses a small process-local integer instead, matching the spec's
// own suggestion for portable code.
type Tid int

// NOTHREAD is the sentinel returned in place of a Tid on failure.
const NOTHREAD Tid = 0

var (
	errNoTask      = errors.New("thread: task is nil")
	errNotFound    = errors.New("thread: no such tid in this process")
	errSelfJoin    = errors.New("thread: cannot join self")
	errDetached    = errors.New("thread: target is detached")
	errBecameDetached  = errors.New("thread: target became detached while waiting")
)

// PTCB is a thread control block: one per live (or joinable-but-exited)
// thread inside a process.
type PTCB struct {
	tid      Tid
	exited   bool
	detached bool
	exitval  int
	refcount int
	exitCV   *kcore.Cond
}

// List is the owning process's PTCB list plus the bookkeeping Exec/
// CreateThread/ThreadExit need: thread_count and the next Tid to issue.
type List struct {
	lock    *kcore.BigLock
	entries map[Tid]*PTCB
	order   []Tid // insertion order, for OpenInfo-style enumeration
	nextTid Tid
	count   int // ThreadCount: entries with exited == false
}

// NewList returns an empty PTCB list for a freshly allocated process.
func NewList(lock *kcore.BigLock) *List {
	return &List{lock: lock, entries: make(map[Tid]*PTCB), nextTid: 1}
}

// Count returns the process's thread_count: the number of PTCBs with
// exited == false. spec.md §3 core invariant.
func (l *List) Count() int { return l.count }

// Create registers a new thread of the owning process. Its task is run
// on its own goroutine by the facade (Kernel.spawnMain for a process's
// main thread, Current.CreateThread for the others), which then exits
// the thread with task's return value —
// mirroring the trampoline start_main_thread/thread entry in
// kernel_threads.c. Create itself just allocates and registers the PTCB.
func (l *List) Create() (*PTCB, Tid, error) {
	p := &PTCB{
		tid:    l.nextTid,
		exitCV: kcore.NewCond(l.lock),
	}
	l.entries[p.tid] = p
	l.order = append(l.order, p.tid)
	l.nextTid++
	l.count++
	return p, p.tid, nil
}

// Self is a thin accessor: the PTCB layer doesn't track "current thread"
// itself (that's a goroutine-local concept the facade keeps in its
// *Current handle), so ThreadSelf is implemented by the caller holding
// onto the Tid it was given at creation time.

// Join waits for the target thread to exit or become detached. Mirrors
// sys_ThreadJoin.
func (l *List) Join(self, target Tid, exitval *int) error {
	if target == self {
		return errSelfJoin
	}
	p, ok := l.entries[target]
	if !ok {
		return errNotFound
	}
	if p.detached {
		return errDetached
	}

	p.refcount++
	for !p.detached && !p.exited {
		p.exitCV.Wait()
	}
	p.refcount--

	if p.detached {
		return errBecameDetached
	}

	if exitval != nil {
		*exitval = p.exitval
	}

	if p.refcount == 0 {
		delete(l.entries, p.tid)
		l.removeOrder(p.tid)
	}
	return nil
}

// Detach marks target so that every pending and future Join on it fails.
// Mirrors sys_ThreadDetach.
func (l *List) Detach(target Tid) error {
	p, ok := l.entries[target]
	if !ok {
		return errNotFound
	}
	if p.exited {
		return errDetached
	}
	p.detached = true
	p.exitCV.Broadcast()
	return nil
}

// Exit marks target as exited, decrementing thread_count and waking any
// joiners. Returns true if this was the process's last thread (the
// caller must then run process finalization). Mirrors sys_ThreadExit's
// per-thread half (the process-wide half lives in package process).
func (l *List) Exit(target Tid, exitval int) (lastThread bool) {
	p, ok := l.entries[target]
	if !ok {
		return false
	}
	p.exitval = exitval
	p.exited = true
	l.count--

	// The PTCB stays in the list even with refcount == 0: a Join that
	// hasn't arrived yet must still be able to find it and read its
	// exitval. It is only unlinked by a Join that reaps it (refcount
	// drops to 0 *after* waiting) or by DrainAll at process finalization.
	if p.refcount > 0 {
		p.exitCV.Broadcast()
	}

	return l.count == 0
}

// DrainAll frees every remaining PTCB, run once during process
// finalization (kernel_threads.c's "Removing the ptcbs from the ptcb
// list since there are no more threads in the process").
func (l *List) DrainAll() {
	l.entries = make(map[Tid]*PTCB)
	l.order = nil
}

func (l *List) removeOrder(tid Tid) {
	for i, t := range l.order {
		if t == tid {
			l.order = append(l.order[:i], l.order[i+1:]...)
			return
		}
	}
}

// ErrNoTask, ErrSelfJoin, ErrDetached, ErrBecameDetached and ErrNotFound
// re-export this package's sentinels so the facade can tell its own
// Err* values apart with errors.Is instead of leaking unexported
// errors across the package boundary.
var (
	ErrNoTask         = errNoTask
	ErrSelfJoin       = errSelfJoin
	ErrDetached       = errDetached
	ErrBecameDetached = errBecameDetached
	ErrNotFound       = errNotFound
)
