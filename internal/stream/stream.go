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

// Package stream implements the FCB facade: a uniform open/read/write/close
// contract that pipes, sockets and the process-info stream all implement,
// multiplexed through a process-local file descriptor table.
//
// Grounded on the vtable dispatch in jacobsa-fuse's FileSystem interface
// (file_system.go) and on kernel_pipe.c / kernel_socket.c's file_ops
// structs, which this package's Ops type replaces with a Go struct of
// closures instead of a C struct of function pointers.
package stream

import "errors"

// ErrBadFid is returned when a Fid does not name an open stream in the
// calling process.
var ErrBadFid = errors.New("stream: bad fid")

// Fid is a small per-process integer handle into a Table, naming an open
// FCB reference. spec.md §6.
type Fid int

// NOFILE is the sentinel returned in place of a Fid on failure.
const NOFILE Fid = -1

// Ops is the FCB vtable: four operations, exactly as spec.md §4.1
// describes. Read/Write return the count transferred (0 on EOF for Read)
// or a negative value on error; slots that are semantically disallowed
// (e.g. writing to a pipe's reader end) are filled with Fail.
type Ops struct {
	Open  func(minor uint) (any, error)
	Read  func(obj any, buf []byte) (int, error)
	Write func(obj any, buf []byte) (int, error)
	Close func(obj any) error
}

// Fail is installed in vtable slots that must always error, matching
// kernel_pipe.c's disable_read/disable_write.
func Fail(any, []byte) (int, error) {
	return -1, errors.New("stream: operation not supported on this fid")
}

// FCB is a kernel file control block: an operation vtable, an opaque
// stream object, and a reference count. GUARDED_BY the kernel big lock
// held by whichever package reserves/increfs/decrefs it.
type FCB struct {
	Ops      Ops
	Obj      any
	refcount int
}

func newFCB(ops Ops, obj any) *FCB {
	return &FCB{Ops: ops, Obj: obj, refcount: 1}
}

// Table is a process's file descriptor table: MAX_FILEID optional FCB
// references (spec.md §3, "Process (PCB)" row).
type Table struct {
	slots []*FCB
}

// NewTable allocates an empty table of the given size.
func NewTable(size int) *Table {
	return &Table{slots: make([]*FCB, size)}
}

// Len returns the table's fixed capacity (MAX_FILEID).
func (t *Table) Len() int {
	return len(t.slots)
}

// Get dereferences fid, failing if it is out of range or unused.
func (t *Table) Get(fid Fid) (*FCB, bool) {
	if fid < 0 || int(fid) >= len(t.slots) {
		return nil, false
	}
	fcb := t.slots[fid]
	return fcb, fcb != nil
}

// Bind installs fcb at the smallest free slot and returns its Fid, or
// fails if the table is full.
func (t *Table) Bind(fcb *FCB) (Fid, bool) {
	for i, s := range t.slots {
		if s == nil {
			t.slots[i] = fcb
			return Fid(i), true
		}
	}
	return NOFILE, false
}

// BindAt installs fcb directly at fid, used by process creation when
// copying a parent's table.
func (t *Table) BindAt(fid Fid, fcb *FCB) {
	t.slots[fid] = fcb
}

// Clear removes fid's reference without decref'ing it (the caller is
// responsible for Decref, mirroring FCB_decref's separation from table
// bookkeeping in the original kernel).
func (t *Table) Clear(fid Fid) {
	if fid >= 0 && int(fid) < len(t.slots) {
		t.slots[fid] = nil
	}
}

// Clone copies every bound slot into a fresh table, incrementing each
// copied FCB's refcount — spec.md §4.5 Exec step 3, "FD-descriptor
// inheritance".
func (t *Table) Clone() *Table {
	out := NewTable(len(t.slots))
	for i, fcb := range t.slots {
		if fcb != nil {
			fcb.refcount++
			out.slots[i] = fcb
		}
	}
	return out
}

// Reserve atomically allocates n FCBs bound to the smallest free slots of
// table, each with a fresh stream object and vtable, incrementing each
// FCB's refcount to 1. Mirrors FCB_reserve(n, out_fids, out_fcbs).
func Reserve(t *Table, n int, ops []Ops, objs []any) ([]Fid, []*FCB, bool) {
	free := make([]int, 0, n)
	for i, s := range t.slots {
		if s == nil {
			free = append(free, i)
			if len(free) == n {
				break
			}
		}
	}
	if len(free) < n {
		return nil, nil, false
	}

	fids := make([]Fid, n)
	fcbs := make([]*FCB, n)
	for i := 0; i < n; i++ {
		fcb := newFCB(ops[i], objs[i])
		t.slots[free[i]] = fcb
		fids[i] = Fid(free[i])
		fcbs[i] = fcb
	}
	return fids, fcbs, true
}

// Incref is the only way to grow an FCB's reference count beyond the 1
// assigned by Reserve.
func Incref(fcb *FCB) {
	fcb.refcount++
}

// Decref drops fcb's reference count, running Ops.Close exactly once when
// it reaches zero.
func Decref(fcb *FCB) error {
	fcb.refcount--
	if fcb.refcount > 0 {
		return nil
	}
	if fcb.Ops.Close == nil {
		return nil
	}
	return fcb.Ops.Close(fcb.Obj)
}

// Refcount reports the current reference count, for tests and invariant
// checks.
func Refcount(fcb *FCB) int {
	return fcb.refcount
}
