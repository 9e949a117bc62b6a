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
	"fmt"
	"time"

	"github.com/tinyos-go/tinyos/internal/process"
	"github.com/tinyos-go/tinyos/internal/stream"
)

// OpenInfo opens a read-only stream over a snapshot of the process
// table, one line per call to Read — a supplemented feature, not in
// spec.md's own syscall table but licensed by §1's scope note that
// "file system objects other than those needed for pipe/socket/
// proc-info streams" are out of scope, implying proc-info streams
// themselves are in. Grounded on original_source/kernel_proc.c's
// sys_OpenInfo/procinfo_read, which returns one fixed-size proc_info
// record per successful Read; this port serializes the equivalent
// fields as a text line instead; write=Fail since a process-info
// stream accepts no input.
func (c *Current) OpenInfo() (Fid, error) {
	c.k.lock.Lock()
	defer c.k.lock.Unlock()

	cur := &procInfoCursor{procs: c.k.procs.All()}
	ops := stream.Ops{
		Read:  func(obj any, buf []byte) (int, error) { return obj.(*procInfoCursor).read(buf) },
		Write: stream.Fail,
		Close: func(any) error { return nil },
	}

	fids, _, ok := stream.Reserve(c.pcb.FDT, 1, []stream.Ops{ops}, []any{cur})
	c.record("openinfo", ok)
	if !ok {
		return NOFILE, ErrNoResources
	}
	return fids[0], nil
}

// procInfoCursor walks the process table snapshot taken at OpenInfo
// time, one PCB per Read call, the same "advance an internal index"
// shape as procinfo_read. pending holds whatever tail of the current
// record didn't fit in the last Read's buffer, so a short buf never
// silently drops the remainder of a line — the cursor only advances to
// the next PCB once pending is fully drained.
type procInfoCursor struct {
	procs   []*process.PCB
	i       int
	pending []byte
}

func (pc *procInfoCursor) read(buf []byte) (int, error) {
	if len(pc.pending) == 0 {
		if pc.i >= len(pc.procs) {
			return 0, nil // EOF: every record has been delivered.
		}
		p := pc.procs[pc.i]
		pc.i++
		pc.pending = []byte(fmt.Sprintf("pid=%d ppid=%d alive=%t threads=%d argl=%d created=%s\n",
			p.Pid(), p.PPid(), p.Alive(), p.ThreadCount(), p.Argl(), p.CreatedAt().UTC().Format(time.RFC3339Nano)))
	}

	n := copy(buf, pc.pending)
	pc.pending = pc.pending[n:]
	return n, nil
}
