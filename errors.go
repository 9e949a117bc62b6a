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

import "errors"

// Sentinel handle values, preserved from spec.md §6's syscall table.
// Every syscall that returns a handle returns one of these alongside a
// non-nil error when it fails — the doubled signal matches the teaching kernel's C ABI
// (which has only the sentinel) while still giving Go callers
// something to errors.Is against.
const (
	NOFILE   = Fid(-1)
	NOPROC   = Pid(-1)
	NOTHREAD = Tid(0)
	NOPORT   = Port(0)
)

var (
	// ErrNoResources covers FCB/PCB/PTCB exhaustion: Pipe, Socket, Exec
	// or CreateThread failing because the relevant table is full.
	ErrNoResources = errors.New("tinyos: no free resource slots")

	// ErrBadHandle is returned for an out-of-range or unbound Fid.
	ErrBadHandle = errors.New("tinyos: bad handle")

	// ErrClosed covers pipe/socket operations attempted after the peer
	// half has gone away.
	ErrClosed = errors.New("tinyos: endpoint closed")

	// ErrTimeout is Connect's timeout-or-rejected outcome. spec.md §9's
	// open question notes the source can't distinguish "timed out" from
	// "listener disappeared" here, and this port doesn't either.
	ErrTimeout = errors.New("tinyos: connect not admitted")

	// ErrSelfJoin, ErrDetached and ErrNotFound surface ThreadJoin's
	// failure modes distinctly, a refinement spec.md §7 allows ("No
	// exception-like propagation exists across the kernel boundary" talks
	// about the wire ABI, not about what a Go binding may expose inside).
	ErrSelfJoin  = errors.New("tinyos: cannot join self")
	ErrDetached  = errors.New("tinyos: thread is detached")
	ErrNotFound  = errors.New("tinyos: no such thread or process")
	ErrNoTask    = errors.New("tinyos: task is nil")
	ErrWrongType = errors.New("tinyos: wrong fid type for this operation")
)
