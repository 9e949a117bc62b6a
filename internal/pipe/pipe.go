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

// Package pipe implements the bounded single-producer/single-consumer FIFO
// byte channel at the center of spec.md §4.2. It is the direct translation
// of original_source/kernel_pipe.c's pipe_cb into Go: a ring buffer guarded
// by the kernel big lock, with has_space/has_data condition variables and
// nullable endpoint pointers standing in for the C struct's reader/writer
// FCB fields.
package pipe

import (
	"errors"

	"github.com/tinyos-go/tinyos/internal/kcore"
	"github.com/tinyos-go/tinyos/internal/stream"
)

// BufferSize is PIPE_BUFFER_SIZE from spec.md §6: preserved exactly for
// bit-level compatibility with the default.
const BufferSize = 8200

// ErrClosed is returned by Write/Read once the peer endpoint of a pipe is
// gone and no further transfer is possible.
var ErrClosed = errors.New("pipe: endpoint closed")

// Pipe is the shared ring-buffer record owned jointly by its two FCBs.
// spec.md §3 "Pipe" row, §9 "Shared pipe object, dual ownership".
type Pipe struct {
	lock *kcore.BigLock

	buf            []byte
	writePos       int
	readPos        int
	remainingSpace int

	hasSpace *kcore.Cond
	hasData  *kcore.Cond

	// reader/writer are nil once that endpoint has closed. The pipe is
	// freed (by ceasing to be reachable) the instant both are nil.
	reader *stream.FCB
	writer *stream.FCB
}

// New allocates a pipe with capacity bufSize (BufferSize in production;
// tests use smaller sizes to exercise blocking paths cheaply) and reserves
// its two endpoint FCBs in t. Mirrors sys_Pipe.
func New(lock *kcore.BigLock, t *stream.Table, bufSize int) (readFid, writeFid stream.Fid, ok bool) {
	p := &Pipe{
		lock:           lock,
		buf:            make([]byte, bufSize),
		remainingSpace: bufSize,
		hasSpace:       kcore.NewCond(lock),
		hasData:        kcore.NewCond(lock),
	}

	readerOps := stream.Ops{
		Read:  func(obj any, buf []byte) (int, error) { return obj.(*Pipe).Read(buf) },
		Write: stream.Fail,
		Close: func(obj any) error { return obj.(*Pipe).CloseReader() },
	}
	writerOps := stream.Ops{
		Read:  stream.Fail,
		Write: func(obj any, buf []byte) (int, error) { return obj.(*Pipe).Write(buf) },
		Close: func(obj any) error { return obj.(*Pipe).CloseWriter() },
	}

	fids, fcbs, ok := stream.Reserve(t, 2, []stream.Ops{readerOps, writerOps}, []any{p, p})
	if !ok {
		return stream.NOFILE, stream.NOFILE, false
	}

	p.reader = fcbs[0]
	p.writer = fcbs[1]
	return fids[0], fids[1], true
}

// NewRaw builds a pipe wired directly to the given reader/writer FCBs
// without reserving fresh ones. Used by the socket layer to wire a
// crossed pair of pipes between two already-reserved peer socket FCBs
// (spec.md §4.3 Accept step 8), where the "endpoint" is the owning
// socket's own FCB rather than a dedicated pipe endpoint.
func NewRaw(lock *kcore.BigLock, bufSize int, reader, writer *stream.FCB) *Pipe {
	return &Pipe{
		lock:           lock,
		buf:            make([]byte, bufSize),
		remainingSpace: bufSize,
		hasSpace:       kcore.NewCond(lock),
		hasData:        kcore.NewCond(lock),
		reader:         reader,
		writer:         writer,
	}
}

// Write copies up to len(buf) bytes into the ring, blocking while the
// buffer is full and the reader is still open. Short writes are legal:
// the caller loops if it needs more than fits in the current space
// window. spec.md §4.2 "Write(buf, n) on writer end".
func (p *Pipe) Write(buf []byte) (int, error) {
	if p.writer == nil || p.reader == nil {
		return -1, ErrClosed
	}

	for p.remainingSpace == 0 && p.reader != nil {
		p.hasSpace.Wait()
	}

	if p.reader == nil {
		return -1, ErrClosed
	}

	n := len(buf)
	if n > p.remainingSpace {
		n = p.remainingSpace
	}
	for i := 0; i < n; i++ {
		p.buf[p.writePos] = buf[i]
		p.writePos = (p.writePos + 1) % len(p.buf)
	}
	p.remainingSpace -= n

	p.hasData.Broadcast()
	return n, nil
}

// Read copies up to len(buf) bytes out of the ring, blocking while the
// buffer is empty and the writer is still open. Returns 0 (not an error)
// once the writer has closed and the buffer has drained: EOF. spec.md
// §4.2 "Read(buf, n) on reader end".
func (p *Pipe) Read(buf []byte) (int, error) {
	if p.reader == nil {
		return -1, ErrClosed
	}

	for p.remainingSpace == len(p.buf) && p.writer != nil {
		p.hasData.Wait()
	}

	if p.remainingSpace == len(p.buf) {
		return 0, nil
	}

	available := len(p.buf) - p.remainingSpace
	n := len(buf)
	if n > available {
		n = available
	}
	for i := 0; i < n; i++ {
		buf[i] = p.buf[p.readPos]
		p.readPos = (p.readPos + 1) % len(p.buf)
	}
	p.remainingSpace += n

	p.hasSpace.Broadcast()
	return n, nil
}

// CloseReader nulls the reader endpoint and wakes any writer blocked on
// space, so it can observe the new half-closed state.
func (p *Pipe) CloseReader() error {
	p.reader = nil
	p.hasSpace.Broadcast()
	return nil
}

// CloseWriter nulls the writer endpoint and wakes any reader blocked on
// data, so it can observe EOF.
func (p *Pipe) CloseWriter() error {
	p.writer = nil
	p.hasData.Broadcast()
	return nil
}

// Freed reports whether both endpoints have closed, i.e. whether this
// pipe object is logically dead and may be dropped. spec.md's core
// invariant: "A pipe object is freed at the unique moment both its
// endpoint pointers become null."
func (p *Pipe) Freed() bool {
	return p.reader == nil && p.writer == nil
}

// RemainingSpace and UsedBytes are exposed for the invariant
// remaining_space + used_bytes = PIPE_BUFFER_SIZE tested in spec.md §8.
func (p *Pipe) RemainingSpace() int { return p.remainingSpace }
func (p *Pipe) UsedBytes() int      { return len(p.buf) - p.remainingSpace }
