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

// Package socket implements in-kernel stream sockets: a port table, the
// listen/accept/connect handshake, and full-duplex connections built from
// a crossed pair of pipes. Grounded on original_source/kernel_socket.c and
// kernel_socket.h (the UNBOUND/LISTENER/PEER tagged union, the listener's
// request queue) and on spec.md §4.3, which supplies the Connect/ShutDown
// semantics the kept fragment of kernel_socket.c left as stubs.
package socket

import (
	"errors"
	"time"

	"github.com/tinyos-go/tinyos/internal/kcore"
	"github.com/tinyos-go/tinyos/internal/pipe"
	"github.com/tinyos-go/tinyos/internal/stream"
)

// Port identifies a listening port. NoPort is the "unbound" sentinel.
type Port int

const NoPort Port = 0

// ShutdownMode selects which half of a peer connection ShutDown closes.
type ShutdownMode int

const (
	ShutdownRead ShutdownMode = iota
	ShutdownWrite
	ShutdownBoth
)

type kind int

const (
	unbound kind = iota
	listener
	peer
)

var (
	errBadFid      = errors.New("socket: bad fid")
	errWrongType   = errors.New("socket: wrong socket type for operation")
	errPortInUse   = errors.New("socket: port already has a listener")
	errBadPort     = errors.New("socket: port out of range")
	errNoListener  = errors.New("socket: no listener on port")
	errFull        = errors.New("socket: process has no free file descriptor")
	errNotUnbound  = errors.New("socket: peer is no longer unbound")
	errNotAdmitted = errors.New("socket: connect was not admitted")
)

// ErrNotAdmitted re-exports errNotAdmitted so the facade can recognize
// Connect's rejection case with errors.Is instead of comparing against
// an unexported sentinel it has no access to.
var ErrNotAdmitted = errNotAdmitted

// connRequest is the transient queue node pushed by Connect and consumed
// by Accept. Owned by the connector, merely borrowed by the acceptor via
// the listener's queue (spec.md §9 "Cyclic peer pointers").
type connRequest struct {
	admitted  bool
	client    *Socket
	connected *kcore.Cond
}

// Socket is the socket control block. The three variants share a header
// and carry disjoint state, tagged by typ — spec.md §9 "Tagged socket
// variants".
type Socket struct {
	lock *kcore.BigLock

	fcb      *stream.FCB
	typ      kind
	port     Port
	refcount int

	// listener state
	queue        []*connRequest
	reqAvailable *kcore.Cond

	// peer state
	peer      *Socket
	readPipe  *pipe.Pipe
	writePipe *pipe.Pipe
}

// PortTable is the process-wide PORT_MAP[1..MaxPort].
type PortTable struct {
	lock    *kcore.BigLock
	clock   kcore.Clock
	ports   []*Socket // index 0 unused; 1..MaxPort are real ports
	maxPort Port
}

// NewPortTable allocates a port table supporting ports 1..maxPort.
// Connect computes its deadline as clock.Now() plus the timeout; the
// wait itself is measured against wall-clock time (kcore.Cond.TimedWait),
// so a clock that does not track wall-clock time shifts the deadline by
// its offset.
func NewPortTable(lock *kcore.BigLock, clock kcore.Clock, maxPort int) *PortTable {
	return &PortTable{lock: lock, clock: clock, ports: make([]*Socket, maxPort+1), maxPort: Port(maxPort)}
}

func (pt *PortTable) validPort(p Port) bool {
	return p >= NoPort && p <= pt.maxPort
}

// Create allocates an UNBOUND socket bound to port (which may be NoPort)
// in t. Mirrors sys_Socket.
func Create(lock *kcore.BigLock, pt *PortTable, t *stream.Table, port Port) (stream.Fid, bool) {
	if !pt.validPort(port) {
		return stream.NOFILE, false
	}

	s := &Socket{lock: lock, typ: unbound, port: port}
	ops := stream.Ops{
		Read:  func(obj any, buf []byte) (int, error) { return obj.(*Socket).Read(buf) },
		Write: func(obj any, buf []byte) (int, error) { return obj.(*Socket).Write(buf) },
		Close: func(obj any) error { return obj.(*Socket).close(pt) },
	}

	fids, fcbs, ok := stream.Reserve(t, 1, []stream.Ops{ops}, []any{s})
	if !ok {
		return stream.NOFILE, false
	}
	s.fcb = fcbs[0]
	return fids[0], true
}

func lookup(t *stream.Table, fid stream.Fid) (*Socket, error) {
	fcb, ok := t.Get(fid)
	if !ok {
		return nil, errBadFid
	}
	s, ok := fcb.Obj.(*Socket)
	if !ok {
		return nil, errBadFid
	}
	return s, nil
}

// Listen transitions an UNBOUND socket bound to a real port into a
// LISTENER, publishing it in the port table. Mirrors sys_Listen.
func Listen(pt *PortTable, t *stream.Table, fid stream.Fid) error {
	s, err := lookup(t, fid)
	if err != nil {
		return err
	}
	if s.typ != unbound {
		return errWrongType
	}
	if s.port == NoPort {
		return errBadPort
	}
	if pt.ports[s.port] != nil {
		return errPortInUse
	}

	s.typ = listener
	s.queue = nil
	s.reqAvailable = kcore.NewCond(pt.lock)
	pt.ports[s.port] = s
	return nil
}

// Connect pushes a connection request onto the listener bound to port and
// waits up to timeout for it to be admitted. Mirrors sys_Connect as
// specified in spec.md §4.3 (the kept kernel_socket.c fragment leaves this
// as a stub).
func Connect(pt *PortTable, t *stream.Table, fid stream.Fid, port Port, timeout time.Duration) error {
	s, err := lookup(t, fid)
	if err != nil {
		return err
	}
	if s.typ != unbound {
		return errWrongType
	}
	if !pt.validPort(port) || port == NoPort {
		return errBadPort
	}
	l := pt.ports[port]
	if l == nil || l.typ != listener {
		return errNoListener
	}

	req := &connRequest{client: s, connected: kcore.NewCond(pt.lock)}
	l.queue = append(l.queue, req)
	l.reqAvailable.Signal()

	deadline := pt.clock.Now().Add(timeout)
	for !req.admitted {
		if req.connected.TimedWait(deadline) && !req.admitted {
			break
		}
	}

	removeRequest(l, req)
	if !req.admitted {
		return errNotAdmitted
	}
	return nil
}

func removeRequest(l *Socket, target *connRequest) {
	for i, r := range l.queue {
		if r == target {
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			return
		}
	}
}

// Accept waits for a queued connection request on the listener fid,
// pairs the requesting socket with a fresh peer socket bound into
// callerTable, and wires a crossed pair of pipes between them. Mirrors
// sys_Accept.
func Accept(pt *PortTable, lt *stream.Table, lfid stream.Fid, callerTable *stream.Table) (stream.Fid, error) {
	l, err := lookup(lt, lfid)
	if err != nil {
		return stream.NOFILE, err
	}
	if l.typ != listener || pt.ports[l.port] != l {
		return stream.NOFILE, errWrongType
	}
	if !hasFreeSlot(callerTable) {
		return stream.NOFILE, errFull
	}

	l.refcount++
	defer func() { l.refcount-- }()

	for len(l.queue) == 0 && pt.ports[l.port] == l {
		l.reqAvailable.Wait()
	}
	if pt.ports[l.port] != l {
		return stream.NOFILE, errWrongType
	}

	req := l.queue[0]
	l.queue = l.queue[1:]

	client := req.client
	if client.typ != unbound {
		return stream.NOFILE, errNotUnbound
	}

	peerFid, ok := Create(l.lock, pt, callerTable, client.port)
	if !ok {
		return stream.NOFILE, errFull
	}
	serverSide, err := lookup(callerTable, peerFid)
	if err != nil {
		return stream.NOFILE, err
	}

	client.typ = peer
	serverSide.typ = peer
	client.peer = serverSide
	serverSide.peer = client

	clientToServer := pipe.NewRaw(l.lock, pipe.BufferSize, serverSide.fcb, client.fcb)
	serverToClient := pipe.NewRaw(l.lock, pipe.BufferSize, client.fcb, serverSide.fcb)

	client.writePipe = clientToServer
	client.readPipe = serverToClient
	serverSide.readPipe = clientToServer
	serverSide.writePipe = serverToClient

	req.admitted = true
	req.connected.Signal()

	return peerFid, nil
}

func hasFreeSlot(t *stream.Table) bool {
	for i := 0; i < t.Len(); i++ {
		if _, ok := t.Get(stream.Fid(i)); !ok {
			return true
		}
	}
	return false
}

// ShutDown closes one or both halves of a peer connection. Mirrors
// sys_ShutDown.
func ShutDown(t *stream.Table, fid stream.Fid, how ShutdownMode) error {
	s, err := lookup(t, fid)
	if err != nil {
		return err
	}
	if s.typ != peer {
		return errWrongType
	}

	switch how {
	case ShutdownRead:
		return shutdownRead(s)
	case ShutdownWrite:
		return shutdownWrite(s)
	case ShutdownBoth:
		errR := shutdownRead(s)
		errW := shutdownWrite(s)
		if errR != nil {
			return errR
		}
		return errW
	default:
		return errWrongType
	}
}

func shutdownRead(s *Socket) error {
	if s.readPipe == nil {
		return errWrongType
	}
	return s.readPipe.CloseReader()
}

func shutdownWrite(s *Socket) error {
	if s.writePipe == nil {
		return errWrongType
	}
	return s.writePipe.CloseWriter()
}

// Read delegates to the peer's read pipe.
func (s *Socket) Read(buf []byte) (int, error) {
	if s.typ == peer && s.readPipe != nil {
		return s.readPipe.Read(buf)
	}
	return -1, errWrongType
}

// Write delegates to the peer's write pipe.
func (s *Socket) Write(buf []byte) (int, error) {
	if s.typ == peer && s.writePipe != nil {
		return s.writePipe.Write(buf)
	}
	return -1, errWrongType
}

// close runs when the socket's FCB refcount reaches zero. spec.md §4.3
// "Socket close".
func (s *Socket) close(pt *PortTable) error {
	switch s.typ {
	case peer:
		if s.readPipe != nil {
			_ = s.readPipe.CloseReader()
		}
		if s.writePipe != nil {
			_ = s.writePipe.CloseWriter()
		}
		if s.peer != nil {
			s.peer.peer = nil
		}
	case listener:
		if pt.ports[s.port] == s {
			pt.ports[s.port] = nil
		}
		if s.reqAvailable != nil {
			s.reqAvailable.Broadcast()
		}
	case unbound:
		// nothing held beyond the FCB itself.
	}
	return nil
}

// IsPeer/IsListener/IsUnbound expose the socket's variant for tests and
// invariant checks.
func (s *Socket) IsPeer() bool     { return s.typ == peer }
func (s *Socket) IsListener() bool { return s.typ == listener }
func (s *Socket) IsUnbound() bool  { return s.typ == unbound }
