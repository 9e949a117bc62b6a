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

package socket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/tinyos-go/tinyos/internal/kcore"
	"github.com/tinyos-go/tinyos/internal/stream"
)

type SocketTest struct {
	suite.Suite
	lock *kcore.BigLock
	pt   *PortTable
	t    *stream.Table
}

func TestSocketSuite(t *testing.T) {
	suite.Run(t, new(SocketTest))
}

func (s *SocketTest) SetupTest() {
	s.lock = kcore.NewBigLock()
	s.pt = NewPortTable(s.lock, kcore.RealClock(), 16)
	s.t = stream.NewTable(16)
}

func (s *SocketTest) TestListenThenConnectAndAcceptPairPeers() {
	s.lock.Lock()
	lfid, ok := Create(s.lock, s.pt, s.t, 5)
	s.Require().True(ok)
	s.Require().NoError(Listen(s.pt, s.t, lfid))

	cfid, ok := Create(s.lock, s.pt, s.t, NoPort)
	s.Require().True(ok)

	accepted := make(chan stream.Fid, 1)
	go func() {
		s.lock.Lock()
		peerFid, err := Accept(s.pt, s.t, lfid, s.t)
		s.lock.Unlock()
		s.Require().NoError(err)
		accepted <- peerFid
	}()
	s.lock.Unlock()

	s.Require().NoError(func() error {
		s.lock.Lock()
		defer s.lock.Unlock()
		return Connect(s.pt, s.t, cfid, 5, time.Second)
	}())

	select {
	case peerFid := <-accepted:
		client, _ := lookup(s.t, cfid)
		server, _ := lookup(s.t, peerFid)
		s.True(client.IsPeer())
		s.True(server.IsPeer())
	case <-time.After(time.Second):
		s.Fail("accept never completed")
	}
}

func (s *SocketTest) TestConnectToMissingListenerFailsFast() {
	s.lock.Lock()
	defer s.lock.Unlock()

	cfid, ok := Create(s.lock, s.pt, s.t, NoPort)
	s.Require().True(ok)

	err := Connect(s.pt, s.t, cfid, 9, time.Second)
	s.ErrorIs(err, errNoListener)
}

func (s *SocketTest) TestConnectTimesOutWhenNeverAccepted() {
	s.lock.Lock()
	lfid, ok := Create(s.lock, s.pt, s.t, 7)
	s.Require().True(ok)
	s.Require().NoError(Listen(s.pt, s.t, lfid))

	cfid, ok := Create(s.lock, s.pt, s.t, NoPort)
	s.Require().True(ok)

	err := Connect(s.pt, s.t, cfid, 7, 10*time.Millisecond)
	s.lock.Unlock()

	s.ErrorIs(err, ErrNotAdmitted)
}

func (s *SocketTest) TestListenOnPortAlreadyBoundFails() {
	s.lock.Lock()
	defer s.lock.Unlock()

	a, ok := Create(s.lock, s.pt, s.t, 3)
	s.Require().True(ok)
	s.Require().NoError(Listen(s.pt, s.t, a))

	b, ok := Create(s.lock, s.pt, s.t, 3)
	s.Require().True(ok)
	s.ErrorIs(Listen(s.pt, s.t, b), errPortInUse)
}
