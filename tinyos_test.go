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

package tinyos_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/tinyos-go/tinyos"
	"github.com/tinyos-go/tinyos/internal/config"
)

type KernelTest struct {
	suite.Suite
}

func TestKernelSuite(t *testing.T) {
	suite.Run(t, new(KernelTest))
}

// TestPipeEcho is spec.md §8 scenario 1: a child reads 13 bytes from a
// pipe and exits with the sum of their ASCII codes.
func (s *KernelTest) TestPipeEcho() {
	k := tinyos.New(config.Defaults())
	results := make(chan int, 1)

	_, err := k.Boot(func(self *tinyos.Current, argl int, args []byte) int {
		read, write, err := self.Pipe()
		s.Require().NoError(err)

		childPid, err := self.Exec(func(child *tinyos.Current, argl int, args []byte) int {
			// The child inherits the parent's write end too; drop it so
			// the parent's Close is the last reference and yields EOF.
			s.Require().NoError(child.Close(write))
			buf := make([]byte, 32)
			n, err := child.Read(read, buf)
			s.Require().NoError(err)
			sum := 0
			for _, b := range buf[:n] {
				sum += int(b)
			}
			n2, err := child.Read(read, buf)
			s.NoError(err)
			s.Equal(0, n2, "second read must observe EOF")
			return sum
		}, 0, nil)
		s.Require().NoError(err)

		_, err = self.Write(write, []byte("hello, world!"))
		s.Require().NoError(err)
		s.Require().NoError(self.Close(write))

		_, status, err := self.WaitChild(childPid)
		s.Require().NoError(err)
		results <- status
		return 0
	}, 0, nil)
	s.Require().NoError(err)

	select {
	case sum := <-results:
		s.Equal(1193, sum)
	case <-time.After(2 * time.Second):
		s.Fail("pipe echo scenario never completed")
	}
	<-k.Shutdown()
}

// TestSocketPingPong is spec.md §8 scenario 3: a listener and a
// connector exchange PING/PONG over a paired socket connection.
func (s *KernelTest) TestSocketPingPong() {
	k := tinyos.New(config.Defaults())
	done := make(chan string, 1)

	_, err := k.Boot(func(self *tinyos.Current, argl int, args []byte) int {
		listenerFid, err := self.Socket(100)
		s.Require().NoError(err)
		s.Require().NoError(self.Listen(listenerFid))

		accepted := make(chan tinyos.Fid, 1)
		_, err = self.CreateThread(func(a *tinyos.Current, argl int, args []byte) int {
			peer, err := a.Accept(listenerFid)
			s.Require().NoError(err)
			accepted <- peer
			return 0
		}, 0, nil)
		s.Require().NoError(err)

		clientFid, err := self.Socket(tinyos.NOPORT)
		s.Require().NoError(err)
		s.Require().NoError(self.Connect(clientFid, 100, 1000))

		serverFid := <-accepted
		_, err = self.Write(serverFid, []byte("PING"))
		s.Require().NoError(err)

		buf := make([]byte, 4)
		_, err = self.Read(clientFid, buf)
		s.Require().NoError(err)
		s.Equal("PING", string(buf))

		_, err = self.Write(clientFid, []byte("PONG"))
		s.Require().NoError(err)
		_, err = self.Read(serverFid, buf)
		s.Require().NoError(err)

		done <- string(buf)
		return 0
	}, 0, nil)
	s.Require().NoError(err)

	select {
	case got := <-done:
		s.Equal("PONG", got)
	case <-time.After(2 * time.Second):
		s.Fail("socket ping scenario never completed")
	}
	<-k.Shutdown()
}

// TestThreadDetachThenJoinFails is spec.md §8 scenario 5.
func (s *KernelTest) TestThreadDetachThenJoinFails() {
	k := tinyos.New(config.Defaults())
	joinErrs := make(chan error, 1)

	_, err := k.Boot(func(self *tinyos.Current, argl int, args []byte) int {
		t1, err := self.CreateThread(func(*tinyos.Current, int, []byte) int { return 7 }, 0, nil)
		s.Require().NoError(err)
		// t2 stays alive until it has been detached: Detach fails on a
		// thread that has already exited.
		release := make(chan struct{})
		t2, err := self.CreateThread(func(*tinyos.Current, int, []byte) int { <-release; return 11 }, 0, nil)
		s.Require().NoError(err)

		exitval, err := self.ThreadJoin(t1)
		s.Require().NoError(err)
		s.Equal(7, exitval)

		s.Require().NoError(self.ThreadDetach(t2))
		_, joinErr := self.ThreadJoin(t2)
		close(release)
		joinErrs <- joinErr
		return 0
	}, 0, nil)
	s.Require().NoError(err)

	select {
	case joinErr := <-joinErrs:
		s.Error(joinErr)
	case <-time.After(2 * time.Second):
		s.Fail("thread race scenario never completed")
	}
	<-k.Shutdown()
}

// TestOrphanReparenting is spec.md §8 scenario 6: a grandchild process
// is reparented to init when its parent exits first, and init reaps it
// as part of its own shutdown drain.
func (s *KernelTest) TestOrphanReparenting() {
	k := tinyos.New(config.Defaults())
	grandchildPPid := make(chan tinyos.Pid, 1)

	_, err := k.Boot(func(self *tinyos.Current, argl int, args []byte) int {
		_, err := self.Exec(func(p2 *tinyos.Current, argl int, args []byte) int {
			_, err := p2.Exec(func(p3 *tinyos.Current, argl int, args []byte) int {
				// Give P2 a head start on exiting before reading PPid.
				time.Sleep(20 * time.Millisecond)
				grandchildPPid <- p3.GetPPid()
				return 0
			}, 0, nil)
			s.Require().NoError(err)
			return 0
		}, 0, nil)
		s.Require().NoError(err)
		return 0
	}, 0, nil)
	s.Require().NoError(err)

	select {
	case ppid := <-grandchildPPid:
		s.Equal(tinyos.Pid(1), ppid, "orphan must be reparented to init")
	case <-time.After(2 * time.Second):
		s.Fail("orphan reparenting scenario never completed")
	}
	<-k.Shutdown()
}
