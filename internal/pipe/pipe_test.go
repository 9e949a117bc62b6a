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

package pipe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/tinyos-go/tinyos/internal/kcore"
	"github.com/tinyos-go/tinyos/internal/stream"
)

type PipeTest struct {
	suite.Suite
	lock *kcore.BigLock
	t    *stream.Table
}

func TestPipeSuite(t *testing.T) {
	suite.Run(t, new(PipeTest))
}

func (s *PipeTest) SetupTest() {
	s.lock = kcore.NewBigLock()
	s.t = stream.NewTable(16)
}

func (s *PipeTest) TestWriteThenReadRoundTrips() {
	s.lock.Lock()
	read, write, ok := New(s.lock, s.t, 64)
	s.Require().True(ok)

	readFCB, _ := s.t.Get(read)
	writeFCB, _ := s.t.Get(write)

	n, err := writeFCB.Ops.Write(writeFCB.Obj, []byte("hello"))
	s.NoError(err)
	s.Equal(5, n)

	buf := make([]byte, 5)
	n, err = readFCB.Ops.Read(readFCB.Obj, buf)
	s.NoError(err)
	s.Equal(5, n)
	s.Equal("hello", string(buf))
	s.lock.Unlock()
}

func (s *PipeTest) TestCloseWriterThenReadYieldsEOF() {
	s.lock.Lock()
	read, write, ok := New(s.lock, s.t, 64)
	s.Require().True(ok)

	readFCB, _ := s.t.Get(read)
	writeFCB, _ := s.t.Get(write)

	_, err := writeFCB.Ops.Write(writeFCB.Obj, []byte("hi"))
	s.NoError(err)
	s.NoError(writeFCB.Ops.Close(writeFCB.Obj))

	buf := make([]byte, 2)
	n, err := readFCB.Ops.Read(readFCB.Obj, buf)
	s.NoError(err)
	s.Equal(2, n)

	n, err = readFCB.Ops.Read(readFCB.Obj, buf)
	s.NoError(err)
	s.Equal(0, n, "EOF is reported as a zero-length read, not an error")
	s.lock.Unlock()
}

func (s *PipeTest) TestRemainingSpaceInvariant() {
	s.lock.Lock()
	p := NewRaw(s.lock, 16, &stream.FCB{}, &stream.FCB{})
	s.Equal(16, p.RemainingSpace()+p.UsedBytes())

	_, err := p.Write([]byte("abcd"))
	s.NoError(err)
	s.Equal(16, p.RemainingSpace()+p.UsedBytes())
	s.lock.Unlock()
}

// TestBoundedBlockingUnblocksOnRead exercises spec.md §8 scenario 2's
// shape at a small scale: a writer blocked on a full pipe is woken by
// a reader draining some bytes.
func (s *PipeTest) TestBoundedBlockingUnblocksOnRead() {
	s.lock.Lock()
	read, write, ok := New(s.lock, s.t, 8)
	s.Require().True(ok)
	readFCB, _ := s.t.Get(read)
	writeFCB, _ := s.t.Get(write)

	n, err := writeFCB.Ops.Write(writeFCB.Obj, []byte("12345678"))
	s.NoError(err)
	s.Equal(8, n)

	blocked := make(chan int, 1)
	go func() {
		s.lock.Lock()
		n, _ := writeFCB.Ops.Write(writeFCB.Obj, []byte("9"))
		s.lock.Unlock()
		blocked <- n
	}()

	// Give the writer goroutine time to actually block on hasSpace.
	s.lock.Unlock()
	time.Sleep(20 * time.Millisecond)
	s.lock.Lock()

	buf := make([]byte, 1)
	_, err = readFCB.Ops.Read(readFCB.Obj, buf)
	s.NoError(err)
	s.lock.Unlock()

	select {
	case n := <-blocked:
		s.Equal(1, n)
	case <-time.After(time.Second):
		s.Fail("writer never unblocked after reader drained one byte")
	}
}
