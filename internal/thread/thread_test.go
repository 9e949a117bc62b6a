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

package thread

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/tinyos-go/tinyos/internal/kcore"
)

type ThreadTest struct {
	suite.Suite
	lock *kcore.BigLock
	list *List
}

func TestThreadSuite(t *testing.T) {
	suite.Run(t, new(ThreadTest))
}

func (s *ThreadTest) SetupTest() {
	s.lock = kcore.NewBigLock()
	s.list = NewList(s.lock)
}

func (s *ThreadTest) TestJoinReturnsExitValue() {
	s.lock.Lock()
	_, tid, err := s.list.Create()
	s.Require().NoError(err)
	s.Equal(1, s.list.Count())

	last := s.list.Exit(tid, 7)
	s.True(last, "the only thread in the list must be reported as last")

	var exitval int
	self := Tid(999) // no such thread; only used for the self-join check
	err = s.list.Join(self, tid, &exitval)
	s.NoError(err)
	s.Equal(7, exitval)
	s.lock.Unlock()
}

func (s *ThreadTest) TestJoinSelfFails() {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, tid, _ := s.list.Create()
	err := s.list.Join(tid, tid, nil)
	s.ErrorIs(err, errSelfJoin)
}

func (s *ThreadTest) TestDetachThenJoinFails() {
	s.lock.Lock()
	defer s.lock.Unlock()
	_, tid, _ := s.list.Create()

	s.Require().NoError(s.list.Detach(tid))

	err := s.list.Join(Tid(999), tid, nil)
	s.ErrorIs(err, errDetached)
}

func (s *ThreadTest) TestJoinedThenReapedThreadCannotBeJoinedAgain() {
	s.lock.Lock()
	defer s.lock.Unlock()

	_, tid, _ := s.list.Create()
	s.list.Exit(tid, 3)

	var exitval int
	s.Require().NoError(s.list.Join(Tid(999), tid, &exitval))
	s.Equal(3, exitval)

	// The PTCB was reaped (refcount reached 0 inside Join): a second
	// join must see "not found", not a stale exit value.
	err := s.list.Join(Tid(999), tid, &exitval)
	s.ErrorIs(err, errNotFound)
}

func (s *ThreadTest) TestLastThreadReportedOnlyWhenCountReachesZero() {
	s.lock.Lock()
	defer s.lock.Unlock()

	_, t1, _ := s.list.Create()
	_, t2, _ := s.list.Create()

	s.False(s.list.Exit(t1, 0), "one thread remains")
	s.True(s.list.Exit(t2, 0), "that was the last thread")
}
