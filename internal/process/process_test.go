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

package process

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/tinyos-go/tinyos/internal/kcore"
	"github.com/tinyos-go/tinyos/internal/stream"
)

// fakeClock is a kcore.Clock standing still at a fixed instant, the
// same substitution jacobsa-fuse's in-memory file system makes for
// jacobsa/timeutil.Clock in its own tests.
type fakeClock struct{ now time.Time }

func (f fakeClock) Now() time.Time { return f.now }

func noopClose(*stream.FCB) error { return nil }

type ProcessTest struct {
	suite.Suite
	lock  *kcore.BigLock
	table *Table
}

func TestProcessSuite(t *testing.T) {
	suite.Run(t, new(ProcessTest))
}

func (s *ProcessTest) SetupTest() {
	s.lock = kcore.NewBigLock()
	s.table = NewTable(s.lock, fakeClock{now: time.Unix(1000, 0)}, 8, 4)
}

func (s *ProcessTest) TestExecAssignsSequentialPidsAndStampsCreatedAt() {
	idle, idlePid, err := s.table.Exec(nil, nil, 0, nil)
	s.Require().NoError(err)
	s.Equal(IdlePid, idlePid)
	s.Equal(time.Unix(1000, 0), idle.CreatedAt())

	_, initPid, err := s.table.Exec(nil, func(int, []byte) int { return 0 }, 0, nil)
	s.Require().NoError(err)
	s.Equal(InitPid, initPid)
}

func (s *ProcessTest) TestExecChildInheritsFDTableAndParentage() {
	// Take pids 0 and 1 first: those two are always parentless.
	_, _, err := s.table.Exec(nil, nil, 0, nil)
	s.Require().NoError(err)
	_, _, err = s.table.Exec(nil, func(int, []byte) int { return 0 }, 0, nil)
	s.Require().NoError(err)

	parent, _, err := s.table.Exec(nil, func(int, []byte) int { return 0 }, 0, nil)
	s.Require().NoError(err)

	ops := stream.Ops{Close: func(any) error { return nil }}
	fid, _, ok := stream.Reserve(parent.FDT, 1, []stream.Ops{ops}, []any{nil})
	s.Require().True(ok)

	child, _, err := s.table.Exec(parent, func(int, []byte) int { return 0 }, 0, nil)
	s.Require().NoError(err)
	s.Equal(parent.pid, child.PPid())

	_, inherited := child.FDT.Get(fid)
	s.True(inherited, "child must inherit the parent's open FDs")
}

func (s *ProcessTest) TestWaitChildSpecificReapsAfterFinalize() {
	// Take pids 0 and 1 first: those two are always parentless.
	_, _, err := s.table.Exec(nil, nil, 0, nil)
	s.Require().NoError(err)
	_, _, err = s.table.Exec(nil, func(int, []byte) int { return 0 }, 0, nil)
	s.Require().NoError(err)

	parent, _, err := s.table.Exec(nil, func(int, []byte) int { return 0 }, 0, nil)
	s.Require().NoError(err)
	child, childPid, err := s.table.Exec(parent, func(int, []byte) int { return 0 }, 0, nil)
	s.Require().NoError(err)

	child.SetExitVal(42)
	s.table.Finalize(child, noopClose)

	var status int
	reaped := s.table.WaitChild(parent, childPid, &status)
	s.Equal(childPid, reaped)
	s.Equal(42, status)
	s.Nil(s.table.Get(childPid), "a reaped pid must free its table slot")
}

func (s *ProcessTest) TestOrphanIsReparentedToInit() {
	_, _, err := s.table.Exec(nil, func(int, []byte) int { return 0 }, 0, nil) // idle, pid 0
	s.Require().NoError(err)
	initPCB, _, err := s.table.Exec(nil, func(int, []byte) int { return 0 }, 0, nil) // init, pid 1
	s.Require().NoError(err)
	_ = initPCB

	parent, _, err := s.table.Exec(initPCB, func(int, []byte) int { return 0 }, 0, nil)
	s.Require().NoError(err)
	grandchild, _, err := s.table.Exec(parent, func(int, []byte) int { return 0 }, 0, nil)
	s.Require().NoError(err)

	s.table.Finalize(parent, noopClose)
	s.Equal(InitPid, grandchild.PPid())
}
