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

package main

import (
	"bytes"
	"fmt"

	"github.com/tinyos-go/tinyos"
)

// runPipeEcho is spec.md §8 scenario 1: the parent pipes 13 bytes to a
// child, which sums their ASCII codes and exits with the total.
func runPipeEcho(self *tinyos.Current) int {
	read, write, err := self.Pipe()
	if err != nil {
		fmt.Println("pipe:", err)
		return 1
	}

	childPid, err := self.Exec(func(child *tinyos.Current, argl int, args []byte) int {
		// Drop the inherited write end so the parent's Close yields EOF.
		_ = child.Close(write)
		buf := make([]byte, 32)
		n, _ := child.Read(read, buf)
		sum := 0
		for _, b := range buf[:n] {
			sum += int(b)
		}
		if n2, _ := child.Read(read, buf); n2 != 0 {
			fmt.Println("expected EOF after the payload")
		}
		return sum
	}, 0, nil)
	if err != nil {
		fmt.Println("exec:", err)
		return 1
	}

	if _, err := self.Write(write, []byte("hello, world!")); err != nil {
		fmt.Println("write:", err)
		return 1
	}
	_ = self.Close(write)

	_, status, err := self.WaitChild(childPid)
	if err != nil {
		fmt.Println("waitchild:", err)
		return 1
	}
	fmt.Printf("child exited with sum=%d\n", status)
	return 0
}

// runBoundedBlocking is spec.md §8 scenario 2: write 9000 bytes into an
// 8200-capacity pipe, observe the short write, drain 800 bytes, and
// confirm the writer's remainder lands.
func runBoundedBlocking(self *tinyos.Current) int {
	read, write, err := self.Pipe()
	if err != nil {
		fmt.Println("pipe:", err)
		return 1
	}

	done := make(chan [2]int, 1)
	payload := bytes.Repeat([]byte{'A'}, 9000)
	go func() {
		first, _ := self.Write(write, payload)
		second, _ := self.Write(write, payload[first:])
		done <- [2]int{first, second}
	}()

	drain := make([]byte, 800)
	n, _ := self.Read(read, drain)
	counts := <-done
	fmt.Printf("first write=%d second write=%d drained=%d\n", counts[0], counts[1], n)
	return 0
}

// runSocketPing is spec.md §8 scenarios 3 and 4: listen/accept/connect,
// a PING/PONG round trip, then a write-side shutdown observed as EOF.
func runSocketPing(self *tinyos.Current) int {
	listenerFid, err := self.Socket(100)
	if err != nil {
		fmt.Println("socket:", err)
		return 1
	}
	if err := self.Listen(listenerFid); err != nil {
		fmt.Println("listen:", err)
		return 1
	}

	accepted := make(chan tinyos.Fid, 1)
	go func() {
		peer, err := self.Accept(listenerFid)
		if err != nil {
			fmt.Println("accept:", err)
		}
		accepted <- peer
	}()

	clientFid, err := self.Socket(tinyos.NOPORT)
	if err != nil {
		fmt.Println("socket:", err)
		return 1
	}
	if err := self.Connect(clientFid, 100, 1000); err != nil {
		fmt.Println("connect:", err)
		return 1
	}

	serverFid := <-accepted
	if _, err := self.Write(serverFid, []byte("PING")); err != nil {
		fmt.Println("write ping:", err)
		return 1
	}
	buf := make([]byte, 4)
	self.Read(clientFid, buf)
	fmt.Printf("client received %q\n", buf)

	self.Write(clientFid, []byte("PONG"))
	self.Read(serverFid, buf)
	fmt.Printf("server received %q\n", buf)

	if err := self.ShutDown(serverFid, tinyos.ShutdownWrite); err != nil {
		fmt.Println("shutdown:", err)
		return 1
	}
	n, _ := self.Read(clientFid, buf)
	fmt.Printf("client read after shutdown: n=%d (EOF expected)\n", n)
	return 0
}

// runThreadRace is spec.md §8 scenario 5: join one child thread,
// detach the other, and confirm the detached one can no longer be
// joined.
func runThreadRace(self *tinyos.Current) int {
	t1, err := self.CreateThread(func(*tinyos.Current, int, []byte) int { return 7 }, 0, nil)
	if err != nil {
		fmt.Println("createthread:", err)
		return 1
	}
	// t2 stays alive until it has been detached: Detach fails on a thread
	// that has already exited.
	release := make(chan struct{})
	defer close(release)
	t2, err := self.CreateThread(func(*tinyos.Current, int, []byte) int { <-release; return 11 }, 0, nil)
	if err != nil {
		fmt.Println("createthread:", err)
		return 1
	}

	exitval, err := self.ThreadJoin(t1)
	fmt.Printf("join t1: exitval=%d err=%v\n", exitval, err)

	if err := self.ThreadDetach(t2); err != nil {
		fmt.Println("detach t2:", err)
		return 1
	}
	_, err = self.ThreadJoin(t2)
	fmt.Printf("join detached t2: err=%v (expected non-nil)\n", err)
	return 0
}

// runOrphanReparent is spec.md §8 scenario 6: P2 execs a grandchild P3
// and exits without waiting; P3 should be reparented to init and
// reaped by init's own WaitChild loop (run implicitly when this task,
// as init, returns and Exit drains every child).
func runOrphanReparent(self *tinyos.Current) int {
	_, err := self.Exec(func(p2 *tinyos.Current, argl int, args []byte) int {
		_, err := p2.Exec(func(p3 *tinyos.Current, argl int, args []byte) int {
			fmt.Printf("grandchild pid=%d ppid=%d\n", p3.GetPid(), p3.GetPPid())
			return 42
		}, 0, nil)
		if err != nil {
			fmt.Println("grandchild exec:", err)
		}
		return 0
		// P2 returns immediately without waiting on P3: P3 is reparented
		// to init when P2's last thread exits.
	}, 0, nil)
	if err != nil {
		fmt.Println("exec p2:", err)
		return 1
	}
	return 0
}
