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

// Package kcore provides the substrate that the rest of the kernel is built
// on: a single big lock and the condition-variable primitives that the
// pipe, socket, thread and process layers suspend on.
//
// spec.md treats the scheduler and its cooperative context-switch primitive
// as an external collaborator ("spawn_thread, wakeup, kernel_wait,
// kernel_timedwait, kernel_broadcast, kernel_signal, kernel_sleep"). This
// package is that collaborator's Go-idiomatic shape: one mutex serializes
// every PCB/PTCB/FCB/pipe/socket mutation, goroutines stand in for
// schedulable threads, and sync.Cond stands in for kernel_wait/broadcast.
package kcore

import (
	"sync"
	"time"

	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
)

// BigLock is the kernel's single mutex. Every package in this module
// embeds or receives a *BigLock and holds it for the duration of any
// syscall body, per spec.md §5 "Locking discipline".
type BigLock struct {
	mu syncutil.InvariantMutex
}

// NewBigLock returns a ready-to-use kernel mutex.
func NewBigLock() *BigLock {
	return &BigLock{}
}

// Lock acquires the kernel mutex.
func (l *BigLock) Lock() {
	l.mu.Lock()
}

// Unlock releases the kernel mutex.
func (l *BigLock) Unlock() {
	l.mu.Unlock()
}

// Cond is a condition variable over a *BigLock. It is the Go rendition of
// a tinyOS CondVar: NewCond(l) is COND_INIT, Wait is kernel_wait,
// TimedWait is kernel_timedwait, Signal/Broadcast are kernel_signal/
// kernel_broadcast.
type Cond struct {
	c *sync.Cond
}

// NewCond creates a condition variable guarded by l. l must already be
// held whenever Wait, TimedWait, Signal or Broadcast are called.
func NewCond(l *BigLock) *Cond {
	return &Cond{c: sync.NewCond(&l.mu)}
}

// Wait suspends the calling goroutine, releasing the big lock, until
// woken by Signal or Broadcast. The lock is held again on return.
func (c *Cond) Wait() {
	c.c.Wait()
}

// TimedWait suspends the calling goroutine until woken or until deadline
// passes, whichever comes first, returning true if it woke because the
// deadline passed rather than because of a Signal/Broadcast. The caller
// must still re-check its predicate on return, exactly as with Wait: a
// wake can be spurious, and a wake that races the deadline is reported
// as a timeout even if the predicate has meanwhile become true.
//
// sync.Cond has no native deadline, so TimedWait arranges a one-shot
// timer that broadcasts this same Cond when it fires. That's safe here
// because every TimedWait caller in this module (Connect) owns a private
// per-request Cond that nothing else waits on, so the timer's broadcast
// can't produce a spurious wake for an unrelated waiter.
func (c *Cond) TimedWait(deadline time.Time) (timedOut bool) {
	d := time.Until(deadline)
	if d <= 0 {
		return true
	}

	timer := time.AfterFunc(d, func() {
		c.Broadcast()
	})
	defer timer.Stop()

	c.Wait()
	return time.Now().After(deadline)
}

// Signal wakes at most one waiter.
func (c *Cond) Signal() {
	c.c.Signal()
}

// Broadcast wakes all waiters.
func (c *Cond) Broadcast() {
	c.c.Broadcast()
}

// Spawn launches task as a schedulable thread (spawn_thread + the implicit
// wakeup that follows it — a goroutine is runnable the moment it's
// scheduled, so there is no separate "create suspended, then wake" step
// to model).
func Spawn(task func()) {
	go task()
}

// Clock is the kernel's view of time, used to stamp PCB creation times
// and to compute Connect's deadline. Backed by jacobsa/timeutil so tests
// can inject a fake clock the same way jacobsa-fuse's in-memory file
// system does.
type Clock = timeutil.Clock

// RealClock returns the wall-clock Clock implementation.
func RealClock() Clock {
	return timeutil.RealClock()
}
