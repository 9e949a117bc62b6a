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

import (
	"strings"
	"sync"

	"github.com/tinyos-go/tinyos/internal/config"
	"github.com/tinyos-go/tinyos/internal/kcore"
	"github.com/tinyos-go/tinyos/internal/logger"
	"github.com/tinyos-go/tinyos/internal/metrics"
	"github.com/tinyos-go/tinyos/internal/process"
	"github.com/tinyos-go/tinyos/internal/socket"
	"github.com/tinyos-go/tinyos/internal/stream"
	"github.com/tinyos-go/tinyos/internal/thread"
)

// Fid, Pid, Tid and Port are the opaque integer handles spec.md §6
// hands back across the syscall boundary; they're aliases of the
// owning package's handle type so callers never import internal/*
// directly.
type (
	Fid = stream.Fid
	Pid = process.Pid
	Tid = thread.Tid
	Port = socket.Port
)

// ShutdownMode selects which half of a peer connection ShutDown closes.
type ShutdownMode = socket.ShutdownMode

const (
	ShutdownRead  = socket.ShutdownRead
	ShutdownWrite = socket.ShutdownWrite
	ShutdownBoth  = socket.ShutdownBoth
)

// Task is the entry point of a process's or thread's main body. Unlike
// the source's Task typedef, it's handed the *Current that names the
// thread running it — idiomatic Go's stand-in for the implicit
// CURPROC/running-thread globals a single-address-space kernel gets
// for free.
type Task func(self *Current, argl int, args []byte) int

// Kernel owns every piece of kernel-wide state: the single big lock,
// the process table, the port table, and the ambient logging/metrics
// surface. One Kernel is one booted machine.
type Kernel struct {
	lock *kcore.BigLock

	procs *process.Table
	ports *socket.PortTable

	metrics *metrics.Set
	cfg     config.Config

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// New allocates a Kernel from cfg and brings up the idle process at
// pid 0, mirroring the bootstrap step every one of kernel_proc.c's
// callers assumes already ran before the first real Exec. cfg.LogLevel
// and cfg.LogFormat configure the package-level internal/logger.
func New(cfg config.Config) *Kernel {
	lock := kcore.NewBigLock()
	clock := kcore.RealClock()
	k := &Kernel{
		lock:     lock,
		procs:    process.NewTable(lock, clock, cfg.MaxProc, cfg.MaxFileID),
		ports:    socket.NewPortTable(lock, clock, cfg.MaxPort),
		metrics:  metrics.NewSet(),
		cfg:      cfg,
		shutdown: make(chan struct{}),
	}

	logger.SetFormat(cfg.LogFormat)
	logger.SetLevel(parseSeverity(cfg.LogLevel))

	lock.Lock()
	_, idlePid, err := k.procs.Exec(nil, nil, 0, nil)
	lock.Unlock()
	if err != nil || idlePid != process.IdlePid {
		panic("tinyos: failed to allocate the idle process at pid 0")
	}
	k.metrics.ProcessesAlive.Inc()

	return k
}

// Boot execs the init process (pid 1) with task as its main thread and
// returns the Current handle for that thread. Call it exactly once,
// immediately after New; every other process in the machine descends
// from init via Exec.
func (k *Kernel) Boot(task Task, argl int, args []byte) (*Current, error) {
	k.lock.Lock()
	pcb, pid, err := k.procs.Exec(nil, wrapTask(task), argl, args)
	if err != nil {
		k.lock.Unlock()
		return nil, err
	}
	if pid != process.InitPid {
		k.lock.Unlock()
		panic("tinyos: Boot called more than once")
	}

	cur := &Current{k: k, pcb: pcb, tid: pcb.MainThread()}
	k.metrics.ProcessesAlive.Inc()
	if task != nil {
		k.metrics.ThreadsAlive.Inc()
		k.spawnMain(cur, task, argl, args)
	}
	k.lock.Unlock()

	logger.Infof("init booted as pid %d", pid)
	return cur, nil
}

// Shutdown reports when the init process (pid 1) has exited — the
// shutdown signal spec.md §9's open question on "ThreadExit from pid
// 1's last thread" asks implementations to surface, since no one ever
// reaps init.
func (k *Kernel) Shutdown() <-chan struct{} { return k.shutdown }

// Metrics exposes the kernel's Prometheus collectors for a host
// program to serve or scrape directly.
func (k *Kernel) Metrics() *metrics.Set { return k.metrics }

func (k *Kernel) closeShutdown() {
	k.shutdownOnce.Do(func() { close(k.shutdown) })
}

// spawnMain starts cur's goroutine trampoline: run task to completion,
// then Exit with its return value. Mirrors kernel_proc.c's
// start_main_thread / the CreateThread trampoline kernel_threads.c
// describes identically for non-main threads.
func (k *Kernel) spawnMain(cur *Current, task Task, argl int, args []byte) {
	kcore.Spawn(func() {
		retval := task(cur, argl, args)
		cur.Exit(retval)
	})
}

// wrapTask adapts a facade Task into the process package's Task, which
// exists only so process.Table.Exec can tell "has a main thread" from
// "doesn't" — the returned value is never invoked. The goroutine
// trampoline that actually runs user code is spawnMain, driven by the
// *Current handle process.Task has no way to express.
func wrapTask(task Task) process.Task {
	if task == nil {
		return nil
	}
	return func(int, []byte) int { return 0 }
}

func parseSeverity(level string) logger.Severity {
	switch strings.ToUpper(level) {
	case "TRACE":
		return logger.TRACE
	case "DEBUG":
		return logger.DEBUG
	case "INFO":
		return logger.INFO
	case "WARNING", "WARN":
		return logger.WARNING
	case "ERROR":
		return logger.ERROR
	case "OFF":
		return logger.OFF
	default:
		return logger.INFO
	}
}
