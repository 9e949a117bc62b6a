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

// Package tinyos is the concurrency-and-IPC core of a small teaching
// kernel: processes, threads within a process, anonymous pipes and
// in-kernel stream sockets, built on one cooperative big lock.
//
// Internally it wires five leaf packages — internal/stream,
// internal/pipe, internal/socket, internal/thread and
// internal/process — behind a single Kernel and a per-thread Current
// handle that every syscall hangs off of. The layering and the
// single-mutex-plus-condition-variables discipline are grounded on
// github.com/jacobsa/fuse's connection/server split and on
// internal/kcore's translation of the scheduler primitives this
// design treats as external collaborators.
package tinyos
