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

// Package metrics exposes the kernel's live counters as Prometheus
// collectors, grounded on github.com/prometheus/client_golang, a direct
// dependency of gcsfuse (the exporter side of its opencensus/otel metrics
// stack). A teaching kernel has no GCS backend to instrument, but it has
// the same shape of problem: live resource counts and throughput that a
// host operator wants to scrape.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Set is the kernel's metric collectors, registered against a private
// registry so embedding this module never collides with a host
// program's default registry.
type Set struct {
	Registry *prometheus.Registry

	ProcessesAlive prometheus.Gauge
	ThreadsAlive   prometheus.Gauge
	SocketsByKind  *prometheus.GaugeVec
	PipeBytes      *prometheus.CounterVec
	SyscallTotal   *prometheus.CounterVec
}

// NewSet builds and registers a fresh metric set.
func NewSet() *Set {
	reg := prometheus.NewRegistry()

	s := &Set{
		Registry: reg,
		ProcessesAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tinyos",
			Name:      "processes_alive",
			Help:      "Number of processes currently in the ALIVE state.",
		}),
		ThreadsAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tinyos",
			Name:      "threads_alive",
			Help:      "Number of PTCBs across all processes with exited == false.",
		}),
		SocketsByKind: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tinyos",
			Name:      "sockets",
			Help:      "Number of open sockets by kind (unbound, listener, peer).",
		}, []string{"kind"}),
		PipeBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tinyos",
			Name:      "pipe_bytes_total",
			Help:      "Bytes transferred through pipes, by direction (read, write).",
		}, []string{"direction"}),
		SyscallTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tinyos",
			Name:      "syscalls_total",
			Help:      "Syscalls dispatched by the kernel facade, by name and outcome.",
		}, []string{"syscall", "outcome"}),
	}

	reg.MustRegister(s.ProcessesAlive, s.ThreadsAlive, s.SocketsByKind, s.PipeBytes, s.SyscallTotal)
	return s
}

// Outcome labels used with SyscallTotal.
const (
	OutcomeOK  = "ok"
	OutcomeErr = "error"
)

// RecordSyscall increments the named syscall's counter for the outcome.
func (s *Set) RecordSyscall(name string, ok bool) {
	outcome := OutcomeErr
	if ok {
		outcome = OutcomeOK
	}
	s.SyscallTotal.WithLabelValues(name, outcome).Inc()
}
