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

// Command tinyosctl boots a tinyos.Kernel in-process and runs one of
// spec.md §8's end-to-end scenarios as init, demonstrating the five
// components wired together end to end. Grounded on gcsfuse's cmd/
// root.go (cobra command tree + viper-bound config file flag) and on
// jacobsa-fuse's samples/mount_memfs/mount.go (small main that wires
// one subsystem and blocks on a completion signal).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyos-go/tinyos"
	"github.com/tinyos-go/tinyos/internal/config"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tinyosctl",
		Short: "Run end-to-end scenarios against an in-process tinyOS kernel",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file (optional)")

	root.AddCommand(
		scenarioCommand("pipe-echo", "Parent pipes 13 bytes to a child, which sums and exits with the total", runPipeEcho),
		scenarioCommand("bounded-blocking", "Demonstrate a writer blocking on a full pipe and a reader unblocking it", runBoundedBlocking),
		scenarioCommand("socket-ping", "Two threads exchange PING/PONG over a listen/accept/connect socket pair", runSocketPing),
		scenarioCommand("thread-race", "Main thread joins one child thread and races a detach against another", runThreadRace),
		scenarioCommand("orphan-reparent", "A grandchild process is reparented to init when its parent exits first", runOrphanReparent),
	)
	return root
}

func scenarioCommand(use, short string, run func(self *tinyos.Current) int) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			k := tinyos.New(cfg)
			if _, err := k.Boot(func(self *tinyos.Current, argl int, args []byte) int {
				return run(self)
			}, 0, nil); err != nil {
				return err
			}
			<-k.Shutdown()
			return nil
		},
	}
}
