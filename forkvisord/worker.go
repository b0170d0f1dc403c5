// Copyright 2026 The Forkvisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gdamore/forkvisor"
	"github.com/gdamore/forkvisor/worker"
)

var workerCmd = &cobra.Command{
	Use:          "worker",
	Short:        "Serve on the listener inherited from forkvisord",
	Hidden:       true,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, e := loadConfig(v, cfgFile)
	if e != nil {
		return e
	}
	logger, e := newLogger(cfg.LogLevel, "worker")
	if e != nil {
		return e
	}
	ln, e := forkvisor.InheritedListener()
	if e != nil {
		return fmt.Errorf("worker must be started by forkvisord: %w", e)
	}

	s := worker.New(os.Getpid(), logger)
	s.SetStopTime(cfg.StopTime)
	s.SetReady(func() {
		if e := forkvisor.NotifyReady(); e != nil {
			logger.Warnf("Failed to report ready: %v", e)
		}
	})

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		s.Terminate()
	}()

	if e := s.Serve(ln); !errors.Is(e, worker.ErrTerminated) {
		return e
	}
	return nil
}
