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

package forkvisor

import (
	"fmt"
	"time"
)

// Exit describes how a worker process terminated.
type Exit struct {
	Pid    int       `json:"pid"`
	Code   int       `json:"code"`   // -1 if terminated by a signal
	Signal string    `json:"signal"` // e.g. "SIGTERM", empty if not signaled
	Time   time.Time `json:"time"`
}

func (e Exit) String() string {
	if e.Signal != "" {
		return fmt.Sprintf("signal=%s", e.Signal)
	}
	return fmt.Sprintf("code=%d", e.Code)
}

// Child is a running worker, as seen by the coordinator.  The Pool is the
// only consumer of this interface, and it calls Wait exactly once, from
// a dedicated goroutine.
type Child interface {
	// Pid returns the operating system process id.
	Pid() int

	// Ready returns a channel that is closed once the worker has
	// started accepting connections.  If the worker dies first, the
	// channel may never be closed.
	Ready() <-chan struct{}

	// Wait blocks until the worker has exited, and reports how.
	Wait() Exit

	// Terminate asks the worker to exit, normally with SIGTERM.
	Terminate() error

	// Kill forcibly terminates the worker.
	Kill() error
}

// Spawner is the process creation primitive.  Each call to Spawn must
// produce a new, distinct worker that shares the pool's listening socket.
// Spawn is only ever called from the pool's coordinator goroutine, so
// implementations need not worry about locking.
type Spawner interface {
	Spawn() (Child, error)
}
