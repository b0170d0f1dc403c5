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
	"time"
)

// WorkerState is the coordinator's view of a worker's lifecycle.
//
//	Starting ---> Running ---> Exited
//	    |                        ^
//	    +------------------------+
//
// A worker that dies before it begins accepting goes straight from
// Starting to Exited.
type WorkerState int

const (
	WorkerStarting WorkerState = iota
	WorkerRunning
	WorkerExited
)

func (s WorkerState) String() string {
	switch s {
	case WorkerStarting:
		return "starting"
	case WorkerRunning:
		return "running"
	case WorkerExited:
		return "exited"
	}
	return "unknown"
}

// Worker is the coordinator's handle for a single worker process.  Handles
// are created and mutated only by the Pool; applications may read them.
type Worker struct {
	pool    *Pool
	child   Child
	pid     int
	state   WorkerState
	started time.Time
	ready   time.Time
	exit    Exit
}

// Pid returns the process id of the worker.  This never changes, and a
// replacement worker always has a different pid than the one it replaces.
func (w *Worker) Pid() int {
	return w.pid
}

// State returns the current lifecycle state.
func (w *Worker) State() WorkerState {
	w.pool.lock()
	defer w.pool.unlock()
	return w.state
}

// Started returns when the worker was spawned.
func (w *Worker) Started() time.Time {
	return w.started
}

// Ready returns when the worker started accepting connections, or the
// zero time if it has not (yet).
func (w *Worker) Ready() time.Time {
	w.pool.lock()
	defer w.pool.unlock()
	return w.ready
}

// Exit returns the exit record, and true, once the worker has exited.
func (w *Worker) Exit() (Exit, bool) {
	w.pool.lock()
	defer w.pool.unlock()
	return w.exit, w.state == WorkerExited
}
