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
	"context"
	"net"
	"os"
	"strconv"
)

// Environment variables used to hand the shared socket, and the readiness
// pipe, from the coordinator to its workers.  The descriptors always land
// at 3 and 4, since they are the first two ExtraFiles, but the numbers are
// passed explicitly so that a worker can tell whether it was started by a
// coordinator at all.
const (
	ListenFdEnv = "FORKVISOR_LISTEN_FD"
	ReadyFdEnv  = "FORKVISOR_READY_FD"
)

// Listen binds the pool's listening socket.  This is the only bind that
// takes place for the life of the pool; workers inherit the socket.
func Listen(ctx context.Context, addr string) (*net.TCPListener, error) {
	var lc net.ListenConfig
	l, e := lc.Listen(ctx, "tcp", addr)
	if e != nil {
		return nil, e
	}
	return l.(*net.TCPListener), nil
}

// ListenerFile returns a duplicate descriptor for the listener, suitable
// for passing to child processes.
func ListenerFile(l *net.TCPListener) (*os.File, error) {
	return l.File()
}

func inheritedFile(env string, name string) (*os.File, error) {
	s := os.Getenv(env)
	if s == "" {
		return nil, ErrNoListener
	}
	fd, e := strconv.Atoi(s)
	if e != nil || fd < 3 {
		return nil, ErrNoListener
	}
	return os.NewFile(uintptr(fd), name), nil
}

// InheritedListener returns the shared listening socket that a worker
// was started with.  It returns ErrNoListener if the process was not
// started by a ProcessSpawner.
func InheritedListener() (net.Listener, error) {
	f, e := inheritedFile(ListenFdEnv, "forkvisor-listener")
	if e != nil {
		return nil, e
	}
	// FileListener dups the descriptor, so we close our copy.
	defer f.Close()
	return net.FileListener(f)
}

// NotifyReady tells the coordinator that this worker is accepting.  It
// is a no-op if there is no readiness pipe, and should be called once.
func NotifyReady() error {
	f, e := inheritedFile(ReadyFdEnv, "forkvisor-ready")
	if e != nil {
		return nil
	}
	defer f.Close()
	_, e = f.Write([]byte("ready\n"))
	return e
}
