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

// Package worker implements the serving side of a forkvisor pool.  A
// worker accepts HTTP connections from the listening socket it inherited
// from the coordinator, and may end its own process on request.  From the
// coordinator's point of view a worker that terminates itself is no
// different from one that crashed; either way it gets replaced.
package worker

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ErrTerminated is returned by Serve after the worker was asked to
// terminate, and has finished doing so.
var ErrTerminated = errors.New("Worker terminated")

// Server serves HTTP on a shared listener.
type Server struct {
	pid      int
	handler  http.Handler
	logger   *log.Logger
	stopTime time.Duration
	ready    func()
	quit     chan struct{}
	once     sync.Once
}

// Pid returns the process id this server reports in responses.
func (s *Server) Pid() int {
	return s.pid
}

// SetHandler replaces the default routes.
func (s *Server) SetHandler(h http.Handler) {
	s.handler = h
}

// SetReady registers a function that is called once the server is
// accepting connections.
func (s *Server) SetReady(fn func()) {
	s.ready = fn
}

// SetStopTime bounds how long termination waits for connections that
// are still in use.  Zero means wait indefinitely.
func (s *Server) SetStopTime(d time.Duration) {
	s.stopTime = d
}

// Terminate requests that the worker end.  It does not block, and may be
// called any number of times, from any goroutine, including from inside
// a handler.  Responses that have already been written are delivered
// before Serve returns.
func (s *Server) Terminate() {
	s.once.Do(func() {
		close(s.quit)
	})
}

// Serve accepts connections on ln until Terminate is called, or until
// accepting fails.  After termination it returns ErrTerminated.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()

	port := 0
	if a, ok := ln.Addr().(*net.TCPAddr); ok {
		port = a.Port
	}
	s.logger.Infof("Worker %d started, listening on port %d", s.pid, port)
	if s.ready != nil {
		s.ready()
	}

	select {
	case e := <-errc:
		s.logger.Errorf("Worker %d stopped accepting: %v", s.pid, e)
		return e
	case <-s.quit:
	}

	ctx := context.Background()
	if s.stopTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.stopTime)
		defer cancel()
	}
	if e := srv.Shutdown(ctx); e != nil {
		s.logger.Warnf("Worker %d forcing close: %v", s.pid, e)
		srv.Close()
	}
	<-errc
	s.logger.Infof("Worker %d terminated", s.pid)
	return ErrTerminated
}

// New returns a Server serving the default routes.  A nil logger logs
// to stderr.
func New(pid int, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "worker",
		})
	}
	s := &Server{
		pid:      pid,
		logger:   logger,
		stopTime: 5 * time.Second,
		quit:     make(chan struct{}),
	}
	s.handler = NewHandler(s, logger)
	return s
}
