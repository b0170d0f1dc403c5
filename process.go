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
	"bytes"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// ProcessSpawner is the Spawner for real operating system processes.  Each
// worker is started from the same command line, with the shared listener
// as descriptor 3 and the write end of a readiness pipe as descriptor 4.
// Anything a worker writes to stdout or stderr is copied, a line at a
// time, into the spawner's logger.
type ProcessSpawner struct {
	path     string
	args     []string
	env      []string
	dir      string
	listener *os.File
	logger   *log.Logger
}

// SetLogger sets where worker output goes.  The pool's logger is the
// usual choice.
func (ps *ProcessSpawner) SetLogger(l *log.Logger) {
	ps.logger = l
}

// SetEnv sets the environment for workers.  The default is the
// environment of the coordinator.
func (ps *ProcessSpawner) SetEnv(env []string) {
	ps.env = append([]string{}, env...)
}

// SetDir sets the working directory for workers.
func (ps *ProcessSpawner) SetDir(dir string) {
	ps.dir = dir
}

// Spawn starts a new worker process.
func (ps *ProcessSpawner) Spawn() (Child, error) {
	rd, wr, e := os.Pipe()
	if e != nil {
		return nil, e
	}
	defer wr.Close()

	p := &Process{
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
	stdout := &lineWriter{logger: ps.logger, stream: "stdout"}
	stderr := &lineWriter{logger: ps.logger, stream: "stderr"}

	env := ps.env
	if env == nil {
		env = os.Environ()
	}
	env = append(append(make([]string, 0, len(env)+2), env...),
		fmt.Sprintf("%s=%d", ListenFdEnv, 3),
		fmt.Sprintf("%s=%d", ReadyFdEnv, 4))

	p.cmd = &exec.Cmd{
		Path:       ps.path,
		Args:       ps.args,
		Env:        env,
		Dir:        ps.dir,
		Stdout:     stdout,
		Stderr:     stderr,
		ExtraFiles: []*os.File{ps.listener, wr},
	}
	if e := p.cmd.Start(); e != nil {
		rd.Close()
		return nil, e
	}
	p.pid = p.cmd.Process.Pid
	stdout.setPid(p.pid)
	stderr.setPid(p.pid)

	go p.watchReady(rd)
	go p.doWait()
	return p, nil
}

// Process is a worker running as an operating system process.  It
// implements Child.
type Process struct {
	cmd   *exec.Cmd
	pid   int
	exit  Exit
	ready chan struct{}
	done  chan struct{}
}

func (p *Process) Pid() int {
	return p.pid
}

func (p *Process) Ready() <-chan struct{} {
	return p.ready
}

func (p *Process) watchReady(rd *os.File) {
	defer rd.Close()
	b := make([]byte, 16)
	if n, _ := rd.Read(b); n > 0 {
		close(p.ready)
	}
}

func (p *Process) doWait() {
	e := p.cmd.Wait()
	x := Exit{Pid: p.pid, Code: -1, Time: time.Now()}
	if st := p.cmd.ProcessState; st != nil {
		x.Code = st.ExitCode()
		if ws, ok := st.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			x.Signal = unix.SignalName(ws.Signal())
			if x.Signal == "" {
				x.Signal = ws.Signal().String()
			}
		}
	} else if e != nil {
		x.Signal = e.Error()
	}
	p.exit = x
	close(p.done)
}

func (p *Process) Wait() Exit {
	<-p.done
	return p.exit
}

func (p *Process) signal(sig os.Signal) error {
	e := p.cmd.Process.Signal(sig)
	if errors.Is(e, os.ErrProcessDone) {
		return nil
	}
	return e
}

func (p *Process) Terminate() error {
	return p.signal(unix.SIGTERM)
}

func (p *Process) Kill() error {
	return p.signal(unix.SIGKILL)
}

// lineWriter breaks worker output into lines, and logs each line with
// the worker's pid and stream.  Partial lines are held until the newline
// arrives.
type lineWriter struct {
	logger *log.Logger
	stream string
	pid    int
	buf    bytes.Buffer
	mx     sync.Mutex
}

func (lw *lineWriter) setPid(pid int) {
	lw.mx.Lock()
	lw.pid = pid
	lw.mx.Unlock()
}

func (lw *lineWriter) Write(b []byte) (int, error) {
	lw.mx.Lock()
	defer lw.mx.Unlock()
	lw.buf.Write(b)
	for {
		i := bytes.IndexByte(lw.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(lw.buf.Next(i + 1))
		if lw.logger != nil {
			lw.logger.Printf("[%d] %s> %s", lw.pid, lw.stream,
				line[:len(line)-1])
		}
	}
	return len(b), nil
}

// NewProcessSpawner returns a spawner that runs argv, sharing listener
// with every worker.  argv[0] is the path of the program.
func NewProcessSpawner(argv []string, listener *os.File) *ProcessSpawner {
	ps := &ProcessSpawner{
		args:     append([]string{}, argv...),
		listener: listener,
		logger:   log.New(os.Stderr, "", log.LstdFlags),
	}
	if len(argv) != 0 {
		ps.path = argv[0]
		if lp, e := exec.LookPath(argv[0]); e == nil {
			ps.path = lp
		}
	}
	return ps
}
