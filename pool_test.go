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
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type testLog struct {
	t *testing.T
}

func (tl *testLog) Write(p []byte) (n int, err error) {
	s := string(p)
	s = strings.Trim(s, "\n")
	tl.t.Log(s)
	return len(p), nil
}

func testLogger(t *testing.T) *log.Logger {
	return log.New(&testLog{t: t}, "", log.Ltime|log.Lmicroseconds)
}

// testChild is a fake worker.  It becomes ready at once and exits when
// asked to, or when the test calls exit.
type testChild struct {
	pid      int
	ready    chan struct{}
	done     chan struct{}
	once     sync.Once
	stubborn bool // ignores Terminate
	result   Exit
}

func (c *testChild) Pid() int {
	return c.pid
}

func (c *testChild) Ready() <-chan struct{} {
	return c.ready
}

func (c *testChild) Wait() Exit {
	<-c.done
	return c.result
}

func (c *testChild) exit(e Exit) {
	c.once.Do(func() {
		e.Pid = c.pid
		c.result = e
		close(c.done)
	})
}

func (c *testChild) Terminate() error {
	if !c.stubborn {
		c.exit(Exit{Code: -1, Signal: "SIGTERM"})
	}
	return nil
}

func (c *testChild) Kill() error {
	c.exit(Exit{Code: -1, Signal: "SIGKILL"})
	return nil
}

type testSpawner struct {
	nextPid  int
	fail     int // number of Spawn calls to fail
	stubborn bool
	children []*testChild
	spawnc   chan *testChild
	sync.Mutex
}

func (s *testSpawner) Spawn() (Child, error) {
	s.Lock()
	defer s.Unlock()
	if s.fail > 0 {
		s.fail--
		return nil, errors.New("injected failure")
	}
	s.nextPid++
	c := &testChild{
		pid:      s.nextPid,
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		stubborn: s.stubborn,
	}
	close(c.ready)
	s.children = append(s.children, c)
	if s.spawnc != nil {
		s.spawnc <- c
	}
	return c, nil
}

func (s *testSpawner) count() int {
	s.Lock()
	defer s.Unlock()
	return len(s.children)
}

func (s *testSpawner) child(i int) *testChild {
	s.Lock()
	defer s.Unlock()
	return s.children[i]
}

func newTestSpawner() *testSpawner {
	return &testSpawner{nextPid: 1000, spawnc: make(chan *testChild, 100)}
}

// waitSpawned collects n spawn notifications, failing if they do not
// arrive in time.
func waitSpawned(s *testSpawner, n int) []*testChild {
	var rv []*testChild
	timer := time.After(5 * time.Second)
	for len(rv) < n {
		select {
		case c := <-s.spawnc:
			rv = append(rv, c)
		case <-timer:
			return rv
		}
	}
	return rv
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func newTestPool(t *testing.T, size int, sp Spawner) *Pool {
	p := NewPool("test", size, sp)
	p.SetProperty(PropLogger, testLogger(t))
	p.SetProperty(PropSpawnDelay, time.Millisecond)
	p.SetProperty(PropStopTime, time.Second)
	return p
}

// runner runs a pool in the background.
type runner struct {
	cancel context.CancelFunc
	errc   chan error
	once   sync.Once
	err    error
}

// wait returns what Run returned, waiting for it if necessary.
func (r *runner) wait() error {
	r.once.Do(func() {
		select {
		case r.err = <-r.errc:
		case <-time.After(5 * time.Second):
			r.err = errors.New("timeout waiting for Run")
		}
	})
	return r.err
}

func (r *runner) stop() error {
	r.cancel()
	return r.wait()
}

func startPool(p *Pool) *runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &runner{cancel: cancel, errc: make(chan error, 1)}
	go func() {
		r.errc <- p.Run(ctx)
	}()
	return r
}

func TestPool(t *testing.T) {
	Convey("Given a pool of four workers", t, func() {
		sp := newTestSpawner()
		p := newTestPool(t, 4, sp)
		So(p.Name(), ShouldEqual, "test")
		So(p.Size(), ShouldEqual, 4)
		So(p.Live(), ShouldEqual, 0)

		r := startPool(p)
		initial := waitSpawned(sp, 4)
		So(len(initial), ShouldEqual, 4)
		So(waitFor(func() bool { return p.Live() == 4 }), ShouldBeTrue)

		Reset(func() {
			r.stop()
		})

		Convey("All workers have distinct pids and become running", func() {
			So(waitFor(func() bool {
				ws, _ := p.Workers()
				for _, w := range ws {
					if w.State() != WorkerRunning {
						return false
					}
				}
				return len(ws) == 4
			}), ShouldBeTrue)
			seen := map[int]bool{}
			ws, _ := p.Workers()
			for _, w := range ws {
				So(seen[w.Pid()], ShouldBeFalse)
				seen[w.Pid()] = true
				So(w.Ready().IsZero(), ShouldBeFalse)
			}
			info := p.GetInfo()
			So(info.Running, ShouldBeTrue)
			So(info.Live, ShouldEqual, 4)
			So(info.Spawned, ShouldEqual, 4)
			So(info.Exited, ShouldEqual, 0)
		})

		Convey("An exited worker is replaced exactly once", func() {
			victim := initial[1]
			victim.exit(Exit{Code: 2})
			repl := waitSpawned(sp, 1)
			So(len(repl), ShouldEqual, 1)
			So(repl[0].pid, ShouldNotEqual, victim.pid)
			So(waitFor(func() bool { return p.Live() == 4 }), ShouldBeTrue)

			_, e := p.Worker(victim.pid)
			So(e, ShouldEqual, ErrNoWorker)
			_, e = p.Worker(repl[0].pid)
			So(e, ShouldBeNil)

			time.Sleep(50 * time.Millisecond)
			So(sp.count(), ShouldEqual, 5)
			So(p.GetInfo().Exited, ShouldEqual, 1)
		})

		Convey("Each of several exits gets its own replacement", func() {
			for _, c := range initial {
				c.exit(Exit{Code: 0})
			}
			repl := waitSpawned(sp, 4)
			So(len(repl), ShouldEqual, 4)
			So(waitFor(func() bool { return p.Live() == 4 }), ShouldBeTrue)
			time.Sleep(50 * time.Millisecond)
			So(sp.count(), ShouldEqual, 8)
		})

		Convey("Kill terminates a worker which is then replaced", func() {
			So(p.Kill(initial[0].pid), ShouldBeNil)
			repl := waitSpawned(sp, 1)
			So(len(repl), ShouldEqual, 1)
			So(p.Kill(initial[0].pid), ShouldEqual, ErrNoWorker)
		})

		Convey("Kill of an unknown pid fails", func() {
			So(p.Kill(1), ShouldEqual, ErrNoWorker)
		})

		Convey("Running twice fails", func() {
			So(p.Run(context.Background()), ShouldEqual, ErrAlreadyRunning)
		})

		Convey("Tunables are read only while running", func() {
			So(p.SetProperty(PropStopTime, time.Second), ShouldEqual, ErrPropReadOnly)
			So(p.SetProperty(PropNotify, func(Exit) {}), ShouldBeNil)
		})

		Convey("Notify sees exits", func() {
			exits := make(chan Exit, 1)
			So(p.SetProperty(PropNotify, func(e Exit) { exits <- e }), ShouldBeNil)
			initial[2].exit(Exit{Code: -1, Signal: "SIGSEGV"})
			select {
			case e := <-exits:
				So(e.Pid, ShouldEqual, initial[2].pid)
				So(e.Signal, ShouldEqual, "SIGSEGV")
				So(e.String(), ShouldEqual, "signal=SIGSEGV")
			case <-time.After(5 * time.Second):
				So("timeout", ShouldBeEmpty)
			}
		})

		Convey("Cancel stops all workers and returns nil", func() {
			So(r.stop(), ShouldBeNil)
			So(p.Live(), ShouldEqual, 0)
			So(p.GetInfo().Running, ShouldBeFalse)
			for _, c := range initial {
				So(c.result.Signal, ShouldEqual, "SIGTERM")
			}
			// No replacements during shutdown.
			So(sp.count(), ShouldEqual, 4)
		})

		Convey("The log records what happened", func() {
			recs, id := p.GetLog(0)
			So(id, ShouldNotEqual, 0)
			text := []string{}
			for _, r := range recs {
				text = append(text, r.Text)
			}
			all := strings.Join(text, "\n")
			So(all, ShouldContainSubstring, "is running")
			So(all, ShouldContainSubstring, "started 4 workers")
		})
	})
}

func TestPoolStubbornShutdown(t *testing.T) {
	Convey("Workers that ignore SIGTERM are killed", t, func() {
		sp := newTestSpawner()
		sp.stubborn = true
		p := NewPool("", 2, sp)
		p.SetProperty(PropLogger, testLogger(t))
		p.SetProperty(PropStopTime, 50*time.Millisecond)
		So(p.Name(), ShouldEqual, "forkvisor")

		r := startPool(p)
		So(len(waitSpawned(sp, 2)), ShouldEqual, 2)
		So(r.stop(), ShouldBeNil)
		So(sp.child(0).result.Signal, ShouldEqual, "SIGKILL")
		So(sp.child(1).result.Signal, ShouldEqual, "SIGKILL")
	})
}

func TestPoolSpawnFailure(t *testing.T) {
	Convey("Given a spawner that fails", t, func() {
		sp := newTestSpawner()
		p := newTestPool(t, 2, sp)
		So(p.SetProperty(PropSpawnRetries, 2), ShouldBeNil)

		Convey("A transient failure is retried", func() {
			sp.fail = 2
			r := startPool(p)
			So(len(waitSpawned(sp, 2)), ShouldEqual, 2)
			So(r.stop(), ShouldBeNil)
		})

		Convey("A persistent failure stops the pool", func() {
			sp.fail = 10
			e := p.Run(context.Background())
			So(errors.Is(e, ErrSpawnFailed), ShouldBeTrue)
			So(e.Error(), ShouldContainSubstring, "injected failure")
			So(p.Live(), ShouldEqual, 0)
			So(p.GetInfo().Running, ShouldBeFalse)
		})

		Convey("A failure replacing a worker stops the pool", func() {
			r := startPool(p)
			defer r.stop()
			initial := waitSpawned(sp, 2)
			So(len(initial), ShouldEqual, 2)
			sp.Lock()
			sp.fail = 10
			sp.Unlock()
			initial[0].exit(Exit{Code: 1})
			So(errors.Is(r.wait(), ErrSpawnFailed), ShouldBeTrue)
			So(initial[1].result.Signal, ShouldEqual, "SIGTERM")
		})
	})
}

func TestPoolRateLimit(t *testing.T) {
	Convey("Replacements beyond the rate limit are delayed", t, func() {
		sp := newTestSpawner()
		p := newTestPool(t, 1, sp)
		So(p.SetProperty(PropRateLimit, 1), ShouldBeNil)
		So(p.SetProperty(PropRatePeriod, 200*time.Millisecond), ShouldBeNil)

		r := startPool(p)
		defer r.stop()
		first := waitSpawned(sp, 1)
		So(len(first), ShouldEqual, 1)

		first[0].exit(Exit{Code: 1})
		second := waitSpawned(sp, 1)
		So(len(second), ShouldEqual, 1)

		start := time.Now()
		second[0].exit(Exit{Code: 1})
		third := waitSpawned(sp, 1)
		So(len(third), ShouldEqual, 1)
		So(time.Since(start), ShouldBeGreaterThanOrEqualTo, 100*time.Millisecond)
	})
}

func TestPoolProperties(t *testing.T) {
	Convey("Pool properties", t, func() {
		p := NewPool("props", 1, newTestSpawner())

		Convey("Defaults", func() {
			v, e := p.Property(PropSpawnRetries)
			So(e, ShouldBeNil)
			So(v, ShouldEqual, 3)
			v, e = p.Property(PropStopTime)
			So(e, ShouldBeNil)
			So(v, ShouldEqual, 10*time.Second)
			v, e = p.Property(PropRateLimit)
			So(e, ShouldBeNil)
			So(v, ShouldEqual, 0)
		})

		Convey("Bad names and types", func() {
			So(p.SetProperty("nope", 1), ShouldEqual, ErrBadPropName)
			_, e := p.Property("nope")
			So(e, ShouldEqual, ErrBadPropName)
			So(p.SetProperty(PropSpawnRetries, "three"), ShouldEqual, ErrBadPropType)
			So(p.SetProperty(PropSpawnRetries, -1), ShouldEqual, ErrBadPropType)
			So(p.SetProperty(PropLogger, "stderr"), ShouldEqual, ErrBadPropType)
		})

		Convey("Kill needs a running pool", func() {
			So(p.Kill(1), ShouldEqual, ErrNotRunning)
		})

		Convey("Bad sizes", func() {
			So(NewPool("", 0, newTestSpawner()).Run(context.Background()),
				ShouldEqual, ErrBadPoolSize)
		})
	})
}
