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

package rest

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"

	"github.com/gdamore/forkvisor"
)

type testChild struct {
	pid  int
	done chan struct{}
	once sync.Once
}

func (c *testChild) Pid() int {
	return c.pid
}

func (c *testChild) Ready() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (c *testChild) Wait() forkvisor.Exit {
	<-c.done
	return forkvisor.Exit{Pid: c.pid, Code: -1, Signal: "SIGTERM"}
}

func (c *testChild) Terminate() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *testChild) Kill() error {
	return c.Terminate()
}

type testSpawner struct {
	pid int
	sync.Mutex
}

func (s *testSpawner) Spawn() (forkvisor.Child, error) {
	s.Lock()
	defer s.Unlock()
	s.pid++
	return &testChild{pid: s.pid, done: make(chan struct{})}, nil
}

type testLog struct {
	t *testing.T
}

func (tl *testLog) Write(b []byte) (int, error) {
	tl.t.Log(strings.TrimRight(string(b), "\n"))
	return len(b), nil
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestRest(t *testing.T) {
	Convey("Given a running pool behind the REST handler", t, func() {
		p := forkvisor.NewPool("rest", 3, &testSpawner{pid: 500})
		p.SetProperty(forkvisor.PropLogger, log.New(&testLog{t: t}, "", 0))
		ctx, cancel := context.WithCancel(context.Background())
		errc := make(chan error, 1)
		go func() {
			errc <- p.Run(ctx)
		}()

		h := NewHandler(p)
		srv := httptest.NewServer(h)
		c := NewClient(nil, srv.URL+"/")

		Reset(func() {
			srv.Close()
			cancel()
			<-errc
		})

		So(eventually(func() bool {
			ws, _ := p.Workers()
			if len(ws) != 3 {
				return false
			}
			for _, w := range ws {
				if w.State() != forkvisor.WorkerRunning {
					return false
				}
			}
			return true
		}), ShouldBeTrue)

		Convey("The pool summary is served", func() {
			info, e := c.Pool()
			So(e, ShouldBeNil)
			So(info.Name, ShouldEqual, "rest")
			So(info.Size, ShouldEqual, 3)
			So(info.Live, ShouldEqual, 3)
			So(info.Running, ShouldBeTrue)
			So(info.Spawned, ShouldEqual, 3)
			So(info.etag, ShouldNotBeEmpty)
		})

		Convey("Workers are listed oldest first", func() {
			pids, e := c.Workers()
			So(e, ShouldBeNil)
			So(pids, ShouldResemble, []int{501, 502, 503})

			w, e := c.Worker(502)
			So(e, ShouldBeNil)
			So(w.Pid, ShouldEqual, 502)
			So(w.State, ShouldEqual, "running")
			So(w.Started.IsZero(), ShouldBeFalse)
		})

		Convey("Unknown workers are not found", func() {
			_, e := c.Worker(1)
			So(e, ShouldNotBeNil)
			var re *Error
			So(errors.As(e, &re), ShouldBeTrue)
			So(re.Code, ShouldEqual, http.StatusNotFound)

			e = c.KillWorker(1)
			So(errors.As(e, &re), ShouldBeTrue)
			So(re.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Killing a worker gets it replaced", func() {
			before, e := c.Pool()
			So(e, ShouldBeNil)
			So(c.KillWorker(501), ShouldBeNil)

			after, e := c.Watch(context.Background(), before)
			So(e, ShouldBeNil)
			So(after, ShouldNotEqual, before)

			So(eventually(func() bool {
				pids, e := c.Workers()
				return e == nil && len(pids) == 3 && pids[0] == 502
			}), ShouldBeTrue)
			pids, _ := c.Workers()
			So(pids, ShouldContain, 504)
		})

		Convey("Conditional requests see no change", func() {
			info, e := c.Pool()
			So(e, ShouldBeNil)

			req, _ := http.NewRequest("GET", srv.URL+"/pool", nil)
			req.Header.Set("If-None-Match", info.etag)
			res, e := http.DefaultClient.Do(req)
			So(e, ShouldBeNil)
			res.Body.Close()
			So(res.StatusCode, ShouldEqual, http.StatusNotModified)
			So(res.Header.Get("Etag"), ShouldEqual, info.etag)
		})

		Convey("A long poll wakes on change", func() {
			info, e := c.Pool()
			So(e, ShouldBeNil)
			go func() {
				time.Sleep(20 * time.Millisecond)
				p.Kill(503)
			}()
			start := time.Now()
			next, e := c.Watch(context.Background(), info)
			So(e, ShouldBeNil)
			So(next, ShouldNotEqual, info)
			So(time.Since(start), ShouldBeLessThan, 10*time.Second)
		})

		Convey("The event log is served", func() {
			l, e := c.GetLog()
			So(e, ShouldBeNil)
			var text []string
			for _, r := range l.Records {
				text = append(text, r.Text)
			}
			So(text, ShouldContain, "Spawned worker 501")

			same, e := c.pollLog(context.Background(), 0, l)
			So(e, ShouldBeNil)
			So(same, ShouldEqual, l)
		})

		Convey("Wrong methods are refused", func() {
			res, e := http.Post(srv.URL+"/pool", "text/plain", nil)
			So(e, ShouldBeNil)
			res.Body.Close()
			So(res.StatusCode, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("With authentication", func() {
			hash, e := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
			So(e, ShouldBeNil)
			So(h.SetAuth("admin", hash), ShouldBeNil)

			Convey("Anonymous requests are refused", func() {
				_, e := c.Pool()
				var re *Error
				So(errors.As(e, &re), ShouldBeTrue)
				So(re.Code, ShouldEqual, http.StatusUnauthorized)
			})
			Convey("Bad passwords are refused", func() {
				c.SetAuth("admin", "guess")
				_, e := c.Pool()
				So(e, ShouldNotBeNil)
				So(c.KillWorker(501), ShouldNotBeNil)
			})
			Convey("The right password is accepted", func() {
				c.SetAuth("admin", "secret")
				info, e := c.Pool()
				So(e, ShouldBeNil)
				So(info.Name, ShouldEqual, "rest")
			})
			Convey("Bad hashes are rejected", func() {
				So(h.SetAuth("admin", []byte("plaintext")), ShouldNotBeNil)
			})
		})
	})
}
