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
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"
)

// Pool is the coordinator.  It keeps a fixed number of workers alive,
// replacing each one that exits with exactly one new worker.
//
// Membership is only ever changed by the goroutine executing Run: the
// initial fan-out adds members, and each exit event removes one member and
// adds its replacement.  Events are handled one at a time, in the order
// that they arrive.  The lock exists so that observers (for example the
// REST handler) can take consistent snapshots while Run is busy.
type Pool struct {
	name    string
	size    int
	spawner Spawner
	members map[int]*Worker
	exits   chan exitEvent
	quit    chan struct{}
	running bool

	logger *log.Logger // operator destination, in addition to log
	log    *Log
	mlog   *MultiLogger

	spawnRetries int
	spawnDelay   time.Duration
	rateLimit    int
	ratePeriod   time.Duration
	stopTime     time.Duration
	notify       func(Exit)
	respawns     int
	startTimes   []time.Time

	spawned    int64
	exited     int64
	serial     int64
	listSerial int64
	createTime time.Time
	updateTime time.Time
	mx         sync.Mutex
	cv         *sync.Cond
}

type exitEvent struct {
	w *Worker
	e Exit
}

// PoolInfo is a consistent snapshot of the pool's top level state.
type PoolInfo struct {
	Name       string
	Size       int
	Live       int
	Running    bool
	Spawned    int64
	Exited     int64
	Serial     int64
	CreateTime time.Time
	UpdateTime time.Time
}

func (p *Pool) lock() {
	p.mx.Lock()
}

func (p *Pool) unlock() {
	p.mx.Unlock()
}

// bumpSerial increments the serial, wakes watchers, and returns the new
// value.  Call with lock held.
func (p *Pool) bumpSerial() int64 {
	p.updateTime = time.Now()
	p.serial++
	p.cv.Broadcast()
	return p.serial
}

// watchSerial waits for *src to differ from old, or for expire to
// elapse, and returns the value at that time.  An expire of zero polls.
func (p *Pool) watchSerial(old int64, src *int64, expire time.Duration) int64 {
	expired := expire <= 0
	if !expired {
		timer := time.AfterFunc(expire, func() {
			p.lock()
			expired = true
			p.cv.Broadcast()
			p.unlock()
		})
		defer timer.Stop()
	}

	p.lock()
	defer p.unlock()
	for *src == old && !expired {
		p.cv.Wait()
	}
	return *src
}

// WatchSerial waits for any change to the pool.
func (p *Pool) WatchSerial(old int64, expire time.Duration) int64 {
	return p.watchSerial(old, &p.serial, expire)
}

// WatchWorkers waits for a change in pool membership.
func (p *Pool) WatchWorkers(old int64, expire time.Duration) int64 {
	return p.watchSerial(old, &p.listSerial, expire)
}

// Serial returns the pool serial number, which changes whenever any
// worker changes state.
func (p *Pool) Serial() int64 {
	p.lock()
	defer p.unlock()
	return p.serial
}

// Name returns the name the pool was created with.
func (p *Pool) Name() string {
	return p.name
}

// Size returns the target number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Live returns the number of current members.  Outside of the short
// window between an exit and its replacement, this equals Size while
// the pool is running.
func (p *Pool) Live() int {
	p.lock()
	defer p.unlock()
	return len(p.members)
}

// GetInfo returns a snapshot of the pool.
func (p *Pool) GetInfo() *PoolInfo {
	p.lock()
	defer p.unlock()
	return &PoolInfo{
		Name:       p.name,
		Size:       p.size,
		Live:       len(p.members),
		Running:    p.running,
		Spawned:    p.spawned,
		Exited:     p.exited,
		Serial:     p.serial,
		CreateTime: p.createTime,
		UpdateTime: p.updateTime,
	}
}

// Workers returns the current members, oldest first, together with the
// membership serial.
func (p *Pool) Workers() ([]*Worker, int64) {
	p.lock()
	rv := make([]*Worker, 0, len(p.members))
	for _, w := range p.members {
		rv = append(rv, w)
	}
	sn := p.listSerial
	p.unlock()
	sort.Slice(rv, func(i, j int) bool {
		if rv[i].started.Equal(rv[j].started) {
			return rv[i].pid < rv[j].pid
		}
		return rv[i].started.Before(rv[j].started)
	})
	return rv, sn
}

// Worker looks up a current member by pid.
func (p *Pool) Worker(pid int) (*Worker, error) {
	p.lock()
	defer p.unlock()
	if w, ok := p.members[pid]; ok {
		return w, nil
	}
	return nil, ErrNoWorker
}

// Kill asks a member to terminate.  It returns as soon as the request has
// been delivered; the resulting exit is handled (and the worker replaced)
// in the same way as any other exit.
func (p *Pool) Kill(pid int) error {
	p.lock()
	running := p.running
	p.unlock()
	if !running {
		return ErrNotRunning
	}
	w, e := p.Worker(pid)
	if e != nil {
		return e
	}
	p.logf("Terminating worker %d", pid)
	return w.child.Terminate()
}

// GetLog returns the pool's event log.  See Log.GetRecords.
func (p *Pool) GetLog(last int64) ([]LogRecord, int64) {
	return p.log.GetRecords(last)
}

// WatchLog waits for the event log to change.  See Log.Watch.
func (p *Pool) WatchLog(last int64, expire time.Duration) int64 {
	return p.log.Watch(last, expire)
}

func (p *Pool) logf(format string, v ...interface{}) {
	p.mlog.Logger().Printf(format, v...)
}

// Logger returns a logger that feeds both the event log and the
// operator's logger.  Spawners should send worker output here.
func (p *Pool) Logger() *log.Logger {
	return p.mlog.Logger()
}

// SetProperty changes a tunable.  Only PropLogger and PropNotify may be
// changed while the pool is running.
func (p *Pool) SetProperty(n PropertyName, v interface{}) error {
	p.lock()
	defer p.unlock()

	if p.running {
		switch n {
		case PropLogger, PropNotify:
		case PropSpawnRetries, PropSpawnDelay, PropRateLimit,
			PropRatePeriod, PropStopTime:
			return ErrPropReadOnly
		}
	}
	switch n {
	case PropLogger:
		if v, ok := v.(*log.Logger); ok {
			if p.logger != nil {
				p.mlog.DelLogger(p.logger)
			}
			p.logger = v
			p.mlog.AddLogger(v)
			return nil
		}
	case PropSpawnRetries:
		if v, ok := v.(int); ok && v >= 0 {
			p.spawnRetries = v
			return nil
		}
	case PropSpawnDelay:
		if v, ok := v.(time.Duration); ok {
			p.spawnDelay = v
			return nil
		}
	case PropRateLimit:
		if v, ok := v.(int); ok {
			p.rateLimit = v
			p.respawns = 0
			p.startTimes = nil
			if v > 0 {
				p.startTimes = make([]time.Time, v)
			}
			return nil
		}
	case PropRatePeriod:
		if v, ok := v.(time.Duration); ok {
			p.respawns = 0
			p.ratePeriod = v
			return nil
		}
	case PropStopTime:
		if v, ok := v.(time.Duration); ok {
			p.stopTime = v
			return nil
		}
	case PropNotify:
		if v, ok := v.(func(Exit)); ok {
			p.notify = v
			return nil
		}
	default:
		return ErrBadPropName
	}
	return ErrBadPropType
}

// Property returns the value of a tunable.
func (p *Pool) Property(n PropertyName) (interface{}, error) {
	p.lock()
	defer p.unlock()

	switch n {
	case PropLogger:
		return p.logger, nil
	case PropSpawnRetries:
		return p.spawnRetries, nil
	case PropSpawnDelay:
		return p.spawnDelay, nil
	case PropRateLimit:
		return p.rateLimit, nil
	case PropRatePeriod:
		return p.ratePeriod, nil
	case PropStopTime:
		return p.stopTime, nil
	case PropNotify:
		return p.notify, nil
	}
	return nil, ErrBadPropName
}

// Run starts the pool and supervises it until ctx is canceled, at which
// point all workers are terminated and Run returns nil.  If a worker
// cannot be spawned (after the configured retries) the pool is torn down
// and an error wrapping ErrSpawnFailed is returned.
func (p *Pool) Run(ctx context.Context) error {
	p.lock()
	if p.running {
		p.unlock()
		return ErrAlreadyRunning
	}
	if p.size < 1 {
		p.unlock()
		return ErrBadPoolSize
	}
	p.running = true
	p.quit = make(chan struct{})
	p.bumpSerial()
	p.unlock()

	p.logf("Master %d is running", os.Getpid())

	for i := 0; i < p.size; i++ {
		if e := p.spawn(ctx, false); e != nil {
			return p.stop(ctx, e)
		}
	}
	p.logf("Pool %s started %d workers", p.name, p.size)

	for {
		select {
		case <-ctx.Done():
			return p.stop(ctx, nil)
		case ev := <-p.exits:
			p.reap(ev)
			if ctx.Err() != nil {
				return p.stop(ctx, nil)
			}
			if e := p.spawn(ctx, true); e != nil {
				return p.stop(ctx, e)
			}
		}
	}
}

// stop tears the pool down and decides what Run returns.  Cancellation
// is a normal way to end, so a context error is not reported.
func (p *Pool) stop(ctx context.Context, err error) error {
	p.shutdown()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// spawn adds one worker.  Replacements are subject to the rate limit.
// Spawn failures are retried with a delay, and become fatal once the
// retries are used up.
func (p *Pool) spawn(ctx context.Context, replacement bool) error {
	p.lock()
	retries := p.spawnRetries
	delay := p.spawnDelay
	var wait time.Duration
	if replacement {
		wait = p.tooQuickly()
	}
	p.unlock()

	if wait > 0 {
		p.logf("Workers exiting too quickly, waiting %v", wait)
		if e := sleep(ctx, wait); e != nil {
			return e
		}
	}

	for attempt := 0; ; attempt++ {
		c, e := p.spawner.Spawn()
		if e == nil {
			p.add(c, replacement)
			return nil
		}
		p.logf("Failed to spawn worker: %v", e)
		if attempt >= retries {
			return fmt.Errorf("%w: %w", ErrSpawnFailed, e)
		}
		if e := sleep(ctx, delay); e != nil {
			return e
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// tooQuickly reports how long a replacement has to wait to stay within
// the rate limit.  More than rateLimit replacements inside ratePeriod is
// too quick; the next one waits until the oldest of them has aged out.
// Call with lock held.
func (p *Pool) tooQuickly() time.Duration {
	if p.rateLimit <= 0 || p.respawns < p.rateLimit {
		return 0
	}
	oldest := p.startTimes[p.respawns%p.rateLimit]
	if d := time.Until(oldest.Add(p.ratePeriod)); d > 0 {
		return d
	}
	return 0
}

func (p *Pool) add(c Child, replacement bool) {
	now := time.Now()
	w := &Worker{
		pool:    p,
		child:   c,
		pid:     c.Pid(),
		state:   WorkerStarting,
		started: now,
	}

	p.lock()
	if replacement && p.rateLimit > 0 {
		p.startTimes[p.respawns%p.rateLimit] = now
		p.respawns++
	}
	p.members[w.pid] = w
	p.spawned++
	p.listSerial = p.bumpSerial()
	quit := p.quit
	p.unlock()

	p.logf("Spawned worker %d", w.pid)
	go p.wait(w, quit)
}

// wait runs for the lifetime of a single worker, and posts its exit to
// the coordinator.
func (p *Pool) wait(w *Worker, quit chan struct{}) {
	done := make(chan struct{})
	go func() {
		select {
		case <-w.child.Ready():
			p.lock()
			if w.state == WorkerStarting {
				w.state = WorkerRunning
				w.ready = time.Now()
				p.bumpSerial()
			}
			p.unlock()
		case <-done:
		}
	}()

	e := w.child.Wait()
	close(done)
	if e.Pid == 0 {
		e.Pid = w.pid
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	select {
	case p.exits <- exitEvent{w: w, e: e}:
	case <-quit:
	}
}

// reap removes an exited worker from the pool.
func (p *Pool) reap(ev exitEvent) {
	w := ev.w
	p.lock()
	w.state = WorkerExited
	w.exit = ev.e
	delete(p.members, w.pid)
	p.exited++
	p.listSerial = p.bumpSerial()
	cb := p.notify
	p.unlock()

	p.logf("Worker %d died (%s)", w.pid, ev.e)
	if cb != nil {
		go cb(ev.e)
	}
}

// shutdown terminates every member and waits for them to exit.  Members
// that outlive the stop time are killed.  No replacements are made.
func (p *Pool) shutdown() {
	p.lock()
	stopTime := p.stopTime
	members := make([]*Worker, 0, len(p.members))
	for _, w := range p.members {
		members = append(members, w)
	}
	p.unlock()

	if len(members) != 0 {
		p.logf("Stopping %d workers", len(members))
	}
	for _, w := range members {
		if e := w.child.Terminate(); e != nil {
			p.logf("Failed to terminate worker %d: %v", w.pid, e)
		}
	}

	var expired <-chan time.Time
	if stopTime > 0 {
		timer := time.NewTimer(stopTime)
		defer timer.Stop()
		expired = timer.C
	}
	for p.Live() > 0 {
		select {
		case ev := <-p.exits:
			p.reap(ev)
		case <-expired:
			expired = nil
			p.logf("Graceful shutdown timed out")
			ws, _ := p.Workers()
			for _, w := range ws {
				if e := w.child.Kill(); e != nil {
					p.logf("Failed killing worker %d: %v", w.pid, e)
				}
			}
		}
	}

	p.lock()
	p.running = false
	close(p.quit)
	p.bumpSerial()
	p.unlock()
	p.logf("Pool %s shut down", p.name)
}

// NewPool returns a pool that will keep size workers, created by sp,
// running.  Nothing is spawned until Run is called.
func NewPool(name string, size int, sp Spawner) *Pool {
	if name == "" {
		name = "forkvisor"
	}
	// The serial starts at the current time in nsec, so that clients
	// holding an Etag from an earlier incarnation see a change.
	now := time.Now()
	p := &Pool{
		name:         name,
		size:         size,
		spawner:      sp,
		members:      make(map[int]*Worker),
		exits:        make(chan exitEvent),
		serial:       now.UnixNano(),
		createTime:   now,
		updateTime:   now,
		spawnRetries: 3,
		spawnDelay:   time.Second,
		ratePeriod:   time.Minute,
		stopTime:     time.Second * 10,
		log:          NewLog(MaxLogRecords),
		mlog:         NewMultiLogger(),
	}
	p.listSerial = p.serial
	p.cv = sync.NewCond(&p.mx)
	p.mlog.AddLogger(log.New(p.log, "", 0))
	p.logger = log.New(os.Stderr, "", log.LstdFlags)
	p.mlog.AddLogger(p.logger)
	return p
}
