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
	"strings"
	"sync"
	"time"
)

const (
	MaxLogRecords = 1000
)

// LogRecord is a single line of the pool's event log.
type LogRecord struct {
	Id   int64     `json:"id,string"`
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Log is a bounded, in-memory record of what the coordinator has done.
// It implements io.Writer so that it can sit underneath a log.Logger,
// and it supports long polling through Watch.  The most recent
// MaxLogRecords lines are retained.
type Log struct {
	records []LogRecord
	total   int // lines ever written; next slot is total % len(records)
	id      int64
	mx      sync.Mutex
	cv      *sync.Cond
}

// Write implements io.Writer.  Each newline separated line becomes its
// own record.
func (l *Log) Write(b []byte) (int, error) {
	str := strings.Trim(string(b), "\n")
	now := time.Now()

	l.mx.Lock()
	for _, line := range strings.Split(str, "\n") {
		l.id++
		l.records[l.total%len(l.records)] = LogRecord{
			Id:   l.id,
			Time: now,
			Text: line,
		}
		l.total++
	}
	l.cv.Broadcast()
	l.mx.Unlock()
	return len(b), nil
}

// Clear discards all records.  The id moves forward, so that any etag
// handed out earlier is invalidated.
func (l *Log) Clear() {
	l.mx.Lock()
	l.total = 0
	l.id = time.Now().UnixNano()
	l.cv.Broadcast()
	l.mx.Unlock()
}

// GetRecords returns the retained records, oldest first, together with
// the current id.  If last matches the current id then nothing has
// changed, and nil is returned with the same id.  The id is suitable for
// use as an Etag; it is not unique across Log instances.
func (l *Log) GetRecords(last int64) ([]LogRecord, int64) {
	l.mx.Lock()
	defer l.mx.Unlock()

	if l.id == last {
		return nil, last
	}
	n := l.total
	if n > len(l.records) {
		n = len(l.records)
	}
	recs := make([]LogRecord, 0, n)
	for i := l.total - n; i < l.total; i++ {
		recs = append(recs, l.records[i%len(l.records)])
	}
	return recs, l.id
}

// Watch waits until the log id differs from last, or until expire has
// elapsed, and returns the id at that point.  An expire of zero polls.
func (l *Log) Watch(last int64, expire time.Duration) int64 {
	expired := expire <= 0
	var timer *time.Timer

	if !expired {
		timer = time.AfterFunc(expire, func() {
			l.mx.Lock()
			expired = true
			l.cv.Broadcast()
			l.mx.Unlock()
		})
		defer timer.Stop()
	}

	l.mx.Lock()
	defer l.mx.Unlock()
	for l.id == last && !expired {
		l.cv.Wait()
	}
	return l.id
}

// NewLog returns a Log holding up to max records.  If max is not
// positive, MaxLogRecords is used.
func NewLog(max int) *Log {
	if max <= 0 {
		max = MaxLogRecords
	}
	l := &Log{
		records: make([]LogRecord, max),
		id:      time.Now().UnixNano(),
	}
	l.cv = sync.NewCond(&l.mx)
	return l
}
