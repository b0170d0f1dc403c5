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
	"log"
	"strings"
	"sync"
)

// MultiLogger fans a single log.Logger out to several destinations.
// The pool uses it to send every event both to its in-memory Log (served
// over REST) and to the operator's terminal.  Each destination keeps its
// own prefix and flags.
type MultiLogger struct {
	front *log.Logger
	dests []*log.Logger
	mx    sync.Mutex
}

// Write implements io.Writer for the front logger.  Input is expected
// to be whole lines of text, which is what log.Logger delivers.
func (ml *MultiLogger) Write(b []byte) (int, error) {
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	ml.mx.Lock()
	for _, dest := range ml.dests {
		for _, line := range lines {
			dest.Print(line)
		}
	}
	ml.mx.Unlock()
	return len(b), nil
}

// AddLogger registers a destination.  Adding the same logger twice has
// no effect.
func (ml *MultiLogger) AddLogger(l *log.Logger) {
	if l == nil {
		return
	}
	ml.mx.Lock()
	defer ml.mx.Unlock()
	for _, x := range ml.dests {
		if x == l {
			return
		}
	}
	ml.dests = append(ml.dests, l)
}

// DelLogger removes a destination.
func (ml *MultiLogger) DelLogger(l *log.Logger) {
	ml.mx.Lock()
	defer ml.mx.Unlock()
	for i, x := range ml.dests {
		if x == l {
			ml.dests = append(ml.dests[:i], ml.dests[i+1:]...)
			return
		}
	}
}

// Logger returns the logger that feeds every destination.
func (ml *MultiLogger) Logger() *log.Logger {
	return ml.front
}

// NewMultiLogger returns a MultiLogger with no destinations.
func NewMultiLogger() *MultiLogger {
	ml := &MultiLogger{}
	ml.front = log.New(ml, "", 0)
	return ml
}
