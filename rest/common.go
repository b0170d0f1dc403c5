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

// Package rest exposes a forkvisor Pool over HTTP, and provides a client
// for it.  The API is read mostly; the only action is killing a worker,
// which the pool then replaces.  Resources that change carry an Etag, and
// a client may long poll for a change by sending the Etag back in
// If-None-Match together with PollTimeHeader.
package rest

import (
	"time"

	"github.com/gdamore/forkvisor"
)

const (
	mimeJson = "application/json; charset=UTF-8"

	// PollTimeHeader carries the number of seconds that a request with a
	// matching If-None-Match may wait for the resource to change.
	PollTimeHeader = "X-Forkvisor-Poll-Time"

	// MaxPollTime is the upper bound the server applies to poll times.
	MaxPollTime = 300
)

var ok struct{}

type PoolInfo struct {
	Name       string    `json:"name"`
	Size       int       `json:"size"`
	Live       int       `json:"live"`
	Running    bool      `json:"running"`
	Spawned    int64     `json:"spawned"`
	Exited     int64     `json:"exited"`
	CreateTime time.Time `json:"created"`
	UpdateTime time.Time `json:"updated"`
	etag       string
}

type WorkerInfo struct {
	Pid     int       `json:"pid"`
	State   string    `json:"state"`
	Started time.Time `json:"started"`
	Ready   time.Time `json:"ready"`
}

type LogInfo struct {
	Records []forkvisor.LogRecord
	etag    string
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}
