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

// Package forkvisor provides a pre-forking process supervisor.
//
// A coordinator process binds a single listening socket, and then spawns
// a fixed number of worker processes that all accept connections from that
// one socket.  The kernel distributes incoming connections across the
// workers; the coordinator plays no part in that.  When any worker exits,
// for any reason at all, the coordinator spawns exactly one replacement
// so that the pool stays at its configured size.
//
// The coordinator side lives in this package (Pool, ProcessSpawner, and the
// listener helpers).  The worker side, which serves HTTP on the inherited
// socket, is in the worker subpackage.  A REST interface for observing
// the pool is in the rest subpackage.
//
// Every worker exit is treated the same way: clean exits, crashes, and
// external kills all lead to a replacement.  There is no crash loop cutoff
// by default.  A rate limit may be configured (see PropRateLimit), but it
// only delays a replacement, it never gives up on one.
//
package forkvisor
