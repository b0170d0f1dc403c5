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

// Package util is used for internal implementation bits in the CLI/UI.
package util

import (
	"fmt"
	"sort"
	"time"

	"github.com/gdamore/forkvisor/rest"
)

func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int((d % time.Minute) / time.Second)
	min := int((d % time.Hour) / time.Minute)
	hour := int(d / time.Hour)

	return fmt.Sprintf("%d:%02d:%02d", hour, min, sec)
}

// Uptime is how long a worker has been accepting, or if it has not yet
// started to, how long since it was spawned.
func Uptime(w *rest.WorkerInfo, now time.Time) time.Duration {
	if !w.Ready.IsZero() {
		return now.Sub(w.Ready)
	}
	return now.Sub(w.Started)
}

func stateRank(s string) int {
	switch s {
	case "starting":
		return 0
	case "running":
		return 1
	}
	return 2
}

// SortWorkers puts workers that are still starting first, as those are
// the interesting ones, and then orders by age, oldest first.
func SortWorkers(items []*rest.WorkerInfo) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if ra, rb := stateRank(a.State), stateRank(b.State); ra != rb {
			return ra < rb
		}
		if !a.Started.Equal(b.Started) {
			return a.Started.Before(b.Started)
		}
		return a.Pid < b.Pid
	})
}
