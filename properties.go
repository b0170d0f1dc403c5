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

// Property names.  Internal names all start with an underscore.  As with
// most of the pool, there is no provision for discovery; consumers must
// know the name and the type of the value.
type PropertyName string

const (
	PropLogger       PropertyName = "_Logger"       // *log.Logger
	PropSpawnRetries              = "_SpawnRetries" // int, retries before fatal
	PropSpawnDelay                = "_SpawnDelay"   // time.Duration between retries
	PropRateLimit                 = "_RateLimit"    // int, max spawns per period
	PropRatePeriod                = "_RatePeriod"   // time.Duration
	PropStopTime                  = "_StopTime"     // time.Duration, shutdown grace
	PropNotify                    = "_Notify"       // func(Exit), exit callback
)
