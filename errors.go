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
	"errors"
)

var (
	ErrBadPoolSize    = errors.New("Pool size must be positive")
	ErrAlreadyRunning = errors.New("Pool is already running")
	ErrSpawnFailed    = errors.New("Failed to spawn worker")
	ErrNoWorker       = errors.New("No such worker")
	ErrNotRunning     = errors.New("Pool is not running")
	ErrNoListener     = errors.New("No inherited listener")
	ErrBadPropType    = errors.New("Bad property type")
	ErrBadPropName    = errors.New("Bad property name")
	ErrPropReadOnly   = errors.New("Property not changeable")
)
