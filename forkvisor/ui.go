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

package main

import (
	"github.com/gdamore/forkvisor/forkvisor/ui"
	"github.com/gdamore/forkvisor/rest"
)

func doUI(client *rest.Client, url string) error {
	return ui.NewApp(client, url).Run()
}

/*
   Our screen has the following appearance:

    http://127.0.0.1:8321                                      Forkvisor v1.0
    4/4 workers  12 spawned  8 exited
   ____________________________________________________________________________
   ...
      41220     running     0:12:04
      41221     running     0:12:04
      41307     running     0:00:03
      41308     starting    0:00:00
   ...
   ____________________________________________________________________________
   [Q] Quit [K] Kill [L] Log [H] Help
*/
