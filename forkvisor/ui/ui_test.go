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

package ui

import (
	"errors"
	"testing"

	"github.com/gdamore/tcell/v2"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/gdamore/forkvisor/rest"
)

func TestPoolHealth(t *testing.T) {
	Convey("Pool health follows the pool state", t, func() {
		So(poolHealth(nil, nil), ShouldEqual, HealthNormal)
		So(poolHealth(nil, errors.New("refused")), ShouldEqual, HealthError)
		So(poolHealth(&rest.PoolInfo{Size: 4, Live: 4, Running: true}, nil),
			ShouldEqual, HealthGood)
		So(poolHealth(&rest.PoolInfo{Size: 4, Live: 3, Running: true}, nil),
			ShouldEqual, HealthWarn)
		So(poolHealth(&rest.PoolInfo{Size: 4, Live: 0}, nil),
			ShouldEqual, HealthError)
	})
}

func TestMarkup(t *testing.T) {
	Convey("Key names are highlighted", t, func() {
		So(markup([]string{"[Q] Quit", "[K] Kill"}), ShouldEqual,
			"[%AQ%N] Quit [%AK%N] Kill")
		So(markup([]string{"100%"}), ShouldEqual, "100%%")
		So(markup(nil), ShouldEqual, "")
	})
}

func TestMainModel(t *testing.T) {
	Convey("Given a worker list", t, func() {
		m := &MainPanel{
			items:  []*rest.WorkerInfo{{Pid: 10}, {Pid: 11}, {Pid: 12}},
			lines:  []string{"10", "11", "12"},
			styles: []tcell.Style{StyleGood, StyleGood, StyleWarn},
			width:  2,
		}
		model := &mainModel{m}

		Convey("The cursor stays on a row", func() {
			model.MoveCursor(0, 5)
			_, y, _, _ := model.GetCursor()
			So(y, ShouldEqual, 2)
			So(m.selected().Pid, ShouldEqual, 12)
			model.MoveCursor(0, -9)
			_, y, _, _ = model.GetCursor()
			So(y, ShouldEqual, 0)
			So(m.selected().Pid, ShouldEqual, 10)
		})

		Convey("The selected row is reversed", func() {
			model.SetCursor(0, 1)
			r, style, _, _ := model.GetCell(1, 1)
			So(r, ShouldEqual, '1')
			So(style, ShouldResemble, StyleGood.Reverse(true))
			_, style, _, _ = model.GetCell(0, 2)
			So(style, ShouldResemble, StyleWarn)
			r, _, _, _ = model.GetCell(7, 0)
			So(r, ShouldEqual, ' ')
		})

		Convey("Kill results are reported", func() {
			m.killed(11, nil)
			So(m.status, ShouldEqual, "Killed worker 11")
			m.killed(12, errors.New("gone"))
			So(m.status, ShouldEqual, "Failed to kill 12: gone")
		})
	})
}
