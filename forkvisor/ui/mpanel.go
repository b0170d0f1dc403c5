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
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/gdamore/forkvisor/forkvisor/util"
	"github.com/gdamore/forkvisor/rest"
)

var (
	StyleNormal = tcell.StyleDefault.
			Foreground(tcell.ColorSilver).
			Background(tcell.ColorBlack)
	StyleGood = tcell.StyleDefault.
			Foreground(tcell.ColorGreen).
			Background(tcell.ColorBlack)
	StyleWarn = tcell.StyleDefault.
			Foreground(tcell.ColorYellow).
			Background(tcell.ColorBlack)
)

// MainPanel lists the workers of the pool, one per line, and lets the
// user pick one to kill.
type MainPanel struct {
	content *views.CellView
	items   []*rest.WorkerInfo
	lines   []string
	styles  []tcell.Style
	width   int
	cury    int
	status  string // last action, shown until the next one

	Panel
}

// mainModel provides the model for the CellView.
type mainModel struct {
	m *MainPanel
}

func (model *mainModel) GetBounds() (int, int) {
	return model.m.width, len(model.m.lines)
}

func (model *mainModel) MoveCursor(offx, offy int) {
	model.SetCursor(0, model.m.cury+offy)
}

func (model *mainModel) SetCursor(x, y int) {
	m := model.m
	if y >= len(m.lines) {
		y = len(m.lines) - 1
	}
	if y < 0 {
		y = 0
	}
	m.cury = y
}

func (model *mainModel) GetCursor() (int, int, bool, bool) {
	return 0, model.m.cury, true, false
}

func (model *mainModel) GetCell(x, y int) (rune, tcell.Style, []rune, int) {
	m := model.m
	if y < 0 || y >= len(m.lines) {
		return ' ', StyleNormal, nil, 1
	}
	style := m.styles[y]
	if y == m.cury {
		style = style.Reverse(true)
	}
	line := []rune(m.lines[y])
	if x < 0 || x >= len(line) {
		return ' ', style, nil, 1
	}
	return line[x], style, nil, 1
}

func (m *MainPanel) selected() *rest.WorkerInfo {
	if m.cury >= 0 && m.cury < len(m.items) {
		return m.items[m.cury]
	}
	return nil
}

func (m *MainPanel) killed(pid int, e error) {
	if e != nil {
		m.status = fmt.Sprintf("Failed to kill %d: %v", pid, e)
	} else {
		m.status = fmt.Sprintf("Killed worker %d", pid)
	}
}

func (m *MainPanel) HandleEvent(ev tcell.Event) bool {
	if ev, ok := ev.(*tcell.EventKey); ok {
		switch ev.Key() {
		case tcell.KeyF1:
			m.App().ShowHelp()
			return true
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'Q', 'q':
				m.App().Quit()
				return true
			case 'H', 'h':
				m.App().ShowHelp()
				return true
			case 'L', 'l':
				m.App().ShowLog()
				return true
			case 'K', 'k':
				if w := m.selected(); w != nil {
					m.App().KillWorker(w.Pid)
					return true
				}
			}
		}
	}
	return m.Panel.HandleEvent(ev)
}

func (m *MainPanel) Draw() {
	m.update()
	m.Panel.Draw()
}

// update refreshes the content from the App.  Call from the application
// goroutine only.
func (m *MainPanel) update() {
	pool, items, e := m.App().GetPool()
	m.items = items
	m.lines = m.lines[:0]
	m.styles = m.styles[:0]
	m.width = 0

	now := time.Now()
	for _, w := range items {
		style := StyleGood
		if w.State != "running" {
			style = StyleWarn
		}
		line := fmt.Sprintf("%10d  %-10s %10s", w.Pid, w.State,
			util.FormatDuration(util.Uptime(w, now)))
		if len(line) > m.width {
			m.width = len(line)
		}
		m.lines = append(m.lines, line)
		m.styles = append(m.styles, style)
	}
	if m.cury >= len(m.lines) {
		m.cury = len(m.lines) - 1
	}
	if m.cury < 0 {
		m.cury = 0
	}

	keys := []string{"[Q] Quit", "[H] Help", "[L] Log"}
	if len(items) != 0 {
		keys = append(keys, "[K] Kill")
	}
	m.SetKeys(keys)

	var status string
	switch {
	case e != nil:
		status = fmt.Sprintf("Cannot reach server: %v", e)
	case pool == nil:
		status = "Loading ..."
	default:
		status = fmt.Sprintf("%d/%d workers  %d spawned  %d exited",
			pool.Live, pool.Size, pool.Spawned, pool.Exited)
		if m.status != "" {
			status += "  " + m.status
		}
	}
	m.SetStatus(status, poolHealth(pool, e))
}

func NewMainPanel(app *App) *MainPanel {
	m := &MainPanel{}

	m.Panel.Init(app)
	m.content = views.NewCellView()
	m.content.SetModel(&mainModel{m})
	m.content.SetStyle(StyleNormal)
	m.SetContent(m.content)

	m.SetTitle("Workers")
	m.SetKeys([]string{"[Q] Quit"})
	return m
}
