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
	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"
)

type HelpPanel struct {
	text *views.TextArea

	Panel
}

var helpText = []string{
	"Forkvisor keeps a fixed number of worker processes serving on",
	"one shared port.  Whenever a worker exits, for any reason, the",
	"coordinator starts a new one in its place.",
	"",
	"Main screen:",
	"  Up/Down   select a worker",
	"  K         kill the selected worker (it will be replaced)",
	"  L         show the pool event log",
	"  H, F1     this help",
	"  Q         quit",
	"",
	"Anywhere:",
	"  ESC       back to the main screen",
	"  Ctrl-L    redraw",
	"  Ctrl-C    quit",
}

func NewHelpPanel(app *App) *HelpPanel {
	h := &HelpPanel{}

	h.Panel.Init(app)
	h.SetTitle("Help")
	h.SetKeys([]string{"[ESC] Main"})
	h.SetStatus("", HealthNormal)

	h.text = views.NewTextArea()
	h.text.EnableCursor(false)
	h.text.SetStyle(StyleNormal)
	h.text.SetLines(helpText)
	h.SetContent(h.text)
	return h
}

func (h *HelpPanel) HandleEvent(ev tcell.Event) bool {
	if ev, ok := ev.(*tcell.EventKey); ok {
		switch ev.Key() {
		case tcell.KeyEsc:
			h.App().ShowMain()
			return true
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'Q', 'q':
				h.App().ShowMain()
				return true
			}
		}
	}
	return h.Panel.HandleEvent(ev)
}
