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
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/gdamore/forkvisor/rest"
)

// TitleBar is the top line of every panel.
type TitleBar struct {
	once sync.Once
	views.SimpleStyledTextBar
}

func (tb *TitleBar) Init() {
	tb.once.Do(func() {
		normal := tcell.StyleDefault.
			Foreground(tcell.ColorBlack).
			Background(tcell.ColorSilver)
		alternate := tcell.StyleDefault.
			Foreground(tcell.ColorBlue).
			Background(tcell.ColorSilver)

		tb.SimpleStyledTextBar.Init()
		tb.SimpleStyledTextBar.SetStyle(normal)
		tb.RegisterLeftStyle('N', normal)
		tb.RegisterLeftStyle('A', alternate)
		tb.RegisterCenterStyle('N', normal)
		tb.RegisterRightStyle('N', normal)
	})
}

func NewTitleBar() *TitleBar {
	tb := &TitleBar{}
	tb.Init()
	return tb
}

// StatusBar changes color with the health of the pool, e.g. yellow
// while a vacancy is waiting for its replacement.
type StatusBar struct {
	once   sync.Once
	status string
	views.SimpleStyledTextBar
}

var (
	StatusBarStyleNormal = tcell.StyleDefault.
				Foreground(tcell.ColorBlack).
				Background(tcell.ColorSilver)
	StatusBarStyleGood = tcell.StyleDefault.
				Foreground(tcell.ColorWhite).
				Background(tcell.ColorGreen).
				Bold(true)
	StatusBarStyleWarn = tcell.StyleDefault.
				Foreground(tcell.ColorBlack).
				Background(tcell.ColorYellow)
	StatusBarStyleError = tcell.StyleDefault.
				Foreground(tcell.ColorWhite).
				Background(tcell.ColorMaroon).
				Bold(true)
)

func (sb *StatusBar) Init() {
	sb.once.Do(func() {
		sb.SimpleStyledTextBar.Init()
		sb.SetStyle(StatusBarStyleNormal)
	})
}

func (sb *StatusBar) SetStyle(style tcell.Style) {
	sb.SimpleStyledTextBar.SetStyle(style)
	sb.RegisterLeftStyle('N', style)
	sb.SetLeft(sb.status)
}

// Health selects the status bar color.
type Health int

const (
	HealthNormal Health = iota
	HealthGood
	HealthWarn
	HealthError
)

// poolHealth is good when every slot is filled, a warning while a
// replacement is pending, and an error when the pool is down or cannot
// be reached.
func poolHealth(pool *rest.PoolInfo, err error) Health {
	switch {
	case err != nil:
		return HealthError
	case pool == nil:
		return HealthNormal
	case !pool.Running:
		return HealthError
	case pool.Live != pool.Size:
		return HealthWarn
	}
	return HealthGood
}

func (sb *StatusBar) SetHealth(h Health) {
	switch h {
	case HealthGood:
		sb.SetStyle(StatusBarStyleGood)
	case HealthWarn:
		sb.SetStyle(StatusBarStyleWarn)
	case HealthError:
		sb.SetStyle(StatusBarStyleError)
	default:
		sb.SetStyle(StatusBarStyleNormal)
	}
}

func (sb *StatusBar) SetText(status string) {
	sb.status = status
	sb.SetLeft(status)
}

func NewStatusBar() *StatusBar {
	sb := &StatusBar{}
	sb.Init()
	return sb
}

// KeyBar shows the available keys.  Text in brackets is highlighted.
type KeyBar struct {
	once sync.Once
	views.SimpleStyledTextBar
}

func (k *KeyBar) Init() {
	k.once.Do(func() {
		normal := tcell.StyleDefault.
			Foreground(tcell.ColorBlack).
			Background(tcell.ColorSilver)
		alternate := tcell.StyleDefault.
			Foreground(tcell.ColorBlue).
			Background(tcell.ColorSilver).Bold(true)

		k.SimpleStyledTextBar.Init()
		k.SimpleStyledTextBar.SetStyle(normal)
		k.RegisterLeftStyle('N', normal)
		k.RegisterLeftStyle('A', alternate)
	})
}

// markup converts "[K] Kill" into the %A/%N style escapes understood by
// SimpleStyledTextBar, doubling any literal percent signs.
func markup(words []string) string {
	b := make([]rune, 0, 80)
	for i, w := range words {
		if i != 0 {
			b = append(b, ' ')
		}
		for _, r := range w {
			switch r {
			case '[':
				b = append(b, r, '%', 'A')
			case ']':
				b = append(b, '%', 'N', r)
			case '%':
				b = append(b, '%', '%')
			default:
				b = append(b, r)
			}
		}
	}
	return string(b)
}

func (k *KeyBar) SetKeys(words []string) {
	k.SetLeft(markup(words))
}

func NewKeyBar() *KeyBar {
	kb := &KeyBar{}
	kb.Init()
	return kb
}

// Panel lays out a title bar, a status bar, the content, and a key bar.
// The bars are created on the first Init, so every panel shows the
// server URL on the left of its title.
type Panel struct {
	tb   *TitleBar
	sb   *StatusBar
	kb   *KeyBar
	once sync.Once
	app  *App

	views.Panel
}

func (p *Panel) SetTitle(title string) {
	p.tb.SetCenter(title)
}

func (p *Panel) SetKeys(words []string) {
	p.kb.SetKeys(words)
}

// SetStatus sets the status line and its color together.
func (p *Panel) SetStatus(status string, h Health) {
	p.sb.SetText(status)
	p.sb.SetHealth(h)
}

func (p *Panel) App() *App {
	return p.app
}

func (p *Panel) Init(app *App) {
	p.once.Do(func() {
		p.app = app
		p.tb = NewTitleBar()
		p.tb.SetLeft(app.URL())
		p.tb.SetRight(app.GetAppName())
		p.sb = NewStatusBar()
		p.kb = NewKeyBar()

		p.Panel.SetTitle(p.tb)
		p.Panel.SetMenu(p.sb)
		p.Panel.SetStatus(p.kb)
	})
}
