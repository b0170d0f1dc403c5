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

// Package ui implements the interactive forkvisor monitor.
package ui

import (
	"time"

	"golang.org/x/net/context"

	"github.com/gdamore/tcell/v2"
	"github.com/gdamore/tcell/v2/views"

	"github.com/gdamore/forkvisor/forkvisor/util"
	"github.com/gdamore/forkvisor/rest"
)

type App struct {
	app     *views.Application
	view    views.View
	panel   views.Widget
	main    *MainPanel
	log     *LogPanel
	help    *HelpPanel
	client  *rest.Client
	url     string
	pool    *rest.PoolInfo
	items   []*rest.WorkerInfo
	err     error
	logInfo *rest.LogInfo
	logErr  error

	views.WidgetWatchers
}

func (a *App) show(w views.Widget) {
	if w != a.panel {
		a.panel.SetView(nil)
		a.panel = w
	}
	a.panel.SetView(a.view)
	a.panel.Resize()
	a.app.Refresh()
}

func (a *App) ShowMain() {
	a.show(a.main)
}

func (a *App) ShowLog() {
	a.show(a.log)
}

func (a *App) ShowHelp() {
	a.show(a.help)
}

func (a *App) KillWorker(pid int) {
	go func() {
		e := a.client.KillWorker(pid)
		a.app.PostFunc(func() {
			a.main.killed(pid, e)
			a.app.Update()
		})
	}()
}

func (a *App) Quit() {
	a.app.Quit()
}

func (a *App) HandleEvent(ev tcell.Event) bool {
	if ev, ok := ev.(*tcell.EventKey); ok {
		switch ev.Key() {
		case tcell.KeyCtrlC:
			a.Quit()
			return true
		case tcell.KeyCtrlL:
			a.app.Refresh()
			return true
		}
	}
	if a.panel != nil {
		return a.panel.HandleEvent(ev)
	}
	return false
}

func (a *App) Draw() {
	if a.panel != nil {
		a.panel.Draw()
	}
}

func (a *App) Resize() {
	if a.panel != nil {
		a.panel.Resize()
	}
}

func (a *App) SetView(view views.View) {
	a.view = view
	if a.panel != nil {
		a.panel.SetView(view)
	}
}

func (a *App) Size() (int, int) {
	if a.panel != nil {
		return a.panel.Size()
	}
	return 0, 0
}

func (a *App) URL() string {
	return a.url
}

func (a *App) GetAppName() string {
	return "Forkvisor v1.0"
}

// GetPool returns the latest pool summary and worker list.  Only call
// from the application goroutine.
func (a *App) GetPool() (*rest.PoolInfo, []*rest.WorkerInfo, error) {
	return a.pool, a.items, a.err
}

// GetLog returns the latest event log.  Only call from the application
// goroutine.
func (a *App) GetLog() (*rest.LogInfo, error) {
	return a.logInfo, a.logErr
}

func (a *App) getItems() ([]*rest.WorkerInfo, error) {
	pids, e := a.client.Workers()
	if e != nil {
		return nil, e
	}
	items := make([]*rest.WorkerInfo, 0, len(pids))
	for _, pid := range pids {
		if item, e := a.client.Worker(pid); e == nil {
			items = append(items, item)
		}
	}
	util.SortWorkers(items)
	return items, nil
}

// refresh keeps the pool view current, long polling for changes.  The
// first Watch, with no prior state, returns at once.
func (a *App) refresh() {
	var pool *rest.PoolInfo
	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		next, e := a.client.Watch(ctx, pool)
		cancel()
		if e != nil {
			a.app.PostFunc(func() {
				a.err = e
				a.app.Update()
			})
			time.Sleep(2 * time.Second)
			continue
		}
		pool = next
		items, e := a.getItems()
		a.app.PostFunc(func() {
			a.pool = next
			a.items = items
			a.err = e
			a.app.Update()
		})
	}
}

func (a *App) refreshLog() {
	var info *rest.LogInfo
	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		next, e := a.client.WatchLog(ctx, info)
		cancel()
		if e != nil {
			a.app.PostFunc(func() {
				a.logErr = e
				a.app.Update()
			})
			time.Sleep(2 * time.Second)
			continue
		}
		info = next
		a.app.PostFunc(func() {
			a.logInfo = next
			a.logErr = nil
			a.app.Update()
		})
	}
}

func (a *App) Run() error {
	a.app.SetRootWidget(a)
	a.ShowMain()
	go a.refresh()
	go a.refreshLog()
	go func() {
		// uptimes move even when the pool does not
		for {
			time.Sleep(time.Second)
			a.app.Update()
		}
	}()
	return a.app.Run()
}

func NewApp(client *rest.Client, url string) *App {
	app := &App{}
	app.app = &views.Application{}
	app.client = client
	app.url = url
	app.main = NewMainPanel(app)
	app.log = NewLogPanel(app)
	app.help = NewHelpPanel(app)
	app.panel = app.main
	return app
}
