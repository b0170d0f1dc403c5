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

// Command forkvisor is a client for the forkvisord admin API.
//
// The flags are
//
//	-a <address>	- admin API address, default is http://127.0.0.1:8321
//	-u <user:pass>	- user name & password for basic auth
//
// Subcommands are
//
//	pool         - show pool summary
//	workers      - list worker pids
//	status       - show every worker with state and uptime
//	log          - print the pool event log
//	kill <pid>   - terminate a worker (it will be replaced)
//	ui           - interactive monitor (the default)
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gdamore/forkvisor/forkvisor/util"
	"github.com/gdamore/forkvisor/rest"
)

var (
	addr   = "http://127.0.0.1:8321"
	auth   = ""
	client *rest.Client

	rootCmd = &cobra.Command{
		Use:               "forkvisor",
		Short:             "Observe and control a forkvisord pool",
		SilenceUsage:      true,
		PersistentPreRunE: connect,
		RunE:              runUI,
	}
)

func connect(cmd *cobra.Command, args []string) error {
	client = rest.NewClient(nil, addr)
	if auth != "" {
		a := strings.SplitN(auth, ":", 2)
		if len(a) != 2 {
			return errors.New("Bad user:pass supplied")
		}
		client.SetAuth(a[0], a[1])
	}
	return nil
}

func getWorkers() ([]*rest.WorkerInfo, error) {
	pids, e := client.Workers()
	if e != nil {
		return nil, e
	}
	infos := make([]*rest.WorkerInfo, 0, len(pids))
	for _, pid := range pids {
		// A worker may have exited between the two calls.
		if info, e := client.Worker(pid); e == nil {
			infos = append(infos, info)
		}
	}
	util.SortWorkers(infos)
	return infos, nil
}

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Show pool summary",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, e := client.Pool()
		if e != nil {
			return e
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Name:      %s\n", p.Name)
		fmt.Fprintf(out, "Running:   %v\n", p.Running)
		fmt.Fprintf(out, "Workers:   %d/%d\n", p.Live, p.Size)
		fmt.Fprintf(out, "Spawned:   %d\n", p.Spawned)
		fmt.Fprintf(out, "Exited:    %d\n", p.Exited)
		fmt.Fprintf(out, "Uptime:    %s\n",
			util.FormatDuration(time.Since(p.CreateTime)))
		return nil
	},
}

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "List worker pids",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pids, e := client.Workers()
		if e != nil {
			return e
		}
		for _, pid := range pids {
			fmt.Fprintln(cmd.OutOrStdout(), pid)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show worker states",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, e := getWorkers()
		if e != nil {
			return e
		}
		now := time.Now()
		for _, w := range infos {
			fmt.Fprintf(cmd.OutOrStdout(), "%10d %10s %10s\n", w.Pid,
				w.State, util.FormatDuration(util.Uptime(w, now)))
		}
		return nil
	},
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Print the pool event log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		l, e := client.GetLog()
		if e != nil {
			return e
		}
		for _, r := range l.Records {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n",
				r.Time.Format(time.StampMilli), r.Text)
		}
		return nil
	},
}

var killCmd = &cobra.Command{
	Use:   "kill <pid>",
	Short: "Terminate a worker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, e := strconv.Atoi(args[0])
		if e != nil {
			return fmt.Errorf("bad pid %q", args[0])
		}
		return client.KillWorker(pid)
	},
}

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Interactive monitor",
	Args:  cobra.NoArgs,
	RunE:  runUI,
}

func runUI(cmd *cobra.Command, args []string) error {
	return doUI(client, addr)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&addr, "address", "a", addr, "forkvisord admin address")
	rootCmd.PersistentFlags().StringVarP(&auth, "user", "u", auth, "user:pass authentication")
	rootCmd.AddCommand(poolCmd, workersCmd, statusCmd, logCmd, killCmd, uiCmd)
}

func main() {
	if e := rootCmd.Execute(); e != nil {
		os.Exit(1)
	}
}
