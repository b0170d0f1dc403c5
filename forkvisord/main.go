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

// Command forkvisord runs a pre-forked pool of HTTP workers.
//
// The coordinator binds the listening port once, then starts one worker
// per CPU (or as configured).  Every worker accepts from that same socket.
// Whenever a worker exits, for whatever reason, a new one takes its place.
//
// Flags may also be set with FORKVISOR_* environment variables (for
// example FORKVISOR_WORKERS=4), or in a config file given with --config.
// The admin REST API, which the forkvisor command talks to, is served on
// --admin; an empty address disables it.
package main

import (
	"context"
	"errors"
	stdlog "log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gdamore/forkvisor"
	"github.com/gdamore/forkvisor/rest"
)

var (
	cfgFile string
	v       = newViper()

	rootCmd = &cobra.Command{
		Use:          "forkvisord",
		Short:        "Run a supervised pool of HTTP worker processes",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runCoordinator,
	}
)

func init() {
	d := DefaultConfig()
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")
	rootCmd.PersistentFlags().String("log-level", d.LogLevel, "log level (debug, info, warn, error)")

	f := rootCmd.Flags()
	f.StringP("bind", "b", d.Bind, "listen host")
	f.IntP("port", "p", d.Port, "listen port")
	f.IntP("workers", "n", d.Workers, "number of workers")
	f.StringP("admin", "a", d.Admin, "admin API address, empty to disable")
	f.Int("spawn-retries", d.SpawnRetries, "spawn attempts to retry before giving up")
	f.Duration("spawn-delay", d.SpawnDelay, "delay between spawn retries")
	f.Int("rate-limit", d.RateLimit, "max replacements per rate period, 0 for no limit")
	f.Duration("rate-period", d.RatePeriod, "rate limit period")
	f.Duration("stop-time", d.StopTime, "grace period for workers to stop")

	v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	for _, name := range []string{"bind", "port", "workers", "admin",
		"spawn-retries", "spawn-delay", "rate-limit", "rate-period",
		"stop-time"} {
		v.BindPFlag(flagKey(name), f.Lookup(name))
	}

	rootCmd.AddCommand(workerCmd)
}

func flagKey(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

func newLogger(level string, prefix string) (*log.Logger, error) {
	lvl, e := log.ParseLevel(level)
	if e != nil {
		return nil, e
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		Level:           lvl,
		Prefix:          prefix,
		ReportTimestamp: true,
	}), nil
}

// workerArgv is the command line for workers: this same binary, running
// the hidden worker subcommand.
func workerArgv() ([]string, error) {
	exe, e := os.Executable()
	if e != nil {
		return nil, e
	}
	argv := []string{exe, workerCmd.Name()}
	if cfgFile != "" {
		argv = append(argv, "--config", cfgFile)
	}
	return argv, nil
}

// workerEnv appends the effective configuration to base as FORKVISOR_*
// variables.  Workers load their configuration the same way as the
// coordinator, so this is how settings given only as flags reach them.
func workerEnv(cfg *Config, base []string) []string {
	env := append([]string{}, base...)
	for _, kv := range [][2]string{
		{"bind", cfg.Bind},
		{"port", strconv.Itoa(cfg.Port)},
		{"workers", strconv.Itoa(cfg.Workers)},
		{"admin", cfg.Admin},
		{"admin_user", cfg.AdminUser},
		{"admin_password_hash", cfg.AdminPasswordHash},
		{"spawn_retries", strconv.Itoa(cfg.SpawnRetries)},
		{"spawn_delay", cfg.SpawnDelay.String()},
		{"rate_limit", strconv.Itoa(cfg.RateLimit)},
		{"rate_period", cfg.RatePeriod.String()},
		{"stop_time", cfg.StopTime.String()},
		{"log_level", cfg.LogLevel},
	} {
		env = append(env, "FORKVISOR_"+strings.ToUpper(kv[0])+"="+kv[1])
	}
	return env
}

func newPool(cfg *Config, sp *forkvisor.ProcessSpawner, logger *stdlog.Logger) (*forkvisor.Pool, error) {
	pool := forkvisor.NewPool("forkvisord", cfg.Workers, sp)
	props := []struct {
		n forkvisor.PropertyName
		v interface{}
	}{
		{forkvisor.PropLogger, logger},
		{forkvisor.PropSpawnRetries, cfg.SpawnRetries},
		{forkvisor.PropSpawnDelay, cfg.SpawnDelay},
		{forkvisor.PropRateLimit, cfg.RateLimit},
		{forkvisor.PropRatePeriod, cfg.RatePeriod},
		{forkvisor.PropStopTime, cfg.StopTime},
	}
	for _, p := range props {
		if e := pool.SetProperty(p.n, p.v); e != nil {
			return nil, e
		}
	}
	sp.SetLogger(pool.Logger())
	return pool, nil
}

func newAdmin(cfg *Config, pool *forkvisor.Pool) (*http.Server, error) {
	h := rest.NewHandler(pool)
	if cfg.AdminPasswordHash != "" {
		if e := h.SetAuth(cfg.AdminUser, []byte(cfg.AdminPasswordHash)); e != nil {
			return nil, e
		}
	}
	return &http.Server{
		Addr:              cfg.Admin,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}, nil
}

func runCoordinator(cmd *cobra.Command, args []string) error {
	cfg, e := loadConfig(v, cfgFile)
	if e != nil {
		return e
	}
	logger, e := newLogger(cfg.LogLevel, "forkvisord")
	if e != nil {
		return e
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(cfg.Bind, strconv.Itoa(cfg.Port))
	ln, e := forkvisor.Listen(ctx, addr)
	if e != nil {
		return e
	}
	lf, e := forkvisor.ListenerFile(ln)
	ln.Close()
	if e != nil {
		return e
	}
	defer lf.Close()

	argv, e := workerArgv()
	if e != nil {
		return e
	}
	sp := forkvisor.NewProcessSpawner(argv, lf)
	sp.SetEnv(workerEnv(cfg, os.Environ()))
	pool, e := newPool(cfg, sp, logger.StandardLog(log.StandardLogOptions{
		ForceLevel: log.InfoLevel,
	}))
	if e != nil {
		return e
	}
	var srv *http.Server
	if cfg.Admin != "" {
		if srv, e = newAdmin(cfg, pool); e != nil {
			return e
		}
	}
	logger.Infof("Listening on %s with %d workers", addr, cfg.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pool.Run(gctx)
	})
	if srv != nil {
		logger.Infof("Admin API on %s", cfg.Admin)
		g.Go(func() error {
			e := srv.ListenAndServe()
			if errors.Is(e, http.ErrServerClosed) {
				return nil
			}
			return e
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}
	return g.Wait()
}

func main() {
	if e := rootCmd.Execute(); e != nil {
		os.Exit(1)
	}
}
