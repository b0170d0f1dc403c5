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
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything forkvisord can be told, from flags, from
// FORKVISOR_* environment variables, or from a config file.
type Config struct {
	Bind              string
	Port              int
	Workers           int
	Admin             string
	AdminUser         string
	AdminPasswordHash string
	SpawnRetries      int
	SpawnDelay        time.Duration
	RateLimit         int
	RatePeriod        time.Duration
	StopTime          time.Duration
	LogLevel          string
}

// DefaultConfig returns the built in defaults: port 3000, one worker per
// logical CPU, and the admin API on the loopback interface.
func DefaultConfig() *Config {
	return &Config{
		Port:         3000,
		Workers:      runtime.NumCPU(),
		Admin:        "127.0.0.1:8321",
		SpawnRetries: 3,
		SpawnDelay:   time.Second,
		RatePeriod:   time.Minute,
		StopTime:     10 * time.Second,
		LogLevel:     "info",
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()
	v.SetDefault("bind", d.Bind)
	v.SetDefault("port", d.Port)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("admin", d.Admin)
	v.SetDefault("admin_user", d.AdminUser)
	v.SetDefault("admin_password_hash", d.AdminPasswordHash)
	v.SetDefault("spawn_retries", d.SpawnRetries)
	v.SetDefault("spawn_delay", d.SpawnDelay)
	v.SetDefault("rate_limit", d.RateLimit)
	v.SetDefault("rate_period", d.RatePeriod)
	v.SetDefault("stop_time", d.StopTime)
	v.SetDefault("log_level", d.LogLevel)

	v.SetEnvPrefix("forkvisor")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	// PORT is honored too, as most platforms set it.
	v.BindEnv("port", "FORKVISOR_PORT", "PORT")
	return v
}

// loadConfig reads the optional config file and returns the merged
// configuration.
func loadConfig(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if e := v.ReadInConfig(); e != nil {
			return nil, fmt.Errorf("reading config %s: %w", file, e)
		}
	}
	c := &Config{
		Bind:              v.GetString("bind"),
		Port:              v.GetInt("port"),
		Workers:           v.GetInt("workers"),
		Admin:             v.GetString("admin"),
		AdminUser:         v.GetString("admin_user"),
		AdminPasswordHash: v.GetString("admin_password_hash"),
		SpawnRetries:      v.GetInt("spawn_retries"),
		SpawnDelay:        v.GetDuration("spawn_delay"),
		RateLimit:         v.GetInt("rate_limit"),
		RatePeriod:        v.GetDuration("rate_period"),
		StopTime:          v.GetDuration("stop_time"),
		LogLevel:          v.GetString("log_level"),
	}
	if c.Workers < 1 {
		return nil, fmt.Errorf("workers must be at least 1, not %d", c.Workers)
	}
	if c.Port < 0 || c.Port > 65535 {
		return nil, fmt.Errorf("bad port %d", c.Port)
	}
	if c.SpawnRetries < 0 {
		return nil, fmt.Errorf("spawn_retries must not be negative")
	}
	if c.AdminPasswordHash != "" && c.AdminUser == "" {
		return nil, fmt.Errorf("admin_password_hash requires admin_user")
	}
	return c, nil
}
