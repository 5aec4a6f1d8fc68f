/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package syncer

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Defaults for Config
const (
	DefaultSyncPeriod        = 3600
	DefaultInitialSyncPeriod = 5
	DefaultRequestTimeout    = 1000 * time.Millisecond
)

// Config specifies how often and how patiently the scheduler synchronizes
type Config struct {
	// SyncPeriod is the steady state period in seconds, used after a success
	SyncPeriod uint32 `yaml:"sync_period"`
	// InitialSyncPeriod is the period in seconds before the first success, doubled on every failure
	InitialSyncPeriod uint32 `yaml:"initial_sync_period"`
	// RequestTimeout is how long to wait for a response
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DefaultConfig returns Config initialized with default values
func DefaultConfig() Config {
	return Config{
		SyncPeriod:        DefaultSyncPeriod,
		InitialSyncPeriod: DefaultInitialSyncPeriod,
		RequestTimeout:    DefaultRequestTimeout,
	}
}

// Validate config is sane
func (c *Config) Validate() error {
	if c.SyncPeriod == 0 {
		return fmt.Errorf("sync_period must be greater than zero")
	}
	if c.InitialSyncPeriod == 0 || c.InitialSyncPeriod > c.SyncPeriod {
		return fmt.Errorf("initial_sync_period must be greater than zero and not more than sync_period")
	}
	if c.RequestTimeout < time.Millisecond || c.RequestTimeout >= time.Duration(c.SyncPeriod)*time.Second {
		return fmt.Errorf("request_timeout must be at least 1ms and less than sync_period")
	}
	return nil
}

// clamped returns c with every value pulled into the range the scheduler can run with
func (c Config) clamped() Config {
	out := c
	if out.SyncPeriod == 0 {
		out.SyncPeriod = 1
	}
	if out.InitialSyncPeriod == 0 {
		out.InitialSyncPeriod = 1
	}
	if out.InitialSyncPeriod > out.SyncPeriod {
		out.InitialSyncPeriod = out.SyncPeriod
	}
	if out.RequestTimeout < time.Millisecond {
		out.RequestTimeout = time.Millisecond
	}
	if out != c {
		log.Warningf("sync config %+v is out of range, using %+v", c, out)
	}
	return out
}
