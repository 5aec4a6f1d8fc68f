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

package daemon

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"

	"github.com/facebook/timekeeper/source/ntp"
	"github.com/facebook/timekeeper/source/rtc"
	"github.com/facebook/timekeeper/syncer"
)

// Supported time sources
const (
	SourceNTP    = "ntp"
	SourceRTC    = "rtc"
	SourceSystem = "system"
	SourceNone   = "none"
)

// DefaultHealthExpression is a default formula deciding if the daemon is healthy
const DefaultHealthExpression = "initialized == 1 && seconds_since_sync < 3 * sync_period"

// DefaultMonitoringPort is where JSON counters are served by default
const DefaultMonitoringPort = 4270

// RTCConfig describes the RTC chip
type RTCConfig struct {
	Device string `yaml:"device"`
}

// Config specifies timekeeper daemon run options
type Config struct {
	Source            string        `yaml:"source"`              // where time comes from: ntp, rtc, system or none
	Backup            string        `yaml:"backup"`              // keeper corrections are written to and restored from: rtc, system or empty
	EpochYear         int           `yaml:"epoch_year"`          // application epoch, January 1st of this year
	SyncPeriod        uint32        `yaml:"sync_period"`         // steady state sync period in seconds
	InitialSyncPeriod uint32        `yaml:"initial_sync_period"` // sync period before the first success in seconds
	RequestTimeout    time.Duration `yaml:"request_timeout"`     // how long to wait for a time source response
	PollInterval      time.Duration `yaml:"poll_interval"`       // how often the run loop steps its tasks
	ReportInterval    time.Duration `yaml:"report_interval"`     // how often counters are refreshed
	TimingStats       bool          `yaml:"timing_stats"`        // record sync latency
	Health            string        `yaml:"health"`              // expression over counters, true when healthy
	MonitoringPort    int           `yaml:"monitoring_port"`     // JSON stats port, 0 disables
	PrometheusPort    int           `yaml:"prometheus_port"`     // Prometheus exporter port, 0 disables
	NTP               ntp.Config    `yaml:"ntp"`
	RTC               RTCConfig     `yaml:"rtc"`
}

// DefaultConfig returns Config initialized with default values
func DefaultConfig() *Config {
	return &Config{
		Source:            SourceNTP,
		EpochYear:         2050,
		SyncPeriod:        syncer.DefaultSyncPeriod,
		InitialSyncPeriod: syncer.DefaultInitialSyncPeriod,
		RequestTimeout:    syncer.DefaultRequestTimeout,
		PollInterval:      10 * time.Millisecond,
		ReportInterval:    time.Minute,
		TimingStats:       true,
		Health:            DefaultHealthExpression,
		MonitoringPort:    DefaultMonitoringPort,
		NTP: ntp.Config{
			Server: "pool.ntp.org",
			Port:   ntp.DefaultPort,
		},
		RTC: RTCConfig{
			Device: rtc.DefaultDevice,
		},
	}
}

// SyncerConfig returns configuration of the sync scheduler
func (c *Config) SyncerConfig() syncer.Config {
	return syncer.Config{
		SyncPeriod:        c.SyncPeriod,
		InitialSyncPeriod: c.InitialSyncPeriod,
		RequestTimeout:    c.RequestTimeout,
	}
}

// Validate config is sane
func (c *Config) Validate() error {
	switch c.Source {
	case SourceNTP:
		if err := c.NTP.Validate(); err != nil {
			return fmt.Errorf("bad config: %w", err)
		}
	case SourceRTC, SourceSystem, SourceNone:
	default:
		return fmt.Errorf("bad config: 'source' must be one of %q, %q, %q or %q", SourceNTP, SourceRTC, SourceSystem, SourceNone)
	}
	switch c.Backup {
	case "", SourceRTC, SourceSystem:
	default:
		return fmt.Errorf("bad config: 'backup' must be empty, %q or %q", SourceRTC, SourceSystem)
	}
	if (c.Source == SourceRTC || c.Backup == SourceRTC) && c.RTC.Device == "" {
		return fmt.Errorf("bad config: 'rtc.device' must be specified")
	}
	if c.EpochYear < 1970 || c.EpochYear > 2100 {
		return fmt.Errorf("bad config: 'epoch_year' must be between 1970 and 2100")
	}
	sc := c.SyncerConfig()
	if err := sc.Validate(); err != nil {
		return fmt.Errorf("bad config: %w", err)
	}
	if c.PollInterval <= 0 || c.PollInterval >= c.RequestTimeout {
		return fmt.Errorf("bad config: 'poll_interval' must be greater than zero and less than 'request_timeout'")
	}
	if c.ReportInterval < time.Second {
		return fmt.Errorf("bad config: 'report_interval' must be at least 1s")
	}
	if c.MonitoringPort < 0 || c.PrometheusPort < 0 {
		return fmt.Errorf("bad config: ports must be 0 or positive")
	}
	if _, err := NewHealth(c.Health); err != nil {
		return fmt.Errorf("bad config: 'health': %w", err)
	}
	return nil
}

// ReadConfig reads config and unmarshals it from yaml into Config, on top of defaults
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// PrepareConfig prepares final version of config based on defaults, CLI flags and on-disk config, and validates resulting config
func PrepareConfig(cfgPath string, source string, server string, monitoringPort int, epochYear int, setFlags map[string]bool) (*Config, error) {
	cfg := DefaultConfig()
	var err error
	warn := func(name string) {
		log.Warningf("overriding %s from CLI flag", name)
	}
	if cfgPath != "" {
		cfg, err = ReadConfig(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("reading config from %q: %w", cfgPath, err)
		}
	}
	if setFlags["source"] {
		warn("source")
		cfg.Source = source
	}
	if setFlags["server"] {
		warn("server")
		cfg.NTP.Server = server
	}
	if setFlags["monitoringport"] {
		warn("monitoringPort")
		cfg.MonitoringPort = monitoringPort
	}
	if setFlags["epoch"] {
		warn("epoch")
		cfg.EpochYear = epochYear
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	log.Debugf("config: %+v", cfg)
	return cfg, nil
}
