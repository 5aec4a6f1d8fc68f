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

/*
Package daemon implements the timekeeper daemon.

It keeps a tick based clock synchronized against the configured time source,
optionally writes every correction to a backup keeper (RTC chip or the host
clock) and reports what it does as counters over JSON and Prometheus.
*/
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	sddaemon "github.com/coreos/go-systemd/daemon"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/facebook/timekeeper/clock"
	"github.com/facebook/timekeeper/coop"
	"github.com/facebook/timekeeper/epoch"
	"github.com/facebook/timekeeper/source"
	"github.com/facebook/timekeeper/source/ntp"
	"github.com/facebook/timekeeper/source/rtc"
	"github.com/facebook/timekeeper/stats"
	"github.com/facebook/timekeeper/syncer"
	"github.com/facebook/timekeeper/tick"
	"github.com/facebook/timekeeper/tickclock"
	"github.com/facebook/timekeeper/timingstats"
)

// Counters reported besides the ones of the scheduler
const (
	CounterInitialized      = "clock.initialized"
	CounterNow              = "clock.now"
	CounterSecondsSinceSync = "clock.seconds_since_sync"
	CounterSkew             = "clock.skew_s"
	CounterUpdates          = "clock.updates"
	CounterState            = "sync.state"
	CounterToAttempt        = "sync.seconds_to_attempt"
	CounterLatencyCount     = "sync.latency.count"
	CounterLatencyMin       = "sync.latency.min_ms"
	CounterLatencyMax       = "sync.latency.max_ms"
	CounterLatencyAvg       = "sync.latency.avg_ms"
	CounterHealthOK         = "health.ok"
	CounterHealthError      = "health.error"
)

// Daemon is the timekeeper daemon
type Daemon struct {
	cfg       *Config
	stats     *stats.Stats
	counter   tick.Counter
	clock     *tickclock.Clock
	scheduler *syncer.Scheduler
	timing    *timingstats.Stats
	health    *Health
	sysStats  *stats.SysStats
	closers   []io.Closer
}

// New creates the daemon, opening the configured source and backup
func New(cfg *Config, st *stats.Stats, counter tick.Counter) (*Daemon, error) {
	health, err := NewHealth(cfg.Health)
	if err != nil {
		return nil, fmt.Errorf("parsing health formula: %w", err)
	}
	d := &Daemon{
		cfg:      cfg,
		stats:    st,
		counter:  counter,
		health:   health,
		sysStats: stats.NewSysStats(),
	}
	ep := epoch.New(cfg.EpochYear)

	var rtcClock *rtc.Clock
	openRTC := func() (*rtc.Clock, error) {
		if rtcClock != nil {
			return rtcClock, nil
		}
		dev, err := rtc.Open(cfg.RTC.Device)
		if err != nil {
			return nil, err
		}
		rtcClock = rtc.New(dev, ep)
		d.closers = append(d.closers, rtcClock)
		return rtcClock, nil
	}
	var realtime *clock.Realtime
	systemClock := func() *clock.Realtime {
		if realtime == nil {
			realtime = clock.NewRealtime(ep)
		}
		return realtime
	}

	var src source.TimeSource
	switch cfg.Source {
	case SourceNTP:
		nc := cfg.NTP
		nc.Timeout = cfg.RequestTimeout
		client := ntp.NewClient(nc, ep)
		d.closers = append(d.closers, client)
		src = client
	case SourceRTC:
		c, err := openRTC()
		if err != nil {
			return nil, err
		}
		src = c
	case SourceSystem:
		src = systemClock()
	}

	var backup source.TimeKeeper
	switch cfg.Backup {
	case SourceRTC:
		c, err := openRTC()
		if err != nil {
			d.Close()
			return nil, err
		}
		backup = c
	case SourceSystem:
		backup = systemClock()
	}

	opts := []tickclock.Option{tickclock.WithObserver(d.observe)}
	if backup != nil {
		opts = append(opts, tickclock.WithBackup(backup), tickclock.WithSyncSource(src))
	}
	d.clock = tickclock.New(counter, opts...)

	syncOpts := []syncer.Option{syncer.WithStats(st)}
	if cfg.TimingStats {
		d.timing = timingstats.New()
		syncOpts = append(syncOpts, syncer.WithTimingStats(d.timing))
	}
	d.scheduler = syncer.New(cfg.SyncerConfig(), d.clock, src, counter, syncOpts...)
	return d, nil
}

// Clock returns the synchronized clock
func (d *Daemon) Clock() *tickclock.Clock {
	return d.clock
}

// Scheduler returns the sync scheduler
func (d *Daemon) Scheduler() *syncer.Scheduler {
	return d.scheduler
}

func (d *Daemon) observe(u tickclock.Update) {
	d.stats.UpdateCounterBy(fmt.Sprintf("%s.%s", CounterUpdates, u.Kind), 1)
	d.stats.SetCounter(CounterSkew, int64(u.Skew))
	if !u.First && u.Skew != 0 {
		log.Infof("clock corrected by %ds (%s)", u.Skew, u.Kind)
	}
}

// report refreshes counters and evaluates health
func (d *Daemon) report() {
	now := d.clock.GetNow()
	initialized := int64(0)
	if now.Valid() {
		initialized = 1
	}
	sinceSync := int64(math.MaxInt32)
	if last := d.clock.LastSyncTime(); last.Valid() && now.Valid() {
		sinceSync = int64(now) - int64(last)
	}
	st := d.scheduler.Status()
	d.stats.SetCounter(CounterInitialized, initialized)
	d.stats.SetCounter(CounterNow, int64(now))
	d.stats.SetCounter(CounterSecondsSinceSync, sinceSync)
	d.stats.SetCounter(CounterState, int64(st.State))
	d.stats.SetCounter(CounterToAttempt, int64(st.SecondsToSyncAttempt))

	latencyAvg := 0.0
	if d.timing != nil {
		snap := d.timing.Snapshot()
		latencyAvg = snap.Avg
		d.stats.SetCounter(CounterLatencyCount, int64(snap.Count))
		d.stats.SetCounter(CounterLatencyMin, int64(snap.Min))
		d.stats.SetCounter(CounterLatencyMax, int64(snap.Max))
		d.stats.SetCounter(CounterLatencyAvg, int64(snap.Avg))
	}

	counters := d.stats.Get()
	ok, err := d.health.Eval(map[string]float64{
		"initialized":        float64(initialized),
		"seconds_since_sync": float64(sinceSync),
		"skew":               float64(d.clock.LastSkew()),
		"sync_period":        float64(st.CurrentPeriod),
		"timeouts":           float64(counters[syncer.CounterTimeouts] + counters[syncer.CounterMalformed]),
		"latency_avg":        latencyAvg,
	})
	if err != nil {
		log.Errorf("evaluating health: %v", err)
		d.stats.UpdateCounterBy(CounterHealthError, 1)
	}
	if ok {
		d.stats.SetCounter(CounterHealthOK, 1)
	} else {
		d.stats.SetCounter(CounterHealthOK, 0)
	}

	if err := d.sysStats.Export(d.stats); err != nil {
		log.Warningf("collecting process stats: %v", err)
	}
}

func (d *Daemon) runReporter(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.ReportInterval)
	defer ticker.Stop()
	for {
		d.report()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Run runs the daemon until ctx is done
func (d *Daemon) Run(ctx context.Context) error {
	d.clock.Setup()

	runner := coop.NewRunner(d.cfg.PollInterval)
	runner.Add(d.scheduler)
	runner.Add(d.clock.KeepAlive())

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return runner.Run(ctx)
	})
	eg.Go(func() error {
		return d.runReporter(ctx)
	})
	if d.cfg.MonitoringPort != 0 {
		eg.Go(func() error {
			return stats.NewJSONStats(d.stats).Serve(ctx, d.cfg.MonitoringPort)
		})
	}
	if d.cfg.PrometheusPort != 0 {
		eg.Go(func() error {
			return stats.NewPrometheusExporter(d.stats).Serve(ctx, d.cfg.PrometheusPort)
		})
	}
	if sent, err := sddaemon.SdNotify(false, "READY=1"); err != nil {
		log.Warningf("notifying systemd: %v", err)
	} else if sent {
		log.Debug("notified systemd")
	}
	log.Infof("timekeeper started, source %q, backup %q, epoch %d", d.cfg.Source, d.cfg.Backup, d.cfg.EpochYear)

	err := eg.Wait()
	d.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases sockets and devices
func (d *Daemon) Close() {
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			log.Warningf("closing: %v", err)
		}
	}
	d.closers = nil
}
