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
Package syncer implements the periodic synchronization of a clock against a
time source.

Scheduler is a state machine advanced by Step calls from a cooperative host
loop. One iteration sends a request, polls for the response until it arrives
or times out, applies a good response to the clock and then sleeps for the
current sync period. The period starts at Config.InitialSyncPeriod and doubles
after every failed attempt until it reaches Config.SyncPeriod. Any success
resets it to Config.SyncPeriod right away.

Failures never escalate. A source which never answers keeps the scheduler
retrying forever at the steady period.
*/
package syncer

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/timekeeper/coop"
	"github.com/facebook/timekeeper/epoch"
	"github.com/facebook/timekeeper/source"
	"github.com/facebook/timekeeper/tick"
	"github.com/facebook/timekeeper/timingstats"
)

// State of the scheduler
type State int

// Scheduler states
const (
	StateIdle State = iota
	StateWaiting
	StateSleeping
	StateDisabled
)

var stateToString = map[State]string{
	StateIdle:     "IDLE",
	StateWaiting:  "WAITING",
	StateSleeping: "SLEEPING",
	StateDisabled: "DISABLED",
}

func (s State) String() string {
	return stateToString[s]
}

// SyncStatus is the outcome of the last sync attempt
type SyncStatus int

// Sync outcomes
const (
	StatusUnknown SyncStatus = iota
	StatusOK
	StatusTimedOut
	StatusMalformed
)

var syncStatusToString = map[SyncStatus]string{
	StatusUnknown:   "UNKNOWN",
	StatusOK:        "OK",
	StatusTimedOut:  "TIMED_OUT",
	StatusMalformed: "MALFORMED",
}

func (s SyncStatus) String() string {
	return syncStatusToString[s]
}

// Counter names reported to StatsServer
const (
	CounterRequests  = "sync.requests"
	CounterSuccess   = "sync.success"
	CounterTimeouts  = "sync.timeouts"
	CounterMalformed = "sync.malformed"
	CounterPeriod    = "sync.period_s"
)

// StatsServer is a stats server interface
type StatsServer interface {
	SetCounter(key string, val int64)
	UpdateCounterBy(key string, count int64)
}

// Clock is what the scheduler corrects
type Clock interface {
	Sync(s epoch.Seconds)
}

// Status is a snapshot of the scheduler
type Status struct {
	State                   State      `json:"state"`
	LastStatus              SyncStatus `json:"last_status"`
	CurrentPeriod           uint32     `json:"current_period"`
	SecondsSinceSyncAttempt uint32     `json:"seconds_since_sync_attempt"`
	SecondsToSyncAttempt    uint32     `json:"seconds_to_sync_attempt"`
}

// Option configures Scheduler
type Option func(*Scheduler)

// WithTimingStats makes the scheduler record latency of every successful sync
func WithTimingStats(ts *timingstats.Stats) Option {
	return func(s *Scheduler) {
		s.timing = ts
	}
}

// WithStats makes the scheduler report counters
func WithStats(st StatsServer) Option {
	return func(s *Scheduler) {
		s.stats = st
	}
}

// progress is the part of the scheduler visible to Status
type progress struct {
	state        State
	lastStatus   SyncStatus
	period       uint32
	attempted    bool
	requestStart uint32
	sleepStart   uint32
	sleepLeft    uint32
}

// Scheduler drives a TimeSource and applies its responses to a Clock
type Scheduler struct {
	clock   Clock
	src     source.TimeSource
	counter tick.Counter
	timeout uint32
	period  *period
	timing  *timingstats.Stats
	stats   StatsServer

	// owned by the goroutine calling Step
	p progress
	// a request was already sent during the current Step
	sent bool

	// copy of p published at the end of every Step
	mu        sync.Mutex
	published progress
}

// New returns a Scheduler synchronizing clock against src. A nil src disables the scheduler.
func New(cfg Config, clock Clock, src source.TimeSource, counter tick.Counter, opts ...Option) *Scheduler {
	cfg = cfg.clamped()
	s := &Scheduler{
		clock:   clock,
		src:     src,
		counter: counter,
		timeout: uint32(cfg.RequestTimeout.Milliseconds()),
		period:  newPeriod(cfg.InitialSyncPeriod, cfg.SyncPeriod),
	}
	for _, o := range opts {
		o(s)
	}
	s.p.period = s.period.value
	s.published = s.p
	s.setPeriodCounter()
	return s
}

// Step advances the state machine until it has to wait, sending at most one request
func (s *Scheduler) Step() {
	s.sent = false
	for s.advance() {
	}
	s.mu.Lock()
	s.published = s.p
	s.mu.Unlock()
}

// advance runs one state, returns false when it is time to yield
func (s *Scheduler) advance() bool {
	switch s.p.state {
	case StateIdle:
		if s.src == nil {
			log.Warning("no time source, synchronization is disabled")
			s.setState(StateDisabled)
			return false
		}
		if s.sent {
			return false
		}
		s.sent = true
		s.src.SendRequest()
		s.p.requestStart = s.counter.Millis()
		s.p.attempted = true
		s.inc(CounterRequests)
		s.setState(StateWaiting)
		return true
	case StateWaiting:
		if s.src.IsResponseReady() {
			s.handleResponse()
			s.sleep()
			return true
		}
		if elapsed := tick.Elapsed(s.counter.Millis(), s.p.requestStart); elapsed >= s.timeout {
			log.Warningf("no response from time source after %dms", elapsed)
			s.p.lastStatus = StatusTimedOut
			s.inc(CounterTimeouts)
			s.sleep()
			return true
		}
		return false
	case StateSleeping:
		now := s.counter.Millis()
		for s.p.sleepLeft > 0 && tick.Elapsed(now, s.p.sleepStart) >= tick.PerSecond {
			s.p.sleepLeft--
			s.p.sleepStart += tick.PerSecond
		}
		if s.p.sleepLeft > 0 {
			return false
		}
		if s.p.lastStatus != StatusOK {
			s.p.period = s.period.bump()
			log.Debugf("sync failed, next attempt in %ds", s.p.period)
			s.setPeriodCounter()
		}
		s.setState(StateIdle)
		return true
	}
	return false
}

func (s *Scheduler) handleResponse() {
	v := s.src.ReadResponse()
	latency := tick.Elapsed(s.counter.Millis(), s.p.requestStart)
	if !v.Valid() {
		log.Warning("malformed response from time source, discarding")
		s.p.lastStatus = StatusMalformed
		s.inc(CounterMalformed)
		return
	}
	if s.timing != nil {
		s.timing.Add(latency)
	}
	s.clock.Sync(v)
	s.p.lastStatus = StatusOK
	s.p.period = s.period.reset()
	s.inc(CounterSuccess)
	s.setPeriodCounter()
	log.Debugf("synced to %d in %dms", v, latency)
}

func (s *Scheduler) sleep() {
	s.p.sleepStart = s.counter.Millis()
	s.p.sleepLeft = s.p.period
	s.setState(StateSleeping)
}

// dedicated function just for logging state changes
func (s *Scheduler) setState(state State) {
	if s.p.state != state {
		log.Debugf("Changing state to %s", state)
		s.p.state = state
	}
}

func (s *Scheduler) inc(key string) {
	if s.stats != nil {
		s.stats.UpdateCounterBy(key, 1)
	}
}

func (s *Scheduler) setPeriodCounter() {
	if s.stats != nil {
		s.stats.SetCounter(CounterPeriod, int64(s.p.period))
	}
}

// Status returns the state as of the end of the last Step. Safe to call from any goroutine.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	p := s.published
	s.mu.Unlock()

	st := Status{
		State:         p.state,
		LastStatus:    p.lastStatus,
		CurrentPeriod: p.period,
	}
	now := s.counter.Millis()
	if p.attempted {
		st.SecondsSinceSyncAttempt = tick.Elapsed(now, p.requestStart) / tick.PerSecond
	}
	if p.state == StateSleeping {
		slept := tick.Elapsed(now, p.sleepStart) / tick.PerSecond
		if slept < p.sleepLeft {
			st.SecondsToSyncAttempt = p.sleepLeft - slept
		}
	}
	return st
}

// Run steps the scheduler every interval until ctx is done
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	r := coop.NewRunner(interval)
	r.Add(s)
	return r.Run(ctx)
}
