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
Package tickclock implements the timekeeper system clock.

Clock keeps a reference pair of {epoch seconds, tick counter snapshot} and
computes current time by adding the whole seconds elapsed on the free-running
tick counter. Corrections replace the pair as a single unit. Until the first
accepted correction the clock is uninitialized and reports epoch.Invalid.

Elapsed whole seconds are folded into the reference pair on every read, so a
clock which is read at least once per tick counter wrap (~49.7 days) never
loses time. KeepAlive returns a task doing exactly that.
*/
package tickclock

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/timekeeper/coop"
	"github.com/facebook/timekeeper/epoch"
	"github.com/facebook/timekeeper/source"
	"github.com/facebook/timekeeper/tick"
)

// Kind tells where a correction came from
type Kind int

// Kinds of corrections
const (
	// Manual is an explicit SetNow
	Manual Kind = iota
	// Sync is accepted from the periodic synchronization
	Sync
	// Restore is the initial value read from the backup keeper
	Restore
)

var kindToString = map[Kind]string{
	Manual:  "manual",
	Sync:    "sync",
	Restore: "restore",
}

func (k Kind) String() string {
	return kindToString[k]
}

// Update describes an accepted correction
type Update struct {
	Kind    Kind
	Seconds epoch.Seconds
	// Skew is new value minus the clock reading right before the correction,
	// zero if the clock was not initialized
	Skew epoch.Seconds
	// First is true for the correction which initialized the clock
	First bool
}

// Option configures Clock
type Option func(*Clock)

// WithBackup makes the clock write corrections to the keeper and restore from it in Setup
func WithBackup(k source.TimeKeeper) Option {
	return func(c *Clock) {
		c.backup = k
	}
}

// WithSyncSource tells the clock which source its Sync values come from.
// Sync values are not written back to a backup which is the sync source itself.
func WithSyncSource(s source.TimeSource) Option {
	return func(c *Clock) {
		c.syncSource = s
	}
}

// WithObserver registers a function called after every accepted correction
func WithObserver(f func(Update)) Option {
	return func(c *Clock) {
		c.observers = append(c.observers, f)
	}
}

// Clock is the drift-corrected system clock
type Clock struct {
	counter    tick.Counter
	backup     source.TimeKeeper
	syncSource source.TimeSource
	observers  []func(Update)

	// reference pair and bookkeeping, guarded by mu
	mu          sync.Mutex
	initialized bool
	seconds     epoch.Seconds
	tick        uint32
	lastSync    epoch.Seconds
	lastSkew    epoch.Seconds
}

// New returns uninitialized Clock counting time with counter
func New(counter tick.Counter, opts ...Option) *Clock {
	c := &Clock{
		counter:  counter,
		seconds:  epoch.Invalid,
		lastSync: epoch.Invalid,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Setup initializes the clock from the backup keeper, if there is one
func (c *Clock) Setup() {
	if c.backup == nil {
		return
	}
	s := c.backup.GetNow()
	if !s.Valid() {
		log.Warning("backup clock has no valid time, starting uninitialized")
		return
	}
	c.update(s, Restore)
}

// GetNow returns current time, epoch.Invalid until initialized
func (c *Clock) GetNow() epoch.Seconds {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nowLocked()
}

func (c *Clock) nowLocked() epoch.Seconds {
	if !c.initialized {
		return epoch.Invalid
	}
	elapsed := tick.Elapsed(c.counter.Millis(), c.tick)
	if secs := elapsed / tick.PerSecond; secs > 0 {
		// keep the sub-second remainder in the tick snapshot
		c.seconds += epoch.Seconds(secs)
		c.tick += secs * tick.PerSecond
	}
	// seconds wrap like the external domains do, but an initialized clock
	// never reports the sentinel: that second reads as the one after it
	if c.seconds == epoch.Invalid {
		return epoch.Invalid + 1
	}
	return c.seconds
}

// SetNow sets the clock manually and writes through to the backup keeper.
// epoch.Invalid is ignored.
func (c *Clock) SetNow(s epoch.Seconds) {
	if !c.update(s, Manual) {
		return
	}
	if c.backup != nil {
		c.backup.SetNow(s)
	}
}

// Sync applies a value received from the synchronization source.
// epoch.Invalid is ignored.
func (c *Clock) Sync(s epoch.Seconds) {
	if !c.update(s, Sync) {
		return
	}
	if c.backup != nil && source.TimeSource(c.backup) != c.syncSource {
		c.backup.SetNow(s)
	}
}

// update replaces the reference pair, returns false if s was rejected
func (c *Clock) update(s epoch.Seconds, kind Kind) bool {
	if !s.Valid() {
		return false
	}
	c.mu.Lock()
	prev := c.nowLocked()
	u := Update{Kind: kind, Seconds: s, First: !c.initialized}
	if prev.Valid() {
		u.Skew = s - prev
	}
	c.seconds = s
	c.tick = c.counter.Millis()
	c.initialized = true
	c.lastSkew = u.Skew
	if kind == Sync {
		c.lastSync = s
	}
	c.mu.Unlock()

	if u.First {
		log.Infof("clock initialized by %s to %d", kind, s)
	} else {
		log.Debugf("clock %s to %d, skew %ds", kind, s, u.Skew)
	}
	for _, f := range c.observers {
		f(u)
	}
	return true
}

// IsInitialized returns true once the clock has accepted a correction
func (c *Clock) IsInitialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// LastSyncTime returns the value accepted by the last Sync, epoch.Invalid if none
func (c *Clock) LastSyncTime() epoch.Seconds {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSync
}

// LastSkew returns the skew of the last correction
func (c *Clock) LastSkew() epoch.Seconds {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSkew
}

// KeepAlive returns a task reading the clock, to be run from the host loop
func (c *Clock) KeepAlive() coop.Task {
	return coop.TaskFunc(func() {
		c.GetNow()
	})
}
