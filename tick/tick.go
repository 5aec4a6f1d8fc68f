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
Package tick provides the free-running millisecond counter the timekeeper
measures intervals with.

The counter is 32 bits wide and wraps silently every ~49.7 days. Values are
never compared directly: intervals are always computed with Elapsed, which
relies on unsigned wraparound subtraction.
*/
package tick

import (
	"sync"
	"time"
)

// PerSecond is the number of ticks in one second
const PerSecond = 1000

// Counter is a source of free-running ticks
type Counter interface {
	Millis() uint32
}

// Elapsed returns number of ticks from start to now, correct across one wrap
func Elapsed(now, start uint32) uint32 {
	return now - start
}

// Monotonic counts milliseconds using the monotonic reading of the Go runtime clock
type Monotonic struct {
	start time.Time
}

// NewMonotonic returns a counter starting at zero
func NewMonotonic() *Monotonic {
	return &Monotonic{start: time.Now()}
}

// Millis implements Counter
func (m *Monotonic) Millis() uint32 {
	return uint32(time.Since(m.start).Milliseconds())
}

// Fake is a manually advanced counter for tests and simulations
type Fake struct {
	sync.Mutex
	now uint32
}

// NewFake returns a fake counter set to start
func NewFake(start uint32) *Fake {
	return &Fake{now: start}
}

// Millis implements Counter
func (f *Fake) Millis() uint32 {
	f.Lock()
	defer f.Unlock()
	return f.now
}

// Advance moves the counter forward, wrapping like a real one
func (f *Fake) Advance(d uint32) {
	f.Lock()
	f.now += d
	f.Unlock()
}

// AdvanceDuration moves the counter forward by d, rounded down to the tick
func (f *Fake) AdvanceDuration(d time.Duration) {
	f.Advance(uint32(d.Milliseconds()))
}
