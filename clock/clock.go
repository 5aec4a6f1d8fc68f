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

package clock

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/facebook/timekeeper/epoch"
	"github.com/facebook/timekeeper/source"
)

// clock_adjtime modes from usr/include/linux/timex.h
const (
	// maximum time error
	AdjMaxError uint32 = 0x0004
	// clock status
	AdjStatus uint32 = 0x0010
	// add 'time' to current time
	AdjSetOffset uint32 = 0x0100
	// select nanosecond resolution
	AdjNano uint32 = 0x2000
)

// Step shifts the clock by step with nanosecond resolution
func Step(clockid int32, step time.Duration) (state int, err error) {
	tx := &unix.Timex{
		Modes: AdjSetOffset | AdjNano,
		Time:  nanoTimeval(step),
	}
	return unix.ClockAdjtime(clockid, tx)
}

// SetSync sets clock status to TIME_OK
func SetSync(clockid int32) error {
	tx := &unix.Timex{}
	tx.Modes = AdjStatus | AdjMaxError
	state, err := unix.ClockAdjtime(clockid, tx)

	if err == nil && state != unix.TIME_OK {
		return fmt.Errorf("clock state %d is not TIME_OK after setting sync state", state)
	}
	return err
}

// Realtime is a TimeKeeper backed by the host CLOCK_REALTIME
type Realtime struct {
	*source.Blocking
	epoch epoch.Epoch
	now   func() time.Time
	step  func(time.Duration) error
}

// NewRealtime returns Realtime reporting time relative to ep
func NewRealtime(ep epoch.Epoch) *Realtime {
	r := &Realtime{
		epoch: ep,
		now:   time.Now,
		step:  stepRealtime,
	}
	r.Blocking = source.NewBlocking(r.read)
	return r
}

func stepRealtime(offset time.Duration) error {
	if _, err := Step(unix.CLOCK_REALTIME, offset); err != nil {
		return fmt.Errorf("stepping CLOCK_REALTIME by %v: %w", offset, err)
	}
	return SetSync(unix.CLOCK_REALTIME)
}

func (r *Realtime) read() epoch.Seconds {
	return r.epoch.FromTime(r.now())
}

// SetNow steps the host clock to s. s is truncated to the second and may be
// a little stale, so the host clock is left alone while its own second is
// within one of s.
func (r *Realtime) SetNow(s epoch.Seconds) {
	if !s.Valid() {
		return
	}
	now := r.now()
	if d := r.epoch.FromTime(now) - s; d >= -1 && d <= 1 {
		return
	}
	offset := r.epoch.ToTime(s).Sub(now)
	if err := r.step(offset); err != nil {
		log.Warningf("setting system clock: %v", err)
		return
	}
	log.Infof("stepped system clock by %v", offset)
}
