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
Package rtc implements a time keeper backed by a Linux real time clock chip.

The chip holds UTC calendar time with a two digit year, so only years 2000 to
2099 can be stored or read back.
*/
package rtc

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/facebook/timekeeper/epoch"
	"github.com/facebook/timekeeper/source"
)

// DefaultDevice is the default RTC character device
const DefaultDevice = "/dev/rtc0"

// Supported years
const (
	MinYear = 2000
	MaxYear = 2099
)

// Device is a calendar clock
type Device interface {
	ReadTime() (time.Time, error)
	SetTime(t time.Time) error
	Close() error
}

// unixDevice talks to /dev/rtc* with RTC_RD_TIME and RTC_SET_TIME ioctls
type unixDevice struct {
	fd int
}

// Open opens an RTC character device
func Open(path string) (Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &unixDevice{fd: fd}, nil
}

func (d *unixDevice) ReadTime() (time.Time, error) {
	rt, err := unix.IoctlGetRTCTime(d.fd)
	if err != nil {
		return time.Time{}, fmt.Errorf("RTC_RD_TIME: %w", err)
	}
	return fromRTCTime(rt), nil
}

func (d *unixDevice) SetTime(t time.Time) error {
	if err := unix.IoctlSetRTCTime(d.fd, toRTCTime(t)); err != nil {
		return fmt.Errorf("RTC_SET_TIME: %w", err)
	}
	return nil
}

func (d *unixDevice) Close() error {
	return unix.Close(d.fd)
}

func fromRTCTime(rt *unix.RTCTime) time.Time {
	return time.Date(int(rt.Year)+1900, time.Month(rt.Mon+1), int(rt.Mday), int(rt.Hour), int(rt.Min), int(rt.Sec), 0, time.UTC)
}

func toRTCTime(t time.Time) *unix.RTCTime {
	t = t.UTC()
	return &unix.RTCTime{
		Sec:  int32(t.Second()),
		Min:  int32(t.Minute()),
		Hour: int32(t.Hour()),
		Mday: int32(t.Day()),
		Mon:  int32(t.Month()) - 1,
		Year: int32(t.Year()) - 1900,
		Wday: int32(t.Weekday()),
		Yday: int32(t.YearDay()) - 1,
	}
}

// Clock is a TimeKeeper reading and setting an RTC chip.
// Reads are fast, so the asynchronous trio completes immediately.
type Clock struct {
	*source.Blocking
	dev   Device
	epoch epoch.Epoch
}

// New returns Clock reporting device time relative to ep
func New(dev Device, ep epoch.Epoch) *Clock {
	c := &Clock{dev: dev, epoch: ep}
	c.Blocking = source.NewBlocking(c.read)
	return c
}

func (c *Clock) read() epoch.Seconds {
	t, err := c.dev.ReadTime()
	if err != nil {
		log.Warningf("reading RTC: %v", err)
		return epoch.Invalid
	}
	if y := t.Year(); y < MinYear || y > MaxYear {
		log.Warningf("RTC year %d is outside of %d-%d", y, MinYear, MaxYear)
		return epoch.Invalid
	}
	return c.epoch.FromTime(t)
}

// SetNow writes s to the chip. epoch.Invalid and unsupported years are ignored.
func (c *Clock) SetNow(s epoch.Seconds) {
	if !s.Valid() {
		return
	}
	t := c.epoch.ToTime(s)
	if y := t.Year(); y < MinYear || y > MaxYear {
		log.Warningf("not setting RTC to %v, year is outside of %d-%d", t, MinYear, MaxYear)
		return
	}
	if err := c.dev.SetTime(t); err != nil {
		log.Warningf("setting RTC: %v", err)
		return
	}
	log.Debugf("RTC set to %v", t)
}

// Close closes the device
func (c *Clock) Close() error {
	return c.dev.Close()
}
