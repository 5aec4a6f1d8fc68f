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
Package epoch implements the signed 32-bit application epoch seconds used by
the timekeeper and the rollover-safe conversion from unsigned external time
domains (NTP era seconds) into it.

Seconds is relative to a configurable epoch instant (2050-01-01 by default),
which gives a range of roughly 68 years on either side of the epoch.
*/
package epoch

import (
	"math"
	"time"
)

// Seconds is a signed count of seconds since the application epoch
type Seconds int32

// Invalid is returned when the time is unknown or could not be fetched
const Invalid Seconds = math.MinInt32

// SecondsPerDay is the number of seconds in a day, no leap seconds
const SecondsPerDay = 86400

// Reference instants of the time domains we convert from
var (
	NTPEpoch       = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
	UnixEpoch      = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)
	GPSEpoch       = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)
	ConverterEpoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// DefaultYear is the year of the default application epoch
const DefaultYear = 2050

// DefaultEpoch is the default application epoch, 2050-01-01T00:00:00Z
var DefaultEpoch = New(DefaultYear)

// Valid returns false for the Invalid sentinel
func (s Seconds) Valid() bool {
	return s != Invalid
}

// Convert maps unsigned seconds of an external time domain onto application
// epoch seconds. daysBetweenEpochs is the number of days from the reference
// date of the external domain to the application epoch.
//
// Both the offset and the shift use modulo 2^32 arithmetic, and the result is
// reinterpreted as signed. This selects, out of all the 2^32-periodic copies
// of the external timeline, the one within ±2^31 seconds of the application
// epoch, so the era number of the external domain is never needed.
// Zero is a regular timestamp here.
func Convert(sourceSeconds uint32, daysBetweenEpochs int32) Seconds {
	offset := uint32(SecondsPerDay) * uint32(daysBetweenEpochs)
	return Seconds(int32(sourceSeconds - offset))
}

// Epoch is the zero point of application epoch seconds
type Epoch struct {
	unix int64 // seconds from the Unix epoch
}

// New returns the epoch starting at January 1st of the given year, UTC
func New(year int) Epoch {
	return FromInstant(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC))
}

// FromInstant returns an epoch starting at an arbitrary instant,
// truncated to the whole second
func FromInstant(t time.Time) Epoch {
	return Epoch{unix: t.Unix()}
}

// Year returns the year the epoch starts in
func (e Epoch) Year() int {
	return e.Instant().Year()
}

// Instant returns the epoch as time.Time
func (e Epoch) Instant() time.Time {
	return time.Unix(e.unix, 0).UTC()
}

// SecondsFromUnixEpoch returns the number of seconds from 1970-01-01 to the epoch
func (e Epoch) SecondsFromUnixEpoch() int64 {
	return e.unix
}

// DaysFrom returns the number of whole days from the reference to the epoch
func (e Epoch) DaysFrom(reference time.Time) int32 {
	return int32((e.unix - reference.Unix()) / SecondsPerDay)
}

// FromNTP converts NTP seconds (any era) into epoch seconds
func (e Epoch) FromNTP(ntpSeconds uint32) Seconds {
	return Convert(ntpSeconds, e.DaysFrom(NTPEpoch))
}

// FromUnix converts Unix seconds, returns Invalid if the value doesn't fit
func (e Epoch) FromUnix(unixSeconds int64) Seconds {
	d := unixSeconds - e.unix
	if d <= math.MinInt32 || d > math.MaxInt32 {
		return Invalid
	}
	return Seconds(d)
}

// FromTime converts time.Time, zero time is Invalid
func (e Epoch) FromTime(t time.Time) Seconds {
	if t.IsZero() {
		return Invalid
	}
	return e.FromUnix(t.Unix())
}

// ToTime converts epoch seconds back into UTC time, Invalid gives zero time
func (e Epoch) ToTime(s Seconds) time.Time {
	if !s.Valid() {
		return time.Time{}
	}
	return time.Unix(e.unix+int64(s), 0).UTC()
}
