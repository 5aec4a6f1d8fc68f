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
Package source defines the capability the synchronization scheduler consumes
from authoritative time sources (NTP servers, RTC chips, host clocks).

Every source offers a synchronous GetNow and an asynchronous
SendRequest / IsResponseReady / ReadResponse trio, so the scheduler never has
to block on network or hardware I/O. Sources whose reads are fast can use
Blocking to provide the trio on top of GetNow.
*/
package source

//go:generate mockgen -source=source.go -destination=mock_source.go -package=source

import (
	"github.com/facebook/timekeeper/epoch"
)

// TimeSource is something we can get authoritative time from
type TimeSource interface {
	// GetNow returns current time, may block the caller. Invalid on failure.
	GetNow() epoch.Seconds
	// SendRequest begins an asynchronous fetch, fire-and-forget
	SendRequest()
	// IsResponseReady is a non-blocking poll, true once ReadResponse can be called
	IsResponseReady() bool
	// ReadResponse consumes the ready result. Invalid if the response is malformed.
	ReadResponse() epoch.Seconds
}

// TimeKeeper is a TimeSource whose time can also be set, like an RTC chip
type TimeKeeper interface {
	TimeSource
	// SetNow sets the time. Invalid must be ignored.
	SetNow(s epoch.Seconds)
}

// Blocking implements the asynchronous trio on top of a synchronous read.
// SendRequest performs the read, the response is ready immediately.
// Not safe for concurrent use.
type Blocking struct {
	getNow func() epoch.Seconds
	ready  bool
	value  epoch.Seconds
}

// NewBlocking returns Blocking reading time with getNow
func NewBlocking(getNow func() epoch.Seconds) *Blocking {
	return &Blocking{getNow: getNow, value: epoch.Invalid}
}

// GetNow implements TimeSource
func (b *Blocking) GetNow() epoch.Seconds {
	return b.getNow()
}

// SendRequest implements TimeSource
func (b *Blocking) SendRequest() {
	b.value = b.getNow()
	b.ready = true
}

// IsResponseReady implements TimeSource
func (b *Blocking) IsResponseReady() bool {
	return b.ready
}

// ReadResponse implements TimeSource
func (b *Blocking) ReadResponse() epoch.Seconds {
	if !b.ready {
		return epoch.Invalid
	}
	b.ready = false
	v := b.value
	b.value = epoch.Invalid
	return v
}
