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
Package protocol implements the subset of the NTP packet format an SNTP
client needs: building a request, validating a server response and
extracting timestamps from it.
*/
package protocol

import (
	"time"
)

// SecondsToUnix is the number of seconds from the NTP epoch (1900) to the Unix epoch
const SecondsToUnix = uint32(2208988800)

// Time converts t into era 0 NTP seconds and 2^-32 fractions of a second
func Time(t time.Time) (seconds uint32, fractions uint32) {
	frac := (uint64(t.Nanosecond()) << 32) / uint64(time.Second)
	return uint32(t.Unix() + int64(SecondsToUnix)), uint32(frac)
}

// Unix converts era 0 NTP seconds and fractions into time.Time
func Unix(seconds, fractions uint32) time.Time {
	nanos := (uint64(fractions) * uint64(time.Second)) >> 32
	return time.Unix(int64(seconds)-int64(SecondsToUnix), int64(nanos))
}

// Exchange holds the four timestamps of one request/response round trip
type Exchange struct {
	ClientTransmit time.Time
	ServerReceive  time.Time
	ServerTransmit time.Time
	ClientReceive  time.Time
}

// NewExchange takes server timestamps from resp
func NewExchange(sent time.Time, resp *Packet, received time.Time) *Exchange {
	return &Exchange{
		ClientTransmit: sent,
		ServerReceive:  resp.ReceiveTime(),
		ServerTransmit: resp.TransmitTime(),
		ClientReceive:  received,
	}
}

// Delay is the one-way network delay, half of the round trip without server processing (RFC 958)
func (e *Exchange) Delay() time.Duration {
	d := (e.ServerReceive.Sub(e.ClientTransmit) + e.ClientReceive.Sub(e.ServerTransmit)) / 2
	if d < 0 {
		return -d
	}
	return d
}

// Offset is how far the server clock is ahead of the local one
func (e *Exchange) Offset() time.Duration {
	return e.ServerTransmit.Add(e.Delay()).Sub(e.ClientReceive)
}
