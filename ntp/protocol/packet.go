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

package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// PacketSizeBytes sets the size of NTP packet
const PacketSizeBytes = 48

// Packet is an NTPv4 packet
/*
http://seriot.ch/ntp.php
https://tools.ietf.org/html/rfc958
   0                   1                   2                   3
   0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
0 +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |LI | VN  |Mode |    Stratum     |     Poll      |  Precision   |
4 +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                         Root Delay                            |
8 +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                         Root Dispersion                       |
12+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                          Reference ID                         |
16+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                                                               |
  +                     Reference Timestamp (64)                  +
  |                                                               |
24+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                                                               |
  +                      Origin Timestamp (64)                    +
  |                                                               |
32+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                                                               |
  +                      Receive Timestamp (64)                   +
  |                                                               |
40+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
  |                                                               |
  +                      Transmit Timestamp (64)                  +
  |                                                               |
48+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/
type Packet struct {
	Settings       uint8  // leap year indicator, version number and mode
	Stratum        uint8  // stratum
	Poll           int8   // poll. Power of 2
	Precision      int8   // precision. Power of 2
	RootDelay      uint32 // total delay to the reference clock
	RootDispersion uint32 // total dispersion to the reference clock
	ReferenceID    uint32 // identifier of server or a reference clock
	RefTimeSec     uint32 // last time local clock was updated sec
	RefTimeFrac    uint32 // last time local clock was updated frac
	OrigTimeSec    uint32 // client time sec
	OrigTimeFrac   uint32 // client time frac
	RxTimeSec      uint32 // receive time sec
	RxTimeFrac     uint32 // receive time frac
	TxTimeSec      uint32 // transmit time sec
	TxTimeFrac     uint32 // transmit time frac
}

// Leap indicator, version and mode values
const (
	LINoWarning      = 0
	LIAlarmCondition = 3
	VNFirst          = 1
	VNLast           = 4
	ModeClient       = 3
	ModeServer       = 4
)

// Errors returned by ValidateResponse
var (
	ErrShortPacket    = errors.New("packet is too short")
	ErrBadMode        = errors.New("not a server response")
	ErrBadVersion     = errors.New("unsupported version")
	ErrUnsynchronized = errors.New("server is not synchronized")
	ErrKissOfDeath    = errors.New("kiss-o'-death from server")
	ErrOriginMismatch = errors.New("origin timestamp does not match request")
)

// Settings packs leap indicator, version and mode into the first byte
func Settings(li, vn, mode uint8) uint8 {
	return li<<6 | (vn&0x7)<<3 | mode&0x7
}

// LI returns leap indicator
func (p *Packet) LI() uint8 {
	return p.Settings >> 6
}

// VN returns version number
func (p *Packet) VN() uint8 {
	return (p.Settings << 2) >> 5
}

// Mode returns association mode
func (p *Packet) Mode() uint8 {
	return (p.Settings << 5) >> 5
}

// ValidSettingsFormat verifies that LI | VN  |Mode fields are set correctly
// for a client request:
// LN:must be 0 or 3
// VN:must be 1,2,3 or 4
// Mode:must be 3
func (p *Packet) ValidSettingsFormat() bool {
	l, v, m := p.LI(), p.VN(), p.Mode()
	if (l == LINoWarning) || (l == LIAlarmCondition) {
		if (v >= VNFirst) && (v <= VNLast) {
			if m == ModeClient {
				return true
			}
		}
	}
	return false
}

// NewRequest returns a client request stamped with transmit time t.
// The server echoes the transmit timestamp back as origin timestamp.
func NewRequest(t time.Time) *Packet {
	sec, frac := Time(t)
	return &Packet{
		Settings:   Settings(LINoWarning, VNLast, ModeClient),
		TxTimeSec:  sec,
		TxTimeFrac: frac,
	}
}

// ValidateResponse checks p is a usable server answer to request
func (p *Packet) ValidateResponse(request *Packet) error {
	if p.Mode() != ModeServer {
		return fmt.Errorf("%w: mode %d", ErrBadMode, p.Mode())
	}
	if v := p.VN(); v < VNFirst || v > VNLast {
		return fmt.Errorf("%w: %d", ErrBadVersion, v)
	}
	if p.Stratum == 0 {
		return ErrKissOfDeath
	}
	if p.LI() == LIAlarmCondition {
		return ErrUnsynchronized
	}
	if p.OrigTimeSec != request.TxTimeSec || p.OrigTimeFrac != request.TxTimeFrac {
		return ErrOriginMismatch
	}
	return nil
}

// ReceiveTime returns when the server received the request
func (p *Packet) ReceiveTime() time.Time {
	return Unix(p.RxTimeSec, p.RxTimeFrac)
}

// TransmitTime returns when the server sent the response
func (p *Packet) TransmitTime() time.Time {
	return Unix(p.TxTimeSec, p.TxTimeFrac)
}

// Bytes converts Packet to []bytes
func (p *Packet) Bytes() ([]byte, error) {
	var bytes bytes.Buffer
	err := binary.Write(&bytes, binary.BigEndian, p)
	return bytes.Bytes(), err
}

// BytesToPacket converts []bytes to Packet
func BytesToPacket(ntpPacketBytes []byte) (*Packet, error) {
	packet := &Packet{}
	if len(ntpPacketBytes) < PacketSizeBytes {
		return packet, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(ntpPacketBytes))
	}
	reader := bytes.NewReader(ntpPacketBytes)
	err := binary.Read(reader, binary.BigEndian, packet)
	return packet, err
}
