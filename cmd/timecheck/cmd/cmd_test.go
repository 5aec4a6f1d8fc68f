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

package cmd

import (
	"bytes"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/facebook/timekeeper/daemon"
	"github.com/facebook/timekeeper/epoch"
	"github.com/facebook/timekeeper/ntp/protocol"
	"github.com/facebook/timekeeper/source/ntp"
	"github.com/facebook/timekeeper/syncer"
)

const unixTime = 1700000000

func TestConvert(t *testing.T) {
	ep := epoch.New(2050)

	s, err := convert(ep, "3908988800", false)
	require.NoError(t, err)
	require.Equal(t, epoch.Seconds(-824608000), s)

	s, err = convert(ep, strconv.Itoa(unixTime), true)
	require.NoError(t, err)
	require.Equal(t, epoch.Seconds(-824608000), s)

	_, err = convert(ep, "4294967296", false)
	require.Error(t, err)
	_, err = convert(ep, "yesterday", true)
	require.Error(t, err)
}

func TestParseTarget(t *testing.T) {
	ep := epoch.New(2050)
	now := time.Unix(unixTime, 0)

	s, err := parseTarget(ep, "now", now)
	require.NoError(t, err)
	require.Equal(t, epoch.Seconds(-824608000), s)

	s, err = parseTarget(ep, "-42", now)
	require.NoError(t, err)
	require.Equal(t, epoch.Seconds(-42), s)

	_, err = parseTarget(ep, "-2147483648", now)
	require.Error(t, err)
	_, err = parseTarget(ep, "soon", now)
	require.Error(t, err)
}

func TestFmtSeconds(t *testing.T) {
	ep := epoch.New(2050)
	require.Equal(t, "0 (2050-01-01 00:00:00 UTC)", fmtSeconds(ep, 0))
	require.Contains(t, fmtSeconds(ep, epoch.Invalid), "invalid")
}

func TestDescribe(t *testing.T) {
	ep := epoch.New(2050)
	require.Equal(t, "SLEEPING", describe(ep, daemon.CounterState, int64(syncer.StateSleeping)))
	require.Equal(t, okString, describe(ep, daemon.CounterHealthOK, 1))
	require.Equal(t, failString, describe(ep, daemon.CounterInitialized, 0))
	require.Equal(t, "", describe(ep, syncer.CounterRequests, 12))
}

func TestFetchCountersAndStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"%s": 1, "%s": 7}`, daemon.CounterInitialized, syncer.CounterRequests)
	}))
	defer ts.Close()

	counters, err := FetchCounters(ts.URL)
	require.NoError(t, err)
	require.Equal(t, Counters{daemon.CounterInitialized: 1, syncer.CounterRequests: 7}, counters)

	var out bytes.Buffer
	statusRun(&out, counters)
	require.Contains(t, out.String(), daemon.CounterInitialized)
	require.Contains(t, out.String(), syncer.CounterRequests)
}

func TestFetchCountersNoServer(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()
	_, err := FetchCounters(url)
	require.Error(t, err)
}

// startResponder answers every request with current time, stratum is put into responses as is
func startResponder(t *testing.T, stratum uint8) *net.UDPConn {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv6loopback})
	require.NoError(t, err)
	go func() {
		buf := make([]byte, 1024)
		for {
			n, addr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			req, err := protocol.BytesToPacket(buf[:n])
			if err != nil {
				continue
			}
			sec, frac := protocol.Time(time.Now())
			resp := &protocol.Packet{
				Settings:     protocol.Settings(protocol.LINoWarning, protocol.VNLast, protocol.ModeServer),
				Stratum:      stratum,
				OrigTimeSec:  req.TxTimeSec,
				OrigTimeFrac: req.TxTimeFrac,
				RxTimeSec:    sec,
				RxTimeFrac:   frac,
				TxTimeSec:    sec,
				TxTimeFrac:   frac,
			}
			b, err := resp.Bytes()
			if err != nil {
				continue
			}
			_, _ = conn.WriteToUDP(b, addr)
		}
	}()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestRawExchange(t *testing.T) {
	conn := startResponder(t, 1)
	r, err := rawExchange(conn.LocalAddr().String(), time.Second)
	require.NoError(t, err)
	require.Equal(t, uint8(1), r.response.Stratum)
	require.Less(t, r.exchange.Delay(), time.Second)
	require.Less(t, r.exchange.Offset().Abs(), time.Second)
}

func TestRawExchangeKissOfDeath(t *testing.T) {
	conn := startResponder(t, 0)
	r, err := rawExchange(conn.LocalAddr().String(), time.Second)
	require.ErrorIs(t, err, protocol.ErrKissOfDeath)
	require.NotNil(t, r.response)
	require.Nil(t, r.exchange)
}

func TestPollResponse(t *testing.T) {
	conn := startResponder(t, 1)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	c := ntp.NewClient(ntp.Config{Server: "::1", Port: port, Timeout: time.Second}, epoch.New(2050))
	defer c.Close()

	s, latency, err := pollResponse(c, time.Second, time.Millisecond)
	require.NoError(t, err)
	require.True(t, s.Valid())
	require.Less(t, latency, time.Second)
}

func TestPollResponseTimeout(t *testing.T) {
	conn := startResponder(t, 1)
	port := conn.LocalAddr().(*net.UDPAddr).Port
	conn.Close()
	c := ntp.NewClient(ntp.Config{Server: "::1", Port: port, Timeout: time.Second}, epoch.New(2050))
	defer c.Close()

	s, _, err := pollResponse(c, 50*time.Millisecond, time.Millisecond)
	require.Error(t, err)
	require.False(t, s.Valid())
}
