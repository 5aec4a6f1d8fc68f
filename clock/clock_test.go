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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/facebook/timekeeper/epoch"
	"github.com/facebook/timekeeper/source"
)

func fakeRealtime(now time.Time) (*Realtime, *[]time.Duration) {
	steps := []time.Duration{}
	r := NewRealtime(epoch.DefaultEpoch)
	r.now = func() time.Time { return now }
	r.step = func(d time.Duration) error {
		steps = append(steps, d)
		return nil
	}
	return r, &steps
}

func TestRealtimeGetNow(t *testing.T) {
	r, _ := fakeRealtime(time.Unix(1700000000, 500000000))
	var _ source.TimeKeeper = r
	require.Equal(t, epoch.Seconds(-824608000), r.GetNow())

	r.SendRequest()
	require.True(t, r.IsResponseReady())
	require.Equal(t, epoch.Seconds(-824608000), r.ReadResponse())
}

func TestRealtimeSetNow(t *testing.T) {
	r, steps := fakeRealtime(time.Unix(1700000000, 250000000))

	r.SetNow(epoch.Invalid)
	r.SetNow(-824608000)
	require.Empty(t, *steps, "same second needs no step")

	r.SetNow(-824607990)
	require.Equal(t, []time.Duration{9750 * time.Millisecond}, *steps)

	r.SetNow(-824608010)
	require.Equal(t, -10250*time.Millisecond, (*steps)[1])
}

func TestRealtimeSetNowWithinQuantization(t *testing.T) {
	// host clock is correct and 50ms past a second boundary, the value was taken 100ms earlier
	host := time.Unix(1700000000, 50000000)
	r, steps := fakeRealtime(host)
	r.SetNow(epoch.DefaultEpoch.FromTime(host.Add(-100 * time.Millisecond)))
	require.Empty(t, *steps)

	// previous second and the next one are still within the truncation of s
	r.SetNow(-824608001)
	r.SetNow(-824607999)
	require.Empty(t, *steps)

	r.SetNow(-824608002)
	require.Equal(t, []time.Duration{-2050 * time.Millisecond}, *steps)
}

func TestRealtimeSetNowError(t *testing.T) {
	r, _ := fakeRealtime(time.Unix(1700000000, 0))
	calls := 0
	r.step = func(time.Duration) error {
		calls++
		return fmt.Errorf("operation not permitted")
	}
	r.SetNow(0)
	require.Equal(t, 1, calls)
}

func TestNanoTimeval(t *testing.T) {
	require.Equal(t, int64(1), nanoTimeval(1500*time.Millisecond).Sec)
	require.Equal(t, int64(500000000), nanoTimeval(1500*time.Millisecond).Usec)
	require.Equal(t, int64(-2), nanoTimeval(-1500*time.Millisecond).Sec)
	require.Equal(t, int64(500000000), nanoTimeval(-1500*time.Millisecond).Usec)
	require.Equal(t, int64(-1), nanoTimeval(-time.Second).Sec)
	require.Equal(t, int64(0), nanoTimeval(-time.Second).Usec)
}
