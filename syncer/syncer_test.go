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

package syncer

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/facebook/timekeeper/epoch"
	"github.com/facebook/timekeeper/source"
	"github.com/facebook/timekeeper/tick"
	"github.com/facebook/timekeeper/tickclock"
	"github.com/facebook/timekeeper/timingstats"
)

type fakeStats map[string]int64

func (f fakeStats) SetCounter(key string, val int64)        { f[key] = val }
func (f fakeStats) UpdateCounterBy(key string, count int64) { f[key] += count }

func TestConfigValidate(t *testing.T) {
	good := DefaultConfig()
	require.NoError(t, good.Validate())

	for _, tc := range []struct {
		name string
		mod  func(*Config)
	}{
		{"zero sync period", func(c *Config) { c.SyncPeriod = 0 }},
		{"zero initial period", func(c *Config) { c.InitialSyncPeriod = 0 }},
		{"initial above steady", func(c *Config) { c.InitialSyncPeriod = c.SyncPeriod + 1 }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"timeout as long as period", func(c *Config) { c.SyncPeriod = 5; c.RequestTimeout = 5 * time.Second }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig()
			tc.mod(&c)
			require.Error(t, c.Validate())
		})
	}
}

func TestConfigClamped(t *testing.T) {
	require.Equal(t, Config{SyncPeriod: 1, InitialSyncPeriod: 1, RequestTimeout: time.Millisecond}, Config{}.clamped())
	require.Equal(t, Config{SyncPeriod: 10, InitialSyncPeriod: 10, RequestTimeout: time.Second},
		Config{SyncPeriod: 10, InitialSyncPeriod: 20, RequestTimeout: time.Second}.clamped())
	require.Equal(t, DefaultConfig(), DefaultConfig().clamped())
}

func TestStrings(t *testing.T) {
	require.Equal(t, "SLEEPING", StateSleeping.String())
	require.Equal(t, "MALFORMED", StatusMalformed.String())
}

func TestNeverReadyBacksOff(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := source.NewMockTimeSource(ctrl)
	src.EXPECT().SendRequest().Times(13)
	src.EXPECT().IsResponseReady().Return(false).AnyTimes()

	counter := tick.NewFake(0)
	clock := tickclock.New(counter)
	stats := fakeStats{}
	s := New(DefaultConfig(), clock, src, counter, WithStats(stats))
	require.Equal(t, int64(5), stats[CounterPeriod])

	s.Step()
	require.Equal(t, StateWaiting, s.Status().State)

	periods := []uint32{}
	for i := 0; i < 12; i++ {
		counter.Advance(999)
		s.Step()
		require.Equal(t, StateWaiting, s.Status().State, "timeout is not reached yet")
		counter.Advance(1)
		s.Step()
		st := s.Status()
		require.Equal(t, StateSleeping, st.State)
		require.Equal(t, StatusTimedOut, st.LastStatus)
		periods = append(periods, st.CurrentPeriod)

		counter.Advance(st.CurrentPeriod*tick.PerSecond - 1)
		s.Step()
		require.Equal(t, StateSleeping, s.Status().State, "sleep is not over yet")
		counter.Advance(1)
		s.Step()
		require.Equal(t, StateWaiting, s.Status().State)
	}
	require.Equal(t, []uint32{5, 10, 20, 40, 80, 160, 320, 640, 1280, 2560, 3600, 3600}, periods)
	require.False(t, clock.IsInitialized())
	require.Equal(t, epoch.Invalid, clock.GetNow())
	require.Equal(t, int64(13), stats[CounterRequests])
	require.Equal(t, int64(12), stats[CounterTimeouts])
	require.Equal(t, int64(0), stats[CounterSuccess])
	require.Equal(t, int64(3600), stats[CounterPeriod])
}

func TestReadyImmediately(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := source.NewMockTimeSource(ctrl)
	src.EXPECT().SendRequest().Times(1)
	src.EXPECT().IsResponseReady().Return(true).Times(1)
	src.EXPECT().ReadResponse().Return(epoch.Seconds(1700000000)).Times(1)

	counter := tick.NewFake(0)
	clock := tickclock.New(counter)
	ts := timingstats.New()
	s := New(DefaultConfig(), clock, src, counter, WithTimingStats(ts))
	s.Step()

	require.Equal(t, epoch.Seconds(1700000000), clock.GetNow())
	st := s.Status()
	require.Equal(t, StateSleeping, st.State)
	require.Equal(t, StatusOK, st.LastStatus)
	require.Equal(t, uint32(3600), st.CurrentPeriod)
	require.Equal(t, uint32(3600), st.SecondsToSyncAttempt)
	require.Equal(t, uint32(1), ts.Count())
	require.Equal(t, uint32(0), ts.Max())

	counter.Advance(1500)
	st = s.Status()
	require.Equal(t, uint32(3599), st.SecondsToSyncAttempt)
	require.Equal(t, uint32(1), st.SecondsSinceSyncAttempt)
}

func TestSuccessResetsPeriod(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := source.NewMockTimeSource(ctrl)
	src.EXPECT().SendRequest().Times(2)
	gomock.InOrder(
		src.EXPECT().IsResponseReady().Return(false).Times(3),
		src.EXPECT().IsResponseReady().Return(true).Times(1),
	)
	src.EXPECT().ReadResponse().Return(epoch.Seconds(1234)).Times(1)

	counter := tick.NewFake(0)
	clock := tickclock.New(counter)
	ts := timingstats.New()
	stats := fakeStats{}
	s := New(DefaultConfig(), clock, src, counter, WithTimingStats(ts), WithStats(stats))

	s.Step()
	counter.Advance(1000)
	s.Step()
	require.Equal(t, StatusTimedOut, s.Status().LastStatus)
	counter.Advance(5 * tick.PerSecond)
	s.Step()
	st := s.Status()
	require.Equal(t, StateWaiting, st.State)
	require.Equal(t, uint32(10), st.CurrentPeriod)

	counter.Advance(300)
	s.Step()
	st = s.Status()
	require.Equal(t, StatusOK, st.LastStatus)
	require.Equal(t, uint32(3600), st.CurrentPeriod, "success resets the period fully")
	require.Equal(t, epoch.Seconds(1234), clock.GetNow())
	require.Equal(t, uint32(300), ts.Max())
	require.Equal(t, int64(1), stats[CounterSuccess])
	require.Equal(t, int64(3600), stats[CounterPeriod])
}

func TestSuccessDoesNotBackOff(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := source.NewMockTimeSource(ctrl)
	src.EXPECT().SendRequest().Times(2)
	src.EXPECT().IsResponseReady().Return(true).Times(2)
	src.EXPECT().ReadResponse().Return(epoch.Seconds(10)).Times(1)
	src.EXPECT().ReadResponse().Return(epoch.Seconds(3610)).Times(1)

	counter := tick.NewFake(0)
	clock := tickclock.New(counter)
	cfg := Config{SyncPeriod: 100, InitialSyncPeriod: 10, RequestTimeout: time.Second}
	s := New(cfg, clock, src, counter)
	s.Step()
	counter.Advance(100 * tick.PerSecond)
	s.Step()
	require.Equal(t, uint32(100), s.Status().CurrentPeriod)
	require.Equal(t, epoch.Seconds(3610), clock.GetNow())
}

func TestMalformedIsTreatedAsTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := source.NewMockTimeSource(ctrl)
	src.EXPECT().SendRequest().Times(2)
	src.EXPECT().IsResponseReady().Return(true).Times(1)
	src.EXPECT().IsResponseReady().Return(false).AnyTimes()
	src.EXPECT().ReadResponse().Return(epoch.Invalid).Times(1)

	counter := tick.NewFake(0)
	clock := tickclock.New(counter)
	ts := timingstats.New()
	stats := fakeStats{}
	s := New(DefaultConfig(), clock, src, counter, WithTimingStats(ts), WithStats(stats))
	s.Step()

	st := s.Status()
	require.Equal(t, StatusMalformed, st.LastStatus)
	require.Equal(t, StateSleeping, st.State)
	require.False(t, clock.IsInitialized())
	require.Equal(t, uint32(0), ts.Count())
	require.Equal(t, int64(1), stats[CounterMalformed])

	counter.Advance(5 * tick.PerSecond)
	s.Step()
	require.Equal(t, uint32(10), s.Status().CurrentPeriod)
}

func TestTimeoutAcrossTickWrap(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := source.NewMockTimeSource(ctrl)
	src.EXPECT().SendRequest().Times(1)
	src.EXPECT().IsResponseReady().Return(false).AnyTimes()

	counter := tick.NewFake(math.MaxUint32 - 200)
	s := New(DefaultConfig(), tickclock.New(counter), src, counter)
	s.Step()
	counter.Advance(500)
	s.Step()
	require.Equal(t, StateWaiting, s.Status().State)
	counter.Advance(500)
	s.Step()
	require.Equal(t, StateSleeping, s.Status().State)
}

func TestDisabledWithoutSource(t *testing.T) {
	counter := tick.NewFake(0)
	clock := tickclock.New(counter)
	s := New(DefaultConfig(), clock, nil, counter)
	for i := 0; i < 10; i++ {
		s.Step()
		counter.Advance(10 * tick.PerSecond)
	}
	require.Equal(t, StateDisabled, s.Status().State)
	require.Equal(t, uint32(0), s.Status().SecondsSinceSyncAttempt)
	require.False(t, clock.IsInitialized())
}

func TestRun(t *testing.T) {
	counter := tick.NewMonotonic()
	clock := tickclock.New(counter)
	src := source.NewBlocking(func() epoch.Seconds { return 42 })
	s := New(DefaultConfig(), clock, src, counter)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.Run(ctx, time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, epoch.Seconds(42), clock.GetNow())
	require.Equal(t, StatusOK, s.Status().LastStatus)
}

func TestZeroConfigStepReturns(t *testing.T) {
	counter := tick.NewFake(0)
	clock := tickclock.New(counter)
	reads := 0
	src := source.NewBlocking(func() epoch.Seconds {
		reads++
		return 42
	})
	s := New(Config{}, clock, src, counter)

	done := make(chan struct{})
	go func() {
		s.Step()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Step did not yield")
	}
	require.Equal(t, 1, reads)
	require.Equal(t, uint32(1), s.Status().CurrentPeriod)

	// sleep of one second is over, the next Step sends exactly one more request
	counter.Advance(tick.PerSecond)
	s.Step()
	require.Equal(t, 2, reads)
	require.Equal(t, StateSleeping, s.Status().State)
}

func TestOneRequestPerStep(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := source.NewMockTimeSource(ctrl)
	src.EXPECT().SendRequest().Times(2)
	src.EXPECT().IsResponseReady().Return(true).Times(2)
	src.EXPECT().ReadResponse().Return(epoch.Seconds(7)).Times(2)

	counter := tick.NewFake(0)
	cfg := Config{SyncPeriod: 1, InitialSyncPeriod: 1, RequestTimeout: time.Millisecond}
	s := New(cfg, tickclock.New(counter), src, counter)
	s.Step()
	// far past the sleep, still only one exchange per Step
	counter.Advance(10 * tick.PerSecond)
	s.Step()
	require.Equal(t, StateSleeping, s.Status().State)
}

func TestLatencyIncludesRead(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := source.NewMockTimeSource(ctrl)
	counter := tick.NewFake(0)
	src.EXPECT().SendRequest().Times(1)
	src.EXPECT().IsResponseReady().DoAndReturn(func() bool {
		counter.Advance(30)
		return true
	}).Times(1)
	src.EXPECT().ReadResponse().DoAndReturn(func() epoch.Seconds {
		counter.Advance(20)
		return 1000
	}).Times(1)

	ts := timingstats.New()
	s := New(DefaultConfig(), tickclock.New(counter), src, counter, WithTimingStats(ts))
	s.Step()
	require.Equal(t, uint32(50), ts.Max())
}
