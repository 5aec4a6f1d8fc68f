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

package tickclock

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/facebook/timekeeper/epoch"
	"github.com/facebook/timekeeper/source"
	"github.com/facebook/timekeeper/tick"
)

func TestUninitialized(t *testing.T) {
	c := New(tick.NewFake(0))
	require.False(t, c.IsInitialized())
	require.Equal(t, epoch.Invalid, c.GetNow())
	require.Equal(t, epoch.Invalid, c.LastSyncTime())
}

func TestSetNowInvalidIsNoop(t *testing.T) {
	counter := tick.NewFake(0)
	c := New(counter)
	c.SetNow(epoch.Invalid)
	require.False(t, c.IsInitialized())
	require.Equal(t, epoch.Invalid, c.GetNow())

	c.SetNow(1000)
	counter.Advance(3000)
	c.SetNow(epoch.Invalid)
	c.Sync(epoch.Invalid)
	require.Equal(t, epoch.Seconds(1003), c.GetNow())
}

func TestSetNowThenAdvance(t *testing.T) {
	counter := tick.NewFake(12345)
	c := New(counter)
	c.SetNow(1700000000)
	require.True(t, c.IsInitialized())
	require.Equal(t, epoch.Seconds(1700000000), c.GetNow())

	counter.Advance(999)
	require.Equal(t, epoch.Seconds(1700000000), c.GetNow(), "less than a second elapsed")
	counter.Advance(1)
	require.Equal(t, epoch.Seconds(1700000001), c.GetNow())
	counter.Advance(42 * tick.PerSecond)
	require.Equal(t, epoch.Seconds(1700000043), c.GetNow())
}

func TestSubSecondRemainderIsKept(t *testing.T) {
	counter := tick.NewFake(0)
	c := New(counter)
	c.SetNow(0)
	for i := 0; i < 10; i++ {
		counter.Advance(700)
		c.GetNow()
	}
	require.Equal(t, epoch.Seconds(7), c.GetNow())
}

func TestTickCounterWrap(t *testing.T) {
	counter := tick.NewFake(math.MaxUint32 - 500)
	c := New(counter)
	c.SetNow(100)
	counter.Advance(1500)
	require.Equal(t, uint32(999), counter.Millis())
	require.Equal(t, epoch.Seconds(101), c.GetNow())
}

func TestKeepAliveAcrossManyWraps(t *testing.T) {
	counter := tick.NewFake(0)
	c := New(counter)
	c.SetNow(-1000000000)
	keepAlive := c.KeepAlive()
	// 100 steps of 2^28 ticks is more than 6 full wraps of the counter
	for i := 0; i < 100; i++ {
		counter.Advance(1 << 28)
		keepAlive.Step()
	}
	require.Equal(t, epoch.Seconds(-1000000000+26843545), c.GetNow())
}

func TestSyncIsIdempotent(t *testing.T) {
	counter := tick.NewFake(0)
	updates := []Update{}
	c := New(counter, WithObserver(func(u Update) { updates = append(updates, u) }))
	c.Sync(500)
	c.Sync(500)
	require.Equal(t, epoch.Seconds(500), c.GetNow())
	require.Equal(t, epoch.Seconds(500), c.LastSyncTime())
	require.Equal(t, []Update{
		{Kind: Sync, Seconds: 500, First: true},
		{Kind: Sync, Seconds: 500},
	}, updates)
}

func TestObserverSeesKindAndSkew(t *testing.T) {
	counter := tick.NewFake(0)
	updates := []Update{}
	c := New(counter, WithObserver(func(u Update) { updates = append(updates, u) }))
	c.SetNow(1000)
	counter.Advance(10 * tick.PerSecond)
	c.Sync(1013)
	counter.Advance(5 * tick.PerSecond)
	c.SetNow(1000)

	require.Equal(t, []Update{
		{Kind: Manual, Seconds: 1000, First: true},
		{Kind: Sync, Seconds: 1013, Skew: 3},
		{Kind: Manual, Seconds: 1000, Skew: -18},
	}, updates)
	require.Equal(t, epoch.Seconds(-18), c.LastSkew())
	require.Equal(t, epoch.Seconds(1013), c.LastSyncTime(), "manual set is not a sync")
	require.Equal(t, "manual", Manual.String())
	require.Equal(t, "sync", Sync.String())
}

func TestBackupWriteThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	backup := source.NewMockTimeKeeper(ctrl)
	other := source.NewMockTimeSource(ctrl)

	c := New(tick.NewFake(0), WithBackup(backup), WithSyncSource(other))
	backup.EXPECT().SetNow(epoch.Seconds(10)).Times(1)
	backup.EXPECT().SetNow(epoch.Seconds(20)).Times(1)
	c.SetNow(10)
	c.Sync(20)
	c.SetNow(epoch.Invalid)
}

func TestBackupIsSyncSource(t *testing.T) {
	ctrl := gomock.NewController(t)
	backup := source.NewMockTimeKeeper(ctrl)

	c := New(tick.NewFake(0), WithBackup(backup), WithSyncSource(backup))
	backup.EXPECT().SetNow(gomock.Any()).Times(0)
	c.Sync(20)
	require.Equal(t, epoch.Seconds(20), c.GetNow())
}

func TestSetupRestoresFromBackup(t *testing.T) {
	ctrl := gomock.NewController(t)
	backup := source.NewMockTimeKeeper(ctrl)
	updates := []Update{}
	c := New(tick.NewFake(0), WithBackup(backup), WithObserver(func(u Update) { updates = append(updates, u) }))

	backup.EXPECT().GetNow().Return(epoch.Seconds(42))
	c.Setup()
	require.Equal(t, epoch.Seconds(42), c.GetNow())
	require.Equal(t, []Update{{Kind: Restore, Seconds: 42, First: true}}, updates)
	require.Equal(t, epoch.Invalid, c.LastSyncTime())
}

func TestSetupWithInvalidBackup(t *testing.T) {
	ctrl := gomock.NewController(t)
	backup := source.NewMockTimeKeeper(ctrl)
	c := New(tick.NewFake(0), WithBackup(backup))

	backup.EXPECT().GetNow().Return(epoch.Invalid)
	c.Setup()
	require.False(t, c.IsInitialized())

	// no backup, nothing to do
	New(tick.NewFake(0)).Setup()
}

func TestSecondsWrapSkipsInvalid(t *testing.T) {
	counter := tick.NewFake(0)
	c := New(counter)
	c.SetNow(math.MaxInt32)

	counter.Advance(tick.PerSecond)
	require.True(t, c.GetNow().Valid())
	require.Equal(t, epoch.Seconds(math.MinInt32+1), c.GetNow())

	counter.Advance(tick.PerSecond)
	require.Equal(t, epoch.Seconds(math.MinInt32+1), c.GetNow())
	counter.Advance(tick.PerSecond)
	require.Equal(t, epoch.Seconds(math.MinInt32+2), c.GetNow())
}
