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

package source

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/facebook/timekeeper/epoch"
)

func TestBlocking(t *testing.T) {
	calls := 0
	now := epoch.Seconds(100)
	b := NewBlocking(func() epoch.Seconds {
		calls++
		return now
	})
	var _ TimeSource = b

	require.False(t, b.IsResponseReady())
	require.Equal(t, epoch.Invalid, b.ReadResponse(), "reading before request gives nothing")
	require.Equal(t, 0, calls)

	b.SendRequest()
	require.Equal(t, 1, calls)
	now = 200
	require.True(t, b.IsResponseReady())
	require.Equal(t, epoch.Seconds(100), b.ReadResponse(), "value is captured at request time")
	require.False(t, b.IsResponseReady(), "response is consumed")

	require.Equal(t, epoch.Seconds(200), b.GetNow())
	require.Equal(t, 2, calls)
}

func TestBlockingInvalid(t *testing.T) {
	b := NewBlocking(func() epoch.Seconds { return epoch.Invalid })
	b.SendRequest()
	require.True(t, b.IsResponseReady())
	require.Equal(t, epoch.Invalid, b.ReadResponse())
}
