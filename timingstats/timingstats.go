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
Package timingstats records round-trip latency of successful synchronizations.

All values are in ticks of the tick counter. Counters saturate instead of
wrapping, so a long running process ends up with a pinned maximum rather than
a small bogus number.
*/
package timingstats

import (
	"math"
	"sync"

	"github.com/eclesh/welford"
)

// Snapshot is a point-in-time copy of Stats
type Snapshot struct {
	Count       uint32  `json:"count"`
	Min         uint32  `json:"min"`
	Max         uint32  `json:"max"`
	Sum         uint64  `json:"sum"`
	Avg         float64 `json:"avg"`
	ExpDecayAvg float64 `json:"exp_decay_avg"`
	Stddev      float64 `json:"stddev"`
}

// Stats accumulates latency samples, safe for concurrent use
type Stats struct {
	sync.Mutex
	count       uint32
	min         uint32
	max         uint32
	sum         uint64
	expDecayAvg float64
	w           *welford.Stats
}

// New returns empty Stats
func New() *Stats {
	s := &Stats{}
	s.resetLocked()
	return s
}

func (s *Stats) resetLocked() {
	s.count = 0
	s.min = math.MaxUint32
	s.max = 0
	s.sum = 0
	s.expDecayAvg = 0
	s.w = welford.New()
}

// Reset drops all samples
func (s *Stats) Reset() {
	s.Lock()
	defer s.Unlock()
	s.resetLocked()
}

// Add records one latency sample
func (s *Stats) Add(ticks uint32) {
	s.Lock()
	defer s.Unlock()
	if s.count < math.MaxUint32 {
		s.count++
	}
	if ticks < s.min {
		s.min = ticks
	}
	if ticks > s.max {
		s.max = ticks
	}
	if s.sum > math.MaxUint64-uint64(ticks) {
		s.sum = math.MaxUint64
	} else {
		s.sum += uint64(ticks)
	}
	if s.count == 1 {
		s.expDecayAvg = float64(ticks)
	} else {
		s.expDecayAvg = (s.expDecayAvg + float64(ticks)) / 2
	}
	s.w.Add(float64(ticks))
}

// Count returns number of samples
func (s *Stats) Count() uint32 {
	s.Lock()
	defer s.Unlock()
	return s.count
}

// Min returns the smallest sample, 0 if there are none
func (s *Stats) Min() uint32 {
	s.Lock()
	defer s.Unlock()
	if s.count == 0 {
		return 0
	}
	return s.min
}

// Max returns the largest sample
func (s *Stats) Max() uint32 {
	s.Lock()
	defer s.Unlock()
	return s.max
}

// Avg returns arithmetic mean of all samples
func (s *Stats) Avg() float64 {
	s.Lock()
	defer s.Unlock()
	return s.avgLocked()
}

func (s *Stats) avgLocked() float64 {
	if s.count == 0 {
		return 0
	}
	return float64(s.sum) / float64(s.count)
}

// ExpDecayAvg returns the average where every new sample weighs as much as all previous ones
func (s *Stats) ExpDecayAvg() float64 {
	s.Lock()
	defer s.Unlock()
	return s.expDecayAvg
}

// Stddev returns standard deviation of samples
func (s *Stats) Stddev() float64 {
	s.Lock()
	defer s.Unlock()
	return s.stddevLocked()
}

func (s *Stats) stddevLocked() float64 {
	if s.count < 2 {
		return 0
	}
	return s.w.Stddev()
}

// Snapshot returns a copy of current values
func (s *Stats) Snapshot() Snapshot {
	s.Lock()
	defer s.Unlock()
	snap := Snapshot{
		Count:       s.count,
		Max:         s.max,
		Sum:         s.sum,
		Avg:         s.avgLocked(),
		ExpDecayAvg: s.expDecayAvg,
		Stddev:      s.stddevLocked(),
	}
	if s.count > 0 {
		snap.Min = s.min
	}
	return snap
}
