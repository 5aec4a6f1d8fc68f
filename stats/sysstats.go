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

package stats

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Resource usage counters of the daemon process
const (
	CounterUptime      = "process.uptime_s"
	CounterCPU         = "process.cpu_permil"
	CounterRSS         = "process.rss_bytes"
	CounterFDs         = "process.num_fds"
	CounterThreads     = "process.num_threads"
	CounterGoroutines  = "runtime.goroutines"
	CounterHeapInuse   = "runtime.heap_inuse_bytes"
	CounterGCCount     = "runtime.gc_count"
	CounterGCSince     = "runtime.gc_since_last"
	CounterGCPauseMaxU = "runtime.gc_pause_max_us"
)

// SysStats samples resource usage of the daemon. GC pauses are tracked
// between samples since they delay the poll loop stepping the scheduler.
type SysStats struct {
	start  time.Time
	proc   *process.Process
	lastGC uint32
}

// NewSysStats returns SysStats measuring uptime from now
func NewSysStats() *SysStats {
	return &SysStats{start: time.Now()}
}

// Collect returns one sample of counters
func (s *SysStats) Collect() (map[string]int64, error) {
	if s.proc == nil {
		proc, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			return nil, err
		}
		s.proc = proc
	}
	sample := map[string]int64{
		CounterUptime: int64(time.Since(s.start).Seconds()),
	}
	if val, err := s.proc.Percent(0); err == nil {
		sample[CounterCPU] = int64(val * 1000)
	}
	if val, err := s.proc.MemoryInfo(); err == nil {
		sample[CounterRSS] = int64(val.RSS)
	}
	if val, err := s.proc.NumFDs(); err == nil {
		sample[CounterFDs] = int64(val)
	}
	if val, err := s.proc.NumThreads(); err == nil {
		sample[CounterThreads] = int64(val)
	}

	m := &runtime.MemStats{}
	runtime.ReadMemStats(m)
	sample[CounterGoroutines] = int64(runtime.NumGoroutine())
	sample[CounterHeapInuse] = int64(m.HeapInuse)
	sample[CounterGCCount] = int64(m.NumGC)
	sample[CounterGCSince] = int64(m.NumGC - s.lastGC)
	sample[CounterGCPauseMaxU] = int64(maxPause(m, s.lastGC) / time.Microsecond)
	s.lastGC = m.NumGC
	return sample, nil
}

// maxPause is the longest GC pause after GC number since, limited to the pauses MemStats still remembers
func maxPause(m *runtime.MemStats, since uint32) time.Duration {
	ring := uint32(len(m.PauseNs))
	if m.NumGC-since > ring {
		since = m.NumGC - ring
	}
	var longest uint64
	for i := since; i < m.NumGC; i++ {
		if p := m.PauseNs[i%ring]; p > longest {
			longest = p
		}
	}
	return time.Duration(longest)
}

// Export collects a sample and sets it as counters in st
func (s *SysStats) Export(st StatsServer) error {
	sample, err := s.Collect()
	if err != nil {
		return err
	}
	for k, v := range sample {
		st.SetCounter(k, v)
	}
	return nil
}
