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

// period is the adaptive sync period, in seconds
type period struct {
	initial uint32
	steady  uint32
	value   uint32
}

func newPeriod(initial, steady uint32) *period {
	return &period{initial: initial, steady: steady, value: initial}
}

// reset goes straight to the steady state period
func (p *period) reset() uint32 {
	p.value = p.steady
	return p.value
}

// bump lengthens the period after a failure, never past steady
func (p *period) bump() uint32 {
	if p.value >= p.steady/2 {
		p.value = p.steady
	} else {
		p.value *= 2
	}
	return p.value
}
