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
Package coop implements a minimal cooperative run loop.

Tasks are stepped one after another from a single goroutine. A Task must do a
bounded amount of work per Step and return instead of blocking, so one slow
task never starves the others.
*/
package coop

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Task is a unit of cooperative work
type Task interface {
	Step()
}

// TaskFunc allows using a plain function as a Task
type TaskFunc func()

// Step implements Task
func (f TaskFunc) Step() {
	f()
}

// Runner steps all its tasks in a loop
type Runner struct {
	interval time.Duration
	tasks    []Task
}

// NewRunner returns a runner stepping tasks every interval
func NewRunner(interval time.Duration) *Runner {
	return &Runner{interval: interval}
}

// Add registers a task. Not safe to call while running.
func (r *Runner) Add(t Task) {
	r.tasks = append(r.tasks, t)
}

// Len returns number of registered tasks
func (r *Runner) Len() int {
	return len(r.tasks)
}

// RunOnce steps every task once, in the order they were added
func (r *Runner) RunOnce() {
	for _, t := range r.tasks {
		t.Step()
	}
}

// Run steps tasks until ctx is cancelled
func (r *Runner) Run(ctx context.Context) error {
	log.Debugf("running %d tasks every %v", len(r.tasks), r.interval)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug("cancelled run loop")
			return ctx.Err()
		case <-timer.C:
			timer.Reset(r.interval)
			r.RunOnce()
		}
	}
}
