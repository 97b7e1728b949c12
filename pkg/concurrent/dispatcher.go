// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package concurrent

import (
	"golang.org/x/sync/errgroup"
)

// Dispatcher runs fire-and-forget jobs in their own goroutines, at most limit at a time.
// Go blocks while every worker is busy.
type Dispatcher struct {
	group errgroup.Group
}

// NewDispatcher creates a dispatcher. A non-positive limit runs jobs one at a time.
func NewDispatcher(limit int) *Dispatcher {
	d := &Dispatcher{}
	d.group.SetLimit(max(limit, 1))
	return d
}

// Go schedules job.
func (d *Dispatcher) Go(job func()) {
	d.group.Go(func() error {
		job()
		return nil
	})
}

// Wait blocks until every scheduled job has returned.
// No job may be scheduled once Wait has been called.
func (d *Dispatcher) Wait() {
	_ = d.group.Wait()
}
