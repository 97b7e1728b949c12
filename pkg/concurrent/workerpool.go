// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerPool bounds how many jobs run at once.
type WorkerPool struct {
	workerCount int
}

// NewWorkerPool creates a worker pool. A non-positive count runs jobs one at a time.
func NewWorkerPool(workerCount int) *WorkerPool {
	return &WorkerPool{workerCount: max(workerCount, 1)}
}

// Run executes jobs until the first failure, which cancels the jobs not started yet.
// It returns that first error.
func (wp *WorkerPool) Run(ctx context.Context, jobs ...func() error) error {
	if len(jobs) == 0 {
		return nil
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(wp.workerCount)

	for _, job := range jobs {
		g.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			return job()
		})
	}

	return g.Wait()
}

// RunAll executes every job regardless of failures and returns the non-nil errors
// in the order the jobs were given. Jobs not started before ctx is done report ctx.Err().
func (wp *WorkerPool) RunAll(ctx context.Context, jobs ...func() error) []error {
	if len(jobs) == 0 {
		return nil
	}

	results := make([]error, len(jobs))

	var g errgroup.Group
	g.SetLimit(wp.workerCount)

	for i, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = err
				return nil
			}
			results[i] = job()
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, err := range results {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
