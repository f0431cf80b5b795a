// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package workers runs fork-join jobs on a fixed set of goroutines.
package workers

// Workers hands out jobs that share the pool's goroutines.
type Workers interface {
	NewJob() (Job, error)
	Stop()
}

// Job is a batch of tasks that is awaited as a unit. The first task error is
// returned from [Wait] and tasks submitted after it are skipped.
type Job interface {
	Go(func() error)
	Done(func())
	Wait() error
	Workers() int
}
