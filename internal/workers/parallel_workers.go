// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package workers

import "sync"

var (
	_ Workers = (*ParallelWorkers)(nil)
	_ Job     = (*ParallelJob)(nil)
)

type task struct {
	job *ParallelJob
	f   func() error
}

// ParallelWorkers keeps [count] goroutines alive so short-lived jobs (such as
// decoding the shards of one block) don't pay goroutine start-up costs.
type ParallelWorkers struct {
	count int
	tasks chan task

	lock    sync.RWMutex
	stopped bool

	quit    chan struct{}
	running sync.WaitGroup
}

func NewParallel(workers int) Workers {
	if workers < 1 {
		workers = 1
	}
	w := &ParallelWorkers{
		count: workers,
		tasks: make(chan task),
		quit:  make(chan struct{}),
	}
	w.running.Add(workers)
	for i := 0; i < workers; i++ {
		go w.work()
	}
	return w
}

func (w *ParallelWorkers) work() {
	defer w.running.Done()
	for {
		select {
		case <-w.quit:
			return
		case t := <-w.tasks:
			t.job.run(t.f)
		}
	}
}

// Stop waits for in-flight tasks to finish and terminates the pool. Tasks
// submitted afterwards fail with [ErrShutdown].
func (w *ParallelWorkers) Stop() {
	w.lock.Lock()
	if w.stopped {
		w.lock.Unlock()
		return
	}
	w.stopped = true
	close(w.quit)
	w.lock.Unlock()

	w.running.Wait()
}

func (w *ParallelWorkers) NewJob() (Job, error) {
	w.lock.RLock()
	defer w.lock.RUnlock()

	if w.stopped {
		return nil, ErrShutdown
	}
	return &ParallelJob{w: w}, nil
}

type ParallelJob struct {
	w       *ParallelWorkers
	pending sync.WaitGroup

	lock sync.Mutex
	err  error
}

func (j *ParallelJob) failed() bool {
	j.lock.Lock()
	defer j.lock.Unlock()

	return j.err != nil
}

func (j *ParallelJob) fail(err error) {
	j.lock.Lock()
	defer j.lock.Unlock()

	if j.err == nil {
		j.err = err
	}
}

func (j *ParallelJob) run(f func() error) {
	defer j.pending.Done()

	if j.failed() {
		return
	}
	if err := f(); err != nil {
		j.fail(err)
	}
}

// Go blocks until a worker picks up [f].
func (j *ParallelJob) Go(f func() error) {
	if j.failed() {
		return
	}
	j.pending.Add(1)
	select {
	case j.w.tasks <- task{job: j, f: f}:
	case <-j.w.quit:
		j.fail(ErrShutdown)
		j.pending.Done()
	}
}

// Done signals that no more tasks will be added. [f], if not nil, is called
// once every task has returned.
func (j *ParallelJob) Done(f func()) {
	if f == nil {
		return
	}
	go func() {
		j.pending.Wait()
		f()
	}()
}

func (j *ParallelJob) Wait() error {
	j.pending.Wait()

	j.lock.Lock()
	defer j.lock.Unlock()
	return j.err
}

// Workers is the parallelism available to the job, useful for sizing shards.
func (j *ParallelJob) Workers() int {
	return j.w.count
}
