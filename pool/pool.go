/*
Copyright © 2020 Marvin

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
package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/wentaojin/dbdumper/utils/constant"
)

type IPool interface {
	// SubmitTask adds a task to the pool
	SubmitTask(t Task)
	// Wait waits for all submitted tasks to be completed.
	Wait()
	// Release releases the pool and all its workers.
	Release()
	// RunningWorkerCount returns the number of workers that are currently working
	RunningWorkerCount() int
	// FreeWorkerCount returns the number of workers that are currently free
	FreeWorkerCount() int
}

type Task struct {
	Name  string      `json:"name"`
	Group string      `json:"group"`
	Job   interface{} `json:"job"`
}

type Result struct {
	Task  Task
	Error error
}

type pool struct {
	maxWorkers int
	// workerStack holds the free workers
	workerStack []int
	workers     []*worker
	// pending counts the submitted tasks not finished yet
	pending int
	// tasks are added to this channel first, then dispatched to workers
	taskQueue     chan Task
	taskQueueSize int

	resultCallback   func(r Result)
	panicHandle      bool
	executeHandleFn  func(ctx context.Context, t Task) error
	canceledHandleFn func(t Task, err error) error

	ctx  context.Context
	lock sync.Locker
	// cond is signalled whenever a worker is pushed back or a task finishes
	cond *sync.Cond
}

// NewPool creates a new pool of workers.
func NewPool(ctx context.Context, maxWorkers int, opts ...Option) IPool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	p := &pool{
		maxWorkers:    maxWorkers,
		taskQueueSize: constant.DefaultDumpTaskQueueSize,
		lock:          new(sync.Mutex),
		ctx:           ctx,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.taskQueue = make(chan Task, p.taskQueueSize)
	p.workers = make([]*worker, p.maxWorkers)
	p.workerStack = make([]int, p.maxWorkers)
	p.cond = sync.NewCond(p.lock)

	for i := 0; i < p.maxWorkers; i++ {
		w := newWorker()
		p.workers[i] = w
		p.workerStack[i] = i
		w.start(p, i)
	}

	go p.dispatch()
	return p
}

func (p *pool) SubmitTask(t Task) {
	p.lock.Lock()
	p.pending++
	p.lock.Unlock()
	p.taskQueue <- t
}

func (p *pool) Wait() {
	p.cond.L.Lock()
	for p.pending > 0 {
		p.cond.Wait()
	}
	p.cond.L.Unlock()
}

func (p *pool) RunningWorkerCount() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.workers) - len(p.workerStack)
}

func (p *pool) FreeWorkerCount() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.workerStack)
}

func (p *pool) Release() {
	close(p.taskQueue)
	p.cond.L.Lock()
	for len(p.workerStack) != p.maxWorkers {
		p.cond.Wait()
	}
	p.cond.L.Unlock()
	for _, w := range p.workers {
		close(w.taskQueue)
	}
}

// dispatch hands the queued tasks to the free workers.
func (p *pool) dispatch() {
	for t := range p.taskQueue {
		p.workers[p.popWorker()].taskQueue <- t
	}
}

func (p *pool) popWorker() int {
	p.cond.L.Lock()
	defer p.cond.L.Unlock()
	for len(p.workerStack) == 0 {
		p.cond.Wait()
	}
	workerIndex := p.workerStack[len(p.workerStack)-1]
	p.workerStack = p.workerStack[:len(p.workerStack)-1]
	return workerIndex
}

func (p *pool) pushWorker(workerIndex int) {
	p.lock.Lock()
	p.workerStack = append(p.workerStack, workerIndex)
	p.pending--
	p.lock.Unlock()
	p.cond.Broadcast()
}

func (t Task) String() string {
	return fmt.Sprintf("%s/%s", t.Group, t.Name)
}
