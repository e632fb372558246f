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
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/wentaojin/dbdumper/chunk"
	"github.com/wentaojin/dbdumper/utils/constant"
)

// Job is one unit of work handed to a dump worker
type Job struct {
	Kind  string
	Table *chunk.Table
	Chunk *chunk.Chunk
}

func (j *Job) String() string {
	switch {
	case j.Chunk != nil:
		return fmt.Sprintf("job [%s] table [%s] %s", j.Kind, j.Table.String(), j.Chunk.String())
	case j.Table != nil:
		return fmt.Sprintf("job [%s] table [%s]", j.Kind, j.Table.String())
	default:
		return fmt.Sprintf("job [%s]", j.Kind)
	}
}

// IsShutdown reports whether the job asks the worker to stop
func (j *Job) IsShutdown() bool {
	return j.Kind == constant.JobKindShutdown
}

// JobQueue is an unbounded FIFO of jobs, Pop blocks until a job is available
type JobQueue struct {
	mu     sync.Mutex
	jobs   []*Job
	notify chan struct{}
}

func NewJobQueue() *JobQueue {
	return &JobQueue{notify: make(chan struct{}, 1)}
}

func (q *JobQueue) Push(j *Job) {
	q.mu.Lock()
	q.jobs = append(q.jobs, j)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *JobQueue) Pop(ctx context.Context) (*Job, error) {
	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			j := q.jobs[0]
			q.jobs[0] = nil
			q.jobs = q.jobs[1:]
			more := len(q.jobs) > 0
			q.mu.Unlock()
			if more {
				// hand the wakeup on to the next waiting consumer
				select {
				case q.notify <- struct{}{}:
				default:
				}
			}
			return j, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.notify:
		}
	}
}

func (q *JobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
