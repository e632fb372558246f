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
	"time"

	"github.com/wentaojin/dbdumper/chunk"
	"github.com/wentaojin/dbdumper/logger"
	"github.com/wentaojin/dbdumper/utils/constant"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Dispatcher turns every chunk request of a worker into exactly one job on the primary queue
type Dispatcher struct {
	queue      *TableQueue
	primary    *JobQueue
	deferred   *JobQueue
	requests   chan struct{}
	numThreads int
	useDefer   bool
	shutdown   *atomic.Bool
}

func NewDispatcher(queue *TableQueue, numThreads int, useDefer bool, shutdown *atomic.Bool) *Dispatcher {
	if numThreads <= 0 {
		numThreads = 1
	}
	if shutdown == nil {
		shutdown = atomic.NewBool(false)
	}
	return &Dispatcher{
		queue:      queue,
		primary:    NewJobQueue(),
		deferred:   NewJobQueue(),
		requests:   make(chan struct{}, numThreads),
		numThreads: numThreads,
		useDefer:   useDefer,
		shutdown:   shutdown,
	}
}

func (d *Dispatcher) Primary() *JobQueue {
	return d.primary
}

func (d *Dispatcher) Deferred() *JobQueue {
	return d.deferred
}

// RequestChunk asks for one more job on the primary queue. A worker holds at most one
// outstanding request so the request channel never fills up.
func (d *Dispatcher) RequestChunk() {
	select {
	case d.requests <- struct{}{}:
	default:
		logger.Warn("dump dispatcher request channel full, request dropped",
			zap.Int("threads", d.numThreads))
	}
}

// Run serves requests until every table is exhausted, the shutdown flag is raised or the
// context is cancelled, then broadcasts one shutdown job per worker on both queues
func (d *Dispatcher) Run(ctx context.Context) error {
	startTime := time.Now()
	logger.Info("dump dispatcher start", zap.Int("tables", d.queue.Len()), zap.Int("threads", d.numThreads))
	defer d.broadcastShutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.requests:
		}
		if d.shutdown.Load() {
			logger.Warn("dump dispatcher observed shutdown, stop dispatching",
				zap.Int("tables_left", d.queue.Len()))
			return nil
		}
		done, err := d.dispatch(ctx)
		if err != nil {
			return err
		}
		if done {
			logger.Info("dump dispatcher finished", zap.String("cost", time.Since(startTime).String()))
			return nil
		}
	}
}

// dispatch emits the job of one request, it reports true once no table is left
func (d *Dispatcher) dispatch(ctx context.Context) (bool, error) {
	for {
		t, c, st := d.queue.Next()
		switch st {
		case NextDefine:
			d.primary.Push(&Job{Kind: constant.JobKindDetermineStrategy, Table: t})
			return false, nil
		case NextChunk:
			d.enqueueChunk(t, c)
			return false, nil
		case NextWait:
			if err := d.queue.Wait(ctx); err != nil {
				return false, err
			}
			if d.shutdown.Load() {
				return true, nil
			}
		default:
			return true, nil
		}
	}
}

func (d *Dispatcher) enqueueChunk(t *chunk.Table, c *chunk.Chunk) {
	if d.useDefer && c.Kind == constant.ChunkKindInteger {
		t.Defer(c)
		d.deferred.Push(&Job{Kind: constant.JobKindDumpChunk, Table: t, Chunk: c})
		d.primary.Push(&Job{Kind: constant.JobKindDeferredDump, Table: t})
		return
	}
	d.primary.Push(&Job{Kind: constant.JobKindDumpChunk, Table: t, Chunk: c})
}

func (d *Dispatcher) broadcastShutdown() {
	for i := 0; i < d.numThreads; i++ {
		d.primary.Push(&Job{Kind: constant.JobKindShutdown})
		d.deferred.Push(&Job{Kind: constant.JobKindShutdown})
	}
}
