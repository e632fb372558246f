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

	"github.com/wentaojin/dbdumper/logger"
	"go.uber.org/zap"
)

// worker represents a worker in the pool
type worker struct {
	taskQueue chan Task
}

func newWorker() *worker {
	return &worker{taskQueue: make(chan Task, 1)}
}

// start the worker in a separate goroutine.
// The worker runs tasks from its taskQueue until the taskQueue is closed, and is pushed
// back to the pool after every task.
func (w *worker) start(p *pool, thread int) {
	go func() {
		for t := range w.taskQueue {
			w.handleResult(t, p, w.executeWithContext(p, t))
			p.pushWorker(thread)
		}
	}()
}

// executeWithContext runs the task until it returns. Once the pool context is done the task
// context is cancelled and the task is still awaited, so nothing outlives the pool.
func (w *worker) executeWithContext(p *pool, t Task) error {
	if p.executeHandleFn == nil {
		return nil
	}

	cancelCtx, cancelFn := context.WithCancel(p.ctx)
	defer cancelFn()

	errChan := make(chan error, 1)
	go func() {
		errChan <- w.execute(cancelCtx, p, t)
	}()

	select {
	case err := <-errChan:
		return err
	case <-p.ctx.Done():
		cancelFn()
		logger.Warn("the worker task had been canceled", zap.String("task", t.String()))
		err := <-errChan
		if p.canceledHandleFn != nil {
			return p.canceledHandleFn(t, err)
		}
		return err
	}
}

func (w *worker) execute(ctx context.Context, p *pool, t Task) (err error) {
	if p.panicHandle {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("the worker running the task panic",
					zap.String("task", t.String()),
					zap.Int("running workers", p.RunningWorkerCount()),
					zap.Int("free workers", p.FreeWorkerCount()),
					zap.Any("error", r))
				err = fmt.Errorf("the worker task [%s] panic: %v", t.String(), r)
			}
		}()
	}
	return p.executeHandleFn(ctx, t)
}

// handleResult handles the result of a task.
func (w *worker) handleResult(t Task, p *pool, err error) {
	if p.resultCallback != nil {
		p.resultCallback(Result{
			Task:  t,
			Error: err,
		})
	}
}
