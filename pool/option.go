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
)

// Option represents an option for the pool.
type Option func(*pool)

// WithExecuteHandle sets the task func every worker runs.
func WithExecuteHandle(taskFn func(ctx context.Context, t Task) error) Option {
	return func(p *pool) {
		p.executeHandleFn = taskFn
	}
}

// WithResultCallback sets the callback receiving every task result.
func WithResultCallback(callback func(r Result)) Option {
	return func(p *pool) {
		p.resultCallback = callback
	}
}

// WithTaskQueueSize sets the size of the task queue for the pool.
func WithTaskQueueSize(size int) Option {
	return func(p *pool) {
		p.taskQueueSize = size
	}
}

// WithPanicHandle turns a task panic into the task error instead of crashing the process.
func WithPanicHandle(panicH bool) Option {
	return func(p *pool) {
		p.panicHandle = panicH
	}
}

// WithCanceledHandle sets the func called for a task stopped by the pool context
func WithCanceledHandle(cancelH func(t Task, err error) error) Option {
	return func(p *pool) {
		p.canceledHandleFn = cancelH
	}
}
