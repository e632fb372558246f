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
	"sync"

	"github.com/wentaojin/dbdumper/chunk"
)

// NextState is the outcome of one rotation scan
type NextState int

const (
	// NextDefine hands out a table whose chunk strategy has to be selected
	NextDefine NextState = iota
	// NextChunk hands out a chunk
	NextChunk
	// NextWait means tables are defining or at their concurrency cap, wait for a notification
	NextWait
	// NextDone means every table is exhausted
	NextDone
)

func (s NextState) String() string {
	switch s {
	case NextDefine:
		return "define"
	case NextChunk:
		return "chunk"
	case NextWait:
		return "wait"
	default:
		return "done"
	}
}

// TableQueue is the round robin rotation of the tables still handing out chunks
type TableQueue struct {
	mu       sync.Mutex
	rotation []*chunk.Table
	notify   chan struct{}
}

// NewTableQueue builds the rotation and registers the queue as the notifier of every table
func NewTableQueue(tables []*chunk.Table) *TableQueue {
	q := &TableQueue{
		rotation: make([]*chunk.Table, 0, len(tables)),
		notify:   make(chan struct{}, 1),
	}
	for _, t := range tables {
		t.SetNotifier(q.Notify)
		q.rotation = append(q.rotation, t)
	}
	return q
}

// Next scans the rotation at most once. Every table visited either goes back to the
// rotation tail or leaves the rotation, so no table is revisited in the same scan.
func (q *TableQueue) Next() (*chunk.Table, *chunk.Chunk, NextState) {
	q.mu.Lock()
	defer q.mu.Unlock()

	waiting := false
	for n := len(q.rotation); n > 0; n-- {
		t := q.rotation[0]
		q.rotation = q.rotation[1:]

		c, st := t.Pull()
		switch st {
		case chunk.PullDefine:
			q.rotation = append(q.rotation, t)
			return t, nil, NextDefine
		case chunk.PullDefining, chunk.PullBusy:
			q.rotation = append(q.rotation, t)
			waiting = true
		case chunk.PullChunk:
			q.rotation = append(q.rotation, t)
			return t, c, NextChunk
		case chunk.PullLastChunk:
			return t, c, NextChunk
		case chunk.PullDone:
		}
	}
	if waiting {
		return nil, nil, NextWait
	}
	return nil, nil, NextDone
}

// Notify wakes a waiter, it never blocks and never takes the queue lock since tables call it
// with their own mutex held
func (q *TableQueue) Notify() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Wait blocks until a table transition is notified
func (q *TableQueue) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.notify:
		return nil
	}
}

// Len returns the tables still in rotation
func (q *TableQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.rotation)
}

// Tables returns a snapshot of the rotation
func (q *TableQueue) Tables() []*chunk.Table {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*chunk.Table(nil), q.rotation...)
}
