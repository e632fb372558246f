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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wentaojin/dbdumper/chunk"
	"github.com/wentaojin/dbdumper/utils/constant"
	"go.uber.org/atomic"
)

func readyTable(name string, step chunk.Step) *chunk.Table {
	t := chunk.NewTable("db", name, []string{"id"}, chunk.WithMaxThreadsPerTable(100))
	t.Pull()
	t.SetStrategy(step, 0)
	return t
}

func TestTableQueueFairness(t *testing.T) {
	a := readyTable("a", chunk.NewUnsignedStep("`id`", 1, 1000, 100, 100, 100, ""))
	b := readyTable("b", chunk.NewNoneStep(""))
	q := NewTableQueue([]*chunk.Table{a, b})

	var order []string
	for i := 0; i < 20; i++ {
		tb, c, st := q.Next()
		if st == NextDone {
			break
		}
		require.Equal(t, NextChunk, st)
		order = append(order, tb.TableName)
		tb.ChunkDone(c, 0)
	}
	require.Len(t, order, 11)
	assert.Equal(t, []string{"a", "b", "a"}, order[:3])
	bCount := 0
	for _, name := range order {
		if name == "b" {
			bCount++
		}
	}
	assert.Equal(t, 1, bCount)
	assert.Equal(t, 0, q.Len())
}

func TestTableQueueDefineAndWait(t *testing.T) {
	a := chunk.NewTable("db", "a", nil)
	b := chunk.NewTable("db", "b", nil)
	q := NewTableQueue([]*chunk.Table{a, b})

	tb, _, st := q.Next()
	assert.Equal(t, NextDefine, st)
	assert.Same(t, a, tb)
	tb, _, st = q.Next()
	assert.Equal(t, NextDefine, st)
	assert.Same(t, b, tb)
	_, _, st = q.Next()
	assert.Equal(t, NextWait, st)

	// drain notifications raised so far
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	for q.Wait(ctx) == nil {
	}

	go a.SetStrategy(chunk.NewNoneStep(""), 1)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, q.Wait(waitCtx))

	tb, c, st := q.Next()
	require.Equal(t, NextChunk, st)
	assert.Same(t, a, tb)
	assert.Equal(t, constant.ChunkKindNone, c.Kind)
	_, _, st = q.Next()
	assert.Equal(t, NextWait, st)
}

func TestTableQueueBusy(t *testing.T) {
	a := chunk.NewTable("db", "a", []string{"id"}, chunk.WithMaxThreadsPerTable(1))
	a.Pull()
	a.SetStrategy(chunk.NewUnsignedStep("`id`", 1, 300, 100, 100, 100, ""), 300)
	q := NewTableQueue([]*chunk.Table{a})

	_, c, st := q.Next()
	require.Equal(t, NextChunk, st)
	_, _, st = q.Next()
	assert.Equal(t, NextWait, st)
	a.ChunkDone(c, 0)
	_, _, st = q.Next()
	assert.Equal(t, NextChunk, st)
}

func TestJobQueuePop(t *testing.T) {
	q := NewJobQueue()
	q.Push(&Job{Kind: constant.JobKindDumpChunk})
	q.Push(&Job{Kind: constant.JobKindShutdown})
	assert.Equal(t, 2, q.Len())

	j, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, constant.JobKindDumpChunk, j.Kind)
	j, err = q.Pop(context.Background())
	require.NoError(t, err)
	assert.True(t, j.IsShutdown())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDispatcherShutdownBroadcast(t *testing.T) {
	d := NewDispatcher(NewTableQueue(nil), 3, false, nil)
	d.RequestChunk()
	require.NoError(t, d.Run(context.Background()))

	for _, q := range []*JobQueue{d.Primary(), d.Deferred()} {
		require.Equal(t, 3, q.Len())
		for i := 0; i < 3; i++ {
			j, err := q.Pop(context.Background())
			require.NoError(t, err)
			assert.True(t, j.IsShutdown())
		}
	}
}

func TestDispatcherShutdownFlag(t *testing.T) {
	flag := atomic.NewBool(true)
	a := readyTable("a", chunk.NewUnsignedStep("`id`", 1, 1000, 100, 100, 100, ""))
	d := NewDispatcher(NewTableQueue([]*chunk.Table{a}), 2, false, flag)
	d.RequestChunk()
	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, 2, d.Primary().Len())
	assert.Equal(t, uint64(0), a.ChunkCount())
}

func TestDispatcherWorkers(t *testing.T) {
	strategies := map[string]func() chunk.Step{
		"a": func() chunk.Step { return chunk.NewUnsignedStep("`id`", 1, 300, 100, 100, 100, "") },
		"b": func() chunk.Step { return chunk.NewNoneStep("") },
	}
	a := chunk.NewTable("db", "a", []string{"id"})
	b := chunk.NewTable("db", "b", nil)

	const threads = 2
	d := NewDispatcher(NewTableQueue([]*chunk.Table{a, b}), threads, true, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		mu        sync.Mutex
		dumped    []string
		shutdowns = map[string]int{}
		wg        sync.WaitGroup
	)
	process := func(j *Job) {
		switch j.Kind {
		case constant.JobKindDetermineStrategy:
			j.Table.SetStrategy(strategies[j.Table.TableName](), 0)
		case constant.JobKindDumpChunk:
			mu.Lock()
			dumped = append(dumped, j.Table.TableName+":"+j.Chunk.Where)
			mu.Unlock()
			j.Table.ChunkDone(j.Chunk, 0)
		}
	}
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				d.RequestChunk()
				j, err := d.Primary().Pop(ctx)
				if err != nil {
					return
				}
				switch j.Kind {
				case constant.JobKindDeferredDump:
					dj, err := d.Deferred().Pop(ctx)
					if err != nil {
						return
					}
					if dj.IsShutdown() {
						// another worker already took the deferred chunk
						d.Deferred().Push(dj)
						continue
					}
					process(dj)
				case constant.JobKindShutdown:
					mu.Lock()
					shutdowns["primary"]++
					mu.Unlock()
					for {
						dj, err := d.Deferred().Pop(ctx)
						if err != nil {
							return
						}
						if dj.IsShutdown() {
							mu.Lock()
							shutdowns["deferred"]++
							mu.Unlock()
							return
						}
						process(dj)
					}
				default:
					process(j)
				}
			}
		}()
	}

	require.NoError(t, d.Run(ctx))
	wg.Wait()

	assert.ElementsMatch(t, []string{
		"a:`id` >= 1 AND `id` < 101",
		"a:`id` >= 101 AND `id` < 201",
		"a:`id` >= 201 AND `id` <= 300",
		"b:",
	}, dumped)
	assert.Equal(t, map[string]int{"primary": threads, "deferred": threads}, shutdowns)
	assert.Equal(t, constant.TableStatusNoMore, a.Status())
	assert.Equal(t, constant.TableStatusNoMore, b.Status())
}
