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
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/wentaojin/dbdumper/chunk"
	"github.com/wentaojin/dbdumper/logger"
	"github.com/wentaojin/dbdumper/scheduler"
	"github.com/wentaojin/dbdumper/utils/constant"
	"github.com/wentaojin/dbdumper/writer"
	"go.uber.org/zap"
)

// DumpWorker is one dump thread, it owns its write pipeline for the whole run
type DumpWorker struct {
	Thread     int
	task       *DumpTask
	dispatcher *scheduler.Dispatcher
	pipeline   *writer.Pipeline
}

func NewDumpWorker(thread int, dt *DumpTask, dispatcher *scheduler.Dispatcher) *DumpWorker {
	return &DumpWorker{
		Thread:     thread,
		task:       dt,
		dispatcher: dispatcher,
	}
}

// Run requests and processes jobs until its shutdown job arrives on both queues
func (w *DumpWorker) Run(ctx context.Context) error {
	w.pipeline = writer.NewPipeline(w.task.DumpOptions.WriteBufferSlots)
	defer w.pipeline.Close()

	logger.Debug("dump worker start", zap.String("run_id", w.task.RunID), zap.Int("thread", w.Thread))
	for {
		w.dispatcher.RequestChunk()
		job, err := w.dispatcher.Primary().Pop(ctx)
		if err != nil {
			return err
		}

		switch job.Kind {
		case constant.JobKindShutdown:
			return w.drainDeferred(ctx)
		case constant.JobKindDetermineStrategy:
			w.task.selector.SetChunkStrategy(ctx, job.Table)
		case constant.JobKindDumpChunk:
			w.dump(ctx, job)
		case constant.JobKindDeferredDump:
			deferred, err := w.dispatcher.Deferred().Pop(ctx)
			if err != nil {
				return err
			}
			if deferred.IsShutdown() {
				// another worker drained the chunk of this marker, the shutdown belongs to the drain
				w.dispatcher.Deferred().Push(deferred)
				continue
			}
			w.dump(ctx, deferred)
		default:
			return fmt.Errorf("the dump worker [%d] received unknown job [%s]", w.Thread, job.String())
		}
	}
}

// drainDeferred dumps the deferred chunks left until the shutdown job of the deferred queue
func (w *DumpWorker) drainDeferred(ctx context.Context) error {
	for {
		job, err := w.dispatcher.Deferred().Pop(ctx)
		if err != nil {
			return err
		}
		if job.IsShutdown() {
			logger.Debug("dump worker exit", zap.String("run_id", w.task.RunID), zap.Int("thread", w.Thread))
			return nil
		}
		w.dump(ctx, job)
	}
}

// dump processes one chunk job, failures are counted and never stop the worker
func (w *DumpWorker) dump(ctx context.Context, job *scheduler.Job) {
	t, c := job.Table, job.Chunk
	startTime := time.Now()
	defer func() {
		t.ChunkDone(c, time.Since(startTime))
	}()

	if w.task.shutdown.Load() {
		logger.Warn("dump chunk abandoned by shutdown", w.chunkFields(t, c)...)
		return
	}

	target := &chunkTarget{FileTarget: w.task.fileTarget(t, c)}
	var err error
	if t.NeedsSplit(c) {
		err = w.dumpSplit(ctx, t, c, target)
	} else {
		err = w.dumpChunk(ctx, t, c, target)
	}
	w.task.progress.ChunksProcessed.Inc()
	if err != nil {
		w.task.errors.Inc()
		logger.Error("dump chunk failed", append(w.chunkFields(t, c), zap.Error(err))...)
		return
	}
	logger.Debug("dump chunk finished", append(w.chunkFields(t, c), zap.String("cost", time.Since(startTime).String()))...)
}

// dumpSplit walks the next key column inside the single outer value of the chunk, the inner
// chunks are dumped one after the other by this worker
func (w *DumpWorker) dumpSplit(ctx context.Context, t *chunk.Table, c *chunk.Chunk, target *chunkTarget) error {
	step := w.task.selector.NewKeyStep(ctx, t, c.KeyPosition+1, c.Where, 0)
	logger.Debug("dump chunk split by the next key column",
		append(w.chunkFields(t, c), zap.String("inner_chunk_kind", step.Kind()))...)
	for {
		inner, ok := step.Advance()
		if !ok {
			return nil
		}
		inner.Table, inner.Number, inner.Partition = t, c.Number, c.Partition
		if w.task.shutdown.Load() {
			logger.Warn("dump chunk abandoned by shutdown", w.chunkFields(t, inner)...)
			return nil
		}

		var err error
		if t.NeedsSplit(inner) {
			err = w.dumpSplit(ctx, t, inner, target)
		} else {
			err = w.dumpChunk(ctx, t, inner, target)
		}
		if err != nil {
			return err
		}
		target.next()
	}
}

func (w *DumpWorker) chunkFields(t *chunk.Table, c *chunk.Chunk) []zap.Field {
	return []zap.Field{
		zap.String("run_id", w.task.RunID),
		zap.Int("thread", w.Thread),
		zap.String("schema_name_s", t.SchemaName),
		zap.String("table_name_s", t.TableName),
		zap.Uint64("chunk_number", c.Number),
		zap.String("chunk_kind", c.Kind),
		zap.String("chunk_detail_s", c.Where),
		zap.String("partition_name_s", c.Partition),
	}
}

// chunkTarget numbers the files of consecutive inner chunks after each other
type chunkTarget struct {
	*writer.FileTarget
	offset int
	last   int
}

func (t *chunkTarget) Open(subPart int) (writer.Sink, writer.Sink, error) {
	t.last = t.offset + subPart
	return t.FileTarget.Open(t.last)
}

func (t *chunkTarget) next() {
	t.offset = t.last + 1
}
