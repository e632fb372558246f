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
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/wentaojin/dbdumper/chunk"
	"github.com/wentaojin/dbdumper/database"
	"github.com/wentaojin/dbdumper/logger"
	"github.com/wentaojin/dbdumper/pool"
	"github.com/wentaojin/dbdumper/scheduler"
	"github.com/wentaojin/dbdumper/thread"
	"github.com/wentaojin/dbdumper/utils/configutil"
	"github.com/wentaojin/dbdumper/utils/constant"
	"github.com/wentaojin/dbdumper/utils/stringutil"
	"github.com/wentaojin/dbdumper/utils/structure"
	"github.com/wentaojin/dbdumper/writer"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DumpTask dumps every selected table of one schema with a fixed number of worker threads
type DumpTask struct {
	Ctx         context.Context
	DatabaseS   database.IDatabase
	Datasource  *configutil.DatasourceOptions
	DumpOptions *configutil.DumpOptions
	// Progress receives the table progress snapshots, nil logs them
	Progress ProgressSink
	// Stdout receives the final summary, nil prints to os.Stdout
	Stdout io.Writer

	RunID     string
	startTime time.Time
	endTime   time.Time

	format   *writer.Format
	prelude  string
	selector *chunk.Selector
	queue    *scheduler.TableQueue
	tables   []*chunk.Table
	progress *Progress

	errors   *atomic.Uint64
	shutdown *atomic.Bool
}

func NewDumpTask(ctx context.Context, databaseS database.IDatabase, datasource *configutil.DatasourceOptions, opts *configutil.DumpOptions) *DumpTask {
	return &DumpTask{
		Ctx:         ctx,
		DatabaseS:   databaseS,
		Datasource:  datasource,
		DumpOptions: opts,
		RunID:       uuid.New().String(),
		errors:      atomic.NewUint64(0),
		shutdown:    atomic.NewBool(false),
	}
}

// Shutdown asks the running task to stop after the statements in flight, the output written so far is kept
func (dt *DumpTask) Shutdown() {
	if dt.shutdown.Swap(true) {
		return
	}
	logger.Warn("dump task shutdown requested", zap.String("run_id", dt.RunID))
	if dt.queue != nil {
		dt.queue.Notify()
	}
}

// Errors returns the number of failed chunks and workers
func (dt *DumpTask) Errors() uint64 {
	return dt.errors.Load()
}

func (dt *DumpTask) Tables() []*chunk.Table {
	return dt.tables
}

func (dt *DumpTask) Init() error {
	dt.startTime = time.Now()
	opts := dt.DumpOptions
	logger.Info("dump task init table",
		zap.String("run_id", dt.RunID),
		zap.String("schema_name_s", opts.SchemaName),
		zap.String("output_dir", opts.OutputDir),
		zap.String("output_format", opts.OutputFormat))

	if err := opts.Validate(); err != nil {
		return err
	}
	format, err := writer.NewFormat(writer.FormatOptions{
		OutputFormat:          opts.OutputFormat,
		DBType:                dt.Datasource.DBType,
		Charset:               dt.Datasource.Charset,
		InsertIgnore:          opts.InsertIgnore,
		Replace:               opts.Replace,
		CompleteInsert:        opts.CompleteInsert,
		HexBlob:               opts.HexBlob,
		IncludeHeader:         opts.IncludeHeader,
		StatementSize:         int(opts.StatementSize),
		FieldsEnclosedBy:      opts.FieldsEnclosedBy,
		FieldsEscapedBy:       opts.FieldsEscapedBy,
		FieldsTerminatedBy:    opts.FieldsTerminatedBy,
		LinesStartingBy:       opts.LinesStartingBy,
		LinesTerminatedBy:     opts.LinesTerminatedBy,
		StatementTerminatedBy: opts.StatementTerminatedBy,
	})
	if err != nil {
		return err
	}
	dt.format = format
	dt.prelude = writer.SessionPrelude(dt.Datasource.DBType, dt.Datasource.Charset)

	var partitionRegex *regexp.Regexp
	if opts.PartitionRegex != "" {
		// already validated
		partitionRegex = regexp.MustCompile(opts.PartitionRegex)
	}
	dt.selector = chunk.NewSelector(dt.DatabaseS, chunk.SelectorOptions{
		CheckRowCount:      opts.CheckRowCount,
		SplitPartitions:    opts.SplitPartitions,
		PartitionRegex:     partitionRegex,
		SplitIntegerTables: opts.SplitIntegerTables,
		CharChunk:          opts.CharChunk,
		CharChunkAlphabet:  opts.CharChunkAlphabet,
		Where:              opts.Where,
		AdaptiveTarget:     opts.AdaptiveTarget(),
		GrowthFactor:       opts.AdaptiveGrowthFactor,
	})

	if err = stringutil.PathNotExistOrCreate(opts.OutputDir); err != nil {
		return fmt.Errorf("the dump output dir [%s] create failed: %v", opts.OutputDir, err)
	}

	tableNames, err := dt.DatabaseS.FilterDatabaseTable(dt.Ctx, opts.SchemaName, opts.IncludeTable, opts.ExcludeTable)
	if err != nil {
		return err
	}
	dt.tables = dt.discoverTables(tableNames)
	dt.queue = scheduler.NewTableQueue(dt.tables)
	dt.progress = NewProgresser(dt.tables, opts.ProgressInterval, dt.Progress)

	logger.Info("dump task init table finished",
		zap.String("run_id", dt.RunID),
		zap.String("schema_name_s", opts.SchemaName),
		zap.Int("table_counts", len(dt.tables)),
		zap.String("cost", time.Since(dt.startTime).String()))
	return nil
}

type tableKeyJob struct {
	tableName  string
	keyColumns []string
}

// discoverTables selects the chunk key of every table concurrently, a failed probe leaves the
// table without key so it is dumped as a single chunk
func (dt *DumpTask) discoverTables(tableNames []string) []*chunk.Table {
	opts := dt.DumpOptions
	jobs := lo.Map(tableNames, func(name string, _ int) *tableKeyJob {
		return &tableKeyJob{tableName: name}
	})

	g := thread.NewGroup()
	g.SetLimit(opts.Threads)
	go func() {
		for _, j := range jobs {
			g.Go(j, func(job interface{}) error {
				kj := job.(*tableKeyJob)
				indexes, err := dt.DatabaseS.GetDatabaseTableIndexes(dt.Ctx, opts.SchemaName, kj.tableName)
				if err != nil {
					return err
				}
				kj.keyColumns = structure.SelectKeyColumns(indexes, opts.UseAnyIndex)
				return nil
			})
		}
		g.Wait()
	}()

	for res := range g.ResultC {
		kj := res.Task.(*tableKeyJob)
		if res.Error != nil {
			logger.Warn("dump task table key discovery failed, dump as a single chunk",
				zap.String("schema_name_s", opts.SchemaName),
				zap.String("table_name_s", kj.tableName),
				zap.Error(res.Error))
			continue
		}
		logger.Debug("dump task table key discovered",
			zap.String("schema_name_s", opts.SchemaName),
			zap.String("table_name_s", kj.tableName),
			zap.Strings("key_columns", kj.keyColumns),
			zap.String("cost", res.Duration))
	}

	return lo.Map(jobs, func(kj *tableKeyJob, _ int) *chunk.Table {
		return chunk.NewTable(opts.SchemaName, kj.tableName, kj.keyColumns,
			chunk.WithChunkStepSize(opts.MinChunkStepSize, opts.StartingChunkStepSize, opts.MaxChunkStepSize),
			chunk.WithMaxThreadsPerTable(opts.MaxThreadsPerTable),
			chunk.WithChunkFilesize(opts.ChunkFilesize))
	})
}

// Run serves the tables with the dispatcher, the worker pool and the progress printer until every
// table is exhausted or the task is shut down
func (dt *DumpTask) Run() error {
	opts := dt.DumpOptions
	startTime := time.Now()
	logger.Info("dump task run table",
		zap.String("run_id", dt.RunID),
		zap.String("schema_name_s", opts.SchemaName),
		zap.Int("threads", opts.Threads),
		zap.Bool("use_defer", opts.UseDefer))

	dispatcher := scheduler.NewDispatcher(dt.queue, opts.Threads, opts.UseDefer, dt.shutdown)

	g, gCtx := errgroup.WithContext(dt.Ctx)
	dispatchCtx, dispatchCancel := context.WithCancel(gCtx)
	defer dispatchCancel()
	workerDone := make(chan struct{})

	g.Go(func() error {
		err := dispatcher.Run(dispatchCtx)
		// the dispatcher is only cancelled here once every worker is gone
		if errors.Is(err, context.Canceled) && gCtx.Err() == nil {
			return nil
		}
		return err
	})

	g.Go(func() error {
		defer close(workerDone)
		defer dispatchCancel()

		p := pool.NewPool(gCtx, opts.Threads,
			pool.WithTaskQueueSize(opts.Threads),
			pool.WithPanicHandle(true),
			pool.WithExecuteHandle(func(ctx context.Context, t pool.Task) error {
				return t.Job.(*DumpWorker).Run(ctx)
			}),
			pool.WithCanceledHandle(func(t pool.Task, err error) error {
				logger.Warn("dump worker canceled",
					zap.String("run_id", dt.RunID),
					zap.String("task", t.String()),
					zap.Error(err))
				return err
			}),
			pool.WithResultCallback(func(r pool.Result) {
				if r.Error != nil && !errors.Is(r.Error, context.Canceled) {
					dt.errors.Inc()
					logger.Error("dump worker exited abnormally",
						zap.String("run_id", dt.RunID),
						zap.String("task", r.Task.String()),
						zap.Error(r.Error))
				}
			}))
		for i := 0; i < opts.Threads; i++ {
			p.SubmitTask(pool.Task{
				Name:  fmt.Sprintf("thread-%d", i),
				Group: opts.SchemaName,
				Job:   NewDumpWorker(i, dt, dispatcher),
			})
		}
		p.Wait()
		p.Release()
		return nil
	})

	g.Go(func() error {
		return dt.progress.PrintProgress(gCtx, workerDone)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("dump task run table finished",
		zap.String("run_id", dt.RunID),
		zap.String("schema_name_s", opts.SchemaName),
		zap.Uint64("rows_completed", dt.progress.RowsProcessed.Load()),
		zap.Uint64("chunks_completed", dt.progress.ChunksProcessed.Load()),
		zap.Uint64("errors", dt.errors.Load()),
		zap.String("cost", time.Since(startTime).String()))
	return nil
}

// Last writes the metadata file and prints the summary, a run with errors or interrupted fails
func (dt *DumpTask) Last() error {
	dt.endTime = time.Now()
	opts := dt.DumpOptions
	logger.Info("dump task last table",
		zap.String("run_id", dt.RunID),
		zap.String("schema_name_s", opts.SchemaName))

	for _, t := range dt.tables {
		if st := t.Status(); st != constant.TableStatusNoMore {
			logger.Warn("dump table abandoned before its last chunk",
				zap.String("schema_name_s", t.SchemaName),
				zap.String("table_name_s", t.TableName),
				zap.String("table_status", st),
				zap.Uint64("rows_dumped", t.Rows()))
		}
	}

	path, err := WriteMetadata(opts.OutputDir, dt.Metadata())
	if err != nil {
		return err
	}
	logger.Info("dump task metadata written", zap.String("run_id", dt.RunID), zap.String("path", path))

	out := dt.Stdout
	if out == nil {
		out = os.Stdout
	}
	stringutil.PrintTable(out, dt.summaryRows(), true)

	cost := dt.endTime.Sub(dt.startTime).Truncate(time.Millisecond).String()
	switch {
	case dt.shutdown.Load():
		fmt.Fprintf(out, "Dump task [%s] interrupted, duration: [%s]\n", color.HiYellowString(dt.RunID), cost)
		return fmt.Errorf("the dump task [%s] was interrupted, the output of the finished chunks is kept in [%s]", dt.RunID, opts.OutputDir)
	case dt.errors.Load() > 0:
		fmt.Fprintf(out, "Dump task [%s] failed, errors: [%s], duration: [%s]\n",
			color.RedString(dt.RunID), color.RedString("%d", dt.errors.Load()), cost)
		return fmt.Errorf("the dump task [%s] finished with [%d] errors, please see the log for details", dt.RunID, dt.errors.Load())
	default:
		fmt.Fprintf(out, "Dump task [%s] finished, output dir: [%s], duration: [%s]\n",
			color.GreenString(dt.RunID), color.GreenString(opts.OutputDir), cost)
		return nil
	}
}

func (dt *DumpTask) summaryRows() [][]string {
	rows := [][]string{{"Schema", "Table", "Status", "Chunks", "Rows", "Rows Estimated", "Completion"}}
	for _, t := range dt.tables {
		s := TableSnapshot(t)
		rows = append(rows, []string{
			s.SchemaName, s.TableName, s.Status,
			fmt.Sprintf("%d", s.Chunks),
			fmt.Sprintf("%d", s.Rows),
			fmt.Sprintf("%d", s.RowsTotal),
			s.Percent,
		})
	}
	return rows
}
