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
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"github.com/wentaojin/dbdumper/chunk"
	"github.com/wentaojin/dbdumper/logger"
	"github.com/wentaojin/dbdumper/utils/constant"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ProgressSnapshot is the progress of one table at a report tick
type ProgressSnapshot struct {
	SchemaName      string
	TableName       string
	Status          string
	Rows            uint64
	RowsTotal       uint64
	Percent         string
	Chunks          uint64
	ChunksRemaining uint64
}

// ProgressSink receives the periodic table progress snapshots
type ProgressSink interface {
	Report(s ProgressSnapshot)
}

type loggerProgressSink struct{}

func (loggerProgressSink) Report(s ProgressSnapshot) {
	logger.Info("dump table progress",
		zap.String("schema_name_s", s.SchemaName),
		zap.String("table_name_s", s.TableName),
		zap.String("table_status", s.Status),
		zap.Uint64("rows_dumped", s.Rows),
		zap.Uint64("rows_counts", s.RowsTotal),
		zap.String("rows_completion_ratio", s.Percent),
		zap.Uint64("chunks_completed", s.Chunks),
		zap.Uint64("chunks_remaining", s.ChunksRemaining))
}

// Progress tracks the dump counters shared by the workers and prints them every interval
type Progress struct {
	Tables   []*chunk.Table
	Interval time.Duration
	Sink     ProgressSink

	RowsProcessed   *atomic.Uint64
	ChunksProcessed *atomic.Uint64
	BytesProcessed  *atomic.Uint64

	lastRowsProcessed uint64
	lastTime          time.Time
	startedTime       time.Time
}

func NewProgresser(tables []*chunk.Table, intervalSec int, sink ProgressSink) *Progress {
	if intervalSec <= 0 {
		intervalSec = constant.DefaultDumpProgressInterval
	}
	if sink == nil {
		sink = loggerProgressSink{}
	}
	return &Progress{
		Tables:          tables,
		Interval:        time.Duration(intervalSec) * time.Second,
		Sink:            sink,
		RowsProcessed:   atomic.NewUint64(0),
		ChunksProcessed: atomic.NewUint64(0),
		BytesProcessed:  atomic.NewUint64(0),
	}
}

// PrintProgress reports every interval until the context is done or done is closed
func (p *Progress) PrintProgress(ctx context.Context, done <-chan struct{}) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	p.startedTime = time.Now()
	p.lastTime = p.startedTime
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		case <-ticker.C:
			p.Report()
		}
	}
}

// Report emits one snapshot per started table and the overall throughput
func (p *Progress) Report() {
	var rowsTotal, chunksRemaining, tablesCompleted uint64
	for _, t := range p.Tables {
		status := t.Status()
		if status == constant.TableStatusUndefined {
			continue
		}
		if status == constant.TableStatusNoMore && t.Running() == 0 {
			tablesCompleted++
		}
		s := TableSnapshot(t)
		rowsTotal += s.RowsTotal
		chunksRemaining += s.ChunksRemaining
		p.Sink.Report(s)
	}

	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime).Seconds()
	rows := p.RowsProcessed.Load()
	var rowsPerSec float64
	if elapsed > 0 {
		rowsPerSec = float64(rows-p.lastRowsProcessed) / elapsed
	}
	p.lastRowsProcessed = rows
	p.lastTime = currentTime

	fields := []zap.Field{
		zap.Int("table_counts", len(p.Tables)),
		zap.Uint64("tables_completed", tablesCompleted),
		zap.String("tables_completion_ratio", Percent(tablesCompleted, uint64(len(p.Tables)))),
		zap.Uint64("chunks_completed", p.ChunksProcessed.Load()),
		zap.Uint64("chunks_remaining_estimated", chunksRemaining),
		zap.Uint64("rows_counts", rowsTotal),
		zap.Uint64("rows_completed", rows),
		zap.String("processed_rows/sec", fmt.Sprintf("%2.f", math.Round(rowsPerSec))),
		zap.String("bytes_written", humanize.Bytes(p.BytesProcessed.Load())),
		zap.String("cost", time.Since(p.startedTime).Truncate(time.Second).String()),
	}
	if rowsPerSec > 0 && rowsTotal > rows {
		eta := time.Duration(float64(rowsTotal-rows)/rowsPerSec) * time.Second
		fields = append(fields, zap.String("remaining_time", eta.Truncate(time.Second).String()))
	}
	logger.Info("dump task progress monitoring", fields...)
}

// TableSnapshot reads the progress of the table
func TableSnapshot(t *chunk.Table) ProgressSnapshot {
	rows, total := t.Rows(), t.RowsTotal()
	return ProgressSnapshot{
		SchemaName:      t.SchemaName,
		TableName:       t.TableName,
		Status:          t.Status(),
		Rows:            rows,
		RowsTotal:       total,
		Percent:         Percent(rows, total),
		Chunks:          t.ChunkCount(),
		ChunksRemaining: t.EstimatedRemaining(),
	}
}

// Percent renders done over total with two decimals, capped at 100% since totals are estimates
func Percent(done, total uint64) string {
	if total == 0 {
		return "0.00%"
	}
	hundred := decimal.NewFromInt(100)
	p := decimal.NewFromInt(int64(done)).Div(decimal.NewFromInt(int64(total))).Mul(hundred)
	return decimal.Min(p, hundred).StringFixed(2) + "%"
}
