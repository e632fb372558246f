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
package chunk

import (
	"sync"
	"time"

	"github.com/wentaojin/dbdumper/utils/constant"
	"github.com/wentaojin/dbdumper/utils/stringutil"
)

// PullState is the outcome of asking a table for its next chunk
type PullState int

const (
	// PullChunk returns a chunk, the table stays in rotation
	PullChunk PullState = iota
	// PullLastChunk returns the last chunk, the table leaves the rotation
	PullLastChunk
	// PullDefine asks the caller to select the chunk strategy, the table is now defining
	PullDefine
	// PullDefining means another worker is selecting the strategy
	PullDefining
	// PullBusy means the table runs at its concurrency cap
	PullBusy
	// PullDone means the table has no chunk left
	PullDone
)

// Table is the per table dump state shared by the scheduler and the workers
type Table struct {
	SchemaName string
	TableName  string
	// KeyColumns is the chunk key, empty for tables dumped with a single chunk
	KeyColumns []string

	MinChunkStepSize      uint64
	StartingChunkStepSize uint64
	MaxChunkStepSize      uint64
	MaxThreadsPerTable    int

	mu          sync.Mutex
	status      string
	steps       []Step
	running     int
	chunks      uint64
	rowsTotal   uint64
	multicolumn bool
	filesize    uint64
	statements  map[string]string
	notify      func()

	rowsMu sync.Mutex
	rows   uint64
}

// TableOption configures a new table
type TableOption func(t *Table)

func WithChunkStepSize(min, starting, max uint64) TableOption {
	return func(t *Table) {
		t.MinChunkStepSize = min
		t.StartingChunkStepSize = starting
		t.MaxChunkStepSize = max
	}
}

func WithMaxThreadsPerTable(n int) TableOption {
	return func(t *Table) {
		t.MaxThreadsPerTable = n
	}
}

// WithChunkFilesize sets the output rotation size in megabytes, zero disables rotation
func WithChunkFilesize(megabytes uint64) TableOption {
	return func(t *Table) {
		t.filesize = megabytes
	}
}

func NewTable(schemaName, tableName string, keyColumns []string, opts ...TableOption) *Table {
	t := &Table{
		SchemaName:            schemaName,
		TableName:             tableName,
		KeyColumns:            keyColumns,
		MinChunkStepSize:      constant.DefaultDumpMinChunkStepSize,
		StartingChunkStepSize: constant.DefaultDumpMinChunkStepSize,
		MaxChunkStepSize:      constant.DefaultDumpMinChunkStepSize,
		MaxThreadsPerTable:    constant.DefaultDumpMaxThreadsPerTable,
		status:                constant.TableStatusUndefined,
		multicolumn:           len(keyColumns) > 1,
		statements:            make(map[string]string),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.MaxThreadsPerTable <= 0 {
		t.MaxThreadsPerTable = 1
	}
	return t
}

func (t *Table) String() string {
	return stringutil.StringBuilder(t.SchemaName, constant.StringSeparatorDot, t.TableName)
}

// SetNotifier registers the hook signalled on every status transition and chunk completion
func (t *Table) SetNotifier(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notify = fn
}

func (t *Table) signal() {
	if t.notify != nil {
		t.notify()
	}
}

// Pull hands out the next chunk of the table following its lifecycle status
func (t *Table) Pull() (*Chunk, PullState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.status {
	case constant.TableStatusUndefined:
		t.status = constant.TableStatusDefining
		return nil, PullDefine
	case constant.TableStatusDefining:
		return nil, PullDefining
	case constant.TableStatusNoMore:
		return nil, PullDone
	}

	for len(t.steps) > 0 {
		head := t.steps[0]
		if head.Kind() == constant.ChunkKindNone {
			c, ok := head.Advance()
			t.steps = t.steps[1:]
			if !ok {
				continue
			}
			t.finishChunkLocked(c)
			if len(t.steps) == 0 {
				t.status = constant.TableStatusNoMore
				return c, PullLastChunk
			}
			return c, PullChunk
		}

		if t.running >= t.MaxThreadsPerTable {
			return nil, PullBusy
		}
		c, ok := head.Advance()
		if ok {
			t.finishChunkLocked(c)
			return c, PullChunk
		}
		t.steps = t.steps[1:]
	}
	t.status = constant.TableStatusNoMore
	t.signal()
	return nil, PullDone
}

// NeedsSplit reports whether the chunk covers one value of an outer composite key column
// and has to be split by the next column instead of being dumped
func (t *Table) NeedsSplit(c *Chunk) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.multicolumn && c.Kind == constant.ChunkKindInteger && c.KeyPosition+1 < len(t.KeyColumns)
}

func (t *Table) finishChunkLocked(c *Chunk) {
	t.running++
	t.chunks++
	c.Table = t
	c.Number = t.chunks
}

// SetStrategy installs the selected step in front of the step list and marks the table ready
func (t *Table) SetStrategy(step Step, rowsTotal uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rowsTotal = rowsTotal
	if step != nil {
		t.steps = append([]Step{step}, t.steps...)
	}
	t.status = constant.TableStatusReady
	t.signal()
}

// Abandon stops handing out chunks of the table
func (t *Table) Abandon() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = nil
	t.status = constant.TableStatusNoMore
	t.signal()
}

// Defer releases the concurrency slot of a chunk queued for later dumping
func (t *Table) Defer(c *Chunk) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c.deferred {
		return
	}
	c.deferred = true
	t.running--
	t.signal()
}

// ChunkDone releases the chunk slot and tunes its step with the elapsed time
func (t *Table) ChunkDone(c *Chunk, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !c.deferred {
		t.running--
	}
	if tuner, ok := c.step.(Tuner); ok {
		tuner.Tune(elapsed)
	}
	t.signal()
}

func (t *Table) Status() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

func (t *Table) Running() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Table) ChunkCount() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chunks
}

func (t *Table) RowsTotal() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rowsTotal
}

// EstimatedRemaining sums the estimated chunks left over every step
func (t *Table) EstimatedRemaining() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var n uint64
	for _, s := range t.steps {
		n += s.EstimatedRemaining()
	}
	return n
}

// Multicolumn reports whether the composite key is chunked column by column
func (t *Table) Multicolumn() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.multicolumn
}

func (t *Table) setMulticolumn(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.multicolumn = v
}

// ChunkFilesize returns the output rotation size in megabytes, zero disables rotation
func (t *Table) ChunkFilesize() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filesize
}

func (t *Table) setChunkFilesize(v uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.filesize = v
}

// Statement returns the cached statement fragment of the key, building it once
func (t *Table) Statement(key string, build func() string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.statements[key]; ok {
		return s
	}
	s := build()
	t.statements[key] = s
	return s
}

// AddRows counts dumped rows
func (t *Table) AddRows(n uint64) {
	t.rowsMu.Lock()
	t.rows += n
	t.rowsMu.Unlock()
}

func (t *Table) Rows() uint64 {
	t.rowsMu.Lock()
	defer t.rowsMu.Unlock()
	return t.rows
}
