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
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/samber/lo"
	"github.com/wentaojin/dbdumper/logger"
	"github.com/wentaojin/dbdumper/utils/constant"
	"github.com/wentaojin/dbdumper/utils/structure"
	"go.uber.org/zap"
)

// Prober is the discovery surface the selector needs from the source database
type Prober interface {
	GetDatabaseTableRows(ctx context.Context, schemaName, tableName string, exact bool) (uint64, error)
	GetDatabaseTablePartitions(ctx context.Context, schemaName, tableName string) ([]string, error)
	GetDatabaseTableColumnMinMax(ctx context.Context, schemaName, tableName, columnName, where string) (*structure.ColumnMinMax, error)
	IdentifierQuote(name string) string
	LiteralQuote(value string) string
}

type SelectorOptions struct {
	CheckRowCount      bool
	SplitPartitions    bool
	PartitionRegex     *regexp.Regexp
	SplitIntegerTables bool
	CharChunk          bool
	CharChunkAlphabet  string
	// Where is the global filter every probe and chunk is scoped by
	Where          string
	AdaptiveTarget time.Duration
	GrowthFactor   float64
}

// Selector inspects a table once and picks its chunk step
type Selector struct {
	prober Prober
	opts   SelectorOptions
}

func NewSelector(prober Prober, opts SelectorOptions) *Selector {
	if opts.CharChunkAlphabet == "" {
		opts.CharChunkAlphabet = constant.DefaultDumpCharChunkAlphabet
	}
	if opts.AdaptiveTarget <= 0 {
		opts.AdaptiveTarget = constant.DefaultDumpAdaptiveTargetSecond * time.Second
	}
	if opts.GrowthFactor <= 1 {
		opts.GrowthFactor = constant.DefaultDumpAdaptiveGrowthFactor
	}
	return &Selector{prober: prober, opts: opts}
}

// SetChunkStrategy selects the step of the table and marks it ready
func (s *Selector) SetChunkStrategy(ctx context.Context, t *Table) {
	startTime := time.Now()
	step, rows := s.Select(ctx, t)
	t.SetStrategy(step, rows)
	logger.Info("table chunk strategy determined",
		zap.String("schema_name_s", t.SchemaName),
		zap.String("table_name_s", t.TableName),
		zap.String("chunk_kind", step.Kind()),
		zap.Uint64("rows_total", rows),
		zap.Uint64("chunks_estimated", step.EstimatedRemaining()),
		zap.String("cost", time.Since(startTime).String()))
}

// Select picks the step of the table, any probe failure degrades to a single chunk
func (s *Selector) Select(ctx context.Context, t *Table) (Step, uint64) {
	rows, err := s.prober.GetDatabaseTableRows(ctx, t.SchemaName, t.TableName, s.opts.CheckRowCount)
	if err != nil {
		logger.Debug("table rows probe failed, dump as a single chunk",
			zap.String("schema_name_s", t.SchemaName),
			zap.String("table_name_s", t.TableName),
			zap.Error(err))
		return NewNoneStep(s.opts.Where), 0
	}
	if rows <= minChunkThreshold(t) {
		return NewNoneStep(s.opts.Where), rows
	}

	if s.opts.SplitPartitions || s.opts.PartitionRegex != nil {
		partitions, err := s.prober.GetDatabaseTablePartitions(ctx, t.SchemaName, t.TableName)
		if err != nil {
			logger.Debug("table partitions probe failed",
				zap.String("schema_name_s", t.SchemaName),
				zap.String("table_name_s", t.TableName),
				zap.Error(err))
		}
		partitions = lo.Uniq(lo.Filter(partitions, func(p string, _ int) bool {
			return s.opts.PartitionRegex == nil || s.opts.PartitionRegex.MatchString(p)
		}))
		if len(partitions) > 0 {
			return NewPartitionStep(partitions, s.opts.Where), rows
		}
	}

	if s.opts.SplitIntegerTables && len(t.KeyColumns) > 0 {
		return s.NewKeyStep(ctx, t, 0, "", rows), rows
	}
	return NewNoneStep(s.opts.Where), rows
}

// NewKeyStep builds the step of the key column at position, scoped by the prefix predicate.
// The outer column of a composite key collapses to one value per chunk when the key is dense
// enough to be split further by the next column.
func (s *Selector) NewKeyStep(ctx context.Context, t *Table, position int, prefix string, rows uint64) Step {
	where := JoinWhere(prefix, s.opts.Where)
	if position >= len(t.KeyColumns) {
		return NewNoneStep(where)
	}
	column := t.KeyColumns[position]
	mm, err := s.prober.GetDatabaseTableColumnMinMax(ctx, t.SchemaName, t.TableName, column, where)
	if err != nil {
		logger.Debug("table key column min max probe failed, dump as a single chunk",
			zap.String("schema_name_s", t.SchemaName),
			zap.String("table_name_s", t.TableName),
			zap.String("column_name_s", column),
			zap.Error(err))
		return NewNoneStep(where)
	}
	if mm.Null {
		return NewNoneStep(where)
	}

	quoted := s.prober.IdentifierQuote(column)
	threshold := minChunkThreshold(t)
	opts := []IntegerStepOption{
		WithAdaptiveTarget(s.opts.AdaptiveTarget),
		WithAdaptiveGrowthFactor(s.opts.GrowthFactor),
		WithKeyPosition(position),
	}

	var step interface {
		Step
		Diff() uint64
		Fixed() bool
		Collapse()
		AlignDown()
	}
	switch kind := mm.Kind(); kind {
	case structure.ColumnKindSigned:
		lower, err1 := strconv.ParseInt(mm.Min, 10, 64)
		upper, err2 := strconv.ParseInt(mm.Max, 10, 64)
		if err1 != nil || err2 != nil {
			return NewNoneStep(where)
		}
		step = NewSignedStep(quoted, lower, upper, t.StartingChunkStepSize, t.MinChunkStepSize, t.MaxChunkStepSize, where, opts...)
	case structure.ColumnKindUnsigned:
		lower, err1 := strconv.ParseUint(mm.Min, 10, 64)
		upper, err2 := strconv.ParseUint(mm.Max, 10, 64)
		if err1 != nil || err2 != nil {
			return NewNoneStep(where)
		}
		step = NewUnsignedStep(quoted, lower, upper, t.StartingChunkStepSize, t.MinChunkStepSize, t.MaxChunkStepSize, where, opts...)
	case structure.ColumnKindString:
		if !s.opts.CharChunk {
			return NewNoneStep(where)
		}
		width := 1
		if t.StartingChunkStepSize > 0 && rows/t.StartingChunkStepSize > uint64(len(s.opts.CharChunkAlphabet)) {
			width = 2
		}
		return NewCharStep(quoted, mm.Min, mm.Max, s.opts.CharChunkAlphabet, width, s.prober.LiteralQuote, where)
	default:
		return NewNoneStep(where)
	}

	diff := step.Diff()
	if diff <= threshold {
		return NewNoneStep(where)
	}

	if position == 0 && t.Multicolumn() {
		if rows/diff > threshold {
			step.Collapse()
		} else {
			t.setMulticolumn(false)
		}
	}

	if step.Fixed() {
		step.AlignDown()
	}
	// fixed row ranges configured for the table already bound the chunk size
	if position == 0 && t.MinChunkStepSize != 0 &&
		t.MinChunkStepSize == t.StartingChunkStepSize && t.StartingChunkStepSize == t.MaxChunkStepSize {
		t.setChunkFilesize(0)
	}
	return step
}

func minChunkThreshold(t *Table) uint64 {
	if t.MinChunkStepSize == 0 {
		return constant.DefaultDumpMinChunkStepSize
	}
	return t.MinChunkStepSize
}
