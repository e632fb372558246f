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
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/wentaojin/dbdumper/chunk"
	"github.com/wentaojin/dbdumper/logger"
	"github.com/wentaojin/dbdumper/utils/constant"
	"github.com/wentaojin/dbdumper/utils/stringutil"
	"github.com/wentaojin/dbdumper/writer"
	"go.uber.org/zap"
)

// statement cache keys of a table
const (
	statementInsertPrefix  = "insert-prefix"
	statementHeader        = "header"
	statementLoadDataAfter = "load-data-suffix"
)

// dumpChunk queries the rows of the chunk and streams them into the files of the target
func (w *DumpWorker) dumpChunk(ctx context.Context, t *chunk.Table, c *chunk.Chunk, target writer.Target) error {
	dt := w.task
	startTime := time.Now()
	query := dt.chunkQuery(t, c)

	rows, err := dt.queryChunk(ctx, t, c, query)
	if err != nil {
		return err
	}
	if rows == nil {
		return nil
	}
	defer rows.Close()

	columns, err := chunkColumns(rows)
	if err != nil {
		return fmt.Errorf("the table [%s] chunk [%d] column types failed: %v", t.String(), c.Number, err)
	}

	s := &writer.Streamer{
		Name:     t.String(),
		Format:   dt.format,
		Pipeline: w.pipeline,
		Target:   target,
		Columns:  columns,
		Prelude:  dt.prelude,
		InsertPrefix: t.Statement(statementInsertPrefix, func() string {
			return dt.format.InsertPrefix(t.TableName, columns, dt.DatabaseS.IdentifierQuote)
		}),
		StatementFile:    dt.statementFile(t, columns),
		FileSizeLimit:    t.ChunkFilesize() * constant.DefaultDumpMegabyte,
		Shutdown:         dt.shutdown,
		ProgressInterval: time.Duration(dt.DumpOptions.ProgressInterval) * time.Second,
		OnRows: func(n uint64) {
			t.AddRows(n)
			dt.progress.RowsProcessed.Add(n)
		},
		OnProgress: func(n uint64) {
			logger.Info("dump chunk progress",
				append(w.chunkFields(t, c),
					zap.Uint64("rows_dumped", n),
					zap.String("table_completion_ratio", Percent(t.Rows(), t.RowsTotal())))...)
		},
	}
	if dt.format.IncludeHeader {
		s.Header = t.Statement(statementHeader, func() string {
			return dt.format.Header(columns)
		})
	}

	res, err := s.Stream(rows)
	size := filesSize(res)
	dt.progress.BytesProcessed.Add(size)
	if err != nil {
		return fmt.Errorf("the table [%s] chunk [%d] dump failed: %v", t.String(), c.Number, err)
	}
	if res.Abandoned {
		logger.Warn("dump chunk abandoned by shutdown, the written statements are kept",
			append(w.chunkFields(t, c), zap.Uint64("rows_dumped", res.Rows), zap.Strings("files", res.Files))...)
		return nil
	}
	logger.Debug("dump chunk rows written",
		append(w.chunkFields(t, c),
			zap.Uint64("rows_dumped", res.Rows),
			zap.Int("files", len(res.Files)),
			zap.String("files_size", humanize.Bytes(size)),
			zap.String("cost", time.Since(startTime).String()))...)
	return nil
}

// chunkQuery renders SELECT <hint> * FROM <source> [WHERE ...] [ORDER BY <key>]
func (dt *DumpTask) chunkQuery(t *chunk.Table, c *chunk.Chunk) string {
	db := dt.DatabaseS
	var b strings.Builder
	b.WriteString("SELECT ")
	if hint := db.QueryHint(); hint != "" {
		b.WriteString(hint)
		b.WriteString(" ")
	}
	b.WriteString("* FROM ")
	b.WriteString(db.TableSource(t.SchemaName, t.TableName, c.Partition))
	if c.Where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(c.Where)
	}
	if dt.DumpOptions.OrderByPrimaryKey && len(t.KeyColumns) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(stringutil.StringJoin(lo.Map(t.KeyColumns, func(col string, _ int) string {
			return db.IdentifierQuote(col)
		}), constant.StringSeparatorComma))
	}
	return b.String()
}

// queryChunk runs the chunk query, a failure pings the connection and retries once.
// A nil result without error means the table is gone and tolerated, otherwise a missing table
// takes the same retry path.
func (dt *DumpTask) queryChunk(ctx context.Context, t *chunk.Table, c *chunk.Chunk, query string) (*sql.Rows, error) {
	db := dt.DatabaseS
	rows, err := db.QueryContext(ctx, query)
	if err == nil {
		return rows, nil
	}
	if db.IsTableNotExistError(err) && dt.DumpOptions.SuccessOnTableNotExist {
		logger.Warn("dump table not exist, skip the table",
			zap.String("schema_name_s", t.SchemaName),
			zap.String("table_name_s", t.TableName),
			zap.Error(err))
		t.Abandon()
		return nil, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	logger.Warn("dump chunk query failed, ping the connection and retry",
		zap.String("schema_name_s", t.SchemaName),
		zap.String("table_name_s", t.TableName),
		zap.Uint64("chunk_number", c.Number),
		zap.String("sql", query),
		zap.Error(err))
	if perr := db.PingDatabaseConnection(); perr != nil {
		return nil, fmt.Errorf("the table [%s] chunk [%d] query failed [%v], and the connection ping failed: %v", t.String(), c.Number, err, perr)
	}
	rows, err = db.QueryContext(ctx, query)
	if err != nil && db.IsTableNotExistError(err) {
		return nil, fmt.Errorf("the table [%s] chunk [%d] query retry failed, the table isn't exist: %v", t.String(), c.Number, err)
	}
	if err != nil {
		return nil, fmt.Errorf("the table [%s] chunk [%d] query [%s] retry failed: %v", t.String(), c.Number, query, err)
	}
	return rows, nil
}

// statementFile returns the renderer of the statement file loading a rows file, nil for sql output
func (dt *DumpTask) statementFile(t *chunk.Table, columns []writer.Column) func(rowsFile string) string {
	f, quote := dt.format, dt.DatabaseS.IdentifierQuote
	switch f.Kind {
	case constant.DumpOutputFormatSQL:
		return nil
	case constant.DumpOutputFormatClickHouse:
		return func(rowsFile string) string {
			return f.ClickHouseStatement(dt.prelude, t.TableName, rowsFile, quote)
		}
	default:
		suffix := t.Statement(statementLoadDataAfter, func() string {
			return f.LoadDataSuffix(t.TableName, columns, quote)
		})
		return func(rowsFile string) string {
			return f.LoadDataStatement(dt.prelude, rowsFile, suffix)
		}
	}
}

func (dt *DumpTask) fileTarget(t *chunk.Table, c *chunk.Chunk) *writer.FileTarget {
	return &writer.FileTarget{
		Dir:         dt.DumpOptions.OutputDir,
		SchemaName:  t.SchemaName,
		TableName:   t.TableName,
		ChunkNumber: c.Number,
		Format:      dt.format,
		Compress:    dt.DumpOptions.Compress,
	}
}

func chunkColumns(rows *sql.Rows) ([]writer.Column, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	return lo.Map(types, func(ct *sql.ColumnType, _ int) writer.Column {
		return writer.NewColumn(ct.Name(), ct.DatabaseTypeName())
	}), nil
}

func filesSize(res *writer.StreamResult) uint64 {
	if res == nil {
		return 0
	}
	var size uint64
	for _, f := range res.Files {
		if fi, err := os.Stat(f); err == nil {
			size += uint64(fi.Size())
		}
	}
	return size
}
