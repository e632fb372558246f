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
package writer

import (
	"database/sql"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pingcap/errors"
	"github.com/wentaojin/dbdumper/logger"
	"github.com/wentaojin/dbdumper/utils/constant"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// RowSource is the result set of a chunk query, *sql.Rows satisfies it
type RowSource interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// Target opens the output files of one chunk sub part by sub part
type Target interface {
	Open(subPart int) (rows Sink, statement Sink, err error)
}

// Streamer serializes a chunk result set into the write pipeline and rotates the output
// files between statements
type Streamer struct {
	Name     string
	Format   *Format
	Pipeline *Pipeline
	Target   Target
	Columns  []Column

	// Prelude opens every insert rows file, InsertPrefix opens every INSERT statement
	Prelude      string
	InsertPrefix string
	Header       string
	// StatementFile renders the statement file content loading the named rows file
	StatementFile func(rowsFile string) string

	// FileSizeLimit rotates once the bytes handed off for a rows file exceed it, zero disables rotation
	FileSizeLimit    uint64
	Shutdown         *atomic.Bool
	ProgressInterval time.Duration
	OnRows           func(rows uint64)
	OnProgress       func(rows uint64)

	subPart   int
	fileBytes uint64
	rowsSink  Sink
	stmtSink  Sink
	lastPrint time.Time
}

type StreamResult struct {
	Rows      uint64
	Files     []string
	Abandoned bool
}

func (s *Streamer) Stream(rows RowSource) (res *StreamResult, err error) {
	res = &StreamResult{}
	f := s.Format
	s.subPart = 0
	s.lastPrint = time.Now()
	s.Pipeline.Reset()
	if s.ProgressInterval <= 0 {
		s.ProgressInterval = constant.DefaultDumpProgressInterval * time.Second
	}

	if err = s.open(res); err != nil {
		return res, err
	}
	defer func() {
		if cerr := s.closeFiles(); err == nil {
			err = cerr
		}
	}()
	buf := s.Pipeline.Buffer()
	s.beginFile()

	values := make([]sql.RawBytes, len(s.Columns))
	dest := make([]any, len(s.Columns))
	for i := range values {
		dest[i] = &values[i]
	}
	row := make([][]byte, len(s.Columns))

	var numRows, rowsInStatement uint64
	rotatePending := false
	for rows.Next() {
		if err = rows.Scan(dest...); err != nil {
			return res, errors.Annotatef(err, "scan rows of [%s] failed", s.Name)
		}
		if rotatePending {
			rotatePending = false
			if err = s.rotate(res); err != nil {
				return res, err
			}
			buf = s.Pipeline.Buffer()
		}

		if rowsInStatement > 0 && f.IsInsert() {
			buf.WriteByte(',')
		}
		for i := range values {
			row[i] = values[i]
		}
		f.WriteRow(buf, s.Columns, row)
		numRows++
		rowsInStatement++

		if buf.Len() <= f.StatementSize {
			continue
		}
		if rowsInStatement == 1 {
			logger.Warn("row bigger than statement size",
				zap.String("table", s.Name),
				zap.String("statement_size", humanize.Bytes(uint64(buf.Len()))))
		}
		buf.WriteString(f.StatementTerminatedBy)
		s.fileBytes += uint64(buf.Len())
		if err = s.Pipeline.Flush(); err != nil {
			return res, err
		}
		s.addRows(res, numRows)
		numRows, rowsInStatement = 0, 0
		buf = s.Pipeline.Buffer()
		if f.IsInsert() {
			buf.WriteString(s.InsertPrefix)
		}
		s.progress(res)

		if s.Shutdown != nil && s.Shutdown.Load() {
			res.Abandoned = true
			return res, nil
		}
		if s.FileSizeLimit > 0 && s.fileBytes > s.FileSizeLimit {
			rotatePending = true
		}
	}

	// a delimited file keeps its header even without rows, the LOAD DATA statement skips that line
	if buf.Len() > 0 && (rowsInStatement > 0 || (!f.IsInsert() && f.IncludeHeader)) {
		if f.IsInsert() {
			buf.WriteString(f.StatementTerminatedBy)
		}
		if err = s.Pipeline.Flush(); err != nil {
			return res, err
		}
	}
	s.addRows(res, numRows)
	if err = s.Pipeline.Drain(); err != nil {
		return res, err
	}
	if err = rows.Err(); err != nil {
		return res, errors.Annotatef(err, "read rows of [%s] failed", s.Name)
	}
	return res, nil
}

func (s *Streamer) open(res *StreamResult) error {
	rows, stmt, err := s.Target.Open(s.subPart)
	if err != nil {
		return err
	}
	s.rowsSink, s.stmtSink = rows, stmt
	s.fileBytes = 0
	res.Files = append(res.Files, rows.Name())
	if stmt != nil {
		res.Files = append(res.Files, stmt.Name())
		if s.StatementFile != nil {
			if _, err := WriteFull(stmt, []byte(s.StatementFile(filepath.Base(rows.Name())))); err != nil {
				return errors.Annotatef(err, "write statement file [%s] failed", stmt.Name())
			}
		}
	}
	return s.Pipeline.SetSink(rows)
}

// beginFile fills the fresh buffer with the per file head of the format
func (s *Streamer) beginFile() {
	buf := s.Pipeline.Buffer()
	switch {
	case s.Format.IsInsert():
		buf.WriteString(s.Prelude)
		buf.WriteString(s.InsertPrefix)
	case s.Format.IncludeHeader:
		buf.WriteString(s.Header)
	}
}

// rotate drains the ring so no statement straddles two files, then opens the next sub part
func (s *Streamer) rotate(res *StreamResult) error {
	previous := s.fileBytes
	if err := s.closeFiles(); err != nil {
		return err
	}
	s.subPart++
	if err := s.open(res); err != nil {
		return err
	}
	s.beginFile()
	logger.Debug("dump file rotated",
		zap.String("table", s.Name),
		zap.Int("sub_part", s.subPart),
		zap.String("previous_file_size", humanize.Bytes(previous)))
	return nil
}

func (s *Streamer) closeFiles() error {
	err := s.Pipeline.Drain()
	if s.rowsSink != nil {
		if cerr := s.rowsSink.Close(); err == nil {
			err = cerr
		}
		s.rowsSink = nil
	}
	if s.stmtSink != nil {
		if cerr := s.stmtSink.Close(); err == nil {
			err = cerr
		}
		s.stmtSink = nil
	}
	// the next job starts from a sink-less pipeline
	if serr := s.Pipeline.SetSink(nil); err == nil {
		err = serr
	}
	return err
}

func (s *Streamer) addRows(res *StreamResult, n uint64) {
	if n == 0 {
		return
	}
	res.Rows += n
	if s.OnRows != nil {
		s.OnRows(n)
	}
}

func (s *Streamer) progress(res *StreamResult) {
	if s.OnProgress == nil || time.Since(s.lastPrint) < s.ProgressInterval {
		return
	}
	s.lastPrint = time.Now()
	s.OnProgress(res.Rows)
}
