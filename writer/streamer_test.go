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
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wentaojin/dbdumper/utils/constant"
	"go.uber.org/atomic"
)

type fakeRows struct {
	data [][]any
	pos  int
	err  error
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	for i, d := range dest {
		p := d.(*sql.RawBytes)
		if row[i] == nil {
			*p = nil
			continue
		}
		*p = sql.RawBytes(fmt.Sprint(row[i]))
	}
	return nil
}

func (r *fakeRows) Err() error {
	return r.err
}

type memTarget struct {
	format *Format
	rows   []*memSink
	stmts  []*memSink
	err    error
}

func (t *memTarget) Open(subPart int) (Sink, Sink, error) {
	rows := &memSink{name: fmt.Sprintf("out/db.t.00001.%05d.%s", subPart, t.format.RowsFileSuffix()), err: t.err}
	t.rows = append(t.rows, rows)
	if !t.format.HasStatementFile() {
		return rows, nil, nil
	}
	stmt := &memSink{name: fmt.Sprintf("out/db.t.00001.%05d.sql", subPart)}
	t.stmts = append(t.stmts, stmt)
	return rows, stmt, nil
}

func newSQLStreamer(t *testing.T, statementSize int) (*Streamer, *memTarget) {
	f, err := NewFormat(FormatOptions{OutputFormat: constant.DumpOutputFormatSQL, StatementSize: statementSize})
	require.NoError(t, err)
	target := &memTarget{format: f}
	return &Streamer{
		Name:         "db.t",
		Format:       f,
		Pipeline:     NewPipeline(2),
		Target:       target,
		Columns:      []Column{NewColumn("id", "INT"), NewColumn("name", "VARCHAR")},
		Prelude:      "P;\n",
		InsertPrefix: "INSERT INTO `t` VALUES",
	}, target
}

func TestStreamerSQL(t *testing.T) {
	s, target := newSQLStreamer(t, 0)
	defer s.Pipeline.Close()
	var counted uint64
	s.OnRows = func(n uint64) { counted += n }

	res, err := s.Stream(&fakeRows{data: [][]any{{1, "a"}, {2, nil}, {3, "c"}}})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Rows)
	assert.Equal(t, uint64(3), counted)
	assert.Equal(t, []string{"out/db.t.00001.00000.sql"}, res.Files)
	require.Len(t, target.rows, 1)
	assert.Equal(t, "P;\nINSERT INTO `t` VALUES(1,'a')\n,(2,NULL)\n,(3,'c')\n;\n", target.rows[0].String())
	assert.True(t, target.rows[0].closed)
}

func TestStreamerRotation(t *testing.T) {
	s, target := newSQLStreamer(t, 1)
	defer s.Pipeline.Close()
	s.FileSizeLimit = 1

	res, err := s.Stream(&fakeRows{data: [][]any{{1, "a"}, {2, "b"}, {3, "c"}}})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Rows)
	require.Len(t, target.rows, 3)
	for i, sink := range target.rows {
		content := sink.String()
		assert.Equal(t, fmt.Sprintf("P;\nINSERT INTO `t` VALUES(%d,'%c')\n;\n", i+1, 'a'+i), content)
		assert.True(t, strings.HasSuffix(content, ";\n"))
		assert.True(t, sink.closed)
	}
}

func newLoadDataStreamer(t *testing.T) (*Streamer, *memTarget) {
	f, err := NewFormat(FormatOptions{OutputFormat: constant.DumpOutputFormatLoadData, IncludeHeader: true})
	require.NoError(t, err)
	columns := []Column{NewColumn("id", "INT"), NewColumn("name", "VARCHAR")}
	suffix := f.LoadDataSuffix("t", columns, backtick)
	target := &memTarget{format: f}
	return &Streamer{
		Name:     "db.t",
		Format:   f,
		Pipeline: NewPipeline(2),
		Target:   target,
		Columns:  columns,
		Header:   f.Header(columns),
		StatementFile: func(rowsFile string) string {
			return f.LoadDataStatement("", rowsFile, suffix)
		},
	}, target
}

func TestStreamerLoadData(t *testing.T) {
	s, target := newLoadDataStreamer(t)
	defer s.Pipeline.Close()

	res, err := s.Stream(&fakeRows{data: [][]any{{1, "a"}, {2, nil}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"out/db.t.00001.00000.dat", "out/db.t.00001.00000.sql"}, res.Files)
	assert.Equal(t, "id\tname\n1\ta\n2\t\\N\n", target.rows[0].String())
	stmt := target.stmts[0].String()
	assert.True(t, strings.HasPrefix(stmt, "LOAD DATA LOCAL INFILE 'db.t.00001.00000.dat' INTO TABLE `t` "))
	assert.Contains(t, stmt, "IGNORE 1 LINES (`id`,`name`);\n")
}

func TestStreamerEmptyChunk(t *testing.T) {
	s, target := newLoadDataStreamer(t)
	defer s.Pipeline.Close()

	res, err := s.Stream(&fakeRows{})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.Rows)
	assert.Equal(t, "id\tname\n", target.rows[0].String())
	assert.Contains(t, target.stmts[0].String(), "IGNORE 1 LINES")

	sqlStreamer, sqlTarget := newSQLStreamer(t, 0)
	defer sqlStreamer.Pipeline.Close()
	_, err = sqlStreamer.Stream(&fakeRows{})
	require.NoError(t, err)
	assert.Equal(t, "", sqlTarget.rows[0].String())
}

func TestStreamerShutdown(t *testing.T) {
	s, target := newSQLStreamer(t, 1)
	defer s.Pipeline.Close()
	s.Shutdown = atomic.NewBool(true)

	res, err := s.Stream(&fakeRows{data: [][]any{{1, "a"}, {2, "b"}, {3, "c"}}})
	require.NoError(t, err)
	assert.True(t, res.Abandoned)
	assert.Equal(t, uint64(1), res.Rows)
	assert.Equal(t, "P;\nINSERT INTO `t` VALUES(1,'a')\n;\n", target.rows[0].String())
}

func TestStreamerErrors(t *testing.T) {
	s, target := newSQLStreamer(t, 0)
	defer s.Pipeline.Close()
	target.err = errors.New("disk full")
	_, err := s.Stream(&fakeRows{data: [][]any{{1, "a"}}})
	assert.Error(t, err)

	target.err = nil
	_, err = s.Stream(&fakeRows{data: [][]any{{1, "a"}}, err: errors.New("connection lost")})
	assert.Error(t, err)
	assert.Len(t, target.rows, 2)
	assert.Equal(t, "P;\nINSERT INTO `t` VALUES(1,'a')\n;\n", target.rows[1].String())
}
