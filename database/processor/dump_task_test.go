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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wentaojin/dbdumper/chunk"
	"github.com/wentaojin/dbdumper/database"
	"github.com/wentaojin/dbdumper/database/mysql"
	"github.com/wentaojin/dbdumper/utils/configutil"
	"github.com/wentaojin/dbdumper/utils/constant"
)

const mysqlPrelude = "/*!40101 SET NAMES utf8mb4*/;\n/*!40014 SET FOREIGN_KEY_CHECKS=0*/;\n/*!40103 SET TIME_ZONE='+00:00' */;\n"

func createMockDB(t *testing.T) (*mysql.Database, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	return &mysql.Database{DBConn: db}, mock
}

func newTestTask(t *testing.T, db *mysql.Database, opts ...configutil.DumpOption) *DumpTask {
	dumpOpts := configutil.DefaultDumpOptions().Apply(opts...)
	dumpOpts.SchemaName = "db"
	dumpOpts.OutputDir = t.TempDir()
	dt := NewDumpTask(context.Background(), db, configutil.DefaultDatasourceConfig(), dumpOpts)
	dt.Stdout = &bytes.Buffer{}
	return dt
}

func TestDumpTaskEndToEnd(t *testing.T) {
	db, mock := createMockDB(t)
	mock.MatchExpectationsInOrder(false)

	mock.ExpectQuery("^SELECT TABLE_NAME FROM information_schema.TABLES").WithArgs("db").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("t1").AddRow("t2"))
	mock.ExpectQuery("FROM information_schema.STATISTICS").WithArgs("db", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"INDEX_NAME", "NON_UNIQUE", "COLUMN_NAME", "CARDINALITY"}).
			AddRow("PRIMARY", "0", "id", "2"))
	mock.ExpectQuery("FROM information_schema.STATISTICS").WithArgs("db", "t2").
		WillReturnRows(sqlmock.NewRows([]string{"INDEX_NAME", "NON_UNIQUE", "COLUMN_NAME", "CARDINALITY"}))
	mock.ExpectQuery("^EXPLAIN SELECT \\* FROM `db`.`t1`$").
		WillReturnRows(sqlmock.NewRows([]string{"id", "select_type", "table", "rows"}).AddRow(1, "SIMPLE", "t1", 2))
	mock.ExpectQuery("^EXPLAIN SELECT \\* FROM `db`.`t2`$").
		WillReturnRows(sqlmock.NewRows([]string{"id", "select_type", "table", "rows"}).AddRow(1, "SIMPLE", "t2", 1))
	mock.ExpectQuery("^SELECT /\\*!40001 SQL_NO_CACHE \\*/ \\* FROM `db`.`t1`$").
		WillReturnRows(mock.NewRowsWithColumnDefinition(
			mock.NewColumn("id").OfType("INT", int64(0)),
			mock.NewColumn("name").OfType("VARCHAR", "")).
			AddRow(int64(1), "a").
			AddRow(int64(2), nil))
	mock.ExpectQuery("^SELECT /\\*!40001 SQL_NO_CACHE \\*/ \\* FROM `db`.`t2`$").
		WillReturnRows(mock.NewRowsWithColumnDefinition(
			mock.NewColumn("v").OfType("VARCHAR", "")).
			AddRow("x'y"))

	dt := newTestTask(t, db, configutil.WithDumpThreads(2))
	require.NoError(t, database.IDatabaseRun(dt))
	require.NoError(t, mock.ExpectationsWereMet())

	dir := dt.DumpOptions.OutputDir
	t1, err := os.ReadFile(filepath.Join(dir, "db.t1.00001.00000.sql"))
	require.NoError(t, err)
	assert.Equal(t, mysqlPrelude+"INSERT INTO `t1` VALUES(1,'a')\n,(2,NULL)\n;\n", string(t1))
	t2, err := os.ReadFile(filepath.Join(dir, "db.t2.00001.00000.sql"))
	require.NoError(t, err)
	assert.Equal(t, mysqlPrelude+"INSERT INTO `t2` VALUES('x\\'y')\n;\n", string(t2))

	for _, tb := range dt.Tables() {
		assert.Equal(t, constant.TableStatusNoMore, tb.Status())
	}
	assert.Equal(t, uint64(0), dt.Errors())

	raw, err := os.ReadFile(filepath.Join(dir, constant.DumpMetadataFileName))
	require.NoError(t, err)
	var m DumpMetadata
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, dt.RunID, m.RunID)
	require.Len(t, m.Tables, 2)
	assert.Equal(t, "t1", m.Tables[0].TableName)
	assert.Equal(t, []string{"id"}, m.Tables[0].KeyColumns)
	assert.Equal(t, uint64(2), m.Tables[0].Rows)
	assert.Equal(t, uint64(1), m.Tables[1].Rows)
	assert.Contains(t, dt.Stdout.(*bytes.Buffer).String(), "finished")
}

func TestDumpTaskInitInvalidFormat(t *testing.T) {
	db, _ := createMockDB(t)
	dt := newTestTask(t, db, func(opts *configutil.DumpOptions) {
		opts.OutputFormat = constant.DumpOutputFormatCSV
		opts.FieldsEnclosedBy = "||"
	})
	err := dt.Init()
	require.Error(t, err)
}

func TestChunkQuery(t *testing.T) {
	db, _ := createMockDB(t)
	dt := newTestTask(t, db)
	tb := chunk.NewTable("db", "t1", []string{"id", "k"})

	c := &chunk.Chunk{Where: "`id` >= 1 AND `id` < 100", Partition: "p0"}
	assert.Equal(t, "SELECT /*!40001 SQL_NO_CACHE */ * FROM `db`.`t1` PARTITION (`p0`) WHERE `id` >= 1 AND `id` < 100",
		dt.chunkQuery(tb, c))

	dt.DumpOptions.OrderByPrimaryKey = true
	assert.Equal(t, "SELECT /*!40001 SQL_NO_CACHE */ * FROM `db`.`t1` ORDER BY `id`,`k`",
		dt.chunkQuery(tb, &chunk.Chunk{}))
	assert.Equal(t, "SELECT /*!40001 SQL_NO_CACHE */ * FROM `db`.`t2`",
		dt.chunkQuery(chunk.NewTable("db", "t2", nil), &chunk.Chunk{}))
}

func TestQueryChunkRetry(t *testing.T) {
	const query = "SELECT * FROM `db`.`t1`"
	pattern := regexp.QuoteMeta(query)
	notExist := &gomysql.MySQLError{Number: constant.MySQLErrorCodeTableNotExist, Message: "Table 'db.t1' doesn't exist"}

	testCases := []struct {
		name           string
		successMissing bool
		setup          func(mock sqlmock.Sqlmock)
		wantRows       bool
		wantErr        string
		wantStatus     string
	}{
		{
			name: "retry after ping",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(pattern).WillReturnError(errors.New("invalid connection"))
				mock.ExpectPing()
				mock.ExpectQuery(pattern).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
			},
			wantRows:   true,
			wantStatus: constant.TableStatusUndefined,
		},
		{
			name: "retry failed",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(pattern).WillReturnError(errors.New("invalid connection"))
				mock.ExpectPing()
				mock.ExpectQuery(pattern).WillReturnError(errors.New("invalid connection"))
			},
			wantErr:    "retry failed",
			wantStatus: constant.TableStatusUndefined,
		},
		{
			name: "ping failed",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(pattern).WillReturnError(errors.New("invalid connection"))
				mock.ExpectPing().WillReturnError(errors.New("server gone"))
			},
			wantErr:    "ping failed",
			wantStatus: constant.TableStatusUndefined,
		},
		{
			name:           "table not exist tolerated",
			successMissing: true,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(pattern).WillReturnError(notExist)
			},
			wantStatus: constant.TableStatusNoMore,
		},
		{
			name: "table not exist",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(pattern).WillReturnError(notExist)
				mock.ExpectPing()
				mock.ExpectQuery(pattern).WillReturnError(notExist)
			},
			wantErr:    "isn't exist",
			wantStatus: constant.TableStatusUndefined,
		},
		{
			name: "table not exist then found on retry",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(pattern).WillReturnError(notExist)
				mock.ExpectPing()
				mock.ExpectQuery(pattern).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
			},
			wantRows:   true,
			wantStatus: constant.TableStatusUndefined,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := createMockDB(t)
			tc.setup(mock)

			dt := newTestTask(t, db)
			dt.DumpOptions.SuccessOnTableNotExist = tc.successMissing
			tb := chunk.NewTable("db", "t1", nil)

			rows, err := dt.queryChunk(context.Background(), tb, &chunk.Chunk{Number: 1}, query)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			} else {
				require.NoError(t, err)
			}
			if tc.wantRows {
				require.NotNil(t, rows)
				rows.Close()
			} else {
				assert.Nil(t, rows)
			}
			assert.Equal(t, tc.wantStatus, tb.Status())
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDumpTaskLast(t *testing.T) {
	db, _ := createMockDB(t)
	dt := newTestTask(t, db)
	require.NoError(t, dt.Last())
	assert.FileExists(t, filepath.Join(dt.DumpOptions.OutputDir, constant.DumpMetadataFileName))

	dt.errors.Inc()
	err := dt.Last()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[1] errors")

	dt.Shutdown()
	err = dt.Last()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interrupted")
}
