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
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createMockDB(t *testing.T) (*Database, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	return &Database{DBConn: db}, mock
}

func TestDialect(t *testing.T) {
	d := &Database{}
	assert.Equal(t, "`my``tab`", d.IdentifierQuote("my`tab"))
	assert.Equal(t, `'it\'s \\ ok'`, d.LiteralQuote(`it's \ ok`))
	assert.Equal(t, "`db`.`t1`", d.TableSource("db", "t1", ""))
	assert.Equal(t, "`db`.`t1` PARTITION (`p0`)", d.TableSource("db", "t1", "p0"))

	assert.True(t, d.IsTableNotExistError(&mysql.MySQLError{Number: 1146, Message: "Table 'db.t1' doesn't exist"}))
	assert.False(t, d.IsTableNotExistError(&mysql.MySQLError{Number: 1064}))
	assert.False(t, d.IsTableNotExistError(errors.New("boom")))
}

func TestGetDatabaseTableRows(t *testing.T) {
	d, mock := createMockDB(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT /*!40001 SQL_NO_CACHE */ COUNT(*) FROM `db`.`t1`")).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(1000))
	rows, err := d.GetDatabaseTableRows(ctx, "db", "t1", true)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), rows)

	mock.ExpectQuery(regexp.QuoteMeta("EXPLAIN SELECT * FROM `db`.`t1`")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "select_type", "table", "rows"}).AddRow(1, "SIMPLE", "t1", 987))
	rows, err = d.GetDatabaseTableRows(ctx, "db", "t1", false)
	require.NoError(t, err)
	assert.Equal(t, uint64(987), rows)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDatabaseTableIndexes(t *testing.T) {
	d, mock := createMockDB(t)
	mock.ExpectQuery("FROM information_schema.STATISTICS").
		WithArgs("db", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"INDEX_NAME", "NON_UNIQUE", "COLUMN_NAME", "CARDINALITY"}).
			AddRow("PRIMARY", "0", "id", "1000").
			AddRow("PRIMARY", "0", "k", "1000").
			AddRow("idx_c", "1", "c", "20"))

	indexes, err := d.GetDatabaseTableIndexes(context.Background(), "db", "t1")
	require.NoError(t, err)
	require.Len(t, indexes, 2)
	assert.True(t, indexes[0].Primary)
	assert.Equal(t, []string{"id", "k"}, indexes[0].Columns)
	assert.False(t, indexes[1].Unique)
	assert.Equal(t, uint64(20), indexes[1].Cardinality)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDatabaseTablePartitions(t *testing.T) {
	d, mock := createMockDB(t)
	mock.ExpectQuery("FROM information_schema.PARTITIONS").
		WithArgs("db", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"PARTITION_NAME"}).AddRow("p0").AddRow("p1"))

	partitions, err := d.GetDatabaseTablePartitions(context.Background(), "db", "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p0", "p1"}, partitions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDatabaseTableColumnMinMax(t *testing.T) {
	d, mock := createMockDB(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT /*!40001 SQL_NO_CACHE */ MIN(`id`),MAX(`id`) FROM `db`.`t1` WHERE `id` > 0")).
		WillReturnRows(sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("MIN(`id`)").OfType("UNSIGNED BIGINT", uint64(0)),
			sqlmock.NewColumn("MAX(`id`)").OfType("UNSIGNED BIGINT", uint64(0))).
			AddRow(uint64(1), uint64(1000)))
	mm, err := d.GetDatabaseTableColumnMinMax(ctx, "db", "t1", "id", "`id` > 0")
	require.NoError(t, err)
	assert.False(t, mm.Null)
	assert.Equal(t, "1", mm.Min)
	assert.Equal(t, "1000", mm.Max)
	assert.Equal(t, "UNSIGNED BIGINT", mm.DatabaseTypeName)

	mock.ExpectQuery(regexp.QuoteMeta("MIN(`id`),MAX(`id`) FROM `db`.`t2`")).
		WillReturnRows(sqlmock.NewRows([]string{"min", "max"}).AddRow(nil, nil))
	mm, err = d.GetDatabaseTableColumnMinMax(ctx, "db", "t2", "id", "")
	require.NoError(t, err)
	assert.True(t, mm.Null)

	mock.ExpectQuery("MIN").WillReturnError(sql.ErrConnDone)
	_, err = d.GetDatabaseTableColumnMinMax(ctx, "db", "t3", "id", "")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilterDatabaseTable(t *testing.T) {
	d, mock := createMockDB(t)
	mock.ExpectQuery("FROM information_schema.TABLES").WithArgs("db").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("t1").AddRow("t2"))
	tables, err := d.FilterDatabaseTable(context.Background(), "db", []string{"t2"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, tables)

	mock.ExpectQuery("FROM information_schema.TABLES").WithArgs("db").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("t1"))
	_, err = d.FilterDatabaseTable(context.Background(), "db", []string{"t9"}, nil)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
