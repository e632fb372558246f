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
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/wentaojin/dbdumper/database/mysql"
	"github.com/wentaojin/dbdumper/database/postgresql"
	"github.com/wentaojin/dbdumper/utils/configutil"
	"github.com/wentaojin/dbdumper/utils/constant"
	"github.com/wentaojin/dbdumper/utils/structure"
)

type IDatabase interface {
	QueryContext(ctx context.Context, sqlStr string, args ...any) (*sql.Rows, error)
	GeneralQuery(ctx context.Context, sqlStr string, args ...any) ([]string, []map[string]string, error)
	PingDatabaseConnection() error
	Close() error
	IDatabaseTableFilter
	IDatabaseDialect
	IDatabaseDataDump
}

type IDatabaseTableFilter interface {
	FilterDatabaseTable(ctx context.Context, sourceSchema string, includeTableS, excludeTableS []string) ([]string, error)
}

// IDatabaseDialect renders identifiers, literals and table sources of the database
type IDatabaseDialect interface {
	IdentifierQuote(name string) string
	LiteralQuote(value string) string
	QueryHint() string
	TableSource(schemaName, tableName, partitionName string) string
	IsTableNotExistError(err error) bool
}

// IDatabaseDataDump used for chunk strategy discovery
type IDatabaseDataDump interface {
	GetDatabaseTableRows(ctx context.Context, schemaName, tableName string, exact bool) (uint64, error)
	GetDatabaseTableIndexes(ctx context.Context, schemaName, tableName string) ([]structure.Index, error)
	GetDatabaseTablePartitions(ctx context.Context, schemaName, tableName string) ([]string, error)
	GetDatabaseTableColumnMinMax(ctx context.Context, schemaName, tableName, columnName, where string) (*structure.ColumnMinMax, error)
}

// IDatabaseRunner used for database table dump runner
type IDatabaseRunner interface {
	Init() error
	Run() error
	Last() error
}

// IDatabaseRun drives the runner stages in order, the last stage runs even when the run stage fails
// so that the metadata of the finished tables is kept
func IDatabaseRun(i IDatabaseRunner) error {
	if err := i.Init(); err != nil {
		return err
	}
	runErr := i.Run()
	if err := i.Last(); err != nil {
		if runErr != nil {
			return fmt.Errorf("%v, and last stage failed: %v", runErr, err)
		}
		return err
	}
	return runErr
}

func NewDatabase(ctx context.Context, datasource *configutil.DatasourceOptions) (IDatabase, error) {
	var (
		database IDatabase
		err      error
	)
	switch {
	case strings.EqualFold(datasource.DBType, constant.DatabaseTypeTiDB) || strings.EqualFold(datasource.DBType, constant.DatabaseTypeMySQL):
		database, err = mysql.NewDatabase(ctx, datasource)
		if err != nil {
			return database, err
		}
	case strings.EqualFold(datasource.DBType, constant.DatabaseTypePostgresql):
		database, err = postgresql.NewDatabase(ctx, datasource)
		if err != nil {
			return database, err
		}
	default:
		return nil, fmt.Errorf("the database type [%s] isn't support, please contact author or reselect", datasource.DBType)
	}

	return database, nil
}
