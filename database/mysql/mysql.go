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
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/wentaojin/dbdumper/utils/configutil"
)

const (
	MYSQLDatabaseMaxIdleConn     = 512
	MYSQLDatabaseMaxConn         = 1024
	MYSQLDatabaseConnMaxLifeTime = 300 * time.Second
	MYSQLDatabaseConnMaxIdleTime = 200 * time.Second
)

type Database struct {
	DBConn *sql.DB
}

func NewDatabase(ctx context.Context, datasource *configutil.DatasourceOptions) (*Database, error) {
	cfg := mysql.NewConfig()
	cfg.User = datasource.Username
	cfg.Passwd = datasource.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", datasource.Host, datasource.Port)
	if !strings.EqualFold(datasource.Charset, "") {
		cfg.Params = map[string]string{"charset": strings.ToLower(datasource.Charset)}
	}
	dsn := cfg.FormatDSN()
	if !strings.EqualFold(datasource.ConnectParams, "") {
		if strings.Contains(dsn, "?") {
			dsn = fmt.Sprintf("%s&%s", dsn, datasource.ConnectParams)
		} else {
			dsn = fmt.Sprintf("%s?%s", dsn, datasource.ConnectParams)
		}
	}

	mysqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("error on open mysql database connection: %v", err)
	}

	mysqlDB.SetMaxIdleConns(MYSQLDatabaseMaxIdleConn)
	mysqlDB.SetMaxOpenConns(MYSQLDatabaseMaxConn)
	mysqlDB.SetConnMaxLifetime(MYSQLDatabaseConnMaxLifeTime)
	mysqlDB.SetConnMaxIdleTime(MYSQLDatabaseConnMaxIdleTime)

	if err = mysqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("error on ping mysql database connection: %v", err)
	}
	return &Database{DBConn: mysqlDB}, nil
}

func (d *Database) PingDatabaseConnection() error {
	if err := d.DBConn.Ping(); err != nil {
		return fmt.Errorf("error on ping mysql database connection: %v", err)
	}
	return nil
}

func (d *Database) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.DBConn.QueryContext(ctx, query, args...)
}

// GeneralQuery returns every row as column name to string value, a NULL value is returned as empty string
func (d *Database) GeneralQuery(ctx context.Context, query string, args ...any) ([]string, []map[string]string, error) {
	var (
		columns []string
		results []map[string]string
	)
	rows, err := d.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	// general query, automatic get column name
	columns, err = rows.Columns()
	if err != nil {
		return columns, results, fmt.Errorf("query rows.Columns failed, sql: [%v], error: [%v]", query, err)
	}

	values := make([][]byte, len(columns))
	scans := make([]interface{}, len(columns))
	for i := range values {
		scans[i] = &values[i]
	}

	for rows.Next() {
		err = rows.Scan(scans...)
		if err != nil {
			return columns, results, fmt.Errorf("query rows.Scan failed, sql: [%v], error: [%v]", query, err)
		}

		row := make(map[string]string)
		for k, v := range values {
			row[columns[k]] = string(v)
		}
		results = append(results, row)
	}

	if err = rows.Err(); err != nil {
		return columns, results, fmt.Errorf("query rows.Next failed, sql: [%v], error: [%v]", query, err.Error())
	}
	return columns, results, nil
}

func (d *Database) Close() error {
	return d.DBConn.Close()
}
