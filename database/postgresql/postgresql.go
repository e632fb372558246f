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
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/lib/pq"
	"github.com/wentaojin/dbdumper/utils/configutil"
	"github.com/wentaojin/dbdumper/utils/stringutil"
)

type Database struct {
	DBConn *sql.DB
}

func NewDatabase(ctx context.Context, datasource *configutil.DatasourceOptions) (*Database, error) {
	dbName := datasource.DBName
	if strings.EqualFold(dbName, "") {
		dbName = "postgres"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		url.QueryEscape(datasource.Username), url.QueryEscape(datasource.Password), datasource.Host, datasource.Port, dbName)

	if strings.EqualFold(datasource.ConnectParams, "") {
		connString = fmt.Sprintf("%s?sslmode=disable&client_encoding=%s", connString, postgresCharset(datasource.Charset))
	} else {
		connString = fmt.Sprintf("%s?sslmode=disable&client_encoding=%s&%s", connString, postgresCharset(datasource.Charset), datasource.ConnectParams)
	}

	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("error on open postgresql database connection: %v", err)
	}

	if err = db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("error on ping postgresql database connection: %v", err)
	}
	return &Database{DBConn: db}, nil
}

// postgresCharset maps the mysql style charset names onto postgres client encodings
func postgresCharset(charset string) string {
	switch strings.ToLower(charset) {
	case "", "utf8", "utf8mb4":
		return "UTF8"
	default:
		return strings.ToUpper(charset)
	}
}

func (d *Database) PingDatabaseConnection() error {
	err := d.DBConn.Ping()
	if err != nil {
		return fmt.Errorf("error on ping postgresql database connection:%v", err)
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
			row[columns[k]] = stringutil.BytesToString(append([]byte(nil), v...))
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
