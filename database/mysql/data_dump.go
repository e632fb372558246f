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
	"strconv"
	"strings"

	"github.com/pingcap/errors"
	"github.com/wentaojin/dbdumper/utils/stringutil"
	"github.com/wentaojin/dbdumper/utils/structure"
)

// GetDatabaseTableRows counts the table rows exactly, or reads the optimizer estimate from EXPLAIN
func (d *Database) GetDatabaseTableRows(ctx context.Context, schemaName, tableName string, exact bool) (uint64, error) {
	if exact {
		var rows uint64
		err := d.DBConn.QueryRowContext(ctx, stringutil.StringBuilder(`SELECT `, d.QueryHint(), ` COUNT(*) FROM `, d.TableSource(schemaName, tableName, ""))).Scan(&rows)
		if err != nil {
			return 0, errors.Annotatef(err, "count the table [%s.%s] rows failed", schemaName, tableName)
		}
		return rows, nil
	}

	_, res, err := d.GeneralQuery(ctx, stringutil.StringBuilder(`EXPLAIN SELECT * FROM `, d.TableSource(schemaName, tableName, "")))
	if err != nil {
		return 0, errors.Annotatef(err, "explain the table [%s.%s] rows failed", schemaName, tableName)
	}
	if len(res) == 0 {
		return 0, nil
	}
	for k, v := range res[0] {
		if strings.EqualFold(k, "rows") {
			if v == "" {
				return 0, nil
			}
			rows, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("parse the table [%s.%s] explain rows [%s] failed: %v", schemaName, tableName, v, err)
			}
			return rows, nil
		}
	}
	return 0, fmt.Errorf("the table [%s.%s] explain result hasn't the rows column", schemaName, tableName)
}

func (d *Database) GetDatabaseTableIndexes(ctx context.Context, schemaName, tableName string) ([]structure.Index, error) {
	_, res, err := d.GeneralQuery(ctx, `SELECT
	INDEX_NAME,
	NON_UNIQUE,
	COLUMN_NAME,
	IFNULL(CARDINALITY,0) AS CARDINALITY
FROM information_schema.STATISTICS
WHERE TABLE_SCHEMA = ?
	AND TABLE_NAME = ?
ORDER BY INDEX_NAME = 'PRIMARY' DESC, NON_UNIQUE, INDEX_NAME, SEQ_IN_INDEX`, schemaName, tableName)
	if err != nil {
		return nil, errors.Annotatef(err, "query the table [%s.%s] indexes failed", schemaName, tableName)
	}

	var cols []structure.IndexColumn
	for _, r := range res {
		cardinality, _ := strconv.ParseUint(r["CARDINALITY"], 10, 64)
		cols = append(cols, structure.IndexColumn{
			IndexName:   r["INDEX_NAME"],
			ColumnName:  r["COLUMN_NAME"],
			Primary:     strings.EqualFold(r["INDEX_NAME"], "PRIMARY"),
			Unique:      r["NON_UNIQUE"] == "0",
			Cardinality: cardinality,
		})
	}
	return structure.AssembleIndexes(cols), nil
}

func (d *Database) GetDatabaseTablePartitions(ctx context.Context, schemaName, tableName string) ([]string, error) {
	_, res, err := d.GeneralQuery(ctx, `SELECT
	IFNULL(SUBPARTITION_NAME, PARTITION_NAME) AS PARTITION_NAME
FROM information_schema.PARTITIONS
WHERE TABLE_SCHEMA = ?
	AND TABLE_NAME = ?
	AND PARTITION_NAME IS NOT NULL
ORDER BY PARTITION_ORDINAL_POSITION, SUBPARTITION_ORDINAL_POSITION`, schemaName, tableName)
	if err != nil {
		return nil, errors.Annotatef(err, "query the table [%s.%s] partitions failed", schemaName, tableName)
	}
	var partitions []string
	for _, r := range res {
		partitions = append(partitions, r["PARTITION_NAME"])
	}
	return partitions, nil
}

// GetDatabaseTableColumnMinMax probes the column boundaries, the where is an optional raw predicate
func (d *Database) GetDatabaseTableColumnMinMax(ctx context.Context, schemaName, tableName, columnName, where string) (*structure.ColumnMinMax, error) {
	col := d.IdentifierQuote(columnName)
	query := stringutil.StringBuilder(`SELECT `, d.QueryHint(), ` MIN(`, col, `),MAX(`, col, `) FROM `, d.TableSource(schemaName, tableName, ""))
	if where != "" {
		query = stringutil.StringBuilder(query, ` WHERE `, where)
	}
	return queryColumnMinMax(ctx, d.DBConn, query, columnName)
}

func queryColumnMinMax(ctx context.Context, db *sql.DB, query, columnName string) (*structure.ColumnMinMax, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Annotatef(err, "query the column [%s] min max failed, sql: [%s]", columnName, query)
	}
	defer rows.Close()

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	mm := &structure.ColumnMinMax{ColumnName: columnName, Null: true}
	if len(colTypes) > 0 {
		mm.DatabaseTypeName = colTypes[0].DatabaseTypeName()
	}
	if rows.Next() {
		var minV, maxV sql.NullString
		if err = rows.Scan(&minV, &maxV); err != nil {
			return nil, err
		}
		if minV.Valid && maxV.Valid {
			mm.Min, mm.Max, mm.Null = minV.String, maxV.String, false
		}
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return mm, nil
}
