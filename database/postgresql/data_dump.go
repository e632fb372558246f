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
	"strconv"

	"github.com/pingcap/errors"
	"github.com/wentaojin/dbdumper/utils/stringutil"
	"github.com/wentaojin/dbdumper/utils/structure"
)

// GetDatabaseTableRows counts the table rows exactly, or reads the planner estimate from pg_class
func (d *Database) GetDatabaseTableRows(ctx context.Context, schemaName, tableName string, exact bool) (uint64, error) {
	var rows int64
	if exact {
		err := d.DBConn.QueryRowContext(ctx, stringutil.StringBuilder(`SELECT COUNT(*) FROM `, d.TableSource(schemaName, tableName, ""))).Scan(&rows)
		if err != nil {
			return 0, errors.Annotatef(err, "count the table [%s.%s] rows failed", schemaName, tableName)
		}
		return uint64(rows), nil
	}
	err := d.DBConn.QueryRowContext(ctx, `SELECT COALESCE(c.reltuples,0)::BIGINT
FROM pg_class c
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1
	AND c.relname = $2`, schemaName, tableName).Scan(&rows)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, errors.Annotatef(err, "estimate the table [%s.%s] rows failed", schemaName, tableName)
	}
	// reltuples is -1 for a never analyzed table
	if rows < 0 {
		return 0, nil
	}
	return uint64(rows), nil
}

func (d *Database) GetDatabaseTableIndexes(ctx context.Context, schemaName, tableName string) ([]structure.Index, error) {
	_, res, err := d.GeneralQuery(ctx, `SELECT
	ic.relname AS index_name,
	ix.indisprimary AS is_primary,
	ix.indisunique AS is_unique,
	a.attname AS column_name,
	GREATEST(ic.reltuples,0)::BIGINT AS cardinality
FROM pg_index ix
JOIN pg_class t ON t.oid = ix.indrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
JOIN pg_class ic ON ic.oid = ix.indexrelid
JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON TRUE
JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
WHERE n.nspname = $1
	AND t.relname = $2
ORDER BY ix.indisprimary DESC, ix.indisunique DESC, ic.relname, k.ord`, schemaName, tableName)
	if err != nil {
		return nil, errors.Annotatef(err, "query the table [%s.%s] indexes failed", schemaName, tableName)
	}

	var cols []structure.IndexColumn
	for _, r := range res {
		cardinality, _ := strconv.ParseUint(r["cardinality"], 10, 64)
		cols = append(cols, structure.IndexColumn{
			IndexName:   r["index_name"],
			ColumnName:  r["column_name"],
			Primary:     isTrue(r["is_primary"]),
			Unique:      isTrue(r["is_unique"]),
			Cardinality: cardinality,
		})
	}
	return structure.AssembleIndexes(cols), nil
}

func (d *Database) GetDatabaseTablePartitions(ctx context.Context, schemaName, tableName string) ([]string, error) {
	_, res, err := d.GeneralQuery(ctx, `SELECT
	c.relname AS partition_name
FROM pg_inherits i
JOIN pg_class c ON c.oid = i.inhrelid
JOIN pg_class p ON p.oid = i.inhparent
JOIN pg_namespace n ON n.oid = p.relnamespace
WHERE n.nspname = $1
	AND p.relname = $2
ORDER BY c.relname`, schemaName, tableName)
	if err != nil {
		return nil, errors.Annotatef(err, "query the table [%s.%s] partitions failed", schemaName, tableName)
	}
	var partitions []string
	for _, r := range res {
		partitions = append(partitions, r["partition_name"])
	}
	return partitions, nil
}

// GetDatabaseTableColumnMinMax probes the column boundaries, the where is an optional raw predicate
func (d *Database) GetDatabaseTableColumnMinMax(ctx context.Context, schemaName, tableName, columnName, where string) (*structure.ColumnMinMax, error) {
	col := d.IdentifierQuote(columnName)
	query := stringutil.StringBuilder(`SELECT MIN(`, col, `),MAX(`, col, `) FROM `, d.TableSource(schemaName, tableName, ""))
	if where != "" {
		query = stringutil.StringBuilder(query, ` WHERE `, where)
	}

	rows, err := d.DBConn.QueryContext(ctx, query)
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

func isTrue(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}
