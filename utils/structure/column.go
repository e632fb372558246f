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
package structure

import (
	"sort"
	"strings"
)

// Column value kinds, classified from the driver's database type name
const (
	ColumnKindSigned   = "SIGNED"
	ColumnKindUnsigned = "UNSIGNED"
	ColumnKindDecimal  = "DECIMAL"
	ColumnKindString   = "STRING"
	ColumnKindBinary   = "BINARY"
	ColumnKindJSON     = "JSON"
	ColumnKindOther    = "OTHER"
)

// ColumnKind classifies a database type name as returned by database/sql ColumnType.DatabaseTypeName,
// the mysql driver reports UNSIGNED INT style names and lib/pq reports INT4 style names
func ColumnKind(databaseTypeName string) string {
	t := strings.ToUpper(strings.TrimSpace(databaseTypeName))
	switch t {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT", "YEAR",
		"INT2", "INT4", "INT8", "SERIAL", "BIGSERIAL", "SMALLSERIAL":
		return ColumnKindSigned
	case "UNSIGNED TINYINT", "UNSIGNED SMALLINT", "UNSIGNED MEDIUMINT", "UNSIGNED INT", "UNSIGNED BIGINT", "BIT":
		return ColumnKindUnsigned
	case "DECIMAL", "NUMERIC", "FLOAT", "DOUBLE", "REAL", "FLOAT4", "FLOAT8":
		return ColumnKindDecimal
	case "CHAR", "VARCHAR", "TEXT", "TINYTEXT", "MEDIUMTEXT", "LONGTEXT", "ENUM", "SET", "BPCHAR", "NAME", "UUID":
		return ColumnKindString
	case "BINARY", "VARBINARY", "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BYTEA", "GEOMETRY":
		return ColumnKindBinary
	case "JSON", "JSONB":
		return ColumnKindJSON
	default:
		return ColumnKindOther
	}
}

// IsIntegerKind reports whether the kind can drive an integer chunk step
func IsIntegerKind(kind string) bool {
	return kind == ColumnKindSigned || kind == ColumnKindUnsigned
}

// IsNumericKind reports whether values of the kind are written without quotes
func IsNumericKind(kind string) bool {
	return IsIntegerKind(kind) || kind == ColumnKindDecimal
}

// ColumnMinMax is the boundary probe result of a chunk key column
type ColumnMinMax struct {
	ColumnName       string
	DatabaseTypeName string
	Min              string
	Max              string
	// Null reports an empty table or an all NULL column
	Null bool
}

func (c *ColumnMinMax) Kind() string {
	return ColumnKind(c.DatabaseTypeName)
}

// IndexColumn is one row of index metadata, ordered by position inside the index
type IndexColumn struct {
	IndexName   string
	ColumnName  string
	Primary     bool
	Unique      bool
	Cardinality uint64
}

// AssembleIndexes groups index columns by index name, keeping column order
func AssembleIndexes(cols []IndexColumn) []Index {
	var (
		indexes []Index
		offset  = make(map[string]int)
	)
	for _, c := range cols {
		if i, ok := offset[c.IndexName]; ok {
			indexes[i].Columns = append(indexes[i].Columns, c.ColumnName)
			if c.Cardinality > indexes[i].Cardinality {
				indexes[i].Cardinality = c.Cardinality
			}
			continue
		}
		offset[c.IndexName] = len(indexes)
		indexes = append(indexes, Index{
			IndexName:   c.IndexName,
			Columns:     []string{c.ColumnName},
			Primary:     c.Primary,
			Unique:      c.Unique || c.Primary,
			Cardinality: c.Cardinality,
		})
	}
	return indexes
}

// SelectKeyColumns picks the chunk key: the primary key, else the first unique index,
// else with useAnyIndex the index of the highest cardinality
func SelectKeyColumns(indexes []Index, useAnyIndex bool) []string {
	if len(indexes) == 0 {
		return nil
	}
	sorted := make(SortIndexes, len(indexes))
	copy(sorted, indexes)
	sort.Stable(sorted)

	head := sorted[0]
	if head.Primary {
		return head.Columns
	}
	// unique indexes keep their metadata order
	for _, idx := range indexes {
		if idx.Unique {
			return idx.Columns
		}
	}
	if useAnyIndex {
		return head.Columns
	}
	return nil
}
