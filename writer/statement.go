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
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/wentaojin/dbdumper/utils/constant"
	"github.com/wentaojin/dbdumper/utils/stringutil"
	"github.com/wentaojin/dbdumper/utils/structure"
)

// Column is the result set field metadata the statement builders need
type Column struct {
	Name             string
	DatabaseTypeName string
	Kind             string
}

// NewColumn classifies the field by its database type name, BIT values are raw bytes
func NewColumn(name, databaseTypeName string) Column {
	kind := structure.ColumnKind(databaseTypeName)
	if strings.EqualFold(databaseTypeName, "BIT") {
		kind = structure.ColumnKindBinary
	}
	return Column{Name: name, DatabaseTypeName: databaseTypeName, Kind: kind}
}

// SessionPrelude returns the statements opening every sql file of the dialect
func SessionPrelude(dbType, charset string) string {
	switch strings.ToUpper(dbType) {
	case constant.DatabaseTypePostgresql:
		if charset == "" {
			return ""
		}
		return fmt.Sprintf("SET client_encoding = '%s';\n", charset)
	default:
		if charset == "" {
			charset = "binary"
		}
		return stringutil.StringBuilder(
			"/*!40101 SET NAMES ", charset, "*/;\n",
			"/*!40014 SET FOREIGN_KEY_CHECKS=0*/;\n",
			"/*!40103 SET TIME_ZONE='+00:00' */;\n")
	}
}

// InsertPrefix builds the statement every INSERT of the table starts with
func (f *Format) InsertPrefix(table string, columns []Column, quote func(string) string) string {
	var b strings.Builder
	b.WriteString(f.Insert)
	b.WriteString(" INTO ")
	b.WriteString(quote(table))
	if f.CompleteInsert {
		b.WriteString(" (")
		for i, c := range columns {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(quote(c.Name))
		}
		b.WriteString(")")
	}
	b.WriteString(" VALUES")
	return b.String()
}

// LoadDataSuffix builds the part of the LOAD DATA statement following the rows file name
func (f *Format) LoadDataSuffix(table string, columns []Column, quote func(string) string) string {
	var b strings.Builder
	b.WriteString("' INTO TABLE ")
	b.WriteString(quote(table))
	b.WriteByte(' ')
	if f.Charset != "" {
		fmt.Fprintf(&b, "CHARACTER SET %s ", f.Charset)
	}
	fmt.Fprintf(&b, "FIELDS TERMINATED BY '%s' ", f.terminatedByLiteral)
	fmt.Fprintf(&b, "ENCLOSED BY '%s' ", f.enclosedByLiteral)
	fmt.Fprintf(&b, "ESCAPED BY '%s' ", f.escapedByLiteral)
	b.WriteString("LINES ")
	if f.linesStartingByLiteral != "" {
		fmt.Fprintf(&b, "STARTING BY '%s' ", f.linesStartingByLiteral)
	}
	fmt.Fprintf(&b, "TERMINATED BY '%s' ", f.linesTerminatedByLiteral)
	if f.IncludeHeader {
		b.WriteString("IGNORE 1 LINES ")
	}

	var sets []string
	b.WriteByte('(')
	for i, c := range columns {
		if i > 0 {
			b.WriteByte(',')
		}
		switch {
		case c.Kind == structure.ColumnKindJSON:
			b.WriteString("@" + c.Name)
			sets = append(sets, fmt.Sprintf("%s=CONVERT(@%s USING UTF8MB4)", quote(c.Name), c.Name))
		case f.HexBlob && c.Kind == structure.ColumnKindBinary:
			b.WriteString("@" + c.Name)
			sets = append(sets, fmt.Sprintf("%s=UNHEX(@%s)", quote(c.Name), c.Name))
		default:
			b.WriteString(quote(c.Name))
		}
	}
	b.WriteByte(')')
	if len(sets) > 0 {
		b.WriteString("SET ")
		b.WriteString(strings.Join(sets, ","))
	}
	b.WriteString(";\n")
	return b.String()
}

// LoadDataStatement is the statement file content loading the rows file
func (f *Format) LoadDataStatement(prelude, rowsFile, suffix string) string {
	return stringutil.StringBuilder(prelude, loadDataPrefix, rowsFile, suffix)
}

// ClickHouseStatement is the statement file content importing the rows file
func (f *Format) ClickHouseStatement(prelude, table, rowsFile string, quote func(string) string) string {
	return fmt.Sprintf("%s%s INTO %s FROM INFILE '%s' FORMAT MySQLDump;\n", prelude, f.Insert, quote(table), rowsFile)
}

// Header is the first line of a delimited rows file
func (f *Format) Header(columns []Column) string {
	var b strings.Builder
	for i, c := range columns {
		if i > 0 {
			b.WriteString(f.TerminatedBy)
		}
		b.WriteString(f.EnclosedBy)
		b.WriteString(c.Name)
		b.WriteString(f.EnclosedBy)
	}
	b.WriteString(f.LinesTerminatedBy)
	return b.String()
}

// WriteRow serializes one row, a nil value is NULL
func (f *Format) WriteRow(buf *bytes.Buffer, columns []Column, values [][]byte) {
	buf.WriteString(f.LinesStartingBy)
	for i, c := range columns {
		if f.IsInsert() {
			f.writeSQLColumn(buf, c, values[i])
		} else {
			f.writeLoadDataColumn(buf, c, values[i])
		}
		if i < len(columns)-1 {
			buf.WriteString(f.TerminatedBy)
		}
	}
	buf.WriteString(f.LinesTerminatedBy)
}

func (f *Format) writeSQLColumn(buf *bytes.Buffer, c Column, v []byte) {
	switch {
	case v == nil:
		buf.WriteString("NULL")
	case structure.IsNumericKind(c.Kind):
		buf.Write(v)
	case len(v) == 0:
		buf.WriteString(f.EnclosedBy)
		buf.WriteString(f.EnclosedBy)
	case f.HexBlob && c.Kind == structure.ColumnKindBinary:
		if f.isPostgres() {
			buf.WriteString(`'\x`)
			buf.WriteString(hex.EncodeToString(v))
			buf.WriteByte('\'')
			return
		}
		buf.WriteString("0x")
		buf.WriteString(strings.ToUpper(hex.EncodeToString(v)))
	default:
		json := c.Kind == structure.ColumnKindJSON && !f.isPostgres()
		if json {
			buf.WriteString("CONVERT(")
		}
		buf.WriteString(f.EnclosedBy)
		if f.isPostgres() {
			escapeStandardString(buf, v, f.EnclosedBy)
		} else {
			escapeMySQLString(buf, v)
		}
		buf.WriteString(f.EnclosedBy)
		if json {
			buf.WriteString(" USING UTF8MB4)")
		}
	}
}

func (f *Format) writeLoadDataColumn(buf *bytes.Buffer, c Column, v []byte) {
	switch {
	case v == nil:
		buf.WriteString(`\N`)
	case f.HexBlob && c.Kind == structure.ColumnKindBinary:
		buf.WriteString(strings.ToUpper(hex.EncodeToString(v)))
	case structure.IsIntegerKind(c.Kind):
		buf.Write(v)
	default:
		buf.WriteString(f.EnclosedBy)
		var escaped bytes.Buffer
		escapeMySQLString(&escaped, v)
		buf.Write(replaceEscape(escaped.Bytes(), f.EscapedBy, f.TerminatedBy))
		buf.WriteString(f.EnclosedBy)
	}
}

// escapeMySQLString escapes the bytes mysql_real_escape_string escapes
func escapeMySQLString(buf *bytes.Buffer, v []byte) {
	for _, c := range v {
		switch c {
		case 0:
			buf.WriteString(`\0`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\\':
			buf.WriteString(`\\`)
		case '\'':
			buf.WriteString(`\'`)
		case '"':
			buf.WriteString(`\"`)
		case 0x1a:
			buf.WriteString(`\Z`)
		default:
			buf.WriteByte(c)
		}
	}
}

// escapeStandardString doubles the quote, backslashes are literal with standard conforming strings
func escapeStandardString(buf *bytes.Buffer, v []byte, quote string) {
	if quote == "" {
		buf.Write(v)
		return
	}
	q := quote[0]
	for _, c := range v {
		if c == q {
			buf.WriteByte(q)
		}
		buf.WriteByte(c)
	}
}

// replaceEscape swaps the backslash for the configured escape character and escapes the
// first byte of the field terminator
func replaceEscape(v []byte, escapedBy, terminatedBy string) []byte {
	if escapedBy == "" {
		escapedBy = `\`
	}
	e := escapedBy[0]
	var t byte
	hasTerm := terminatedBy != ""
	if hasTerm {
		t = terminatedBy[0]
	}
	out := make([]byte, 0, len(v)+len(v)/8)
	for _, c := range v {
		switch {
		case c == '\\':
			out = append(out, e)
		case hasTerm && c == t:
			out = append(out, e, c)
		default:
			out = append(out, c)
		}
	}
	return out
}
