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
	"fmt"
	"strings"

	"github.com/wentaojin/dbdumper/utils/constant"
	"github.com/wentaojin/dbdumper/utils/stringutil"
)

const (
	insertStatement       = "INSERT"
	insertIgnoreStatement = "INSERT IGNORE"
	replaceStatement      = "REPLACE"
	loadDataPrefix        = "LOAD DATA LOCAL INFILE '"
)

type FormatOptions struct {
	OutputFormat string
	// DBType selects the string escaping and the session prelude of the source dialect
	DBType         string
	Charset        string
	InsertIgnore   bool
	Replace        bool
	CompleteInsert bool
	HexBlob        bool
	IncludeHeader  bool
	StatementSize  int

	// separators as written in the config, escaped forms such as \t are accepted
	FieldsEnclosedBy      string
	FieldsEscapedBy       string
	FieldsTerminatedBy    string
	LinesStartingBy       string
	LinesTerminatedBy     string
	StatementTerminatedBy string
}

// Format holds the resolved separators of one output format. The raw fields are the bytes
// written into data files, the literal fields are the escaped forms quoted inside LOAD DATA.
type Format struct {
	Kind           string
	DBType         string
	Charset        string
	Insert         string
	CompleteInsert bool
	HexBlob        bool
	IncludeHeader  bool
	StatementSize  int

	EnclosedBy            string
	EscapedBy             string
	TerminatedBy          string
	LinesStartingBy       string
	LinesTerminatedBy     string
	StatementTerminatedBy string

	enclosedByLiteral        string
	escapedByLiteral         string
	terminatedByLiteral      string
	linesStartingByLiteral   string
	linesTerminatedByLiteral string
}

// NewFormat resolves the per format defaults, invalid separator options are fatal
func NewFormat(opts FormatOptions) (*Format, error) {
	if len(opts.FieldsEnclosedBy) > 1 {
		return nil, fmt.Errorf("the fields-enclosed-by [%s] must be a single character", opts.FieldsEnclosedBy)
	}
	if len(stringutil.UnescapeSeparator(opts.FieldsEscapedBy)) > 1 {
		return nil, fmt.Errorf("the fields-escaped-by [%s] must be a single character", opts.FieldsEscapedBy)
	}
	if opts.InsertIgnore && opts.Replace {
		return nil, fmt.Errorf("the insert-ignore and replace can't be used at the same time")
	}

	f := &Format{
		Kind:           opts.OutputFormat,
		DBType:         strings.ToUpper(opts.DBType),
		Charset:        opts.Charset,
		Insert:         insertStatement,
		CompleteInsert: opts.CompleteInsert,
		HexBlob:        opts.HexBlob,
		IncludeHeader:  opts.IncludeHeader,
		StatementSize:  opts.StatementSize,
	}
	if f.StatementSize <= 0 {
		f.StatementSize = constant.DefaultDumpStatementSize
	}
	switch {
	case opts.InsertIgnore:
		f.Insert = insertIgnoreStatement
	case opts.Replace:
		f.Insert = replaceStatement
	}

	switch opts.OutputFormat {
	case constant.DumpOutputFormatSQL, constant.DumpOutputFormatClickHouse, "":
		if f.Kind == "" {
			f.Kind = constant.DumpOutputFormatSQL
		}
		f.EnclosedBy = orDefault(opts.FieldsEnclosedBy, "'")
		f.TerminatedBy = unescapeOrDefault(opts.FieldsTerminatedBy, ",")
		f.LinesStartingBy = unescapeOrDefault(opts.LinesStartingBy, "(")
		f.LinesTerminatedBy = unescapeOrDefault(opts.LinesTerminatedBy, ")\n")
		f.StatementTerminatedBy = unescapeOrDefault(opts.StatementTerminatedBy, ";\n")
	case constant.DumpOutputFormatLoadData, constant.DumpOutputFormatCSV:
		enclosed, terminated := "", `\t`
		if opts.OutputFormat == constant.DumpOutputFormatCSV {
			enclosed, terminated = `"`, ","
		}
		f.EnclosedBy = orDefault(opts.FieldsEnclosedBy, enclosed)
		f.enclosedByLiteral = f.EnclosedBy

		f.EscapedBy = unescapeOrDefault(opts.FieldsEscapedBy, `\`)
		f.escapedByLiteral = f.EscapedBy
		if f.EscapedBy == `\` {
			f.escapedByLiteral = `\\`
		}

		f.terminatedByLiteral = orDefault(opts.FieldsTerminatedBy, terminated)
		f.TerminatedBy = stringutil.UnescapeSeparator(f.terminatedByLiteral)
		f.linesStartingByLiteral = opts.LinesStartingBy
		f.LinesStartingBy = stringutil.UnescapeSeparator(opts.LinesStartingBy)
		f.linesTerminatedByLiteral = orDefault(opts.LinesTerminatedBy, `\n`)
		f.LinesTerminatedBy = stringutil.UnescapeSeparator(f.linesTerminatedByLiteral)
		f.StatementTerminatedBy = stringutil.UnescapeSeparator(opts.StatementTerminatedBy)
	default:
		return nil, fmt.Errorf("the output format [%s] isn't support, please choose sql, load-data, csv or clickhouse", opts.OutputFormat)
	}
	if f.TerminatedBy == "" {
		return nil, fmt.Errorf("the fields-terminated-by can't be empty")
	}
	return f, nil
}

// IsInsert reports whether rows are written as INSERT statements
func (f *Format) IsInsert() bool {
	return f.Kind == constant.DumpOutputFormatSQL || f.Kind == constant.DumpOutputFormatClickHouse
}

// HasStatementFile reports whether a chunk writes a statement file next to its rows file
func (f *Format) HasStatementFile() bool {
	return f.Kind != constant.DumpOutputFormatSQL
}

// RowsFileSuffix returns the extension of the rows file
func (f *Format) RowsFileSuffix() string {
	switch f.Kind {
	case constant.DumpOutputFormatSQL:
		return constant.DumpFileSuffixSQL
	case constant.DumpOutputFormatCSV:
		return constant.DumpFileSuffixCSV
	default:
		return constant.DumpFileSuffixData
	}
}

func (f *Format) isPostgres() bool {
	return f.DBType == constant.DatabaseTypePostgresql
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func unescapeOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return stringutil.UnescapeSeparator(s)
}
