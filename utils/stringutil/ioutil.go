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
package stringutil

import (
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// PrintTable accepts a matrix of strings and print them as ASCII table to the writer
func PrintTable(w io.Writer, rows [][]string, header bool) {
	if len(rows) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	if header {
		addRow(t, rows[0], true)
		border := make([]string, len(rows[0]))
		for i := range border {
			border[i] = strings.Repeat("-", len(rows[0][i]))
		}
		addRow(t, border, false)
		rows = rows[1:]
	}
	for _, row := range rows {
		addRow(t, row, false)
	}

	t.SetStyle(table.Style{
		Name: "dbdumper",
		Box: table.BoxStyle{
			Left:             "|",
			LeftSeparator:    "|",
			MiddleHorizontal: "-",
			MiddleSeparator:  "  ",
			MiddleVertical:   "  ",
		},
		Format: table.FormatOptions{
			Header: text.FormatDefault,
		},
		Options: table.Options{
			SeparateColumns: true,
		},
	})
	t.Render()
}

func addRow(t table.Writer, rawLine []string, header bool) {
	row := make(table.Row, len(rawLine))
	for i, v := range rawLine {
		row[i] = v
	}
	if header {
		t.AppendHeader(row)
	} else {
		t.AppendRow(row)
	}
}
