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
package processor

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pingcap/errors"
	"github.com/wentaojin/dbdumper/utils/constant"
	"github.com/wentaojin/dbdumper/utils/stringutil"
)

const metadataTimeFormat = "2006-01-02 15:04:05"

// DumpMetadata is the content of the metadata file written next to the dump files
type DumpMetadata struct {
	RunID      string          `json:"run-id"`
	DBType     string          `json:"db-type"`
	SchemaName string          `json:"schema-name"`
	StartTime  string          `json:"start-time"`
	FinishTime string          `json:"finish-time"`
	Errors     uint64          `json:"errors"`
	Tables     []TableMetadata `json:"tables"`
}

type TableMetadata struct {
	TableName     string   `json:"table-name"`
	KeyColumns    []string `json:"key-columns,omitempty"`
	Status        string   `json:"status"`
	Chunks        uint64   `json:"chunks"`
	Rows          uint64   `json:"rows"`
	RowsEstimated uint64   `json:"rows-estimated"`
}

func (dt *DumpTask) Metadata() *DumpMetadata {
	m := &DumpMetadata{
		RunID:      dt.RunID,
		DBType:     dt.Datasource.DBType,
		SchemaName: dt.DumpOptions.SchemaName,
		StartTime:  dt.startTime.Format(metadataTimeFormat),
		FinishTime: dt.endTime.Format(metadataTimeFormat),
		Errors:     dt.errors.Load(),
	}
	if dt.endTime.IsZero() {
		m.FinishTime = time.Now().Format(metadataTimeFormat)
	}
	for _, t := range dt.tables {
		m.Tables = append(m.Tables, TableMetadata{
			TableName:     t.TableName,
			KeyColumns:    t.KeyColumns,
			Status:        t.Status(),
			Chunks:        t.ChunkCount(),
			Rows:          t.Rows(),
			RowsEstimated: t.RowsTotal(),
		})
	}
	return m
}

// WriteMetadata writes the metadata file into dir and returns its path
func WriteMetadata(dir string, m *DumpMetadata) (string, error) {
	js, err := stringutil.MarshalIndentJSON(m)
	if err != nil {
		return "", errors.Annotatef(err, "marshal the dump [%s] metadata failed", m.RunID)
	}
	path := filepath.Join(dir, constant.DumpMetadataFileName)
	if err = os.WriteFile(path, []byte(js+"\n"), 0644); err != nil {
		return "", errors.Annotatef(err, "write the dump metadata file [%s] failed", path)
	}
	return path, nil
}
