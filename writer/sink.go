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
	"io"
	"os"
	"path/filepath"

	"github.com/pingcap/errors"
	"github.com/wentaojin/dbdumper/utils/constant"
	"github.com/wentaojin/dbdumper/utils/stringutil"
)

// Sink is an output file
type Sink interface {
	io.Writer
	Close() error
	Name() string
}

// FileSink writes through the compression codec into a local file
type FileSink struct {
	name string
	file *os.File
	w    io.WriteCloser
}

func OpenFileSink(path, compress string) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.Annotatef(err, "open dump file [%s] failed", path)
	}
	w, err := NewCompressWriter(compress, file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &FileSink{name: path, file: file, w: w}, nil
}

func (s *FileSink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s *FileSink) Name() string {
	return s.name
}

func (s *FileSink) Close() error {
	if err := s.w.Close(); err != nil {
		s.file.Close()
		return errors.Annotatef(err, "flush dump file [%s] failed", s.name)
	}
	if err := s.file.Close(); err != nil {
		return errors.Annotatef(err, "close dump file [%s] failed", s.name)
	}
	return nil
}

// WriteFull writes data until every byte is flushed, one zero byte write is tolerated
func WriteFull(w io.Writer, data []byte) (int, error) {
	written := 0
	zeroWrite := false
	for written < len(data) {
		n, err := w.Write(data[written:])
		if err != nil {
			return written, errors.Annotatef(err, "couldn't write data to a file")
		}
		if n == 0 {
			if zeroWrite {
				return written, errors.Errorf("couldn't write data to a file, two zero byte writes")
			}
			zeroWrite = true
		} else {
			zeroWrite = false
		}
		written += n
	}
	return written, nil
}

// FileName returns schema.table.NNNNN.MMMMM.suffix[.compress] under dir
func FileName(dir, schemaName, tableName string, chunkNumber uint64, subPart int, suffix, compress string) string {
	name := fmt.Sprintf("%s.%s.%05d.%05d.%s", schemaName, tableName, chunkNumber, subPart, suffix)
	if cs := CompressSuffix(compress); cs != "" {
		name = stringutil.StringBuilder(name, ".", cs)
	}
	return filepath.Join(dir, name)
}

// FileTarget opens the files of one chunk
type FileTarget struct {
	Dir         string
	SchemaName  string
	TableName   string
	ChunkNumber uint64
	Format      *Format
	Compress    string
}

// Open creates the rows file of the sub part, and the statement file for formats that have one
func (t *FileTarget) Open(subPart int) (Sink, Sink, error) {
	rows, err := OpenFileSink(FileName(t.Dir, t.SchemaName, t.TableName, t.ChunkNumber, subPart, t.Format.RowsFileSuffix(), t.Compress), t.Compress)
	if err != nil {
		return nil, nil, err
	}
	if !t.Format.HasStatementFile() {
		return rows, nil, nil
	}
	stmt, err := OpenFileSink(FileName(t.Dir, t.SchemaName, t.TableName, t.ChunkNumber, subPart, constant.DumpFileSuffixSQL, t.Compress), t.Compress)
	if err != nil {
		rows.Close()
		return nil, nil, err
	}
	return rows, stmt, nil
}
