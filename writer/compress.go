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

	"github.com/golang/snappy"
	"github.com/pierrec/lz4"
	"github.com/wentaojin/dbdumper/utils/constant"
)

// NewCompressWriter wraps w with the streaming encoder of the compression codec, closing
// the returned writer flushes the codec but leaves w open
func NewCompressWriter(cc string, w io.Writer) (io.WriteCloser, error) {
	switch cc {
	case constant.DumpCompressNone, "":
		return nopWriteCloser{w}, nil
	case constant.DumpCompressSnappy:
		return snappy.NewBufferedWriter(w), nil
	case constant.DumpCompressLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", cc)
	}
}

// NewDecompressReader decodes a stream written by NewCompressWriter
func NewDecompressReader(cc string, r io.Reader) (io.Reader, error) {
	switch cc {
	case constant.DumpCompressNone, "":
		return r, nil
	case constant.DumpCompressSnappy:
		return snappy.NewReader(r), nil
	case constant.DumpCompressLZ4:
		return lz4.NewReader(r), nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", cc)
	}
}

// CompressSuffix returns the extension appended to compressed files
func CompressSuffix(cc string) string {
	switch cc {
	case constant.DumpCompressSnappy:
		return constant.DumpFileSuffixSnappy
	case constant.DumpCompressLZ4:
		return constant.DumpFileSuffixLZ4
	default:
		return ""
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}
