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
package configutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wentaojin/dbdumper/utils/constant"
)

// DumpOptions dump task relative config items
type DumpOptions struct {
	SchemaName   string   `toml:"schema-name" json:"schema-name"`
	IncludeTable []string `toml:"include-table" json:"include-table"`
	ExcludeTable []string `toml:"exclude-table" json:"exclude-table"`
	OutputDir    string   `toml:"output-dir" json:"output-dir"`
	Threads      int      `toml:"threads" json:"threads"`

	// chunk step sizes, the min and max differ when the step is adaptive
	MinChunkStepSize      uint64 `toml:"min-chunk-step-size" json:"min-chunk-step-size"`
	StartingChunkStepSize uint64 `toml:"starting-chunk-step-size" json:"starting-chunk-step-size"`
	MaxChunkStepSize      uint64 `toml:"max-chunk-step-size" json:"max-chunk-step-size"`

	AdaptiveTargetDuration string  `toml:"adaptive-target-duration" json:"adaptive-target-duration"`
	AdaptiveGrowthFactor   float64 `toml:"adaptive-growth-factor" json:"adaptive-growth-factor"`

	SplitIntegerTables bool   `toml:"split-integer-tables" json:"split-integer-tables"`
	SplitPartitions    bool   `toml:"split-partitions" json:"split-partitions"`
	PartitionRegex     string `toml:"partition-regex" json:"partition-regex"`
	CharChunk          bool   `toml:"char-chunk" json:"char-chunk"`
	CharChunkAlphabet  string `toml:"char-chunk-alphabet" json:"char-chunk-alphabet"`
	CheckRowCount      bool   `toml:"check-row-count" json:"check-row-count"`
	UseAnyIndex        bool   `toml:"use-any-index" json:"use-any-index"`
	UseDefer           bool   `toml:"use-defer" json:"use-defer"`
	MaxThreadsPerTable int    `toml:"max-threads-per-table" json:"max-threads-per-table"`
	OrderByPrimaryKey  bool   `toml:"order-by-primary-key" json:"order-by-primary-key"`
	Where              string `toml:"where" json:"where"`

	ChunkFilesize    uint64 `toml:"chunk-filesize" json:"chunk-filesize"`
	StatementSize    uint64 `toml:"statement-size" json:"statement-size"`
	WriteBufferSlots int    `toml:"write-buffer-slots" json:"write-buffer-slots"`
	OutputFormat     string `toml:"output-format" json:"output-format"`
	Compress         string `toml:"compress" json:"compress"`

	InsertIgnore          bool   `toml:"insert-ignore" json:"insert-ignore"`
	Replace               bool   `toml:"replace" json:"replace"`
	CompleteInsert        bool   `toml:"complete-insert" json:"complete-insert"`
	HexBlob               bool   `toml:"hex-blob" json:"hex-blob"`
	IncludeHeader         bool   `toml:"include-header" json:"include-header"`
	FieldsEnclosedBy      string `toml:"fields-enclosed-by" json:"fields-enclosed-by"`
	FieldsEscapedBy       string `toml:"fields-escaped-by" json:"fields-escaped-by"`
	FieldsTerminatedBy    string `toml:"fields-terminated-by" json:"fields-terminated-by"`
	LinesStartingBy       string `toml:"lines-starting-by" json:"lines-starting-by"`
	LinesTerminatedBy     string `toml:"lines-terminated-by" json:"lines-terminated-by"`
	StatementTerminatedBy string `toml:"statement-terminated-by" json:"statement-terminated-by"`

	SuccessOnTableNotExist bool `toml:"success-on-table-not-exist" json:"success-on-table-not-exist"`
	ProgressInterval       int  `toml:"progress-interval" json:"progress-interval"`
}

type DumpOption func(opts *DumpOptions)

func DefaultDumpOptions() *DumpOptions {
	return &DumpOptions{
		OutputDir:              "export",
		Threads:                constant.DefaultDumpThreads,
		MinChunkStepSize:       constant.DefaultDumpMinChunkStepSize,
		StartingChunkStepSize:  constant.DefaultDumpMinChunkStepSize,
		MaxChunkStepSize:       constant.DefaultDumpMinChunkStepSize,
		AdaptiveTargetDuration: (constant.DefaultDumpAdaptiveTargetSecond * time.Second).String(),
		AdaptiveGrowthFactor:   constant.DefaultDumpAdaptiveGrowthFactor,
		SplitIntegerTables:     true,
		CharChunkAlphabet:      constant.DefaultDumpCharChunkAlphabet,
		MaxThreadsPerTable:     constant.DefaultDumpMaxThreadsPerTable,
		StatementSize:          constant.DefaultDumpStatementSize,
		WriteBufferSlots:       constant.DefaultDumpWriteBufferSlots,
		OutputFormat:           constant.DumpOutputFormatSQL,
		Compress:               constant.DumpCompressNone,
		ProgressInterval:       constant.DefaultDumpProgressInterval,
	}
}

func WithDumpThreads(threads int) DumpOption {
	return func(opts *DumpOptions) {
		opts.Threads = threads
	}
}

func WithDumpOutputDir(dir string) DumpOption {
	return func(opts *DumpOptions) {
		opts.OutputDir = dir
	}
}

func WithDumpOutputFormat(format string) DumpOption {
	return func(opts *DumpOptions) {
		opts.OutputFormat = strings.ToLower(format)
	}
}

func WithDumpChunkStepSize(min, starting, max uint64) DumpOption {
	return func(opts *DumpOptions) {
		opts.MinChunkStepSize = min
		opts.StartingChunkStepSize = starting
		opts.MaxChunkStepSize = max
	}
}

func WithDumpChunkFilesize(megabytes uint64) DumpOption {
	return func(opts *DumpOptions) {
		opts.ChunkFilesize = megabytes
	}
}

func WithDumpDefer(useDefer bool) DumpOption {
	return func(opts *DumpOptions) {
		opts.UseDefer = useDefer
	}
}

func (d *DumpOptions) Apply(opts ...DumpOption) *DumpOptions {
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ParseRows parses the MIN:START:MAX chunk step expression, a single number sets a fixed step
func (d *DumpOptions) ParseRows(rows string) error {
	if strings.TrimSpace(rows) == "" {
		return nil
	}
	parts := strings.Split(rows, constant.StringSeparatorDoubleColon)
	vals := make([]uint64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return fmt.Errorf("the rows [%s] parse failed: %v", rows, err)
		}
		vals = append(vals, v)
	}
	switch len(vals) {
	case 1:
		d.MinChunkStepSize, d.StartingChunkStepSize, d.MaxChunkStepSize = vals[0], vals[0], vals[0]
	case 3:
		d.MinChunkStepSize, d.StartingChunkStepSize, d.MaxChunkStepSize = vals[0], vals[1], vals[2]
	default:
		return fmt.Errorf("the rows [%s] format is invalid, please use [STEP] or [MIN:START:MAX]", rows)
	}
	return nil
}

// AdaptiveTarget returns the chunk duration the adaptive step aims for
func (d *DumpOptions) AdaptiveTarget() time.Duration {
	dur, err := time.ParseDuration(d.AdaptiveTargetDuration)
	if err != nil || dur <= 0 {
		return constant.DefaultDumpAdaptiveTargetSecond * time.Second
	}
	return dur
}

// IsAdaptive reports whether the integer chunk step may grow and shrink
func (d *DumpOptions) IsAdaptive() bool {
	return d.MinChunkStepSize < d.MaxChunkStepSize
}

func (d *DumpOptions) Validate() error {
	if d.SchemaName == "" {
		return fmt.Errorf("the dump schema-name cannot be empty")
	}
	if d.Threads <= 0 {
		return fmt.Errorf("the dump threads [%d] should be greater than zero", d.Threads)
	}
	if d.MaxChunkStepSize != 0 && (d.MinChunkStepSize > d.StartingChunkStepSize || d.StartingChunkStepSize > d.MaxChunkStepSize) {
		return fmt.Errorf("the dump chunk step size [%d:%d:%d] should satisfy min <= starting <= max",
			d.MinChunkStepSize, d.StartingChunkStepSize, d.MaxChunkStepSize)
	}
	if d.AdaptiveTargetDuration != "" {
		if _, err := time.ParseDuration(d.AdaptiveTargetDuration); err != nil {
			return fmt.Errorf("the dump adaptive-target-duration [%s] parse failed: %v", d.AdaptiveTargetDuration, err)
		}
	}
	if d.IsAdaptive() && d.AdaptiveGrowthFactor <= 1 {
		return fmt.Errorf("the dump adaptive-growth-factor [%v] should be greater than 1", d.AdaptiveGrowthFactor)
	}
	if d.PartitionRegex != "" {
		if _, err := regexp.Compile(d.PartitionRegex); err != nil {
			return fmt.Errorf("the dump partition-regex [%s] compile failed: %v", d.PartitionRegex, err)
		}
	}
	if d.CharChunk && len(d.CharChunkAlphabet) < 2 {
		return fmt.Errorf("the dump char-chunk-alphabet [%s] needs at least two characters", d.CharChunkAlphabet)
	}
	if d.CharChunk && strings.ToLower(d.CharChunkAlphabet) != d.CharChunkAlphabet && strings.ToUpper(d.CharChunkAlphabet) != d.CharChunkAlphabet {
		return fmt.Errorf("the dump char-chunk-alphabet [%s] mixes upper and lower case letters, which overlap under case insensitive collations", d.CharChunkAlphabet)
	}
	if d.WriteBufferSlots <= 0 {
		return fmt.Errorf("the dump write-buffer-slots [%d] should be greater than zero", d.WriteBufferSlots)
	}
	if d.MaxThreadsPerTable <= 0 {
		return fmt.Errorf("the dump max-threads-per-table [%d] should be greater than zero", d.MaxThreadsPerTable)
	}
	if d.InsertIgnore && d.Replace {
		return fmt.Errorf("the dump insert-ignore and replace options are mutually exclusive")
	}
	switch strings.ToLower(d.OutputFormat) {
	case constant.DumpOutputFormatSQL, constant.DumpOutputFormatLoadData, constant.DumpOutputFormatCSV, constant.DumpOutputFormatClickHouse:
	default:
		return fmt.Errorf("the dump output-format [%s] isn't support, please choose [%s,%s,%s,%s]", d.OutputFormat,
			constant.DumpOutputFormatSQL, constant.DumpOutputFormatLoadData, constant.DumpOutputFormatCSV, constant.DumpOutputFormatClickHouse)
	}
	switch strings.ToLower(d.Compress) {
	case "", constant.DumpCompressNone, constant.DumpCompressSnappy, constant.DumpCompressLZ4:
	default:
		return fmt.Errorf("the dump compress [%s] isn't support, please choose [%s,%s,%s]", d.Compress,
			constant.DumpCompressNone, constant.DumpCompressSnappy, constant.DumpCompressLZ4)
	}
	return nil
}
