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
package constant

// Database Type
const (
	DatabaseTypeMySQL      = "MYSQL"
	DatabaseTypeTiDB       = "TIDB"
	DatabaseTypePostgresql = "POSTGRES"
)

const (
	StringSeparatorComma       = ","
	StringSeparatorDot         = "."
	StringSeparatorDoubleColon = ":"
)

// Dump output format
const (
	DumpOutputFormatSQL        = "sql"
	DumpOutputFormatLoadData   = "load-data"
	DumpOutputFormatCSV        = "csv"
	DumpOutputFormatClickHouse = "clickhouse"
)

// Dump output compress
const (
	DumpCompressNone   = "none"
	DumpCompressSnappy = "snappy"
	DumpCompressLZ4    = "lz4"
)

// Dump file extension
const (
	DumpFileSuffixSQL    = "sql"
	DumpFileSuffixData   = "dat"
	DumpFileSuffixCSV    = "csv"
	DumpFileSuffixSnappy = "snappy"
	DumpFileSuffixLZ4    = "lz4"
	DumpMetadataFileName = "metadata"
)

// Chunk step kind
const (
	ChunkKindNone      = "NONE"
	ChunkKindInteger   = "INTEGER"
	ChunkKindChar      = "CHAR"
	ChunkKindPartition = "PARTITION"
)

// Table chunk status
const (
	TableStatusUndefined = "UNDEFINED"
	TableStatusDefining  = "DEFINING"
	TableStatusReady     = "READY"
	TableStatusNoMore    = "NOMORE"
)

// Dump job kind
const (
	JobKindDetermineStrategy = "DETERMINE_STRATEGY"
	JobKindDumpChunk         = "DUMP_CHUNK"
	JobKindDeferredDump      = "DEFERRED_DUMP"
	JobKindShutdown          = "SHUTDOWN"
)

// Dump default params
const (
	DefaultDumpThreads              = 4
	DefaultDumpMinChunkStepSize     = 1000
	DefaultDumpStatementSize        = 1000000
	DefaultDumpWriteBufferSlots     = 4
	DefaultDumpMaxThreadsPerTable   = 4
	DefaultDumpProgressInterval     = 4
	DefaultDumpAdaptiveTargetSecond = 1
	DefaultDumpAdaptiveGrowthFactor = 2
	DefaultDumpCharChunkAlphabet    = "0123456789abcdefghijklmnopqrstuvwxyz"
	DefaultDumpTaskQueueSize        = 1024
	DefaultDumpMegabyte             = 1024 * 1024
)

// Table not exist error codes
const (
	MySQLErrorCodeTableNotExist    = 1146
	PostgresErrorCodeTableNotExist = "42P01"
)

const (
	MYSQLQueryHintNoCache = "/*!40001 SQL_NO_CACHE */"
)
