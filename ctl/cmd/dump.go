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
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wentaojin/dbdumper/database"
	"github.com/wentaojin/dbdumper/database/processor"
	"github.com/wentaojin/dbdumper/logger"
	"github.com/wentaojin/dbdumper/signal"
	"github.com/wentaojin/dbdumper/utils/configutil"
	"github.com/wentaojin/dbdumper/version"
	"go.uber.org/zap"
)

type AppDump struct {
	*App

	dbType       string
	host         string
	port         uint64
	user         string
	password     string
	schema       string
	includeTable []string
	excludeTable []string
	where        string

	threads       int
	outputDir     string
	rows          string
	outputFormat  string
	compress      string
	chunkFilesize uint64
	statementSize uint64
	useDefer      bool
	splitParts    bool
	charChunk     bool
	orderByPK     bool
	header        bool
}

func (a *App) AppDump() Cmder {
	return &AppDump{App: a}
}

func (a *AppDump) Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:              "dump",
		Short:            "dump the schema tables in parallel chunks",
		Long:             `dump the schema tables in parallel chunks, the flags override the config file items`,
		RunE:             a.RunE,
		TraverseChildren: true,
		SilenceUsage:     true,
	}
	cmd.Flags().StringVar(&a.dbType, "db-type", "", "source database type, such as mysql, tidb, postgresql")
	cmd.Flags().StringVarP(&a.host, "host", "H", "", "source database host")
	cmd.Flags().Uint64VarP(&a.port, "port", "P", 0, "source database port")
	cmd.Flags().StringVarP(&a.user, "user", "u", "", "source database username")
	cmd.Flags().StringVarP(&a.password, "password", "p", "", "source database password")
	cmd.Flags().StringVarP(&a.schema, "schema", "B", "", "the schema to dump")
	cmd.Flags().StringSliceVarP(&a.includeTable, "tables", "T", nil, "the tables to dump, comma separated")
	cmd.Flags().StringSliceVar(&a.excludeTable, "exclude-tables", nil, "the tables to skip, comma separated")
	cmd.Flags().StringVar(&a.where, "where", "", "the filter condition appended to every chunk query")
	cmd.Flags().IntVarP(&a.threads, "threads", "t", 0, "the number of dump threads")
	cmd.Flags().StringVarP(&a.outputDir, "output-dir", "o", "", "the dump output directory")
	cmd.Flags().StringVarP(&a.rows, "rows", "r", "", "the chunk step rows, [STEP] or [MIN:START:MAX]")
	cmd.Flags().StringVar(&a.outputFormat, "output-format", "", "the dump file format, such as sql, load-data, csv, clickhouse")
	cmd.Flags().StringVar(&a.compress, "compress", "", "the dump file compression, such as none, snappy, lz4")
	cmd.Flags().Uint64VarP(&a.chunkFilesize, "chunk-filesize", "F", 0, "split the dump files by size in megabytes")
	cmd.Flags().Uint64VarP(&a.statementSize, "statement-size", "s", 0, "the insert statement size in bytes")
	cmd.Flags().BoolVar(&a.useDefer, "use-defer", false, "queue the chunks of busy tables and dump them after the other tables")
	cmd.Flags().BoolVar(&a.splitParts, "split-partitions", false, "dump the partitions of a table as separate chunks")
	cmd.Flags().BoolVar(&a.charChunk, "char-chunk", false, "split the tables keyed by character columns")
	cmd.Flags().BoolVar(&a.orderByPK, "order-by-primary-key", false, "sort the rows of every chunk by the key columns")
	cmd.Flags().BoolVar(&a.header, "include-header", false, "write the column names before the rows")
	return cmd
}

func (a *AppDump) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		if err := cmd.Help(); err != nil {
			return err
		}
		return fmt.Errorf("the dump command has unknown args [%v]", args)
	}

	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}

	logger.NewRootLogger(cfg.LogConfig)
	version.RecordAppVersion("dbdumper", cfg.String())
	defer func() {
		_ = logger.Sync()
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	databaseS, err := database.NewDatabase(ctx, cfg.DatasourceOptions)
	if err != nil {
		return err
	}
	defer databaseS.Close()

	dt := processor.NewDumpTask(ctx, databaseS, cfg.DatasourceOptions, cfg.DumpOptions)
	dt.Stdout = cmd.OutOrStdout()
	signal.SetupSignalHandler(dt.Shutdown)

	if err = database.IDatabaseRun(dt); err != nil {
		logger.Error("dump task failed", zap.String("run_id", dt.RunID), zap.Error(err))
		return err
	}
	return nil
}

// loadConfig reads the config file and applies the flags explicitly set on the command line
func (a *AppDump) loadConfig(cmd *cobra.Command) (*configutil.Config, error) {
	cfg := configutil.NewConfig()
	if a.Config != "" {
		if err := cfg.ConfigFromFile(a.Config); err != nil {
			return nil, err
		}
	}
	if a.LogLevel != "" {
		cfg.LogConfig.LogLevel = a.LogLevel
	}
	if a.LogFile != "" {
		cfg.LogConfig.LogFile = a.LogFile
	}

	flags := cmd.Flags()
	ds := cfg.DatasourceOptions
	if flags.Changed("db-type") {
		ds.Apply(configutil.WithDatasourceType(a.dbType))
	}
	if flags.Changed("host") || flags.Changed("port") {
		host, port := ds.Host, ds.Port
		if flags.Changed("host") {
			host = a.host
		}
		if flags.Changed("port") {
			port = a.port
		}
		ds.Apply(configutil.WithDatasourceAddr(host, port))
	}
	if flags.Changed("user") || flags.Changed("password") {
		user, password := ds.Username, ds.Password
		if flags.Changed("user") {
			user = a.user
		}
		if flags.Changed("password") {
			password = a.password
		}
		ds.Apply(configutil.WithDatasourceUser(user, password))
	}

	opts := cfg.DumpOptions
	if flags.Changed("schema") {
		opts.SchemaName = a.schema
	}
	if flags.Changed("tables") {
		opts.IncludeTable = a.includeTable
	}
	if flags.Changed("exclude-tables") {
		opts.ExcludeTable = a.excludeTable
	}
	if flags.Changed("where") {
		opts.Where = a.where
	}
	if flags.Changed("threads") {
		opts.Apply(configutil.WithDumpThreads(a.threads))
	}
	if flags.Changed("output-dir") {
		opts.Apply(configutil.WithDumpOutputDir(a.outputDir))
	}
	if flags.Changed("rows") {
		if err := opts.ParseRows(a.rows); err != nil {
			return nil, err
		}
	}
	if flags.Changed("output-format") {
		opts.Apply(configutil.WithDumpOutputFormat(a.outputFormat))
	}
	if flags.Changed("compress") {
		opts.Compress = a.compress
	}
	if flags.Changed("chunk-filesize") {
		opts.Apply(configutil.WithDumpChunkFilesize(a.chunkFilesize))
	}
	if flags.Changed("statement-size") {
		opts.StatementSize = a.statementSize
	}
	if flags.Changed("use-defer") {
		opts.Apply(configutil.WithDumpDefer(a.useDefer))
	}
	if flags.Changed("split-partitions") {
		opts.SplitPartitions = a.splitParts
	}
	if flags.Changed("char-chunk") {
		opts.CharChunk = a.charChunk
	}
	if flags.Changed("order-by-primary-key") {
		opts.OrderByPrimaryKey = a.orderByPK
	}
	if flags.Changed("include-header") {
		opts.IncludeHeader = a.header
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
