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
package mysql

import (
	"context"
	"fmt"
	"time"

	"github.com/wentaojin/dbdumper/logger"
	"github.com/wentaojin/dbdumper/utils/filter"
	"go.uber.org/zap"
)

func (d *Database) GetDatabaseTable(ctx context.Context, schemaName string) ([]string, error) {
	_, res, err := d.GeneralQuery(ctx, `SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`, schemaName)
	if err != nil {
		return nil, err
	}
	var tables []string
	for _, r := range res {
		tables = append(tables, r["TABLE_NAME"])
	}
	return tables, nil
}

func (d *Database) FilterDatabaseTable(ctx context.Context, sourceSchema string, includeTableS, excludeTableS []string) ([]string, error) {
	startTime := time.Now()
	allTables, err := d.GetDatabaseTable(ctx, sourceSchema)
	if err != nil {
		return nil, err
	}
	exporters, excludes, err := filter.FilterTables(allTables, includeTableS, excludeTableS)
	if err != nil {
		return nil, err
	}
	if len(exporters) == 0 {
		return exporters, fmt.Errorf("exporter tables aren't exist, please check config params include-table/exclude-table")
	}

	logger.Info("filter mysql compatible database table",
		zap.String("schema_name_s", sourceSchema),
		zap.Strings("exporter tables list", exporters),
		zap.Int("include table counts", len(exporters)),
		zap.Int("exclude table counts", len(excludes)),
		zap.Int("all table counts", len(allTables)),
		zap.String("cost", time.Since(startTime).String()))
	return exporters, nil
}
