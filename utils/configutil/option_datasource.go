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
	"strings"

	"github.com/wentaojin/dbdumper/utils/constant"
)

const (
	DefaultDatasourceHost    = "127.0.0.1"
	DefaultDatasourcePort    = 3306
	DefaultDatasourceCharset = "utf8mb4"
)

// DatasourceOptions source database connection items
type DatasourceOptions struct {
	DBType        string `toml:"db-type" json:"db-type"`
	Username      string `toml:"username" json:"username"`
	Password      string `toml:"password" json:"-"`
	Host          string `toml:"host" json:"host"`
	Port          uint64 `toml:"port" json:"port"`
	Charset       string `toml:"charset" json:"charset"`
	DBName        string `toml:"db-name" json:"db-name"`
	ConnectParams string `toml:"connect-params" json:"connect-params"`
}

type DatasourceOption func(opts *DatasourceOptions)

func DefaultDatasourceConfig() *DatasourceOptions {
	return &DatasourceOptions{
		DBType:  constant.DatabaseTypeMySQL,
		Host:    DefaultDatasourceHost,
		Port:    DefaultDatasourcePort,
		Charset: DefaultDatasourceCharset,
	}
}

func WithDatasourceAddr(host string, port uint64) DatasourceOption {
	return func(opts *DatasourceOptions) {
		opts.Host = host
		opts.Port = port
	}
}

func WithDatasourceUser(username, password string) DatasourceOption {
	return func(opts *DatasourceOptions) {
		opts.Username = username
		opts.Password = password
	}
}

func WithDatasourceType(dbType string) DatasourceOption {
	return func(opts *DatasourceOptions) {
		opts.DBType = strings.ToUpper(dbType)
	}
}

func (d *DatasourceOptions) Apply(opts ...DatasourceOption) *DatasourceOptions {
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *DatasourceOptions) Validate() error {
	switch strings.ToUpper(d.DBType) {
	case constant.DatabaseTypeMySQL, constant.DatabaseTypeTiDB, constant.DatabaseTypePostgresql:
	default:
		return fmt.Errorf("the datasource db-type [%s] isn't support, please choose [%s,%s,%s]",
			d.DBType, constant.DatabaseTypeMySQL, constant.DatabaseTypeTiDB, constant.DatabaseTypePostgresql)
	}
	if d.Host == "" || d.Port == 0 {
		return fmt.Errorf("the datasource address [%s:%d] is invalid", d.Host, d.Port)
	}
	return nil
}
