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
	"encoding/json"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/wentaojin/dbdumper/logger"
	"github.com/wentaojin/dbdumper/utils/stringutil"
	"go.uber.org/zap"
)

// Config is the configuration for dbdumper
type Config struct {
	ConfigFile        string             `toml:"config-file" json:"config-file"`
	DatasourceOptions *DatasourceOptions `toml:"datasource" json:"datasource"`
	DumpOptions       *DumpOptions       `toml:"dump" json:"dump"`
	LogConfig         *logger.Config     `toml:"log" json:"log"`
}

func NewConfig() *Config {
	return &Config{
		DatasourceOptions: DefaultDatasourceConfig(),
		DumpOptions:       DefaultDumpOptions(),
		LogConfig: &logger.Config{
			LogLevel:   "info",
			MaxSize:    128,
			MaxDays:    7,
			MaxBackups: 30,
		},
	}
}

// ConfigFromFile loads config from file, keys absent from the file keep their defaults
func (c *Config) ConfigFromFile(path string) error {
	c.ConfigFile = path
	_, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("config decode from file failed: %v", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.DatasourceOptions.Validate(); err != nil {
		return err
	}
	return c.DumpOptions.Validate()
}

func (c *Config) String() string {
	cfg, err := json.Marshal(c)
	if err != nil {
		logger.Error("marshal to json", zap.Reflect("dumper config", c), zap.Error(err))
	}
	return stringutil.BytesToString(cfg)
}
