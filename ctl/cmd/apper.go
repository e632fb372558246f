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
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wentaojin/dbdumper/version"
)

type Cmder interface {
	Cmd() *cobra.Command
}

type App struct {
	Config   string
	LogLevel string
	LogFile  string
	Version  bool
}

func (a *App) Cmd() *cobra.Command {
	c := &cobra.Command{
		Use:          "dbdumper",
		Short:        "CLI dbdumper app for parallel logical database dump",
		RunE:         a.RunE,
		SilenceUsage: true,
	}
	c.PersistentFlags().StringVarP(&a.Config, "config", "c", "", "path to the toml config file")
	c.PersistentFlags().StringVar(&a.LogLevel, "log-level", "", "log level override, such as debug, info, warn, error")
	c.PersistentFlags().StringVar(&a.LogFile, "log-file", "", "log file override, empty logs to stderr")
	c.Flags().BoolVarP(&a.Version, "version", "v", false, "version for app client")
	return c
}

func (a *App) RunE(cmd *cobra.Command, args []string) error {
	if a.Version {
		fmt.Println(version.GetRawVersionInfo())
		return nil
	}
	return cmd.Help()
}

// NewRootCommand assembles the command tree
func NewRootCommand() *cobra.Command {
	app := &App{}
	root := app.Cmd()
	root.AddCommand(app.AppDump().Cmd(), app.AppVersion().Cmd())
	return root
}
