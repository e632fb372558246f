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
package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestGetLevelEnabler(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"unknown", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, getLevelEnabler(tt.level))
		})
	}
}

func TestNewRootLoggerWritesFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "dumper.log")
	NewRootLogger(&Config{LogLevel: "info", LogFile: logFile, MaxSize: 1, MaxDays: 1, MaxBackups: 1})

	Info("dump table start", zap.String("schema_name_s", "db"), zap.String("table_name_s", "t1"))
	Debug("hidden message")
	require.NoError(t, Sync())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[INFO]")
	assert.Contains(t, string(data), "dump table start")
	assert.Contains(t, string(data), `"table_name_s": "t1"`)
	assert.NotContains(t, string(data), "hidden message")
}
