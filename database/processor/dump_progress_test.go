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
package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wentaojin/dbdumper/chunk"
	"github.com/wentaojin/dbdumper/utils/constant"
)

type captureSink struct {
	snapshots []ProgressSnapshot
}

func (c *captureSink) Report(s ProgressSnapshot) {
	c.snapshots = append(c.snapshots, s)
}

func TestPercent(t *testing.T) {
	testCases := []struct {
		done, total uint64
		want        string
	}{
		{0, 0, "0.00%"},
		{1, 3, "33.33%"},
		{2, 3, "66.67%"},
		{10, 10, "100.00%"},
		// estimated totals may be lower than the dumped rows
		{15, 10, "100.00%"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, Percent(tc.done, tc.total))
	}
}

func TestProgressReport(t *testing.T) {
	started := chunk.NewTable("db", "t1", []string{"id"})
	started.Pull()
	started.SetStrategy(chunk.NewNoneStep(""), 10)
	started.AddRows(5)
	pending := chunk.NewTable("db", "t2", nil)

	sink := &captureSink{}
	p := NewProgresser([]*chunk.Table{started, pending}, 0, sink)
	assert.Equal(t, constant.DefaultDumpProgressInterval, int(p.Interval.Seconds()))
	p.RowsProcessed.Add(5)
	p.Report()

	require.Len(t, sink.snapshots, 1)
	s := sink.snapshots[0]
	assert.Equal(t, "t1", s.TableName)
	assert.Equal(t, constant.TableStatusReady, s.Status)
	assert.Equal(t, uint64(5), s.Rows)
	assert.Equal(t, uint64(10), s.RowsTotal)
	assert.Equal(t, "50.00%", s.Percent)
	assert.Equal(t, uint64(1), s.ChunksRemaining)
}
