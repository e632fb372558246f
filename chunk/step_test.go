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
package chunk

import (
	"regexp"
	"strings"
	"testing"

	"github.com/wentaojin/dbdumper/utils/constant"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quote(v string) string {
	return "'" + v + "'"
}

func TestCharStep(t *testing.T) {
	s := NewCharStep("`name`", "alice", "carol", "cba", 1, quote, "")
	assert.Equal(t, uint64(3), s.EstimatedRemaining())
	assert.Equal(t, []string{
		"`name` < 'b'",
		"`name` >= 'b' AND `name` < 'c'",
		"`name` >= 'c'",
	}, drain(s))
	assert.True(t, s.Exhausted())
}

var (
	lowerBoundRegexp = regexp.MustCompile(`>= '([^']*)'`)
	upperBoundRegexp = regexp.MustCompile(`< '([^']*)'`)
)

// matchFold evaluates a char range predicate the way a case insensitive collation compares strings
func matchFold(where, value string) bool {
	v := strings.ToLower(value)
	if m := lowerBoundRegexp.FindStringSubmatch(where); m != nil && v < strings.ToLower(m[1]) {
		return false
	}
	if m := upperBoundRegexp.FindStringSubmatch(where); m != nil && v >= strings.ToLower(m[1]) {
		return false
	}
	return true
}

func TestCharStepCaseInsensitiveCoverage(t *testing.T) {
	s := NewCharStep("`k`", "Apple", "zebra", constant.DefaultDumpCharChunkAlphabet, 1, quote, "")
	wheres := drain(s)
	require.Greater(t, len(wheres), 1)

	rows := []string{"apple", "Apple", "banana", "Banana", "Mango", "mango", "Zebra", "zebra", "0day", "9lives", "_tmp", "~end"}
	for _, row := range rows {
		matched := 0
		for _, where := range wheres {
			if matchFold(where, row) {
				matched++
			}
		}
		assert.Equal(t, 1, matched, "row %q", row)
	}
}

func TestCharStepFoldsBounds(t *testing.T) {
	s := NewCharStep("`k`", "Apple", "Cherry", "abcd", 1, quote, "")
	assert.Equal(t, []string{
		"`k` < 'b'",
		"`k` >= 'b' AND `k` < 'c'",
		"`k` >= 'c'",
	}, drain(s))
}

func TestCharStepWidth(t *testing.T) {
	s := NewCharStep("`code`", "a", "bz", "ab", 2, quote, "`k` = 1")
	wheres := drain(s)
	require.Len(t, wheres, 4)
	assert.Equal(t, "(`k` = 1) AND (`code` < 'ab')", wheres[0])
	assert.Equal(t, "(`k` = 1) AND (`code` >= 'ab' AND `code` < 'ba')", wheres[1])
	assert.Equal(t, "(`k` = 1) AND (`code` >= 'ba' AND `code` < 'bb')", wheres[2])
	assert.Equal(t, "(`k` = 1) AND (`code` >= 'bb')", wheres[3])
}

func TestCharStepSingleChunk(t *testing.T) {
	s := NewCharStep("`name`", "zz", "zz", "abc", 1, quote, "")
	wheres := drain(s)
	require.Len(t, wheres, 1)
	assert.Equal(t, "", wheres[0])
}

func TestPartitionStep(t *testing.T) {
	s := NewPartitionStep([]string{"p0", "p1", "p2"}, "")
	assert.Equal(t, uint64(3), s.EstimatedRemaining())
	var names []string
	for i := 0; i < 3; i++ {
		c, ok := s.Advance()
		require.True(t, ok)
		names = append(names, c.Partition)
	}
	assert.Equal(t, []string{"p0", "p1", "p2"}, names)
	_, ok := s.Advance()
	assert.False(t, ok)
	assert.True(t, s.Exhausted())
}

func TestNoneStep(t *testing.T) {
	s := NewNoneStep("`deleted` = 0")
	c, ok := s.Advance()
	require.True(t, ok)
	assert.Equal(t, "`deleted` = 0", c.Where)
	_, ok = s.Advance()
	assert.False(t, ok)
}

func TestJoinWhere(t *testing.T) {
	assert.Equal(t, "", JoinWhere("", ""))
	assert.Equal(t, "a = 1", JoinWhere("", "a = 1"))
	assert.Equal(t, "(a = 1) AND (b = 2)", JoinWhere("a = 1", "", "b = 2"))
}
