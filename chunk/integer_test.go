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
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(s Step) []string {
	var wheres []string
	for {
		c, ok := s.Advance()
		if !ok {
			return wheres
		}
		wheres = append(wheres, c.Where)
	}
}

func TestIntegerStepRoundTrip(t *testing.T) {
	s := NewUnsignedStep("`id`", 1, 1000, 100, 100, 100, "")
	assert.Equal(t, uint64(10), s.EstimatedRemaining())

	wheres := drain(s)
	require.Len(t, wheres, 10)
	assert.Equal(t, "`id` >= 1 AND `id` < 101", wheres[0])
	assert.Equal(t, "`id` >= 801 AND `id` < 901", wheres[8])
	assert.Equal(t, "`id` >= 901 AND `id` <= 1000", wheres[9])
	assert.True(t, s.Exhausted())
	assert.Equal(t, uint64(0), s.EstimatedRemaining())
}

func TestIntegerStepCoverage(t *testing.T) {
	tests := []struct {
		min, max int64
		step     uint64
	}{
		{0, 100, 50},
		{-500, 499, 100},
		{7, 13, 3},
		{1, 1000, 999},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%d_%d", tt.min, tt.max, tt.step), func(t *testing.T) {
			s := NewSignedStep("`id`", tt.min, tt.max, tt.step, tt.step, tt.step, "")
			diff := uint64(tt.max - tt.min)
			want := (diff + tt.step - 1) / tt.step
			wheres := drain(s)
			assert.Len(t, wheres, int(want))

			next := tt.min
			for i, w := range wheres {
				if i == len(wheres)-1 {
					assert.Equal(t, fmt.Sprintf("`id` >= %d AND `id` <= %d", next, tt.max), w)
					continue
				}
				assert.Equal(t, fmt.Sprintf("`id` >= %d AND `id` < %d", next, next+int64(tt.step)), w)
				next += int64(tt.step)
			}
		})
	}
}

func TestIntegerStepOverflow(t *testing.T) {
	s := NewUnsignedStep("`id`", math.MaxUint64-10, math.MaxUint64, 100, 100, 100, "")
	wheres := drain(s)
	require.Len(t, wheres, 1)
	assert.Equal(t, fmt.Sprintf("`id` >= %d AND `id` <= %d", uint64(math.MaxUint64-10), uint64(math.MaxUint64)), wheres[0])

	signed := NewSignedStep("`id`", math.MaxInt64-5, math.MaxInt64, math.MaxUint64, 10, math.MaxUint64, "")
	assert.Len(t, drain(signed), 1)
}

func TestIntegerStepPrefix(t *testing.T) {
	s := NewUnsignedStep("`b`", 10, 30, 10, 10, 10, "`a` >= 5 AND `a` < 6")
	c, ok := s.Advance()
	require.True(t, ok)
	assert.Equal(t, "(`a` >= 5 AND `a` < 6) AND (`b` >= 10 AND `b` < 20)", c.Where)
}

func TestIntegerStepAlignDown(t *testing.T) {
	s := NewSignedStep("`id`", 1, 1000, 100, 100, 100, "")
	s.AlignDown()
	c, _ := s.Advance()
	assert.Equal(t, "`id` >= 0 AND `id` < 100", c.Where)

	neg := NewSignedStep("`id`", -150, 1000, 100, 100, 100, "")
	neg.AlignDown()
	c, _ = neg.Advance()
	assert.Equal(t, "`id` >= -200 AND `id` < -100", c.Where)
}

func TestIntegerStepTune(t *testing.T) {
	s := NewUnsignedStep("`id`", 1, 1000000, 100, 100, 1000, "",
		WithAdaptiveTarget(time.Second), WithAdaptiveGrowthFactor(2))
	assert.False(t, s.Fixed())

	s.Tune(100 * time.Millisecond)
	assert.Equal(t, uint64(200), s.Step())
	s.Tune(100 * time.Millisecond)
	s.Tune(100 * time.Millisecond)
	s.Tune(100 * time.Millisecond)
	assert.Equal(t, uint64(1000), s.Step())

	s.Tune(1500 * time.Millisecond)
	assert.Equal(t, uint64(1000), s.Step())
	s.Tune(3 * time.Second)
	assert.Equal(t, uint64(500), s.Step())
	for i := 0; i < 10; i++ {
		s.Tune(time.Minute)
	}
	assert.Equal(t, uint64(100), s.Step())

	fixed := NewUnsignedStep("`id`", 1, 1000, 100, 100, 100, "")
	fixed.Tune(time.Millisecond)
	assert.Equal(t, uint64(100), fixed.Step())
}

func TestIntegerStepCollapse(t *testing.T) {
	s := NewUnsignedStep("`a`", 1, 3, 100, 100, 100, "")
	s.Collapse()
	assert.Equal(t, []string{"`a` >= 1 AND `a` < 2", "`a` >= 2 AND `a` <= 3"}, drain(s))
}
