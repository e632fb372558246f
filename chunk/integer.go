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
	"sync"
	"time"

	"github.com/wentaojin/dbdumper/utils/constant"
	"github.com/wentaojin/dbdumper/utils/structure"
)

// IntegerStep walks an integer key between min and max, each chunk is [pos, pos+step)
// and the last chunk is closed on max. The step adapts between minStep and maxStep
// when they differ.
type IntegerStep[T int64 | uint64] struct {
	stepBase
	column   string
	position int

	min    T
	max    T
	cursor T

	mu        sync.Mutex
	step      uint64
	minStep   uint64
	maxStep   uint64
	target    time.Duration
	growth    float64
	exhausted bool
}

// IntegerStepOption tunes the adaptive step
type IntegerStepOption func(opts *integerStepOptions)

type integerStepOptions struct {
	target   time.Duration
	growth   float64
	position int
}

func WithAdaptiveTarget(target time.Duration) IntegerStepOption {
	return func(opts *integerStepOptions) {
		opts.target = target
	}
}

func WithAdaptiveGrowthFactor(growth float64) IntegerStepOption {
	return func(opts *integerStepOptions) {
		opts.growth = growth
	}
}

// WithKeyPosition records which column of a composite key the step walks
func WithKeyPosition(position int) IntegerStepOption {
	return func(opts *integerStepOptions) {
		opts.position = position
	}
}

// NewSignedStep builds an integer step over a signed key column, the column name is already quoted
func NewSignedStep(column string, min, max int64, starting, minStep, maxStep uint64, prefix string, opts ...IntegerStepOption) *IntegerStep[int64] {
	return newIntegerStep[int64](column, min, max, clampSigned(starting), clampSigned(minStep), clampSigned(maxStep), prefix, opts...)
}

// NewUnsignedStep builds an integer step over an unsigned key column, the column name is already quoted
func NewUnsignedStep(column string, min, max uint64, starting, minStep, maxStep uint64, prefix string, opts ...IntegerStepOption) *IntegerStep[uint64] {
	return newIntegerStep[uint64](column, min, max, starting, minStep, maxStep, prefix, opts...)
}

func newIntegerStep[T int64 | uint64](column string, min, max T, starting, minStep, maxStep uint64, prefix string, opts ...IntegerStepOption) *IntegerStep[T] {
	o := &integerStepOptions{
		target: constant.DefaultDumpAdaptiveTargetSecond * time.Second,
		growth: constant.DefaultDumpAdaptiveGrowthFactor,
	}
	for _, opt := range opts {
		opt(o)
	}
	if minStep == 0 {
		minStep = 1
	}
	if maxStep < minStep {
		maxStep = minStep
	}
	if starting < minStep {
		starting = minStep
	}
	if starting > maxStep {
		starting = maxStep
	}
	if min > max {
		min, max = max, min
	}
	return &IntegerStep[T]{
		stepBase: stepBase{prefix: prefix},
		column:   column,
		position: o.position,
		min:      min,
		max:      max,
		cursor:   min,
		step:     starting,
		minStep:  minStep,
		maxStep:  maxStep,
		target:   o.target,
		growth:   o.growth,
	}
}

func clampSigned(v uint64) uint64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return v
}

func (s *IntegerStep[T]) Kind() string {
	return constant.ChunkKindInteger
}

func (s *IntegerStep[T]) Advance() (*Chunk, bool) {
	if s.exhausted {
		return nil, false
	}
	s.mu.Lock()
	step := s.step
	s.mu.Unlock()

	lo := s.cursor
	hi := lo + T(step)
	rg := structure.NewChunkRange()
	// overflow or reaching max closes the range on max
	if hi <= lo || hi >= s.max {
		rg.Update(s.column, fmt.Sprintf("%d", lo), fmt.Sprintf("%d", s.max), true, true, true)
		s.exhausted = true
	} else {
		rg.Update(s.column, fmt.Sprintf("%d", lo), fmt.Sprintf("%d", hi), true, true, false)
		s.cursor = hi
	}
	return &Chunk{
		Kind:        constant.ChunkKindInteger,
		Where:       JoinWhere(s.prefix, rg.ToString()),
		KeyPosition: s.position,
		step:        s,
	}, true
}

func (s *IntegerStep[T]) Exhausted() bool {
	return s.exhausted
}

func (s *IntegerStep[T]) EstimatedRemaining() uint64 {
	if s.exhausted {
		return 0
	}
	s.mu.Lock()
	step := s.step
	s.mu.Unlock()
	remaining := uint64(s.max) - uint64(s.cursor)
	n := remaining / step
	if remaining%step != 0 || n == 0 {
		n++
	}
	return n
}

func (s *IntegerStep[T]) Position() string {
	return fmt.Sprintf("%d", s.cursor)
}

// Step returns the current step size
func (s *IntegerStep[T]) Step() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Diff returns the width of the key range
func (s *IntegerStep[T]) Diff() uint64 {
	return uint64(s.max) - uint64(s.min)
}

// Fixed reports whether the step never adapts
func (s *IntegerStep[T]) Fixed() bool {
	return s.minStep == s.maxStep
}

// Collapse fixes the step to one key value per chunk, used by the outer column of a composite key
func (s *IntegerStep[T]) Collapse() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step, s.minStep, s.maxStep = 1, 1, 1
}

// AlignDown floors min to a multiple of the step so fixed chunks fall on stable boundaries
func (s *IntegerStep[T]) AlignDown() {
	st := T(s.Step())
	if st <= 1 {
		return
	}
	r := s.min % st
	if r < 0 {
		r += st
	}
	aligned := s.min - r
	if aligned > s.min {
		return
	}
	if s.cursor == s.min {
		s.cursor = aligned
	}
	s.min = aligned
}

// Tune grows the step while chunks finish under the target and shrinks it when they take over twice the target
func (s *IntegerStep[T]) Tune(elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.minStep == s.maxStep || s.growth <= 1 {
		return
	}
	switch {
	case elapsed < s.target:
		next := uint64(float64(s.step) * s.growth)
		if next > s.maxStep || next < s.step {
			next = s.maxStep
		}
		s.step = next
	case elapsed > 2*s.target:
		next := uint64(float64(s.step) / s.growth)
		if next < s.minStep {
			next = s.minStep
		}
		s.step = next
	}
}
