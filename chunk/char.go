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
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/wentaojin/dbdumper/utils/constant"
	"github.com/wentaojin/dbdumper/utils/structure"
)

// CharStep walks fixed length string prefixes over an alphabet. The first chunk is open below
// and the last one is open above, so rows outside the alphabet are never lost.
type CharStep struct {
	stepBase
	column string
	quote  func(string) string

	alphabet  []byte
	width     int
	cursor    []byte
	maxPrefix []byte
	first     bool
	exhausted bool
}

// NewCharStep builds a char step, the column name is already quoted and quote renders a string literal
func NewCharStep(column, min, max, alphabet string, width int, quote func(string) string, prefix string) *CharStep {
	chars := lo.Uniq([]byte(alphabet))
	sort.Slice(chars, func(i, j int) bool { return chars[i] < chars[j] })
	if width <= 0 {
		width = 1
	}
	s := &CharStep{
		stepBase: stepBase{prefix: prefix},
		column:   column,
		quote:    quote,
		alphabet: chars,
		width:    width,
		first:    true,
	}
	// a single case alphabet keeps the boundaries ordered under case insensitive collations
	min, max = s.foldCase(min), s.foldCase(max)
	if min > max {
		min, max = max, min
	}
	s.cursor = s.normalize(min)
	s.maxPrefix = s.normalize(max)
	return s
}

func (s *CharStep) foldCase(v string) string {
	text := string(s.alphabet)
	hasUpper := strings.ContainsAny(text, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	hasLower := strings.ContainsAny(text, "abcdefghijklmnopqrstuvwxyz")
	switch {
	case hasLower && !hasUpper:
		return strings.ToLower(v)
	case hasUpper && !hasLower:
		return strings.ToUpper(v)
	}
	return v
}

// normalize cuts the value to the prefix width and maps every byte onto the greatest alphabet byte not above it
func (s *CharStep) normalize(v string) []byte {
	out := make([]byte, s.width)
	lowered := false
	for i := 0; i < s.width; i++ {
		if lowered || i >= len(v) {
			out[i] = s.alphabet[0]
			continue
		}
		c := v[i]
		idx := sort.Search(len(s.alphabet), func(j int) bool { return s.alphabet[j] > c }) - 1
		if idx < 0 {
			out[i] = s.alphabet[0]
			lowered = true
			continue
		}
		if s.alphabet[idx] != c {
			lowered = true
		}
		out[i] = s.alphabet[idx]
	}
	return out
}

// increment returns the next prefix in alphabet order, false on overflow
func (s *CharStep) increment(v []byte) ([]byte, bool) {
	next := append([]byte(nil), v...)
	for i := len(next) - 1; i >= 0; i-- {
		idx := strings.IndexByte(string(s.alphabet), next[i])
		if idx < len(s.alphabet)-1 {
			next[i] = s.alphabet[idx+1]
			return next, true
		}
		next[i] = s.alphabet[0]
	}
	return nil, false
}

func (s *CharStep) rank(v []byte) uint64 {
	var r uint64
	for _, c := range v {
		r = r*uint64(len(s.alphabet)) + uint64(strings.IndexByte(string(s.alphabet), c))
	}
	return r
}

func (s *CharStep) Kind() string {
	return constant.ChunkKindChar
}

func (s *CharStep) Advance() (*Chunk, bool) {
	if s.exhausted {
		return nil, false
	}
	hi, ok := s.increment(s.cursor)
	last := !ok || string(hi) > string(s.maxPrefix)

	rg := structure.NewChunkRange()
	if !s.first {
		rg.Update(s.column, s.quote(string(s.cursor)), "", true, false, false)
	}
	if !last {
		rg.Update(s.column, "", s.quote(string(hi)), false, true, false)
		s.cursor = hi
	} else {
		s.exhausted = true
	}
	s.first = false
	return &Chunk{
		Kind:  constant.ChunkKindChar,
		Where: JoinWhere(s.prefix, rg.ToString()),
		step:  s,
	}, true
}

func (s *CharStep) Exhausted() bool {
	return s.exhausted
}

func (s *CharStep) EstimatedRemaining() uint64 {
	if s.exhausted {
		return 0
	}
	cur, max := s.rank(s.cursor), s.rank(s.maxPrefix)
	if max < cur {
		return 1
	}
	return max - cur + 1
}

func (s *CharStep) Position() string {
	return string(s.cursor)
}
