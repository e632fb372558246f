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
	"time"

	"github.com/wentaojin/dbdumper/utils/stringutil"
)

// Step is a resumable cursor carving the remaining range of one table into chunks,
// a step is only advanced with the table mutex held
type Step interface {
	// Kind returns the step variant
	Kind() string
	// Advance produces the next chunk, false when the step is exhausted
	Advance() (*Chunk, bool)
	// Exhausted reports whether no chunk is left
	Exhausted() bool
	// EstimatedRemaining returns the estimated chunk count left
	EstimatedRemaining() uint64
	// Position returns the cursor position, used for logs and progress
	Position() string
	// Prefix returns the predicate every chunk of the step is scoped by
	Prefix() string
}

// Tuner is implemented by steps whose size adapts to the chunk elapsed time
type Tuner interface {
	Tune(elapsed time.Duration)
}

// Chunk is the immutable product of one step advance
type Chunk struct {
	Table     *Table
	Kind      string
	Number    uint64
	Where     string
	Partition string

	// KeyPosition is the key column an integer chunk ranges over
	KeyPosition int

	step     Step
	deferred bool
}

func (c *Chunk) String() string {
	return fmt.Sprintf("chunk [%s] number [%d] where [%s] partition [%s]", c.Kind, c.Number, c.Where, c.Partition)
}

// stepBase carries the where prefix shared by the variants
type stepBase struct {
	prefix string
}

func (s *stepBase) Prefix() string {
	return s.prefix
}

// JoinWhere AND composes the non-empty predicates, each one is parenthesized when more than one is kept
func JoinWhere(predicates ...string) string {
	var kept []string
	for _, p := range predicates {
		if p != "" {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return ""
	case 1:
		return kept[0]
	}
	for i := range kept {
		kept[i] = stringutil.StringBuilder("(", kept[i], ")")
	}
	return stringutil.StringJoin(kept, " AND ")
}
