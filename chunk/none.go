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

import "github.com/wentaojin/dbdumper/utils/constant"

// NoneStep dumps the whole table in a single chunk
type NoneStep struct {
	stepBase
	done bool
}

func NewNoneStep(prefix string) *NoneStep {
	return &NoneStep{stepBase: stepBase{prefix: prefix}}
}

func (s *NoneStep) Kind() string {
	return constant.ChunkKindNone
}

func (s *NoneStep) Advance() (*Chunk, bool) {
	if s.done {
		return nil, false
	}
	s.done = true
	return &Chunk{Kind: constant.ChunkKindNone, Where: s.prefix, step: s}, true
}

func (s *NoneStep) Exhausted() bool {
	return s.done
}

func (s *NoneStep) EstimatedRemaining() uint64 {
	if s.done {
		return 0
	}
	return 1
}

func (s *NoneStep) Position() string {
	return ""
}
