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

// PartitionStep dumps one partition per chunk, in partition order
type PartitionStep struct {
	stepBase
	partitions []string
	current    string
}

func NewPartitionStep(partitions []string, prefix string) *PartitionStep {
	return &PartitionStep{
		stepBase:   stepBase{prefix: prefix},
		partitions: append([]string(nil), partitions...),
	}
}

func (s *PartitionStep) Kind() string {
	return constant.ChunkKindPartition
}

func (s *PartitionStep) Advance() (*Chunk, bool) {
	if len(s.partitions) == 0 {
		return nil, false
	}
	s.current = s.partitions[0]
	s.partitions = s.partitions[1:]
	return &Chunk{Kind: constant.ChunkKindPartition, Where: s.prefix, Partition: s.current, step: s}, true
}

func (s *PartitionStep) Exhausted() bool {
	return len(s.partitions) == 0
}

func (s *PartitionStep) EstimatedRemaining() uint64 {
	return uint64(len(s.partitions))
}

func (s *PartitionStep) Position() string {
	return s.current
}
