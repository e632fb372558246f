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
package structure

// Index describes a table index used for chunk key discovery
type Index struct {
	IndexName   string
	Columns     []string
	Primary     bool
	Unique      bool
	Cardinality uint64
}

type SortIndexes []Index

func (s SortIndexes) Len() int {
	return len(s)
}

func (s SortIndexes) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

// Less orders primary first, unique second, then cardinality descending
func (s SortIndexes) Less(i, j int) bool {
	if s[i].Primary != s[j].Primary {
		return s[i].Primary
	}
	if s[i].Unique != s[j].Unique {
		return s[i].Unique
	}
	if s[i].Cardinality != s[j].Cardinality {
		// Note that this is sorting in descending order
		return s[i].Cardinality > s[j].Cardinality
	}
	return s[i].IndexName < s[j].IndexName
}
