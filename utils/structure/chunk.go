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

import (
	"encoding/json"

	"github.com/wentaojin/dbdumper/utils/stringutil"
)

// Bound represents a bound for a column, the column name is already quoted
type Bound struct {
	ColumnName string `json:"columnName"`
	Lower      string `json:"lower"`
	Upper      string `json:"upper"`

	HasLower bool `json:"hasLower"`
	HasUpper bool `json:"hasUpper"`
	// UpperClosed renders the upper bound with <=, used by the last chunk of a range
	UpperClosed bool `json:"upperClosed"`
}

// Range represents chunk range, bounds of different columns are AND composed
type Range struct {
	Bounds      []*Bound       `json:"bounds"`
	BoundOffset map[string]int `json:"boundOffset"`
}

// NewChunkRange return a Range.
func NewChunkRange() *Range {
	return &Range{
		Bounds:      make([]*Bound, 0, 2),
		BoundOffset: make(map[string]int),
	}
}

// String returns the string of Range, used for log.
func (rg *Range) String() string {
	chunkBytes, _ := json.Marshal(rg)
	return stringutil.BytesToString(chunkBytes)
}

func (rg *Range) addBound(bound *Bound) {
	rg.Bounds = append(rg.Bounds, bound)
	rg.BoundOffset[bound.ColumnName] = len(rg.Bounds) - 1
}

// ToString renders the predicate, for example a range over `id` [1,101) is rendered `id` >= 1 AND `id` < 101
func (rg *Range) ToString() string {
	conditions := make([]string, 0, 2*len(rg.Bounds))
	for _, bound := range rg.Bounds {
		if bound.HasLower {
			conditions = append(conditions, stringutil.StringBuilder(bound.ColumnName, " >= ", bound.Lower))
		}
		if bound.HasUpper {
			if bound.UpperClosed {
				conditions = append(conditions, stringutil.StringBuilder(bound.ColumnName, " <= ", bound.Upper))
			} else {
				conditions = append(conditions, stringutil.StringBuilder(bound.ColumnName, " < ", bound.Upper))
			}
		}
	}
	return stringutil.StringJoin(conditions, " AND ")
}

// Update sets the bound of the column, a new bound is appended when the column is absent
func (rg *Range) Update(columnName, lower, upper string, updateLower, updateUpper, upperClosed bool) {
	if offset, ok := rg.BoundOffset[columnName]; ok {
		if updateLower {
			rg.Bounds[offset].Lower = lower
			rg.Bounds[offset].HasLower = true
		}
		if updateUpper {
			rg.Bounds[offset].Upper = upper
			rg.Bounds[offset].HasUpper = true
			rg.Bounds[offset].UpperClosed = upperClosed
		}
		return
	}

	rg.addBound(&Bound{
		ColumnName:  columnName,
		Lower:       lower,
		Upper:       upper,
		HasLower:    updateLower,
		HasUpper:    updateUpper,
		UpperClosed: upperClosed,
	})
}
