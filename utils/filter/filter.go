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
package filter

import (
	"fmt"
	"sort"

	"github.com/wentaojin/dbdumper/utils/stringutil"
)

// Filter matches table names against a rule list, any matching rule is positive
type Filter struct {
	rules []tableRule
}

// Parse the table rules
func Parse(rules []string) (*Filter, error) {
	f := &Filter{}
	for _, r := range rules {
		rule, err := parseRule(r)
		if err != nil {
			return nil, err
		}
		f.rules = append(f.rules, rule)
	}
	return f, nil
}

// MatchTable reports whether the table matches one of the rules
func (f *Filter) MatchTable(table string) bool {
	for _, r := range f.rules {
		if r.table.matchString(table) {
			return true
		}
	}
	return false
}

// FilterTables applies the include or the exclude rules, both of them cannot be set at the same time
func FilterTables(allTables, includeTableS, excludeTableS []string) ([]string, []string, error) {
	var (
		exporterTableSlice []string
		excludeTableSlice  []string
	)
	switch {
	case len(includeTableS) != 0 && len(excludeTableS) == 0:
		f, err := Parse(includeTableS)
		if err != nil {
			return nil, nil, fmt.Errorf("schema filter include tables failed, error: [%v]", err)
		}
		for _, t := range allTables {
			if f.MatchTable(t) {
				exporterTableSlice = append(exporterTableSlice, t)
			}
		}
	case len(includeTableS) == 0 && len(excludeTableS) != 0:
		f, err := Parse(excludeTableS)
		if err != nil {
			return nil, nil, fmt.Errorf("schema filter exclude tables failed, error: [%v]", err)
		}
		for _, t := range allTables {
			if f.MatchTable(t) {
				excludeTableSlice = append(excludeTableSlice, t)
			}
		}
		exporterTableSlice = stringutil.StringItemsFilterDifference(allTables, excludeTableSlice)
		sort.Strings(exporterTableSlice)
	case len(includeTableS) == 0 && len(excludeTableS) == 0:
		exporterTableSlice = allTables
	default:
		return nil, nil, fmt.Errorf("source config params include-table/exclude-table cannot exist at the same time")
	}
	return exporterTableSlice, excludeTableSlice, nil
}
