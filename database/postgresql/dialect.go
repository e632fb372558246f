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
package postgresql

import (
	"errors"

	"github.com/lib/pq"
	"github.com/wentaojin/dbdumper/utils/constant"
	"github.com/wentaojin/dbdumper/utils/stringutil"
)

func (d *Database) IdentifierQuote(name string) string {
	return pq.QuoteIdentifier(name)
}

func (d *Database) LiteralQuote(value string) string {
	return pq.QuoteLiteral(value)
}

func (d *Database) QueryHint() string {
	return ""
}

// TableSource returns "schema"."table", a partition is a table of its own and replaces the parent
func (d *Database) TableSource(schemaName, tableName, partitionName string) string {
	if partitionName != "" {
		tableName = partitionName
	}
	return stringutil.StringBuilder(d.IdentifierQuote(schemaName), constant.StringSeparatorDot, d.IdentifierQuote(tableName))
}

func (d *Database) IsTableNotExistError(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == constant.PostgresErrorCodeTableNotExist
	}
	return false
}
