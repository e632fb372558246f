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
package mysql

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/wentaojin/dbdumper/utils/constant"
	"github.com/wentaojin/dbdumper/utils/stringutil"
)

func (d *Database) IdentifierQuote(name string) string {
	return stringutil.StringBuilder("`", strings.ReplaceAll(name, "`", "``"), "`")
}

func (d *Database) LiteralQuote(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return stringutil.StringBuilder("'", r.Replace(value), "'")
}

func (d *Database) QueryHint() string {
	return constant.MYSQLQueryHintNoCache
}

// TableSource returns `schema`.`table` with the optional PARTITION (`p`) modifier
func (d *Database) TableSource(schemaName, tableName, partitionName string) string {
	source := stringutil.StringBuilder(d.IdentifierQuote(schemaName), constant.StringSeparatorDot, d.IdentifierQuote(tableName))
	if partitionName != "" {
		return stringutil.StringBuilder(source, " PARTITION (", d.IdentifierQuote(partitionName), ")")
	}
	return source
}

func (d *Database) IsTableNotExistError(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == constant.MySQLErrorCodeTableNotExist
	}
	return false
}
