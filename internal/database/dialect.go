package database

import (
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
)

// Builder returns a goqu dialect matching the driver behind db.  Queries
// are built in prepared mode so values always travel as placeholders.
func Builder(db *sqlx.DB) goqu.DialectWrapper {
	if db.DriverName() == DriverSQLite {
		return goqu.Dialect("sqlite3")
	}
	return goqu.Dialect("mysql")
}
