package database_test

import (
	. "github.com/pseudomuto/dbmaint/pkg/database"
	"github.com/pseudomuto/dbmaint/pkg/parser"
)

func parserStatements(db *Database, sql string) ([]string, error) {
	return parser.ParseString(sql, db.ParserOptions())
}
