package utils_test

import (
	"testing"

	. "github.com/pseudomuto/dbmaint/pkg/utils"
	"github.com/stretchr/testify/require"
)

func TestSQLBuilder(t *testing.T) {
	tests := []struct {
		name     string
		builder  func() *SQLBuilder
		expected string
	}{
		{
			name: "DROP TABLE",
			builder: func() *SQLBuilder {
				return NewSQLBuilder(nil).Drop("TABLE").IfExists().QualifiedName("db", "users")
			},
			expected: "DROP TABLE IF EXISTS `db`.`users`",
		},
		{
			name: "DROP TABLE with cascade",
			builder: func() *SQLBuilder {
				return NewSQLBuilder(DoubleQuoteIdentifier).Drop("TABLE").QualifiedName("public", "users").Raw("CASCADE")
			},
			expected: `DROP TABLE "public"."users" CASCADE`,
		},
		{
			name: "DROP TRIGGER ON table",
			builder: func() *SQLBuilder {
				return NewSQLBuilder(DoubleQuoteIdentifier).Drop("TRIGGER").Name("audit").On("public", "users")
			},
			expected: `DROP TRIGGER "audit" ON "public"."users"`,
		},
		{
			name: "DROP VIEW without schema",
			builder: func() *SQLBuilder {
				return NewSQLBuilder(BacktickIdentifier).Drop("VIEW").QualifiedName("", "active")
			},
			expected: "DROP VIEW `active`",
		},
		{
			name: "ALTER TABLE",
			builder: func() *SQLBuilder {
				return NewSQLBuilder(BacktickIdentifier).Alter("TABLE").QualifiedName("app", "orders").Raw("DROP FOREIGN KEY").Name("fk_user")
			},
			expected: "ALTER TABLE `app`.`orders` DROP FOREIGN KEY `fk_user`",
		},
		{
			name: "TRUNCATE multiple tables",
			builder: func() *SQLBuilder {
				return NewSQLBuilder(DoubleQuoteIdentifier).Truncate("TABLE").QualifiedNames("public", "a", "b")
			},
			expected: `TRUNCATE TABLE "public"."a", "public"."b"`,
		},
		{
			name: "DELETE with escaped value",
			builder: func() *SQLBuilder {
				return NewSQLBuilder(BacktickIdentifier).Delete().Name("registry").Raw("WHERE file_name =").Escaped("o'brien.sql")
			},
			expected: "DELETE FROM `registry` WHERE file_name = 'o''brien.sql'",
		},
		{
			name: "CREATE TABLE IF NOT EXISTS",
			builder: func() *SQLBuilder {
				return NewSQLBuilder(nil).Raw("CREATE TABLE").IfNotExists().Name("registry").Raw("(id Int32)")
			},
			expected: "CREATE TABLE IF NOT EXISTS `registry` (id Int32)",
		},
		{
			name:     "empty builder",
			builder:  func() *SQLBuilder { return NewSQLBuilder(nil) },
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.builder().String())
		})
	}
}

func TestEscapeString(t *testing.T) {
	require.Equal(t, "'plain'", EscapeString("plain"))
	require.Equal(t, "'it''s'", EscapeString("it's"))
	require.Equal(t, "''", EscapeString(""))
}
