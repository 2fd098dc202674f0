package database_test

import (
	"testing"

	"github.com/pkg/errors"
	. "github.com/pseudomuto/dbmaint/pkg/database"
	"github.com/stretchr/testify/require"
)

func TestNewDialect(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"postgres", "postgres"},
		{"PostgreSQL", "postgres"},
		{"mysql", "mysql"},
		{"mariadb", "mysql"},
		{"sqlite3", "sqlite"},
		{"clickhouse", "clickhouse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDialect(tt.name)
			require.NoError(t, err)
			require.Equal(t, tt.expected, d.Name())
		})
	}

	_, err := NewDialect("oracle")
	require.True(t, errors.Is(err, ErrUnknownDialect))
	require.EqualError(t, err, "oracle: unknown dialect")
}

func TestObjectKind(t *testing.T) {
	require.Equal(t, "materialized view", MaterializedView.String())
	require.Equal(t, "MATERIALIZED VIEW", MaterializedView.Keyword())
	require.Equal(t, "TABLE", Table.Keyword())
	require.Equal(t, "unknown", ObjectKind(99).String())
}

func TestCapabilitiesSupports(t *testing.T) {
	caps := Capabilities{Triggers: true}

	require.True(t, caps.Supports(Table))
	require.True(t, caps.Supports(View))
	require.True(t, caps.Supports(Trigger))
	require.False(t, caps.Supports(Sequence))
	require.False(t, caps.Supports(Function))
	require.False(t, caps.Supports(Procedure))
	require.False(t, caps.Supports(Type))
	require.False(t, caps.Supports(MaterializedView))
}

func TestParserOptions(t *testing.T) {
	pg, _ := NewDialect("postgres")
	require.True(t, pg.ParserOptions().DollarQuoting)
	require.False(t, pg.ParserOptions().BackslashEscaping)

	my, _ := NewDialect("mysql")
	require.True(t, my.ParserOptions().BackslashEscaping)
	require.True(t, my.ParserOptions().CompoundBlocks)
	require.Equal(t, '`', my.ParserOptions().IdentifierQuote)

	lite, _ := NewDialect("sqlite")
	require.False(t, lite.ParserOptions().BackslashEscaping)
	require.True(t, lite.ParserOptions().CompoundBlocks)

	ch, _ := NewDialect("clickhouse")
	require.True(t, ch.ParserOptions().BackslashEscaping)
	require.False(t, ch.ParserOptions().CompoundBlocks)
}

func TestDropObjectSQL(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		kind     ObjectKind
		obj      Object
		expected string
	}{
		{
			name:     "postgres table",
			dialect:  &Postgres{},
			kind:     Table,
			obj:      Object{Name: "users"},
			expected: `DROP TABLE IF EXISTS "public"."users" CASCADE`,
		},
		{
			name:     "postgres materialized view",
			dialect:  &Postgres{},
			kind:     MaterializedView,
			obj:      Object{Name: "stats"},
			expected: `DROP MATERIALIZED VIEW IF EXISTS "public"."stats" CASCADE`,
		},
		{
			name:     "postgres trigger",
			dialect:  &Postgres{},
			kind:     Trigger,
			obj:      Object{Name: "audit", Parent: "users"},
			expected: `DROP TRIGGER IF EXISTS "audit" ON "public"."users" CASCADE`,
		},
		{
			name:     "postgres function",
			dialect:  &Postgres{},
			kind:     Function,
			obj:      Object{Name: "add", Signature: "a integer, b integer"},
			expected: `DROP FUNCTION IF EXISTS "public"."add"(a integer, b integer) CASCADE`,
		},
		{
			name:     "mysql procedure",
			dialect:  &MySQL{},
			kind:     Procedure,
			obj:      Object{Name: "cleanup"},
			expected: "DROP PROCEDURE IF EXISTS `public`.`cleanup`",
		},
		{
			name:     "sqlite trigger",
			dialect:  &SQLite{},
			kind:     Trigger,
			obj:      Object{Name: "audit", Parent: "users"},
			expected: `DROP TRIGGER IF EXISTS "public"."audit"`,
		},
		{
			name:     "clickhouse table",
			dialect:  &ClickHouse{},
			kind:     Table,
			obj:      Object{Name: "events"},
			expected: "DROP TABLE IF EXISTS `public`.`events` SYNC",
		},
		{
			name:     "clickhouse materialized view",
			dialect:  &ClickHouse{},
			kind:     MaterializedView,
			obj:      Object{Name: "events_mv"},
			expected: "DROP VIEW IF EXISTS `public`.`events_mv` SYNC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.dialect.DropObjectSQL("public", tt.kind, tt.obj))
		})
	}
}

func TestCleanTablesSQL(t *testing.T) {
	require.Equal(t,
		[]string{`TRUNCATE TABLE "app"."a", "app"."b"`},
		(&Postgres{}).CleanTablesSQL("app", []string{"a", "b"}),
	)
	require.Nil(t, (&Postgres{}).CleanTablesSQL("app", nil))

	require.Equal(t,
		[]string{"DELETE FROM `app`.`a`", "DELETE FROM `app`.`b`"},
		(&MySQL{}).CleanTablesSQL("app", []string{"a", "b"}),
	)

	require.Equal(t,
		[]string{"TRUNCATE TABLE IF EXISTS `app`.`a`"},
		(&ClickHouse{}).CleanTablesSQL("app", []string{"a"}),
	)
}

func TestDeleteSQL(t *testing.T) {
	pg := &Postgres{}
	require.Equal(t, `DELETE FROM "public"."scripts" WHERE file_name = $1`, pg.DeleteSQL("public", "scripts", "file_name = "+pg.Placeholder(1)))
	require.Equal(t, `DELETE FROM "public"."scripts"`, pg.DeleteSQL("public", "scripts", ""))

	my := &MySQL{}
	require.Equal(t, "DELETE FROM `app`.`scripts` WHERE file_name = ?", my.DeleteSQL("app", "scripts", "file_name = "+my.Placeholder(1)))

	ch := &ClickHouse{}
	require.Equal(t, "DELETE FROM `db`.`scripts` WHERE 1 = 1", ch.DeleteSQL("db", "scripts", ""))

	ch.SetServerVersion("23.3.1")
	require.Equal(t, "DELETE FROM `db`.`scripts` WHERE succeeded = 0", ch.DeleteSQL("db", "scripts", "succeeded = 0"))

	ch.SetServerVersion("22.8.5.29")
	require.Equal(t,
		"ALTER TABLE `db`.`scripts` DELETE WHERE succeeded = 0 SETTINGS mutations_sync = 2",
		ch.DeleteSQL("db", "scripts", "succeeded = 0"),
	)
}

func TestRegistryTableDDL(t *testing.T) {
	require.Contains(t, (&Postgres{}).RegistryTableDDL("public", "scripts"), `CREATE TABLE IF NOT EXISTS "public"."scripts" (`)
	require.Contains(t, (&MySQL{}).RegistryTableDDL("app", "scripts"), "file_name VARCHAR(150)")
	require.Contains(t, (&ClickHouse{}).RegistryTableDDL("db", "scripts"), "ENGINE = MergeTree ORDER BY file_name")
	require.Contains(t, (&SQLite{}).RegistryTableDDL("main", "scripts"), "succeeded INTEGER")
}

func TestParseServerVersion(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
		wantErr  bool
	}{
		{raw: "23.8.2.7", expected: "23.8.2.7"},
		{raw: "21.10.3.9-testing", expected: "21.10.3.9"},
		{raw: "21.10.3.9 (official build)", expected: "21.10.3.9"},
		{raw: " 25.7.1.1 ", expected: "25.7.1.1"},
		{raw: "not a version", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := ParseServerVersion(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.expected, v.String())
		})
	}
}

func TestPreserve(t *testing.T) {
	p := NewPreserve("public.Countries", "currencies")

	require.True(t, p.Contains("public", "countries"))
	require.True(t, p.Contains("PUBLIC", "COUNTRIES"))
	require.False(t, p.Contains("audit", "countries"))
	require.True(t, p.Contains("audit", "currencies"))
	require.False(t, p.Contains("public", "users"))

	extended := p.With("public.dbmaintain_scripts")
	require.True(t, extended.Contains("public", "dbmaintain_scripts"))
	require.False(t, p.Contains("public", "dbmaintain_scripts"))
}
