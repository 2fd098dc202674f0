package parser_test

import (
	"io"
	"strings"
	"testing"

	. "github.com/pseudomuto/dbmaint/pkg/parser"
	"github.com/stretchr/testify/require"
)

func TestParseString(t *testing.T) {
	tests := []struct {
		name   string
		script string
		opts   Options
		want   []string
	}{
		{
			name:   "multiple statements",
			script: "CREATE TABLE a (id INT);\nINSERT INTO a VALUES (1);",
			want:   []string{"CREATE TABLE a (id INT)", "INSERT INTO a VALUES (1)"},
		},
		{
			name:   "trailing statement without separator",
			script: "SELECT 1;\nSELECT 2\n",
			want:   []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:   "separator in single quotes",
			script: "INSERT INTO a VALUES ('x;y');",
			want:   []string{"INSERT INTO a VALUES ('x;y')"},
		},
		{
			name:   "separator in double quotes",
			script: `SELECT "a;b" FROM t;`,
			want:   []string{`SELECT "a;b" FROM t`},
		},
		{
			name:   "doubled quotes",
			script: "INSERT INTO t VALUES ('it''s; ok');",
			want:   []string{"INSERT INTO t VALUES ('it''s; ok')"},
		},
		{
			name:   "backslash escaping",
			script: `INSERT INTO t VALUES ('it\'s; ok');`,
			opts:   Options{BackslashEscaping: true},
			want:   []string{`INSERT INTO t VALUES ('it\'s; ok')`},
		},
		{
			name:   "line comments dropped",
			script: "-- header; comment\nSELECT 1; -- trailing\nSELECT 2",
			want:   []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:   "block comment replaced by space",
			script: "SELECT/* c; */1;",
			want:   []string{"SELECT 1"},
		},
		{
			name:   "comment at end of input",
			script: "SELECT 1 -- done",
			want:   []string{"SELECT 1"},
		},
		{
			name:   "empty statements skipped",
			script: ";;  ;\nSELECT 1;;",
			want:   []string{"SELECT 1"},
		},
		{
			name:   "comment only",
			script: "-- nothing here\n/* or here */\n",
			want:   nil,
		},
		{
			name:   "identifier quotes",
			script: "SELECT `a;b` FROM t;",
			opts:   Options{IdentifierQuote: '`'},
			want:   []string{"SELECT `a;b` FROM t"},
		},
		{
			name:   "custom separator",
			script: "SELECT 1;\n/\nSELECT 2\n/",
			opts:   Options{Separator: '/'},
			want:   []string{"SELECT 1;", "SELECT 2"},
		},
		{
			name:   "dollar quoted body",
			script: "CREATE FUNCTION f() RETURNS int AS $$ BEGIN RETURN 1; END; $$ LANGUAGE plpgsql;\nSELECT f();",
			opts:   Options{DollarQuoting: true},
			want: []string{
				"CREATE FUNCTION f() RETURNS int AS $$ BEGIN RETURN 1; END; $$ LANGUAGE plpgsql",
				"SELECT f()",
			},
		},
		{
			name:   "tagged dollar quoted body",
			script: "CREATE FUNCTION f() RETURNS int AS $body$ BEGIN RETURN 1; END; $body$ LANGUAGE plpgsql;\nSELECT f();",
			opts:   Options{DollarQuoting: true},
			want: []string{
				"CREATE FUNCTION f() RETURNS int AS $body$ BEGIN RETURN 1; END; $body$ LANGUAGE plpgsql",
				"SELECT f()",
			},
		},
		{
			name: "nested dollar quote tags",
			script: "CREATE FUNCTION g() RETURNS void AS $function$ BEGIN EXECUTE $q$ SELECT 1; $q$; " +
				"PERFORM $$ x; $$; END; $function$ LANGUAGE plpgsql;\nSELECT g();",
			opts: Options{DollarQuoting: true},
			want: []string{
				"CREATE FUNCTION g() RETURNS void AS $function$ BEGIN EXECUTE $q$ SELECT 1; $q$; " +
					"PERFORM $$ x; $$; END; $function$ LANGUAGE plpgsql",
				"SELECT g()",
			},
		},
		{
			name:   "positional parameters are not dollar quotes",
			script: "PREPARE p AS SELECT $1, $2;\nEXECUTE p(1, 2);",
			opts:   Options{DollarQuoting: true},
			want:   []string{"PREPARE p AS SELECT $1, $2", "EXECUTE p(1, 2)"},
		},
		{
			name:   "parameters substituted",
			script: "INSERT INTO ${schema}.t VALUES ('${missing}');",
			opts:   Options{Parameters: map[string]string{"schema": "app"}},
			want:   []string{"INSERT INTO app.t VALUES ('${missing}')"},
		},
		{
			name:   "case expression outside compound statement",
			script: "SELECT CASE WHEN a THEN 1 END;SELECT 2;",
			opts:   Options{CompoundBlocks: true},
			want:   []string{"SELECT CASE WHEN a THEN 1 END", "SELECT 2"},
		},
		{
			name:   "transaction block is not compound",
			script: "BEGIN; INSERT INTO t VALUES (1); COMMIT;",
			opts:   Options{CompoundBlocks: true},
			want:   []string{"BEGIN", "INSERT INTO t VALUES (1)", "COMMIT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmts, err := ParseString(tt.script, tt.opts)
			require.NoError(t, err)
			require.Equal(t, tt.want, stmts)
		})
	}
}

func TestParseStringCompoundBlocks(t *testing.T) {
	script := `CREATE TRIGGER trg BEFORE INSERT ON t FOR EACH ROW
BEGIN
  IF NEW.x < 0 THEN
    SET NEW.x = 0;
  END IF;
  SET NEW.y = CASE WHEN NEW.x > 1 THEN 1 ELSE 0 END;
END;
SELECT 1;`
	trigger := script[:strings.Index(script, "END;\nSELECT")+len("END")]

	t.Run("enabled", func(t *testing.T) {
		stmts, err := ParseString(script, Options{CompoundBlocks: true})
		require.NoError(t, err)
		require.Equal(t, []string{trigger, "SELECT 1"}, stmts)
	})

	t.Run("disabled", func(t *testing.T) {
		stmts, err := ParseString(script, Options{})
		require.NoError(t, err)
		require.Greater(t, len(stmts), 2)
		require.Equal(t, "SELECT 1", stmts[len(stmts)-1])
	})
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		opts   Options
		line   int
		column int
		mode   Mode
	}{
		{
			name:   "unterminated single quote",
			script: "SELECT 'abc",
			line:   1,
			column: 8,
			mode:   InSingleQuotes,
		},
		{
			name:   "unterminated double quote",
			script: "SELECT 1;\nSELECT \"abc",
			line:   2,
			column: 8,
			mode:   InDoubleQuotes,
		},
		{
			name:   "unterminated block comment",
			script: "SELECT 1; /* open",
			line:   1,
			column: 11,
			mode:   InBlockComment,
		},
		{
			name:   "backslash without escaping",
			script: `INSERT INTO t VALUES ('it\'s; ok');`,
			line:   1,
			column: 33,
			mode:   InSingleQuotes,
		},
		{
			name:   "closing tag does not match",
			script: "DO $a$ BEGIN NULL; $b$;",
			opts:   Options{DollarQuoting: true},
			line:   1,
			column: 4,
			mode:   InDollarQuotes,
		},
		{
			name:   "unterminated dollar body",
			script: "DO $$ BEGIN",
			opts:   Options{DollarQuoting: true},
			line:   1,
			column: 4,
			mode:   InDollarQuotes,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.script, tt.opts)
			require.Error(t, err)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			require.Equal(t, tt.line, perr.Line)
			require.Equal(t, tt.column, perr.Column)
			require.Equal(t, tt.mode, perr.Mode)
		})
	}
}

func TestParserNext(t *testing.T) {
	p := New(strings.NewReader("SELECT 1; /* open"), Options{})

	stmt, err := p.Next()
	require.NoError(t, err)
	require.Equal(t, "SELECT 1", stmt)

	_, err = p.Next()
	require.EqualError(t, err, "unterminated block comment starting at line 1, column 11")

	// errors are sticky
	_, err = p.Next()
	require.Error(t, err)
}

func TestParserNextEOF(t *testing.T) {
	p := New(strings.NewReader("SELECT 1"), Options{})

	stmt, err := p.Next()
	require.NoError(t, err)
	require.Equal(t, "SELECT 1", stmt)

	for range 2 {
		_, err = p.Next()
		require.ErrorIs(t, err, io.EOF)
	}
}

func TestParserStatements(t *testing.T) {
	p := New(strings.NewReader("SELECT 1; SELECT 2; SELECT 'oops"), Options{})

	var (
		stmts []string
		errs  []error
	)

	for stmt, err := range p.Statements() {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		stmts = append(stmts, stmt)
	}

	require.Equal(t, []string{"SELECT 1", "SELECT 2"}, stmts)
	require.Len(t, errs, 1)
}

func TestQuoteSafety(t *testing.T) {
	bodies := []string{";", "a;b", ";;;", " ; ", "x'';y", "-- ;", "/* ; */"}

	for _, body := range bodies {
		for _, quote := range []string{"'", `"`} {
			script := "SELECT " + quote + body + quote + "; SELECT 2"
			stmts, err := ParseString(script, Options{})
			require.NoError(t, err, script)
			require.Equal(t, []string{"SELECT " + quote + body + quote, "SELECT 2"}, stmts, script)
		}
	}
}
