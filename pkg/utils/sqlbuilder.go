package utils

import "strings"

// SQLBuilder provides a fluent interface for building the maintenance
// statements issued by the database dialects. Identifiers are quoted with the
// Quoter the builder was created with.
//
// Example usage:
//
//	sql := NewSQLBuilder(DoubleQuoteIdentifier).
//		Drop("TABLE").
//		IfExists().
//		QualifiedName("public", "users").
//		Raw("CASCADE").
//		String()
//	// Output: DROP TABLE IF EXISTS "public"."users" CASCADE
type SQLBuilder struct {
	quote Quoter
	parts []string
}

// NewSQLBuilder creates a new SQLBuilder quoting identifiers with quote. A nil
// quote falls back to backticks.
func NewSQLBuilder(quote Quoter) *SQLBuilder {
	if quote == nil {
		quote = BacktickIdentifier
	}

	return &SQLBuilder{
		quote: quote,
		parts: make([]string, 0, 10),
	}
}

// Drop adds a DROP clause with the specified object type.
//
// Example:
//
//	builder.Drop("VIEW")  // DROP VIEW
func (b *SQLBuilder) Drop(objectType string) *SQLBuilder {
	b.parts = append(b.parts, "DROP", objectType)
	return b
}

// Alter adds an ALTER clause with the specified object type.
func (b *SQLBuilder) Alter(objectType string) *SQLBuilder {
	b.parts = append(b.parts, "ALTER", objectType)
	return b
}

// Truncate adds a TRUNCATE clause with the specified object type. An empty
// type is omitted.
func (b *SQLBuilder) Truncate(objectType string) *SQLBuilder {
	b.parts = append(b.parts, "TRUNCATE")
	return b.Raw(objectType)
}

// Delete adds a DELETE FROM clause.
func (b *SQLBuilder) Delete() *SQLBuilder {
	b.parts = append(b.parts, "DELETE", "FROM")
	return b
}

// IfExists adds an IF EXISTS clause.
func (b *SQLBuilder) IfExists() *SQLBuilder {
	b.parts = append(b.parts, "IF EXISTS")
	return b
}

// IfNotExists adds an IF NOT EXISTS clause.
func (b *SQLBuilder) IfNotExists() *SQLBuilder {
	b.parts = append(b.parts, "IF NOT EXISTS")
	return b
}

// Name adds a quoted identifier.
//
// Example:
//
//	builder.Name("users")  // `users`
func (b *SQLBuilder) Name(name string) *SQLBuilder {
	if name != "" {
		b.parts = append(b.parts, b.quote(name))
	}
	return b
}

// QualifiedName adds a schema qualified identifier. An empty schema adds only
// the name.
//
// Example:
//
//	builder.QualifiedName("", "users")       // `users`
//	builder.QualifiedName("app", "users")    // `app`.`users`
func (b *SQLBuilder) QualifiedName(schema, name string) *SQLBuilder {
	if name != "" {
		b.parts = append(b.parts, QualifiedName(b.quote, schema, name))
	}
	return b
}

// QualifiedNames adds a comma separated list of schema qualified identifiers.
func (b *SQLBuilder) QualifiedNames(schema string, names ...string) *SQLBuilder {
	quoted := make([]string, 0, len(names))
	for _, name := range names {
		quoted = append(quoted, QualifiedName(b.quote, schema, name))
	}

	if len(quoted) > 0 {
		b.parts = append(b.parts, strings.Join(quoted, ", "))
	}
	return b
}

// On adds an ON clause followed by a qualified name, as used by DROP TRIGGER.
func (b *SQLBuilder) On(schema, name string) *SQLBuilder {
	b.parts = append(b.parts, "ON")
	return b.QualifiedName(schema, name)
}

// Escaped adds a single quoted SQL string literal, doubling embedded quotes.
//
// Example:
//
//	builder.Raw("WHERE file_name =").Escaped("o'brien.sql")  // WHERE file_name = 'o''brien.sql'
func (b *SQLBuilder) Escaped(value string) *SQLBuilder {
	b.parts = append(b.parts, EscapeString(value))
	return b
}

// Raw adds raw SQL text to the builder. Use sparingly for constructs that
// don't fit the fluent pattern.
//
// Example:
//
//	builder.Raw("CASCADE")  // CASCADE
func (b *SQLBuilder) Raw(sql string) *SQLBuilder {
	if sql != "" {
		b.parts = append(b.parts, sql)
	}
	return b
}

// String builds the statement. No trailing separator is added since the
// database drivers execute a single statement per call.
//
// Example:
//
//	sql := builder.Drop("VIEW").Name("active_users").String()
//	// Returns: "DROP VIEW `active_users`"
func (b *SQLBuilder) String() string {
	return strings.Join(b.parts, " ")
}

// EscapeString returns value as a single quoted SQL string literal.
func EscapeString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
