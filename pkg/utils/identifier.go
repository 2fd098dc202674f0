package utils

import "strings"

// Quoter wraps a single identifier in dialect specific quotes.
type Quoter func(name string) string

// QuoteIdentifier wraps every dot separated part of name in the quote
// character q, doubling any embedded quote. Parts that are already quoted are
// left untouched.
//
// Examples:
//   - ("table", '"') -> "\"table\""
//   - ("schema.table", '`') -> "`schema`.`table`"
//   - ("`table`", '`') -> "`table`"
//   - ("", '"') -> ""
func QuoteIdentifier(name string, q byte) string {
	if name == "" {
		return ""
	}

	if IsQuoted(name, q) {
		return name
	}

	parts := strings.Split(name, ".")
	for i, part := range parts {
		parts[i] = quotePart(part, q)
	}

	return strings.Join(parts, ".")
}

// BacktickIdentifier quotes name with backticks as MySQL, SQLite and
// ClickHouse expect.
//
// Examples:
//   - "table" -> "`table`"
//   - "database.table" -> "`database`.`table`"
//   - "`table`" -> "`table`" (already backticked, not double-backticked)
func BacktickIdentifier(name string) string {
	return QuoteIdentifier(name, '`')
}

// DoubleQuoteIdentifier quotes name with ANSI double quotes as PostgreSQL
// expects.
func DoubleQuoteIdentifier(name string) string {
	return QuoteIdentifier(name, '"')
}

// QualifiedName joins schema and name with quote applied to both. An empty
// schema yields only the quoted name.
//
// Examples:
//   - (BacktickIdentifier, "analytics", "events") -> "`analytics`.`events`"
//   - (DoubleQuoteIdentifier, "", "events") -> "\"events\""
func QualifiedName(quote Quoter, schema, name string) string {
	if schema == "" {
		return quote(name)
	}

	return quote(schema) + "." + quote(name)
}

// IsQuoted reports whether s is a single identifier wrapped in q.
//
// Examples:
//   - ("`table`", '`') -> true
//   - ("`db`.`table`", '`') -> false
//   - ("", '`') -> false
func IsQuoted(s string, q byte) bool {
	if len(s) < 2 || s[0] != q || s[len(s)-1] != q {
		return false
	}

	inner := strings.ReplaceAll(s[1:len(s)-1], string([]byte{q, q}), "")
	return !strings.ContainsRune(inner, rune(q))
}

// Unquote strips the quote q from a single identifier, undoing doubled
// quotes. Unquoted input is returned as is.
func Unquote(s string, q byte) string {
	if !IsQuoted(s, q) {
		return s
	}

	qs := string([]byte{q})
	return strings.ReplaceAll(s[1:len(s)-1], qs+qs, qs)
}

func quotePart(part string, q byte) string {
	if IsQuoted(part, q) {
		return part
	}

	qs := string([]byte{q})
	return qs + strings.ReplaceAll(part, qs, qs+qs) + qs
}
