// Package utils provides identifier quoting and a small statement builder
// shared by the database dialects.
//
// # Identifier Utilities (identifier.go)
//
// Each dialect quotes identifiers differently. PostgreSQL uses ANSI double
// quotes while MySQL, SQLite and ClickHouse use backticks:
//
//	utils.DoubleQuoteIdentifier("public.users")
//	// Result: "public"."users"
//
//	utils.BacktickIdentifier("analytics.events")
//	// Result: `analytics`.`events`
//
//	// Already quoted (not double-quoted)
//	utils.BacktickIdentifier("`users`")
//	// Result: `users`
//
// QualifiedName takes the schema separately so names containing dots are not
// split:
//
//	utils.QualifiedName(utils.BacktickIdentifier, "app", "users")
//	// Result: `app`.`users`
//
// # Statement Builder (sqlbuilder.go)
//
// SQLBuilder assembles DROP, ALTER, TRUNCATE and DELETE statements with the
// dialect's quoting applied to every identifier:
//
//	utils.NewSQLBuilder(utils.BacktickIdentifier).
//		Drop("TABLE").
//		IfExists().
//		QualifiedName("analytics", "events").
//		Raw("SYNC").
//		String()
//	// Result: DROP TABLE IF EXISTS `analytics`.`events` SYNC
package utils
