// Package parser splits SQL script text into executable statements.
//
// The parser is a character-level state machine. Every lexical rule lives in
// the pure Transition function, which maps the current mode and a
// (previous, current, next) character window to the next mode and whether the
// character belongs to the statement:
//
//	step := parser.Transition(parser.InSingleQuotes, 't', '\'', '\'', opts)
//	// doubled quote: step.Next == parser.SingleQuoteEscape
//
// Parser drives Transition over a reader and yields statements lazily:
//
//	p := parser.New(file, parser.Options{
//		BackslashEscaping: true,
//		IdentifierQuote:   '`',
//		CompoundBlocks:    true,
//	})
//
//	for {
//		stmt, err := p.Next()
//		if errors.Is(err, io.EOF) {
//			break
//		}
//		if err != nil {
//			return err // *parser.ParseError for an unterminated quote or comment
//		}
//		fmt.Println(stmt)
//	}
//
// Separators are recognised only in Normal mode, so a ';' inside a literal,
// quoted identifier, comment or $$ body never splits a statement. Comments are
// dropped. When CompoundBlocks is enabled, separators inside the BEGIN ... END
// body of CREATE TRIGGER, PROCEDURE, FUNCTION and EVENT statements are kept.
package parser
