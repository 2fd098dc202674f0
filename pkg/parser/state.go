package parser

// EOF is passed as the previous or next character when there is none.
const EOF rune = -1

// Mode is the lexical mode of the statement parser.
type Mode int

const (
	// Normal is plain SQL text where separators end statements.
	Normal Mode = iota
	// InLineComment is inside a -- comment, ended by a newline.
	InLineComment
	// BlockCommentOpening has seen the '/' of "/*".
	BlockCommentOpening
	// InBlockComment is inside a /* */ comment.
	InBlockComment
	// BlockCommentClosing has seen the '*' of "*/".
	BlockCommentClosing
	// InSingleQuotes is inside a '...' string literal.
	InSingleQuotes
	// SingleQuoteEscape consumes the character following an escape inside '...'.
	SingleQuoteEscape
	// InDoubleQuotes is inside a "..." quoted identifier or literal.
	InDoubleQuotes
	// DoubleQuoteEscape consumes the character following an escape inside "...".
	DoubleQuoteEscape
	// InIdentifierQuotes is inside a dialect identifier quote such as `...`.
	InIdentifierQuotes
	// IdentifierQuoteEscape consumes a doubled identifier quote.
	IdentifierQuoteEscape
	// DollarQuoteOpening is reading the opening tag of a $tag$ body.
	DollarQuoteOpening
	// InDollarQuotes is inside a $tag$...$tag$ body.
	InDollarQuotes
	// DollarQuoteClosing is reading a candidate closing tag.
	DollarQuoteClosing
)

var modeNames = map[Mode]string{
	Normal:                "normal",
	InLineComment:         "line comment",
	BlockCommentOpening:   "block comment",
	InBlockComment:        "block comment",
	BlockCommentClosing:   "block comment",
	InSingleQuotes:        "single-quoted literal",
	SingleQuoteEscape:     "single-quoted literal",
	InDoubleQuotes:        "double-quoted literal",
	DoubleQuoteEscape:     "double-quoted literal",
	InIdentifierQuotes:    "quoted identifier",
	IdentifierQuoteEscape: "quoted identifier",
	DollarQuoteOpening:    "dollar-quoted body",
	InDollarQuotes:        "dollar-quoted body",
	DollarQuoteClosing:    "dollar-quoted body",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}

	return "unknown"
}

// Unterminated reports whether reaching the end of input in this mode leaves
// a construct open. Line comments end with the input and an opening tag is
// not a body until its closing '$'.
func (m Mode) Unterminated() bool {
	return m != Normal && m != InLineComment && m != DollarQuoteOpening
}

// IsComment reports whether the mode drops its characters.
func (m Mode) IsComment() bool {
	switch m {
	case InLineComment, BlockCommentOpening, InBlockComment, BlockCommentClosing:
		return true
	default:
		return false
	}
}

type (
	// Options are the dialect parameters of the statement parser.
	Options struct {
		// Separator ends a statement in Normal mode. Defaults to ';'.
		Separator rune

		// BackslashEscaping makes a backslash escape the next character inside
		// single- and double-quoted literals.
		BackslashEscaping bool

		// IdentifierQuote is an additional identifier quote character such as
		// the backtick. Zero disables it.
		IdentifierQuote rune

		// DollarQuoting enables $$...$$ and $tag$...$tag$ bodies.
		DollarQuoting bool

		// CompoundBlocks keeps separators inside BEGIN ... END bodies of
		// CREATE TRIGGER/PROCEDURE/FUNCTION/EVENT statements.
		CompoundBlocks bool

		// Parameters are substituted for ${name} references in completed
		// statements. Unknown names are left untouched.
		Parameters map[string]string
	}

	// Step is the outcome of a single transition.
	Step struct {
		// Next is the mode used for the following character.
		Next Mode

		// Consume is set when the current character belongs to the statement.
		Consume bool

		// End is set when the current character terminates the statement.
		End bool
	}
)

func (o Options) separator() rune {
	if o.Separator == 0 {
		return ';'
	}

	return o.Separator
}

// Transition computes the next parser mode for the character cur given the
// character before it and the one after it. It is a pure function; every
// lexical rule of the parser is expressed here except matching a dollar
// quote's closing tag against its opening tag, which needs the tag text and
// is left to the Parser. DollarQuoteClosing ends on any '$'.
//
// Example:
//
//	step := parser.Transition(parser.Normal, EOF, '\'', 'a', parser.Options{})
//	// step.Next == parser.InSingleQuotes, step.Consume == true
func Transition(mode Mode, prev, cur, next rune, opts Options) Step {
	switch mode {
	case Normal:
		return normal(prev, cur, next, opts)

	case InLineComment:
		if cur == '\n' {
			return Step{Next: Normal, Consume: true}
		}
		return Step{Next: InLineComment}

	case BlockCommentOpening:
		return Step{Next: InBlockComment}

	case InBlockComment:
		if cur == '*' && next == '/' {
			return Step{Next: BlockCommentClosing}
		}
		return Step{Next: InBlockComment}

	case BlockCommentClosing:
		return Step{Next: Normal}

	case InSingleQuotes:
		return quoted(cur, next, '\'', opts.BackslashEscaping, InSingleQuotes, SingleQuoteEscape)

	case SingleQuoteEscape:
		return Step{Next: InSingleQuotes, Consume: true}

	case InDoubleQuotes:
		return quoted(cur, next, '"', opts.BackslashEscaping, InDoubleQuotes, DoubleQuoteEscape)

	case DoubleQuoteEscape:
		return Step{Next: InDoubleQuotes, Consume: true}

	case InIdentifierQuotes:
		return quoted(cur, next, opts.IdentifierQuote, false, InIdentifierQuotes, IdentifierQuoteEscape)

	case IdentifierQuoteEscape:
		return Step{Next: InIdentifierQuotes, Consume: true}

	case DollarQuoteOpening:
		switch {
		case cur == '$':
			return Step{Next: InDollarQuotes, Consume: true}
		case isTagChar(cur):
			return Step{Next: DollarQuoteOpening, Consume: true}
		}
		// not a tag after all, e.g. $name followed by a space
		return normal(prev, cur, next, opts)

	case InDollarQuotes:
		if cur == '$' {
			return Step{Next: DollarQuoteClosing, Consume: true}
		}
		return Step{Next: InDollarQuotes, Consume: true}

	case DollarQuoteClosing:
		switch {
		case cur == '$':
			return Step{Next: Normal, Consume: true}
		case isTagChar(cur):
			return Step{Next: DollarQuoteClosing, Consume: true}
		}
		return Step{Next: InDollarQuotes, Consume: true}
	}

	return Step{Next: mode, Consume: true}
}

func normal(prev, cur, next rune, opts Options) Step {
	switch {
	case cur == opts.separator():
		return Step{Next: Normal, End: true}
	case cur == '-' && next == '-':
		return Step{Next: InLineComment}
	case cur == '/' && next == '*':
		return Step{Next: BlockCommentOpening}
	case cur == '\'':
		return Step{Next: InSingleQuotes, Consume: true}
	case cur == '"':
		return Step{Next: InDoubleQuotes, Consume: true}
	case opts.IdentifierQuote != 0 && cur == opts.IdentifierQuote:
		return Step{Next: InIdentifierQuotes, Consume: true}
	case opts.DollarQuoting && cur == '$' && (next == '$' || isTagStart(next)) && !isWordChar(prev):
		return Step{Next: DollarQuoteOpening, Consume: true}
	}

	return Step{Next: Normal, Consume: true}
}

// quoted handles the body of a quoted construct closed by quote. A doubled
// quote is an escaped quote; a backslash escapes the next character only when
// backslash escaping is enabled.
func quoted(cur, next, quote rune, backslash bool, in, escape Mode) Step {
	switch {
	case backslash && cur == '\\':
		return Step{Next: escape, Consume: true}
	case cur == quote && next == quote:
		return Step{Next: escape, Consume: true}
	case cur == quote:
		return Step{Next: Normal, Consume: true}
	}

	return Step{Next: in, Consume: true}
}

func isTagStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isTagChar(r rune) bool {
	return isTagStart(r) || (r >= '0' && r <= '9')
}

func isWordChar(r rune) bool {
	return r == '_' || r == '$' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
