package parser

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"regexp"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

var parameterPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

type (
	// Parser splits script text into executable statements.
	//
	// Statements are produced lazily, one call to Next at a time, and the
	// sequence cannot be restarted. Comments and separators are dropped while
	// the content of quoted literals is preserved verbatim.
	//
	// Example usage:
	//
	//	p := parser.New(strings.NewReader(script), parser.Options{BackslashEscaping: true})
	//	for stmt, err := range p.Statements() {
	//		if err != nil {
	//			return err
	//		}
	//
	//		if _, err := db.ExecContext(ctx, stmt); err != nil {
	//			return err
	//		}
	//	}
	Parser struct {
		r    *bufio.Reader
		opts Options

		mode Mode
		prev rune
		cur  rune
		next rune

		line   int
		column int

		// start of the open quote or comment, for error reporting
		openLine   int
		openColumn int

		buf    strings.Builder
		blocks blockTracker
		word   strings.Builder

		// opening tag of the current dollar-quoted body and the candidate
		// closing tag read so far
		openTag  string
		closeTag string

		started bool
		err     error
	}

	// ParseError reports a quote or comment left open at the end of a script.
	ParseError struct {
		// Line and Column locate the opening of the unterminated construct.
		Line   int
		Column int

		// Mode is the parser mode at the end of input.
		Mode Mode
	}
)

func (e *ParseError) Error() string {
	return fmt.Sprintf("unterminated %s starting at line %d, column %d", e.Mode, e.Line, e.Column)
}

// New creates a parser reading script text from r.
func New(r io.Reader, opts Options) *Parser {
	return &Parser{
		r:      bufio.NewReader(r),
		opts:   opts,
		prev:   EOF,
		cur:    EOF,
		next:   EOF,
		line:   1,
		column: 0,
		blocks: blockTracker{enabled: opts.CompoundBlocks},
	}
}

// ParseString splits a whole script held in memory.
func ParseString(s string, opts Options) ([]string, error) {
	var stmts []string
	for stmt, err := range New(strings.NewReader(s), opts).Statements() {
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}

	return stmts, nil
}

// Statements returns the remaining statements as an iterator. Iteration stops
// after the first error.
func (p *Parser) Statements() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for {
			stmt, err := p.Next()
			if errors.Is(err, io.EOF) {
				return
			}

			if !yield(stmt, err) || err != nil {
				return
			}
		}
	}
}

// Next returns the next trimmed, non-empty statement. It returns io.EOF once
// the input is exhausted and a *ParseError when the input ends inside a quote
// or block comment. Once an error is returned every later call returns it
// again.
func (p *Parser) Next() (string, error) {
	if p.err != nil {
		return "", p.err
	}

	if !p.started {
		p.started = true
		r, err := p.read()
		if err != nil {
			return "", p.fail(err)
		}
		p.next = r

		if err := p.advance(); err != nil {
			return "", p.fail(err)
		}
		p.prev = EOF
	}

	for p.cur != EOF {
		from := p.mode
		step := p.matchDollarTag(from, Transition(p.mode, p.prev, p.cur, p.next, p.opts))

		if from == Normal {
			p.trackWord(p.cur, step.Next == Normal && !step.End)
		}

		if step.End && p.blocks.depth > 0 {
			step = Step{Next: Normal, Consume: true}
		}

		switch {
		case step.Consume:
			p.buf.WriteRune(p.cur)
		case from.IsComment() && !step.Next.IsComment():
			p.separateTokens()
		}

		if from != step.Next && (from == Normal || from == DollarQuoteOpening && step.Next != InDollarQuotes) {
			p.openLine, p.openColumn = p.line, p.column
		}
		p.mode = step.Next

		if err := p.advance(); err != nil {
			return "", p.fail(err)
		}

		if step.End {
			if stmt, ok := p.flush(); ok {
				return stmt, nil
			}
		}
	}

	if p.mode.Unterminated() {
		return "", p.fail(&ParseError{Line: p.openLine, Column: p.openColumn, Mode: p.mode})
	}

	p.trackWord(EOF, false)
	if stmt, ok := p.flush(); ok {
		return stmt, nil
	}

	return "", p.fail(io.EOF)
}

// matchDollarTag records the tags of a dollar-quoted body so that only the
// tag that opened it closes it. A mismatched '$' starts a new candidate.
func (p *Parser) matchDollarTag(from Mode, step Step) Step {
	switch {
	case from == Normal && step.Next == DollarQuoteOpening:
		p.openTag = "$"
	case from == DollarQuoteOpening && (step.Next == DollarQuoteOpening || step.Next == InDollarQuotes):
		p.openTag += string(p.cur)
	case from == InDollarQuotes && step.Next == DollarQuoteClosing:
		p.closeTag = "$"
	case from == DollarQuoteClosing && step.Next == DollarQuoteClosing:
		p.closeTag += string(p.cur)
	case from == DollarQuoteClosing && step.Next == Normal:
		if p.closeTag+"$" != p.openTag {
			p.closeTag = "$"
			return Step{Next: DollarQuoteClosing, Consume: true}
		}
	}

	return step
}

// advance shifts the lookahead window by one character.
func (p *Parser) advance() error {
	if p.cur == '\n' {
		p.line++
		p.column = 0
	}

	p.prev = p.cur
	p.cur = p.next
	if p.cur != EOF {
		p.column++
	}

	r, err := p.read()
	if err != nil {
		return err
	}
	p.next = r

	return nil
}

func (p *Parser) read() (rune, error) {
	r, _, err := p.r.ReadRune()
	if errors.Is(err, io.EOF) {
		return EOF, nil
	}
	if err != nil {
		return EOF, errors.Wrap(err, "failed to read script")
	}

	return r, nil
}

func (p *Parser) fail(err error) error {
	p.err = err
	return err
}

// separateTokens keeps the text on both sides of a dropped comment apart.
func (p *Parser) separateTokens() {
	s := p.buf.String()
	if s != "" && !unicode.IsSpace(rune(s[len(s)-1])) {
		p.buf.WriteByte(' ')
	}
}

func (p *Parser) trackWord(r rune, normal bool) {
	if normal && isWordChar(r) {
		p.word.WriteRune(r)
		return
	}

	if p.word.Len() > 0 {
		p.blocks.observe(strings.ToUpper(p.word.String()))
		p.word.Reset()
	}
}

func (p *Parser) flush() (string, bool) {
	p.trackWord(EOF, false)

	stmt := strings.TrimSpace(p.buf.String())
	p.buf.Reset()
	p.blocks.reset(p.opts.CompoundBlocks)

	if stmt == "" {
		return "", false
	}

	return p.substitute(stmt), true
}

func (p *Parser) substitute(stmt string) string {
	if len(p.opts.Parameters) == 0 {
		return stmt
	}

	return parameterPattern.ReplaceAllStringFunc(stmt, func(ref string) string {
		name := parameterPattern.FindStringSubmatch(ref)[1]
		if value, ok := p.opts.Parameters[name]; ok {
			return value
		}

		return ref
	})
}
