package script

import (
	"path"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
)

var (
	// nameLexer tokenizes one path segment such as "01_#patch_@users_add_column"
	nameLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "Qualifier", Pattern: `#[^_#@]+`},
		{Name: "Target", Pattern: `@[^_#@]+`},
		{Name: "Word", Pattern: `[^_#@]+`},
		{Name: "Sep", Pattern: `_+`},
		{Name: "Stray", Pattern: `[#@]`},
	})

	nameParser = participle.MustBuild[segment](
		participle.Lexer(nameLexer),
		participle.UseLookahead(2),
	)
)

type (
	// segment is a directory name or a file name without its extension
	segment struct {
		Tokens []*token `parser:"@@*"`
	}

	token struct {
		Sep       *string `parser:"  @Sep"`
		Qualifier *string `parser:"| @Qualifier"`
		Target    *string `parser:"| @Target"`
		Text      *string `parser:"| @(Word | Stray)"`
	}

	// parsedName holds the attributes encoded in a script path.
	parsedName struct {
		Index          Index
		FileIndexed    bool
		Qualifiers     []string
		TargetDatabase string
	}
)

// parseName extracts the index path, qualifiers and target database encoded
// in a slash-separated script path. Every directory and the file name may
// carry an index; the index path is formed by the indexes found along the way.
func parseName(name string) (*parsedName, error) {
	segments := strings.Split(strings.Trim(name, "/"), "/")

	last := len(segments) - 1
	segments[last] = strings.TrimSuffix(segments[last], path.Ext(segments[last]))

	result := new(parsedName)
	seen := make(map[string]bool)

	for i, text := range segments {
		if text == "" {
			return nil, errors.New("empty path segment")
		}

		seg, err := nameParser.ParseString(name, text)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid segment %q", text)
		}

		for j, part := range seg.parts() {
			if len(part) != 1 {
				// empty, or text such as a#b that only looks like a qualifier
				continue
			}

			p := part[0]
			switch {
			case p.Qualifier != nil:
				q := strings.ToLower(strings.TrimPrefix(*p.Qualifier, "#"))
				if !seen[q] {
					seen[q] = true
					result.Qualifiers = append(result.Qualifiers, q)
				}

			case p.Target != nil:
				target := strings.TrimPrefix(*p.Target, "@")
				if result.TargetDatabase != "" && result.TargetDatabase != target {
					return nil, errors.Errorf("more than one target database: %s and %s", result.TargetDatabase, target)
				}
				result.TargetDatabase = target

			case j == 0 && p.Text != nil && isIndex(*p.Text):
				n, err := strconv.ParseUint(*p.Text, 10, 64)
				if err != nil {
					return nil, errors.Wrapf(err, "invalid index %q", *p.Text)
				}

				result.Index = append(result.Index, n)
				if i == last {
					result.FileIndexed = true
				}
			}
		}
	}

	return result, nil
}

// parts splits the tokens of a segment on separators. A segment starting with
// a separator has an empty first part, so it never carries an index.
func (s *segment) parts() [][]*token {
	parts := [][]*token{nil}
	for _, t := range s.Tokens {
		if t.Sep != nil {
			parts = append(parts, nil)
			continue
		}

		parts[len(parts)-1] = append(parts[len(parts)-1], t)
	}

	return parts
}

func isIndex(word string) bool {
	if word == "" {
		return false
	}

	for _, r := range word {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}
