package parser

// compoundObjects are the objects whose bodies may contain statement separators.
var compoundObjects = map[string]bool{
	"TRIGGER":   true,
	"PROCEDURE": true,
	"FUNCTION":  true,
	"EVENT":     true,
}

// blockEndQualifiers follow END when closing a control statement that was not
// counted as an opening block.
var blockEndQualifiers = map[string]bool{
	"IF":     true,
	"LOOP":   true,
	"WHILE":  true,
	"REPEAT": true,
}

// blockTracker follows BEGIN ... END nesting in compound statements such as
// MySQL stored procedures and SQLite triggers, using words seen in Normal mode.
type blockTracker struct {
	enabled  bool
	words    int
	compound bool
	depth    int
	last     string
}

func (b *blockTracker) observe(word string) {
	if !b.enabled {
		return
	}

	b.words++
	defer func() { b.last = word }()

	if !b.compound {
		// CREATE [OR REPLACE] [DEFINER = x] [TEMP] TRIGGER ...
		if b.words == 1 && word != "CREATE" {
			b.enabled = false
			return
		}
		if b.words <= 6 && compoundObjects[word] {
			b.compound = true
		}
		return
	}

	switch {
	case word == "BEGIN":
		b.depth++
	case word == "CASE" && b.last != "END":
		b.depth++
	case word == "END" && b.depth > 0:
		b.depth--
	case b.last == "END" && blockEndQualifiers[word]:
		b.depth++
	}
}

func (b *blockTracker) reset(enabled bool) {
	*b = blockTracker{enabled: enabled}
}
