package script

import (
	"slices"
	"strconv"
	"strings"
)

// Index is the ordered list of numeric indexes of a script path. A script
// 01_release/02_add.sql has the index 1.2.
type Index []uint64

// Compare compares two index paths element by element. A strict prefix sorts
// first.
func (i Index) Compare(other Index) int {
	return slices.Compare(i, other)
}

// Max returns the greatest of the given index paths.
func Max(indexes ...Index) Index {
	var highest Index
	for _, idx := range indexes {
		if highest == nil || idx.Compare(highest) > 0 {
			highest = idx
		}
	}

	return highest
}

func (i Index) String() string {
	parts := make([]string, len(i))
	for n, v := range i {
		parts[n] = strconv.FormatUint(v, 10)
	}

	return strings.Join(parts, ".")
}
