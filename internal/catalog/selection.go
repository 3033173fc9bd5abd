package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Selection names the units to resolve: either every unit of the
// requested type, or an explicit set of unit numbers. Numbers are kept
// sorted ascending with duplicates removed, so resolution order never
// depends on how the user typed them.
type Selection struct {
	All     bool
	Numbers []int
}

// Empty reports a selection that names nothing. Resolving one is an
// InvalidRequestError, never a silent default.
func (s Selection) Empty() bool {
	return !s.All && len(s.Numbers) == 0
}

// ParseSelection reads the CLI selection syntax: "all", a comma list
// ("1,3,8"), ranges ("2-5"), or a mix of both ("1,4-6,12").
func ParseSelection(raw string) (Selection, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Selection{}, &InvalidRequestError{Reason: "empty unit selection"}
	}
	if strings.EqualFold(raw, "all") {
		return Selection{All: true}, nil
	}

	seen := make(map[int]bool)
	var numbers []int

	add := func(n int) {
		if !seen[n] {
			seen[n] = true
			numbers = append(numbers, n)
		}
	}

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi, isRange := strings.Cut(part, "-")
		if !isRange {
			n, err := strconv.Atoi(part)
			if err != nil || n <= 0 {
				return Selection{}, &InvalidRequestError{Reason: fmt.Sprintf("%q is not a unit number", part)}
			}
			add(n)
			continue
		}

		start, err1 := strconv.Atoi(strings.TrimSpace(lo))
		end, err2 := strconv.Atoi(strings.TrimSpace(hi))
		if err1 != nil || err2 != nil || start <= 0 || end < start {
			return Selection{}, &InvalidRequestError{Reason: fmt.Sprintf("%q is not a unit range", part)}
		}
		for n := start; n <= end; n++ {
			add(n)
		}
	}

	if len(numbers) == 0 {
		return Selection{}, &InvalidRequestError{Reason: "empty unit selection"}
	}

	sort.Ints(numbers)

	return Selection{Numbers: numbers}, nil
}
