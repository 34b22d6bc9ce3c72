package search

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// ErrInvalidTerm is returned for terms with an unknown operator.
var ErrInvalidTerm = errors.New("invalid search term")

// Operator combines a term with the rest of the query.
type Operator string

const (
	AND Operator = "AND"
	OR  Operator = "OR"
	NOT Operator = "NOT"
)

// Term is one element of a query. Word is used by AND and NOT terms,
// Words by OR terms.
type Term struct {
	Word     string   `json:"word,omitempty"`
	Words    []string `json:"words,omitempty"`
	Operator Operator `json:"operator,omitempty"`
}

// Range is a half-open span of rune offsets within a line.
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Match is a line containing at least one matched word.
type Match struct {
	Line   int     `json:"line"` // Zero-based
	Text   string  `json:"text"`
	Ranges []Range `json:"ranges"`
}

// Result is the outcome of a query. Weight counts all occurrences.
type Result struct {
	Matches []Match `json:"matches"`
	Weight  int     `json:"weight"`
}

// Empty reports whether the query matched nothing.
func (r Result) Empty() bool {
	return len(r.Matches) == 0
}

// line is a line of the document in folded form.
type line struct {
	text   string
	folded []rune
	origin []int // folded rune index -> original rune index
}

// Search runs terms against content.
func Search(content string, terms []Term) (Result, error) {
	result := Result{Matches: []Match{}}

	groups, err := normalize(terms)
	if err != nil {
		return result, err
	}
	if len(groups) == 0 {
		return result, nil
	}

	fold := cases.Fold()
	lines := splitLines(content, fold)

	hits := make(map[int][]Range)
	for _, g := range groups {
		found := 0
		groupHits := make(map[int][]Range)
		for _, word := range g.words {
			needle := []rune(fold.String(word))
			for i, l := range lines {
				for _, r := range findAll(l, needle) {
					groupHits[i] = append(groupHits[i], r)
					found++
				}
			}
		}

		if g.op == NOT {
			if found > 0 {
				return result, nil
			}
			continue
		}
		if found == 0 {
			return result, nil
		}
		for i, ranges := range groupHits {
			hits[i] = append(hits[i], ranges...)
		}
		result.Weight += found
	}

	indexes := make([]int, 0, len(hits))
	for i := range hits {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	for _, i := range indexes {
		ranges := hits[i]
		sort.Slice(ranges, func(a, b int) bool {
			if ranges[a].From != ranges[b].From {
				return ranges[a].From < ranges[b].From
			}
			return ranges[a].To < ranges[b].To
		})
		result.Matches = append(result.Matches, Match{
			Line:   i,
			Text:   lines[i].text,
			Ranges: ranges,
		})
	}

	return result, nil
}

type group struct {
	op    Operator
	words []string
}

// normalize validates terms and drops blank words.
func normalize(terms []Term) ([]group, error) {
	groups := make([]group, 0, len(terms))
	for _, t := range terms {
		op := Operator(strings.ToUpper(strings.TrimSpace(string(t.Operator))))
		if op == "" {
			op = AND
		}

		var words []string
		switch op {
		case AND, NOT:
			words = []string{t.Word}
		case OR:
			words = t.Words
			if len(words) == 0 && t.Word != "" {
				words = []string{t.Word}
			}
		default:
			return nil, fmt.Errorf("operator %q: %w", t.Operator, ErrInvalidTerm)
		}

		var kept []string
		for _, w := range words {
			if w = strings.TrimSpace(w); w != "" {
				kept = append(kept, w)
			}
		}
		if len(kept) == 0 {
			continue
		}
		groups = append(groups, group{op: op, words: kept})
	}
	return groups, nil
}

func splitLines(content string, fold cases.Caser) []line {
	raw := strings.Split(content, "\n")
	lines := make([]line, len(raw))
	for i, text := range raw {
		text = strings.TrimSuffix(text, "\r")
		l := line{text: text}
		idx := 0
		for _, r := range text {
			for _, fr := range fold.String(string(r)) {
				l.folded = append(l.folded, fr)
				l.origin = append(l.origin, idx)
			}
			idx++
		}
		lines[i] = l
	}
	return lines
}

// findAll returns non-overlapping occurrences of needle in l.
func findAll(l line, needle []rune) []Range {
	if len(needle) == 0 || len(needle) > len(l.folded) {
		return nil
	}

	var out []Range
	for i := 0; i+len(needle) <= len(l.folded); {
		if runesEqual(l.folded[i:i+len(needle)], needle) {
			out = append(out, Range{
				From: l.origin[i],
				To:   l.origin[i+len(needle)-1] + 1,
			})
			i += len(needle)
			continue
		}
		i++
	}
	return out
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
