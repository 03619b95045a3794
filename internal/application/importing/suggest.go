package importing

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"

	domain "github.com/mohammadpnp/tabular-import/internal/domain/importing"
)

// SuggestedMapping proposes a source column for one target field. Score is
// the similarity in [0,1]; an exact normalized match scores 1.
type SuggestedMapping struct {
	TargetField  string  `json:"target_field"`
	SourceColumn string  `json:"source_column"`
	Score        float64 `json:"score"`
}

type suggestionCandidate struct {
	fieldIndex  int
	columnIndex int
	score       float64
}

// SuggestMapping pairs schema fields with file columns by name similarity.
// Each column is used at most once; the best scoring pairs are taken first.
// Fields without a column above threshold are left out.
func SuggestMapping(schema domain.Schema, columns []string, threshold float64) []SuggestedMapping {
	candidates := make([]suggestionCandidate, 0, len(schema.Fields)*len(columns))
	for fi, field := range schema.Fields {
		key := normalizeName(field.Key)
		label := normalizeName(field.Label)
		for ci, column := range columns {
			name := normalizeName(column)
			if name == "" {
				continue
			}
			score := similarity(key, name)
			if s := similarity(label, name); s > score {
				score = s
			}
			if score >= threshold {
				candidates = append(candidates, suggestionCandidate{fieldIndex: fi, columnIndex: ci, score: score})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.fieldIndex != b.fieldIndex {
			return a.fieldIndex < b.fieldIndex
		}
		return a.columnIndex < b.columnIndex
	})

	chosen := make(map[int]suggestionCandidate, len(schema.Fields))
	usedColumns := make(map[int]struct{}, len(columns))
	for _, c := range candidates {
		if _, done := chosen[c.fieldIndex]; done {
			continue
		}
		if _, used := usedColumns[c.columnIndex]; used {
			continue
		}
		chosen[c.fieldIndex] = c
		usedColumns[c.columnIndex] = struct{}{}
	}

	out := make([]SuggestedMapping, 0, len(chosen))
	for fi, field := range schema.Fields {
		c, ok := chosen[fi]
		if !ok {
			continue
		}
		out = append(out, SuggestedMapping{
			TargetField:  field.Key,
			SourceColumn: columns[c.columnIndex],
			Score:        c.score,
		})
	}
	return out
}

// normalizeName keeps letters and digits only, lower-cased, so "E-Mail",
// "e_mail" and "EMAIL " compare equal.
func normalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	return 1 - float64(fuzzy.LevenshteinDistance(a, b))/float64(longest)
}
