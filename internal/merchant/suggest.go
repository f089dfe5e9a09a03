package merchant

import (
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/jask/subwatch/internal/database/repository"
)

// maxSuggestDistance is the largest edit distance, relative to the longer
// key, still worth suggesting.
const maxSuggestDistance = 0.4

// Suggestion is a rule that nearly matched an unrecognized raw name.
type Suggestion struct {
	CanonicalName string
	Similarity    float64
}

// Suggest ranks rules whose canonical name or synonyms are close to raw by
// edit distance over normalization keys. At most limit results are returned.
func Suggest(rules []repository.NormalizationRule, raw string, limit int) []Suggestion {
	key := Key(raw)
	if key == "" || limit <= 0 {
		return nil
	}
	var out []Suggestion
	for _, rule := range rules {
		best := -1.0
		for _, cand := range append([]string{rule.CanonicalName}, rule.Synonyms...) {
			ck := Key(cand)
			if ck == "" {
				continue
			}
			longer := len([]rune(ck))
			if n := len([]rune(key)); n > longer {
				longer = n
			}
			ratio := float64(levenshtein.ComputeDistance(key, ck)) / float64(longer)
			if ratio >= maxSuggestDistance {
				continue
			}
			if sim := 1 - ratio; sim > best {
				best = sim
			}
		}
		if best > 0 {
			out = append(out, Suggestion{CanonicalName: rule.CanonicalName, Similarity: best})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
