// Package merchant maps raw merchant strings onto canonical merchant identities.
package merchant

import (
	"strings"
	"unicode"

	"github.com/jask/subwatch/internal/database/repository"
)

// Key lowercases s and drops every rune that is not a letter or digit.
// "NETFLIX.COM", "netflix com" and "Netflix.Com" share the key "netflixcom".
func Key(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// SynonymMatches reports whether raw names the same merchant as synonym,
// either by case-insensitive equality or by equal keys.
func SynonymMatches(synonym, raw string) bool {
	if strings.ToLower(synonym) == strings.ToLower(raw) {
		return true
	}
	k := Key(raw)
	return k != "" && Key(synonym) == k
}

// RuleMatches reports whether any synonym of the rule matches raw.
func RuleMatches(rule repository.NormalizationRule, raw string) bool {
	for _, s := range rule.Synonyms {
		if SynonymMatches(s, raw) {
			return true
		}
	}
	return false
}

// AddSynonym appends synonym unless an existing one already matches it.
// It reports whether the rule changed.
func AddSynonym(rule *repository.NormalizationRule, synonym string) bool {
	if strings.TrimSpace(synonym) == "" || RuleMatches(*rule, synonym) {
		return false
	}
	rule.Synonyms = append(rule.Synonyms, synonym)
	return true
}

// RemoveSynonym drops exact occurrences of synonym and reports whether any
// were removed.
func RemoveSynonym(rule *repository.NormalizationRule, synonym string) bool {
	kept := rule.Synonyms[:0]
	for _, s := range rule.Synonyms {
		if s != synonym {
			kept = append(kept, s)
		}
	}
	removed := len(kept) != len(rule.Synonyms)
	rule.Synonyms = kept
	return removed
}
