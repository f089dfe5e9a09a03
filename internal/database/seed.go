package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/jask/subwatch/internal/database/repository"
)

//go:embed rules.toml
var defaultRulesTOML string

// RuleSeed is one [[rule]] entry of a seed file.
type RuleSeed struct {
	CanonicalName string   `toml:"canonical_name"`
	Synonyms      []string `toml:"synonyms"`
	Category      string   `toml:"category"`
	CancelURL     string   `toml:"cancel_url"`
	Website       string   `toml:"website"`
	Priority      int      `toml:"priority"`
	Disabled      bool     `toml:"disabled"`
}

// RuleSeedFile is the on-disk rule seed format.
type RuleSeedFile struct {
	Version string     `toml:"version"`
	Rules   []RuleSeed `toml:"rule"`
}

// LoadRuleSeeds decodes the seed file at path, or the embedded defaults when
// path is empty.
func LoadRuleSeeds(path string) (RuleSeedFile, error) {
	var f RuleSeedFile
	if strings.TrimSpace(path) == "" {
		if _, err := toml.Decode(defaultRulesTOML, &f); err != nil {
			return RuleSeedFile{}, fmt.Errorf("parse default rules: %w", err)
		}
		return f, nil
	}
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return RuleSeedFile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

// RuleID derives a stable id from a canonical name so seeding is repeatable.
func RuleID(canonicalName string) string {
	key := strings.ToLower(strings.TrimSpace(canonicalName))
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("rule:"+key)).String()
}

// SeedRules inserts seed rules that are not stored yet. Existing rules keep
// any admin edits. It returns the number of rules written.
func SeedRules(ctx context.Context, db *sql.DB, seeds RuleSeedFile, fallbackVersion string) (int, error) {
	version := strings.TrimSpace(seeds.Version)
	if version == "" {
		version = fallbackVersion
	}
	repo := repository.NewRuleRepo(db)
	now := Now()
	written := 0
	for _, s := range seeds.Rules {
		name := strings.TrimSpace(s.CanonicalName)
		if name == "" || len(s.Synonyms) == 0 {
			return written, fmt.Errorf("seed rule %q: canonical_name and synonyms are required", s.CanonicalName)
		}
		priority := s.Priority
		if priority < 1 || priority > 10 {
			return written, fmt.Errorf("seed rule %q: priority %d out of range 1-10", name, priority)
		}
		ok, err := repo.CreateIfAbsent(ctx, repository.NormalizationRule{
			ID:             RuleID(name),
			CanonicalName:  name,
			Synonyms:       s.Synonyms,
			Category:       s.Category,
			CancelURL:      s.CancelURL,
			Website:        s.Website,
			RulesetVersion: version,
			Priority:       priority,
			IsActive:       !s.Disabled,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return written, fmt.Errorf("seed rule %q: %w", name, err)
		}
		if ok {
			written++
		}
	}
	return written, nil
}
