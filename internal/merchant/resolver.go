package merchant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jask/subwatch/internal/database/repository"
)

// UnknownCategory is assigned to merchants no rule recognizes.
const UnknownCategory = "Unknown"

// RuleSource lists active rules ordered by priority desc, canonical name asc.
type RuleSource interface {
	ListActive(ctx context.Context) ([]repository.NormalizationRule, error)
}

// Store is the merchant persistence the resolver needs. CreateOrGet must be
// conflict-safe: on a name_norm clash it returns the stored row.
type Store interface {
	FindByNormalizedName(ctx context.Context, name string) (*repository.Merchant, error)
	CreateOrGet(ctx context.Context, m repository.Merchant) (repository.Merchant, error)
}

// Identity is the canonical identity a raw name resolves to.
type Identity struct {
	Name      string
	Category  string
	CancelURL string
	Website   string
	Matched   bool
}

// Match scans rules in order and returns the identity of the first rule
// matching raw, metadata included as the rule has it. Without a match, raw
// itself is the identity.
func Match(rules []repository.NormalizationRule, raw string) Identity {
	for _, rule := range rules {
		if !rule.IsActive || !RuleMatches(rule, raw) {
			continue
		}
		return Identity{
			Name:      rule.CanonicalName,
			Category:  rule.Category,
			CancelURL: rule.CancelURL,
			Website:   rule.Website,
			Matched:   true,
		}
	}
	return Identity{Name: raw, Category: UnknownCategory}
}

// Resolver finds or creates canonical merchants. Rules are fetched on every
// call so edits apply to the next resolution.
type Resolver struct {
	Rules     RuleSource
	Merchants Store
	// Version tags merchants created by this resolver.
	Version string
	Now     func() time.Time
}

// Identify returns the identity raw resolves to without touching merchants.
func (r *Resolver) Identify(ctx context.Context, raw string) (Identity, error) {
	rules, err := r.Rules.ListActive(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("list rules: %w", err)
	}
	return Match(rules, raw), nil
}

// Resolve returns the merchant for raw, creating it on first sight. An
// existing merchant is returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, raw string) (repository.Merchant, error) {
	m, _, err := r.resolve(ctx, raw)
	return m, err
}

// ResolveWithIdentity is Resolve that also reports the matched identity.
func (r *Resolver) ResolveWithIdentity(ctx context.Context, raw string) (repository.Merchant, Identity, error) {
	return r.resolve(ctx, raw)
}

func (r *Resolver) resolve(ctx context.Context, raw string) (repository.Merchant, Identity, error) {
	if raw == "" {
		return repository.Merchant{}, Identity{}, fmt.Errorf("resolve merchant: empty name")
	}
	id, err := r.Identify(ctx, raw)
	if err != nil {
		return repository.Merchant{}, Identity{}, err
	}

	existing, err := r.Merchants.FindByNormalizedName(ctx, id.Name)
	if err != nil {
		return repository.Merchant{}, id, fmt.Errorf("find merchant %q: %w", id.Name, err)
	}
	if existing != nil {
		return *existing, id, nil
	}

	now := r.now()
	m, err := r.Merchants.CreateOrGet(ctx, repository.Merchant{
		ID:             uuid.NewString(),
		NameNorm:       id.Name,
		NameOriginal:   raw,
		Category:       id.Category,
		CancelURL:      id.CancelURL,
		Website:        id.Website,
		Status:         "active",
		RulesetVersion: r.version(),
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return repository.Merchant{}, id, fmt.Errorf("create merchant %q: %w", id.Name, err)
	}
	return m, id, nil
}

func (r *Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC().Truncate(time.Second)
}

func (r *Resolver) version() string {
	if r.Version == "" {
		return "1.0.0"
	}
	return r.Version
}
