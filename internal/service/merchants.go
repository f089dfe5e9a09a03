package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jask/subwatch/internal/database"
	"github.com/jask/subwatch/internal/database/repository"
	"github.com/jask/subwatch/internal/merchant"
)

// MerchantService administers normalization rules and canonical merchants.
type MerchantService struct {
	Rules     *repository.RuleRepo
	Merchants *repository.MerchantRepo
	// Version tags merchants and rules created through this service.
	Version string
	Now     func() time.Time
}

// Resolver returns a resolver backed by the service's stores. Rules are
// re-read on every resolution.
func (s *MerchantService) Resolver() *merchant.Resolver {
	return &merchant.Resolver{
		Rules:     s.Rules,
		Merchants: s.Merchants,
		Version:   s.Version,
		Now:       s.Now,
	}
}

func (s *MerchantService) Resolve(ctx context.Context, raw string) (repository.Merchant, error) {
	return s.Resolver().Resolve(ctx, raw)
}

// Suggest proposes canonical names for a raw name no rule matched.
func (s *MerchantService) Suggest(ctx context.Context, raw string, limit int) ([]merchant.Suggestion, error) {
	rules, err := s.Rules.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return merchant.Suggest(rules, raw, limit), nil
}

// RuleInput describes a rule to create.
type RuleInput struct {
	CanonicalName string
	Synonyms      []string
	Category      string
	CancelURL     string
	Website       string
	Priority      int
}

func validateRule(name string, synonyms []string, priority int) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: canonical name required", ErrInvalid)
	}
	if len(synonyms) == 0 {
		return fmt.Errorf("%w: rule %q needs at least one synonym", ErrInvalid, name)
	}
	if priority < 1 || priority > 10 {
		return fmt.Errorf("%w: priority %d out of range 1-10", ErrInvalid, priority)
	}
	return nil
}

func (s *MerchantService) CreateRule(ctx context.Context, in RuleInput) (repository.NormalizationRule, error) {
	name := strings.TrimSpace(in.CanonicalName)
	if err := validateRule(name, in.Synonyms, in.Priority); err != nil {
		return repository.NormalizationRule{}, err
	}
	now := clock(s.Now)
	rule := repository.NormalizationRule{
		ID:             database.RuleID(name),
		CanonicalName:  name,
		Synonyms:       in.Synonyms,
		Category:       in.Category,
		CancelURL:      in.CancelURL,
		Website:        in.Website,
		RulesetVersion: s.version(),
		Priority:       in.Priority,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Rules.Create(ctx, rule); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return repository.NormalizationRule{}, fmt.Errorf("rule %q: %w", name, ErrConflict)
		}
		return repository.NormalizationRule{}, err
	}
	return rule, nil
}

func (s *MerchantService) GetRule(ctx context.Context, id string) (repository.NormalizationRule, error) {
	rule, err := s.Rules.Get(ctx, id)
	if err != nil {
		return repository.NormalizationRule{}, err
	}
	if rule == nil {
		return repository.NormalizationRule{}, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	return *rule, nil
}

// ListRules returns all rules, inactive ones included, in match order.
func (s *MerchantService) ListRules(ctx context.Context) ([]repository.NormalizationRule, error) {
	return s.Rules.List(ctx)
}

// UpdateRule saves an edited rule after validating it.
func (s *MerchantService) UpdateRule(ctx context.Context, rule repository.NormalizationRule) (repository.NormalizationRule, error) {
	if _, err := s.GetRule(ctx, rule.ID); err != nil {
		return repository.NormalizationRule{}, err
	}
	if err := validateRule(rule.CanonicalName, rule.Synonyms, rule.Priority); err != nil {
		return repository.NormalizationRule{}, err
	}
	rule.UpdatedAt = clock(s.Now)
	if err := s.Rules.Update(ctx, rule); err != nil {
		return repository.NormalizationRule{}, err
	}
	return rule, nil
}

// SetRuleActive enables or disables a rule without deleting it.
func (s *MerchantService) SetRuleActive(ctx context.Context, id string, active bool) (repository.NormalizationRule, error) {
	rule, err := s.GetRule(ctx, id)
	if err != nil {
		return repository.NormalizationRule{}, err
	}
	rule.IsActive = active
	return s.UpdateRule(ctx, rule)
}

func (s *MerchantService) DeleteRule(ctx context.Context, id string) error {
	if _, err := s.GetRule(ctx, id); err != nil {
		return err
	}
	return s.Rules.Delete(ctx, id)
}

// AddSynonym appends a synonym. It is a no-op when an existing synonym
// already matches.
func (s *MerchantService) AddSynonym(ctx context.Context, id, synonym string) (repository.NormalizationRule, error) {
	rule, err := s.GetRule(ctx, id)
	if err != nil {
		return repository.NormalizationRule{}, err
	}
	if !merchant.AddSynonym(&rule, synonym) {
		return rule, nil
	}
	return s.UpdateRule(ctx, rule)
}

// RemoveSynonym drops a synonym. The last synonym cannot be removed.
func (s *MerchantService) RemoveSynonym(ctx context.Context, id, synonym string) (repository.NormalizationRule, error) {
	rule, err := s.GetRule(ctx, id)
	if err != nil {
		return repository.NormalizationRule{}, err
	}
	if !merchant.RemoveSynonym(&rule, synonym) {
		return rule, nil
	}
	return s.UpdateRule(ctx, rule)
}

func (s *MerchantService) GetMerchant(ctx context.Context, id string) (repository.Merchant, error) {
	m, err := s.Merchants.Get(ctx, id)
	if err != nil {
		return repository.Merchant{}, err
	}
	if m == nil {
		return repository.Merchant{}, fmt.Errorf("merchant %s: %w", id, ErrNotFound)
	}
	return *m, nil
}

func (s *MerchantService) ListMerchants(ctx context.Context) ([]repository.Merchant, error) {
	return s.Merchants.List(ctx)
}

// RenameMerchant changes a merchant's canonical name. It conflicts when
// another merchant already holds the name.
func (s *MerchantService) RenameMerchant(ctx context.Context, id, name string) (repository.Merchant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return repository.Merchant{}, fmt.Errorf("%w: merchant name required", ErrInvalid)
	}
	m, err := s.GetMerchant(ctx, id)
	if err != nil {
		return repository.Merchant{}, err
	}
	if m.NameNorm == name {
		return m, nil
	}
	other, err := s.Merchants.FindByNormalizedName(ctx, name)
	if err != nil {
		return repository.Merchant{}, err
	}
	if other != nil {
		return repository.Merchant{}, fmt.Errorf("merchant %q: %w", name, ErrConflict)
	}
	m.NameNorm = name
	m.UpdatedAt = clock(s.Now)
	if err := s.Merchants.Update(ctx, m); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return repository.Merchant{}, fmt.Errorf("merchant %q: %w", name, ErrConflict)
		}
		return repository.Merchant{}, err
	}
	return m, nil
}

// CategoryStats counts merchants per category.
func (s *MerchantService) CategoryStats(ctx context.Context) (map[string]int, error) {
	return s.Merchants.CategoryCounts(ctx)
}

func (s *MerchantService) version() string {
	if s.Version == "" {
		return "1.0.0"
	}
	return s.Version
}

func suggestionNames(sugg []merchant.Suggestion) []string {
	names := make([]string, 0, len(sugg))
	for _, sg := range sugg {
		names = append(names, sg.CanonicalName)
	}
	return names
}
