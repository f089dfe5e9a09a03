package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/jask/subwatch/internal/database/repository"
	"github.com/jask/subwatch/internal/lifecycle"
)

// Severity mirrors the alert priority a finding is surfaced with.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
	SeverityUrgent Severity = "urgent"
)

// Finding kinds, also used as alert types.
const (
	KindDuplicate     = "duplicate_subscription"
	KindGhost         = "ghost_subscription"
	KindTrialEnding   = "trial_ending"
	KindPriceIncrease = "price_increase"
)

// DuplicateGroup is a merchant with two or more active subscriptions.
type DuplicateGroup struct {
	MerchantID    string
	MerchantName  string
	Subscriptions []repository.Subscription
}

func (DuplicateGroup) Severity() Severity { return SeverityHigh }

// GhostFinding is an active subscription untouched for too long.
type GhostFinding struct {
	Subscription repository.Subscription
	IdleDays     int
}

func (GhostFinding) Severity() Severity { return SeverityMedium }

// TrialFinding is an active trial about to end.
type TrialFinding struct {
	Subscription repository.Subscription
	DaysLeft     int
}

func (TrialFinding) Severity() Severity { return SeverityUrgent }

// PriceIncreaseFinding records a charge that deviates from the recorded price.
type PriceIncreaseFinding struct {
	Subscription repository.Subscription
	OldPrice     float64
	NewPrice     float64
	// IncreasePct is (new-old)/old×100 and is negative for a drop.
	IncreasePct float64
}

func (PriceIncreaseFinding) Severity() Severity { return SeverityHigh }

// DuplicateGroups groups active subscriptions by merchant in order of first
// appearance and keeps the groups with at least two members.
func DuplicateGroups(subs []repository.Subscription) []DuplicateGroup {
	var order []string
	groups := map[string]*DuplicateGroup{}
	for _, s := range subs {
		if !lifecycle.IsActive(s) {
			continue
		}
		g, ok := groups[s.MerchantID]
		if !ok {
			g = &DuplicateGroup{MerchantID: s.MerchantID, MerchantName: s.MerchantName}
			groups[s.MerchantID] = g
			order = append(order, s.MerchantID)
		}
		g.Subscriptions = append(g.Subscriptions, s)
	}
	var out []DuplicateGroup
	for _, id := range order {
		if g := groups[id]; len(g.Subscriptions) > 1 {
			out = append(out, *g)
		}
	}
	return out
}

// Duplicates returns every member of every duplicate group.
func Duplicates(subs []repository.Subscription) []repository.Subscription {
	var out []repository.Subscription
	for _, g := range DuplicateGroups(subs) {
		out = append(out, g.Subscriptions...)
	}
	return out
}

// Ghosts returns active subscriptions whose last update is at least
// thresholdDays before now.
func Ghosts(subs []repository.Subscription, now time.Time, thresholdDays int) []GhostFinding {
	cutoff := now.AddDate(0, 0, -thresholdDays)
	var out []GhostFinding
	for _, s := range subs {
		if !lifecycle.IsActive(s) || s.UpdatedAt.After(cutoff) {
			continue
		}
		out = append(out, GhostFinding{
			Subscription: s,
			IdleDays:     int(now.Sub(s.UpdatedAt).Hours() / 24),
		})
	}
	return out
}

// ExpiringTrials returns active trials billing within thresholdDays of now,
// soonest first.
func ExpiringTrials(subs []repository.Subscription, now time.Time, thresholdDays int) []TrialFinding {
	horizon := now.AddDate(0, 0, thresholdDays)
	var out []TrialFinding
	for _, s := range subs {
		if !lifecycle.IsActive(s) || !lifecycle.IsTrial(s) || s.NextBillAt == nil {
			continue
		}
		if s.NextBillAt.After(horizon) {
			continue
		}
		days, _ := lifecycle.DaysUntilNextBill(s, now)
		out = append(out, TrialFinding{Subscription: s, DaysLeft: days})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Subscription.NextBillAt.Before(*out[j].Subscription.NextBillAt)
	})
	return out
}

// PriceIncreases compares each active priced subscription against its linked
// transactions. The first charge deviating by more than pct percent is
// reported; later ones are ignored.
func PriceIncreases(subs []repository.Subscription, pct float64) []PriceIncreaseFinding {
	var out []PriceIncreaseFinding
	for _, s := range subs {
		if !lifecycle.IsActive(s) || s.Price <= 0 {
			continue
		}
		for _, t := range s.Transactions {
			if t.Amount == 0 || math.Abs(t.Amount-s.Price)/s.Price <= pct/100 {
				continue
			}
			out = append(out, PriceIncreaseFinding{
				Subscription: s,
				OldPrice:     s.Price,
				NewPrice:     t.Amount,
				IncreasePct:  (t.Amount - s.Price) / s.Price * 100,
			})
			break
		}
	}
	return out
}
