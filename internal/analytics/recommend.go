package analytics

import (
	"fmt"
	"sort"

	"github.com/jask/subwatch/internal/database/repository"
)

// Recommendation types, also used as saving types.
const (
	RecommendYearlyConversion = "yearly_conversion"
	RecommendDuplicateRemoval = "duplicate_removal"
)

// Recommendation is a cost-saving opportunity with monthly amounts.
type Recommendation struct {
	Type             string
	MerchantID       string
	MerchantName     string
	Subscriptions    []repository.Subscription
	CurrentCost      float64
	RecommendedCost  float64
	PotentialSavings float64
	Description      string
}

// Recommendations lists yearly-conversion and duplicate-removal
// opportunities, largest potential saving first.
//
// Yearly conversion compares price×12 against price×12 because no annual
// plan prices are known, so it never produces a recommendation.
func Recommendations(subs []repository.Subscription) []Recommendation {
	var out []Recommendation
	for _, s := range subs {
		if s.Status != repository.StatusActive || s.Cycle != repository.CycleMonthly || s.Price <= 0 {
			continue
		}
		yearlyPrice := s.Price * 12
		potential := s.Price*12 - yearlyPrice
		if potential <= 0 {
			continue
		}
		out = append(out, Recommendation{
			Type:             RecommendYearlyConversion,
			MerchantID:       s.MerchantID,
			MerchantName:     merchantName(s.MerchantName),
			Subscriptions:    []repository.Subscription{s},
			CurrentCost:      s.Price,
			RecommendedCost:  yearlyPrice / 12,
			PotentialSavings: potential,
			Description:      fmt.Sprintf("Switch %s to yearly billing to save %.0f per month", merchantName(s.MerchantName), potential/12),
		})
	}

	for _, g := range DuplicateGroups(subs) {
		var total float64
		for _, s := range g.Subscriptions {
			total += s.Price
		}
		keep := g.Subscriptions[0].Price
		potential := total - keep
		out = append(out, Recommendation{
			Type:             RecommendDuplicateRemoval,
			MerchantID:       g.MerchantID,
			MerchantName:     merchantName(g.MerchantName),
			Subscriptions:    g.Subscriptions,
			CurrentCost:      total,
			RecommendedCost:  keep,
			PotentialSavings: potential,
			Description:      fmt.Sprintf("Remove duplicate %s subscriptions to save %.0f per month", merchantName(g.MerchantName), potential),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].PotentialSavings > out[j].PotentialSavings })
	return out
}

func merchantName(name string) string {
	if name == "" {
		return "Unknown"
	}
	return name
}
