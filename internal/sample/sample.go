// Package sample seeds a demo portfolio so every report has something to show.
package sample

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/jask/subwatch/internal/database/repository"
	"github.com/jask/subwatch/internal/rowsource"
	"github.com/jask/subwatch/internal/service"
)

// Services bundles the services Seed writes through.
type Services struct {
	Merchants     *service.MerchantService
	Subscriptions *service.SubscriptionService
	Ingest        *service.IngestService
}

// Summary reports what Seed created.
type Summary struct {
	Subscriptions int
	Processed     int
	Skipped       int
}

type plan struct {
	raw      string
	plan     string
	cycle    string
	price    float64
	trialEnd int // days from now, trials only
	billDay  int
	charges  []float64
}

var plans = []plan{
	// last charge is well above the recorded price
	{raw: "NETFLIX.COM", plan: "Standard", cycle: repository.CycleMonthly, price: 13500, billDay: 5,
		charges: []float64{13500, 13500, 17000}},
	{raw: "SPOTIFY", plan: "Individual", cycle: repository.CycleMonthly, price: 10900, billDay: 12,
		charges: []float64{10900, 10900, 10900}},
	{raw: "ADOBE SYSTEMS", plan: "Creative Cloud", cycle: repository.CycleYearly, price: 290000, billDay: 20,
		charges: []float64{290000}},
	{raw: "DISNEY PLUS", plan: "Trial", cycle: repository.CycleTrial, trialEnd: 3},
}

var noise = []string{"STARBUCKS", "GS25", "KAKAO T", "NETFLX KR"}

// Seed creates the sample subscriptions for userID and ingests a three month
// statement of their charges plus some unrelated spending. seed fixes the
// random noise so runs are repeatable.
func Seed(ctx context.Context, svc Services, userID string, now time.Time, seed int64) (Summary, error) {
	rng := rand.New(rand.NewSource(seed))
	var sum Summary

	for _, p := range plans {
		m, err := svc.Merchants.Resolve(ctx, p.raw)
		if err != nil {
			return sum, fmt.Errorf("resolve %s: %w", p.raw, err)
		}
		in := service.NewSubscription{
			UserID:     userID,
			MerchantID: m.ID,
			Plan:       p.plan,
			Cycle:      p.cycle,
			Price:      p.price,
			StartedAt:  now.AddDate(0, -len(p.charges), 0),
		}
		if p.cycle == repository.CycleTrial {
			end := now.AddDate(0, 0, p.trialEnd)
			in.NextBillAt = &end
		}
		if _, err := svc.Subscriptions.Create(ctx, in); err != nil {
			return sum, fmt.Errorf("subscribe %s: %w", m.NameNorm, err)
		}
		sum.Subscriptions++
	}

	res, err := svc.Ingest.IngestRows(ctx, userID, statement(rng, now))
	if err != nil {
		return sum, err
	}
	sum.Processed = res.Processed
	sum.Skipped = res.Skipped
	return sum, nil
}

// statement renders the plan charges and noise as upload rows, oldest first.
func statement(rng *rand.Rand, now time.Time) []rowsource.Row {
	var rows []rowsource.Row
	for _, p := range plans {
		for i, amount := range p.charges {
			back := len(p.charges) - 1 - i
			if p.cycle == repository.CycleYearly {
				back = 1
			}
			month := now.AddDate(0, -back, 0)
			day := time.Date(month.Year(), month.Month(), p.billDay, 0, 0, 0, 0, time.UTC)
			rows = append(rows, row(p.raw, amount, day))
		}
	}
	for i := 0; i < 8; i++ {
		day := now.AddDate(0, 0, -rng.Intn(90))
		amount := float64(rng.Intn(30)+1) * 500
		rows = append(rows, row(noise[rng.Intn(len(noise))], amount, day))
	}
	return rows
}

func row(merchant string, amount float64, day time.Time) rowsource.Row {
	return rowsource.Row{
		"merchant": merchant,
		"amount":   strconv.FormatFloat(amount, 'f', 0, 64),
		"date":     day.Format(time.DateOnly),
	}
}
