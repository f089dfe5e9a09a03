package analytics

import (
	"sort"

	"github.com/jask/subwatch/internal/database/repository"
)

// TransactionStats summarizes completed transactions.
type TransactionStats struct {
	Count           int
	TotalAmount     float64
	MerchantCount   int
	MonthlySpending []TrendPoint
	AverageAmount   float64
}

func ComputeTransactionStats(txs []repository.Transaction) TransactionStats {
	var st TransactionStats
	merchants := map[string]struct{}{}
	monthly := map[string]float64{}
	for _, t := range txs {
		if t.Status != repository.TxCompleted {
			continue
		}
		st.Count++
		st.TotalAmount += t.Amount
		merchants[t.MerchantID] = struct{}{}
		monthly[t.TransactionDate.UTC().Format("2006-01")] += t.Amount
	}
	st.MerchantCount = len(merchants)
	for month, amount := range monthly {
		st.MonthlySpending = append(st.MonthlySpending, TrendPoint{Month: month, Amount: amount})
	}
	sort.Slice(st.MonthlySpending, func(i, j int) bool { return st.MonthlySpending[i].Month < st.MonthlySpending[j].Month })
	if st.Count > 0 {
		st.AverageAmount = st.TotalAmount / float64(st.Count)
	}
	return st
}
