package service

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jask/subwatch/internal/batchlog"
	"github.com/jask/subwatch/internal/database/repository"
	"github.com/jask/subwatch/internal/rowsource"
)

// maxSuggestions caps the canonical names proposed per unmatched merchant.
const maxSuggestions = 3

var (
	merchantColumns = []string{"merchant", "Merchant", "MERCHANT", "description", "Description"}
	amountColumns   = []string{"amount", "Amount", "AMOUNT"}
	dateColumns     = []string{"date", "Date", "DATE"}
)

var dateLayouts = []string{
	time.DateOnly,
	"2006/01/02",
	"2006.01.02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// IngestService turns uploaded rows into merchant-linked transactions.
type IngestService struct {
	Merchants     *MerchantService
	Subscriptions *repository.SubscriptionRepo
	Transactions  *repository.TransactionRepo
	// Batches is optional; without it replayed uploads are deduplicated per
	// row only.
	Batches  *batchlog.Store
	Log      *log.Logger
	Location *time.Location
	Currency string
	Now      func() time.Time
}

// IngestResult counts what happened to an upload. Bad and duplicate rows are
// skipped; they never abort the batch.
type IngestResult struct {
	Processed int
	Skipped   int
	Errors    []error
	// Suggestions maps unmatched raw merchant names to near canonical names.
	Suggestions map[string][]string
	// Replayed is set when the whole upload was ingested before.
	Replayed bool
}

// IngestFile parses a CSV or XLSX upload and ingests its rows. An upload
// seen before for the same user returns the originally recorded result.
func (s *IngestService) IngestFile(ctx context.Context, userID, name string, data []byte) (IngestResult, error) {
	digest := batchlog.Digest(userID, data)
	if s.Batches != nil {
		e, err := s.Batches.Get(digest)
		switch {
		case err == nil:
			logger(s.Log).Printf("ingest: %s already ingested at %s", name, e.RecordedAt.Format(time.RFC3339))
			return resultFromEntry(*e), nil
		case !errors.Is(err, batchlog.ErrNotFound):
			return IngestResult{}, fmt.Errorf("batch log: %w", err)
		}
	}

	recs, err := rowsource.Read(name, data)
	if err != nil {
		return IngestResult{}, err
	}
	res, err := s.IngestRecords(ctx, userID, recs)
	if err != nil {
		return res, err
	}

	if s.Batches != nil {
		if _, _, err := s.Batches.Record(entryFromResult(digest, userID, name, res)); err != nil {
			logger(s.Log).Printf("warn: record batch %s: %v", name, err)
		}
	}
	return res, nil
}

// IngestRows ingests already parsed rows for one user. Rows are numbered
// as if they followed a header line.
func (s *IngestService) IngestRows(ctx context.Context, userID string, rows []rowsource.Row) (IngestResult, error) {
	recs := make([]rowsource.Record, len(rows))
	for i, row := range rows {
		recs[i] = rowsource.Record{Line: i + 2, Row: row}
	}
	return s.IngestRecords(ctx, userID, recs)
}

// IngestRecords ingests rows carrying their source line numbers, which
// prefix every skip error.
func (s *IngestService) IngestRecords(ctx context.Context, userID string, recs []rowsource.Record) (IngestResult, error) {
	if strings.TrimSpace(userID) == "" {
		return IngestResult{}, fmt.Errorf("%w: user id required", ErrInvalid)
	}
	res := IngestResult{Suggestions: map[string][]string{}}
	resolver := s.Merchants.Resolver()
	lg := logger(s.Log)

	for _, rec := range recs {
		row, line := rec.Row, rec.Line
		if err := ctx.Err(); err != nil {
			return res, err
		}
		raw := row.Get(merchantColumns...)
		if raw == "" {
			res.skip(lg, fmt.Errorf("line %d: merchant missing", line))
			continue
		}
		amount, err := parseAmount(row.Get(amountColumns...))
		if err != nil {
			res.skip(lg, fmt.Errorf("line %d amount: %w", line, err))
			continue
		}
		date, err := parseDate(row.Get(dateColumns...), s.location())
		if err != nil {
			res.skip(lg, fmt.Errorf("line %d date: %w", line, err))
			continue
		}

		m, id, err := resolver.ResolveWithIdentity(ctx, raw)
		if err != nil {
			res.skip(lg, fmt.Errorf("line %d merchant: %w", line, err))
			continue
		}
		if !id.Matched {
			if _, seen := res.Suggestions[raw]; !seen {
				sugg, err := s.Merchants.Suggest(ctx, raw, maxSuggestions)
				if err != nil {
					lg.Printf("warn: suggest %q: %v", raw, err)
				}
				res.Suggestions[raw] = suggestionNames(sugg)
			}
		}

		var subID *string
		sub, err := s.Subscriptions.FindActive(ctx, userID, m.ID)
		if err != nil {
			res.skip(lg, fmt.Errorf("line %d subscription: %w", line, err))
			continue
		}
		if sub != nil {
			subID = &sub.ID
		}

		now := clock(s.Now)
		t := repository.Transaction{
			ID:              uuid.NewString(),
			UserID:          userID,
			MerchantID:      m.ID,
			SubscriptionID:  subID,
			Amount:          amount.InexactFloat64(),
			Currency:        s.currency(),
			Status:          repository.TxCompleted,
			TransactionDate: date,
			Description:     raw,
			SourceHash:      hashSource(userID, date.Format(time.DateOnly), amount.String(), raw),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.Transactions.Insert(ctx, t); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				res.Skipped++
				continue
			}
			res.skip(lg, fmt.Errorf("line %d insert: %w", line, err))
			continue
		}
		res.Processed++
	}
	for raw, names := range res.Suggestions {
		if len(names) == 0 {
			delete(res.Suggestions, raw)
		}
	}
	return res, nil
}

func (r *IngestResult) skip(lg *log.Logger, err error) {
	r.Skipped++
	r.Errors = append(r.Errors, err)
	lg.Printf("ingest: skip %v", err)
}

// parseAmount keeps digits, dots and minus signs and returns the absolute
// value. Zero is rejected.
func parseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		return decimal.Zero, errors.New("empty amount")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsZero() {
		return decimal.Zero, errors.New("zero amount")
	}
	return d.Abs(), nil
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func hashSource(parts ...string) *string {
	joined := strings.Join(parts, "|")
	sum := sha256.Sum256([]byte(joined))
	h := fmt.Sprintf("%x", sum[:])
	return &h
}

func (s *IngestService) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

func (s *IngestService) currency() string {
	if s.Currency == "" {
		return "KRW"
	}
	return s.Currency
}

func entryFromResult(digest, userID, source string, res IngestResult) batchlog.Entry {
	e := batchlog.Entry{
		Digest:      digest,
		UserID:      userID,
		Source:      source,
		Processed:   res.Processed,
		Skipped:     res.Skipped,
		Suggestions: res.Suggestions,
	}
	for _, err := range res.Errors {
		e.Errors = append(e.Errors, err.Error())
	}
	return e
}

func resultFromEntry(e batchlog.Entry) IngestResult {
	res := IngestResult{
		Processed:   e.Processed,
		Skipped:     e.Skipped,
		Suggestions: e.Suggestions,
		Replayed:    true,
	}
	for _, msg := range e.Errors {
		res.Errors = append(res.Errors, errors.New(msg))
	}
	return res
}
