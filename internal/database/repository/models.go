package repository

import "time"

// Subscription cycles.
const (
	CycleMonthly = "monthly"
	CycleYearly  = "yearly"
	CycleTrial   = "trial"
)

// Subscription statuses.
const (
	StatusActive   = "active"
	StatusPaused   = "paused"
	StatusCanceled = "canceled"
)

// Transaction statuses.
const (
	TxPending   = "pending"
	TxCompleted = "completed"
	TxFailed    = "failed"
	TxRefunded  = "refunded"
)

// Saving frequencies.
const (
	FrequencyOneTime = "one_time"
	FrequencyMonthly = "monthly"
	FrequencyYearly  = "yearly"
)

// Alert statuses.
const (
	AlertUnread    = "unread"
	AlertRead      = "read"
	AlertDismissed = "dismissed"
)

// NormalizationRule maps a family of raw merchant strings to one canonical name.
type NormalizationRule struct {
	ID             string
	CanonicalName  string
	Synonyms       []string
	Category       string
	CancelURL      string
	Website        string
	RulesetVersion string
	Priority       int
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Merchant represents a canonical merchant row.
type Merchant struct {
	ID             string
	NameNorm       string
	NameOriginal   string
	Category       string
	CancelURL      string
	Website        string
	Status         string
	RulesetVersion string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Subscription represents a subscription row. MerchantName and Transactions
// are filled by ListByUser.
type Subscription struct {
	ID           string
	UserID       string
	MerchantID   string
	MerchantName string
	Plan         string
	Cycle        string
	Price        float64
	Currency     string
	Status       string
	StartedAt    time.Time
	EndedAt      *time.Time
	NextBillAt   *time.Time
	AutoRenew    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Transactions []Transaction
}

// Transaction represents a transaction row.
type Transaction struct {
	ID              string
	UserID          string
	MerchantID      string
	SubscriptionID  *string
	Amount          float64
	Currency        string
	Status          string
	TransactionDate time.Time
	Description     string
	SourceHash      *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Saving represents a recognized cost-reduction event.
type Saving struct {
	ID          string
	UserID      string
	Type        string
	Title       string
	Description string
	Amount      float64
	Currency    string
	Frequency   string
	StartDate   time.Time
	EndDate     *time.Time
	SourceKey   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Alert represents an alert row.
type Alert struct {
	ID        string
	UserID    string
	Type      string
	Title     string
	Message   string
	Status    string
	Priority  string
	Meta      map[string]any
	DedupeKey string
	ReadAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
