package expense

import (
	"errors"
	"time"
)

// DefaultCategory is assigned when no category word matches the receipt
const DefaultCategory = "Miscellaneous"

// DefaultCategories is the built-in category vocabulary
var DefaultCategories = []string{
	"Food & Drinks",
	"Transport",
	"Bills & Utilities",
	"Shopping",
	"Health",
	"Entertainment",
	"Education",
	"Subscriptions",
	DefaultCategory,
}

var (
	// ErrNotFound is returned when an expense or its file does not exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned for requests that fail validation
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict is returned when creating something that already exists
	ErrConflict = errors.New("already exists")
	// ErrNoScanner is returned by scan operations when no OCR backend is configured
	ErrNoScanner = errors.New("no scanner configured")
)

// Expense is a single recorded spend, created from a scanned or typed receipt
type Expense struct {
	ID            string     `json:"id"`
	Merchant      string     `json:"merchant"`
	Description   string     `json:"description,omitempty"`
	Amount        int64      `json:"amount"`               // minor units (paise, cents)
	AmountRaw     string     `json:"amount_raw,omitempty"` // token as printed on the receipt
	Category      string     `json:"category"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	Date          time.Time  `json:"date"`
	DateText      string     `json:"date_text,omitempty"` // extracted local timestamp, empty when the receipt had none
	Confidence    Confidence `json:"confidence"`
	Lines         []string   `json:"lines,omitempty"`
	Filename      string     `json:"filename,omitempty"`
	ContentType   string     `json:"content_type,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Confidence carries the extractor's per-field confidence. A manual edit of a
// field raises its confidence to 1.
type Confidence struct {
	Amount   float64 `json:"amount"`
	Date     float64 `json:"date"`
	Merchant float64 `json:"merchant"`
	Payment  float64 `json:"payment"`
	Category float64 `json:"category"`
}

// Patch is a manual correction of an expense. Nil fields are left unchanged.
type Patch struct {
	Merchant      *string `json:"merchant" validate:"omitempty,max=200"`
	Description   *string `json:"description" validate:"omitempty,max=500"`
	Amount        *int64  `json:"amount" validate:"omitempty,min=0"`
	Category      *string `json:"category" validate:"omitempty,min=1,max=60"`
	PaymentMethod *string `json:"payment_method" validate:"omitempty,max=40"`
	Date          *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// Category is a user-defined category stored next to the built-in vocabulary
type Category struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CategoryTotal is the spend of one category within a month
type CategoryTotal struct {
	Category string `json:"category"`
	Total    int64  `json:"total"`
}

// Summary is the monthly dashboard: totals, the top category and the change
// against the previous month
type Summary struct {
	Month              string          `json:"month"` // YYYY-MM
	Total              int64           `json:"total"`
	Count              int             `json:"count"`
	ByCategory         []CategoryTotal `json:"by_category"`
	TopCategory        string          `json:"top_category"`
	TopCategoryPercent float64         `json:"top_category_percent"`
	LastMonthTotal     int64           `json:"last_month_total"`
	ChangePercent      *float64        `json:"change_percent"` // nil when last month had no spend
	Insight            string          `json:"insight"`

	// Budget is the monthly budget, 0 when none is set. BudgetUsed is the
	// month's total over the budget, clamped to [0, 1]. Remaining goes
	// negative once the budget is exceeded.
	Budget     int64   `json:"budget"`
	BudgetUsed float64 `json:"budget_used"`
	Remaining  int64   `json:"remaining"`
}

// MonthTotal is the spend within one calendar month
type MonthTotal struct {
	Month string `json:"month"` // YYYY-MM
	Total int64  `json:"total"`
	Count int    `json:"count"`
}
