package expense

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"
)

const (
	// DefaultTrendMonths is how many months the spending trend covers
	DefaultTrendMonths = 6
	MaxTrendMonths     = 24
)

// Summary totals the expenses dated within month and compares them with the
// month before. Only month's year, month and location are used.
func (s *Service) Summary(month time.Time) (*Summary, error) {
	expenses, err := s.ListExpenses()
	if err != nil {
		return nil, err
	}

	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	end := start.AddDate(0, 1, 0)
	prev := start.AddDate(0, -1, 0)

	summary := &Summary{
		Month:       start.Format("2006-01"),
		ByCategory:  []CategoryTotal{},
		TopCategory: DefaultCategory,
	}

	index := map[string]int{}
	for _, e := range expenses {
		switch {
		case !e.Date.Before(start) && e.Date.Before(end):
			summary.Total += e.Amount
			summary.Count++
			category := e.Category
			if category == "" {
				category = DefaultCategory
			}
			i, ok := index[category]
			if !ok {
				i = len(summary.ByCategory)
				index[category] = i
				summary.ByCategory = append(summary.ByCategory, CategoryTotal{Category: category})
			}
			summary.ByCategory[i].Total += e.Amount
		case !e.Date.Before(prev) && e.Date.Before(start):
			summary.LastMonthTotal += e.Amount
		}
	}

	// stable: on equal totals the most recently spent-in category leads
	slices.SortStableFunc(summary.ByCategory, func(a, b CategoryTotal) int {
		switch {
		case a.Total > b.Total:
			return -1
		case a.Total < b.Total:
			return 1
		}
		return 0
	})

	if len(summary.ByCategory) > 0 {
		summary.TopCategory = summary.ByCategory[0].Category
		if summary.Total > 0 {
			summary.TopCategoryPercent = round1(float64(summary.ByCategory[0].Total) / float64(summary.Total) * 100)
		}
	}

	if summary.LastMonthTotal > 0 {
		change := round1(float64(summary.Total-summary.LastMonthTotal) / float64(summary.LastMonthTotal) * 100)
		summary.ChangePercent = &change
	}
	summary.Insight = insight(summary)

	budget, err := s.db.GetBudget()
	if err != nil {
		return nil, fmt.Errorf("getting budget: %w", err)
	}
	if budget > 0 {
		summary.Budget = budget
		summary.BudgetUsed = math.Max(0, math.Min(1, float64(summary.Total)/float64(budget)))
		summary.Remaining = budget - summary.Total
	}

	return summary, nil
}

// Trend returns the totals of the months calendar months ending with end's
// month, oldest first. Months without spend are included with zero totals.
func (s *Service) Trend(end time.Time, months int) ([]MonthTotal, error) {
	if months < 1 || months > MaxTrendMonths {
		return nil, fmt.Errorf("trend of %d months: %w", months, ErrInvalidInput)
	}

	expenses, err := s.ListExpenses()
	if err != nil {
		return nil, err
	}

	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, end.Location())
	first := last.AddDate(0, 1-months, 0)
	stop := last.AddDate(0, 1, 0)

	trend := make([]MonthTotal, months)
	for i := range trend {
		trend[i].Month = first.AddDate(0, i, 0).Format("2006-01")
	}

	for _, e := range expenses {
		date := e.Date.In(end.Location())
		if date.Before(first) || !date.Before(stop) {
			continue
		}
		i := (date.Year()-first.Year())*12 + int(date.Month()) - int(first.Month())
		trend[i].Total += e.Amount
		trend[i].Count++
	}
	return trend, nil
}

// Budget returns the monthly budget in minor units, 0 when none is set
func (s *Service) Budget() (int64, error) {
	budget, err := s.db.GetBudget()
	if err != nil {
		return 0, fmt.Errorf("getting budget: %w", err)
	}
	return budget, nil
}

// SetBudget replaces the monthly budget. Zero clears it.
func (s *Service) SetBudget(amount int64) error {
	if amount < 0 {
		return fmt.Errorf("negative budget: %w", ErrInvalidInput)
	}
	if err := s.db.SaveBudget(amount); err != nil {
		return fmt.Errorf("saving budget: %w", err)
	}
	slog.Info("Monthly budget updated", "budget", amount)
	return nil
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func insight(s *Summary) string {
	if s.ChangePercent == nil {
		return "Fresh month, fresh habits."
	}
	change := math.Abs(*s.ChangePercent)
	switch {
	case s.Total > s.LastMonthTotal:
		return fmt.Sprintf("You spent %.1f%% more than last month on %s.", change, s.TopCategory)
	case s.Total < s.LastMonthTotal:
		return fmt.Sprintf("Great job! Spending reduced by %.1f%% this month.", change)
	}
	return "Spending stayed exactly the same as last month."
}
