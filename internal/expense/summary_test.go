package expense

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Summary", func() {
	var (
		db      *mockDB
		service *Service
		summary *Summary
		err     error
	)

	day := func(month time.Month, d int) time.Time {
		return time.Date(2024, month, d, 12, 0, 0, 0, time.UTC)
	}

	add := func(id string, date time.Time, amount int64, category string) {
		db.expenses[id] = &Expense{ID: id, Date: date, Amount: amount, Category: category, CreatedAt: date}
	}

	BeforeEach(func() {
		db = newMockDB()
		service = NewService(db, nil, newMockStorage(), WithLocation(time.UTC))
	})

	JustBeforeEach(func() {
		summary, err = service.Summary(time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC))
	})

	When("both months have spend", func() {
		BeforeEach(func() {
			add("a", day(time.March, 1), 30000, "Food & Drinks")
			add("b", day(time.March, 15), 10000, "Transport")
			add("c", day(time.March, 31), 20000, "Food & Drinks")
			add("d", day(time.February, 10), 40000, "Shopping")
			add("e", day(time.January, 10), 99999, "Shopping")
			add("f", day(time.April, 1), 99999, "Shopping")
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should total the month only", func() {
			Expect(summary.Month).To(Equal("2024-03"))
			Expect(summary.Total).To(Equal(int64(60000)))
			Expect(summary.Count).To(Equal(3))
		})

		It("should break the total down by category, largest first", func() {
			Expect(summary.ByCategory).To(Equal([]CategoryTotal{
				{Category: "Food & Drinks", Total: 50000},
				{Category: "Transport", Total: 10000},
			}))
		})

		It("should report the top category and its share", func() {
			Expect(summary.TopCategory).To(Equal("Food & Drinks"))
			Expect(summary.TopCategoryPercent).To(Equal(83.3))
		})

		It("should compare with the previous month", func() {
			Expect(summary.LastMonthTotal).To(Equal(int64(40000)))
			Expect(summary.ChangePercent).NotTo(BeNil())
			Expect(*summary.ChangePercent).To(Equal(50.0))
			Expect(summary.Insight).To(Equal("You spent 50.0% more than last month on Food & Drinks."))
		})
	})

	When("spending went down", func() {
		BeforeEach(func() {
			add("a", day(time.March, 2), 7500, "Health")
			add("b", day(time.February, 2), 10000, "Health")
		})

		It("should report the reduction", func() {
			Expect(*summary.ChangePercent).To(Equal(-25.0))
			Expect(summary.Insight).To(Equal("Great job! Spending reduced by 25.0% this month."))
		})
	})

	When("the month is empty", func() {
		It("should return zero totals and the default category", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.Total).To(BeZero())
			Expect(summary.ByCategory).NotTo(BeNil())
			Expect(summary.ByCategory).To(BeEmpty())
			Expect(summary.TopCategory).To(Equal(DefaultCategory))
			Expect(summary.TopCategoryPercent).To(BeZero())
		})

		It("should not compute a change without last month's spend", func() {
			Expect(summary.ChangePercent).To(BeNil())
			Expect(summary.Insight).To(Equal("Fresh month, fresh habits."))
		})
	})

	When("no budget is set", func() {
		BeforeEach(func() {
			add("a", day(time.March, 2), 7500, "Health")
		})

		It("should leave the budget fields empty", func() {
			Expect(summary.Budget).To(BeZero())
			Expect(summary.BudgetUsed).To(BeZero())
			Expect(summary.Remaining).To(BeZero())
		})
	})

	When("a budget is set", func() {
		BeforeEach(func() {
			db.budget = 100000
			add("a", day(time.March, 2), 25000, "Health")
			add("b", day(time.February, 2), 90000, "Health")
		})

		It("should report the share used and the remainder", func() {
			Expect(summary.Budget).To(Equal(int64(100000)))
			Expect(summary.BudgetUsed).To(Equal(0.25))
			Expect(summary.Remaining).To(Equal(int64(75000)))
		})
	})

	When("the budget is exceeded", func() {
		BeforeEach(func() {
			db.budget = 10000
			add("a", day(time.March, 2), 15000, "Health")
		})

		It("should cap the share used and go negative on the remainder", func() {
			Expect(summary.BudgetUsed).To(Equal(1.0))
			Expect(summary.Remaining).To(Equal(int64(-5000)))
		})
	})

	When("the database fails", func() {
		var setupErr error

		BeforeEach(func() {
			setupErr = errors.New("database error")
			db.listErr = setupErr
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(setupErr))
		})
	})

	When("the budget cannot be read", func() {
		var setupErr error

		BeforeEach(func() {
			setupErr = errors.New("database error")
			db.budgetErr = setupErr
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(setupErr))
		})
	})
})

var _ = Describe("Trend", func() {
	var (
		db      *mockDB
		service *Service
		months  int
		trend   []MonthTotal
		err     error
	)

	add := func(id string, date time.Time, amount int64) {
		db.expenses[id] = &Expense{ID: id, Date: date, Amount: amount, CreatedAt: date}
	}

	BeforeEach(func() {
		db = newMockDB()
		service = NewService(db, nil, newMockStorage(), WithLocation(time.UTC))
		months = DefaultTrendMonths
	})

	JustBeforeEach(func() {
		trend, err = service.Trend(time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC), months)
	})

	When("expenses span more than the window", func() {
		BeforeEach(func() {
			add("a", time.Date(2024, time.March, 31, 23, 0, 0, 0, time.UTC), 1000)
			add("b", time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), 500)
			add("c", time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC), 2000)
			add("d", time.Date(2023, time.October, 1, 0, 0, 0, 0, time.UTC), 300)
			add("e", time.Date(2023, time.September, 30, 12, 0, 0, 0, time.UTC), 9999)
			add("f", time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), 9999)
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should total each month of the window, oldest first", func() {
			Expect(trend).To(Equal([]MonthTotal{
				{Month: "2023-10", Total: 300, Count: 1},
				{Month: "2023-11"},
				{Month: "2023-12"},
				{Month: "2024-01", Total: 2000, Count: 1},
				{Month: "2024-02"},
				{Month: "2024-03", Total: 1500, Count: 2},
			}))
		})
	})

	When("a shorter window is asked for", func() {
		BeforeEach(func() {
			months = 1
			add("a", time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC), 700)
			add("b", time.Date(2024, time.February, 5, 0, 0, 0, 0, time.UTC), 700)
		})

		It("should cover only that many months", func() {
			Expect(trend).To(Equal([]MonthTotal{{Month: "2024-03", Total: 700, Count: 1}}))
		})
	})

	When("the window is out of range", func() {
		BeforeEach(func() {
			months = 0
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ErrInvalidInput))
		})
	})
})

var _ = Describe("Budget", func() {
	var (
		db      *mockDB
		service *Service
	)

	BeforeEach(func() {
		db = newMockDB()
		service = NewService(db, nil, newMockStorage())
	})

	It("should store and return the budget", func() {
		Expect(service.SetBudget(1500000)).To(Succeed())
		Expect(service.Budget()).To(Equal(int64(1500000)))
	})

	It("returns the error for a negative budget", func() {
		Expect(service.SetBudget(-1)).To(MatchError(ErrInvalidInput))
		Expect(db.budget).To(BeZero())
	})
})
