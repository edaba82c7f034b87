// Package demo generates a deterministic six month snapshot of realistic
// personal finance data for local development and demos.
package demo

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/castlemilk/pfinance-insights/internal/model"
)

// Months of history Generate produces.
const Months = 6

type expenseTemplate struct {
	description string
	minAmount   float64
	maxAmount   float64
	subcategory string
	account     string
}

var monthlyBills = []expenseTemplate{
	{"Rent payment", 2200, 2200, "housing", "everyday"},
	{"Electricity bill", 120, 220, "utilities", "everyday"},
	{"Internet bill", 89, 89, "utilities", "everyday"},
	{"Phone bill", 65, 85, "utilities", "everyday"},
	{"Car insurance", 145, 145, "transport", "everyday"},
	{"Netflix", 22.99, 22.99, "entertainment", "credit"},
	{"Spotify", 12.99, 12.99, "entertainment", "credit"},
	{"Gym membership", 65, 65, "health", "credit"},
}

var weeklyExpenses = []expenseTemplate{
	{"Grocery shopping", 80, 200, "groceries", "everyday"},
	{"Petrol", 55, 110, "transport", "credit"},
}

var randomExpenses = []expenseTemplate{
	{"Coffee", 4.5, 8, "dining", "credit"},
	{"Lunch out", 15, 35, "dining", "credit"},
	{"Dinner at restaurant", 45, 120, "dining", "credit"},
	{"Takeaway", 20, 55, "dining", "credit"},
	{"Uber ride", 12, 45, "transport", "credit"},
	{"Parking", 5, 20, "transport", "everyday"},
	{"Movie tickets", 18, 40, "entertainment", "credit"},
	{"Books", 15, 45, "entertainment", "credit"},
	{"Clothing", 40, 200, "shopping", "credit"},
	{"Electronics", 50, 350, "shopping", "credit"},
	{"Home supplies", 15, 80, "shopping", "everyday"},
	{"Pharmacy", 10, 60, "health", "everyday"},
	{"Doctor visit", 50, 150, "health", "everyday"},
}

// Generate builds Months of history ending at now for userID. The same seed
// always yields the same snapshot.
func Generate(userID string, now time.Time, seed int64) *model.Snapshot {
	g := &generator{
		rng:  rand.New(rand.NewSource(seed)),
		snap: &model.Snapshot{UserID: userID, TakenAt: now},
	}
	start := now.AddDate(0, -Months, 0)

	g.bills(start, now)
	g.weekly(start, now)
	g.daily(start, now)
	g.incomes(start, now)
	g.reference(now)
	return g.snap
}

type generator struct {
	rng  *rand.Rand
	snap *model.Snapshot
	seq  int
}

func (g *generator) add(desc, sub, account string, amount float64, cat model.Category, date time.Time) {
	g.seq++
	if cat == model.CategoryExpense {
		amount = -amount
	}
	g.snap.Transactions = append(g.snap.Transactions, model.Transaction{
		ID:            fmt.Sprintf("demo-tx-%05d", g.seq),
		UserID:        g.snap.UserID,
		Date:          date,
		Amount:        math.Round(amount*100) / 100,
		Category:      cat,
		SubcategoryID: sub,
		Description:   desc,
		AccountID:     g.snap.UserID + "-" + account,
	})
}

func (g *generator) amount(lo, hi float64) float64 {
	if lo == hi {
		return lo
	}
	return lo + g.rng.Float64()*(hi-lo)
}

func (g *generator) bills(start, now time.Time) {
	for _, t := range monthlyBills {
		for m := 0; m < Months; m++ {
			date := start.AddDate(0, m, g.rng.Intn(3))
			if date.After(now) {
				break
			}
			g.add(t.description, t.subcategory, t.account, g.amount(t.minAmount, t.maxAmount), model.CategoryExpense, date)
		}
	}
}

func (g *generator) weekly(start, now time.Time) {
	for _, t := range weeklyExpenses {
		for d := start; d.Before(now); d = d.AddDate(0, 0, 6+g.rng.Intn(3)) {
			g.add(t.description, t.subcategory, t.account, g.amount(t.minAmount, t.maxAmount), model.CategoryExpense, d)
		}
	}
}

// daily adds two to five small purchases a day, more on weekends and in the
// second half of December, with an occasional outsized one.
func (g *generator) daily(start, now time.Time) {
	for d := start; d.Before(now); d = d.AddDate(0, 0, 1) {
		n := 2 + g.rng.Intn(4)
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			n += 1 + g.rng.Intn(2)
		}
		if d.Month() == time.December && d.Day() >= 15 {
			n += 2 + g.rng.Intn(3)
		}
		for i := 0; i < n; i++ {
			t := randomExpenses[g.rng.Intn(len(randomExpenses))]
			amount := g.amount(t.minAmount, t.maxAmount)
			if g.rng.Intn(50) == 0 {
				amount *= 3 + g.rng.Float64()*2
			}
			at := d.Add(time.Duration(8+g.rng.Intn(12)) * time.Hour)
			if at.After(now) {
				continue
			}
			g.add(t.description, t.subcategory, t.account, amount, model.CategoryExpense, at)
		}
	}
}

func (g *generator) incomes(start, now time.Time) {
	for m := 0; m <= Months; m++ {
		payday := time.Date(start.Year(), start.Month()+time.Month(m), 15, 9, 0, 0, 0, now.Location())
		if payday.Before(start) || payday.After(now) {
			continue
		}
		g.add("Employer payroll", "salary", "everyday", 8500+g.rng.Float64()*200-100, model.CategoryIncome, payday)
		if m%3 == 1 {
			g.add("Freelance invoice", "freelance", "everyday", g.amount(1200, 2600), model.CategoryIncome, payday.AddDate(0, 0, 5))
		}
	}
}

// reference adds the budget, accounts and templates the triggers read.
func (g *generator) reference(now time.Time) {
	uid := g.snap.UserID
	g.snap.Budgets = []model.Budget{{
		ID:     uid + "-household",
		UserID: uid,
		Name:   "Household",
		Status: model.BudgetStatusActive,
		LineItems: []model.LineItem{
			{SubcategoryID: "housing", Amount: 2200, Period: model.PeriodMonthly},
			{SubcategoryID: "utilities", Amount: 380, Period: model.PeriodMonthly},
			{SubcategoryID: "groceries", Amount: 150, Period: model.PeriodWeekly},
			{SubcategoryID: "dining", Amount: 900, Period: model.PeriodMonthly},
			{SubcategoryID: "transport", Amount: 700, Period: model.PeriodMonthly},
			{SubcategoryID: "entertainment", Amount: 250, Period: model.PeriodMonthly},
			{SubcategoryID: "shopping", Amount: 3000, Period: model.PeriodQuarterly},
			{SubcategoryID: "health", Amount: 3600, Period: model.PeriodYearly},
		},
	}}

	reconciled := now.AddDate(0, 0, -45)
	g.snap.Accounts = []model.Account{
		{ID: uid + "-everyday", UserID: uid, Name: "Everyday", Type: model.AccountTypeChecking, Balance: 1840.22, LastReconciledAt: &reconciled},
		{ID: uid + "-savings", UserID: uid, Name: "Savings", Type: model.AccountTypeSavings, Balance: 12500},
		{ID: uid + "-credit", UserID: uid, Name: "Credit card", Type: model.AccountTypeCredit, Balance: -1320.55, LastReconciledAt: &now},
	}

	g.snap.Templates = []model.RecurringTemplate{
		{ID: uid + "-rent", UserID: uid, Description: "Rent payment", SubcategoryID: "housing", Amount: 2200, FrequencyDays: 30},
		{ID: uid + "-netflix", UserID: uid, Description: "Netflix", SubcategoryID: "entertainment", Amount: 22.99, FrequencyDays: 30},
	}
}
