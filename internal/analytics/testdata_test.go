package analytics

import (
	"fmt"
	"time"

	"github.com/castlemilk/pfinance-insights/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func expense(id string, date time.Time, amount float64, sub, desc string) model.Transaction {
	return model.Transaction{
		ID:            id,
		Date:          date,
		Amount:        -amount,
		Category:      model.CategoryExpense,
		SubcategoryID: sub,
		Description:   desc,
		AccountID:     "acc-1",
	}
}

func income(id string, date time.Time, amount float64) model.Transaction {
	return model.Transaction{
		ID:            id,
		Date:          date,
		Amount:        amount,
		Category:      model.CategoryIncome,
		SubcategoryID: "salary",
		Description:   "Payroll",
		AccountID:     "acc-1",
	}
}

// monthlyExpenses returns one expense per month starting January 2025.
func monthlyExpenses(sub string, amounts ...float64) []model.Transaction {
	txs := make([]model.Transaction, 0, len(amounts))
	for i, a := range amounts {
		txs = append(txs, expense(fmt.Sprintf("%s-%d", sub, i), day(2025, time.Month(i+1), 5), a, sub, "shop "+sub))
	}
	return txs
}
