// Package model holds the domain types shared by the analytics engine, the
// notification pipeline and the storage adapters.
package model

import "time"

// Transaction is a single ledger entry. Amount is signed: expenses are
// usually negative upstream, but analysis always works on absolute values
// split by Category.
type Transaction struct {
	ID                  string    `json:"id" firestore:"Id"`
	UserID              string    `json:"userId" firestore:"UserId"`
	Date                time.Time `json:"date" firestore:"Date"`
	Amount              float64   `json:"amount" firestore:"Amount"`
	Category            Category  `json:"categoryId" firestore:"Category"`
	SubcategoryID       string    `json:"subcategoryId" firestore:"SubcategoryId"`
	Description         string    `json:"description" firestore:"Description"`
	AccountID           string    `json:"accountId" firestore:"AccountId"`
	RecurringTemplateID string    `json:"recurringTemplateId,omitempty" firestore:"RecurringTemplateId"`
}

// AbsAmount returns the unsigned transaction amount.
func (t Transaction) AbsAmount() float64 {
	if t.Amount < 0 {
		return -t.Amount
	}
	return t.Amount
}

// BudgetStatus is the lifecycle state of a budget.
type BudgetStatus string

const (
	BudgetStatusActive   BudgetStatus = "active"
	BudgetStatusInactive BudgetStatus = "inactive"
	BudgetStatusArchived BudgetStatus = "archived"
)

// LineItem is a per-subcategory allocation expressed in its own Period.
type LineItem struct {
	SubcategoryID string  `json:"subcategoryId" firestore:"SubcategoryId"`
	Amount        float64 `json:"amount" firestore:"Amount"`
	Period        Period  `json:"period" firestore:"Period"`
}

// Budget groups line items for one user.
type Budget struct {
	ID        string       `json:"id" firestore:"Id"`
	UserID    string       `json:"userId" firestore:"UserId"`
	Name      string       `json:"name" firestore:"Name"`
	Status    BudgetStatus `json:"status" firestore:"Status"`
	LineItems []LineItem   `json:"lineItems" firestore:"LineItems"`
}

// IsActive reports whether the budget participates in analysis.
func (b *Budget) IsActive() bool {
	return b != nil && (b.Status == BudgetStatusActive || b.Status == "")
}

// AccountType classifies accounts for the notification triggers.
type AccountType string

const (
	AccountTypeChecking   AccountType = "checking"
	AccountTypeSavings    AccountType = "savings"
	AccountTypeCredit     AccountType = "credit"
	AccountTypeCash       AccountType = "cash"
	AccountTypeInvestment AccountType = "investment"
)

// IsBank reports whether the account is reconciled against a bank statement.
func (t AccountType) IsBank() bool {
	return t == AccountTypeChecking || t == AccountTypeSavings || t == AccountTypeCredit
}

// Account metadata consumed by the notification triggers only.
type Account struct {
	ID               string      `json:"id" firestore:"Id"`
	UserID           string      `json:"userId" firestore:"UserId"`
	Name             string      `json:"name" firestore:"Name"`
	Type             AccountType `json:"type" firestore:"Type"`
	Balance          float64     `json:"balance" firestore:"Balance"`
	LastReconciledAt *time.Time  `json:"lastReconciledAt,omitempty" firestore:"LastReconciledAt"`
}

// RecurringTemplate is a user-maintained schedule for a known recurring charge.
type RecurringTemplate struct {
	ID            string  `json:"id" firestore:"Id"`
	UserID        string  `json:"userId" firestore:"UserId"`
	Description   string  `json:"description" firestore:"Description"`
	SubcategoryID string  `json:"subcategoryId" firestore:"SubcategoryId"`
	Amount        float64 `json:"amount" firestore:"Amount"`
	FrequencyDays int     `json:"frequencyDays" firestore:"FrequencyDays"`
}

// Snapshot is the immutable input of one analysis run.
type Snapshot struct {
	UserID       string              `json:"userId"`
	Transactions []Transaction       `json:"transactions"`
	Budgets      []Budget            `json:"budgets"`
	Accounts     []Account           `json:"accounts"`
	Templates    []RecurringTemplate `json:"recurringTemplates"`
	TakenAt      time.Time           `json:"takenAt"`
}

// IsEmpty reports whether the snapshot carries no financial data at all.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || (len(s.Transactions) == 0 && len(s.Budgets) == 0 && len(s.Accounts) == 0)
}

// ActiveBudget returns the first active budget, or nil.
func (s *Snapshot) ActiveBudget() *Budget {
	if s == nil {
		return nil
	}
	for i := range s.Budgets {
		if s.Budgets[i].IsActive() {
			return &s.Budgets[i]
		}
	}
	return nil
}
