package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"

	"github.com/castlemilk/pfinance-insights/internal/model"
)

const bqDateFormat = "2006-01-02"

// TransactionRow is one row of <dataset>.transactions.
type TransactionRow struct {
	TransactionID       string              `bigquery:"transaction_id"`
	UserID              string              `bigquery:"user_id"`
	TransactionDate     civil.Date          `bigquery:"transaction_date"`
	Amount              float64             `bigquery:"amount"`
	CategoryID          string              `bigquery:"category_id"`
	SubcategoryID       bigquery.NullString `bigquery:"subcategory_id"`
	Description         string              `bigquery:"description"`
	AccountID           bigquery.NullString `bigquery:"account_id"`
	RecurringTemplateID bigquery.NullString `bigquery:"recurring_template_id"`
}

// LineItemRow is the repeated line_items record of a budget row.
type LineItemRow struct {
	SubcategoryID string  `bigquery:"subcategory_id"`
	Amount        float64 `bigquery:"amount"`
	Period        string  `bigquery:"period"`
}

// BudgetRow is one row of <dataset>.budgets.
type BudgetRow struct {
	BudgetID  string        `bigquery:"budget_id"`
	UserID    string        `bigquery:"user_id"`
	Name      string        `bigquery:"name"`
	Status    string        `bigquery:"status"`
	LineItems []LineItemRow `bigquery:"line_items"`
}

// AccountRow is one row of <dataset>.accounts.
type AccountRow struct {
	AccountID        string                 `bigquery:"account_id"`
	UserID           string                 `bigquery:"user_id"`
	Name             string                 `bigquery:"name"`
	AccountType      string                 `bigquery:"account_type"`
	Balance          float64                `bigquery:"balance"`
	LastReconciledTS bigquery.NullTimestamp `bigquery:"last_reconciled_ts"`
}

// TemplateRow is one row of <dataset>.recurring_templates.
type TemplateRow struct {
	TemplateID    string  `bigquery:"template_id"`
	UserID        string  `bigquery:"user_id"`
	Description   string  `bigquery:"description"`
	SubcategoryID string  `bigquery:"subcategory_id"`
	Amount        float64 `bigquery:"amount"`
	FrequencyDays int64   `bigquery:"frequency_days"`
}

// ToModel converts the row, rejecting unknown category codes.
func (r TransactionRow) ToModel() (model.Transaction, error) {
	cat, err := model.ParseCategory(r.CategoryID)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", r.TransactionID, err)
	}
	return model.Transaction{
		ID:                  r.TransactionID,
		UserID:              r.UserID,
		Date:                r.TransactionDate.In(time.UTC),
		Amount:              r.Amount,
		Category:            cat,
		SubcategoryID:       r.SubcategoryID.StringVal,
		Description:         r.Description,
		AccountID:           r.AccountID.StringVal,
		RecurringTemplateID: r.RecurringTemplateID.StringVal,
	}, nil
}

// ToModel converts the row. Unknown periods are rejected.
func (r BudgetRow) ToModel() (model.Budget, error) {
	b := model.Budget{
		ID:     r.BudgetID,
		UserID: r.UserID,
		Name:   r.Name,
		Status: model.BudgetStatus(r.Status),
	}
	for _, li := range r.LineItems {
		p, err := model.ParsePeriod(li.Period)
		if err != nil {
			return model.Budget{}, fmt.Errorf("budget %s: %w", r.BudgetID, err)
		}
		b.LineItems = append(b.LineItems, model.LineItem{SubcategoryID: li.SubcategoryID, Amount: li.Amount, Period: p})
	}
	return b, nil
}

func (r AccountRow) ToModel() model.Account {
	a := model.Account{
		ID:      r.AccountID,
		UserID:  r.UserID,
		Name:    r.Name,
		Type:    model.AccountType(r.AccountType),
		Balance: r.Balance,
	}
	if r.LastReconciledTS.Valid {
		t := r.LastReconciledTS.Timestamp
		a.LastReconciledAt = &t
	}
	return a
}

func (r TemplateRow) ToModel() model.RecurringTemplate {
	return model.RecurringTemplate{
		ID:            r.TemplateID,
		UserID:        r.UserID,
		Description:   r.Description,
		SubcategoryID: r.SubcategoryID,
		Amount:        r.Amount,
		FrequencyDays: int(r.FrequencyDays),
	}
}

// BigQuerySource reads snapshots from an analytics warehouse.
type BigQuerySource struct {
	client  *bigquery.Client
	dataset string
	window  time.Duration
}

// NewBigQuerySource queries tables in dataset of the client's project.
func NewBigQuerySource(client *bigquery.Client, dataset string, window time.Duration) *BigQuerySource {
	if window <= 0 {
		window = DefaultWindow
	}
	return &BigQuerySource{client: client, dataset: dataset, window: window}
}

func (s *BigQuerySource) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", s.client.Project(), s.dataset, name)
}

func (s *BigQuerySource) Load(ctx context.Context, userID string, now time.Time) (*model.Snapshot, error) {
	snap := &model.Snapshot{UserID: userID, TakenAt: now}
	start := now.Add(-s.window)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q := s.client.Query(`
			SELECT transaction_id, user_id, transaction_date, amount, category_id,
			       subcategory_id, description, account_id, recurring_template_id
			FROM ` + s.table("transactions") + `
			WHERE user_id = @user_id
			  AND transaction_date >= @start_date
			  AND transaction_date <= @end_date
			ORDER BY transaction_date, transaction_id`)
		q.Parameters = []bigquery.QueryParameter{
			{Name: "user_id", Value: userID},
			{Name: "start_date", Value: start.Format(bqDateFormat)},
			{Name: "end_date", Value: now.Format(bqDateFormat)},
		}
		rows, err := readAll[TransactionRow](ctx, q)
		if err != nil {
			return &FetchError{Source: "bigquery", Part: "transactions", Err: err}
		}
		for _, r := range rows {
			t, err := r.ToModel()
			if err != nil {
				return &FetchError{Source: "bigquery", Part: "transactions", Err: err}
			}
			snap.Transactions = append(snap.Transactions, t)
		}
		return nil
	})
	g.Go(func() error {
		q := s.client.Query(`
			SELECT budget_id, user_id, name, status, line_items
			FROM ` + s.table("budgets") + `
			WHERE user_id = @user_id AND status = 'active'`)
		q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: userID}}
		rows, err := readAll[BudgetRow](ctx, q)
		if err != nil {
			return &FetchError{Source: "bigquery", Part: "budgets", Err: err}
		}
		for _, r := range rows {
			b, err := r.ToModel()
			if err != nil {
				return &FetchError{Source: "bigquery", Part: "budgets", Err: err}
			}
			snap.Budgets = append(snap.Budgets, b)
		}
		return nil
	})
	g.Go(func() error {
		q := s.client.Query(`
			SELECT account_id, user_id, name, account_type, balance, last_reconciled_ts
			FROM ` + s.table("accounts") + `
			WHERE user_id = @user_id`)
		q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: userID}}
		rows, err := readAll[AccountRow](ctx, q)
		if err != nil {
			return &FetchError{Source: "bigquery", Part: "accounts", Err: err}
		}
		for _, r := range rows {
			snap.Accounts = append(snap.Accounts, r.ToModel())
		}
		return nil
	})
	g.Go(func() error {
		q := s.client.Query(`
			SELECT template_id, user_id, description, subcategory_id, amount, frequency_days
			FROM ` + s.table("recurring_templates") + `
			WHERE user_id = @user_id`)
		q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: userID}}
		rows, err := readAll[TemplateRow](ctx, q)
		if err != nil {
			return &FetchError{Source: "bigquery", Part: "recurring templates", Err: err}
		}
		for _, r := range rows {
			snap.Templates = append(snap.Templates, r.ToModel())
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

func readAll[T any](ctx context.Context, q *bigquery.Query) ([]T, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var rows []T
	for {
		var r T
		err := it.Next(&r)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}
