package analytics

import (
	"errors"
	"fmt"

	"github.com/castlemilk/pfinance-insights/internal/model"
)

// ErrUnknownPeriod is returned when a period is outside the supported set.
var ErrUnknownPeriod = errors.New("unknown period")

const weeksPerMonth = 52.0 / 12.0

// toMonthly is the factor that converts one unit of the period to a monthly amount.
func toMonthly(p model.Period) (float64, error) {
	switch p {
	case model.PeriodWeekly:
		return weeksPerMonth, nil
	case model.PeriodMonthly:
		return 1, nil
	case model.PeriodQuarterly:
		return 1.0 / 3.0, nil
	case model.PeriodYearly:
		return 1.0 / 12.0, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPeriod, p)
	}
}

// NormalizeAmount converts amount expressed per from into the equivalent
// amount per to, pivoting through monthly.
func NormalizeAmount(amount float64, from, to model.Period) (float64, error) {
	in, err := toMonthly(from)
	if err != nil {
		return 0, err
	}
	out, err := toMonthly(to)
	if err != nil {
		return 0, err
	}
	if from == to {
		return amount, nil
	}
	return amount * in / out, nil
}

// MonthlyAmount is NormalizeAmount into monthly with an unset period read as
// monthly.
func MonthlyAmount(item model.LineItem) float64 {
	p := item.Period
	if p == "" {
		p = model.PeriodMonthly
	}
	v, err := NormalizeAmount(item.Amount, p, model.PeriodMonthly)
	if err != nil {
		return item.Amount
	}
	return v
}
