package model

import (
	"fmt"
	"strings"
)

// Period is the native recurrence of a budget line item.
type Period string

const (
	PeriodWeekly    Period = "weekly"
	PeriodMonthly   Period = "monthly"
	PeriodQuarterly Period = "quarterly"
	PeriodYearly    Period = "yearly"
)

// Periods lists every supported period.
var Periods = []Period{PeriodWeekly, PeriodMonthly, PeriodQuarterly, PeriodYearly}

// ParsePeriod accepts the canonical names plus a few common aliases.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weekly", "week":
		return PeriodWeekly, nil
	case "monthly", "month", "":
		return PeriodMonthly, nil
	case "quarterly", "quarter":
		return PeriodQuarterly, nil
	case "yearly", "year", "annually", "annual":
		return PeriodYearly, nil
	default:
		return "", fmt.Errorf("unknown period %q", s)
	}
}

// Granularity controls how transactions are bucketed.
type Granularity string

const (
	GranularityMonth     Granularity = "month"
	GranularityWeek      Granularity = "week"
	GranularityDayOfWeek Granularity = "day-of-week"
	GranularityDay       Granularity = "day"
)

// Horizon is a forecast horizon.
type Horizon string

const (
	HorizonWeek    Horizon = "week"
	HorizonMonth   Horizon = "month"
	HorizonQuarter Horizon = "quarter"
)

// ParseHorizon accepts week, month or quarter. Empty means month.
func ParseHorizon(s string) (Horizon, error) {
	switch Horizon(strings.ToLower(strings.TrimSpace(s))) {
	case HorizonWeek:
		return HorizonWeek, nil
	case HorizonMonth, "":
		return HorizonMonth, nil
	case HorizonQuarter:
		return HorizonQuarter, nil
	default:
		return "", fmt.Errorf("unknown horizon %q", s)
	}
}
