// Package config holds the engine thresholds and the server settings.
package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/BurntSushi/toml"
)

// Engine carries every tunable threshold of the analysis and notification
// engine. It is passed by value into each entry point; nothing reads
// process-wide settings. Zero fields fall back to defaults via WithDefaults.
//
// The currency thresholds are absolute amounts in the user's currency. A zero
// threshold means unset, so a trigger is switched off by listing its
// notification type in DisabledNotifications rather than by zeroing it.
type Engine struct {
	BudgetAlertThresholds      []float64 `toml:"budget_alert_thresholds"`
	LargeTransactionAmount     float64   `toml:"large_transaction_amount"`
	LowBalanceThreshold        float64   `toml:"low_balance_threshold"`
	ReconciliationOverdueDays  int       `toml:"reconciliation_overdue_days"`
	NotificationRetentionDays  int       `toml:"notification_retention_days"`
	AnomalyZThreshold          float64   `toml:"anomaly_z_threshold"`
	TrendSlopeThreshold        float64   `toml:"trend_slope_threshold"`
	HighRiskVariance           float64   `toml:"high_risk_variance"`
	OnTrackVarianceBand        float64   `toml:"on_track_variance_band"`
	DescriptionSignatureLength int       `toml:"description_signature_length"`
	CategoryIncreasePercent    float64   `toml:"category_increase_percent"`
	DuplicateWindowDays        int       `toml:"duplicate_window_days"`
	LookbackDays               int       `toml:"lookback_days"`
	DisabledNotifications      []string  `toml:"disabled_notifications"`
}

// DefaultEngine returns the documented defaults.
func DefaultEngine() Engine {
	return Engine{
		BudgetAlertThresholds:      []float64{80, 100, 120},
		LargeTransactionAmount:     1000,
		LowBalanceThreshold:        100,
		ReconciliationOverdueDays:  30,
		NotificationRetentionDays:  30,
		AnomalyZThreshold:          2,
		TrendSlopeThreshold:        5,
		HighRiskVariance:           200,
		OnTrackVarianceBand:        100,
		DescriptionSignatureLength: 20,
		CategoryIncreasePercent:    30,
		DuplicateWindowDays:        2,
		LookbackDays:               7,
	}
}

// WithDefaults returns a copy with unset fields filled from DefaultEngine.
// Thresholds are copied and sorted ascending so callers cannot mutate the
// slice they passed in.
func (e Engine) WithDefaults() Engine {
	d := DefaultEngine()
	out := e
	if len(e.BudgetAlertThresholds) == 0 {
		out.BudgetAlertThresholds = d.BudgetAlertThresholds
	} else {
		out.BudgetAlertThresholds = append([]float64(nil), e.BudgetAlertThresholds...)
		sort.Float64s(out.BudgetAlertThresholds)
	}
	if out.LargeTransactionAmount <= 0 {
		out.LargeTransactionAmount = d.LargeTransactionAmount
	}
	if out.LowBalanceThreshold <= 0 {
		out.LowBalanceThreshold = d.LowBalanceThreshold
	}
	if out.ReconciliationOverdueDays <= 0 {
		out.ReconciliationOverdueDays = d.ReconciliationOverdueDays
	}
	if out.NotificationRetentionDays <= 0 {
		out.NotificationRetentionDays = d.NotificationRetentionDays
	}
	if out.AnomalyZThreshold <= 0 {
		out.AnomalyZThreshold = d.AnomalyZThreshold
	}
	if out.TrendSlopeThreshold <= 0 {
		out.TrendSlopeThreshold = d.TrendSlopeThreshold
	}
	if out.HighRiskVariance <= 0 {
		out.HighRiskVariance = d.HighRiskVariance
	}
	if out.OnTrackVarianceBand <= 0 {
		out.OnTrackVarianceBand = d.OnTrackVarianceBand
	}
	if out.DescriptionSignatureLength <= 0 {
		out.DescriptionSignatureLength = d.DescriptionSignatureLength
	}
	if out.CategoryIncreasePercent <= 0 {
		out.CategoryIncreasePercent = d.CategoryIncreasePercent
	}
	if out.DuplicateWindowDays <= 0 {
		out.DuplicateWindowDays = d.DuplicateWindowDays
	}
	if out.LookbackDays <= 0 {
		out.LookbackDays = d.LookbackDays
	}
	out.DisabledNotifications = append([]string(nil), e.DisabledNotifications...)
	return out
}

// Disabled reports whether notifications of the given type are switched off.
func (e Engine) Disabled(notificationType string) bool {
	for _, t := range e.DisabledNotifications {
		if t == notificationType {
			return true
		}
	}
	return false
}

// Retention returns the notification retention window.
func (e Engine) Retention() time.Duration {
	return time.Duration(e.WithDefaults().NotificationRetentionDays) * 24 * time.Hour
}

// Validate rejects values that would make the engine misbehave.
func (e Engine) Validate() error {
	for _, t := range e.BudgetAlertThresholds {
		if t <= 0 {
			return fmt.Errorf("budget alert threshold must be positive, got %v", t)
		}
	}
	if e.AnomalyZThreshold < 0 {
		return fmt.Errorf("anomaly z threshold must not be negative, got %v", e.AnomalyZThreshold)
	}
	if e.DescriptionSignatureLength < 0 {
		return fmt.Errorf("description signature length must not be negative, got %d", e.DescriptionSignatureLength)
	}
	return nil
}

// LoadEngineFile reads engine thresholds from a TOML file. A missing file
// yields the defaults.
func LoadEngineFile(path string) (Engine, error) {
	cfg := DefaultEngine()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading engine config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing engine config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid engine config: %w", err)
	}
	return cfg.WithDefaults(), nil
}
