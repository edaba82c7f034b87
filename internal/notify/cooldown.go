package notify

import (
	"time"

	"github.com/castlemilk/pfinance-insights/internal/model"
)

// Cooldown windows. Two notifications sharing type and dedup key are never
// created closer together than their type's window.
const (
	CooldownAlert       = 24 * time.Hour
	CooldownConsistency = 72 * time.Hour
	CooldownInsight     = 168 * time.Hour
	CooldownSummary     = 720 * time.Hour
)

var cooldowns = map[model.NotificationType]time.Duration{
	model.NotificationBudgetAlert:           CooldownAlert,
	model.NotificationLargeTransaction:      CooldownAlert,
	model.NotificationLowBalance:            CooldownAlert,
	model.NotificationReconciliationOverdue: CooldownConsistency,
	model.NotificationDuplicateTransaction:  CooldownConsistency,
	model.NotificationUncategorized:         CooldownConsistency,
	model.NotificationCategoryIncrease:      CooldownInsight,
	model.NotificationRecurringNoTemplate:   CooldownInsight,
	model.NotificationMonthlySummary:        CooldownSummary,
}

// Cooldown returns the dedup window for a notification type. Unknown types
// get the shortest window.
func Cooldown(t model.NotificationType) time.Duration {
	if d, ok := cooldowns[t]; ok {
		return d
	}
	return CooldownAlert
}
