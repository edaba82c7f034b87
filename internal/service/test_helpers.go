package service

import (
	"context"

	"github.com/castlemilk/pfinance-insights/internal/auth"
)

// testContextWithUser creates a context with authenticated user claims for testing
func testContextWithUser(userID string) context.Context {
	return auth.WithUserClaims(context.Background(), &auth.UserClaims{
		UID:   userID,
		Email: userID + "@test.local",
	})
}

// testContextWithScheduler creates a context for a scheduler service identity
func testContextWithScheduler() context.Context {
	return auth.WithUserClaims(context.Background(), &auth.UserClaims{
		UID:       "insights-scheduler",
		Scheduler: true,
	})
}
