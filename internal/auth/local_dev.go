package auth

import (
	"context"

	"connectrpc.com/connect"
)

// LocalDevUserID is the identity injected by LocalDevInterceptor when none is given.
const LocalDevUserID = "local-dev-user"

// LocalDevInterceptor injects a fixed user for local development. The user
// also holds the scheduler role so local cron runs can evaluate any user.
func LocalDevInterceptor(userID string) connect.UnaryInterceptorFunc {
	if userID == "" {
		userID = LocalDevUserID
	}
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if isPublicEndpoint(req.Spec().Procedure) {
				return next(ctx, req)
			}
			if _, ok := GetUserClaims(ctx); ok {
				return next(ctx, req)
			}

			ctx = withUserClaims(ctx, &UserClaims{
				UID:         userID,
				Email:       "dev@localhost",
				DisplayName: "Local Dev User",
				Verified:    true,
				Scheduler:   true,
			})
			return next(ctx, req)
		}
	}
}
