package auth

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
)

// RequireAuth extracts user claims from context or returns an unauthenticated error
func RequireAuth(ctx context.Context) (*UserClaims, error) {
	claims, ok := GetUserClaims(ctx)
	if !ok {
		return nil, connect.NewError(connect.CodeUnauthenticated, fmt.Errorf("user not authenticated"))
	}
	return claims, nil
}

// RequireUserAccess verifies the authenticated user matches the requested user ID
func RequireUserAccess(ctx context.Context, requestedUserID string) (*UserClaims, error) {
	claims, err := RequireAuth(ctx)
	if err != nil {
		return nil, err
	}

	if requestedUserID != "" && requestedUserID != claims.UID {
		return nil, connect.NewError(connect.CodePermissionDenied,
			fmt.Errorf("cannot access another user's resources"))
	}

	return claims, nil
}

// RequireSchedulerOrUser allows the owner of userID, or a scheduler identity
// acting on behalf of any user.
func RequireSchedulerOrUser(ctx context.Context, requestedUserID string) (*UserClaims, error) {
	claims, err := RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if claims.Scheduler && requestedUserID != "" {
		return claims, nil
	}
	return RequireUserAccess(ctx, requestedUserID)
}

// ResolveUserID returns the requested user, defaulting to the caller.
func ResolveUserID(claims *UserClaims, requestedUserID string) string {
	if requestedUserID != "" {
		return requestedUserID
	}
	return claims.UID
}

// NormalizePageSize returns a valid page size (default 50, max 200)
func NormalizePageSize(pageSize int32) int32 {
	if pageSize <= 0 {
		return 50
	}
	if pageSize > 200 {
		return 200
	}
	return pageSize
}

// WrapStoreError wraps store errors with operation context
func WrapStoreError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}
