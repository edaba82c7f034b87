package service

import (
	"context"
	"fmt"

	"connectrpc.com/connect"

	"github.com/castlemilk/pfinance-insights/internal/auth"
	"github.com/castlemilk/pfinance-insights/internal/logger"
)

// ============================================================================
// Notification Handlers
// ============================================================================

// EvaluateNotifications runs one trigger pass for the user. Scheduler
// identities may run it for any user.
func (s *InsightsService) EvaluateNotifications(ctx context.Context, req *connect.Request[EvaluateNotificationsRequest]) (*connect.Response[EvaluateNotificationsResponse], error) {
	claims, err := auth.RequireSchedulerOrUser(ctx, req.Msg.UserID)
	if err != nil {
		return nil, err
	}
	userID := auth.ResolveUserID(claims, req.Msg.UserID)

	snap, err := s.loadSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Evaluate(ctx, snap, s.now())
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("evaluate notifications: %w", err))
	}
	return connect.NewResponse(&EvaluateNotificationsResponse{Result: result}), nil
}

// ListNotifications returns a page of the user's notifications, newest
// first, along with the unread count.
func (s *InsightsService) ListNotifications(ctx context.Context, req *connect.Request[ListNotificationsRequest]) (*connect.Response[ListNotificationsResponse], error) {
	claims, err := auth.RequireUserAccess(ctx, req.Msg.UserID)
	if err != nil {
		return nil, err
	}
	userID := auth.ResolveUserID(claims, req.Msg.UserID)

	notifications, nextToken, err := s.store.ListNotifications(ctx, userID, req.Msg.UnreadOnly, req.Msg.Type,
		auth.NormalizePageSize(req.Msg.PageSize), req.Msg.PageToken)
	if err != nil {
		return nil, storeError("list notifications", err)
	}

	unread, err := s.store.GetUnreadNotificationCount(ctx, userID)
	if err != nil {
		l := logger.FromContext(ctx)
		l.Warn().Err(err).Str("user_id", userID).Msg("unread count failed")
		unread = 0
	}

	return connect.NewResponse(&ListNotificationsResponse{
		Notifications: notifications,
		NextPageToken: nextToken,
		UnreadCount:   unread,
	}), nil
}

// MarkNotificationRead marks a single notification read.
func (s *InsightsService) MarkNotificationRead(ctx context.Context, req *connect.Request[MarkNotificationReadRequest]) (*connect.Response[MarkNotificationReadResponse], error) {
	if _, err := auth.RequireAuth(ctx); err != nil {
		return nil, err
	}
	if req.Msg.NotificationID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("notification_id is required"))
	}

	n, err := s.store.GetNotification(ctx, req.Msg.NotificationID)
	if err != nil {
		return nil, storeError("get notification", err)
	}
	if _, err := auth.RequireUserAccess(ctx, n.UserID); err != nil {
		return nil, err
	}

	if err := s.store.MarkNotificationRead(ctx, req.Msg.NotificationID); err != nil {
		return nil, storeError("mark notification read", err)
	}
	return connect.NewResponse(&MarkNotificationReadResponse{}), nil
}

// MarkAllNotificationsRead marks every unread notification of the user read.
func (s *InsightsService) MarkAllNotificationsRead(ctx context.Context, req *connect.Request[MarkAllNotificationsReadRequest]) (*connect.Response[MarkAllNotificationsReadResponse], error) {
	claims, err := auth.RequireUserAccess(ctx, req.Msg.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.store.MarkAllNotificationsRead(ctx, auth.ResolveUserID(claims, req.Msg.UserID)); err != nil {
		return nil, storeError("mark all notifications read", err)
	}
	return connect.NewResponse(&MarkAllNotificationsReadResponse{}), nil
}

// GetUnreadNotificationCount returns the badge count.
func (s *InsightsService) GetUnreadNotificationCount(ctx context.Context, req *connect.Request[GetUnreadNotificationCountRequest]) (*connect.Response[GetUnreadNotificationCountResponse], error) {
	claims, err := auth.RequireUserAccess(ctx, req.Msg.UserID)
	if err != nil {
		return nil, err
	}

	count, err := s.store.GetUnreadNotificationCount(ctx, auth.ResolveUserID(claims, req.Msg.UserID))
	if err != nil {
		return nil, storeError("get unread notification count", err)
	}
	return connect.NewResponse(&GetUnreadNotificationCountResponse{Count: count}), nil
}

// DeleteNotification removes a notification owned by the caller.
func (s *InsightsService) DeleteNotification(ctx context.Context, req *connect.Request[DeleteNotificationRequest]) (*connect.Response[DeleteNotificationResponse], error) {
	if _, err := auth.RequireAuth(ctx); err != nil {
		return nil, err
	}
	if req.Msg.NotificationID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("notification_id is required"))
	}

	n, err := s.store.GetNotification(ctx, req.Msg.NotificationID)
	if err != nil {
		return nil, storeError("get notification", err)
	}
	if _, err := auth.RequireUserAccess(ctx, n.UserID); err != nil {
		return nil, err
	}

	if err := s.store.DeleteNotification(ctx, req.Msg.NotificationID); err != nil {
		return nil, storeError("delete notification", err)
	}
	return connect.NewResponse(&DeleteNotificationResponse{}), nil
}
