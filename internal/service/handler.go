package service

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// InsightsServiceName is the fully-qualified name of the insights service.
const InsightsServiceName = "pfinance.insights.v1.InsightsService"

const (
	AnalyzePatternsProcedure            = "/" + InsightsServiceName + "/AnalyzePatterns"
	GetForecastProcedure                = "/" + InsightsServiceName + "/GetForecast"
	GetBudgetVarianceProcedure          = "/" + InsightsServiceName + "/GetBudgetVariance"
	EvaluateNotificationsProcedure      = "/" + InsightsServiceName + "/EvaluateNotifications"
	ListNotificationsProcedure          = "/" + InsightsServiceName + "/ListNotifications"
	MarkNotificationReadProcedure       = "/" + InsightsServiceName + "/MarkNotificationRead"
	MarkAllNotificationsReadProcedure   = "/" + InsightsServiceName + "/MarkAllNotificationsRead"
	GetUnreadNotificationCountProcedure = "/" + InsightsServiceName + "/GetUnreadNotificationCount"
	DeleteNotificationProcedure         = "/" + InsightsServiceName + "/DeleteNotification"
)

// SchedulerProcedures are the procedures a scheduler identity may call on
// behalf of other users.
var SchedulerProcedures = []string{EvaluateNotificationsProcedure}

// NewInsightsServiceHandler builds an HTTP handler serving every procedure
// and returns the path prefix to mount it on.
func NewInsightsServiceHandler(svc *InsightsService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec())}, opts...)

	mux := http.NewServeMux()
	mux.Handle(AnalyzePatternsProcedure, connect.NewUnaryHandler(AnalyzePatternsProcedure, svc.AnalyzePatterns, opts...))
	mux.Handle(GetForecastProcedure, connect.NewUnaryHandler(GetForecastProcedure, svc.GetForecast, opts...))
	mux.Handle(GetBudgetVarianceProcedure, connect.NewUnaryHandler(GetBudgetVarianceProcedure, svc.GetBudgetVariance, opts...))
	mux.Handle(EvaluateNotificationsProcedure, connect.NewUnaryHandler(EvaluateNotificationsProcedure, svc.EvaluateNotifications, opts...))
	mux.Handle(ListNotificationsProcedure, connect.NewUnaryHandler(ListNotificationsProcedure, svc.ListNotifications, opts...))
	mux.Handle(MarkNotificationReadProcedure, connect.NewUnaryHandler(MarkNotificationReadProcedure, svc.MarkNotificationRead, opts...))
	mux.Handle(MarkAllNotificationsReadProcedure, connect.NewUnaryHandler(MarkAllNotificationsReadProcedure, svc.MarkAllNotificationsRead, opts...))
	mux.Handle(GetUnreadNotificationCountProcedure, connect.NewUnaryHandler(GetUnreadNotificationCountProcedure, svc.GetUnreadNotificationCount, opts...))
	mux.Handle(DeleteNotificationProcedure, connect.NewUnaryHandler(DeleteNotificationProcedure, svc.DeleteNotification, opts...))
	return "/" + InsightsServiceName + "/", mux
}

// InsightsServiceClient calls an InsightsService over connect with the JSON
// codec.
type InsightsServiceClient struct {
	analyzePatterns            *connect.Client[AnalyzePatternsRequest, AnalyzePatternsResponse]
	getForecast                *connect.Client[GetForecastRequest, GetForecastResponse]
	getBudgetVariance          *connect.Client[GetBudgetVarianceRequest, GetBudgetVarianceResponse]
	evaluateNotifications      *connect.Client[EvaluateNotificationsRequest, EvaluateNotificationsResponse]
	listNotifications          *connect.Client[ListNotificationsRequest, ListNotificationsResponse]
	markNotificationRead       *connect.Client[MarkNotificationReadRequest, MarkNotificationReadResponse]
	markAllNotificationsRead   *connect.Client[MarkAllNotificationsReadRequest, MarkAllNotificationsReadResponse]
	getUnreadNotificationCount *connect.Client[GetUnreadNotificationCountRequest, GetUnreadNotificationCountResponse]
	deleteNotification         *connect.Client[DeleteNotificationRequest, DeleteNotificationResponse]
}

func NewInsightsServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *InsightsServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec())}, opts...)
	return &InsightsServiceClient{
		analyzePatterns:            connect.NewClient[AnalyzePatternsRequest, AnalyzePatternsResponse](httpClient, baseURL+AnalyzePatternsProcedure, opts...),
		getForecast:                connect.NewClient[GetForecastRequest, GetForecastResponse](httpClient, baseURL+GetForecastProcedure, opts...),
		getBudgetVariance:          connect.NewClient[GetBudgetVarianceRequest, GetBudgetVarianceResponse](httpClient, baseURL+GetBudgetVarianceProcedure, opts...),
		evaluateNotifications:      connect.NewClient[EvaluateNotificationsRequest, EvaluateNotificationsResponse](httpClient, baseURL+EvaluateNotificationsProcedure, opts...),
		listNotifications:          connect.NewClient[ListNotificationsRequest, ListNotificationsResponse](httpClient, baseURL+ListNotificationsProcedure, opts...),
		markNotificationRead:       connect.NewClient[MarkNotificationReadRequest, MarkNotificationReadResponse](httpClient, baseURL+MarkNotificationReadProcedure, opts...),
		markAllNotificationsRead:   connect.NewClient[MarkAllNotificationsReadRequest, MarkAllNotificationsReadResponse](httpClient, baseURL+MarkAllNotificationsReadProcedure, opts...),
		getUnreadNotificationCount: connect.NewClient[GetUnreadNotificationCountRequest, GetUnreadNotificationCountResponse](httpClient, baseURL+GetUnreadNotificationCountProcedure, opts...),
		deleteNotification:         connect.NewClient[DeleteNotificationRequest, DeleteNotificationResponse](httpClient, baseURL+DeleteNotificationProcedure, opts...),
	}
}

func (c *InsightsServiceClient) AnalyzePatterns(ctx context.Context, req *connect.Request[AnalyzePatternsRequest]) (*connect.Response[AnalyzePatternsResponse], error) {
	return c.analyzePatterns.CallUnary(ctx, req)
}

func (c *InsightsServiceClient) GetForecast(ctx context.Context, req *connect.Request[GetForecastRequest]) (*connect.Response[GetForecastResponse], error) {
	return c.getForecast.CallUnary(ctx, req)
}

func (c *InsightsServiceClient) GetBudgetVariance(ctx context.Context, req *connect.Request[GetBudgetVarianceRequest]) (*connect.Response[GetBudgetVarianceResponse], error) {
	return c.getBudgetVariance.CallUnary(ctx, req)
}

func (c *InsightsServiceClient) EvaluateNotifications(ctx context.Context, req *connect.Request[EvaluateNotificationsRequest]) (*connect.Response[EvaluateNotificationsResponse], error) {
	return c.evaluateNotifications.CallUnary(ctx, req)
}

func (c *InsightsServiceClient) ListNotifications(ctx context.Context, req *connect.Request[ListNotificationsRequest]) (*connect.Response[ListNotificationsResponse], error) {
	return c.listNotifications.CallUnary(ctx, req)
}

func (c *InsightsServiceClient) MarkNotificationRead(ctx context.Context, req *connect.Request[MarkNotificationReadRequest]) (*connect.Response[MarkNotificationReadResponse], error) {
	return c.markNotificationRead.CallUnary(ctx, req)
}

func (c *InsightsServiceClient) MarkAllNotificationsRead(ctx context.Context, req *connect.Request[MarkAllNotificationsReadRequest]) (*connect.Response[MarkAllNotificationsReadResponse], error) {
	return c.markAllNotificationsRead.CallUnary(ctx, req)
}

func (c *InsightsServiceClient) GetUnreadNotificationCount(ctx context.Context, req *connect.Request[GetUnreadNotificationCountRequest]) (*connect.Response[GetUnreadNotificationCountResponse], error) {
	return c.getUnreadNotificationCount.CallUnary(ctx, req)
}

func (c *InsightsServiceClient) DeleteNotification(ctx context.Context, req *connect.Request[DeleteNotificationRequest]) (*connect.Response[DeleteNotificationResponse], error) {
	return c.deleteNotification.CallUnary(ctx, req)
}
