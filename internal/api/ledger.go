package api

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// LedgerServiceName is the fully-qualified name of the service.
const LedgerServiceName = "settleup.v1.LedgerService"

// Procedure paths of LedgerService.
const (
	LedgerServiceGetDebtReportProcedure     = "/" + LedgerServiceName + "/GetDebtReport"
	LedgerServiceCreatePaymentProcedure     = "/" + LedgerServiceName + "/CreatePayment"
	LedgerServiceConfirmPaymentProcedure    = "/" + LedgerServiceName + "/ConfirmPayment"
	LedgerServiceListPaymentsProcedure      = "/" + LedgerServiceName + "/ListPayments"
	LedgerServiceGetPaymentRequestProcedure = "/" + LedgerServiceName + "/GetPaymentRequest"
)

// LedgerServiceHandler reports debts and records payments.
type LedgerServiceHandler interface {
	GetDebtReport(context.Context, *connect.Request[GetDebtReportRequest]) (*connect.Response[GetDebtReportResponse], error)
	CreatePayment(context.Context, *connect.Request[CreatePaymentRequest]) (*connect.Response[CreatePaymentResponse], error)
	ConfirmPayment(context.Context, *connect.Request[ConfirmPaymentRequest]) (*connect.Response[ConfirmPaymentResponse], error)
	ListPayments(context.Context, *connect.Request[ListPaymentsRequest]) (*connect.Response[ListPaymentsResponse], error)
	GetPaymentRequest(context.Context, *connect.Request[GetPaymentRequestRequest]) (*connect.Response[GetPaymentRequestResponse], error)
}

// NewLedgerServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewLedgerServiceHandler(svc LedgerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	return servicePath(LedgerServiceName), serviceMux{
		LedgerServiceGetDebtReportProcedure:     connect.NewUnaryHandler(LedgerServiceGetDebtReportProcedure, svc.GetDebtReport, opts...),
		LedgerServiceCreatePaymentProcedure:     connect.NewUnaryHandler(LedgerServiceCreatePaymentProcedure, svc.CreatePayment, opts...),
		LedgerServiceConfirmPaymentProcedure:    connect.NewUnaryHandler(LedgerServiceConfirmPaymentProcedure, svc.ConfirmPayment, opts...),
		LedgerServiceListPaymentsProcedure:      connect.NewUnaryHandler(LedgerServiceListPaymentsProcedure, svc.ListPayments, opts...),
		LedgerServiceGetPaymentRequestProcedure: connect.NewUnaryHandler(LedgerServiceGetPaymentRequestProcedure, svc.GetPaymentRequest, opts...),
	}
}

// LedgerServiceClient is a typed client for LedgerService.
type LedgerServiceClient struct {
	getDebtReport     *connect.Client[GetDebtReportRequest, GetDebtReportResponse]
	createPayment     *connect.Client[CreatePaymentRequest, CreatePaymentResponse]
	confirmPayment    *connect.Client[ConfirmPaymentRequest, ConfirmPaymentResponse]
	listPayments      *connect.Client[ListPaymentsRequest, ListPaymentsResponse]
	getPaymentRequest *connect.Client[GetPaymentRequestRequest, GetPaymentRequestResponse]
}

// NewLedgerServiceClient constructs a client. baseURL is the server root, e.g. http://localhost:8080.
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *LedgerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = clientOptions(opts)
	return &LedgerServiceClient{
		getDebtReport:     connect.NewClient[GetDebtReportRequest, GetDebtReportResponse](httpClient, baseURL+LedgerServiceGetDebtReportProcedure, opts...),
		createPayment:     connect.NewClient[CreatePaymentRequest, CreatePaymentResponse](httpClient, baseURL+LedgerServiceCreatePaymentProcedure, opts...),
		confirmPayment:    connect.NewClient[ConfirmPaymentRequest, ConfirmPaymentResponse](httpClient, baseURL+LedgerServiceConfirmPaymentProcedure, opts...),
		listPayments:      connect.NewClient[ListPaymentsRequest, ListPaymentsResponse](httpClient, baseURL+LedgerServiceListPaymentsProcedure, opts...),
		getPaymentRequest: connect.NewClient[GetPaymentRequestRequest, GetPaymentRequestResponse](httpClient, baseURL+LedgerServiceGetPaymentRequestProcedure, opts...),
	}
}

// GetDebtReport calls LedgerService.GetDebtReport.
func (c *LedgerServiceClient) GetDebtReport(ctx context.Context, req *connect.Request[GetDebtReportRequest]) (*connect.Response[GetDebtReportResponse], error) {
	return c.getDebtReport.CallUnary(ctx, req)
}

// CreatePayment calls LedgerService.CreatePayment.
func (c *LedgerServiceClient) CreatePayment(ctx context.Context, req *connect.Request[CreatePaymentRequest]) (*connect.Response[CreatePaymentResponse], error) {
	return c.createPayment.CallUnary(ctx, req)
}

// ConfirmPayment calls LedgerService.ConfirmPayment.
func (c *LedgerServiceClient) ConfirmPayment(ctx context.Context, req *connect.Request[ConfirmPaymentRequest]) (*connect.Response[ConfirmPaymentResponse], error) {
	return c.confirmPayment.CallUnary(ctx, req)
}

// ListPayments calls LedgerService.ListPayments.
func (c *LedgerServiceClient) ListPayments(ctx context.Context, req *connect.Request[ListPaymentsRequest]) (*connect.Response[ListPaymentsResponse], error) {
	return c.listPayments.CallUnary(ctx, req)
}

// GetPaymentRequest calls LedgerService.GetPaymentRequest.
func (c *LedgerServiceClient) GetPaymentRequest(ctx context.Context, req *connect.Request[GetPaymentRequestRequest]) (*connect.Response[GetPaymentRequestResponse], error) {
	return c.getPaymentRequest.CallUnary(ctx, req)
}
