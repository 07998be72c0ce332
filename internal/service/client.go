package service

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// LedgerClient calls the ledger service over connect.
type LedgerClient struct {
	createPersonalTransaction  *connect.Client[CreatePersonalTransactionRequest, TransactionResponse]
	createPersonalTransactions *connect.Client[CreatePersonalTransactionsRequest, TransactionsResponse]
	replacePersonalTransaction *connect.Client[ReplacePersonalTransactionRequest, TransactionResponse]
	createGroupTransaction     *connect.Client[CreateGroupTransactionRequest, PostingResponse]
	createSettlement           *connect.Client[CreateSettlementRequest, PostingResponse]
	deleteTransaction          *connect.Client[DeleteTransactionRequest, DeleteTransactionResponse]
	getTransactionBalances     *connect.Client[GetTransactionBalancesRequest, GetTransactionBalancesResponse]
	getSheetBalances           *connect.Client[GetSheetBalancesRequest, GetSheetBalancesResponse]
	createSchedule             *connect.Client[CreateScheduleRequest, ScheduleResponse]
	deleteSchedule             *connect.Client[DeleteScheduleRequest, DeleteScheduleResponse]
	processSchedules           *connect.Client[ProcessSchedulesRequest, ProcessSchedulesResponse]
}

// NewLedgerClient constructs a client for the service at baseURL, e.g.
// http://localhost:8080.
func NewLedgerClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *LedgerClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &LedgerClient{
		createPersonalTransaction:  connect.NewClient[CreatePersonalTransactionRequest, TransactionResponse](httpClient, baseURL+CreatePersonalTransactionProcedure, opts...),
		createPersonalTransactions: connect.NewClient[CreatePersonalTransactionsRequest, TransactionsResponse](httpClient, baseURL+CreatePersonalTransactionsProcedure, opts...),
		replacePersonalTransaction: connect.NewClient[ReplacePersonalTransactionRequest, TransactionResponse](httpClient, baseURL+ReplacePersonalTransactionProcedure, opts...),
		createGroupTransaction:     connect.NewClient[CreateGroupTransactionRequest, PostingResponse](httpClient, baseURL+CreateGroupTransactionProcedure, opts...),
		createSettlement:           connect.NewClient[CreateSettlementRequest, PostingResponse](httpClient, baseURL+CreateSettlementProcedure, opts...),
		deleteTransaction:          connect.NewClient[DeleteTransactionRequest, DeleteTransactionResponse](httpClient, baseURL+DeleteTransactionProcedure, opts...),
		getTransactionBalances:     connect.NewClient[GetTransactionBalancesRequest, GetTransactionBalancesResponse](httpClient, baseURL+GetTransactionBalancesProcedure, opts...),
		getSheetBalances:           connect.NewClient[GetSheetBalancesRequest, GetSheetBalancesResponse](httpClient, baseURL+GetSheetBalancesProcedure, opts...),
		createSchedule:             connect.NewClient[CreateScheduleRequest, ScheduleResponse](httpClient, baseURL+CreateScheduleProcedure, opts...),
		deleteSchedule:             connect.NewClient[DeleteScheduleRequest, DeleteScheduleResponse](httpClient, baseURL+DeleteScheduleProcedure, opts...),
		processSchedules:           connect.NewClient[ProcessSchedulesRequest, ProcessSchedulesResponse](httpClient, baseURL+ProcessSchedulesProcedure, opts...),
	}
}

func (c *LedgerClient) CreatePersonalTransaction(ctx context.Context, req *CreatePersonalTransactionRequest) (*TransactionResponse, error) {
	return call(ctx, c.createPersonalTransaction, req)
}

func (c *LedgerClient) CreatePersonalTransactions(ctx context.Context, req *CreatePersonalTransactionsRequest) (*TransactionsResponse, error) {
	return call(ctx, c.createPersonalTransactions, req)
}

func (c *LedgerClient) ReplacePersonalTransaction(ctx context.Context, req *ReplacePersonalTransactionRequest) (*TransactionResponse, error) {
	return call(ctx, c.replacePersonalTransaction, req)
}

func (c *LedgerClient) CreateGroupTransaction(ctx context.Context, req *CreateGroupTransactionRequest) (*PostingResponse, error) {
	return call(ctx, c.createGroupTransaction, req)
}

func (c *LedgerClient) CreateSettlement(ctx context.Context, req *CreateSettlementRequest) (*PostingResponse, error) {
	return call(ctx, c.createSettlement, req)
}

func (c *LedgerClient) DeleteTransaction(ctx context.Context, req *DeleteTransactionRequest) (*DeleteTransactionResponse, error) {
	return call(ctx, c.deleteTransaction, req)
}

func (c *LedgerClient) GetTransactionBalances(ctx context.Context, req *GetTransactionBalancesRequest) (*GetTransactionBalancesResponse, error) {
	return call(ctx, c.getTransactionBalances, req)
}

func (c *LedgerClient) GetSheetBalances(ctx context.Context, req *GetSheetBalancesRequest) (*GetSheetBalancesResponse, error) {
	return call(ctx, c.getSheetBalances, req)
}

func (c *LedgerClient) CreateSchedule(ctx context.Context, req *CreateScheduleRequest) (*ScheduleResponse, error) {
	return call(ctx, c.createSchedule, req)
}

func (c *LedgerClient) DeleteSchedule(ctx context.Context, req *DeleteScheduleRequest) (*DeleteScheduleResponse, error) {
	return call(ctx, c.deleteSchedule, req)
}

func (c *LedgerClient) ProcessSchedules(ctx context.Context) (*ProcessSchedulesResponse, error) {
	return call(ctx, c.processSchedules, &ProcessSchedulesRequest{})
}

func call[Req, Res any](ctx context.Context, client *connect.Client[Req, Res], req *Req) (*Res, error) {
	resp, err := client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
