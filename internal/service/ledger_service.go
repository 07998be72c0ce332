// Package service exposes the ledger over connect RPC.
//
// Messages are plain Go structs carried as JSON. Every handler validates its
// request, loads the sheet named in it and delegates to the ledger or the
// schedule processor. The acting user comes from the auth interceptor.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"github.com/go-playground/validator/v10"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/recurrence"
	"github.com/mmynk/splitledger/internal/scheduler"
	"github.com/mmynk/splitledger/internal/storage"
)

// ServiceName is the fully qualified name of the ledger service.
const ServiceName = "ledger.v1.LedgerService"

// Procedure paths.
const (
	CreatePersonalTransactionProcedure  = "/" + ServiceName + "/CreatePersonalTransaction"
	CreatePersonalTransactionsProcedure = "/" + ServiceName + "/CreatePersonalTransactions"
	ReplacePersonalTransactionProcedure = "/" + ServiceName + "/ReplacePersonalTransaction"
	CreateGroupTransactionProcedure     = "/" + ServiceName + "/CreateGroupTransaction"
	CreateSettlementProcedure           = "/" + ServiceName + "/CreateSettlement"
	DeleteTransactionProcedure          = "/" + ServiceName + "/DeleteTransaction"
	GetTransactionBalancesProcedure     = "/" + ServiceName + "/GetTransactionBalances"
	GetSheetBalancesProcedure           = "/" + ServiceName + "/GetSheetBalances"
	CreateScheduleProcedure             = "/" + ServiceName + "/CreateSchedule"
	DeleteScheduleProcedure             = "/" + ServiceName + "/DeleteSchedule"
	ProcessSchedulesProcedure           = "/" + ServiceName + "/ProcessSchedules"
)

// LedgerService implements the ledger RPC handlers.
type LedgerService struct {
	store     storage.Store
	ledger    *ledger.Ledger
	processor *scheduler.Processor
	validate  *validator.Validate
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(store storage.Store, l *ledger.Ledger, p *scheduler.Processor, v *validator.Validate) *LedgerService {
	if v == nil {
		v = validator.New(validator.WithRequiredStructEnabled())
	}
	return &LedgerService{store: store, ledger: l, processor: p, validate: v}
}

// Handler returns the path prefix and the HTTP handler serving every
// procedure.
func (s *LedgerService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(CreatePersonalTransactionProcedure, connect.NewUnaryHandler(CreatePersonalTransactionProcedure, s.CreatePersonalTransaction, opts...))
	mux.Handle(CreatePersonalTransactionsProcedure, connect.NewUnaryHandler(CreatePersonalTransactionsProcedure, s.CreatePersonalTransactions, opts...))
	mux.Handle(ReplacePersonalTransactionProcedure, connect.NewUnaryHandler(ReplacePersonalTransactionProcedure, s.ReplacePersonalTransaction, opts...))
	mux.Handle(CreateGroupTransactionProcedure, connect.NewUnaryHandler(CreateGroupTransactionProcedure, s.CreateGroupTransaction, opts...))
	mux.Handle(CreateSettlementProcedure, connect.NewUnaryHandler(CreateSettlementProcedure, s.CreateSettlement, opts...))
	mux.Handle(DeleteTransactionProcedure, connect.NewUnaryHandler(DeleteTransactionProcedure, s.DeleteTransaction, opts...))
	mux.Handle(GetTransactionBalancesProcedure, connect.NewUnaryHandler(GetTransactionBalancesProcedure, s.GetTransactionBalances, opts...))
	mux.Handle(GetSheetBalancesProcedure, connect.NewUnaryHandler(GetSheetBalancesProcedure, s.GetSheetBalances, opts...))
	mux.Handle(CreateScheduleProcedure, connect.NewUnaryHandler(CreateScheduleProcedure, s.CreateSchedule, opts...))
	mux.Handle(DeleteScheduleProcedure, connect.NewUnaryHandler(DeleteScheduleProcedure, s.DeleteSchedule, opts...))
	mux.Handle(ProcessSchedulesProcedure, connect.NewUnaryHandler(ProcessSchedulesProcedure, s.ProcessSchedules, opts...))
	return "/" + ServiceName + "/", mux
}

// toConnectError maps ledger errors onto RPC codes. Internal errors keep
// their detail out of the response.
func toConnectError(err error) error {
	var verr validator.ValidationErrors
	switch {
	case errors.As(err, &verr), errors.Is(err, models.ErrValidation):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, models.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, models.ErrConflict):
		return connect.NewError(connect.CodeAborted, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	default:
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
}

// begin checks the request and resolves the acting user and sheet.
func (s *LedgerService) begin(ctx context.Context, msg any, sheetID string) (string, *models.Sheet, error) {
	if err := s.validate.Struct(msg); err != nil {
		return "", nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", nil, connect.NewError(connect.CodeUnauthenticated, errors.New("no acting user"))
	}

	sheet, err := s.store.GetSheet(ctx, sheetID)
	if err != nil {
		return "", nil, toConnectError(err)
	}
	return userID, sheet, nil
}

// CreatePersonalTransaction records an expense or income on a personal sheet.
func (s *LedgerService) CreatePersonalTransaction(ctx context.Context, req *connect.Request[CreatePersonalTransactionRequest]) (*connect.Response[TransactionResponse], error) {
	slog.Info("CreatePersonalTransaction request received",
		"sheet_id", req.Msg.SheetID,
		"type", req.Msg.Transaction.Type,
	)

	userID, sheet, err := s.begin(ctx, req.Msg, req.Msg.SheetID)
	if err != nil {
		return nil, err
	}

	txn, err := s.ledger.CreatePersonalTransaction(ctx, userID, sheet, req.Msg.Transaction.input())
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&TransactionResponse{
		Transaction: toTransaction(txn, sheet.CurrencyCode),
	}), nil
}

// CreatePersonalTransactions records a batch of personal transactions
// atomically.
func (s *LedgerService) CreatePersonalTransactions(ctx context.Context, req *connect.Request[CreatePersonalTransactionsRequest]) (*connect.Response[TransactionsResponse], error) {
	slog.Info("CreatePersonalTransactions request received",
		"sheet_id", req.Msg.SheetID,
		"count", len(req.Msg.Transactions),
	)

	userID, sheet, err := s.begin(ctx, req.Msg, req.Msg.SheetID)
	if err != nil {
		return nil, err
	}

	inputs := make([]ledger.PersonalTransactionInput, len(req.Msg.Transactions))
	for i, t := range req.Msg.Transactions {
		inputs[i] = t.input()
	}

	txns, err := s.ledger.CreatePersonalTransactions(ctx, userID, sheet, inputs)
	if err != nil {
		return nil, toConnectError(err)
	}

	resp := &TransactionsResponse{Transactions: make([]Transaction, 0, len(txns))}
	for _, txn := range txns {
		resp.Transactions = append(resp.Transactions, toTransaction(txn, sheet.CurrencyCode))
	}
	return connect.NewResponse(resp), nil
}

// ReplacePersonalTransaction rewrites a personal transaction in place.
func (s *LedgerService) ReplacePersonalTransaction(ctx context.Context, req *connect.Request[ReplacePersonalTransactionRequest]) (*connect.Response[TransactionResponse], error) {
	slog.Info("ReplacePersonalTransaction request received",
		"sheet_id", req.Msg.SheetID,
		"transaction_id", req.Msg.TransactionID,
	)

	userID, sheet, err := s.begin(ctx, req.Msg, req.Msg.SheetID)
	if err != nil {
		return nil, err
	}

	txn, err := s.ledger.ReplacePersonalTransaction(ctx, userID, sheet, req.Msg.TransactionID, req.Msg.Transaction.input())
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&TransactionResponse{
		Transaction: toTransaction(txn, sheet.CurrencyCode),
	}), nil
}

// CreateGroupTransaction records a shared expense or income.
func (s *LedgerService) CreateGroupTransaction(ctx context.Context, req *connect.Request[CreateGroupTransactionRequest]) (*connect.Response[PostingResponse], error) {
	slog.Info("CreateGroupTransaction request received",
		"sheet_id", req.Msg.SheetID,
		"type", req.Msg.Type,
		"splits_count", len(req.Msg.Splits),
		"split_equally_count", len(req.Msg.SplitEqually),
	)

	userID, sheet, err := s.begin(ctx, req.Msg, req.Msg.SheetID)
	if err != nil {
		return nil, err
	}

	var splits []models.Split
	if len(req.Msg.SplitEqually) > 0 {
		if len(req.Msg.Splits) > 0 {
			return nil, connect.NewError(connect.CodeInvalidArgument,
				errors.New("splits and split_equally are mutually exclusive"))
		}
		splits, err = calculator.EqualSplits(req.Msg.Money, req.Msg.SplitEqually)
		if err != nil {
			return nil, toConnectError(err)
		}
	} else {
		for _, sp := range req.Msg.Splits {
			splits = append(splits, models.Split{ParticipantID: sp.ParticipantID, Share: sp.Share})
		}
	}

	posting, err := s.ledger.CreateGroupTransaction(ctx, userID, sheet, ledger.GroupTransactionInput{
		Type:               models.TransactionType(req.Msg.Type),
		Category:           req.Msg.Category,
		Description:        req.Msg.Description,
		Money:              req.Msg.Money,
		PaidOrReceivedByID: req.Msg.PaidOrReceivedByID,
		SpentAt:            req.Msg.SpentAt,
		Splits:             splits,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(toPostingResponse(posting, sheet.CurrencyCode)), nil
}

// CreateSettlement records a payment between two participants.
func (s *LedgerService) CreateSettlement(ctx context.Context, req *connect.Request[CreateSettlementRequest]) (*connect.Response[PostingResponse], error) {
	slog.Info("CreateSettlement request received",
		"sheet_id", req.Msg.SheetID,
		"from", req.Msg.FromID,
		"to", req.Msg.ToID,
	)

	userID, sheet, err := s.begin(ctx, req.Msg, req.Msg.SheetID)
	if err != nil {
		return nil, err
	}

	posting, err := s.ledger.CreateSettlement(ctx, userID, sheet, ledger.SettlementInput{
		Money:  req.Msg.Money,
		FromID: req.Msg.FromID,
		ToID:   req.Msg.ToID,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(toPostingResponse(posting, sheet.CurrencyCode)), nil
}

// DeleteTransaction removes a transaction from a sheet.
func (s *LedgerService) DeleteTransaction(ctx context.Context, req *connect.Request[DeleteTransactionRequest]) (*connect.Response[DeleteTransactionResponse], error) {
	slog.Info("DeleteTransaction request received",
		"sheet_id", req.Msg.SheetID,
		"transaction_id", req.Msg.TransactionID,
	)

	_, sheet, err := s.begin(ctx, req.Msg, req.Msg.SheetID)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.DeleteTransaction(ctx, sheet, req.Msg.TransactionID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&DeleteTransactionResponse{}), nil
}

// GetTransactionBalances projects one transaction into balances.
func (s *LedgerService) GetTransactionBalances(ctx context.Context, req *connect.Request[GetTransactionBalancesRequest]) (*connect.Response[GetTransactionBalancesResponse], error) {
	slog.Info("GetTransactionBalances request received",
		"sheet_id", req.Msg.SheetID,
		"transaction_id", req.Msg.TransactionID,
	)

	_, sheet, err := s.begin(ctx, req.Msg, req.Msg.SheetID)
	if err != nil {
		return nil, err
	}

	txn, balances, err := s.ledger.TransactionBalances(ctx, sheet, req.Msg.TransactionID)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&GetTransactionBalancesResponse{
		Transaction: toTransaction(txn, sheet.CurrencyCode),
		Balances:    balances,
	}), nil
}

// GetSheetBalances returns net balances and the transfers that settle them.
func (s *LedgerService) GetSheetBalances(ctx context.Context, req *connect.Request[GetSheetBalancesRequest]) (*connect.Response[GetSheetBalancesResponse], error) {
	slog.Info("GetSheetBalances request received", "sheet_id", req.Msg.SheetID)

	_, sheet, err := s.begin(ctx, req.Msg, req.Msg.SheetID)
	if err != nil {
		return nil, err
	}

	plan, err := s.ledger.PlanSettlement(ctx, sheet, req.Msg.Participants...)
	if err != nil {
		return nil, toConnectError(err)
	}

	slog.Info("GetSheetBalances successful",
		"sheet_id", sheet.ID,
		"participants", len(plan.Balances),
		"transfers", len(plan.Transfers),
	)
	return connect.NewResponse(&GetSheetBalancesResponse{
		Balances:  plan.Balances,
		Transfers: plan.Transfers,
	}), nil
}

// CreateSchedule stores a recurring personal transaction.
func (s *LedgerService) CreateSchedule(ctx context.Context, req *connect.Request[CreateScheduleRequest]) (*connect.Response[ScheduleResponse], error) {
	slog.Info("CreateSchedule request received",
		"sheet_id", req.Msg.SheetID,
		"freq", req.Msg.RecurrenceRule.Freq,
		"tz_id", req.Msg.TZID,
	)

	userID, sheet, err := s.begin(ctx, req.Msg, req.Msg.SheetID)
	if err != nil {
		return nil, err
	}

	dtstart, err := recurrence.ParseFloating(req.Msg.RecurrenceRule.DTStart)
	if err != nil {
		return nil, toConnectError(err)
	}

	sched, err := s.ledger.CreateSchedule(ctx, userID, sheet, ledger.ScheduleInput{
		Type:        models.TransactionType(req.Msg.Type),
		Category:    req.Msg.Category,
		Description: req.Msg.Description,
		Money:       req.Msg.Money,
		TZID:        req.Msg.TZID,
		RecurrenceRule: models.RecurrenceRule{
			Freq:     models.Frequency(req.Msg.RecurrenceRule.Freq),
			Interval: req.Msg.RecurrenceRule.Interval,
			DTStart:  dtstart,
		},
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&ScheduleResponse{Schedule: toSchedule(sched, sheet.CurrencyCode)}), nil
}

// DeleteSchedule removes a schedule.
func (s *LedgerService) DeleteSchedule(ctx context.Context, req *connect.Request[DeleteScheduleRequest]) (*connect.Response[DeleteScheduleResponse], error) {
	slog.Info("DeleteSchedule request received",
		"sheet_id", req.Msg.SheetID,
		"schedule_id", req.Msg.ScheduleID,
	)

	_, sheet, err := s.begin(ctx, req.Msg, req.Msg.SheetID)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.DeleteSchedule(ctx, sheet, req.Msg.ScheduleID); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&DeleteScheduleResponse{}), nil
}

// ProcessSchedules runs the schedule processor once and returns its report.
func (s *LedgerService) ProcessSchedules(ctx context.Context, req *connect.Request[ProcessSchedulesRequest]) (*connect.Response[ProcessSchedulesResponse], error) {
	slog.Info("ProcessSchedules request received", "user_id", middleware.GetUserID(ctx))

	if s.processor == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("schedule processing is disabled"))
	}

	report, err := s.processor.ProcessSchedules(ctx)
	if err != nil {
		slog.Error("ProcessSchedules failed", "error", err)
		return nil, toConnectError(fmt.Errorf("failed to process schedules: %w", err))
	}
	return connect.NewResponse(&ProcessSchedulesResponse{Report: report}), nil
}

func toPostingResponse(p *ledger.Posting, currencyCode string) *PostingResponse {
	return &PostingResponse{
		Transaction: toTransaction(p.Transaction, currencyCode),
		Entries:     toEntries(p.Entries, currencyCode),
		Balances:    p.Balances,
	}
}
