package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/FACorreiaa/echo-statements/internal/domain/balance"
	"github.com/FACorreiaa/echo-statements/pkg/money"
	"github.com/FACorreiaa/echo-statements/pkg/rpc"
)

// BalanceServiceName is the fully-qualified name of the balance service.
const BalanceServiceName = "statements.v1.BalanceService"

const (
	BalanceServiceGetBalanceProcedure           = "/" + BalanceServiceName + "/GetBalance"
	BalanceServiceGetBalanceHistoryProcedure    = "/" + BalanceServiceName + "/GetBalanceHistory"
	BalanceServiceRecalculateSnapshotsProcedure = "/" + BalanceServiceName + "/RecalculateSnapshots"
)

type GetBalanceRequest struct {
	AccountID string `json:"account_id"`
	Currency  string `json:"currency"`
}

type GetBalanceResponse struct {
	BalanceMinor int64  `json:"balance_minor"`
	Currency     string `json:"currency"`
	Display      string `json:"display"`
}

type GetBalanceHistoryRequest struct {
	AccountID string `json:"account_id"`
	Currency  string `json:"currency"`
	Days      int    `json:"days"`
}

type GetBalanceHistoryResponse struct {
	History *balance.HistoryResult `json:"history"`
}

// RecalculateSnapshotsRequest rebuilds snapshots taken on or after From (YYYY-MM-DD).
type RecalculateSnapshotsRequest struct {
	AccountID string `json:"account_id"`
	From      string `json:"from"`
}

type RecalculateSnapshotsResponse struct {
	Updated int `json:"updated"`
}

// BalanceHandler implements the BalanceService RPC handlers
type BalanceHandler struct {
	svc *balance.Service
}

// NewBalanceHandler creates a new balance handler
func NewBalanceHandler(svc *balance.Service) *BalanceHandler {
	return &BalanceHandler{svc: svc}
}

// Register mounts every balance procedure on mux.
func (h *BalanceHandler) Register(mux *http.ServeMux, opts ...connect.HandlerOption) string {
	rpc.Route(mux, BalanceServiceGetBalanceProcedure, h.GetBalance, opts...)
	rpc.Route(mux, BalanceServiceGetBalanceHistoryProcedure, h.GetBalanceHistory, opts...)
	rpc.Route(mux, BalanceServiceRecalculateSnapshotsProcedure, h.RecalculateSnapshots, opts...)
	return "/" + BalanceServiceName + "/"
}

// GetBalance returns the account's current balance
func (h *BalanceHandler) GetBalance(
	ctx context.Context,
	req *connect.Request[GetBalanceRequest],
) (*connect.Response[GetBalanceResponse], error) {
	accountID, err := uuid.Parse(req.Msg.AccountID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	currency, err := parseCurrency(req.Msg.Currency)
	if err != nil {
		return nil, err
	}

	total, err := h.svc.CurrentBalance(ctx, accountID, currency)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&GetBalanceResponse{
		BalanceMinor: total,
		Currency:     currency,
		Display:      money.New(total, currency).Display(),
	}), nil
}

// GetBalanceHistory returns daily balances for charts
func (h *BalanceHandler) GetBalanceHistory(
	ctx context.Context,
	req *connect.Request[GetBalanceHistoryRequest],
) (*connect.Response[GetBalanceHistoryResponse], error) {
	accountID, err := uuid.Parse(req.Msg.AccountID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	currency, err := parseCurrency(req.Msg.Currency)
	if err != nil {
		return nil, err
	}
	if req.Msg.Days < 0 || req.Msg.Days > 366 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("days must be between 0 and 366"))
	}

	result, err := h.svc.GetBalanceHistory(ctx, accountID, currency, req.Msg.Days)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&GetBalanceHistoryResponse{History: result}), nil
}

// RecalculateSnapshots rebuilds snapshot totals from a given day
func (h *BalanceHandler) RecalculateSnapshots(
	ctx context.Context,
	req *connect.Request[RecalculateSnapshotsRequest],
) (*connect.Response[RecalculateSnapshotsResponse], error) {
	accountID, err := uuid.Parse(req.Msg.AccountID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	from, err := time.Parse(time.DateOnly, req.Msg.From)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("from must be a YYYY-MM-DD date"))
	}

	updated, err := h.svc.Recalculate(ctx, accountID, from)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(&RecalculateSnapshotsResponse{Updated: updated}), nil
}

// parseCurrency accepts any non-empty code so rows imported as UNKNOWN stay
// reachable.
func parseCurrency(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "", connect.NewError(connect.CodeInvalidArgument, errors.New("currency is required"))
	}
	return code, nil
}
