package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/FACorreiaa/echo-statements/internal/domain/import/parser"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/echo-statements/internal/domain/import/service"
	"github.com/FACorreiaa/echo-statements/pkg/rpc"
)

// Limits bounds what a single request may upload.
type Limits struct {
	MaxFileBytes int64
	MaxFiles     int
}

// ImportHandler handles Import service RPCs
type ImportHandler struct {
	importSvc *importservice.ImportService
	limits    Limits
	logger    *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(importSvc *importservice.ImportService, limits Limits, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		importSvc: importSvc,
		limits:    limits,
		logger:    logger,
	}
}

// Register mounts every import procedure on mux.
func (h *ImportHandler) Register(mux *http.ServeMux, opts ...connect.HandlerOption) string {
	rpc.Route(mux, ImportServiceAnalyzeStatementProcedure, h.AnalyzeStatement, opts...)
	rpc.Route(mux, ImportServiceImportStatementsProcedure, h.ImportStatements, opts...)
	rpc.Route(mux, ImportServiceReviewTransactionProcedure, h.ReviewTransaction, opts...)
	rpc.Route(mux, ImportServiceGetImportBatchProcedure, h.GetImportBatch, opts...)
	rpc.Route(mux, ImportServiceApproveBatchProcedure, h.ApproveBatch, opts...)
	return "/" + ImportServiceName + "/"
}

// AnalyzeStatement parses one file without persisting anything.
func (h *ImportHandler) AnalyzeStatement(ctx context.Context, req *connect.Request[AnalyzeStatementRequest]) (*connect.Response[AnalyzeStatementResponse], error) {
	if err := h.checkFiles([]UploadedFile{req.Msg.File}); err != nil {
		return nil, err
	}

	result, err := h.importSvc.Analyze(ctx, parser.File{Name: req.Msg.File.Name, Data: req.Msg.File.Content})
	if err != nil {
		h.logger.Error("failed to analyze statement", slog.String("file", req.Msg.File.Name), slog.Any("error", err))
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&AnalyzeStatementResponse{Analysis: result}), nil
}

// ImportStatements parses the files and stores their rows as a batch pending review.
func (h *ImportHandler) ImportStatements(ctx context.Context, req *connect.Request[ImportStatementsRequest]) (*connect.Response[ImportStatementsResponse], error) {
	accountID, err := parseID("account_id", req.Msg.AccountID)
	if err != nil {
		return nil, err
	}
	if err := h.checkFiles(req.Msg.Files); err != nil {
		return nil, err
	}

	files := make([]parser.File, len(req.Msg.Files))
	for i, f := range req.Msg.Files {
		files[i] = parser.File{Name: f.Name, Data: f.Content}
	}

	result, err := h.importSvc.ImportFiles(ctx, accountID, files)
	if err != nil {
		h.logger.Error("failed to import statements",
			slog.String("account_id", accountID.String()),
			slog.Int("files", len(files)),
			slog.Any("error", err))
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ImportStatementsResponse{Result: result}), nil
}

// ReviewTransaction approves, rejects or edits one pending row.
func (h *ImportHandler) ReviewTransaction(ctx context.Context, req *connect.Request[ReviewTransactionRequest]) (*connect.Response[ReviewTransactionResponse], error) {
	txID, err := parseID("transaction_id", req.Msg.TransactionID)
	if err != nil {
		return nil, err
	}

	tx, err := h.importSvc.ReviewTransaction(ctx, importservice.ReviewRequest{
		TransactionID: txID,
		Action:        importservice.ReviewAction(req.Msg.Action),
		Edit:          req.Msg.Edit,
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ReviewTransactionResponse{Transaction: tx}), nil
}

// GetImportBatch returns a batch with its rows.
func (h *ImportHandler) GetImportBatch(ctx context.Context, req *connect.Request[GetImportBatchRequest]) (*connect.Response[GetImportBatchResponse], error) {
	batchID, err := parseID("batch_id", req.Msg.BatchID)
	if err != nil {
		return nil, err
	}
	view, err := h.importSvc.GetBatch(ctx, batchID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetImportBatchResponse{Batch: view}), nil
}

// ApproveBatch approves every pending row of a batch.
func (h *ImportHandler) ApproveBatch(ctx context.Context, req *connect.Request[ApproveBatchRequest]) (*connect.Response[ApproveBatchResponse], error) {
	batchID, err := parseID("batch_id", req.Msg.BatchID)
	if err != nil {
		return nil, err
	}
	n, err := h.importSvc.ApproveBatch(ctx, batchID)
	if err != nil {
		h.logger.Error("failed to approve batch", slog.String("batch_id", batchID.String()), slog.Any("error", err))
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ApproveBatchResponse{Approved: n}), nil
}

func (h *ImportHandler) checkFiles(files []UploadedFile) error {
	if h.limits.MaxFiles > 0 && len(files) > h.limits.MaxFiles {
		return connect.NewError(connect.CodeInvalidArgument,
			fmt.Errorf("too many files: %d (max %d)", len(files), h.limits.MaxFiles))
	}
	for _, f := range files {
		if len(f.Content) == 0 {
			return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("file %q is empty", f.Name))
		}
		if h.limits.MaxFileBytes > 0 && int64(len(f.Content)) > h.limits.MaxFileBytes {
			return connect.NewError(connect.CodeInvalidArgument,
				fmt.Errorf("file %q exceeds %d bytes", f.Name, h.limits.MaxFileBytes))
		}
	}
	return nil
}

func parseID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid %s: %w", field, err))
	}
	return id, nil
}

func toConnectError(err error) error {
	switch {
	case errors.Is(err, repository.ErrBatchNotFound),
		errors.Is(err, repository.ErrTransactionNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, importservice.ErrNothingToImport),
		errors.Is(err, importservice.ErrMissingAccount),
		errors.Is(err, importservice.ErrUnreadableFile),
		errors.Is(err, importservice.ErrInvalidAction),
		errors.Is(err, importservice.ErrInvalidEdit):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, importservice.ErrAlreadyReviewed),
		errors.Is(err, importservice.ErrBatchClosed):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
