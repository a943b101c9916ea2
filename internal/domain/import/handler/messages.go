package handler

import (
	"github.com/FACorreiaa/echo-statements/internal/domain/import/repository"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/service"
)

// ImportServiceName is the fully-qualified name of the import service.
const ImportServiceName = "statements.v1.ImportService"

// Procedure paths served by ImportHandler.
const (
	ImportServiceAnalyzeStatementProcedure  = "/" + ImportServiceName + "/AnalyzeStatement"
	ImportServiceImportStatementsProcedure  = "/" + ImportServiceName + "/ImportStatements"
	ImportServiceReviewTransactionProcedure = "/" + ImportServiceName + "/ReviewTransaction"
	ImportServiceGetImportBatchProcedure    = "/" + ImportServiceName + "/GetImportBatch"
	ImportServiceApproveBatchProcedure      = "/" + ImportServiceName + "/ApproveBatch"
)

// UploadedFile is a statement sent inline. Content is base64 in JSON.
type UploadedFile struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

type AnalyzeStatementRequest struct {
	File UploadedFile `json:"file"`
}

type AnalyzeStatementResponse struct {
	Analysis *service.AnalyzeResult `json:"analysis"`
}

type ImportStatementsRequest struct {
	AccountID string         `json:"account_id"`
	Files     []UploadedFile `json:"files"`
}

type ImportStatementsResponse struct {
	Result *service.ImportResult `json:"result"`
}

type ReviewTransactionRequest struct {
	TransactionID string                  `json:"transaction_id"`
	Action        string                  `json:"action"`
	Edit          service.TransactionEdit `json:"edit"`
}

type ReviewTransactionResponse struct {
	Transaction *repository.Transaction `json:"transaction"`
}

type GetImportBatchRequest struct {
	BatchID string `json:"batch_id"`
}

type GetImportBatchResponse struct {
	Batch *service.BatchView `json:"batch"`
}

type ApproveBatchRequest struct {
	BatchID string `json:"batch_id"`
}

type ApproveBatchResponse struct {
	Approved int `json:"approved"`
}
