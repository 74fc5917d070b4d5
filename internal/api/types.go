package api

import (
	"github.com/noticeboard/board-backend/internal/jobs"
)

// Error codes returned in ErrorResponse.Code
const (
	CodeNotFound      = "NOT_FOUND"
	CodeInvalidPost   = "INVALID_POST"
	CodeInvalidQuery  = "INVALID_QUERY"
	CodeInvalidBody   = "INVALID_BODY"
	CodeInvalidID     = "INVALID_ID"
	CodeQueryFailed   = "QUERY_FAILED"
	CodeInternalError = "INTERNAL_ERROR"
)

// SourceHeader tells clients which store served a list response
const SourceHeader = "X-Board-Source"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SyncStatusDTO is the admin view of the index sync worker
type SyncStatusDTO struct {
	QueueDepth   int              `json:"queueDepth"`
	QueueDropped uint64           `json:"queueDropped"`
	Runs         uint64           `json:"runs"`
	LastRun      *jobs.SyncResult `json:"lastRun,omitempty"`
}

// HealthDTO reports each dependency checked by /readyz
type HealthDTO struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
