package cvs

import "errors"

var (
	ErrNotFound      = errors.New("cv not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrQuotaExceeded = errors.New("cv quota exceeded")
)

const (
	ErrorCodeValidation = "VALIDATION_ERROR"
	ErrorCodeQuota      = "QUOTA_EXCEEDED"
	ErrorCodeExtraction = "EXTRACTION_ERROR"
	ErrorCodeLLM        = "LLM_ERROR"
	ErrorCodeStorage    = "STORAGE_ERROR"
	ErrorCodeInternal   = "INTERNAL_ERROR"
)
