package domain

import "errors"

// Domain errors
var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrBankRecordNotFound  = errors.New("bank record not found")
	ErrUnknownBankSource   = errors.New("unknown bank source")
	ErrAlreadyReconciled   = errors.New("bank record already reconciled")
	ErrInternalError       = errors.New("internal error")
)
