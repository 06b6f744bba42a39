package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrUnknownTranslation     = errors.New("unknown translation")
	ErrLegalAgreementRequired = errors.New("legal agreement required")
	ErrJobNotFound            = errors.New("job not found")
	ErrAlreadyTerminal        = errors.New("job already finished")
	ErrInvalidMode            = errors.New("invalid processing mode")
	ErrInvalidSpeed           = errors.New("invalid speed preference")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrHistoryUnavailable     = errors.New("job history unavailable")
)
