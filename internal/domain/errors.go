package domain

import "errors"

// Common errors used throughout the application.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnknownFirewall  = errors.New("firewall not found in the configuration file")
	ErrVDOMNotPermitted = errors.New("vdom not permitted for firewall")
	ErrUnreachable      = errors.New("device unreachable")
)

// Run statuses recorded in the run history.
const (
	RunStatusPending = "pending"
	RunStatusSuccess = "success"
	RunStatusPartial = "partial"
	RunStatusFailed  = "failed"
	RunStatusAborted = "aborted"
)
