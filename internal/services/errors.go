package services

import (
	"errors"
	"time"

	"payment-terminal/internal/api"
	"payment-terminal/internal/interfaces"
)

// WorkflowError carries a machine-checkable error code alongside the
// human-readable cause. Handlers map the code to an HTTP status.
type WorkflowError struct {
	Code string
	Err  error
}

func (e *WorkflowError) Error() string { return e.Err.Error() }

func (e *WorkflowError) Unwrap() error { return e.Err }

func workflowErr(code string, err error) *WorkflowError {
	return &WorkflowError{Code: code, Err: err}
}

// CodeOf extracts the error code, defaulting to an internal error for
// anything unclassified.
func CodeOf(err error) string {
	var we *WorkflowError
	if errors.As(err, &we) {
		return we.Code
	}
	return api.ErrorCodeInternalError
}

// Endpoints holds the per-mode remote surfaces and timing bounds.
type Endpoints struct {
	SettlementProductionURL string
	SettlementTestURL       string
	BrokerProductionURL     string
	BrokerTestURL           string
	CAProductionPath        string
	CATestPath              string
	RemoteTimeout           time.Duration
	ListenWindow            time.Duration
}

// SettlementBase returns the settlement API base URL for the mode.
func (e Endpoints) SettlementBase(mode interfaces.Mode) string {
	if mode == interfaces.ModeProduction {
		return e.SettlementProductionURL
	}
	return e.SettlementTestURL
}

// Broker returns the notification broker URL for the mode.
func (e Endpoints) Broker(mode interfaces.Mode) string {
	if mode == interfaces.ModeProduction {
		return e.BrokerProductionURL
	}
	return e.BrokerTestURL
}

// CAPath returns the preconfigured CA bundle path for the mode.
func (e Endpoints) CAPath(mode interfaces.Mode) string {
	if mode == interfaces.ModeProduction {
		return e.CAProductionPath
	}
	return e.CATestPath
}
