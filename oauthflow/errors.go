package oauthflow

import (
	"errors"
	"fmt"
)

// Code classifies the terminal outcome of a failed login flow. Callers branch
// on the code to drive user-facing messaging ("enable popups" vs "login
// cancelled" vs "something went wrong").
type Code string

const (
	CodeConfiguration   Code = "CONFIGURATION"
	CodePopupBlocked    Code = "POPUP_BLOCKED"
	CodeOAuthError      Code = "OAUTH_ERROR"
	CodeCancelled       Code = "CANCELLED"
	CodeTimeout         Code = "TIMEOUT"
	CodeNetworkError    Code = "NETWORK_ERROR"
	CodeLoginInProgress Code = "LOGIN_IN_PROGRESS"
)

// FlowError is the typed error every flow-terminal failure is reported as.
type FlowError struct {
	Code   Code
	Reason string
}

func (e *FlowError) Error() string {
	if e.Reason == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func newFlowError(code Code, reason string) *FlowError {
	return &FlowError{Code: code, Reason: reason}
}

// CodeOf returns the flow error code of err, or the empty code if err is not
// a FlowError.
func CodeOf(err error) Code {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}
