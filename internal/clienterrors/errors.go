package clienterrors

import (
	"errors"
	"fmt"
	"strings"
)

const (
	ErrorArgument          ClientErrorCode = 1
	ErrorUnknownProvider   ClientErrorCode = 2
	ErrorMissingParameter  ClientErrorCode = 3
	ErrorUnsupportedFormat ClientErrorCode = 4
	ErrorProviderCommand   ClientErrorCode = 5

	ErrorOther ClientErrorCode = 20
)

type ClientErrorCode int

// Process exit statuses. ProviderCommandError propagates the exit status of
// the failed command instead.
const (
	ExitFailure     = 1
	ExitValidation  = 2
	ExitUnsupported = 3
)

type Error struct {
	ID      ClientErrorCode `json:"id"`
	Reason  string          `json:"reason"`
	Details interface{}     `json:"details,omitempty"`
}

func (e *Error) String() string {
	if e.Details == nil {
		return fmt.Sprintf("Code: %d, Reason: %s", e.ID, e.Reason)
	}
	return fmt.Sprintf("Code: %d, Reason: %s, Details: %v", e.ID, e.Reason, e.Details)
}

func ClientError(code ClientErrorCode, reason string, details interface{}) *Error {
	return &Error{
		ID:      code,
		Reason:  reason,
		Details: details,
	}
}

// ArgumentError reports missing or invalid command line flags.
type ArgumentError struct {
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments: %s", e.Reason)
}

func NewArgumentError(format string, args ...interface{}) error {
	return &ArgumentError{Reason: fmt.Sprintf(format, args...)}
}

type UnknownProviderError struct {
	Provider string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown cloud provider %q, must be one of: aws, azure, gcp", e.Provider)
}

// MissingParameterError lists every provider specific parameter that was
// required but not given.
type MissingParameterError struct {
	Provider   string
	Parameters []string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("%s requires the following parameters: %s", e.Provider, strings.Join(e.Parameters, ", "))
}

type UnsupportedFormatError struct {
	Path     string
	Provider string
	Reason   string
}

func (e *UnsupportedFormatError) Error() string {
	msg := fmt.Sprintf("unsupported image format for %s: %s", e.Provider, e.Path)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// ProviderCommandError is returned when a cloud CLI exits with a non-zero
// status or a cloud API call fails. ExitCode is 0 when there was no process
// exit status to propagate.
type ProviderCommandError struct {
	Argv     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProviderCommandError) Error() string {
	var b strings.Builder
	if len(e.Argv) > 0 {
		fmt.Fprintf(&b, "command %q", strings.Join(e.Argv, " "))
	} else {
		b.WriteString("cloud API call")
	}
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " exited with status %d", e.ExitCode)
	} else {
		b.WriteString(" failed")
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		fmt.Fprintf(&b, ": %s", stderr)
	}
	return b.String()
}

func (e *ProviderCommandError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by the importer to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var argErr *ArgumentError
	var providerErr *UnknownProviderError
	var paramErr *MissingParameterError
	var formatErr *UnsupportedFormatError
	var cmdErr *ProviderCommandError
	switch {
	case errors.As(err, &argErr), errors.As(err, &providerErr), errors.As(err, &paramErr):
		return ExitValidation
	case errors.As(err, &formatErr):
		return ExitUnsupported
	case errors.As(err, &cmdErr):
		if cmdErr.ExitCode > 0 {
			return cmdErr.ExitCode
		}
		return ExitFailure
	default:
		return ExitFailure
	}
}

// FromError converts err into the Error recorded in a target result.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var argErr *ArgumentError
	var providerErr *UnknownProviderError
	var paramErr *MissingParameterError
	var formatErr *UnsupportedFormatError
	var cmdErr *ProviderCommandError
	switch {
	case errors.As(err, &argErr):
		return ClientError(ErrorArgument, err.Error(), nil)
	case errors.As(err, &providerErr):
		return ClientError(ErrorUnknownProvider, err.Error(), providerErr.Provider)
	case errors.As(err, &paramErr):
		return ClientError(ErrorMissingParameter, err.Error(), paramErr.Parameters)
	case errors.As(err, &formatErr):
		return ClientError(ErrorUnsupportedFormat, err.Error(), formatErr.Path)
	case errors.As(err, &cmdErr):
		return ClientError(ErrorProviderCommand, err.Error(), map[string]interface{}{
			"argv":      cmdErr.Argv,
			"exit_code": cmdErr.ExitCode,
			"stderr":    strings.TrimSpace(cmdErr.Stderr),
		})
	default:
		return ClientError(ErrorOther, err.Error(), nil)
	}
}
