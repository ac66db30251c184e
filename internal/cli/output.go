package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

// Exit codes for CLI commands.
const (
	ExitSuccess   = 0
	ExitFailure   = 1 // the operation was rejected (validation, conflict, not found)
	ExitCancelled = 2 // the token prompt was dismissed
	ExitAuth      = 3 // no usable session
)

// ExitError is an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// GetExitCode extracts the exit code from an error. Authentication failures
// map to ExitAuth; anything else that is not an ExitError is ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, model.ErrAuthenticationRequired), errors.Is(err, model.ErrAuthenticationExpired):
		return ExitAuth
	default:
		return ExitFailure
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the JSON envelope of every command result.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Findings []string `json:"findings,omitempty"`
}

// Success writes data as JSON, or text as-is in text mode.
func (f *OutputFormatter) Success(text string, data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	_, err := fmt.Fprintln(f.Writer, text)
	return err
}

// Error writes err in the configured format.
func (f *OutputFormatter) Error(err error) {
	code := model.ErrorCode(err)
	message := model.UserMessage(err)
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		code = "cancelled"
		message = exitErr.Message
	}

	var findings []string
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		for _, fd := range verr.Findings {
			findings = append(findings, fd.String())
		}
	}

	if f.Format == "json" {
		_ = json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Findings: findings},
		})
		return
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if len(findings) > 1 {
		for _, fd := range findings {
			fmt.Fprintf(f.Writer, "  - %s\n", fd)
		}
	}
}
