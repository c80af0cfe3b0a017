// Package exitcode provides standardized exit codes for assetneat
package exitcode

import "fmt"

// Exit codes for the assetneat CLI
const (
	Success     = 0
	FilesFailed = 1
	ConfigError = 2
	LedgerDrift = 3
	RunFailed   = 4
	Interrupted = 130
)

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case FilesFailed:
		return "One or more files failed"
	case ConfigError:
		return "Configuration error"
	case LedgerDrift:
		return "Hash ledger out of date"
	case RunFailed:
		return "Run could not enumerate the root"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}

// Error carries an exit code out of a command.
type Error struct {
	Code int
	Err  error
}

// New wraps err with code. A nil err uses the code description.
func New(code int, err error) *Error {
	if err == nil {
		err = fmt.Errorf("%s", String(code))
	}
	return &Error{Code: code, Err: err}
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
