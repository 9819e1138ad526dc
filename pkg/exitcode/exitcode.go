// Package exitcode provides standardized exit codes for ppackage
package exitcode

import (
	"errors"
	"io/fs"
)

// Exit codes for the ppackage CLI
const (
	Success           = 0
	GeneralError      = 1
	ConfigError       = 2
	ValidationError   = 3
	FileSystemError   = 4
	PermissionError   = 6
	UnsupportedFormat = 8
	GitError          = 10
)

// Error attaches an exit code to a failure.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Wrap returns err carrying code. A nil err stays nil.
func Wrap(code int, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

// Of returns the exit code for err: the code of the first *Error in its
// chain, else a file system code for fs errors, else GeneralError.
func Of(err error) int {
	var coded *Error
	switch {
	case err == nil:
		return Success
	case errors.As(err, &coded):
		return coded.Code
	case errors.Is(err, fs.ErrPermission):
		return PermissionError
	case errors.Is(err, fs.ErrNotExist):
		return FileSystemError
	default:
		return GeneralError
	}
}

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case ConfigError:
		return "Configuration error"
	case ValidationError:
		return "Validation error"
	case FileSystemError:
		return "File system error"
	case PermissionError:
		return "Permission error"
	case UnsupportedFormat:
		return "Unsupported format"
	case GitError:
		return "Git error"
	default:
		return "Unknown error"
	}
}
