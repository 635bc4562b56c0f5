package sandbox

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey is returned by Open when no key is supplied.
	ErrMissingAPIKey = errors.New("sandbox API key is missing")

	// ErrClosed is returned by operations on a sandbox after Close.
	ErrClosed = errors.New("sandbox closed")
)

// FileWriteError indicates the dataset could not be written into the
// sandbox workspace.
type FileWriteError struct {
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *FileWriteError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("write %s: %v", e.Path, e.Err)
	case e.Message != "":
		return fmt.Sprintf("write %s: status=%d message=%s", e.Path, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("write %s: status=%d", e.Path, e.StatusCode)
	}
}

func (e *FileWriteError) Unwrap() error { return e.Err }

// ExecutionError is an exception raised by the submitted code itself.
type ExecutionError struct {
	Name      string
	Value     string
	Traceback string
}

func (e *ExecutionError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("execution raised %s", e.Name)
	}
	return fmt.Sprintf("execution raised %s: %s", e.Name, e.Value)
}

// InterpreterError covers failures of the sandbox service or interpreter
// process: unreachable endpoints, non-2xx responses, broken streams.
type InterpreterError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *InterpreterError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("sandbox %s: %v", e.Op, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("sandbox %s: status=%d message=%s", e.Op, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("sandbox %s: %s", e.Op, e.Message)
	}
}

func (e *InterpreterError) Unwrap() error { return e.Err }
