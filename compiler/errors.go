package compiler

import (
	"errors"
	"fmt"
)

// ErrEmptyTask is returned when the task description is blank.
var ErrEmptyTask = errors.New("task description is empty")

// StageError is a fatal failure of one pipeline stage. Err is an
// *ai.TransportError or a context error.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
