package tool

import "errors"

// Registration errors.
var (
	ErrEmptyToolName = errors.New("tool name must not be empty")
	ErrDuplicateTool = errors.New("tool already registered")
)

// Resolution and invocation errors. The dispatcher turns them into failed
// tool results the model can read.
var (
	ErrToolNotFound = errors.New("tool not found")
	ErrTimeout      = errors.New("tool execution timed out")
	ErrPanicked     = errors.New("tool panicked")
)
