// Package graph implements validated mutations over a flow graph.
package graph

import (
	"errors"
	"fmt"

	"github.com/dukex/convoflow/pkg/persistence"
)

// Mutation failures. They are always returned wrapped in a *ValidationError.
var (
	ErrSelfLoop             = errors.New("edge source and target are the same node")
	ErrInvalidEndpoint      = errors.New("edges cannot target a start node or leave an end node")
	ErrDuplicateEdge        = errors.New("edge already exists")
	ErrDuplicateBranch      = errors.New("condition branch already connected")
	ErrCannotDuplicateStart = errors.New("start node cannot be duplicated")
	ErrCannotDeleteStart    = errors.New("start node cannot be deleted")
	ErrNodeNotFound         = persistence.ErrNodeNotFound
	ErrEdgeNotFound         = persistence.ErrEdgeNotFound
	ErrVersionNotFound      = persistence.ErrVersionNotFound
	ErrInvalidNodeType      = errors.New("invalid node type")
	ErrInvalidNodeData      = errors.New("invalid node data")

	// Structural invariant violations reported by Validate.
	ErrNoStartNode        = errors.New("flow has no start node")
	ErrMultipleStartNodes = errors.New("flow has more than one start node")
	ErrDanglingEdge       = errors.New("edge references a missing node")
	ErrInvalidBranchLabel = errors.New("invalid condition branch label")

	ErrInvalidVersionLabel = errors.New("invalid version label")
)

// ValidationError is a rejected mutation. The flow is left untouched when one is returned.
type ValidationError struct {
	Op      string // Operation name
	Code    string // Stable code for API responses
	Message string // Human-readable message
	Err     error  // Underlying sentinel
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newValidationError(op, code string, err error, format string, args ...any) *ValidationError {
	return &ValidationError{
		Op:      op,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// IsValidationError reports whether err is a rejected graph mutation or invariant violation.
func IsValidationError(err error) bool {
	var validationErr *ValidationError

	return errors.As(err, &validationErr)
}

// IsNotFound reports whether err refers to a missing node, edge or version.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound) || errors.Is(err, ErrEdgeNotFound) || errors.Is(err, ErrVersionNotFound)
}
