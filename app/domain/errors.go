package domain

import (
	"errors"
	"fmt"
)

// Shared error kinds. Backends and the orchestrator wrap these with
// fmt.Errorf("%w: ...") so callers can branch with errors.Is.
var (
	ErrAuthentication   = errors.New("authentication failed")
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrRateLimited      = errors.New("rate limited")
	ErrClone            = errors.New("clone failed")
	ErrPush             = errors.New("push failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// BackendError carries a backend-specific failure that maps to none of the
// shared kinds.
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// UnitError attributes a failure to one (team, repo) unit of work.
type UnitError struct {
	TeamName string
	RepoName string
	Err      error
}

func (e UnitError) Error() string {
	return fmt.Sprintf("%s/%s: %v", e.TeamName, e.RepoName, e.Err)
}

func (e UnitError) Unwrap() error { return e.Err }
