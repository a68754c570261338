package branchver

import (
	"errors"
	"fmt"
)

// Kind is a stable category for errors returned by Calculate and its stages.
type Kind string

const (
	// KindConfiguration means the Options are unusable. It is reported before
	// the repository is touched.
	KindConfiguration Kind = "configuration"
	// KindRepository means the repository could not be opened or queried.
	KindRepository Kind = "repository"
	// KindDetachedHead means a branch name was needed but HEAD is detached.
	KindDetachedHead Kind = "detached_head"
	// KindBranchFormat means the branch name does not reduce to major.minor.
	KindBranchFormat Kind = "branch_format"
	// KindVersionParse means a version string is not valid semver.
	KindVersionParse Kind = "version_parse"
	// KindUnresolvedVersion means NoIncrement was requested without a
	// CurrentVersion and HEAD is not tagged, so no version can be produced.
	KindUnresolvedVersion Kind = "unresolved_version"
)

// Error is the error type returned by the engine.
type Error struct {
	Op   string // stage that failed, e.g. "branchver.ParseBranchName"
	Kind Kind
	Err  error  // wrapped cause, may be nil
	Msg  string // short context message
}

func (e *Error) Error() string {
	base := e.Msg
	if base == "" && e.Err != nil {
		base = e.Err.Error()
	} else if e.Err != nil {
		base = base + ": " + e.Err.Error()
	}
	if e.Op != "" && base != "" {
		return fmt.Sprintf("%s: %s", e.Op, base)
	}
	if e.Op != "" {
		return e.Op
	}
	return base
}

func (e *Error) Unwrap() error { return e.Err }

func newError(op string, kind Kind, msg string, args ...any) error {
	return &Error{Op: op, Kind: kind, Msg: fmt.Sprintf(msg, args...)}
}

func wrapError(op string, kind Kind, err error, msg string, args ...any) error {
	if err == nil {
		return nil
	}
	// Keep the innermost kind when a stage re-wraps an engine error.
	var existing *Error
	if errors.As(err, &existing) {
		kind = existing.Kind
	}
	return &Error{Op: op, Kind: kind, Err: err, Msg: fmt.Sprintf(msg, args...)}
}

// IsKind reports whether any error in the chain is an *Error of the provided Kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
