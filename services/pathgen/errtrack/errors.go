// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package errtrack

import (
	"errors"
	"fmt"
)

// =============================================================================
// Kinds and Severities
// =============================================================================

// Kind classifies where in the pipeline a failure originated.
type Kind string

const (
	// KindInputValidation marks malformed request parameters. Never retried.
	KindInputValidation Kind = "InputValidation"

	// KindReachability marks endpoints that cannot form a viable path.
	// Never retried: the same endpoints cannot produce a different answer.
	KindReachability Kind = "Reachability"

	// KindGeneration marks an algorithmic failure mid-build. Retried, then
	// escalated to the fallback chain.
	KindGeneration Kind = "Generation"

	// KindConfiguration marks a bad theme or seed. Recovered locally with
	// defaults wherever possible.
	KindConfiguration Kind = "Configuration"

	// KindCritical marks an unexpected internal failure. Goes straight to
	// the minimal fallback tier.
	KindCritical Kind = "Critical"
)

// Kinds lists every Kind in reporting order.
var Kinds = []Kind{
	KindInputValidation,
	KindReachability,
	KindGeneration,
	KindConfiguration,
	KindCritical,
}

// IsValid reports whether k is one of the known kinds.
func (k Kind) IsValid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Retryable reports whether the retry orchestrator may re-run a build
// that failed with this kind.
func (k Kind) Retryable() bool {
	return k == KindGeneration
}

// Severity ranks how a record affects acceptance and logging.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// rank orders severities for comparisons.
func (s Severity) rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityWarning:
		return 1
	case SeverityError:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 1
	}
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.rank() >= other.rank()
}

// =============================================================================
// Error Type
// =============================================================================

// Error is a classified pipeline failure.
//
// # Description
//
// Every component that can fail returns an *Error so the engine can route
// it to the tracker and pick the right recovery (retry, default, fallback)
// from Kind alone. Supports errors.Is/As through Unwrap.
//
// # Example
//
//	err := errtrack.New(errtrack.KindReachability, errtrack.SeverityError,
//	    "level-3", "endpoints 5.0 apart, need at least 20.0")
//	if errtrack.KindOf(err) == errtrack.KindReachability {
//	    // skip retries
//	}
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Severity controls acceptance and log level.
	Severity Severity

	// Context names the call site or request (level id, stage).
	Context string

	// Message is the human readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// New creates an *Error without an underlying cause.
func New(kind Kind, severity Severity, context, message string) *Error {
	return &Error{Kind: kind, Severity: severity, Context: context, Message: message}
}

// Newf is New with a formatted message.
func Newf(kind Kind, severity Severity, context, format string, args ...any) *Error {
	return New(kind, severity, context, fmt.Sprintf(format, args...))
}

// Wrap classifies an existing error. Returns nil when err is nil.
func Wrap(kind Kind, severity Severity, context string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Severity: severity, Context: context, Message: err.Error(), Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Context, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same Kind, or a sentinel wrapped in Err.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
	}
	return false
}

// KindOf returns the Kind of the first *Error in err's chain.
//
// Errors that were never classified are reported as KindCritical: they
// escaped every component's own handling.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindCritical
}

// SeverityOf returns the Severity of the first *Error in err's chain,
// or SeverityCritical for unclassified errors.
func SeverityOf(err error) Severity {
	var e *Error
	if errors.As(err, &e) {
		return e.Severity
	}
	return SeverityCritical
}
