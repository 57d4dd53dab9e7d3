/*
errors.go - Centralized error types for the absence engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Packages wrap these with fmt.Errorf("...: %w", err) to add context.

ERROR CATEGORIES:
  1. Caller errors - unknown code/group/person, malformed request.
     Surfaced immediately, never retried.
  2. Implementation problems - internal invariant breaks (ambiguous chain,
     missing behaviour). Abort the whole request.
  3. Store errors - persistence failures.

  Business-rule violations are NOT errors: they are attached per day to the
  insert report as troubles (see absence/problem.go).

USAGE:
  if generic.IsNotFound(err) {
      // 404
  }

SEE ALSO:
  - absence/problem.go: per-day problems
  - engine/insert.go: where implementation problems abort a request
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAbsenceTypeNotFound is returned when a requested code is not in the catalog.
	ErrAbsenceTypeNotFound = errors.New("absence type not found")

	// ErrGroupNotFound is returned when a requested group is not in the catalog.
	ErrGroupNotFound = errors.New("group absence type not found")

	// ErrCategoryNotFound is returned when a requested category is not in the catalog.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrPersonNotFound is returned when the person repository has no such person.
	ErrPersonNotFound = errors.New("person not found")

	// ErrNoGoverningGroup is returned when a code belongs to no selectable group.
	ErrNoGoverningGroup = errors.New("no group governs the absence type")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidRequest is returned when a request names neither a code nor
	// an automatic group.
	ErrInvalidRequest = errors.New("invalid absence request")

	// ErrRequestTooLong is returned when a request spans more days than allowed.
	ErrRequestTooLong = errors.New("request spans too many days")

	// ErrJustifiedTypeNotPermitted is returned when the requested justified
	// type is not in the absence type's permitted set.
	ErrJustifiedTypeNotPermitted = errors.New("justified type not permitted for absence type")

	// ErrMissingMinutes is returned when a specified-minutes justified type
	// comes without a minute value.
	ErrMissingMinutes = errors.New("justified type requires minutes")

	// ErrInvalidDefinition is returned when catalog definitions are malformed.
	ErrInvalidDefinition = errors.New("invalid catalog definition")

	// ErrChainCycle is returned at catalog load when next-group links loop.
	ErrChainCycle = errors.New("group chain contains a cycle")

	// ErrAmbiguousChain is returned when a chain node has several predecessors.
	ErrAmbiguousChain = errors.New("group chain is ambiguous: several previous groups")

	// ErrImplementationProblem marks internal invariant breaks.
	ErrImplementationProblem = errors.New("implementation problem")

	// ErrSimulatedReport is returned when committing a simulation report.
	ErrSimulatedReport = errors.New("simulated reports cannot be committed")

	// ErrNothingToCommit is returned when a report has no accepted rows.
	ErrNothingToCommit = errors.New("report has no accepted rows")

	// ErrAlreadyCommitted is returned when a report is committed twice.
	ErrAlreadyCommitted = errors.New("report already committed")

	// ErrDuplicateAbsence is returned by stores when the same code is stored
	// twice for a person on the same day.
	ErrDuplicateAbsence = errors.New("duplicate absence code on same day")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ImplementationError describes an engine-internal inconsistency detected
// while resolving a request. The whole request is aborted.
type ImplementationError struct {
	Problem string // e.g. "AmbiguousChain"
	Group   string
	Detail  string
	Err     error
}

func (e *ImplementationError) Error() string {
	msg := fmt.Sprintf("implementation problem %s", e.Problem)
	if e.Group != "" {
		msg += " in group " + e.Group
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ImplementationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrImplementationProblem, e.Err}
	}
	return []error{ErrImplementationProblem}
}

// DefinitionError locates a malformed catalog definition.
type DefinitionError struct {
	Kind string // "absence_type", "group", ...
	Name string
	Msg  string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("%s %q: %s", e.Kind, e.Name, e.Msg)
}

func (e *DefinitionError) Unwrap() error {
	return ErrInvalidDefinition
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrRequestTooLong) ||
		errors.Is(err, ErrJustifiedTypeNotPermitted) ||
		errors.Is(err, ErrMissingMinutes) ||
		errors.Is(err, ErrNoGoverningGroup) ||
		errors.Is(err, ErrSimulatedReport) ||
		errors.Is(err, ErrNothingToCommit) ||
		errors.Is(err, ErrAlreadyCommitted) ||
		errors.Is(err, ErrDuplicateAbsence)
}

// IsNotFound returns true if the error indicates a missing catalog entry or person.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAbsenceTypeNotFound) ||
		errors.Is(err, ErrGroupNotFound) ||
		errors.Is(err, ErrCategoryNotFound) ||
		errors.Is(err, ErrPersonNotFound)
}

// IsImplementationProblem returns true for internal invariant breaks.
func IsImplementationProblem(err error) bool {
	return errors.Is(err, ErrImplementationProblem)
}
