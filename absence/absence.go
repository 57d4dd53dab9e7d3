package absence

import "github.com/warp/absence-engine/generic"

// =============================================================================
// ABSENCE - A single day of absence for a person
// =============================================================================

// Absence is created by the insertion pipeline on commit and is immutable
// once persisted, apart from trouble annotations.
type Absence struct {
	ID            string
	PersonID      string
	Date          generic.TimePoint
	Type          *AbsenceType
	JustifiedType JustifiedType

	// Present only for specified_minutes and specified_minutes_limit.
	JustifiedMinutes *int

	// Time-debt codes.
	TimeToRecover     int
	ExpireRecoverDate *generic.TimePoint

	Troubles []AbsenceTrouble
}

// Code is a nil-safe accessor for the absence type code.
func (a *Absence) Code() string {
	if a.Type == nil {
		return ""
	}
	return a.Type.Code
}

// JustifiedTime returns the minutes this absence justifies: the type's
// minutes for absence_type_minutes, the request's minutes for the specified
// variants, zero otherwise.
func (a *Absence) JustifiedTime() int {
	switch a.JustifiedType {
	case JustifiedAbsenceTypeMinutes:
		if a.Type == nil {
			return 0
		}
		return a.Type.JustifiedTime
	case JustifiedSpecifiedMinutes, JustifiedSpecifiedMinutesLimit:
		if a.JustifiedMinutes == nil {
			return 0
		}
		return *a.JustifiedMinutes
	}
	return 0
}

// NothingJustified is true for nothing, or absence_type_minutes on a type
// justifying zero minutes.
func (a *Absence) NothingJustified() bool {
	if a.JustifiedType == JustifiedNothing {
		return true
	}
	return a.JustifiedType == JustifiedAbsenceTypeMinutes && a.Type != nil && a.Type.JustifiedTime == 0
}

// IsAllDay reports whether the absence covers the whole working day.
func (a *Absence) IsAllDay() bool { return a.JustifiedType.IsAllDay() }

// Problems returns the problems attached to the absence.
func (a *Absence) Problems() []AbsenceProblem {
	out := make([]AbsenceProblem, 0, len(a.Troubles))
	for _, t := range a.Troubles {
		out = append(out, t.Problem)
	}
	return out
}
