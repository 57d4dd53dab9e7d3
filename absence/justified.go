package absence

import "fmt"

// =============================================================================
// JUSTIFIED TYPE - How much of a working day an absence justifies
// =============================================================================

// JustifiedType is a closed set of variants. Every Absence carries exactly one,
// taken from its AbsenceType's permitted set.
type JustifiedType string

const (
	JustifiedNothing                   JustifiedType = "nothing"
	JustifiedAbsenceTypeMinutes        JustifiedType = "absence_type_minutes"
	JustifiedHalfDay                   JustifiedType = "half_day"
	JustifiedAllDay                    JustifiedType = "all_day"
	JustifiedAllDayPercentage          JustifiedType = "all_day_percentage"
	JustifiedSpecifiedMinutes          JustifiedType = "specified_minutes"
	JustifiedMissingTime               JustifiedType = "missing_time"
	JustifiedAssignAllDay              JustifiedType = "assign_all_day"
	JustifiedAllDayLimit               JustifiedType = "all_day_limit"
	JustifiedSpecifiedMinutesLimit     JustifiedType = "specified_minutes_limit"
	JustifiedCompleteDayAndAddOvertime JustifiedType = "complete_day_and_add_overtime"
	JustifiedRecoverTime               JustifiedType = "recover_time"
)

// JustifiedTypes lists every variant in declaration order.
func JustifiedTypes() []JustifiedType {
	return []JustifiedType{
		JustifiedNothing,
		JustifiedAbsenceTypeMinutes,
		JustifiedHalfDay,
		JustifiedAllDay,
		JustifiedAllDayPercentage,
		JustifiedSpecifiedMinutes,
		JustifiedMissingTime,
		JustifiedAssignAllDay,
		JustifiedAllDayLimit,
		JustifiedSpecifiedMinutesLimit,
		JustifiedCompleteDayAndAddOvertime,
		JustifiedRecoverTime,
	}
}

// ParseJustifiedType returns the variant named s.
func ParseJustifiedType(s string) (JustifiedType, error) {
	jt := JustifiedType(s)
	if !jt.Valid() {
		return "", fmt.Errorf("unknown justified type %q", s)
	}
	return jt, nil
}

// Valid reports whether jt is one of the closed set of variants.
func (jt JustifiedType) Valid() bool {
	switch jt {
	case JustifiedNothing, JustifiedAbsenceTypeMinutes, JustifiedHalfDay, JustifiedAllDay,
		JustifiedAllDayPercentage, JustifiedSpecifiedMinutes, JustifiedMissingTime,
		JustifiedAssignAllDay, JustifiedAllDayLimit, JustifiedSpecifiedMinutesLimit,
		JustifiedCompleteDayAndAddOvertime, JustifiedRecoverTime:
		return true
	}
	return false
}

// IsAllDay reports whether the variant covers the whole working day.
func (jt JustifiedType) IsAllDay() bool {
	switch jt {
	case JustifiedAllDay, JustifiedAllDayPercentage, JustifiedAssignAllDay,
		JustifiedAllDayLimit, JustifiedCompleteDayAndAddOvertime:
		return true
	}
	return false
}

// RequiresMinutes reports whether the minute count comes from the request.
func (jt JustifiedType) RequiresMinutes() bool {
	return jt == JustifiedSpecifiedMinutes || jt == JustifiedSpecifiedMinutesLimit
}

func (jt JustifiedType) String() string { return string(jt) }
