package absence

import "fmt"

// =============================================================================
// ABSENCE PROBLEMS - Per-day troubles attached to the insert report
// =============================================================================

// AbsenceProblem is a closed enum. Hard problems block acceptance, warnings
// never do, implementation problems abort the whole request.
type AbsenceProblem string

const (
	// Hard problems
	TwoSameCodeSameDay                AbsenceProblem = "TwoSameCodeSameDay"
	AllDayAlreadyExists               AbsenceProblem = "AllDayAlreadyExists"
	IncompatibilyTypeSameDay          AbsenceProblem = "IncompatibilyTypeSameDay"
	MinimumTimeViolated               AbsenceProblem = "MinimumTimeViolated"
	MaximumTimeExceed                 AbsenceProblem = "MaximumTimeExceed"
	LimitExceeded                     AbsenceProblem = "LimitExceeded"
	Expired                           AbsenceProblem = "Expired"
	NoChildExist                      AbsenceProblem = "NoChildExist"
	OutOfChildPeriod                  AbsenceProblem = "OutOfChildPeriod"
	OutOfForcedPeriod                 AbsenceProblem = "OutOfForcedPeriod"
	CompromisedTwoComplation          AbsenceProblem = "CompromisedTwoComplation"
	CompromisedTakableComplationGroup AbsenceProblem = "CompromisedTakableComplationGroup"
	BeforeInitialization              AbsenceProblem = "BeforeInitialization"
	NotOnHoliday                      AbsenceProblem = "NotOnHoliday"
	OrphanReplacingEscalated          AbsenceProblem = "OrphanReplacingEscalated"

	// Warnings
	ForceInsert            AbsenceProblem = "ForceInsert"
	InReperibility         AbsenceProblem = "InReperibility"
	InShift                AbsenceProblem = "InShift"
	InReperibilityOrShift  AbsenceProblem = "InReperibilityOrShift"
	OrphanReplacing        AbsenceProblem = "OrphanReplacing"
	MigrationCompatibility AbsenceProblem = "MigrationCompatibility"

	// Implementation problems
	AmbiguousChain          AbsenceProblem = "AmbiguousChain"
	MissingTakableBehaviour AbsenceProblem = "MissingTakableBehaviour"
	InconsistentLedger      AbsenceProblem = "InconsistentLedger"
)

type problemClass int

const (
	classHard problemClass = iota
	classWarning
	classImplementation
)

var problemClasses = map[AbsenceProblem]problemClass{
	TwoSameCodeSameDay:                classHard,
	AllDayAlreadyExists:               classHard,
	IncompatibilyTypeSameDay:          classHard,
	MinimumTimeViolated:               classHard,
	MaximumTimeExceed:                 classHard,
	LimitExceeded:                     classHard,
	Expired:                           classHard,
	NoChildExist:                      classHard,
	OutOfChildPeriod:                  classHard,
	OutOfForcedPeriod:                 classHard,
	CompromisedTwoComplation:          classHard,
	CompromisedTakableComplationGroup: classHard,
	BeforeInitialization:              classHard,
	NotOnHoliday:                      classHard,
	OrphanReplacingEscalated:          classHard,

	ForceInsert:            classWarning,
	InReperibility:         classWarning,
	InShift:                classWarning,
	InReperibilityOrShift:  classWarning,
	OrphanReplacing:        classWarning,
	MigrationCompatibility: classWarning,

	AmbiguousChain:          classImplementation,
	MissingTakableBehaviour: classImplementation,
	InconsistentLedger:      classImplementation,
}

// ParseAbsenceProblem returns the problem named s.
func ParseAbsenceProblem(s string) (AbsenceProblem, error) {
	p := AbsenceProblem(s)
	if _, ok := problemClasses[p]; !ok {
		return "", fmt.Errorf("unknown absence problem %q", s)
	}
	return p, nil
}

// IsWarning reports whether the problem never blocks acceptance.
func (p AbsenceProblem) IsWarning() bool { return problemClasses[p] == classWarning }

// IsImplementationProblem reports an engine-internal inconsistency.
func (p AbsenceProblem) IsImplementationProblem() bool {
	return problemClasses[p] == classImplementation
}

// IsHard reports whether the problem blocks acceptance unless forced.
func (p AbsenceProblem) IsHard() bool {
	c, ok := problemClasses[p]
	return ok && c == classHard
}

func (p AbsenceProblem) String() string { return string(p) }

// AbsenceTrouble pairs a problem with the absence it concerns: the candidate
// itself or the existing absence it conflicts with.
type AbsenceTrouble struct {
	Problem AbsenceProblem
	Absence *Absence
}

// HasBlocking reports whether any trouble is hard.
func HasBlocking(troubles []AbsenceTrouble) bool {
	for _, t := range troubles {
		if t.Problem.IsHard() {
			return true
		}
	}
	return false
}
