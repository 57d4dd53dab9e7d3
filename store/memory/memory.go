// Package memory provides in-memory repositories for tests and dev.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/engine"
	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Store implements every engine repository, the holiday calendar and the
// duty roster.
type Store struct {
	mu       sync.RWMutex
	persons  map[string]engine.Person
	absences map[string][]absence.Absence // by person, sorted by date
	inits    map[initKey]absence.InitializationGroup
	holidays []generic.Holiday
	onCall   map[dutyKey]bool
	inShift  map[dutyKey]bool
}

type initKey struct {
	PersonID string
	Group    string
}

type dutyKey struct {
	PersonID string
	Day      string
}

func New() *Store {
	return &Store{
		persons:  make(map[string]engine.Person),
		absences: make(map[string][]absence.Absence),
		inits:    make(map[initKey]absence.InitializationGroup),
		onCall:   make(map[dutyKey]bool),
		inShift:  make(map[dutyKey]bool),
	}
}

// =============================================================================
// PERSONS
// =============================================================================

func (s *Store) SavePerson(_ context.Context, p engine.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persons[p.ID] = p
	return nil
}

func (s *Store) Person(_ context.Context, id string) (*engine.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.persons[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrPersonNotFound, id)
	}
	p.Contracts = append([]engine.Contract(nil), p.Contracts...)
	p.Children = append([]engine.Child(nil), p.Children...)
	return &p, nil
}

// =============================================================================
// ABSENCES
// =============================================================================

// SaveAbsences stores a batch atomically. A code already present for the
// same person and day rejects the whole batch.
func (s *Store) SaveAbsences(_ context.Context, absences []absence.Absence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check the whole batch first (atomic check)
	seen := map[string]bool{}
	for _, a := range absences {
		k := a.PersonID + "|" + a.Date.String() + "|" + a.Code()
		if seen[k] || s.hasLocked(a.PersonID, a.Date, a.Code()) {
			return fmt.Errorf("%w: %s on %s", generic.ErrDuplicateAbsence, a.Code(), a.Date)
		}
		seen[k] = true
	}

	for _, a := range absences {
		s.insertLocked(a)
	}
	return nil
}

func (s *Store) hasLocked(personID string, day generic.TimePoint, code string) bool {
	for _, a := range s.absences[personID] {
		if a.Date.Equal(day) && a.Code() == code {
			return true
		}
	}
	return false
}

func (s *Store) insertLocked(a absence.Absence) {
	list := s.absences[a.PersonID]

	// Binary search for insertion point
	i := sort.Search(len(list), func(i int) bool {
		return list[i].Date.After(a.Date)
	})

	list = append(list, absence.Absence{})
	copy(list[i+1:], list[i:])
	list[i] = a
	s.absences[a.PersonID] = list
}

// AbsencesInRange returns copies; types are shared catalog pointers.
func (s *Store) AbsencesInRange(_ context.Context, personID string, from, to generic.TimePoint) ([]absence.Absence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []absence.Absence
	for _, a := range s.absences[personID] {
		if from.BeforeOrEqual(a.Date) && a.Date.BeforeOrEqual(to) {
			a.Troubles = append([]absence.AbsenceTrouble(nil), a.Troubles...)
			result = append(result, a)
		}
	}
	return result, nil
}

// =============================================================================
// INITIALIZATIONS
// =============================================================================

func (s *Store) SaveInitialization(_ context.Context, init absence.InitializationGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inits[initKey{PersonID: init.PersonID, Group: init.GroupName}] = init
	return nil
}

func (s *Store) Initialization(_ context.Context, personID, group string) (*absence.InitializationGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	init, ok := s.inits[initKey{PersonID: personID, Group: group}]
	if !ok {
		return nil, nil
	}
	return &init, nil
}

// =============================================================================
// CALENDAR & ROSTER
// =============================================================================

func (s *Store) AddHoliday(h generic.Holiday) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holidays = append(s.holidays, h)
}

func (s *Store) IsHoliday(day generic.TimePoint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.holidays {
		if h.Matches(day) {
			return true
		}
	}
	return false
}

func (s *Store) SetOnCall(personID string, day generic.TimePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCall[dutyKey{PersonID: personID, Day: day.String()}] = true
}

func (s *Store) SetInShift(personID string, day generic.TimePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inShift[dutyKey{PersonID: personID, Day: day.String()}] = true
}

func (s *Store) OnCall(_ context.Context, personID string, day generic.TimePoint) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.onCall[dutyKey{PersonID: personID, Day: day.String()}], nil
}

func (s *Store) InShift(_ context.Context, personID string, day generic.TimePoint) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inShift[dutyKey{PersonID: personID, Day: day.String()}], nil
}

var (
	_ engine.PersonRepository              = (*Store)(nil)
	_ engine.AbsenceRepository             = (*Store)(nil)
	_ engine.InitializationGroupRepository = (*Store)(nil)
	_ engine.DutyRoster                    = (*Store)(nil)
	_ generic.HolidayCalendar              = (*Store)(nil)
)
