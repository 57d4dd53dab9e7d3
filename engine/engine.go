/*
Package engine resolves absence requests against the rule catalog.

PURPOSE:
  Given a person, a requested code (or an automatic group) and a date
  range, decides whether each day can be taken, which group governs it, how
  much it consumes and which side effects follow (auto replacing codes,
  warnings). The result is an InsertReport; persistence happens only when
  the caller commits it.

CONTROL FLOW:
  Insertion pipeline -> group resolver (pick group, walk chain)
                     -> period builder (bound periods)
                     -> consumption ledger (replay + project)
                     -> report
  On commit, accepted rows go to the AbsenceRepository.

CONCURRENCY:
  The engine holds no shared mutable state: the catalog is read-only and
  every request gets its own projector and ledger snapshots. Requests for
  the SAME person must be serialized by the caller; two concurrent inserts
  can both observe pre-insertion totals and over-consume an allowance.

SETTINGS:
  A SettingsSource is read once per request. The snapshot is never mutated
  by the engine.

SEE ALSO:
  - insert.go: the per-day pipeline
  - ledger.go: consumption ledger
  - form.go, recap.go: read-only views
*/
package engine

import (
	"log/slog"

	"github.com/warp/absence-engine/catalog"
	"github.com/warp/absence-engine/generic"
)

// Engine wires the catalog to its external collaborators.
type Engine struct {
	catalog  *catalog.Catalog
	resolver *catalog.Resolver

	persons  PersonRepository
	absences AbsenceRepository
	inits    InitializationGroupRepository

	roster   DutyRoster
	holidays generic.HolidayCalendar
	settings SettingsSource
	logger   *slog.Logger
}

// Option configures optional collaborators.
type Option func(*Engine)

// WithDutyRoster enables on-call and shift warnings.
func WithDutyRoster(r DutyRoster) Option {
	return func(e *Engine) { e.roster = r }
}

// WithHolidayCalendar marks holidays as non-working days.
func WithHolidayCalendar(c generic.HolidayCalendar) Option {
	return func(e *Engine) { e.holidays = c }
}

// WithSettings injects the settings snapshot source.
func WithSettings(s SettingsSource) Option {
	return func(e *Engine) { e.settings = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine. inits may be nil when no group is initializable.
func New(c *catalog.Catalog, persons PersonRepository, absences AbsenceRepository, inits InitializationGroupRepository, opts ...Option) *Engine {
	e := &Engine{
		catalog:  c,
		resolver: catalog.NewResolver(c),
		persons:  persons,
		absences: absences,
		inits:    inits,
		holidays: generic.DefaultHolidayCalendar{},
		settings: StaticSettings(DefaultSettings()),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the catalog the engine resolves against.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Resolver returns the group resolver over the engine's catalog.
func (e *Engine) Resolver() *catalog.Resolver { return e.resolver }

func (e *Engine) currentSettings() Settings {
	s := e.settings.Current()
	if s.DefaultDailyMinutes <= 0 {
		s.DefaultDailyMinutes = DefaultSettings().DefaultDailyMinutes
	}
	return s
}
