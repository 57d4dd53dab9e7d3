/*
Package sqlite provides a SQLite-backed implementation of the engine repositories.

PURPOSE:
  Persists people (with contracts and children), committed absences,
  initialization baselines, holidays and the duty roster. The engine only
  reads through it, except for SaveAbsences on commit.

INTERFACES IMPLEMENTED:
  engine.PersonRepository:              People, contracts, children
  engine.AbsenceRepository:             Committed absences
  engine.InitializationGroupRepository: Baselines per person and group
  engine.DutyRoster:                    On-call and shift days
  generic.HolidayCalendar:              Holidays (one-off and recurring)

KEY TABLES:
  persons, contracts, children: Read-only view of employees
  absences:                     One row per person, day and code
  initializations:              Baselines (person_id, group_name) unique
  holidays:                     Calendar entries
  duty_days:                    On-call / shift roster

INDEXES:
  - idx_absences_unique_day_code: Rejects the same code twice on a day
  - idx_absences_person_date:     Range loads (hot path)

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SaveAbsences writes a whole batch in
  one SQL transaction.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency.

USAGE:
  store, err := sqlite.New("./data/absences.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  eng := engine.New(cat, store, store, store,
      engine.WithHolidayCalendar(store), engine.WithDutyRoster(store))

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - engine/repository.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/engine"
	"github.com/warp/absence-engine/generic"
)

// Store implements all repositories using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Persons
	CREATE TABLE IF NOT EXISTS persons (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		working_time_percent INTEGER NOT NULL DEFAULT 100,
		daily_minutes INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS contracts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		person_id TEXT NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
		begin_date TEXT NOT NULL,
		end_date TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_contracts_person
		ON contracts(person_id);

	CREATE TABLE IF NOT EXISTS children (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		person_id TEXT NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		birth_date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_children_person
		ON children(person_id);

	-- Absences (committed rows)
	CREATE TABLE IF NOT EXISTS absences (
		id TEXT PRIMARY KEY,
		person_id TEXT NOT NULL,
		date TEXT NOT NULL,
		code TEXT NOT NULL,
		justified_type TEXT NOT NULL,
		justified_minutes INTEGER,
		time_to_recover INTEGER NOT NULL DEFAULT 0,
		expire_recover_date TEXT,
		troubles_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_absences_unique_day_code
		ON absences(person_id, date, code);
	CREATE INDEX IF NOT EXISTS idx_absences_person_date
		ON absences(person_id, date);

	-- Initialization baselines
	CREATE TABLE IF NOT EXISTS initializations (
		person_id TEXT NOT NULL,
		group_name TEXT NOT NULL,
		date TEXT NOT NULL,
		forced_begin TEXT,
		forced_end TEXT,
		units_input TEXT,
		hours_input INTEGER,
		minutes_input INTEGER,
		average_week_time INTEGER,
		takable_total TEXT,
		vacation_year INTEGER,
		residual_minutes_last_year INTEGER,
		residual_minutes_current_year INTEGER,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (person_id, group_name)
	);

	-- Holidays
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		recurring BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(date, name);

	-- Duty roster
	CREATE TABLE IF NOT EXISTS duty_days (
		person_id TEXT NOT NULL,
		date TEXT NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('on_call', 'shift')),
		PRIMARY KEY (person_id, date, kind)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PERSONS
// =============================================================================

// SavePerson upserts a person and replaces its contracts and children.
func (s *Store) SavePerson(ctx context.Context, p engine.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO persons (id, name, working_time_percent, daily_minutes, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			working_time_percent = excluded.working_time_percent,
			daily_minutes = excluded.daily_minutes
	`, p.ID, p.Name, p.WorkingTimePercent, p.DailyMinutes, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save person: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM contracts WHERE person_id = ?", p.ID); err != nil {
		return err
	}
	for _, c := range p.Contracts {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO contracts (person_id, begin_date, end_date) VALUES (?, ?, ?)",
			p.ID, c.Begin.String(), nullDate(c.End))
		if err != nil {
			return fmt.Errorf("failed to save contract: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM children WHERE person_id = ?", p.ID); err != nil {
		return err
	}
	for _, c := range p.Children {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO children (person_id, name, birth_date) VALUES (?, ?, ?)",
			p.ID, c.Name, c.BirthDate.String())
		if err != nil {
			return fmt.Errorf("failed to save child: %w", err)
		}
	}

	return tx.Commit()
}

// Person loads a person with contracts and children.
func (s *Store) Person(ctx context.Context, id string) (*engine.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p engine.Person
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, working_time_percent, daily_minutes FROM persons WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &p.WorkingTimePercent, &p.DailyMinutes)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", generic.ErrPersonNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get person: %w", err)
	}

	contracts, err := s.db.QueryContext(ctx,
		"SELECT begin_date, end_date FROM contracts WHERE person_id = ? ORDER BY begin_date", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer contracts.Close()
	for contracts.Next() {
		var begin string
		var end sql.NullString
		if err := contracts.Scan(&begin, &end); err != nil {
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		c := engine.Contract{Begin: parseDate(begin), End: parseNullDate(end)}
		p.Contracts = append(p.Contracts, c)
	}
	if err := contracts.Err(); err != nil {
		return nil, err
	}

	children, err := s.db.QueryContext(ctx,
		"SELECT name, birth_date FROM children WHERE person_id = ? ORDER BY birth_date", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer children.Close()
	for children.Next() {
		var name, birth string
		if err := children.Scan(&name, &birth); err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		p.Children = append(p.Children, engine.Child{Name: name, BirthDate: parseDate(birth)})
	}

	return &p, children.Err()
}

// =============================================================================
// ABSENCES
// =============================================================================

// SaveAbsences inserts a batch atomically.
func (s *Store) SaveAbsences(ctx context.Context, absences []absence.Absence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO absences
		(id, person_id, date, code, justified_type, justified_minutes,
		 time_to_recover, expire_recover_date, troubles_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now().UTC().Format(time.RFC3339)
	for _, a := range absences {
		troubles := make([]string, 0, len(a.Troubles))
		for _, t := range a.Troubles {
			troubles = append(troubles, string(t.Problem))
		}
		troublesJSON, _ := json.Marshal(troubles)

		_, err := tx.ExecContext(ctx, query,
			a.ID,
			a.PersonID,
			a.Date.String(),
			a.Code(),
			string(a.JustifiedType),
			nullInt(a.JustifiedMinutes),
			a.TimeToRecover,
			nullDate(a.ExpireRecoverDate),
			string(troublesJSON),
			now,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: %s on %s", generic.ErrDuplicateAbsence, a.Code(), a.Date)
			}
			return fmt.Errorf("failed to save absence: %w", err)
		}
	}

	return tx.Commit()
}

// AbsencesInRange returns absences with type stubs carrying only the code.
func (s *Store) AbsencesInRange(ctx context.Context, personID string, from, to generic.TimePoint) ([]absence.Absence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, person_id, date, code, justified_type, justified_minutes,
		       time_to_recover, expire_recover_date, troubles_json
		FROM absences
		WHERE person_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC, created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, personID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query absences: %w", err)
	}
	defer rows.Close()

	var absences []absence.Absence
	for rows.Next() {
		a, err := scanAbsence(rows)
		if err != nil {
			return nil, err
		}
		absences = append(absences, a)
	}
	return absences, rows.Err()
}

func scanAbsence(rows *sql.Rows) (absence.Absence, error) {
	var (
		a             absence.Absence
		date          string
		code          string
		justifiedType string
		minutes       sql.NullInt64
		expire        sql.NullString
		troublesJSON  sql.NullString
	)

	err := rows.Scan(&a.ID, &a.PersonID, &date, &code, &justifiedType, &minutes,
		&a.TimeToRecover, &expire, &troublesJSON)
	if err != nil {
		return a, fmt.Errorf("failed to scan absence: %w", err)
	}

	a.Date = parseDate(date)
	a.Type = &absence.AbsenceType{Code: code}
	a.JustifiedType = absence.JustifiedType(justifiedType)
	if minutes.Valid {
		m := int(minutes.Int64)
		a.JustifiedMinutes = &m
	}
	a.ExpireRecoverDate = parseNullDate(expire)

	if troublesJSON.Valid && troublesJSON.String != "" {
		var problems []string
		if err := json.Unmarshal([]byte(troublesJSON.String), &problems); err != nil {
			return a, fmt.Errorf("failed to decode troubles of absence %s: %w", a.ID, err)
		}
		for _, name := range problems {
			p, err := absence.ParseAbsenceProblem(name)
			if err != nil {
				return a, fmt.Errorf("failed to decode troubles of absence %s: %w", a.ID, err)
			}
			a.Troubles = append(a.Troubles, absence.AbsenceTrouble{Problem: p})
		}
	}
	return a, nil
}

// =============================================================================
// INITIALIZATIONS
// =============================================================================

// SaveInitialization upserts the baseline of a person for a group.
func (s *Store) SaveInitialization(ctx context.Context, init absence.InitializationGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO initializations
		(person_id, group_name, date, forced_begin, forced_end, units_input, hours_input,
		 minutes_input, average_week_time, takable_total, vacation_year,
		 residual_minutes_last_year, residual_minutes_current_year, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(person_id, group_name) DO UPDATE SET
			date = excluded.date,
			forced_begin = excluded.forced_begin,
			forced_end = excluded.forced_end,
			units_input = excluded.units_input,
			hours_input = excluded.hours_input,
			minutes_input = excluded.minutes_input,
			average_week_time = excluded.average_week_time,
			takable_total = excluded.takable_total,
			vacation_year = excluded.vacation_year,
			residual_minutes_last_year = excluded.residual_minutes_last_year,
			residual_minutes_current_year = excluded.residual_minutes_current_year,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		init.PersonID,
		init.GroupName,
		init.Date.String(),
		nullDate(init.ForcedBegin),
		nullDate(init.ForcedEnd),
		nullDecimal(init.UnitsInput),
		nullInt(init.HoursInput),
		nullInt(init.MinutesInput),
		nullInt(init.AverageWeekTime),
		nullDecimal(init.TakableTotal),
		nullInt(init.VacationYear),
		nullInt(init.ResidualMinutesLastYear),
		nullInt(init.ResidualMinutesCurrentYear),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save initialization: %w", err)
	}
	return nil
}

// Initialization returns (nil, nil) when the person has no baseline.
func (s *Store) Initialization(ctx context.Context, personID, group string) (*absence.InitializationGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT person_id, group_name, date, forced_begin, forced_end, units_input, hours_input,
		       minutes_input, average_week_time, takable_total, vacation_year,
		       residual_minutes_last_year, residual_minutes_current_year
		FROM initializations
		WHERE person_id = ? AND group_name = ?
	`
	var (
		init                       absence.InitializationGroup
		date                       string
		forcedBegin, forcedEnd     sql.NullString
		unitsInput, takableTotal   sql.NullString
		hours, minutes, avgWeek    sql.NullInt64
		vacationYear               sql.NullInt64
		residualLast, residualCurr sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, query, personID, group).Scan(
		&init.PersonID, &init.GroupName, &date, &forcedBegin, &forcedEnd, &unitsInput,
		&hours, &minutes, &avgWeek, &takableTotal, &vacationYear, &residualLast, &residualCurr,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get initialization: %w", err)
	}

	init.Date = parseDate(date)
	init.ForcedBegin = parseNullDate(forcedBegin)
	init.ForcedEnd = parseNullDate(forcedEnd)
	if init.UnitsInput, err = parseNullDecimal(unitsInput); err != nil {
		return nil, fmt.Errorf("failed to decode units_input of %s/%s: %w", personID, group, err)
	}
	if init.TakableTotal, err = parseNullDecimal(takableTotal); err != nil {
		return nil, fmt.Errorf("failed to decode takable_total of %s/%s: %w", personID, group, err)
	}
	init.HoursInput = parseNullInt(hours)
	init.MinutesInput = parseNullInt(minutes)
	init.AverageWeekTime = parseNullInt(avgWeek)
	init.VacationYear = parseNullInt(vacationYear)
	init.ResidualMinutesLastYear = parseNullInt(residualLast)
	init.ResidualMinutesCurrentYear = parseNullInt(residualCurr)
	return &init, nil
}

// =============================================================================
// HOLIDAY CALENDAR IMPLEMENTATION
// =============================================================================

// SaveHoliday saves a holiday to the database.
func (s *Store) SaveHoliday(ctx context.Context, h generic.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO holidays (id, date, name, recurring, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date, name) DO UPDATE SET
			recurring = excluded.recurring
	`

	_, err := s.db.ExecContext(ctx, query,
		h.ID,
		h.Date.String(),
		h.Name,
		h.Recurring,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// IsHoliday checks if a date is a holiday. Lookup errors count as working days.
func (s *Store) IsHoliday(date generic.TimePoint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT COUNT(*) FROM holidays
		WHERE (recurring = FALSE AND date = ?)
		   OR (recurring = TRUE AND strftime('%m-%d', date) = ?)
	`

	var count int
	err := s.db.QueryRow(query, date.String(), date.Time.Format("01-02")).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

// =============================================================================
// DUTY ROSTER
// =============================================================================

const (
	dutyOnCall = "on_call"
	dutyShift  = "shift"
)

// SaveDutyDay marks a person on call (onCall=true) or in shift on a day.
func (s *Store) SaveDutyDay(ctx context.Context, personID string, day generic.TimePoint, onCall bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind := dutyShift
	if onCall {
		kind = dutyOnCall
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO duty_days (person_id, date, kind) VALUES (?, ?, ?)",
		personID, day.String(), kind)
	return err
}

func (s *Store) OnCall(ctx context.Context, personID string, day generic.TimePoint) (bool, error) {
	return s.hasDuty(ctx, personID, day, dutyOnCall)
}

func (s *Store) InShift(ctx context.Context, personID string, day generic.TimePoint) (bool, error) {
	return s.hasDuty(ctx, personID, day, dutyShift)
}

func (s *Store) hasDuty(ctx context.Context, personID string, day generic.TimePoint, kind string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM duty_days WHERE person_id = ? AND date = ? AND kind = ?",
		personID, day.String(), kind,
	).Scan(&count)
	return count > 0, err
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"absences", "initializations", "duty_days", "holidays", "contracts", "children", "persons"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

var (
	_ engine.PersonRepository              = (*Store)(nil)
	_ engine.AbsenceRepository             = (*Store)(nil)
	_ engine.InitializationGroupRepository = (*Store)(nil)
	_ engine.DutyRoster                    = (*Store)(nil)
	_ generic.HolidayCalendar              = (*Store)(nil)
)

// Helper functions

func nullDate(tp *generic.TimePoint) sql.NullString {
	if tp == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: tp.String(), Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullDecimal(v *decimal.Decimal) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.String(), Valid: true}
}

func parseDate(s string) generic.TimePoint {
	tp, _ := generic.ParseDate(s)
	return tp
}

func parseNullDate(s sql.NullString) *generic.TimePoint {
	if !s.Valid || s.String == "" {
		return nil
	}
	tp := parseDate(s.String)
	return &tp
}

func parseNullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func parseNullDecimal(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
