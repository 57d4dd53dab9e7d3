/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	people for demos: contracts, working time, children, baselines and a
	holiday calendar. The catalog itself is loaded at startup and is not
	touched by scenarios.

AVAILABLE SCENARIOS:

	full-time:        One full-time employee, no children
	new-parent:       Employee with a newborn, for child age-band groups
	part-time-hire:   Half-time employee hired mid-year (prorated limits)
	baseline:         Employee with an initialization on every initializable group

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Add the default holidays
 3. Create people
 4. Record baselines when the scenario needs them

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "new-parent"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: store and engine handlers
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/engine"
	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "full-time",
		Name:        "Full Time",
		Description: "Full-time employee with an open-ended contract and no children",
	},
	{
		ID:          "new-parent",
		Name:        "New Parent",
		Description: "Full-time employee whose first child was born last year",
	},
	{
		ID:          "part-time-hire",
		Name:        "Part-Time Hire",
		Description: "Half-time employee hired on July 1st, limits prorated twice",
	},
	{
		ID:          "baseline",
		Name:        "Baseline",
		Description: "Employee migrated mid-year with a baseline on every initializable group",
	},
}

// LoadScenarioRequest names the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.loadScenario(r.Context(), req.ScenarioID, generic.Today().Year()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errUnknownScenario) {
			status = http.StatusBadRequest
		}
		writeError(w, status, "Failed to load scenario", err)
		return
	}

	h.logger.Info("scenario loaded", "scenario", req.ScenarioID)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// ResetDatabase clears every person, absence, baseline and holiday.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

var errUnknownScenario = errors.New("unknown scenario")

// loadScenario seeds the store for a scenario anchored on year.
func (h *Handler) loadScenario(ctx context.Context, id string, year int) error {
	loaders := map[string]func(context.Context, int) error{
		"full-time":      h.loadFullTimeScenario,
		"new-parent":     h.loadNewParentScenario,
		"part-time-hire": h.loadPartTimeHireScenario,
		"baseline":       h.loadBaselineScenario,
	}
	load, ok := loaders[id]
	if !ok {
		return errUnknownScenario
	}

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := h.addDefaultHolidays(ctx); err != nil {
		return err
	}
	if err := load(ctx, year); err != nil {
		return err
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) addDefaultHolidays(ctx context.Context) error {
	for _, hol := range []generic.Holiday{
		{Date: generic.NewTimePoint(2000, time.January, 1), Name: "New Year's Day", Recurring: true},
		{Date: generic.NewTimePoint(2000, time.May, 1), Name: "Labour Day", Recurring: true},
		{Date: generic.NewTimePoint(2000, time.August, 15), Name: "Assumption", Recurring: true},
		{Date: generic.NewTimePoint(2000, time.December, 25), Name: "Christmas Day", Recurring: true},
		{Date: generic.NewTimePoint(2000, time.December, 26), Name: "Boxing Day", Recurring: true},
	} {
		if err := h.Store.SaveHoliday(ctx, hol); err != nil {
			return fmt.Errorf("save holiday %s: %w", hol.Name, err)
		}
	}
	return nil
}

func fullTimer(id, name string, hired generic.TimePoint) engine.Person {
	return engine.Person{
		ID:                 id,
		Name:               name,
		WorkingTimePercent: 100,
		DailyMinutes:       432,
		Contracts:          []engine.Contract{{Begin: hired}},
	}
}

func (h *Handler) loadFullTimeScenario(ctx context.Context, year int) error {
	return h.Store.SavePerson(ctx, fullTimer("alice", "Alice Martin", generic.NewTimePoint(year-3, time.September, 1)))
}

func (h *Handler) loadNewParentScenario(ctx context.Context, year int) error {
	p := fullTimer("bruno", "Bruno Rossi", generic.NewTimePoint(year-5, time.March, 1))
	p.Children = []engine.Child{{Name: "Giulia", BirthDate: generic.NewTimePoint(year-1, time.October, 12)}}
	return h.Store.SavePerson(ctx, p)
}

func (h *Handler) loadPartTimeHireScenario(ctx context.Context, year int) error {
	p := fullTimer("chiara", "Chiara Bianchi", generic.NewTimePoint(year, time.July, 1))
	p.WorkingTimePercent = 50
	return h.Store.SavePerson(ctx, p)
}

func (h *Handler) loadBaselineScenario(ctx context.Context, year int) error {
	p := fullTimer("dario", "Dario Verdi", generic.NewTimePoint(year-10, time.January, 1))
	if err := h.Store.SavePerson(ctx, p); err != nil {
		return err
	}

	baseline := generic.NewTimePoint(year, time.April, 30)
	for _, g := range h.Engine.Catalog().Groups() {
		if !g.Initializable {
			continue
		}
		init := absence.InitializationGroup{PersonID: p.ID, GroupName: g.Name, Date: baseline}
		switch {
		case g.Pattern == absence.PatternCompensatoryRestCnr:
			last, current := 600, 240
			init.ResidualMinutesLastYear = &last
			init.ResidualMinutesCurrentYear = &current
		case g.AmountType() == absence.AmountMinutes:
			minutes := 180
			init.MinutesInput = &minutes
		default:
			units := decimal.NewFromInt(3)
			init.UnitsInput = &units
			if g.Pattern == absence.PatternProgrammed {
				total := decimal.NewFromInt(20)
				init.TakableTotal = &total
			}
			if g.Pattern == absence.PatternVacationsCnr {
				init.VacationYear = &year
			}
		}
		if err := h.Store.SaveInitialization(ctx, init); err != nil {
			return fmt.Errorf("save initialization for %s: %w", g.Name, err)
		}
	}
	return nil
}
