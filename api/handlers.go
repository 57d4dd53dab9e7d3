/*
handlers.go - HTTP API handlers for the absence engine

PURPOSE:
  Exposes the absence engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the engine and the store.

ENDPOINTS:
  Persons:
    POST   /api/persons                              Create or replace a person
    GET    /api/persons/{id}                         Get a person
    POST   /api/persons/{id}/initializations         Record a group baseline
    POST   /api/persons/{id}/duty                    Mark an on-call or shift day

  Absences:
    GET    /api/persons/{id}/absences?from=&to=      Committed absences
    POST   /api/persons/{id}/absences/simulate       Simulate a request
    POST   /api/persons/{id}/absences                Insert and commit a request
    GET    /api/persons/{id}/absences/form           Entry form choices
    GET    /api/persons/{id}/absences/recap          Group chain status

  Catalog:
    GET    /api/catalog/groups                       All groups
    GET    /api/catalog/types/{code}                 One absence type

  Calendar:
    POST   /api/holidays                             Add a holiday

REQUEST FLOW:
  1. Parse HTTP request
  2. Convert the DTO to engine types
  3. Call the engine
  4. Serialize response
  5. Map errors to a status

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed input, caller errors
  - 404: Unknown person, group, category or code
  - 409: Duplicate absence on commit
  - 422: Insert report with blocking problems (body is the report)
  - 500: Implementation problems and store failures

CONCURRENCY:
  Inserts for one person run one at a time, so two concurrent requests
  cannot both consume the same remaining allowance.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/engine"
	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence the API needs beyond what the engine reads.
type Store interface {
	SavePerson(ctx context.Context, p engine.Person) error
	Person(ctx context.Context, id string) (*engine.Person, error)
	AbsencesInRange(ctx context.Context, personID string, from, to generic.TimePoint) ([]absence.Absence, error)
	SaveInitialization(ctx context.Context, init absence.InitializationGroup) error
	SaveHoliday(ctx context.Context, h generic.Holiday) error
	SaveDutyDay(ctx context.Context, personID string, day generic.TimePoint, onCall bool) error
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *engine.Engine
	Store  Store
	logger *slog.Logger

	locks personLocks

	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a handler over an engine and the store it reads.
func NewHandler(eng *engine.Engine, store Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Engine: eng, Store: store, logger: logger}
}

// personLocks serializes inserts per person. An entry lives while at least
// one caller holds or waits for it.
type personLocks struct {
	mu    sync.Mutex
	locks map[string]*personLock
}

type personLock struct {
	sync.Mutex
	refs int
}

func (l *personLocks) lock(personID string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*personLock)
	}
	m, ok := l.locks[personID]
	if !ok {
		m = &personLock{}
		l.locks[personID] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, personID)
		}
		l.mu.Unlock()
	}
}

// =============================================================================
// PERSON HANDLERS
// =============================================================================

// SavePerson creates or replaces a person.
// POST /api/persons
func (h *Handler) SavePerson(w http.ResponseWriter, r *http.Request) {
	var req PersonDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}
	person, err := req.toDomain()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	if err := h.Store.SavePerson(r.Context(), person); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save person", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPersonDTO(&person))
}

// GetPerson returns a single person.
// GET /api/persons/{id}
func (h *Handler) GetPerson(w http.ResponseWriter, r *http.Request) {
	person, err := h.Store.Person(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeEngineError(w, r, "Failed to get person", err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonDTO(person))
}

// SaveInitialization records a baseline for one of the person's groups.
// POST /api/persons/{id}/initializations
func (h *Handler) SaveInitialization(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	personID := chi.URLParam(r, "id")

	var req InitializationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	group, ok := h.Engine.Catalog().Group(req.Group)
	if !ok {
		writeError(w, http.StatusNotFound, "Group not found", fmt.Errorf("%w: %s", generic.ErrGroupNotFound, req.Group))
		return
	}
	if !group.Initializable {
		writeError(w, http.StatusBadRequest, "Group does not accept initializations", nil)
		return
	}
	if _, err := h.Store.Person(ctx, personID); err != nil {
		h.writeEngineError(w, r, "Failed to get person", err)
		return
	}
	init, err := req.toDomain(personID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	if err := h.Store.SaveInitialization(ctx, init); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save initialization", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// SaveDuty marks an on-call or shift day.
// POST /api/persons/{id}/duty
func (h *Handler) SaveDuty(w http.ResponseWriter, r *http.Request) {
	var req DutyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	day, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	if err := h.Store.SaveDutyDay(r.Context(), chi.URLParam(r, "id"), day, req.OnCall); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save duty day", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// =============================================================================
// ABSENCE HANDLERS
// =============================================================================

// ListAbsences returns committed absences in a date range.
// GET /api/persons/{id}/absences?from=&to=
func (h *Handler) ListAbsences(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	personID := chi.URLParam(r, "id")

	from, err := generic.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from (use YYYY-MM-DD)", err)
		return
	}
	to, err := generic.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to (use YYYY-MM-DD)", err)
		return
	}
	if _, err := h.Store.Person(ctx, personID); err != nil {
		h.writeEngineError(w, r, "Failed to get person", err)
		return
	}

	absences, err := h.Store.AbsencesInRange(ctx, personID, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list absences", err)
		return
	}
	dtos := make([]AbsenceDTO, 0, len(absences))
	for _, a := range absences {
		dtos = append(dtos, toAbsenceDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SimulateAbsence runs the insertion pipeline without persisting.
// POST /api/persons/{id}/absences/simulate
func (h *Handler) SimulateAbsence(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeAbsenceRequest(w, r)
	if !ok {
		return
	}
	report, err := h.Engine.Simulate(r.Context(), req)
	if err != nil {
		h.writeEngineError(w, r, "Simulation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(report, nil))
}

// InsertAbsence inserts and commits a request when every day is accepted.
// A report with blocking problems is returned with 422 and nothing saved.
// POST /api/persons/{id}/absences
func (h *Handler) InsertAbsence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := decodeAbsenceRequest(w, r)
	if !ok {
		return
	}

	unlock := h.locks.lock(req.PersonID)
	defer unlock()

	report, err := h.Engine.Insert(ctx, req)
	if err != nil {
		h.writeEngineError(w, r, "Insert failed", err)
		return
	}
	if !report.Accepted {
		writeJSON(w, http.StatusUnprocessableEntity, toReportDTO(report, nil))
		return
	}

	saved, err := h.Engine.Commit(ctx, report)
	if err != nil {
		h.writeEngineError(w, r, "Commit failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, toReportDTO(report, saved))
}

// GetForm returns the choices for an absence entry form.
// GET /api/persons/{id}/absences/form?category=&group=&date=
func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := generic.ParseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}

	form, err := h.Engine.BuildForm(r.Context(), chi.URLParam(r, "id"), q.Get("category"), q.Get("group"), date)
	if err != nil {
		h.writeEngineError(w, r, "Failed to build form", err)
		return
	}
	writeJSON(w, http.StatusOK, toFormDTO(form))
}

// GetRecap returns the ledgers of a group chain around a date.
// GET /api/persons/{id}/absences/recap?group=&from=
func (h *Handler) GetRecap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := generic.ParseDate(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from (use YYYY-MM-DD)", err)
		return
	}

	recap, err := h.Engine.Recap(r.Context(), chi.URLParam(r, "id"), q.Get("group"), from)
	if err != nil {
		h.writeEngineError(w, r, "Failed to build recap", err)
		return
	}
	writeJSON(w, http.StatusOK, toRecapDTO(recap))
}

func decodeAbsenceRequest(w http.ResponseWriter, r *http.Request) (engine.Request, bool) {
	var body AbsenceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return engine.Request{}, false
	}
	req, err := body.toDomain(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid absence request", err)
		return engine.Request{}, false
	}
	return req, true
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListGroups returns every group in catalog order.
// GET /api/catalog/groups
func (h *Handler) ListGroups(w http.ResponseWriter, r *http.Request) {
	cat := h.Engine.Catalog()
	groups := cat.Groups()
	dtos := make([]GroupDTO, 0, len(groups))
	for _, g := range groups {
		dtos = append(dtos, toGroupDTO(g, cat.IsReserved(g)))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetAbsenceType returns one absence type and the groups taking it.
// GET /api/catalog/types/{code}
func (h *Handler) GetAbsenceType(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	t, ok := h.Engine.Catalog().AbsenceTypeByCode(code)
	if !ok {
		writeError(w, http.StatusNotFound, "Absence type not found", fmt.Errorf("%w: %s", generic.ErrAbsenceTypeNotFound, code))
		return
	}
	writeJSON(w, http.StatusOK, toAbsenceTypeDTO(t, h.Engine.Resolver().CandidateGroups(t, "")))
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// CreateHoliday adds a holiday.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := generic.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use YYYY-MM-DD)", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if err := h.Store.SaveHoliday(r.Context(), generic.Holiday{Date: date, Name: req.Name, Recurring: req.Recurring}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine errors to a status. Implementation problems
// are logged since they point at a broken catalog rather than a bad request.
func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), message, "error", err, "path", r.URL.Path)
	}
	resp := ErrorResponse{Error: message, Code: code, Details: err.Error()}
	writeJSON(w, status, resp)
}

func statusFor(err error) (int, string) {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, generic.ErrDuplicateAbsence):
		return http.StatusConflict, "duplicate_absence"
	case generic.IsImplementationProblem(err):
		return http.StatusInternalServerError, "implementation_problem"
	case generic.IsClientError(err):
		return http.StatusBadRequest, "invalid_request"
	}
	return http.StatusInternalServerError, ""
}
