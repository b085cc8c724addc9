/*
handlers.go - HTTP API handlers for the TOIL tracker

PURPOSE:
  Exposes the TOIL engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the service layer.

ENDPOINTS:
  Auth:
    POST   /api/auth/login              Exchange credentials for a token
    GET    /api/auth/me                 Current authenticated user

  Submissions:
    POST   /api/submissions/hours       Log extra hours (earn)
    POST   /api/submissions/requests    Request time off (use)
    GET    /api/submissions             Submission history
    GET    /api/submissions/pending     Pending queue for approvers
    POST   /api/submissions/{id}/approve
    POST   /api/submissions/{id}/reject

  Balances:
    GET    /api/balance                 Current balance
    GET    /api/team/balances           Team overview for approvers

  Reports:
    GET    /api/reports/monthly         Monthly earn/use series
    GET    /api/reports/statement.pdf   PDF statement download

  Admin:
    GET    /api/admin/users             List users
    POST   /api/admin/users             Create user
    PUT    /api/admin/users/{id}        Update user
    GET    /api/admin/departments       List departments
    POST   /api/admin/departments       Create department
    DELETE /api/admin/departments/{id}  Delete department
    GET    /api/admin/settings          Organization settings
    PUT    /api/admin/settings          Update settings
    GET    /api/admin/audit             Audit trail

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing or invalid token
  - 403: Actor lacks permission
  - 404: Resource not found
  - 409: Submission already decided
  - 422: Insufficient balance or balance cap exceeded
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - middleware.go: Token verification
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quill/toil-tracker/auth"
	"github.com/quill/toil-tracker/engine"
	"github.com/quill/toil-tracker/report"
	"github.com/quill/toil-tracker/toil"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service   *toil.Service
	JWTSecret string
	JWTTTL    time.Duration
}

// NewHandler creates a new handler around the service.
func NewHandler(service *toil.Service, jwtSecret string, jwtTTL time.Duration) *Handler {
	return &Handler{Service: service, JWTSecret: jwtSecret, JWTTTL: jwtTTL}
}

// =============================================================================
// AUTH ENDPOINTS
// =============================================================================

// Login exchanges credentials for a signed token.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.Service.Store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		// Same response for unknown email and wrong password.
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret,
		auth.Claims{UserID: user.ID, Role: string(user.Role)}, h.JWTTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: toUserDTO(*user)})
}

// Me returns the authenticated user.
// GET /api/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	user, err := h.Service.Store.GetUser(r.Context(), actor.ID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

// =============================================================================
// SUBMISSION ENDPOINTS
// =============================================================================

// LogHours submits an earn record, or previews it when preview is set.
// POST /api/submissions/hours
func (h *Handler) LogHours(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req LogHoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	in := toil.HoursInput{
		Date:      date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		IsWeekend: req.IsWeekend,
		Project:   req.Project,
		Notes:     req.Notes,
	}

	if req.Preview {
		preview, err := h.Service.PreviewHours(in)
		if err != nil {
			h.handleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, PreviewDTO{
			RoundedStart:  preview.Normalized.RoundedStart.String(),
			RoundedEnd:    preview.Normalized.RoundedEnd.String(),
			DurationMin:   preview.Normalized.DurationMinutes,
			EarnedMinutes: preview.Earned,
			Earned:        engine.FormatMinutes(preview.Earned),
		})
		return
	}

	sub, err := h.Service.LogExtraHours(r.Context(), actor, in)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubmissionDTO(*sub))
}

// RequestTimeOff submits a use record against the current balance.
// POST /api/submissions/requests
func (h *Handler) RequestTimeOff(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var req UseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	sub, err := h.Service.RequestTimeOff(r.Context(), actor, toil.UseInput{
		Date:          date,
		AmountMinutes: req.AmountMinutes,
		Notes:         req.Notes,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubmissionDTO(*sub))
}

// ListSubmissions returns submission history, own by default or another
// user's via ?user_id= subject to visibility rules.
// GET /api/submissions
func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = actor.ID
	}

	subs, err := h.Service.History(r.Context(), actor, userID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubmissionDTOs(subs))
}

// ListPending returns the pending queue scoped to the actor.
// GET /api/submissions/pending
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Service.PendingForActor(r.Context(), actorFrom(r))
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubmissionDTOs(subs))
}

// Approve transitions a pending submission to Approved.
// POST /api/submissions/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

// Reject transitions a pending submission to Rejected.
// POST /api/submissions/{id}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, approve bool) {
	id := chi.URLParam(r, "id")

	var req DecideRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	sub, err := h.Service.Decide(r.Context(), actorFrom(r), id, approve, req.Note)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubmissionDTO(*sub))
}

// =============================================================================
// BALANCE ENDPOINTS
// =============================================================================

// GetBalance returns the current balance, own by default.
// GET /api/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = actor.ID
	}

	minutes, err := h.Service.Balance(r.Context(), actor, userID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(userID, minutes))
}

// GetTeamBalances returns one balance per team member.
// GET /api/team/balances
func (h *Handler) GetTeamBalances(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Service.TeamBalances(r.Context(), actorFrom(r))
	if err != nil {
		h.handleError(w, err)
		return
	}

	dtos := make([]TeamBalanceDTO, 0, len(rows))
	for _, row := range rows {
		dtos = append(dtos, TeamBalanceDTO{
			User:           toUserDTO(row.User),
			BalanceMinutes: row.BalanceMinutes,
			Balance:        engine.FormatMinutes(row.BalanceMinutes),
			BalanceHours:   report.Hours(row.BalanceMinutes),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================

// MonthlyReport returns the earn/use series for the dashboard chart.
// GET /api/reports/monthly?user_id=&months=
func (h *Handler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = actor.ID
	}
	months, _ := strconv.Atoi(r.URL.Query().Get("months"))

	subs, err := h.Service.History(r.Context(), actor, userID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MonthlyReportDTO{
		Series: report.MonthlySeries(subs, time.Now(), months),
	})
}

// Statement streams a PDF statement of approved activity.
// GET /api/reports/statement.pdf?user_id=
func (h *Handler) Statement(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = actor.ID
	}

	subs, err := h.Service.History(r.Context(), actor, userID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	minutes, err := h.Service.Balance(r.Context(), actor, userID)
	if err != nil {
		h.handleError(w, err)
		return
	}
	user, err := h.Service.Store.GetUser(r.Context(), userID)
	if err != nil {
		h.handleError(w, err)
		return
	}

	st := report.BuildStatement(user.Name, user.Email, subs, minutes, time.Now())
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="toil-statement.pdf"`)
	if err := report.WritePDF(st, w); err != nil {
		// Headers are gone; all we can do is log via the middleware.
		return
	}
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// ListUsers returns all users.
// GET /api/admin/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.Store.ListUsers(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	dtos := make([]UserDTO, 0, len(users))
	for _, u := range users {
		dtos = append(dtos, toUserDTO(u))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateUser creates an account.
// POST /api/admin/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "name, email and password are required", nil)
		return
	}
	role := toil.Role(req.Role)
	switch role {
	case toil.RoleEmployee, toil.RoleManager, toil.RoleAdmin:
	default:
		writeError(w, http.StatusBadRequest, "role must be employee, manager or admin", nil)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password", err)
		return
	}

	user := toil.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		Role:         role,
		PasswordHash: hash,
		ManagerID:    req.ManagerID,
		DepartmentID: req.DepartmentID,
		CreatedAt:    time.Now(),
	}
	if err := h.Service.Store.CreateUser(r.Context(), user); err != nil {
		h.handleError(w, err)
		return
	}

	h.appendAudit(r, toil.AuditUserCreated, "", user.ID, user.Email)
	writeJSON(w, http.StatusCreated, toUserDTO(user))
}

// UpdateUser changes a user's name, role or relations.
// PUT /api/admin/users/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	user, err := h.Service.Store.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, err)
		return
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	if req.Role != "" {
		role := toil.Role(req.Role)
		switch role {
		case toil.RoleEmployee, toil.RoleManager, toil.RoleAdmin:
			user.Role = role
		default:
			writeError(w, http.StatusBadRequest, "role must be employee, manager or admin", nil)
			return
		}
	}
	if req.ManagerID != nil {
		if *req.ManagerID == "" {
			user.ManagerID = nil
		} else {
			user.ManagerID = req.ManagerID
		}
	}
	if req.DepartmentID != nil {
		if *req.DepartmentID == "" {
			user.DepartmentID = nil
		} else {
			user.DepartmentID = req.DepartmentID
		}
	}

	if err := h.Service.Store.UpdateUser(r.Context(), *user); err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*user))
}

// ListDepartments returns all departments.
// GET /api/admin/departments
func (h *Handler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.Service.Store.ListDepartments(r.Context())
	if err != nil {
		h.handleError(w, err)
		return
	}
	dtos := make([]DepartmentDTO, 0, len(departments))
	for _, d := range departments {
		dtos = append(dtos, DepartmentDTO{ID: d.ID, Name: d.Name})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateDepartment creates a department.
// POST /api/admin/departments
func (h *Handler) CreateDepartment(w http.ResponseWriter, r *http.Request) {
	var req CreateDepartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	d := toil.Department{ID: uuid.NewString(), Name: req.Name, CreatedAt: time.Now()}
	if err := h.Service.Store.CreateDepartment(r.Context(), d); err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, DepartmentDTO{ID: d.ID, Name: d.Name})
}

// DeleteDepartment removes a department.
// DELETE /api/admin/departments/{id}
func (h *Handler) DeleteDepartment(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Store.DeleteDepartment(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSettings returns organization settings.
// GET /api/admin/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Service.Store.GetSettings(r.Context())
	if errors.Is(err, engine.ErrNotFound) {
		writeJSON(w, http.StatusOK, SettingsDTO{Policy: h.Service.Policy()})
		return
	}
	if err != nil {
		h.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SettingsDTO{Name: settings.Name, Policy: settings.Policy})
}

// UpdateSettings replaces organization settings.
// PUT /api/admin/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := req.Policy.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid policy", err)
		return
	}

	settings := toil.OrgSettings{Name: req.Name, Policy: req.Policy, UpdatedAt: time.Now()}
	if err := h.Service.Store.SaveSettings(r.Context(), settings); err != nil {
		h.handleError(w, err)
		return
	}

	// Picked up by new requests immediately; running ones keep the old policy.
	h.Service.SetPolicy(req.Policy)
	h.appendAudit(r, toil.AuditSettingsChanged, "", "", req.Name)
	writeJSON(w, http.StatusOK, SettingsDTO{Name: settings.Name, Policy: settings.Policy})
}

// GetAudit returns the most recent audit entries.
// GET /api/admin/audit?limit=
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.Service.Audit.ListAudit(r.Context(), limit)
	if err != nil {
		h.handleError(w, err)
		return
	}
	dtos := make([]AuditEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, AuditEntryDTO{
			ID:           e.ID,
			At:           e.At.Format(time.RFC3339),
			ActorID:      e.ActorID,
			Action:       string(e.Action),
			SubmissionID: e.SubmissionID,
			SubjectID:    e.SubjectID,
			Detail:       e.Detail,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) appendAudit(r *http.Request, action toil.AuditAction, submissionID, subjectID, detail string) {
	if h.Service.Audit == nil {
		return
	}
	_ = h.Service.Audit.AppendAudit(r.Context(), toil.AuditEntry{
		ID:           uuid.NewString(),
		At:           time.Now(),
		ActorID:      actorFrom(r).ID,
		Action:       action,
		SubmissionID: submissionID,
		SubjectID:    subjectID,
		Detail:       detail,
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// handleError maps domain errors to HTTP statuses.
func (h *Handler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInsufficientBalance),
		errors.Is(err, engine.ErrBalanceCapExceeded):
		writeError(w, http.StatusUnprocessableEntity, "Balance rule violated", err)
	case errors.Is(err, engine.ErrInvalidStateTransition):
		writeError(w, http.StatusConflict, "Submission already decided", err)
	case errors.Is(err, engine.ErrValidation):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", nil)
	case errors.Is(err, engine.ErrForbidden):
		writeError(w, http.StatusForbidden, "Not allowed", nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

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
