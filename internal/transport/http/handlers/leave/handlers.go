package leavehandler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/leave"
	"leavedesk/internal/platform/jobs"
	"leavedesk/internal/transport/http/api"
	"leavedesk/internal/transport/http/middleware"
	"leavedesk/internal/transport/http/shared"
)

// JobRunner runs a job synchronously through the job service so it is logged like scheduled runs.
type JobRunner interface {
	RunNow(ctx context.Context, jobType string, run jobs.RunFunc) (any, error)
}

type Handler struct {
	Engine *leave.Engine
	Admin  *leave.Admin
	Perms  middleware.PermissionStore
	Jobs   JobRunner
	Now    func() time.Time
}

func NewHandler(engine *leave.Engine, admin *leave.Admin, perms middleware.PermissionStore, jobsSvc JobRunner) *Handler {
	return &Handler{Engine: engine, Admin: admin, Perms: perms, Jobs: jobsSvc, Now: time.Now}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermLeaveRead, h.Perms)
	write := middleware.RequirePermission(auth.PermLeaveWrite, h.Perms)
	approve := middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)
	admin := middleware.RequirePermission(auth.PermLeaveAdmin, h.Perms)
	auditRead := middleware.RequirePermission(auth.PermAuditRead, h.Perms)

	r.Route("/leave", func(r chi.Router) {
		r.With(read).Get("/types", h.handleListTypes)
		r.With(admin).Post("/types", h.handleCreateType)
		r.With(read).Get("/types/{typeID}", h.handleGetType)
		r.With(admin).Patch("/types/{typeID}", h.handleUpdateType)
		r.With(admin).Post("/types/{typeID}/deactivate", h.handleDeactivateType)

		r.With(read).Get("/holidays", h.handleListHolidays)
		r.With(admin).Post("/holidays", h.handleCreateHoliday)
		r.With(admin).Patch("/holidays/{holidayID}", h.handleUpdateHoliday)

		r.With(read).Get("/balances", h.handleListBalances)
		r.With(read).Get("/balances/statement", h.handleStatement)
		r.With(admin).Post("/balances/allocate", h.handleAllocate)
		r.With(admin).Post("/balances/carry-forward", h.handleCarryForward)
		r.With(admin).Post("/balances/rollover", h.handleRollover)

		r.With(read).Get("/requests", h.handleListRequests)
		r.With(write).Post("/requests", h.handleCreateRequest)
		r.With(read).Get("/requests/{requestID}", h.handleGetRequest)
		r.With(write).Patch("/requests/{requestID}", h.handleModifyRequest)
		r.With(approve).Post("/requests/{requestID}/approve", h.handleApproveRequest)
		r.With(approve).Post("/requests/{requestID}/reject", h.handleRejectRequest)
		r.With(write).Post("/requests/{requestID}/cancel", h.handleCancelRequest)
		r.With(auditRead).Get("/requests/{requestID}/audit", h.handleAuditTrail)
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	api.FailError(w, r, err, middleware.GetRequestID(r.Context()))
}

// Leave types

func (h *Handler) handleListTypes(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	includeInactive := r.URL.Query().Get("includeInactive") == "true"
	types, err := h.Admin.LeaveTypes(r.Context(), user, includeInactive)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, types, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetType(w http.ResponseWriter, r *http.Request) {
	lt, err := h.Admin.LeaveType(r.Context(), chi.URLParam(r, "typeID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, lt, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateType(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	var payload leave.LeaveTypeInput
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Required("name", payload.Name)
	v.Required("category", string(payload.Category))
	if v.Reject(w, requestID) {
		return
	}

	lt, err := h.Admin.CreateLeaveType(r.Context(), user, payload)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Created(w, lt, requestID)
}

func (h *Handler) handleUpdateType(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	var patch leave.LeaveTypePatch
	if !shared.DecodeJSON(w, r, &patch, requestID) {
		return
	}
	lt, err := h.Admin.UpdateLeaveType(r.Context(), user, chi.URLParam(r, "typeID"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, lt, requestID)
}

func (h *Handler) handleDeactivateType(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	lt, err := h.Admin.DeactivateLeaveType(r.Context(), user, chi.URLParam(r, "typeID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, lt, middleware.GetRequestID(r.Context()))
}

// Holidays

type holidayPayload struct {
	Date        string `json:"date"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Recurring   bool   `json:"recurring"`
}

type holidayPatchPayload struct {
	Date        *string `json:"date"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Recurring   *bool   `json:"recurring"`
	Active      *bool   `json:"active"`
}

func (h *Handler) handleListHolidays(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	q := r.URL.Query()
	v := shared.NewValidator()
	var filter leave.HolidayFilter
	filter.From = v.OptionalDate("from", q.Get("from"))
	filter.To = v.OptionalDate("to", q.Get("to"))
	v.DateOrder("from", filter.From, "to", filter.To)
	if v.Reject(w, requestID) {
		return
	}
	filter.ActiveOnly = q.Get("includeInactive") != "true"
	filter.IncludeRecurring = !filter.From.IsZero() || !filter.To.IsZero()

	holidays, err := h.Admin.Holidays(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, holidays, requestID)
}

func (h *Handler) handleCreateHoliday(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	var payload holidayPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	date := v.Date("date", payload.Date)
	v.Required("name", payload.Name)
	if v.Reject(w, requestID) {
		return
	}

	holiday, err := h.Admin.CreateHoliday(r.Context(), user, leave.HolidayInput{
		Date:        date,
		Name:        payload.Name,
		Description: payload.Description,
		Recurring:   payload.Recurring,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Created(w, holiday, requestID)
}

func (h *Handler) handleUpdateHoliday(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	var payload holidayPatchPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	patch := leave.HolidayPatch{
		Name:        payload.Name,
		Description: payload.Description,
		Recurring:   payload.Recurring,
		Active:      payload.Active,
	}
	if payload.Date != nil {
		v := shared.NewValidator()
		date := v.Date("date", *payload.Date)
		if v.Reject(w, requestID) {
			return
		}
		patch.Date = &date
	}

	holiday, err := h.Admin.UpdateHoliday(r.Context(), user, chi.URLParam(r, "holidayID"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, holiday, requestID)
}

// Balances

func (h *Handler) yearParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	year, ok := shared.ParseYear(r.URL.Query().Get("year"), h.Now().Year())
	if !ok {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.Issue{{Field: "year", Reason: "must be a four digit year"}})
	}
	return year, ok
}

func (h *Handler) handleListBalances(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	year, ok := h.yearParam(w, r)
	if !ok {
		return
	}
	balances, err := h.Admin.Balances(r.Context(), user, r.URL.Query().Get("employeeId"), year)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, balances, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleStatement(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	year, ok := h.yearParam(w, r)
	if !ok {
		return
	}
	pdf, err := h.Admin.Statement(r.Context(), user, r.URL.Query().Get("employeeId"), year)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="leave-statement.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

type yearPayload struct {
	Year int `json:"year"`
}

type carryForwardPayload struct {
	FromYear int `json:"fromYear"`
	ToYear   int `json:"toYear"`
}

func (h *Handler) handleAllocate(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	var payload yearPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Year("year", payload.Year)
	if v.Reject(w, requestID) {
		return
	}
	created, err := h.Admin.AllocateYear(r.Context(), user, payload.Year)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, map[string]int{"year": payload.Year, "created": created}, requestID)
}

func (h *Handler) handleCarryForward(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	var payload carryForwardPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Year("fromYear", payload.FromYear)
	v.Year("toYear", payload.ToYear)
	if v.Reject(w, requestID) {
		return
	}
	summary, err := h.Admin.CarryForward(r.Context(), user, payload.FromYear, payload.ToYear)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, summary, requestID)
}

// handleRollover runs the yearly carry-forward and allocation job on demand.
func (h *Handler) handleRollover(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var payload yearPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	if payload.Year == 0 {
		payload.Year = h.Now().Year()
	}
	v := shared.NewValidator()
	v.Year("year", payload.Year)
	if v.Reject(w, requestID) {
		return
	}
	summary, err := h.Jobs.RunNow(r.Context(), jobs.JobYearRollover, func(ctx context.Context) (any, error) {
		return h.Admin.Rollover(ctx, payload.Year)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, summary, requestID)
}

// Requests

type requestPayload struct {
	LeaveTypeID   string              `json:"leaveTypeId"`
	StartDate     string              `json:"startDate"`
	EndDate       string              `json:"endDate"`
	DurationType  string              `json:"durationType"`
	StartHalf     string              `json:"startHalf"`
	Hours         decimal.NullDecimal `json:"hours"`
	Reason        string              `json:"reason"`
	MedicalProof  string              `json:"medicalProof"`
	Documentation string              `json:"documentation"`
}

type modifyPayload struct {
	StartDate     *string              `json:"startDate"`
	EndDate       *string              `json:"endDate"`
	DurationType  *string              `json:"durationType"`
	StartHalf     *string              `json:"startHalf"`
	Hours         *decimal.NullDecimal `json:"hours"`
	Reason        *string              `json:"reason"`
	MedicalProof  *string              `json:"medicalProof"`
	Documentation *string              `json:"documentation"`
}

type decisionPayload struct {
	Comment string `json:"comment"`
	Reason  string `json:"reason"`
}

var (
	durationTypes = []string{string(leave.DurationFullDay), string(leave.DurationHalfDay), string(leave.DurationHourly)}
	halves        = []string{string(leave.HalfMorning), string(leave.HalfAfternoon)}
	statuses      = []string{string(leave.StatusPending), string(leave.StatusApproved), string(leave.StatusRejected), string(leave.StatusCancelled)}
)

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	var payload requestPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Required("leaveTypeId", payload.LeaveTypeID)
	start := v.Date("startDate", payload.StartDate)
	end := v.Date("endDate", payload.EndDate)
	v.DateOrder("startDate", start, "endDate", end)
	duration := leave.DurationType(v.OneOf("durationType", payload.DurationType, durationTypes...))
	half := leave.Half(v.OneOf("startHalf", payload.StartHalf, halves...))
	v.Required("reason", payload.Reason)
	if v.Reject(w, requestID) {
		return
	}
	if duration == "" {
		duration = leave.DurationFullDay
	}
	req, err := h.Engine.Create(r.Context(), user, leave.CreateInput{
		LeaveTypeID:   payload.LeaveTypeID,
		StartDate:     start,
		EndDate:       end,
		DurationType:  duration,
		StartHalf:     half,
		Hours:         payload.Hours,
		Reason:        payload.Reason,
		MedicalProof:  payload.MedicalProof,
		Documentation: payload.Documentation,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Created(w, req, requestID)
}

func (h *Handler) handleModifyRequest(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	var payload modifyPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	patch := leave.ModifyPatch{
		Hours:         payload.Hours,
		Reason:        payload.Reason,
		MedicalProof:  payload.MedicalProof,
		Documentation: payload.Documentation,
	}
	if payload.StartDate != nil {
		start := v.Date("startDate", *payload.StartDate)
		patch.StartDate = &start
	}
	if payload.EndDate != nil {
		end := v.Date("endDate", *payload.EndDate)
		patch.EndDate = &end
	}
	if payload.DurationType != nil {
		d := leave.DurationType(v.OneOf("durationType", *payload.DurationType, durationTypes...))
		patch.DurationType = &d
	}
	if payload.StartHalf != nil {
		half := leave.Half(v.OneOf("startHalf", *payload.StartHalf, halves...))
		patch.StartHalf = &half
	}
	if v.Reject(w, requestID) {
		return
	}

	req, err := h.Engine.Modify(r.Context(), user, chi.URLParam(r, "requestID"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, req, requestID)
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	q := r.URL.Query()

	v := shared.NewValidator()
	page := v.Page(q, 50, 200)
	filter := leave.RequestFilter{EmployeeID: q.Get("employeeId"), Limit: page.Limit, Offset: page.Offset}
	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if status := v.OneOf("status", s, statuses...); status != "" {
				filter.Statuses = append(filter.Statuses, leave.Status(status))
			}
		}
	}
	filter.From = v.OptionalDate("from", q.Get("from"))
	filter.To = v.OptionalDate("to", q.Get("to"))
	v.DateOrder("from", filter.From, "to", filter.To)
	if v.Reject(w, requestID) {
		return
	}

	requests, err := h.Engine.List(r.Context(), user, filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, requests, requestID)
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	req, err := h.Engine.Get(r.Context(), user, chi.URLParam(r, "requestID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, req, middleware.GetRequestID(r.Context()))
}

// decodeDecision reads an optional decision body; an empty body means no comment.
func decodeDecision(w http.ResponseWriter, r *http.Request, requestID string) (decisionPayload, bool) {
	var payload decisionPayload
	if r.ContentLength == 0 {
		return payload, true
	}
	return payload, shared.DecodeJSON(w, r, &payload, requestID)
}

func (h *Handler) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	payload, ok := decodeDecision(w, r, requestID)
	if !ok {
		return
	}
	req, err := h.Engine.Approve(r.Context(), user, chi.URLParam(r, "requestID"), payload.Comment)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, req, requestID)
}

func (h *Handler) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	payload, ok := decodeDecision(w, r, requestID)
	if !ok {
		return
	}
	reason := payload.Reason
	if reason == "" {
		reason = payload.Comment
	}
	req, err := h.Engine.Reject(r.Context(), user, chi.URLParam(r, "requestID"), reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, req, requestID)
}

func (h *Handler) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())
	payload, ok := decodeDecision(w, r, requestID)
	if !ok {
		return
	}
	req, err := h.Engine.Cancel(r.Context(), user, chi.URLParam(r, "requestID"), payload.Comment)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, req, requestID)
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	trail, err := h.Engine.AuditTrail(r.Context(), user, chi.URLParam(r, "requestID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.Success(w, trail, middleware.GetRequestID(r.Context()))
}
