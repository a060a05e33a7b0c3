package employeeshandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/leave"
	"leavedesk/internal/transport/http/api"
	"leavedesk/internal/transport/http/middleware"
	"leavedesk/internal/transport/http/shared"
)

type Handler struct {
	Admin *leave.Admin
	Perms middleware.PermissionStore
}

func NewHandler(admin *leave.Admin, perms middleware.PermissionStore) *Handler {
	return &Handler{Admin: admin, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermEmployeesWrite, h.Perms)).Post("/", h.handleOnboard)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/me", h.handleMe)
	})
}

type onboardPayload struct {
	Email          string `json:"email"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	EmployeeNumber string `json:"employeeNumber"`
	Department     string `json:"department"`
	Designation    string `json:"designation"`
	JoiningDate    string `json:"joiningDate"`
	ManagerID      string `json:"managerId"`
	Role           string `json:"role"`
}

var roles = []string{string(auth.RoleEmployee), string(auth.RoleHR), string(auth.RoleSuperAdmin)}

func (h *Handler) handleOnboard(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	var payload onboardPayload
	if !shared.DecodeJSON(w, r, &payload, requestID) {
		return
	}
	v := shared.NewValidator()
	v.Required("email", payload.Email)
	v.Required("firstName", payload.FirstName)
	v.Required("lastName", payload.LastName)
	v.Required("employeeNumber", payload.EmployeeNumber)
	joining := v.Date("joiningDate", payload.JoiningDate)
	role := auth.Role(v.OneOf("role", payload.Role, roles...))
	if v.Reject(w, requestID) {
		return
	}

	result, err := h.Admin.Onboard(r.Context(), user, leave.OnboardInput{
		Email:          payload.Email,
		FirstName:      payload.FirstName,
		LastName:       payload.LastName,
		EmployeeNumber: payload.EmployeeNumber,
		Department:     payload.Department,
		Designation:    payload.Designation,
		JoiningDate:    joining,
		ManagerID:      payload.ManagerID,
		Role:           role,
	})
	if err != nil {
		api.FailError(w, r, err, requestID)
		return
	}
	api.Created(w, result, requestID)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	emp, err := h.Admin.Me(r.Context(), user)
	if err != nil {
		api.FailError(w, r, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}
