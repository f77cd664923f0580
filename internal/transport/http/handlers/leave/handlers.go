package leavehandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"leavehub/internal/domain/auth"
	"leavehub/internal/domain/core"
	"leavehub/internal/domain/leave"
	"leavehub/internal/transport/http/api"
	"leavehub/internal/transport/http/middleware"
	"leavehub/internal/transport/http/shared"
)

// ActorResolver maps an authenticated user to their employee record.
type ActorResolver interface {
	EmployeeByUserID(ctx context.Context, userID string) (core.Employee, error)
}

// AuditRecorder captures admin actions. May be nil in tests.
type AuditRecorder interface {
	Record(ctx context.Context, actorID, action, entityType, entityID, requestID string, details any) error
}

// IdempotencyStore replays stored responses for repeated Idempotency-Key
// submissions. Implemented by middleware.IdempotencyStore. May be nil.
type IdempotencyStore interface {
	Check(ctx context.Context, userID, endpoint, key, requestHash string) (json.RawMessage, bool, error)
	Save(ctx context.Context, userID, endpoint, key, requestHash string, response json.RawMessage) error
}

type Handler struct {
	Service  *leave.Service
	Resolver ActorResolver
	Perms    middleware.PermissionStore
	Audit    AuditRecorder
	Idem     IdempotencyStore
}

func NewHandler(service *leave.Service, resolver ActorResolver, perms middleware.PermissionStore, auditSvc AuditRecorder, idem IdempotencyStore) *Handler {
	return &Handler{Service: service, Resolver: resolver, Perms: perms, Audit: auditSvc, Idem: idem}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/leave", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/policies", h.handleListPolicies)
		r.With(middleware.RequirePermission(auth.PermPolicyWrite, h.Perms)).Post("/policies", h.handleCreatePolicy)
		r.With(middleware.RequirePermission(auth.PermPolicyWrite, h.Perms)).Put("/policies/{policyID}", h.handleUpdatePolicy)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/balances", h.handleListBalances)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/balances/history", h.handleBalanceHistory)
		r.With(middleware.RequirePermission(auth.PermLeaveAdjust, h.Perms)).Post("/balances/adjust", h.handleAdjustBalance)
		r.With(middleware.RequirePermission(auth.PermLeaveAdjust, h.Perms)).Post("/balances/initialize", h.handleInitializeBalances)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/availability", h.handleAvailability)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/requests", h.handleListRequests)
		r.With(middleware.RequirePermission(auth.PermLeaveWrite, h.Perms)).Post("/requests", h.handleSubmitRequest)
		r.With(middleware.RequirePermission(auth.PermLeaveRead, h.Perms)).Get("/requests/{requestID}", h.handleGetRequest)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)).Post("/requests/{requestID}/approve", h.handleApproveRequest)
		r.With(middleware.RequirePermission(auth.PermLeaveApprove, h.Perms)).Post("/requests/{requestID}/reject", h.handleRejectRequest)
		r.With(middleware.RequirePermission(auth.PermLeaveWrite, h.Perms)).Delete("/requests/{requestID}", h.handleCancelRequest)
	})
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (leave.Actor, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return leave.Actor{}, false
	}
	employee, err := h.Resolver.EmployeeByUserID(r.Context(), user.UserID)
	if err != nil {
		if errors.Is(err, core.ErrEmployeeNotFound) {
			api.Fail(w, http.StatusForbidden, "no_employee_record", "no employee record for caller", middleware.GetRequestID(r.Context()))
			return leave.Actor{}, false
		}
		api.Fail(w, http.StatusInternalServerError, "employee_lookup_failed", "failed to resolve employee", middleware.GetRequestID(r.Context()))
		return leave.Actor{}, false
	}
	return leave.Actor{
		UserID:     user.UserID,
		EmployeeID: employee.ID,
		Role:       user.RoleName,
		Department: employee.Department,
	}, true
}

func (h *Handler) fail(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, leave.ErrRequestNotFound),
		errors.Is(err, leave.ErrBalanceNotFound),
		errors.Is(err, leave.ErrPolicyNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	case errors.Is(err, leave.ErrForbidden), errors.Is(err, leave.ErrNotApprover):
		api.Fail(w, http.StatusForbidden, "forbidden", err.Error(), requestID)
	case errors.Is(err, leave.ErrInvalidState):
		api.Fail(w, http.StatusConflict, "invalid_state", err.Error(), requestID)
	case errors.Is(err, leave.ErrPolicyViolation),
		errors.Is(err, leave.ErrInvalidDays),
		errors.Is(err, leave.ErrQuotaType),
		errors.Is(err, leave.ErrPolicyExists):
		api.Fail(w, http.StatusBadRequest, "invalid_request", err.Error(), requestID)
	default:
		api.Fail(w, http.StatusInternalServerError, "internal_error", "operation failed", requestID)
	}
}

func (h *Handler) record(ctx context.Context, actorID, action, entityType, entityID, requestID string, details any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(ctx, actorID, action, entityType, entityID, requestID, details); err != nil {
		slog.Warn("audit record failed", "action", action, "err", err)
	}
}

// idempotentReplay writes the previously stored response for this key when
// one exists, or a 409 when the key is reused with a different payload.
// Store failures degrade to running the mutation normally.
func (h *Handler) idempotentReplay(w http.ResponseWriter, r *http.Request, userID, endpoint, key, hash, reqID string) bool {
	if h.Idem == nil || key == "" {
		return false
	}
	stored, found, err := h.Idem.Check(r.Context(), userID, endpoint, key, hash)
	if err != nil {
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "Idempotency-Key reused with a different payload", reqID)
			return true
		}
		slog.Warn("idempotency check failed", "endpoint", endpoint, "err", err)
		return false
	}
	if found {
		api.Success(w, json.RawMessage(stored), reqID)
		return true
	}
	return false
}

func (h *Handler) idempotentSave(ctx context.Context, userID, endpoint, key, hash string, response any) {
	if h.Idem == nil || key == "" {
		return
	}
	body, err := json.Marshal(response)
	if err != nil {
		return
	}
	if err := h.Idem.Save(ctx, userID, endpoint, key, hash, body); err != nil {
		slog.Warn("idempotency save failed", "endpoint", endpoint, "err", err)
	}
}

func (h *Handler) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	if _, ok := h.actor(w, r); !ok {
		return
	}
	policies, err := h.Service.ListPolicies(r.Context())
	if err != nil {
		h.fail(w, err, reqID)
		return
	}
	api.Success(w, policies, reqID)
}

func (h *Handler) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload leave.Policy
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	id, err := h.Service.CreatePolicy(r.Context(), payload)
	if err != nil {
		h.fail(w, err, reqID)
		return
	}
	h.record(r.Context(), actor.UserID, "leave.policy.create", "leave_policy", id, reqID, payload)
	api.Created(w, map[string]string{"id": id}, reqID)
}

func (h *Handler) handleUpdatePolicy(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload leave.Policy
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	payload.ID = chi.URLParam(r, "policyID")
	if err := h.Service.UpdatePolicy(r.Context(), payload); err != nil {
		h.fail(w, err, reqID)
		return
	}
	h.record(r.Context(), actor.UserID, "leave.policy.update", "leave_policy", payload.ID, reqID, payload)
	api.Success(w, payload, reqID)
}

func (h *Handler) handleListBalances(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	employeeID := r.URL.Query().Get("employeeId")
	if employeeID == "" {
		employeeID = actor.EmployeeID
	}
	year := parseYear(r)

	balances, err := h.Service.Balances(r.Context(), actor, employeeID, year)
	if err != nil {
		h.fail(w, err, reqID)
		return
	}
	api.Success(w, balances, reqID)
}

func (h *Handler) handleBalanceHistory(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	employeeID := r.URL.Query().Get("employeeId")
	if employeeID == "" {
		employeeID = actor.EmployeeID
	}
	leaveType := r.URL.Query().Get("leaveType")
	if leaveType == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_request", "leaveType is required", reqID)
		return
	}
	page := shared.ParsePagination(r, 50, 200)

	entries, err := h.Service.History(r.Context(), actor, employeeID, leaveType, parseYear(r), page.Limit, page.Offset)
	if err != nil {
		h.fail(w, err, reqID)
		return
	}
	api.Success(w, entries, reqID)
}

type adjustPayload struct {
	EmployeeID     string `json:"employeeId"`
	LeaveType      string `json:"leaveType"`
	AdjustmentDays int    `json:"adjustmentDays"`
	Year           int    `json:"year"`
	Reason         string `json:"reason"`
}

func (h *Handler) handleAdjustBalance(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload adjustPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("employeeId", payload.EmployeeID, "employeeId is required")
	v.Required("leaveType", payload.LeaveType, "leaveType is required")
	v.Required("reason", payload.Reason, "reason is required")
	if payload.AdjustmentDays == 0 {
		v.Add("adjustmentDays", "must be a non-zero number of days")
	}
	if v.Reject(w, reqID) {
		return
	}

	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	payloadJSON, _ := json.Marshal(payload)
	hash := middleware.RequestHash(payloadJSON)
	const endpoint = "POST /leave/balances/adjust"
	if h.idempotentReplay(w, r, actor.UserID, endpoint, idemKey, hash, reqID) {
		return
	}

	balance, err := h.Service.Ledger.AdminAdjust(r.Context(), payload.EmployeeID, payload.LeaveType, payload.AdjustmentDays, payload.Year, payload.Reason)
	if err != nil {
		h.fail(w, err, reqID)
		return
	}
	h.record(r.Context(), actor.UserID, "leave.balance.adjust", "leave_balance", balance.ID, reqID, payload)
	h.idempotentSave(r.Context(), actor.UserID, endpoint, idemKey, hash, balance)
	api.Success(w, balance, reqID)
}

type initializePayload struct {
	EmployeeID string `json:"employeeId"`
	Year       int    `json:"year"`
}

func (h *Handler) handleInitializeBalances(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload initializePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}
	if strings.TrimSpace(payload.EmployeeID) == "" {
		api.Fail(w, http.StatusBadRequest, "invalid_request", "employeeId is required", reqID)
		return
	}
	if err := h.Service.Ledger.InitializeEmployeeBalances(r.Context(), payload.EmployeeID, payload.Year); err != nil {
		h.fail(w, err, reqID)
		return
	}
	h.record(r.Context(), actor.UserID, "leave.balance.initialize", "employee", payload.EmployeeID, reqID, payload)
	api.Success(w, map[string]string{"status": "initialized"}, reqID)
}

func (h *Handler) handleAvailability(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	employeeID := r.URL.Query().Get("employeeId")
	if employeeID == "" {
		employeeID = actor.EmployeeID
	}
	leaveType := r.URL.Query().Get("leaveType")
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	v := shared.NewValidator()
	v.Required("leaveType", leaveType, "leaveType is required")
	if days <= 0 {
		v.Add("days", "must be a positive number of days")
	}
	if v.Reject(w, reqID) {
		return
	}

	result, err := h.Service.Availability(r.Context(), actor, employeeID, leaveType, days, parseYear(r))
	if err != nil {
		h.fail(w, err, reqID)
		return
	}
	api.Success(w, result, reqID)
}

type submitPayload struct {
	LeaveType string `json:"leaveType"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	Reason    string `json:"reason"`
	Priority  string `json:"priority"`
}

func (h *Handler) handleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload submitPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	v := shared.NewValidator()
	v.Required("leaveType", payload.LeaveType, "leaveType is required")
	v.Required("reason", payload.Reason, "reason is required")
	start, startOK := v.Date("startDate", payload.StartDate)
	end, endOK := v.Date("endDate", payload.EndDate)
	if startOK && endOK {
		v.DateOrder("startDate", start, "endDate", end)
	}
	if v.Reject(w, reqID) {
		return
	}

	req, availability, err := h.Service.Submit(r.Context(), actor, leave.SubmitInput{
		LeaveType: payload.LeaveType,
		StartDate: start,
		EndDate:   end,
		Reason:    payload.Reason,
		Priority:  payload.Priority,
	})
	if err != nil {
		h.fail(w, err, reqID)
		return
	}
	if req == nil {
		code := "insufficient_balance"
		if availability.NoPolicy {
			code = "no_policy"
		}
		api.FailWithDetails(w, http.StatusBadRequest, code, availability.Message, availability, reqID)
		return
	}
	api.Created(w, req, reqID)
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	page := shared.ParsePagination(r, 25, 100)
	requests, total, err := h.Service.List(r.Context(), actor, r.URL.Query().Get("status"), page.Limit, page.Offset)
	if err != nil {
		h.fail(w, err, reqID)
		return
	}
	api.Success(w, map[string]any{"requests": requests, "total": total}, reqID)
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	req, err := h.Service.Get(r.Context(), actor, chi.URLParam(r, "requestID"))
	if err != nil {
		h.fail(w, err, reqID)
		return
	}
	api.Success(w, req, reqID)
}

type decisionPayload struct {
	Comments string `json:"comments"`
}

func (h *Handler) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload decisionPayload
	_ = json.NewDecoder(r.Body).Decode(&payload)

	requestID := chi.URLParam(r, "requestID")
	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	hash := middleware.RequestHash([]byte(requestID + "\n" + payload.Comments))
	const endpoint = "POST /leave/requests/approve"
	if h.idempotentReplay(w, r, actor.UserID, endpoint, idemKey, hash, reqID) {
		return
	}

	req, err := h.Service.Approve(r.Context(), actor, requestID, payload.Comments)
	if err != nil {
		h.fail(w, err, reqID)
		return
	}
	h.record(r.Context(), actor.UserID, "leave.request.approve", "leave_request", req.ID, reqID, payload)
	h.idempotentSave(r.Context(), actor.UserID, endpoint, idemKey, hash, req)
	api.Success(w, req, reqID)
}

func (h *Handler) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var payload decisionPayload
	_ = json.NewDecoder(r.Body).Decode(&payload)

	req, err := h.Service.Reject(r.Context(), actor, chi.URLParam(r, "requestID"), payload.Comments)
	if err != nil {
		h.fail(w, err, reqID)
		return
	}
	h.record(r.Context(), actor.UserID, "leave.request.reject", "leave_request", req.ID, reqID, payload)
	api.Success(w, req, reqID)
}

func (h *Handler) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	requestID := chi.URLParam(r, "requestID")
	if err := h.Service.Cancel(r.Context(), actor, requestID); err != nil {
		h.fail(w, err, reqID)
		return
	}
	h.record(r.Context(), actor.UserID, "leave.request.cancel", "leave_request", requestID, reqID, nil)
	api.Success(w, map[string]string{"status": "cancelled"}, reqID)
}

func parseYear(r *http.Request) int {
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	return year
}
