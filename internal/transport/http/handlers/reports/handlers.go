package reportshandler

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jung-kurt/gofpdf"

	"leavehub/internal/domain/auth"
	"leavehub/internal/domain/core"
	"leavehub/internal/domain/leave"
	"leavehub/internal/platform/jobs"
	"leavehub/internal/platform/metrics"
	"leavehub/internal/transport/http/api"
	"leavehub/internal/transport/http/middleware"
)

type Handler struct {
	Ledger    *leave.Ledger
	Employees *core.Store
	Jobs      *jobs.Service
	Metrics   *metrics.Collector
	Perms     middleware.PermissionStore
}

func NewHandler(ledger *leave.Ledger, employees *core.Store, jobSvc *jobs.Service, collector *metrics.Collector, perms middleware.PermissionStore) *Handler {
	return &Handler{Ledger: ledger, Employees: employees, Jobs: jobSvc, Metrics: collector, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/balances", h.handleBalanceReport)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/balances/export", h.handleBalanceExport)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/balances/{employeeID}/statement", h.handleBalanceStatement)
	})
	r.Route("/admin", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermAdminOps, h.Perms)).Post("/jobs/carry-forward", h.handleRunCarryForward)
		r.With(middleware.RequirePermission(auth.PermAdminOps, h.Perms)).Get("/metrics", h.handleMetrics)
	})
}

type balanceRow struct {
	EmployeeID     string `json:"employeeId"`
	EmployeeName   string `json:"employeeName"`
	LeaveType      string `json:"leaveType"`
	Year           int    `json:"year"`
	TotalAllocated int    `json:"totalAllocated"`
	Used           int    `json:"used"`
	Pending        int    `json:"pending"`
	CarriedForward int    `json:"carriedForward"`
	Remaining      int    `json:"remaining"`
}

func (h *Handler) collectRows(ctx context.Context, year int) ([]balanceRow, error) {
	if year <= 0 {
		year = time.Now().UTC().Year()
	}
	employeeIDs, err := h.Employees.ActiveEmployeeIDs(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]balanceRow, 0, len(employeeIDs)*4)
	for _, employeeID := range employeeIDs {
		name, err := h.Employees.EmployeeName(ctx, employeeID)
		if err != nil {
			return nil, err
		}
		balances, err := h.Ledger.Store.Balances(ctx, employeeID, year)
		if err != nil {
			return nil, err
		}
		for _, b := range balances {
			rows = append(rows, balanceRow{
				EmployeeID:     b.EmployeeID,
				EmployeeName:   name,
				LeaveType:      b.LeaveType,
				Year:           b.Year,
				TotalAllocated: b.TotalAllocated,
				Used:           b.Used,
				Pending:        b.Pending,
				CarriedForward: b.CarriedForward,
				Remaining:      b.Remaining,
			})
		}
	}
	return rows, nil
}

func (h *Handler) handleBalanceReport(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	rows, err := h.collectRows(r.Context(), year)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to build balance report", reqID)
		return
	}
	api.Success(w, map[string]any{"rows": rows, "count": len(rows)}, reqID)
}

func (h *Handler) handleBalanceExport(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	rows, err := h.collectRows(r.Context(), year)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to build balance report", reqID)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="leave-balances.csv"`)

	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"employee_id", "employee_name", "leave_type", "year", "total_allocated", "used", "pending", "carried_forward", "remaining"})
	for _, row := range rows {
		_ = writer.Write([]string{
			row.EmployeeID,
			row.EmployeeName,
			row.LeaveType,
			strconv.Itoa(row.Year),
			strconv.Itoa(row.TotalAllocated),
			strconv.Itoa(row.Used),
			strconv.Itoa(row.Pending),
			strconv.Itoa(row.CarriedForward),
			strconv.Itoa(row.Remaining),
		})
	}
	writer.Flush()
}

func (h *Handler) handleBalanceStatement(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	employeeID := chi.URLParam(r, "employeeID")
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	if year <= 0 {
		year = time.Now().UTC().Year()
	}

	name, err := h.Employees.EmployeeName(r.Context(), employeeID)
	if err != nil {
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", reqID)
		return
	}
	balances, err := h.Ledger.Store.Balances(r.Context(), employeeID, year)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to load balances", reqID)
		return
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Leave Balance Statement")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", name))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Year: %d", year))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", time.Now().UTC().Format("2006-01-02")))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(60, 8, "Leave Type", "1", 0, "L", false, 0, "")
	pdf.CellFormat(28, 8, "Allocated", "1", 0, "R", false, 0, "")
	pdf.CellFormat(28, 8, "Carried", "1", 0, "R", false, 0, "")
	pdf.CellFormat(22, 8, "Used", "1", 0, "R", false, 0, "")
	pdf.CellFormat(24, 8, "Pending", "1", 0, "R", false, 0, "")
	pdf.CellFormat(28, 8, "Remaining", "1", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, b := range balances {
		pdf.CellFormat(60, 8, b.LeaveType, "1", 0, "L", false, 0, "")
		pdf.CellFormat(28, 8, strconv.Itoa(b.TotalAllocated), "1", 0, "R", false, 0, "")
		pdf.CellFormat(28, 8, strconv.Itoa(b.CarriedForward), "1", 0, "R", false, 0, "")
		pdf.CellFormat(22, 8, strconv.Itoa(b.Used), "1", 0, "R", false, 0, "")
		pdf.CellFormat(24, 8, strconv.Itoa(b.Pending), "1", 0, "R", false, 0, "")
		pdf.CellFormat(28, 8, strconv.Itoa(b.Remaining), "1", 1, "R", false, 0, "")
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="leave-statement-%d.pdf"`, year))
	if err := pdf.Output(w); err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to render statement", reqID)
	}
}

func (h *Handler) handleRunCarryForward(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	fromYear, _ := strconv.Atoi(r.URL.Query().Get("fromYear"))
	if fromYear <= 0 {
		fromYear = time.Now().UTC().Year() - 1
	}
	summary, err := h.Jobs.RunNow(r.Context(), jobs.JobCarryForward, func(ctx context.Context) (any, error) {
		return h.Ledger.ApplyCarryForward(ctx, fromYear)
	})
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_failed", "carry-forward run failed", reqID)
		return
	}
	api.Success(w, summary, reqID)
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	if h.Metrics == nil {
		api.Fail(w, http.StatusNotFound, "metrics_disabled", "metrics collection is disabled", reqID)
		return
	}
	api.Success(w, h.Metrics.Snapshot(), reqID)
}
