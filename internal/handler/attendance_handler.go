package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"workday/internal/domain"
	"workday/internal/middleware"
	"workday/internal/repository"
	"workday/internal/service"
	"workday/pkg/export"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AttendanceHandler struct {
	svc        *service.AttendanceService
	reconciler *service.Reconciler
	log        *slog.Logger
}

func NewAttendanceHandler(svc *service.AttendanceService, reconciler *service.Reconciler, log *slog.Logger) *AttendanceHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AttendanceHandler{svc: svc, reconciler: reconciler, log: log}
}

// Today returns the caller's record for the current business date, or null.
func (h *AttendanceHandler) Today(c *gin.Context) {
	rec, err := h.svc.TodayRecord(c.Request.Context(), middleware.GetCompanyID(c), middleware.GetUserID(c))
	if err != nil {
		h.fail(c, "today", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": h.svc.Today(), "record": rec})
}

func (h *AttendanceHandler) History(c *gin.Context) {
	page, limit := parsePagination(c)
	list, total, err := h.svc.History(c.Request.Context(), middleware.GetCompanyID(c), middleware.GetUserID(c), page, limit)
	if err != nil {
		h.fail(c, "history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": list, "total": total, "page": page, "limit": limit})
}

func (h *AttendanceHandler) Stats(c *gin.Context) {
	from, to, ok := dateRange(c)
	if !ok {
		return
	}
	st, err := h.svc.Stats(c.Request.Context(), middleware.GetCompanyID(c), middleware.GetUserID(c), from, to)
	if err != nil {
		h.fail(c, "stats", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Active lists the users of the admin's company with an open session today.
func (h *AttendanceHandler) Active(c *gin.Context) {
	list, err := h.svc.ActiveUsers(c.Request.Context(), middleware.GetCompanyID(c))
	if err != nil {
		h.fail(c, "active", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": list, "count": len(list)})
}

// All lists the admin's company records, optionally by date and user.
func (h *AttendanceHandler) All(c *gin.Context) {
	page, limit := parsePagination(c)
	f := repository.AttendanceFilter{Page: page, Limit: limit}
	if d := c.Query("date"); d != "" {
		if !validDate(d) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date (use YYYY-MM-DD)"})
			return
		}
		f.Date = d
	}
	if u := c.Query("userId"); u != "" {
		id, err := strconv.ParseUint(u, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid userId"})
			return
		}
		f.UserID = uint(id)
	}
	list, total, err := h.svc.List(c.Request.Context(), middleware.GetCompanyID(c), f)
	if err != nil {
		h.fail(c, "all", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": list, "total": total, "page": page, "limit": limit})
}

// FixStale runs the cross-day reconciliation now for the admin's company.
func (h *AttendanceHandler) FixStale(c *gin.Context) {
	n, err := h.reconciler.FixCrossDayFor(c.Request.Context(), middleware.GetCompanyID(c))
	if err != nil {
		h.fail(c, "fix-stale", err)
		return
	}
	h.log.Info("cross-day fix requested", "user_id", middleware.GetUserID(c), "company_id", middleware.GetCompanyID(c), "fixed", n)
	c.JSON(http.StatusOK, gin.H{"fixedRecords": n})
}

// Export downloads the admin's company records in a date range as xlsx.
func (h *AttendanceHandler) Export(c *gin.Context) {
	from, to, ok := dateRange(c)
	if !ok {
		return
	}
	list, from, to, err := h.svc.Range(c.Request.Context(), middleware.GetCompanyID(c), from, to)
	if err != nil {
		h.fail(c, "export", err)
		return
	}
	rows := make([]export.Row, 0, len(list))
	for _, r := range list {
		rows = append(rows, export.Row{
			UserID:     r.UserID,
			Date:       r.Date,
			ClockIn:    r.ClockInTime,
			ClockOut:   r.ClockOutTime,
			TotalHours: r.TotalHours,
			Status:     r.Status,
			Active:     r.IsActive,
		})
	}
	var buf bytes.Buffer
	if err := export.WriteAttendance(&buf, rows, h.svc.Policy().Location); err != nil {
		h.fail(c, "export", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="attendance_%s_%s.xlsx"`, from, to))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *AttendanceHandler) fail(c *gin.Context, op string, err error) {
	h.log.Error("attendance query failed", "op", op, "company_id", middleware.GetCompanyID(c), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load attendance"})
}

func dateRange(c *gin.Context) (string, string, bool) {
	from, to := c.Query("from"), c.Query("to")
	if (from != "" && !validDate(from)) || (to != "" && !validDate(to)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from/to (use YYYY-MM-DD)"})
		return "", "", false
	}
	if from != "" && to != "" && from > to {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must not be after to"})
		return "", "", false
	}
	return from, to, true
}

func validDate(s string) bool {
	_, err := time.Parse(domain.DateLayout, s)
	return err == nil
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
