package controller

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medreport/medreport/database/model"
	"github.com/medreport/medreport/logger"
	"github.com/medreport/medreport/web/entity"
	"github.com/medreport/medreport/web/middleware"
	"github.com/medreport/medreport/web/service"
	"github.com/medreport/medreport/web/session"
)

const (
	defaultPerPage  = 25
	defaultLogCount = 100
	maxLogCount     = 1000
)

// DoctorForm is the admin form for a new doctor account.
type DoctorForm struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	City        string `json:"city" binding:"required"`
	Specialty   string `json:"specialty" binding:"required"`
	Designation string `json:"designation" binding:"required"`
	Gender      string `json:"gender" binding:"required"`
}

// AdminController serves the admin API.
type AdminController struct {
	userService   *service.UserService
	reportService *service.ReportService
	auditService  *service.AuditLogService
}

func NewAdminController(g *gin.RouterGroup, verifier middleware.TokenVerifier, users *service.UserService,
	reports *service.ReportService, audit *service.AuditLogService) *AdminController {
	a := &AdminController{
		userService:   users,
		reportService: reports,
		auditService:  audit,
	}
	a.initRouter(g.Group("/admin", middleware.RequireRole(verifier, model.RoleAdmin)))
	return a
}

func (a *AdminController) initRouter(g *gin.RouterGroup) {
	g.GET("/dashboard", a.dashboard)
	g.POST("/addDoctor", middleware.Audit(a.auditService, service.ActionCreateDoctor, "user"), a.addDoctor)
	g.GET("/total-report", a.totalReport)
	g.GET("/audit-logs", a.auditLogs)
	g.GET("/logs", a.logs)
}

func (a *AdminController) dashboard(c *gin.Context) {
	claims := session.GetClaims(c)
	profile, err := a.userService.GetProfile(model.RoleAdmin, claims.ID)
	if errors.Is(err, service.ErrUserNotFound) {
		jsonError(c, http.StatusNotFound, "No data found for this admin.")
		return
	}
	if err != nil {
		dbError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"adminData": profile})
}

func (a *AdminController) addDoctor(c *gin.Context) {
	var form DoctorForm
	if !bindForm(c, &form, "All fields are required") {
		return
	}
	if blank(form.Name, form.PhoneNumber, form.City, form.Specialty, form.Designation, form.Gender) {
		jsonError(c, http.StatusBadRequest, "All fields are required")
		return
	}

	doctor, err := a.userService.AddDoctor(service.DoctorInput{
		Name:        strings.TrimSpace(form.Name),
		Email:       form.Email,
		PhoneNumber: strings.TrimSpace(form.PhoneNumber),
		City:        strings.TrimSpace(form.City),
		Specialty:   strings.TrimSpace(form.Specialty),
		Designation: strings.TrimSpace(form.Designation),
		Gender:      strings.TrimSpace(form.Gender),
	})
	switch {
	case errors.Is(err, service.ErrUserExists):
		jsonError(c, http.StatusBadRequest, "User already exists.")
		return
	case err != nil:
		jsonError(c, http.StatusInternalServerError, "Failed to register user")
		return
	}

	middleware.SetAuditTarget(c, 0, "", doctor.Id)
	c.JSON(http.StatusCreated, entity.Message{Message: "User registered successfully, confirmation email sent"})
}

func (a *AdminController) totalReport(c *gin.Context) {
	dates, err := service.ParseDateRange(c.Query("startDate"), c.Query("endDate"))
	switch {
	case errors.Is(err, service.ErrInvalidDateRange):
		jsonError(c, http.StatusBadRequest, "startDate must not be after endDate.")
		return
	case err != nil:
		jsonError(c, http.StatusBadRequest, "Invalid date. Use YYYY-MM-DD or an ISO 8601 timestamp.")
		return
	}

	q := parsePageQuery(c, "perPage", defaultPerPage)
	rows, total, err := a.reportService.Approved(dates, q)
	if err != nil {
		dbError(c, err)
		return
	}
	if len(rows) == 0 && q.Page == 1 {
		jsonError(c, http.StatusNotFound, "No data found.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reportData": rows,
		"page":       q.Page,
		"perPage":    q.Limit,
		"totalCount": total,
		"pagination": entity.NewPagination(q.Page, q.Limit, total),
	})
}

func (a *AdminController) auditLogs(c *gin.Context) {
	q := parsePageQuery(c, "perPage", defaultPerPage)
	logs, total, err := a.auditService.GetAuditLogs(q)
	if err != nil {
		dbError(c, err)
		return
	}
	c.JSON(http.StatusOK, entity.PageMsg{
		Message:    msgDataFetched,
		Data:       logs,
		Pagination: entity.NewPagination(q.Page, q.Limit, total),
	})
}

func (a *AdminController) logs(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", strconv.Itoa(defaultLogCount)))
	if err != nil || count < 1 {
		count = defaultLogCount
	}
	count = min(count, maxLogCount)
	level := c.DefaultQuery("level", "info")
	c.JSON(http.StatusOK, entity.DataMsg{Message: msgDataFetched, Data: logger.GetLogs(count, level)})
}
