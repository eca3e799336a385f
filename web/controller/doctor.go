package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medreport/medreport/database/model"
	"github.com/medreport/medreport/web/entity"
	"github.com/medreport/medreport/web/middleware"
	"github.com/medreport/medreport/web/service"
	"github.com/medreport/medreport/web/session"
)

// ApproveForm is the doctor's review of a pending report.
type ApproveForm struct {
	ReportID    int    `json:"reportId" binding:"required,gt=0"`
	TestByModel string `json:"testByModel" binding:"required"`
}

// DoctorController serves the doctor API.
type DoctorController struct {
	userService   *service.UserService
	reportService *service.ReportService
	auditService  *service.AuditLogService
}

func NewDoctorController(g *gin.RouterGroup, verifier middleware.TokenVerifier, users *service.UserService,
	reports *service.ReportService, audit *service.AuditLogService) *DoctorController {
	a := &DoctorController{
		userService:   users,
		reportService: reports,
		auditService:  audit,
	}
	a.initRouter(g.Group("/doctor", middleware.RequireRole(verifier, model.RoleDoctor)))
	return a
}

func (a *DoctorController) initRouter(g *gin.RouterGroup) {
	g.GET("/dashboard", a.dashboard)
	g.GET("/report-request", a.reportRequests)
	g.POST("/report-request", middleware.Audit(a.auditService, service.ActionApprove, "report"), a.approve)
	g.GET("/reviewed-report", a.reviewedReports)
}

func (a *DoctorController) dashboard(c *gin.Context) {
	claims := session.GetClaims(c)
	profile, err := a.userService.GetProfile(model.RoleDoctor, claims.ID)
	if errors.Is(err, service.ErrUserNotFound) {
		jsonError(c, http.StatusNotFound, "No data found for this doctor.")
		return
	}
	if err != nil {
		dbError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"doctorData": profile})
}

func (a *DoctorController) reportRequests(c *gin.Context) {
	q := parsePageQuery(c, "limit", defaultLimit)
	rows, total, err := a.reportService.Pending(q)
	if err != nil {
		dbError(c, err)
		return
	}
	jsonPage(c, rows, total, q, msgNoTestData)
}

func (a *DoctorController) approve(c *gin.Context) {
	claims := session.GetClaims(c)

	var form ApproveForm
	if !bindForm(c, &form, "Invalid request data.") {
		return
	}
	if strings.TrimSpace(form.TestByModel) == "" {
		jsonError(c, http.StatusBadRequest, "Invalid request data.")
		return
	}

	err := a.reportService.Approve(form.ReportID, claims.ID, form.TestByModel)
	switch {
	case errors.Is(err, service.ErrReportNotFound):
		jsonError(c, http.StatusNotFound, "Report not found.")
		return
	case errors.Is(err, service.ErrReportAlreadyApproved):
		jsonError(c, http.StatusConflict, "Report has already been approved.")
		return
	case err != nil:
		dbError(c, err)
		return
	}

	middleware.SetAuditTarget(c, 0, "", form.ReportID)
	c.JSON(http.StatusOK, entity.DataMsg{
		Message: "Report updated and approved successfully",
		Data: gin.H{
			"reportId":    form.ReportID,
			"doctorId":    claims.ID,
			"testByModel": form.TestByModel,
		},
	})
}

func (a *DoctorController) reviewedReports(c *gin.Context) {
	claims := session.GetClaims(c)
	q := parsePageQuery(c, "limit", defaultLimit)

	rows, total, err := a.reportService.Reviewed(claims.ID, q)
	if err != nil {
		dbError(c, err)
		return
	}
	jsonPage(c, rows, total, q, msgNoTestData)
}
