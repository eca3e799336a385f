package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medreport/medreport/database/model"
	"github.com/medreport/medreport/logger"
	"github.com/medreport/medreport/web/middleware"
	"github.com/medreport/medreport/web/service"
	"github.com/medreport/medreport/web/session"
)

type makeReportForm struct {
	Symptoms []string `json:"symptoms" binding:"required"`
}

// PatientController serves the patient API.
type PatientController struct {
	userService       *service.UserService
	reportService     *service.ReportService
	predictionService *service.PredictionService
}

func NewPatientController(g *gin.RouterGroup, verifier middleware.TokenVerifier, users *service.UserService,
	reports *service.ReportService, prediction *service.PredictionService) *PatientController {
	a := &PatientController{
		userService:       users,
		reportService:     reports,
		predictionService: prediction,
	}
	a.initRouter(g.Group("/patient", middleware.RequireRole(verifier, model.RolePatient)))
	return a
}

func (a *PatientController) initRouter(g *gin.RouterGroup) {
	g.GET("/dashboard", a.dashboard)
	g.GET("/make-report", a.makeReportInfo)
	g.POST("/make-report", a.makeReport)
	g.GET("/report-history", a.reportHistory)
}

func (a *PatientController) dashboard(c *gin.Context) {
	claims := session.GetClaims(c)
	profile, err := a.userService.GetProfile(model.RolePatient, claims.ID)
	if errors.Is(err, service.ErrUserNotFound) {
		jsonError(c, http.StatusNotFound, "No data found for this patient.")
		return
	}
	if err != nil {
		dbError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patientData": profile})
}

func (a *PatientController) makeReportInfo(c *gin.Context) {
	claims := session.GetClaims(c)
	c.JSON(http.StatusOK, gin.H{"message": msgDataFetched, "id": claims.ID, "role": claims.Role})
}

func (a *PatientController) makeReport(c *gin.Context) {
	claims := session.GetClaims(c)

	var form makeReportForm
	if !bindForm(c, &form, "At least one symptom is required.") {
		return
	}
	symptoms := make([]string, 0, len(form.Symptoms))
	for _, s := range form.Symptoms {
		if s = strings.TrimSpace(s); s != "" {
			symptoms = append(symptoms, s)
		}
	}
	if len(symptoms) == 0 {
		jsonError(c, http.StatusBadRequest, "At least one symptom is required.")
		return
	}

	prediction, err := a.predictionService.Predict(c.Request.Context(), session.GetBearerOrCookie(c), symptoms)
	if err != nil {
		var upstream *service.UpstreamError
		if errors.As(err, &upstream) {
			logger.Warningf("prediction for user %d failed: %v", claims.ID, err)
			jsonError(c, http.StatusBadGateway, "Prediction service is unavailable. Please try again later.")
			return
		}
		logger.Error("prediction request error:", err)
		jsonError(c, http.StatusInternalServerError, msgInternal)
		return
	}

	report, err := a.reportService.Create(claims.ID, symptoms, prediction.Tests)
	if err != nil {
		dbError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Report created successfully",
		"data": gin.H{
			"reportId":    report.Id,
			"symptoms":    report.Symptoms,
			"testByModel": report.TestByModel,
		},
		"prediction": prediction.Raw,
	})
}

func (a *PatientController) reportHistory(c *gin.Context) {
	claims := session.GetClaims(c)
	q := parsePageQuery(c, "limit", defaultLimit)

	rows, total, err := a.reportService.History(claims.ID, q)
	if err != nil {
		dbError(c, err)
		return
	}
	jsonPage(c, rows, total, q, msgNoTestData)
}
