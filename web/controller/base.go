// Package controller provides the HTTP handlers of medreport: the auth
// endpoints, the patient, doctor and admin APIs and the page shells.
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/medreport/medreport/logger"
	"github.com/medreport/medreport/web/entity"
)

const (
	msgDataFetched = "Data fetched successfully"
	msgDBFailure   = "Database query failed. Please try again later."
	msgInternal    = "Internal server error"
	msgNoTestData  = "No test data found for this user."
	msgBadEmail    = "A valid email address is required."
)

// jsonError aborts with the error envelope.
func jsonError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, entity.Msg{Error: msg})
}

// bindForm binds the JSON body into form and runs its binding rules. A
// malformed email gets its own message, any other failure answers 400 with
// invalidMsg.
func bindForm(c *gin.Context, form any, invalidMsg string) bool {
	err := c.ShouldBindJSON(form)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "email" {
				jsonError(c, http.StatusBadRequest, msgBadEmail)
				return false
			}
		}
	}
	jsonError(c, http.StatusBadRequest, invalidMsg)
	return false
}

// dbError logs err and answers with the generic persistence failure.
func dbError(c *gin.Context, err error) {
	logger.Errorf("%s %s: database error: %v", c.Request.Method, c.Request.URL.Path, err)
	jsonError(c, http.StatusInternalServerError, msgDBFailure)
}

// jsonPage writes one page of rows, or 404 with notFound when the first
// page is empty. Later empty pages are a normal response.
func jsonPage[T any](c *gin.Context, rows []T, total int64, q entity.PageQuery, notFound string) {
	if len(rows) == 0 && q.Page == 1 {
		jsonError(c, http.StatusNotFound, notFound)
		return
	}
	c.JSON(http.StatusOK, entity.PageMsg{
		Message:    msgDataFetched,
		Data:       rows,
		Pagination: entity.NewPagination(q.Page, q.Limit, total),
	})
}
