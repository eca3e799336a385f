package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medreport/medreport/logger"
	"github.com/medreport/medreport/util/metrics"
	"github.com/medreport/medreport/web/entity"
	"github.com/medreport/medreport/web/middleware"
	"github.com/medreport/medreport/web/service"
	"github.com/medreport/medreport/web/session"
)

// RegisterForm is the patient self-registration body.
type RegisterForm struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DateOfBirth string `json:"date_of_birth"`
	Gender      string `json:"gender"`
}

// LoginForm represents the login request structure.
type LoginForm struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type forgotPasswordForm struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordForm struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// AuthController handles registration, login, logout and password reset.
type AuthController struct {
	authService  *service.AuthService
	userService  *service.UserService
	auditService *service.AuditLogService
	cookieSecure bool
}

// NewAuthController creates the controller and registers its routes on g.
// limit guards the credential endpoints.
func NewAuthController(g *gin.RouterGroup, auth *service.AuthService, users *service.UserService,
	audit *service.AuditLogService, cookieSecure bool, limit gin.HandlerFunc) *AuthController {
	a := &AuthController{
		authService:  auth,
		userService:  users,
		auditService: audit,
		cookieSecure: cookieSecure,
	}
	a.initRouter(g, limit)
	return a
}

func (a *AuthController) initRouter(g *gin.RouterGroup, limit gin.HandlerFunc) {
	g = g.Group("/auth")

	g.POST("/register", limit, middleware.Audit(a.auditService, service.ActionRegister, "user"), a.register)
	g.POST("/login", limit, middleware.Audit(a.auditService, service.ActionLogin, "user"), a.login)
	g.POST("/logout", middleware.Audit(a.auditService, service.ActionLogout, "user"), a.logout)
	g.POST("/forgot-password", limit, a.forgotPassword)
	g.POST("/reset-password", limit, middleware.Audit(a.auditService, service.ActionResetPassword, "user"), a.resetPassword)
}

func (a *AuthController) register(c *gin.Context) {
	var form RegisterForm
	if !bindForm(c, &form, "All fields are required.") {
		logger.Warning("Registration failed: invalid or missing fields")
		return
	}
	if blank(form.Name, form.PhoneNumber, form.Password) {
		jsonError(c, http.StatusBadRequest, "All fields are required.")
		return
	}

	user, token, err := a.authService.Register(service.RegisterInput{
		Name:        strings.TrimSpace(form.Name),
		Email:       form.Email,
		PhoneNumber: strings.TrimSpace(form.PhoneNumber),
		Password:    form.Password,
		DateOfBirth: strings.TrimSpace(form.DateOfBirth),
		Gender:      strings.TrimSpace(form.Gender),
	})
	switch {
	case errors.Is(err, service.ErrUserExists):
		jsonError(c, http.StatusBadRequest, "User already exists.")
		return
	case errors.Is(err, service.ErrInvalidDateOfBirth):
		jsonError(c, http.StatusBadRequest, "Date of birth must be in YYYY-MM-DD format.")
		return
	case err != nil:
		logger.Error("Registration error:", err)
		jsonError(c, http.StatusInternalServerError, msgInternal)
		return
	}

	middleware.SetAuditTarget(c, user.Id, user.Email, user.Id)
	c.JSON(http.StatusCreated, gin.H{"token": token, "message": "User registered successfully!"})
}

func (a *AuthController) login(c *gin.Context) {
	var form LoginForm
	if !bindForm(c, &form, "Email and password are required.") {
		return
	}

	user, token, err := a.authService.Login(form.Email, form.Password)
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		metrics.LoginAttempts.WithLabelValues("unknown_user").Inc()
		logger.Warningf("login for unknown email, IP: %q", c.ClientIP())
		jsonError(c, http.StatusNotFound, "User not found.")
		return
	case errors.Is(err, service.ErrIncorrectPassword):
		metrics.LoginAttempts.WithLabelValues("bad_password").Inc()
		logger.Warningf("wrong password for %q, IP: %q", form.Email, c.ClientIP())
		jsonError(c, http.StatusBadRequest, "Incorrect password.")
		return
	case err != nil:
		logger.Error("Login error:", err)
		jsonError(c, http.StatusInternalServerError, msgInternal)
		return
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	session.SetAccessToken(c, token, a.authService.TokenTTL(), a.cookieSecure)
	middleware.SetAuditTarget(c, user.Id, user.Email, user.Id)
	c.JSON(http.StatusOK, gin.H{
		"accessToken": token,
		"role":        user.Role,
		"message":     "Login successful!",
	})
}

func (a *AuthController) logout(c *gin.Context) {
	token := session.GetToken(c)
	if token == "" {
		jsonError(c, http.StatusUnauthorized, "No token found, user is not logged in")
		return
	}
	claims, err := a.authService.ParseToken(token)
	if err != nil {
		jsonError(c, http.StatusUnauthorized, "Failed to log out: Invalid or expired token")
		return
	}

	session.SetClaims(c, claims)
	session.ClearAccessToken(c, a.cookieSecure)
	logger.Infof("%s logged out successfully", claims.Email)
	c.JSON(http.StatusOK, entity.Message{Message: "Logged out successfully"})
}

func (a *AuthController) forgotPassword(c *gin.Context) {
	var form forgotPasswordForm
	if !bindForm(c, &form, "Email is required.") {
		return
	}

	err := a.userService.ForgotPassword(form.Email)
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		jsonError(c, http.StatusBadRequest, "User not found.")
		return
	case err != nil:
		logger.Error("Error in forgot-password:", err)
		jsonError(c, http.StatusInternalServerError, msgInternal)
		return
	}
	c.JSON(http.StatusOK, entity.Message{Message: "Reset link sent to email."})
}

func (a *AuthController) resetPassword(c *gin.Context) {
	var form resetPasswordForm
	if !bindForm(c, &form, "Token and new password are required.") {
		return
	}
	if blank(form.Token, form.NewPassword) {
		jsonError(c, http.StatusBadRequest, "Token and new password are required.")
		return
	}

	user, err := a.userService.ResetPassword(strings.TrimSpace(form.Token), form.NewPassword)
	switch {
	case errors.Is(err, service.ErrInvalidResetToken):
		jsonError(c, http.StatusBadRequest, "Invalid or expired token.")
		return
	case err != nil:
		logger.Error("Error in reset-password:", err)
		jsonError(c, http.StatusInternalServerError, msgInternal)
		return
	}

	middleware.SetAuditTarget(c, user.Id, user.Email, user.Id)
	c.JSON(http.StatusOK, entity.Message{Message: "Password reset successful."})
}

// blank reports whether any of values is empty after trimming.
func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
