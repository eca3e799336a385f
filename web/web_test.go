package web

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medreport/medreport/config"
	"github.com/medreport/medreport/database"
	"github.com/medreport/medreport/database/model"
	"github.com/medreport/medreport/web/cache"
	"github.com/medreport/medreport/web/session"
)

type memMailer struct {
	mu    sync.Mutex
	last  string
	fails bool
}

func (m *memMailer) Send(to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fails {
		return fmt.Errorf("smtp down")
	}
	m.last = htmlBody
	return nil
}

type testApp struct {
	t      *testing.T
	engine *gin.Engine
	mailer *memMailer
}

func newTestApp(t *testing.T, opts ...func(*config.Config)) *testApp {
	t.Helper()

	predictor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"tests":["CBC","Chest X-Ray"]}`))
	}))
	t.Cleanup(predictor.Close)

	dbCfg := config.DatabaseConfig{
		Type:   config.DatabaseTypeSQLite,
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	}
	require.NoError(t, database.InitDB(&dbCfg))
	t.Cleanup(func() { _ = database.CloseDB() })
	require.NoError(t, cache.InitRedis(""))
	t.Cleanup(func() { _ = cache.Close() })

	cfg := &config.Config{
		AppBaseURL:         "http://localhost:3000",
		TimeLocation:       "UTC",
		Database:           dbCfg,
		Auth:               config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTL: time.Hour, ResetTokenTTL: time.Hour},
		Prediction:         config.PredictionConfig{URL: predictor.URL, Timeout: 2 * time.Second},
		RateLimitPerMinute: 1000,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	mailer := &memMailer{}
	s := NewServer(cfg)
	s.initServices(mailer)
	engine, err := s.initRouter()
	require.NoError(t, err)

	require.NoError(t, database.EnsureAdmin(config.AdminSeed{Email: "admin@example.com", Password: "adminpass", Name: "Admin"}))
	return &testApp{t: t, engine: engine, mailer: mailer}
}

func (a *testApp) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (a *testApp) login(email, password string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	return decode(a.t, w)["accessToken"].(string)
}

var passwordRe = regexp.MustCompile(`<strong>Password:</strong> ([0-9a-f]+)`)

func TestReportWorkflow(t *testing.T) {
	app := newTestApp(t)

	// patient registers and logs in
	w := app.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": "Paula", "email": "paula@example.com", "phone_number": "0123", "password": "pw", "role": "admin",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "User registered successfully!", decode(t, w)["message"])

	w = app.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "paula@example.com", "password": "pw"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "patient", body["role"], "role cannot be chosen at registration")
	patient := body["accessToken"].(string)
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	// history is empty at first
	w = app.do(http.MethodGet, "/api/v1/patient/report-history", patient, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No test data found for this user.", decode(t, w)["error"])

	// submit symptoms
	w = app.do(http.MethodPost, "/api/v1/patient/make-report", patient, gin.H{"symptoms": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(http.MethodPost, "/api/v1/patient/make-report", patient, gin.H{"symptoms": []string{"fever", "cough"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, "fever, cough", data["symptoms"])
	assert.Equal(t, "CBC, Chest X-Ray", data["testByModel"])
	reportID := int(data["reportId"].(float64))

	// admin adds a doctor, who receives a password by mail
	admin := app.login("admin@example.com", "adminpass")
	w = app.do(http.MethodPost, "/api/v1/admin/addDoctor", admin, gin.H{"name": "Dan"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = app.do(http.MethodPost, "/api/v1/admin/addDoctor", admin, gin.H{
		"name": "Dan", "email": "dan@example.com", "phone_number": "0456", "city": "Dhaka",
		"specialty": "Medicine", "designation": "Consultant", "gender": "male",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	m := passwordRe.FindStringSubmatch(app.mailer.last)
	require.Len(t, m, 2)
	doctor := app.login("dan@example.com", m[1])

	// patient cannot approve
	w = app.do(http.MethodPost, "/api/v1/doctor/report-request", patient, gin.H{"reportId": reportID, "testByModel": "CBC"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// doctor sees it pending and approves
	w = app.do(http.MethodGet, "/api/v1/doctor/report-request", doctor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	pagination := decode(t, w)["pagination"].(map[string]any)
	assert.EqualValues(t, 1, pagination["total"])

	w = app.do(http.MethodPost, "/api/v1/doctor/report-request", doctor, gin.H{"reportId": reportID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request data.", decode(t, w)["error"])

	w = app.do(http.MethodPost, "/api/v1/doctor/report-request", doctor, gin.H{"reportId": reportID, "testByModel": "CBC, CRP"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Report updated and approved successfully", decode(t, w)["message"])

	w = app.do(http.MethodPost, "/api/v1/doctor/report-request", doctor, gin.H{"reportId": reportID, "testByModel": "other"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Report has already been approved.", decode(t, w)["error"])

	w = app.do(http.MethodPost, "/api/v1/doctor/report-request", doctor, gin.H{"reportId": 999, "testByModel": "CBC"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(http.MethodGet, "/api/v1/doctor/report-request", doctor, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(http.MethodGet, "/api/v1/doctor/reviewed-report", doctor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rows := decode(t, w)["data"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "CBC, CRP", rows[0].(map[string]any)["test_by_doctor"])

	// the patient's history shows the approver
	w = app.do(http.MethodGet, "/api/v1/patient/report-history?page=1&limit=5", patient, nil)
	require.Equal(t, http.StatusOK, w.Code)
	row := decode(t, w)["data"].([]any)[0].(map[string]any)
	assert.EqualValues(t, 1, row["isApprove"])
	assert.Equal(t, "Dan", row["approved_by_name"])
	assert.Equal(t, "Medicine", row["specialty"])
	assert.Equal(t, "Not Provided", row["user_gender"])

	// admin overview
	w = app.do(http.MethodGet, "/api/v1/admin/total-report", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.EqualValues(t, 1, body["totalCount"])
	assert.EqualValues(t, 25, body["perPage"])

	w = app.do(http.MethodGet, "/api/v1/admin/total-report?startDate=2000-01-02&endDate=2000-01-01", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(http.MethodGet, "/api/v1/admin/total-report?startDate=2000-01-01&endDate=2000-01-31", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "No data found.", decode(t, w)["error"])

	// every step above was audited
	w = app.do(http.MethodGet, "/api/v1/admin/audit-logs?perPage=50", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	actions := map[string]int{}
	for _, l := range decode(t, w)["data"].([]any) {
		actions[l.(map[string]any)["action"].(string)]++
	}
	assert.Equal(t, 1, actions["REGISTER"])
	assert.Equal(t, 1, actions["APPROVE"])
	assert.Equal(t, 1, actions["CREATE_DOCTOR"])
	assert.GreaterOrEqual(t, actions["LOGIN"], 3)
}

func TestAuthEndpoints(t *testing.T) {
	app := newTestApp(t)

	w := app.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "All fields are required.", decode(t, w)["error"])

	w = app.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": "Admin", "email": "ADMIN@example.com", "phone_number": "1", "password": "x",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already exists.", decode(t, w)["error"])

	w = app.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "admin@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = app.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "ghost@example.com", "password": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = app.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "admin@example.com", "password": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Incorrect password.", decode(t, w)["error"])

	w = app.do(http.MethodPost, "/api/v1/auth/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = app.do(http.MethodPost, "/api/v1/auth/logout", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Failed to log out: Invalid or expired token", decode(t, w)["error"])

	token := app.login("admin@example.com", "adminpass")
	w = app.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Logged out successfully", decode(t, w)["message"])

	// password reset round trip
	w = app.do(http.MethodPost, "/api/v1/auth/forgot-password", "", gin.H{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = app.do(http.MethodPost, "/api/v1/auth/forgot-password", "", gin.H{"email": "admin@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	m := regexp.MustCompile(`token=([0-9a-f]+)`).FindStringSubmatch(app.mailer.last)
	require.Len(t, m, 2)

	w = app.do(http.MethodPost, "/api/v1/auth/reset-password", "", gin.H{"token": m[1]})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = app.do(http.MethodPost, "/api/v1/auth/reset-password", "", gin.H{"token": m[1], "newPassword": "fresh"})
	require.Equal(t, http.StatusOK, w.Code)
	w = app.do(http.MethodPost, "/api/v1/auth/reset-password", "", gin.H{"token": m[1], "newPassword": "again"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid or expired token.", decode(t, w)["error"])
	app.login("admin@example.com", "fresh")
}

func TestRoleEndpointsRequireToken(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/api/v1/patient/dashboard", "/api/v1/doctor/reviewed-report", "/api/v1/admin/total-report"} {
		w := app.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
		body := decode(t, w)
		assert.Equal(t, "You must be logged in to view this page.", body["error"])
		assert.NotContains(t, body, "data")
	}

	admin := app.login("admin@example.com", "adminpass")
	w := app.do(http.MethodGet, "/api/v1/patient/dashboard", admin, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = app.do(http.MethodGet, "/api/v1/admin/dashboard", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode(t, w)["adminData"].(map[string]any)
	assert.Equal(t, "admin@example.com", profile["email"])
	assert.NotContains(t, profile, "specialty")
}

func TestAddDoctorMailFailureRollsBack(t *testing.T) {
	app := newTestApp(t)
	admin := app.login("admin@example.com", "adminpass")
	app.mailer.fails = true

	w := app.do(http.MethodPost, "/api/v1/admin/addDoctor", admin, gin.H{
		"name": "Dan", "email": "dan@example.com", "phone_number": "0456", "city": "Dhaka",
		"specialty": "Medicine", "designation": "Consultant", "gender": "male",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var count int64
	require.NoError(t, database.GetDB().Model(&model.User{}).Where("email = ?", "dan@example.com").Count(&count).Error)
	assert.Zero(t, count)
}

func TestPagesAndOps(t *testing.T) {
	app := newTestApp(t)
	admin := app.login("admin@example.com", "adminpass")

	page := func(path, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token})
		}
		w := httptest.NewRecorder()
		app.engine.ServeHTTP(w, req)
		return w
	}

	w := page("/login", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<title>Login - MedReport</title>")

	w = page("/login", admin)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/admin/dashboard", w.Header().Get("Location"))

	w = page("/admin/dashboard", admin)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Signed in as Admin")

	w = page("/doctor/dashboard", admin)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = page("/patient/dashboard", "")
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = page("/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = page("/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "medreport_http_requests_total")

	w = page("/nowhere", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServerStartStop(t *testing.T) {
	newTestApp(t)

	s := NewServer(&config.Config{
		Listen:       "127.0.0.1",
		Port:         0,
		TimeLocation: "UTC",
		Auth:         config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTL: time.Hour},
		Prediction:   config.PredictionConfig{URL: "http://127.0.0.1:1", Timeout: time.Second},
	})
	require.NoError(t, s.Start())
	assert.Len(t, s.GetCron().Entries(), 2)

	resp, err := http.Get("http://" + s.listener.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop())
}

func (a *testApp) loginFrom(forwardedFor string) int {
	a.t.Helper()
	b, err := json.Marshal(gin.H{"email": "ghost@example.com", "password": "x"})
	require.NoError(a.t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitIgnoresForwardedFor(t *testing.T) {
	app := newTestApp(t, func(cfg *config.Config) { cfg.RateLimitPerMinute = 2 })

	var codes []int
	for i := 1; i <= 6; i++ {
		codes = append(codes, app.loginFrom(fmt.Sprintf("10.0.0.%d", i)))
	}
	assert.Equal(t, []int{404, 404, 429, 429, 429, 429}, codes)
}

func TestRateLimitTrustsConfiguredProxy(t *testing.T) {
	// httptest requests come from 192.0.2.1
	app := newTestApp(t, func(cfg *config.Config) {
		cfg.RateLimitPerMinute = 2
		cfg.TrustedProxies = []string{"192.0.2.1"}
	})

	for i := 1; i <= 4; i++ {
		assert.Equal(t, http.StatusNotFound, app.loginFrom(fmt.Sprintf("10.0.0.%d", i)))
	}
	assert.Equal(t, http.StatusNotFound, app.loginFrom("10.0.0.9"))
	assert.Equal(t, http.StatusNotFound, app.loginFrom("10.0.0.9"))
	assert.Equal(t, http.StatusTooManyRequests, app.loginFrom("10.0.0.9"))
}

func TestMalformedEmailIsRejected(t *testing.T) {
	app := newTestApp(t)
	const msg = "A valid email address is required."

	w := app.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": "Paula", "email": "not an email", "phone_number": "0123", "password": "pw",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msg, decode(t, w)["error"])

	w = app.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "not an email", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msg, decode(t, w)["error"])

	w = app.do(http.MethodPost, "/api/v1/auth/forgot-password", "", gin.H{"email": "paula@"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msg, decode(t, w)["error"])

	admin := app.login("admin@example.com", "adminpass")
	w = app.do(http.MethodPost, "/api/v1/admin/addDoctor", admin, gin.H{
		"name": "Dan", "email": "dan.example.com", "phone_number": "0456", "city": "Dhaka",
		"specialty": "Medicine", "designation": "Consultant", "gender": "male",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msg, decode(t, w)["error"])

	w = app.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"name": "   ", "email": "paula@example.com", "phone_number": "0123", "password": "pw",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "All fields are required.", decode(t, w)["error"])

	var count int64
	require.NoError(t, database.GetDB().Model(&model.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "only the seeded admin exists")
}

func TestRoleAreaRootIsGated(t *testing.T) {
	app := newTestApp(t)
	admin := app.login("admin@example.com", "adminpass")

	req := httptest.NewRequest(http.MethodGet, "/patient", nil)
	w := httptest.NewRecorder()
	app.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: admin})
	w = httptest.NewRecorder()
	app.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<title>Admin dashboard - MedReport</title>")
}
