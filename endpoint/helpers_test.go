package endpoint

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/dexavision/admin-console/config"
	"github.com/dexavision/admin-console/identity"
	"github.com/dexavision/admin-console/middleware"
	"github.com/dexavision/admin-console/model"
	"github.com/dexavision/admin-console/pagination"
	"github.com/dexavision/admin-console/profile"
	"github.com/dexavision/admin-console/session"
	"github.com/dexavision/admin-console/upstream"
)

const (
	testAdminEmail    = "admin@example.com"
	testAdminPassword = "correct-horse"
)

// fakeBackend is an in-memory stand-in for the upstream verification backend
// speaking its envelope and cursor protocol. Cursors are stringified page
// start offsets, opaque to the code under test.
type fakeBackend struct {
	mu           sync.Mutex
	doctors      []model.DoctorDetail
	profileRole  string
	profileFails bool
	listCalls    int
	lastStatus   string
	lastLimit    string
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{profileRole: "admin"}
	for i := 0; i < 25; i++ {
		status := model.StatusInReview
		if i%5 == 4 {
			status = model.StatusApproved
		}
		b.doctors = append(b.doctors, model.DoctorDetail{
			Doctor: model.Doctor{
				UserID:        fmt.Sprintf("doc-%02d", i),
				Email:         fmt.Sprintf("doc%02d@example.com", i),
				DisplayName:   fmt.Sprintf("Doctor %02d", i),
				ProfileStatus: status,
			},
			DocumentURLs: []model.DocumentURL{
				{Key: "k1", URL: "https://files.example.com/k1", Type: model.DocTypeProfessional},
			},
		})
	}
	return b
}

func writeBackendEnvelope(w http.ResponseWriter, data interface{}) {
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": data})
}

func (b *fakeBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()

		switch {
		case r.URL.Path == "/doctor/profile":
			if b.profileFails {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			writeBackendEnvelope(w, map[string]string{
				"displayName": "Admin User",
				"email":       testAdminEmail,
				"role":        b.profileRole,
				"userId":      "admin-uid",
			})

		case r.URL.Path == "/admin/doctors" && r.Method == http.MethodGet:
			b.listCalls++
			b.lastStatus = r.URL.Query().Get("status")
			b.lastLimit = r.URL.Query().Get("limit")
			b.serveList(w, r)

		case strings.HasSuffix(r.URL.Path, "/review") && r.Method == http.MethodPut:
			id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/admin/doctors/"), "/review")
			b.serveReview(w, r, id)

		case strings.HasPrefix(r.URL.Path, "/admin/doctors/") && r.Method == http.MethodGet:
			id := strings.TrimPrefix(r.URL.Path, "/admin/doctors/")
			b.serveDetail(w, id)

		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"error":"not found"}`))
		}
	}
}

func (b *fakeBackend) filtered(status string) []model.DoctorDetail {
	if status == "" || status == "all" {
		return b.doctors
	}
	var out []model.DoctorDetail
	for _, d := range b.doctors {
		if d.ProfileStatus == status {
			out = append(out, d)
		}
	}
	return out
}

func (b *fakeBackend) serveList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 10
	}
	start := 0
	if after := q.Get("after"); after != "" {
		start, _ = strconv.Atoi(after)
	}
	if before := q.Get("before"); before != "" {
		start, _ = strconv.Atoi(before)
	}

	rows := b.filtered(q.Get("status"))
	end := start + limit
	if end > len(rows) {
		end = len(rows)
	}
	if start > len(rows) {
		start = len(rows)
	}

	doctors := make([]model.Doctor, 0, end-start)
	for _, d := range rows[start:end] {
		doctors = append(doctors, d.Doctor)
	}

	after, before := "", ""
	if end < len(rows) {
		after = strconv.Itoa(end)
	}
	if start > 0 {
		prev := start - limit
		if prev < 0 {
			prev = 0
		}
		before = strconv.Itoa(prev)
	}

	counts := model.Counts{}
	for _, d := range b.doctors {
		switch d.ProfileStatus {
		case model.StatusIncomplete:
			counts.Incomplete++
		case model.StatusInReview:
			counts.InReview++
		case model.StatusApproved:
			counts.Approved++
		case model.StatusRejected:
			counts.Rejected++
		}
	}

	writeBackendEnvelope(w, map[string]interface{}{
		"doctors":    doctors,
		"pagination": map[string]interface{}{"afterCursor": after, "beforeCursor": before, "pageSize": limit},
		"counts":     counts,
	})
}

func (b *fakeBackend) serveDetail(w http.ResponseWriter, id string) {
	for _, d := range b.doctors {
		if d.UserID == id {
			raw, _ := json.Marshal(d)
			var obj map[string]interface{}
			_ = json.Unmarshal(raw, &obj)
			writeBackendEnvelope(w, obj)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"success":false,"error":"doctor not found"}`))
}

func (b *fakeBackend) serveReview(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		Action  string `json:"action"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"error":"bad body"}`))
		return
	}
	for i := range b.doctors {
		if b.doctors[i].UserID == id {
			if body.Action == "approve" {
				b.doctors[i].ProfileStatus = model.StatusApproved
			} else {
				b.doctors[i].ProfileStatus = model.StatusRejected
			}
			b.doctors[i].ReviewMessage = body.Message
			b.doctors[i].ReviewedBy = "admin-uid"
			b.doctors[i].ReviewedAt = time.Now().UTC().Format(time.RFC3339)
			writeBackendEnvelope(w, map[string]interface{}{})
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"success":false,"error":"doctor not found"}`))
}

// fakeIdentityProvider serves the sign-in and token endpoints.
func fakeIdentityProvider() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/accounts:signInWithPassword":
			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["email"] != testAdminEmail || body["password"] != testAdminPassword {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"error": map[string]string{"message": "INVALID_LOGIN_CREDENTIALS"},
				})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{
				"idToken":      "idp-id-token",
				"refreshToken": "idp-refresh-token",
				"expiresIn":    "3600",
				"localId":      "admin-uid",
				"email":        testAdminEmail,
			})

		case "/accounts:signInWithIdp":
			_ = json.NewEncoder(w).Encode(map[string]string{
				"idToken":      "idp-id-token",
				"refreshToken": "idp-refresh-token",
				"expiresIn":    "3600",
				"localId":      "admin-uid",
				"email":        testAdminEmail,
			})

		case "/token":
			_ = json.NewEncoder(w).Encode(map[string]string{
				"id_token":   "idp-id-token-2",
				"expires_in": "3600",
				"user_id":    "admin-uid",
			})

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

type testApp struct {
	router   *gin.Engine
	backend  *fakeBackend
	sessions *session.Manager
	profiles *profile.Loader
	grids    *pagination.Registry
	upstream *upstream.Client
}

// newTestApp wires the full route table against fake identity and backend
// servers, mirroring the production wiring.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.SetRedisClientForTesting(nil)

	backend := newFakeBackend()
	backendSrv := httptest.NewServer(backend.handler())
	t.Cleanup(backendSrv.Close)

	idpSrv := httptest.NewServer(fakeIdentityProvider())
	t.Cleanup(idpSrv.Close)

	idp := identity.NewClient("test-key", idpSrv.URL, idpSrv.URL)
	up := upstream.New(backendSrv.URL)
	sessions := session.NewManager(idp, time.Hour)
	profiles := profile.NewLoader(up, time.Hour)
	grids := pagination.NewRegistry(time.Hour)
	guards := middleware.GuardDeps{Sessions: sessions, Profiles: profiles, Grids: grids}

	h := NewHandler(idp, sessions, profiles, grids, up)

	r := gin.New()
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.SessionResolver(sessions))

	r.GET("/", h.Root)

	auth := r.Group("/auth")
	{
		auth.POST("/login", middleware.RateLimiter(middleware.RateLimitConfig{}), middleware.RequireGuest(), h.Login)
		auth.POST("/google", middleware.RateLimiter(middleware.RateLimitConfig{}), middleware.RequireGuest(), h.LoginWithGoogle)
		auth.DELETE("/logout", h.Logout)
		auth.GET("/session", h.ValidateSession)
	}

	dashboard := r.Group("/dashboard")
	{
		dashboard.GET("/profile", middleware.RequireAuth(), h.GetProfile)
		dashboard.POST("/profile/refresh", middleware.RequireAuth(), h.RefreshProfile)

		admin := dashboard.Group("", middleware.RequireAdmin(guards))
		{
			admin.GET("/verificaciones", h.ListVerifications)
			admin.GET("/verificaciones/:userId", h.GetVerificationDetail)
			admin.PUT("/verificaciones/:userId/review", h.SubmitReview)
		}
	}

	api := r.Group("/api")
	{
		api.Any("/profile", h.RelayProfile)
		api.Any("/admin/doctors", h.RelayDoctors)
		api.Any("/admin/doctors/:userId", h.RelayDoctorDetail)
		api.Any("/admin/doctors/:userId/review", h.RelayReview)
	}

	return &testApp{
		router:   r,
		backend:  backend,
		sessions: sessions,
		profiles: profiles,
		grids:    grids,
		upstream: up,
	}
}

type requestSpec struct {
	method  string
	path    string
	body    interface{}
	headers map[string]string
	cookie  string
}

func performRequest(r *gin.Engine, spec requestSpec) (*httptest.ResponseRecorder, map[string]interface{}, error) {
	var reader *strings.Reader
	setJSONHeader := false
	switch v := spec.body.(type) {
	case nil:
		reader = strings.NewReader("")
	case string:
		reader = strings.NewReader(v)
		setJSONHeader = true
	default:
		b, _ := json.Marshal(spec.body)
		reader = strings.NewReader(string(b))
		setJSONHeader = true
	}

	req := httptest.NewRequest(spec.method, spec.path, reader)
	if setJSONHeader {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range spec.headers {
		req.Header.Set(key, value)
	}
	if spec.cookie != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: spec.cookie})
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var response map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			return w, nil, err
		}
	}
	return w, response, nil
}

// loginAsAdmin performs the password login flow and returns the session
// cookie value.
func loginAsAdmin(t *testing.T, app *testApp) string {
	t.Helper()
	w, response, err := performRequest(app.router, requestSpec{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]string{"email": testAdminEmail, "password": testAdminPassword},
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code, "login failed: %v", response)

	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c.Value
		}
	}
	t.Fatal("login response carried no session cookie")
	return ""
}

// assertStatus asserts that the response HTTP status code matches the expected value
func assertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, w.Code)
}

// assertSuccessResponse asserts that the response indicates success with HTTP 200
func assertSuccessResponse(t *testing.T, w *httptest.ResponseRecorder, response map[string]interface{}) {
	t.Helper()
	assert.Equal(t, http.StatusOK, w.Code)
	if response == nil {
		return
	}
	if success, ok := response["success"].(bool); ok {
		assert.True(t, success)
	}
}

func dataMap(t *testing.T, response map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := response["data"].(map[string]interface{})
	assert.True(t, ok, "response data is not an object: %v", response)
	return data
}
