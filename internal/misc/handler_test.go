package misc

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dkoleva/inkwell/internal/auth"
	"github.com/dkoleva/inkwell/internal/middleware"
	"github.com/dkoleva/inkwell/internal/telemetry/metrics"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPasswordHash = "$2a$14$6Gmhg85si2etd3K9oB8nYu1cxfbrdmhkg6wI6OXsa88IF4L2r/L9i" // testpass

func newMiscTestRouter(t *testing.T) (*mux.Router, *auth.Service) {
	t.Helper()

	authService := auth.NewService(&auth.Admin{
		Username:     "dkoleva",
		PasswordHash: testPasswordHash,
	}, time.Hour, auth.NewMemorySessionStore())

	handler := NewHandler("test-version", authService)
	router := mux.NewRouter()
	handler.SetupRoutes(router, middleware.NewMemoryRateLimiter(), 100, metrics.NewTestManager())

	return router, authService
}

func TestHandler_routes(t *testing.T) {
	router, _ := newMiscTestRouter(t)

	for caseName, route := range map[string]struct {
		name   string
		path   string
		method string
	}{
		"root": {
			name:   "root",
			path:   "/",
			method: "GET",
		},
		"version": {
			name:   "version",
			path:   "/version",
			method: "GET",
		},
		"login": {
			name:   "login",
			path:   "/a/login",
			method: "POST",
		},
		"logout": {
			name:   "logout",
			path:   "/a/logout",
			method: "GET",
		},
	} {
		t.Run(caseName, func(t *testing.T) {
			req, err := http.NewRequest(route.method, route.path, nil)
			require.NoError(t, err)

			routeMatch := &mux.RouteMatch{}
			muxRoute := router.Get(route.name)
			require.NotNil(t, muxRoute)
			assert.True(t, muxRoute.Match(req, routeMatch), caseName)
		})
	}
}

func TestHandler_root(t *testing.T) {
	router, _ := newMiscTestRouter(t)

	req, err := http.NewRequest("GET", "/", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "I'm OK, thanks ;)", rr.Body.String())
}

func TestHandler_version(t *testing.T) {
	router, _ := newMiscTestRouter(t)

	req, err := http.NewRequest("GET", "/version", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "test-version", rr.Body.String())
}

func loginToken(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var tokenResp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tokenResp))
	require.NotEmpty(t, tokenResp.Token)
	return tokenResp.Token
}

func TestHandler_loginJSON(t *testing.T) {
	router, authService := newMiscTestRouter(t)

	body := `{"username": "dkoleva", "password": "testpass"}`
	req, err := http.NewRequest("POST", "/a/login", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	token := loginToken(t, rr)
	isLogged, err := authService.IsLogged(req.Context(), token)
	require.NoError(t, err)
	assert.True(t, isLogged)
}

func TestHandler_loginForm(t *testing.T) {
	router, _ := newMiscTestRouter(t)

	form := url.Values{}
	form.Set("username", "dkoleva")
	form.Set("password", "testpass")
	req, err := http.NewRequest("POST", "/a/login", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	loginToken(t, rr)
}

func TestHandler_loginRejections(t *testing.T) {
	router, _ := newMiscTestRouter(t)

	for caseName, tc := range map[string]struct {
		body           string
		expectedStatus int
	}{
		"wrong password": {
			body:           `{"username": "dkoleva", "password": "letmein"}`,
			expectedStatus: http.StatusUnauthorized,
		},
		"wrong username": {
			body:           `{"username": "admin", "password": "testpass"}`,
			expectedStatus: http.StatusUnauthorized,
		},
		"empty username": {
			body:           `{"password": "testpass"}`,
			expectedStatus: http.StatusBadRequest,
		},
		"empty password": {
			body:           `{"username": "dkoleva"}`,
			expectedStatus: http.StatusBadRequest,
		},
		"broken json": {
			body:           `{"username": `,
			expectedStatus: http.StatusBadRequest,
		},
	} {
		t.Run(caseName, func(t *testing.T) {
			req, err := http.NewRequest("POST", "/a/login", strings.NewReader(tc.body))
			require.NoError(t, err)
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()

			router.ServeHTTP(rr, req)
			assert.Equal(t, tc.expectedStatus, rr.Code)
		})
	}
}

func TestHandler_logout(t *testing.T) {
	router, authService := newMiscTestRouter(t)

	body := `{"username": "dkoleva", "password": "testpass"}`
	req, err := http.NewRequest("POST", "/a/login", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	token := loginToken(t, rr)

	req, err = http.NewRequest("GET", "/a/logout", nil)
	require.NoError(t, err)
	req.Header.Set(middleware.AuthTokenHeader, token)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "logged-out", rr.Body.String())

	isLogged, err := authService.IsLogged(req.Context(), token)
	require.NoError(t, err)
	assert.False(t, isLogged)
}

func TestHandler_logoutRejections(t *testing.T) {
	router, _ := newMiscTestRouter(t)

	// no token at all
	req, err := http.NewRequest("GET", "/a/logout", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// a token nobody issued
	req, err = http.NewRequest("GET", "/a/logout", nil)
	require.NoError(t, err)
	req.Header.Set(middleware.AuthTokenHeader, "made-up-token")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandler_loginRateLimited(t *testing.T) {
	authService := auth.NewService(&auth.Admin{
		Username:     "dkoleva",
		PasswordHash: testPasswordHash,
	}, time.Hour, auth.NewMemorySessionStore())

	handler := NewHandler("test-version", authService)
	router := mux.NewRouter()
	// tight limit so the test does not need many requests
	handler.SetupRoutes(router, middleware.NewMemoryRateLimiter(), 2, metrics.NewTestManager())

	attempt := func() int {
		body := `{"username": "dkoleva", "password": "letmein"}`
		req, err := http.NewRequest("POST", "/a/login", strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusUnauthorized, attempt())
	assert.Equal(t, http.StatusUnauthorized, attempt())
	assert.Equal(t, http.StatusTooManyRequests, attempt())
}
