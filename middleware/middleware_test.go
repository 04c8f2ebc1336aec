package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"goldenminutes/models"
	"goldenminutes/utils"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(jwtService *utils.JWTService) *gin.Engine {
	auth := NewAuthMiddleware(jwtService)
	router := gin.New()
	router.Use(DefaultLoggerMiddleware())

	router.GET("/me", auth.RequireAuth(), func(c *gin.Context) {
		viewer := Viewer(c)
		c.String(http.StatusOK, viewer.UserID+"/"+viewer.Role)
	})
	router.GET("/volunteers-only", auth.RequireAuth(), auth.RequireRole(models.RoleVolunteer), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestRequireAuth(t *testing.T) {
	jwtService := utils.NewJWTService("test-secret")
	router := newAuthRouter(jwtService)

	token, err := jwtService.GenerateToken("user-1", models.RoleVolunteer)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	citizenToken, err := jwtService.GenerateToken("user-2", "")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	foreign, err := utils.NewJWTService("other-secret").GenerateToken("user-1", models.RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
		wantBody   string
	}{
		{"missing token", "", "", http.StatusUnauthorized, ""},
		{"malformed header", "Token abc", "", http.StatusUnauthorized, ""},
		{"wrong signature", "Bearer " + foreign, "", http.StatusUnauthorized, ""},
		{"bearer token", "Bearer " + token, "", http.StatusOK, "user-1/volunteer"},
		{"query token", "", "?token=" + token, http.StatusOK, "user-1/volunteer"},
		{"empty role is citizen", "Bearer " + citizenToken, "", http.StatusOK, "user-2/citizen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
			if w.Header().Get(RequestIDHeader) == "" {
				t.Error("missing request id header")
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	jwtService := utils.NewJWTService("test-secret")
	router := newAuthRouter(jwtService)

	tests := map[string]int{
		models.RoleCitizen:   http.StatusForbidden,
		models.RoleVolunteer: http.StatusNoContent,
		models.RoleAdmin:     http.StatusNoContent,
	}
	for role, want := range tests {
		token, err := jwtService.GenerateToken("user-1", role)
		if err != nil {
			t.Fatalf("GenerateToken: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/volunteers-only", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != want {
			t.Errorf("role %s: status = %d, want %d", role, w.Code, want)
		}
	}
}

func TestSOSRateLimitWithoutRedis(t *testing.T) {
	router := gin.New()
	router.POST("/sos", SOSRateLimit(nil, 2, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/sos", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusCreated || codes[1] != http.StatusCreated || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v, want [201 201 429]", codes)
	}

	// A different caller has its own window.
	req := httptest.NewRequest(http.MethodPost, "/sos", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Errorf("second caller status = %d, want 201", w.Code)
	}
}

func TestErrorHandlerRecoversPanics(t *testing.T) {
	router := gin.New()
	router.Use(NewErrorHandler("test", nil).Handle())
	router.GET("/boom", func(c *gin.Context) {
		panic("boom")
	})
	router.GET("/not-found", func(c *gin.Context) {
		_ = c.Error(utils.NewEmergencyNotFoundError())
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("panic status = %d, want 500", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/not-found", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("c.Error status = %d, want 404", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := gin.New()
	router.Use(CORS(DefaultCORSConfig()))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Errorf("allow origin = %q", w.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("disallowed origin was echoed")
	}
}
