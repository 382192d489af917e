package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/liveclass-lms/backend/internal/auth"
)

func TestJWTCredentialSources(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtService := auth.NewJWTService("test-secret", 1)
	token, err := jwtService.Generate(uuid.New(), "host@uni.example", "instructor")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	router := gin.New()
	router.GET("/probe", JWT(jwtService), func(c *gin.Context) {
		c.String(http.StatusOK, c.MustGet(ContextUserEmail).(string))
	})

	tests := []struct {
		name     string
		header   string
		cookie   string
		wantCode int
	}{
		{name: "bearer header", header: "Bearer " + token, wantCode: http.StatusOK},
		{name: "session cookie", cookie: token, wantCode: http.StatusOK},
		{name: "no credentials", wantCode: http.StatusUnauthorized},
		{name: "garbage cookie", cookie: "not-a-token", wantCode: http.StatusUnauthorized},
		{name: "malformed header ignored, cookie wins", header: "Token abc", cookie: token, wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/probe", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK && rec.Body.String() != "host@uni.example" {
				t.Fatalf("email = %q, want %q", rec.Body.String(), "host@uni.example")
			}
		})
	}
}
