package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lissa/commissions-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(secret))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c), "role": GetUserRole(c), "broker_id": GetBrokerID(c)})
	})
	r.GET("/master", RequireMaster(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func call(t *testing.T, r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func token(t *testing.T, claims Claims, ttl time.Duration) string {
	t.Helper()
	tok, err := IssueToken(secret, claims, ttl)
	require.NoError(t, err)
	return tok
}

func TestAuth(t *testing.T) {
	r := newRouter()
	brokerID := uint(4)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"missing header", "/me", "", http.StatusUnauthorized},
		{"garbage token", "/me", "abc", http.StatusUnauthorized},
		{"expired token", "/me", token(t, Claims{UserID: 1, Role: models.RoleMaster}, -time.Minute), http.StatusUnauthorized},
		{"unknown role", "/me", token(t, Claims{UserID: 1, Role: "admin"}, time.Hour), http.StatusUnauthorized},
		{"broker", "/me", token(t, Claims{UserID: 9, Role: models.RoleBroker, BrokerID: &brokerID}, time.Hour), http.StatusOK},
		{"broker on master route", "/master", token(t, Claims{UserID: 9, Role: models.RoleBroker, BrokerID: &brokerID}, time.Hour), http.StatusForbidden},
		{"master on master route", "/master", token(t, Claims{UserID: 1, Role: models.RoleMaster}, time.Hour), http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(t, r, tt.path, tt.token)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestAuth_ClaimsInContext(t *testing.T) {
	r := newRouter()
	brokerID := uint(4)

	w := call(t, r, "/me", token(t, Claims{UserID: 9, Role: models.RoleBroker, BrokerID: &brokerID}, time.Hour))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":9,"role":"broker","broker_id":4}`, w.Body.String())
}

func TestAuth_QueryToken(t *testing.T) {
	r := newRouter()
	tok := token(t, Claims{UserID: 1, Role: models.RoleMaster}, time.Hour)

	w := call(t, r, "/me?token="+tok, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_WrongSecret(t *testing.T) {
	r := newRouter()
	tok, err := IssueToken("other-secret", Claims{UserID: 1, Role: models.RoleMaster}, time.Hour)
	require.NoError(t, err)

	w := call(t, r, "/me", tok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
