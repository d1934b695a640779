package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lissa/commissions-api/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind   services.ErrorKind
		status int
	}{
		{services.KindValidation, http.StatusBadRequest},
		{services.KindStateConflict, http.StatusConflict},
		{services.KindNotFound, http.StatusNotFound},
		{services.KindReferenceMismatch, http.StatusUnprocessableEntity},
		{services.KindForbidden, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &services.DomainError{Kind: tt.kind, Message: "x"})
			assert.Equal(t, tt.status, statusFor(err))
		})
	}
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("db down")))
}

func TestRespondError_HidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	respondError(c, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	respondError(c, &services.DomainError{Kind: services.KindStateConflict, Message: "la quincena 3 ya está pagada"})

	require.Equal(t, http.StatusConflict, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "la quincena 3 ya está pagada", body["error"])
	assert.Equal(t, "state_conflict", body["kind"])
}

func TestParamID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/fortnights/:fortnight_id", func(c *gin.Context) {
		id, ok := paramID(c, "fortnight_id")
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	for path, status := range map[string]int{
		"/fortnights/12":  http.StatusOK,
		"/fortnights/0":   http.StatusBadRequest,
		"/fortnights/abc": http.StatusBadRequest,
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, status, w.Code, path)
	}
}
