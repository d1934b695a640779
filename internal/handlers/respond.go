package handlers

import (
	"errors"
	"net/http"
	"strconv"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/lissa/commissions-api/internal/middleware"
	"github.com/lissa/commissions-api/internal/services"
	"github.com/lissa/commissions-api/pkg/logger"
)

// statusFor maps domain error kinds to HTTP status codes
func statusFor(err error) int {
	var derr *services.DomainError
	if !errors.As(err, &derr) {
		return http.StatusInternalServerError
	}
	switch derr.Kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindStateConflict:
		return http.StatusConflict
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindReferenceMismatch:
		return http.StatusUnprocessableEntity
	case services.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error body. Unexpected failures are logged and reported, never echoed.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("[Handler] request failed", "path", c.FullPath(), "error", err)
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "Error interno del servidor"})
		return
	}
	var derr *services.DomainError
	errors.As(err, &derr)
	c.JSON(status, gin.H{"error": derr.Message, "kind": derr.Kind})
}

// actorFrom builds the service actor from the authenticated claims
func actorFrom(c *gin.Context) services.Actor {
	return services.Actor{
		UserID:   middleware.GetUserID(c),
		Role:     middleware.GetUserRole(c),
		BrokerID: middleware.GetBrokerID(c),
	}
}

// paramID parses a numeric path parameter, answering 400 when it is not one
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identificador inválido: " + name})
		return 0, false
	}
	return uint(id), true
}

// queryID parses an optional numeric query parameter
func queryID(c *gin.Context, name string) (*uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Parámetro inválido: " + name})
		return nil, false
	}
	v := uint(id)
	return &v, true
}

// bind decodes a JSON body (flat or nested under key) and answers 400 on failure
func bind(c *gin.Context, key string, obj interface{}) bool {
	if err := BindNestedOrFlat(c, key, obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cuerpo inválido: " + err.Error()})
		return false
	}
	return true
}
