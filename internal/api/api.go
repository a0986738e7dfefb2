// Package api serves the tenant-facing command/query endpoints.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"socialflow/internal/logging"
	"socialflow/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const (
	TenantHeader = "X-Tenant-ID"
	tenantKey    = "tenant_id"
	loggerKey    = "logger"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// RequireTenant reads the tenant from the X-Tenant-ID header and rejects
// requests without one.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(TenantHeader)
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + TenantHeader + " header"})
			return
		}
		c.Set(tenantKey, tenantID)
		c.Next()
	}
}

func tenantID(c *gin.Context) string {
	return c.GetString(tenantKey)
}

// withLogger attaches a tenant-tagged child of base to every request.
func withLogger(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(loggerKey, base.With().Str("tenant_id", tenantID(c)).Logger())
		c.Next()
	}
}

func requestLog(c *gin.Context) zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(zerolog.Logger); ok {
			return l
		}
	}
	return logging.Component("api")
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, name string) int {
	n, _ := strconv.Atoi(c.Query(name))
	return n
}

// bind decodes the JSON body into req and runs struct validation.
func bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// respondError maps store errors onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	var invalid *validationError
	switch {
	case store.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		l := requestLog(c)
		l.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func invalidf(format string, args ...interface{}) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}
