package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"delegate-api/internal/db"
	"delegate-api/internal/keys"
	"delegate-api/internal/logger"
	"delegate-api/internal/services"
	"delegate-api/internal/types"
)

// CommonServices holds the shared dependencies handlers need.
type CommonServices struct {
	queries      db.Querier
	verification *services.VerificationService
	permissions  *services.PermissionService
	execution    *services.ExecutionService
	sessionKeys  *keys.Manager
}

// NewCommonServices creates a new instance of CommonServices.
func NewCommonServices(
	queries db.Querier,
	verification *services.VerificationService,
	permissions *services.PermissionService,
	execution *services.ExecutionService,
	sessionKeys *keys.Manager,
) *CommonServices {
	return &CommonServices{
		queries:      queries,
		verification: verification,
		permissions:  permissions,
		execution:    execution,
		sessionKeys:  sessionKeys,
	}
}

// ErrorResponse is the standard error body. Kind is machine-readable so
// collaborators branch on it instead of parsing the message.
type ErrorResponse struct {
	Error string          `json:"error"`
	Kind  types.ErrorKind `json:"kind,omitempty"`
}

// SuccessResponse is the standard success body.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// HealthResponse is the health check body.
type HealthResponse struct {
	Status string `json:"status"`
}

// sendError logs and returns a JSON error response.
func sendError(c *gin.Context, statusCode int, message string, err error) {
	logger.Error(message,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
	)
	c.JSON(statusCode, ErrorResponse{Error: message})
}

// sendEngineError maps a typed engine error onto a 4xx response carrying the
// error kind. Expected conditions never surface as 500s.
func sendEngineError(c *gin.Context, err error) {
	kind := types.KindOf(err)
	logger.Warn("Request failed with engine error",
		zap.String("kind", string(kind)),
		zap.String("detail", types.DetailOf(err)),
		zap.String("path", c.Request.URL.Path),
	)
	status := http.StatusBadRequest
	switch kind {
	case types.KindNoMatchingGrant:
		status = http.StatusNotFound
	case types.KindPermissionDenied:
		status = http.StatusForbidden
	case types.KindConfigurationError:
		status = http.StatusInternalServerError
	}
	c.JSON(status, ErrorResponse{Error: types.DetailOf(err), Kind: kind})
}

// handleDBError maps database errors onto HTTP status codes.
func handleDBError(c *gin.Context, err error, notFoundMsg string) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		sendError(c, http.StatusNotFound, notFoundMsg, err)
	default:
		sendError(c, http.StatusInternalServerError, "Database error", err)
	}
}
