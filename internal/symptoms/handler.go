package symptoms

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"medicare-backend/internal/shared/server/middleware"
	"medicare-backend/internal/shared/server/respond"
	"medicare-backend/internal/shared/telemetry"
)

// Handler wires HTTP handlers to the symptoms service.
type Handler struct {
	Svc *Service
	// SubmitGuards run before the analyze handlers, e.g. the per-user
	// sliding-window limiter.
	SubmitGuards []gin.HandlerFunc
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, submitGuards ...gin.HandlerFunc) *Handler {
	return &Handler{Svc: svc, SubmitGuards: submitGuards}
}

// RegisterRoutes attaches symptom routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/symptoms")
	g.POST("/analyze", h.withGuards(h.analyze(PolicyStrict))...)
	g.POST("/analyze-basic", h.withGuards(h.analyze(PolicyDegraded))...)
	g.GET("/history", h.history)
	g.GET("/analysis/:id", h.getAnalysis)
}

func (h *Handler) withGuards(final gin.HandlerFunc) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0, len(h.SubmitGuards)+1)
	chain = append(chain, h.SubmitGuards...)
	return append(chain, final)
}

func (h *Handler) analyze(policy Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserIDFromContext(c)

		var req analyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			validationFailed(c, &ValidationError{Fields: []FieldError{{
				Field:   "body",
				Issue:   "invalid_json",
				Message: "Request body must be a JSON object matching the analysis request",
			}}})
			return
		}
		input, verr := req.toInput()
		if verr != nil {
			validationFailed(c, verr)
			return
		}

		ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
		handle, err := h.Svc.Submit(ctx, userID, input, SubmitOptions{Policy: policy})
		if err != nil {
			var ve *ValidationError
			switch {
			case errors.As(err, &ve):
				validationFailed(c, ve)
			case errors.Is(err, ErrUnauthenticated):
				respond.Fail(c, http.StatusUnauthorized, "Authentication required", nil)
			case errors.Is(err, ErrShuttingDown):
				respond.Fail(c, http.StatusServiceUnavailable, "The service is restarting. Please try again shortly.", nil)
			default:
				respond.Fail(c, http.StatusInternalServerError, clientMessage(ErrorCodeStorage), nil)
			}
			return
		}
		c.Set(middleware.SessionIDKey, handle.SessionID())

		session, err := handle.Wait(c.Request.Context())
		if err != nil {
			if errors.Is(err, context.Canceled) && c.Request.Context().Err() != nil {
				telemetry.Info("symptoms.client_gone", map[string]any{
					"request_id": middleware.RequestIDFromContext(c),
					"session_id": handle.SessionID(),
				})
				c.Abort()
				return
			}
			code := ErrorCodeInternal
			var failed *FailedError
			if errors.As(err, &failed) {
				code = failed.Code
			}
			c.Set(middleware.StatusTransitionKey, "processing->failed")
			respond.Fail(c, http.StatusInternalServerError, clientMessage(code), gin.H{
				"sessionId": handle.SessionID(),
				"code":      code,
			})
			return
		}

		c.Set(middleware.StatusTransitionKey, "processing->completed")
		data := gin.H{
			"sessionId":      session.ID,
			"analysis":       session.Analysis,
			"confidence":     session.Confidence,
			"processingTime": session.ProcessingTimeMs,
			"timestamp":      session.UpdatedAt,
		}
		if session.Fallback {
			data["fallback"] = true
		}
		respond.Success(c, data)
	}
}

func (h *Handler) history(c *gin.Context) {
	q, verr := parseHistoryQuery(c.Query)
	if verr != nil {
		validationFailed(c, verr)
		return
	}
	hist, err := h.Svc.History(c.Request.Context(), middleware.UserIDFromContext(c), q)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			respond.Fail(c, http.StatusUnauthorized, "Authentication required", nil)
			return
		}
		respond.Fail(c, http.StatusInternalServerError, "Failed to fetch symptom analysis history", nil)
		return
	}
	respond.Success(c, newHistoryResponse(hist))
}

func (h *Handler) getAnalysis(c *gin.Context) {
	session, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Fail(c, http.StatusNotFound, "Analysis not found", nil)
		case errors.Is(err, ErrUnauthenticated):
			respond.Fail(c, http.StatusUnauthorized, "Authentication required", nil)
		default:
			respond.Fail(c, http.StatusInternalServerError, "Failed to fetch analysis", nil)
		}
		return
	}
	c.Set(middleware.SessionIDKey, session.ID)
	respond.Success(c, session)
}

func validationFailed(c *gin.Context, verr *ValidationError) {
	respond.Fail(c, http.StatusBadRequest, "Validation failed", gin.H{"errors": verr.Fields})
}
