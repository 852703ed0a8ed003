package http

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/partscout/backend/internal/domain"
	"github.com/partscout/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	sessions *usecase.SessionService
	repo     domain.SessionRepository
}

// NewHandler creates a new HTTP handler
func NewHandler(sessions *usecase.SessionService, repo domain.SessionRepository) *Handler {
	return &Handler{
		sessions: sessions,
		repo:     repo,
	}
}

type keywordRequest struct {
	Keyword string `json:"keyword"`
}

type selectionRequest struct {
	Manufacturers []string `json:"manufacturers"`
}

// transition computes the next session from the stored one
type transition func(ctx context.Context, s domain.SearchSession) (domain.SearchSession, error)

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "partscout-backend",
		"version": "1.0.0",
	})
}

// CreateSession starts a new session and submits its first keyword
func (h *Handler) CreateSession(c *gin.Context) {
	var req keywordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	session := h.sessions.NewSession()
	next, err := h.sessions.SubmitKeyword(ctx, session, req.Keyword)
	if errors.Is(err, domain.ErrInvalidInput) {
		h.respondError(c, session, err)
		return
	}

	// Keep the idle session when every source failed so the client can retry
	if saveErr := h.repo.Save(ctx, &next, 0); saveErr != nil {
		h.respondError(c, session, saveErr)
		return
	}
	if err != nil {
		h.respondError(c, next, err)
		return
	}
	c.JSON(http.StatusCreated, NewSessionSnapshot(next))
}

// GetSession returns the current snapshot of a session
func (h *Handler) GetSession(c *gin.Context) {
	session, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, domain.SearchSession{}, err)
		return
	}
	c.JSON(http.StatusOK, NewSessionSnapshot(*session))
}

// SubmitKeyword starts a new search flow in an existing session
func (h *Handler) SubmitKeyword(c *gin.Context) {
	var req keywordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	h.apply(c, func(ctx context.Context, s domain.SearchSession) (domain.SearchSession, error) {
		return h.sessions.SubmitKeyword(ctx, s, req.Keyword)
	})
}

// SelectManufacturers stores a selection and searches its products
func (h *Handler) SelectManufacturers(c *gin.Context) {
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	h.apply(c, func(ctx context.Context, s domain.SearchSession) (domain.SearchSession, error) {
		return h.sessions.SelectManufacturers(ctx, s, req.Manufacturers)
	})
}

// SelectAllManufacturers selects every discovered manufacturer
func (h *Handler) SelectAllManufacturers(c *gin.Context) {
	h.apply(c, func(_ context.Context, s domain.SearchSession) (domain.SearchSession, error) {
		return h.sessions.SelectAllManufacturers(s)
	})
}

// ClearSelection empties the manufacturer selection
func (h *Handler) ClearSelection(c *gin.Context) {
	h.apply(c, func(_ context.Context, s domain.SearchSession) (domain.SearchSession, error) {
		return h.sessions.ClearManufacturerSelection(s)
	})
}

// SearchProducts searches products for the current selection
func (h *Handler) SearchProducts(c *gin.Context) {
	h.apply(c, h.sessions.SearchProducts)
}

// ResetSession returns the session to idle
func (h *Handler) ResetSession(c *gin.Context) {
	h.apply(c, func(_ context.Context, s domain.SearchSession) (domain.SearchSession, error) {
		return h.sessions.Reset(s), nil
	})
}

// apply loads the session, runs next and saves the result against the
// revision it was computed from. A result computed from a superseded
// revision is discarded.
func (h *Handler) apply(c *gin.Context, next transition) {
	ctx := c.Request.Context()

	session, err := h.repo.Get(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, domain.SearchSession{}, err)
		return
	}

	base := session.Revision
	updated, err := next(ctx, *session)
	if err != nil {
		h.respondError(c, *session, err)
		return
	}

	if err := h.repo.Save(ctx, &updated, base); err != nil {
		h.respondError(c, *session, err)
		return
	}
	c.JSON(http.StatusOK, NewSessionSnapshot(updated))
}

// respondError maps domain errors to HTTP statuses
func (h *Handler) respondError(c *gin.Context, session domain.SearchSession, err error) {
	var failed *domain.AllSourcesFailedError
	switch {
	case errors.As(err, &failed):
		log.Printf("[HTTP] %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":            err.Error(),
			"allSourcesFailed": true,
			"phase":            string(failed.Phase),
			"outcomes":         outcomeViews(failed.Outcomes),
			"session":          NewSessionSnapshot(session),
		})
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrStaleSession):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// The client went away; nothing useful can be written
		c.Status(http.StatusServiceUnavailable)
	default:
		log.Printf("[HTTP] %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
