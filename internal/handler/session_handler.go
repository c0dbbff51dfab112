package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/eogh234/srt-reservation/internal/dto"
	"github.com/eogh234/srt-reservation/internal/engine"
	"github.com/eogh234/srt-reservation/internal/repository"
)

const journalLimit = 20

// SessionHandler serves the read-only status surface: live sessions from
// the in-process registry, past runs from the journal. repo may be nil when
// no database is configured.
type SessionHandler struct {
	registry *engine.Registry
	repo     repository.SessionRepository
}

func NewSessionHandler(registry *engine.Registry, repo repository.SessionRepository) *SessionHandler {
	return &SessionHandler{registry: registry, repo: repo}
}

func (h *SessionHandler) RegisterRoutes(e *echo.Echo) {
	sessions := e.Group("/api/v1/sessions")
	sessions.GET("", h.ListSessions)
	sessions.GET("/:id", h.GetSession)
}

func (h *SessionHandler) ListSessions(c echo.Context) error {
	resp := dto.SessionListResponse{Live: []dto.SessionResponse{}}
	for _, snap := range h.registry.Snapshots() {
		resp.Live = append(resp.Live, dto.FromSnapshot(snap))
	}

	if h.repo != nil {
		recs, err := h.repo.FindRecent(c.Request().Context(), journalLimit)
		if err != nil {
			log.Printf("[SessionHandler] journal lookup failed: %v", err)
		} else {
			for i := range recs {
				resp.Journal = append(resp.Journal, dto.FromRecord(&recs[i]))
			}
		}
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *SessionHandler) GetSession(c echo.Context) error {
	id := c.Param("id")

	if s, ok := h.registry.Get(id); ok {
		return c.JSON(http.StatusOK, dto.FromSnapshot(s.Snapshot()))
	}

	if h.repo != nil {
		rec, err := h.repo.FindByID(c.Request().Context(), id)
		if err == nil {
			return c.JSON(http.StatusOK, dto.FromRecord(rec))
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}

	return echo.NewHTTPError(http.StatusNotFound, "session not found")
}
