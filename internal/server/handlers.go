package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/zonewarden/internal/domain"
)

type participantRequest struct {
	ParticipantID uuid.UUID `json:"participant_id"`
}

func bindParticipant(c echo.Context) (uuid.UUID, error) {
	var req participantRequest
	if err := c.Bind(&req); err != nil || req.ParticipantID == uuid.Nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "participant_id is required")
	}
	return req.ParticipantID, nil
}

// handleEnterZone is the "request entry into zone N for participant P"
// command. The interesting work happens in the manager; this adapter only
// translates the outcome into status codes and feedback text.
func (s *Server) handleEnterZone(c echo.Context) error {
	zoneID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "zone id must be an integer"})
	}

	pid, err := bindParticipant(c)
	if err != nil {
		return err
	}

	if !s.limiter.Allow(pid) {
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "too many admission attempts"})
	}

	admitErr := s.manager.Admit(c.Request().Context(), pid, zoneID)
	if admitErr == nil {
		return c.JSON(http.StatusOK, map[string]string{
			"status":   "admitted",
			"feedback": fmt.Sprintf("Entered zone %d.", zoneID),
		})
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(admitErr, domain.ErrZoneNotFound):
		status = http.StatusNotFound
	case errors.Is(admitErr, domain.ErrSessionExists):
		status = http.StatusConflict
	case errors.Is(admitErr, domain.ErrParticipantOffline):
		status = http.StatusConflict
	case errors.Is(admitErr, domain.ErrInsufficientFunds), errors.Is(admitErr, domain.ErrPaymentFailed):
		status = http.StatusPaymentRequired
	case errors.Is(admitErr, domain.ErrAccountUnavailable):
		status = http.StatusBadGateway
	case errors.Is(admitErr, domain.ErrRelocationFailed):
		// Payment taken, session recorded; the relocation will be retried
		// by reconciliation. Report it, don't hide it.
		return c.JSON(http.StatusBadGateway, map[string]string{
			"status": "admitted_pending_relocation",
			"error":  admitErr.Error(),
		})
	}
	return c.JSON(status, map[string]string{"error": admitErr.Error()})
}

func (s *Server) handleDisconnect(c echo.Context) error {
	pid, err := bindParticipant(c)
	if err != nil {
		return err
	}
	s.manager.Disconnect(c.Request().Context(), pid)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleReconnect(c echo.Context) error {
	pid, err := bindParticipant(c)
	if err != nil {
		return err
	}
	if err := s.manager.Reconnect(c.Request().Context(), pid); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListSessions(c echo.Context) error {
	snapshot := s.manager.Sessions()
	out := make([]domain.Session, 0, len(snapshot))
	for _, sess := range snapshot {
		out = append(out, sess)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"count":    len(out),
		"sessions": out,
	})
}

func (s *Server) handleCatalogReload(c echo.Context) error {
	if err := s.catalog.Reload(); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{"zones": len(s.catalog.All())})
}
