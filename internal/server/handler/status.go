package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// RunReader reads detection run records.
type RunReader interface {
	Latest(ctx context.Context) (domain.DetectionRun, error)
}

// RecentOpportunities lists the most recently seen opportunities.
type RecentOpportunities interface {
	ListRecent(ctx context.Context, limit int) ([]domain.ArbOpportunity, error)
}

// EventReader reads the newest entries of an event stream.
type EventReader interface {
	StreamRange(ctx context.Context, stream string, count int64) ([][]byte, error)
}

// StatusHandler reports what the detection engine last did.
type StatusHandler struct {
	mode   string
	runs   RunReader
	opps   RecentOpportunities
	events EventReader
	stream string
	logger *slog.Logger
}

// NewStatusHandler creates a StatusHandler. events may be nil.
func NewStatusHandler(mode string, runs RunReader, opps RecentOpportunities, events EventReader, stream string, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		mode:   mode,
		runs:   runs,
		opps:   opps,
		events: events,
		stream: stream,
		logger: logHandler(logger, "status"),
	}
}

type runView struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Stats      domain.RunStats `json:"stats"`
	Error      string          `json:"error,omitempty"`
}

type statusResponse struct {
	Mode          string                  `json:"mode"`
	LastRun       *runView                `json:"last_run"`
	Opportunities []domain.ArbOpportunity `json:"opportunities"`
	Events        []json.RawMessage       `json:"events,omitempty"`
	Error         string                  `json:"error,omitempty"`
}

// GetStatus responds with the latest detection run and recent
// opportunities. A failing store does not fail the request: whatever could
// be read is returned together with an "error" field.
// GET /api/status?limit=20
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := statusResponse{Mode: h.mode, Opportunities: []domain.ArbOpportunity{}}
	var problems []string

	run, err := h.runs.Latest(ctx)
	switch {
	case err == nil:
		resp.LastRun = &runView{
			ID:         run.ID,
			Status:     string(run.Status),
			StartedAt:  run.StartedAt,
			FinishedAt: run.FinishedAt,
			Stats:      run.Stats,
			Error:      run.Error,
		}
	case errors.Is(err, domain.ErrNotFound):
	default:
		h.logger.ErrorContext(ctx, "latest run failed", slog.String("error", err.Error()))
		problems = append(problems, "latest run unavailable")
	}

	opps, err := h.opps.ListRecent(ctx, queryLimit(r, 20, 200))
	if err != nil {
		h.logger.ErrorContext(ctx, "recent opportunities failed", slog.String("error", err.Error()))
		problems = append(problems, "opportunities unavailable")
	} else if opps != nil {
		resp.Opportunities = opps
	}

	if h.events != nil {
		entries, err := h.events.StreamRange(ctx, h.stream, 20)
		if err != nil {
			h.logger.WarnContext(ctx, "event stream failed", slog.String("error", err.Error()))
			problems = append(problems, "events unavailable")
		}
		for _, e := range entries {
			if json.Valid(e) {
				resp.Events = append(resp.Events, json.RawMessage(e))
			}
		}
	}

	resp.Error = strings.Join(problems, "; ")
	writeJSON(w, http.StatusOK, resp)
}
