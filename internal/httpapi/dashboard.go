package httpapi

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/guregu/null/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/netdetective/internal/domain"
	"github.com/hamed0406/netdetective/internal/repo"
	"github.com/hamed0406/netdetective/internal/stats"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 500
	defaultMinutes    = 60
	defaultHours      = 24
	maxHours          = 24 * 3660
	maxMinutes        = 60 * maxHours
)

// intParam parses an optional query parameter. ok is false when the value
// is present but not an integer within [lo, hi].
func intParam(r *http.Request, key string, def, lo, hi int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, false
	}
	return n, true
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(r, "limit", defaultAlertLimit, 1, maxAlertLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
		return
	}
	id, ok := intParam(r, "target_id", 0, 1, math.MaxInt)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid target_id")
		return
	}

	alerts, err := s.Results.RecentAlerts(r.Context(), domain.TargetID(id), limit)
	if err != nil {
		s.Logger.Error("list_alerts_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "read error")
		return
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

type overviewTarget struct {
	ID                   domain.TargetID `json:"id"`
	Name                 string          `json:"name"`
	URL                  string          `json:"url"`
	Enabled              bool            `json:"enabled"`
	LatestStatusCode     null.Int        `json:"latest_status_code"`
	LatestResponseTimeMS null.Float      `json:"latest_response_time_ms"`
	LatestError          string          `json:"latest_error"`
	LatestTS             *time.Time      `json:"latest_ts"`
	stats.Summary
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	window := s.opts.DashboardWindow

	targets, err := s.Targets.List(ctx)
	if err != nil {
		s.Logger.Error("overview_error", zap.String("step", "targets"), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "read error")
		return
	}
	latest, err := s.Results.LatestOutcomes(ctx)
	if err != nil {
		s.Logger.Error("overview_error", zap.String("step", "latest"), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "read error")
		return
	}
	recent, err := s.Results.OutcomesSince(ctx, repo.AllTargets, s.now().Add(-window))
	if err != nil {
		s.Logger.Error("overview_error", zap.String("step", "window"), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "read error")
		return
	}

	byTarget := make(map[domain.TargetID][]domain.ProbeOutcome)
	for _, o := range recent {
		byTarget[o.TargetID] = append(byTarget[o.TargetID], o)
	}

	out := make([]overviewTarget, 0, len(targets))
	for _, t := range targets {
		row := overviewTarget{
			ID:      t.ID,
			Name:    t.Name,
			URL:     t.URL,
			Enabled: t.Enabled,
			Summary: stats.Summarize(byTarget[t.ID]),
		}
		if o, ok := latest[t.ID]; ok {
			ts := o.Timestamp
			row.LatestStatusCode = o.StatusCode
			row.LatestResponseTimeMS = o.ResponseTimeMS
			row.LatestError = o.Error
			row.LatestTS = &ts
		}
		out = append(out, row)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"window_minutes": int(window / time.Minute),
		"targets":        out,
	})
}

type seriesPoint struct {
	Timestamp      time.Time  `json:"ts"`
	ResponseTimeMS null.Float `json:"response_time_ms"`
	StatusCode     null.Int   `json:"status_code"`
	Success        bool       `json:"success"`
}

func (s *Server) handleTimeseries(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(r, "target_id", 0, 1, math.MaxInt)
	if !ok || id == 0 {
		writeError(w, http.StatusBadRequest, "target_id is required")
		return
	}
	minutes, ok := intParam(r, "minutes", defaultMinutes, 1, maxMinutes)
	if !ok {
		writeError(w, http.StatusBadRequest, "minutes out of range")
		return
	}

	rows, err := s.Results.OutcomesSince(r.Context(), domain.TargetID(id), s.now().Add(-time.Duration(minutes)*time.Minute))
	if err != nil {
		s.Logger.Error("timeseries_error", zap.Int("target_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "read error")
		return
	}
	series := make([]seriesPoint, 0, len(rows))
	for _, o := range rows {
		series = append(series, seriesPoint{
			Timestamp:      o.Timestamp,
			ResponseTimeMS: o.ResponseTimeMS,
			StatusCode:     o.StatusCode,
			Success:        o.Success(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"target_id": id,
		"minutes":   minutes,
		"series":    series,
	})
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(r, "target_id", 0, 1, math.MaxInt)
	if !ok || id == 0 {
		writeError(w, http.StatusBadRequest, "target_id is required")
		return
	}
	hours, ok := intParam(r, "hours", defaultHours, 1, maxHours)
	if !ok {
		writeError(w, http.StatusBadRequest, "hours out of range")
		return
	}

	rows, err := s.Results.OutcomesSince(r.Context(), domain.TargetID(id), s.now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		s.Logger.Error("availability_error", zap.Int("target_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "read error")
		return
	}
	var availability null.Float
	if a, ok := stats.Availability(rows); ok {
		availability = null.FloatFrom(a)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"target_id":    id,
		"hours":        hours,
		"availability": availability,
		"samples":      len(rows),
	})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.Sched.Jobs()})
}
